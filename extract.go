/*
Copyright © 2026 the gridextract authors.
This file is part of gridextract.

gridextract is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridextract is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridextract.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridextract

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// Point is a named location, such as a sampling station.
type Point struct {
	ID string
	geom.Point

	// SR is the spatial reference of the point coordinates.
	SR *proj.SR

	Attributes map[string]string
}

// Record is one row of long-form extraction output.
type Record struct {
	PointID    string
	Attributes map[string]string

	// Layer is the name of the layer the value was sampled from.
	Layer string

	// Time is the timestamp of the layer, which may be zero.
	Time time.Time

	// Value is the sampled value. It is NaN if the point is
	// outside of the raster or the cell holds no data.
	Value float64
}

// Missing returns whether the record has no sampled value.
func (r Record) Missing() bool { return math.IsNaN(r.Value) }

// Method samples the value of one layer at a point that is
// in the same spatial reference as the raster.
type Method interface {
	Sample(r *Raster, layer int, p geom.Point) float64
}

// Nearest samples the cell whose footprint contains the point.
// See Grid.Index for how points on cell edges are assigned.
var Nearest Method = nearest{}

// Bilinear interpolates between the centers of the four cells surrounding
// the point. Neighbors that are outside of the grid or no-data are left out
// and the remaining weights are renormalized, so near the grid edge only the
// in-grid neighbors contribute. If no neighbor has any weight the point is
// sampled with Nearest. Points outside of the grid are no-data.
var Bilinear Method = bilinear{}

// MethodByName returns the sampling method with the given name, which must
// be "nearest" or "bilinear".
func MethodByName(name string) (Method, error) {
	switch strings.ToLower(name) {
	case "nearest", "simple":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return nil, fmt.Errorf("gridextract: invalid extraction method `%s`; valid options are nearest and bilinear", name)
	}
}

type nearest struct{}

func (nearest) Sample(r *Raster, layer int, p geom.Point) float64 {
	row, col, ok := r.Index(p)
	if !ok {
		return math.NaN()
	}
	return r.Value(layer, row, col)
}

type bilinear struct{}

func (bilinear) Sample(r *Raster, layer int, p geom.Point) float64 {
	if _, _, ok := r.Index(p); !ok {
		return math.NaN()
	}
	// Position relative to the center of the first cell.
	fx := (p.X-r.X0)/r.Dx - 0.5
	fy := (p.Y-r.Y0)/r.Dy - 0.5
	i0, j0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(i0), fy-float64(j0)

	var sum, weight float64
	for dj := 0; dj < 2; dj++ {
		for di := 0; di < 2; di++ {
			i, j := i0+di, j0+dj
			if i < 0 || j < 0 || i >= r.Nx || j >= r.Ny {
				continue
			}
			v := r.Value(layer, j, i)
			if math.IsNaN(v) {
				continue
			}
			w := math.Abs(1-float64(di)-tx) * math.Abs(1-float64(dj)-ty)
			sum += v * w
			weight += w
		}
	}
	if weight == 0 {
		return nearest{}.Sample(r, layer, p)
	}
	return sum / weight
}

// Wide holds one sampled value for each combination of point and layer.
type Wide struct {
	Points []Point
	Layers []Layer

	// Values[i][k] is the value of layer k at point i.
	Values [][]float64
}

// Sample samples every layer of r at every point using method m. Points
// are converted to the spatial reference of r. Points outside of r are
// assigned NaN.
func Sample(r *Raster, points []Point, m Method) (*Wide, error) {
	transforms := make(map[*proj.SR]proj.Transformer)
	w := &Wide{
		Points: points,
		Layers: r.Layers,
		Values: make([][]float64, len(points)),
	}
	for i, p := range points {
		ct, ok := transforms[p.SR]
		if !ok {
			var err error
			ct, err = transformer(p.SR, r.SR)
			if err != nil {
				return nil, fmt.Errorf("gridextract: point %s: %w", p.ID, err)
			}
			transforms[p.SR] = ct
		}
		x, y, err := ct(p.X, p.Y)
		if err != nil {
			return nil, fmt.Errorf("gridextract: point %s: %w: %v", p.ID, ErrGeometryMismatch, err)
		}
		loc := geom.Point{X: x, Y: y}
		w.Values[i] = make([]float64, len(r.Layers))
		for k := range r.Layers {
			w.Values[i][k] = m.Sample(r, k, loc)
		}
	}
	return w, nil
}

// Long pivots w into one record per point and layer, ordered by point
// and then by layer.
func (w *Wide) Long() []Record {
	o := make([]Record, 0, len(w.Points)*len(w.Layers))
	for i, p := range w.Points {
		for k, l := range w.Layers {
			o = append(o, Record{
				PointID:    p.ID,
				Attributes: copyAttributes(p.Attributes),
				Layer:      l.Name,
				Time:       l.Time,
				Value:      w.Values[i][k],
			})
		}
	}
	return o
}

func copyAttributes(a map[string]string) map[string]string {
	o := make(map[string]string, len(a))
	for k, v := range a {
		o[k] = v
	}
	return o
}

// AttributeTable holds metadata rows keyed by point identifier.
type AttributeTable struct {
	// Key is the name of the identifier column.
	Key string

	// Columns are the names of the attribute columns, excluding Key.
	Columns []string

	Rows map[string]map[string]string
}

// NewAttributeTable returns an empty table.
func NewAttributeTable(key string, columns []string) *AttributeTable {
	return &AttributeTable{Key: key, Columns: columns, Rows: make(map[string]map[string]string)}
}

// Add adds a row to the table. It is an error to add the same identifier twice.
func (t *AttributeTable) Add(id string, row map[string]string) error {
	if _, ok := t.Rows[id]; ok {
		return fmt.Errorf("gridextract: duplicate attribute row for %s=`%s`", t.Key, id)
	}
	t.Rows[id] = row
	return nil
}

// Join specifies how extraction records are merged with an attribute table.
type Join struct {
	Table *AttributeTable

	// Strict specifies that every record must have a matching row.
	Strict bool
}

// Merge adds the attributes in table to each record with a matching point
// identifier. Attributes already on a record take precedence. If strict is
// true, a record without a matching row results in an error that matches
// ErrUnjoinableRecord; otherwise such records are passed through with only
// their own attributes.
func Merge(records []Record, table *AttributeTable, strict bool) ([]Record, error) {
	o := make([]Record, len(records))
	for i, rec := range records {
		attrs := copyAttributes(rec.Attributes)
		row, ok := table.Rows[rec.PointID]
		if !ok && strict {
			return nil, &UnjoinableRecordError{PointID: rec.PointID, Key: table.Key}
		}
		for k, v := range row {
			if _, exists := attrs[k]; !exists {
				attrs[k] = v
			}
		}
		rec.Attributes = attrs
		o[i] = rec
	}
	return o, nil
}

// Extract samples r at points using method m, pivots the result to long
// form, and, if join is not nil, merges in the attributes from join.Table.
func Extract(r *Raster, points []Point, m Method, join *Join) ([]Record, error) {
	w, err := Sample(r, points, m)
	if err != nil {
		return nil, err
	}
	records := w.Long()
	if join == nil || join.Table == nil {
		return records, nil
	}
	return Merge(records, join.Table, join.Strict)
}
