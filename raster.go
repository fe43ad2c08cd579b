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

// Package gridextract crops, temporally aggregates, and subsets gridded
// environmental data, and samples it at point locations to produce
// long-form tables for statistical modelling.
//
// Each operation takes its inputs as arguments and returns a new value;
// rasters and points passed in are never modified.
package gridextract

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Version gives the version number.
const Version = "0.3.0"

// Grid specifies a regular grid. Row 0 is the southernmost row and
// column 0 is the westernmost column.
type Grid struct {
	X0, Y0 float64 // lower-left corner
	Dx, Dy float64 // cell edge lengths
	Nx, Ny int     // number of columns and rows
}

// Layer is one two-dimensional slice of a Raster.
type Layer struct {
	Name string

	// Time is the timestamp associated with the layer. The zero value
	// means the layer has no time dimension.
	Time time.Time

	// Data holds the cell values with shape [Ny, Nx]. No-data
	// cells are NaN.
	Data *sparse.DenseArray
}

// Timed returns whether the layer carries a timestamp.
func (l Layer) Timed() bool { return !l.Time.IsZero() }

// Raster is a stack of layers that all share the same grid.
type Raster struct {
	Grid

	// SR is the spatial reference of the grid. nil means unspecified.
	SR *proj.SR

	// Projection is the string that SR was parsed from.
	Projection string

	Layers []Layer
}

// NewRaster returns a raster with no layers. projection is parsed with
// proj.Parse unless it is empty.
func NewRaster(g Grid, projection string) (*Raster, error) {
	if g.Nx < 0 || g.Ny < 0 {
		return nil, fmt.Errorf("gridextract: invalid grid size %dx%d", g.Nx, g.Ny)
	}
	if !(g.Dx > 0) || !(g.Dy > 0) {
		return nil, fmt.Errorf("gridextract: grid cell size must be >0 but is %gx%g", g.Dx, g.Dy)
	}
	r := &Raster{Grid: g, Projection: projection}
	if projection != "" {
		sr, err := proj.Parse(projection)
		if err != nil {
			return nil, fmt.Errorf("gridextract: parsing projection `%s`: %v", projection, err)
		}
		r.SR = sr
	}
	return r, nil
}

// AddLayer appends a layer holding a copy of data, which must be in
// row-major order and have length Nx*Ny.
func (r *Raster) AddLayer(name string, t time.Time, data []float64) error {
	if len(data) != r.Nx*r.Ny {
		return fmt.Errorf("gridextract: layer %s has %d values but the grid has %d cells", name, len(data), r.Nx*r.Ny)
	}
	a := sparse.ZerosDense(r.Ny, r.Nx)
	copy(a.Elements, data)
	r.Layers = append(r.Layers, Layer{Name: name, Time: t, Data: a})
	return nil
}

// derive returns a raster with the same spatial reference as r, the
// given grid, and no layers.
func (r *Raster) derive(g Grid) *Raster {
	return &Raster{Grid: g, SR: r.SR, Projection: r.Projection}
}

// Copy returns a deep copy of r.
func (r *Raster) Copy() *Raster {
	o := r.derive(r.Grid)
	o.Layers = make([]Layer, len(r.Layers))
	for i, l := range r.Layers {
		o.Layers[i] = Layer{Name: l.Name, Time: l.Time, Data: l.Data.Copy()}
	}
	return o
}

// Empty returns whether r has no cells.
func (r *Raster) Empty() bool { return r.Nx == 0 || r.Ny == 0 }

// Timed returns whether every layer in r has a timestamp.
func (r *Raster) Timed() bool {
	for _, l := range r.Layers {
		if !l.Timed() {
			return false
		}
	}
	return true
}

// Times returns the timestamps of the layers in r.
func (r *Raster) Times() []time.Time {
	o := make([]time.Time, len(r.Layers))
	for i, l := range r.Layers {
		o[i] = l.Time
	}
	return o
}

// checkTimed returns ErrMissingTimeDimension if any layer lacks a timestamp.
func (r *Raster) checkTimed() error {
	for i, l := range r.Layers {
		if !l.Timed() {
			return fmt.Errorf("%w: layer %d (%s) has no timestamp", ErrMissingTimeDimension, i, l.Name)
		}
	}
	return nil
}

// Value returns the value of the given layer at the given row and column.
func (r *Raster) Value(layer, row, col int) float64 {
	return r.Layers[layer].Data.Elements[row*r.Nx+col]
}

// Extent returns the spatial extent of g.
func (g Grid) Extent() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0},
		Max: geom.Point{X: g.X0 + g.Dx*float64(g.Nx), Y: g.Y0 + g.Dy*float64(g.Ny)},
	}
}

// CellBounds returns the footprint of the cell at the given row and column.
func (g Grid) CellBounds(row, col int) *geom.Bounds {
	x := g.X0 + float64(col)*g.Dx
	y := g.Y0 + float64(row)*g.Dy
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + g.Dx, Y: y + g.Dy},
	}
}

// CellCenter returns the center point of the cell at the given row and column.
func (g Grid) CellCenter(row, col int) geom.Point {
	return geom.Point{
		X: g.X0 + (float64(col)+0.5)*g.Dx,
		Y: g.Y0 + (float64(row)+0.5)*g.Dy,
	}
}

// Index returns the row and column of the cell whose footprint contains p.
// A point on an edge shared by two cells belongs to the cell to its
// north or east; points on the outer northern or eastern edge belong to the
// last row or column. ok is false if p is outside the grid.
func (g Grid) Index(p geom.Point) (row, col int, ok bool) {
	if g.Nx == 0 || g.Ny == 0 {
		return 0, 0, false
	}
	fx := (p.X - g.X0) / g.Dx
	fy := (p.Y - g.Y0) / g.Dy
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return 0, 0, false
	}
	if fx < 0 || fy < 0 || fx > float64(g.Nx) || fy > float64(g.Ny) {
		return 0, 0, false
	}
	col, row = int(math.Floor(fx)), int(math.Floor(fy))
	if col == g.Nx {
		col--
	}
	if row == g.Ny {
		row--
	}
	return row, col, true
}
