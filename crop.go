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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// Boundary is a geometry used to restrict the spatial extent of a raster.
type Boundary struct {
	geom.Polygon
	SR *proj.SR
}

// NewBBox returns an axis-aligned bounding box boundary.
func NewBBox(minX, maxX, minY, maxY float64, sr *proj.SR) Boundary {
	return Boundary{
		Polygon: geom.Polygon{{
			{X: minX, Y: minY}, {X: maxX, Y: minY},
			{X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY},
		}},
		SR: sr,
	}
}

// NewPolygon returns a polygon boundary.
func NewPolygon(p geom.Polygon, sr *proj.SR) Boundary {
	return Boundary{Polygon: p, SR: sr}
}

// in returns b in the spatial reference sr.
func (b Boundary) in(sr *proj.SR) (geom.Polygon, error) {
	ct, err := transformer(b.SR, sr)
	if err != nil {
		return nil, err
	}
	g, err := b.Polygon.Transform(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: transforming boundary: %v", ErrGeometryMismatch, err)
	}
	return g.(geom.Polygon), nil
}

// Crop returns a raster holding the cells of r whose centers fall within
// the bounding extent of b. All layers are kept. If b does not overlap r the
// returned raster has no rows or columns.
func Crop(r *Raster, b Boundary) (*Raster, error) {
	p, err := b.in(r.SR)
	if err != nil {
		return nil, err
	}
	bounds := p.Bounds()

	col0, col1 := -1, -1
	for i := 0; i < r.Nx; i++ {
		x := r.CellCenter(0, i).X
		if x >= bounds.Min.X && x <= bounds.Max.X {
			if col0 < 0 {
				col0 = i
			}
			col1 = i
		}
	}
	row0, row1 := -1, -1
	for j := 0; j < r.Ny; j++ {
		y := r.CellCenter(j, 0).Y
		if y >= bounds.Min.Y && y <= bounds.Max.Y {
			if row0 < 0 {
				row0 = j
			}
			row1 = j
		}
	}

	g := r.Grid
	if col0 < 0 || row0 < 0 {
		g.Nx, g.Ny = 0, 0
	} else {
		g.X0 = r.X0 + float64(col0)*r.Dx
		g.Y0 = r.Y0 + float64(row0)*r.Dy
		g.Nx = col1 - col0 + 1
		g.Ny = row1 - row0 + 1
	}

	o := r.derive(g)
	o.Layers = make([]Layer, len(r.Layers))
	for k, l := range r.Layers {
		data := sparse.ZerosDense(g.Ny, g.Nx)
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				data.Elements[j*g.Nx+i] = l.Data.Elements[(j+row0)*r.Nx+i+col0]
			}
		}
		o.Layers[k] = Layer{Name: l.Name, Time: l.Time, Data: data}
	}
	return o, nil
}

// Mask returns a copy of r where cells whose centers are outside of b are
// set to no-data. Cells whose centers are on the edge of b are kept.
func Mask(r *Raster, b Boundary) (*Raster, error) {
	p, err := b.in(r.SR)
	if err != nil {
		return nil, err
	}
	o := r.Copy()
	bounds := p.Bounds()
	for j := 0; j < r.Ny; j++ {
		for i := 0; i < r.Nx; i++ {
			c := r.CellCenter(j, i)
			if c.X >= bounds.Min.X && c.X <= bounds.Max.X &&
				c.Y >= bounds.Min.Y && c.Y <= bounds.Max.Y &&
				c.Within(p) != geom.Outside {
				continue
			}
			for _, l := range o.Layers {
				l.Data.Elements[j*r.Nx+i] = math.NaN()
			}
		}
	}
	return o, nil
}

// CropMask crops r to the extent of b and then masks the cells outside of b.
func CropMask(r *Raster, b Boundary) (*Raster, error) {
	c, err := Crop(r, b)
	if err != nil {
		return nil, err
	}
	return Mask(c, b)
}
