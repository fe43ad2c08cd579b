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

package ncf

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridextract"
)

// FillValue is the value written in place of missing data.
const FillValue = 9.969209968386869e36

// timeUnitsOut is the units of the time coordinate in files written
// by WriteCOARDS.
const timeUnitsOut = "seconds since 1970-01-01 00:00:00"

// WriteCOARDS writes r to rw as variable v in a COARDS NetCDF file.
// Rasters with timestamped layers are written with dimensions
// [time, lat, lon]; a raster with a single untimed layer is written with
// dimensions [lat, lon]. The raster projection is stored in the global
// "projection" attribute.
func WriteCOARDS(rw cdf.ReaderWriterAt, r *gridextract.Raster, v string) error {
	if r.Nx == 0 || r.Ny == 0 {
		return fmt.Errorf("ncf: cannot write raster with shape %dx%d", r.Ny, r.Nx)
	}
	timed := r.Timed()
	if !timed && len(r.Layers) != 1 {
		return fmt.Errorf("ncf: raster with %d layers must have timestamps to be written", len(r.Layers))
	}
	if v == "lon" || v == "lat" || v == "time" {
		return fmt.Errorf("ncf: variable name %s is reserved", v)
	}

	dims := []string{"lat", "lon"}
	lengths := []int{r.Ny, r.Nx}
	if timed {
		dims = []string{"time", "lat", "lon"}
		lengths = []int{len(r.Layers), r.Ny, r.Nx}
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "Conventions", "COARDS")
	if r.Projection != "" {
		h.AddAttribute("", "projection", r.Projection)
	}

	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddAttribute("lon", "long_name", "longitude")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddAttribute("lat", "long_name", "latitude")
	if timed {
		h.AddVariable("time", []string{"time"}, []float64{0})
		h.AddAttribute("time", "units", timeUnitsOut)
		h.AddAttribute("time", "long_name", "time")
	}
	h.AddVariable(v, dims, []float64{0})
	h.AddAttribute(v, "_FillValue", []float64{FillValue})
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return fmt.Errorf("ncf: invalid header: %v", errs)
	}

	f, err := cdf.Create(rw, h)
	if err != nil {
		return fmt.Errorf("ncf: creating file: %v", err)
	}

	lons := make([]float64, r.Nx)
	for i := range lons {
		lons[i] = r.X0 + (float64(i)+0.5)*r.Dx
	}
	lats := make([]float64, r.Ny)
	for j := range lats {
		lats[j] = r.Y0 + (float64(j)+0.5)*r.Dy
	}
	if err := writeVar(f, "lon", lons); err != nil {
		return err
	}
	if err := writeVar(f, "lat", lats); err != nil {
		return err
	}
	data := make([]float64, 0, len(r.Layers)*r.Nx*r.Ny)
	if timed {
		times := make([]float64, len(r.Layers))
		for k, l := range r.Layers {
			times[k] = float64(l.Time.Unix())
		}
		if err := writeVar(f, "time", times); err != nil {
			return err
		}
	}
	for _, l := range r.Layers {
		for _, d := range l.Data.Elements {
			if math.IsNaN(d) {
				d = FillValue
			}
			data = append(data, d)
		}
	}
	return writeVar(f, v, data)
}

func writeVar(f *cdf.File, v string, data []float64) error {
	w := f.Writer(v, nil, nil)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("ncf: writing variable %s: %v", v, err)
	}
	return nil
}

// Variable describes a variable in a NetCDF file.
type Variable struct {
	Name       string
	Dimensions []string
	Lengths    []int
	Type       string
	Attributes map[string]string
}

func (v Variable) String() string {
	dims := make([]string, len(v.Dimensions))
	for i, d := range v.Dimensions {
		dims[i] = fmt.Sprintf("%s=%d", d, v.Lengths[i])
	}
	s := fmt.Sprintf("%s %s(%s)", v.Type, v.Name, strings.Join(dims, ", "))
	if u, ok := v.Attributes["units"]; ok {
		s += " [" + u + "]"
	}
	if n, ok := v.Attributes["long_name"]; ok {
		s += " " + n
	}
	return s
}

// Describe returns a description of all of the variables in the NetCDF file
// in rw, sorted by name.
func Describe(rw cdf.ReaderWriterAt) ([]Variable, error) {
	nc, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("ncf: opening file: %v", err)
	}
	var o []Variable
	for _, name := range nc.Header.Variables() {
		v := Variable{
			Name:       name,
			Dimensions: nc.Header.Dimensions(name),
			Lengths:    nc.Header.Lengths(name),
			Attributes: make(map[string]string),
		}
		switch nc.Header.ZeroValue(name, 0).(type) {
		case []float64:
			v.Type = "double"
		case []float32:
			v.Type = "float"
		case []int32:
			v.Type = "int"
		case []int16:
			v.Type = "short"
		default:
			v.Type = "byte"
		}
		for _, a := range nc.Header.Attributes(name) {
			v.Attributes[a] = fmt.Sprint(nc.Header.GetAttribute(name, a))
		}
		o = append(o, v)
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Name < o[j].Name })
	return o, nil
}
