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

// Package ncf reads and writes gridextract rasters as COARDS-compliant
// NetCDF-3 files, the format served by most climate and reanalysis data
// services. NetCDF 4 and greater are not supported.
//
// Information regarding the COARDS NetCDF conventions is available here:
// https://ferret.pmel.noaa.gov/Ferret/documentation/coards-netcdf-conventions.
package ncf

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ctessum/cdf"
	"github.com/spatialmodel/gridextract"
)

// DefaultProjection is the spatial reference assumed for COARDS files,
// whose coordinate variables are longitude and latitude.
const DefaultProjection = "+proj=longlat"

// regularTolerance is the maximum relative deviation of coordinate
// spacing from the mean spacing for the grid to be considered regular.
const regularTolerance = 1.e-4

// ReadOptions specify how a COARDS file is read.
type ReadOptions struct {
	// Variable is the name of the data variable to read. If it is empty,
	// the first floating point or packed integer variable whose last two
	// dimensions are latitude and longitude is used.
	Variable string

	// Projection is the spatial reference of the coordinate variables.
	// If it is empty, the global "projection" attribute is used if it
	// exists, and DefaultProjection otherwise.
	Projection string
}

// isLon and isLat report whether a dimension name is a longitude or
// latitude dimension.
func isLon(d string) bool { return d == "lon" || d == "longitude" || d == "x" }
func isLat(d string) bool { return d == "lat" || d == "latitude" || d == "y" }

// ReadCOARDS reads a single variable from a COARDS NetCDF file, where
// the variable must have dimensions [lat, lon] or [time, lat, lon].
// Fill values and missing values are converted to NaN, and packed values are
// unpacked using the scale_factor and add_offset attributes. Files with
// descending latitude are flipped so that the first row of the raster is the
// southernmost one.
func ReadCOARDS(rw cdf.ReaderWriterAt, opts ReadOptions) (*gridextract.Raster, error) {
	nc, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("ncf: opening COARDS file: %v", err)
	}
	v := opts.Variable
	if v == "" {
		if v, err = findDataVariable(nc); err != nil {
			return nil, err
		}
	}
	dims := nc.Header.Dimensions(v)
	if len(dims) != 2 && len(dims) != 3 {
		return nil, fmt.Errorf("ncf: variable %s has dimensions %v but should have [lat, lon] or [time, lat, lon]", v, dims)
	}
	latDim, lonDim := dims[len(dims)-2], dims[len(dims)-1]
	if !isLat(latDim) || !isLon(lonDim) {
		return nil, fmt.Errorf("ncf: variable %s has dimensions %v but the last two should be latitude and longitude", v, dims)
	}

	lons, err := readVar(nc, lonDim)
	if err != nil {
		return nil, err
	}
	lats, err := readVar(nc, latDim)
	if err != nil {
		return nil, err
	}
	dx, err := spacing(lonDim, lons)
	if err != nil {
		return nil, err
	}
	dy, err := spacing(latDim, lats)
	if err != nil {
		return nil, err
	}
	descending := dy < 0
	dy = math.Abs(dy)
	minLat := math.Min(lats[0], lats[len(lats)-1])

	projection := opts.Projection
	if projection == "" {
		if p, ok := nc.Header.GetAttribute("", "projection").(string); ok && p != "" {
			projection = p
		} else {
			projection = DefaultProjection
		}
	}
	g := gridextract.Grid{
		X0: lons[0] - dx/2,
		Y0: minLat - dy/2,
		Dx: dx,
		Dy: dy,
		Nx: len(lons),
		Ny: len(lats),
	}
	r, err := gridextract.NewRaster(g, projection)
	if err != nil {
		return nil, fmt.Errorf("ncf: %v", err)
	}

	var times []time.Time
	if len(dims) == 3 {
		times, err = readTimes(nc, dims[0])
		if err != nil {
			return nil, err
		}
	}

	data, err := readVar(nc, v)
	if err != nil {
		return nil, err
	}
	nLayers := 1
	if len(dims) == 3 {
		nLayers = len(times)
	}
	n := g.Nx * g.Ny
	if len(data) != n*nLayers {
		return nil, fmt.Errorf("ncf: variable %s has %d values but should have %d", v, len(data), n*nLayers)
	}
	layer := make([]float64, n)
	for k := 0; k < nLayers; k++ {
		for j := 0; j < g.Ny; j++ {
			jj := j
			if descending {
				jj = g.Ny - 1 - j
			}
			copy(layer[j*g.Nx:(j+1)*g.Nx], data[k*n+jj*g.Nx:k*n+(jj+1)*g.Nx])
		}
		name := v
		var t time.Time
		if len(dims) == 3 {
			t = times[k]
			name = fmt.Sprintf("%s_%s", v, t.Format("2006-01-02T15:04:05Z"))
		}
		if err := r.AddLayer(name, t, layer); err != nil {
			return nil, fmt.Errorf("ncf: %v", err)
		}
	}
	return r, nil
}

// findDataVariable returns the first variable in nc that is not a
// coordinate variable and whose last two dimensions are latitude and longitude.
func findDataVariable(nc *cdf.File) (string, error) {
	for _, v := range nc.Header.Variables() {
		dims := nc.Header.Dimensions(v)
		if len(dims) < 2 || len(dims) > 3 {
			continue
		}
		if !isLat(dims[len(dims)-2]) || !isLon(dims[len(dims)-1]) {
			continue
		}
		switch nc.Header.ZeroValue(v, 0).(type) {
		case []float32, []float64, []int16, []int32:
			return v, nil
		}
	}
	return "", fmt.Errorf("ncf: no variable with dimensions [lat, lon] or [time, lat, lon] in file")
}

// spacing returns the distance between adjacent coordinates, which must be
// evenly spaced.
func spacing(name string, coords []float64) (float64, error) {
	if len(coords) < 2 {
		return 0, fmt.Errorf("ncf: coordinate variable %s must have length >= 2 but has length %d", name, len(coords))
	}
	d := (coords[len(coords)-1] - coords[0]) / float64(len(coords)-1)
	if d == 0 || math.IsNaN(d) {
		return 0, fmt.Errorf("ncf: coordinate variable %s has invalid spacing %g", name, d)
	}
	for i := 1; i < len(coords); i++ {
		if math.Abs(coords[i]-coords[i-1]-d) > regularTolerance*math.Abs(d) {
			return 0, fmt.Errorf("ncf: coordinate variable %s is not evenly spaced at index %d", name, i)
		}
	}
	return d, nil
}

// readVar reads all of variable v, converting it to float64, replacing
// fill values with NaN, and unpacking it.
func readVar(nc *cdf.File, v string) ([]float64, error) {
	if nc.Header.ZeroValue(v, 0) == nil {
		return nil, fmt.Errorf("ncf: variable %s not in file", v)
	}
	data, err := readRaw(nc, v)
	if err != nil {
		return nil, fmt.Errorf("ncf: reading variable %s: %v", v, err)
	}

	var fills []float64
	for _, a := range []string{"_FillValue", "missing_value"} {
		if f := nc.Header.GetAttribute(v, a); f != nil {
			vals, err := toFloat64(f)
			if err != nil {
				return nil, fmt.Errorf("ncf: invalid type for %s:%s: %v", v, a, err)
			}
			fills = append(fills, vals...)
		}
	}
	scale, offset := 1., 0.
	if s := nc.Header.GetAttribute(v, "scale_factor"); s != nil {
		vals, err := toFloat64(s)
		if err != nil || len(vals) != 1 {
			return nil, fmt.Errorf("ncf: invalid scale_factor for %s", v)
		}
		scale = vals[0]
	}
	if o := nc.Header.GetAttribute(v, "add_offset"); o != nil {
		vals, err := toFloat64(o)
		if err != nil || len(vals) != 1 {
			return nil, fmt.Errorf("ncf: invalid add_offset for %s", v)
		}
		offset = vals[0]
	}
	for i, d := range data {
		missing := false
		for _, f := range fills {
			if d == f || float32(d) == float32(f) {
				missing = true
				break
			}
		}
		if missing {
			data[i] = math.NaN()
			continue
		}
		data[i] = d*scale + offset
	}
	return data, nil
}

// readRaw reads all of variable v without unpacking it. Record
// variables are read one record at a time until the end of the file.
func readRaw(nc *cdf.File, v string) ([]float64, error) {
	if !nc.Header.IsRecordVariable(v) {
		r := nc.Reader(v, nil, nil)
		buf := r.Zero(-1)
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
		return toFloat64(buf)
	}
	lengths := nc.Header.Lengths(v)
	recSize := 1
	for _, l := range lengths[1:] {
		recSize *= l
	}
	var data []float64
	for k := 0; ; k++ {
		begin := make([]int, len(lengths))
		end := make([]int, len(lengths))
		begin[0], end[0] = k, k
		for i := 1; i < len(lengths); i++ {
			end[i] = lengths[i] - 1
		}
		r := nc.Reader(v, begin, end)
		buf := r.Zero(recSize)
		if _, err := r.Read(buf); err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return nil, err
		}
		rec, err := toFloat64(buf)
		if err != nil {
			return nil, err
		}
		data = append(data, rec...)
	}
	return data, nil
}

// toFloat64 converts the numeric slice types used by the cdf package to
// []float64.
func toFloat64(vals interface{}) ([]float64, error) {
	switch v := vals.(type) {
	case []float64:
		o := make([]float64, len(v))
		copy(o, v)
		return o, nil
	case []float32:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(v))
		for i, x := range v {
			o[i] = float64(x)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", vals)
	}
}
