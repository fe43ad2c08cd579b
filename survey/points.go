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

// Package survey reads sampling locations and survey attribute tables
// from CSV files, shapefiles, and Microsoft Excel files.
package survey

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/gridextract"
	"github.com/spf13/cast"
)

// Columns holds the names of the columns that hold point information
// in a CSV file.
type Columns struct {
	ID, X, Y string
}

// DefaultColumns are the column names used when none are specified.
var DefaultColumns = Columns{ID: "id", X: "lon", Y: "lat"}

// ReadPointsCSV reads points from CSV data in r, where the first row holds
// the column names. All columns other than the ID and coordinate columns
// become point attributes. Column names are matched case-insensitively.
// The coordinates are assumed to be in spatial reference sr.
func ReadPointsCSV(r io.Reader, c Columns, sr *proj.SR) ([]gridextract.Point, error) {
	if c.ID == "" || c.X == "" || c.Y == "" {
		return nil, fmt.Errorf("survey: ID, X, and Y column names must all be specified: %+v", c)
	}
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	idCol, err := columnIndex(header, c.ID)
	if err != nil {
		return nil, err
	}
	xCol, err := columnIndex(header, c.X)
	if err != nil {
		return nil, err
	}
	yCol, err := columnIndex(header, c.Y)
	if err != nil {
		return nil, err
	}

	points := make([]gridextract.Point, len(rows))
	for i, rec := range rows {
		p := gridextract.Point{
			ID:         strings.TrimSpace(rec[idCol]),
			SR:         sr,
			Attributes: make(map[string]string),
		}
		if p.X, err = strconv.ParseFloat(strings.TrimSpace(rec[xCol]), 64); err != nil {
			return nil, fmt.Errorf("survey: row %d, column %s: %v", i+2, c.X, err)
		}
		if p.Y, err = strconv.ParseFloat(strings.TrimSpace(rec[yCol]), 64); err != nil {
			return nil, fmt.Errorf("survey: row %d, column %s: %v", i+2, c.Y, err)
		}
		for j, name := range header {
			if j == idCol || j == xCol || j == yCol {
				continue
			}
			p.Attributes[name] = strings.TrimSpace(rec[j])
		}
		points[i] = p
	}
	return points, nil
}

// ReadPointsShapefile reads points from the point shapefile at path,
// using the field idField as the point ID and the given attribute fields
// as point attributes. If no attribute fields are given, all fields
// other than the ID field are used. The spatial reference is read
// from the .prj file next to the shapefile, or is sr if there is no .prj file.
func ReadPointsShapefile(path, idField string, sr *proj.SR, fields ...string) ([]gridextract.Point, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("survey: opening shapefile: %v", err)
	}
	defer d.Close()

	if fileSR, err := d.SR(); err == nil {
		sr = fileSR
	}

	if len(fields) == 0 {
		for _, f := range d.Fields() {
			name := strings.TrimRight(string(f.Name[:]), "\x00")
			if !strings.EqualFold(name, idField) {
				fields = append(fields, name)
			}
		}
	}
	request := append([]string{idField}, fields...)

	var points []gridextract.Point
	for {
		g, vals, more := d.DecodeRowFields(request...)
		if !more {
			break
		}
		if err := d.Error(); err != nil {
			return nil, fmt.Errorf("survey: reading shapefile: %v", err)
		}
		var pt geom.Point
		switch gg := g.(type) {
		case geom.Point:
			pt = gg
		case *geom.Point:
			pt = *gg
		case geom.MultiPoint:
			if len(gg) != 1 {
				return nil, fmt.Errorf("survey: shapefile record %d has %d points", len(points), len(gg))
			}
			pt = gg[0]
		default:
			return nil, fmt.Errorf("survey: shapefile record %d has geometry type %T but should be a point", len(points), g)
		}
		p := gridextract.Point{
			ID:         strings.TrimSpace(vals[idField]),
			Point:      pt,
			SR:         sr,
			Attributes: make(map[string]string, len(fields)),
		}
		for _, f := range fields {
			p.Attributes[f] = strings.TrimSpace(vals[f])
		}
		points = append(points, p)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("survey: reading shapefile: %v", err)
	}
	return points, nil
}

// Dates returns the parsed values of the attribute column of points,
// which is typically the date on which each point was sampled. Dates
// without a time zone are assumed to be UTC.
func Dates(points []gridextract.Point, column string) ([]time.Time, error) {
	o := make([]time.Time, len(points))
	for i, p := range points {
		v, ok := p.Attributes[column]
		if !ok {
			return nil, fmt.Errorf("survey: point %s has no attribute %s", p.ID, column)
		}
		t, err := ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("survey: point %s: %v", p.ID, err)
		}
		o[i] = t
	}
	return o, nil
}

// ParseDate parses a date in any of the common formats used in survey
// spreadsheets.
func ParseDate(s string) (time.Time, error) {
	t, err := cast.ToTimeE(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("survey: parsing date `%s`: %v", s, err)
	}
	return t.UTC(), nil
}

func readCSV(r io.Reader) (header []string, rows [][]string, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("survey: reading CSV: %v", err)
	}
	if len(recs) == 0 {
		return nil, nil, fmt.Errorf("survey: CSV file has no header row")
	}
	header = make([]string, len(recs[0]))
	for i, h := range recs[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return header, recs[1:], nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("survey: no column named %s in %v", name, header)
}
