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

// Package tabular writes extracted records as long-format tables with
// one row per point and layer.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/spatialmodel/gridextract"
	"github.com/tealeg/xlsx"
)

// SheetName is the name of the sheet written by WriteXLSX.
const SheetName = "records"

// Header returns the column names of the table for records:
// "point_id", the union of all record attribute names in sorted order,
// "layer", "time", and "value". Attribute columns whose names would
// duplicate another column are prefixed with "attr_".
func Header(records []gridextract.Record) []string {
	attrs := attributeColumns(records)
	used := map[string]bool{"point_id": true, "layer": true, "time": true, "value": true}
	for _, a := range attrs {
		used[a] = true
	}
	h := make([]string, 0, len(attrs)+4)
	h = append(h, "point_id")
	for _, a := range attrs {
		switch a {
		case "point_id", "layer", "time", "value":
			name := "attr_" + a
			for used[name] {
				name = "attr_" + name
			}
			used[name] = true
			h = append(h, name)
		default:
			h = append(h, a)
		}
	}
	return append(h, "layer", "time", "value")
}

func attributeColumns(records []gridextract.Record) []string {
	m := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Attributes {
			m[k] = struct{}{}
		}
	}
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// formatTime returns t in RFC 3339 format, or an empty string if t is zero.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatValue returns v as a string, or an empty string if v is missing.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes records to w as CSV, with a header row. Missing values
// and missing times are written as empty fields.
func WriteCSV(w io.Writer, records []gridextract.Record) error {
	attrs := attributeColumns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(records)); err != nil {
		return fmt.Errorf("tabular: writing CSV header: %v", err)
	}
	row := make([]string, len(attrs)+4)
	for _, r := range records {
		row[0] = r.PointID
		for i, a := range attrs {
			row[i+1] = r.Attributes[a]
		}
		row[len(attrs)+1] = r.Layer
		row[len(attrs)+2] = formatTime(r.Time)
		row[len(attrs)+3] = formatValue(r.Value)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("tabular: writing CSV: %v", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("tabular: writing CSV: %v", err)
	}
	return nil
}

// WriteXLSX writes records to a new Microsoft Excel file at path, with the
// same columns as WriteCSV. Values are written as numbers and missing values
// are left blank.
func WriteXLSX(path string, records []gridextract.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return fmt.Errorf("tabular: creating sheet: %v", err)
	}
	hr := sheet.AddRow()
	for _, h := range Header(records) {
		hr.AddCell().SetString(h)
	}
	attrs := attributeColumns(records)
	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(r.PointID)
		for _, a := range attrs {
			row.AddCell().SetString(r.Attributes[a])
		}
		row.AddCell().SetString(r.Layer)
		row.AddCell().SetString(formatTime(r.Time))
		c := row.AddCell()
		if !r.Missing() {
			c.SetFloat(r.Value)
		}
	}
	if err := f.Save(path); err != nil {
		return fmt.Errorf("tabular: saving %s: %v", path, err)
	}
	return nil
}
