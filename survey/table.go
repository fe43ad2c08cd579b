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

package survey

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/gridextract"
	"github.com/tealeg/xlsx"
)

// ReadTableCSV reads an attribute table from CSV data in r, where the first
// row holds the column names and the key column holds the point identifiers.
func ReadTableCSV(r io.Reader, key string) (*gridextract.AttributeTable, error) {
	header, rows, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return newTable(header, rows, key)
}

// excelCache holds previously opened Microsoft Excel files
// to avoid reading the same file multiple times.
var excelCache *requestcache.Cache
var loadExcelCacheOnce sync.Once

// loadExcelFile loads a Microsoft Excel file from disk, utilizing
// a cache to avoid loading the same file more than once.
func loadExcelFile(ctx context.Context, fileName string) (*xlsx.File, error) {
	loadExcelCacheOnce.Do(func() {
		excelCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			f, err := xlsx.OpenFile(req.(string))
			if err != nil {
				return nil, fmt.Errorf("survey: opening xlsx file: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(20))
	})
	r := excelCache.NewRequest(ctx, fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// ReadTableXLSX reads an attribute table from the given sheet of the
// Microsoft Excel file at path. If sheet is empty, the first sheet is used.
// The first row of the sheet holds the column names and the key column holds
// the point identifiers. Empty rows are skipped.
func ReadTableXLSX(ctx context.Context, path, sheet, key string) (*gridextract.AttributeTable, error) {
	f, err := loadExcelFile(ctx, path)
	if err != nil {
		return nil, err
	}
	var s *xlsx.Sheet
	if sheet == "" {
		if len(f.Sheets) == 0 {
			return nil, fmt.Errorf("survey: xlsx file %s has no sheets", path)
		}
		s = f.Sheets[0]
	} else {
		var ok bool
		if s, ok = f.Sheet[sheet]; !ok {
			return nil, fmt.Errorf("survey: xlsx file %s has no sheet %s", path, sheet)
		}
	}
	if len(s.Rows) == 0 {
		return nil, fmt.Errorf("survey: sheet %s has no header row", s.Name)
	}
	var header []string
	for _, c := range s.Rows[0].Cells {
		header = append(header, strings.TrimSpace(c.Value))
	}
	var rows [][]string
	for _, row := range s.Rows[1:] {
		if row == nil {
			continue
		}
		rec := make([]string, len(header))
		empty := true
		for i, c := range row.Cells {
			if i >= len(header) || c == nil {
				continue
			}
			rec[i] = strings.TrimSpace(c.Value)
			if rec[i] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, rec)
		}
	}
	return newTable(header, rows, key)
}

func newTable(header []string, rows [][]string, key string) (*gridextract.AttributeTable, error) {
	keyCol, err := columnIndex(header, key)
	if err != nil {
		return nil, err
	}
	var columns []string
	for i, h := range header {
		if i != keyCol {
			columns = append(columns, h)
		}
	}
	t := gridextract.NewAttributeTable(header[keyCol], columns)
	for _, rec := range rows {
		row := make(map[string]string, len(columns))
		for i, h := range header {
			if i != keyCol && i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		if err := t.Add(strings.TrimSpace(rec[keyCol]), row); err != nil {
			return nil, fmt.Errorf("survey: %v", err)
		}
	}
	return t, nil
}
