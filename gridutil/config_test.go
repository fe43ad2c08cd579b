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


package gridutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridextract"
)

func TestParseBoundary(t *testing.T) {
	t.Run("bbox", func(t *testing.T) {
		b, err := ParseBoundary("-10, -5,40,45")
		if err != nil {
			t.Fatal(err)
		}
		want := gridextract.NewBBox(-10, -5, 40, 45, nil)
		if !reflect.DeepEqual(b, want) {
			t.Errorf("%v != %v", b, want)
		}
	})
	t.Run("inverted bbox", func(t *testing.T) {
		if _, err := ParseBoundary("-5,-10,40,45"); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("polygon", func(t *testing.T) {
		f, err := os.Create("tmp_boundary.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_boundary.json")
		fmt.Fprint(f, `{"type": "Polygon","coordinates": [ [ [0, 0], [1, 0], [1, 1], [0, 0] ] ] }`)
		f.Close()
		b, err := ParseBoundary("tmp_boundary.json")
		if err != nil {
			t.Fatal(err)
		}
		want := geom.Polygon{geom.Path{geom.Point{X: 0, Y: 0}, geom.Point{X: 1, Y: 0}, geom.Point{X: 1, Y: 1}, geom.Point{X: 0, Y: 0}}}
		if !reflect.DeepEqual(b.Polygon, want) {
			t.Errorf("%v != %v", b.Polygon, want)
		}
		if b.SR != nil {
			t.Errorf("boundary should not have a spatial reference")
		}
	})
	t.Run("multipolygon", func(t *testing.T) {
		f, err := os.Create("tmp_boundary.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_boundary.json")
		fmt.Fprint(f, `{"type": "MultiPolygon","coordinates": [ [ [ [1, 1], [2, 1], [2, 2], [1, 1] ] ], [ [ [3, 3], [4, 3], [4, 4], [3, 3] ] ] ] }`)
		f.Close()
		b, err := ParseBoundary("tmp_boundary.json")
		if err != nil {
			t.Fatal(err)
		}
		want := geom.Polygon{
			geom.Path{geom.Point{X: 1, Y: 1}, geom.Point{X: 2, Y: 1}, geom.Point{X: 2, Y: 2}, geom.Point{X: 1, Y: 1}},
			geom.Path{geom.Point{X: 3, Y: 3}, geom.Point{X: 4, Y: 3}, geom.Point{X: 4, Y: 4}, geom.Point{X: 3, Y: 3}},
		}
		if !reflect.DeepEqual(b.Polygon, want) {
			t.Errorf("%v != %v", b.Polygon, want)
		}
	})
	t.Run("point", func(t *testing.T) {
		f, err := os.Create("tmp_boundary.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_boundary.json")
		fmt.Fprint(f, `{"type": "Point","coordinates": [1, 1] }`)
		f.Close()
		if _, err := ParseBoundary("tmp_boundary.json"); err == nil {
			t.Error("expected an error")
		}
	})
	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseBoundary("does_not_exist.json"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestCheckOutputFile(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("GRIDEXTRACT_TEST_DIR", dir)
	defer os.Unsetenv("GRIDEXTRACT_TEST_DIR")

	f, err := checkOutputFile("${GRIDEXTRACT_TEST_DIR}/out.csv")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "out.csv"); f != want {
		t.Errorf("%s != %s", f, want)
	}
	if _, err := checkOutputFile(""); err == nil {
		t.Error("expected an error for an empty output file")
	}
	if _, err := checkOutputFile(filepath.Join(dir, "missing", "out.csv")); err == nil {
		t.Error("expected an error for a missing directory")
	}
	if _, err := checkOutputFile("ftp://bucket/out.csv"); err == nil {
		t.Error("expected an error for a non-blob url with a missing directory")
	}
}

func TestPipelineConfigErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.nc")
	if err := ioutil.WriteFile(in, nil, 0644); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name string
		set  map[string]interface{}
	}{
		{name: "no input", set: map[string]interface{}{"Input.File": ""}},
		{name: "mask without boundary", set: map[string]interface{}{"Crop.Mask": true}},
		{name: "bad bucket", set: map[string]interface{}{"Aggregate.Bucket": "week"}},
		{name: "bad reducer", set: map[string]interface{}{"Aggregate.Reducer": "median"}},
		{name: "bad date", set: map[string]interface{}{"Subset.Dates": []string{"yesterday"}}},
		{name: "end before begin", set: map[string]interface{}{"Subset.Begin": "2022-11-02", "Subset.End": "2022-11-01"}},
		{name: "bad method", set: map[string]interface{}{"Extract.Method": "cubic"}},
		{name: "no output", set: map[string]interface{}{"OutputFile": ""}},
	} {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Set("Input.File", in)
			cfg.Set("OutputFile", filepath.Join(dir, "out.csv"))
			for k, v := range test.set {
				cfg.Set(k, v)
			}
			if _, err := PipelineConfig(context.Background(), cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPipelineConfig(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.nc")
	if err := ioutil.WriteFile(in, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Set("Input.File", in)
	cfg.Set("OutputFile", filepath.Join(dir, "out.csv"))
	cfg.Set("Crop.Boundary", "-10,-5,40,45")
	cfg.Set("Aggregate.Bucket", "month")
	cfg.Set("Subset.Dates", []string{"2022-11-01", " 2022-12-15 "})
	cfg.Set("Table.File", filepath.Join(dir, "table.csv"))
	p, err := PipelineConfig(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if p.Boundary == nil {
		t.Fatal("missing boundary")
	}
	if p.Bucket == nil {
		t.Error("missing bucket")
	}
	if len(p.Dates) != 2 {
		t.Errorf("want 2 dates, have %d", len(p.Dates))
	}
	if p.TableKey != "id" {
		t.Errorf("table key should default to the point ID column but is %s", p.TableKey)
	}
	if err := p.checkExtract(); err == nil {
		t.Error("extraction without a points file should be an error")
	}
}

func TestSetConfigLogLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer Cfg.Set("LogLevel", "info")
	Cfg.Set("LogLevel", "loud")
	if err := setConfig(); err == nil {
		t.Error("expected an error for an invalid log level")
	}
	Cfg.Set("LogLevel", "debug")
	if err := setConfig(); err != nil {
		t.Fatal(err)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("log level is %v", logrus.GetLevel())
	}
}
