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
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/gridextract"
	"github.com/spatialmodel/gridextract/ncf"
)

// testConfig returns a configuration holding the default option values.
func testConfig() *viper.Viper {
	cfg := viper.New()
	for _, o := range options {
		cfg.SetDefault(o.name, o.defaultVal)
	}
	return cfg
}

// writeTestInputs writes a gridded data file with three hourly layers
// spread over two days, a points file, and an attribute table to dir.
func writeTestInputs(t *testing.T, dir string) (in, points, table string) {
	r, err := gridextract.NewRaster(gridextract.Grid{X0: -10, Y0: 40, Dx: 1, Dy: 1, Nx: 3, Ny: 2}, ncf.DefaultProjection)
	if err != nil {
		t.Fatal(err)
	}
	layers := []struct {
		t    time.Time
		data []float64
	}{
		{t: time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC), data: []float64{1, 2, 3, 4, 5, 6}},
		{t: time.Date(2022, 11, 1, 12, 0, 0, 0, time.UTC), data: []float64{3, 4, 5, 6, 7, 8}},
		{t: time.Date(2022, 11, 2, 0, 0, 0, 0, time.UTC), data: []float64{10, 20, 30, 40, 50, 60}},
	}
	for _, l := range layers {
		if err := r.AddLayer("t2m", l.t, l.data); err != nil {
			t.Fatal(err)
		}
	}
	in = filepath.Join(dir, "t2m.nc")
	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := ncf.WriteCOARDS(f, r, "t2m"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	points = filepath.Join(dir, "stations.csv")
	if err := ioutil.WriteFile(points, []byte("id,lon,lat,date\nst1,-9.5,40.5,2022-11-01\nst2,-7.5,41.5,2022-11-02\n"), 0644); err != nil {
		t.Fatal(err)
	}
	table = filepath.Join(dir, "sites.csv")
	if err := ioutil.WriteFile(table, []byte("id,site\nst1,north\nst2,south\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return in, points, table
}

func TestRunExtract(t *testing.T) {
	dir := t.TempDir()
	in, points, table := writeTestInputs(t, dir)
	out := filepath.Join(dir, "out.csv")

	cfg := testConfig()
	cfg.Set("Input.File", in)
	cfg.Set("Points.File", points)
	cfg.Set("Points.DateColumn", "date")
	cfg.Set("Table.File", table)
	cfg.Set("Join.Strict", true)
	cfg.Set("Aggregate.Bucket", "day")
	cfg.Set("Extract.Expression", "value + 1")
	cfg.Set("OutputFile", out)

	ctx := context.Background()
	p, err := PipelineConfig(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	records, err := RunExtract(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeRecords(ctx, p, records); err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := `point_id,date,site,layer,time,value
st1,2022-11-01,north,day_2022-11-01,2022-11-01T00:00:00Z,3
st1,2022-11-01,north,day_2022-11-02,2022-11-02T00:00:00Z,11
st2,2022-11-02,south,day_2022-11-01,2022-11-01T00:00:00Z,8
st2,2022-11-02,south,day_2022-11-02,2022-11-02T00:00:00Z,61
`
	if diff := cmp.Diff(want, string(b)); diff != "" {
		t.Errorf("(-want +have):\n%s", diff)
	}
}

func TestRunExtractStrictJoin(t *testing.T) {
	dir := t.TempDir()
	in, points, _ := writeTestInputs(t, dir)
	table := filepath.Join(dir, "partial.csv")
	if err := ioutil.WriteFile(table, []byte("id,site\nst1,north\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Set("Input.File", in)
	cfg.Set("Points.File", points)
	cfg.Set("Table.File", table)
	cfg.Set("Join.Strict", true)
	cfg.Set("OutputFile", filepath.Join(dir, "out.csv"))

	ctx := context.Background()
	p, err := PipelineConfig(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	_, err = RunExtract(ctx, p)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*gridextract.UnjoinableRecordError); !ok {
		t.Errorf("wrong error type %T: %v", err, err)
	}
}

func TestRunCrop(t *testing.T) {
	dir := t.TempDir()
	in, _, _ := writeTestInputs(t, dir)
	out := filepath.Join(dir, "cropped.nc")

	cfg := testConfig()
	cfg.Set("Input.File", in)
	cfg.Set("Input.Variable", "t2m")
	cfg.Set("Crop.Boundary", "-9,-7,40,42")
	cfg.Set("Aggregate.Bucket", "day")
	cfg.Set("Aggregate.Reducer", "max")
	cfg.Set("Subset.Dates", []string{"2022-11-01T06:00:00Z"})
	cfg.Set("OutputFile", out)

	ctx := context.Background()
	p, err := PipelineConfig(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := RunCrop(ctx, p); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := ncf.ReadCOARDS(f, ncf.ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	wantGrid := gridextract.Grid{X0: -9, Y0: 40, Dx: 1, Dy: 1, Nx: 2, Ny: 2}
	if diff := cmp.Diff(wantGrid, r.Grid); diff != "" {
		t.Errorf("grid (-want +have):\n%s", diff)
	}
	if len(r.Layers) != 1 {
		t.Fatalf("want 1 layer, have %d", len(r.Layers))
	}
	if want := time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC); !r.Layers[0].Time.Equal(want) {
		t.Errorf("layer time %v != %v", r.Layers[0].Time, want)
	}
	if diff := cmp.Diff([]float64{4, 5, 7, 8}, r.Layers[0].Data.Elements); diff != "" {
		t.Errorf("data (-want +have):\n%s", diff)
	}
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	in, points, _ := writeTestInputs(t, dir)
	out := filepath.Join(dir, "out.xlsx")

	t.Run("version", func(t *testing.T) {
		var b bytes.Buffer
		Root.SetOutput(&b)
		Root.SetArgs([]string{"version"})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if want := "gridextract v" + gridextract.Version + "\n"; b.String() != want {
			t.Errorf("%q != %q", b.String(), want)
		}
	})
	t.Run("info", func(t *testing.T) {
		var b bytes.Buffer
		Root.SetOutput(&b)
		Root.SetArgs([]string{"info", "--Input.File=" + in})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(b.Bytes(), []byte("t2m")) {
			t.Errorf("info output does not describe variable t2m:\n%s", b.String())
		}
	})
	t.Run("extract", func(t *testing.T) {
		Root.SetArgs([]string{"extract", "--Input.File=" + in, "--Points.File=" + points,
			"--Extract.Method=bilinear", "--OutputFile=" + out})
		if err := Root.Execute(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(out); err != nil {
			t.Error(err)
		}
	})
}
