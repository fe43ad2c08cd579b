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
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/gridextract"
	"github.com/spatialmodel/gridextract/survey"
	"github.com/spf13/cast"
)

// Pipeline holds the validated configuration for a run of the
// crop, aggregate, subset, and extract steps.
type Pipeline struct {
	InputFile       string
	Variable        string
	InputProjection string

	// Boundary is the crop boundary, or nil if the raster should not be
	// cropped. Its spatial reference is nil until it is assigned the
	// spatial reference of the input raster.
	Boundary *gridextract.Boundary
	Mask     bool

	// Bucket is nil if the raster should not be aggregated.
	Bucket  gridextract.BucketFunc
	Reducer gridextract.Reducer

	Dates      []time.Time
	Begin, End time.Time

	PointsFile       string
	Columns          survey.Columns
	PointsProjection string
	DateColumn       string

	TableFile string
	TableKey  string
	Strict    bool

	Method     gridextract.Method
	Expression string

	OutputFile string
}

// PipelineConfig unmarshals and validates a viper configuration for
// a pipeline run. Input files that are URLs or blobs are downloaded.
func PipelineConfig(ctx context.Context, cfg *viper.Viper) (*Pipeline, error) {
	var err error
	p := &Pipeline{
		Variable:         os.ExpandEnv(cfg.GetString("Input.Variable")),
		InputProjection:  os.ExpandEnv(cfg.GetString("Input.Projection")),
		Mask:             cfg.GetBool("Crop.Mask"),
		PointsProjection: os.ExpandEnv(cfg.GetString("Points.Projection")),
		DateColumn:       os.ExpandEnv(cfg.GetString("Points.DateColumn")),
		TableKey:         os.ExpandEnv(cfg.GetString("Table.Key")),
		Strict:           cfg.GetBool("Join.Strict"),
		Expression:       strings.TrimSpace(cfg.GetString("Extract.Expression")),
		Columns: survey.Columns{
			ID: os.ExpandEnv(cfg.GetString("Points.IDColumn")),
			X:  os.ExpandEnv(cfg.GetString("Points.XColumn")),
			Y:  os.ExpandEnv(cfg.GetString("Points.YColumn")),
		},
	}

	if p.InputFile, err = checkInputFile("Input.File", cfg.GetString("Input.File")); err != nil {
		return nil, err
	}
	if p.InputFile, err = maybeDownload(ctx, p.InputFile); err != nil {
		return nil, err
	}

	if b := os.ExpandEnv(cfg.GetString("Crop.Boundary")); b != "" {
		if b, err = maybeDownload(ctx, b); err != nil {
			return nil, err
		}
		bound, err := ParseBoundary(b)
		if err != nil {
			return nil, err
		}
		p.Boundary = &bound
	} else if p.Mask {
		return nil, fmt.Errorf("gridutil: Crop.Mask is true but Crop.Boundary is not specified")
	}

	if name := cfg.GetString("Aggregate.Bucket"); name != "" {
		if p.Bucket, err = gridextract.BucketByName(name); err != nil {
			return nil, fmt.Errorf("gridutil: Aggregate.Bucket: %v", err)
		}
	}
	if p.Reducer, err = gridextract.ReducerByName(cfg.GetString("Aggregate.Reducer")); err != nil {
		return nil, fmt.Errorf("gridutil: Aggregate.Reducer: %v", err)
	}

	var dates []string
	if d := cfg.Get("Subset.Dates"); d != nil {
		if dates, err = cast.ToStringSliceE(d); err != nil {
			return nil, fmt.Errorf("gridutil: Subset.Dates: %v", err)
		}
	}
	for _, d := range expandStringSlice(dates) {
		t, err := survey.ParseDate(d)
		if err != nil {
			return nil, fmt.Errorf("gridutil: Subset.Dates: %v", err)
		}
		p.Dates = append(p.Dates, t)
	}
	if p.Begin, err = checkTime("Subset.Begin", cfg.GetString("Subset.Begin")); err != nil {
		return nil, err
	}
	if p.End, err = checkTime("Subset.End", cfg.GetString("Subset.End")); err != nil {
		return nil, err
	}
	if !p.Begin.IsZero() && !p.End.IsZero() && !p.End.After(p.Begin) {
		return nil, fmt.Errorf("gridutil: Subset.End (%v) must be after Subset.Begin (%v)", p.End, p.Begin)
	}

	if f := os.ExpandEnv(cfg.GetString("Points.File")); f != "" {
		if p.PointsFile, err = maybeDownload(ctx, f); err != nil {
			return nil, err
		}
	}
	if f := os.ExpandEnv(cfg.GetString("Table.File")); f != "" {
		if p.TableFile, err = maybeDownload(ctx, f); err != nil {
			return nil, err
		}
		if p.TableKey == "" {
			p.TableKey = p.Columns.ID
		}
	}

	if p.Method, err = gridextract.MethodByName(cfg.GetString("Extract.Method")); err != nil {
		return nil, fmt.Errorf("gridutil: Extract.Method: %v", err)
	}
	if p.OutputFile, err = checkOutputFile(cfg.GetString("OutputFile")); err != nil {
		return nil, err
	}
	return p, nil
}

// checkExtract makes sure p holds the additional information needed to
// extract values at points.
func (p *Pipeline) checkExtract() error {
	if p.PointsFile == "" {
		return fmt.Errorf("gridutil: you need to specify a points file (for example: --Points.File=stations.csv)")
	}
	switch strings.ToLower(filepath.Ext(p.OutputFile)) {
	case ".csv", ".xlsx":
	default:
		return fmt.Errorf("gridutil: OutputFile %s must have extension .csv or .xlsx", p.OutputFile)
	}
	return nil
}

// checkInputFile makes sure that the required input file is specified and
// expands any environment variables.
func checkInputFile(name, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`gridutil: you need to specify the %s configuration variable (for example: %s="era5_t2m.nc")`, name, name)
	}
	return os.ExpandEnv(f), nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`gridutil: you need to specify an output file configuration variable (for example: OutputFile="output.csv")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) {
		u, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		if _, err = OpenBucket(context.TODO(), u.Scheme+"://"+u.Host); err != nil {
			return f, fmt.Errorf("gridutil: error when checking OutputFile location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("gridutil: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkTime parses an optional date configuration variable.
func checkTime(name, s string) (time.Time, error) {
	s = os.ExpandEnv(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := survey.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("gridutil: %s: %v", name, err)
	}
	return t, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(strings.TrimSpace(s[i]))
	}
	return s
}

// ParseBoundary returns the crop boundary represented by s, which is
// either a bounding box in the format "minx,maxx,miny,maxy" or the path to
// a GeoJSON file holding a Polygon or MultiPolygon. The returned boundary
// has no spatial reference.
func ParseBoundary(s string) (gridextract.Boundary, error) {
	if parts := strings.Split(s, ","); len(parts) == 4 {
		var v [4]float64
		var err error
		for i, part := range parts {
			if v[i], err = strconv.ParseFloat(strings.TrimSpace(part), 64); err != nil {
				break
			}
		}
		if err == nil {
			if !(v[1] > v[0]) || !(v[3] > v[2]) {
				return gridextract.Boundary{}, fmt.Errorf("gridutil: invalid bounding box %s; want minx,maxx,miny,maxy", s)
			}
			return gridextract.NewBBox(v[0], v[1], v[2], v[3], nil), nil
		}
	}
	poly, err := parseBoundaryFile(s)
	if err != nil {
		return gridextract.Boundary{}, err
	}
	return gridextract.NewPolygon(poly, nil), nil
}

// parseBoundaryFile returns the polygon represented by the
// given GeoJSON file.
func parseBoundaryFile(geoJSONFile string) (geom.Polygon, error) {
	b, err := ioutil.ReadFile(os.ExpandEnv(geoJSONFile))
	if err != nil {
		return nil, fmt.Errorf("gridutil: reading boundary file: %v", err)
	}
	j, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("gridutil: decoding boundary GeoJSON: %v", err)
	}
	var poly geom.Polygon
	switch g := j.(type) {
	case geom.Polygon:
		poly = g
	case geom.MultiPolygon:
		for _, p := range g {
			poly = append(poly, p...)
		}
	default:
		return nil, fmt.Errorf("gridutil: invalid boundary geometry type %T", j)
	}
	if len(poly) == 0 {
		return nil, fmt.Errorf("gridutil: boundary file %s holds an empty polygon", geoJSONFile)
	}
	return poly, nil
}
