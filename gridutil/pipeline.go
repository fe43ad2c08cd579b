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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/geom/proj"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridextract"
	"github.com/spatialmodel/gridextract/ncf"
	"github.com/spatialmodel/gridextract/survey"
	"github.com/spatialmodel/gridextract/tabular"
)

// farFuture is used as the end of the subset range when none is given.
var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// readRaster reads the input raster specified by p.
func (p *Pipeline) readRaster() (*gridextract.Raster, error) {
	f, err := os.Open(p.InputFile)
	if err != nil {
		return nil, fmt.Errorf("gridutil: opening input file: %v", err)
	}
	defer f.Close()
	r, err := ncf.ReadCOARDS(f, ncf.ReadOptions{Variable: p.Variable, Projection: p.InputProjection})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"file":   p.InputFile,
		"nx":     r.Nx,
		"ny":     r.Ny,
		"layers": len(r.Layers),
	}).Info("read input raster")
	return r, nil
}

// readPoints reads the sampling locations specified by p.
func (p *Pipeline) readPoints() ([]gridextract.Point, error) {
	sr, err := proj.Parse(p.PointsProjection)
	if err != nil {
		return nil, fmt.Errorf("gridutil: parsing Points.Projection: %v", err)
	}
	var points []gridextract.Point
	if strings.ToLower(filepath.Ext(p.PointsFile)) == ".shp" {
		points, err = survey.ReadPointsShapefile(p.PointsFile, p.Columns.ID, sr)
	} else {
		var f *os.File
		if f, err = os.Open(p.PointsFile); err != nil {
			return nil, fmt.Errorf("gridutil: opening points file: %v", err)
		}
		defer f.Close()
		points, err = survey.ReadPointsCSV(f, p.Columns, sr)
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"file": p.PointsFile, "points": len(points)}).Info("read points")
	return points, nil
}

// readTable reads the attribute table specified by p, or returns nil if
// there is none.
func (p *Pipeline) readTable(ctx context.Context) (*gridextract.AttributeTable, error) {
	if p.TableFile == "" {
		return nil, nil
	}
	if strings.ToLower(filepath.Ext(p.TableFile)) == ".xlsx" {
		return survey.ReadTableXLSX(ctx, p.TableFile, "", p.TableKey)
	}
	f, err := os.Open(p.TableFile)
	if err != nil {
		return nil, fmt.Errorf("gridutil: opening table file: %v", err)
	}
	defer f.Close()
	return survey.ReadTableCSV(f, p.TableKey)
}

// Prepare reads the input raster and crops, aggregates, and subsets it
// as specified by p. If points is not nil and p.DateColumn is set, the
// raster is additionally subset to the layers matching the point dates.
func (p *Pipeline) Prepare(points []gridextract.Point) (*gridextract.Raster, error) {
	r, err := p.readRaster()
	if err != nil {
		return nil, err
	}

	if p.Boundary != nil {
		b := *p.Boundary
		if b.SR == nil {
			b.SR = r.SR
		}
		if p.Mask {
			r, err = gridextract.CropMask(r, b)
		} else {
			r, err = gridextract.Crop(r, b)
		}
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"nx": r.Nx, "ny": r.Ny, "mask": p.Mask}).Info("cropped raster")
	}

	if !p.Begin.IsZero() || !p.End.IsZero() {
		end := p.End
		if end.IsZero() {
			end = farFuture
		}
		if r, err = gridextract.SubsetByRange(r, p.Begin, end); err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"begin": p.Begin, "end": end, "layers": len(r.Layers)}).Info("subset raster by range")
	}

	if p.Bucket != nil {
		if r, err = gridextract.Aggregate(r, p.Bucket, p.Reducer); err != nil {
			return nil, err
		}
		logrus.WithField("layers", len(r.Layers)).Info("aggregated raster")
	}

	dates := append([]time.Time{}, p.Dates...)
	if p.DateColumn != "" && points != nil {
		d, err := survey.Dates(points, p.DateColumn)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d...)
	}
	if len(dates) > 0 {
		if p.Bucket != nil {
			dates = gridextract.TruncateTimes(dates, p.Bucket)
		}
		if r, err = gridextract.SubsetByTime(r, dates); err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"dates": len(dates), "layers": len(r.Layers)}).Info("subset raster by date")
	}
	return r, nil
}

// RunCrop prepares the raster specified by p and writes it to
// p.OutputFile as a COARDS NetCDF file.
func RunCrop(ctx context.Context, p *Pipeline) error {
	r, err := p.Prepare(nil)
	if err != nil {
		return err
	}
	u := new(uploader)
	out := u.maybeUpload(p.OutputFile)
	if u.err != nil {
		return u.err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("gridutil: creating output file: %v", err)
	}
	v := p.Variable
	if v == "" {
		v = "data"
	}
	if err := ncf.WriteCOARDS(f, r, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("gridutil: closing output file: %v", err)
	}
	logrus.WithField("file", p.OutputFile).Info("wrote raster")
	return u.uploadOutput(ctx)
}

// RunExtract runs the full pipeline specified by p and returns the
// extracted records.
func RunExtract(ctx context.Context, p *Pipeline) ([]gridextract.Record, error) {
	if err := p.checkExtract(); err != nil {
		return nil, err
	}
	points, err := p.readPoints()
	if err != nil {
		return nil, err
	}
	r, err := p.Prepare(points)
	if err != nil {
		return nil, err
	}
	table, err := p.readTable(ctx)
	if err != nil {
		return nil, err
	}
	var join *gridextract.Join
	if table != nil {
		join = &gridextract.Join{Table: table, Strict: p.Strict}
	}
	records, err := gridextract.Extract(r, points, p.Method, join)
	if err != nil {
		return nil, err
	}
	if p.Expression != "" {
		if records, err = gridextract.Derive(records, p.Expression); err != nil {
			return nil, err
		}
	}
	var missing int
	for _, rec := range records {
		if rec.Missing() {
			missing++
		}
	}
	logrus.WithFields(logrus.Fields{"records": len(records), "missing": missing}).Info("extracted values")
	return records, nil
}

// writeRecords writes records to p.OutputFile in the format indicated
// by its extension.
func writeRecords(ctx context.Context, p *Pipeline, records []gridextract.Record) error {
	u := new(uploader)
	out := u.maybeUpload(p.OutputFile)
	if u.err != nil {
		return u.err
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".xlsx":
		if err := tabular.WriteXLSX(out, records); err != nil {
			return err
		}
	default:
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("gridutil: creating output file: %v", err)
		}
		if err := tabular.WriteCSV(f, records); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("gridutil: closing output file: %v", err)
		}
	}
	logrus.WithField("file", p.OutputFile).Info("wrote records")
	return u.uploadOutput(ctx)
}
