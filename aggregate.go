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
	"sort"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Bucket is a discrete period of time that layers are grouped into.
type Bucket struct {
	// Name is used as the name of the aggregated layer.
	Name string

	// Start is the beginning of the period. Buckets are ordered by Start
	// and Start is used as the timestamp of the aggregated layer.
	Start time.Time
}

// BucketFunc assigns a timestamp to a bucket.
type BucketFunc func(time.Time) Bucket

// Hourly groups timestamps by UTC hour.
func Hourly(t time.Time) Bucket {
	s := t.UTC().Truncate(time.Hour)
	return Bucket{Name: "hour_" + s.Format("2006-01-02T15"), Start: s}
}

// Daily groups timestamps by UTC calendar day.
func Daily(t time.Time) Bucket {
	t = t.UTC()
	s := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Bucket{Name: "day_" + s.Format("2006-01-02"), Start: s}
}

// Monthly groups timestamps by UTC calendar month.
func Monthly(t time.Time) Bucket {
	t = t.UTC()
	s := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Bucket{Name: "month_" + s.Format("2006-01"), Start: s}
}

// Yearly groups timestamps by UTC calendar year.
func Yearly(t time.Time) Bucket {
	t = t.UTC()
	s := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	return Bucket{Name: "year_" + s.Format("2006"), Start: s}
}

// BucketByName returns the bucket function with the given name, which
// must be one of "hour", "day", "month", or "year".
func BucketByName(name string) (BucketFunc, error) {
	switch strings.ToLower(name) {
	case "hour", "hourly":
		return Hourly, nil
	case "day", "daily":
		return Daily, nil
	case "month", "monthly":
		return Monthly, nil
	case "year", "yearly":
		return Yearly, nil
	default:
		return nil, fmt.Errorf("gridextract: invalid time bucket `%s`; valid options are hour, day, month, and year", name)
	}
}

// Reducer combines the values of one cell across the layers of a bucket.
// It is only called with at least one value, none of which are no-data, and
// its result must not depend on the order of the values.
type Reducer func(vals []float64) float64

// Mean is the arithmetic mean.
func Mean(vals []float64) float64 { return stat.Mean(vals, nil) }

// Sum is the sum.
func Sum(vals []float64) float64 { return floats.Sum(vals) }

// Min is the minimum.
func Min(vals []float64) float64 { return floats.Min(vals) }

// Max is the maximum.
func Max(vals []float64) float64 { return floats.Max(vals) }

// ReducerByName returns the reducer with the given name, which must be one of
// "mean", "sum", "min", or "max".
func ReducerByName(name string) (Reducer, error) {
	switch strings.ToLower(name) {
	case "mean", "average":
		return Mean, nil
	case "sum":
		return Sum, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return nil, fmt.Errorf("gridextract: invalid reducer `%s`; valid options are mean, sum, min, and max", name)
	}
}

// Aggregate groups the layers of r by the bucket that their timestamps fall
// in and reduces each group to a single layer. Layers do not need to be
// contiguous to be grouped together. Output layers are ordered by bucket
// start time. At each cell, no-data values are excluded from the reduction
// and a cell with only no-data values in a group stays no-data.
func Aggregate(r *Raster, bucket BucketFunc, reduce Reducer) (*Raster, error) {
	if err := r.checkTimed(); err != nil {
		return nil, err
	}

	type group struct {
		Bucket
		layers []int
	}
	groups := make(map[string]*group)
	for i, l := range r.Layers {
		b := bucket(l.Time)
		g, ok := groups[b.Name]
		if !ok {
			g = &group{Bucket: b}
			groups[b.Name] = g
		} else if !g.Start.Equal(b.Start) {
			return nil, fmt.Errorf("gridextract: bucket %s has inconsistent start times %v and %v", b.Name, g.Start, b.Start)
		}
		g.layers = append(g.layers, i)
	}
	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	o := r.derive(r.Grid)
	o.Layers = make([]Layer, len(sorted))
	n := r.Nx * r.Ny
	for k, g := range sorted {
		data := sparse.ZerosDense(r.Ny, r.Nx)
		vals := make([]float64, 0, len(g.layers))
		for c := 0; c < n; c++ {
			vals = vals[:0]
			for _, li := range g.layers {
				if v := r.Layers[li].Data.Elements[c]; !math.IsNaN(v) {
					vals = append(vals, v)
				}
			}
			if len(vals) == 0 {
				data.Elements[c] = math.NaN()
				continue
			}
			data.Elements[c] = reduce(vals)
		}
		o.Layers[k] = Layer{Name: g.Name, Time: g.Start, Data: data}
	}
	return o, nil
}
