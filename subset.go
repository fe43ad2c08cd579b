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
	"time"
)

// SubsetByTime returns a raster with the layers of r whose timestamps are
// equal to one of the targets, in their original order. Targets that do not
// match any layer are ignored. The caller is responsible for aligning the
// granularity of targets to that of the layers, for example with
// TruncateTimes.
func SubsetByTime(r *Raster, targets []time.Time) (*Raster, error) {
	if err := r.checkTimed(); err != nil {
		return nil, err
	}
	want := make(map[instant]struct{}, len(targets))
	for _, t := range targets {
		want[instantOf(t)] = struct{}{}
	}
	return r.filter(func(l Layer) bool {
		_, ok := want[instantOf(l.Time)]
		return ok
	}), nil
}

// instant identifies a point in time independently of its location.
// Unlike UnixNano it is defined for every representable time.
type instant struct {
	sec  int64
	nsec int
}

func instantOf(t time.Time) instant {
	return instant{sec: t.Unix(), nsec: t.Nanosecond()}
}

// SubsetByRange returns a raster with the layers of r whose timestamps t
// satisfy begin <= t < end.
func SubsetByRange(r *Raster, begin, end time.Time) (*Raster, error) {
	if err := r.checkTimed(); err != nil {
		return nil, err
	}
	return r.filter(func(l Layer) bool {
		return !l.Time.Before(begin) && l.Time.Before(end)
	}), nil
}

// filter returns a raster holding copies of the layers of r for which keep
// returns true.
func (r *Raster) filter(keep func(Layer) bool) *Raster {
	o := r.derive(r.Grid)
	o.Layers = []Layer{}
	for _, l := range r.Layers {
		if keep(l) {
			o.Layers = append(o.Layers, Layer{Name: l.Name, Time: l.Time, Data: l.Data.Copy()})
		}
	}
	return o
}

// TruncateTimes returns the start of the bucket that each of ts falls in,
// with duplicates removed. It can be used to align survey dates with
// aggregated layers.
func TruncateTimes(ts []time.Time, bucket BucketFunc) []time.Time {
	seen := make(map[instant]struct{}, len(ts))
	var o []time.Time
	for _, t := range ts {
		s := bucket(t).Start
		k := instantOf(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		o = append(o, s)
	}
	return o
}
