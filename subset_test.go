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
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestSubsetByTime(t *testing.T) {
	r := scenarioRaster(t)

	t.Run("identity", func(t *testing.T) {
		s, err := SubsetByTime(r, r.Times())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(s.Layers, r.Layers) {
			t.Errorf("%+v != %+v", s.Layers, r.Layers)
		}
	})

	t.Run("empty targets", func(t *testing.T) {
		s, err := SubsetByTime(r, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(s.Layers) != 0 {
			t.Errorf("want 0 layers, have %d", len(s.Layers))
		}
	})

	t.Run("one match and one missing date", func(t *testing.T) {
		s, err := SubsetByTime(r, []time.Time{date("2022-11-02T06"), date("2023-01-01")})
		if err != nil {
			t.Fatal(err)
		}
		if len(s.Layers) != 1 || s.Layers[0].Name != "t2m_3" {
			t.Errorf("want layer t2m_3, have %+v", s.Layers)
		}
	})

	t.Run("different location", func(t *testing.T) {
		loc := time.FixedZone("UTC-5", -5*3600)
		s, err := SubsetByTime(r, []time.Time{date("2022-11-01T06").In(loc)})
		if err != nil {
			t.Fatal(err)
		}
		if len(s.Layers) != 1 || s.Layers[0].Name != "t2m_1" {
			t.Errorf("want layer t2m_1, have %+v", s.Layers)
		}
	})

	t.Run("keeps order", func(t *testing.T) {
		s, err := SubsetByTime(r, []time.Time{date("2022-11-02T06"), date("2022-11-01T06")})
		if err != nil {
			t.Fatal(err)
		}
		if len(s.Layers) != 2 || s.Layers[0].Name != "t2m_1" || s.Layers[1].Name != "t2m_3" {
			t.Errorf("layers out of order: %+v", s.Layers)
		}
	})

	t.Run("distant past", func(t *testing.T) {
		layerTime := time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)
		// 2^64 nanoseconds later, which has the same UnixNano value.
		target := layerTime.Add(1 << 62).Add(1 << 62).Add(1 << 62).Add(1 << 62)
		u := newTestRaster(t, Grid{Dx: 1, Dy: 1, Nx: 1, Ny: 1}, "", testLayer{"old", layerTime, []float64{1}})
		s, err := SubsetByTime(u, []time.Time{target})
		if err != nil {
			t.Fatal(err)
		}
		if len(s.Layers) != 0 {
			t.Errorf("%v should not match %v", target, layerTime)
		}
		s, err = SubsetByTime(u, []time.Time{layerTime})
		if err != nil {
			t.Fatal(err)
		}
		if len(s.Layers) != 1 {
			t.Errorf("want 1 layer, have %d", len(s.Layers))
		}
	})

	t.Run("missing time", func(t *testing.T) {
		u := newTestRaster(t, Grid{Dx: 1, Dy: 1, Nx: 1, Ny: 1}, "", testLayer{"a", time.Time{}, []float64{1}})
		_, err := SubsetByTime(u, nil)
		if !errors.Is(err, ErrMissingTimeDimension) {
			t.Errorf("want ErrMissingTimeDimension, have %v", err)
		}
	})
}

func TestSubsetAfterAggregate(t *testing.T) {
	a, err := Aggregate(scenarioRaster(t), Daily, Mean)
	if err != nil {
		t.Fatal(err)
	}
	surveyed := []time.Time{
		time.Date(2022, 11, 2, 9, 30, 0, 0, time.UTC),
		time.Date(2022, 11, 2, 15, 0, 0, 0, time.UTC),
		time.Date(2022, 11, 9, 15, 0, 0, 0, time.UTC),
	}
	targets := TruncateTimes(surveyed, Daily)
	if len(targets) != 2 {
		t.Fatalf("duplicate days should be removed: %v", targets)
	}
	s, err := SubsetByTime(a, targets)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Layers) != 1 || s.Layers[0].Name != "day_2022-11-02" {
		t.Errorf("want day_2022-11-02, have %+v", s.Layers)
	}
}

func TestTruncateTimesDistantPast(t *testing.T) {
	a := time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(1 << 62).Add(1 << 62).Add(1 << 62).Add(1 << 62)
	if have := TruncateTimes([]time.Time{a, b}, Hourly); len(have) != 2 {
		t.Errorf("distinct hours were merged: %v", have)
	}
}

func TestSubsetByRange(t *testing.T) {
	r := scenarioRaster(t)
	s, err := SubsetByRange(r, date("2022-11-01T12"), date("2022-11-02T06"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Layers) != 1 || s.Layers[0].Name != "t2m_2" {
		t.Errorf("want t2m_2, have %+v", s.Layers)
	}
}
