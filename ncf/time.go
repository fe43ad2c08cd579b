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

package ncf

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ctessum/cdf"
)

var timeUnits = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second, "s": time.Second,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"hour": time.Hour, "hours": time.Hour, "hr": time.Hour, "hrs": time.Hour, "h": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour, "d": 24 * time.Hour,
}

var refLayouts = []string{
	"2006-1-2 15:4:5",
	"2006-1-2T15:4:5Z07:00",
	"2006-1-2T15:4:5",
	"2006-1-2 15:4",
	"2006-1-2T15:4",
	"2006-1-2",
}

// ParseTimeUnits parses a COARDS time units string such as
// "hours since 1900-01-01 00:00:00.0", returning the length of one unit
// and the reference time. Reference times without a zone are UTC.
func ParseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("ncf: invalid time units %q", units)
	}
	unit, ok := timeUnits[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("ncf: invalid time unit %q in %q", parts[0], units)
	}
	ref := strings.TrimSpace(parts[1])
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " GMT")
	for _, layout := range refLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return unit, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("ncf: invalid reference time %q in %q", ref, units)
}

// readTimes reads the time coordinate variable v and converts it to
// absolute times using its units attribute.
func readTimes(nc *cdf.File, v string) ([]time.Time, error) {
	units, ok := nc.Header.GetAttribute(v, "units").(string)
	if !ok {
		return nil, fmt.Errorf("ncf: time variable %s has no units attribute", v)
	}
	unit, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	offsets, err := readVar(nc, v)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(offsets))
	for i, o := range offsets {
		if math.IsNaN(o) {
			return nil, fmt.Errorf("ncf: time variable %s has a missing value at index %d", v, i)
		}
		if times[i], err = offsetTime(ref, o, unit); err != nil {
			return nil, fmt.Errorf("ncf: time variable %s index %d: %v", v, i, err)
		}
	}
	return times, nil
}

// maxOffsetDays is the largest time offset from the reference time that
// offsetTime accepts.
const maxOffsetDays = 1e8

// offsetTime returns the time offset units of unit after ref. Whole days
// are added separately so that offsets longer than a time.Duration can
// hold are still exact.
func offsetTime(ref time.Time, offset float64, unit time.Duration) (time.Time, error) {
	secs := offset * unit.Seconds()
	days := math.Floor(secs / 86400)
	if math.IsInf(days, 0) || math.Abs(days) > maxOffsetDays {
		return time.Time{}, fmt.Errorf("offset %g %v is out of range", offset, unit)
	}
	rem := secs - days*86400
	return ref.AddDate(0, 0, int(days)).Add(time.Duration(math.Round(rem * 1e9))), nil
}
