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
	"fmt"

	"github.com/ctessum/geom/proj"
)

var (
	// ErrGeometryMismatch is returned when the spatial reference of a
	// boundary or a point can not be reconciled with the spatial reference
	// of a raster.
	ErrGeometryMismatch = errors.New("gridextract: geometry mismatch")

	// ErrMissingTimeDimension is returned when a temporal operation is
	// requested on a raster with one or more layers that lack a timestamp.
	ErrMissingTimeDimension = errors.New("gridextract: missing time dimension")

	// ErrUnjoinableRecord is returned by a strict merge when a point
	// identifier has no matching row in the attribute table.
	ErrUnjoinableRecord = errors.New("gridextract: unjoinable record")
)

// UnjoinableRecordError is returned when a strict join can not find an
// attribute row for a point.
type UnjoinableRecordError struct {
	PointID string
	Key     string
}

func (err *UnjoinableRecordError) Error() string {
	return fmt.Sprintf("gridextract: no attribute row with %s=`%s`", err.Key, err.PointID)
}

// Is allows errors.Is(err, ErrUnjoinableRecord) to match.
func (err *UnjoinableRecordError) Is(target error) bool {
	return target == ErrUnjoinableRecord
}

// transformer returns a function that converts coordinates from the
// spatial reference from to the spatial reference to. Two nil spatial
// references are considered identical; a nil and a non-nil one can
// not be reconciled.
func transformer(from, to *proj.SR) (proj.Transformer, error) {
	if from == nil && to == nil {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}
	if from == nil || to == nil {
		return nil, fmt.Errorf("%w: spatial reference is only specified on one side", ErrGeometryMismatch)
	}
	ct, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometryMismatch, err)
	}
	return ct, nil
}
