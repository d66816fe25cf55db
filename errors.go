/*
Copyright © 2023 the EIS authors.
This file is part of EIS.

EIS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

EIS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with EIS.  If not, see <http://www.gnu.org/licenses/>.
*/

package eis

import (
	"errors"
	"fmt"
)

// Error kinds returned by the toolkit. Use errors.Is to check an error's kind.
var (
	ErrInvalidParameter       = errors.New("invalid parameter value")
	ErrInvalidColumn          = errors.New("invalid column")
	ErrInvalidColumnIndex     = errors.New("invalid column index")
	ErrNonMatchingCRS         = errors.New("non-matching coordinate reference systems")
	ErrInvalidGeometryType    = errors.New("invalid geometry type")
	ErrInvalidWindowSize      = errors.New("invalid window size")
	ErrCoordinatesOutOfBounds = errors.New("coordinates out of bounds")
	ErrEmptyTable             = errors.New("empty input table")
	ErrInvalidContent         = errors.New("invalid content of input table")
	ErrInvalidShape           = errors.New("invalid data shape")
	ErrNotImplemented         = errors.New("not implemented")
)

// Error is an error that occurred while running an operation.
// Kind is one of the Err* values above.
type Error struct {
	Op   string // operation, e.g. "coda.PLR"
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("eis: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("eis: %s: %s (%v)", e.Op, e.Msg, e.Kind)
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error { return e.Kind }

// Errorf returns a new *Error of the given kind for operation op.
func Errorf(kind error, op, format string, a ...interface{}) error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, a...)}
}
