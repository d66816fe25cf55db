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

package coda

import (
	"math"

	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/stat"
)

// scalingFactor returns the scaling factor of a single pivot log-ratio
// coordinate whose denominator has c parts.
func scalingFactor(c int) (float64, error) {
	if c <= 0 {
		return 0, eis.Errorf(eis.ErrInvalidParameter, "coda.scalingFactor", "cardinality must be positive, got %d", c)
	}
	return math.Sqrt(float64(c) / float64(c+1)), nil
}

// plr calculates the pivot log-ratio coordinate of part i for every row.
// The denominator is the geometric mean of all the parts to the right of i.
func plr(cols [][]float64, i int) ([]float64, error) {
	scale, err := scalingFactor(len(cols) - i - 1)
	if err != nil {
		return nil, err
	}
	n := len(cols[0])
	o := make([]float64, n)
	rest := make([]float64, len(cols)-i-1)
	for r := 0; r < n; r++ {
		for k := range rest {
			rest[k] = cols[i+1+k][r]
		}
		o[r] = scale * math.Log(cols[i][r]/stat.GeometricMean(rest, nil))
	}
	return o, nil
}

// SinglePLR returns the pivot log-ratio coordinate of the named column for
// every row of t. The column order of t matters: the denominator is made
// up of all the columns to the right of column, so column must not be the
// last one.
func SinglePLR(t *eis.Table, column string) ([]float64, error) {
	const op = "coda.SinglePLR"
	if t == nil || !t.Has(column) {
		return nil, eis.Errorf(eis.ErrInvalidColumn, op, "column %q not found", column)
	}
	i := t.Index(column)
	if i == t.NumCols()-1 {
		return nil, eis.Errorf(eis.ErrInvalidColumn, op, "column %q is the last part; there is nothing to its right", column)
	}
	return singlePLR(op, t, i)
}

// SinglePLRIndex is like SinglePLR but selects the column by position.
func SinglePLRIndex(t *eis.Table, i int) ([]float64, error) {
	const op = "coda.SinglePLRIndex"
	if t == nil || i < 0 || i >= t.NumCols()-1 {
		return nil, eis.Errorf(eis.ErrInvalidColumnIndex, op, "index %d out of range", i)
	}
	return singlePLR(op, t, i)
}

func singlePLR(op string, t *eis.Table, i int) ([]float64, error) {
	names := t.Names()
	cols, err := numericColumns(op, t, names)
	if err != nil {
		return nil, err
	}
	if err = checkParts(op, names[i:], cols[i:]); err != nil {
		return nil, err
	}
	return plr(cols, i)
}

// PLR performs the full pivot log-ratio transform of the compositions in t,
// returning a table of D-1 columns for a D-part composition. The output
// columns take the names of the first D-1 input columns.
func PLR(t *eis.Table) (*eis.Table, error) {
	const op = "coda.PLR"
	if t == nil {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "table is nil")
	}
	names := t.Names()
	cols, err := numericColumns(op, t, names)
	if err != nil {
		return nil, err
	}
	if len(cols) < 2 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "need at least two parts, got %d", len(cols))
	}
	if err = checkParts(op, names, cols); err != nil {
		return nil, err
	}
	out := make([][]float64, len(cols)-1)
	for i := range out {
		if out[i], err = plr(cols, i); err != nil {
			return nil, err
		}
	}
	return table(names[:len(names)-1], out)
}

// InversePLR is not implemented.
func InversePLR(t *eis.Table) (*eis.Table, error) {
	return nil, eis.Errorf(eis.ErrNotImplemented, "coda.InversePLR", "")
}
