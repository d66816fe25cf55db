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

// Package coda implements log-ratio transforms and simplex operations for
// compositional data: rows of strictly positive parts whose relative,
// not absolute, magnitudes carry the information.
package coda

import (
	"math"

	"github.com/spatialmodel/eis"
)

// Normalize returns a copy of row scaled so that its parts sum to sum.
func Normalize(row []float64, sum float64) []float64 {
	var total float64
	for _, v := range row {
		total += v
	}
	scale := total / sum
	o := make([]float64, len(row))
	for i, v := range row {
		o[i] = v / scale
	}
	return o
}

// Closure returns a copy of t in which every row has been normalized to
// sum to 1. All columns of t must be numeric.
func Closure(t *eis.Table) (*eis.Table, error) {
	const op = "coda.Closure"
	cols, err := numericColumns(op, t, t.Names())
	if err != nil {
		return nil, err
	}
	n := t.NumRows()
	out := make([][]float64, len(cols))
	for j := range out {
		out[j] = make([]float64, n)
	}
	row := make([]float64, len(cols))
	for i := 0; i < n; i++ {
		var sum float64
		for j, c := range cols {
			row[j] = c[i]
			sum += c[i]
		}
		if sum == 0 || math.IsNaN(sum) {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "row %d sums to %g", i, sum)
		}
		for j, v := range Normalize(row, 1) {
			out[j][i] = v
		}
	}
	return table(t.Names(), out)
}

// numericColumns returns the values of the named numeric columns of t.
func numericColumns(op string, t *eis.Table, names []string) ([][]float64, error) {
	if t == nil || t.NumCols() == 0 || t.NumRows() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "table is empty")
	}
	o := make([][]float64, len(names))
	for j, name := range names {
		v, err := t.Floats(name)
		if err != nil {
			return nil, eis.Errorf(eis.ErrInvalidColumn, op, "column %q: %v", name, err)
		}
		o[j] = v
	}
	return o, nil
}

// checkParts makes sure every value in cols is a valid composition part.
func checkParts(op string, names []string, cols [][]float64) error {
	for j, c := range cols {
		for i, v := range c {
			switch {
			case v == 0:
				return eis.Errorf(eis.ErrInvalidColumn, op, "column %q contains zero (row %d)", names[j], i)
			case v < 0 || math.IsNaN(v) || math.IsInf(v, 0):
				return eis.Errorf(eis.ErrInvalidColumn, op, "column %q contains invalid part %g (row %d)", names[j], v, i)
			}
		}
	}
	return nil
}

func table(names []string, cols [][]float64) (*eis.Table, error) {
	c := make([]eis.Column, len(cols))
	for j, v := range cols {
		c[j] = eis.NewFloatColumn(names[j], v)
	}
	return eis.NewTable(c...)
}
