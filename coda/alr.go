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
)

// LastColumn selects the last of the used columns as the ALR denominator.
const LastColumn = -1

// ALR performs the additive log-ratio transform of the named columns of t,
// dividing every part by the part at position denominator in columns
// before taking the logarithm. Pass LastColumn as denominator to divide
// by the last of columns. If columns is nil, all columns of t are used.
// The output holds one column per non-denominator part, in order.
func ALR(t *eis.Table, columns []string, denominator int) (*eis.Table, error) {
	const op = "coda.ALR"
	if t == nil || t.NumCols() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "table is empty")
	}
	if columns == nil {
		columns = t.Names()
	}
	for _, c := range columns {
		if !t.Has(c) {
			return nil, eis.Errorf(eis.ErrInvalidColumn, op, "column %q not found", c)
		}
	}
	if len(columns) < 2 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "need at least two columns, got %d", len(columns))
	}
	if denominator == LastColumn {
		denominator = len(columns) - 1
	}
	if denominator < 0 || denominator >= len(columns) {
		return nil, eis.Errorf(eis.ErrInvalidColumnIndex, op, "denominator index %d out of range [0, %d)",
			denominator, len(columns))
	}
	cols, err := numericColumns(op, t, columns)
	if err != nil {
		return nil, err
	}
	if err = checkParts(op, columns, cols); err != nil {
		return nil, err
	}

	den := cols[denominator]
	var names []string
	var out [][]float64
	for j, c := range cols {
		if j == denominator {
			continue
		}
		v := make([]float64, len(c))
		for i := range c {
			v[i] = math.Log(c[i] / den[i])
		}
		names = append(names, columns[j])
		out = append(out, v)
	}
	return table(names, out)
}

// InverseALR reconstructs closed compositions from the ALR coordinates in
// t. The denominator part is appended as the last column with the given
// name, and every output row sums to 1.
func InverseALR(t *eis.Table, denominator string) (*eis.Table, error) {
	const op = "coda.InverseALR"
	if t != nil && t.Has(denominator) {
		return nil, eis.Errorf(eis.ErrInvalidColumn, op, "denominator %q is already a column", denominator)
	}
	cols, err := numericColumns(op, t, t.Names())
	if err != nil {
		return nil, err
	}
	n := t.NumRows()
	out := make([][]float64, len(cols)+1)
	for j := range out {
		out[j] = make([]float64, n)
	}
	row := make([]float64, len(cols)+1)
	for i := 0; i < n; i++ {
		for j, c := range cols {
			row[j] = math.Exp(c[i])
		}
		row[len(cols)] = 1
		for j, v := range Normalize(row, 1) {
			out[j][i] = v
		}
	}
	return table(append(t.Names(), denominator), out)
}
