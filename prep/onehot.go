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

package prep

import (
	"sort"
	"strconv"

	"github.com/spatialmodel/eis"
)

// OneHotEncoder converts categorical columns into one binary column per
// category. Categories are learned by Fit and sorted; the output column
// for category c of column col is named "col_c". Categories not seen
// during fitting encode as all zeros.
type OneHotEncoder struct {
	// Categories holds the sorted categories of each fitted column.
	Categories map[string][]string

	columns []string
}

// Fit learns the categories of every column of t. Missing cells
// (empty strings or NaN) are not categories.
func (e *OneHotEncoder) Fit(t *eis.Table) error {
	const op = "prep.OneHotEncoder.Fit"
	if t == nil || t.NumCols() == 0 || t.NumRows() == 0 {
		return eis.Errorf(eis.ErrEmptyTable, op, "nothing to fit")
	}
	e.Categories = make(map[string][]string, t.NumCols())
	e.columns = t.Names()
	for i := 0; i < t.NumCols(); i++ {
		c := t.ColumnAt(i)
		vals, err := categories(op, c)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		var cats []string
		for _, v := range vals {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[c.Name()] = cats
	}
	return nil
}

// Transform encodes the fitted columns of t.
func (e *OneHotEncoder) Transform(t *eis.Table) (*eis.Table, error) {
	const op = "prep.OneHotEncoder.Transform"
	if e.Categories == nil {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "encoder has not been fitted")
	}
	var out []eis.Column
	for _, name := range e.columns {
		c, ok := t.Column(name)
		if !ok {
			return nil, eis.Errorf(eis.ErrInvalidColumn, op, "column %q not found", name)
		}
		vals, err := categories(op, c)
		if err != nil {
			return nil, err
		}
		cats := e.Categories[name]
		index := make(map[string]int, len(cats))
		cols := make([][]float64, len(cats))
		for k, cat := range cats {
			index[cat] = k
			cols[k] = make([]float64, len(vals))
		}
		for i, v := range vals {
			if k, ok := index[v]; ok {
				cols[k][i] = 1
			}
		}
		for k, cat := range cats {
			out = append(out, eis.NewFloatColumn(name+"_"+cat, cols[k]))
		}
	}
	return eis.NewTable(out...)
}

// FitTransform fits e to t and then encodes t.
func (e *OneHotEncoder) FitTransform(t *eis.Table) (*eis.Table, error) {
	if err := e.Fit(t); err != nil {
		return nil, err
	}
	return e.Transform(t)
}

// categories returns the cells of c as category labels.
func categories(op string, c eis.Column) ([]string, error) {
	switch cc := c.(type) {
	case *eis.StringColumn:
		return cc.Values, nil
	case *eis.FloatColumn:
		o := make([]string, len(cc.Values))
		for i, v := range cc.Values {
			if v == v {
				o[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		return o, nil
	default:
		return nil, eis.Errorf(eis.ErrInvalidColumn, op, "column %q cannot hold categories", c.Name())
	}
}
