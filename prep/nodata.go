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
	"math"
	"sort"

	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/stat"
)

// Strategy selects how ReplaceNoData fills missing cells.
type Strategy string

// Replacement strategies.
const (
	Mean         Strategy = "mean"
	Median       Strategy = "median"
	MostFrequent Strategy = "most_frequent"
	Constant     Strategy = "n"
)

func missing(c eis.Column, i int) bool {
	switch cc := c.(type) {
	case *eis.FloatColumn:
		return math.IsNaN(cc.Values[i])
	case *eis.StringColumn:
		return cc.Values[i] == ""
	case *eis.GeomColumn:
		return cc.Values[i] == nil
	}
	return false
}

// RemoveNoData drops every row of t that has a missing cell: NaN numbers,
// empty strings, or nil geometries. keep reports, for every row of t,
// whether it was kept.
func RemoveNoData(t *eis.Table) (out *eis.Table, keep []bool, err error) {
	if t == nil || t.NumCols() == 0 {
		return nil, nil, eis.Errorf(eis.ErrEmptyTable, "prep.RemoveNoData", "table has no columns")
	}
	keep = make([]bool, t.NumRows())
	var idx []int
	for i := range keep {
		keep[i] = true
		for j := 0; j < t.NumCols(); j++ {
			if missing(t.ColumnAt(j), i) {
				keep[i] = false
				break
			}
		}
		if keep[i] {
			idx = append(idx, i)
		}
	}
	return t.Rows(idx), keep, nil
}

// ReplaceNoData returns a copy of t with missing cells filled in according
// to strategy. Mean and Median apply to numeric columns only; MostFrequent
// applies to numeric and text columns; Constant fills numeric columns with
// value. Geometry columns are left unchanged.
func ReplaceNoData(t *eis.Table, strategy Strategy, value float64) (*eis.Table, error) {
	const op = "prep.ReplaceNoData"
	if t == nil || t.NumCols() == 0 || t.NumRows() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "table is empty")
	}
	switch strategy {
	case Mean, Median, MostFrequent, Constant:
	default:
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "unknown strategy %q", strategy)
	}
	cols := make([]eis.Column, t.NumCols())
	for j := range cols {
		c := t.ColumnAt(j)
		switch cc := c.(type) {
		case *eis.FloatColumn:
			fill, err := floatFill(op, cc, strategy, value)
			if err != nil {
				return nil, err
			}
			v := make([]float64, len(cc.Values))
			for i, x := range cc.Values {
				if math.IsNaN(x) {
					x = fill
				}
				v[i] = x
			}
			cols[j] = eis.NewFloatColumn(c.Name(), v)
		case *eis.StringColumn:
			if strategy != MostFrequent {
				return nil, eis.Errorf(eis.ErrInvalidParameter, op,
					"strategy %q cannot be used with text column %q", strategy, c.Name())
			}
			fill := mostFrequent(cc.Values)
			v := make([]string, len(cc.Values))
			for i, x := range cc.Values {
				if x == "" {
					x = fill
				}
				v[i] = x
			}
			cols[j] = eis.NewStringColumn(c.Name(), v)
		default:
			cols[j] = c
		}
	}
	out, err := eis.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	if g, ok := t.Geometry(); ok {
		if err := out.SetGeometry(g.Name()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func floatFill(op string, c *eis.FloatColumn, strategy Strategy, value float64) (float64, error) {
	if strategy == Constant {
		return value, nil
	}
	var valid []float64
	for _, v := range c.Values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, eis.Errorf(eis.ErrInvalidContent, op, "column %q has no valid values", c.Name())
	}
	switch strategy {
	case Mean:
		return stat.Mean(valid, nil), nil
	case Median:
		sort.Float64s(valid)
		n := len(valid)
		if n%2 == 1 {
			return valid[n/2], nil
		}
		return (valid[n/2-1] + valid[n/2]) / 2, nil
	default:
		mode, _ := stat.Mode(valid, nil)
		return mode, nil
	}
}

// mostFrequent returns the most common non-empty value, preferring the
// lexically smallest on ties.
func mostFrequent(v []string) string {
	counts := make(map[string]int)
	for _, s := range v {
		if s != "" {
			counts[s]++
		}
	}
	var best string
	n := 0
	for s, c := range counts {
		if c > n || (c == n && s < best) {
			best, n = s, c
		}
	}
	return best
}
