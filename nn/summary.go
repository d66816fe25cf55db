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

package nn

import (
	"math"

	"github.com/spatialmodel/eis"
)

// z95 is the standard normal quantile of a two-sided 95% interval.
const z95 = 1.96

// Interval is the predicted distribution of one sample paired with the
// observed value.
type Interval struct {
	Mean   float64
	StdDev float64
	Lower  float64
	Upper  float64
	Actual float64
}

// Summarize returns the 95% confidence interval, mean ± 1.96×stddev, of
// each predicted sample along with its observed value. Mean, StdDev and
// the interval bounds are rounded to two decimals; the bounds are
// computed before rounding.
func Summarize(mean, stddev, actual []float64) ([]Interval, error) {
	if len(mean) != len(stddev) || len(mean) != len(actual) {
		return nil, eis.Errorf(eis.ErrInvalidParameter, "nn.Summarize",
			"lengths of mean (%d), stddev (%d) and actual (%d) differ", len(mean), len(stddev), len(actual))
	}
	o := make([]Interval, len(mean))
	for i, m := range mean {
		s := stddev[i]
		o[i] = Interval{
			Mean:   round2(m),
			StdDev: round2(s),
			Lower:  round2(m - z95*s),
			Upper:  round2(m + z95*s),
			Actual: actual[i],
		}
	}
	return o, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// IntervalTable returns the intervals as a table with the columns
// "mean", "stddev", "95% CI lower", "95% CI upper" and "Actual".
func IntervalTable(iv []Interval) *eis.Table {
	cols := make([][]float64, 5)
	for i := range cols {
		cols[i] = make([]float64, len(iv))
	}
	for i, v := range iv {
		cols[0][i], cols[1][i], cols[2][i], cols[3][i], cols[4][i] = v.Mean, v.StdDev, v.Lower, v.Upper, v.Actual
	}
	t, err := eis.NewTable(
		eis.NewFloatColumn("mean", cols[0]),
		eis.NewFloatColumn("stddev", cols[1]),
		eis.NewFloatColumn("95% CI lower", cols[2]),
		eis.NewFloatColumn("95% CI upper", cols[3]),
		eis.NewFloatColumn("Actual", cols[4]),
	)
	if err != nil {
		panic(err)
	}
	return t
}
