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

// Package stattest computes descriptive statistical tests of tables.
package stattest

import (
	"fmt"
	"math"
	"sort"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normality is the result of a Jarque-Bera test.
type Normality struct {
	Statistic float64
	PValue    float64
}

// Summary holds descriptive statistics of a column.
type Summary struct {
	Min, Max, Mean, StdDev float64
}

// NumericalResult holds the statistics of the numeric columns of a table.
type NumericalResult struct {
	// Columns names the rows and columns of the matrices.
	Columns     []string
	Correlation *mat.SymDense
	Covariance  *mat.SymDense
	Normality   map[string]Normality
	Summary     map[string]Summary
}

// Numerical computes the Pearson correlation and covariance matrices of
// the numeric columns of t, along with a summary and a Jarque-Bera
// normality test of each one. Covariances are normalized by n - ddof.
// Text and geometry columns are ignored.
func Numerical(t *eis.Table, ddof int) (*NumericalResult, error) {
	const op = "stattest.Numerical"
	if t.NumRows() == 0 || t.NumCols() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "table is empty")
	}
	if ddof < 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "delta degrees of freedom must be non-negative, got %d", ddof)
	}
	n := t.NumRows()
	if n-ddof <= 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "delta degrees of freedom %d leaves no degrees of freedom for %d rows", ddof, n)
	}
	var names []string
	for _, name := range t.Names() {
		if c, _ := t.Column(name); isFloat(c) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidColumn, op, "table has no numeric columns")
	}
	x, err := t.Matrix(names...)
	if err != nil {
		return nil, err
	}
	for j, name := range names {
		for i := 0; i < n; i++ {
			if math.IsNaN(x.At(i, j)) {
				return nil, eis.Errorf(eis.ErrInvalidContent, op, "column %s has missing values", name)
			}
		}
	}

	res := &NumericalResult{
		Columns:   names,
		Normality: make(map[string]Normality, len(names)),
		Summary:   make(map[string]Summary, len(names)),
	}
	if n > 1 {
		res.Correlation = mat.NewSymDense(len(names), nil)
		stat.CorrelationMatrix(res.Correlation, x, nil)
		res.Covariance = mat.NewSymDense(len(names), nil)
		stat.CovarianceMatrix(res.Covariance, x, nil)
		res.Covariance.ScaleSym(float64(n-1)/float64(n-ddof), res.Covariance)
	}
	col := make([]float64, n)
	for j, name := range names {
		mat.Col(col, j, x)
		res.Normality[name] = JarqueBera(col)
		res.Summary[name] = Summary{
			Min:    stats.StatsMin(col),
			Max:    stats.StatsMax(col),
			Mean:   stats.StatsMean(col),
			StdDev: stats.StatsSampleStandardDeviation(col),
		}
	}
	return res, nil
}

// JarqueBera tests whether x is normally distributed using its sample
// skewness S and excess kurtosis K: JB = n/6 (S² + K²/4), which is
// asymptotically chi-square distributed with two degrees of freedom.
func JarqueBera(x []float64) Normality {
	n := float64(len(x))
	m2 := stat.Moment(2, x, nil)
	if m2 == 0 {
		return Normality{Statistic: math.NaN(), PValue: math.NaN()}
	}
	s := stat.Moment(3, x, nil) / math.Pow(m2, 1.5)
	k := stat.Moment(4, x, nil)/(m2*m2) - 3
	jb := n / 6 * (s*s + k*k/4)
	return Normality{Statistic: jb, PValue: distuv.ChiSquared{K: 2}.Survival(jb)}
}

func isFloat(c eis.Column) bool {
	_, ok := c.(*eis.FloatColumn)
	return ok
}

// ChiSquare is the result of a chi-square test of independence.
type ChiSquare struct {
	Statistic float64
	PValue    float64
	DOF       int
}

// Categorical tests each non-geometry column of t other than target for
// independence from target with a chi-square test on their contingency
// table. Values are compared as text. Tables with one degree of freedom
// get Yates' continuity correction.
func Categorical(t *eis.Table, target string) (map[string]ChiSquare, error) {
	const op = "stattest.Categorical"
	if t.NumRows() == 0 || t.NumCols() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "table is empty")
	}
	if target == "" || !t.Has(target) {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "target column %q is not in table", target)
	}
	tc, _ := t.Column(target)
	y, err := labels(tc)
	if err != nil {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "%v", err)
	}
	res := make(map[string]ChiSquare)
	for _, name := range t.Names() {
		if name == target {
			continue
		}
		c, _ := t.Column(name)
		x, err := labels(c)
		if err != nil {
			continue
		}
		res[name] = chiSquare(x, y)
	}
	return res, nil
}

// labels returns the values of c as text.
func labels(c eis.Column) ([]string, error) {
	switch c := c.(type) {
	case *eis.FloatColumn:
		o := make([]string, len(c.Values))
		for i, v := range c.Values {
			o[i] = fmt.Sprint(v)
		}
		return o, nil
	case *eis.StringColumn:
		return c.Values, nil
	default:
		return nil, fmt.Errorf("column %s is not categorical", c.Name())
	}
}

func chiSquare(x, y []string) ChiSquare {
	rows, cols := levels(x), levels(y)
	obs := mat.NewDense(len(rows), len(cols), nil)
	for i := range x {
		r, c := rows[x[i]], cols[y[i]]
		obs.Set(r, c, obs.At(r, c)+1)
	}
	nr, nc := obs.Dims()
	rowSum, colSum := make([]float64, nr), make([]float64, nc)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			rowSum[i] += obs.At(i, j)
			colSum[j] += obs.At(i, j)
		}
	}
	total := float64(len(x))
	dof := (nr - 1) * (nc - 1)
	if dof == 0 {
		return ChiSquare{PValue: 1}
	}
	var chi2 float64
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			e := rowSum[i] * colSum[j] / total
			d := math.Abs(obs.At(i, j) - e)
			if dof == 1 {
				d -= math.Min(0.5, d)
			}
			chi2 += d * d / e
		}
	}
	return ChiSquare{
		Statistic: chi2,
		PValue:    distuv.ChiSquared{K: float64(dof)}.Survival(chi2),
		DOF:       dof,
	}
}

// levels maps each distinct value to its index in sorted order.
func levels(v []string) map[string]int {
	set := make(map[string]int)
	for _, s := range v {
		set[s] = 0
	}
	sorted := make([]string, 0, len(set))
	for s := range set {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)
	for i, s := range sorted {
		set[s] = i
	}
	return set
}
