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

package eisutil

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/stattest"
	"gonum.org/v1/gonum/mat"
)

// renderTable prints t to w.
func renderTable(w io.Writer, t *eis.Table) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	names := t.Names()
	header := make(table.Row, len(names))
	for i, n := range names {
		header[i] = n
	}
	tw.AppendHeader(header)
	for i := 0; i < t.NumRows(); i++ {
		row := make(table.Row, len(names))
		for j := range names {
			row[j] = cell(t.ColumnAt(j), i)
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

func cell(c eis.Column, i int) string {
	switch c := c.(type) {
	case *eis.FloatColumn:
		if math.IsNaN(c.Values[i]) {
			return "NULL"
		}
		return strconv.FormatFloat(c.Values[i], 'g', -1, 64)
	case *eis.StringColumn:
		return c.Values[i]
	case *eis.GeomColumn:
		return fmt.Sprintf("%T", c.Values[i])
	default:
		return ""
	}
}

// renderMatrix prints the square matrix m, whose rows and columns are
// named by names, to w.
func renderMatrix(w io.Writer, title string, names []string, m mat.Matrix) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(title)

	header := table.Row{""}
	for _, n := range names {
		header = append(header, n)
	}
	tw.AppendHeader(header)
	for i, n := range names {
		row := table.Row{n}
		for j := range names {
			row = append(row, strconv.FormatFloat(m.At(i, j), 'g', 6, 64))
		}
		tw.AppendRow(row)
	}
	tw.Render()
}

// Stats prints the statistical tests of t to w. typ is either
// "numerical", for correlation, covariance, summary and normality
// statistics, or "categorical", for chi-square tests of each column
// against target.
func Stats(w io.Writer, t *eis.Table, typ, target string, ddof int) error {
	switch typ {
	case "numerical":
		res, err := stattest.Numerical(t, ddof)
		if err != nil {
			return err
		}
		if res.Correlation != nil {
			renderMatrix(w, "Correlation", res.Columns, res.Correlation)
			renderMatrix(w, "Covariance", res.Columns, res.Covariance)
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.SetTitle("Summary")
		tw.AppendHeader(table.Row{"Column", "Min", "Max", "Mean", "Std. dev.", "Jarque-Bera", "p-value"})
		for _, c := range res.Columns {
			s, n := res.Summary[c], res.Normality[c]
			tw.AppendRow(table.Row{c, s.Min, s.Max, s.Mean, s.StdDev, n.Statistic, n.PValue})
		}
		tw.Render()
		return nil
	case "categorical":
		res, err := stattest.Categorical(t, target)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(res))
		for n := range res {
			names = append(names, n)
		}
		sort.Strings(names)
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.SetTitle(fmt.Sprintf("Chi-square tests against %s", target))
		tw.AppendHeader(table.Row{"Column", "Chi-square", "p-value", "DOF"})
		for _, n := range names {
			r := res[n]
			tw.AppendRow(table.Row{n, r.Statistic, r.PValue, r.DOF})
		}
		tw.Render()
		return nil
	default:
		return eis.Errorf(eis.ErrInvalidParameter, "eisutil.Stats",
			"test type must be 'numerical' or 'categorical', got %q", typ)
	}
}
