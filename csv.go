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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

// GeometryName is the name of the geometry column created by the
// table readers.
const GeometryName = "geometry"

// CSVOptions control how ReadCSV parses its input.
type CSVOptions struct {
	// Comma is the field delimiter. It defaults to ','.
	Comma rune

	// DecimalComma specifies that numbers use ',' as the decimal
	// separator, as in German-formatted files. Comma should then be
	// set to something else, usually ';'.
	DecimalComma bool

	// NoData lists cell values that are read as missing (NaN).
	// Empty cells are always missing.
	NoData []string

	// X and Y, if both set, name numeric columns holding point
	// coordinates. The result then gets a point geometry column
	// named "geometry".
	X, Y string
}

// ReadCSV reads a table with a header row from r. A column is numeric if
// every non-missing cell parses as a number; otherwise it is read as text.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("eis: ReadCSV: %v", err)
	}
	return fromRecords("ReadCSV", recs, opts)
}

// fromRecords builds a table from a header row followed by data rows.
func fromRecords(op string, recs [][]string, opts CSVOptions) (*Table, error) {
	if len(recs) == 0 {
		return nil, Errorf(ErrEmptyTable, op, "missing header row")
	}
	header := recs[0]
	recs = recs[1:]
	nodata := make(map[string]bool, len(opts.NoData))
	for _, n := range opts.NoData {
		nodata[n] = true
	}

	cols := make([]Column, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		fv := make([]float64, len(recs))
		numeric := true
		for i, rec := range recs {
			s := strings.TrimSpace(rec[j])
			if s == "" || nodata[s] {
				fv[i] = math.NaN()
				continue
			}
			if opts.DecimalComma {
				s = strings.Replace(s, ",", ".", 1)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				numeric = false
				break
			}
			fv[i] = v
		}
		if numeric {
			cols[j] = NewFloatColumn(name, fv)
			continue
		}
		sv := make([]string, len(recs))
		for i, rec := range recs {
			sv[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = NewStringColumn(name, sv)
	}
	t, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	if opts.X == "" || opts.Y == "" {
		return t, nil
	}
	x, err := t.Floats(opts.X)
	if err != nil {
		return nil, err
	}
	y, err := t.Floats(opts.Y)
	if err != nil {
		return nil, err
	}
	g := make([]geom.Geom, len(x))
	for i := range x {
		g[i] = geom.Point{X: x[i], Y: y[i]}
	}
	if err = t.Append(NewGeomColumn(GeometryName, g)); err != nil {
		return nil, err
	}
	if err = t.SetGeometry(GeometryName); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteCSV writes t to w with a header row. Missing numbers are written
// as empty cells. Point geometries are written as "x y" pairs; other
// geometry kinds are written as their bounding boxes.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	rec := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range t.cols {
			rec[j] = cellString(c, i)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(c Column, i int) string {
	switch cc := c.(type) {
	case *FloatColumn:
		v := cc.Values[i]
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case *StringColumn:
		return cc.Values[i]
	case *GeomColumn:
		switch g := cc.Values[i].(type) {
		case nil:
			return ""
		case geom.Point:
			return fmt.Sprintf("%g %g", g.X, g.Y)
		case *geom.Point:
			return fmt.Sprintf("%g %g", g.X, g.Y)
		default:
			b := g.Bounds()
			return fmt.Sprintf("%g %g %g %g", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
		}
	default:
		panic(fmt.Errorf("eis: invalid column type %T", c))
	}
}
