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
	"math"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/mat"
)

// Column is a named column of a Table. The concrete types are
// *FloatColumn, *StringColumn, and *GeomColumn.
type Column interface {
	Name() string
	Len() int

	// subset returns a copy of the column holding only the rows in idx.
	subset(idx []int) Column
	renamed(name string) Column
}

// FloatColumn holds numeric data. Missing values are NaN.
type FloatColumn struct {
	name   string
	Values []float64
}

// NewFloatColumn returns a numeric column.
func NewFloatColumn(name string, values []float64) *FloatColumn {
	return &FloatColumn{name: name, Values: values}
}

// Name returns the column name.
func (c *FloatColumn) Name() string { return c.name }

// Len returns the number of rows.
func (c *FloatColumn) Len() int { return len(c.Values) }

func (c *FloatColumn) subset(idx []int) Column {
	o := make([]float64, len(idx))
	for i, j := range idx {
		o[i] = c.Values[j]
	}
	return NewFloatColumn(c.name, o)
}

func (c *FloatColumn) renamed(name string) Column { return NewFloatColumn(name, c.Values) }

// StringColumn holds text data, typically categories or identifiers.
type StringColumn struct {
	name   string
	Values []string
}

// NewStringColumn returns a text column.
func NewStringColumn(name string, values []string) *StringColumn {
	return &StringColumn{name: name, Values: values}
}

// Name returns the column name.
func (c *StringColumn) Name() string { return c.name }

// Len returns the number of rows.
func (c *StringColumn) Len() int { return len(c.Values) }

func (c *StringColumn) subset(idx []int) Column {
	o := make([]string, len(idx))
	for i, j := range idx {
		o[i] = c.Values[j]
	}
	return NewStringColumn(c.name, o)
}

func (c *StringColumn) renamed(name string) Column { return NewStringColumn(name, c.Values) }

// GeomColumn holds one geometry per row.
type GeomColumn struct {
	name   string
	Values []geom.Geom
}

// NewGeomColumn returns a geometry column.
func NewGeomColumn(name string, values []geom.Geom) *GeomColumn {
	return &GeomColumn{name: name, Values: values}
}

// Name returns the column name.
func (c *GeomColumn) Name() string { return c.name }

// Len returns the number of rows.
func (c *GeomColumn) Len() int { return len(c.Values) }

func (c *GeomColumn) subset(idx []int) Column {
	o := make([]geom.Geom, len(idx))
	for i, j := range idx {
		o[i] = c.Values[j]
	}
	return NewGeomColumn(c.name, o)
}

func (c *GeomColumn) renamed(name string) Column { return NewGeomColumn(name, c.Values) }

// Table is a collection of equal-length named columns. Column order
// is preserved. A Table becomes geometry-aware when one of its
// GeomColumns is designated with SetGeometry.
type Table struct {
	cols     []Column
	index    map[string]int
	geometry string
}

// NewTable creates a table from the given columns, which must have unique
// names and equal lengths.
func NewTable(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int)}
	for _, c := range cols {
		if err := t.Append(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Append adds c as the last column of t.
func (t *Table) Append(c Column) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if c == nil {
		return Errorf(ErrInvalidParameter, "Table.Append", "column is nil")
	}
	if _, ok := t.index[c.Name()]; ok {
		return Errorf(ErrInvalidColumn, "Table.Append", "duplicate column name %q", c.Name())
	}
	if len(t.cols) > 0 && c.Len() != t.NumRows() {
		return Errorf(ErrInvalidShape, "Table.Append", "column %q has %d rows but table has %d",
			c.Name(), c.Len(), t.NumRows())
	}
	t.index[c.Name()] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// NumRows returns the number of rows in t.
func (t *Table) NumRows() int {
	if t == nil || len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the number of columns in t.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.cols)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	o := make([]string, len(t.cols))
	for i, c := range t.cols {
		o[i] = c.Name()
	}
	return o
}

// Has returns whether t has a column with the given name.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Index returns the position of the named column, or -1 if it doesn't exist.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) Column { return t.cols[i] }

// Floats returns the values of the named numeric column.
func (t *Table) Floats(name string) ([]float64, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, Errorf(ErrInvalidColumn, "Table.Floats", "column %q not found", name)
	}
	fc, ok := c.(*FloatColumn)
	if !ok {
		return nil, Errorf(ErrInvalidColumn, "Table.Floats", "column %q is not numeric", name)
	}
	return fc.Values, nil
}

// Select returns a new table holding only the named columns, in the
// order given. The geometry designation is kept if the geometry
// column is selected.
func (t *Table) Select(names ...string) (*Table, error) {
	o := &Table{index: make(map[string]int)}
	for _, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return nil, Errorf(ErrInvalidColumn, "Table.Select", "column %q not found", n)
		}
		if err := o.Append(c); err != nil {
			return nil, err
		}
	}
	if t.geometry != "" && o.Has(t.geometry) {
		o.geometry = t.geometry
	}
	return o, nil
}

// Rows returns a new table holding the rows in idx, in that order.
func (t *Table) Rows(idx []int) *Table {
	o := &Table{index: make(map[string]int, len(t.cols)), geometry: t.geometry}
	for i, c := range t.cols {
		o.cols = append(o.cols, c.subset(idx))
		o.index[c.Name()] = i
	}
	return o
}

// Rename returns a copy of t with column old renamed to new.
func (t *Table) Rename(old, new string) (*Table, error) {
	i, ok := t.index[old]
	if !ok {
		return nil, Errorf(ErrInvalidColumn, "Table.Rename", "column %q not found", old)
	}
	cols := make([]Column, len(t.cols))
	copy(cols, t.cols)
	cols[i] = cols[i].renamed(new)
	o, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	if t.geometry == old {
		o.geometry = new
	} else {
		o.geometry = t.geometry
	}
	return o, nil
}

// SetGeometry designates the named GeomColumn as the table geometry.
func (t *Table) SetGeometry(name string) error {
	c, ok := t.Column(name)
	if !ok {
		return Errorf(ErrInvalidColumn, "Table.SetGeometry", "column %q not found", name)
	}
	if _, ok := c.(*GeomColumn); !ok {
		return Errorf(ErrInvalidGeometryType, "Table.SetGeometry", "column %q does not hold geometry", name)
	}
	t.geometry = name
	return nil
}

// IsGeo returns whether t has a designated geometry column.
func (t *Table) IsGeo() bool { return t != nil && t.geometry != "" }

// Geometry returns the designated geometry column.
func (t *Table) Geometry() (*GeomColumn, bool) {
	if !t.IsGeo() {
		return nil, false
	}
	c, _ := t.Column(t.geometry)
	return c.(*GeomColumn), true
}

// Matrix returns the named numeric columns as the columns of a dense
// matrix. If no names are given, all columns are used.
func (t *Table) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		names = t.Names()
	}
	if len(names) == 0 || t.NumRows() == 0 {
		return nil, Errorf(ErrEmptyTable, "Table.Matrix", "table has %d rows and %d columns", t.NumRows(), len(names))
	}
	m := mat.NewDense(t.NumRows(), len(names), nil)
	for j, n := range names {
		v, err := t.Floats(n)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, v)
	}
	return m, nil
}

// FromMatrix creates a table whose columns are the columns of m.
func FromMatrix(names []string, m mat.Matrix) (*Table, error) {
	r, c := m.Dims()
	if len(names) != c {
		return nil, Errorf(ErrInvalidShape, "FromMatrix", "%d names for %d columns", len(names), c)
	}
	cols := make([]Column, c)
	for j := 0; j < c; j++ {
		v := make([]float64, r)
		mat.Col(v, j, m)
		cols[j] = NewFloatColumn(names[j], v)
	}
	return NewTable(cols...)
}

// Hstack joins tables side by side, aligning rows by position.
// All tables must have the same number of rows and unique column names.
// The result keeps the first geometry designation found.
func Hstack(tables ...*Table) (*Table, error) {
	o := &Table{index: make(map[string]int)}
	for _, t := range tables {
		if t == nil || t.NumCols() == 0 {
			continue
		}
		if o.NumCols() > 0 && t.NumRows() != o.NumRows() {
			return nil, Errorf(ErrInvalidShape, "Hstack", "tables have different numbers of rows: %d != %d",
				o.NumRows(), t.NumRows())
		}
		for _, c := range t.cols {
			if err := o.Append(c); err != nil {
				return nil, err
			}
		}
		if o.geometry == "" {
			o.geometry = t.geometry
		}
	}
	return o, nil
}

// HasNaN returns whether any numeric value in t is NaN.
func (t *Table) HasNaN() bool {
	for _, c := range t.cols {
		if fc, ok := c.(*FloatColumn); ok {
			for _, v := range fc.Values {
				if math.IsNaN(v) {
					return true
				}
			}
		}
	}
	return false
}

// UnsetGeometry removes the geometry designation of t. The geometry
// column itself is kept.
func (t *Table) UnsetGeometry() { t.geometry = "" }
