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
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// ReadShapefile reads the named attribute fields and the geometry of every
// record in the shapefile at path. If no fields are given, all attribute
// fields are read. Numeric attribute fields become FloatColumns and the
// rest become StringColumns. The returned table's geometry column is
// named "geometry".
func ReadShapefile(path string, fields ...string) (*Table, error) {
	d, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("eis: ReadShapefile: %v", err)
	}
	defer d.Close()

	numeric := make(map[string]bool)
	for _, f := range d.Fields() {
		name := fieldName(f.Name)
		numeric[strings.ToLower(name)] = f.Fieldtype == 'N' || f.Fieldtype == 'F'
	}
	if len(fields) == 0 {
		for _, f := range d.Fields() {
			fields = append(fields, fieldName(f.Name))
		}
	}

	var geoms []geom.Geom
	vals := make([][]string, len(fields))
	for {
		g, rec, more := d.DecodeRowFields(fields...)
		if !more {
			break
		}
		geoms = append(geoms, g)
		for i, f := range fields {
			vals[i] = append(vals[i], strings.TrimSpace(rec[f]))
		}
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("eis: ReadShapefile: %v", err)
	}

	cols := make([]Column, 0, len(fields)+1)
	for i, f := range fields {
		if !numeric[strings.ToLower(f)] {
			cols = append(cols, NewStringColumn(f, vals[i]))
			continue
		}
		v := make([]float64, len(vals[i]))
		for j, s := range vals[i] {
			if s == "" {
				v[j] = math.NaN()
				continue
			}
			v[j], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, Errorf(ErrInvalidContent, "ReadShapefile", "field %s row %d: %v", f, j, err)
			}
		}
		cols = append(cols, NewFloatColumn(f, v))
	}
	cols = append(cols, NewGeomColumn(GeometryName, geoms))
	t, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	if err = t.SetGeometry(GeometryName); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteShapefile writes the geometry-aware table t to a shapefile at path.
// All geometries must be of the same kind: points, polygons,
// multi-line-strings, or multi-points.
func WriteShapefile(path string, t *Table) error {
	gc, ok := t.Geometry()
	if !ok {
		return Errorf(ErrInvalidGeometryType, "WriteShapefile", "table has no geometry column")
	}
	if t.NumRows() == 0 {
		return Errorf(ErrEmptyTable, "WriteShapefile", "table has no rows")
	}
	st, err := shapeType(gc.Values[0])
	if err != nil {
		return err
	}
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(strings.TrimSuffix(path, ".shp") + ext)
	}

	var fields []goshp.Field
	var cols []Column
	for _, c := range t.cols {
		switch cc := c.(type) {
		case *FloatColumn:
			fields = append(fields, goshp.FloatField(c.Name(), 24, 10))
		case *StringColumn:
			n := 1
			for _, s := range cc.Values {
				if len(s) > n {
					n = len(s)
				}
			}
			if n > 254 {
				n = 254
			}
			fields = append(fields, goshp.StringField(c.Name(), uint8(n)))
		default:
			continue
		}
		cols = append(cols, c)
	}

	e, err := shp.NewEncoderFromFields(path, st, fields...)
	if err != nil {
		return fmt.Errorf("eis: WriteShapefile: %v", err)
	}
	defer e.Close()
	vals := make([]interface{}, len(cols))
	for i, g := range gc.Values {
		if gst, err := shapeType(g); err != nil {
			return err
		} else if gst != st {
			return Errorf(ErrInvalidGeometryType, "WriteShapefile", "row %d has a different geometry type than row 0", i)
		}
		for j, c := range cols {
			switch cc := c.(type) {
			case *FloatColumn:
				vals[j] = cc.Values[i]
			case *StringColumn:
				vals[j] = cc.Values[i]
			}
		}
		if err := e.EncodeFields(g, vals...); err != nil {
			return fmt.Errorf("eis: WriteShapefile: %v", err)
		}
	}
	return nil
}

func shapeType(g geom.Geom) (goshp.ShapeType, error) {
	switch g.(type) {
	case geom.Point:
		return goshp.POINT, nil
	case geom.Polygon:
		return goshp.POLYGON, nil
	case geom.MultiLineString:
		return goshp.POLYLINE, nil
	case geom.MultiPoint:
		return goshp.MULTIPOINT, nil
	default:
		return 0, Errorf(ErrInvalidGeometryType, "WriteShapefile", "unsupported geometry type %T", g)
	}
}

func fieldName(name [11]byte) string {
	n := 0
	for n < len(name) && name[n] != 0 {
		n++
	}
	return string(name[:n])
}
