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

package spatial

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/raster"
)

// IDW interpolates the values in the named column of the point table
// points onto a regular grid by inverse distance weighting: each node
// value is the mean of all point values weighted by 1/d^power, where d
// is the distance from the node to the point. A node that coincides with
// a point takes that point's value.
//
// res holds the cell size in x and y. The grid starts at the north-west
// corner of extent, or of the bounds of the points if extent is nil, and
// has ceil(width/res[0]) columns and ceil(height/res[1]) rows, so it may
// reach past the east and south edges of extent. Each cell holds the
// value interpolated at its center. Row 0 of the result is the
// northernmost row.
func IDW(points *eis.Table, column string, res [2]float64, extent *geom.Bounds, power float64) (*raster.Raster, error) {
	const op = "spatial.IDW"
	if points.NumRows() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "point table is empty")
	}
	values, err := points.Floats(column)
	if err != nil {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "%v", err)
	}
	gc, ok := points.Geometry()
	if !ok {
		return nil, eis.Errorf(eis.ErrInvalidGeometryType, op, "point table has no geometry")
	}
	pts := make([]geom.Point, len(gc.Values))
	for i, g := range gc.Values {
		switch p := g.(type) {
		case geom.Point:
			pts[i] = p
		case *geom.Point:
			pts[i] = *p
		default:
			return nil, eis.Errorf(eis.ErrInvalidGeometryType, op, "row %d holds %T, not a point", i, g)
		}
	}
	if !(res[0] > 0) || !(res[1] > 0) {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "resolution must be positive, got %v", res)
	}
	if !(power > 0) {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "power must be positive, got %g", power)
	}
	if extent == nil {
		extent = geom.NewBounds()
		for _, p := range pts {
			extent.Extend(geom.NewBoundsPoint(p))
		}
	}
	nx := int(math.Ceil((extent.Max.X - extent.Min.X) / res[0]))
	ny := int(math.Ceil((extent.Max.Y - extent.Min.Y) / res[1]))
	if nx <= 0 || ny <= 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "extent %+v holds no grid nodes", *extent)
	}
	meta := raster.Meta{
		X0: extent.Min.X, Y0: extent.Max.Y,
		DX: res[0], DY: res[1],
		NX: nx, NY: ny,
	}
	out, err := raster.New(meta, 1)
	if err != nil {
		return nil, err
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			c := meta.Center(j, i)
			out.Set(idw(pts, values, c.X, c.Y, power), 0, j, i)
		}
	}
	return out, nil
}

func idw(pts []geom.Point, values []float64, x, y, power float64) float64 {
	var sum, wsum float64
	for k, p := range pts {
		d := math.Hypot(p.X-x, p.Y-y)
		if d == 0 {
			return values[k]
		}
		w := 1 / math.Pow(d, power)
		sum += w * values[k]
		wsum += w
	}
	return sum / wsum
}
