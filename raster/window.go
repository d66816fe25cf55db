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

package raster

import (
	"github.com/ctessum/geom/proj"
	"github.com/spatialmodel/eis"
)

// Window returns the size×size cells of r centered on the cell that
// holds point (x, y), for every band. size must be odd and positive, and
// the whole window must lie within r.
func Window(r *Raster, x, y float64, size int) (*Raster, error) {
	const op = "raster.Window"
	if size <= 0 || size%2 == 0 {
		return nil, eis.Errorf(eis.ErrInvalidWindowSize, op, "window size must be odd and positive, got %d", size)
	}
	row, col, ok := r.Cell(x, y)
	if !ok {
		return nil, eis.Errorf(eis.ErrCoordinatesOutOfBounds, op, "point (%g, %g) is outside of the raster", x, y)
	}
	half := size / 2
	r0, c0 := row-half, col-half
	if r0 < 0 || c0 < 0 || r0+size > r.NY || c0+size > r.NX {
		return nil, eis.Errorf(eis.ErrCoordinatesOutOfBounds, op,
			"window of size %d around point (%g, %g) extends past the raster edge", size, x, y)
	}
	m := r.Meta
	m.X0 += float64(c0) * r.DX
	m.Y0 -= float64(r0) * r.DY
	m.NX, m.NY = size, size
	o, err := New(m, r.Bands())
	if err != nil {
		return nil, err
	}
	for b := 0; b < r.Bands(); b++ {
		for j := 0; j < size; j++ {
			for i := 0; i < size; i++ {
				o.Set(r.At(b, r0+j, c0+i), b, j, i)
			}
		}
	}
	return o, nil
}

// SameCRS returns an error if a and b do not use the same coordinate
// reference system. Rasters with unknown reference systems only match
// each other.
func SameCRS(a, b Meta) error {
	const op = "raster.SameCRS"
	if a.CRS == b.CRS {
		return nil
	}
	if a.CRS == "" || b.CRS == "" {
		return eis.Errorf(eis.ErrNonMatchingCRS, op, "one reference system is unknown")
	}
	sa, err := proj.Parse(a.CRS)
	if err != nil {
		return eis.Errorf(eis.ErrInvalidParameter, op, "parsing %q: %v", a.CRS, err)
	}
	sb, err := proj.Parse(b.CRS)
	if err != nil {
		return eis.Errorf(eis.ErrInvalidParameter, op, "parsing %q: %v", b.CRS, err)
	}
	if !sa.Equal(sb, 2) {
		return eis.Errorf(eis.ErrNonMatchingCRS, op, "%q != %q", a.CRS, b.CRS)
	}
	return nil
}
