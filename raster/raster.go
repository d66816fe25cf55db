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

// Package raster holds gridded data along with its spatial metadata and
// reads and writes it as netCDF.
package raster

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
)

// Meta is the spatial metadata of a raster. Row 0 is the northernmost
// row and column 0 is the westernmost column.
type Meta struct {
	// X0 and Y0 are the coordinates of the upper-left (north-west)
	// corner of the grid.
	X0, Y0 float64

	// DX and DY are the cell width and height. Both are positive.
	DX, DY float64

	NX, NY int

	// CRS is the coordinate reference system as a PROJ.4 string or
	// WKT. It may be empty if unknown.
	CRS string

	// NoData is the value marking missing cells if HasNoData is true.
	// NaN cells are always missing.
	NoData    float64
	HasNoData bool
}

// Bounds returns the extent of the grid.
func (m Meta) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: m.X0, Y: m.Y0 - float64(m.NY)*m.DY},
		Max: geom.Point{X: m.X0 + float64(m.NX)*m.DX, Y: m.Y0},
	}
}

// Center returns the coordinates of the center of the given cell.
func (m Meta) Center(row, col int) geom.Point {
	return geom.Point{
		X: m.X0 + (float64(col)+0.5)*m.DX,
		Y: m.Y0 - (float64(row)+0.5)*m.DY,
	}
}

// Cell returns the row and column of the cell holding point (x, y).
// ok is false if the point is outside of the grid.
func (m Meta) Cell(x, y float64) (row, col int, ok bool) {
	col = int(math.Floor((x - m.X0) / m.DX))
	row = int(math.Floor((m.Y0 - y) / m.DY))
	ok = col >= 0 && col < m.NX && row >= 0 && row < m.NY
	return
}

// IsNoData returns whether v marks a missing cell.
func (m Meta) IsNoData(v float64) bool {
	return math.IsNaN(v) || (m.HasNoData && v == m.NoData)
}

func (m Meta) check(op string) error {
	if m.NX <= 0 || m.NY <= 0 {
		return eis.Errorf(eis.ErrInvalidShape, op, "grid is %dx%d", m.NX, m.NY)
	}
	if !(m.DX > 0) || !(m.DY > 0) {
		return eis.Errorf(eis.ErrInvalidParameter, op, "cell size must be positive, got %gx%g", m.DX, m.DY)
	}
	return nil
}

// Raster is one or more bands of gridded data. Data has the shape
// (band, row, column).
type Raster struct {
	Meta
	Data *sparse.DenseArray
}

// New returns a raster of zeros with the given metadata and number of bands.
func New(m Meta, bands int) (*Raster, error) {
	if err := m.check("raster.New"); err != nil {
		return nil, err
	}
	if bands <= 0 {
		return nil, eis.Errorf(eis.ErrInvalidShape, "raster.New", "need at least one band, got %d", bands)
	}
	return &Raster{Meta: m, Data: sparse.ZerosDense(bands, m.NY, m.NX)}, nil
}

// Bands returns the number of bands in r.
func (r *Raster) Bands() int { return r.Data.Shape[0] }

// At returns the value of a cell.
func (r *Raster) At(band, row, col int) float64 { return r.Data.Get(band, row, col) }

// Set sets the value of a cell.
func (r *Raster) Set(v float64, band, row, col int) { r.Data.Set(v, band, row, col) }

// Band returns the values of one band in row-major order. The returned
// slice shares memory with r.
func (r *Raster) Band(b int) []float64 {
	n := r.NX * r.NY
	return r.Data.Elements[b*n : (b+1)*n]
}
