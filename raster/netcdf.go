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
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
)

// VarName is the name of the netCDF variable holding raster data.
const VarName = "band"

// Read reads a raster from a netCDF file created by Write.
func Read(rw cdf.ReaderWriterAt) (*Raster, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("eis: raster.Read: %v", err)
	}
	var m Meta
	for _, a := range []struct {
		name string
		dst  *float64
	}{{"x0", &m.X0}, {"y0", &m.Y0}, {"dx", &m.DX}, {"dy", &m.DY}} {
		v, ok := f.Header.GetAttribute("", a.name).([]float64)
		if !ok || len(v) != 1 {
			return nil, eis.Errorf(eis.ErrInvalidContent, "raster.Read", "missing attribute %s", a.name)
		}
		*a.dst = v[0]
	}
	nx, okx := f.Header.GetAttribute("", "nx").([]int32)
	ny, oky := f.Header.GetAttribute("", "ny").([]int32)
	if !okx || !oky || len(nx) != 1 || len(ny) != 1 {
		return nil, eis.Errorf(eis.ErrInvalidContent, "raster.Read", "missing grid dimensions")
	}
	m.NX, m.NY = int(nx[0]), int(ny[0])
	if v, ok := f.Header.GetAttribute("", "nodata").([]float64); ok && len(v) == 1 {
		m.NoData, m.HasNoData = v[0], true
	}
	if crs, ok := f.Header.GetAttribute("", "crs").(string); ok {
		m.CRS = crs
	}
	if err = m.check("raster.Read"); err != nil {
		return nil, err
	}

	dims := f.Header.Lengths(VarName)
	if len(dims) != 3 || dims[1] != m.NY || dims[2] != m.NX {
		return nil, eis.Errorf(eis.ErrInvalidShape, "raster.Read", "variable %s has dims %v but grid is %dx%d",
			VarName, dims, m.NY, m.NX)
	}
	o := &Raster{Meta: m, Data: sparse.ZerosDense(dims...)}
	tmp := make([]float32, len(o.Data.Elements))
	if _, err = f.Reader(VarName, nil, nil).Read(tmp); err != nil {
		return nil, fmt.Errorf("eis: raster.Read: %v", err)
	}
	for i, v := range tmp {
		o.Data.Elements[i] = float64(v)
	}
	return o, nil
}

// Write writes r to netCDF file w.
func (r *Raster) Write(w *os.File) error {
	h := cdf.NewHeader([]string{"bands", "y", "x"}, []int{r.Bands(), r.NY, r.NX})
	h.AddAttribute("", "comment", "EIS raster data file")
	h.AddAttribute("", "x0", []float64{r.X0})
	h.AddAttribute("", "y0", []float64{r.Y0})
	h.AddAttribute("", "dx", []float64{r.DX})
	h.AddAttribute("", "dy", []float64{r.DY})
	h.AddAttribute("", "nx", []int32{int32(r.NX)})
	h.AddAttribute("", "ny", []int32{int32(r.NY)})
	if r.HasNoData {
		h.AddAttribute("", "nodata", []float64{r.NoData})
	}
	if r.CRS != "" {
		h.AddAttribute("", "crs", r.CRS)
	}
	h.AddVariable(VarName, []string{"bands", "y", "x"}, []float32{0})
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("eis: raster.Write: %v", err)
	}
	data32 := make([]float32, len(r.Data.Elements))
	for i, e := range r.Data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(VarName)
	start := make([]int, len(end))
	if _, err = f.Writer(VarName, start, end).Write(data32); err != nil {
		return fmt.Errorf("eis: raster.Write: %v", err)
	}
	return cdf.UpdateNumRecs(w)
}
