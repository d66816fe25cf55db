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

// Package spatial computes derived grids: distances to features in a
// raster, and surfaces interpolated from scattered points.
package spatial

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/raster"
)

// DistanceOptions control DistanceTransform.
type DistanceOptions struct {
	// Threshold, if not nil, makes every cell whose value is at least
	// Threshold a feature cell. Otherwise the raster must be binary:
	// each band must hold exactly two distinct values, and cells holding
	// the larger one are feature cells.
	Threshold *float64

	// Sampling measures distances in raster coordinate units using the
	// cell size. Otherwise distances are in cells.
	Sampling bool
}

// site is a feature cell center.
type site struct {
	geom.Point
}

// DistanceTransform returns a raster with the same metadata as r in
// which every cell holds the Euclidean distance from its center to the
// center of the nearest feature cell in the same band. Feature cells
// hold zero. Missing cells are never feature cells.
func DistanceTransform(r *raster.Raster, opts DistanceOptions) (*raster.Raster, error) {
	const op = "spatial.DistanceTransform"
	if r == nil || r.Data == nil || len(r.Data.Elements) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "raster is empty")
	}
	sx, sy := 1.0, 1.0
	if opts.Sampling {
		sx, sy = r.DX, r.DY
	}
	out, err := raster.New(r.Meta, r.Bands())
	if err != nil {
		return nil, err
	}
	for b := 0; b < r.Bands(); b++ {
		mask, err := featureMask(op, r, b, opts.Threshold)
		if err != nil {
			return nil, err
		}
		tree := rtree.NewTree(25, 50)
		n := 0
		for j := 0; j < r.NY; j++ {
			for i := 0; i < r.NX; i++ {
				if mask[j*r.NX+i] {
					tree.Insert(site{geom.Point{X: float64(i) * sx, Y: float64(j) * sy}})
					n++
				}
			}
		}
		if n == 0 {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "band %d has no feature cells", b)
		}
		step := math.Max(sx, sy)
		for j := 0; j < r.NY; j++ {
			for i := 0; i < r.NX; i++ {
				if mask[j*r.NX+i] {
					continue
				}
				p := geom.Point{X: float64(i) * sx, Y: float64(j) * sy}
				out.Set(nearest(tree, p, step), b, j, i)
			}
		}
	}
	return out, nil
}

// nearest returns the distance from p to the closest site in tree,
// which must not be empty. It grows a search box around p until the box
// holds a site, then searches a box large enough to hold every site that
// could be closer than that one.
func nearest(tree *rtree.Rtree, p geom.Point, step float64) float64 {
	box := func(r float64) *geom.Bounds {
		return &geom.Bounds{
			Min: geom.Point{X: p.X - r, Y: p.Y - r},
			Max: geom.Point{X: p.X + r, Y: p.Y + r},
		}
	}
	minDist := func(sites []geom.Geom) float64 {
		d := math.Inf(1)
		for _, s := range sites {
			sp := s.(site).Point
			d = math.Min(d, math.Hypot(sp.X-p.X, sp.Y-p.Y))
		}
		return d
	}
	r := step
	var found []geom.Geom
	for {
		found = tree.SearchIntersect(box(r))
		if len(found) > 0 {
			break
		}
		r *= 2
	}
	d := minDist(found)
	return math.Min(d, minDist(tree.SearchIntersect(box(d))))
}

// featureMask returns whether each cell of band b is a feature cell.
func featureMask(op string, r *raster.Raster, b int, threshold *float64) ([]bool, error) {
	vals := r.Band(b)
	mask := make([]bool, len(vals))
	if threshold != nil {
		for i, v := range vals {
			mask[i] = !r.IsNoData(v) && v >= *threshold
		}
		return mask, nil
	}
	unique := make(map[float64]bool)
	for _, v := range vals {
		if !r.IsNoData(v) {
			unique[v] = true
		}
	}
	if len(unique) != 2 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op,
			"band %d has %d distinct values; without a threshold it must be binary", b, len(unique))
	}
	u := make([]float64, 0, 2)
	for v := range unique {
		u = append(u, v)
	}
	sort.Float64s(u)
	for i, v := range vals {
		mask[i] = v == u[1]
	}
	return mask, nil
}
