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

package nn

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/raster"
)

// RasterSource is one raster listed in a master file.
type RasterSource struct {
	// Path is the netCDF raster file. Relative paths are relative to
	// the master file.
	Path string `toml:"path"`
}

// MasterFile lists the rasters of each modality. In TOML it is written
// as one array of tables per modality:
//
//	[[Magnetic]]
//	path = "magnetic_total_field.ncf"
//
//	[[Gravity]]
//	path = "bouguer.ncf"
type MasterFile map[Modality][]RasterSource

// ReadMasterFile reads and checks a master file.
func ReadMasterFile(path string) (MasterFile, error) {
	const op = "nn.ReadMasterFile"
	var raw map[string][]RasterSource
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "%s: %v", path, err)
	}
	mf := make(MasterFile, len(raw))
	dir := filepath.Dir(path)
	for name, srcs := range raw {
		mod := Modality(name)
		if !knownModality(mod) {
			return nil, eis.Errorf(eis.ErrInvalidContent, op, "unknown modality %q in %s", name, path)
		}
		if len(srcs) == 0 {
			return nil, eis.Errorf(eis.ErrInvalidContent, op, "modality %s lists no rasters", name)
		}
		for i, s := range srcs {
			if s.Path == "" {
				return nil, eis.Errorf(eis.ErrInvalidContent, op, "raster %d of %s has no path", i, name)
			}
			if !filepath.IsAbs(s.Path) {
				srcs[i].Path = filepath.Join(dir, s.Path)
			}
		}
		mf[mod] = srcs
	}
	if len(mf) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "%s lists no rasters", path)
	}
	return mf, nil
}

// DatasetConfig configures LoadDataset.
type DatasetConfig struct {
	// DepositPath is a CSV file of known deposit locations.
	DepositPath string

	// UnlabelledPath is a CSV file of locations with unknown labels,
	// from which negative samples are drawn.
	UnlabelledPath string

	// MasterPath is the master file listing the rasters.
	MasterPath string

	// WindowSize is the side length, in cells, of the window extracted
	// around each location. It must be odd.
	WindowSize int

	// X and Y name the coordinate columns of both CSV files. They
	// default to "E" and "N".
	X, Y string

	// Rand draws the negative samples.
	Rand *rand.Rand
}

// LoadDataset extracts a window around every deposit and around as many
// locations drawn without replacement from the unlabelled file. Deposits
// are labelled 1 and drawn locations 0. Each modality becomes one input
// of shape (samples, size, size, channels), where the channels are the
// bands of its rasters in master file order.
func LoadDataset(cfg DatasetConfig) (Dataset, error) {
	const op = "nn.LoadDataset"
	if cfg.Rand == nil {
		return Dataset{}, eis.Errorf(eis.ErrInvalidParameter, op, "no random number generator")
	}
	if cfg.X == "" {
		cfg.X = "E"
	}
	if cfg.Y == "" {
		cfg.Y = "N"
	}
	deposits, err := readPoints(cfg.DepositPath, cfg.X, cfg.Y)
	if err != nil {
		return Dataset{}, err
	}
	unlabelled, err := readPoints(cfg.UnlabelledPath, cfg.X, cfg.Y)
	if err != nil {
		return Dataset{}, err
	}
	if len(deposits) == 0 {
		return Dataset{}, eis.Errorf(eis.ErrEmptyTable, op, "no deposits in %s", cfg.DepositPath)
	}
	if len(unlabelled) < len(deposits) {
		return Dataset{}, eis.Errorf(eis.ErrInvalidParameter, op,
			"need at least %d unlabelled locations, have %d", len(deposits), len(unlabelled))
	}
	points := append([][2]float64(nil), deposits...)
	for _, i := range cfg.Rand.Perm(len(unlabelled))[:len(deposits)] {
		points = append(points, unlabelled[i])
	}
	labels := make([]float64, len(points))
	for i := range deposits {
		labels[i] = 1
	}

	mf, err := ReadMasterFile(cfg.MasterPath)
	if err != nil {
		return Dataset{}, err
	}
	d := Dataset{Inputs: make(Inputs, len(mf)), Labels: labels}
	for _, mod := range Modalities {
		srcs, ok := mf[mod]
		if !ok {
			continue
		}
		rasters := make([]*raster.Raster, len(srcs))
		for i, s := range srcs {
			if rasters[i], err = readRaster(s.Path); err != nil {
				return Dataset{}, err
			}
			if err = raster.SameCRS(rasters[0].Meta, rasters[i].Meta); err != nil {
				return Dataset{}, fmt.Errorf("eis: %s rasters %s and %s: %w", mod, srcs[0].Path, s.Path, err)
			}
		}
		a, err := windows(rasters, points, cfg.WindowSize)
		if err != nil {
			return Dataset{}, fmt.Errorf("eis: %s: %w", mod, err)
		}
		d.Inputs[string(mod)] = a
	}
	return d, nil
}

// windows stacks the windows of every raster around every point into an
// array of shape (points, size, size, channels).
func windows(rasters []*raster.Raster, points [][2]float64, size int) (*sparse.DenseArray, error) {
	channels := 0
	for _, r := range rasters {
		channels += r.Bands()
	}
	a := sparse.ZerosDense(len(points), size, size, channels)
	for s, p := range points {
		k0 := 0
		for _, r := range rasters {
			w, err := raster.Window(r, p[0], p[1], size)
			if err != nil {
				return nil, err
			}
			for b := 0; b < w.Bands(); b++ {
				for j := 0; j < size; j++ {
					for i := 0; i < size; i++ {
						a.Set(w.At(b, j, i), s, j, i, k0+b)
					}
				}
			}
			k0 += w.Bands()
		}
	}
	return a, nil
}

func readPoints(path, x, y string) ([][2]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eis: reading locations: %v", err)
	}
	defer f.Close()
	t, err := eis.ReadCSV(f, eis.CSVOptions{})
	if err != nil {
		return nil, err
	}
	xs, err := t.Floats(x)
	if err != nil {
		return nil, fmt.Errorf("eis: %s: %w", path, err)
	}
	ys, err := t.Floats(y)
	if err != nil {
		return nil, fmt.Errorf("eis: %s: %w", path, err)
	}
	pts := make([][2]float64, len(xs))
	for i := range xs {
		pts[i] = [2]float64{xs[i], ys[i]}
	}
	return pts, nil
}

func readRaster(path string) (*raster.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eis: reading raster: %v", err)
	}
	defer f.Close()
	r, err := raster.Read(f)
	if err != nil {
		return nil, fmt.Errorf("eis: %s: %w", path, err)
	}
	return r, nil
}
