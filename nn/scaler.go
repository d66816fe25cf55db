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
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes each channel, the last axis of an array, to zero
// mean and unit variance.
type Scaler struct {
	Name  string
	Mean  []float64
	Scale []float64
}

// FitScaler computes the mean and population standard deviation of each
// channel of x. Channels with zero variance are left unscaled.
func FitScaler(name string, x *sparse.DenseArray) (*Scaler, error) {
	const op = "nn.FitScaler"
	if x == nil || len(x.Shape) == 0 || len(x.Elements) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidShape, op, "no data for %s", name)
	}
	c := x.Shape[len(x.Shape)-1]
	n := len(x.Elements) / c
	s := &Scaler{Name: name, Mean: make([]float64, c), Scale: make([]float64, c)}
	col := make([]float64, n)
	for k := 0; k < c; k++ {
		for i := range col {
			col[i] = x.Elements[i*c+k]
		}
		mean, variance := stat.MeanVariance(col, nil)
		if n > 1 {
			variance *= float64(n-1) / float64(n)
		} else {
			variance = 0
		}
		s.Mean[k] = mean
		s.Scale[k] = math.Sqrt(variance)
		if s.Scale[k] == 0 {
			s.Scale[k] = 1
		}
	}
	return s, nil
}

// Normalize returns a standardized copy of x, which must have as many
// channels as the data s was fitted to.
func (s *Scaler) Normalize(x *sparse.DenseArray) (*sparse.DenseArray, error) {
	c := len(s.Mean)
	if x == nil || len(x.Shape) == 0 || x.Shape[len(x.Shape)-1] != c {
		var shape []int
		if x != nil {
			shape = x.Shape
		}
		return nil, eis.Errorf(eis.ErrInvalidShape, "nn.Normalize",
			"scaler %s has %d channels; data has shape %v", s.Name, c, shape)
	}
	o := sparse.ZerosDense(x.Shape...)
	for i, v := range x.Elements {
		k := i % c
		o.Elements[i] = (v - s.Mean[k]) / s.Scale[k]
	}
	return o, nil
}

// Save writes s to dir/scaler/scaler_<name>.bin and returns the path.
func (s *Scaler) Save(dir string) (string, error) {
	d := filepath.Join(dir, "scaler")
	if err := os.MkdirAll(d, os.ModePerm); err != nil {
		return "", fmt.Errorf("eis: saving scaler: %v", err)
	}
	path := filepath.Join(d, fmt.Sprintf("scaler_%s.bin", s.Name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("eis: saving scaler: %v", err)
	}
	if err := gob.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return "", fmt.Errorf("eis: saving scaler: %v", err)
	}
	return path, f.Close()
}

// LoadScaler reads a scaler written by Save.
func LoadScaler(path string) (*Scaler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eis: loading scaler: %v", err)
	}
	defer f.Close()
	s := new(Scaler)
	if err := gob.NewDecoder(f).Decode(s); err != nil {
		return nil, eis.Errorf(eis.ErrInvalidContent, "nn.LoadScaler", "%s: %v", path, err)
	}
	return s, nil
}
