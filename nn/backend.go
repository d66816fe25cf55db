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
	"context"
	"sort"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/mat"
)

// Inputs maps input layer names to arrays whose first axis is the sample.
type Inputs map[string]*sparse.DenseArray

// Dataset is a set of labelled samples.
type Dataset struct {
	Inputs Inputs
	Labels []float64

	// Weights optionally holds a weight for each sample.
	Weights []float64
}

// Len returns the number of samples in d.
func (d Dataset) Len() int { return len(d.Labels) }

// Subset returns the samples of d at the given indices.
func (d Dataset) Subset(idx []int) Dataset {
	o := Dataset{Inputs: d.Inputs.Subset(idx), Labels: make([]float64, len(idx))}
	if d.Weights != nil {
		o.Weights = make([]float64, len(idx))
	}
	for i, j := range idx {
		o.Labels[i] = d.Labels[j]
		if d.Weights != nil {
			o.Weights[i] = d.Weights[j]
		}
	}
	return o
}

// Subset returns the samples of each input at the given indices.
func (in Inputs) Subset(idx []int) Inputs {
	o := make(Inputs, len(in))
	for name, a := range in {
		o[name] = samples(a, idx)
	}
	return o
}

// samples returns the entries of a along its first axis at idx.
func samples(a *sparse.DenseArray, idx []int) *sparse.DenseArray {
	shape := append([]int{len(idx)}, a.Shape[1:]...)
	o := sparse.ZerosDense(shape...)
	stride := len(a.Elements) / a.Shape[0]
	for i, j := range idx {
		copy(o.Elements[i*stride:(i+1)*stride], a.Elements[j*stride:(j+1)*stride])
	}
	return o
}

// CompileOptions configure the compilation of a graph.
type CompileOptions struct {
	Optimizer string
	Loss      string
	Metrics   []string
}

// FitOptions configure training.
type FitOptions struct {
	Epochs    int
	BatchSize int

	// Validation, if not nil, is evaluated after each epoch.
	Validation *Dataset

	// ValidationSplit is the fraction of the training data held out for
	// validation when Validation is nil.
	ValidationSplit float64
}

// History holds per-epoch metric values, keyed by metric name.
type History map[string][]float64

// Score is the result of evaluating a model.
type Score struct {
	Loss     float64
	Accuracy float64
}

// Backend compiles layer graphs into trainable models. It is implemented
// by an external modeling library.
type Backend interface {
	Compile(g *Graph, opts CompileOptions) (Trainable, error)
}

// Trainable is a compiled model.
type Trainable interface {
	Fit(ctx context.Context, train Dataset, opts FitOptions) (History, error)
	Evaluate(ctx context.Context, d Dataset) (Score, error)

	// Predict returns one row of outputs per sample.
	Predict(ctx context.Context, in Inputs) (*mat.Dense, error)
}

// DistributionPredictor is implemented by models whose output is a
// probability distribution.
type DistributionPredictor interface {
	PredictDistribution(ctx context.Context, in Inputs) (mean, stddev []float64, err error)
}

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Backend)
)

// Register makes a backend available by name. It panics if b is nil or
// if a backend with the same name is already registered.
func Register(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if b == nil {
		panic("nn: Register backend is nil")
	}
	if _, dup := backends[name]; dup {
		panic("nn: Register called twice for backend " + name)
	}
	backends[name] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, eis.Errorf(eis.ErrInvalidParameter, "nn.Lookup",
			"no backend named %q (registered: %v)", name, backendNames())
	}
	return b, nil
}

// Backends returns the names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backendNames()
}

func backendNames() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
