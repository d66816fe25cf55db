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

// Package gomlxnn is an nn.Backend that trains layer graphs with GoMLX,
// using its pure Go execution backend. Bayesian layers and random
// rotation are not supported.
package gomlxnn

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego" // Registers the pure Go backend.
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/nn"
)

// Name is the name the backend is registered under by the eis command.
const Name = "gomlx"

// Losses supported by Compile.
const (
	SparseCategoricalCrossentropy = "sparse_categorical_crossentropy"
	BinaryCrossentropy            = "binary_crossentropy"
)

// Backend compiles nn graphs into GoMLX models. The GoMLX execution
// backend is created when the first graph is compiled.
type Backend struct {
	once    sync.Once
	backend backends.Backend
	err     error
}

// New returns a new backend.
func New() *Backend { return new(Backend) }

func (b *Backend) init() error {
	b.once.Do(func() {
		b.err = exceptions.TryCatch[error](func() { b.backend = backends.New() })
		if b.err != nil {
			b.err = fmt.Errorf("eis: starting gomlx: %v", b.err)
		}
	})
	return b.err
}

// Compile checks that every layer of g can be expressed in GoMLX and
// returns an untrained model.
func (b *Backend) Compile(g *nn.Graph, opts nn.CompileOptions) (nn.Trainable, error) {
	const op = "gomlxnn.Compile"
	order, err := g.Validate()
	if err != nil {
		return nil, err
	}
	if len(g.Outputs) != 1 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "graph %q has %d outputs, want 1", g.Name, len(g.Outputs))
	}
	for i, l := range g.Layers {
		switch l.Kind {
		case nn.Input, nn.Dropout, nn.BatchNormalization, nn.Flatten, nn.Concatenate:
		case nn.Conv2D, nn.Dense:
			if !supportedActivation(l.Activation) {
				return nil, eis.Errorf(eis.ErrNotImplemented, op, "layer %d: activation %q", i, l.Activation)
			}
		case nn.MaxPool2D:
			if l.Pool <= 0 {
				return nil, eis.Errorf(eis.ErrInvalidParameter, op, "layer %d: pool size %d", i, l.Pool)
			}
		default:
			return nil, eis.Errorf(eis.ErrNotImplemented, op, "layer %d: %s layers", i, l.Kind)
		}
	}
	out := g.Layers[g.Outputs[0]]
	switch opts.Loss {
	case SparseCategoricalCrossentropy:
		if out.Kind != nn.Dense || out.Units < 2 {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "%s needs a Dense output with at least 2 units", opts.Loss)
		}
	case BinaryCrossentropy:
		if out.Kind != nn.Dense || out.Units != 1 {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "%s needs a Dense output with 1 unit", opts.Loss)
		}
	default:
		return nil, eis.Errorf(eis.ErrNotImplemented, op, "loss %q", opts.Loss)
	}
	optimizer := strings.ToLower(opts.Optimizer)
	if optimizer == "" {
		optimizer = "adam"
	}
	if _, ok := optimizers.KnownOptimizers[optimizer]; !ok {
		return nil, eis.Errorf(eis.ErrNotImplemented, op, "optimizer %q", opts.Optimizer)
	}
	names := make(map[string]bool)
	for _, i := range g.Inputs {
		name := g.Layers[i].Name
		if name == "" || names[name] {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "input layer %d needs a unique name", i)
		}
		names[name] = true
	}
	if err := b.init(); err != nil {
		return nil, err
	}
	return &model{
		backend:   b.backend,
		g:         g,
		order:     order,
		loss:      opts.Loss,
		optimizer: optimizer,
	}, nil
}

func supportedActivation(a string) bool {
	switch a {
	case "", "linear", "relu", "sigmoid", "softmax":
		return true
	default:
		return false
	}
}
