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

package gomlxnn

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/nn"
	"gonum.org/v1/gonum/mat"
)

func mlp(out int, activation string) *nn.Graph {
	g := nn.NewGraph("mlp")
	x := g.Add(nn.Layer{Kind: nn.Input, Name: "x", Shape: []int{2}})
	x = g.Add(nn.Layer{Kind: nn.Dense, Units: 8, Activation: "relu"}, x)
	x = g.Add(nn.Layer{Kind: nn.Dense, Name: "classifier", Units: out, Activation: activation}, x)
	g.Outputs = []int{x}
	return g
}

// separable returns n samples whose label is 1 where the first feature
// is positive.
func separable(n int) nn.Dataset {
	rng := rand.New(rand.NewSource(1))
	a := sparse.ZerosDense(n, 2)
	d := nn.Dataset{Inputs: nn.Inputs{"x": a}, Labels: make([]float64, n)}
	for i := 0; i < n; i++ {
		x0 := 1 + rng.Float64()
		if i%2 == 1 {
			x0 = -x0
		} else {
			d.Labels[i] = 1
		}
		a.Set(x0, i, 0)
		a.Set(rng.NormFloat64(), i, 1)
	}
	return d
}

func TestCompileErrors(t *testing.T) {
	b := New()
	bayes, err := nn.NewBayesian(nn.BayesianConfig{Features: []string{"cu", "zn"}, Hidden: []int{4}, TrainSize: 10})
	if err != nil {
		t.Fatal(err)
	}
	rot := nn.NewGraph("rotation")
	x := rot.Add(nn.Layer{Kind: nn.Input, Name: "x", Shape: []int{4, 4, 1}})
	x = rot.Add(nn.Layer{Kind: nn.RandomRotation}, x)
	x = rot.Add(nn.Layer{Kind: nn.Flatten}, x)
	x = rot.Add(nn.Layer{Kind: nn.Dense, Units: 2, Activation: "softmax"}, x)
	rot.Outputs = []int{x}

	var tests = []struct {
		name string
		g    *nn.Graph
		opts nn.CompileOptions
		want error
	}{
		{name: "bayesian", g: bayes, opts: nn.CompileOptions{Loss: SparseCategoricalCrossentropy}, want: eis.ErrNotImplemented},
		{name: "rotation", g: rot, opts: nn.CompileOptions{Loss: SparseCategoricalCrossentropy}, want: eis.ErrNotImplemented},
		{name: "loss", g: mlp(2, "softmax"), opts: nn.CompileOptions{Loss: "hinge"}, want: eis.ErrNotImplemented},
		{name: "optimizer", g: mlp(2, "softmax"), opts: nn.CompileOptions{Optimizer: "Nadam", Loss: SparseCategoricalCrossentropy}, want: eis.ErrNotImplemented},
		{name: "activation", g: mlp(2, "tanh"), opts: nn.CompileOptions{Loss: SparseCategoricalCrossentropy}, want: eis.ErrNotImplemented},
		{name: "binary units", g: mlp(2, "sigmoid"), opts: nn.CompileOptions{Loss: BinaryCrossentropy}, want: eis.ErrInvalidParameter},
		{name: "empty", g: nn.NewGraph("empty"), opts: nn.CompileOptions{Loss: SparseCategoricalCrossentropy}, want: eis.ErrInvalidParameter},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := b.Compile(test.g, test.opts)
			if !errors.Is(err, test.want) {
				t.Errorf("have %v, want %v", err, test.want)
			}
		})
	}
}

func TestPredictBeforeFit(t *testing.T) {
	m, err := New().Compile(mlp(2, "softmax"), nn.CompileOptions{Loss: SparseCategoricalCrossentropy})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Predict(context.Background(), separable(4).Inputs); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("have %v", err)
	}
}

func TestFit(t *testing.T) {
	for _, test := range []struct {
		loss       string
		out        int
		activation string
	}{
		{loss: SparseCategoricalCrossentropy, out: 2, activation: "softmax"},
		{loss: BinaryCrossentropy, out: 1, activation: "sigmoid"},
	} {
		t.Run(test.loss, func(t *testing.T) {
			m, err := New().Compile(mlp(test.out, test.activation), nn.CompileOptions{Optimizer: "sgd", Loss: test.loss})
			if err != nil {
				t.Fatal(err)
			}
			train, val := separable(64), separable(16)
			ctx := context.Background()
			h, err := m.Fit(ctx, train, nn.FitOptions{Epochs: 100, BatchSize: 16, Validation: &val})
			if err != nil {
				t.Fatal(err)
			}
			if len(h["val_loss"]) != 100 {
				t.Errorf("history has %d validation losses", len(h["val_loss"]))
			}
			p, err := m.Predict(ctx, val.Inputs)
			if err != nil {
				t.Fatal(err)
			}
			if r, c := p.Dims(); r != 16 || c != test.out {
				t.Errorf("predictions are %dx%d", r, c)
			}
			s, err := m.Evaluate(ctx, val)
			if err != nil {
				t.Fatal(err)
			}
			if s.Accuracy < 0.9 {
				t.Errorf("accuracy %g", s.Accuracy)
			}
		})
	}
}

func TestFitCanceled(t *testing.T) {
	m, err := New().Compile(mlp(2, "softmax"), nn.CompileOptions{Loss: SparseCategoricalCrossentropy})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Fit(ctx, separable(8), nn.FitOptions{Epochs: 5}); err == nil {
		t.Error("canceled fit succeeded")
	}
}

func TestScore(t *testing.T) {
	d := nn.Dataset{Labels: []float64{0, 1}, Weights: []float64{1, 3}}
	p := mat.NewDense(2, 2, []float64{0.9, 0.1, 0.8, 0.2})
	s := score(p, d, false)
	if s.Accuracy != 0.5 {
		t.Errorf("accuracy %g", s.Accuracy)
	}
	if want := -(math.Log(0.9) + 3*math.Log(0.2)) / 2; math.Abs(s.Loss-want) > 1e-12 {
		t.Errorf("loss %g, want %g", s.Loss, want)
	}

	s = score(mat.NewDense(2, 1, []float64{0.3, 0.6}), nn.Dataset{Labels: []float64{0, 1}}, true)
	if s.Accuracy != 1 {
		t.Errorf("binary accuracy %g", s.Accuracy)
	}
	if want := -(math.Log(0.7) + math.Log(0.6)) / 2; math.Abs(s.Loss-want) > 1e-12 {
		t.Errorf("binary loss %g, want %g", s.Loss, want)
	}
}
