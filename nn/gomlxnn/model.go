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
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	mlctx "github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/data"
	"github.com/gomlx/gomlx/ml/layers"
	"github.com/gomlx/gomlx/ml/layers/activations"
	"github.com/gomlx/gomlx/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/nn"
	"gonum.org/v1/gonum/mat"
)

// model is a compiled graph. Its variables live in ctx and are created
// by the first call to Fit.
type model struct {
	backend   backends.Backend
	g         *nn.Graph
	order     []int
	loss      string
	optimizer string

	ctx     *mlctx.Context
	exec    *mlctx.Exec
	trained bool
}

// build adds the layers of m.g to the computation graph, fed by inputs in
// the order of m.g.Inputs, and returns the output node.
func (m *model) build(ctx *mlctx.Context, inputs []*Node) *Node {
	nodes := make([]*Node, len(m.g.Layers))
	for k, i := range m.g.Inputs {
		nodes[i] = inputs[k]
	}
	for _, i := range m.order {
		l := m.g.Layers[i]
		if l.Kind == nn.Input {
			continue
		}
		scope := ctx.In(fmt.Sprintf("%03d_%s", i, l.Kind))
		x := nodes[l.Parents[0]]
		switch l.Kind {
		case nn.Conv2D:
			regularize(scope, l.Regularizer)
			conv := layers.Convolution(scope, x).Filters(l.Units).KernelSizePerDim(l.Kernel[0], l.Kernel[1])
			if l.Padding == "same" {
				conv = conv.PadSame()
			} else {
				conv = conv.NoPadding()
			}
			x = activate(conv.Done(), l.Activation)
		case nn.Dense:
			regularize(scope, l.Regularizer)
			// Dense acts on the last axis only, as in Keras.
			dims := x.Shape().Dimensions
			flat := Reshape(x, -1, dims[len(dims)-1])
			y := layers.Dense(scope, flat, true, l.Units)
			outDims := append(append([]int(nil), dims[:len(dims)-1]...), l.Units)
			x = activate(Reshape(y, outDims...), l.Activation)
		case nn.Dropout:
			x = layers.Dropout(scope, x, Scalar(x.Graph(), x.DType(), l.Rate))
		case nn.BatchNormalization:
			x = batchnorm.New(scope, x, -1).Done()
		case nn.MaxPool2D:
			x = MaxPool(x).Window(l.Pool).Done()
		case nn.Flatten:
			x = Reshape(x, x.Shape().Dimensions[0], -1)
		case nn.Concatenate:
			parts := make([]*Node, len(l.Parents))
			for k, p := range l.Parents {
				parts[k] = nodes[p]
			}
			axis := l.Axis
			if axis < 0 {
				axis += parts[0].Rank()
			}
			x = Concatenate(parts, axis)
		default:
			exceptions.Panicf("gomlxnn: %s layers are not supported", l.Kind)
		}
		nodes[i] = x
	}
	return nodes[m.g.Outputs[0]]
}

func regularize(ctx *mlctx.Context, r nn.Regularizer) {
	if r.L1 > 0 {
		ctx.SetParam("l1_regularization", r.L1)
	}
	if r.L2 > 0 {
		ctx.SetParam("l2_regularization", r.L2)
	}
}

func activate(x *Node, activation string) *Node {
	switch activation {
	case "relu":
		return activations.Relu(x)
	case "sigmoid":
		return Sigmoid(x)
	case "softmax":
		return Softmax(x)
	default:
		return x
	}
}

// lossGraph is the mean of the per-sample cross entropies of the
// predicted probabilities, each multiplied by its sample weight.
// labels holds the class labels and the sample weights.
func (m *model) lossGraph(labels, predictions []*Node) *Node {
	y, w, p := labels[0], labels[1], predictions[0]
	p = MinScalar(MaxScalar(p, 1e-7), 1-1e-7)
	var ce *Node
	if m.loss == BinaryCrossentropy {
		p = Reshape(p, -1)
		ce = Neg(Add(Mul(y, Log(p)), Mul(OneMinus(y), Log(OneMinus(p)))))
	} else {
		k := p.Shape().Dimensions[p.Rank()-1]
		onehot := OneHot(ConvertDType(y, dtypes.Int32), k, p.DType())
		ce = Neg(ReduceSum(Mul(onehot, Log(p)), -1))
	}
	return ReduceAllMean(Mul(ce, w))
}

// Fit trains the model for opts.Epochs passes over d in shuffled
// batches. The training loss of the last batch of each epoch is recorded
// under "loss", and the validation score under "val_loss" and
// "val_accuracy".
func (m *model) Fit(ctx context.Context, d nn.Dataset, opts nn.FitOptions) (nn.History, error) {
	const op = "gomlxnn.Fit"
	if d.Len() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "no training samples")
	}
	if opts.Epochs <= 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "epochs must be positive, got %d", opts.Epochs)
	}
	val := opts.Validation
	if val == nil && opts.ValidationSplit > 0 {
		// The last samples are held out.
		n := d.Len()
		nVal := int(math.Ceil(opts.ValidationSplit * float64(n)))
		if nVal >= n {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "validation split %g leaves no training samples", opts.ValidationSplit)
		}
		v := d.Subset(span(n-nVal, n))
		val = &v
		d = d.Subset(span(0, n-nVal))
	}
	inputs, err := m.tensors(op, d.Inputs, d.Len())
	if err != nil {
		return nil, err
	}
	labels := tensors.FromFlatDataAndDimensions(float32s(d.Labels), d.Len())
	w := make([]float32, d.Len())
	for i := range w {
		w[i] = 1
		if d.Weights != nil {
			w[i] = float32(d.Weights[i])
		}
	}
	weights := tensors.FromFlatDataAndDimensions(w, d.Len())

	batch := opts.BatchSize
	if batch <= 0 || batch > d.Len() {
		batch = d.Len()
	}
	steps := (d.Len() + batch - 1) / batch

	h := make(nn.History)
	err = exceptions.TryCatch[error](func() {
		ds, err := data.InMemoryFromData(m.backend, m.g.Name, inputs, []any{labels, weights})
		if err != nil {
			panic(err)
		}
		ds.BatchSize(batch, false).Shuffle().Infinite(true)

		m.ctx = mlctx.New()
		m.exec = nil
		trainer := train.NewTrainer(m.backend, m.ctx,
			func(ctx *mlctx.Context, _ any, in []*Node) []*Node { return []*Node{m.build(ctx, in)} },
			m.lossGraph,
			optimizers.ByName(m.ctx, m.optimizer),
			nil, nil)
		loop := train.NewLoop(trainer)
		for e := 0; e < opts.Epochs; e++ {
			if err := ctx.Err(); err != nil {
				panic(err)
			}
			metrics, err := loop.RunSteps(ds, steps)
			if err != nil {
				panic(err)
			}
			if len(metrics) > 0 {
				h["loss"] = append(h["loss"], scalar(metrics[0]))
			}
			m.trained = true
			if val != nil {
				s, err := m.Evaluate(ctx, *val)
				if err != nil {
					panic(err)
				}
				h["val_loss"] = append(h["val_loss"], s.Loss)
				h["val_accuracy"] = append(h["val_accuracy"], s.Accuracy)
			}
		}
	})
	if err != nil {
		return h, fmt.Errorf("eis: %s: %v", op, err)
	}
	return h, nil
}

// Predict returns the output probabilities of every sample.
func (m *model) Predict(ctx context.Context, in nn.Inputs) (*mat.Dense, error) {
	const op = "gomlxnn.Predict"
	if !m.trained {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "model has not been fitted")
	}
	n := -1
	for _, a := range in {
		n = a.Shape[0]
		break
	}
	if n <= 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, op, "no samples")
	}
	inputs, err := m.tensors(op, in, n)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out *tensors.Tensor
	err = exceptions.TryCatch[error](func() {
		if m.exec == nil {
			m.exec = mlctx.NewExec(m.backend, m.ctx.Reuse(), func(ctx *mlctx.Context, in []*Node) *Node {
				return m.build(ctx, in)
			})
		}
		out = m.exec.Call(inputs...)[0]
	})
	if err != nil {
		return nil, fmt.Errorf("eis: %s: %v", op, err)
	}
	return toDense(out)
}

// Evaluate returns the weighted loss and the accuracy of the model on d.
func (m *model) Evaluate(ctx context.Context, d nn.Dataset) (nn.Score, error) {
	p, err := m.Predict(ctx, d.Inputs)
	if err != nil {
		return nn.Score{}, err
	}
	return score(p, d, m.loss == BinaryCrossentropy), nil
}

func score(p *mat.Dense, d nn.Dataset, binary bool) nn.Score {
	const eps = 1e-7
	clip := func(v float64) float64 { return math.Min(math.Max(v, eps), 1-eps) }
	var s nn.Score
	for i, y := range d.Labels {
		w := 1.0
		if d.Weights != nil {
			w = d.Weights[i]
		}
		row := p.RawRowView(i)
		var class int
		if binary {
			s.Loss -= w * (y*math.Log(clip(row[0])) + (1-y)*math.Log(clip(1-row[0])))
			if row[0] > 0.5 {
				class = 1
			}
		} else {
			s.Loss -= w * math.Log(clip(row[int(y)]))
			for k, v := range row {
				if v > row[class] {
					class = k
				}
			}
		}
		if float64(class) == y {
			s.Accuracy++
		}
	}
	n := float64(d.Len())
	s.Loss /= n
	s.Accuracy /= n
	return s
}

// tensors returns the arrays of in in graph input order, checking that
// each has n samples of the declared shape.
func (m *model) tensors(op string, in nn.Inputs, n int) ([]any, error) {
	o := make([]any, len(m.g.Inputs))
	for k, i := range m.g.Inputs {
		l := m.g.Layers[i]
		a, ok := in[l.Name]
		if !ok {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "missing input %q", l.Name)
		}
		want := append([]int{n}, l.Shape...)
		if !sameShape(a.Shape, want) {
			return nil, eis.Errorf(eis.ErrInvalidShape, op, "input %q has shape %v, want %v", l.Name, a.Shape, want)
		}
		o[k] = toTensor(a)
	}
	return o, nil
}

func toTensor(a *sparse.DenseArray) *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(float32s(a.Elements), a.Shape...)
}

func toDense(t *tensors.Tensor) (*mat.Dense, error) {
	rows, ok := t.Value().([][]float32)
	if !ok || len(rows) == 0 {
		return nil, fmt.Errorf("eis: gomlxnn: unexpected output %s", t.Shape())
	}
	o := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		for j, v := range r {
			o.Set(i, j, float64(v))
		}
	}
	return o, nil
}

func scalar(t *tensors.Tensor) float64 {
	switch v := t.Value().(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	default:
		return math.NaN()
	}
}

func float32s(v []float64) []float32 {
	o := make([]float32, len(v))
	for i, x := range v {
		o[i] = float32(x)
	}
	return o
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func span(from, to int) []int {
	o := make([]int, to-from)
	for i := range o {
		o[i] = from + i
	}
	return o
}
