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
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/raster"
	"gonum.org/v1/gonum/mat"
)

func different(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance
}

func kinds(g *Graph) []Kind {
	k := make([]Kind, len(g.Layers))
	for i, l := range g.Layers {
		k[i] = l.Kind
	}
	return k
}

func sameKinds(a, b []Kind) bool {
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

func TestNewMultimodalSingle(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Inputs[Gravity] = []int{5, 5, 3}
	g, err := NewMultimodal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "model_with_1_input" {
		t.Errorf("name: %s", g.Name)
	}
	want := []Kind{Input, Conv2D, Dropout, BatchNormalization, MaxPool2D,
		Conv2D, Dropout, BatchNormalization, MaxPool2D, Flatten, Dense}
	if !sameKinds(kinds(g), want) {
		t.Errorf("layers: have %v, want %v", kinds(g), want)
	}
	conv := g.Layers[5]
	if conv.Units != 16 || conv.Kernel != [2]int{3, 3} || conv.Padding != "same" || conv.Regularizer.L2 != 0.06 {
		t.Errorf("second convolution: %+v", conv)
	}
	head, ok := g.Layer("classifier")
	if !ok || head.Units != 2 || head.Activation != Softmax {
		t.Errorf("classifier: %+v", head)
	}
	if len(g.Inputs) != 1 || g.Layers[g.Inputs[0]].Name != "Gravity" {
		t.Errorf("inputs: %v", g.Inputs)
	}
	if _, err := g.Validate(); err != nil {
		t.Error(err)
	}
}

func TestNewMultimodalFusion(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Inputs[Magnetic] = []int{5, 5, 2}
	cfg.Inputs[AEM] = []int{5, 5, 1}
	cfg.Kernels[AEM] = [2]int{3, 3}
	cfg.DataAugmentation = true
	g, err := NewMultimodal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "eis_multimodal" {
		t.Errorf("name: %s", g.Name)
	}
	if len(g.Inputs) != 2 || g.Layers[g.Inputs[0]].Name != "AEM" || g.Layers[g.Inputs[1]].Name != "Magnetic" {
		t.Fatalf("inputs: %v", g.Inputs)
	}
	if l := g.Layers[g.Inputs[0]+1]; l.Kind != RandomRotation || l.Factor != [2]float64{-0.2, 0.5} {
		t.Errorf("augmentation: %+v", l)
	}
	if l := g.Layers[g.Inputs[0]+2]; l.Kernel != [2]int{3, 3} {
		t.Errorf("AEM kernel: %v", l.Kernel)
	}
	if l := g.Layers[g.Inputs[1]+2]; l.Kernel != [2]int{2, 2} {
		t.Errorf("Magnetic kernel: %v", l.Kernel)
	}
	head, ok := g.Layer("final_classifier")
	if !ok || head.Regularizer.L2 != 0.06 {
		t.Fatalf("final classifier: %+v", head)
	}
	concat := g.Layers[head.Parents[0]]
	if concat.Kind != Concatenate || concat.Axis != -1 || len(concat.Parents) != 2 {
		t.Errorf("concatenation: %+v", concat)
	}
	order, err := g.Validate()
	if err != nil {
		t.Fatal(err)
	}
	if order[len(order)-1] != g.Outputs[0] {
		t.Errorf("output is not last in topological order: %v", order)
	}
}

func TestNewMultimodalMLP(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.MLP = true
	cfg.Dropout = 0
	cfg.Inputs[Radiometric] = []int{4}
	g, err := NewMultimodal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []Kind{Input, Dense, Dense, Flatten, Dense}
	if !sameKinds(kinds(g), want) {
		t.Errorf("layers: have %v, want %v", kinds(g), want)
	}
}

func TestNewMultimodalErrors(t *testing.T) {
	var tests = []struct {
		name   string
		modify func(*ModelConfig)
	}{
		{name: "no modality", modify: func(c *ModelConfig) { delete(c.Inputs, AEM) }},
		{name: "unknown modality", modify: func(c *ModelConfig) { c.Inputs["Seismic"] = []int{5, 5, 1} }},
		{name: "bad shape", modify: func(c *ModelConfig) { c.Inputs[AEM] = []int{5, 5} }},
		{name: "no neurons", modify: func(c *ModelConfig) { c.Neurons = nil }},
		{name: "negative neurons", modify: func(c *ModelConfig) { c.Neurons = []int{8, -1} }},
		{name: "dropout", modify: func(c *ModelConfig) { c.Dropout = 1 }},
		{name: "pool", modify: func(c *ModelConfig) { c.Pool = 0 }},
		{name: "activation", modify: func(c *ModelConfig) { c.LastActivation = "relu" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultModelConfig()
			cfg.Inputs[AEM] = []int{5, 5, 1}
			test.modify(&cfg)
			if _, err := NewMultimodal(cfg); !errors.Is(err, eis.ErrInvalidParameter) {
				t.Errorf("have %v", err)
			}
		})
	}
}

func TestNewBayesian(t *testing.T) {
	g, err := NewBayesian(BayesianConfig{
		Features:       []string{"cu", "au", "mag"},
		Hidden:         []int{8, 4},
		TrainSize:      10,
		LastActivation: Sigmoid,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Kind{Input, Input, Input, Concatenate, BatchNormalization,
		DenseVariational, DenseVariational, Dense, IndependentNormal}
	if !sameKinds(kinds(g), want) {
		t.Fatalf("layers: have %v, want %v", kinds(g), want)
	}
	if l := g.Layers[5]; l.Units != 8 || l.KLWeight != 0.1 || l.Activation != Sigmoid {
		t.Errorf("variational layer: %+v", l)
	}
	if l := g.Layers[7]; l.Units != 2 {
		t.Errorf("distribution parameters: %+v", l)
	}
	if l := g.Layers[0]; l.Name != "cu" || len(l.Shape) != 1 || l.Shape[0] != 1 {
		t.Errorf("input: %+v", l)
	}
	if _, err := g.Validate(); err != nil {
		t.Error(err)
	}

	for _, cfg := range []BayesianConfig{
		{Hidden: []int{8}, TrainSize: 1, LastActivation: Softmax},
		{Features: []string{"a", "a"}, Hidden: []int{8}, TrainSize: 1, LastActivation: Softmax},
		{Features: []string{"a"}, Hidden: []int{8}, LastActivation: Softmax},
		{Features: []string{"a"}, TrainSize: 1, LastActivation: Softmax},
		{Features: []string{"a"}, Hidden: []int{8}, TrainSize: 1},
	} {
		if _, err := NewBayesian(cfg); !errors.Is(err, eis.ErrInvalidParameter) {
			t.Errorf("%+v: have %v", cfg, err)
		}
	}
}

func TestValidate(t *testing.T) {
	g := NewGraph("cycle")
	in := g.Add(Layer{Kind: Input})
	a := g.Add(Layer{Kind: Dense}, in)
	b := g.Add(Layer{Kind: Dense}, a)
	g.Layers[a].Parents = append(g.Layers[a].Parents, b)
	g.Outputs = []int{b}
	if _, err := g.Validate(); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("cycle: %v", err)
	}

	g = NewGraph("orphan")
	in = g.Add(Layer{Kind: Input})
	g.Add(Layer{Kind: Flatten})
	g.Outputs = []int{in}
	if _, err := g.Validate(); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("orphan: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	iv, err := Summarize([]float64{1.234, -0.5}, []float64{0.5, 0.1}, []float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	want := []Interval{
		{Mean: 1.23, StdDev: 0.5, Lower: 0.25, Upper: 2.21, Actual: 1},
		{Mean: -0.5, StdDev: 0.1, Lower: -0.7, Upper: -0.3, Actual: 0},
	}
	for i, w := range want {
		h := iv[i]
		if different(h.Mean, w.Mean, 1e-12) || different(h.StdDev, w.StdDev, 1e-12) ||
			different(h.Lower, w.Lower, 1e-12) || different(h.Upper, w.Upper, 1e-12) || h.Actual != w.Actual {
			t.Errorf("sample %d: have %+v, want %+v", i, h, w)
		}
	}
	tbl := IntervalTable(iv)
	if names := strings.Join(tbl.Names(), ","); names != "mean,stddev,95% CI lower,95% CI upper,Actual" {
		t.Errorf("columns: %s", names)
	}
	if _, err := Summarize([]float64{1}, []float64{1, 2}, []float64{1}); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("length mismatch: %v", err)
	}
}

func TestScaler(t *testing.T) {
	x := sparse.ZerosDense(2, 1, 1, 2)
	copy(x.Elements, []float64{1, 10, 3, 30})
	s, err := FitScaler("AEM", x)
	if err != nil {
		t.Fatal(err)
	}
	if s.Mean[0] != 2 || s.Mean[1] != 20 || s.Scale[0] != 1 || s.Scale[1] != 10 {
		t.Errorf("scaler: %+v", s)
	}
	n, err := s.Normalize(x)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{-1, -1, 1, 1} {
		if different(n.Elements[i], want, 1e-12) {
			t.Errorf("element %d: have %g, want %g", i, n.Elements[i], want)
		}
	}
	if _, err := s.Normalize(sparse.ZerosDense(2, 1, 1, 3)); !errors.Is(err, eis.ErrInvalidShape) {
		t.Errorf("channel mismatch: %v", err)
	}

	path, err := s.Save(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, filepath.Join("scaler", "scaler_AEM.bin")) {
		t.Errorf("path: %s", path)
	}
	s2, err := LoadScaler(path)
	if err != nil {
		t.Fatal(err)
	}
	if s2.Name != "AEM" || s2.Scale[1] != 10 {
		t.Errorf("loaded scaler: %+v", s2)
	}
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := ConfusionMatrix([]int{0, 1, 1, 0}, []int{0, 1, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(2, 2, []float64{0.5, 0, 0.25, 0.25})
	if !mat.EqualApprox(cm, want, 1e-12) {
		t.Errorf("have %v, want %v", mat.Formatted(cm), mat.Formatted(want))
	}
	var buf bytes.Buffer
	if err := WriteConfusion(&buf, cm); err != nil {
		t.Fatal(err)
	}
	if have, w := buf.String(), ",Non deposit,deposit\nNon deposit,0.5,0\ndeposit,0.25,0.25\n"; have != w {
		t.Errorf("csv: have %q, want %q", have, w)
	}
	if _, err := ConfusionMatrix([]int{0, 2}, []int{0, 1}); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("non-binary: %v", err)
	}
}

func TestBalancedWeights(t *testing.T) {
	w := BalancedWeights([]float64{1, 0, 0})
	for i, want := range []float64{1.5, 0.75, 0.75} {
		if different(w[i], want, 1e-12) {
			t.Errorf("weight %d: have %g, want %g", i, w[i], want)
		}
	}
}

// fakeBackend compiles graphs into models that predict a deposit when
// the mean of their inputs is positive.
type fakeBackend struct {
	compiled []*fakeModel
}

func (b *fakeBackend) Compile(g *Graph, opts CompileOptions) (Trainable, error) {
	if _, err := g.Validate(); err != nil {
		return nil, err
	}
	m := &fakeModel{id: len(b.compiled), graph: g, compile: opts}
	b.compiled = append(b.compiled, m)
	return m, nil
}

type fakeModel struct {
	id      int
	graph   *Graph
	compile CompileOptions
	fit     FitOptions
	train   Dataset
}

func (m *fakeModel) Fit(ctx context.Context, train Dataset, opts FitOptions) (History, error) {
	m.fit, m.train = opts, train
	return History{"loss": {0.5, 0.25}}, nil
}

func (m *fakeModel) Evaluate(ctx context.Context, d Dataset) (Score, error) {
	return Score{Loss: 1 / float64(m.id+1), Accuracy: 1}, nil
}

func inputMean(in Inputs, sample int) float64 {
	var sum float64
	var n int
	for _, a := range in {
		stride := len(a.Elements) / a.Shape[0]
		for _, v := range a.Elements[sample*stride : (sample+1)*stride] {
			sum += v
			n++
		}
	}
	return sum / float64(n)
}

func (m *fakeModel) Predict(ctx context.Context, in Inputs) (*mat.Dense, error) {
	var rows int
	for _, a := range in {
		rows = a.Shape[0]
	}
	o := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		if inputMean(in, i) > 0 {
			o.SetRow(i, []float64{0.2, 0.8})
		} else {
			o.SetRow(i, []float64{0.8, 0.2})
		}
	}
	return o, nil
}

func (m *fakeModel) PredictDistribution(ctx context.Context, in Inputs) (mean, stddev []float64, err error) {
	var rows int
	for _, a := range in {
		rows = a.Shape[0]
	}
	mean, stddev = make([]float64, rows), make([]float64, rows)
	for i := range mean {
		mean[i] = inputMean(in, i)
		stddev[i] = 0.5
	}
	return mean, stddev, nil
}

func TestCrossValidate(t *testing.T) {
	a := sparse.ZerosDense(4, 1, 1, 1)
	copy(a.Elements, []float64{3, 2, -1, -2})
	data := Dataset{Inputs: Inputs{"AEM": a}, Labels: []float64{1, 1, 0, 0}}
	b := new(fakeBackend)
	dir := t.TempDir()
	res, err := CrossValidate(context.Background(), b, CVConfig{
		Model:         DefaultModelConfig(),
		SampleWeights: true,
		Dir:           dir,
	}, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.compiled) != 4 {
		t.Fatalf("compiled %d models", len(b.compiled))
	}
	m := b.compiled[0]
	if m.graph.Name != "model_with_1_input" || m.compile.Loss != "sparse_categorical_crossentropy" {
		t.Errorf("model: %s, %+v", m.graph.Name, m.compile)
	}
	if m.fit.Epochs != 32 || m.fit.BatchSize != 1 || m.fit.Validation == nil {
		t.Errorf("fit options: %+v", m.fit)
	}
	if m.train.Len() != 3 || m.train.Weights[0] != 1.5 || m.train.Weights[1] != 0.75 {
		t.Errorf("first fold training data: %+v", m.train)
	}
	if res.Best != Trainable(b.compiled[3]) {
		t.Error("best model should be the one with the lowest loss")
	}
	want := mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.5})
	if !mat.EqualApprox(res.Confusion, want, 1e-12) {
		t.Errorf("confusion: %v", mat.Formatted(res.Confusion))
	}
	for _, name := range []string{"cm.csv", "cm.png"} {
		if _, err := os.Stat(filepath.Join(dir, "cm", name)); err != nil {
			t.Error(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CrossValidate(ctx, b, CVConfig{Model: DefaultModelConfig()}, data); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: %v", err)
	}
	if _, err := CrossValidate(context.Background(), b, CVConfig{Model: DefaultModelConfig()}, data.Subset([]int{0})); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("one sample: %v", err)
	}
}

func TestTrainBayesian(t *testing.T) {
	col := func(v ...float64) *sparse.DenseArray {
		a := sparse.ZerosDense(len(v), 1)
		copy(a.Elements, v)
		return a
	}
	train := Dataset{Inputs: Inputs{"x": col(1, 2, 3, 4)}, Labels: []float64{1, 2, 3, 4}}
	test := Dataset{Inputs: Inputs{"x": col(1.5)}, Labels: []float64{1.4}}
	cfg := BayesianConfig{Features: []string{"x"}, Hidden: []int{8}, LastActivation: Sigmoid, Epochs: 10}
	b := new(fakeBackend)
	_, iv, err := TrainBayesian(context.Background(), b, cfg, train, &test, nil)
	if err != nil {
		t.Fatal(err)
	}
	if l := b.compiled[0].graph.Layers[3]; l.Kind != DenseVariational || l.KLWeight != 0.25 {
		t.Errorf("variational layer: %+v", l)
	}
	if len(iv) != 1 || iv[0].Mean != 1.5 || iv[0].Lower != 0.52 || iv[0].Upper != 2.48 || iv[0].Actual != 1.4 {
		t.Errorf("intervals: %+v", iv)
	}

	m, iv, err := TrainBayesian(context.Background(), b, cfg, train, nil, nil)
	if err != nil || m == nil || iv != nil {
		t.Errorf("without test data: %v, %v, %v", m, iv, err)
	}
	cfg.Features = []string{"y"}
	if _, _, err := TrainBayesian(context.Background(), b, cfg, train, nil, nil); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("missing feature: %v", err)
	}
}

func writeRaster(t *testing.T, path string, sign float64) {
	t.Helper()
	r, err := raster.New(raster.Meta{Y0: 10, DX: 1, DY: 1, NX: 10, NY: 10}, 1)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < r.NY; j++ {
		for i := 0; i < r.NX; i++ {
			r.Set(sign*float64(10*j+i), 0, j, i)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := r.Write(f); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDataset(t *testing.T) {
	dir := t.TempDir()
	writeRaster(t, filepath.Join(dir, "gravity.ncf"), 1)
	writeRaster(t, filepath.Join(dir, "mag1.ncf"), 1)
	writeRaster(t, filepath.Join(dir, "mag2.ncf"), -1)
	writeFile(t, filepath.Join(dir, "master.toml"), `
[[Gravity]]
path = "gravity.ncf"

[[Magnetic]]
path = "mag1.ncf"

[[Magnetic]]
path = "mag2.ncf"
`)
	writeFile(t, filepath.Join(dir, "deposits.csv"), "E,N\n2.5,7.5\n5.5,5.5\n")
	writeFile(t, filepath.Join(dir, "unlabelled.csv"), "E,N\n1.5,1.5\n3.5,3.5\n7.5,2.5\n")

	cfg := DatasetConfig{
		DepositPath:    filepath.Join(dir, "deposits.csv"),
		UnlabelledPath: filepath.Join(dir, "unlabelled.csv"),
		MasterPath:     filepath.Join(dir, "master.toml"),
		WindowSize:     3,
		Rand:           rand.New(rand.NewSource(1)),
	}
	d, err := LoadDataset(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if d.Len() != 4 || d.Labels[0] != 1 || d.Labels[1] != 1 || d.Labels[2] != 0 || d.Labels[3] != 0 {
		t.Errorf("labels: %v", d.Labels)
	}
	g, m := d.Inputs["Gravity"], d.Inputs["Magnetic"]
	if g == nil || m == nil {
		t.Fatalf("inputs: %v", d.Inputs)
	}
	if shape := m.Shape; len(shape) != 4 || shape[0] != 4 || shape[1] != 3 || shape[2] != 3 || shape[3] != 2 {
		t.Errorf("magnetic shape: %v", shape)
	}
	if v := g.Get(0, 1, 1, 0); v != 22 {
		t.Errorf("first deposit center: %g", v)
	}
	if v := m.Get(1, 0, 0, 1); v != -34 {
		t.Errorf("second deposit, second channel corner: %g", v)
	}
	allowed := map[float64]bool{81: true, 63: true, 77: true}
	if a, b := g.Get(2, 1, 1, 0), g.Get(3, 1, 1, 0); a == b || !allowed[a] || !allowed[b] {
		t.Errorf("negative sample centers: %g, %g", a, b)
	}

	cfg.UnlabelledPath = cfg.DepositPath
	cfg.DepositPath = filepath.Join(dir, "unlabelled.csv")
	if _, err := LoadDataset(cfg); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("too few unlabelled locations: %v", err)
	}
}
