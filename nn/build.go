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
	"github.com/spatialmodel/eis"
)

// Modality is a family of geophysical input rasters. Each modality
// used by a multimodal model gets its own input and trunk.
type Modality string

// The supported modalities.
const (
	AEM         Modality = "AEM"
	Gravity     Modality = "Gravity"
	Magnetic    Modality = "Magnetic"
	Radiometric Modality = "Radiometric"
)

// Modalities lists the supported modalities in the order their trunks
// are built and concatenated.
var Modalities = []Modality{AEM, Gravity, Magnetic, Radiometric}

// Output activations.
const (
	Softmax = "softmax"
	Sigmoid = "sigmoid"
)

// ModelConfig configures NewMultimodal.
type ModelConfig struct {
	// Inputs holds the per-sample input shape of each modality used.
	// For a CNN the shape is (height, width, channels).
	Inputs map[Modality][]int `toml:"inputs"`

	// Kernels holds the convolution kernel size of each modality. A
	// missing kernel defaults to channels×channels.
	Kernels map[Modality][2]int `toml:"kernels"`

	Regularizer Regularizer `toml:"regularizer"`

	// DataAugmentation inserts a random rotation after each input.
	DataAugmentation bool `toml:"data_augmentation"`

	Optimizer string `toml:"optimizer"`
	Loss      string `toml:"loss"`

	// Neurons holds the number of filters (CNN) or units (MLP) of each
	// hidden block.
	Neurons []int `toml:"neurons"`

	Pool int `toml:"pool_size"`

	// Dropout is the dropout rate after each hidden block. Zero means
	// no dropout layers.
	Dropout float64 `toml:"dropout"`

	// MLP builds dense trunks instead of convolutional ones.
	MLP bool `toml:"mlp"`

	Output         int    `toml:"output"`
	LastActivation string `toml:"last_activation"`
}

// DefaultModelConfig returns the configuration used for cross validation
// when none is given. Inputs and Kernels are filled in from the data.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Inputs:         make(map[Modality][]int),
		Kernels:        make(map[Modality][2]int),
		Regularizer:    Regularizer{L2: 0.06},
		Optimizer:      "Adam",
		Loss:           "sparse_categorical_crossentropy",
		Neurons:        []int{8, 16},
		Pool:           1,
		Dropout:        0.6,
		Output:         2,
		LastActivation: Softmax,
	}
}

// CompileOptions returns the options the model is compiled with.
func (c ModelConfig) CompileOptions() CompileOptions {
	return CompileOptions{Optimizer: c.Optimizer, Loss: c.Loss, Metrics: []string{"accuracy"}}
}

// modalities returns the modalities with inputs, in build order.
func (c ModelConfig) modalities() []Modality {
	var m []Modality
	for _, mod := range Modalities {
		if _, ok := c.Inputs[mod]; ok {
			m = append(m, mod)
		}
	}
	return m
}

func (c ModelConfig) check() error {
	const op = "nn.NewMultimodal"
	for mod := range c.Inputs {
		if !knownModality(mod) {
			return eis.Errorf(eis.ErrInvalidParameter, op, "unknown modality %q", mod)
		}
	}
	if len(c.modalities()) == 0 {
		return eis.Errorf(eis.ErrInvalidParameter, op, "no input modality")
	}
	for mod, shape := range c.Inputs {
		if len(shape) == 0 {
			return eis.Errorf(eis.ErrInvalidParameter, op, "%s input has no shape", mod)
		}
		if !c.MLP && len(shape) != 3 {
			return eis.Errorf(eis.ErrInvalidParameter, op, "%s input shape %v is not (height, width, channels)", mod, shape)
		}
		for _, n := range shape {
			if n <= 0 {
				return eis.Errorf(eis.ErrInvalidParameter, op, "%s input shape %v is not positive", mod, shape)
			}
		}
	}
	if err := checkUnits(op, "neuron", c.Neurons); err != nil {
		return err
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return eis.Errorf(eis.ErrInvalidParameter, op, "dropout rate must be in [0, 1), got %g", c.Dropout)
	}
	if !c.MLP && c.Pool <= 0 {
		return eis.Errorf(eis.ErrInvalidParameter, op, "pool size must be positive, got %d", c.Pool)
	}
	if c.Output <= 0 {
		return eis.Errorf(eis.ErrInvalidParameter, op, "output size must be positive, got %d", c.Output)
	}
	return checkActivation(op, c.LastActivation)
}

func knownModality(mod Modality) bool {
	for _, m := range Modalities {
		if m == mod {
			return true
		}
	}
	return false
}

func checkUnits(op, what string, units []int) error {
	if len(units) == 0 {
		return eis.Errorf(eis.ErrInvalidParameter, op, "%s list is empty", what)
	}
	for _, n := range units {
		if n <= 0 {
			return eis.Errorf(eis.ErrInvalidParameter, op, "%s counts must be positive, got %v", what, units)
		}
	}
	return nil
}

func checkActivation(op, a string) error {
	if a != Softmax && a != Sigmoid {
		return eis.Errorf(eis.ErrInvalidParameter, op, "last activation must be %s or %s, got %q", Softmax, Sigmoid, a)
	}
	return nil
}

// ConvBody adds a convolutional trunk fed by layer in: for each neuron
// count a same-padded relu Conv2D, a Dropout layer if dropout > 0, a
// BatchNormalization and a MaxPool2D; then a Flatten. It returns the
// index of the Flatten layer.
func ConvBody(g *Graph, in int, neurons []int, kernel [2]int, reg Regularizer, pool int, dropout float64) int {
	x := in
	for _, n := range neurons {
		x = g.Add(Layer{Kind: Conv2D, Units: n, Kernel: kernel, Padding: "same", Activation: "relu", Regularizer: reg}, x)
		if dropout > 0 {
			x = g.Add(Layer{Kind: Dropout, Rate: dropout}, x)
		}
		x = g.Add(Layer{Kind: BatchNormalization}, x)
		x = g.Add(Layer{Kind: MaxPool2D, Pool: pool}, x)
	}
	return g.Add(Layer{Kind: Flatten}, x)
}

// DenseBody adds a dense trunk fed by layer in: for each neuron count a
// relu Dense layer and a Dropout layer if dropout > 0; then a Flatten.
// It returns the index of the Flatten layer.
func DenseBody(g *Graph, in int, neurons []int, dropout float64) int {
	x := in
	for _, n := range neurons {
		x = g.Add(Layer{Kind: Dense, Units: n, Activation: "relu"}, x)
		if dropout > 0 {
			x = g.Add(Layer{Kind: Dropout, Rate: dropout}, x)
		}
	}
	return g.Add(Layer{Kind: Flatten}, x)
}

// NewMultimodal builds a CNN or MLP classifier. With a single modality
// the graph is one trunk topped by a Dense head named "classifier". With
// several, each modality gets its own input and trunk, the trunks are
// concatenated along the last axis and topped by a regularized Dense
// head named "final_classifier".
func NewMultimodal(cfg ModelConfig) (*Graph, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	mods := cfg.modalities()
	trunk := func(g *Graph, mod Modality) int {
		shape := cfg.Inputs[mod]
		x := g.Add(Layer{Kind: Input, Name: string(mod), Shape: append([]int(nil), shape...)})
		if cfg.DataAugmentation {
			x = g.Add(Layer{Kind: RandomRotation, Factor: [2]float64{-0.2, 0.5}}, x)
		}
		if cfg.MLP {
			return DenseBody(g, x, cfg.Neurons, cfg.Dropout)
		}
		kernel, ok := cfg.Kernels[mod]
		if !ok || kernel[0] <= 0 || kernel[1] <= 0 {
			c := shape[len(shape)-1]
			kernel = [2]int{c, c}
		}
		return ConvBody(g, x, cfg.Neurons, kernel, cfg.Regularizer, cfg.Pool, cfg.Dropout)
	}

	if len(mods) == 1 {
		g := NewGraph("model_with_1_input")
		body := trunk(g, mods[0])
		out := g.Add(Layer{Kind: Dense, Name: "classifier", Units: cfg.Output, Activation: cfg.LastActivation}, body)
		g.Outputs = []int{out}
		return g, nil
	}
	g := NewGraph("eis_multimodal")
	bodies := make([]int, len(mods))
	for i, mod := range mods {
		bodies[i] = trunk(g, mod)
	}
	combined := g.Add(Layer{Kind: Concatenate, Axis: -1}, bodies...)
	out := g.Add(Layer{
		Kind:        Dense,
		Name:        "final_classifier",
		Units:       cfg.Output,
		Activation:  cfg.LastActivation,
		Regularizer: cfg.Regularizer,
	}, combined)
	g.Outputs = []int{out}
	return g, nil
}

// BayesianConfig configures a Bayesian neural network regressor.
type BayesianConfig struct {
	// Features names the scalar inputs, one per feature.
	Features []string `toml:"features"`

	// Hidden holds the units of each DenseVariational layer.
	Hidden []int `toml:"hidden"`

	// TrainSize is the number of training samples. The KL weight of
	// each DenseVariational layer is 1/TrainSize.
	TrainSize int `toml:"train_size"`

	LastActivation string `toml:"last_activation"`

	Optimizer string   `toml:"optimizer"`
	Loss      string   `toml:"loss"`
	Metrics   []string `toml:"metrics"`

	BatchSize       int     `toml:"batch_size"`
	Epochs          int     `toml:"epochs"`
	ValidationSplit float64 `toml:"validation_split"`
}

// NewBayesian builds a Bayesian neural network: one scalar input per
// feature, concatenated and batch normalized, followed by one
// DenseVariational layer per hidden unit count, a Dense layer producing
// the two distribution parameters, and an IndependentNormal output.
func NewBayesian(cfg BayesianConfig) (*Graph, error) {
	const op = "nn.NewBayesian"
	if len(cfg.Features) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "no features")
	}
	seen := make(map[string]bool)
	for _, f := range cfg.Features {
		if seen[f] {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "duplicate feature %q", f)
		}
		seen[f] = true
	}
	if cfg.TrainSize <= 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "training size must be positive, got %d", cfg.TrainSize)
	}
	if err := checkUnits(op, "hidden unit", cfg.Hidden); err != nil {
		return nil, err
	}
	if err := checkActivation(op, cfg.LastActivation); err != nil {
		return nil, err
	}

	g := NewGraph("bayesian_nn")
	inputs := make([]int, len(cfg.Features))
	for i, f := range cfg.Features {
		inputs[i] = g.Add(Layer{Kind: Input, Name: f, Shape: []int{1}})
	}
	x := g.Add(Layer{Kind: Concatenate, Axis: -1}, inputs...)
	x = g.Add(Layer{Kind: BatchNormalization}, x)
	for _, units := range cfg.Hidden {
		x = g.Add(Layer{
			Kind:       DenseVariational,
			Units:      units,
			Activation: cfg.LastActivation,
			KLWeight:   1 / float64(cfg.TrainSize),
		}, x)
	}
	x = g.Add(Layer{Kind: Dense, Units: 2}, x)
	out := g.Add(Layer{Kind: IndependentNormal, Units: 1}, x)
	g.Outputs = []int{out}
	return g, nil
}
