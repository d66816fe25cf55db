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

// Package nn builds neural network layer graphs for mineral prospectivity
// models and drives their training. The numerical work (gradients,
// convolutions, distribution sampling) is done by a Backend; this package
// owns the graph topology, data preparation, cross validation and the
// summaries computed from predictions.
package nn

import (
	"fmt"

	"github.com/spatialmodel/eis"
)

// Kind is the type of a layer.
type Kind int

// The kinds of layers a Graph can hold.
const (
	Input Kind = iota
	RandomRotation
	Conv2D
	Dropout
	BatchNormalization
	MaxPool2D
	Flatten
	Dense
	Concatenate
	DenseVariational
	IndependentNormal
)

var kindNames = [...]string{
	Input:              "Input",
	RandomRotation:     "RandomRotation",
	Conv2D:             "Conv2D",
	Dropout:            "Dropout",
	BatchNormalization: "BatchNormalization",
	MaxPool2D:          "MaxPool2D",
	Flatten:            "Flatten",
	Dense:              "Dense",
	Concatenate:        "Concatenate",
	DenseVariational:   "DenseVariational",
	IndependentNormal:  "IndependentNormal",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Regularizer is a kernel weight penalty. A zero Regularizer applies no
// penalty.
type Regularizer struct {
	L1, L2 float64
}

// Layer is a node in a Graph. Only the fields relevant to Kind are set.
type Layer struct {
	Kind Kind
	Name string

	// Parents are the indices of the layers whose outputs feed this one.
	Parents []int

	// Shape is the per-sample input shape of an Input layer.
	Shape []int

	// Units is the number of filters of a Conv2D layer, or the number of
	// outputs of a Dense, DenseVariational or IndependentNormal layer.
	Units int

	Kernel      [2]int
	Padding     string
	Activation  string
	Regularizer Regularizer

	// Rate is the fraction of inputs dropped by a Dropout layer.
	Rate float64

	// Pool is the pooling window of a MaxPool2D layer.
	Pool int

	// Axis is the concatenation axis of a Concatenate layer.
	Axis int

	// Factor is the rotation range of a RandomRotation layer, as
	// fractions of a full turn.
	Factor [2]float64

	// KLWeight scales the Kullback-Leibler term of a DenseVariational
	// layer.
	KLWeight float64
}

// Graph is a directed acyclic graph of layers.
type Graph struct {
	Name    string
	Layers  []Layer
	Inputs  []int
	Outputs []int
}

// NewGraph returns an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// Add appends l to the graph, fed by the given parent layers, and returns
// its index.
func (g *Graph) Add(l Layer, parents ...int) int {
	l.Parents = append([]int(nil), parents...)
	g.Layers = append(g.Layers, l)
	i := len(g.Layers) - 1
	if l.Kind == Input {
		g.Inputs = append(g.Inputs, i)
	}
	return i
}

// Layer returns the layer with the given name.
func (g *Graph) Layer(name string) (Layer, bool) {
	for _, l := range g.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// Validate checks that every parent reference is valid, that only input
// layers lack parents, that the graph has inputs and outputs, and that
// it has no cycles. It returns the layers in topological order.
func (g *Graph) Validate() ([]int, error) {
	const op = "nn.Validate"
	if len(g.Inputs) == 0 || len(g.Outputs) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "graph %q needs inputs and outputs", g.Name)
	}
	children := make([][]int, len(g.Layers))
	indegree := make([]int, len(g.Layers))
	for i, l := range g.Layers {
		if l.Kind == Input && len(l.Parents) > 0 {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "input layer %d has parents", i)
		}
		if l.Kind != Input && len(l.Parents) == 0 {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "%s layer %d has no parents", l.Kind, i)
		}
		for _, p := range l.Parents {
			if p < 0 || p >= len(g.Layers) {
				return nil, eis.Errorf(eis.ErrInvalidParameter, op, "layer %d has invalid parent %d", i, p)
			}
			children[p] = append(children[p], i)
			indegree[i]++
		}
	}
	for _, o := range g.Outputs {
		if o < 0 || o >= len(g.Layers) {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "invalid output layer %d", o)
		}
	}
	var queue, order []int
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, c := range children[i] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	if len(order) != len(g.Layers) {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "graph %q has a cycle", g.Name)
	}
	return order, nil
}
