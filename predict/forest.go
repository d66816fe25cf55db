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

package predict

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/mat"
)

// Tree is a fitted binary decision tree stored as parallel node arrays.
// Node 0 is the root. A node whose Left child is -1 is a leaf. At an
// internal node, rows whose Feature value is less than or equal to
// Threshold go left. Value holds the per-class sample counts (classifiers)
// or the single predicted value (regressors) of every node.
type Tree struct {
	Feature   []int       `json:"feature"`
	Threshold []float64   `json:"threshold"`
	Left      []int       `json:"children_left"`
	Right     []int       `json:"children_right"`
	Value     [][]float64 `json:"value"`
}

// leaf returns the leaf value reached by row x.
func (t *Tree) leaf(x []float64) []float64 {
	n := 0
	for t.Left[n] != -1 {
		if x[t.Feature[n]] <= t.Threshold[n] {
			n = t.Left[n]
		} else {
			n = t.Right[n]
		}
	}
	return t.Value[n]
}

func (t *Tree) check(nFeatures, nValues int) error {
	n := len(t.Left)
	if n == 0 || len(t.Right) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays have different lengths")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != nValues {
			return fmt.Errorf("node %d has %d values, want %d", i, len(t.Value[i]), nValues)
		}
		if t.Left[i] == -1 {
			continue
		}
		// Children always come after their parents, so walks terminate.
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d has invalid children", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, t.Feature[i], nFeatures)
		}
	}
	return nil
}

// RandomForestClassifier predicts the class with the highest mean
// probability across its trees.
type RandomForestClassifier struct {
	Trees    []Tree
	Classes  []float64
	Features int

	// IntegerClasses is true if the classes were integers when the
	// forest was fitted. Predictions then have the Int DType.
	IntegerClasses bool
}

// EstimatorType returns Classifier.
func (*RandomForestClassifier) EstimatorType() EstimatorType { return Classifier }

// NumFeatures returns the number of features the forest was fitted with.
func (f *RandomForestClassifier) NumFeatures() int { return f.Features }

// Predict returns the predicted class of every row of X.
func (f *RandomForestClassifier) Predict(X *mat.Dense) (Prediction, error) {
	if err := checkDims("RandomForestClassifier.Predict", X, f.Features); err != nil {
		return Prediction{}, err
	}
	proba := f.PredictProba(X)
	r, _ := proba.Dims()
	out := Prediction{Values: make([]float64, r), DType: Float}
	if f.IntegerClasses {
		out.DType = Int
	}
	for i := 0; i < r; i++ {
		best := 0
		row := proba.RawRowView(i)
		for k, p := range row {
			if p > row[best] {
				best = k
			}
		}
		out.Values[i] = f.Classes[best]
	}
	return out, nil
}

// PredictProba returns the mean class probabilities across all trees,
// with one column per class.
func (f *RandomForestClassifier) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	proba := mat.NewDense(r, len(f.Classes), nil)
	for i := 0; i < r; i++ {
		x := X.RawRowView(i)
		row := proba.RawRowView(i)
		for t := range f.Trees {
			v := f.Trees[t].leaf(x)
			var sum float64
			for _, c := range v {
				sum += c
			}
			if sum == 0 {
				continue
			}
			for k, c := range v {
				row[k] += c / sum
			}
		}
		for k := range row {
			row[k] /= float64(len(f.Trees))
		}
	}
	return proba
}

// RandomForestRegressor predicts the mean of its trees' predictions.
type RandomForestRegressor struct {
	Trees    []Tree
	Features int
}

// EstimatorType returns Regressor.
func (*RandomForestRegressor) EstimatorType() EstimatorType { return Regressor }

// NumFeatures returns the number of features the forest was fitted with.
func (f *RandomForestRegressor) NumFeatures() int { return f.Features }

// Predict returns the predicted value of every row of X.
func (f *RandomForestRegressor) Predict(X *mat.Dense) (Prediction, error) {
	if err := checkDims("RandomForestRegressor.Predict", X, f.Features); err != nil {
		return Prediction{}, err
	}
	r, _ := X.Dims()
	out := Prediction{Values: make([]float64, r), DType: Float}
	for i := 0; i < r; i++ {
		x := X.RawRowView(i)
		var sum float64
		for t := range f.Trees {
			sum += f.Trees[t].leaf(x)[0]
		}
		out.Values[i] = sum / float64(len(f.Trees))
	}
	return out, nil
}

// forestFile is the on-disk form of a fitted forest, matching the
// node arrays that scikit-learn exposes on each tree's tree_ attribute.
type forestFile struct {
	EstimatorType  string    `json:"estimator_type"`
	NFeatures      int       `json:"n_features"`
	Classes        []float64 `json:"classes"`
	IntegerClasses bool      `json:"integer_classes"`
	Trees          []Tree    `json:"trees"`
}

// ForestFromJSON reads an externally fitted random forest. The input is
// an object with fields estimator_type ("classifier" or "regressor"),
// n_features, classes and integer_classes (classifiers only), and trees.
func ForestFromJSON(r io.Reader) (Model, error) {
	const op = "predict.ForestFromJSON"
	var ff forestFile
	if err := json.NewDecoder(r).Decode(&ff); err != nil {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "%v", err)
	}
	if len(ff.Trees) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "forest has no trees")
	}
	if ff.NFeatures <= 0 {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "n_features must be positive, got %d", ff.NFeatures)
	}
	nValues := 1
	if ff.EstimatorType == "classifier" {
		if len(ff.Classes) < 2 {
			return nil, eis.Errorf(eis.ErrInvalidContent, op, "classifier needs at least two classes")
		}
		nValues = len(ff.Classes)
	}
	for i := range ff.Trees {
		if err := ff.Trees[i].check(ff.NFeatures, nValues); err != nil {
			return nil, eis.Errorf(eis.ErrInvalidContent, op, "tree %d: %v", i, err)
		}
	}
	switch ff.EstimatorType {
	case "classifier":
		return &RandomForestClassifier{
			Trees:          ff.Trees,
			Classes:        ff.Classes,
			Features:       ff.NFeatures,
			IntegerClasses: ff.IntegerClasses,
		}, nil
	case "regressor":
		return &RandomForestRegressor{Trees: ff.Trees, Features: ff.NFeatures}, nil
	default:
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "unknown estimator type %q", ff.EstimatorType)
	}
}

func checkDims(op string, X *mat.Dense, features int) error {
	if X == nil {
		return eis.Errorf(eis.ErrInvalidParameter, op, "X is nil")
	}
	if _, c := X.Dims(); c != features {
		return eis.Errorf(eis.ErrInvalidShape, op, "X has %d features, model expects %d", c, features)
	}
	return nil
}
