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
	"bytes"
	"encoding/json"
	"io"
	"math"

	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is an externally fitted binary logistic regression classifier.
type LogisticRegression struct {
	Coef      []float64
	Intercept float64

	// Classes holds the negative and the positive class.
	Classes [2]float64

	// IntegerClasses is true if the classes were integers when the
	// model was fitted.
	IntegerClasses bool
}

// EstimatorType returns Classifier.
func (*LogisticRegression) EstimatorType() EstimatorType { return Classifier }

// NumFeatures returns the number of coefficients.
func (l *LogisticRegression) NumFeatures() int { return len(l.Coef) }

// PredictProba returns the probability of the positive class for every row of X.
func (l *LogisticRegression) PredictProba(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	p := make([]float64, r)
	for i := range p {
		p[i] = sigmoid(floats.Dot(X.RawRowView(i), l.Coef) + l.Intercept)
	}
	return p
}

// Predict returns the predicted class of every row of X.
func (l *LogisticRegression) Predict(X *mat.Dense) (Prediction, error) {
	if err := checkDims("LogisticRegression.Predict", X, len(l.Coef)); err != nil {
		return Prediction{}, err
	}
	out := Prediction{Values: l.PredictProba(X), DType: Float}
	if l.IntegerClasses {
		out.DType = Int
	}
	for i, p := range out.Values {
		if p > 0.5 {
			out.Values[i] = l.Classes[1]
		} else {
			out.Values[i] = l.Classes[0]
		}
	}
	return out, nil
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// logisticFile is the on-disk form of a fitted binary logistic regression,
// matching scikit-learn's coef_, intercept_ and classes_ attributes.
type logisticFile struct {
	Coef           []float64 `json:"coef"`
	Intercept      float64   `json:"intercept"`
	Classes        []float64 `json:"classes"`
	IntegerClasses bool      `json:"integer_classes"`
}

// LogisticFromJSON reads an externally fitted binary logistic regression.
// The input is an object with fields coef, intercept, classes (the
// negative class, then the positive class) and integer_classes.
func LogisticFromJSON(r io.Reader) (*LogisticRegression, error) {
	const op = "predict.LogisticFromJSON"
	var lf logisticFile
	if err := json.NewDecoder(r).Decode(&lf); err != nil {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "%v", err)
	}
	if len(lf.Coef) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "model has no coefficients")
	}
	if len(lf.Classes) != 2 {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "need exactly two classes, have %d", len(lf.Classes))
	}
	if lf.Classes[0] == lf.Classes[1] {
		return nil, eis.Errorf(eis.ErrInvalidContent, op, "classes are identical")
	}
	return &LogisticRegression{
		Coef:           lf.Coef,
		Intercept:      lf.Intercept,
		Classes:        [2]float64{lf.Classes[0], lf.Classes[1]},
		IntegerClasses: lf.IntegerClasses,
	}, nil
}

// ModelFromJSON reads any externally fitted model: a logistic regression
// if the object has a coef field, or otherwise a random forest.
func ModelFromJSON(r io.Reader) (Model, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, eis.Errorf(eis.ErrInvalidContent, "predict.ModelFromJSON", "%v", err)
	}
	var head struct {
		Coef json.RawMessage `json:"coef"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, eis.Errorf(eis.ErrInvalidContent, "predict.ModelFromJSON", "%v", err)
	}
	if head.Coef != nil {
		return LogisticFromJSON(bytes.NewReader(b))
	}
	return ForestFromJSON(bytes.NewReader(b))
}
