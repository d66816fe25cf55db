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

// Package predict runs fitted estimators on feature tables and assembles
// their output into result tables.
package predict

import (
	"gonum.org/v1/gonum/mat"
)

// EstimatorType tells whether a model predicts categories or quantities.
type EstimatorType int

// Estimator types.
const (
	Classifier EstimatorType = iota
	Regressor
)

func (e EstimatorType) String() string {
	switch e {
	case Classifier:
		return "classifier"
	case Regressor:
		return "regressor"
	default:
		return "unknown"
	}
}

// DType is the element type of a model's raw predictions.
type DType int

// Prediction element types.
const (
	Float DType = iota
	Int
)

// Prediction holds the raw output of a model: one value per row.
type Prediction struct {
	Values []float64
	DType  DType
}

// Model is a fitted estimator. The set of implementations is closed:
// *RandomForestClassifier, *RandomForestRegressor, and *LogisticRegression.
type Model interface {
	// Predict returns one prediction for every row of X.
	Predict(X *mat.Dense) (Prediction, error)

	EstimatorType() EstimatorType

	// NumFeatures returns the number of columns the model expects in X.
	NumFeatures() int

	model()
}

func (*RandomForestClassifier) model() {}
func (*RandomForestRegressor) model()  {}
func (*LogisticRegression) model()     {}

// Name returns the estimator name of m.
func Name(m Model) string {
	switch m.(type) {
	case *RandomForestClassifier:
		return "RandomForestClassifier"
	case *RandomForestRegressor:
		return "RandomForestRegressor"
	case *LogisticRegression:
		return "LogisticRegression"
	default:
		return "unknown"
	}
}
