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
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eis"
)

// ResultName is the name of the prediction column in tables returned by Predict.
const ResultName = "result"

// Predict runs model m on the features in X and returns a table with the
// predictions in a column named "result". Float predictions of a
// classifier are rounded to the nearest category.
//
// If ids has columns, they are joined in front of the result column by
// row position. If fields tags exactly one column as geometry and that
// column is named "geometry", the result is geometry-aware.
// log may be nil, in which case the standard logger is used.
func Predict(m Model, X, ids *eis.Table, fields eis.Fields, log logrus.FieldLogger) (*eis.Table, error) {
	const op = "predict.Predict"
	if log == nil {
		log = logrus.StandardLogger()
	}
	if X == nil {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "argument X is not a table")
	}
	if m == nil {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op,
			"argument model is not one of (RandomForestClassifier, RandomForestRegressor, LogisticRegression)")
	}
	if X.NumCols() == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "table has no column")
	}
	if X.NumRows() == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "table has no rows")
	}
	if ids != nil && ids.NumCols() > 0 && ids.NumRows() != X.NumRows() {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "X and ids have different number of rows")
	}
	if err := Check(m, X); err != nil {
		return nil, err
	}
	Xm, err := X.Matrix()
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"model":    Name(m),
		"type":     m.EstimatorType(),
		"rows":     X.NumRows(),
		"features": X.NumCols(),
	}).Info("eis predicting")

	pred, err := m.Predict(Xm)
	if err != nil {
		return nil, err
	}
	values := pred.Values
	if m.EstimatorType() == Classifier && pred.DType == Float {
		for i, v := range values {
			values[i] = math.Trunc(v + 0.5)
		}
	}
	result, err := eis.NewTable(eis.NewFloatColumn(ResultName, values))
	if err != nil {
		return nil, err
	}
	if ids == nil || ids.NumCols() == 0 {
		return result, nil
	}
	out, err := eis.Hstack(ids, result)
	if err != nil {
		return nil, err
	}
	out.UnsetGeometry()
	if g := fields.Names(eis.Geometry); len(g) == 1 && g[0] == eis.GeometryName && out.Has(eis.GeometryName) {
		if err := out.SetGeometry(eis.GeometryName); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Check makes sure X can be passed to m: it must have the number of
// features m was fitted with, all of them numeric and none missing.
func Check(m Model, X *eis.Table) error {
	const op = "predict.Check"
	if m == nil || X == nil {
		return eis.Errorf(eis.ErrInvalidParameter, op, "model and table must not be nil")
	}
	if X.NumCols() != m.NumFeatures() {
		return eis.Errorf(eis.ErrInvalidParameter, op, "table has %d columns, %s expects %d",
			X.NumCols(), Name(m), m.NumFeatures())
	}
	for i := 0; i < X.NumCols(); i++ {
		if _, ok := X.ColumnAt(i).(*eis.FloatColumn); !ok {
			return eis.Errorf(eis.ErrInvalidColumn, op, "column %q is not numeric", X.ColumnAt(i).Name())
		}
	}
	if X.HasNaN() {
		return eis.Errorf(eis.ErrInvalidContent, op, "table contains missing values")
	}
	return nil
}
