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
	"errors"
	"io/ioutil"
	"math/rand"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/prep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const classifierJSON = `{
	"estimator_type": "classifier",
	"n_features": 2,
	"classes": [0.7, 1.6],
	"trees": [
		{
			"feature": [0, -2, -2],
			"threshold": [0.5, -2, -2],
			"children_left": [1, -1, -1],
			"children_right": [2, -1, -1],
			"value": [[3, 3], [3, 0], [0, 3]]
		},
		{
			"feature": [1, -2, -2],
			"threshold": [10, -2, -2],
			"children_left": [1, -1, -1],
			"children_right": [2, -1, -1],
			"value": [[3, 3], [2, 1], [1, 2]]
		}
	]
}`

const regressorJSON = `{
	"estimator_type": "regressor",
	"n_features": 1,
	"trees": [
		{
			"feature": [0, -2, -2],
			"threshold": [5, -2, -2],
			"children_left": [1, -1, -1],
			"children_right": [2, -1, -1],
			"value": [[0], [1], [3]]
		},
		{
			"feature": [-2],
			"threshold": [-2],
			"children_left": [-1],
			"children_right": [-1],
			"value": [[2]]
		}
	]
}`

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func features(t *testing.T) *eis.Table {
	t.Helper()
	X, err := eis.NewTable(
		eis.NewFloatColumn("a", []float64{0, 1, 0.2}),
		eis.NewFloatColumn("b", []float64{0, 20, 30}),
	)
	require.NoError(t, err)
	return X
}

func TestForestClassifier(t *testing.T) {
	m, err := ForestFromJSON(strings.NewReader(classifierJSON))
	require.NoError(t, err)
	require.IsType(t, &RandomForestClassifier{}, m)
	assert.Equal(t, Classifier, m.EstimatorType())

	Xm, err := features(t).Matrix()
	require.NoError(t, err)
	proba := m.(*RandomForestClassifier).PredictProba(Xm)
	assert.InDeltaSlice(t, []float64{5.0 / 6, 1.0 / 6}, proba.RawRowView(0), 1e-12)
	assert.InDeltaSlice(t, []float64{1.0 / 6, 5.0 / 6}, proba.RawRowView(1), 1e-12)
	// Row 2: tree 1 votes class 0 fully, tree 2 leans class 1.
	assert.InDeltaSlice(t, []float64{4.0 / 6, 2.0 / 6}, proba.RawRowView(2), 1e-12)

	pred, err := m.Predict(Xm)
	require.NoError(t, err)
	assert.Equal(t, Float, pred.DType)
	assert.Equal(t, []float64{0.7, 1.6, 0.7}, pred.Values)
}

func TestForestRegressor(t *testing.T) {
	m, err := ForestFromJSON(strings.NewReader(regressorJSON))
	require.NoError(t, err)
	assert.Equal(t, Regressor, m.EstimatorType())
	pred, err := m.Predict(mat.NewDense(2, 1, []float64{1, 9}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, pred.Values)

	_, err = m.Predict(mat.NewDense(1, 2, []float64{1, 9}))
	assert.True(t, errors.Is(err, eis.ErrInvalidShape))
}

func TestForestFromJSONErrors(t *testing.T) {
	var tests = []struct {
		name, in string
	}{
		{name: "syntax", in: `{`},
		{name: "no trees", in: `{"estimator_type": "regressor", "n_features": 1, "trees": []}`},
		{name: "bad type", in: strings.Replace(regressorJSON, "regressor", "clusterer", 1)},
		{name: "ragged", in: strings.Replace(regressorJSON, `[0, -2, -2]`, `[0, -2]`, 1)},
		{name: "bad feature", in: strings.Replace(regressorJSON, `"feature": [0,`, `"feature": [4,`, 1)},
		{name: "cycle", in: strings.Replace(regressorJSON, `"children_left": [1, -1, -1]`, `"children_left": [0, -1, -1]`, 1)},
		{name: "one class", in: strings.Replace(classifierJSON, `[0.7, 1.6]`, `[0.7]`, 1)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ForestFromJSON(strings.NewReader(test.in))
			assert.True(t, errors.Is(err, eis.ErrInvalidContent), "have %v", err)
		})
	}
}

const logisticJSON = `{"coef": [1, -1], "intercept": 0.5, "classes": [3, 7], "integer_classes": true}`

func TestLogisticFromJSON(t *testing.T) {
	m, err := LogisticFromJSON(strings.NewReader(logisticJSON))
	require.NoError(t, err)
	assert.Equal(t, [2]float64{3, 7}, m.Classes)
	assert.Equal(t, 2, m.NumFeatures())

	X := mat.NewDense(3, 2, []float64{0, 0, 0, 2, 2, 0})
	assert.InDeltaSlice(t, []float64{0.62245933, 0.18242552, 0.92414182}, m.PredictProba(X), 1e-8)
	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, Int, pred.DType)
	assert.Equal(t, []float64{7, 3, 7}, pred.Values)

	for _, in := range []string{
		`{"coef": [], "classes": [0, 1]}`,
		`{"coef": [1], "classes": [1]}`,
		`{"coef": [1], "classes": [1, 1]}`,
		`{"coef": [1],`,
	} {
		_, err := LogisticFromJSON(strings.NewReader(in))
		assert.True(t, errors.Is(err, eis.ErrInvalidContent), "%s: have %v", in, err)
	}
}

func TestModelFromJSON(t *testing.T) {
	m, err := ModelFromJSON(strings.NewReader(logisticJSON))
	require.NoError(t, err)
	assert.Equal(t, "LogisticRegression", Name(m))

	m, err = ModelFromJSON(strings.NewReader(classifierJSON))
	require.NoError(t, err)
	assert.Equal(t, "RandomForestClassifier", Name(m))

	_, err = ModelFromJSON(strings.NewReader("[1, 2]"))
	assert.True(t, errors.Is(err, eis.ErrInvalidContent), "have %v", err)
}

func TestPredictHeldOut(t *testing.T) {
	a := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	b := []float64{7, 6, 5, 4, 3, 2, 1, 0}
	X, err := eis.NewTable(eis.NewFloatColumn("a", a), eis.NewFloatColumn("b", b))
	require.NoError(t, err)
	y, err := eis.NewTable(eis.NewFloatColumn("deposit", []float64{3, 3, 3, 3, 7, 7, 7, 7}))
	require.NoError(t, err)

	_, xTest, _, yTest, err := prep.Split(X, y, 0.25, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Equal(t, 2, xTest.NumRows())

	m, err := ModelFromJSON(strings.NewReader(logisticJSON))
	require.NoError(t, err)
	result, err := Predict(m, xTest, nil, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, xTest.NumRows(), result.NumRows())

	// a - b + 0.5 > 0 exactly when a >= 4, which is where the label is 7.
	have, err := result.Floats(ResultName)
	require.NoError(t, err)
	want, err := yTest.Floats("deposit")
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestPredictRoundsClassifierOutput(t *testing.T) {
	m, err := ForestFromJSON(strings.NewReader(classifierJSON))
	require.NoError(t, err)
	result, err := Predict(m, features(t), nil, nil, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{ResultName}, result.Names())
	v, err := result.Floats(ResultName)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 1}, v)
	assert.False(t, result.IsGeo())
}

func TestPredictJoinsIdentity(t *testing.T) {
	m, err := ForestFromJSON(strings.NewReader(classifierJSON))
	require.NoError(t, err)
	ids, err := eis.NewTable(
		eis.NewFloatColumn("id", []float64{10, 11, 12}),
		eis.NewGeomColumn("geometry", []geom.Geom{geom.Point{}, geom.Point{X: 1}, geom.Point{X: 2}}),
	)
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	fields := eis.Fields{"id": eis.Identity, "geometry": eis.Geometry, "a": eis.Value, "b": eis.Value}
	result, err := Predict(m, features(t), ids, fields, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "geometry", ResultName}, result.Names())
	assert.True(t, result.IsGeo())
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "RandomForestClassifier", hook.LastEntry().Data["model"])

	// A geometry column with another name doesn't make the result geometry-aware.
	fields = eis.Fields{"id": eis.Identity, "shape": eis.Geometry}
	result, err = Predict(m, features(t), ids, fields, logger)
	require.NoError(t, err)
	assert.False(t, result.IsGeo())
}

func TestPredictErrors(t *testing.T) {
	m, err := ForestFromJSON(strings.NewReader(classifierJSON))
	require.NoError(t, err)
	empty, err := eis.NewTable()
	require.NoError(t, err)
	noRows, err := eis.NewTable(eis.NewFloatColumn("a", nil), eis.NewFloatColumn("b", nil))
	require.NoError(t, err)
	shortIDs, err := eis.NewTable(eis.NewFloatColumn("id", []float64{1}))
	require.NoError(t, err)

	var tests = []struct {
		name  string
		model Model
		X     *eis.Table
		ids   *eis.Table
		msg   string
	}{
		{name: "nil X", model: m, X: nil, msg: "argument X is not a table"},
		{name: "nil model", model: nil, X: features(t), msg: "argument model is not one of"},
		{name: "no columns", model: m, X: empty, msg: "table has no column"},
		{name: "no rows", model: m, X: noRows, msg: "table has no rows"},
		{name: "row mismatch", model: m, X: features(t), ids: shortIDs, msg: "X and ids have different number of rows"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Predict(test.model, test.X, test.ids, nil, quietLogger())
			require.Error(t, err)
			assert.True(t, errors.Is(err, eis.ErrInvalidParameter))
			assert.Contains(t, err.Error(), test.msg)
		})
	}
}

func TestCheck(t *testing.T) {
	m := &LogisticRegression{Coef: []float64{1, 2}, Classes: [2]float64{0, 1}}
	assert.NoError(t, Check(m, features(t)))

	one, err := features(t).Select("a")
	require.NoError(t, err)
	assert.True(t, errors.Is(Check(m, one), eis.ErrInvalidParameter))

	text, err := eis.NewTable(
		eis.NewFloatColumn("a", []float64{1}),
		eis.NewStringColumn("b", []string{"x"}),
	)
	require.NoError(t, err)
	assert.True(t, errors.Is(Check(m, text), eis.ErrInvalidColumn))
}
