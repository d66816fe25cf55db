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

package prep

import (
	"math"
	"math/rand"

	"github.com/spatialmodel/eis"
)

// Unify joins the value columns and the encoded categorical columns of a
// table side by side, aligned by row position. Either may be nil or empty.
func Unify(values, categorical *eis.Table) (*eis.Table, error) {
	if values.NumCols() == 0 && categorical.NumCols() == 0 {
		return nil, eis.Errorf(eis.ErrEmptyTable, "prep.Unify", "no columns to unify")
	}
	return eis.Hstack(values, categorical)
}

// Split randomly divides the rows of X and y into training and test sets,
// sampling without replacement. testSize is the fraction of rows held out
// for testing; the number of test rows is rounded up. y may be nil.
func Split(X, y *eis.Table, testSize float64, rng *rand.Rand) (xTrain, xTest, yTrain, yTest *eis.Table, err error) {
	const op = "prep.Split"
	n := X.NumRows()
	if n < 2 {
		err = eis.Errorf(eis.ErrEmptyTable, op, "need at least two rows, have %d", n)
		return
	}
	if y != nil && y.NumRows() != n {
		err = eis.Errorf(eis.ErrInvalidParameter, op, "X and y have different number of rows: %d != %d", n, y.NumRows())
		return
	}
	if testSize <= 0 || testSize >= 1 {
		err = eis.Errorf(eis.ErrInvalidParameter, op, "test size must be in (0, 1), got %g", testSize)
		return
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		err = eis.Errorf(eis.ErrInvalidParameter, op, "test size %g leaves no training rows", testSize)
		return
	}
	perm := rng.Perm(n)
	test, train := perm[:nTest], perm[nTest:]
	xTrain, xTest = X.Rows(train), X.Rows(test)
	if y != nil {
		yTrain, yTest = y.Rows(train), y.Rows(test)
	}
	return
}
