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

package coda

import "github.com/spatialmodel/eis"

// Perturb is the simplex analogue of addition. It is not implemented.
func Perturb(x, y []float64) ([]float64, error) {
	return nil, eis.Errorf(eis.ErrNotImplemented, "coda.Perturb", "")
}

// Power is the simplex analogue of scalar multiplication. It is not
// implemented.
func Power(x []float64, a float64) ([]float64, error) {
	return nil, eis.Errorf(eis.ErrNotImplemented, "coda.Power", "")
}

// InnerProduct is the Aitchison inner product. It is not implemented.
func InnerProduct(x, y []float64) (float64, error) {
	return 0, eis.Errorf(eis.ErrNotImplemented, "coda.InnerProduct", "")
}
