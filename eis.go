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

// Package eis holds the tabular data model shared by the Exploration
// Information System toolkit: tables with named, typed columns that
// can optionally be geometry-aware, plus the error kinds returned
// by every package in the toolkit.
//
// Numerical work lives in the subpackages: coda for compositional data
// transforms, prep for table preparation, predict for running fitted
// estimators, raster and spatial for gridded data, nn for neural network
// layer graphs, and stattest for statistical testing.
package eis

// Version gives the version number.
const Version = "0.3.0"

// Role is a single-character tag describing how a table column is used
// when preparing data for modeling.
type Role byte

// Column roles.
const (
	Target      Role = 't'
	Value       Role = 'v'
	Binary      Role = 'b'
	Categorical Role = 'c'
	Identity    Role = 'i'
	Geometry    Role = 'g'
	Other       Role = 'n'
)

// Valid returns whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case Target, Value, Binary, Categorical, Identity, Geometry, Other:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Fields maps column names to their roles.
type Fields map[string]Role

// ParseFields converts a map of column names to single-character role
// strings (as found in configuration files) into Fields.
func ParseFields(m map[string]string) (Fields, error) {
	f := make(Fields, len(m))
	for k, v := range m {
		if len(v) != 1 || !Role(v[0]).Valid() {
			return nil, Errorf(ErrInvalidParameter, "ParseFields", "column %q has invalid role %q", k, v)
		}
		f[k] = Role(v[0])
	}
	return f, nil
}

// Names returns the names of the columns with any of the given roles.
func (f Fields) Names(roles ...Role) []string {
	var o []string
	for name, r := range f {
		for _, rr := range roles {
			if r == rr {
				o = append(o, name)
				break
			}
		}
	}
	return o
}
