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

// Package prep prepares tables for modeling: it separates columns by
// role, encodes categories, handles missing data, and splits tables into
// training and test sets.
package prep

import (
	"github.com/spatialmodel/eis"
)

// Separate partitions the columns of t by the roles in fields, returning
// the numeric and binary value columns, the categorical columns, the
// target columns, and the identity and geometry columns. Columns tagged
// as other, and columns of t not named in fields, are dropped. Output
// column order follows the column order of t. If t is geometry-aware
// and its geometry column is tagged as geometry, identity keeps the
// geometry designation.
func Separate(t *eis.Table, fields eis.Fields) (values, categorical, target, identity *eis.Table, err error) {
	const op = "prep.Separate"
	if t == nil {
		err = eis.Errorf(eis.ErrInvalidParameter, op, "argument t is not a table")
		return
	}
	if t.NumCols() == 0 {
		err = eis.Errorf(eis.ErrInvalidContent, op, "table has no column")
		return
	}
	if t.NumRows() == 0 {
		err = eis.Errorf(eis.ErrInvalidContent, op, "table has no rows")
		return
	}
	if len(fields) == 0 {
		err = eis.Errorf(eis.ErrInvalidContent, op, "fields is empty")
		return
	}
	for name, r := range fields {
		if !r.Valid() {
			err = eis.Errorf(eis.ErrInvalidParameter, op, "column %q has invalid role %q", name, r)
			return
		}
		if r != eis.Other && !t.Has(name) {
			err = eis.Errorf(eis.ErrInvalidContent, op, "fields and column names of table do not match: %q not found", name)
			return
		}
	}

	groups := make(map[eis.Role][]string)
	for _, name := range t.Names() {
		r, ok := fields[name]
		if !ok {
			continue
		}
		switch r {
		case eis.Binary:
			r = eis.Value
		case eis.Geometry:
			r = eis.Identity
		}
		groups[r] = append(groups[r], name)
	}
	if values, err = t.Select(groups[eis.Value]...); err != nil {
		return
	}
	if categorical, err = t.Select(groups[eis.Categorical]...); err != nil {
		return
	}
	if target, err = t.Select(groups[eis.Target]...); err != nil {
		return
	}
	identity, err = t.Select(groups[eis.Identity]...)
	return
}
