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

package eis

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx"
)

// ReadXLSX reads a table from the named sheet of a Microsoft Excel file,
// or from its first sheet if sheet is empty. The first row holds the
// column names. Cells are parsed the same way as by ReadCSV, and opts.Comma
// is ignored.
func ReadXLSX(path, sheet string, opts CSVOptions) (*Table, error) {
	const op = "ReadXLSX"
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("eis: opening xlsx file: %v", err)
	}
	var s *xlsx.Sheet
	if sheet == "" {
		if len(f.Sheets) == 0 {
			return nil, Errorf(ErrEmptyTable, op, "%s has no sheets", path)
		}
		s = f.Sheets[0]
	} else {
		var ok bool
		if s, ok = f.Sheet[sheet]; !ok {
			return nil, Errorf(ErrInvalidParameter, op, "no sheet %s in %s", sheet, path)
		}
	}

	var recs [][]string
	for j := 0; j < s.MaxRow; j++ {
		rec := make([]string, s.MaxCol)
		blank := true
		for i := range rec {
			rec[i] = strings.TrimSpace(s.Cell(j, i).Value)
			blank = blank && rec[i] == ""
		}
		if blank {
			continue
		}
		recs = append(recs, rec)
	}
	if len(recs) > 0 {
		// Drop unnamed trailing columns.
		n := len(recs[0])
		for n > 0 && recs[0][n-1] == "" {
			n--
		}
		for i := range recs {
			recs[i] = recs[i][:n]
		}
	}
	return fromRecords(op, recs, opts)
}
