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

package eisutil

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spatialmodel/eis"
)

func TestVersion(t *testing.T) {
	var b bytes.Buffer
	Root.SetOut(&b)
	defer Root.SetOut(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "EIS v" + eis.Version + "\n"; b.String() != want {
		t.Errorf("%q != %q", b.String(), want)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClosureCSV(t *testing.T) {
	in := writeFile(t, "comp.csv", "a,b,c\n1,1,2\n2,3,5\n")
	Cfg.Set("X", "")
	Cfg.Set("Y", "")
	Cfg.Set("DecimalComma", false)
	tbl, err := readTable(in)
	if err != nil {
		t.Fatal(err)
	}
	o, err := closure(tbl)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(filepath.Dir(in), "closed.csv")
	if err := writeTable(out, o); err != nil {
		t.Fatal(err)
	}
	back, err := readTable(out)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < back.NumRows(); i++ {
		var sum float64
		for _, name := range back.Names() {
			v, err := back.Floats(name)
			if err != nil {
				t.Fatal(err)
			}
			sum += v[i]
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("row %d sums to %g", i, sum)
		}
	}
}

func TestPLRColumn(t *testing.T) {
	tbl, err := eis.NewTable(
		eis.NewFloatColumn("a", []float64{1, 2}),
		eis.NewFloatColumn("b", []float64{1, 2}),
		eis.NewFloatColumn("c", []float64{1, 2}),
	)
	if err != nil {
		t.Fatal(err)
	}
	o, err := PLR(tbl, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(o.Names(), []string{"a"}) {
		t.Fatalf("columns: %v", o.Names())
	}
	v, _ := o.Floats("a")
	for i, x := range v {
		if math.Abs(x) > 1e-12 {
			t.Errorf("row %d: equal parts should give 0, got %g", i, x)
		}
	}
}

func TestSeparate(t *testing.T) {
	tbl, err := eis.NewTable(
		eis.NewFloatColumn("cu", []float64{1, 2}),
		eis.NewStringColumn("rock", []string{"a", "b"}),
		eis.NewFloatColumn("deposit", []float64{0, 1}),
	)
	if err != nil {
		t.Fatal(err)
	}
	fields, err := eis.ParseFields(map[string]string{"cu": "v", "rock": "c", "deposit": "t"})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	paths, err := Separate(tbl, fields, dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "values.csv"),
		filepath.Join(dir, "categorical.csv"),
		filepath.Join(dir, "target.csv"),
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("%v != %v", paths, want)
	}
}

func TestPredict(t *testing.T) {
	tbl, err := eis.NewTable(
		eis.NewFloatColumn("id", []float64{1, 2, 3}),
		eis.NewFloatColumn("cu", []float64{0, 1, 2}),
		eis.NewFloatColumn("deposit", []float64{0, 1, 1}),
	)
	if err != nil {
		t.Fatal(err)
	}
	fields, err := eis.ParseFields(map[string]string{"id": "i", "cu": "v", "deposit": "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Predict(tbl, fields, "", logger()); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("no model: %v", err)
	}
	model := writeFile(t, "model.json", `{"coef": [2], "intercept": -1, "classes": [0, 1], "integer_classes": true}`)
	o, err := Predict(tbl, fields, model, logger())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(o.Names(), []string{"id", "result"}) {
		t.Fatalf("columns: %v", o.Names())
	}
	v, _ := o.Floats("result")
	if want := []float64{0, 1, 1}; !reflect.DeepEqual(v, want) {
		t.Errorf("%v != %v", v, want)
	}
}

func TestGetStringMapString(t *testing.T) {
	Cfg.Set("Fields", `{"cu":"v","rock":"c"}`)
	defer Cfg.Set("Fields", "")
	got := GetStringMapString("Fields", Cfg)
	want := map[string]string{"cu": "v", "rock": "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}

	Cfg.Set("Fields", map[string]interface{}{"cu": "v"})
	got = GetStringMapString("Fields", Cfg)
	if !reflect.DeepEqual(got, map[string]string{"cu": "v"}) {
		t.Errorf("map: %v", got)
	}
}

func TestCastFloats(t *testing.T) {
	for _, test := range []struct {
		in   interface{}
		want []float64
	}{
		{in: "[1.000000,2.500000]", want: []float64{1, 2.5}},
		{in: "[]", want: nil},
		{in: []float64{3}, want: []float64{3}},
		{in: []interface{}{1, "2"}, want: []float64{1, 2}},
	} {
		Cfg.Set("Resolution", test.in)
		got, err := castFloats("Resolution")
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, test.want) {
			t.Errorf("%v: %v != %v", test.in, got, test.want)
		}
	}
	Cfg.Set("Resolution", "[a]")
	if _, err := castFloats("Resolution"); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("invalid value: %v", err)
	}
}

func TestOptionalFloat(t *testing.T) {
	Cfg.Set("Threshold", "")
	v, err := optionalFloat("Threshold")
	if err != nil || v != nil {
		t.Errorf("empty: %v, %v", v, err)
	}
	Cfg.Set("Threshold", "0.5")
	defer Cfg.Set("Threshold", "")
	v, err = optionalFloat("Threshold")
	if err != nil {
		t.Fatal(err)
	}
	if v == nil || *v != 0.5 {
		t.Errorf("got %v", v)
	}
}

func TestStats(t *testing.T) {
	tbl, err := eis.NewTable(
		eis.NewFloatColumn("x", []float64{1, 2, 3, 4, 5}),
		eis.NewFloatColumn("y", []float64{2, 4, 6, 8, 10}),
		eis.NewStringColumn("rock", []string{"a", "b", "a", "b", "a"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	var b bytes.Buffer
	if err := Stats(&b, tbl, "numerical", "", 1); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"CORRELATION", "COVARIANCE", "SUMMARY", "JARQUE-BERA"} {
		if !strings.Contains(strings.ToUpper(b.String()), s) {
			t.Errorf("output is missing %s:\n%s", s, b.String())
		}
	}
	b.Reset()
	if err := Stats(&b, tbl, "categorical", "rock", 1); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "x") {
		t.Errorf("categorical output:\n%s", b.String())
	}
	if err := Stats(&b, tbl, "other", "", 1); !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("invalid type: %v", err)
	}
}

func TestTrainUnknownBackend(t *testing.T) {
	err := Train(Root, TrainConfig{Backend: "no-such-backend"})
	if !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("got %v", err)
	}
}

func TestIDWInvalidResolution(t *testing.T) {
	err := IDW(nil, "v", []float64{1}, nil, 2, "", "out.nc")
	if !errors.Is(err, eis.ErrInvalidParameter) {
		t.Errorf("got %v", err)
	}
}
