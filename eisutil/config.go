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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/eis"
	"github.com/spf13/cast"
)

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}
	case map[string]string:
		return v
	case map[string]interface{}:
		return cast.ToStringMapString(v)
	case string:
		o := make(map[string]string)
		if strings.TrimSpace(v) == "" {
			return o
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			panic(fmt.Errorf("eis: invalid JSON for %s: %v", varName, err))
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for GetStringMapString variable %s: %#v", varName, i))
	}
}

func expand(s string) string { return os.ExpandEnv(s) }

// optionalFloat returns nil if the named option is empty, or otherwise its
// value as a number.
func optionalFloat(name string) (*float64, error) {
	i := Cfg.Get(name)
	if s, ok := i.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if i == nil {
		return nil, nil
	}
	v, err := cast.ToFloat64E(i)
	if err != nil {
		return nil, eis.Errorf(eis.ErrInvalidParameter, "eisutil", "option %s: %v", name, err)
	}
	return &v, nil
}

// castFloats returns the named option as a slice of numbers. Values set
// from the command line arrive as strings of the form "[1.0,2.5]".
func castFloats(name string) ([]float64, error) {
	switch v := Cfg.Get(name).(type) {
	case nil:
		return nil, nil
	case []float64:
		return v, nil
	case []interface{}:
		o := make([]float64, len(v))
		for i, x := range v {
			f, err := cast.ToFloat64E(x)
			if err != nil {
				return nil, eis.Errorf(eis.ErrInvalidParameter, "eisutil", "option %s: %v", name, err)
			}
			o[i] = f
		}
		return o, nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(v), "["), "]"))
		if s == "" {
			return nil, nil
		}
		parts := strings.Split(s, ",")
		o := make([]float64, len(parts))
		for i, p := range parts {
			f, err := cast.ToFloat64E(strings.TrimSpace(p))
			if err != nil {
				return nil, eis.Errorf(eis.ErrInvalidParameter, "eisutil", "option %s: %v", name, err)
			}
			o[i] = f
		}
		return o, nil
	default:
		return nil, eis.Errorf(eis.ErrInvalidParameter, "eisutil", "option %s has invalid type %T", name, v)
	}
}
