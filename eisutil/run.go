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
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eis"
	"github.com/spatialmodel/eis/coda"
	"github.com/spatialmodel/eis/nn"
	"github.com/spatialmodel/eis/predict"
	"github.com/spatialmodel/eis/prep"
	"github.com/spatialmodel/eis/raster"
	"github.com/spatialmodel/eis/spatial"
	"github.com/spf13/cobra"
)

// PLR applies the pivot log-ratio transform to every column of t, or if
// column is not empty, returns the single coordinate pivoting on it.
func PLR(t *eis.Table, column string) (*eis.Table, error) {
	if column == "" {
		return coda.PLR(t)
	}
	v, err := coda.SinglePLR(t, column)
	if err != nil {
		return nil, err
	}
	return eis.NewTable(eis.NewFloatColumn(column, v))
}

// ALR applies the additive log-ratio transform to the given columns of t,
// or to all of them if columns is empty. If inverse is true, t holds
// log-ratios and the closed compositions are returned instead, with the
// denominator part named inverseName.
func ALR(t *eis.Table, columns []string, denominator int, inverse bool, inverseName string) (*eis.Table, error) {
	if inverse {
		return coda.InverseALR(t, inverseName)
	}
	if len(columns) == 0 {
		columns = t.Names()
	}
	return coda.ALR(t, columns, denominator)
}

func closure(t *eis.Table) (*eis.Table, error) { return coda.Closure(t) }

// Separate splits t by column role and writes each non-empty group to
// dir as values.csv, categorical.csv, target.csv and identity.csv. It
// returns the paths written.
func Separate(t *eis.Table, fields eis.Fields, dir string) ([]string, error) {
	values, categorical, target, identity, err := prep.Separate(t, fields)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("eis: separate: %v", err)
	}
	var paths []string
	for _, g := range []struct {
		name string
		t    *eis.Table
	}{{"values", values}, {"categorical", categorical}, {"target", target}, {"identity", identity}} {
		if g.t.NumCols() == 0 {
			continue
		}
		path := filepath.Join(dir, g.name+".csv")
		if err := writeTable(path, g.t); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Predict separates t by role, one-hot encodes its categorical columns
// and predicts with the externally fitted model stored as JSON at
// modelPath, either a random forest or a logistic regression.
func Predict(t *eis.Table, fields eis.Fields, modelPath string, log logrus.FieldLogger) (*eis.Table, error) {
	if modelPath == "" {
		return nil, eis.Errorf(eis.ErrInvalidParameter, "eisutil.Predict", "no model file specified")
	}
	values, categorical, _, identity, err := prep.Separate(t, fields)
	if err != nil {
		return nil, err
	}
	if categorical.NumCols() > 0 {
		enc := new(prep.OneHotEncoder)
		if categorical, err = enc.FitTransform(categorical); err != nil {
			return nil, err
		}
	}
	X, err := prep.Unify(values, categorical)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(modelPath)
	if err != nil {
		return nil, fmt.Errorf("eis: opening model: %v", err)
	}
	defer f.Close()
	m, err := predict.ModelFromJSON(f)
	if err != nil {
		return nil, err
	}
	return predict.Predict(m, X, identity, fields, log)
}

// Distance reads the raster at in, computes its distance transform and
// writes it to out.
func Distance(in, out string, threshold *float64, sampling bool) error {
	r, err := openRaster(in)
	if err != nil {
		return err
	}
	d, err := spatial.DistanceTransform(r, spatial.DistanceOptions{Threshold: threshold, Sampling: sampling})
	if err != nil {
		return err
	}
	return createRaster(out, d)
}

// IDW interpolates column of the point table t and writes the resulting
// raster to out. res holds the x and y grid spacing and extent, if not
// empty, xmin, ymin, xmax and ymax.
func IDW(t *eis.Table, column string, res, extent []float64, power float64, crs, out string) error {
	const op = "eisutil.IDW"
	if len(res) != 2 {
		return eis.Errorf(eis.ErrInvalidParameter, op, "resolution needs 2 values, have %d", len(res))
	}
	var b *geom.Bounds
	switch len(extent) {
	case 0:
	case 4:
		b = &geom.Bounds{
			Min: geom.Point{X: extent[0], Y: extent[1]},
			Max: geom.Point{X: extent[2], Y: extent[3]},
		}
	default:
		return eis.Errorf(eis.ErrInvalidParameter, op, "extent needs 4 values, have %d", len(extent))
	}
	r, err := spatial.IDW(t, column, [2]float64{res[0], res[1]}, b, power)
	if err != nil {
		return err
	}
	r.CRS = crs
	return createRaster(out, r)
}

// TrainConfig holds the settings of the train command.
type TrainConfig struct {
	Deposits, Unlabelled, MasterFile string

	// ModelConfig optionally names a TOML file overriding
	// nn.DefaultModelConfig.
	ModelConfig string

	WindowSize  int
	Epochs      int
	Seed        int64
	Backend     string
	Threshold   *float64
	SaveScalers bool
	OutputDir   string
}

// Train loads the windowed dataset and cross validates a multimodal
// network with the named backend, printing the confusion matrix.
func Train(cmd *cobra.Command, c TrainConfig) error {
	b, err := nn.Lookup(c.Backend)
	if err != nil {
		return err
	}
	mcfg := nn.DefaultModelConfig()
	if c.ModelConfig != "" {
		if _, err := toml.DecodeFile(c.ModelConfig, &mcfg); err != nil {
			return fmt.Errorf("eis: reading model configuration: %v", err)
		}
	}
	data, err := nn.LoadDataset(nn.DatasetConfig{
		DepositPath:    c.Deposits,
		UnlabelledPath: c.Unlabelled,
		MasterPath:     c.MasterFile,
		WindowSize:     c.WindowSize,
		Rand:           rand.New(rand.NewSource(c.Seed)),
	})
	if err != nil {
		return err
	}
	log := logger()
	if c.SaveScalers {
		for name, a := range data.Inputs {
			s, err := nn.FitScaler(name, a)
			if err != nil {
				return err
			}
			path, err := s.Save(c.OutputDir)
			if err != nil {
				return err
			}
			log.WithField("path", path).Info("eis: saved scaler")
		}
	}
	cv := nn.CVConfig{
		Model:         mcfg,
		Epochs:        c.Epochs,
		SampleWeights: true,
		Dir:           c.OutputDir,
		Log:           log,
	}
	if c.Threshold != nil {
		cv.Threshold = *c.Threshold
	}
	res, err := nn.CrossValidate(cmd.Context(), b, cv, data)
	if err != nil {
		return err
	}
	names := []string{nn.ClassNames[0], nn.ClassNames[1]}
	renderMatrix(cmd.OutOrStdout(), "Confusion matrix", names, res.Confusion)
	cmd.Printf("best fold: loss %g, accuracy %g\n", res.BestScore.Loss, res.BestScore.Accuracy)
	return nil
}

// readTable reads a shapefile if path ends in ".shp", an Excel sheet if it
// ends in ".xlsx", or otherwise a CSV file. The X, Y and DecimalComma
// settings apply to CSV and Excel input.
func readTable(path string) (*eis.Table, error) {
	path = expand(path)
	if path == "" {
		return nil, eis.Errorf(eis.ErrInvalidParameter, "eisutil", "no input file specified")
	}
	opts := eis.CSVOptions{X: Cfg.GetString("X"), Y: Cfg.GetString("Y")}
	if Cfg.GetBool("DecimalComma") {
		opts.Comma, opts.DecimalComma = ';', true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return eis.ReadShapefile(path)
	case ".xlsx":
		return eis.ReadXLSX(path, Cfg.GetString("Sheet"), opts)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eis: %v", err)
	}
	defer f.Close()
	return eis.ReadCSV(f, opts)
}

func writeTable(path string, t *eis.Table) error {
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		return eis.WriteShapefile(path, t)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eis: %v", err)
	}
	if err := eis.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// output writes t to path, or prints it if path is empty.
func output(cmd *cobra.Command, t *eis.Table, path string) error {
	path = expand(path)
	if path == "" {
		renderTable(cmd.OutOrStdout(), t)
		return nil
	}
	return writeTable(path, t)
}

func openRaster(path string) (*raster.Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eis: %v", err)
	}
	defer f.Close()
	return raster.Read(f)
}

func createRaster(path string, r *raster.Raster) error {
	if path == "" {
		return eis.Errorf(eis.ErrInvalidParameter, "eisutil", "no output file specified")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("eis: %v", err)
	}
	if err := r.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func logger() logrus.FieldLogger { return logrus.StandardLogger() }
