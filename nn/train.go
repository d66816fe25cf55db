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

package nn

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/eis"
	"gonum.org/v1/gonum/mat"
)

// ClassNames label the rows and columns of a confusion matrix.
var ClassNames = [2]string{"Non deposit", "deposit"}

// CVConfig configures CrossValidate.
type CVConfig struct {
	// Model configures the network of each fold. Its Inputs are set
	// from the data, as are any Kernels it does not set.
	Model ModelConfig

	// Epochs defaults to 32.
	Epochs int

	// BatchSize defaults to the number of training samples divided by
	// Epochs, and at least 1.
	BatchSize int

	// Threshold is the probability above which a single sigmoid output
	// is classified as a deposit.
	Threshold float64

	// SampleWeights weights training samples inversely to the frequency
	// of their class.
	SampleWeights bool

	// Dir, if not empty, is where the confusion matrix is written as
	// cm/cm.csv.
	Dir string

	Log logrus.FieldLogger
}

// CVResult is the outcome of cross validation.
type CVResult struct {
	// Confusion is the confusion matrix normalized by the number of
	// samples. Rows are true classes and columns predicted classes.
	Confusion *mat.Dense

	// Best is the model of the fold with the best score.
	Best      Trainable
	BestScore Score

	Truth, Predicted []int
}

// CrossValidate trains and evaluates a multimodal classifier with
// leave-one-out cross validation. Each modality is standardized with a
// scaler fitted to all of its samples.
func CrossValidate(ctx context.Context, b Backend, cfg CVConfig, data Dataset) (*CVResult, error) {
	const op = "nn.CrossValidate"
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	n := data.Len()
	if n < 2 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "need at least 2 samples, have %d", n)
	}
	if len(data.Inputs) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "no inputs")
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 32
	}
	if cfg.Epochs < 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op, "epochs must be positive, got %d", cfg.Epochs)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = (n - 1) / cfg.Epochs
		if batch < 1 {
			batch = 1
		}
	}

	mcfg := cfg.Model
	mcfg.Inputs = make(map[Modality][]int, len(data.Inputs))
	mcfg.Kernels = make(map[Modality][2]int, len(data.Inputs))
	scaled := Dataset{Inputs: make(Inputs, len(data.Inputs)), Labels: data.Labels}
	for name, a := range data.Inputs {
		if len(a.Shape) != 4 || a.Shape[0] != n {
			return nil, eis.Errorf(eis.ErrInvalidShape, op,
				"input %s has shape %v; want (%d, height, width, channels)", name, a.Shape, n)
		}
		s, err := FitScaler(name, a)
		if err != nil {
			return nil, err
		}
		if scaled.Inputs[name], err = s.Normalize(a); err != nil {
			return nil, err
		}
		mod := Modality(name)
		mcfg.Inputs[mod] = append([]int(nil), a.Shape[1:]...)
		if k, ok := cfg.Model.Kernels[mod]; ok {
			mcfg.Kernels[mod] = k
		} else {
			c := a.Shape[3]
			mcfg.Kernels[mod] = [2]int{c, c}
		}
	}

	res := &CVResult{Truth: make([]int, n), Predicted: make([]int, n)}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trainIdx := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				trainIdx = append(trainIdx, j)
			}
		}
		train, test := scaled.Subset(trainIdx), scaled.Subset([]int{i})
		if cfg.SampleWeights {
			train.Weights = BalancedWeights(train.Labels)
		}

		g, err := NewMultimodal(mcfg)
		if err != nil {
			return nil, err
		}
		if _, err = g.Validate(); err != nil {
			return nil, err
		}
		m, err := b.Compile(g, mcfg.CompileOptions())
		if err != nil {
			return nil, fmt.Errorf("eis: compiling fold %d: %w", i, err)
		}
		if _, err = m.Fit(ctx, train, FitOptions{Epochs: cfg.Epochs, BatchSize: batch, Validation: &test}); err != nil {
			return nil, fmt.Errorf("eis: fitting fold %d: %w", i, err)
		}
		score, err := m.Evaluate(ctx, test)
		if err != nil {
			return nil, fmt.Errorf("eis: evaluating fold %d: %w", i, err)
		}
		pred, err := m.Predict(ctx, test.Inputs)
		if err != nil {
			return nil, fmt.Errorf("eis: predicting fold %d: %w", i, err)
		}
		if r, _ := pred.Dims(); r != 1 {
			return nil, eis.Errorf(eis.ErrInvalidShape, op, "fold %d: have %d predictions for 1 sample", i, r)
		}
		res.Truth[i] = int(test.Labels[0])
		res.Predicted[i] = classify(pred.RawRowView(0), cfg.Threshold)

		if res.Best == nil || better(score, res.BestScore) {
			res.Best, res.BestScore = m, score
		}
		log.WithFields(logrus.Fields{
			"fold":      i + 1,
			"folds":     n,
			"loss":      score.Loss,
			"accuracy":  score.Accuracy,
			"truth":     res.Truth[i],
			"predicted": res.Predicted[i],
		}).Info("eis: cross validation fold complete")
	}

	cm, err := ConfusionMatrix(res.Truth, res.Predicted)
	if err != nil {
		return nil, err
	}
	res.Confusion = cm
	if cfg.Dir != "" {
		path, err := saveConfusion(cfg.Dir, cm)
		if err != nil {
			return nil, err
		}
		log.WithField("path", path).Info("eis: wrote confusion matrix")
	}
	return res, nil
}

// better returns whether score a beats score b: higher accuracy first,
// then lower loss.
func better(a, b Score) bool {
	if a.Accuracy != b.Accuracy {
		return a.Accuracy > b.Accuracy
	}
	return a.Loss < b.Loss
}

// classify returns the class of one row of model output: the index of
// the largest output, or for a single output whether it exceeds
// threshold.
func classify(out []float64, threshold float64) int {
	if len(out) == 1 {
		if out[0] > threshold {
			return 1
		}
		return 0
	}
	best := 0
	for k, v := range out {
		if v > out[best] {
			best = k
		}
	}
	return best
}

// BalancedWeights returns a weight for each label, n/(k×count), where n
// is the number of labels, k the number of distinct labels and count the
// number of occurrences of the label.
func BalancedWeights(labels []float64) []float64 {
	count := make(map[float64]int)
	for _, l := range labels {
		count[l]++
	}
	w := make([]float64, len(labels))
	for i, l := range labels {
		w[i] = float64(len(labels)) / float64(len(count)*count[l])
	}
	return w
}

// ConfusionMatrix returns the 2×2 confusion matrix of binary labels,
// normalized by the number of samples.
func ConfusionMatrix(truth, predicted []int) (*mat.Dense, error) {
	const op = "nn.ConfusionMatrix"
	if len(truth) != len(predicted) || len(truth) == 0 {
		return nil, eis.Errorf(eis.ErrInvalidParameter, op,
			"have %d true and %d predicted labels", len(truth), len(predicted))
	}
	cm := mat.NewDense(2, 2, nil)
	for i, t := range truth {
		p := predicted[i]
		if t < 0 || t > 1 || p < 0 || p > 1 {
			return nil, eis.Errorf(eis.ErrInvalidParameter, op, "sample %d: labels %d and %d are not binary", i, t, p)
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	cm.Scale(1/float64(len(truth)), cm)
	return cm, nil
}

// WriteConfusion writes a 2×2 confusion matrix as CSV with class names
// labelling the rows and columns.
func WriteConfusion(w io.Writer, cm mat.Matrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"", ClassNames[0], ClassNames[1]}); err != nil {
		return err
	}
	for i, name := range ClassNames {
		rec := []string{name}
		for j := range ClassNames {
			rec = append(rec, strconv.FormatFloat(cm.At(i, j), 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func saveConfusion(dir string, cm mat.Matrix) (string, error) {
	d := filepath.Join(dir, "cm")
	if err := os.MkdirAll(d, os.ModePerm); err != nil {
		return "", fmt.Errorf("eis: saving confusion matrix: %v", err)
	}
	path := filepath.Join(d, "cm.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("eis: saving confusion matrix: %v", err)
	}
	if err := WriteConfusion(f, cm); err != nil {
		f.Close()
		return "", fmt.Errorf("eis: saving confusion matrix: %v", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, PlotConfusion(filepath.Join(d, "cm.png"), cm)
}

// TrainBayesian builds, compiles and fits a Bayesian neural network. If
// test is not nil, it predicts the distribution of each test sample and
// summarizes it with Summarize. cfg.TrainSize defaults to the number of
// training samples.
func TrainBayesian(ctx context.Context, b Backend, cfg BayesianConfig, train Dataset, test *Dataset, log logrus.FieldLogger) (Trainable, []Interval, error) {
	const op = "nn.TrainBayesian"
	if log == nil {
		log = logrus.StandardLogger()
	}
	if train.Len() == 0 || len(train.Inputs) == 0 {
		return nil, nil, eis.Errorf(eis.ErrInvalidParameter, op, "training data is empty")
	}
	for _, f := range cfg.Features {
		if _, ok := train.Inputs[f]; !ok {
			return nil, nil, eis.Errorf(eis.ErrInvalidParameter, op, "training data has no feature %q", f)
		}
	}
	if cfg.TrainSize == 0 {
		cfg.TrainSize = train.Len()
	}
	g, err := NewBayesian(cfg)
	if err != nil {
		return nil, nil, err
	}
	if _, err = g.Validate(); err != nil {
		return nil, nil, err
	}
	m, err := b.Compile(g, CompileOptions{Optimizer: cfg.Optimizer, Loss: cfg.Loss, Metrics: cfg.Metrics})
	if err != nil {
		return nil, nil, fmt.Errorf("eis: compiling Bayesian network: %w", err)
	}
	h, err := m.Fit(ctx, train, FitOptions{Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, ValidationSplit: cfg.ValidationSplit})
	if err != nil {
		return nil, nil, fmt.Errorf("eis: fitting Bayesian network: %w", err)
	}
	fields := logrus.Fields{"samples": train.Len(), "features": len(cfg.Features)}
	if loss := h["loss"]; len(loss) > 0 {
		fields["loss"] = loss[len(loss)-1]
	}
	log.WithFields(fields).Info("eis: trained Bayesian network")
	if test == nil {
		return m, nil, nil
	}
	dp, ok := m.(DistributionPredictor)
	if !ok {
		return nil, nil, eis.Errorf(eis.ErrInvalidParameter, op, "backend model %T does not predict distributions", m)
	}
	mean, std, err := dp.PredictDistribution(ctx, test.Inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("eis: predicting with Bayesian network: %w", err)
	}
	iv, err := Summarize(mean, std, test.Labels)
	if err != nil {
		return nil, nil, err
	}
	return m, iv, nil
}
