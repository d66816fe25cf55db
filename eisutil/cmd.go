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

	"github.com/lnashier/viper"
	"github.com/spatialmodel/eis"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to EIS.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Input",
			usage: `
              Input is the path to the input table: a CSV file, an Excel
              file if the path ends in '.xlsx', or a shapefile if the path
              ends in '.shp'. It can include environment variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{plrCmd.Flags(), alrCmd.Flags(), closureCmd.Flags(), separateCmd.Flags(),
				predictCmd.Flags(), idwCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "Output",
			usage: `
              Output is the path where the result is written. Tables are
              written as CSV, or as shapefiles if the path ends in '.shp'.
              Rasters are written as netCDF. It can include environment
              variables.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{plrCmd.Flags(), alrCmd.Flags(), closureCmd.Flags(),
				predictCmd.Flags(), distanceCmd.Flags(), idwCmd.Flags()},
		},
		{
			name: "Sheet",
			usage: `
              Sheet is the name of the sheet read from an Excel input file.
              The first sheet is read if it is empty.`,
			defaultVal: "",
			flagsets: []*pflag.FlagSet{plrCmd.Flags(), alrCmd.Flags(), closureCmd.Flags(), separateCmd.Flags(),
				predictCmd.Flags(), idwCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where multiple output files are
              written. It can include environment variables.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{separateCmd.Flags(), trainCmd.Flags()},
		},
		{
			name: "X",
			usage: `
              X is the name of the CSV column holding point x coordinates
              (eastings). If X and Y are both set, the table gets a point
              geometry column.`,
			defaultVal: "",
			flagsets: []*pflag.FlagSet{plrCmd.Flags(), alrCmd.Flags(), closureCmd.Flags(), separateCmd.Flags(),
				predictCmd.Flags(), idwCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "Y",
			usage: `
              Y is the name of the CSV column holding point y coordinates
              (northings).`,
			defaultVal: "",
			flagsets: []*pflag.FlagSet{plrCmd.Flags(), alrCmd.Flags(), closureCmd.Flags(), separateCmd.Flags(),
				predictCmd.Flags(), idwCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "DecimalComma",
			usage: `
              DecimalComma specifies that CSV numbers use ',' as the decimal
              separator and ';' as the field separator.`,
			defaultVal: false,
			flagsets: []*pflag.FlagSet{plrCmd.Flags(), alrCmd.Flags(), closureCmd.Flags(), separateCmd.Flags(),
				predictCmd.Flags(), idwCmd.Flags(), statsCmd.Flags()},
		},
		{
			name: "Column",
			usage: `
              Column is the name of a single column to operate on. For plr,
              an empty value transforms every column.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plrCmd.Flags(), idwCmd.Flags()},
		},
		{
			name: "Columns",
			usage: `
              Columns are the compositional parts to transform. If empty,
              all columns are used.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{alrCmd.Flags()},
		},
		{
			name: "Denominator",
			usage: `
              Denominator is the index into Columns of the denominator part.
              -1 selects the last column.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{alrCmd.Flags()},
		},
		{
			name: "Inverse",
			usage: `
              Inverse reverses the transform. The input then holds log-ratios
              and InverseName names the denominator part to restore.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{alrCmd.Flags()},
		},
		{
			name: "InverseName",
			usage: `
              InverseName is the name of the denominator column restored by
              the inverse transform.`,
			defaultVal: "denominator",
			flagsets:   []*pflag.FlagSet{alrCmd.Flags()},
		},
		{
			name: "Fields",
			usage: `
              Fields maps column names to roles: 't' target, 'v' value,
              'b' binary, 'c' categorical, 'i' identity, 'g' geometry and
              'n' other.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{separateCmd.Flags(), predictCmd.Flags()},
		},
		{
			name: "Model",
			usage: `
              Model is the path to a JSON file holding an externally fitted
              random forest or logistic regression.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{predictCmd.Flags()},
		},
		{
			name: "Raster",
			usage: `
              Raster is the path to the input netCDF raster.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{distanceCmd.Flags()},
		},
		{
			name: "Threshold",
			usage: `
              Threshold makes cells at or above the given value feature cells.
              If empty, the raster must be binary. For train, it is the
              probability above which a single sigmoid output is a deposit.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{distanceCmd.Flags(), trainCmd.Flags()},
		},
		{
			name: "Sampling",
			usage: `
              Sampling measures distances in coordinate units instead of cells.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{distanceCmd.Flags()},
		},
		{
			name: "Resolution",
			usage: `
              Resolution is the grid spacing in x and y.`,
			defaultVal: []float64{1, 1},
			flagsets:   []*pflag.FlagSet{idwCmd.Flags()},
		},
		{
			name: "Extent",
			usage: `
              Extent is the interpolation extent as xmin, ymin, xmax, ymax. If
              empty, the bounds of the points are used.`,
			defaultVal: []float64{},
			flagsets:   []*pflag.FlagSet{idwCmd.Flags()},
		},
		{
			name: "Power",
			usage: `
              Power is the inverse distance weighting exponent.`,
			defaultVal: 2.0,
			flagsets:   []*pflag.FlagSet{idwCmd.Flags()},
		},
		{
			name: "CRS",
			usage: `
              CRS is the coordinate reference system of the output raster.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{idwCmd.Flags()},
		},
		{
			name: "Stats.Type",
			usage: `
              Stats.Type is 'numerical' or 'categorical'.`,
			defaultVal: "numerical",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "Stats.Target",
			usage: `
              Stats.Target is the column categorical columns are tested against.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "Stats.DDOF",
			usage: `
              Stats.DDOF is the delta degrees of freedom of the covariance.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "Train.Deposits",
			usage: `
              Train.Deposits is the CSV file of known deposit locations.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.Unlabelled",
			usage: `
              Train.Unlabelled is the CSV file of locations that negative
              samples are drawn from.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.MasterFile",
			usage: `
              Train.MasterFile is the TOML file listing the rasters of each
              modality.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.ModelConfig",
			usage: `
              Train.ModelConfig is an optional TOML file overriding the
              default network configuration.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.WindowSize",
			usage: `
              Train.WindowSize is the side length of the windows extracted
              around each location, in cells.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.Epochs",
			usage: `
              Train.Epochs is the number of training epochs per fold.`,
			defaultVal: 32,
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.Seed",
			usage: `
              Train.Seed seeds the selection of negative samples.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.Backend",
			usage: `
              Train.Backend is the name of the registered modeling backend.
              The eis command registers "gomlx".`,
			defaultVal: "gomlx",
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
		{
			name: "Train.SaveScalers",
			usage: `
              Train.SaveScalers writes the fitted scalers to OutputDir/scaler.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{trainCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("EIS")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
			case bool:
				set.Bool(option.name, option.defaultVal.(bool), option.usage)
			case int:
				set.Int(option.name, option.defaultVal.(int), option.usage)
			case float64:
				set.Float64(option.name, option.defaultVal.(float64), option.usage)
			case []float64:
				set.Float64Slice(option.name, option.defaultVal.([]float64), option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				set.String(option.name, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(plrCmd)
	Root.AddCommand(alrCmd)
	Root.AddCommand(closureCmd)
	Root.AddCommand(separateCmd)
	Root.AddCommand(predictCmd)
	Root.AddCommand(distanceCmd)
	Root.AddCommand(idwCmd)
	Root.AddCommand(statsCmd)
	Root.AddCommand(trainCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("eis: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "eis",
	Short: "Exploration information system toolkit.",
	Long: `eis is a toolkit for mineral prospectivity mapping: compositional
data transforms, table preparation, prediction, neural network training,
statistical testing and raster utilities. Use the subcommands specified
below to access the functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'EIS_var' where 'var' is the
name of the variable to be set.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of EIS.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("EIS v%s\n", eis.Version)
	},
	DisableAutoGenTag: true,
}

var plrCmd = &cobra.Command{
	Use:   "plr",
	Short: "Pivot log-ratio transform",
	Long: `plr applies the pivot log-ratio transform to a table of compositions.
If Column is set, only the coordinate pivoting on that column is computed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		o, err := PLR(t, Cfg.GetString("Column"))
		if err != nil {
			return err
		}
		return output(cmd, o, Cfg.GetString("Output"))
	},
	DisableAutoGenTag: true,
}

var alrCmd = &cobra.Command{
	Use:   "alr",
	Short: "Additive log-ratio transform",
	Long: `alr applies the additive log-ratio transform to a table of
compositions, or its inverse if Inverse is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		o, err := ALR(t, Cfg.GetStringSlice("Columns"), Cfg.GetInt("Denominator"),
			Cfg.GetBool("Inverse"), Cfg.GetString("InverseName"))
		if err != nil {
			return err
		}
		return output(cmd, o, Cfg.GetString("Output"))
	},
	DisableAutoGenTag: true,
}

var closureCmd = &cobra.Command{
	Use:   "closure",
	Short: "Close compositions to unit sum",
	Long:  `closure scales every row of a table of compositions to sum to one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		o, err := closure(t)
		if err != nil {
			return err
		}
		return output(cmd, o, Cfg.GetString("Output"))
	},
	DisableAutoGenTag: true,
}

var separateCmd = &cobra.Command{
	Use:   "separate",
	Short: "Separate columns by role",
	Long: `separate splits a table into value, categorical, target and identity
tables according to Fields, and writes each non-empty one to OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		fields, err := eis.ParseFields(GetStringMapString("Fields", Cfg))
		if err != nil {
			return err
		}
		paths, err := Separate(t, fields, expand(Cfg.GetString("OutputDir")))
		if err != nil {
			return err
		}
		for _, p := range paths {
			cmd.Println(p)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict with a fitted model",
	Long: `predict applies an externally fitted random forest or logistic
regression, stored as JSON, to the value, binary and one-hot encoded
categorical columns of a table. Identity columns are kept in the output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		fields, err := eis.ParseFields(GetStringMapString("Fields", Cfg))
		if err != nil {
			return err
		}
		o, err := Predict(t, fields, expand(Cfg.GetString("Model")), logger())
		if err != nil {
			return err
		}
		return output(cmd, o, Cfg.GetString("Output"))
	},
	DisableAutoGenTag: true,
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Distance transform of a raster",
	Long: `distance computes, for every cell of a raster, the distance to the
nearest feature cell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := optionalFloat("Threshold")
		if err != nil {
			return err
		}
		return Distance(expand(Cfg.GetString("Raster")), expand(Cfg.GetString("Output")),
			threshold, Cfg.GetBool("Sampling"))
	},
	DisableAutoGenTag: true,
}

var idwCmd = &cobra.Command{
	Use:   "idw",
	Short: "Inverse distance weighted interpolation",
	Long: `idw interpolates a column of a point table onto a regular grid by
inverse distance weighting and writes the result as a netCDF raster.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		res, err := castFloats("Resolution")
		if err != nil {
			return err
		}
		extent, err := castFloats("Extent")
		if err != nil {
			return err
		}
		return IDW(t, Cfg.GetString("Column"), res, extent, Cfg.GetFloat64("Power"),
			Cfg.GetString("CRS"), expand(Cfg.GetString("Output")))
	},
	DisableAutoGenTag: true,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Statistical tests",
	Long: `stats prints correlation and covariance matrices, summaries and
normality tests of numeric columns, or chi-square tests of categorical
columns against a target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := readTable(Cfg.GetString("Input"))
		if err != nil {
			return err
		}
		return Stats(cmd.OutOrStdout(), t, Cfg.GetString("Stats.Type"),
			Cfg.GetString("Stats.Target"), Cfg.GetInt("Stats.DDOF"))
	},
	DisableAutoGenTag: true,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Cross validate a multimodal network",
	Long: `train extracts raster windows around deposits and randomly drawn
unlabelled locations, and trains a multimodal CNN or MLP with leave-one-out
cross validation using a registered modeling backend. The normalized
confusion matrix is printed and written to OutputDir/cm/cm.csv.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := optionalFloat("Threshold")
		if err != nil {
			return err
		}
		return Train(cmd, TrainConfig{
			Deposits:    expand(Cfg.GetString("Train.Deposits")),
			Unlabelled:  expand(Cfg.GetString("Train.Unlabelled")),
			MasterFile:  expand(Cfg.GetString("Train.MasterFile")),
			ModelConfig: expand(Cfg.GetString("Train.ModelConfig")),
			WindowSize:  Cfg.GetInt("Train.WindowSize"),
			Epochs:      Cfg.GetInt("Train.Epochs"),
			Seed:        int64(Cfg.GetInt("Train.Seed")),
			Backend:     Cfg.GetString("Train.Backend"),
			Threshold:   threshold,
			SaveScalers: Cfg.GetBool("Train.SaveScalers"),
			OutputDir:   expand(Cfg.GetString("OutputDir")),
		})
	},
	DisableAutoGenTag: true,
}
