/*
Copyright © 2026 the gridextract authors.
This file is part of gridextract.

gridextract is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridextract is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridextract.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package gridutil holds the configuration and command-line interface
// for gridextract.
package gridutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridextract"
	"github.com/spatialmodel/gridextract/ncf"
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
	// Options are the configuration options available to gridextract.
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
			name: "LogLevel",
			usage: `
              LogLevel specifies the minimum severity of log messages:
              one of debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Input.File",
			usage: `
              Input.File is the path to the COARDS NetCDF file holding the
              gridded data. It can be a local file, an http(s):// URL, or
              a gs://, s3://, or file:// blob. It can contain environment
              variables.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags(), infoCmd.Flags()},
		},
		{
			name: "Input.Variable",
			usage: `
              Input.Variable is the name of the variable to read from
              Input.File. If it is empty, the first gridded variable is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Input.Projection",
			usage: `
              Input.Projection is the spatial reference of the input grid
              as a proj4 string. If it is empty, the projection stored in the
              file is used, or longitude-latitude if there is none.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Crop.Boundary",
			usage: `
              Crop.Boundary is the region the grid is cropped to: either a
              bounding box formatted as "minx,maxx,miny,maxy" or the path to
              a GeoJSON polygon file, in the input grid projection. If it is
              empty, the grid is not cropped.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Crop.Mask",
			usage: `
              Crop.Mask specifies whether cells of the cropped grid whose
              centers fall outside the Crop.Boundary polygon are set to no-data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Aggregate.Bucket",
			usage: `
              Aggregate.Bucket is the time period layers are aggregated to:
              one of hour, day, month, or year. If it is empty, layers are
              not aggregated.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Aggregate.Reducer",
			usage: `
              Aggregate.Reducer is the function used to combine the layers
              in each bucket: one of mean, sum, min, or max.`,
			defaultVal: "mean",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Subset.Dates",
			usage: `
              Subset.Dates is a list of dates to keep layers for. Dates are
              aligned to Aggregate.Bucket if it is set.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Subset.Begin",
			usage: `
              Subset.Begin is the beginning time (inclusive) of the layers to keep.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Subset.End",
			usage: `
              Subset.End is the ending time (exclusive) of the layers to keep.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
		{
			name: "Points.File",
			usage: `
              Points.File is a CSV file or point shapefile holding the
              locations to extract values at.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Points.IDColumn",
			usage: `
              Points.IDColumn is the column or shapefile field holding the
              point identifiers.`,
			defaultVal: "id",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Points.XColumn",
			usage: `
              Points.XColumn is the CSV column holding the point X coordinates.`,
			defaultVal: "lon",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Points.YColumn",
			usage: `
              Points.YColumn is the CSV column holding the point Y coordinates.`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Points.Projection",
			usage: `
              Points.Projection is the spatial reference of the point
              coordinates. It is ignored for shapefiles with a .prj file.`,
			defaultVal: "+proj=longlat",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Points.DateColumn",
			usage: `
              Points.DateColumn is the column holding the sampling date of
              each point. If it is set, only layers matching one of the
              sampling dates are extracted.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Table.File",
			usage: `
              Table.File is a CSV or Microsoft Excel file holding attributes
              to be joined to the extracted values by point identifier.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Table.Key",
			usage: `
              Table.Key is the column of Table.File holding the point
              identifiers. The default is Points.IDColumn.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Join.Strict",
			usage: `
              Join.Strict specifies that every point must have a row in
              Table.File.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Extract.Method",
			usage: `
              Extract.Method is the sampling method: nearest or bilinear.`,
			defaultVal: "nearest",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "Extract.Expression",
			usage: `
              Extract.Expression is an optional expression used to transform
              the extracted values, for example "value - 273.15". It can use
              the variable value, numeric point attributes, and the functions
              exp, log, and abs.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{extractCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the output file: a .nc file for the
              crop command, or a .csv or .xlsx file for the extract command.
              It can be a gs://, s3://, or file:// blob.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cropCmd.Flags(), extractCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRIDEXTRACT")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

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
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
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
	Root.AddCommand(infoCmd)
	Root.AddCommand(cropCmd)
	Root.AddCommand(extractCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and configures logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridextract: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("gridextract: LogLevel: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableSorting:  true,
	})
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridextract",
	Short: "Extract gridded time series data at survey locations.",
	Long: `gridextract crops gridded climate and reanalysis data to a region,
aggregates it in time, subsets it to survey dates, and extracts the values at
survey locations. Use the subcommands specified below to access the functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRIDEXTRACT_var' where 'var' is the
name of the variable to be set, with periods replaced by underscores
(for example GRIDEXTRACT_INPUT_FILE). Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of gridextract.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("gridextract v%s\n", gridextract.Version)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the variables in a NetCDF file",
	Long: `info prints the names, dimensions, and units of the variables in the
NetCDF file specified by Input.File.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		in, err := checkInputFile("Input.File", Cfg.GetString("Input.File"))
		if err != nil {
			return err
		}
		if in, err = maybeDownload(ctx, in); err != nil {
			return err
		}
		f, err := os.Open(in)
		if err != nil {
			return fmt.Errorf("gridextract: opening input file: %v", err)
		}
		defer f.Close()
		vars, err := ncf.Describe(f)
		if err != nil {
			return err
		}
		for _, v := range vars {
			cmd.Println(v)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop, aggregate, and subset a gridded data file",
	Long: `crop crops the grid in Input.File to Crop.Boundary, aggregates its
layers by Aggregate.Bucket, subsets them by date, and saves the result to
OutputFile as a COARDS NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		p, err := PipelineConfig(ctx, Cfg)
		if err != nil {
			return err
		}
		return RunCrop(ctx, p)
	},
	DisableAutoGenTag: true,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract gridded values at survey locations",
	Long: `extract crops, aggregates, and subsets the grid in Input.File in the
same way as the crop command, samples it at the locations in Points.File, joins
the attributes in Table.File, and saves one row per location and layer to
OutputFile as a CSV or Microsoft Excel file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		p, err := PipelineConfig(ctx, Cfg)
		if err != nil {
			return err
		}
		records, err := RunExtract(ctx, p)
		if err != nil {
			return err
		}
		return writeRecords(ctx, p, records)
	},
	DisableAutoGenTag: true,
}
