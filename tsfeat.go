package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tsfeat/pkg"
)

func InitCommand() *cobra.Command {
	var configFile string
	var dataFile string
	var outputFile string

	var cmd = &cobra.Command{
		Use:   "init -c configFile -i dataFile -o outputFile",
		Short: "Builds a feature assembler for the configured layout and saves it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.Init(configFile, dataFile, outputFile)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "name of the feature layout config file")
	cmd.Flags().StringVarP(&dataFile, "input", "i", "", "name of data file used to index categorical values (optional, uses stdin if not present)")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "name of the file to save model to.")

	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("output-file")

	return cmd
}

func AssembleCommand() *cobra.Command {
	var modelFile string
	var inputFile string
	var outputFile string
	var batchSize int

	var cmd = &cobra.Command{
		Use:   "assemble -m modelFile -i dataFile [-o outputFile]",
		Short: "Assembles the features of the provided data and writes one row per item and time step",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.Assemble(modelFile, inputFile, outputFile, batchSize)
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "name of model to use")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "name of data input file (optional, uses stdin if not present)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "name of output file (optional, uses stdout if not present)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 16, "batch size")

	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func InspectCommand() *cobra.Command {
	var modelFile string

	var cmd = &cobra.Command{
		Use:   "inspect -m modelFile",
		Short: "Logs the feature layout of a saved model",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.Inspect(modelFile)
		},
	}

	cmd.Flags().StringVarP(&modelFile, "model", "m", "", "name of model to inspect")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

var logLevel string
var logFormat string

func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "tsfeat",
		Short:             "Embeds and assembles time series features",
		PersistentPreRunE: setupLogging,
		SilenceUsage:      true,
	}

	root.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: debug, info or error")
	root.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	root.AddCommand(InitCommand())
	root.AddCommand(AssembleCommand())
	root.AddCommand(InspectCommand())
	return root
}

func main() {
	if err := RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

var logLevels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"error": zerolog.ErrorLevel,
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level, ok := logLevels[logLevel]
	if !ok {
		return fmt.Errorf("unknown log level %q, expected debug, info or error", logLevel)
	}
	zerolog.SetGlobalLevel(level)

	switch logFormat {
	case "pretty":
		log.Logger = log.Output(consoleWriter())
	case "json":
	default:
		return fmt.Errorf("unknown log format %q, expected pretty or json", logFormat)
	}
	return nil
}

// consoleWriter prints numeric fields with three decimals.
func consoleWriter() zerolog.ConsoleWriter {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		if v, ok := i.(json.Number); ok {
			if val, err := v.Float64(); err == nil {
				return fmt.Sprintf("%.3f", val)
			}
		}
		return fmt.Sprintf("%s", i)
	}
	return writer
}
