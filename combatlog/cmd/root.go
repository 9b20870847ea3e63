package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
	"github.com/telhawk-systems/telhawk-combatlog/common/config"
	"github.com/telhawk-systems/telhawk-combatlog/common/logging"
)

var (
	outputFormat string
	logLevel     string
	cliCfg       *config.CLIConfig
)

var rootCmd = &cobra.Command{
	Use:   "combatlog",
	Short: "Combat log parsing and report pipeline",
	Long: `combatlog parses game combat logs and turns them into report files.

Run the batch worker, parse and report on local log files, inspect CS:GO
demos, seed synthetic matches and manage the catalog schema.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json, yaml (default from cli.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

func initConfig() {
	logger := logging.NewWriter(os.Stderr, logging.ParseLevel(logLevel), "text").
		With(logging.Service("combatlog"))
	logging.SetDefault(logger)

	var err error
	cliCfg, err = config.LoadCLI()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cliCfg = config.DefaultCLI()
	}
}

func cli() *config.CLIConfig {
	if cliCfg == nil {
		cliCfg = config.DefaultCLI()
	}
	return cliCfg
}

// printer resolves --output, falling back to the saved CLI default.
func printer(cmd *cobra.Command) (*output.Printer, error) {
	format := outputFormat
	if format == "" {
		format = cli().Output
	}
	if format == "" {
		format = string(output.FormatTable)
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(cmd.OutOrStdout(), f), nil
}

// readLines returns the lines of a log file without their line endings.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
