// Copyright (C) 2025 Petr Malik
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at <https://mozilla.org/MPL/2.0/>.

// Package main provides the command-line interface and the main entry point for LwLLTrial.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/rs/zerolog"

	"github.com/petmal/lwlltrial/api"
	"github.com/petmal/lwlltrial/api/execution"
	"github.com/petmal/lwlltrial/config"
	"github.com/petmal/lwlltrial/formatters"
	"github.com/petmal/lwlltrial/model"
	"github.com/petmal/lwlltrial/pkg/logging"
	"github.com/petmal/lwlltrial/pkg/utils"
	"github.com/petmal/lwlltrial/runners"
	"github.com/petmal/lwlltrial/version"
)

const (
	launchCommandName          = "launch_system"
	helpCommandName            = "help"
	versionCommandName         = "version"
	unsetFlagValue             = "\x00"
	exitCodeOK                 = 0
	exitCodeFatal              = 1
	exitCodeBadCommand         = 2
	exitCodeFinishedWithErrors = 3
)

var (
	commandDoc = map[string]string{
		launchCommandName:  "run the tasks of the selected dataset and problem types against the evaluation API",
		helpCommandName:    "show help",
		versionCommandName: "show version",
	}
)

var (
	csvFormatter  = formatters.NewCSVFormatter()
	htmlFormatter = formatters.NewHTMLFormatter()
	jsonFormatter = formatters.NewJSONFormatter()
	logFormatter  = formatters.NewLogFormatter()
)

// launchFlags holds the flag values of the launch_system command.
type launchFlags struct {
	opts               config.RunOptions
	skipDatasets       string
	configFilePath     string
	logFilePath        string
	outputFileDir      string
	outputFileBasename string
	formats            map[formatters.Formatter]*bool
}

func newLaunchFlagSet(output io.Writer) (*flag.FlagSet, *launchFlags) {
	fs := flag.NewFlagSet(launchCommandName, flag.ContinueOnError)
	fs.SetOutput(output)
	f := &launchFlags{formats: make(map[formatters.Formatter]*bool)}

	fs.StringVar(&f.opts.DatasetType, "dataset_type", "", "dataset type to run: "+strings.Join(config.DatasetTypeNames(), ", "))
	fs.StringVar(&f.opts.ProblemType, "problem_type", "", "problem type to run: "+strings.Join(config.ProblemTypeNames(), ", "))
	fs.StringVar(&f.opts.DatasetDir, "dataset_dir", "", "dataset root directory")
	fs.StringVar(&f.opts.Environment, "environment", "", "API environment: "+strings.Join(config.EnvironmentNames(), ", "))
	fs.StringVar(&f.opts.TeamSecret, "team_secret", "", "team secret used to authenticate against the API")
	fs.StringVar(&f.opts.LogLevel, "log_level", "", "log level: "+strings.Join(logging.LevelNames(), ", "))
	fs.StringVar(&f.opts.TaskID, "task_id", "", "run only the task with this id")
	fs.StringVar(&f.skipDatasets, "skip_dataset", "", "comma separated datasets whose tasks are skipped")
	fs.StringVar(&f.configFilePath, "config", "", "settings file path")
	fs.StringVar(&f.logFilePath, "log_file", unsetFlagValue, "log file path; append if exists; blank = stdout only")
	fs.StringVar(&f.outputFileDir, "output_dir", unsetFlagValue, "report output directory")
	fs.StringVar(&f.outputFileBasename, "output_basename", unsetFlagValue, "base filename for reports; replace if exists; blank = stdout")
	for _, formatter := range []formatters.Formatter{csvFormatter, htmlFormatter, jsonFormatter} {
		fileExt := formatter.FileExt()
		f.formats[formatter] = fs.Bool(strings.ToLower(fileExt), false, fmt.Sprintf("generate %s report", strings.ToUpper(fileExt)))
	}
	return fs, f
}

func printUsage(out io.Writer) {
	fmt.Fprintf(out, "Usage: %s <command> [options]\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	printCommandHelp(out, launchCommandName, helpCommandName, versionCommandName)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Options of %s:\n", launchCommandName)
	fs, _ := newLaunchFlagSet(out)
	fs.PrintDefaults()
}

func printCommandHelp(out io.Writer, commands ...string) {
	for _, cmdName := range commands {
		formatCommandHelp(out, cmdName, commandDoc[cmdName])
	}
}

func formatCommandHelp(out io.Writer, name string, usage string) {
	fmt.Fprintf(out, "  %s\n", name)
	fmt.Fprintf(out, "        %s\n", usage)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command given by args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return exitCodeBadCommand
	}
	switch args[0] {
	case helpCommandName:
		printUsage(stdout)
		return exitCodeOK
	case versionCommandName:
		printVersion(stdout)
		return exitCodeOK
	case launchCommandName:
		return launch(ctx, args[1:], stdout, errOut)
	}
	fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
	printUsage(errOut)
	return exitCodeBadCommand
}

var stderr = newStderrLogger(os.Stderr)

func newStderrLogger(out io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.NewConsoleWriter(
		func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = time.DateTime
			w.NoColor = true
		},
	)).Level(zerolog.TraceLevel).With().Timestamp().Logger()
}

func launch(ctx context.Context, args []string, stdout io.Writer, errOut io.Writer) int {
	fs, flags := newLaunchFlagSet(errOut)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitCodeOK
		}
		return exitCodeBadCommand
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitCodeBadCommand
	}

	ok, err := run(ctx, flags, stdout)
	if err != nil {
		logger := newStderrLogger(errOut)
		logger.Error().Err(err).Msg("run aborted")
		return exitCodeFatal
	}
	if !ok {
		return exitCodeFinishedWithErrors
	}
	return exitCodeOK
}

func run(ctx context.Context, flags *launchFlags, stdout io.Writer) (ok bool, err error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return
	}
	configDir := workingDir

	// Load settings.
	settings := config.DefaultSettings()
	if config.IsNotBlank(flags.configFilePath) {
		configPath := config.MakeAbs(workingDir, filepath.Clean(flags.configFilePath))
		configDir = filepath.Dir(configPath)
		fmt.Fprintf(stdout, "Loading settings from file: %s\n", configPath)
		settingsFile, err := config.LoadSettingsFromFile(ctx, configPath)
		if err != nil {
			return ok, err
		}
		settings = settingsFile.Settings
	}

	// Validate the launch request.
	flags.opts.Settings = settings
	flags.opts.SkipDatasets = utils.ParseStringSet(flags.skipDatasets)
	cfg, err := config.NewRunConfig(flags.opts)
	if err != nil {
		return
	}
	fmt.Fprintf(stdout, "Running %s/%s tasks against %s (%s)\n", cfg.DatasetType, cfg.ProblemType, cfg.Endpoint, cfg.Environment)

	// Time to be used to resolve name patterns.
	timeRef := time.Now()

	// Create output files.
	outputWriters := make(map[formatters.Formatter]io.Writer)
	for _, formatter := range flags.enabledFormatters() {
		outputWriters[formatter] = stdout // default
		if fileName := getFlagValueIfSet(flags.outputFileBasename, settings.OutputBaseName); config.IsNotBlank(fileName) {
			fileName = fmt.Sprintf("%s.%s", fileName, formatter.FileExt())
			if fp, outputPath, err := createOutputFile(config.MakeAbs(
				getFlagValueIfSet(flags.outputFileDir, config.MakeAbs(configDir, settings.OutputDir)), fileName), timeRef, false); err != nil {
				return ok, err
			} else if fp != nil {
				defer fp.Close()
				fmt.Fprintf(stdout, "Report in %s format will be saved to: %s\n", strings.ToUpper(formatter.FileExt()), outputPath)
				outputWriters[formatter] = fp
			}
		}
	}

	// Configure logger.
	logWriters := []io.Writer{zerolog.NewConsoleWriter(
		func(w *zerolog.ConsoleWriter) {
			w.Out = stdout
			w.TimeFormat = time.DateTime
			w.NoColor = !isTerminal(stdout)
		},
	)}
	var logFile io.Writer
	if fp, logPath, err := createOutputFile(getFlagValueIfSet(flags.logFilePath, config.MakeAbs(configDir, settings.LogFile)), timeRef, true); err != nil {
		return ok, err
	} else if fp != nil {
		fmt.Fprintf(stdout, "Log messages will be saved to: %s\n", logPath)
		defer fp.Close()
		logFile = fp
		logWriters = append(logWriters, zerolog.NewConsoleWriter(
			func(w *zerolog.ConsoleWriter) {
				w.Out = fp
				w.TimeFormat = time.DateTime
				w.NoColor = true
			},
		)) // format the file output as plain-text without color codes
	}
	logger := runners.NewZerologLogger(zerolog.New(zerolog.MultiLevelWriter(logWriters...)).Level(toZerologLevel(cfg.LogLevel)).With().Timestamp().Logger())
	logger.Message(ctx, logging.LevelDebug, "settings: %s", cfg.Settings)

	// Run tasks.
	client := execution.NewExecutor(
		api.NewHTTPClient(cfg.Endpoint, cfg.TeamSecret, api.HTTPClientOptions{SkipDatasets: cfg.SkipDatasets}, logger),
		cfg.Settings, logger)
	exec := runners.NewDefaultRunner(cfg, client, model.NewPlaceholderFactory(cfg.Environment, cfg.DatasetDir), logger)
	defer exec.Close(ctx)

	report, err := exec.Run(ctx) // blocking call
	if err != nil {
		return
	}

	// Print and save the report.
	ok = !logReport(report, stdout, logFile)
	ok = !saveReport(report, outputWriters) && ok
	ok = ok && report.Clean()

	return
}

func (f *launchFlags) enabledFormatters() (enabled []formatters.Formatter) {
	for _, formatter := range []formatters.Formatter{csvFormatter, htmlFormatter, jsonFormatter} {
		if isEnabled(f.formats[formatter]) {
			enabled = append(enabled, formatter)
		}
	}
	return enabled
}

func isEnabled(value *bool) bool {
	return value != nil && *value
}

func isTerminal(out io.Writer) bool {
	fp, ok := out.(*os.File)
	return ok && term.IsTerminal(fp.Fd())
}

func toZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < logging.LevelDebug:
		return zerolog.TraceLevel
	case level < logging.LevelInfo:
		return zerolog.DebugLevel
	case level < logging.LevelWarn:
		return zerolog.InfoLevel
	case level < logging.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func getFlagValueIfSet(value string, defaultValue string) string {
	if value != unsetFlagValue {
		return value
	}
	return defaultValue
}

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "%s %s\n", version.Name, version.GetVersion())
}

func createOutputFile(outputFilePath string, timeRef time.Time, append bool) (outputFile *os.File, outputPath string, err error) {
	if outputPath = config.CleanIfNotBlank(config.ResolveFileNamePattern(outputFilePath, timeRef)); config.IsNotBlank(outputPath) {
		if err = os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
			return
		}
		if append {
			outputFile, err = os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		} else {
			outputFile, err = os.Create(outputPath)
		}
	}
	return
}

// logReport prints the summary to stdout. The outcome table goes to the log file when one is used,
// and to stdout otherwise.
func logReport(report runners.RunReport, stdout io.Writer, logFile io.Writer) (finishedWithErrors bool) {
	summaryFormatter := formatters.NewSummaryLogFormatter()
	if isTerminal(stdout) {
		summaryFormatter = formatters.NewColorSummaryLogFormatter()
	}
	if logFile == nil {
		return writeTables(report, stdout, summaryFormatter, logFormatter)
	}
	finishedWithErrors = writeTables(report, stdout, summaryFormatter)
	return writeTables(report, logFile, formatters.NewSummaryLogFormatter(), logFormatter) || finishedWithErrors
}

func writeTables(report runners.RunReport, out io.Writer, tables ...formatters.Formatter) (finishedWithErrors bool) {
	for _, table := range tables {
		fmt.Fprintln(out)
		if err := table.Write(report, out); err != nil {
			stderr.Warn().Err(err).Msgf("failed to log %s table", table.FileExt())
			finishedWithErrors = true
		}
	}
	fmt.Fprintln(out)
	return
}

func saveReport(report runners.RunReport, outputWriters map[formatters.Formatter]io.Writer) (finishedWithErrors bool) {
	for formatter, out := range outputWriters {
		if err := formatter.Write(report, out); err != nil {
			stderr.Warn().Err(err).Msgf("failed to write %s report", strings.ToUpper(formatter.FileExt()))
			finishedWithErrors = true
		}
	}
	return
}
