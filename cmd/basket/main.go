// Command basket runs the cleaning and association-rule pipeline once over a
// retail transaction file, prints the console report and optionally exports
// the results.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	docopt "github.com/docopt/docopt-go"

	"basket-insights/internal/config"
	"basket-insights/internal/export"
	"basket-insights/internal/export/sqlite"
	"basket-insights/internal/observability"
	"basket-insights/internal/report"
	"basket-insights/internal/services"
)

const version = "basket 1.0.0"

const usage = `basket cleans a retail transaction file and mines association rules.

Usage:
  basket [options] FILE
  basket -h | --help
  basket --version

Options:
  -c PATH --config PATH       YAML configuration file.
  --min-support S             Minimum itemset support in (0, 1].
  --min-confidence C          Keep rules with confidence >= C.
  --max-len N                 Largest itemset size, 0 for no limit.
  --top N                     Number of rules to print.
  --encoding NAME             CSV text encoding (iso-8859-1, cp1252, utf-8, ...).
  --sheet NAME                Workbook sheet to read, "*" for every sheet.
  --xlsx PATH                 Write itemsets and rules to an XLSX workbook.
  --sqlite PATH               Append the run to a SQLite database.
  --no-cache                  Ignore and do not write the result cache.
  -h --help                   Show this screen.
  --version                   Show version.

Examples:
  # Mine the default dataset with a lower support threshold.
  basket --min-support 0.02 online_retail_II.xlsx

  # Keep every run for later comparison.
  basket --sqlite runs.db --xlsx rules.xlsx transactions.csv
`

// errHelpShown means docopt printed the usage or version text.
var errHelpShown = errors.New("help shown")

type options struct {
	file       string
	configFile string
	sqlitePath string
	xlsxPath   string
	noCache    bool
}

// parseArgs applies command-line overrides on top of the loaded config.
func parseArgs(args []string) (*options, *config.Config, error) {
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpOnly}
	opts, err := parser.ParseArgs(usage, args, version)
	if err != nil {
		return nil, nil, fmt.Errorf("parse arguments: %w", err)
	}
	if opts == nil {
		return nil, nil, errHelpShown
	}

	o := &options{
		file:       str(opts, "FILE"),
		configFile: str(opts, "--config"),
		sqlitePath: str(opts, "--sqlite"),
		xlsxPath:   str(opts, "--xlsx"),
	}
	o.noCache, _ = opts.Bool("--no-cache")
	if o.file == "" {
		return nil, nil, fmt.Errorf("FILE is required")
	}

	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	cfg.Dataset.Path = o.file

	floatFlag := func(name string, dst *float64) error {
		if v := str(opts, name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", name, v, err)
			}
			*dst = f
		}
		return nil
	}
	intFlag := func(name string, dst *int) error {
		if v := str(opts, name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", name, v, err)
			}
			*dst = n
		}
		return nil
	}

	if err := floatFlag("--min-support", &cfg.Mining.MinSupport); err != nil {
		return nil, nil, err
	}
	if str(opts, "--min-confidence") != "" {
		cfg.Mining.Metric = "confidence"
		if err := floatFlag("--min-confidence", &cfg.Mining.MinThreshold); err != nil {
			return nil, nil, err
		}
	}
	if err := intFlag("--max-len", &cfg.Mining.MaxLen); err != nil {
		return nil, nil, err
	}
	if err := intFlag("--top", &cfg.Mining.TopRules); err != nil {
		return nil, nil, err
	}
	if v := str(opts, "--encoding"); v != "" {
		cfg.Dataset.Encoding = v
	}
	if v := str(opts, "--sheet"); v != "" {
		cfg.Dataset.Sheet = v
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid options: %w", err)
	}
	return o, cfg, nil
}

func str(opts docopt.Opts, key string) string {
	v, _ := opts[key].(string)
	return v
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, cfg, err := parseArgs(args)
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(stderr, cfg.Logger)
	analytics := services.NewAnalytics(
		services.WithOptions(services.OptionsFromConfig(cfg)),
		services.WithLogger(logger),
	)
	if err := analytics.LoadFromFile(ctx, o.file); err != nil {
		return err
	}

	res := analytics.Result()
	if err := report.Write(stdout, res, cfg.Mining.TopRules); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if o.xlsxPath != "" {
		if err := export.WriteXLSX(o.xlsxPath, res); err != nil {
			return fmt.Errorf("export xlsx: %w", err)
		}
		logger.Info("results exported", "format", "xlsx", "path", o.xlsxPath)
	}

	if o.sqlitePath != "" {
		store, err := sqlite.Open(o.sqlitePath)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}
		defer store.Close()

		runID, err := store.SaveRun(ctx, res)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		logger.Info("results exported", "format", "sqlite", "path", o.sqlitePath, "run_id", runID)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, errHelpShown) {
			return
		}
		fmt.Fprintf(os.Stderr, "basket: %v\n", err)
		os.Exit(1)
	}
}
