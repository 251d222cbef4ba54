// Command ausgaben-report prints the dashboard figures for one period.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ausgaben/internal/backend"
	"ausgaben/internal/cli"
	"ausgaben/internal/core"
	applog "ausgaben/internal/log"
	"ausgaben/internal/services"
)

type options struct {
	period string
	offset int
	days   int
	top    int
	format string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("ausgaben-report", flag.ContinueOnError)
	fs.StringVar(&o.period, "period", "month", "Period kind: month, week, days or all")
	fs.IntVar(&o.offset, "offset", 0, "Periods back from the current one, e.g. -1 for last month")
	fs.IntVar(&o.days, "days", core.DefaultSeriesDays, "Window length for -period days")
	fs.IntVar(&o.top, "top", 0, "Number of categories to list, 0 for the configured default")
	fs.StringVar(&o.format, "format", "text", "Output format: text or json")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	o.format = strings.ToLower(o.format)
	if o.format != "text" && o.format != "json" {
		return o, fmt.Errorf("unknown format %q", o.format)
	}
	return o, nil
}

func render(w io.Writer, format string, d core.Dashboard) error {
	if format == "json" {
		return writeJSONReport(w, d)
	}
	return writeTextReport(w, d)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	// Logs go to stderr so stdout stays a clean report.
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentReport,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	cfg := cli.LoadAndValidateConfig(logger)

	period, err := core.ParsePeriod(opts.period, opts.offset, opts.days, time.Now())
	if err != nil {
		logger.Error("Invalid period", applog.FieldError, err, "period", opts.period)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	// The report only reads, so no events are published.
	backendCfg.AMQPURL = ""
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			_ = result.Cleanup()
		}
	}()

	dash := services.NewDashboardService(result.Backend, result.Backend,
		services.WithDefaults(core.DashboardOptions{
			SeriesDays:         cfg.DashboardSeriesDays,
			TopN:               cfg.DashboardTopN,
			UncategorizedLabel: cfg.UncategorizedLabel,
		}),
		services.WithLogger(logger.WithComponent(applog.ComponentDashboard).Slog()),
	)

	d, err := dash.Dashboard(ctx, core.DashboardOptions{Period: period, TopN: opts.top})
	if err != nil {
		logger.Error("Failed to build report", applog.FieldError, err)
		os.Exit(1)
	}

	if err := render(os.Stdout, opts.format, d); err != nil {
		logger.Error("Failed to write report", applog.FieldError, err)
		os.Exit(1)
	}
}
