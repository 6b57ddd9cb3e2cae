// Command mailballot is a one-shot batch job: it downloads the PA 2020
// mail ballot request dataset (or loads the local CSV cache), runs the
// transform pipeline, renders the county comparison chart, and writes
// the processed CSV.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/ballotflow/mailballot/pkg/chart"
	"github.com/ballotflow/mailballot/pkg/dataset"
	"github.com/ballotflow/mailballot/pkg/fetch"
	"github.com/ballotflow/mailballot/pkg/logging"
	"github.com/ballotflow/mailballot/pkg/pipeline"
	"github.com/ballotflow/mailballot/pkg/soda"
	"github.com/ballotflow/mailballot/pkg/store"
)

const (
	defaultCachePath  = "downloaded_data.csv"
	defaultOutputPath = "processed_data.csv"
	defaultChartPath  = "county_party_counts.png"
	defaultUserAgent  = "mailballot/1.0.0 (github.com/ballotflow/mailballot)"
)

type options struct {
	resourceURL   string
	appToken      string
	userAgent     string
	pageSize      int
	pageTimeout   time.Duration
	cachePath     string
	outputPath    string
	chartPath     string
	referenceYear int
	topCounties   int
	logLevel      string
	logPretty     bool
	metricsAddr   string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fetchDefaults := fetch.DefaultConfig()
	pipelineDefaults := pipeline.DefaultConfig()

	fs := flag.NewFlagSet("mailballot", flag.ContinueOnError)
	fs.StringVar(&opts.resourceURL, "resource-url", getEnv("SODA_RESOURCE_URL", soda.DefaultResourceURL), "SODA resource URL")
	fs.StringVar(&opts.appToken, "app-token", os.Getenv("SODA_APP_TOKEN"), "Socrata application token")
	fs.StringVar(&opts.userAgent, "user-agent", getEnv("SODA_USER_AGENT", defaultUserAgent), "User-Agent header for API requests")
	fs.IntVar(&opts.pageSize, "page-size", fetchDefaults.PageSize, "rows requested per page")
	fs.DurationVar(&opts.pageTimeout, "page-timeout", fetchDefaults.PageTimeout, "timeout per page request")
	fs.StringVar(&opts.cachePath, "cache", getEnv("MAILBALLOT_CACHE", defaultCachePath), "local CSV cache of the raw dataset")
	fs.StringVar(&opts.outputPath, "output", defaultOutputPath, "processed CSV output path")
	fs.StringVar(&opts.chartPath, "chart", defaultChartPath, "county comparison chart output path")
	fs.IntVar(&opts.referenceYear, "reference-year", pipelineDefaults.ReferenceYear, "election year ages are computed against")
	fs.IntVar(&opts.topCounties, "top-counties", pipelineDefaults.TopCounties, "counties kept in the county/party ranking")
	fs.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	fs.BoolVar(&opts.logPretty, "log-pretty", false, "human-readable console logging")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "optional address to serve /metrics on during the run")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func main() {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.logPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}
}

func run(ctx context.Context, opts *options) error {
	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr)
	}

	client, err := soda.New(soda.Config{
		ResourceURL: opts.resourceURL,
		UserAgent:   opts.userAgent,
		AppToken:    opts.appToken,
	})
	if err != nil {
		return fmt.Errorf("create SODA client: %w", err)
	}

	fetcher := fetch.New(client, fetch.Config{
		PageSize:    opts.pageSize,
		PageTimeout: opts.pageTimeout,
	})

	table, err := store.Resolve(ctx, store.New(opts.cachePath), fetcher)
	if err != nil {
		return fmt.Errorf("resolve dataset: %w", err)
	}

	if table.Len() == 0 {
		log.Warn().Msg("No data available - exiting")
		return nil
	}

	log.Info().Strs("columns", table.Columns).Int("rows", table.Len()).Msg("Dataset loaded")

	processed, report := pipeline.Run(table, pipeline.Config{
		ReferenceYear: opts.referenceYear,
		TopCounties:   opts.topCounties,
	})
	logReport(report)

	if report.CountyParty != nil {
		if err := chart.RenderCountyParty(report.CountyParty, chart.DefaultConfig(), opts.chartPath); err != nil {
			return fmt.Errorf("render chart: %w", err)
		}
		log.Info().Str("path", opts.chartPath).Msg("Chart saved")
	} else {
		log.Warn().Msg("County/party counts unavailable - chart skipped")
	}

	if err := writeCSV(opts.outputPath, processed); err != nil {
		return fmt.Errorf("write processed data: %w", err)
	}
	log.Info().Str("path", opts.outputPath).Int("rows", processed.Len()).Msg("Processed data saved")

	return nil
}

// logReport narrates the aggregates the way the batch job's consumers
// expect: a small sample of each, not the full series.
func logReport(report *pipeline.Report) {
	log.Info().
		Int("total", report.TotalRows).
		Int("valid", report.ValidRows).
		Int("invalid", report.InvalidRows).
		Msg("Row validity summary")

	for _, c := range head(report.AgeParty, 5) {
		log.Info().
			Str("party", c.Party).
			Int("age", c.Age).
			Int("requests", c.Requests).
			Msg("Age/party distribution sample")
	}

	for _, l := range head(report.MedianLatency, 5) {
		log.Info().
			Str("district", l.District).
			Float64("median_latency_days", l.MedianLatencyDays).
			Msg("Return latency sample")
	}

	if report.TopCongressional != nil {
		log.Info().
			Str("district", report.TopCongressional.District).
			Int("requests", report.TopCongressional.Requests).
			Msg("Top congressional district by ballot requests")
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn().Err(err).Msg("Metrics server stopped")
	}
}

func writeCSV(path string, t *dataset.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func head[T any](s []T, n int) []T {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
