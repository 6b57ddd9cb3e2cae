package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ballotflow/mailballot/pkg/dataset"
)

// Prometheus metrics for bulk fetch operations.
var (
	fetchPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_pages_total",
		Help: "Total pages successfully fetched",
	})

	fetchRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_records_total",
		Help: "Total records fetched across all pages",
	})

	fetchPartialTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fetch_partial_total",
		Help: "Bulk fetches that stopped early on a failed or empty page",
	})
)

// Config holds fetcher configuration.
type Config struct {
	// PageSize is the number of rows requested per page.
	PageSize int

	// PageTimeout bounds each page request. The count query carries no
	// timeout of its own; only the caller's context applies to it.
	PageTimeout time.Duration
}

// DefaultConfig returns the configuration matching the upstream
// portal's observed limits.
func DefaultConfig() Config {
	return Config{
		PageSize:    50000,
		PageTimeout: 60 * time.Second,
	}
}

// PageClient is the interface the fetcher needs from a SODA client.
type PageClient interface {
	// Count returns the total number of rows in the resource.
	Count(ctx context.Context) (int, error)

	// Page fetches the rows [offset, offset+limit).
	Page(ctx context.Context, limit, offset int) ([]dataset.Record, error)
}

// Result is the outcome of one bulk fetch.
type Result struct {
	// Table holds all fetched rows in ascending-offset order.
	Table *dataset.Table

	// Total is the row count reported by the count query. It is not
	// re-validated against the number of rows actually retrieved.
	Total int

	// Pages is the number of page requests issued.
	Pages int

	// Partial is true when the loop stopped before reaching Total
	// because a page failed or came back empty.
	Partial bool
}

// Fetcher retrieves a complete resource via repeated bounded page
// requests. Pages are fetched strictly sequentially; a page request is
// issued only after the previous one completed.
type Fetcher struct {
	client PageClient
	config Config
	logger zerolog.Logger
}

// New creates a fetcher. Zero config fields fall back to defaults.
func New(client PageClient, config Config) *Fetcher {
	if config.PageSize <= 0 {
		config.PageSize = 50000
	}
	if config.PageTimeout <= 0 {
		config.PageTimeout = 60 * time.Second
	}

	return &Fetcher{
		client: client,
		config: config,
		logger: log.With().Str("component", "fetcher").Logger(),
	}
}

// FetchAll retrieves the resource and returns the accumulated table.
//
// A count failure is returned as an error and no page request is
// issued. A page failure is not an error: the loop stops and the rows
// fetched so far are returned with Result.Partial set. Transport errors
// on a page request are treated exactly like non-success statuses
// (stop, keep partial data) so that a flaky network degrades the same
// way a failing upstream does. Pages are never retried.
func (f *Fetcher) FetchAll(ctx context.Context) (*Result, error) {
	start := time.Now()

	total, err := f.client.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch total count: %w", err)
	}

	f.logger.Info().
		Int("total", total).
		Int("page_size", f.config.PageSize).
		Msg("Starting bulk fetch")

	result := &Result{
		Table: dataset.NewTable(),
		Total: total,
	}

	for offset := 0; offset < total; offset += f.config.PageSize {
		f.logger.Info().Int("offset", offset).Msg("Fetching page")

		pageCtx, cancel := context.WithTimeout(ctx, f.config.PageTimeout)
		records, err := f.client.Page(pageCtx, f.config.PageSize, offset)
		cancel()
		result.Pages++

		if err != nil {
			// Lenient by contract: a failed page ends the fetch
			// with whatever was accumulated so far.
			f.logger.Warn().
				Err(err).
				Int("offset", offset).
				Int("rows", result.Table.Len()).
				Msg("Page fetch failed - keeping partial data")
			result.Partial = true
			fetchPartialTotal.Inc()
			break
		}

		if len(records) == 0 {
			f.logger.Info().
				Int("offset", offset).
				Int("rows", result.Table.Len()).
				Msg("No more data available")
			result.Partial = result.Table.Len() < total
			if result.Partial {
				fetchPartialTotal.Inc()
			}
			break
		}

		for _, rec := range records {
			result.Table.Append(rec)
		}

		fetchPagesTotal.Inc()
		fetchRecordsTotal.Add(float64(len(records)))

		f.logger.Info().
			Int("offset", offset).
			Int("received", len(records)).
			Int("rows", result.Table.Len()).
			Msg("Page received")
	}

	f.logger.Info().
		Int("rows", result.Table.Len()).
		Int("pages", result.Pages).
		Bool("partial", result.Partial).
		Dur("duration", time.Since(start)).
		Msg("Bulk fetch complete")

	return result, nil
}
