// Package soda provides the HTTP client for a single Socrata Open Data
// API (SODA) resource: an aggregate count query and an offset-paginated
// row query.
package soda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ballotflow/mailballot/pkg/dataset"
)

// Prometheus metrics for SODA client operations.
var (
	sodaRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soda_requests_total",
		Help: "Total SODA requests by kind and status",
	}, []string{"kind", "status"})

	sodaRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soda_request_duration_seconds",
		Help:    "SODA request duration in seconds by kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	sodaErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soda_errors_total",
		Help: "Total SODA errors by class",
	}, []string{"class"})
)

// Request kinds used in logs and metrics.
const (
	kindCount = "count"
	kindPage  = "page"
)

// DefaultResourceURL is the PA 2020 General Election mail ballot
// requests dataset.
const DefaultResourceURL = "https://data.pa.gov/resource/mcba-yywm.json"

// Client is a SODA client bound to one resource URL.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// ResourceURL is the full resource URL including the .json suffix.
	ResourceURL string

	// UserAgent identifies the application to the data portal.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// AppToken is an optional Socrata application token, sent as
	// X-App-Token. Requests without one share the anonymous rate
	// limit pool.
	AppToken string

	// HTTPClient is an optional custom HTTP client. Timeouts are
	// applied per request via context, so the default client carries
	// none of its own.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(resourceURL, userAgent string) Config {
	return Config{
		ResourceURL: resourceURL,
		UserAgent:   userAgent,
	}
}

// New creates a new SODA client.
func New(cfg Config) (*Client, error) {
	if cfg.ResourceURL == "" {
		return nil, fmt.Errorf("resource URL is required")
	}

	if _, err := url.Parse(cfg.ResourceURL); err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := log.With().Str("component", "soda-client").Logger()

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Count returns the total number of rows in the resource via
// `$select=count(*)`.
//
// Any failure here is fatal to a bulk fetch: a non-success status or
// transport error yields an error wrapping ErrCountUnavailable, and a
// response without a numeric count field yields an error wrapping
// ErrCountParse. No timeout is applied beyond the caller's context.
func (c *Client) Count(ctx context.Context) (int, error) {
	query := url.Values{}
	query.Set("$select", "count(*)")

	resp, err := c.get(ctx, kindCount, query)
	if err != nil {
		sodaErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return 0, &APIError{
			Kind:    kindCount,
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     fmt.Errorf("%w: %v", ErrCountUnavailable, err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		sodaErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Count query failed")

		return 0, &APIError{
			Kind:       kindCount,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
			Err:        ErrCountUnavailable,
		}
	}

	var rows []map[string]json.RawMessage
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&rows); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", ErrCountParse, err)
	}

	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: empty result", ErrCountParse)
	}

	raw, ok := rows[0]["count"]
	if !ok {
		return 0, fmt.Errorf("%w: count field missing", ErrCountParse)
	}

	count, err := parseCount(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCountParse, err)
	}

	c.logger.Debug().Int("total", count).Msg("Count query succeeded")
	return count, nil
}

// Page fetches the rows [offset, offset+limit) from the resource.
// Scalar values are normalized to strings; JSON null and absent fields
// both map to the null cell value.
func (c *Client) Page(ctx context.Context, limit, offset int) ([]dataset.Record, error) {
	query := url.Values{}
	query.Set("$limit", strconv.Itoa(limit))
	query.Set("$offset", strconv.Itoa(offset))

	resp, err := c.get(ctx, kindPage, query)
	if err != nil {
		sodaErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			Kind:    kindPage,
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		class := classifyStatus(resp.StatusCode)
		sodaErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Int("status", resp.StatusCode).
			Int("offset", offset).
			Str("error_class", string(class)).
			Msg("Page query failed")

		return nil, &APIError{
			Kind:       kindPage,
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
	}

	var rows []map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode page at offset %d: %w", offset, err)
	}

	records := make([]dataset.Record, 0, len(rows))
	for _, row := range rows {
		rec := make(dataset.Record, len(row))
		for field, value := range row {
			if s, ok := normalizeValue(value); ok {
				rec[field] = s
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// get issues a GET against the resource URL with the given query and
// records request metrics.
func (c *Client) get(ctx context.Context, kind string, query url.Values) (*http.Response, error) {
	start := time.Now()
	defer func() {
		sodaRequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.ResourceURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.AppToken != "" {
		req.Header.Set("X-App-Token", c.config.AppToken)
	}

	c.logger.Debug().
		Str("kind", kind).
		Str("query", query.Encode()).
		Msg("Executing SODA request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sodaRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		return nil, err
	}

	sodaRequestsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// parseCount accepts the count either as a numeric string ("123") or a
// bare number (123), both of which Socrata has been observed to return.
func parseCount(raw json.RawMessage) (int, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		count, err := strconv.Atoi(asString)
		if err != nil {
			return 0, fmt.Errorf("non-numeric count %q", asString)
		}
		return count, nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return 0, fmt.Errorf("unexpected count value %s", string(raw))
	}
	count, err := strconv.Atoi(asNumber.String())
	if err != nil {
		return 0, fmt.Errorf("non-integer count %s", asNumber.String())
	}
	return count, nil
}

// normalizeValue converts a decoded JSON value to its cell string.
// ok is false for JSON null. Non-scalar values (location columns and the
// like) are kept as their compact JSON encoding.
func normalizeValue(v any) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case json.Number:
		return value.String(), true
	case bool:
		return strconv.FormatBool(value), true
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value), true
		}
		return string(encoded), true
	}
}
