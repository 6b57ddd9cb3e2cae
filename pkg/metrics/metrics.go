// Package metrics documents the Prometheus series exported by the
// module. All metrics are defined in their owning packages (soda,
// fetch, store) via promauto to keep registration local to the code
// that drives them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the module.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// SODA client (pkg/soda):
//   - soda_requests_total{kind, status} (Counter): requests by kind (count, page) and HTTP status
//   - soda_request_duration_seconds{kind} (Histogram): request duration by kind
//   - soda_errors_total{class} (Counter): errors by class (client, server, network)
//
// Bulk fetch (pkg/fetch):
//   - fetch_pages_total (Counter): pages successfully fetched
//   - fetch_records_total (Counter): records fetched across all pages
//   - fetch_partial_total (Counter): fetches that stopped early on a failed or empty page
//
// Dataset cache (pkg/store):
//   - dataset_cache_hits_total (Counter): runs served from the local CSV cache
//   - dataset_cache_misses_total (Counter): runs that fetched from the API
//
// Example Prometheus Queries:
//
//   # Page failure rate
//   rate(soda_errors_total{class="server"}[5m]) / rate(soda_requests_total{kind="page"}[5m])
//
//   # P95 page latency
//   histogram_quantile(0.95, rate(soda_request_duration_seconds_bucket{kind="page"}[5m]))
//
//   # Share of runs degraded to partial data
//   increase(fetch_partial_total[1d])
