package placeholdercache

import "github.com/VictoriaMetrics/metrics"

// Metrics groups the counters the cache maintains.
type Metrics struct {
	RowsLoaded  *metrics.Counter
	RowsSaved   *metrics.Counter
	StoreErrors *metrics.Counter
}

// DefaultMetrics returns counters registered in the process-wide metrics set,
// which is what /metrics exposes.
func DefaultMetrics() *Metrics {
	return &Metrics{
		RowsLoaded:  metrics.GetOrCreateCounter("webstats_cache_rows_loaded_total"),
		RowsSaved:   metrics.GetOrCreateCounter("webstats_cache_rows_saved_total"),
		StoreErrors: metrics.GetOrCreateCounter("webstats_store_errors_total"),
	}
}

// NewMetrics registers the counters in set. Tests use a private set to keep
// their counts isolated.
func NewMetrics(set *metrics.Set) *Metrics {
	return &Metrics{
		RowsLoaded:  set.GetOrCreateCounter("webstats_cache_rows_loaded_total"),
		RowsSaved:   set.GetOrCreateCounter("webstats_cache_rows_saved_total"),
		StoreErrors: set.GetOrCreateCounter("webstats_store_errors_total"),
	}
}
