package jobqueue

// Job types handled by the worker pool. The API set talks to external
// services and is rate limited by their clients; the compute set only touches
// the database.
const (
	TypeFetchAccessionDocs       = "FETCH_ACCESSION_DOCS"
	TypeIngestAccession          = "INGEST_ACCESSION"
	TypeFetchEODPricesForIssuer  = "FETCH_EOD_PRICES_FOR_ISSUER"
	TypeFetchMarketCapForTicker  = "FETCH_MARKET_CAP_FOR_TICKER"
	TypeFetchBenchmarkPrices     = "FETCH_BENCHMARK_PRICES"
	TypeBackfillDiscoverIssuer   = "BACKFILL_DISCOVER_ISSUER"
	TypeBackfillEnqueueBatch     = "BACKFILL_ENQUEUE_BATCH"
	TypeParseAccessionDocs       = "PARSE_ACCESSION_DOCS"
	TypeAggregateAccession       = "AGGREGATE_ACCESSION"
	TypeComputeTrendForEvent     = "COMPUTE_TREND_FOR_EVENT"
	TypeComputeOutcomesForEvent  = "COMPUTE_OUTCOMES_FOR_EVENT"
	TypeComputeStatsForOwner     = "COMPUTE_STATS_FOR_OWNER_ISSUER"
	TypeComputeClustersForTicker = "COMPUTE_CLUSTERS_FOR_TICKER"
	TypeRunAIForEvent            = "RUN_AI_FOR_EVENT"
	TypeReparseTicker            = "REPARSE_TICKER"
)

// APITypes are the jobs that call out to EDGAR or the price vendor.
var APITypes = []string{
	TypeFetchAccessionDocs,
	TypeIngestAccession,
	TypeFetchEODPricesForIssuer,
	TypeFetchMarketCapForTicker,
	TypeFetchBenchmarkPrices,
	TypeBackfillDiscoverIssuer,
	TypeBackfillEnqueueBatch,
}

// ComputeTypes are the database-only jobs, including the AI judge.
var ComputeTypes = []string{
	TypeParseAccessionDocs,
	TypeAggregateAccession,
	TypeComputeTrendForEvent,
	TypeComputeOutcomesForEvent,
	TypeComputeStatsForOwner,
	TypeComputeClustersForTicker,
	TypeRunAIForEvent,
	TypeReparseTicker,
}

// AllTypes is APITypes followed by ComputeTypes.
var AllTypes = append(append([]string{}, APITypes...), ComputeTypes...)

// Priorities. Higher claims first.
const (
	PriorityDefault = 100
	PriorityBench   = 120
	PriorityAI      = 200
	PriorityForced  = 500
)

// Max attempts. AI jobs defer often while waiting on prerequisites, so they
// get extra headroom.
const (
	DefaultMaxAttempts = 3
	AIMaxAttempts      = 10
)
