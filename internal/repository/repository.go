package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"insiderlens/internal/models"
)

// Repository is the single persistence surface shared by the API server, the
// worker pool and the cron jobs. One gorm-backed implementation lives in
// repository/gorm; tests use in-memory stubs.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Job queue. EnqueueJob inserts with dedupe-key conflict ignored and
	// reports whether a row was created. The conditional updates return rows
	// affected so callers can tell a no-op from a transition.
	EnqueueJob(ctx context.Context, item *models.Job) (bool, error)
	GetJobByDedupeKey(ctx context.Context, dedupeKey string) (*models.Job, error)
	GetJobByID(ctx context.Context, id uint64) (*models.Job, error)
	UpdateJob(ctx context.Context, id uint64, updates map[string]any) error
	UpdateJobIfTerminal(ctx context.Context, dedupeKey string, updates map[string]any) (int64, error)
	PromoteJobIfPending(ctx context.Context, dedupeKey string, priority int, payload []byte) (int64, error)
	ClaimNextJob(ctx context.Context, workerID string, jobTypes []string) (*models.Job, error)
	ReclaimStaleJobs(ctx context.Context, runningBefore time.Time) (int64, error)
	ListJobs(ctx context.Context, params ListJobsParams) ([]models.Job, error)
	CountJobs(ctx context.Context, params ListJobsParams) (int64, error)

	// Issuers and filings.
	UpsertIssuer(ctx context.Context, item *models.Issuer) error
	GetIssuerByCIK(ctx context.Context, cik string) (*models.Issuer, error)
	GetIssuerByTicker(ctx context.Context, ticker string) (*models.Issuer, error)
	ListTickerDirectory(ctx context.Context, params TickerDirectoryParams) ([]TickerDirectoryRow, error)
	UpsertFiling(ctx context.Context, item *models.Filing) error
	GetFiling(ctx context.Context, accession string) (*models.Filing, error)
	ListFilingsByIssuer(ctx context.Context, issuerCIK string) ([]models.Filing, error)
	UpsertFilingDocument(ctx context.Context, item *models.FilingDocument) error
	GetFilingDocument(ctx context.Context, accession string) (*models.FilingDocument, error)

	// Raw Form 4 rows. Parsing replaces an accession's rows wholesale.
	ReplaceForm4Rows(ctx context.Context, accession string, rows []models.Form4Row) error
	ListForm4RowsByAccession(ctx context.Context, accession string) ([]models.Form4Row, error)

	// Events.
	UpsertInsiderEvent(ctx context.Context, item *models.InsiderEvent) error
	GetInsiderEvent(ctx context.Context, issuerCIK, ownerKey, accession string) (*models.InsiderEvent, error)
	UpdateInsiderEvent(ctx context.Context, issuerCIK, ownerKey, accession string, updates map[string]any) error
	ListInsiderEvents(ctx context.Context, params ListEventsParams) ([]models.InsiderEvent, error)
	CountInsiderEvents(ctx context.Context, params ListEventsParams) (int64, error)
	ListEventsByAccession(ctx context.Context, issuerCIK, accession string) ([]models.InsiderEvent, error)
	ListEventsByOwnerIssuer(ctx context.Context, issuerCIK, ownerKey string) ([]models.InsiderEvent, error)
	ListEventsByIssuerBetween(ctx context.Context, issuerCIK, fromDate, toDate string) ([]models.InsiderEvent, error)
	ListEventKeysByIssuer(ctx context.Context, issuerCIK string) ([]EventKey, error)
	ListSidedEventsByTicker(ctx context.Context, ticker string) ([]models.InsiderEvent, error)
	UpdateEventTickerForIssuer(ctx context.Context, issuerCIK, ticker string) error
	ClearClusterMarks(ctx context.Context, ticker string) error

	// Outcomes and per-insider stats.
	UpsertEventOutcome(ctx context.Context, item *models.EventOutcome) error
	DeleteEventOutcome(ctx context.Context, issuerCIK, ownerKey, accession, side string) error
	ListOutcomesByEvent(ctx context.Context, issuerCIK, ownerKey, accession string) ([]models.EventOutcome, error)
	ListOutcomesByOwnerIssuerSide(ctx context.Context, issuerCIK, ownerKey, side string) ([]models.EventOutcome, error)
	ListOutcomeKeysMissingBenchmark(ctx context.Context, limit int) ([]EventKey, error)
	ListEventKeysMissingPrices(ctx context.Context, issuerCIK string) ([]EventKey, error)
	UpsertInsiderStat(ctx context.Context, item *models.InsiderStat) error
	GetInsiderStat(ctx context.Context, issuerCIK, ownerKey, accession, side string) (*models.InsiderStat, error)
	ListStatsByEvent(ctx context.Context, issuerCIK, ownerKey, accession string) ([]models.InsiderStat, error)
	MarkStatsComputedForOwnerIssuer(ctx context.Context, issuerCIK, ownerKey string, at time.Time) error

	// AI runs.
	InsertAIOutput(ctx context.Context, item *models.AIOutput) error
	GetLatestAIOutput(ctx context.Context, issuerCIK, ownerKey, accession string) (*models.AIOutput, error)

	// Clusters. A sweep replaces a ticker's clusters and members wholesale.
	ReplaceClustersForTicker(ctx context.Context, ticker string, clusters []models.Cluster, members []models.ClusterMember) error
	ListClustersByTicker(ctx context.Context, ticker string) ([]models.Cluster, error)
	GetClusterByID(ctx context.Context, clusterID string) (*models.Cluster, error)
	ListClusterMembers(ctx context.Context, clusterID string) ([]models.ClusterMember, error)

	// Price series, ascending by date.
	UpsertIssuerPrices(ctx context.Context, items []models.IssuerPrice) error
	ListIssuerPrices(ctx context.Context, issuerCIK string) ([]models.IssuerPrice, error)
	UpsertBenchmarkPrices(ctx context.Context, items []models.BenchmarkPrice) error
	ListBenchmarkPrices(ctx context.Context, symbol string) ([]models.BenchmarkPrice, error)
	CountBenchmarkPrices(ctx context.Context, symbol string) (int64, error)
	UpsertMarketCap(ctx context.Context, item *models.MarketCapCache) error
	GetMarketCap(ctx context.Context, ticker string) (*models.MarketCapCache, error)

	// Backfill queue.
	InsertBackfillItems(ctx context.Context, items []models.BackfillItem) error
	ListPendingBackfillItems(ctx context.Context, issuerCIK, yearPrefix string, limit int) ([]models.BackfillItem, error)
	MarkBackfillItem(ctx context.Context, issuerCIK, accession, status string, lastError *string) error

	// App state.
	GetAppState(ctx context.Context, key string) (*models.AppState, error)
	SetAppState(ctx context.Context, key, value string) error

	// Monitoring aggregates.
	JobStatusCounts(ctx context.Context) (map[string]int64, error)
	OldestPendingJobAge(ctx context.Context) (*float64, error)
	PendingJobsByType(ctx context.Context) ([]TypeCountRow, error)
	ErrorJobsByType(ctx context.Context) ([]TypeCountRow, error)
	JobThroughputByHour(ctx context.Context, since time.Time) ([]ThroughputRow, error)
	JobLatencyByType(ctx context.Context, since time.Time) ([]LatencyRow, error)
	ListRecentJobErrors(ctx context.Context, limit int) ([]models.Job, error)
	PipelineTableCounts(ctx context.Context) (map[string]int64, error)
}

type ListJobsParams struct {
	Limit   int
	Offset  int
	Status  *string
	JobType *string
	OrderBy string
	Asc     *bool
}

type ListEventsParams struct {
	Limit          int
	Offset         int
	Ticker         *string
	IssuerCIK      *string
	SinceDate      *string
	Side           *string
	ClusterOnly    bool
	AIOnly         bool
	MinDollars     *decimal.Decimal
	OfficerOnly    bool
	DirectorOnly   bool
	TenPercentOnly bool
	Sort           string
}

// Sort values accepted by ListInsiderEvents.
const (
	SortFilingDateDesc = "filing_date_desc"
	SortAIBestDesc     = "ai_best_desc"
)

type TickerDirectoryParams struct {
	Limit  int
	Offset int
	Query  *string
}

type TickerDirectoryRow struct {
	Ticker         string
	IssuerCIK      string
	IssuerName     string
	EventCount     int64
	LastFilingDate *string
}

type EventKey struct {
	IssuerCIK       string
	OwnerKey        string
	AccessionNumber string
}

type TypeCountRow struct {
	JobType string
	Count   int64
}

type ThroughputRow struct {
	Hour      time.Time
	Succeeded int64
	Errored   int64
}

type LatencyRow struct {
	JobType    string
	N          int64
	AvgSeconds float64
	P50Seconds float64
	P95Seconds float64
}
