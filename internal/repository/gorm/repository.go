package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Job queue --------------------------------------------------------------

func (s *Store) EnqueueJob(ctx context.Context, item *models.Job) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetJobByDedupeKey(ctx context.Context, dedupeKey string) (*models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	dedupeKey = strings.TrimSpace(dedupeKey)
	if dedupeKey == "" {
		return nil, nil
	}
	var item models.Job
	err := s.db.WithContext(ctx).Model(&models.Job{}).Where("dedupe_key = ?", dedupeKey).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetJobByID(ctx context.Context, id uint64) (*models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Job
	err := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateJob(ctx context.Context, id uint64, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

func (s *Store) UpdateJobIfTerminal(ctx context.Context, dedupeKey string, updates map[string]any) (int64, error) {
	if s == nil || s.db == nil || len(updates) == 0 {
		return 0, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("dedupe_key = ?", dedupeKey).
		Where("status IN ?", []string{models.JobStatusSuccess, models.JobStatusError}).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (s *Store) PromoteJobIfPending(ctx context.Context, dedupeKey string, priority int, payload []byte) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	updates := map[string]any{
		"priority":   priority,
		"updated_at": time.Now().UTC(),
	}
	if len(payload) > 0 {
		updates["payload"] = payload
	}
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("dedupe_key = ?", dedupeKey).
		Where("status = ?", models.JobStatusPending).
		Where("priority < ?", priority).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ClaimNextJob flips exactly one visible pending job to running. SKIP LOCKED
// keeps concurrent workers from blocking on or double-claiming the same row.
func (s *Store) ClaimNextJob(ctx context.Context, workerID string, jobTypes []string) (*models.Job, error) {
	if s == nil || s.db == nil || len(jobTypes) == 0 {
		return nil, nil
	}
	const claimSQL = `
		WITH next AS (
			SELECT id FROM jobs
			WHERE status = 'pending'
			  AND (run_after IS NULL OR run_after <= NOW())
			  AND job_type IN ?
			ORDER BY priority DESC, created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs
		SET status = 'running', claimed_by = ?, updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING *`
	var items []models.Job
	if err := s.db.WithContext(ctx).Raw(claimSQL, jobTypes, workerID).Scan(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *Store) ReclaimStaleJobs(ctx context.Context, runningBefore time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusRunning).
		Where("updated_at < ?", runningBefore).
		Updates(map[string]any{
			"status":     models.JobStatusPending,
			"claimed_by": nil,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (s *Store) ListJobs(ctx context.Context, params repository.ListJobsParams) ([]models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyJobFilters(s.db.WithContext(ctx).Model(&models.Job{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "updated_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.Job
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountJobs(ctx context.Context, params repository.ListJobsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyJobFilters(s.db.WithContext(ctx).Model(&models.Job{}), params).Count(&total).Error
	return total, err
}

func applyJobFilters(query *gorm.DB, params repository.ListJobsParams) *gorm.DB {
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.JobType != nil && strings.TrimSpace(*params.JobType) != "" {
		query = query.Where("job_type = ?", strings.TrimSpace(*params.JobType))
	}
	return query
}

// --- Issuers and filings ----------------------------------------------------

func (s *Store) UpsertIssuer(ctx context.Context, item *models.Issuer) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if strings.TrimSpace(item.IssuerCIK) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "issuer_cik"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_ticker",
			"issuer_name",
			"last_filing_date",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetIssuerByCIK(ctx context.Context, cik string) (*models.Issuer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	cik = strings.TrimSpace(cik)
	if cik == "" {
		return nil, nil
	}
	var item models.Issuer
	err := s.db.WithContext(ctx).Model(&models.Issuer{}).Where("issuer_cik = ?", cik).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetIssuerByTicker(ctx context.Context, ticker string) (*models.Issuer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, nil
	}
	var item models.Issuer
	err := s.db.WithContext(ctx).
		Model(&models.Issuer{}).
		Where("current_ticker = ?", ticker).
		Order("last_filing_date DESC NULLS LAST").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTickerDirectory(ctx context.Context, params repository.TickerDirectoryParams) ([]repository.TickerDirectoryRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	query := s.db.WithContext(ctx).
		Table("insider_events").
		Select(`
			ticker,
			issuer_cik,
			MAX(issuer_name) AS issuer_name,
			COUNT(*) AS event_count,
			MAX(filing_date) AS last_filing_date
		`).
		Where("ticker IS NOT NULL")
	if params.Query != nil && strings.TrimSpace(*params.Query) != "" {
		q := strings.TrimSpace(*params.Query)
		query = query.Where("ticker ILIKE ? OR issuer_name ILIKE ?", q+"%", "%"+q+"%")
	}
	var rows []repository.TickerDirectoryRow
	err := query.
		Group("ticker, issuer_cik").
		Order("last_filing_date DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) UpsertFiling(ctx context.Context, item *models.Filing) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "accession_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"issuer_cik",
			"filing_date",
			"form_type",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetFiling(ctx context.Context, accession string) (*models.Filing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Filing
	err := s.db.WithContext(ctx).Model(&models.Filing{}).Where("accession_number = ?", accession).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListFilingsByIssuer(ctx context.Context, issuerCIK string) ([]models.Filing, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Filing
	err := s.db.WithContext(ctx).Model(&models.Filing{}).
		Where("issuer_cik = ?", issuerCIK).
		Order("filing_date asc, accession_number asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertFilingDocument(ctx context.Context, item *models.FilingDocument) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "accession_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"issuer_cik",
			"source_url",
			"content",
			"fetched_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetFilingDocument(ctx context.Context, accession string) (*models.FilingDocument, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.FilingDocument
	err := s.db.WithContext(ctx).Model(&models.FilingDocument{}).Where("accession_number = ?", accession).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Raw Form 4 rows --------------------------------------------------------

func (s *Store) ReplaceForm4Rows(ctx context.Context, accession string, rows []models.Form4Row) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("accession_number = ?", accession).Delete(&models.Form4Row{}).Error; err != nil {
			return err
		}
		return createInBatches(tx, rows, 200)
	})
}

func (s *Store) ListForm4RowsByAccession(ctx context.Context, accession string) ([]models.Form4Row, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Form4Row
	if err := s.db.WithContext(ctx).
		Model(&models.Form4Row{}).
		Where("accession_number = ?", accession).
		Order("owner_key asc, row_seq asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Events -----------------------------------------------------------------

func (s *Store) UpsertInsiderEvent(ctx context.Context, item *models.InsiderEvent) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "issuer_cik"},
			{Name: "owner_key"},
			{Name: "accession_number"},
		},
		UpdateAll: true,
	}).Create(item).Error
}

func (s *Store) GetInsiderEvent(ctx context.Context, issuerCIK, ownerKey, accession string) (*models.InsiderEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.InsiderEvent
	err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ?", issuerCIK, ownerKey, accession).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateInsiderEvent(ctx context.Context, issuerCIK, ownerKey, accession string, updates map[string]any) error {
	if s == nil || s.db == nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ?", issuerCIK, ownerKey, accession).
		Updates(updates).
		Error
}

func (s *Store) ListInsiderEvents(ctx context.Context, params repository.ListEventsParams) ([]models.InsiderEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyEventFilters(s.db.WithContext(ctx).Model(&models.InsiderEvent{}), params)
	switch params.Sort {
	case repository.SortAIBestDesc:
		query = query.Order("GREATEST(COALESCE(ai_buy_rating, -1), COALESCE(ai_sell_rating, -1)) DESC, filing_date DESC")
	default:
		query = query.Order("filing_date DESC, accession_number DESC, owner_key ASC")
	}
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.InsiderEvent
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountInsiderEvents(ctx context.Context, params repository.ListEventsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := applyEventFilters(s.db.WithContext(ctx).Model(&models.InsiderEvent{}), params).Count(&total).Error
	return total, err
}

func applyEventFilters(query *gorm.DB, params repository.ListEventsParams) *gorm.DB {
	if params.Ticker != nil && strings.TrimSpace(*params.Ticker) != "" {
		query = query.Where("ticker = ?", strings.ToUpper(strings.TrimSpace(*params.Ticker)))
	}
	if params.IssuerCIK != nil && strings.TrimSpace(*params.IssuerCIK) != "" {
		query = query.Where("issuer_cik = ?", strings.TrimSpace(*params.IssuerCIK))
	}
	if params.SinceDate != nil && *params.SinceDate != "" {
		query = query.Where("filing_date >= ?", *params.SinceDate)
	}
	side := ""
	if params.Side != nil {
		side = strings.ToLower(strings.TrimSpace(*params.Side))
	}
	switch side {
	case models.SideBuy:
		query = query.Where("has_buy = ?", true)
	case models.SideSell:
		query = query.Where("has_sell = ?", true)
	}
	if params.ClusterOnly {
		switch side {
		case models.SideBuy:
			query = query.Where("buy_cluster_flag = ?", true)
		case models.SideSell:
			query = query.Where("sell_cluster_flag = ?", true)
		default:
			query = query.Where("buy_cluster_flag = ? OR sell_cluster_flag = ?", true, true)
		}
	}
	if params.AIOnly {
		query = query.Where("ai_buy_rating IS NOT NULL OR ai_sell_rating IS NOT NULL")
	}
	if params.MinDollars != nil {
		switch side {
		case models.SideBuy:
			query = query.Where("COALESCE(buy_dollars, 0) >= ?", *params.MinDollars)
		case models.SideSell:
			query = query.Where("COALESCE(sell_dollars, 0) >= ?", *params.MinDollars)
		default:
			query = query.Where("GREATEST(COALESCE(buy_dollars, 0), COALESCE(sell_dollars, 0)) >= ?", *params.MinDollars)
		}
	}
	var roles []string
	if params.OfficerOnly {
		roles = append(roles, "is_officer = TRUE")
	}
	if params.DirectorOnly {
		roles = append(roles, "is_director = TRUE")
	}
	if params.TenPercentOnly {
		roles = append(roles, "is_ten_percent_owner = TRUE")
	}
	if len(roles) > 0 {
		query = query.Where(strings.Join(roles, " OR "))
	}
	return query
}

func (s *Store) ListEventsByAccession(ctx context.Context, issuerCIK, accession string) ([]models.InsiderEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.InsiderEvent
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ? AND accession_number = ?", issuerCIK, accession).
		Order("created_at asc, owner_key asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEventsByOwnerIssuer(ctx context.Context, issuerCIK, ownerKey string) ([]models.InsiderEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.InsiderEvent
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ? AND owner_key = ?", issuerCIK, ownerKey).
		Order("filing_date asc, accession_number asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEventsByIssuerBetween(ctx context.Context, issuerCIK, fromDate, toDate string) ([]models.InsiderEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.InsiderEvent
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ? AND filing_date >= ? AND filing_date < ?", issuerCIK, fromDate, toDate).
		Order("filing_date asc, accession_number asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListEventKeysByIssuer(ctx context.Context, issuerCIK string) ([]repository.EventKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.EventKey
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Select("issuer_cik, owner_key, accession_number").
		Where("issuer_cik = ?", issuerCIK).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListSidedEventsByTicker(ctx context.Context, ticker string) ([]models.InsiderEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, nil
	}
	var items []models.InsiderEvent
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("ticker = ?", ticker).
		Where("has_buy = ? OR has_sell = ?", true, true).
		Order("event_trade_date asc, accession_number asc, owner_key asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateEventTickerForIssuer(ctx context.Context, issuerCIK, ticker string) error {
	if s == nil || s.db == nil {
		return nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if issuerCIK == "" || ticker == "" {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ?", issuerCIK).
		Updates(map[string]any{"ticker": ticker, "updated_at": time.Now().UTC()}).
		Error
}

func (s *Store) ClearClusterMarks(ctx context.Context, ticker string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("ticker = ?", ticker).
		Updates(map[string]any{
			"buy_cluster_flag":  false,
			"buy_cluster_id":    nil,
			"sell_cluster_flag": false,
			"sell_cluster_id":   nil,
			"updated_at":        time.Now().UTC(),
		}).
		Error
}

// --- Outcomes and stats -----------------------------------------------------

func (s *Store) UpsertEventOutcome(ctx context.Context, item *models.EventOutcome) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "issuer_cik"},
			{Name: "owner_key"},
			{Name: "accession_number"},
			{Name: "side"},
		},
		UpdateAll: true,
	}).Create(item).Error
}

func (s *Store) DeleteEventOutcome(ctx context.Context, issuerCIK, ownerKey, accession, side string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ? AND side = ?", issuerCIK, ownerKey, accession, side).
		Delete(&models.EventOutcome{}).
		Error
}

func (s *Store) ListOutcomesByEvent(ctx context.Context, issuerCIK, ownerKey, accession string) ([]models.EventOutcome, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.EventOutcome
	if err := s.db.WithContext(ctx).
		Model(&models.EventOutcome{}).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ?", issuerCIK, ownerKey, accession).
		Order("side asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOutcomesByOwnerIssuerSide(ctx context.Context, issuerCIK, ownerKey, side string) ([]models.EventOutcome, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.EventOutcome
	if err := s.db.WithContext(ctx).
		Model(&models.EventOutcome{}).
		Where("issuer_cik = ? AND owner_key = ? AND side = ?", issuerCIK, ownerKey, side).
		Order("trade_date asc, accession_number asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListOutcomeKeysMissingBenchmark(ctx context.Context, limit int) ([]repository.EventKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5000
	}
	reasons := []string{"missing_benchmark_series", "benchmark_anchor_not_found", "insufficient_benchmark_future_data"}
	var keys []repository.EventKey
	if err := s.db.WithContext(ctx).
		Model(&models.EventOutcome{}).
		Distinct("issuer_cik", "owner_key", "accession_number").
		Where("bench_missing_reason_60 IN ? OR bench_missing_reason_180 IN ?", reasons, reasons).
		Limit(limit).
		Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// ListEventKeysMissingPrices finds the issuer's events whose trend or
// outcomes could not be computed for lack of a price series, so a fresh
// price fetch can requeue exactly that work.
func (s *Store) ListEventKeysMissingPrices(ctx context.Context, issuerCIK string) ([]repository.EventKey, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var fromTrend []repository.EventKey
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Select("issuer_cik", "owner_key", "accession_number").
		Where("issuer_cik = ? AND trend_missing_reason = ?", issuerCIK, "missing_price_series").
		Find(&fromTrend).Error; err != nil {
		return nil, err
	}
	var fromOutcomes []repository.EventKey
	if err := s.db.WithContext(ctx).
		Model(&models.EventOutcome{}).
		Distinct("issuer_cik", "owner_key", "accession_number").
		Where("issuer_cik = ? AND (missing_reason_60 = ? OR missing_reason_180 = ?)",
			issuerCIK, "missing_price_series", "missing_price_series").
		Find(&fromOutcomes).Error; err != nil {
		return nil, err
	}
	seen := make(map[repository.EventKey]bool, len(fromTrend))
	keys := make([]repository.EventKey, 0, len(fromTrend)+len(fromOutcomes))
	for _, key := range append(fromTrend, fromOutcomes...) {
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) UpsertInsiderStat(ctx context.Context, item *models.InsiderStat) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "issuer_cik"},
			{Name: "owner_key"},
			{Name: "accession_number"},
			{Name: "side"},
		},
		UpdateAll: true,
	}).Create(item).Error
}

func (s *Store) GetInsiderStat(ctx context.Context, issuerCIK, ownerKey, accession, side string) (*models.InsiderStat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.InsiderStat
	err := s.db.WithContext(ctx).
		Model(&models.InsiderStat{}).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ? AND side = ?",
			issuerCIK, ownerKey, accession, side).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListStatsByEvent(ctx context.Context, issuerCIK, ownerKey, accession string) ([]models.InsiderStat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.InsiderStat
	if err := s.db.WithContext(ctx).
		Model(&models.InsiderStat{}).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ?", issuerCIK, ownerKey, accession).
		Order("side asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkStatsComputedForOwnerIssuer(ctx context.Context, issuerCIK, ownerKey string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.InsiderEvent{}).
		Where("issuer_cik = ? AND owner_key = ?", issuerCIK, ownerKey).
		Updates(map[string]any{"stats_computed_at": at, "updated_at": time.Now().UTC()}).
		Error
}

// --- AI runs ----------------------------------------------------------------

func (s *Store) InsertAIOutput(ctx context.Context, item *models.AIOutput) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetLatestAIOutput(ctx context.Context, issuerCIK, ownerKey, accession string) (*models.AIOutput, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.AIOutput
	err := s.db.WithContext(ctx).
		Model(&models.AIOutput{}).
		Where("issuer_cik = ? AND owner_key = ? AND accession_number = ?", issuerCIK, ownerKey, accession).
		Order("generated_at desc, id desc").
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Clusters ---------------------------------------------------------------

func (s *Store) ReplaceClustersForTicker(ctx context.Context, ticker string, clusters []models.Cluster, members []models.ClusterMember) error {
	if s == nil || s.db == nil {
		return nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("cluster_id IN (?)", tx.Model(&models.Cluster{}).Select("cluster_id").Where("ticker = ?", ticker)).
			Delete(&models.ClusterMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("ticker = ?", ticker).Delete(&models.Cluster{}).Error; err != nil {
			return err
		}
		if err := createInBatches(tx, clusters, 200); err != nil {
			return err
		}
		return createInBatches(tx, members, 200)
	})
}

func (s *Store) ListClustersByTicker(ctx context.Context, ticker string) ([]models.Cluster, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	var items []models.Cluster
	if err := s.db.WithContext(ctx).
		Model(&models.Cluster{}).
		Where("ticker = ?", ticker).
		Order("start_date asc, side asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetClusterByID(ctx context.Context, clusterID string) (*models.Cluster, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Cluster
	err := s.db.WithContext(ctx).Model(&models.Cluster{}).Where("cluster_id = ?", clusterID).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListClusterMembers(ctx context.Context, clusterID string) ([]models.ClusterMember, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ClusterMember
	if err := s.db.WithContext(ctx).
		Model(&models.ClusterMember{}).
		Where("cluster_id = ?", clusterID).
		Order("trade_date asc, accession_number asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Price series -----------------------------------------------------------

func (s *Store) UpsertIssuerPrices(ctx context.Context, items []models.IssuerPrice) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "issuer_cik"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"adj_close",
			"fetched_at",
		}),
	}).CreateInBatches(items, 500).Error
}

func (s *Store) ListIssuerPrices(ctx context.Context, issuerCIK string) ([]models.IssuerPrice, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.IssuerPrice
	if err := s.db.WithContext(ctx).
		Model(&models.IssuerPrice{}).
		Where("issuer_cik = ?", issuerCIK).
		Order("date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertBenchmarkPrices(ctx context.Context, items []models.BenchmarkPrice) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"adj_close",
			"fetched_at",
		}),
	}).CreateInBatches(items, 500).Error
}

func (s *Store) ListBenchmarkPrices(ctx context.Context, symbol string) ([]models.BenchmarkPrice, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.BenchmarkPrice
	if err := s.db.WithContext(ctx).
		Model(&models.BenchmarkPrice{}).
		Where("symbol = ?", symbol).
		Order("date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountBenchmarkPrices(ctx context.Context, symbol string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := s.db.WithContext(ctx).
		Model(&models.BenchmarkPrice{}).
		Where("symbol = ?", symbol).
		Count(&total).Error
	return total, err
}

func (s *Store) UpsertMarketCap(ctx context.Context, item *models.MarketCapCache) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"market_cap_usd",
			"bucket",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetMarketCap(ctx context.Context, ticker string) (*models.MarketCapCache, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, nil
	}
	var item models.MarketCapCache
	err := s.db.WithContext(ctx).Model(&models.MarketCapCache{}).Where("ticker = ?", ticker).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// --- Backfill queue ---------------------------------------------------------

func (s *Store) InsertBackfillItems(ctx context.Context, items []models.BackfillItem) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "issuer_cik"}, {Name: "accession_number"}},
		DoNothing: true,
	}).CreateInBatches(items, 200).Error
}

func (s *Store) ListPendingBackfillItems(ctx context.Context, issuerCIK, yearPrefix string, limit int) ([]models.BackfillItem, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 50)
	query := s.db.WithContext(ctx).
		Model(&models.BackfillItem{}).
		Where("issuer_cik = ?", issuerCIK).
		Where("status = ?", models.BackfillPending)
	if yearPrefix != "" {
		query = query.Where("filing_date LIKE ?", yearPrefix+"-%")
	}
	var items []models.BackfillItem
	if err := query.
		Order("filing_date asc, accession_number asc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) MarkBackfillItem(ctx context.Context, issuerCIK, accession, status string, lastError *string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.BackfillItem{}).
		Where("issuer_cik = ? AND accession_number = ?", issuerCIK, accession).
		Updates(map[string]any{
			"status":     status,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).
		Error
}

// --- App state --------------------------------------------------------------

func (s *Store) GetAppState(ctx context.Context, key string) (*models.AppState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.AppState
	err := s.db.WithContext(ctx).Model(&models.AppState{}).Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SetAppState(ctx context.Context, key, value string) error {
	if s == nil || s.db == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"updated_at",
		}),
	}).Create(&models.AppState{Key: key, Value: value, UpdatedAt: time.Now().UTC()}).Error
}

// --- Monitoring aggregates --------------------------------------------------

func (s *Store) JobStatusCounts(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []struct {
		Status string
		Count  int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func (s *Store) OldestPendingJobAge(ctx context.Context) (*float64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var row struct {
		AgeSeconds *float64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("EXTRACT(EPOCH FROM (NOW() - MIN(created_at))) AS age_seconds").
		Where("status = ?", models.JobStatusPending).
		Where("run_after IS NULL OR run_after <= NOW()").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return row.AgeSeconds, nil
}

func (s *Store) PendingJobsByType(ctx context.Context) ([]repository.TypeCountRow, error) {
	return s.jobCountsByType(ctx, models.JobStatusPending)
}

func (s *Store) ErrorJobsByType(ctx context.Context) ([]repository.TypeCountRow, error) {
	return s.jobCountsByType(ctx, models.JobStatusError)
}

func (s *Store) jobCountsByType(ctx context.Context, status string) ([]repository.TypeCountRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.TypeCountRow
	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select("job_type, COUNT(*) AS count").
		Where("status = ?", status).
		Group("job_type").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) JobThroughputByHour(ctx context.Context, since time.Time) ([]repository.ThroughputRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.ThroughputRow
	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select(`
			date_trunc('hour', updated_at) AS hour,
			COUNT(*) FILTER (WHERE status = 'success') AS succeeded,
			COUNT(*) FILTER (WHERE status = 'error') AS errored
		`).
		Where("updated_at >= ?", since).
		Where("status IN ?", []string{models.JobStatusSuccess, models.JobStatusError}).
		Group("1").
		Order("1 ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) JobLatencyByType(ctx context.Context, since time.Time) ([]repository.LatencyRow, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.LatencyRow
	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Select(`
			job_type,
			COUNT(*) AS n,
			AVG(EXTRACT(EPOCH FROM (updated_at - created_at))) AS avg_seconds,
			percentile_cont(0.5) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM (updated_at - created_at))) AS p50_seconds,
			percentile_cont(0.95) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM (updated_at - created_at))) AS p95_seconds
		`).
		Where("status = ?", models.JobStatusSuccess).
		Where("updated_at >= ?", since).
		Group("job_type").
		Order("n DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) ListRecentJobErrors(ctx context.Context, limit int) ([]models.Job, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 50)
	var items []models.Job
	if err := s.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ?", models.JobStatusError).
		Order("updated_at desc").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) PipelineTableCounts(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	tables := []struct {
		name  string
		model any
	}{
		{"jobs", &models.Job{}},
		{"issuer_master", &models.Issuer{}},
		{"filings", &models.Filing{}},
		{"form4_rows_raw", &models.Form4Row{}},
		{"insider_events", &models.InsiderEvent{}},
		{"event_outcomes", &models.EventOutcome{}},
		{"insider_issuer_stats", &models.InsiderStat{}},
		{"ai_outputs", &models.AIOutput{}},
		{"insider_clusters", &models.Cluster{}},
		{"issuer_prices", &models.IssuerPrice{}},
		{"benchmark_prices", &models.BenchmarkPrice{}},
		{"backfill_queue", &models.BackfillItem{}},
	}
	out := make(map[string]int64, len(tables))
	for _, table := range tables {
		var total int64
		if err := s.db.WithContext(ctx).Model(table.model).Count(&total).Error; err != nil {
			return nil, err
		}
		out[table.name] = total
	}
	return out, nil
}

// --- Helpers ----------------------------------------------------------------

// sortableJobColumns is the allowlist for user-supplied order_by values;
// anything else falls back, so no raw input reaches the ORDER BY clause.
var sortableJobColumns = map[string]bool{
	"id":         true,
	"job_type":   true,
	"status":     true,
	"priority":   true,
	"attempts":   true,
	"run_after":  true,
	"created_at": true,
	"updated_at": true,
}

func orderColumn(orderBy, fallback string) string {
	column := strings.TrimSpace(orderBy)
	if !sortableJobColumns[column] {
		return fallback
	}
	return column
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(orderColumn(orderBy, fallback) + " " + direction)
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
