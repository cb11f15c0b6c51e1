package compute

import (
	"context"
	"time"

	"go.uber.org/zap"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// StatsComputer rebuilds an insider's per-issuer track record from their
// outcome rows. Averages and win rates are over benchmark-excess returns, so
// they measure outperformance, not raw direction. Stats are stored per event:
// each event's stat only sees outcomes from strictly earlier trades, never
// the event's own result.
type StatsComputer struct {
	repo    repository.Repository
	version int
	log     *zap.Logger
}

func NewStatsComputer(repo repository.Repository, version int, log *zap.Logger) *StatsComputer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsComputer{repo: repo, version: version, log: log}
}

// ComputeForOwnerIssuer rebuilds both sides for every event of the owner at
// the issuer and stamps the owner's events as stats-computed. Wholesale
// recompute keeps late-arriving outcomes from leaving stale stats behind.
func (s *StatsComputer) ComputeForOwnerIssuer(ctx context.Context, issuerCIK, ownerKey string) error {
	now := time.Now().UTC()
	events, err := s.repo.ListEventsByOwnerIssuer(ctx, issuerCIK, ownerKey)
	if err != nil {
		return err
	}
	for _, side := range []string{models.SideBuy, models.SideSell} {
		outcomes, err := s.repo.ListOutcomesByOwnerIssuerSide(ctx, issuerCIK, ownerKey, side)
		if err != nil {
			return err
		}
		for _, event := range events {
			asOf := statAsOfDate(&event)
			prior := OutcomesBefore(outcomes, event.AccessionNumber, asOf)
			stat := BuildStat(issuerCIK, ownerKey, side, prior)
			stat.AccessionNumber = event.AccessionNumber
			stat.AsOfDate = asOf
			stat.StatsVersion = s.version
			stat.ComputedAt = now
			if err := s.repo.UpsertInsiderStat(ctx, stat); err != nil {
				return err
			}
			s.log.Debug("insider stats computed",
				zap.String("issuer_cik", issuerCIK),
				zap.String("owner_key", ownerKey),
				zap.String("accession", event.AccessionNumber),
				zap.String("side", side),
				zap.String("as_of", asOf),
				zap.Int("n_60", stat.N60),
				zap.Int("n_180", stat.N180))
		}
	}
	return s.repo.MarkStatsComputedForOwnerIssuer(ctx, issuerCIK, ownerKey, now)
}

func statAsOfDate(event *models.InsiderEvent) string {
	if event.EventTradeDate != nil && *event.EventTradeDate != "" {
		return *event.EventTradeDate
	}
	return event.FilingDate
}

// OutcomesBefore filters to outcomes from strictly earlier trades: the
// event's own accession and anything traded on or after asOfDate are
// dropped, as is any outcome without a trade date, since it cannot be
// proven to predate the event.
func OutcomesBefore(outcomes []models.EventOutcome, excludeAccession, asOfDate string) []models.EventOutcome {
	var prior []models.EventOutcome
	for _, outcome := range outcomes {
		if outcome.AccessionNumber == excludeAccession {
			continue
		}
		if outcome.TradeDate == nil || *outcome.TradeDate == "" || *outcome.TradeDate >= asOfDate {
			continue
		}
		prior = append(prior, outcome)
	}
	return prior
}

// BuildStat aggregates excess returns per horizon. Outcomes without an
// excess return at a horizon are excluded from that horizon entirely: no
// imputation, a missing value never counts as a loss.
func BuildStat(issuerCIK, ownerKey, side string, outcomes []models.EventOutcome) *models.InsiderStat {
	stat := &models.InsiderStat{
		IssuerCIK: issuerCIK,
		OwnerKey:  ownerKey,
		Side:      side,
	}
	var exc60, exc180 []float64
	for _, outcome := range outcomes {
		if outcome.ExcessReturn60 != nil {
			exc60 = append(exc60, *outcome.ExcessReturn60)
		}
		if outcome.ExcessReturn180 != nil {
			exc180 = append(exc180, *outcome.ExcessReturn180)
		}
	}
	stat.N60 = len(exc60)
	if len(exc60) > 0 {
		win, avg := winRateAndMean(exc60)
		stat.WinRate60 = &win
		stat.AvgExc60 = &avg
	}
	stat.N180 = len(exc180)
	if len(exc180) > 0 {
		win, avg := winRateAndMean(exc180)
		stat.WinRate180 = &win
		stat.AvgExc180 = &avg
	}
	return stat
}

func winRateAndMean(values []float64) (winRate, mean float64) {
	wins := 0
	sum := 0.0
	for _, value := range values {
		if value > 0 {
			wins++
		}
		sum += value
	}
	return float64(wins) / float64(len(values)), sum / float64(len(values))
}
