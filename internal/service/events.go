package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"insiderlens/internal/ai"
	"insiderlens/internal/compute"
	"insiderlens/internal/config"
	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// EventQueryService serves the read side: paged event feeds with per-filing
// grouping, single-event detail and the ticker directory. Grouping is purely
// presentational; storage keeps one row per reporting owner.
type EventQueryService struct {
	Repo      repository.Repository
	TradePlan config.TradePlanConfig
	Logger    *zap.Logger
}

// FilingGroup is one filing in a feed page. Joint filings collapse into a
// single group; Event is the representative row shown in lists.
type FilingGroup struct {
	Event      models.InsiderEvent `json:"event"`
	OwnerCount int                 `json:"owner_count"`
	OwnerKeys  []string            `json:"owner_keys"`
	OwnerNames []string            `json:"owner_names"`
}

type EventFeedPage struct {
	Groups []FilingGroup `json:"groups"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// EventDetail is everything the single-event page needs in one round trip.
type EventDetail struct {
	Event    models.InsiderEvent    `json:"event"`
	Siblings []FilingOwner          `json:"siblings,omitempty"`
	Rows     []models.Form4Row      `json:"rows"`
	Outcomes []models.EventOutcome  `json:"outcomes"`
	Stats    []models.InsiderStat   `json:"stats"`
	AI       *models.AIOutput       `json:"ai,omitempty"`
	Plan     *compute.TradePlan     `json:"trade_plan,omitempty"`
}

// FilingOwner is another reporting owner on the same accession.
type FilingOwner struct {
	OwnerKey  string `json:"owner_key"`
	OwnerName string `json:"owner_name"`
}

// Feed returns one page of events grouped by filing. Rows are grouped within
// the fetched page, so a joint filing split across a page boundary can appear
// in both pages; totals count ungrouped rows.
func (s *EventQueryService) Feed(ctx context.Context, params repository.ListEventsParams) (*EventFeedPage, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("event query service not configured")
	}
	events, err := s.Repo.ListInsiderEvents(ctx, params)
	if err != nil {
		return nil, err
	}
	total, err := s.Repo.CountInsiderEvents(ctx, params)
	if err != nil {
		return nil, err
	}
	return &EventFeedPage{
		Groups: groupByFiling(events),
		Total:  total,
		Limit:  params.Limit,
		Offset: params.Offset,
	}, nil
}

// groupByFiling collapses rows sharing (issuer_cik, accession_number) into
// one group. The representative is the owner with the highest best AI rating;
// with no ratings, or on a tie, the first-seen row keeps the slot so pages
// are stable across reads.
func groupByFiling(events []models.InsiderEvent) []FilingGroup {
	type filingKey struct {
		issuerCIK string
		accession string
	}
	index := make(map[filingKey]int)
	groups := make([]FilingGroup, 0, len(events))
	for _, event := range events {
		key := filingKey{issuerCIK: event.IssuerCIK, accession: event.AccessionNumber}
		at, seen := index[key]
		if !seen {
			index[key] = len(groups)
			groups = append(groups, FilingGroup{
				Event:      event,
				OwnerCount: 1,
				OwnerKeys:  []string{event.OwnerKey},
				OwnerNames: []string{event.OwnerName},
			})
			continue
		}
		group := &groups[at]
		group.OwnerCount++
		group.OwnerKeys = append(group.OwnerKeys, event.OwnerKey)
		group.OwnerNames = append(group.OwnerNames, event.OwnerName)
		if betterRepresentative(&event, &group.Event) {
			group.Event = event
		}
	}
	return groups
}

func betterRepresentative(candidate, current *models.InsiderEvent) bool {
	candidateBest := candidate.BestRating()
	currentBest := current.BestRating()
	if candidateBest == nil {
		return false
	}
	if currentBest == nil {
		return true
	}
	return *candidateBest > *currentBest
}

// Detail loads one event with its raw rows, outcomes, owner stats, latest AI
// output and an on-read trade plan.
func (s *EventQueryService) Detail(ctx context.Context, issuerCIK, ownerKey, accession string) (*EventDetail, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("event query service not configured")
	}
	event, err := s.Repo.GetInsiderEvent(ctx, issuerCIK, ownerKey, accession)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}
	detail := &EventDetail{Event: *event}

	siblings, err := s.Repo.ListEventsByAccession(ctx, issuerCIK, accession)
	if err != nil {
		return nil, err
	}
	for _, sibling := range siblings {
		if sibling.OwnerKey == ownerKey {
			continue
		}
		detail.Siblings = append(detail.Siblings, FilingOwner{
			OwnerKey:  sibling.OwnerKey,
			OwnerName: sibling.OwnerName,
		})
	}

	allRows, err := s.Repo.ListForm4RowsByAccession(ctx, accession)
	if err != nil {
		return nil, err
	}
	for _, row := range allRows {
		if row.OwnerKey == ownerKey {
			detail.Rows = append(detail.Rows, row)
		}
	}

	if detail.Outcomes, err = s.Repo.ListOutcomesByEvent(ctx, issuerCIK, ownerKey, accession); err != nil {
		return nil, err
	}
	if detail.Stats, err = s.Repo.ListStatsByEvent(ctx, issuerCIK, ownerKey, accession); err != nil {
		return nil, err
	}
	if detail.AI, err = s.Repo.GetLatestAIOutput(ctx, issuerCIK, ownerKey, accession); err != nil {
		return nil, err
	}

	plan, err := s.planForEvent(ctx, event, detail.AI)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("trade plan computation failed",
				zap.String("accession", accession),
				zap.Error(err))
		}
	} else {
		detail.Plan = plan
	}
	return detail, nil
}

// planForEvent derives the trade plan on read. Plans are cheap to recompute
// and depend on the price series, so nothing is persisted.
func (s *EventQueryService) planForEvent(ctx context.Context, event *models.InsiderEvent, latest *models.AIOutput) (*compute.TradePlan, error) {
	var rating, confidence *float64
	if latest != nil {
		rating, confidence = ai.BuySignal(latest.Output)
	}
	prices, err := s.Repo.ListIssuerPrices(ctx, event.IssuerCIK)
	if err != nil {
		return nil, err
	}
	return compute.ComputeTradePlan(s.TradePlan, event, rating, confidence, prices), nil
}

// Tickers returns the issuer directory page.
func (s *EventQueryService) Tickers(ctx context.Context, params repository.TickerDirectoryParams) ([]repository.TickerDirectoryRow, error) {
	if s == nil || s.Repo == nil {
		return nil, fmt.Errorf("event query service not configured")
	}
	return s.Repo.ListTickerDirectory(ctx, params)
}

// TickerFeed is Feed scoped to one ticker, resolving the ticker to its
// issuer first so delisted symbols 404 instead of returning an empty page.
func (s *EventQueryService) TickerFeed(ctx context.Context, ticker string, params repository.ListEventsParams) (*EventFeedPage, *models.Issuer, error) {
	if s == nil || s.Repo == nil {
		return nil, nil, fmt.Errorf("event query service not configured")
	}
	issuer, err := s.Repo.GetIssuerByTicker(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	if issuer == nil {
		return nil, nil, nil
	}
	params.IssuerCIK = &issuer.IssuerCIK
	params.Ticker = nil
	page, err := s.Feed(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	return page, issuer, nil
}
