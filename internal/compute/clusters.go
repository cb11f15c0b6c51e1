package compute

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// clusterWindowDays is the calendar span a cluster may cover.
const clusterWindowDays = 14

// ClusterComputer sweeps a ticker's sided events into clusters: windows of
// at most 14 calendar days containing same-side trades from at least two
// distinct filings. The sweep replaces the ticker's clusters wholesale, so
// reruns are deterministic.
type ClusterComputer struct {
	repo    repository.Repository
	version int
	log     *zap.Logger
}

func NewClusterComputer(repo repository.Repository, version int, log *zap.Logger) *ClusterComputer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClusterComputer{repo: repo, version: version, log: log}
}

// clusterCandidate is one sided event feeding the sweep.
type clusterCandidate struct {
	IssuerCIK       string
	OwnerKey        string
	AccessionNumber string
	TradeDate       string
	Dollars         decimal.Decimal
	IsExec          bool
	PctChange       *float64
}

// ComputeForTicker rebuilds both sides for a ticker and stamps the ticker's
// events as cluster-computed.
func (c *ClusterComputer) ComputeForTicker(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return fmt.Errorf("ticker blank for cluster computation")
	}
	events, err := c.repo.ListSidedEventsByTicker(ctx, ticker)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var clusters []models.Cluster
	var members []models.ClusterMember
	flagUpdates := make(map[repository.EventKey]map[string]any)

	for _, side := range []string{models.SideBuy, models.SideSell} {
		sideClusters, sideMembers := BuildClusters(ticker, side, candidatesForSide(events, side))
		for i := range sideClusters {
			sideClusters[i].ClusterVersion = c.version
			sideClusters[i].ComputedAt = now
		}
		clusters = append(clusters, sideClusters...)
		members = append(members, sideMembers...)
		for _, member := range sideMembers {
			key := repository.EventKey{
				IssuerCIK:       member.IssuerCIK,
				OwnerKey:        member.OwnerKey,
				AccessionNumber: member.AccessionNumber,
			}
			updates, ok := flagUpdates[key]
			if !ok {
				updates = map[string]any{}
				flagUpdates[key] = updates
			}
			if side == models.SideBuy {
				updates["buy_cluster_flag"] = true
				updates["buy_cluster_id"] = member.ClusterID
			} else {
				updates["sell_cluster_flag"] = true
				updates["sell_cluster_id"] = member.ClusterID
			}
		}
	}

	if err := c.repo.ClearClusterMarks(ctx, ticker); err != nil {
		return err
	}
	if err := c.repo.ReplaceClustersForTicker(ctx, ticker, clusters, members); err != nil {
		return err
	}
	for key, updates := range flagUpdates {
		if err := c.repo.UpdateInsiderEvent(ctx, key.IssuerCIK, key.OwnerKey, key.AccessionNumber, updates); err != nil {
			return err
		}
	}
	for _, event := range events {
		if err := c.repo.UpdateInsiderEvent(ctx, event.IssuerCIK, event.OwnerKey, event.AccessionNumber, map[string]any{
			"cluster_computed_at": now,
		}); err != nil {
			return err
		}
	}
	c.log.Debug("clusters recomputed",
		zap.String("ticker", ticker),
		zap.Int("clusters", len(clusters)),
		zap.Int("members", len(members)))
	return nil
}

func candidatesForSide(events []models.InsiderEvent, side string) []clusterCandidate {
	var out []clusterCandidate
	for _, event := range events {
		candidate := clusterCandidate{
			IssuerCIK:       event.IssuerCIK,
			OwnerKey:        event.OwnerKey,
			AccessionNumber: event.AccessionNumber,
			IsExec:          event.IsOfficer || event.IsDirector,
		}
		switch side {
		case models.SideBuy:
			if !event.HasBuy || event.BuyTradeDate == nil {
				continue
			}
			candidate.TradeDate = *event.BuyTradeDate
			if event.BuyDollars != nil {
				candidate.Dollars = *event.BuyDollars
			}
			candidate.PctChange = event.BuyPctChangeShares
		case models.SideSell:
			if !event.HasSell || event.SellTradeDate == nil {
				continue
			}
			candidate.TradeDate = *event.SellTradeDate
			if event.SellDollars != nil {
				candidate.Dollars = *event.SellDollars
			}
			candidate.PctChange = event.SellPctChangeShares
		}
		out = append(out, candidate)
	}
	return out
}

// BuildClusters runs the deterministic sweep for one side.
//
// Candidates sort by trade date; each unassigned candidate anchors a window
// of [anchor, anchor+14 days]. When the window holds at least two distinct
// filings, all unassigned candidates in it form one cluster. Multiple owners
// on one accession count as a single filing, and dollars are deduped per
// filing by taking the max, so a joint filing cannot manufacture a cluster
// or inflate its size.
func BuildClusters(ticker, side string, candidates []clusterCandidate) ([]models.Cluster, []models.ClusterMember) {
	if len(candidates) < 2 {
		return nil, nil
	}
	sorted := append([]clusterCandidate{}, candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TradeDate < sorted[j].TradeDate
	})

	assigned := make([]bool, len(sorted))
	var clusters []models.Cluster
	var members []models.ClusterMember

	for i := range sorted {
		if assigned[i] {
			continue
		}
		anchor, err := time.Parse("2006-01-02", sorted[i].TradeDate)
		if err != nil {
			continue
		}
		windowEnd := anchor.AddDate(0, 0, clusterWindowDays)

		var idxs []int
		for j := i; j < len(sorted); j++ {
			date, err := time.Parse("2006-01-02", sorted[j].TradeDate)
			if err != nil {
				// An unparseable date only disqualifies its own row, not
				// the rest of the window.
				continue
			}
			if date.After(windowEnd) {
				break
			}
			if !assigned[j] {
				idxs = append(idxs, j)
			}
		}

		filings := make(map[string]decimal.Decimal)
		for _, k := range idxs {
			accession := sorted[k].AccessionNumber
			if best, ok := filings[accession]; !ok || sorted[k].Dollars.GreaterThan(best) {
				filings[accession] = sorted[k].Dollars
			}
		}
		if len(filings) < 2 {
			continue
		}

		windowStart := sorted[i].TradeDate
		windowStop := windowStart
		totalDollars := decimal.Zero
		execsInvolved := false
		var maxPct *float64
		owners := make(map[string]struct{})
		memberIDs := make([]string, 0, len(idxs))
		for _, k := range idxs {
			if sorted[k].TradeDate > windowStop {
				windowStop = sorted[k].TradeDate
			}
			if sorted[k].IsExec {
				execsInvolved = true
			}
			if sorted[k].PctChange != nil && (maxPct == nil || *sorted[k].PctChange > *maxPct) {
				pct := *sorted[k].PctChange
				maxPct = &pct
			}
			owners[sorted[k].OwnerKey] = struct{}{}
			memberIDs = append(memberIDs, sorted[k].IssuerCIK+"|"+sorted[k].OwnerKey+"|"+sorted[k].AccessionNumber)
		}
		for _, dollars := range filings {
			totalDollars = totalDollars.Add(dollars)
		}

		sort.Strings(memberIDs)
		digest := sha256.Sum256([]byte(strings.Join(memberIDs, ",")))
		clusterID := fmt.Sprintf("clu|%s|%s|%s|%s|%s",
			ticker, side, windowStart, windowStop, hex.EncodeToString(digest[:])[:12])

		total := totalDollars
		clusters = append(clusters, models.Cluster{
			ClusterID:     clusterID,
			Ticker:        ticker,
			IssuerCIK:     sorted[idxs[0]].IssuerCIK,
			Side:          side,
			StartDate:     windowStart,
			EndDate:       windowStop,
			FilingCount:   len(filings),
			OwnerCount:    len(owners),
			TotalDollars:  &total,
			ExecsInvolved: execsInvolved,
			MaxPctChange:  maxPct,
		})
		for _, k := range idxs {
			dollars := sorted[k].Dollars
			members = append(members, models.ClusterMember{
				ClusterID:       clusterID,
				IssuerCIK:       sorted[k].IssuerCIK,
				OwnerKey:        sorted[k].OwnerKey,
				AccessionNumber: sorted[k].AccessionNumber,
				Side:            side,
				TradeDate:       sorted[k].TradeDate,
				Dollars:         &dollars,
				PctChange:       sorted[k].PctChange,
			})
			assigned[k] = true
		}
	}
	return clusters, members
}
