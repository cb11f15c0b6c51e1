package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"insiderlens/internal/models"
	"insiderlens/internal/repository"
)

// Aggregator rebuilds insider events from the raw Form 4 rows of one
// accession. Aggregation is idempotent: rebuilding an event clears every
// derived column group so the downstream stages recompute.
type Aggregator struct {
	repo         repository.Repository
	parseVersion int
	log          *zap.Logger
}

func NewAggregator(repo repository.Repository, parseVersion int, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{repo: repo, parseVersion: parseVersion, log: log}
}

// AggregateAccession upserts one event per reporting owner of the accession
// and returns the keys of the events it touched.
func (a *Aggregator) AggregateAccession(ctx context.Context, accession string) ([]repository.EventKey, error) {
	filing, err := a.repo.GetFiling(ctx, accession)
	if err != nil {
		return nil, err
	}
	if filing == nil {
		return nil, fmt.Errorf("no filing row for accession %s", accession)
	}

	issuer, err := a.repo.GetIssuerByCIK(ctx, filing.IssuerCIK)
	if err != nil {
		return nil, err
	}
	var ticker string
	var issuerName string
	if issuer != nil {
		issuerName = issuer.IssuerName
		if issuer.CurrentTicker != nil {
			ticker = *issuer.CurrentTicker
		}
	}

	var marketCap *models.MarketCapCache
	if ticker != "" {
		marketCap, err = a.repo.GetMarketCap(ctx, ticker)
		if err != nil {
			return nil, err
		}
	}

	rows, err := a.repo.ListForm4RowsByAccession(ctx, accession)
	if err != nil {
		return nil, err
	}
	byOwner := make(map[string][]models.Form4Row)
	ownerOrder := make([]string, 0)
	for _, row := range rows {
		if _, seen := byOwner[row.OwnerKey]; !seen {
			ownerOrder = append(ownerOrder, row.OwnerKey)
		}
		byOwner[row.OwnerKey] = append(byOwner[row.OwnerKey], row)
	}

	now := time.Now().UTC()
	keys := make([]repository.EventKey, 0, len(ownerOrder))
	for _, ownerKey := range ownerOrder {
		ownerRows := byOwner[ownerKey]
		event := a.buildEvent(filing, ownerKey, ownerRows, ticker, issuerName, now)

		if marketCap != nil {
			event.MarketCapUSD = marketCap.MarketCapUSD
			event.MarketCapBucket = marketCap.Bucket
			updatedAt := marketCap.UpdatedAt
			event.MarketCapUpdatedAt = &updatedAt
		} else if existing, err := a.repo.GetInsiderEvent(ctx, filing.IssuerCIK, ownerKey, accession); err != nil {
			return nil, err
		} else if existing != nil {
			// Keep a previously snapshotted market cap instead of wiping it.
			event.MarketCapUSD = existing.MarketCapUSD
			event.MarketCapBucket = existing.MarketCapBucket
			event.MarketCapUpdatedAt = existing.MarketCapUpdatedAt
		}

		if err := a.repo.UpsertInsiderEvent(ctx, event); err != nil {
			return nil, err
		}
		keys = append(keys, repository.EventKey{
			IssuerCIK:       filing.IssuerCIK,
			OwnerKey:        ownerKey,
			AccessionNumber: accession,
		})
		a.log.Debug("aggregated insider event",
			zap.String("issuer_cik", filing.IssuerCIK),
			zap.String("owner_key", ownerKey),
			zap.String("accession", accession),
			zap.Bool("has_buy", event.HasBuy),
			zap.Bool("has_sell", event.HasSell))
	}

	// Older events may carry a stale ticker after a symbol change; keep the
	// whole issuer on its current one for clustering and the UI.
	if ticker != "" {
		if err := a.repo.UpdateEventTickerForIssuer(ctx, filing.IssuerCIK, ticker); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (a *Aggregator) buildEvent(filing *models.Filing, ownerKey string, rows []models.Form4Row, ticker, issuerName string, now time.Time) *models.InsiderEvent {
	event := &models.InsiderEvent{
		IssuerCIK:       filing.IssuerCIK,
		OwnerKey:        ownerKey,
		AccessionNumber: filing.AccessionNumber,
		IssuerName:      issuerName,
		FilingDate:      filing.FilingDate,
		ParseVersion:    a.parseVersion,
		EventComputedAt: now,
	}
	if ticker != "" {
		t := ticker
		event.Ticker = &t
	}

	if len(rows) > 0 {
		first := rows[0]
		event.OwnerCIK = first.OwnerCIK
		event.OwnerName = first.OwnerName
		var relationship models.ReportingOwner
		if len(first.RawPayload) > 0 && json.Unmarshal(first.RawPayload, &relationship) == nil {
			if relationship.OfficerTitle != "" {
				title := relationship.OfficerTitle
				event.OwnerTitle = &title
			}
			event.IsOfficer = relationship.IsOfficer
			event.IsDirector = relationship.IsDirector
			event.IsTenPercentOwner = relationship.IsTenPercentOwner
		}
	}

	for _, row := range rows {
		if row.IsDerivative {
			event.DerivativeRowCount++
		} else if row.TransactionCode != "P" && row.TransactionCode != "S" {
			event.NonOpenMarketRowCount++
		}
	}

	// The event trade date is the earliest transaction date anywhere in the
	// filing, not side-specific.
	for _, row := range rows {
		if row.TransactionDate == nil {
			continue
		}
		if event.EventTradeDate == nil || *row.TransactionDate < *event.EventTradeDate {
			date := *row.TransactionDate
			event.EventTradeDate = &date
		}
	}

	buy := RollupSide(rows, "P")
	event.HasBuy = buy.Has
	event.BuyTradeDate = buy.TradeDate
	event.BuyLastTxDate = buy.LastTxDate
	event.BuyShares = buy.Shares
	event.BuyDollars = buy.Dollars
	event.BuyVWAP = buy.VWAP
	event.BuyPricedShares = buy.PricedShares
	event.BuyUnpricedShares = buy.UnpricedShares
	event.BuyVWAPIsPartial = buy.VWAPIsPartial
	event.BuySharesOwnedFollowing = buy.SharesOwnedFollowing
	event.BuyPctChangeShares = buy.PctChangeShares
	event.BuyMissingReason = buy.MissingReason
	event.BuyTxCount = buy.TxCount

	sell := RollupSide(rows, "S")
	event.HasSell = sell.Has
	event.SellTradeDate = sell.TradeDate
	event.SellLastTxDate = sell.LastTxDate
	event.SellShares = sell.Shares
	event.SellDollars = sell.Dollars
	event.SellVWAP = sell.VWAP
	event.SellPricedShares = sell.PricedShares
	event.SellUnpricedShares = sell.UnpricedShares
	event.SellVWAPIsPartial = sell.VWAPIsPartial
	event.SellSharesOwnedFollowing = sell.SharesOwnedFollowing
	event.SellPctChangeShares = sell.PctChangeShares
	event.SellMissingReason = sell.MissingReason
	event.SellTxCount = sell.TxCount

	return event
}

// SideRollup is the aggregate of one transaction side of an event.
type SideRollup struct {
	Has                  bool
	TradeDate            *string
	LastTxDate           *string
	Shares               *decimal.Decimal
	Dollars              *decimal.Decimal
	VWAP                 *float64
	PricedShares         *decimal.Decimal
	UnpricedShares       *decimal.Decimal
	VWAPIsPartial        bool
	SharesOwnedFollowing *decimal.Decimal
	PctChangeShares      *float64
	MissingReason        *string
	TxCount              int
}

// RollupSide aggregates the open-market non-derivative legs with the given
// transaction code ("P" for buys, "S" for sells).
//
// PctChangeShares is a percent value (190.1 means +190.1%), not a ratio.
func RollupSide(rows []models.Form4Row, code string) SideRollup {
	var sideRows []models.Form4Row
	for _, row := range rows {
		if !row.IsDerivative && row.TransactionCode == code {
			sideRows = append(sideRows, row)
		}
	}
	if len(sideRows) == 0 {
		return SideRollup{}
	}

	roll := SideRollup{Has: true, TxCount: len(sideRows)}
	for _, row := range sideRows {
		if row.TransactionDate == nil {
			continue
		}
		if roll.TradeDate == nil || *row.TransactionDate < *roll.TradeDate {
			date := *row.TransactionDate
			roll.TradeDate = &date
		}
		if roll.LastTxDate == nil || *row.TransactionDate > *roll.LastTxDate {
			date := *row.TransactionDate
			roll.LastTxDate = &date
		}
	}

	sharesTotal := decimal.Zero
	haveShares := false
	pricedShares := decimal.Zero
	dollars := decimal.Zero
	for _, row := range sideRows {
		if row.Shares == nil {
			continue
		}
		haveShares = true
		sharesTotal = sharesTotal.Add(*row.Shares)
		if row.Price != nil && row.Price.Sign() > 0 {
			pricedShares = pricedShares.Add(*row.Shares)
			dollars = dollars.Add(row.Shares.Mul(*row.Price))
		}
	}
	if haveShares {
		total := sharesTotal
		roll.Shares = &total
		unpriced := sharesTotal.Sub(pricedShares)
		roll.UnpricedShares = &unpriced
	}
	priced := pricedShares
	roll.PricedShares = &priced
	if pricedShares.Sign() > 0 {
		total := dollars
		roll.Dollars = &total
		vwap := dollars.Div(pricedShares).InexactFloat64()
		roll.VWAP = &vwap
	}
	if haveShares && sharesTotal.Sign() > 0 {
		roll.VWAPIsPartial = pricedShares.LessThan(sharesTotal)
	}

	// Shares owned following comes from the last leg by (date, row order),
	// not from the max across legs.
	var lastSOF *models.Form4Row
	for i := range sideRows {
		row := &sideRows[i]
		if row.SharesOwnedFollowing == nil {
			continue
		}
		if lastSOF == nil || sofAfter(row, lastSOF) {
			lastSOF = row
		}
	}
	if lastSOF != nil {
		sof := *lastSOF.SharesOwnedFollowing
		roll.SharesOwnedFollowing = &sof
	}

	switch {
	case !haveShares || sharesTotal.Sign() <= 0:
		roll.MissingReason = reasonPtr("missing_shares_total")
	case roll.SharesOwnedFollowing == nil:
		roll.MissingReason = reasonPtr("missing_shares_owned_following")
	default:
		// Buy:  after = before + bought. Sell: after = before - sold.
		var before decimal.Decimal
		if code == "P" {
			before = roll.SharesOwnedFollowing.Sub(sharesTotal)
		} else {
			before = roll.SharesOwnedFollowing.Add(sharesTotal)
		}
		if before.Sign() <= 0 {
			roll.MissingReason = reasonPtr("nonpositive_shares_before")
		} else {
			pct := sharesTotal.Div(before).InexactFloat64() * 100.0
			roll.PctChangeShares = &pct
		}
	}
	return roll
}

func sofAfter(a, b *models.Form4Row) bool {
	dateA, dateB := "", ""
	if a.TransactionDate != nil {
		dateA = *a.TransactionDate
	}
	if b.TransactionDate != nil {
		dateB = *b.TransactionDate
	}
	if dateA != dateB {
		return dateA > dateB
	}
	return a.RowSeq > b.RowSeq
}

func reasonPtr(reason string) *string {
	return &reason
}
