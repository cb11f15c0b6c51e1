package compute

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"insiderlens/internal/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func datePtr(s string) *string {
	return &s
}

func floatPtr(v float64) *float64 {
	return &v
}

func nonDerivRow(seq int, code, date string, shares, price, sof *decimal.Decimal) models.Form4Row {
	row := models.Form4Row{
		RowSeq:               seq,
		TransactionCode:      code,
		Shares:               shares,
		Price:                price,
		SharesOwnedFollowing: sof,
	}
	if date != "" {
		row.TransactionDate = datePtr(date)
	}
	return row
}

func timeNowForTest() time.Time {
	return time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
}

func TestRollupSideBuyBasics(t *testing.T) {
	rows := []models.Form4Row{
		nonDerivRow(1, "P", "2024-03-05", dec("100"), dec("10"), dec("300")),
		nonDerivRow(2, "P", "2024-03-06", dec("200"), dec("11"), dec("500")),
	}
	roll := RollupSide(rows, "P")
	if !roll.Has || roll.TxCount != 2 {
		t.Fatalf("has=%v txCount=%d want has with 2 legs", roll.Has, roll.TxCount)
	}
	if *roll.TradeDate != "2024-03-05" || *roll.LastTxDate != "2024-03-06" {
		t.Fatalf("tradeDate=%s lastTxDate=%s", *roll.TradeDate, *roll.LastTxDate)
	}
	if !roll.Shares.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("shares=%s want=300", roll.Shares)
	}
	if !roll.Dollars.Equal(decimal.RequireFromString("3200")) {
		t.Fatalf("dollars=%s want=3200", roll.Dollars)
	}
	if math.Abs(*roll.VWAP-3200.0/300.0) > 1e-9 {
		t.Fatalf("vwap=%v want=%v", *roll.VWAP, 3200.0/300.0)
	}
	if roll.VWAPIsPartial {
		t.Fatalf("vwapIsPartial=true want=false")
	}
	if !roll.SharesOwnedFollowing.Equal(decimal.RequireFromString("500")) {
		t.Fatalf("sof=%s want=500", roll.SharesOwnedFollowing)
	}
	// Before = 500 - 300 = 200, so the buy grew the stake by 150%.
	if roll.PctChangeShares == nil || math.Abs(*roll.PctChangeShares-150.0) > 1e-9 {
		t.Fatalf("pctChange=%v want=150", roll.PctChangeShares)
	}
	if roll.MissingReason != nil {
		t.Fatalf("missingReason=%v want=nil", *roll.MissingReason)
	}
}

func TestRollupSideFiltersDerivativesAndCodes(t *testing.T) {
	derivative := nonDerivRow(1, "P", "2024-03-05", dec("100"), dec("10"), dec("300"))
	derivative.IsDerivative = true
	rows := []models.Form4Row{
		derivative,
		nonDerivRow(2, "S", "2024-03-05", dec("50"), dec("10"), dec("250")),
		nonDerivRow(3, "A", "2024-03-05", dec("500"), nil, dec("750")),
	}
	roll := RollupSide(rows, "P")
	if roll.Has {
		t.Fatalf("has=true want=false for derivative/grant-only rows")
	}
}

func TestRollupSidePartialVWAP(t *testing.T) {
	rows := []models.Form4Row{
		nonDerivRow(1, "P", "2024-03-05", dec("100"), dec("10"), dec("200")),
		nonDerivRow(2, "P", "2024-03-05", dec("50"), nil, dec("250")),
	}
	roll := RollupSide(rows, "P")
	if !roll.Shares.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("shares=%s want=150", roll.Shares)
	}
	if !roll.PricedShares.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("pricedShares=%s want=100", roll.PricedShares)
	}
	if !roll.UnpricedShares.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("unpricedShares=%s want=50", roll.UnpricedShares)
	}
	if !roll.VWAPIsPartial {
		t.Fatalf("vwapIsPartial=false want=true")
	}
	if math.Abs(*roll.VWAP-10.0) > 1e-9 {
		t.Fatalf("vwap=%v want=10", *roll.VWAP)
	}
}

func TestRollupSideMissingSharesOwnedFollowing(t *testing.T) {
	rows := []models.Form4Row{
		nonDerivRow(1, "P", "2024-03-05", dec("100"), dec("10"), nil),
	}
	roll := RollupSide(rows, "P")
	if roll.MissingReason == nil || *roll.MissingReason != "missing_shares_owned_following" {
		t.Fatalf("missingReason=%v want=missing_shares_owned_following", roll.MissingReason)
	}
	if roll.PctChangeShares != nil {
		t.Fatalf("pctChange=%v want=nil", *roll.PctChangeShares)
	}
}

func TestRollupSideMissingSharesTotal(t *testing.T) {
	rows := []models.Form4Row{
		nonDerivRow(1, "P", "2024-03-05", nil, dec("10"), dec("300")),
	}
	roll := RollupSide(rows, "P")
	if roll.MissingReason == nil || *roll.MissingReason != "missing_shares_total" {
		t.Fatalf("missingReason=%v want=missing_shares_total", roll.MissingReason)
	}
	if roll.Shares != nil {
		t.Fatalf("shares=%s want=nil", roll.Shares)
	}
}

func TestRollupSideNonpositiveSharesBefore(t *testing.T) {
	// Buy of 100 ending with 100 means zero shares before the trade.
	rows := []models.Form4Row{
		nonDerivRow(1, "P", "2024-03-05", dec("100"), dec("10"), dec("100")),
	}
	roll := RollupSide(rows, "P")
	if roll.MissingReason == nil || *roll.MissingReason != "nonpositive_shares_before" {
		t.Fatalf("missingReason=%v want=nonpositive_shares_before", roll.MissingReason)
	}
}

func TestRollupSideSellPctChange(t *testing.T) {
	// Sell of 100 ending with 400: before = 500, sold 20% of it.
	rows := []models.Form4Row{
		nonDerivRow(1, "S", "2024-03-05", dec("100"), dec("25"), dec("400")),
	}
	roll := RollupSide(rows, "S")
	if roll.PctChangeShares == nil || math.Abs(*roll.PctChangeShares-20.0) > 1e-9 {
		t.Fatalf("pctChange=%v want=20", roll.PctChangeShares)
	}
}

func TestRollupSideSOFFromLastLeg(t *testing.T) {
	// Same date: the higher RowSeq wins even when its balance is lower.
	rows := []models.Form4Row{
		nonDerivRow(1, "S", "2024-03-05", dec("100"), dec("25"), dec("900")),
		nonDerivRow(2, "S", "2024-03-05", dec("200"), dec("25"), dec("700")),
	}
	roll := RollupSide(rows, "S")
	if !roll.SharesOwnedFollowing.Equal(decimal.RequireFromString("700")) {
		t.Fatalf("sof=%s want=700", roll.SharesOwnedFollowing)
	}
}

func TestBuildEventCountsAndRelationship(t *testing.T) {
	agg := &Aggregator{parseVersion: 2, log: zap.NewNop()}
	filing := &models.Filing{
		AccessionNumber: "0001-24-000001",
		IssuerCIK:       "0000320193",
		FilingDate:      "2024-03-07",
		FormType:        "4",
	}
	grant := nonDerivRow(1, "A", "2024-03-01", dec("500"), nil, dec("1500"))
	grant.OwnerName = "DOE JANE"
	grant.RawPayload = datatypes.JSON(`{"is_officer":true,"is_director":false,"is_ten_percent_owner":false,"officer_title":"Chief Executive Officer"}`)
	buy := nonDerivRow(2, "P", "2024-03-05", dec("100"), dec("10"), dec("1600"))
	option := nonDerivRow(3, "M", "2024-03-06", dec("50"), nil, nil)
	option.IsDerivative = true
	rows := []models.Form4Row{grant, buy, option}

	event := agg.buildEvent(filing, "cik:0001234567", rows, "AAPL", "Apple Inc", timeNowForTest())
	if event.ParseVersion != 2 {
		t.Fatalf("parseVersion=%d want=2", event.ParseVersion)
	}
	if event.Ticker == nil || *event.Ticker != "AAPL" {
		t.Fatalf("ticker=%v want=AAPL", event.Ticker)
	}
	if event.OwnerTitle == nil || *event.OwnerTitle != "Chief Executive Officer" {
		t.Fatalf("ownerTitle=%v", event.OwnerTitle)
	}
	if !event.IsOfficer || event.IsDirector {
		t.Fatalf("isOfficer=%v isDirector=%v", event.IsOfficer, event.IsDirector)
	}
	if event.DerivativeRowCount != 1 || event.NonOpenMarketRowCount != 1 {
		t.Fatalf("derivRows=%d nonOpenMarketRows=%d want 1 and 1", event.DerivativeRowCount, event.NonOpenMarketRowCount)
	}
	// Earliest transaction date anywhere in the filing, grant included.
	if event.EventTradeDate == nil || *event.EventTradeDate != "2024-03-01" {
		t.Fatalf("eventTradeDate=%v want=2024-03-01", event.EventTradeDate)
	}
	if !event.HasBuy || event.HasSell {
		t.Fatalf("hasBuy=%v hasSell=%v", event.HasBuy, event.HasSell)
	}
	if event.BuyTradeDate == nil || *event.BuyTradeDate != "2024-03-05" {
		t.Fatalf("buyTradeDate=%v want=2024-03-05", event.BuyTradeDate)
	}
}
