package compute

import (
	"math"
	"testing"

	"insiderlens/internal/models"
)

func TestBuildStatExcludesMissingHorizons(t *testing.T) {
	outcomes := []models.EventOutcome{
		{ExcessReturn60: floatPtr(0.1)},
		{ExcessReturn60: floatPtr(-0.2), ExcessReturn180: floatPtr(0.3)},
		{},
	}
	stat := BuildStat("0000320193", "cik:0001234567", models.SideBuy, outcomes)
	if stat.N60 != 2 || stat.N180 != 1 {
		t.Fatalf("n60=%d n180=%d want 2 and 1", stat.N60, stat.N180)
	}
	if stat.WinRate60 == nil || math.Abs(*stat.WinRate60-0.5) > 1e-9 {
		t.Fatalf("winRate60=%v want=0.5", stat.WinRate60)
	}
	if stat.AvgExc60 == nil || math.Abs(*stat.AvgExc60-(-0.05)) > 1e-9 {
		t.Fatalf("avgExc60=%v want=-0.05", stat.AvgExc60)
	}
	if stat.WinRate180 == nil || *stat.WinRate180 != 1.0 {
		t.Fatalf("winRate180=%v want=1", stat.WinRate180)
	}
	if stat.AvgExc180 == nil || math.Abs(*stat.AvgExc180-0.3) > 1e-9 {
		t.Fatalf("avgExc180=%v want=0.3", stat.AvgExc180)
	}
}

func TestBuildStatEmpty(t *testing.T) {
	stat := BuildStat("0000320193", "cik:0001234567", models.SideSell, nil)
	if stat.N60 != 0 || stat.N180 != 0 {
		t.Fatalf("n60=%d n180=%d want zeroes", stat.N60, stat.N180)
	}
	if stat.WinRate60 != nil || stat.AvgExc60 != nil || stat.WinRate180 != nil || stat.AvgExc180 != nil {
		t.Fatalf("rates should stay nil with no samples")
	}
	if stat.Side != models.SideSell {
		t.Fatalf("side=%s want=%s", stat.Side, models.SideSell)
	}
}

func TestOutcomesBeforeDropsCurrentAndLaterTrades(t *testing.T) {
	outcomes := []models.EventOutcome{
		{AccessionNumber: "acc-prior", TradeDate: datePtr("2024-01-05"), ExcessReturn60: floatPtr(-0.10)},
		{AccessionNumber: "acc-current", TradeDate: datePtr("2024-02-01"), ExcessReturn60: floatPtr(0.25)},
		{AccessionNumber: "acc-same-day", TradeDate: datePtr("2024-02-01"), ExcessReturn60: floatPtr(0.40)},
		{AccessionNumber: "acc-later", TradeDate: datePtr("2024-03-01"), ExcessReturn60: floatPtr(0.50)},
		{AccessionNumber: "acc-undated", ExcessReturn60: floatPtr(0.60)},
	}
	prior := OutcomesBefore(outcomes, "acc-current", "2024-02-01")
	if len(prior) != 1 {
		t.Fatalf("prior count=%d want=1", len(prior))
	}
	if prior[0].AccessionNumber != "acc-prior" {
		t.Fatalf("kept=%s want=acc-prior", prior[0].AccessionNumber)
	}
}

func TestBuildStatNeverSeesOwnOutcome(t *testing.T) {
	outcomes := []models.EventOutcome{
		{AccessionNumber: "acc-prior", TradeDate: datePtr("2023-11-01"), ExcessReturn60: floatPtr(-0.10)},
		{AccessionNumber: "acc-current", TradeDate: datePtr("2024-02-01"), ExcessReturn60: floatPtr(0.25)},
	}
	prior := OutcomesBefore(outcomes, "acc-current", "2024-02-01")
	stat := BuildStat("0000320193", "cik:0001234567", models.SideBuy, prior)
	if stat.N60 != 1 {
		t.Fatalf("n60=%d want=1", stat.N60)
	}
	if stat.WinRate60 == nil || *stat.WinRate60 != 0.0 {
		t.Fatalf("winRate60=%v want=0 and the current event's own return excluded", stat.WinRate60)
	}
	if stat.AvgExc60 == nil || math.Abs(*stat.AvgExc60-(-0.10)) > 1e-9 {
		t.Fatalf("avgExc60=%v want=-0.10", stat.AvgExc60)
	}
}

func TestWinRateZeroExcessIsNotAWin(t *testing.T) {
	win, mean := winRateAndMean([]float64{0.0, 0.5})
	if math.Abs(win-0.5) > 1e-9 {
		t.Fatalf("winRate=%v want=0.5", win)
	}
	if math.Abs(mean-0.25) > 1e-9 {
		t.Fatalf("mean=%v want=0.25", mean)
	}
}
