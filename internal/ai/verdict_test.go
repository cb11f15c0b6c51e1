package ai

import (
	"testing"

	"insiderlens/internal/models"
)

func sideSignal(status string, rating, confidence *float64) Signal {
	return Signal{Status: status, Rating: rating, Confidence: confidence}
}

func TestPrimaryPrefersApplicableSide(t *testing.T) {
	verdict := Verdict{
		Buy:  sideSignal("not_applicable", nil, nil),
		Sell: sideSignal("applicable", fptr(7.5), fptr(0.6)),
	}
	side, chosen := verdict.Primary()
	if side != models.SideSell {
		t.Fatalf("side=%q want=sell", side)
	}
	if chosen.Rating == nil || *chosen.Rating != 7.5 {
		t.Fatalf("rating=%v want=7.5", chosen.Rating)
	}
}

func TestPrimaryHigherRatingWinsBetweenApplicableSides(t *testing.T) {
	verdict := Verdict{
		Buy:  sideSignal("applicable", fptr(6.0), fptr(0.5)),
		Sell: sideSignal("applicable", fptr(8.0), fptr(0.7)),
	}
	if side, _ := verdict.Primary(); side != models.SideSell {
		t.Fatalf("side=%q want=sell", side)
	}
}

func TestPrimaryTieKeepsBuy(t *testing.T) {
	verdict := Verdict{
		Buy:  sideSignal("applicable", fptr(7.0), nil),
		Sell: sideSignal("applicable", fptr(7.0), nil),
	}
	if side, _ := verdict.Primary(); side != models.SideBuy {
		t.Fatalf("side=%q want=buy", side)
	}
}

func TestPrimaryFallsBackToRawRatings(t *testing.T) {
	verdict := Verdict{
		Buy:  sideSignal("insufficient_data", fptr(4.0), nil),
		Sell: sideSignal("insufficient_data", nil, nil),
	}
	side, chosen := verdict.Primary()
	if side != models.SideBuy {
		t.Fatalf("side=%q want=buy", side)
	}
	if chosen.Status != "insufficient_data" {
		t.Fatalf("status=%q want=insufficient_data", chosen.Status)
	}
}

func TestPrimaryEmptyWhenNoSignal(t *testing.T) {
	verdict := Verdict{
		Buy:  sideSignal("not_applicable", nil, nil),
		Sell: sideSignal("not_applicable", nil, nil),
	}
	if side, _ := verdict.Primary(); side != "" {
		t.Fatalf("side=%q want empty", side)
	}
}
