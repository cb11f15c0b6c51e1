package ai

import (
	"encoding/json"

	"insiderlens/internal/models"
)

// Primary selects the side that headlines a verdict. An applicable side
// beats a non-applicable one; between two applicable sides the higher
// rating wins, with buy keeping a tie. When neither side is applicable the
// higher raw rating wins as a best-effort fallback. An empty side means the
// run produced no usable signal.
func (v Verdict) Primary() (side string, signal Signal) {
	buyOK := v.Buy.Status == "applicable"
	sellOK := v.Sell.Status == "applicable"
	switch {
	case buyOK && !sellOK:
		return models.SideBuy, v.Buy
	case sellOK && !buyOK:
		return models.SideSell, v.Sell
	case buyOK && sellOK:
		if v.Sell.Rating != nil && (v.Buy.Rating == nil || *v.Sell.Rating > *v.Buy.Rating) {
			return models.SideSell, v.Sell
		}
		return models.SideBuy, v.Buy
	}
	if v.Sell.Rating != nil && (v.Buy.Rating == nil || *v.Sell.Rating > *v.Buy.Rating) {
		return models.SideSell, v.Sell
	}
	if v.Buy.Rating != nil {
		return models.SideBuy, v.Buy
	}
	return "", Signal{}
}

// ParseStoredVerdict decodes the verdict out of a persisted run's output
// document.
func ParseStoredVerdict(raw []byte) (Verdict, error) {
	var output map[string]any
	if err := json.Unmarshal(raw, &output); err != nil {
		return Verdict{}, err
	}
	return ParseVerdict(output), nil
}

// BuySignal returns the applicable buy-side rating and confidence from a
// stored run, or nils when the buy side was not scored.
func BuySignal(raw []byte) (rating, confidence *float64) {
	verdict, err := ParseStoredVerdict(raw)
	if err != nil {
		return nil, nil
	}
	if verdict.Buy.Status != "applicable" {
		return nil, nil
	}
	return verdict.Buy.Rating, verdict.Buy.Confidence
}
