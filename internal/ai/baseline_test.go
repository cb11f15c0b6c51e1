package ai

import (
	"math"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestPctBaseLadder(t *testing.T) {
	cases := []struct {
		pct   *float64
		isBuy bool
		want  float64
	}{
		{nil, true, 5.6},
		{nil, false, 5.4},
		{fptr(250), true, 9.5},
		{fptr(250), false, 9.0},
		{fptr(150), true, 9.0},
		{fptr(30), false, 7.5},
		{fptr(3), true, 6.5},
		{fptr(0.5), true, 5.2},
	}
	for _, tc := range cases {
		if got := pctBase(tc.pct, tc.isBuy); got != tc.want {
			t.Fatalf("pct=%v isBuy=%v got=%v want=%v", tc.pct, tc.isBuy, got, tc.want)
		}
	}
}

func TestBucketAdj(t *testing.T) {
	if got := bucketAdj("micro"); got != 0.7 {
		t.Fatalf("micro got=%v want=0.7", got)
	}
	if got := bucketAdj(" Small "); got != 0.4 {
		t.Fatalf("small got=%v want=0.4", got)
	}
	if got := bucketAdj("mega"); got != -0.3 {
		t.Fatalf("mega got=%v want=-0.3", got)
	}
	if got := bucketAdj(""); got != 0 {
		t.Fatalf("blank got=%v want=0", got)
	}
}

func TestRoleAdj(t *testing.T) {
	if got := roleAdj("Chief Executive Officer"); got != 0.6 {
		t.Fatalf("ceo got=%v want=0.6", got)
	}
	if got := roleAdj("VP of Engineering"); got != 0.3 {
		t.Fatalf("vp got=%v want=0.3", got)
	}
	if got := roleAdj("Trustee"); got != 0 {
		t.Fatalf("trustee got=%v want=0", got)
	}
	if got := roleAdj(nil); got != 0 {
		t.Fatalf("nil got=%v want=0", got)
	}
}

func TestTradeSizeAdjPrefersMarketCapShare(t *testing.T) {
	// A market-cap share wins over the dollar fallback even when tiny.
	if got := tradeSizeAdj(fptr(10_000_000), fptr(0.001)); got != -0.4 {
		t.Fatalf("got=%v want=-0.4", got)
	}
	if got := tradeSizeAdj(nil, fptr(1.5)); got != 1.0 {
		t.Fatalf("got=%v want=1.0", got)
	}
	if got := tradeSizeAdj(fptr(5_000_000), nil); got != 0.7 {
		t.Fatalf("got=%v want=0.7", got)
	}
	if got := tradeSizeAdj(fptr(10_000), nil); got != -0.2 {
		t.Fatalf("got=%v want=-0.2", got)
	}
	if got := tradeSizeAdj(nil, nil); got != 0 {
		t.Fatalf("got=%v want=0", got)
	}
}

func TestHistoryAdj(t *testing.T) {
	if got := historyAdj(fptr(0), 0.3); got != 0.35 {
		t.Fatalf("first-ever sized got=%v want=0.35", got)
	}
	if got := historyAdj(fptr(0), 0.0); got != 0.1 {
		t.Fatalf("first-ever tiny got=%v want=0.1", got)
	}
	if got := historyAdj(fptr(2), 0); got != 0.2 {
		t.Fatalf("rare got=%v want=0.2", got)
	}
	if got := historyAdj(fptr(10), 0); got != 0 {
		t.Fatalf("frequent got=%v want=0", got)
	}
	if got := historyAdj(nil, 0.5); got != 0 {
		t.Fatalf("unknown got=%v want=0", got)
	}
}

func TestTrendAdj(t *testing.T) {
	trend := func(ret any) map[string]any {
		return map[string]any{"pre_returns": map[string]any{"ret_60d": ret}}
	}
	if got := trendAdj(trend(-0.3), true); got != 0.35 {
		t.Fatalf("buy dip got=%v want=0.35", got)
	}
	if got := trendAdj(trend(0.3), true); got != -0.2 {
		t.Fatalf("buy chase got=%v want=-0.2", got)
	}
	if got := trendAdj(trend(0.3), false); got != 0.25 {
		t.Fatalf("sell momentum got=%v want=0.25", got)
	}
	if got := trendAdj(trend(nil), false); got != 0 {
		t.Fatalf("missing got=%v want=0", got)
	}
}

func TestComputeBaselineInactiveSide(t *testing.T) {
	input := judgeInput()
	baseline := computeBaseline(input)
	sell := baseline["sell"].(map[string]any)
	if sell["rating"] != nil || sell["confidence"] != nil {
		t.Fatalf("sell=%v want nil rating and confidence without activity", sell)
	}
}

func TestBaselineConfidenceAdjustments(t *testing.T) {
	input := judgeInput()
	input["data_quality"].(map[string]any)["buy_vwap_is_partial"] = true
	input["data_quality"].(map[string]any)["trend_missing"] = true
	baseline := computeBaseline(input)
	buy := baseline["buy"].(map[string]any)
	confidence, ok := buy["confidence"].(float64)
	if !ok {
		t.Fatalf("confidence=%v want float", buy["confidence"])
	}
	// 0.40 base, +0.10 big stake change, +0.05 CEO, -0.07 partial VWAP,
	// -0.05 missing trend.
	if math.Abs(confidence-0.43) > 1e-9 {
		t.Fatalf("confidence=%v want=0.43", confidence)
	}
}
