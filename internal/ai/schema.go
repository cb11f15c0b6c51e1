package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// The judge exchanges untyped JSON with the model and validates it
// structurally; only the denormalized verdict fields get typed extraction.

const OutputSchemaVersion = "ai_output_v1"

var allowedTopKeys = map[string]bool{
	"schema_version":   true,
	"model_id":         true,
	"prompt_version":   true,
	"generated_at_utc": true,
	"event_key":        true,
	"verdict":          true,
	"narrative":        true,
	"risks":            true,
	"flags":            true,
	"field_citations":  true,
}

var allowedSeverity = map[string]bool{"low": true, "medium": true, "high": true}

// Rating and confidence must stay near the deterministic baseline.
const (
	maxRatingDelta = 3.0
	maxConfDelta   = 0.35
)

// ValidationError marks model output that fails the output contract; the
// judge gives the model one repair attempt before treating it as a job error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ExtractJSON pulls the first top-level JSON object out of model text. The
// model occasionally wraps JSON in markdown or adds stray prose; take the
// substring from the first '{' to the last '}'.
func ExtractJSON(text string) (map[string]any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, invalid("empty model response")
	}
	var fast map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fast); err == nil {
		return fast, nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return nil, invalid("could not find JSON object in model response")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &out); err != nil {
		return nil, invalid("failed to parse JSON from model response: %v", err)
	}
	return out, nil
}

// ValidateOutput rejects any output that breaks the contract: unknown keys,
// a verdict that disagrees with the event's sides, hallucinated citation
// paths, or ratings that drift too far from the baseline.
func ValidateOutput(output, input map[string]any) error {
	for key := range output {
		if !allowedTopKeys[key] {
			return invalid("unknown top-level key: %s", key)
		}
	}
	for key := range allowedTopKeys {
		if _, ok := output[key]; !ok {
			return invalid("missing top-level key: %s", key)
		}
	}

	if output["schema_version"] != OutputSchemaVersion {
		return invalid("schema_version must be %s", OutputSchemaVersion)
	}
	if s, ok := output["model_id"].(string); !ok || s == "" {
		return invalid("model_id must be non-empty string")
	}
	if s, ok := output["prompt_version"].(string); !ok || s == "" {
		return invalid("prompt_version must be non-empty string")
	}
	if s, ok := output["generated_at_utc"].(string); !ok || !strings.HasSuffix(s, "Z") || !strings.Contains(s, "T") {
		return invalid("generated_at_utc must be ISO UTC string ending with Z")
	}

	inputEvent, _ := input["event"].(map[string]any)
	eventKey, ok := output["event_key"].(map[string]any)
	if !ok {
		return invalid("event_key must be object")
	}
	for _, field := range []string{"issuer_cik", "owner_key", "accession_number"} {
		got, ok := eventKey[field].(string)
		if !ok || got == "" {
			return invalid("event_key.%s must be non-empty string", field)
		}
		if want, _ := inputEvent[field].(string); got != want {
			return invalid("event_key does not match input event identity")
		}
	}

	verdict, ok := output["verdict"].(map[string]any)
	if !ok {
		return invalid("verdict must be object")
	}
	buySide, _ := inputEvent["buy"].(map[string]any)
	sellSide, _ := inputEvent["sell"].(map[string]any)
	hasBuy, _ := buySide["has_buy"].(bool)
	hasSell, _ := sellSide["has_sell"].(bool)
	if err := validateSignal(verdict["buy_signal"], hasBuy, "buy"); err != nil {
		return err
	}
	if err := validateSignal(verdict["sell_signal"], hasSell, "sell"); err != nil {
		return err
	}

	narrative, ok := output["narrative"].(map[string]any)
	if !ok {
		return invalid("narrative must be object")
	}
	narrativeNonEmpty := false
	for _, key := range []string{"thesis_bullets", "context_bullets", "counterpoints_bullets"} {
		bullets, ok := narrative[key].([]any)
		if !ok {
			return invalid("narrative.%s must be array", key)
		}
		if len(bullets) > 5 {
			return invalid("narrative.%s must have <= 5 items", key)
		}
		if len(bullets) > 0 {
			narrativeNonEmpty = true
		}
		for _, item := range bullets {
			text, ok := item.(string)
			if !ok {
				return invalid("narrative.%s items must be strings", key)
			}
			if strings.Contains(text, "\n") {
				return invalid("narrative.%s bullets must be single-line", key)
			}
			if len(text) > 160 {
				return invalid("narrative.%s bullets must be <= 160 chars", key)
			}
		}
	}

	risks, ok := output["risks"].([]any)
	if !ok {
		return invalid("risks must be array")
	}
	if len(risks) > 8 {
		return invalid("risks must have <= 8 items")
	}
	var riskTexts []string
	for _, item := range risks {
		risk, ok := item.(map[string]any)
		if !ok {
			return invalid("risk must be object")
		}
		if s, ok := risk["risk_type"].(string); !ok || s == "" {
			return invalid("risk.risk_type must be non-empty string")
		}
		severity, _ := risk["severity"].(string)
		if !allowedSeverity[severity] {
			return invalid("risk.severity must be low/medium/high")
		}
		text, ok := risk["text"].(string)
		if !ok || text == "" {
			return invalid("risk.text must be non-empty string")
		}
		if strings.Contains(text, "\n") {
			return invalid("risk.text must be single-line")
		}
		riskTexts = append(riskTexts, text)
	}

	flags, ok := output["flags"].([]any)
	if !ok {
		return invalid("flags must be array")
	}
	if len(flags) > 12 {
		return invalid("flags must have <= 12 items")
	}
	for _, item := range flags {
		if s, ok := item.(string); !ok || s == "" {
			return invalid("flags items must be non-empty strings")
		}
	}

	citations, ok := output["field_citations"].([]any)
	if !ok {
		return invalid("field_citations must be array")
	}
	if len(citations) > 40 {
		return invalid("field_citations must have <= 40 items")
	}
	claims := make(map[string]bool)
	for _, item := range citations {
		citation, ok := item.(map[string]any)
		if !ok {
			return invalid("field_citations item must be object")
		}
		claim, ok := citation["claim"].(string)
		if !ok || claim == "" {
			return invalid("field_citations.claim must be non-empty string")
		}
		claims[claim] = true
		paths, ok := citation["input_paths"].([]any)
		if !ok || len(paths) == 0 {
			return invalid("field_citations.input_paths must be non-empty array")
		}
		for _, raw := range paths {
			path, ok := raw.(string)
			if !ok || !strings.HasPrefix(path, "$.") {
				return invalid("input_paths entries must be strings starting with '$.'")
			}
			if !jsonPathExists(input, path) {
				return invalid("input_paths references missing path in input: %s", path)
			}
		}
	}

	anyApplicable := signalStatus(verdict["buy_signal"]) == "applicable" ||
		signalStatus(verdict["sell_signal"]) == "applicable"
	if (anyApplicable || len(risks) > 0 || narrativeNonEmpty) && len(citations) == 0 {
		return invalid("field_citations must be non-empty when providing any analysis")
	}
	for _, text := range riskTexts {
		if !claims[text] {
			return invalid("each risk.text must appear as a field_citations.claim")
		}
	}

	return validateBaselineDeltas(verdict, input)
}

func signalStatus(raw any) string {
	signal, _ := raw.(map[string]any)
	status, _ := signal["status"].(string)
	return status
}

func validateSignal(raw any, expectedApplicable bool, side string) error {
	signal, ok := raw.(map[string]any)
	if !ok {
		return invalid("%s_signal must be object", side)
	}
	for _, key := range []string{"status", "rating", "confidence", "horizon_days", "summary"} {
		if _, ok := signal[key]; !ok {
			return invalid("%s_signal missing key %s", side, key)
		}
	}
	status, _ := signal["status"].(string)
	switch status {
	case "applicable", "not_applicable", "insufficient_data":
	default:
		return invalid("%s_signal.status must be applicable/not_applicable/insufficient_data", side)
	}
	if !expectedApplicable && status != "not_applicable" {
		return invalid("%s_signal.status must be not_applicable when no %s activity", side, side)
	}
	if status != "applicable" {
		for _, key := range []string{"rating", "confidence", "horizon_days", "summary"} {
			if signal[key] != nil {
				return invalid("%s_signal.%s must be null when status != applicable", side, key)
			}
		}
		return nil
	}

	rating, ok := asFloat(signal["rating"])
	if !ok {
		return invalid("%s_signal.rating must be number", side)
	}
	if rating < 1.0 || rating > 10.0 {
		return invalid("%s_signal.rating must be within [1.0,10.0]", side)
	}
	if math.Round(rating*10)/10 != rating {
		return invalid("%s_signal.rating must have 1 decimal place", side)
	}
	confidence, ok := asFloat(signal["confidence"])
	if !ok {
		return invalid("%s_signal.confidence must be number", side)
	}
	if confidence < 0 || confidence > 1 {
		return invalid("%s_signal.confidence must be within [0,1]", side)
	}
	horizon, ok := asFloat(signal["horizon_days"])
	if !ok || (horizon != 60 && horizon != 180) {
		return invalid("%s_signal.horizon_days must be 60 or 180", side)
	}
	if summary, ok := signal["summary"].(string); !ok || summary == "" {
		return invalid("%s_signal.summary must be non-empty string", side)
	}
	return nil
}

func validateBaselineDeltas(verdict map[string]any, input map[string]any) error {
	baseline, ok := input["baseline"].(map[string]any)
	if !ok {
		return nil
	}
	for _, side := range []string{"buy", "sell"} {
		base, ok := baseline[side].(map[string]any)
		if !ok {
			continue
		}
		signal, ok := verdict[side+"_signal"].(map[string]any)
		if !ok || signalStatus(signal) != "applicable" {
			continue
		}
		baseRating, okR := asFloat(base["rating"])
		baseConf, okC := asFloat(base["confidence"])
		if !okR || !okC {
			continue
		}
		if rating, ok := asFloat(signal["rating"]); ok && math.Abs(rating-baseRating) > maxRatingDelta+1e-9 {
			return invalid("%s_signal.rating deviates from baseline by > %.1f: rating=%v baseline=%v", side, maxRatingDelta, rating, baseRating)
		}
		if confidence, ok := asFloat(signal["confidence"]); ok && math.Abs(confidence-baseConf) > maxConfDelta+1e-9 {
			return invalid("%s_signal.confidence deviates from baseline by > %.2f: confidence=%v baseline=%v", side, maxConfDelta, confidence, baseConf)
		}
	}
	return nil
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// jsonPathExists walks a simplified JSONPath ($.a.b[0].c) through nested
// maps and slices.
func jsonPathExists(obj any, path string) bool {
	steps, err := parseJSONPath(path)
	if err != nil {
		return false
	}
	cur := obj
	for _, step := range steps {
		if step.isIndex {
			list, ok := cur.([]any)
			if !ok || step.index < 0 || step.index >= len(list) {
				return false
			}
			cur = list[step.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		next, ok := m[step.key]
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

type pathStep struct {
	key     string
	index   int
	isIndex bool
}

func parseJSONPath(path string) ([]pathStep, error) {
	p := strings.TrimSpace(path)
	if p == "$" {
		return nil, nil
	}
	if !strings.HasPrefix(p, "$") {
		return nil, fmt.Errorf("invalid path %q", path)
	}
	p = strings.TrimPrefix(strings.TrimPrefix(p, "$"), ".")

	var steps []pathStep
	i := 0
	for i < len(p) {
		switch p[i] {
		case '.':
			i++
		case '[':
			j := strings.Index(p[i:], "]")
			if j == -1 {
				return nil, fmt.Errorf("invalid path %q", path)
			}
			idx, err := strconv.Atoi(strings.TrimSpace(p[i+1 : i+j]))
			if err != nil {
				return nil, fmt.Errorf("invalid path %q", path)
			}
			steps = append(steps, pathStep{index: idx, isIndex: true})
			i += j + 1
		default:
			j := i
			for j < len(p) && p[j] != '.' && p[j] != '[' {
				j++
			}
			key := strings.TrimSpace(p[i:j])
			if key == "" {
				return nil, fmt.Errorf("invalid path %q", path)
			}
			steps = append(steps, pathStep{key: key})
			i = j
		}
	}
	return steps, nil
}

// Verdict is the typed slice of the output the rest of the system needs.
type Verdict struct {
	Buy  Signal
	Sell Signal
}

type Signal struct {
	Status     string
	Rating     *float64
	Confidence *float64
}

// ParseVerdict extracts the denormalizable verdict fields from a validated
// output object.
func ParseVerdict(output map[string]any) Verdict {
	verdict, _ := output["verdict"].(map[string]any)
	return Verdict{
		Buy:  parseSignal(verdict["buy_signal"]),
		Sell: parseSignal(verdict["sell_signal"]),
	}
}

func parseSignal(raw any) Signal {
	signal, _ := raw.(map[string]any)
	out := Signal{Status: signalStatus(signal)}
	if rating, ok := asFloat(signal["rating"]); ok {
		out.Rating = &rating
	}
	if confidence, ok := asFloat(signal["confidence"]); ok {
		out.Confidence = &confidence
	}
	return out
}
