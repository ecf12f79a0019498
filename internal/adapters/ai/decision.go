package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/selivandex/sentiment-gate/pkg/models"
)

// ErrEmptyResponse is returned when the model produced no content
var ErrEmptyResponse = errors.New("empty model response")

// ErrNoJSONObject is returned when no {...} span exists in the reply
var ErrNoJSONObject = errors.New("no JSON object in model response")

// SchemaError describes the first schema violation in a model reply
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// rawDecision mirrors AnalysisOutput with pointers so missing keys are detectable.
// Unknown keys are ignored.
type rawDecision struct {
	RequestedAction   *string   `json:"requested_action"`
	RecommendedAction *string   `json:"recommended_action"`
	Decision          *string   `json:"decision"`
	Bias              *string   `json:"bias"`
	Confidence        *float64  `json:"confidence"`
	Reason            *string   `json:"reason"`
	KeyFactors        *[]string `json:"key_factors"`
	PostIDsUsed       *[]string `json:"post_ids_used"`
	SafetyNotes       *string   `json:"safety_notes"`
}

// Fallback is the fixed decision returned when the model cannot be understood
func Fallback(requested models.Action) models.AnalysisOutput {
	return models.AnalysisOutput{
		RequestedAction:   requested,
		RecommendedAction: models.ActionHold,
		Decision:          models.DecisionAbort,
		Bias:              models.BiasUnclear,
		Confidence:        0,
		Reason:            "AI unavailable",
		KeyFactors:        []string{},
		PostIDsUsed:       []string{},
		SafetyNotes:       "Service temporarily unavailable.",
	}
}

// IsFallback reports whether out is the fallback literal
func IsFallback(out models.AnalysisOutput) bool {
	fb := Fallback(out.RequestedAction)
	return out.RecommendedAction == fb.RecommendedAction &&
		out.Decision == fb.Decision &&
		out.Bias == fb.Bias &&
		out.Confidence == fb.Confidence &&
		out.Reason == fb.Reason &&
		out.SafetyNotes == fb.SafetyNotes &&
		len(out.KeyFactors) == 0 &&
		len(out.PostIDsUsed) == 0
}

// Normalize parses raw or returns the fallback. Never fails.
func Normalize(raw string, requested models.Action) models.AnalysisOutput {
	out, err := ParseDecision(raw, requested, nil)
	if err != nil {
		return Fallback(requested)
	}
	return out
}

// ParseDecision extracts and validates the decision object from a model reply.
// A recommendation that breaks the decision policy is a *SchemaError.
// requested_action is always replaced by requested and the decision label is
// re-derived from the recommendation, bias and confidence. When evidenceIDs is
// non-nil, post_ids_used keeps only those ids (deduplicated, at most MaxPostIDs).
func ParseDecision(raw string, requested models.Action, evidenceIDs []string) (models.AnalysisOutput, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.AnalysisOutput{}, ErrEmptyResponse
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return models.AnalysisOutput{}, ErrNoJSONObject
	}

	var rd rawDecision
	if err := json.Unmarshal([]byte(text[start:end+1]), &rd); err != nil {
		return models.AnalysisOutput{}, fmt.Errorf("failed to decode model JSON: %w", err)
	}

	out, err := rd.validate()
	if err != nil {
		return models.AnalysisOutput{}, err
	}

	out.RequestedAction = requested
	if evidenceIDs != nil {
		out.PostIDsUsed = filterPostIDs(out.PostIDsUsed, evidenceIDs)
	}
	out.Decision = derivedDecision(out)

	return out, nil
}

func (rd *rawDecision) validate() (models.AnalysisOutput, error) {
	switch {
	case rd.RequestedAction == nil:
		return models.AnalysisOutput{}, missing("requested_action")
	case rd.RecommendedAction == nil:
		return models.AnalysisOutput{}, missing("recommended_action")
	case rd.Decision == nil:
		return models.AnalysisOutput{}, missing("decision")
	case rd.Bias == nil:
		return models.AnalysisOutput{}, missing("bias")
	case rd.Confidence == nil:
		return models.AnalysisOutput{}, missing("confidence")
	case rd.Reason == nil:
		return models.AnalysisOutput{}, missing("reason")
	case rd.KeyFactors == nil:
		return models.AnalysisOutput{}, missing("key_factors")
	case rd.PostIDsUsed == nil:
		return models.AnalysisOutput{}, missing("post_ids_used")
	case rd.SafetyNotes == nil:
		return models.AnalysisOutput{}, missing("safety_notes")
	}

	out := models.AnalysisOutput{
		RequestedAction:   models.Action(*rd.RequestedAction),
		RecommendedAction: models.Action(*rd.RecommendedAction),
		Decision:          models.Decision(*rd.Decision),
		Bias:              models.Bias(*rd.Bias),
		Confidence:        *rd.Confidence,
		Reason:            *rd.Reason,
		KeyFactors:        *rd.KeyFactors,
		PostIDsUsed:       *rd.PostIDsUsed,
		SafetyNotes:       *rd.SafetyNotes,
	}

	if !out.RequestedAction.IsRequestable() {
		return out, &SchemaError{Field: "requested_action", Reason: "must be BUY or SELL"}
	}
	if !out.RecommendedAction.IsRecommendable() {
		return out, &SchemaError{Field: "recommended_action", Reason: "must be BUY, SELL or HOLD"}
	}
	if !out.Decision.IsValid() {
		return out, &SchemaError{Field: "decision", Reason: "must be ALLOW, ABORT or REVERSE"}
	}
	if !out.Bias.IsValid() {
		return out, &SchemaError{Field: "bias", Reason: "must be BULLISH, BEARISH, MIXED or UNCLEAR"}
	}
	if out.Confidence < 0 || out.Confidence > 1 {
		return out, &SchemaError{Field: "confidence", Reason: "must be within [0,1]"}
	}
	if utf8.RuneCountInString(out.Reason) > MaxReasonLen {
		return out, &SchemaError{Field: "reason", Reason: fmt.Sprintf("longer than %d chars", MaxReasonLen)}
	}
	if utf8.RuneCountInString(out.SafetyNotes) > MaxSafetyNotesLen {
		return out, &SchemaError{Field: "safety_notes", Reason: fmt.Sprintf("longer than %d chars", MaxSafetyNotesLen)}
	}
	if len(out.KeyFactors) > MaxKeyFactors {
		return out, &SchemaError{Field: "key_factors", Reason: fmt.Sprintf("more than %d items", MaxKeyFactors)}
	}
	for _, f := range out.KeyFactors {
		if utf8.RuneCountInString(f) > MaxKeyFactorLen {
			return out, &SchemaError{Field: "key_factors", Reason: fmt.Sprintf("item longer than %d chars", MaxKeyFactorLen)}
		}
	}

	if want := policyAction(out.Bias, out.Confidence); out.RecommendedAction != want {
		return out, &SchemaError{
			Field:  "recommended_action",
			Reason: fmt.Sprintf("%s does not follow from bias %s at confidence %.2f, expected %s", out.RecommendedAction, out.Bias, out.Confidence, want),
		}
	}
	if out.RecommendedAction == models.ActionHold && out.Bias != models.BiasMixed && out.Bias != models.BiasUnclear {
		return out, &SchemaError{Field: "bias", Reason: "must be MIXED or UNCLEAR when recommending HOLD"}
	}

	return out, nil
}

// policyAction is the only recommendation the decision policy allows for bias and confidence
func policyAction(bias models.Bias, confidence float64) models.Action {
	switch {
	case confidence >= MinConfidence && bias == models.BiasBullish:
		return models.ActionBuy
	case confidence >= MinConfidence && bias == models.BiasBearish:
		return models.ActionSell
	}
	return models.ActionHold
}

// derivedDecision enforces the decision policy regardless of what the model claimed
func derivedDecision(out models.AnalysisOutput) models.Decision {
	if out.RecommendedAction != out.RequestedAction {
		return models.DecisionReverse
	}
	if out.Bias.Supports(out.RequestedAction) && out.Confidence >= MinConfidence {
		return models.DecisionAllow
	}
	return models.DecisionAbort
}

func filterPostIDs(used, evidence []string) []string {
	allowed := make(map[string]struct{}, len(evidence))
	for _, id := range evidence {
		allowed[id] = struct{}{}
	}

	kept := make([]string, 0, len(used))
	seen := make(map[string]struct{}, len(used))
	for _, id := range used {
		if _, ok := allowed[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, id)
		if len(kept) == MaxPostIDs {
			break
		}
	}
	return kept
}

func missing(field string) error {
	return &SchemaError{Field: field, Reason: "missing"}
}
