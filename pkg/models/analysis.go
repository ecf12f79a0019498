package models

import "strings"

// Action is what the user wants to do with the token
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseRequestedAction accepts BUY or SELL in any case. HOLD is never requestable.
func ParseRequestedAction(s string) (Action, bool) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	}
	return "", false
}

// IsRequestable reports whether a is a valid requested_action
func (a Action) IsRequestable() bool {
	return a == ActionBuy || a == ActionSell
}

// IsRecommendable reports whether a is a valid recommended_action
func (a Action) IsRecommendable() bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// Decision is the policy verdict relating requested and recommended actions
type Decision string

const (
	DecisionAllow   Decision = "ALLOW"
	DecisionAbort   Decision = "ABORT"
	DecisionReverse Decision = "REVERSE"
)

// IsValid reports enum membership
func (d Decision) IsValid() bool {
	return d == DecisionAllow || d == DecisionAbort || d == DecisionReverse
}

// Bias is the model-assessed short-term sentiment about the token
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasMixed   Bias = "MIXED"
	BiasUnclear Bias = "UNCLEAR"
)

// IsValid reports enum membership
func (b Bias) IsValid() bool {
	switch b {
	case BiasBullish, BiasBearish, BiasMixed, BiasUnclear:
		return true
	}
	return false
}

// Supports reports whether the bias points the same way as the action
func (b Bias) Supports(a Action) bool {
	return (b == BiasBullish && a == ActionBuy) || (b == BiasBearish && a == ActionSell)
}

// AnalysisOutput is the decision artifact returned to callers.
// Decision is REVERSE whenever RecommendedAction differs from RequestedAction.
type AnalysisOutput struct {
	RequestedAction   Action   `json:"requested_action"`
	RecommendedAction Action   `json:"recommended_action"`
	Decision          Decision `json:"decision"`
	Bias              Bias     `json:"bias"`
	Reason            string   `json:"reason"`
	SafetyNotes       string   `json:"safety_notes"`
	KeyFactors        []string `json:"key_factors"`
	PostIDsUsed       []string `json:"post_ids_used"`
	Confidence        float64  `json:"confidence"`
}

// Credentials carries optional per-request API keys supplied by the user
type Credentials struct {
	XBearerToken string `json:"-"`
	OpenAIAPIKey string `json:"-"`
}

// IsEmpty reports whether no override is present
func (c Credentials) IsEmpty() bool {
	return c.XBearerToken == "" && c.OpenAIAPIKey == ""
}
