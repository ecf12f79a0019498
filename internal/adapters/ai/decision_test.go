package ai

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/selivandex/sentiment-gate/pkg/models"
)

const validReply = `{"requested_action":"BUY","recommended_action":"BUY","decision":"ALLOW","bias":"BULLISH","confidence":0.8,"reason":"strong momentum","key_factors":["ETF flows"],"post_ids_used":["1","2"],"safety_notes":"volatile"}`

func TestFallbackTotality(t *testing.T) {
	for _, tt := range []struct {
		raw       string
		requested models.Action
	}{
		{"", models.ActionBuy},
		{"not json", models.ActionSell},
		{"{broken", models.ActionBuy},
		{"} backwards {", models.ActionSell},
	} {
		got := Normalize(tt.raw, tt.requested)
		want := Fallback(tt.requested)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Normalize(%q) = %+v, want fallback", tt.raw, got)
		}
		if got.RequestedAction != tt.requested {
			t.Errorf("fallback must echo requested action")
		}
		if !IsFallback(got) {
			t.Error("IsFallback should recognise the fallback")
		}
	}
}

func TestParseDecisionValid(t *testing.T) {
	raw := "Sure! ```json\n" + validReply + "\n```"

	out, err := ParseDecision(raw, models.ActionBuy, []string{"1", "2", "3"})
	if err != nil {
		t.Fatalf("ParseDecision failed: %v", err)
	}

	if out.Decision != models.DecisionAllow || out.Bias != models.BiasBullish || out.Confidence != 0.8 {
		t.Errorf("unexpected output %+v", out)
	}
	if !reflect.DeepEqual(out.PostIDsUsed, []string{"1", "2"}) {
		t.Errorf("unexpected ids %v", out.PostIDsUsed)
	}
	if IsFallback(out) {
		t.Error("valid reply must not look like the fallback")
	}
}

func TestParseDecisionOverwritesRequestedAction(t *testing.T) {
	// the model claims the user asked to SELL and that the decision is ALLOW
	raw := strings.Replace(validReply, `"requested_action":"BUY"`, `"requested_action":"SELL"`, 1)
	raw = strings.Replace(raw, `"recommended_action":"BUY"`, `"recommended_action":"SELL"`, 1)
	raw = strings.Replace(raw, `"bias":"BULLISH"`, `"bias":"BEARISH"`, 1)

	out, err := ParseDecision(raw, models.ActionBuy, nil)
	if err != nil {
		t.Fatalf("ParseDecision failed: %v", err)
	}
	if out.RequestedAction != models.ActionBuy {
		t.Errorf("requested action must come from the caller, got %s", out.RequestedAction)
	}
	if out.Decision != models.DecisionReverse {
		t.Errorf("expected REVERSE, got %s", out.Decision)
	}
}

func TestDecisionPolicyEnforced(t *testing.T) {
	tests := []struct {
		name        string
		requested   models.Action
		recommended string
		decision    string
		bias        string
		confidence  string
		want        models.Decision
	}{
		{"reverse despite allow claim", models.ActionSell, "HOLD", "ALLOW", "MIXED", "0.3", models.DecisionReverse},
		{"reverse buy to sell", models.ActionBuy, "SELL", "ABORT", "BEARISH", "0.9", models.DecisionReverse},
		{"weak evidence reverses to hold", models.ActionBuy, "HOLD", "ALLOW", "UNCLEAR", "0.59", models.DecisionReverse},
		{"allow at threshold", models.ActionBuy, "BUY", "ABORT", "BULLISH", "0.6", models.DecisionAllow},
		{"mixed bias reverses to hold", models.ActionSell, "HOLD", "ALLOW", "MIXED", "0.9", models.DecisionReverse},
		{"sell bearish allowed", models.ActionSell, "SELL", "REVERSE", "BEARISH", "0.7", models.DecisionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"requested_action":"` + string(tt.requested) + `","recommended_action":"` + tt.recommended +
				`","decision":"` + tt.decision + `","bias":"` + tt.bias + `","confidence":` + tt.confidence +
				`,"reason":"r","key_factors":[],"post_ids_used":[],"safety_notes":""}`

			out := Normalize(raw, tt.requested)
			if IsFallback(out) {
				t.Fatalf("unexpected fallback for %s", raw)
			}
			if out.Decision != tt.want {
				t.Errorf("decision = %s, want %s", out.Decision, tt.want)
			}
			if out.RecommendedAction != out.RequestedAction && out.Decision != models.DecisionReverse {
				t.Error("REVERSE invariant violated")
			}
		})
	}
}

func TestParseDecisionRejectsPolicyViolations(t *testing.T) {
	tests := []struct {
		name        string
		recommended string
		bias        string
		confidence  string
		field       string
	}{
		{"hold with confident bullish bias", "HOLD", "BULLISH", "0.9", "recommended_action"},
		{"buy below threshold", "BUY", "BULLISH", "0.59", "recommended_action"},
		{"buy on mixed bias", "BUY", "MIXED", "0.9", "recommended_action"},
		{"sell against bullish bias", "SELL", "BULLISH", "0.8", "recommended_action"},
		{"hold with weak directional bias", "HOLD", "BEARISH", "0.4", "bias"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"requested_action":"BUY","recommended_action":"` + tt.recommended +
				`","decision":"REVERSE","bias":"` + tt.bias + `","confidence":` + tt.confidence +
				`,"reason":"r","key_factors":[],"post_ids_used":[],"safety_notes":""}`

			_, err := ParseDecision(raw, models.ActionBuy, nil)

			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if schemaErr.Field != tt.field {
				t.Errorf("field = %s, want %s", schemaErr.Field, tt.field)
			}
			if out := Normalize(raw, models.ActionBuy); !IsFallback(out) {
				t.Errorf("Normalize should fall back, got %+v", out)
			}
		})
	}
}

func TestParseDecisionSchemaViolations(t *testing.T) {
	long := func(n int) string { return strings.Repeat("x", n) }

	tests := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"missing field", `,"safety_notes":"volatile"`, ``, "safety_notes"},
		{"hold requested", `"requested_action":"BUY"`, `"requested_action":"HOLD"`, "requested_action"},
		{"bad recommended", `"recommended_action":"BUY"`, `"recommended_action":"WAIT"`, "recommended_action"},
		{"bad decision", `"decision":"ALLOW"`, `"decision":"MAYBE"`, "decision"},
		{"bad bias", `"bias":"BULLISH"`, `"bias":"bullish"`, "bias"},
		{"confidence above one", `"confidence":0.8`, `"confidence":1.2`, "confidence"},
		{"confidence negative", `"confidence":0.8`, `"confidence":-0.1`, "confidence"},
		{"reason too long", `"reason":"strong momentum"`, `"reason":"` + long(181) + `"`, "reason"},
		{"too many factors", `"key_factors":["ETF flows"]`, `"key_factors":["a","b","c","d","e","f"]`, "key_factors"},
		{"factor too long", `"key_factors":["ETF flows"]`, `"key_factors":["` + long(61) + `"]`, "key_factors"},
		{"notes too long", `"safety_notes":"volatile"`, `"safety_notes":"` + long(121) + `"`, "safety_notes"},
		{"null ids", `"post_ids_used":["1","2"]`, `"post_ids_used":null`, "post_ids_used"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := strings.Replace(validReply, tt.from, tt.to, 1)
			if raw == validReply {
				t.Fatalf("replacement did not apply")
			}

			_, err := ParseDecision(raw, models.ActionBuy, nil)

			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if schemaErr.Field != tt.field {
				t.Errorf("field = %s, want %s", schemaErr.Field, tt.field)
			}
		})
	}
}

func TestParseDecisionCapsCountRunes(t *testing.T) {
	reason := strings.Repeat("é", MaxReasonLen)
	raw := strings.Replace(validReply, `"reason":"strong momentum"`, `"reason":"`+reason+`"`, 1)

	if _, err := ParseDecision(raw, models.ActionBuy, nil); err != nil {
		t.Errorf("180 runes must be accepted: %v", err)
	}
}

func TestParseDecisionToleratesExtraKeys(t *testing.T) {
	raw := strings.Replace(validReply, `{`, `{"extra":true,`, 1)
	if _, err := ParseDecision(raw, models.ActionBuy, nil); err != nil {
		t.Errorf("extra keys should be ignored: %v", err)
	}
}

func TestParseDecisionErrors(t *testing.T) {
	if _, err := ParseDecision("  ", models.ActionBuy, nil); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := ParseDecision("no braces", models.ActionBuy, nil); !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("expected ErrNoJSONObject, got %v", err)
	}
	if _, err := ParseDecision(`{"confidence":"high"}`, models.ActionBuy, nil); err == nil {
		t.Error("expected decode error for wrong types")
	}
}

func TestPostIDsFilteredToEvidence(t *testing.T) {
	raw := strings.Replace(validReply, `"post_ids_used":["1","2"]`,
		`"post_ids_used":["9","1","1","2","3","4","5","6"]`, 1)

	out, err := ParseDecision(raw, models.ActionBuy, []string{"1", "2", "3", "4", "5", "6"})
	if err != nil {
		t.Fatalf("ParseDecision failed: %v", err)
	}

	want := []string{"1", "2", "3", "4", "5"}
	if !reflect.DeepEqual(out.PostIDsUsed, want) {
		t.Errorf("post ids = %v, want %v", out.PostIDsUsed, want)
	}
}
