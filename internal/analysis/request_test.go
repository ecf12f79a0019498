package analysis

import (
	"errors"
	"testing"

	"github.com/selivandex/sentiment-gate/pkg/models"
)

func TestParseRequest(t *testing.T) {
	no := false

	tests := []struct {
		name string
		form Form
		want Request
	}{
		{
			name: "defaults",
			form: Form{Token: " $sol ", Action: "buy"},
			want: Request{Token: "SOL", Action: models.ActionBuy, MaxPosts: DefaultMaxPosts, IncludeUsage: true},
		},
		{
			name: "all options",
			form: Form{
				Token: "#eth", Action: "SELL", XHandle: "@ethereum", OfficialOnly: true, EnglishOnly: true,
				MaxPosts: 500, IncludeUsage: &no, XBearerToken: " tok ", OpenAIAPIKey: "sk",
			},
			want: Request{
				Token: "ETH", Action: models.ActionSell, FromHandle: "ethereum", OfficialOnly: true, Lang: "en",
				MaxPosts: MaxMaxPosts,
				Credentials: models.Credentials{XBearerToken: "tok", OpenAIAPIKey: "sk"},
			},
		},
		{
			name: "handle implies official",
			form: Form{Token: "sol", Action: "SELL", XHandle: " @solana "},
			want: Request{Token: "SOL", Action: models.ActionSell, FromHandle: "solana", OfficialOnly: true, MaxPosts: DefaultMaxPosts, IncludeUsage: true},
		},
		{
			name: "negative max posts",
			form: Form{Token: "btc", Action: "BUY", MaxPosts: -3},
			want: Request{Token: "BTC", Action: models.ActionBuy, MaxPosts: 1, IncludeUsage: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequest(tt.form)
			if err != nil {
				t.Fatalf("ParseRequest failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		form   Form
		fields []string
	}{
		{"two chars", Form{Token: "$op", Action: "BUY"}, nil},
		{"one char", Form{Token: "$s", Action: "BUY"}, []string{"token"}},
		{"too long", Form{Token: "ABCDEFGHIJKLM", Action: "BUY"}, []string{"token"}},
		{"symbols", Form{Token: "SO-L", Action: "BUY"}, []string{"token"}},
		{"hold", Form{Token: "SOL", Action: "HOLD"}, []string{"action"}},
		{"bad handle", Form{Token: "SOL", Action: "BUY", XHandle: "not a handle"}, []string{"x_handle"}},
		{"everything", Form{Token: "", Action: "", XHandle: "@@x"}, []string{"token", "action", "x_handle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest(tt.form)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Errorf("expected fields %v, got %v", tt.fields, verr.Fields)
			}
			for _, f := range tt.fields {
				if verr.Fields[f] == "" {
					t.Errorf("missing message for %s", f)
				}
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"token": "Bad token.", "action": "Bad action."}}
	if got := err.Error(); got != "Bad action. Bad token." {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&ValidationError{}).Error(); got != "Invalid form data" {
		t.Errorf("unexpected empty message %q", got)
	}
}

func TestClientsValidation(t *testing.T) {
	clients := NewClients(ClientsConfig{})

	_, err := clients.X(models.Credentials{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["credentials"] == "" {
		t.Errorf("expected credentials error for X, got %v", err)
	}

	_, err = clients.LLM(models.Credentials{})
	if !errors.As(err, &verr) || verr.Fields["credentials"] == "" {
		t.Errorf("expected credentials error for LLM, got %v", err)
	}

	x, err := clients.X(models.Credentials{XBearerToken: "user"})
	if err != nil || x == nil {
		t.Errorf("override should build a client, got %v", err)
	}
}

func TestClientsDefaultsShared(t *testing.T) {
	clients := NewClients(ClientsConfig{XBearerToken: "srv", OpenAIAPIKey: "sk", OpenAIModel: "gpt-4o"})

	a, _ := clients.X(models.Credentials{})
	b, _ := clients.X(models.Credentials{})
	if a != b {
		t.Error("default X client should be built once")
	}

	c, _ := clients.X(models.Credentials{XBearerToken: "user"})
	if c == a {
		t.Error("override must not reuse the default client")
	}

	l1, _ := clients.LLM(models.Credentials{})
	l2, _ := clients.LLM(models.Credentials{})
	if l1 != l2 {
		t.Error("default completer should be built once")
	}
}
