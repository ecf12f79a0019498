package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/selivandex/sentiment-gate/pkg/models"
	"github.com/selivandex/sentiment-gate/pkg/templates"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	systemTemplate = "system.tmpl"
	userTemplate   = "user.tmpl"

	// RepairInstruction is appended as a second user message after an invalid reply
	RepairInstruction = "Your previous response was invalid. Reply with only the JSON object, no markdown."
)

// Thresholds shared by the instruction text and the normalizer
const (
	MinConfidence     = 0.6
	MaxReasonLen      = 180
	MaxKeyFactorLen   = 60
	MaxKeyFactors     = 5
	MaxSafetyNotesLen = 120
	MinPostIDs        = 2
	MaxPostIDs        = 5
)

// Prompt is one compiled model request
type Prompt struct {
	System string
	User   string
	// Repair adds RepairInstruction after the user payload
	Repair bool
}

// WithRepair returns the same prompt asking the model to fix its previous reply
func (p Prompt) WithRepair() Prompt {
	p.Repair = true
	return p
}

// evidencePost is the wire shape of a post inside the user payload
type evidencePost struct {
	ID       string `json:"id"`
	AgeMin   int    `json:"age_min"`
	Eng      int    `json:"eng"`
	Verified bool   `json:"verified"`
	Text     string `json:"text"`
}

// Compiler turns evidence into model prompts. Safe for concurrent use.
type Compiler struct {
	renderer templates.Renderer
	system   string
}

// NewCompiler loads the embedded templates and renders the system instruction once
func NewCompiler() (*Compiler, error) {
	manager, err := templates.NewManagerWithValidation(
		templateFS,
		[]string{systemTemplate, userTemplate},
		"templates/*.tmpl",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	system, err := manager.ExecuteTemplate(systemTemplate, map[string]any{
		"MinConfidence":  MinConfidence,
		"MaxReason":      MaxReasonLen,
		"MaxKeyFactor":   MaxKeyFactorLen,
		"MaxKeyFactors":  MaxKeyFactors,
		"MaxSafetyNotes": MaxSafetyNotesLen,
		"MinPostIDs":     MinPostIDs,
		"MaxPostIDs":     MaxPostIDs,
	})
	if err != nil {
		return nil, err
	}

	return &Compiler{
		renderer: manager,
		system:   strings.TrimSpace(system),
	}, nil
}

// SystemInstruction returns the fixed system instruction
func (c *Compiler) SystemInstruction() string {
	return c.system
}

// Compile builds the prompt for one analysis
func (c *Compiler) Compile(requested models.Action, token string, evidence []models.CompactPost) (Prompt, error) {
	if !requested.IsRequestable() {
		return Prompt{}, fmt.Errorf("invalid requested action %q", requested)
	}

	posts := make([]evidencePost, len(evidence))
	for i, e := range evidence {
		posts[i] = evidencePost{
			ID:       e.ID,
			AgeMin:   e.AgeMin,
			Eng:      e.EngagementScore,
			Verified: e.Verified,
			Text:     e.Text,
		}
	}

	postsJSON, err := marshalCompact(posts)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to encode evidence: %w", err)
	}

	user, err := c.renderer.ExecuteTemplate(userTemplate, map[string]any{
		"RequestedAction": requested,
		"Token":           token,
		"Posts":           postsJSON,
	})
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{
		System: c.SystemInstruction(),
		User:   strings.TrimRight(user, "\n"),
	}, nil
}

// marshalCompact encodes v as single-line JSON without HTML escaping
func marshalCompact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
