package templates

import (
	"bytes"
	"fmt"
	"io/fs"
	"text/template"

	"go.uber.org/zap"

	"github.com/selivandex/sentiment-gate/pkg/logger"
)

// Renderer interface for template rendering (for dependency injection)
type Renderer interface {
	ExecuteTemplate(name string, data any) (string, error)
	TemplateExists(name string) bool
}

// Manager manages templates parsed from a filesystem (usually an embed.FS)
type Manager struct {
	templates *template.Template
	patterns  []string
}

// GetDefaultFuncMap returns common template helper functions
func GetDefaultFuncMap() template.FuncMap {
	return template.FuncMap{
		"percent": func(v float64) int {
			return int(v*100 + 0.5)
		},
		"add": func(a, b int) int {
			return a + b
		},
		"printf": fmt.Sprintf,
	}
}

// NewManager parses every template matching patterns in fsys
func NewManager(fsys fs.FS, patterns ...string) (*Manager, error) {
	if len(patterns) == 0 {
		patterns = []string{"*.tmpl"}
	}

	tmpl, err := template.New("root").Funcs(GetDefaultFuncMap()).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	templateCount := len(tmpl.Templates())
	if templateCount <= 1 { // "root" template doesn't count
		return nil, fmt.Errorf("no templates found for %v", patterns)
	}

	logger.Debug("templates loaded",
		zap.Int("count", templateCount),
		zap.Strings("patterns", patterns),
	)

	return &Manager{
		templates: tmpl,
		patterns:  patterns,
	}, nil
}

// NewManagerWithValidation creates manager and validates required templates exist
func NewManagerWithValidation(fsys fs.FS, requiredTemplates []string, patterns ...string) (*Manager, error) {
	manager, err := NewManager(fsys, patterns...)
	if err != nil {
		return nil, err
	}

	for _, name := range requiredTemplates {
		if !manager.TemplateExists(name) {
			return nil, fmt.Errorf("required template not found: %s", name)
		}
	}

	return manager, nil
}

// ExecuteTemplate renders template with data
func (m *Manager) ExecuteTemplate(name string, data any) (string, error) {
	tmpl := m.templates.Lookup(name)
	if tmpl == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}

// TemplateExists checks if template exists
func (m *Manager) TemplateExists(name string) bool {
	return m.templates.Lookup(name) != nil
}
