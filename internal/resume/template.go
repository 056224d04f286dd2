// Package resume holds the built-in LaTeX resume template and helpers that
// inspect resume source without modifying it.
package resume

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

//go:embed default.tex
var defaultTemplate string

// DefaultTemplate returns the built-in one-page LaTeX resume.
func DefaultTemplate() string {
	return defaultTemplate
}

// LoadTemplate reads the template at path, or returns the built-in template
// when path is empty.
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return defaultTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read resume template: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("resume template %s is empty", path)
	}
	return content, nil
}
