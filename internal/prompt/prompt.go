// Package prompt renders the instruction sent to the model for each
// operation kind.
package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/resume"
)

//go:embed prompts/tailor.md
var tailorPromptRaw string

//go:embed prompts/refine.md
var refinePromptRaw string

//go:embed prompts/shorten.md
var shortenPromptRaw string

// Templates are parsed once at package init and reused on every render.
// text/template performs no escaping, so the document is embedded verbatim.
var (
	TailorTemplate  = template.Must(template.New("tailor").Parse(tailorPromptRaw))
	RefineTemplate  = template.Must(template.New("refine").Parse(refinePromptRaw))
	ShortenTemplate = template.Must(template.New("shorten").Parse(shortenPromptRaw))
)

// data is the value every template is executed against.
type data struct {
	Document       string
	Role           string
	JobDescription string
	Instruction    string
	Technologies   []string
}

// Builder renders prompts. The zero value is not usable; call NewBuilder.
type Builder struct {
	templates map[model.Kind]*template.Template
}

// NewBuilder returns a Builder using the embedded templates.
func NewBuilder() *Builder {
	return &Builder{
		templates: map[model.Kind]*template.Template{
			model.KindTailor:  TailorTemplate,
			model.KindRefine:  RefineTemplate,
			model.KindShorten: ShortenTemplate,
		},
	}
}

// Render returns the instruction string for op. It has no side effects and
// the same op always yields the same string.
func (b *Builder) Render(op model.Operation) (string, error) {
	tmpl, ok := b.templates[op.Kind]
	if !ok {
		return "", fmt.Errorf("render prompt: unknown operation kind %q", op.Kind)
	}

	d := data{
		Document:       op.Document,
		Role:           op.Role,
		JobDescription: op.JobDescription,
		Instruction:    op.Instruction,
	}
	if op.Kind == model.KindTailor {
		d.Technologies = resume.SummarizeTechnologies(op.Document)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", op.Kind, err)
	}
	return buf.String(), nil
}
