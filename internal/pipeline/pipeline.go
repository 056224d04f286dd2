// Package pipeline runs one operation end to end:
// validate → render prompt → generate → sanitize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/amishk599/resumetailor/internal/ai"
	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/prompt"
	"github.com/amishk599/resumetailor/internal/sanitize"
)

// State is the document being edited plus the context it was tailored for.
// It is a value: Apply returns a new State and never modifies its argument.
type State struct {
	Document       string
	Role           string
	JobDescription string
}

// Pipeline owns the request/response cycle for every operation kind.
// It holds no per-call state and may be shared, but callers are expected to
// serialize operations on the same State.
type Pipeline struct {
	builder  *prompt.Builder
	provider ai.Provider
	validate *validator.Validate
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Pipeline. A zero timeout disables the per-operation deadline.
func New(provider ai.Provider, timeout time.Duration, logger *slog.Logger) *Pipeline {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Pipeline{
		builder:  prompt.NewBuilder(),
		provider: provider,
		validate: v,
		timeout:  timeout,
		logger:   logger,
	}
}

// Apply runs op against st. Empty Document, Role and JobDescription fields
// of op are taken from st. On success the returned State holds the cleaned
// document (and, for tailor, the role and job description it was tailored
// for). On any error st is returned unchanged.
func (p *Pipeline) Apply(ctx context.Context, st State, op model.Operation) (State, error) {
	if op.Document == "" {
		op.Document = st.Document
	}
	if op.Role == "" {
		op.Role = st.Role
	}
	if op.JobDescription == "" {
		op.JobDescription = st.JobDescription
	}

	doc, err := p.Run(ctx, op)
	if err != nil {
		return st, err
	}

	next := State{Document: doc, Role: st.Role, JobDescription: st.JobDescription}
	if op.Kind == model.KindTailor {
		next.Role = strings.TrimSpace(op.Role)
		next.JobDescription = strings.TrimSpace(op.JobDescription)
	}
	return next, nil
}

// Run executes a single operation and returns the cleaned document.
// Validation failures return *model.MissingInputError without contacting
// the provider. Provider failures are returned as-is; a response that is
// empty after sanitizing yields model.ErrEmptyGeneration.
func (p *Pipeline) Run(ctx context.Context, op model.Operation) (string, error) {
	op = trimmed(op)
	if err := p.check(op); err != nil {
		return "", err
	}

	instruction, err := p.builder.Render(op)
	if err != nil {
		return "", err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.provider.Generate(ctx, instruction)
	if err != nil {
		p.logger.Warn("operation failed",
			"kind", op.Kind,
			"prompt_bytes", len(instruction),
			"elapsed", time.Since(start).Round(time.Millisecond),
			"error", err,
		)
		return "", err
	}

	doc := sanitize.Clean(raw)
	if doc == "" {
		p.logger.Warn("operation produced no document", "kind", op.Kind, "raw_bytes", len(raw))
		return "", model.ErrEmptyGeneration
	}

	p.logger.Info("operation complete",
		"kind", op.Kind,
		"prompt_bytes", len(instruction),
		"document_bytes", len(doc),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return doc, nil
}

// check validates op, reporting the first missing required field.
func (p *Pipeline) check(op model.Operation) error {
	if _, err := model.ParseKind(string(op.Kind)); err != nil {
		return err
	}

	err := p.validate.Struct(op)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &model.MissingInputError{Field: verrs[0].Field()}
	}
	return fmt.Errorf("validate operation: %w", err)
}

func trimmed(op model.Operation) model.Operation {
	op.JobDescription = strings.TrimSpace(op.JobDescription)
	op.Instruction = strings.TrimSpace(op.Instruction)
	op.Document = strings.TrimSpace(op.Document)
	op.Role = strings.TrimSpace(op.Role)
	return op
}
