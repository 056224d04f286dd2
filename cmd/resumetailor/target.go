package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/resumetailor/internal/model"
	"github.com/amishk599/resumetailor/internal/pipeline"
)

// targetFlags select the document a command works on: a LaTeX file, a
// stored session, or (by default) the most recently used session.
type targetFlags struct {
	in        string
	sessionID string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.in, "in", "i", "", "LaTeX file to work on instead of a stored session")
	cmd.Flags().StringVarP(&f.sessionID, "session", "s", "", "session ID (default: most recent session)")
	cmd.MarkFlagsMutuallyExclusive("in", "session")
}

// target is a resolved document. session is nil for file input.
type target struct {
	session *model.Session
	state   pipeline.State
}

func (f *targetFlags) resolve(ctx context.Context, st model.DocumentStore) (target, error) {
	if f.in != "" {
		data, err := os.ReadFile(f.in)
		if err != nil {
			return target{}, fmt.Errorf("read %s: %w", f.in, err)
		}
		return target{state: pipeline.State{Document: string(data)}}, nil
	}

	var (
		sess model.Session
		err  error
	)
	if f.sessionID != "" {
		sess, err = st.GetSession(ctx, f.sessionID)
	} else {
		sess, err = st.LatestSession(ctx)
		if errors.Is(err, model.ErrNotFound) {
			return target{}, errors.New("no sessions yet; run `resumetailor tailor` first or pass --in")
		}
	}
	if err != nil {
		return target{}, err
	}

	cur, err := st.CurrentRevision(ctx, sess.ID)
	if err != nil {
		return target{}, err
	}
	return target{
		session: &sess,
		state: pipeline.State{
			Document:       cur.Content,
			Role:           sess.Role,
			JobDescription: sess.JobDescription,
		},
	}, nil
}

// record stores the result of op as a new revision of the target session.
// File targets are not recorded.
func (t target) record(ctx context.Context, st model.DocumentStore, op model.Operation, next pipeline.State) (model.Revision, error) {
	if t.session == nil {
		return model.Revision{}, nil
	}
	rev, err := st.AppendRevision(ctx, model.Revision{
		SessionID:   t.session.ID,
		Kind:        op.Kind,
		Instruction: strings.TrimSpace(op.Instruction),
		Content:     next.Document,
	})
	if err != nil {
		return model.Revision{}, err
	}
	if op.Kind == model.KindTailor {
		sess := *t.session
		sess.Role, sess.JobDescription = next.Role, next.JobDescription
		if err := st.UpdateSession(ctx, sess); err != nil {
			return model.Revision{}, err
		}
	}
	return rev, nil
}

// operationRunner applies one operation. *pipeline.Pipeline satisfies it.
type operationRunner interface {
	Apply(ctx context.Context, st pipeline.State, op model.Operation) (pipeline.State, error)
}

// runOperation applies op to st behind a spinner.
func runOperation(ctx context.Context, p operationRunner, st pipeline.State, op model.Operation) (pipeline.State, error) {
	var next pipeline.State
	_, err := withSpinner(ctx, operationLabel(op.Kind), func(ctx context.Context) (string, error) {
		var err error
		next, err = p.Apply(ctx, st, op)
		return next.Document, err
	})
	if err != nil {
		return pipeline.State{}, err
	}
	return next, nil
}

// applyOperation runs op against the target and records the result.
func applyOperation(ctx context.Context, p operationRunner, st model.DocumentStore, t target, op model.Operation) (pipeline.State, model.Revision, error) {
	next, err := runOperation(ctx, p, t.state, op)
	if err != nil {
		return pipeline.State{}, model.Revision{}, err
	}

	rev, err := t.record(ctx, st, op, next)
	if err != nil {
		return pipeline.State{}, model.Revision{}, fmt.Errorf("save revision: %w", err)
	}
	return next, rev, nil
}

// tailorNewSession tailors base and, only when that succeeds, stores it as
// a new session whose first edit is the tailored document. A failed
// tailor leaves the store untouched.
func tailorNewSession(ctx context.Context, p operationRunner, st model.DocumentStore, sess model.Session, base string, op model.Operation) (model.Session, pipeline.State, model.Revision, error) {
	next, err := runOperation(ctx, p, pipeline.State{Document: base}, op)
	if err != nil {
		return model.Session{}, pipeline.State{}, model.Revision{}, err
	}

	sess.Role, sess.JobDescription = next.Role, next.JobDescription
	sess, err = st.CreateSession(ctx, sess, base)
	if err != nil {
		return model.Session{}, pipeline.State{}, model.Revision{}, fmt.Errorf("create session: %w", err)
	}
	rev, err := target{session: &sess}.record(ctx, st, op, next)
	if err != nil {
		return model.Session{}, pipeline.State{}, model.Revision{}, fmt.Errorf("save revision: %w", err)
	}
	return sess, next, rev, nil
}

func operationLabel(kind model.Kind) string {
	switch kind {
	case model.KindTailor:
		return "Tailoring resume..."
	case model.KindRefine:
		return "Applying changes..."
	case model.KindShorten:
		return "Shortening resume..."
	default:
		return "Working..."
	}
}
