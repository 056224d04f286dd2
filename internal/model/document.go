package model

import (
	"context"
	"fmt"
	"time"
)

// Kind selects which operation a request performs.
type Kind string

const (
	KindTailor  Kind = "tailor"
	KindRefine  Kind = "refine"
	KindShorten Kind = "shorten"

	// KindBase marks revision 0 of a session: the untouched starting document.
	KindBase Kind = "base"
	// KindRevert marks a revision copied back from an earlier one.
	KindRevert Kind = "revert"
)

// ParseKind converts a user-supplied string into an operation Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTailor, KindRefine, KindShorten:
		return k, nil
	default:
		return "", fmt.Errorf("unknown operation %q (want tailor, refine or shorten)", s)
	}
}

// Operation is one request/response cycle against the model. Document is the
// state the operation starts from; the remaining fields are auxiliary text
// whose meaning depends on Kind. Field order matters: missing fields are
// reported in declaration order.
type Operation struct {
	Kind           Kind   `json:"kind"`
	JobDescription string `json:"jobDescription" validate:"required_if=Kind tailor"`
	Instruction    string `json:"instruction" validate:"required_if=Kind refine"`
	Document       string `json:"document" validate:"required"`
	Role           string `json:"role" validate:"required_if=Kind tailor"`
}

// Session groups the revisions produced while editing one resume.
type Session struct {
	ID             string
	Name           string
	Role           string
	JobDescription string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Revision is one immutable version of a session's document.
type Revision struct {
	SessionID   string
	Seq         int
	Kind        Kind
	Instruction string // refinement text, empty for other kinds
	Content     string
	CreatedAt   time.Time
}

// DocumentStore persists sessions and their revision history.
type DocumentStore interface {
	CreateSession(ctx context.Context, s Session, base string) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	LatestSession(ctx context.Context) (Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	UpdateSession(ctx context.Context, s Session) error
	AppendRevision(ctx context.Context, rev Revision) (Revision, error)
	CurrentRevision(ctx context.Context, sessionID string) (Revision, error)
	Revisions(ctx context.Context, sessionID string) ([]Revision, error)
	Revert(ctx context.Context, sessionID string, seq int) (Revision, error)
	Cleanup(ctx context.Context, olderThan time.Duration) error
}
