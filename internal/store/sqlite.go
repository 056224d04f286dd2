package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/amishk599/resumetailor/internal/model"
)

// SQLiteStore persists sessions and their revision history in a SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and applies
// pending migrations.
func NewSQLiteStore(ctx context.Context, dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps writes serialized and the pragmas in effect.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// CreateSession stores s with base as revision 0. An empty ID is replaced
// with a fresh UUID.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess model.Session, base string) (model.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := s.now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Session{}, fmt.Errorf("creating session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, role, job_description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Role, sess.JobDescription, now.UnixNano(), now.UnixNano(),
	); err != nil {
		return model.Session{}, fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (session_id, seq, kind, instruction, content, created_at) VALUES (?, 0, ?, '', ?, ?)`,
		sess.ID, model.KindBase, base, now.UnixNano(),
	); err != nil {
		return model.Session{}, fmt.Errorf("storing base revision for %s: %w", sess.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Session{}, fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return sess, nil
}

const sessionColumns = `id, name, role, job_description, created_at, updated_at`

// GetSession returns the session with the given ID or model.ErrNotFound.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return model.Session{}, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// LatestSession returns the most recently updated session.
func (s *SQLiteStore) LatestSession(ctx context.Context) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, rowid DESC LIMIT 1`)
	sess, err := scanSession(row)
	if err != nil {
		return model.Session{}, fmt.Errorf("getting latest session: %w", err)
	}
	return sess, nil
}

// ListSessions returns up to limit sessions, most recently updated first.
// A limit of zero or less returns all sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSession overwrites the name, role and job description of an
// existing session and bumps its update time.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess model.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name = ?, role = ?, job_description = ?, updated_at = ? WHERE id = ?`,
		sess.Name, sess.Role, sess.JobDescription, s.now().UTC().UnixNano(), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", sess.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updating session %s: %w", sess.ID, model.ErrNotFound)
	}
	return nil
}

// AppendRevision stores rev as the next revision of its session and returns
// it with Seq and CreatedAt assigned.
func (s *SQLiteStore) AppendRevision(ctx context.Context, rev model.Revision) (model.Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Revision{}, fmt.Errorf("appending revision: %w", err)
	}
	defer tx.Rollback()

	rev, err = s.appendTx(ctx, tx, rev)
	if err != nil {
		return model.Revision{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Revision{}, fmt.Errorf("appending revision to %s: %w", rev.SessionID, err)
	}
	return rev, nil
}

func (s *SQLiteStore) appendTx(ctx context.Context, tx *sql.Tx, rev model.Revision) (model.Revision, error) {
	now := s.now().UTC()

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now.UnixNano(), rev.SessionID)
	if err != nil {
		return model.Revision{}, fmt.Errorf("appending revision to %s: %w", rev.SessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Revision{}, fmt.Errorf("appending revision to %s: %w", rev.SessionID, model.ErrNotFound)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM revisions WHERE session_id = ?`, rev.SessionID,
	).Scan(&rev.Seq); err != nil {
		return model.Revision{}, fmt.Errorf("next revision for %s: %w", rev.SessionID, err)
	}
	rev.CreatedAt = now

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (session_id, seq, kind, instruction, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rev.SessionID, rev.Seq, rev.Kind, rev.Instruction, rev.Content, now.UnixNano(),
	); err != nil {
		return model.Revision{}, fmt.Errorf("appending revision to %s: %w", rev.SessionID, err)
	}
	return rev, nil
}

const revisionColumns = `session_id, seq, kind, instruction, content, created_at`

// CurrentRevision returns the highest-numbered revision of a session.
func (s *SQLiteStore) CurrentRevision(ctx context.Context, sessionID string) (model.Revision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE session_id = ? ORDER BY seq DESC LIMIT 1`, sessionID)
	rev, err := scanRevision(row)
	if err != nil {
		return model.Revision{}, fmt.Errorf("current revision of %s: %w", sessionID, err)
	}
	return rev, nil
}

// Revisions returns every revision of a session in order.
func (s *SQLiteStore) Revisions(ctx context.Context, sessionID string) ([]model.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing revisions of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var revs []model.Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("listing revisions of %s: %w", sessionID, err)
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing revisions of %s: %w", sessionID, err)
	}
	if len(revs) == 0 {
		return nil, fmt.Errorf("listing revisions of %s: %w", sessionID, model.ErrNotFound)
	}
	return revs, nil
}

// Revert appends a copy of revision seq as the new current revision.
// History is never rewritten.
func (s *SQLiteStore) Revert(ctx context.Context, sessionID string, seq int) (model.Revision, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Revision{}, fmt.Errorf("reverting %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE session_id = ? AND seq = ?`, sessionID, seq)
	target, err := scanRevision(row)
	if err != nil {
		return model.Revision{}, fmt.Errorf("reverting %s to %d: %w", sessionID, seq, err)
	}

	rev, err := s.appendTx(ctx, tx, revertOf(target))
	if err != nil {
		return model.Revision{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Revision{}, fmt.Errorf("reverting %s: %w", sessionID, err)
	}
	return rev, nil
}

// Cleanup deletes sessions (and their revisions) not updated within olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	cutoff := s.now().UTC().Add(-olderThan).UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cleaning up sessions: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM revisions WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)`, cutoff,
	); err != nil {
		return fmt.Errorf("cleaning up revisions older than %v: %w", olderThan, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff); err != nil {
		return fmt.Errorf("cleaning up sessions older than %v: %w", olderThan, err)
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (model.Session, error) {
	var (
		sess             model.Session
		created, updated int64
	)
	err := sc.Scan(&sess.ID, &sess.Name, &sess.Role, &sess.JobDescription, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, model.ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	sess.CreatedAt = time.Unix(0, created).UTC()
	sess.UpdatedAt = time.Unix(0, updated).UTC()
	return sess, nil
}

func scanRevision(sc scanner) (model.Revision, error) {
	var (
		rev     model.Revision
		kind    string
		created int64
	)
	err := sc.Scan(&rev.SessionID, &rev.Seq, &kind, &rev.Instruction, &rev.Content, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Revision{}, model.ErrNotFound
	}
	if err != nil {
		return model.Revision{}, err
	}
	rev.Kind = model.Kind(kind)
	rev.CreatedAt = time.Unix(0, created).UTC()
	return rev, nil
}

// revertOf builds the revision that restores target.
func revertOf(target model.Revision) model.Revision {
	return model.Revision{
		SessionID:   target.SessionID,
		Kind:        model.KindRevert,
		Instruction: fmt.Sprintf("revert to revision %d", target.Seq),
		Content:     target.Content,
	}
}
