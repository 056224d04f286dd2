package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/resumetailor/internal/model"
)

// MemoryStore keeps sessions in process memory. It is used for ephemeral
// runs, where nothing should outlive the process, and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]model.Session
	revisions map[string][]model.Revision
	order     map[string]int // insertion order, breaks UpdatedAt ties
	next      int
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]model.Session),
		revisions: make(map[string][]model.Revision),
		order:     make(map[string]int),
		now:       time.Now,
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, sess model.Session, base string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if _, exists := s.sessions[sess.ID]; exists {
		return model.Session{}, fmt.Errorf("creating session %s: already exists", sess.ID)
	}
	now := s.now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now

	s.sessions[sess.ID] = sess
	s.revisions[sess.ID] = []model.Revision{{
		SessionID: sess.ID, Seq: 0, Kind: model.KindBase, Content: base, CreatedAt: now,
	}}
	s.order[sess.ID] = s.next
	s.next++
	return sess, nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("getting session %s: %w", id, model.ErrNotFound)
	}
	return sess, nil
}

func (s *MemoryStore) LatestSession(ctx context.Context) (model.Session, error) {
	sessions, _ := s.ListSessions(ctx, 1)
	if len(sessions) == 0 {
		return model.Session{}, fmt.Errorf("getting latest session: %w", model.ErrNotFound)
	}
	return sessions[0], nil
}

func (s *MemoryStore) ListSessions(_ context.Context, limit int) ([]model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return s.order[a.ID] > s.order[b.ID]
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sess.ID]
	if !ok {
		return fmt.Errorf("updating session %s: %w", sess.ID, model.ErrNotFound)
	}
	cur.Name, cur.Role, cur.JobDescription = sess.Name, sess.Role, sess.JobDescription
	cur.UpdatedAt = s.now().UTC()
	s.sessions[sess.ID] = cur
	return nil
}

func (s *MemoryStore) AppendRevision(_ context.Context, rev model.Revision) (model.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(rev)
}

func (s *MemoryStore) appendLocked(rev model.Revision) (model.Revision, error) {
	sess, ok := s.sessions[rev.SessionID]
	if !ok {
		return model.Revision{}, fmt.Errorf("appending revision to %s: %w", rev.SessionID, model.ErrNotFound)
	}
	now := s.now().UTC()
	rev.Seq = len(s.revisions[rev.SessionID])
	rev.CreatedAt = now
	s.revisions[rev.SessionID] = append(s.revisions[rev.SessionID], rev)

	sess.UpdatedAt = now
	s.sessions[rev.SessionID] = sess
	return rev, nil
}

func (s *MemoryStore) CurrentRevision(_ context.Context, sessionID string) (model.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs := s.revisions[sessionID]
	if len(revs) == 0 {
		return model.Revision{}, fmt.Errorf("current revision of %s: %w", sessionID, model.ErrNotFound)
	}
	return revs[len(revs)-1], nil
}

func (s *MemoryStore) Revisions(_ context.Context, sessionID string) ([]model.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs := s.revisions[sessionID]
	if len(revs) == 0 {
		return nil, fmt.Errorf("listing revisions of %s: %w", sessionID, model.ErrNotFound)
	}
	return append([]model.Revision(nil), revs...), nil
}

func (s *MemoryStore) Revert(_ context.Context, sessionID string, seq int) (model.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revs := s.revisions[sessionID]
	if seq < 0 || seq >= len(revs) {
		return model.Revision{}, fmt.Errorf("reverting %s to %d: %w", sessionID, seq, model.ErrNotFound)
	}
	return s.appendLocked(revertOf(revs[seq]))
}

func (s *MemoryStore) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-olderThan)
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.revisions, id)
			delete(s.order, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
