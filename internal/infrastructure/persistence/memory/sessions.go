package memory

import (
	"context"
	"sort"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// SessionRepository implements session.Repository.
type SessionRepository struct {
	s *Store
}

var _ session.Repository = (*SessionRepository)(nil)

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[sess.ID]; ok {
		return shared.NewDomainError("session", "Create", shared.ErrAlreadyExists, "session already exists")
	}
	r.s.sessions[sess.ID] = cloneSession(sess)
	r.s.sessionsByUser[sess.UserID] = append(r.s.sessionsByUser[sess.UserID], sess.ID)
	return nil
}

// GetByID returns a session owned by uid.
func (r *SessionRepository) GetByID(ctx context.Context, uid, id string) (*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, err := r.s.ownedSession(uid, id)
	if err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

// ListByUser returns up to limit sessions, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, uid string, limit int) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.sessionsByUser[uid]
	out := make([]*session.Session, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneSession(r.s.sessions[ids[i]]))
	}
	return out, nil
}

// SaveInProgress writes the mutable fields of sess if the stored copy is
// still in progress.
func (r *SessionRepository) SaveInProgress(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := r.s.ownedSession(sess.UserID, sess.ID)
	if err != nil {
		return err
	}
	if stored.Status != session.StatusInProgress {
		return shared.ErrInvalidStateTransition
	}

	stored.Topic = sess.Topic
	stored.Subject = sess.Subject
	stored.Content = sess.Content
	stored.Duration = sess.Duration
	stored.QuestionsAsked = sess.QuestionsAsked
	stored.QuestionsAnswered = sess.QuestionsAnswered
	stored.Status = sess.Status
	stored.UpdatedAt = sess.UpdatedAt
	return nil
}

// AppendMessage appends m to the transcript of an in-progress session.
func (r *SessionRepository) AppendMessage(ctx context.Context, uid, id string, m session.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, err := r.s.ownedSession(uid, id)
	if err != nil {
		return err
	}
	return stored.AppendMessage(m)
}

// ListCompleted returns the user's completed sessions in completion order.
func (r *SessionRepository) ListCompleted(ctx context.Context, uid string) ([]*session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.completedSessions(uid), nil
}

// CountCompletedSince counts completions at or after since and sums their xp.
func (r *SessionRepository) CountCompletedSince(ctx context.Context, uid string, since time.Time) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count, xp := 0, 0
	for _, id := range r.s.sessionsByUser[uid] {
		sess := r.s.sessions[id]
		if sess.Status == session.StatusCompleted && sess.CompletedAt != nil && !sess.CompletedAt.Before(since) {
			count++
			xp += sess.XPEarned
		}
	}
	return count, xp, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers. Callers hold s.mu.
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) ownedSession(uid, id string) (*session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.UserID != uid {
		return nil, shared.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) completedSessions(uid string) []*session.Session {
	var out []*session.Session
	for _, id := range s.sessionsByUser[uid] {
		sess := s.sessions[id]
		if sess.Status == session.StatusCompleted {
			out = append(out, cloneSession(sess))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.Before(*out[j].CompletedAt)
	})
	return out
}
