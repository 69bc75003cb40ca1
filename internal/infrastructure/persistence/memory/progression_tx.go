package memory

import (
	"context"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION TRANSACTION
// The session status swap is applied immediately so a concurrent patch or
// abandon sees it, and is undone if fn fails. Profile progress is staged and
// written only on commit.
// ══════════════════════════════════════════════════════════════════════════════

var _ command.ProgressionStore = (*Store)(nil)

// InUserTx runs fn holding the user's transaction lock.
func (s *Store) InUserTx(ctx context.Context, uid string, fn func(ctx context.Context, tx command.ProgressionTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := s.userLock(uid)
	l.Lock()
	defer l.Unlock()

	tx := &progressionTx{s: s, uid: uid}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return tx.commit()
}

type progressionTx struct {
	s   *Store
	uid string

	staged *profile.Profile
	undo   []func()
}

func (tx *progressionTx) Profile(ctx context.Context) (*profile.Profile, error) {
	if tx.staged != nil {
		return cloneProfile(tx.staged), nil
	}
	return tx.s.Profiles().GetByUID(ctx, tx.uid)
}

func (tx *progressionTx) Session(ctx context.Context, id string) (*session.Session, error) {
	return tx.s.Sessions().GetByID(ctx, tx.uid, id)
}

func (tx *progressionTx) MarkCompleted(ctx context.Context, sess *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	stored, err := tx.s.ownedSession(tx.uid, sess.ID)
	if err != nil {
		return err
	}
	if stored.Status != session.StatusInProgress {
		return shared.ErrInvalidStateTransition
	}

	before := cloneSession(stored)
	stored.Status = session.StatusCompleted
	stored.Score = sess.Score
	stored.XPEarned = sess.XPEarned
	stored.UpdatedAt = sess.UpdatedAt
	if sess.CompletedAt != nil {
		at := *sess.CompletedAt
		stored.CompletedAt = &at
	}

	tx.undo = append(tx.undo, func() {
		if cur, ok := tx.s.sessions[before.ID]; ok {
			cur.Status = before.Status
			cur.Score = before.Score
			cur.XPEarned = before.XPEarned
			cur.UpdatedAt = before.UpdatedAt
			cur.CompletedAt = before.CompletedAt
		}
	})
	return nil
}

func (tx *progressionTx) CompletedSessions(ctx context.Context) ([]progression.CompletedSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()

	list := tx.s.completedSessions(tx.uid)
	out := make([]progression.CompletedSession, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.AsCompleted())
	}
	return out, nil
}

func (tx *progressionTx) SaveProgress(ctx context.Context, p *profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.UID != tx.uid {
		return shared.ErrProfileNotFound
	}
	tx.staged = cloneProfile(p)
	return nil
}

func (tx *progressionTx) rollback() {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

func (tx *progressionTx) commit() error {
	if tx.staged == nil {
		return nil
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()

	stored, ok := tx.s.profiles[tx.uid]
	if !ok {
		return shared.ErrProfileNotFound
	}
	p := tx.staged
	stored.XP = p.XP
	stored.Level = p.Level
	stored.Streak = p.Streak
	stored.LastActiveDate = p.LastActiveDate
	stored.TotalSessions = p.TotalSessions
	stored.TotalPoints = p.TotalPoints
	stored.UpdatedAt = p.UpdatedAt
	return nil
}
