package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION STORE
// The first Profile call takes a row lock (SELECT ... FOR UPDATE), so
// concurrent transactions of the same user queue on the profile row.
// MarkCompleted is a compare-and-swap on the session status.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionStore implements command.ProgressionStore for PostgreSQL.
type ProgressionStore struct {
	conn *Connection
}

var _ command.ProgressionStore = (*ProgressionStore)(nil)

// NewProgressionStore creates a new ProgressionStore.
func NewProgressionStore(conn *Connection) *ProgressionStore {
	return &ProgressionStore{conn: conn}
}

// InUserTx runs fn in a read-committed transaction scoped to uid.
func (s *ProgressionStore) InUserTx(ctx context.Context, uid string, fn func(ctx context.Context, tx command.ProgressionTx) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &progressionTx{tx: tx, uid: uid})
	})
}

type progressionTx struct {
	tx  pgx.Tx
	uid string
}

func (t *progressionTx) Profile(ctx context.Context) (*profile.Profile, error) {
	return getProfile(ctx, t.tx, t.uid, true)
}

func (t *progressionTx) Session(ctx context.Context, id string) (*session.Session, error) {
	return getSession(ctx, t.tx, t.uid, id)
}

func (t *progressionTx) MarkCompleted(ctx context.Context, s *session.Session) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE sessions SET
			status = 'completed', score = $3, xp_earned = $4,
			completed_at = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2 AND status = 'in-progress'
	`, s.ID, t.uid, s.Score, s.XPEarned, s.CompletedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := getSession(ctx, t.tx, t.uid, s.ID); err != nil {
			return err
		}
		return shared.ErrInvalidStateTransition
	}
	return nil
}

func (t *progressionTx) CompletedSessions(ctx context.Context) ([]progression.CompletedSession, error) {
	list, err := listCompleted(ctx, t.tx, t.uid)
	if err != nil {
		return nil, err
	}
	out := make([]progression.CompletedSession, 0, len(list))
	for _, s := range list {
		out = append(out, s.AsCompleted())
	}
	return out, nil
}

func (t *progressionTx) SaveProgress(ctx context.Context, p *profile.Profile) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE profiles SET
			xp = $2, level = $3, streak = $4, last_active_date = $5,
			total_sessions = $6, total_points = $7, updated_at = $8
		WHERE uid = $1
	`, t.uid, p.XP, p.Level, p.Streak, nullTime(p.LastActiveDate), p.TotalSessions, p.TotalPoints, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}
