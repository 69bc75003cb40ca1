package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// Every statement filters by user_id: a foreign id behaves like a missing one.
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

var _ session.Repository = (*SessionRepository)(nil)

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const sessionColumns = `
	id, user_id, topic, subject, content, score, duration,
	questions_asked, questions_answered, xp_earned, status, messages,
	created_at, updated_at, completed_at`

// Create creates a new session.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	messagesJSON, err := marshalMessages(s.Messages)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		s.ID, s.UserID, s.Topic, s.Subject, s.Content, s.Score, s.Duration,
		s.QuestionsAsked, s.QuestionsAnswered, s.XPEarned, string(s.Status), messagesJSON,
		s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("session", "Create", shared.ErrAlreadyExists, "session already exists")
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID returns a session owned by uid.
func (r *SessionRepository) GetByID(ctx context.Context, uid, id string) (*session.Session, error) {
	return getSession(ctx, r.conn, uid, id)
}

// ListByUser returns up to limit sessions, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, uid string, limit int) ([]*session.Session, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// SaveInProgress writes the mutable fields if the stored session is still in progress.
func (r *SessionRepository) SaveInProgress(ctx context.Context, s *session.Session) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE sessions SET
			topic = $3, subject = $4, content = $5, duration = $6,
			questions_asked = $7, questions_answered = $8, status = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2 AND status = 'in-progress'
	`,
		s.ID, s.UserID, s.Topic, s.Subject, s.Content, s.Duration,
		s.QuestionsAsked, s.QuestionsAnswered, string(s.Status), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrTransition(ctx, s.UserID, s.ID)
	}
	return nil
}

// AppendMessage appends m to the transcript in one statement.
func (r *SessionRepository) AppendMessage(ctx context.Context, uid, id string, m session.Message) error {
	one, err := marshalMessages([]session.Message{m})
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE sessions SET
			messages = messages || $3::jsonb,
			updated_at = GREATEST(updated_at, $4)
		WHERE id = $1 AND user_id = $2 AND status = 'in-progress'
	`, id, uid, one, m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrTransition(ctx, uid, id)
	}
	return nil
}

// ListCompleted returns the user's completed sessions in completion order.
func (r *SessionRepository) ListCompleted(ctx context.Context, uid string) ([]*session.Session, error) {
	return listCompleted(ctx, r.conn, uid)
}

// CountCompletedSince counts completions at or after since and sums their xp.
func (r *SessionRepository) CountCompletedSince(ctx context.Context, uid string, since time.Time) (int, int, error) {
	var count, xp int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(xp_earned), 0)
		FROM sessions
		WHERE user_id = $1 AND status = 'completed' AND completed_at >= $2
	`, uid, since).Scan(&count, &xp)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count completed sessions: %w", err)
	}
	return count, xp, nil
}

// missOrTransition tells a missing session from one that left in-progress.
func (r *SessionRepository) missOrTransition(ctx context.Context, uid, id string) error {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1 AND user_id = $2)`, id, uid,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return shared.ErrSessionNotFound
	}
	return shared.ErrInvalidStateTransition
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers shared with the progression transaction
// ─────────────────────────────────────────────────────────────────────────────

func getSession(ctx context.Context, q Querier, uid, id string) (*session.Session, error) {
	return scanSession(q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND user_id = $2`, id, uid,
	))
}

func listCompleted(ctx context.Context, q Querier, uid string) ([]*session.Session, error) {
	rows, err := q.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY completed_at, id
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	var status string
	var messagesJSON []byte

	err := row.Scan(
		&s.ID, &s.UserID, &s.Topic, &s.Subject, &s.Content, &s.Score, &s.Duration,
		&s.QuestionsAsked, &s.QuestionsAnswered, &s.XPEarned, &status, &messagesJSON,
		&s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.Status = session.Status(status)
	s.Messages = []session.Message{}
	if err := json.Unmarshal(messagesJSON, &s.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return &s, nil
}

func scanSessions(rows pgx.Rows) ([]*session.Session, error) {
	var out []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func marshalMessages(messages []session.Message) ([]byte, error) {
	if messages == nil {
		messages = []session.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}
	return data, nil
}
