package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.Repository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

var _ profile.Repository = (*ProfileRepository)(nil)

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `
	uid, email, name, avatar, bio,
	xp, level, streak, last_active_date, total_sessions, total_points,
	preferences, notification_settings, created_at, updated_at`

// Create creates a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	prefsJSON, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	notifJSON, err := json.Marshal(p.Notifications)
	if err != nil {
		return fmt.Errorf("failed to marshal notification settings: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		p.UID, p.Email, p.Name, p.Avatar, p.Bio,
		p.XP, p.Level, p.Streak, nullTime(p.LastActiveDate), p.TotalSessions, p.TotalPoints,
		prefsJSON, notifJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("profile", "Create", shared.ErrAlreadyExists, "profile already exists")
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByUID returns a profile.
func (r *ProfileRepository) GetByUID(ctx context.Context, uid string) (*profile.Profile, error) {
	return getProfile(ctx, r.conn, uid, false)
}

// UpdateDetails writes the non-progression fields.
func (r *ProfileRepository) UpdateDetails(ctx context.Context, p *profile.Profile) error {
	prefsJSON, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	notifJSON, err := json.Marshal(p.Notifications)
	if err != nil {
		return fmt.Errorf("failed to marshal notification settings: %w", err)
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE profiles SET
			name = $2, avatar = $3, bio = $4,
			preferences = $5, notification_settings = $6, updated_at = $7
		WHERE uid = $1
	`, p.UID, p.Name, p.Avatar, p.Bio, prefsJSON, notifJSON, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProfileNotFound
	}
	return nil
}

// ListSnapshots returns the leaderboard slice of every profile in creation order.
func (r *ProfileRepository) ListSnapshots(ctx context.Context) ([]profile.Snapshot, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT uid, name, avatar, xp, level, streak
		FROM profiles
		ORDER BY created_at, uid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []profile.Snapshot
	for rows.Next() {
		var s profile.Snapshot
		if err := rows.Scan(&s.UID, &s.Name, &s.Avatar, &s.XP, &s.Level, &s.Streak); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListAll returns every profile in creation order.
func (r *ProfileRepository) ListAll(ctx context.Context) ([]*profile.Profile, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at, uid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers shared with the progression transaction
// ─────────────────────────────────────────────────────────────────────────────

func getProfile(ctx context.Context, q Querier, uid string, forUpdate bool) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE uid = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanProfile(q.QueryRow(ctx, query, uid))
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	var lastActive *time.Time
	var prefsJSON, notifJSON []byte

	err := row.Scan(
		&p.UID, &p.Email, &p.Name, &p.Avatar, &p.Bio,
		&p.XP, &p.Level, &p.Streak, &lastActive, &p.TotalSessions, &p.TotalPoints,
		&prefsJSON, &notifJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	if lastActive != nil {
		p.LastActiveDate = lastActive.UTC()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	p.Preferences = profile.DefaultPreferences()
	if err := json.Unmarshal(prefsJSON, &p.Preferences); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}
	p.Notifications = profile.DefaultNotificationSettings()
	if err := json.Unmarshal(notifJSON, &p.Notifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification settings: %w", err)
	}

	return &p, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
