package memory

import (
	"context"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ProfileRepository implements profile.Repository.
type ProfileRepository struct {
	s *Store
}

var _ profile.Repository = (*ProfileRepository)(nil)

// Create stores a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.profiles[p.UID]; ok {
		return shared.NewDomainError("profile", "Create", shared.ErrAlreadyExists, "profile already exists")
	}
	r.s.profiles[p.UID] = cloneProfile(p)
	r.s.profileOrder = append(r.s.profileOrder, p.UID)
	return nil
}

// GetByUID returns a profile.
func (r *ProfileRepository) GetByUID(ctx context.Context, uid string) (*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.profiles[uid]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

// UpdateDetails writes the non-progression fields of p.
func (r *ProfileRepository) UpdateDetails(ctx context.Context, p *profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.profiles[p.UID]
	if !ok {
		return shared.ErrProfileNotFound
	}
	stored.Name = p.Name
	stored.Avatar = p.Avatar
	stored.Bio = p.Bio
	stored.Preferences = p.Preferences
	stored.Notifications = p.Notifications
	stored.UpdatedAt = p.UpdatedAt
	return nil
}

// ListSnapshots returns the public slice of every profile in creation order.
func (r *ProfileRepository) ListSnapshots(ctx context.Context) ([]profile.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]profile.Snapshot, 0, len(r.s.profileOrder))
	for _, uid := range r.s.profileOrder {
		out = append(out, r.s.profiles[uid].Snapshot())
	}
	return out, nil
}

// ListAll returns every profile in creation order.
func (r *ProfileRepository) ListAll(ctx context.Context) ([]*profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*profile.Profile, 0, len(r.s.profileOrder))
	for _, uid := range r.s.profileOrder {
		out = append(out, cloneProfile(r.s.profiles[uid]))
	}
	return out, nil
}
