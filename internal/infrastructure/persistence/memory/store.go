// Package memory implements every repository and the progression
// transaction in process memory. It backs tests and the API when no
// DATABASE_URL is configured. State is lost on restart.
package memory

import (
	"sync"

	"github.com/feynlearn/feynlearn-hub/internal/domain/account"
	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// One RWMutex guards the maps. Progression transactions additionally take a
// per-user mutex for their whole duration, so two transactions of the same
// user never interleave while different users proceed in parallel.
// ══════════════════════════════════════════════════════════════════════════════

// Store is an in-memory implementation of the persistence ports.
type Store struct {
	mu sync.RWMutex

	// profiles by uid, profileOrder keeps creation order.
	profiles     map[string]*profile.Profile
	profileOrder []string

	// sessions by id, sessionsByUser keeps creation order per user.
	sessions       map[string]*session.Session
	sessionsByUser map[string][]string

	// notifications by id, notificationsByUser keeps creation order per user.
	notifications       map[string]*notification.Notification
	notificationsByUser map[string][]string

	// accounts by normalized email.
	accounts map[string]*account.Account

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		profiles:            make(map[string]*profile.Profile),
		sessions:            make(map[string]*session.Session),
		sessionsByUser:      make(map[string][]string),
		notifications:       make(map[string]*notification.Notification),
		notificationsByUser: make(map[string][]string),
		accounts:            make(map[string]*account.Account),
		userLocks:           make(map[string]*sync.Mutex),
	}
}

// Profiles returns the store as a profile repository.
func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

// Sessions returns the store as a session repository.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// Notifications returns the store as a notification repository.
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }

// Accounts returns the store as an account repository.
func (s *Store) Accounts() *AccountRepository { return &AccountRepository{s: s} }

func (s *Store) userLock(uid string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.userLocks[uid]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[uid] = l
	}
	return l
}

// ─────────────────────────────────────────────────────────────────────────────
// Copies. Callers never share memory with the store.
// ─────────────────────────────────────────────────────────────────────────────

func cloneProfile(p *profile.Profile) *profile.Profile {
	c := *p
	return &c
}

func cloneSession(s *session.Session) *session.Session {
	c := *s
	c.Messages = append([]session.Message(nil), s.Messages...)
	if c.Messages == nil {
		c.Messages = []session.Message{}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneNotification(n *notification.Notification) *notification.Notification {
	c := *n
	return &c
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	return &c
}
