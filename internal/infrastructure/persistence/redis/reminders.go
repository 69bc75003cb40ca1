package redis

import (
	"context"
	"time"

	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// MarkerStore is the subset of Cache used by ReminderLedger.
type MarkerStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

// ReminderLedger records which users already got today's streak reminder.
type ReminderLedger struct {
	store MarkerStore
	zone  *time.Location
}

// NewReminderLedger creates a ledger keyed by calendar day in zone.
func NewReminderLedger(store MarkerStore, zone *time.Location) *ReminderLedger {
	if zone == nil {
		zone = timeutil.DefaultZone
	}
	return &ReminderLedger{store: store, zone: zone}
}

// Claim reports true exactly once per user and calendar day.
func (l *ReminderLedger) Claim(ctx context.Context, uid string, now time.Time) (bool, error) {
	day := timeutil.FormatDate(now, l.zone)
	return l.store.SetNX(ctx, ReminderKey(uid, day), now.Unix(), TTLReminderMarker)
}
