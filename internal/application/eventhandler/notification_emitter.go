// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFICATION EMITTER
// Превращает события прогрессии в записи уведомлений.
//
// Обработчик вызывается шиной асинхронно, уже после коммита транзакции,
// поэтому ошибка записи уведомления не откатывает прогрессию: она
// логируется и возвращается шине, которая тоже только логирует.
// ═══════════════════════════════════════════════════════════════════════════

// NotificationEmitter создаёт уведомления по событиям.
type NotificationEmitter struct {
	notifications notification.Repository
	clock         timeutil.Clock
	logger        *logger.Logger
}

// NewNotificationEmitter создаёт новый обработчик.
func NewNotificationEmitter(
	notifications notification.Repository,
	clock timeutil.Clock,
	log *logger.Logger,
) *NotificationEmitter {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationEmitter{
		notifications: notifications,
		clock:         clock,
		logger:        log.With(logger.Component("notification_emitter")),
	}
}

// Register подписывает обработчик на все события, у которых есть текст.
func (h *NotificationEmitter) Register(bus shared.EventSubscriber) error {
	for _, t := range progression.EventTypes() {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return bus.Subscribe(shared.EventProfileProvisioned, h.Handle)
}

// Handle обрабатывает одно событие.
func (h *NotificationEmitter) Handle(ctx context.Context, event shared.Event) error {
	uid := event.AggregateID()

	n, err := h.build(event)
	if err != nil {
		h.logger.Warn("failed to build notification",
			logger.UserID(uid),
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return err
	}
	if n == nil {
		return nil
	}

	if err := h.notifications.Create(ctx, n); err != nil {
		h.logger.Error("failed to store notification",
			logger.UserID(uid),
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return err
	}

	h.logger.Debug("notification created",
		logger.UserID(uid),
		logger.NotificationID(n.ID),
		logger.String("type", n.Type.String()),
	)
	return nil
}

func (h *NotificationEmitter) build(event shared.Event) (*notification.Notification, error) {
	now := h.clock.Now()

	switch e := event.(type) {
	case progression.Occurred:
		n, ok, err := notification.FromEvent(e.AggregateID(), e.Event, now)
		if err != nil || !ok {
			return nil, err
		}
		return n, nil

	case shared.ProfileProvisionedEvent:
		return notification.Welcome(e.AggregateID(), now)

	default:
		return nil, nil
	}
}
