package query_test

import (
	"context"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/infrastructure/persistence/memory"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

func completeWith(ctx context.Context, store *memory.Store, uid string, s *session.Session, xp int) error {
	h := command.NewCompleteSessionHandler(store, command.Env{Clock: timeutil.NewFixedClock(now)})
	_, err := h.Handle(ctx, command.CompleteSessionCommand{UserID: uid, SessionID: s.ID, Score: 50, XPEarned: xp})
	return err
}
