package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/application/query"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListSessions handles GET /api/v1/sessions?limit=&recent=
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.ListSessions.Handle(r.Context(), query.ListSessionsQuery{
		UserID: userID(r.Context()),
		Limit:  queryInt(r, "limit", 0),
		Recent: queryBool(r, "recent"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"sessions": toSessionDTOs(list)})
}

type createSessionRequest struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// handleCreateSession handles POST /api/v1/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.deps.CreateSession.Handle(r.Context(), command.CreateSessionCommand{
		UserID:  userID(r.Context()),
		Topic:   req.Topic,
		Subject: req.Subject,
		Content: req.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"session": toSessionDTO(sess)})
}

// handleGetSession handles GET /api/v1/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.GetSession.Handle(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"session": toSessionDTO(sess)})
}

type patchSessionRequest struct {
	Topic             *string `json:"topic"`
	Subject           *string `json:"subject"`
	Content           *string `json:"content"`
	Duration          *int    `json:"duration"`
	QuestionsAsked    *int    `json:"questionsAsked"`
	QuestionsAnswered *int    `json:"questionsAnswered"`
}

// handlePatchSession handles PATCH /api/v1/sessions/{id}. Fields outside
// the whitelist are ignored.
func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	var req patchSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := s.deps.PatchSession.Handle(r.Context(), command.PatchSessionCommand{
		UserID:    userID(r.Context()),
		SessionID: chi.URLParam(r, "id"),
		Patch: session.Patch{
			Topic:             req.Topic,
			Subject:           req.Subject,
			Content:           req.Content,
			Duration:          req.Duration,
			QuestionsAsked:    req.QuestionsAsked,
			QuestionsAnswered: req.QuestionsAnswered,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"session": toSessionDTO(sess)})
}

type appendMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleAppendMessage handles POST /api/v1/sessions/{id}/messages
func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := s.deps.AppendMessage.Handle(r.Context(), command.AppendMessageCommand{
		UserID:    userID(r.Context()),
		SessionID: chi.URLParam(r, "id"),
		Role:      session.Role(req.Role),
		Content:   req.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"message": msg})
}

type completeSessionRequest struct {
	Score    int `json:"score"`
	XPEarned int `json:"xpEarned"`
}

// handleCompleteSession handles POST /api/v1/sessions/{id}/complete. A
// repeated call answers 409 and awards nothing.
func (s *Server) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	var req completeSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.CompleteSession.Handle(r.Context(), command.CompleteSessionCommand{
		UserID:    userID(r.Context()),
		SessionID: chi.URLParam(r, "id"),
		Score:     req.Score,
		XPEarned:  req.XPEarned,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"session":   toSessionDTO(res.Session),
		"profile":   toProfileDTO(res.Profile),
		"events":    toEventDTOs(res.Events),
		"leveledUp": res.LeveledUp,
	})
}

// handleAbandonSession handles POST /api/v1/sessions/{id}/abandon
func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.AbandonSession.Handle(r.Context(), command.AbandonSessionCommand{
		UserID:    userID(r.Context()),
		SessionID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"session": toSessionDTO(sess)})
}
