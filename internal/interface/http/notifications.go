package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/application/query"
	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListNotifications handles GET /api/v1/notifications?limit=&countOnly=
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	countOnly := queryBool(r, "countOnly")

	res, err := s.deps.ListNotifications.Handle(r.Context(), query.ListNotificationsQuery{
		UserID:    userID(r.Context()),
		Limit:     queryInt(r, "limit", 0),
		CountOnly: countOnly,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if countOnly {
		writeJSON(w, r, http.StatusOK, map[string]any{"unreadCount": res.UnreadCount})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"notifications": toNotificationDTOs(res.Notifications),
		"unreadCount":   res.UnreadCount,
	})
}

type createNotificationRequest struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	ActionURL string `json:"actionUrl"`
}

// handleCreateNotification handles POST /api/v1/notifications
func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.deps.CreateNotification.Handle(r.Context(), command.CreateNotificationCommand{
		UserID:    userID(r.Context()),
		Type:      notification.Type(req.Type),
		Title:     req.Title,
		Message:   req.Message,
		ActionURL: req.ActionURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"notification": toNotificationDTO(n)})
}

type markReadRequest struct {
	NotificationID string `json:"notificationId"`
	MarkAll        bool   `json:"markAll"`
}

// handleMarkNotificationsRead handles PATCH /api/v1/notifications
func (s *Server) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.deps.MarkNotificationsRead.Handle(r.Context(), command.MarkNotificationsReadCommand{
		UserID:         userID(r.Context()),
		NotificationID: req.NotificationID,
		All:            req.MarkAll,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"updated": updated})
}

// handleDeleteNotification handles DELETE /api/v1/notifications/{id}
func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	err := s.deps.DeleteNotification.Handle(r.Context(), command.DeleteNotificationCommand{
		UserID:         userID(r.Context()),
		NotificationID: chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"deleted": true})
}
