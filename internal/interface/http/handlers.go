package http

import (
	"net/http"

	"github.com/feynlearn/feynlearn-hub/internal/application/command"
	"github.com/feynlearn/feynlearn-hub/internal/application/query"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports liveness plus the result of every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady is the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func toAuthResponse(res *command.AuthResult) authResponse {
	return authResponse{
		Token: res.Token,
		User:  userResponse{ID: res.Identity.UserID, Email: res.Identity.Email, Name: res.Identity.Name},
	}
}

// handleRegister handles POST /api/v1/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Auth.Register(r.Context(), command.RegisterCommand{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toAuthResponse(res))
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Auth.Login(r.Context(), command.LoginCommand{Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toAuthResponse(res))
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProfile handles GET /api/v1/profile. The first call provisions
// the profile; every call runs the daily streak check.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	res, err := s.deps.EnsureProfile.Handle(r.Context(), command.EnsureProfileCommand{
		UserID:     id.UserID,
		Email:      id.Email,
		Name:       id.Name,
		DailyCheck: true,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, map[string]any{"profile": toProfileDTO(res.Profile)})
}

type updateProfileRequest struct {
	Name          *string                     `json:"name"`
	Avatar        *string                     `json:"avatar"`
	Bio           *string                     `json:"bio"`
	Preferences   *profile.PreferencesPatch   `json:"preferences"`
	Notifications *profile.NotificationsPatch `json:"notifications"`
	Recalculate   bool                        `json:"recalculate"`
}

// handleUpdateProfile handles PATCH /api/v1/profile
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.deps.UpdateProfile.Handle(r.Context(), command.UpdateProfileCommand{
		UserID: userID(r.Context()),
		Patch: profile.Patch{
			Name:          req.Name,
			Avatar:        req.Avatar,
			Bio:           req.Bio,
			Preferences:   req.Preferences,
			Notifications: req.Notifications,
		},
		Recalculate: req.Recalculate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"profile": toProfileDTO(p)})
}

// handleCheckIn handles POST /api/v1/profile/check-in
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.CheckIn.Handle(r.Context(), command.CheckInCommand{UserID: userID(r.Context())})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"streak": res.Streak,
		"events": toEventDTOs(res.Events),
	})
}

// handleRecalculate handles POST /api/v1/profile/recalculate
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.RecalculateStats.Handle(r.Context(), command.RecalculateStatsCommand{UserID: userID(r.Context())})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Drifted {
		logger.FromContext(r.Context()).Info("profile stats repaired", logger.Operation("recalculate"))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"profile": toProfileDTO(res.Profile),
		"drifted": res.Drifted,
	})
}

// handleGetDashboard handles GET /api/v1/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.GetDashboard.Handle(r.Context(), userID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toDashboardDTO(d))
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard. Authenticated
// callers also get their own rank.
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetLeaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Limit:    queryInt(r, "limit", 0),
		ViewerID: userID(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
