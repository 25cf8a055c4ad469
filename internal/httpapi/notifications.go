package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
)

type settingsRequest struct {
	FortuneReady  *bool `json:"fortune_ready" validate:"required"`
	DailyBonus    *bool `json:"daily_bonus" validate:"required"`
	AdminMessages *bool `json:"admin_messages" validate:"required"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := auth.Subject(r.Context())
	list, err := s.svc.Notifications.List(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	unread, err := s.svc.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"notifications": list, "unread": unread})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	unread, err := s.svc.Notifications.UnreadCount(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"unread": unread})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid notification id")
		return
	}
	if err := s.svc.Notifications.MarkRead(r.Context(), auth.Subject(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadAll(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Notifications.MarkAllRead(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Notifications.Settings(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !s.decode(w, r, &req) {
		return
	}
	settings := models.NotificationSettings{
		FortuneReady:  *req.FortuneReady,
		DailyBonus:    *req.DailyBonus,
		AdminMessages: *req.AdminMessages,
	}
	if err := s.svc.Notifications.UpdateSettings(r.Context(), auth.Subject(r.Context()), settings); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, settings)
}
