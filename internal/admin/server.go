// Package admin serves the operator console API on its own listener.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/service"
)

type Server struct {
	addr     string
	log      *slog.Logger
	admin    *service.AdminService
	validate *validator.Validate
	router   *chi.Mux
}

func NewServer(addr string, log *slog.Logger, tokens *auth.Issuer, admin *service.AdminService) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:     addr,
		log:      log,
		admin:    admin,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   r,
	}
	r.Post("/api/admin/login", s.handleLogin)
	r.Group(func(protected chi.Router) {
		protected.Use(tokens.Middleware(auth.RoleAdmin))
		protected.Get("/api/admin/stats", s.handleStats)
		protected.Post("/api/admin/broadcast", s.handleBroadcast)
		protected.Route("/api/admin/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Get("/{id}", s.handleGetUser)
			r.Delete("/{id}", s.handleDeleteUser)
			r.Post("/{id}/coins", s.handleGrantCoins)
		})
		protected.Route("/api/admin/fortunes", func(r chi.Router) {
			r.Get("/", s.handleListFortunes)
			r.Delete("/{id}", s.handleDeleteFortune)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin console listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type grantRequest struct {
	Amount int    `json:"amount" validate:"required,gt=0,lte=100000"`
	Reason string `json:"reason" validate:"max=200"`
}

type broadcastRequest struct {
	Title   string  `json:"title" validate:"max=120"`
	Message string  `json:"message" validate:"required,max=2000"`
	Link    string  `json:"link" validate:"omitempty,max=500"`
	UserIDs []int64 `json:"user_ids" validate:"omitempty,dive,gt=0"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, err := s.admin.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Stats(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.admin.Broadcast(r.Context(), service.BroadcastInput{
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
		UserIDs: req.UserIDs,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.log.Info("broadcast finished", "sent", res.Sent, "muted", res.Muted, "failed", res.Failed, "total", res.Total)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	users, total, err := s.admin.ListUsers(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"users": users, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	user, err := s.admin.GetUser(r.Context(), id)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.admin.DeleteUser(r.Context(), id); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrantCoins(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req grantRequest
	if !s.decode(w, r, &req) {
		return
	}
	balance, err := s.admin.GrantCoins(r.Context(), id, req.Amount, req.Reason)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleListFortunes(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	fortuneType := models.FortuneType(strings.ToLower(r.URL.Query().Get("type")))
	if fortuneType != "" && !fortuneType.Valid() {
		http.Error(w, "unknown fortune type", http.StatusBadRequest)
		return
	}
	fortunes, total, err := s.admin.ListFortunes(r.Context(), fortuneType, limit, offset)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if fortunes == nil {
		fortunes = []models.Fortune{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fortunes": fortunes, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleDeleteFortune(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.admin.DeleteFortune(r.Context(), id); err != nil {
		s.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.badRequest(w, err)
		return false
	}
	return true
}

func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrFortuneNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidInput):
		s.badRequest(w, err)
	default:
		s.internalError(w, err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func page(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
