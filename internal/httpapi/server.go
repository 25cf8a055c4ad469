// Package httpapi serves the public JSON API used by the web frontend.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/service"
)

type Services struct {
	Users         *service.UserService
	Fortunes      *service.FortuneService
	Tellers       *service.TellerService
	Bonus         *service.BonusService
	Notifications *service.NotificationService
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	MaxUploadBytes int64
	// WriteTimeout must outlast the generation timeout.
	WriteTimeout time.Duration
}

type Server struct {
	opts     Options
	log      *slog.Logger
	svc      Services
	tokens   *auth.Issuer
	validate *validator.Validate
	router   *chi.Mux
	now      func() time.Time
}

func NewServer(opts Options, log *slog.Logger, tokens *auth.Issuer, svc Services) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 8 << 20
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 90 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		opts:     opts,
		log:      log,
		svc:      svc,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   r,
		now:      time.Now,
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/register", s.handleRegister)
		api.Post("/auth/login", s.handleLogin)
		api.Get("/tellers", s.handleListTellers)

		api.Group(func(protected chi.Router) {
			protected.Use(tokens.Middleware(auth.RoleUser))

			protected.Get("/me", s.handleMe)
			protected.Put("/me", s.handleUpdateMe)
			protected.Get("/me/balance", s.handleBalance)
			protected.Get("/me/transactions", s.handleTransactions)

			protected.Route("/fortunes", func(r chi.Router) {
				r.Get("/", s.handleListFortunes)
				r.Post("/coffee", s.handleCoffee)
				r.Post("/tarot", s.handleTarot)
				r.Post("/couple", s.handleCouple)
				r.Post("/dream", s.handleDream)
				r.Post("/star", s.handleStar)
				r.Get("/{id}", s.handleGetFortune)
				r.Delete("/{id}", s.handleDeleteFortune)
			})

			protected.Post("/bonus/daily", s.handleDailyBonus)

			protected.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.handleListNotifications)
				r.Get("/unread-count", s.handleUnreadCount)
				r.Post("/read-all", s.handleReadAll)
				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handleUpdateSettings)
				r.Post("/{id}/read", s.handleMarkRead)
			})
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.opts.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("api shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}
