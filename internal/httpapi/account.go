package httpapi

import (
	"net/http"
	"time"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/service"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Name      string `json:"name" validate:"required,max=100"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	BirthTime string `json:"birth_time" validate:"omitempty,datetime=15:04"`
	City      string `json:"city" validate:"max=100"`
	Gender    string `json:"gender" validate:"omitempty,oneof=female male other"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name      string `json:"name" validate:"max=100"`
	BirthDate string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"`
	BirthTime string `json:"birth_time" validate:"omitempty,datetime=15:04"`
	City      string `json:"city" validate:"max=100"`
	Gender    string `json:"gender" validate:"omitempty,oneof=female male other"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, token, err := s.svc.Users.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
		BirthDate: req.BirthDate,
		BirthTime: req.BirthTime,
		City:      req.City,
		Gender:    req.Gender,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, token, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.svc.Users.Get(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.svc.Users.UpdateProfile(r.Context(), auth.Subject(r.Context()), service.ProfileInput{
		Name:      req.Name,
		BirthDate: req.BirthDate,
		BirthTime: req.BirthTime,
		City:      req.City,
		Gender:    req.Gender,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.svc.Users.Balance(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	txs, err := s.svc.Users.Transactions(r.Context(), auth.Subject(r.Context()), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.CoinTransaction{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"transactions": txs, "limit": limit, "offset": offset})
}

func (s *Server) handleListTellers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tellers": s.svc.Tellers.List()})
}

type bonusResponse struct {
	Granted     bool      `json:"granted"`
	Amount      int       `json:"amount,omitempty"`
	Balance     int       `json:"balance"`
	NextClaimAt time.Time `json:"next_claim_at"`
}

func (s *Server) handleDailyBonus(w http.ResponseWriter, r *http.Request) {
	userID := auth.Subject(r.Context())
	now := s.now()
	grant, err := s.svc.Bonus.ClaimDailyBonus(r.Context(), userID, now)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	balance, err := s.svc.Users.Balance(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := bonusResponse{
		Granted:     grant != nil,
		Balance:     balance.Coins,
		NextClaimAt: s.svc.Bonus.NextClaimAt(now).UTC(),
	}
	if grant != nil {
		resp.Amount = grant.Amount
	}
	s.writeJSON(w, http.StatusOK, resp)
}
