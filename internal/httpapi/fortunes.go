package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/auth"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/models"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/service"
)

const maxCupPhotos = 3

type tarotRequest struct {
	TellerID string   `json:"teller_id" validate:"required"`
	Question string   `json:"question" validate:"max=500"`
	Cards    []string `json:"cards" validate:"required,min=1,max=10,dive,required,max=64"`
}

type coupleRequest struct {
	TellerID         string `json:"teller_id" validate:"required"`
	PartnerName      string `json:"partner_name" validate:"required,max=100"`
	PartnerBirthDate string `json:"partner_birth_date" validate:"required,datetime=2006-01-02"`
	Question         string `json:"question" validate:"max=500"`
}

type dreamRequest struct {
	TellerID    string `json:"teller_id" validate:"required"`
	Description string `json:"description" validate:"required,min=10,max=4000"`
}

type starRequest struct {
	TellerID  string `json:"teller_id" validate:"required"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	BirthTime string `json:"birth_time" validate:"omitempty,datetime=15:04"`
	City      string `json:"city" validate:"max=100"`
	Topic     string `json:"topic" validate:"max=200"`
}

type fortuneResponse struct {
	Fortune *models.Fortune `json:"fortune"`
	Balance *int            `json:"balance,omitempty"`
	Saved   bool            `json:"saved"`
	Warning string          `json:"warning,omitempty"`
}

// writeFortuneResult renders a paid action outcome. A reading that was
// generated but not stored is still delivered with saved=false.
func (s *Server) writeFortuneResult(w http.ResponseWriter, r *http.Request, res *service.PaidActionResult, err error) {
	if err != nil {
		if res != nil && errors.Is(err, service.ErrPersistFailed) {
			s.writeJSON(w, http.StatusOK, fortuneResponse{
				Fortune: res.Fortune,
				Balance: res.Balance,
				Saved:   false,
				Warning: "your reading is shown below but could not be saved to your history",
			})
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, fortuneResponse{Fortune: res.Fortune, Balance: res.Balance, Saved: res.Saved})
}

func (s *Server) handleCoffee(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes*maxCupPhotos+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "expected multipart form with cup photos")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["photos"]
	if len(files) == 0 || len(files) > maxCupPhotos {
		s.writeError(w, http.StatusBadRequest, "invalid_input", fmt.Sprintf("between 1 and %d cup photos are required", maxCupPhotos))
		return
	}
	photos := make([][]byte, 0, len(files))
	for _, fh := range files {
		if fh.Size > s.opts.MaxUploadBytes {
			s.writeError(w, http.StatusRequestEntityTooLarge, "photo_too_large", fmt.Sprintf("%s exceeds %d bytes", fh.Filename, s.opts.MaxUploadBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_input", "could not read uploaded photo")
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_input", "could not read uploaded photo")
			return
		}
		photos = append(photos, data)
	}

	res, err := s.svc.Fortunes.Coffee(r.Context(), auth.Subject(r.Context()), service.CoffeeInput{
		TellerID: strings.TrimSpace(r.FormValue("teller_id")),
		Photos:   photos,
		Note:     r.FormValue("note"),
	})
	s.writeFortuneResult(w, r, res, err)
}

func (s *Server) handleTarot(w http.ResponseWriter, r *http.Request) {
	var req tarotRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Fortunes.Tarot(r.Context(), auth.Subject(r.Context()), service.TarotInput{
		TellerID: req.TellerID,
		Question: req.Question,
		Cards:    req.Cards,
	})
	s.writeFortuneResult(w, r, res, err)
}

func (s *Server) handleCouple(w http.ResponseWriter, r *http.Request) {
	var req coupleRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Fortunes.Couple(r.Context(), auth.Subject(r.Context()), service.CoupleInput{
		TellerID:         req.TellerID,
		PartnerName:      req.PartnerName,
		PartnerBirthDate: req.PartnerBirthDate,
		Question:         req.Question,
	})
	s.writeFortuneResult(w, r, res, err)
}

func (s *Server) handleDream(w http.ResponseWriter, r *http.Request) {
	var req dreamRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Fortunes.Dream(r.Context(), auth.Subject(r.Context()), service.DreamInput{
		TellerID:    req.TellerID,
		Description: req.Description,
	})
	s.writeFortuneResult(w, r, res, err)
}

func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	var req starRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Fortunes.Star(r.Context(), auth.Subject(r.Context()), service.StarInput{
		TellerID:  req.TellerID,
		BirthDate: req.BirthDate,
		BirthTime: req.BirthTime,
		City:      req.City,
		Topic:     req.Topic,
	})
	s.writeFortuneResult(w, r, res, err)
}

func (s *Server) handleListFortunes(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	fortunes, err := s.svc.Fortunes.List(r.Context(), auth.Subject(r.Context()), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if fortunes == nil {
		fortunes = []models.Fortune{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fortunes": fortunes, "limit": limit, "offset": offset})
}

func (s *Server) handleGetFortune(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid fortune id")
		return
	}
	f, err := s.svc.Fortunes.Get(r.Context(), auth.Subject(r.Context()), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFortune(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "invalid fortune id")
		return
	}
	if err := s.svc.Fortunes.Delete(r.Context(), auth.Subject(r.Context()), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
