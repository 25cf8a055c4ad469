package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/repository"
	"github.com/syecodesoftware-del/mystic-brew-fortune/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Cost    *int   `json:"cost,omitempty"`
	Balance *int   `json:"balance,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// decode reads a JSON body into dst and runs its validate tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// writeServiceError maps domain errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *service.PaidActionError
	if errors.As(err, &pe) {
		s.writePaidActionError(w, r, pe)
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrWeakPassword):
		s.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, repository.ErrEmailTaken):
		s.writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		s.writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, repository.ErrFortuneNotFound):
		s.writeError(w, http.StatusNotFound, "fortune_not_found", err.Error())
	case errors.Is(err, repository.ErrNotificationNotFound):
		s.writeError(w, http.StatusNotFound, "notification_not_found", err.Error())
	default:
		s.log.Error("api handler error", "path", r.URL.Path, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (s *Server) writePaidActionError(w http.ResponseWriter, r *http.Request, pe *service.PaidActionError) {
	body := errorBody{Balance: pe.Balance}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(pe, service.ErrInsufficientFunds):
		status, body.Code, body.Error = http.StatusPaymentRequired, "insufficient_funds", "not enough coins for this reading"
		cost := pe.Cost
		body.Cost = &cost
	case errors.Is(pe, service.ErrRequestInFlight):
		status, body.Code, body.Error = http.StatusConflict, "request_in_flight", "a reading is already in progress"
	case errors.Is(pe, service.ErrGenerationTimeout):
		status, body.Code, body.Error = http.StatusGatewayTimeout, "generation_timeout", "the fortune teller took too long; your coins were returned"
	case errors.Is(pe, service.ErrGenerationFailed):
		status, body.Code, body.Error = http.StatusBadGateway, "generation_failed", "the reading could not be generated; your coins were returned"
	case errors.Is(pe, service.ErrRefundFailed):
		body.Code, body.Error = "refund_failed", "the reading failed and the refund did not go through; support has been notified"
	default:
		body.Code, body.Error = "ledger_error", "could not update your balance, please try again"
	}
	if status >= 500 {
		s.log.Error("paid action failed", "path", r.URL.Path, "code", body.Code, "err", pe)
	}
	s.writeJSON(w, status, body)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

// page reads limit/offset query parameters with sane bounds.
func page(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
