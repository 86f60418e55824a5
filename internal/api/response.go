package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/payment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, dataResponse{Data: v})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindIllegalTransition:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError maps an error from the service layer onto the error
// envelope. Anything unclassified is logged and reported as an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payment.ErrGatewayFailure):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("payment gateway error")
		writeError(w, http.StatusBadGateway, "payment_gateway_error", payment.ErrGatewayFailure.Error())
		return
	case errors.Is(err, payment.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, string(apperr.KindInternal), err.Error())
		return
	}

	if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
		writeJSON(w, statusFor(e.Kind), ErrorResponse{
			Error:     string(e.Kind),
			Message:   e.Message,
			Fields:    e.Fields,
			Conflicts: e.Conflicts,
		})
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, string(apperr.KindInternal), "internal error")
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required", nil)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, errInvalidMoney) {
			return apperr.Validation("invalid request body", map[string]string{"amount": errInvalidMoney.Error()})
		}
		return apperr.Validation("invalid request body", nil)
	}
	return nil
}
