package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	msg := detail
	if msg == "" {
		msg = title
	}
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Error: msg}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// statusFor is the single error -> HTTP status table.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Bad Request"
	case errors.Is(err, domain.ErrReauthRequired):
		return http.StatusUnauthorized, "Reauthorization Required"
	case errors.Is(err, domain.ErrNoConnection):
		return http.StatusForbidden, "Google Not Connected"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrLocationNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, "Configuration Error"
	case domain.IsProviderError(err):
		return http.StatusInternalServerError, "Upstream Error"
	}
	return http.StatusInternalServerError, "Internal Server Error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeProblem(w, status, title, err.Error())
}
