package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/wavelength/internal/game"
	"github.com/robalobadob/wavelength/internal/gifs"
	"github.com/robalobadob/wavelength/internal/upload"
)

const maxJSONBody = 64 * 1024

var validate = validator.New()

// bindMessages maps field -> validation tag -> client message.
type bindMessages map[string]map[string]string

// bindJSON decodes the body into req and runs struct validation. On failure it
// writes a 400 and reports false.
func bindJSON(w http.ResponseWriter, r *http.Request, req any, messages bindMessages, fallback string) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to its status and client message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= 500 {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	var upstream *gifs.UpstreamError
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound, "Game not found or expired"
	case errors.Is(err, game.ErrValidation),
		errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrInvalidPhase):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, game.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, game.ErrConflict):
		return http.StatusConflict, "The game changed while saving, please retry"
	case errors.Is(err, game.ErrAllocationExhausted):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, game.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable, please retry"
	case errors.Is(err, upload.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Image uploads are not configured"
	case errors.Is(err, gifs.ErrNotConfigured):
		return http.StatusInternalServerError, "GIPHY_API_KEY not configured"
	case errors.As(err, &upstream):
		return upstream.Status, upstream.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
