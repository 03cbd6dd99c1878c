package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dmvault/internal/artifact"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondServiceError maps an artifact error onto the right HTTP status.
// Validation failures return the full list of messages.
func respondServiceError(w http.ResponseWriter, err error) {
	if verr, ok := artifact.AsValidation(err); ok {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": verr.Problems})
		return
	}
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, artifact.ErrTransferFailed):
		respondError(w, http.StatusBadGateway, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}

// respondFlash honours the redirect-and-flash pattern when the form carries a
// local redirect target; API clients get plain JSON instead.
func respondFlash(w http.ResponseWriter, r *http.Request, status int, flash string, payload any) {
	if loc := r.FormValue("redirect"); loc != "" && strings.HasPrefix(loc, "/") && !strings.HasPrefix(loc, "//") {
		http.SetCookie(w, &http.Cookie{
			Name:   "flash",
			Value:  url.QueryEscape(flash),
			Path:   "/",
			MaxAge: 60,
		})
		http.Redirect(w, r, loc, http.StatusSeeOther)
		return
	}
	respondJSON(w, status, payload)
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("a positive numeric id is required")
	}
	return id, nil
}
