package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/survey-registry/internal/answer"
	authmw "github.com/mind-engage/survey-registry/internal/auth/middleware"
	"github.com/mind-engage/survey-registry/internal/survey"
)

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Params  []string `json:"params,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps business errors and malformed definitions to 400,
// missing entities to 404 and anything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *answer.Error
	switch {
	case errors.As(err, &ae):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: ae.Code.String(), Message: ae.Message(), Params: ae.Params})
	case errors.Is(err, survey.ErrInvalidSection):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "invalidSurvey", Message: err.Error()})
	case errors.Is(err, survey.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Code: "notFound", Message: err.Error()})
	case errors.Is(err, authmw.ErrNoSubject):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		log.Printf("http: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"})
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// parseIDs reads a comma separated id list such as "1,2,3".
func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// targetUser is the user whose answers a request reads: the caller, or the
// userId query parameter for callers allowed to read everyone's answers.
func targetUser(r *http.Request) (int64, error) {
	if q := r.URL.Query().Get("userId"); q != "" {
		return strconv.ParseInt(q, 10, 64)
	}
	return authmw.UserID(r.Context())
}

// ownUser reports whether the request reads the caller's own answers.
func ownUser(r *http.Request) bool {
	q := r.URL.Query().Get("userId")
	if q == "" {
		return true
	}
	id, err := authmw.UserID(r.Context())
	return err == nil && strconv.FormatInt(id, 10) == q
}
