package http

import (
	"net/http"
	"strconv"

	syncx "github.com/mind-engage/survey-registry/internal/sync"
)

// GET /events?after=0&limit=100
func ListEventsHandler(repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		evs, err := repo.List(r.Context(), after, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if evs == nil {
			evs = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
