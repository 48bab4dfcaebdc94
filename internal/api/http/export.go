package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mind-engage/survey-registry/internal/export"
	"github.com/mind-engage/survey-registry/internal/storage"
)

// GET /answers/export?userIds=1,2&format=csv|xlsx[&archive=true]
//
// With archive=true the file is written to blob storage and its URL is
// returned instead of the file itself.
func ExportHandler(ex *export.Exporter, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ids, err := parseIDs(q.Get("userIds"))
		if err != nil || len(ids) == 0 {
			http.Error(w, "userIds required", http.StatusBadRequest)
			return
		}
		f, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if archive, _ := strconv.ParseBool(q.Get("archive")); archive {
			if blobs == nil {
				http.Error(w, "blob storage not configured", http.StatusNotImplemented)
				return
			}
			u, err := ex.Archive(r.Context(), blobs, f, ids)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"url": u})
			return
		}
		recs, err := ex.Records(r.Context(), ids)
		if err != nil {
			writeError(w, r, err)
			return
		}
		name := fmt.Sprintf("answers-%s.%s", time.Now().UTC().Format("20060102"), f)
		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		if err := export.Write(w, f, recs, len(ids) != 1); err != nil {
			writeError(w, r, err)
		}
	}
}

// GET /assessment-answers/export?surveyId=1&questionIds=2,3&userIds=4&format=csv|xlsx
func AssessmentExportHandler(ex *export.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sid, err := strconv.ParseInt(q.Get("surveyId"), 10, 64)
		if err != nil || sid <= 0 {
			http.Error(w, "surveyId required", http.StatusBadRequest)
			return
		}
		qids, err := parseIDs(q.Get("questionIds"))
		if err != nil {
			http.Error(w, "bad questionIds", http.StatusBadRequest)
			return
		}
		uids, err := parseIDs(q.Get("userIds"))
		if err != nil {
			http.Error(w, "bad userIds", http.StatusBadRequest)
			return
		}
		f, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		recs, err := ex.AssessmentRecords(r.Context(), export.AssessmentQuery{SurveyID: sid, QuestionIDs: qids, UserIDs: uids})
		if err != nil {
			writeError(w, r, err)
			return
		}
		name := fmt.Sprintf("assessment-answers-%d-%s.%s", sid, time.Now().UTC().Format("20060102"), f)
		w.Header().Set("Content-Type", f.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		if err := export.Write(w, f, recs, true); err != nil {
			writeError(w, r, err)
		}
	}
}

// POST /answers/import  multipart: file=<csv>, maps=<IDMaps JSON>
func ImportHandler(ex *export.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		var maps export.IDMaps
		if err := json.Unmarshal([]byte(r.FormValue("maps")), &maps); err != nil {
			http.Error(w, "bad maps json", http.StatusBadRequest)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		n, err := ex.Import(r.Context(), f, maps)
		if err != nil {
			// malformed files and unmapped ids are the caller's problem
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"inserted": n})
	}
}
