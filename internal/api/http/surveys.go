package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// Invalidator drops cached definitions of a survey.
type Invalidator interface {
	Invalidate(ctx context.Context, surveyID int64) error
}

// PUT /surveys/{surveyID}
func PutSurveyHandler(store survey.Store, cache Invalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "surveyID")
		if !ok {
			http.Error(w, "bad survey id", http.StatusBadRequest)
			return
		}
		var s survey.Survey
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if s.ID != 0 && s.ID != id {
			http.Error(w, "survey id mismatch", http.StatusBadRequest)
			return
		}
		s.ID = id
		if err := store.PutSurvey(r.Context(), s); err != nil {
			writeError(w, r, err)
			return
		}
		if cache != nil {
			if err := cache.Invalidate(r.Context(), id); err != nil {
				log.Printf("http: survey %d stored but cache not invalidated: %v", id, err)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /surveys/{surveyID}/questions
func GetSurveyQuestionsHandler(catalog survey.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "surveyID")
		if !ok {
			http.Error(w, "bad survey id", http.StatusBadRequest)
			return
		}
		qs, err := catalog.GetSurveyQuestions(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// PUT /assessments/{assessmentID}
func PutAssessmentHandler(store survey.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "assessmentID")
		if !ok {
			http.Error(w, "bad assessment id", http.StatusBadRequest)
			return
		}
		var a survey.Assessment
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a.ID = id
		if err := store.PutAssessment(r.Context(), a); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
