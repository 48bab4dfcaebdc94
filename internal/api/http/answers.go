package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mind-engage/survey-registry/internal/answer"
	authmw "github.com/mind-engage/survey-registry/internal/auth/middleware"
	"github.com/mind-engage/survey-registry/internal/rbac"
	"github.com/mind-engage/survey-registry/internal/survey"
)

type answersRequest struct {
	SurveyID int64                  `json:"surveyId"`
	Answers  []survey.LogicalAnswer `json:"answers"`
	Status   survey.Status          `json:"status,omitempty"`
	Language string                 `json:"language,omitempty"`
}

type answersResponse struct {
	MasterID string        `json:"masterId"`
	Status   survey.Status `json:"status"`
	Rows     int           `json:"rows"`
	Comments int           `json:"comments"`
}

// submit resolves the master id and stores the batch. With ?dryRun=true it
// only validates.
func submit(svc *answer.Service, w http.ResponseWriter, r *http.Request, req answersRequest, assessmentID *int64) {
	uid, err := authmw.UserID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := svc.ResolveMaster(r.Context(), uid, req.SurveyID, assessmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if dry, _ := strconv.ParseBool(r.URL.Query().Get("dryRun")); dry {
		rows, err := svc.ValidateAndProcessBatch(r.Context(), m, req.Answers, req.Status, req.Language)
		if err != nil {
			writeError(w, r, err)
			return
		}
		st := req.Status
		if st == "" {
			st = survey.StatusCompleted
		}
		writeJSON(w, http.StatusOK, answersResponse{MasterID: m.Key(), Status: st, Rows: len(rows)})
		return
	}
	b, err := svc.CreateAnswers(r.Context(), answer.Submission{
		Master: m, Answers: req.Answers, Status: req.Status, Language: req.Language,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, answersResponse{
		MasterID: m.Key(), Status: b.Status, Rows: len(b.Rows), Comments: len(b.Comments),
	})
}

// POST /answers
func CreateAnswersHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req answersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.SurveyID <= 0 {
			http.Error(w, "surveyId required", http.StatusBadRequest)
			return
		}
		submit(svc, w, r, req, nil)
	}
}

// GET /answers/{surveyID} and /answers/{surveyID}/history
func ListAnswersHandler(svc *answer.Service, history bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, ok := pathID(r, "surveyID")
		if !ok {
			http.Error(w, "bad survey id", http.StatusBadRequest)
			return
		}
		uid, err := targetUser(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		m := survey.MasterID{UserID: uid, SurveyID: sid}
		var out []survey.LogicalAnswer
		if history {
			out, err = svc.ListAnswerHistory(r.Context(), m)
		} else {
			out, err = svc.ListAnswers(r.Context(), m)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		if out == nil {
			out = []survey.LogicalAnswer{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /assessment-answers/{assessmentID}
func CreateAssessmentAnswersHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, ok := pathID(r, "assessmentID")
		if !ok {
			http.Error(w, "bad assessment id", http.StatusBadRequest)
			return
		}
		var req answersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		submit(svc, w, r, req, &aid)
	}
}

// GET /assessment-answers/{assessmentID}?surveyId=
func GetAssessmentAnswersHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, ok := pathID(r, "assessmentID")
		if !ok {
			http.Error(w, "bad assessment id", http.StatusBadRequest)
			return
		}
		var sid int64
		if q := r.URL.Query().Get("surveyId"); q != "" {
			v, err := strconv.ParseInt(q, 10, 64)
			if err != nil {
				http.Error(w, "bad surveyId", http.StatusBadRequest)
				return
			}
			sid = v
		}
		uid, err := targetUser(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		view, err := svc.AssessmentAnswers(r.Context(), uid, aid, sid)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if view.Answers == nil {
			view.Answers = []survey.LogicalAnswer{}
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// GET /assessment-answers?group=&status=
func ListAssessmentStatusHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		st := survey.Status(q.Get("status"))
		if st != "" && st != survey.StatusNew && !st.Submittable() {
			http.Error(w, "bad status", http.StatusBadRequest)
			return
		}
		uid, err := targetUser(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out, err := svc.AssessmentList(r.Context(), uid, q.Get("group"), st)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /participants/search  {"questions":[{"id":1,"answers":[...],"exclude":false}]}
func SearchParticipantsHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c answer.SearchCriteria
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		ids, err := svc.SearchParticipants(r.Context(), c)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(ids), "userIds": ids})
	}
}

// POST /assessment-answers/{assessmentID}/copy  {"prevAssessmentId": 3, "status": "completed"}
func CopyAssessmentAnswersHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aid, ok := pathID(r, "assessmentID")
		if !ok {
			http.Error(w, "bad assessment id", http.StatusBadRequest)
			return
		}
		var req struct {
			PrevAssessmentID int64         `json:"prevAssessmentId"`
			Status           survey.Status `json:"status,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PrevAssessmentID <= 0 {
			http.Error(w, "prevAssessmentId required", http.StatusBadRequest)
			return
		}
		uid, err := authmw.UserID(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := svc.CopyAssessmentAnswers(r.Context(), uid, aid, req.PrevAssessmentID, req.Status); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /files/{fileID}
func FileHandler(svc *answer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "fileID")
		if !ok {
			http.Error(w, "bad file id", http.StatusBadRequest)
			return
		}
		uid, err := authmw.UserID(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		viewAll := policy.Has(rbac.RoleFromContext(r.Context()), "answers:view-all")
		f, u, err := svc.FileURL(r.Context(), uid, viewAll, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": f.ID, "name": f.Name, "url": u})
	}
}
