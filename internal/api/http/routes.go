package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/survey-registry/internal/answer"
	authmw "github.com/mind-engage/survey-registry/internal/auth/middleware"
	"github.com/mind-engage/survey-registry/internal/export"
	"github.com/mind-engage/survey-registry/internal/ratelimit"
	"github.com/mind-engage/survey-registry/internal/rbac"
	"github.com/mind-engage/survey-registry/internal/storage"
	"github.com/mind-engage/survey-registry/internal/survey"
	syncx "github.com/mind-engage/survey-registry/internal/sync"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Auth     *authmw.AuthService
	Users    *authmw.Users
	Login    authmw.LoginOptions
	Store    survey.Store
	Catalog  survey.Catalog // defaults to Store
	Cache    Invalidator    // optional
	Service  *answer.Service
	Exporter *export.Exporter
	Blobs    storage.BlobStore  // optional
	Events   *syncx.EventRepo   // optional
	Limiter  *ratelimit.Limiter // optional, applied to submissions
	DB       Pinger             // optional, checked by /readyz
	// LocalAuth mounts POST /auth/login.
	LocalAuth bool
	// TrustTokenRole keeps the token role for users missing from the users
	// table.
	TrustTokenRole bool
}

// bySubject keys rate limits on the authenticated user, falling back to the
// client address.
func bySubject(r *http.Request) string {
	if sub := authmw.SubjectFromContext(r.Context()); sub != "" {
		return "u:" + sub
	}
	return "ip:" + ratelimit.ByRemoteIP(r)
}

var policy = rbac.NewChecker(nil)

// ownOrAll admits callers reading their own answers with perm, and callers
// allowed to read everyone's answers.
func ownOrAll(perm string) func(http.Handler) http.Handler {
	return rbac.RequireOwnerOr("answers:view-all", func(r *http.Request) bool {
		return ownUser(r) && policy.Has(rbac.RoleFromContext(r.Context()), perm)
	})
}

// Mount registers the registry routes on r.
func Mount(r chi.Router, d Deps) {
	catalog := d.Catalog
	if catalog == nil {
		catalog = d.Store
	}
	submitLimit := func(h http.Handler) http.Handler { return h }
	if d.Limiter != nil {
		submitLimit = d.Limiter.Middleware(bySubject)
	}

	if d.LocalAuth {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Users, d.Login))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))
		if d.Users != nil {
			pr.Use(authmw.AttachRoleFromDB(d.Users, d.TrustTokenRole))
			pr.With(rbac.Require("user:change_password")).
				Post("/users/change-password", ChangePasswordHandler(d.Users))
		}

		pr.With(rbac.Require("survey:create")).
			Put("/surveys/{surveyID}", PutSurveyHandler(d.Store, d.Cache))
		pr.With(rbac.Require("survey:view")).
			Get("/surveys/{surveyID}/questions", GetSurveyQuestionsHandler(catalog))
		pr.With(rbac.Require("survey:create")).
			Put("/assessments/{assessmentID}", PutAssessmentHandler(d.Store))

		pr.With(rbac.Require("answers:submit"), submitLimit).
			Post("/answers", CreateAnswersHandler(d.Service))
		pr.With(rbac.Require("answers:export")).
			Get("/answers/export", ExportHandler(d.Exporter, d.Blobs))
		pr.With(rbac.Require("answers:import")).
			Post("/answers/import", ImportHandler(d.Exporter))

		own := ownOrAll("answers:view-own")
		pr.With(own).Get("/answers/{surveyID}", ListAnswersHandler(d.Service, false))
		pr.With(own).Get("/answers/{surveyID}/history", ListAnswersHandler(d.Service, true))
		pr.With(rbac.RequireAny("answers:view-own", "answers:view-all")).
			Get("/files/{fileID}", FileHandler(d.Service))

		pr.With(rbac.Require("participants:search")).
			Post("/participants/search", SearchParticipantsHandler(d.Service))

		pr.With(ownOrAll("assessment-answers:list")).
			Get("/assessment-answers", ListAssessmentStatusHandler(d.Service))
		pr.With(rbac.Require("answers:export")).
			Get("/assessment-answers/export", AssessmentExportHandler(d.Exporter))
		pr.Route("/assessment-answers/{assessmentID}", func(ar chi.Router) {
			ar.With(rbac.Require("assessment-answers:submit"), submitLimit).
				Post("/", CreateAssessmentAnswersHandler(d.Service))
			ar.With(ownOrAll("assessment-answers:view")).
				Get("/", GetAssessmentAnswersHandler(d.Service))
			ar.With(rbac.Require("assessment-answers:copy")).
				Post("/copy", CopyAssessmentAnswersHandler(d.Service))
		})

		if d.Events != nil {
			pr.With(rbac.Require("events:view")).Get("/events", ListEventsHandler(d.Events))
		}
	})
}
