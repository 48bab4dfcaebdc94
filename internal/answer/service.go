package answer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/survey-registry/internal/storage"
	"github.com/mind-engage/survey-registry/internal/survey"
)

// Service options

type Option func(*config)

type config struct {
	now      func() time.Time
	language string
	catalog  survey.Catalog
	blobs    storage.BlobStore
}

// WithClock overrides the time source used to stamp rows.
func WithClock(now func() time.Time) Option { return func(c *config) { c.now = now } }

// WithDefaultLanguage sets the language used when a batch names none.
func WithDefaultLanguage(l string) Option { return func(c *config) { c.language = l } }

// WithCatalog reads survey definitions from c instead of the store, for
// example through a cache.
func WithCatalog(c survey.Catalog) Option { return func(cfg *config) { cfg.catalog = c } }

// WithBlobStore enables file answers.
func WithBlobStore(b storage.BlobStore) Option { return func(c *config) { c.blobs = b } }

func newConfig(opts []Option) *config {
	cfg := &config{now: time.Now, language: "en"}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// Service is the answer API used by the HTTP layer: it resolves master ids,
// runs batches through the Processor and persists them, and serves reads.
type Service struct {
	store   survey.Store
	catalog survey.Catalog
	blobs   storage.BlobStore
	proc    *Processor
	now     func() time.Time
}

func NewService(store survey.Store, opts ...Option) *Service {
	cfg := newConfig(opts)
	catalog := cfg.catalog
	if catalog == nil {
		catalog = store
	}
	return &Service{
		store:   store,
		catalog: catalog,
		blobs:   cfg.blobs,
		proc:    NewProcessor(catalog, store, opts...),
		now:     cfg.now,
	}
}

// ResolveMaster builds the master id of a submission. For assessment answers
// the survey must belong to the assessment; it may be omitted when the
// assessment has exactly one survey.
func (s *Service) ResolveMaster(ctx context.Context, userID, surveyID int64, assessmentID *int64) (survey.MasterID, error) {
	m := survey.MasterID{UserID: userID, SurveyID: surveyID, AssessmentID: assessmentID}
	if assessmentID == nil {
		return m, nil
	}
	ids, err := s.store.AssessmentSurveys(ctx, *assessmentID)
	if err != nil {
		return m, err
	}
	aid := strconv.FormatInt(*assessmentID, 10)
	if surveyID == 0 {
		if len(ids) != 1 {
			return m, newError(CodeInvalidAssessmentSurveys, aid)
		}
		m.SurveyID = ids[0]
		return m, nil
	}
	for _, id := range ids {
		if id == surveyID {
			return m, nil
		}
	}
	return m, newError(CodeInvalidSurveyInAssessment, strconv.FormatInt(surveyID, 10), aid)
}

// ValidateAndProcessBatch runs every check and returns the rows that would
// be persisted, without persisting them.
func (s *Service) ValidateAndProcessBatch(ctx context.Context, m survey.MasterID, answers []survey.LogicalAnswer, status survey.Status, language string) ([]survey.Row, error) {
	b, err := s.proc.Process(ctx, Submission{Master: m, Answers: answers, Status: status, Language: language})
	if err != nil {
		return nil, err
	}
	return b.Rows, nil
}

// CreateAnswers validates a submission and applies it atomically.
func (s *Service) CreateAnswers(ctx context.Context, sub Submission) (survey.Batch, error) {
	b, err := s.proc.Process(ctx, sub)
	if err != nil {
		logBatchError(sub.Master, err)
		return survey.Batch{}, err
	}
	if err := s.saveFiles(ctx, &b); err != nil {
		log.Printf("answers: %s: save files: %v", sub.Master.Key(), err)
		s.discardFiles(ctx, b)
		return survey.Batch{}, err
	}
	if err := s.store.ApplyBatch(ctx, b); err != nil {
		s.discardFiles(ctx, b)
		var rm *survey.RequiredMissingError
		if errors.As(err, &rm) {
			ids := make([]string, len(rm.QuestionIDs))
			for i, id := range rm.QuestionIDs {
				ids[i] = strconv.FormatInt(id, 10)
			}
			err = &StageError{Stage: StageCompletenessChecked, Err: newError(CodeRequiredMissing, ids...)}
			logBatchError(sub.Master, err)
			return survey.Batch{}, err
		}
		log.Printf("answers: %s: apply batch: %v", sub.Master.Key(), err)
		return survey.Batch{}, err
	}
	return b, nil
}

func logBatchError(m survey.MasterID, err error) {
	var se *StageError
	var be *Error
	switch {
	case errors.As(err, &se) && errors.As(err, &be):
		log.Printf("answers: %s: rejected at %s: %s", m.Key(), se.Stage, be.Code)
	case errors.As(err, &se):
		log.Printf("answers: %s: failed at %s: %v", m.Key(), se.Stage, se.Err)
	default:
		log.Printf("answers: %s: %v", m.Key(), err)
	}
}

// saveFiles uploads inline file content. Validation has already passed, so
// nothing is written for a rejected batch.
func (s *Service) saveFiles(ctx context.Context, b *survey.Batch) error {
	for i := range b.Rows {
		r := &b.Rows[i]
		if r.FileContent == "" {
			continue
		}
		if s.blobs == nil {
			return errors.New("file answers are not enabled")
		}
		data, err := base64.StdEncoding.DecodeString(r.FileContent)
		if err != nil {
			return fmt.Errorf("question %d: file content: %w", r.QuestionID, err)
		}
		key := path.Join("answers", strconv.FormatInt(b.Master.UserID, 10), uuid.NewString(), path.Base(r.FileName))
		stored, err := s.blobs.Put(ctx, key, bytes.NewReader(data))
		if err != nil {
			return err
		}
		r.FileKey = stored
		r.FileContent = ""
	}
	return nil
}

// discardFiles removes blobs saved for a batch that was not applied.
func (s *Service) discardFiles(ctx context.Context, b survey.Batch) {
	if s.blobs == nil {
		return
	}
	for _, r := range b.Rows {
		if r.FileKey == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, r.FileKey); err != nil {
			log.Printf("answers: %s: discard %s: %v", b.Master.Key(), r.FileKey, err)
		}
	}
}

// ListAnswers returns the live answers of a master id with their comments.
func (s *Service) ListAnswers(ctx context.Context, m survey.MasterID) ([]survey.LogicalAnswer, error) {
	return s.read(ctx, m, false)
}

// ListAnswerHistory returns superseded answer versions, each stamped with
// the time it was superseded, oldest first.
func (s *Service) ListAnswerHistory(ctx context.Context, m survey.MasterID) ([]survey.LogicalAnswer, error) {
	return s.read(ctx, m, true)
}

func (s *Service) read(ctx context.Context, m survey.MasterID, history bool) ([]survey.LogicalAnswer, error) {
	rows, err := s.store.ListRows(ctx, survey.RowQuery{
		UserIDs:      []int64{m.UserID},
		SurveyID:     m.SurveyID,
		AssessmentID: m.AssessmentID,
		History:      history,
	})
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, survey.CommentQuery{UserID: m.UserID, SurveyID: m.SurveyID, AssessmentID: m.AssessmentID}, history)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionsFor(ctx, rows)
	if err != nil {
		return nil, err
	}
	out, err := CollapseForRead(rows, questions)
	if err != nil {
		return nil, err
	}
	return mergeComments(out, comments), nil
}

func (s *Service) questionsFor(ctx context.Context, rows []survey.Row) (map[int64]survey.Question, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, r := range rows {
		if !seen[r.QuestionID] {
			seen[r.QuestionID] = true
			ids = append(ids, r.QuestionID)
		}
	}
	return s.catalog.GetQuestions(ctx, ids)
}

// mergeComments attaches each comment to the answer of the same question
// and version. Comments without an answer become comment-only entries.
func mergeComments(answers []survey.LogicalAnswer, comments []survey.CommentRow) []survey.LogicalAnswer {
	type key struct {
		surveyID, questionID, deletedAt int64
	}
	keyOf := func(surveyID, questionID int64, deletedAt *time.Time) key {
		k := key{surveyID: surveyID, questionID: questionID}
		if deletedAt != nil {
			k.deletedAt = deletedAt.UnixMicro()
		}
		return k
	}
	idx := make(map[key]int, len(answers))
	for i, a := range answers {
		idx[keyOf(a.SurveyID, a.QuestionID, a.DeletedAt)] = i
	}
	for _, c := range comments {
		cm := &survey.Comment{Reason: c.Reason, Text: c.Text, Language: c.Language}
		k := keyOf(c.SurveyID, c.QuestionID, c.DeletedAt)
		if i, ok := idx[k]; ok {
			answers[i].Comment = cm
			continue
		}
		idx[k] = len(answers)
		answers = append(answers, survey.LogicalAnswer{
			QuestionID: c.QuestionID,
			SurveyID:   c.SurveyID,
			Language:   c.Language,
			DeletedAt:  c.DeletedAt,
			Comment:    cm,
		})
	}
	return answers
}

// AssessmentView is a user's answers within one assessment.
type AssessmentView struct {
	Status  survey.Status          `json:"status"`
	Answers []survey.LogicalAnswer `json:"answers"`
}

// AssessmentAnswers returns the status and live answers of one survey of an
// assessment. Status is "new" until something is submitted.
func (s *Service) AssessmentAnswers(ctx context.Context, userID, assessmentID, surveyID int64) (AssessmentView, error) {
	m, err := s.ResolveMaster(ctx, userID, surveyID, &assessmentID)
	if err != nil {
		return AssessmentView{}, err
	}
	st, ok, err := s.store.Status(ctx, m)
	if err != nil {
		return AssessmentView{}, err
	}
	if !ok {
		st = survey.StatusNew
	}
	answers, err := s.ListAnswers(ctx, m)
	if err != nil {
		return AssessmentView{}, err
	}
	return AssessmentView{Status: st, Answers: answers}, nil
}

// AssessmentStatus is an assessment with one user's progress in it.
type AssessmentStatus struct {
	survey.Assessment
	Status survey.Status `json:"status"`
}

// AssessmentList returns the assessments of group, or every assessment when
// group is empty, each with the user's status. A non-empty status keeps
// only the assessments in that status.
func (s *Service) AssessmentList(ctx context.Context, userID int64, group string, status survey.Status) ([]AssessmentStatus, error) {
	as, err := s.store.ListAssessments(ctx, survey.AssessmentFilter{Group: group})
	if err != nil {
		return nil, err
	}
	out := make([]AssessmentStatus, 0, len(as))
	for _, a := range as {
		id := a.ID
		st, ok, err := s.store.Status(ctx, survey.MasterID{UserID: userID, AssessmentID: &id})
		if err != nil {
			return nil, err
		}
		if !ok {
			st = survey.StatusNew
		}
		if status != "" && st != status {
			continue
		}
		out = append(out, AssessmentStatus{Assessment: a, Status: st})
	}
	return out, nil
}

// CopyAssessmentAnswers replaces a user's answers in one assessment with a
// copy of their live answers from another.
func (s *Service) CopyAssessmentAnswers(ctx context.Context, userID, assessmentID, prevAssessmentID int64, status survey.Status) error {
	if status == "" {
		status = survey.StatusCompleted
	}
	if !status.Submittable() {
		return newError(CodeInvalidStatus, string(status))
	}
	err := s.store.CopyAssessmentAnswers(ctx, survey.CopyRequest{
		UserID:           userID,
		AssessmentID:     assessmentID,
		PrevAssessmentID: prevAssessmentID,
		Status:           status,
		At:               s.now().UTC(),
	})
	if err != nil {
		log.Printf("answers: copy assessment %d -> %d for user %d: %v", prevAssessmentID, assessmentID, userID, err)
	}
	return err
}

// FileURL returns a download URL for a stored file answer. Files of other
// users are reported as not found unless viewAll is set.
func (s *Service) FileURL(ctx context.Context, userID int64, viewAll bool, fileID int64) (survey.File, string, error) {
	if s.blobs == nil {
		return survey.File{}, "", errors.New("file answers are not enabled")
	}
	f, err := s.store.GetFile(ctx, fileID)
	if err != nil {
		return survey.File{}, "", err
	}
	if !viewAll && f.UserID != userID {
		return survey.File{}, "", fmt.Errorf("file %d: %w", fileID, survey.ErrNotFound)
	}
	u, err := s.blobs.SignedURL(ctx, f.Key)
	if err != nil {
		return survey.File{}, "", err
	}
	return f, u, nil
}
