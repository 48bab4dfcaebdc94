package survey

import (
	"context"
	"errors"
	"sort"
	"time"
)

var ErrNotFound = errors.New("not found")

// Catalog serves survey definitions.
type Catalog interface {
	// GetSurveyQuestions returns the questions of a survey in line order,
	// each with its required flag and ancestor chain.
	GetSurveyQuestions(ctx context.Context, surveyID int64) ([]SurveyQuestion, error)
	GetAnswerRules(ctx context.Context, surveyID int64) (RuleSet, error)
	// GetQuestions looks questions up by id regardless of survey.
	GetQuestions(ctx context.Context, ids []int64) (map[int64]Question, error)
}

// AnswerStore persists answer rows. ApplyBatch and CopyAssessmentAnswers are
// atomic and serialised per master id.
type AnswerStore interface {
	GetExistingAnswers(ctx context.Context, m MasterID, questionIDs []int64) ([]Row, error)
	ApplyBatch(ctx context.Context, b Batch) error
	ListRows(ctx context.Context, q RowQuery) ([]Row, error)
	ListComments(ctx context.Context, q CommentQuery, history bool) ([]CommentRow, error)

	AssessmentSurveys(ctx context.Context, assessmentID int64) ([]int64, error)
	// ListAssessments returns matching assessments ordered by id.
	ListAssessments(ctx context.Context, f AssessmentFilter) ([]Assessment, error)
	// Status reports the recorded status of a master id; ok is false when
	// nothing was ever submitted under it.
	Status(ctx context.Context, m MasterID) (st Status, ok bool, err error)
	CopyAssessmentAnswers(ctx context.Context, req CopyRequest) error
	// ImportRows inserts rows as the live answers of their questions,
	// superseding what each (master id, question) held before.
	ImportRows(ctx context.Context, rows []Row) error
	GetFile(ctx context.Context, id int64) (File, error)
}

// Store is the full persistence surface, including definition seeding.
type Store interface {
	Catalog
	AnswerStore
	PutSurvey(ctx context.Context, s Survey) error
	PutAssessment(ctx context.Context, a Assessment) error
}

// File is an uploaded file answer; Key addresses its content in blob storage.
type File struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
	Key       string `json:"-"`
	CreatedAt int64  `json:"createdAt"` // unix micros
}

// importGroups partitions imported rows by master id, listing each
// partition's questions in first-seen order. Rows without a creation time
// are stamped with the import time.
func importGroups(rows []Row) (at time.Time, masters []MasterID, questions map[string][]int64) {
	at = time.Now().UTC()
	for _, r := range rows {
		if !r.CreatedAt.IsZero() {
			at = r.CreatedAt
			break
		}
	}
	questions = map[string][]int64{}
	seen := map[string]map[int64]bool{}
	for i := range rows {
		r := &rows[i]
		if r.CreatedAt.IsZero() {
			r.CreatedAt = at
		}
		m := MasterID{UserID: r.UserID, SurveyID: r.SurveyID, AssessmentID: r.AssessmentID}
		k := m.Key()
		if seen[k] == nil {
			seen[k] = map[int64]bool{}
			masters = append(masters, m)
		}
		if !seen[k][r.QuestionID] {
			seen[k][r.QuestionID] = true
			questions[k] = append(questions[k], r.QuestionID)
		}
	}
	return at, masters, questions
}

// Resolve checks the section tree of s and returns its questions in line
// order with their ancestor chains filled in.
func (s Survey) Resolve() ([]SurveyQuestion, error) {
	ids := make([]int64, 0, len(s.Questions))
	for _, q := range s.Questions {
		ids = append(ids, q.ID)
	}
	tree, err := NewTree(s.Sections, ids)
	if err != nil {
		return nil, err
	}
	out := make([]SurveyQuestion, len(s.Questions))
	for i, q := range s.Questions {
		q.Parents = tree.Parents(q.ID)
		out[i] = q
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out, nil
}
