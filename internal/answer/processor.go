package answer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// Stage is a step of batch processing. A batch moves through the stages in
// order and a failure at any of them aborts it before storage is touched.
type Stage int

const (
	StageReceived Stage = iota
	StageExpanded
	StageValidated
	StageEnablementResolved
	StageCompletenessChecked
	StageRowSetReady
)

var stageNames = [...]string{
	StageReceived:            "received",
	StageExpanded:            "expanded",
	StageValidated:           "validated",
	StageEnablementResolved:  "enablement-resolved",
	StageCompletenessChecked: "completeness-checked",
	StageRowSetReady:         "row-set-ready",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
	return stageNames[s]
}

// StageError records the stage a batch failed to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("batch %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Submission is a batch of logical answers for one master id.
type Submission struct {
	Master   survey.MasterID
	Answers  []survey.LogicalAnswer
	Status   survey.Status
	Language string
}

// Processor turns submissions into atomic batches. It reads survey
// definitions and stored answers but never writes.
type Processor struct {
	catalog  survey.Catalog
	existing func(ctx context.Context, m survey.MasterID, ids []int64) ([]survey.Row, error)
	now      func() time.Time
	language string
}

func NewProcessor(catalog survey.Catalog, answers survey.AnswerStore, opts ...Option) *Processor {
	cfg := newConfig(opts)
	return &Processor{
		catalog:  catalog,
		existing: answers.GetExistingAnswers,
		now:      cfg.now,
		language: cfg.language,
	}
}

// batchState is the working set carried between stages.
type batchState struct {
	sub       Submission
	questions []survey.SurveyQuestion
	byID      map[int64]survey.SurveyQuestion
	rules     survey.RuleSet

	entries  []survey.LogicalAnswer // deduplicated, comment-only entries removed
	comments []survey.LogicalAnswer
	res      []Resolution
	stored   []int64 // required questions left to stored answers
	at       time.Time
}

func (p *Processor) Process(ctx context.Context, sub Submission) (survey.Batch, error) {
	st := &batchState{sub: sub, at: p.now().UTC()}
	steps := []struct {
		to Stage
		fn func(context.Context, *batchState) error
	}{
		{StageExpanded, p.expand},
		{StageValidated, p.validate},
		{StageEnablementResolved, p.resolve},
		{StageCompletenessChecked, p.complete},
	}
	if err := p.receive(ctx, st); err != nil {
		return survey.Batch{}, &StageError{Stage: StageReceived, Err: err}
	}
	for _, s := range steps {
		if err := s.fn(ctx, st); err != nil {
			return survey.Batch{}, &StageError{Stage: s.to, Err: err}
		}
	}
	b, err := p.rowSet(st)
	if err != nil {
		return survey.Batch{}, &StageError{Stage: StageRowSetReady, Err: err}
	}
	return b, nil
}

func (p *Processor) receive(ctx context.Context, st *batchState) error {
	if st.sub.Status == "" {
		st.sub.Status = survey.StatusCompleted
	}
	if !st.sub.Status.Submittable() {
		return newError(CodeInvalidStatus, string(st.sub.Status))
	}
	if st.sub.Language == "" {
		st.sub.Language = p.language
	}
	qs, err := p.catalog.GetSurveyQuestions(ctx, st.sub.Master.SurveyID)
	if err != nil {
		return err
	}
	rules, err := p.catalog.GetAnswerRules(ctx, st.sub.Master.SurveyID)
	if err != nil {
		return err
	}
	st.questions, st.rules = qs, rules
	st.byID = make(map[int64]survey.SurveyQuestion, len(qs))
	for _, q := range qs {
		st.byID[q.ID] = q
	}
	return nil
}

// expand splits off comment-only entries and keeps the last entry given for
// each question.
func (p *Processor) expand(_ context.Context, st *batchState) error {
	pos, cpos := map[int64]int{}, map[int64]int{}
	for _, la := range st.sub.Answers {
		if _, ok := st.byID[la.QuestionID]; !ok {
			return newError(CodeNotInSurvey, strconv.FormatInt(la.QuestionID, 10))
		}
		if la.Comment != nil {
			if i, ok := cpos[la.QuestionID]; ok {
				st.comments[i] = la
			} else {
				cpos[la.QuestionID] = len(st.comments)
				st.comments = append(st.comments, la)
			}
		}
		if !la.HasContent() && la.Comment != nil {
			continue
		}
		if i, ok := pos[la.QuestionID]; ok {
			st.entries[i] = la
			continue
		}
		pos[la.QuestionID] = len(st.entries)
		st.entries = append(st.entries, la)
	}
	return nil
}

func (p *Processor) validate(_ context.Context, st *batchState) error {
	for _, la := range st.entries {
		if err := ValidateAnswer(la, st.byID[la.QuestionID].Question); err != nil {
			return err
		}
	}
	return nil
}

// resolve classifies every survey question, then reconciles the entries:
// an ignored question with content is an error, and one without an entry
// gets a clear entry so stored values are superseded.
func (p *Processor) resolve(_ context.Context, st *batchState) error {
	byQ := make(map[int64]survey.LogicalAnswer, len(st.entries))
	for _, la := range st.entries {
		byQ[la.QuestionID] = la
	}
	res, err := NewResolver(st.rules, byQ).ResolveAll(st.questions)
	if err != nil {
		return err
	}
	st.res = res
	return reconcile(st, byQ)
}

func reconcile(st *batchState, byQ map[int64]survey.LogicalAnswer) error {
	for _, r := range st.res {
		if !r.Ignore {
			continue
		}
		la, ok := byQ[r.QuestionID]
		if ok && la.HasContent() {
			return newError(CodeSkippedAnswered, strconv.FormatInt(r.QuestionID, 10))
		}
		if !ok {
			st.entries = append(st.entries, survey.LogicalAnswer{QuestionID: r.QuestionID})
		}
	}
	return nil
}

func (p *Processor) complete(ctx context.Context, st *batchState) error {
	cleared := map[int64]bool{}
	for _, la := range st.entries {
		if !la.HasContent() {
			cleared[la.QuestionID] = true
		}
	}
	lookup := func(ctx context.Context, ids []int64) ([]survey.Row, error) {
		return p.existing(ctx, st.sub.Master, ids)
	}
	remaining := RemainingRequired(st.res)
	if err := CheckCompletion(ctx, st.sub.Status, remaining, cleared, lookup); err != nil {
		return err
	}
	// the store checks these again under its write lock
	st.stored = StoredRequired(st.sub.Status, remaining, cleared)
	return nil
}

func (p *Processor) rowSet(st *batchState) (survey.Batch, error) {
	m := st.sub.Master
	b := survey.Batch{
		Master:      m,
		Status:      st.sub.Status,
		Language:    st.sub.Language,
		At:          st.at,
		RequireLive: st.stored,
	}
	for _, la := range st.entries {
		rows, err := Expand(la, st.byID[la.QuestionID].Question)
		if err != nil {
			return survey.Batch{}, err
		}
		lang := st.sub.Language
		if la.Language != "" {
			lang = la.Language
		}
		for _, r := range rows {
			r.UserID, r.SurveyID, r.AssessmentID = m.UserID, m.SurveyID, m.AssessmentID
			r.Language = lang
			r.CreatedAt = st.at
			b.Rows = append(b.Rows, r)
		}
		b.Supersede = append(b.Supersede, la.QuestionID)
	}
	for _, la := range st.comments {
		lang := la.Comment.Language
		if lang == "" {
			lang = st.sub.Language
		}
		b.Comments = append(b.Comments, survey.CommentRow{
			UserID:       m.UserID,
			SurveyID:     m.SurveyID,
			AssessmentID: m.AssessmentID,
			QuestionID:   la.QuestionID,
			Reason:       la.Comment.Reason,
			Text:         la.Comment.Text,
			Language:     lang,
			CreatedAt:    st.at,
		})
	}
	return b, nil
}
