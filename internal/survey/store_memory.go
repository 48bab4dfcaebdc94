package survey

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memoryStore struct {
	mu sync.RWMutex

	surveys     map[int64]Survey
	resolved    map[int64][]SurveyQuestion
	questions   map[int64]Question
	assessments map[int64]Assessment

	rows     []Row
	comments []CommentRow
	files    map[int64]File
	statuses map[string]Status

	nextRow, nextComment, nextFile int64
}

// NewInMemoryStore returns a Store that keeps everything in process memory.
// A single mutex serialises writers, so batches for one master id never
// interleave.
func NewInMemoryStore() Store {
	return &memoryStore{
		surveys:     map[int64]Survey{},
		resolved:    map[int64][]SurveyQuestion{},
		questions:   map[int64]Question{},
		assessments: map[int64]Assessment{},
		files:       map[int64]File{},
		statuses:    map[string]Status{},
	}
}

func (m *memoryStore) PutSurvey(_ context.Context, s Survey) error {
	qs, err := s.Resolve()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surveys[s.ID] = s
	m.resolved[s.ID] = qs
	for _, q := range qs {
		m.questions[q.ID] = q.Question
	}
	return nil
}

func (m *memoryStore) PutAssessment(_ context.Context, a Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sid := range a.SurveyIDs {
		if _, ok := m.surveys[sid]; !ok {
			return fmt.Errorf("assessment %d: survey %d: %w", a.ID, sid, ErrNotFound)
		}
	}
	m.assessments[a.ID] = a
	return nil
}

func (m *memoryStore) GetSurveyQuestions(_ context.Context, surveyID int64) ([]SurveyQuestion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	qs, ok := m.resolved[surveyID]
	if !ok {
		return nil, fmt.Errorf("survey %d: %w", surveyID, ErrNotFound)
	}
	return append([]SurveyQuestion(nil), qs...), nil
}

func (m *memoryStore) GetAnswerRules(_ context.Context, surveyID int64) (RuleSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.surveys[surveyID]
	if !ok {
		return RuleSet{}, fmt.Errorf("survey %d: %w", surveyID, ErrNotFound)
	}
	return NewRuleSet(s.Rules), nil
}

func (m *memoryStore) GetQuestions(_ context.Context, ids []int64) (map[int64]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]Question, len(ids))
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (m *memoryStore) AssessmentSurveys(_ context.Context, assessmentID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[assessmentID]
	if !ok {
		return nil, fmt.Errorf("assessment %d: %w", assessmentID, ErrNotFound)
	}
	return append([]int64(nil), a.SurveyIDs...), nil
}

func (m *memoryStore) ListAssessments(_ context.Context, f AssessmentFilter) ([]Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Assessment
	for _, a := range m.assessments {
		if f.Group != "" && a.Group != f.Group {
			continue
		}
		if f.SurveyID != 0 && !containsID(a.SurveyIDs, f.SurveyID) {
			continue
		}
		a.SurveyIDs = append([]int64(nil), a.SurveyIDs...)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (m *memoryStore) GetExistingAnswers(_ context.Context, mid MasterID, questionIDs []int64) ([]Row, error) {
	want := idSet(questionIDs)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, r := range m.rows {
		if r.DeletedAt != nil || !inMaster(r.UserID, r.SurveyID, r.AssessmentID, mid) {
			continue
		}
		if want != nil && !want[r.QuestionID] {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) ApplyBatch(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(b.RequireLive) > 0 {
		if err := missingLive(b.RequireLive, m.liveQuestions(b.Master)); err != nil {
			return err
		}
	}

	at := b.At
	m.statuses[b.Master.PartitionKey()] = b.Status

	replaced := idSet(b.Supersede)
	for i := range m.rows {
		r := &m.rows[i]
		if r.DeletedAt == nil && replaced[r.QuestionID] && inMaster(r.UserID, r.SurveyID, r.AssessmentID, b.Master) {
			r.DeletedAt = &at
		}
	}

	commented := map[int64]bool{}
	for _, c := range b.Comments {
		commented[c.QuestionID] = true
	}
	for i := range m.comments {
		c := &m.comments[i]
		if c.DeletedAt == nil && commented[c.QuestionID] && inMaster(c.UserID, c.SurveyID, c.AssessmentID, b.Master) {
			c.DeletedAt = &at
		}
	}
	for _, c := range b.Comments {
		m.nextComment++
		c.ID = m.nextComment
		c.DeletedAt = nil
		m.comments = append(m.comments, c)
	}

	for _, r := range b.Rows {
		if r.FileKey != "" {
			m.nextFile++
			id := m.nextFile
			m.files[id] = File{ID: id, UserID: b.Master.UserID, Name: r.FileName, Key: r.FileKey, CreatedAt: at.UnixMicro()}
			r.FileID = &id
		}
		r.FileKey, r.FileContent = "", ""
		m.nextRow++
		r.ID = m.nextRow
		r.DeletedAt = nil
		m.rows = append(m.rows, r)
	}
	return nil
}

func (m *memoryStore) ListRows(_ context.Context, q RowQuery) ([]Row, error) {
	users := idSet(q.UserIDs)
	questions := idSet(q.QuestionIDs)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, r := range m.rows {
		if (r.DeletedAt != nil) != q.History {
			continue
		}
		if users != nil && !users[r.UserID] {
			continue
		}
		if q.SurveyID != 0 && r.SurveyID != q.SurveyID {
			continue
		}
		if !sameAssessment(r.AssessmentID, q.AssessmentID) {
			continue
		}
		if questions != nil && !questions[r.QuestionID] {
			continue
		}
		out = append(out, r)
	}
	sortRows(out)
	return out, nil
}

func (m *memoryStore) ListComments(_ context.Context, q CommentQuery, history bool) ([]CommentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []CommentRow
	for _, c := range m.comments {
		if (c.DeletedAt != nil) != history || c.UserID != q.UserID {
			continue
		}
		if q.SurveyID != 0 && c.SurveyID != q.SurveyID {
			continue
		}
		if !sameAssessment(c.AssessmentID, q.AssessmentID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryStore) Status(_ context.Context, mid MasterID) (Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statuses[mid.PartitionKey()]
	return st, ok, nil
}

func (m *memoryStore) CopyAssessmentAnswers(_ context.Context, req CopyRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assessments[req.AssessmentID]; !ok {
		return fmt.Errorf("assessment %d: %w", req.AssessmentID, ErrNotFound)
	}
	at := req.At
	target, prev := req.AssessmentID, req.PrevAssessmentID
	var clones []Row
	for i := range m.rows {
		r := &m.rows[i]
		if r.DeletedAt != nil || r.UserID != req.UserID || r.AssessmentID == nil {
			continue
		}
		switch *r.AssessmentID {
		case target:
			r.DeletedAt = &at
		case prev:
			c := *r
			c.AssessmentID = &target
			c.CreatedAt = at
			clones = append(clones, c)
		}
	}
	for _, c := range clones {
		m.nextRow++
		c.ID = m.nextRow
		m.rows = append(m.rows, c)
	}
	m.statuses[MasterID{UserID: req.UserID, AssessmentID: &target}.PartitionKey()] = req.Status
	return nil
}

func (m *memoryStore) ImportRows(_ context.Context, rows []Row) error {
	rows = append([]Row(nil), rows...)
	at, masters, questions := importGroups(rows)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mid := range masters {
		replaced := idSet(questions[mid.Key()])
		for i := range m.rows {
			r := &m.rows[i]
			if r.DeletedAt == nil && replaced[r.QuestionID] && inMaster(r.UserID, r.SurveyID, r.AssessmentID, mid) {
				r.DeletedAt = &at
			}
		}
	}
	for _, r := range rows {
		m.nextRow++
		r.ID = m.nextRow
		r.DeletedAt = nil
		m.rows = append(m.rows, r)
	}
	return nil
}

func (m *memoryStore) GetFile(_ context.Context, id int64) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok {
		return File{}, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	return f, nil
}

// liveQuestions returns the questions holding live rows under mid. The
// caller holds the lock.
func (m *memoryStore) liveQuestions(mid MasterID) map[int64]bool {
	out := map[int64]bool{}
	for _, r := range m.rows {
		if r.DeletedAt == nil && inMaster(r.UserID, r.SurveyID, r.AssessmentID, mid) {
			out[r.QuestionID] = true
		}
	}
	return out
}

func inMaster(userID, surveyID int64, assessmentID *int64, m MasterID) bool {
	return userID == m.UserID && surveyID == m.SurveyID && sameAssessment(assessmentID, m.AssessmentID)
}

func sameAssessment(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// idSet returns nil for an empty list, meaning "no filter".
func idSet(ids []int64) map[int64]bool {
	if len(ids) == 0 {
		return nil
	}
	s := make(map[int64]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// sortRows orders rows the way reads expect them: superseded versions by
// deletion time, then by insertion.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].DeletedAt, rows[j].DeletedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return rows[i].ID < rows[j].ID
	})
}
