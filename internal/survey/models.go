package survey

import (
	"fmt"
	"time"
)

// ChoiceType sub-types the entries of a "choices" question.
type ChoiceType string

const (
	ChoiceBool ChoiceType = "bool"
	ChoiceText ChoiceType = "text"
)

type Choice struct {
	ID         int64      `json:"id"`
	QuestionID int64      `json:"questionId,omitempty"`
	Text       string     `json:"text,omitempty"`
	Type       ChoiceType `json:"type,omitempty"` // only meaningful for "choices" questions
	Line       int        `json:"line"`
}

type Question struct {
	ID        int64        `json:"id"`
	Type      QuestionType `json:"type"`
	Text      string       `json:"text,omitempty"`
	Multiple  bool         `json:"multiple,omitempty"`
	MaxCount  int          `json:"maxCount,omitempty"`  // 0 means unbounded
	Parameter string       `json:"parameter,omitempty"` // "min:max" for scale
	Choices   []Choice     `json:"choices,omitempty"`
}

// ChoiceByID returns the choice with the given id, if the question has one.
func (q Question) ChoiceByID(id int64) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// SurveyQuestion is a question as it appears inside one survey.
type SurveyQuestion struct {
	Question
	Required bool        `json:"required"`
	Line     int         `json:"line"`
	Parents  []ParentRef `json:"parents,omitempty"` // nearest ancestor first
}

type ParentKind uint8

const (
	ParentNone ParentKind = iota
	ParentSection
	ParentQuestion
)

// ParentRef points at the structural parent of a section: nothing, another
// section, or the question that owns it.
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	ID   int64      `json:"id,omitempty"`
}

func NoParent() ParentRef                { return ParentRef{} }
func SectionParent(id int64) ParentRef  { return ParentRef{Kind: ParentSection, ID: id} }
func QuestionParent(id int64) ParentRef { return ParentRef{Kind: ParentQuestion, ID: id} }

func (p ParentRef) String() string {
	switch p.Kind {
	case ParentSection:
		return fmt.Sprintf("section:%d", p.ID)
	case ParentQuestion:
		return fmt.Sprintf("question:%d", p.ID)
	default:
		return "none"
	}
}

type Section struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name,omitempty"`
	Parent      ParentRef `json:"parent"`
	Line        int       `json:"line"`
	QuestionIDs []int64   `json:"questionIds,omitempty"`
}

type Logic string

const (
	LogicEquals    Logic = "equals"
	LogicNotEquals Logic = "not-equals"
	LogicExists    Logic = "exists"
	LogicNotExists Logic = "not-exists"
)

// Rule enables its target (a question or a section) depending on the answer
// given to SourceQuestionID.
type Rule struct {
	ID               int64   `json:"id,omitempty"`
	SourceQuestionID int64   `json:"questionId"`
	TargetQuestionID int64   `json:"targetQuestionId,omitempty"`
	TargetSectionID  int64   `json:"targetSectionId,omitempty"`
	Logic            Logic   `json:"logic"`
	Answer           *Answer `json:"answer,omitempty"`
	Count            int     `json:"count,omitempty"`
}

// RuleSet indexes the rules of a survey by what they gate.
type RuleSet struct {
	PerQuestion map[int64][]Rule `json:"perQuestion"`
	PerSection  map[int64][]Rule `json:"perSection"`
}

func NewRuleSet(rules []Rule) RuleSet {
	rs := RuleSet{PerQuestion: map[int64][]Rule{}, PerSection: map[int64][]Rule{}}
	for _, r := range rules {
		switch {
		case r.TargetQuestionID != 0:
			rs.PerQuestion[r.TargetQuestionID] = append(rs.PerQuestion[r.TargetQuestionID], r)
		case r.TargetSectionID != 0:
			rs.PerSection[r.TargetSectionID] = append(rs.PerSection[r.TargetSectionID], r)
		}
	}
	return rs
}

// Empty reports whether no rule gates anything.
func (rs RuleSet) Empty() bool { return len(rs.PerQuestion) == 0 && len(rs.PerSection) == 0 }

// Survey is a full survey definition as uploaded by staff.
type Survey struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Questions []SurveyQuestion `json:"questions"`
	Sections  []Section        `json:"sections,omitempty"`
	Rules     []Rule           `json:"rules,omitempty"`
}

// Assessment groups surveys answered together at one stage.
type Assessment struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Group     string  `json:"group,omitempty"`
	Stage     int     `json:"stage"`
	SurveyIDs []int64 `json:"surveyIds"`
}

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Submittable reports whether a client may record s with a batch.
func (s Status) Submittable() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// MasterID is the partition under which a batch of answers lives. A nil
// AssessmentID means baseline answers.
type MasterID struct {
	UserID       int64  `json:"userId"`
	SurveyID     int64  `json:"surveyId"`
	AssessmentID *int64 `json:"assessmentId,omitempty"`
}

func (m MasterID) Key() string {
	if m.AssessmentID == nil {
		return fmt.Sprintf("%d:%d:-", m.UserID, m.SurveyID)
	}
	return fmt.Sprintf("%d:%d:%d", m.UserID, m.SurveyID, *m.AssessmentID)
}

// PartitionKey names the unit that status and write serialisation apply
// to: one survey for baseline answers, the whole assessment otherwise.
func (m MasterID) PartitionKey() string {
	if m.AssessmentID != nil {
		return fmt.Sprintf("a:%d:%d", m.UserID, *m.AssessmentID)
	}
	return fmt.Sprintf("s:%d:%d", m.UserID, m.SurveyID)
}

// Row is one atomic persisted answer value.
type Row struct {
	ID               int64      `json:"id,omitempty"`
	UserID           int64      `json:"userId"`
	SurveyID         int64      `json:"surveyId"`
	AssessmentID     *int64     `json:"assessmentId,omitempty"`
	QuestionID       int64      `json:"questionId"`
	QuestionChoiceID *int64     `json:"questionChoiceId,omitempty"`
	MultipleIndex    *int       `json:"multipleIndex,omitempty"`
	Value            *string    `json:"value,omitempty"`
	FileID           *int64     `json:"fileId,omitempty"`
	Language         string     `json:"language"`
	CreatedAt        time.Time  `json:"createdAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`

	FileName    string `json:"-"`
	FileKey     string `json:"-"` // blob key of content saved for this batch
	FileContent string `json:"-"` // base64 content awaiting upload
}

// Comment is the free-text remark a user can attach to a question.
type Comment struct {
	Reason   string `json:"reason,omitempty"`
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
}

type CommentRow struct {
	ID           int64      `json:"id,omitempty"`
	UserID       int64      `json:"userId"`
	SurveyID     int64      `json:"surveyId"`
	AssessmentID *int64     `json:"assessmentId,omitempty"`
	QuestionID   int64      `json:"questionId"`
	Reason       string     `json:"reason,omitempty"`
	Text         string     `json:"text,omitempty"`
	Language     string     `json:"language"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Batch is a fully validated answer submission, applied atomically.
type Batch struct {
	Master    MasterID
	Status    Status
	Language  string
	Supersede []int64 // question ids whose live rows are replaced
	Rows      []Row
	Comments  []CommentRow
	At        time.Time
	// RequireLive lists questions the batch leaves to stored answers. The
	// store rejects the batch with a *RequiredMissingError if any of them
	// has no live row once writers are excluded.
	RequireLive []int64
}

// RequiredMissingError reports required questions found unanswered while
// applying a batch.
type RequiredMissingError struct {
	QuestionIDs []int64
}

func (e *RequiredMissingError) Error() string {
	return fmt.Sprintf("required questions not answered: %v", e.QuestionIDs)
}

// missingLive reports the ids in required that live does not contain.
func missingLive(required []int64, live map[int64]bool) error {
	var missing []int64
	for _, id := range required {
		if !live[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &RequiredMissingError{QuestionIDs: missing}
}

// RowQuery selects answer rows. A nil AssessmentID selects baseline rows.
type RowQuery struct {
	UserIDs      []int64
	SurveyID     int64
	AssessmentID *int64
	QuestionIDs  []int64
	History      bool // superseded rows only
}

type CommentQuery struct {
	UserID       int64
	SurveyID     int64
	AssessmentID *int64
}

// AssessmentFilter selects assessments. Zero fields do not filter.
type AssessmentFilter struct {
	Group    string
	SurveyID int64
}

// CopyRequest clones the live answers of one assessment into another.
type CopyRequest struct {
	UserID           int64
	AssessmentID     int64
	PrevAssessmentID int64
	Status           Status
	At               time.Time
}
