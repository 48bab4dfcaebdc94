// Package export moves answers in and out of flat tabular files.
package export

import (
	"fmt"
	"strconv"

	"github.com/mind-engage/survey-registry/internal/answer"
	"github.com/mind-engage/survey-registry/internal/survey"
)

// Record is one answer row in flat form. ChoiceType is only set for rows of
// "choices" questions. The assessment fields are only set by assessment
// exports.
type Record struct {
	UserID           int64
	SurveyID         int64
	QuestionID       int64
	QuestionChoiceID *int64
	QuestionType     survey.QuestionType
	ChoiceType       survey.ChoiceType
	Value            string
	MultipleIndex    *int

	AssessmentID *int64
	Group        string
	Stage        int
	Date         string // answer creation day, YYYY-MM-DD
}

func rowRecord(r survey.Row, q survey.Question) Record {
	rec := Record{
		UserID:           r.UserID,
		SurveyID:         r.SurveyID,
		QuestionID:       r.QuestionID,
		QuestionChoiceID: r.QuestionChoiceID,
		QuestionType:     q.Type,
		MultipleIndex:    r.MultipleIndex,
	}
	if r.Value != nil {
		rec.Value = *r.Value
	}
	if q.Type == survey.TypeChoices && r.QuestionChoiceID != nil {
		if c, ok := q.ChoiceByID(*r.QuestionChoiceID); ok {
			rec.ChoiceType = c.Type
		}
	}
	return rec
}

func (rec Record) row() survey.Row {
	r := survey.Row{
		UserID:           rec.UserID,
		SurveyID:         rec.SurveyID,
		QuestionID:       rec.QuestionID,
		QuestionChoiceID: rec.QuestionChoiceID,
		MultipleIndex:    rec.MultipleIndex,
	}
	if rec.Value != "" {
		v := rec.Value
		r.Value = &v
	}
	return r
}

// ToRecords flattens the logical answers of one user using the same value
// serialisation as stored rows.
func ToRecords(userID int64, answers []survey.LogicalAnswer, questions map[int64]survey.Question) ([]Record, error) {
	var out []Record
	for _, la := range answers {
		q, ok := questions[la.QuestionID]
		if !ok {
			return nil, fmt.Errorf("export: question %d: %w", la.QuestionID, survey.ErrNotFound)
		}
		rows, err := answer.Expand(la, q)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			r.UserID, r.SurveyID = userID, la.SurveyID
			out = append(out, rowRecord(r, q))
		}
	}
	return out, nil
}

type recordKey struct {
	surveyID, questionID int64
}

// FromRecords is the inverse of ToRecords. Records are grouped by survey and
// question in the order they first appear; the user id is ignored.
func FromRecords(records []Record, questions map[int64]survey.Question) ([]survey.LogicalAnswer, error) {
	var order []recordKey
	groups := map[recordKey][]survey.Row{}
	for _, rec := range records {
		k := recordKey{rec.SurveyID, rec.QuestionID}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], rec.row())
	}
	out := make([]survey.LogicalAnswer, 0, len(order))
	for _, k := range order {
		q, ok := questions[k.questionID]
		if !ok {
			return nil, fmt.Errorf("export: question %d: %w", k.questionID, survey.ErrNotFound)
		}
		la, err := answer.Collapse(groups[k], q)
		if err != nil {
			return nil, err
		}
		la.SurveyID = k.surveyID
		out = append(out, la)
	}
	return out, nil
}

// QuestionMap translates one question id and its choice ids.
type QuestionMap struct {
	QuestionID int64           `json:"questionId"`
	Choices    map[int64]int64 `json:"choicesIds,omitempty"`
}

// IDMaps translates the ids of an export taken from another registry into
// local ids. A non-zero UserID assigns every record to that user.
type IDMaps struct {
	UserID    int64                 `json:"userId,omitempty"`
	Users     map[int64]int64       `json:"userIdMap,omitempty"`
	Surveys   map[int64]int64       `json:"surveyIdMap"`
	Questions map[int64]QuestionMap `json:"questionIdMap"`
}

// Rows remaps records into rows ready for insertion. An empty value is
// stored as NULL, a single digit month is zero padded and the language is
// "en".
func (m IDMaps) Rows(records []Record) ([]survey.Row, error) {
	out := make([]survey.Row, 0, len(records))
	for i, rec := range records {
		line := strconv.Itoa(i + 2) // header is line 1
		sid, ok := m.Surveys[rec.SurveyID]
		if !ok {
			return nil, fmt.Errorf("import: line %s: no mapping for survey %d", line, rec.SurveyID)
		}
		qm, ok := m.Questions[rec.QuestionID]
		if !ok {
			return nil, fmt.Errorf("import: line %s: no mapping for question %d", line, rec.QuestionID)
		}
		uid := m.UserID
		if uid == 0 {
			if uid, ok = m.Users[rec.UserID]; !ok {
				return nil, fmt.Errorf("import: line %s: no mapping for user %d", line, rec.UserID)
			}
		}
		rec.SurveyID, rec.QuestionID, rec.UserID = sid, qm.QuestionID, uid
		if rec.QuestionChoiceID != nil {
			cid, ok := qm.Choices[*rec.QuestionChoiceID]
			if !ok {
				return nil, fmt.Errorf("import: line %s: no mapping for choice %d", line, *rec.QuestionChoiceID)
			}
			rec.QuestionChoiceID = &cid
		}
		if len(rec.Value) == 1 && (rec.QuestionType == survey.TypeMonth || rec.ChoiceType == "month") {
			rec.Value = "0" + rec.Value
		}
		r := rec.row()
		r.Language = "en"
		out = append(out, r)
	}
	return out, nil
}
