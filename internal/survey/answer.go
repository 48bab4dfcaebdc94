package survey

import "time"

type FileValue struct {
	ID      int64  `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content,omitempty"` // base64, inbound only
}

type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

type FeetInches struct {
	Feet   int `json:"feet"`
	Inches int `json:"inches"`
}

// ChoiceAnswer is one selected entry of a "choices" answer.
type ChoiceAnswer struct {
	ID        int64   `json:"id"`
	BoolValue *bool   `json:"boolValue,omitempty"`
	TextValue *string `json:"textValue,omitempty"`
}

// Answer is a type-tagged value: the field that is set depends on the
// question type (see QuestionTypeSchema).
type Answer struct {
	BoolValue          *bool          `json:"boolValue,omitempty"`
	TextValue          *string        `json:"textValue,omitempty"`
	IntegerValue       *int64         `json:"integerValue,omitempty"`
	FloatValue         *float64       `json:"floatValue,omitempty"`
	NumberValue        *float64       `json:"numberValue,omitempty"`
	DateValue          *string        `json:"dateValue,omitempty"`
	DayValue           *string        `json:"dayValue,omitempty"`
	MonthValue         *string        `json:"monthValue,omitempty"`
	YearValue          *string        `json:"yearValue,omitempty"`
	Choice             *int64         `json:"choice,omitempty"`
	Choices            []ChoiceAnswer `json:"choices,omitempty"`
	FileValue          *FileValue     `json:"fileValue,omitempty"`
	BloodPressureValue *BloodPressure `json:"bloodPressureValue,omitempty"`
	FeetInchesValue    *FeetInches    `json:"feetInchesValue,omitempty"`

	MultipleIndex *int `json:"multipleIndex,omitempty"`
}

// Has reports whether the named value field is present.
func (a *Answer) Has(f ValueField) bool {
	if a == nil {
		return false
	}
	switch f {
	case FieldBool:
		return a.BoolValue != nil
	case FieldText:
		return a.TextValue != nil
	case FieldInteger:
		return a.IntegerValue != nil
	case FieldFloat:
		return a.FloatValue != nil
	case FieldNumber:
		return a.NumberValue != nil
	case FieldDate:
		return a.DateValue != nil
	case FieldDay:
		return a.DayValue != nil
	case FieldMonth:
		return a.MonthValue != nil
	case FieldYear:
		return a.YearValue != nil
	case FieldChoice:
		return a.Choice != nil
	case FieldChoices:
		return a.Choices != nil
	case FieldFile:
		return a.FileValue != nil
	case FieldBloodPressure:
		return a.BloodPressureValue != nil
	case FieldFeetInches:
		return a.FeetInchesValue != nil
	}
	return false
}

// LogicalAnswer is the user-facing answer to one question. Exactly one of
// Answer and Answers is used, depending on whether the question is multiple.
type LogicalAnswer struct {
	QuestionID int64    `json:"questionId"`
	Answer     *Answer  `json:"answer,omitempty"`
	Answers    []Answer `json:"answers,omitempty"`
	Comment    *Comment `json:"comment,omitempty"`

	SurveyID       int64      `json:"surveyId,omitempty"`
	Language       string     `json:"language,omitempty"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	CommentHistory []Comment  `json:"commentHistory,omitempty"`
}

// HasContent reports whether an actual value was given, as opposed to an
// entry that only clears the question or only carries a comment.
func (l LogicalAnswer) HasContent() bool {
	return l.Answer != nil || len(l.Answers) > 0
}
