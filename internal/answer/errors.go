package answer

import (
	"fmt"
	"strings"
)

// Code identifies a business error. The set is closed; String gives the
// stable name clients see.
type Code int

const (
	CodeUnknown Code = iota

	// missing value, one per question type
	CodeFileValueNotProvided
	CodeTextValueNotProvidedForBullet
	CodeDateValueNotProvided
	CodeDayValueNotProvided
	CodeMonthValueNotProvided
	CodeYearValueNotProvided
	CodeFeetInchesValueNotProvided
	CodeTextValueNotProvided
	CodeNumberValueNotProvidedForPounds
	CodeIntegerValueNotProvided
	CodeFloatValueNotProvided
	CodeChoiceValueNotProvided
	CodeChoicesValueNotProvided
	CodeBooleanValueNotProvided
	CodeOpenChoiceValueNotProvided
	CodeBloodPressureValueNotProvided
	CodeNumberValueNotProvidedForScale
	CodeQuestionTypeNotFound

	CodeMultipleAnswersNotAllowed
	CodeMoreAnswersThanAllowed
	CodeOutOfScale
	CodeNotInSurvey
	CodeSkippedAnswered
	CodeRequiredMissing
	CodeRuleLogicUnknown
	CodeInvalidAssessmentSurveys
	CodeInvalidSurveyInAssessment
	CodeInvalidMultipleIndex
	CodeInvalidStatus
	CodeSearchQuestionRepeat

	codeCount
)

type codeInfo struct {
	name     string
	template string // $0, $1, ... are replaced by params, $* by all of them
}

var codeTable = [codeCount]codeInfo{
	CodeUnknown:                         {"unknown", "Unknown error."},
	CodeFileValueNotProvided:            {"fileValueNotProvidedForFileQuestion", "No file value provided for file question."},
	CodeTextValueNotProvidedForBullet:   {"textValueNotProvidedForBulletQuestion", "No text value provided for bullet question."},
	CodeDateValueNotProvided:            {"dateValueNotProvidedForDateQuestion", "No date value provided for date question."},
	CodeDayValueNotProvided:             {"dayValueNotProvidedForDayQuestion", "No day value provided for day question."},
	CodeMonthValueNotProvided:           {"monthValueNotProvidedForMonthQuestion", "No month value provided for month question."},
	CodeYearValueNotProvided:            {"yearValueNotProvidedForYearQuestion", "No year value provided for year question."},
	CodeFeetInchesValueNotProvided:      {"feetInchesValueNotProvidedForFeetInchesQuestion", "No feet-inches value provided for feet-inches question."},
	CodeTextValueNotProvided:            {"textValueNotProvidedForTextQuestion", "No text value provided for text question."},
	CodeNumberValueNotProvidedForPounds: {"numberValueNotProvidedForPoundsQuestion", "No number value provided for pounds question."},
	CodeIntegerValueNotProvided:         {"integerValueNotProvidedForIntegerQuestion", "No integer value provided for integer question."},
	CodeFloatValueNotProvided:           {"floatValueNotProvidedForFloatQuestion", "No float value provided for float question."},
	CodeChoiceValueNotProvided:          {"choiceValueNotProvidedForChoiceQuestion", "No choice value provided for choice question."},
	CodeChoicesValueNotProvided:         {"choicesValueNotProvidedForChoicesQuestion", "No choices value provided for choices question."},
	CodeBooleanValueNotProvided:         {"booleanValueNotProvidedForBooleanQuestion", "No boolean value provided for boolean question."},
	CodeOpenChoiceValueNotProvided:      {"neitherTextValueNorChoiceProvidedForOpenChoiceQuestion", "Neither a text value nor a choice provided for open choice question."},
	CodeBloodPressureValueNotProvided:   {"bloodPressureValueNotProvidedForBloodPressureQuestion", "No blood pressure value provided for blood pressure question."},
	CodeNumberValueNotProvidedForScale:  {"numberValueNotProvidedForScaleQuestion", "No number value provided for scale question."},
	CodeQuestionTypeNotFound:            {"questionTypeNotFound", "Question type $0 is not known."},
	CodeMultipleAnswersNotAllowed:       {"multipleAnswersNotAllowedForThisQuestion", "Multiple answers are not allowed for question $0."},
	CodeMoreAnswersThanAllowed:          {"moreAnswersProvidedThanAllowed", "More answers provided for question $0 than allowed."},
	CodeOutOfScale:                      {"answerOutOfScale", "Answer $0 is out of scale."},
	CodeNotInSurvey:                     {"answerQxNotInSurvey", "Answered question $0 is not in the survey."},
	CodeSkippedAnswered:                 {"answerToBeSkippedAnswered", "Question $0 is disabled and must not be answered."},
	CodeRequiredMissing:                 {"answerRequiredMissing", "Required questions are not answered: $*."},
	CodeRuleLogicUnknown:                {"answerRuleLogicUnknown", "Rule logic $0 is not known."},
	CodeInvalidAssessmentSurveys:        {"answerInvalidAssesSurveys", "Assessment $0 does not have exactly one survey; survey id is required."},
	CodeInvalidSurveyInAssessment:       {"answerInvalidSurveyInAsses", "Survey $0 is not part of assessment $1."},
	CodeInvalidMultipleIndex:            {"answerInvalidMultipleIndex", "Multiple index $1 of question $0 is negative or repeated."},
	CodeInvalidStatus:                   {"answerInvalidStatus", "Status $0 is not valid; use in-progress or completed."},
	CodeSearchQuestionRepeat:            {"searchQuestionRepeat", "Question $0 appears more than once in the search criteria."},
}

func (c Code) String() string {
	if c < 0 || c >= codeCount {
		return codeTable[CodeUnknown].name
	}
	return codeTable[c].name
}

// Error is a validation or business rule failure. It is deterministic: the
// same input always produces the same Error.
type Error struct {
	Code   Code
	Params []string
}

func newError(c Code, params ...string) *Error { return &Error{Code: c, Params: params} }

func (e *Error) Error() string {
	return e.Code.String() + ": " + e.Message()
}

// Message renders the code's template with its params.
func (e *Error) Message() string {
	if e.Code < 0 || e.Code >= codeCount {
		return codeTable[CodeUnknown].template
	}
	msg := strings.ReplaceAll(codeTable[e.Code].template, "$*", strings.Join(e.Params, ", "))
	for i := len(e.Params) - 1; i >= 0; i-- {
		msg = strings.ReplaceAll(msg, fmt.Sprintf("$%d", i), e.Params[i])
	}
	return msg
}

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, answer.ErrRequiredMissing).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrMultipleAnswersNotAllowed = &Error{Code: CodeMultipleAnswersNotAllowed}
	ErrMoreAnswersThanAllowed    = &Error{Code: CodeMoreAnswersThanAllowed}
	ErrOutOfScale                = &Error{Code: CodeOutOfScale}
	ErrNotInSurvey               = &Error{Code: CodeNotInSurvey}
	ErrSkippedAnswered           = &Error{Code: CodeSkippedAnswered}
	ErrRequiredMissing           = &Error{Code: CodeRequiredMissing}
	ErrRuleLogicUnknown          = &Error{Code: CodeRuleLogicUnknown}
	ErrQuestionTypeNotFound      = &Error{Code: CodeQuestionTypeNotFound}
	ErrInvalidAssessmentSurveys  = &Error{Code: CodeInvalidAssessmentSurveys}
	ErrInvalidSurveyInAssessment = &Error{Code: CodeInvalidSurveyInAssessment}
	ErrInvalidMultipleIndex      = &Error{Code: CodeInvalidMultipleIndex}
	ErrInvalidStatus             = &Error{Code: CodeInvalidStatus}
	ErrSearchQuestionRepeat      = &Error{Code: CodeSearchQuestionRepeat}
)
