package answer

import (
	"strconv"
	"strings"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// missingCode names the error raised when an answer lacks the value field of
// its question type. Every type in survey.QuestionTypes has a case here.
func missingCode(t survey.QuestionType) (Code, bool) {
	switch t {
	case survey.TypeFile:
		return CodeFileValueNotProvided, true
	case survey.TypeBullet:
		return CodeTextValueNotProvidedForBullet, true
	case survey.TypeDate:
		return CodeDateValueNotProvided, true
	case survey.TypeDay:
		return CodeDayValueNotProvided, true
	case survey.TypeMonth:
		return CodeMonthValueNotProvided, true
	case survey.TypeYear:
		return CodeYearValueNotProvided, true
	case survey.TypeFeetInches:
		return CodeFeetInchesValueNotProvided, true
	case survey.TypeText:
		return CodeTextValueNotProvided, true
	case survey.TypePounds:
		return CodeNumberValueNotProvidedForPounds, true
	case survey.TypeInteger:
		return CodeIntegerValueNotProvided, true
	case survey.TypeFloat:
		return CodeFloatValueNotProvided, true
	case survey.TypeChoice, survey.TypeChoiceRef:
		return CodeChoiceValueNotProvided, true
	case survey.TypeChoices:
		return CodeChoicesValueNotProvided, true
	case survey.TypeBool:
		return CodeBooleanValueNotProvided, true
	case survey.TypeOpenChoice:
		return CodeOpenChoiceValueNotProvided, true
	case survey.TypeBloodPressure:
		return CodeBloodPressureValueNotProvided, true
	case survey.TypeScale:
		return CodeNumberValueNotProvidedForScale, true
	}
	return CodeQuestionTypeNotFound, false
}

// ScaleBounds parses a "min:max" parameter. Either side may be empty or
// unparsable, in which case that side is unbounded.
func ScaleBounds(parameter string) (min, max *float64) {
	if parameter == "" {
		return nil, nil
	}
	lo, hi, _ := strings.Cut(parameter, ":")
	if v, err := strconv.ParseFloat(strings.TrimSpace(lo), 64); err == nil {
		min = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(hi), 64); err == nil {
		max = &v
	}
	return min, max
}

// ValidateValue checks one answer value against its question's type.
func ValidateValue(a *survey.Answer, q survey.Question) error {
	schema, ok := survey.SchemaFor(q.Type)
	code, known := missingCode(q.Type)
	if !ok || !known {
		return newError(CodeQuestionTypeNotFound, string(q.Type))
	}
	if !schema.Provided(a) {
		return newError(code)
	}
	if schema.Ranged {
		v := *a.NumberValue
		min, max := ScaleBounds(q.Parameter)
		if (min != nil && v < *min) || (max != nil && v > *max) {
			return newError(CodeOutOfScale, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return nil
}

// acceptsAnswerList reports whether a non-multiple question may still be
// sent an answers list.
func acceptsAnswerList(t survey.QuestionType) bool {
	return t == survey.TypeChoices || t == survey.TypeScale
}

// ValidateAnswer checks the cardinality of a logical answer and validates
// each of its values. Elements of an answers list must land on distinct,
// non-negative multiple indexes. An entry with neither answer nor answers
// clears the question and is always valid.
func ValidateAnswer(la survey.LogicalAnswer, q survey.Question) error {
	qid := strconv.FormatInt(q.ID, 10)
	if len(la.Answers) > 0 {
		if !q.Multiple && !acceptsAnswerList(q.Type) {
			return newError(CodeMultipleAnswersNotAllowed, qid)
		}
		if q.Multiple && q.MaxCount > 0 && len(la.Answers) > q.MaxCount {
			return newError(CodeMoreAnswersThanAllowed, qid)
		}
		seen := make(map[int]bool, len(la.Answers))
		for i := range la.Answers {
			idx := multipleIndex(i, &la.Answers[i])
			if idx < 0 || seen[idx] {
				return newError(CodeInvalidMultipleIndex, qid, strconv.Itoa(idx))
			}
			seen[idx] = true
			if err := ValidateValue(&la.Answers[i], q); err != nil {
				return err
			}
		}
		return nil
	}
	if la.Answer != nil {
		return ValidateValue(la.Answer, q)
	}
	return nil
}
