package answer

import (
	"reflect"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// Evaluate decides a single rule against the answers of a batch.
// equals and not-equals are both false while the source question has no
// answer.
func Evaluate(rule survey.Rule, answers map[int64]survey.LogicalAnswer) (bool, error) {
	la, ok := answers[rule.SourceQuestionID]
	switch rule.Logic {
	case survey.LogicExists:
		return ok && la.HasContent(), nil
	case survey.LogicNotExists:
		return !(ok && la.HasContent()), nil
	case survey.LogicEquals:
		if !ok || la.Answer == nil {
			return false, nil
		}
		return reflect.DeepEqual(rule.Answer, la.Answer), nil
	case survey.LogicNotEquals:
		if !ok || la.Answer == nil {
			return false, nil
		}
		return !reflect.DeepEqual(rule.Answer, la.Answer), nil
	}
	return false, newError(CodeRuleLogicUnknown, string(rule.Logic))
}

// EvaluateAny is true when at least one rule holds. Every rule's logic is
// checked first, so an unknown logic fails regardless of rule order.
func EvaluateAny(rules []survey.Rule, answers map[int64]survey.LogicalAnswer) (bool, error) {
	for _, r := range rules {
		switch r.Logic {
		case survey.LogicExists, survey.LogicNotExists, survey.LogicEquals, survey.LogicNotEquals:
		default:
			return false, newError(CodeRuleLogicUnknown, string(r.Logic))
		}
	}
	for _, r := range rules {
		ok, err := Evaluate(r, answers)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
