package answer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/survey"
)

func intAnswer(v int64) *survey.Answer { return &survey.Answer{IntegerValue: i64p(v)} }

func rule(logic survey.Logic, expected *survey.Answer) survey.Rule {
	return survey.Rule{SourceQuestionID: 1, TargetQuestionID: 2, Logic: logic, Answer: expected}
}

func TestEvaluateEquals(t *testing.T) {
	r := rule(survey.LogicEquals, intAnswer(5))

	ok, err := Evaluate(r, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: intAnswer(5)}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate(r, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: intAnswer(6)}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Evaluate(r, map[int64]survey.LogicalAnswer{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateNotEqualsWithoutAnswerIsFalse(t *testing.T) {
	r := rule(survey.LogicNotEquals, intAnswer(5))

	ok, err := Evaluate(r, map[int64]survey.LogicalAnswer{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Evaluate(r, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: intAnswer(6)}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateExistsComplement(t *testing.T) {
	sets := []map[int64]survey.LogicalAnswer{
		{},
		{1: {QuestionID: 1}},
		{1: {QuestionID: 1, Answer: intAnswer(1)}},
		{1: {QuestionID: 1, Answers: []survey.Answer{*intAnswer(1)}}},
		{1: {QuestionID: 1, Comment: &survey.Comment{Text: "n/a"}}},
	}
	for i, answers := range sets {
		exists, err := Evaluate(rule(survey.LogicExists, nil), answers)
		require.NoError(t, err)
		notExists, err := Evaluate(rule(survey.LogicNotExists, nil), answers)
		require.NoError(t, err)
		assert.NotEqual(t, exists, notExists, "set %d", i)
	}
}

func TestEvaluateAnyIsOr(t *testing.T) {
	answers := map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: intAnswer(2)}}
	falseRule := rule(survey.LogicEquals, intAnswer(1))
	trueRule := rule(survey.LogicEquals, intAnswer(2))

	ok, err := EvaluateAny([]survey.Rule{falseRule, trueRule}, answers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateAny([]survey.Rule{falseRule, falseRule}, answers)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateUnknownLogic(t *testing.T) {
	_, err := Evaluate(rule("greater-than", intAnswer(1)), nil)
	requireCode(t, err, CodeRuleLogicUnknown)

	// a satisfied rule earlier in the set does not hide the bad one
	answers := map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: intAnswer(1)}}
	_, err = EvaluateAny([]survey.Rule{rule(survey.LogicExists, nil), rule("greater-than", nil)}, answers)
	requireCode(t, err, CodeRuleLogicUnknown)
}

func resolvedQuestions(t *testing.T, s survey.Survey) []survey.SurveyQuestion {
	t.Helper()
	qs, err := s.Resolve()
	require.NoError(t, err)
	return qs
}

func TestResolverDirectRules(t *testing.T) {
	s := gatedSurvey()
	qs := resolvedQuestions(t, s)
	rules := survey.NewRuleSet(s.Rules)

	res, err := NewResolver(rules, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: boolAnswer(false)}}).ResolveAll(qs)
	require.NoError(t, err)
	assert.Equal(t, Resolution{QuestionID: 1, Enabled: true, Required: false}, res[0])
	assert.Equal(t, Resolution{QuestionID: 2, Enabled: false, Required: false, Ignore: true}, res[1])

	res, err = NewResolver(rules, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: boolAnswer(true)}}).ResolveAll(qs)
	require.NoError(t, err)
	assert.Equal(t, Resolution{QuestionID: 2, Enabled: true, Required: true}, res[1])
}

func TestResolverSectionChain(t *testing.T) {
	s := nestedSurvey()
	qs := resolvedQuestions(t, s)
	require.Equal(t, []survey.ParentRef{
		survey.SectionParent(200), survey.QuestionParent(3), survey.SectionParent(100),
	}, qs[2].Parents)
	rules := survey.NewRuleSet(s.Rules)

	off := NewResolver(rules, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: boolAnswer(false)}})
	for _, q := range qs[1:] {
		r, err := off.Resolve(q)
		require.NoError(t, err)
		assert.True(t, r.Ignore, "question %d", q.ID)
		assert.False(t, r.Required, "question %d", q.ID)
	}

	on := NewResolver(rules, map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: boolAnswer(true)}})
	r, err := on.Resolve(qs[2])
	require.NoError(t, err)
	assert.True(t, r.Enabled)
}

func TestResolverDirectRulesOverrideParents(t *testing.T) {
	s := nestedSurvey()
	s.Rules = append(s.Rules, survey.Rule{SourceQuestionID: 1, TargetQuestionID: 4, Logic: survey.LogicExists})
	qs := resolvedQuestions(t, s)

	// section 100 is disabled, but Q4's own rule holds
	r, err := NewResolver(survey.NewRuleSet(s.Rules), map[int64]survey.LogicalAnswer{1: {QuestionID: 1, Answer: boolAnswer(false)}}).Resolve(qs[2])
	require.NoError(t, err)
	assert.True(t, r.Enabled)
}

func TestCheckCompletion(t *testing.T) {
	ctx := context.Background()
	none := func(context.Context, []int64) ([]survey.Row, error) { return nil, nil }
	stored := func(_ context.Context, ids []int64) ([]survey.Row, error) {
		var out []survey.Row
		for _, id := range ids {
			if id == 3 {
				out = append(out, survey.Row{QuestionID: 3}, survey.Row{QuestionID: 3})
			}
		}
		return out, nil
	}

	err := CheckCompletion(ctx, survey.StatusCompleted, []int64{3}, nil, none)
	requireCode(t, err, CodeRequiredMissing)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"3"}, be.Params)

	assert.NoError(t, CheckCompletion(ctx, survey.StatusInProgress, []int64{3}, nil, none))
	assert.NoError(t, CheckCompletion(ctx, survey.StatusCompleted, []int64{3}, nil, stored))

	// a question cleared by the batch cannot be satisfied by stored rows
	requireCode(t, CheckCompletion(ctx, survey.StatusCompleted, []int64{3}, map[int64]bool{3: true}, stored), CodeRequiredMissing)
}
