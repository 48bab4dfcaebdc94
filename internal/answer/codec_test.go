package answer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/survey"
)

func TestExpandCollapseRoundTrip(t *testing.T) {
	choicesQ := survey.Question{ID: 10, Type: survey.TypeChoices, Choices: []survey.Choice{
		{ID: 101, Type: survey.ChoiceBool},
		{ID: 102, Type: survey.ChoiceText},
		{ID: 103},
	}}
	cases := []struct {
		name string
		q    survey.Question
		la   survey.LogicalAnswer
	}{
		{"bool", survey.Question{ID: 1, Type: survey.TypeBool},
			survey.LogicalAnswer{QuestionID: 1, Answer: boolAnswer(false)}},
		{"text", survey.Question{ID: 2, Type: survey.TypeText},
			survey.LogicalAnswer{QuestionID: 2, Answer: &survey.Answer{TextValue: strp(`a\b,"c"`)}}},
		{"integer", survey.Question{ID: 3, Type: survey.TypeInteger},
			survey.LogicalAnswer{QuestionID: 3, Answer: &survey.Answer{IntegerValue: i64p(-42)}}},
		{"float", survey.Question{ID: 4, Type: survey.TypeFloat},
			survey.LogicalAnswer{QuestionID: 4, Answer: &survey.Answer{FloatValue: f64p(3.25)}}},
		{"pounds", survey.Question{ID: 5, Type: survey.TypePounds},
			survey.LogicalAnswer{QuestionID: 5, Answer: &survey.Answer{NumberValue: f64p(150.5)}}},
		{"date", survey.Question{ID: 6, Type: survey.TypeDate},
			survey.LogicalAnswer{QuestionID: 6, Answer: &survey.Answer{DateValue: strp("2019-07-04")}}},
		{"month", survey.Question{ID: 7, Type: survey.TypeMonth},
			survey.LogicalAnswer{QuestionID: 7, Answer: &survey.Answer{MonthValue: strp("07")}}},
		{"feet-inches", survey.Question{ID: 8, Type: survey.TypeFeetInches},
			survey.LogicalAnswer{QuestionID: 8, Answer: &survey.Answer{FeetInchesValue: &survey.FeetInches{Feet: 5, Inches: 11}}}},
		{"blood-pressure", survey.Question{ID: 9, Type: survey.TypeBloodPressure},
			survey.LogicalAnswer{QuestionID: 9, Answer: &survey.Answer{BloodPressureValue: &survey.BloodPressure{Systolic: 120, Diastolic: 80}}}},
		{"choice", survey.Question{ID: 11, Type: survey.TypeChoice},
			survey.LogicalAnswer{QuestionID: 11, Answer: &survey.Answer{Choice: i64p(7)}}},
		{"open-choice text", survey.Question{ID: 12, Type: survey.TypeOpenChoice},
			survey.LogicalAnswer{QuestionID: 12, Answer: &survey.Answer{TextValue: strp("other")}}},
		{"open-choice choice", survey.Question{ID: 12, Type: survey.TypeOpenChoice},
			survey.LogicalAnswer{QuestionID: 12, Answer: &survey.Answer{Choice: i64p(4)}}},
		{"choices", choicesQ,
			survey.LogicalAnswer{QuestionID: 10, Answer: &survey.Answer{Choices: []survey.ChoiceAnswer{
				{ID: 101, BoolValue: boolp(true)},
				{ID: 102, TextValue: strp("free text")},
			}}}},
		{"multiple", survey.Question{ID: 13, Type: survey.TypeText, Multiple: true},
			survey.LogicalAnswer{QuestionID: 13, Answers: []survey.Answer{
				{TextValue: strp("first"), MultipleIndex: intp(0)},
				{TextValue: strp("second"), MultipleIndex: intp(1)},
				{TextValue: strp("fifth"), MultipleIndex: intp(4)},
			}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rows, err := Expand(c.la, c.q)
			require.NoError(t, err)
			require.NotEmpty(t, rows)
			got, err := Collapse(rows, c.q)
			require.NoError(t, err)
			if c.q.Type == survey.TypeChoices {
				require.NotNil(t, got.Answer)
				assert.ElementsMatch(t, c.la.Answer.Choices, got.Answer.Choices)
				return
			}
			assert.Equal(t, c.la, got)
		})
	}
}

func TestExpandValueSerialization(t *testing.T) {
	rows, err := Expand(survey.LogicalAnswer{QuestionID: 1, Answer: boolAnswer(true)}, survey.Question{ID: 1, Type: survey.TypeBool})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "true", *rows[0].Value)
	assert.Nil(t, rows[0].MultipleIndex)
	assert.Nil(t, rows[0].QuestionChoiceID)

	rows, err = Expand(survey.LogicalAnswer{QuestionID: 2, Answer: &survey.Answer{BloodPressureValue: &survey.BloodPressure{Systolic: 110, Diastolic: 70}}},
		survey.Question{ID: 2, Type: survey.TypeBloodPressure})
	require.NoError(t, err)
	assert.Equal(t, "110-70", *rows[0].Value)
}

func TestExpandChoicesSkipsUnselected(t *testing.T) {
	q := survey.Question{ID: 3, Type: survey.TypeChoices}
	la := survey.LogicalAnswer{QuestionID: 3, Answer: &survey.Answer{Choices: []survey.ChoiceAnswer{
		{ID: 1, BoolValue: boolp(true)},
		{ID: 2, BoolValue: boolp(false)},
		{ID: 3},
	}}}
	rows, err := Expand(la, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), *rows[0].QuestionChoiceID)
	assert.Equal(t, "true", *rows[0].Value)
	assert.Equal(t, int64(3), *rows[1].QuestionChoiceID)
}

func TestExpandMultipleDefaultsToPosition(t *testing.T) {
	q := survey.Question{ID: 4, Type: survey.TypeInteger, Multiple: true}
	la := survey.LogicalAnswer{QuestionID: 4, Answers: []survey.Answer{{IntegerValue: i64p(1)}, {IntegerValue: i64p(2)}}}
	rows, err := Expand(la, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 0, *rows[0].MultipleIndex)
	assert.Equal(t, 1, *rows[1].MultipleIndex)
}

func TestExpandClearEntry(t *testing.T) {
	rows, err := Expand(survey.LogicalAnswer{QuestionID: 1}, survey.Question{ID: 1, Type: survey.TypeText})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCollapseForReadGroupsVersions(t *testing.T) {
	q := survey.Question{ID: 1, Type: survey.TypeText}
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	rows := []survey.Row{
		{ID: 1, SurveyID: 9, QuestionID: 1, Value: strp("old"), Language: "en", DeletedAt: &t1},
		{ID: 2, SurveyID: 9, QuestionID: 1, Value: strp("older"), Language: "fr", DeletedAt: &t2},
	}
	got, err := CollapseForRead(rows, map[int64]survey.Question{1: q})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "old", *got[0].Answer.TextValue)
	assert.Equal(t, t1, *got[0].DeletedAt)
	assert.Equal(t, "fr", got[1].Language)
	assert.Equal(t, int64(9), got[1].SurveyID)
}

func TestCollapseForReadUnknownQuestion(t *testing.T) {
	_, err := CollapseForRead([]survey.Row{{QuestionID: 77, Value: strp("x")}}, map[int64]survey.Question{})
	requireCode(t, err, CodeNotInSurvey)
}
