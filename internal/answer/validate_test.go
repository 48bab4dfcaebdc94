package answer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/survey"
)

func TestEveryQuestionTypeHasMissingCode(t *testing.T) {
	for _, typ := range survey.QuestionTypes() {
		code, ok := missingCode(typ)
		assert.True(t, ok, "type %s", typ)
		assert.NotEqual(t, CodeQuestionTypeNotFound, code, "type %s", typ)
	}
}

func TestValidateValueMissingField(t *testing.T) {
	cases := []struct {
		typ  survey.QuestionType
		want string
	}{
		{survey.TypeBool, "booleanValueNotProvidedForBooleanQuestion"},
		{survey.TypeText, "textValueNotProvidedForTextQuestion"},
		{survey.TypeBullet, "textValueNotProvidedForBulletQuestion"},
		{survey.TypeInteger, "integerValueNotProvidedForIntegerQuestion"},
		{survey.TypeFloat, "floatValueNotProvidedForFloatQuestion"},
		{survey.TypePounds, "numberValueNotProvidedForPoundsQuestion"},
		{survey.TypeScale, "numberValueNotProvidedForScaleQuestion"},
		{survey.TypeDate, "dateValueNotProvidedForDateQuestion"},
		{survey.TypeDay, "dayValueNotProvidedForDayQuestion"},
		{survey.TypeMonth, "monthValueNotProvidedForMonthQuestion"},
		{survey.TypeYear, "yearValueNotProvidedForYearQuestion"},
		{survey.TypeFeetInches, "feetInchesValueNotProvidedForFeetInchesQuestion"},
		{survey.TypeBloodPressure, "bloodPressureValueNotProvidedForBloodPressureQuestion"},
		{survey.TypeChoice, "choiceValueNotProvidedForChoiceQuestion"},
		{survey.TypeChoiceRef, "choiceValueNotProvidedForChoiceQuestion"},
		{survey.TypeChoices, "choicesValueNotProvidedForChoicesQuestion"},
		{survey.TypeOpenChoice, "neitherTextValueNorChoiceProvidedForOpenChoiceQuestion"},
		{survey.TypeFile, "fileValueNotProvidedForFileQuestion"},
	}
	for _, c := range cases {
		t.Run(string(c.typ), func(t *testing.T) {
			// a text value satisfies only text-like types, so use an integer
			err := ValidateValue(&survey.Answer{IntegerValue: i64p(1)}, survey.Question{ID: 1, Type: c.typ})
			if c.typ == survey.TypeInteger {
				require.NoError(t, err)
				err = ValidateValue(&survey.Answer{}, survey.Question{ID: 1, Type: c.typ})
			}
			var be *Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, c.want, be.Code.String())
		})
	}
}

func TestValidateValueOpenChoiceAcceptsEither(t *testing.T) {
	q := survey.Question{ID: 1, Type: survey.TypeOpenChoice}
	assert.NoError(t, ValidateValue(&survey.Answer{TextValue: strp("other")}, q))
	assert.NoError(t, ValidateValue(&survey.Answer{Choice: i64p(3)}, q))
}

func TestValidateValueUnknownType(t *testing.T) {
	err := ValidateValue(&survey.Answer{TextValue: strp("x")}, survey.Question{ID: 1, Type: "zipcode"})
	requireCode(t, err, CodeQuestionTypeNotFound)
	assert.Contains(t, err.Error(), "zipcode")
}

func TestScaleBoundsInclusive(t *testing.T) {
	q := survey.Question{ID: 9, Type: survey.TypeScale, Parameter: "0:5"}
	for _, v := range []float64{0, 2.5, 5} {
		assert.NoError(t, ValidateValue(&survey.Answer{NumberValue: f64p(v)}, q), "value %v", v)
	}
	for _, v := range []float64{-0.001, 5.001} {
		err := ValidateValue(&survey.Answer{NumberValue: f64p(v)}, q)
		requireCode(t, err, CodeOutOfScale)
		var be *Error
		require.ErrorAs(t, err, &be)
		assert.Equal(t, []string{formatFloat(v)}, be.Params)
	}
}

func TestScaleBoundsOptional(t *testing.T) {
	min, max := ScaleBounds(":10")
	assert.Nil(t, min)
	require.NotNil(t, max)
	assert.Equal(t, 10.0, *max)

	min, max = ScaleBounds("1:")
	require.NotNil(t, min)
	assert.Equal(t, 1.0, *min)
	assert.Nil(t, max)

	min, max = ScaleBounds("")
	assert.Nil(t, min)
	assert.Nil(t, max)

	q := survey.Question{ID: 9, Type: survey.TypeScale, Parameter: "1:"}
	assert.NoError(t, ValidateValue(&survey.Answer{NumberValue: f64p(1e9)}, q))
}

func TestValidateAnswerCardinality(t *testing.T) {
	text := func(s string) survey.Answer { return survey.Answer{TextValue: strp(s)} }

	multi := survey.Question{ID: 5, Type: survey.TypeText, Multiple: true, MaxCount: 3}
	ok := survey.LogicalAnswer{QuestionID: 5, Answers: []survey.Answer{text("a"), text("b"), text("c")}}
	assert.NoError(t, ValidateAnswer(ok, multi))

	tooMany := survey.LogicalAnswer{QuestionID: 5, Answers: []survey.Answer{text("a"), text("b"), text("c"), text("d")}}
	requireCode(t, ValidateAnswer(tooMany, multi), CodeMoreAnswersThanAllowed)

	single := survey.Question{ID: 6, Type: survey.TypeText}
	requireCode(t, ValidateAnswer(survey.LogicalAnswer{QuestionID: 6, Answers: []survey.Answer{text("a")}}, single), CodeMultipleAnswersNotAllowed)

	// scale and choices accept a list even when not multiple
	scale := survey.Question{ID: 7, Type: survey.TypeScale, Parameter: "0:5"}
	assert.NoError(t, ValidateAnswer(survey.LogicalAnswer{QuestionID: 7, Answers: []survey.Answer{{NumberValue: f64p(1)}, {NumberValue: f64p(4)}}}, scale))

	// each element is validated
	bad := survey.LogicalAnswer{QuestionID: 7, Answers: []survey.Answer{{NumberValue: f64p(1)}, {NumberValue: f64p(6)}}}
	requireCode(t, ValidateAnswer(bad, scale), CodeOutOfScale)
}

func TestValidateAnswerClearEntry(t *testing.T) {
	assert.NoError(t, ValidateAnswer(survey.LogicalAnswer{QuestionID: 1}, survey.Question{ID: 1, Type: survey.TypeBool}))
}

func TestValidateAnswerMultipleIndex(t *testing.T) {
	q := survey.Question{ID: 5, Type: survey.TypeText, Multiple: true}
	text := func(s string, mi *int) survey.Answer { return survey.Answer{TextValue: strp(s), MultipleIndex: mi} }
	list := func(as ...survey.Answer) survey.LogicalAnswer { return survey.LogicalAnswer{QuestionID: 5, Answers: as} }

	err := ValidateAnswer(list(text("first", intp(0)), text("second", intp(0))), q)
	requireCode(t, err, CodeInvalidMultipleIndex)
	var be *Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"5", "0"}, be.Params)

	requireCode(t, ValidateAnswer(list(text("x", intp(-5))), q), CodeInvalidMultipleIndex)

	// an explicit index may not land on another element's position
	requireCode(t, ValidateAnswer(list(text("a", nil), text("b", intp(0))), q), CodeInvalidMultipleIndex)

	sparse := list(text("a", intp(2)), text("b", intp(0)))
	require.NoError(t, ValidateAnswer(sparse, q))
	rows, err := Expand(sparse, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	back, err := Collapse(rows, q)
	require.NoError(t, err)
	require.Len(t, back.Answers, 2)
	assert.Equal(t, "b", *back.Answers[0].TextValue)
	assert.Equal(t, 2, *back.Answers[1].MultipleIndex)
}
