package export

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/storage"
	"github.com/mind-engage/survey-registry/internal/survey"
)

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }
func boolp(b bool) *bool    { return &b }
func intp(v int) *int       { return &v }

var questions = map[int64]survey.Question{
	1: {ID: 1, Type: survey.TypeBool},
	2: {ID: 2, Type: survey.TypeText},
	3: {ID: 3, Type: survey.TypeChoices, Choices: []survey.Choice{
		{ID: 31, Type: survey.ChoiceBool},
		{ID: 32, Type: survey.ChoiceText},
	}},
	4: {ID: 4, Type: survey.TypeMonth},
	5: {ID: 5, Type: survey.TypeInteger, Multiple: true},
}

func sampleAnswers() []survey.LogicalAnswer {
	return []survey.LogicalAnswer{
		{QuestionID: 1, SurveyID: 9, Answer: &survey.Answer{BoolValue: boolp(true)}},
		{QuestionID: 2, SurveyID: 9, Answer: &survey.Answer{TextValue: strp(`said "hi", left\`)}},
		{QuestionID: 3, SurveyID: 9, Answer: &survey.Answer{Choices: []survey.ChoiceAnswer{
			{ID: 31, BoolValue: boolp(true)},
			{ID: 32, TextValue: strp("other, see notes")},
		}}},
		{QuestionID: 5, SurveyID: 9, Answers: []survey.Answer{
			{IntegerValue: i64p(3), MultipleIndex: intp(0)},
			{IntegerValue: i64p(4), MultipleIndex: intp(2)},
		}},
	}
}

func TestToRecords(t *testing.T) {
	recs, err := ToRecords(7, sampleAnswers(), questions)
	require.NoError(t, err)
	require.Len(t, recs, 6)

	assert.Equal(t, Record{UserID: 7, SurveyID: 9, QuestionID: 1, QuestionType: survey.TypeBool, Value: "true"}, recs[0])
	assert.Equal(t, survey.ChoiceBool, recs[2].ChoiceType)
	assert.Equal(t, int64(31), *recs[2].QuestionChoiceID)
	assert.Equal(t, survey.ChoiceText, recs[3].ChoiceType)
	assert.Equal(t, "other, see notes", recs[3].Value)
	assert.Equal(t, 2, *recs[5].MultipleIndex)

	_, err = ToRecords(7, []survey.LogicalAnswer{{QuestionID: 99, Answer: &survey.Answer{}}}, questions)
	assert.ErrorIs(t, err, survey.ErrNotFound)
}

func TestCSVRoundTrip(t *testing.T) {
	in := sampleAnswers()
	recs, err := ToRecords(7, in, questions)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs, true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "userId,surveyId,questionId,questionChoiceId,questionType,choiceType,value,multipleIndex", lines[0])
	assert.Equal(t, "7,9,1,,bool,,true,", lines[1])
	assert.Equal(t, `7,9,2,,text,,"said ""hi"", left\",`, lines[2])

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, recs, back)

	out, err := FromRecords(back, questions)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, in[i].QuestionID, out[i].QuestionID)
		assert.Equal(t, in[i].SurveyID, out[i].SurveyID)
	}
	assert.Equal(t, in[0].Answer, out[0].Answer)
	assert.Equal(t, in[1].Answer, out[1].Answer)
	assert.ElementsMatch(t, in[2].Answer.Choices, out[2].Answer.Choices)
	assert.Equal(t, in[3].Answers, out[3].Answers)
}

func TestCSVWithoutOptionalColumns(t *testing.T) {
	recs := []Record{{SurveyID: 1, QuestionID: 2, QuestionType: survey.TypeText, Value: "x"}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs, false))
	assert.Equal(t, "surveyId,questionId,questionChoiceId,questionType,choiceType,value\n1,2,,text,,x\n", buf.String())

	back, err := ReadCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, recs, back)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("value\nx\n"))
	assert.ErrorContains(t, err, "missing column")

	_, err = ReadCSV(strings.NewReader("surveyId,questionId\n1,abc\n"))
	assert.ErrorContains(t, err, "line 2")

	recs, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestXLSXRoundTrip(t *testing.T) {
	recs, err := ToRecords(7, sampleAnswers(), questions)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, recs, true))
	back, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, recs, back)
}

func TestIDMapsRows(t *testing.T) {
	maps := IDMaps{
		Users:   map[int64]int64{7: 70},
		Surveys: map[int64]int64{9: 90},
		Questions: map[int64]QuestionMap{
			3: {QuestionID: 30, Choices: map[int64]int64{31: 310}},
			4: {QuestionID: 40},
		},
	}
	rows, err := maps.Rows([]Record{
		{UserID: 7, SurveyID: 9, QuestionID: 3, QuestionChoiceID: i64p(31), QuestionType: survey.TypeChoices, Value: ""},
		{UserID: 7, SurveyID: 9, QuestionID: 4, QuestionType: survey.TypeMonth, Value: "3"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(70), rows[0].UserID)
	assert.Equal(t, int64(90), rows[0].SurveyID)
	assert.Equal(t, int64(30), rows[0].QuestionID)
	assert.Equal(t, int64(310), *rows[0].QuestionChoiceID)
	assert.Nil(t, rows[0].Value)
	assert.Equal(t, "en", rows[0].Language)
	assert.Equal(t, "03", *rows[1].Value)

	maps.UserID = 5
	rows, err = maps.Rows([]Record{{UserID: 1234, SurveyID: 9, QuestionID: 4, Value: "11"}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), rows[0].UserID)
	assert.Equal(t, "11", *rows[0].Value)

	_, err = maps.Rows([]Record{{SurveyID: 8, QuestionID: 4}})
	assert.ErrorContains(t, err, "survey 8")
	_, err = maps.Rows([]Record{{SurveyID: 9, QuestionID: 3, QuestionChoiceID: i64p(99)}})
	assert.ErrorContains(t, err, "choice 99")
}

func seededStore(t *testing.T) survey.Store {
	t.Helper()
	ctx := context.Background()
	store := survey.NewInMemoryStore()
	sq := func(q survey.Question, line int) survey.SurveyQuestion {
		return survey.SurveyQuestion{Question: q, Line: line}
	}
	require.NoError(t, store.PutSurvey(ctx, survey.Survey{ID: 9, Questions: []survey.SurveyQuestion{
		sq(questions[1], 1), sq(questions[2], 2), sq(questions[3], 3), sq(questions[4], 4), sq(questions[5], 5),
	}}))
	return store
}

func TestExporterRecordsAndImport(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, u := range []int64{2, 1} {
		recs, err := ToRecords(u, sampleAnswers(), questions)
		require.NoError(t, err)
		rows := make([]survey.Row, 0, len(recs))
		for _, r := range recs {
			row := r.row()
			row.Language, row.CreatedAt = "en", at
			rows = append(rows, row)
		}
		require.NoError(t, store.ImportRows(ctx, rows))
	}

	ex := NewExporter(store, store)
	recs, err := ex.Records(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, recs, 12)
	assert.Equal(t, int64(1), recs[0].UserID)
	assert.Equal(t, int64(2), recs[len(recs)-1].UserID)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, recs, true))
	identity := IDMaps{
		Users:     map[int64]int64{1: 11, 2: 12},
		Surveys:   map[int64]int64{9: 9},
		Questions: map[int64]QuestionMap{},
	}
	for id, q := range questions {
		qm := QuestionMap{QuestionID: id, Choices: map[int64]int64{}}
		for _, c := range q.Choices {
			qm.Choices[c.ID] = c.ID
		}
		identity.Questions[id] = qm
	}
	n, err := ex.Import(ctx, &buf, identity)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	imported, err := ex.Records(ctx, []int64{11})
	require.NoError(t, err)
	require.Len(t, imported, 6)
	assert.Equal(t, "true", imported[0].Value)
}

func TestExporterAssessmentRecords(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	require.NoError(t, store.PutAssessment(ctx, survey.Assessment{ID: 20, Group: "intake", SurveyIDs: []int64{9}}))
	require.NoError(t, store.PutAssessment(ctx, survey.Assessment{ID: 21, Group: "intake", Stage: 1, SurveyIDs: []int64{9}}))
	require.NoError(t, store.PutAssessment(ctx, survey.Assessment{ID: 30, SurveyIDs: []int64{9}}))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, aid := range []int64{20, 21, 30} {
		id := aid
		m := survey.MasterID{UserID: 1, SurveyID: 9, AssessmentID: &id}
		v := "stage-" + strconv.FormatInt(id, 10)
		require.NoError(t, store.ApplyBatch(ctx, survey.Batch{Master: m, Status: survey.StatusCompleted, At: at, Supersede: []int64{2},
			Rows: []survey.Row{{UserID: 1, SurveyID: 9, AssessmentID: &id, QuestionID: 2, Value: &v, Language: "en", CreatedAt: at}}}))
	}

	ex := NewExporter(store, store)
	recs, err := ex.AssessmentRecords(ctx, AssessmentQuery{SurveyID: 9})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "stage-21", recs[0].Value)
	assert.Equal(t, int64(21), *recs[0].AssessmentID)
	assert.Equal(t, "intake", recs[0].Group)
	assert.Equal(t, 1, recs[0].Stage)
	assert.Equal(t, "2024-01-02", recs[0].Date)
	assert.Equal(t, "stage-30", recs[1].Value)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, recs, true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "userId,surveyId,questionId,questionChoiceId,questionType,choiceType,value,assessmentId,group,stage,date", lines[0])
	assert.Equal(t, "1,9,2,,text,,stage-21,21,intake,1,2024-01-02", lines[1])

	none, err := ex.AssessmentRecords(ctx, AssessmentQuery{SurveyID: 9, UserIDs: []int64{2}})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = ex.AssessmentRecords(ctx, AssessmentQuery{})
	assert.ErrorIs(t, err, ErrSurveyRequired)
}

func TestExporterArchive(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	ex := NewExporter(store, store)
	ex.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	u, err := ex.Archive(ctx, blobs, FormatXLSX, []int64{1})
	require.NoError(t, err)
	assert.Contains(t, u, "exports/20240601/")
	assert.True(t, strings.HasSuffix(u, ".xlsx"), u)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", f.ContentType())
	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
