package answer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/survey"
)

func boolp(b bool) *bool      { return &b }
func i64p(v int64) *int64     { return &v }
func f64p(v float64) *float64 { return &v }
func intp(v int) *int         { return &v }

func boolAnswer(b bool) *survey.Answer { return &survey.Answer{BoolValue: boolp(b)} }

// tickClock returns strictly increasing times, one second apart.
func tickClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func sq(id int64, typ survey.QuestionType, required bool, line int) survey.SurveyQuestion {
	return survey.SurveyQuestion{Question: survey.Question{ID: id, Type: typ}, Required: required, Line: line}
}

// gatedSurvey is Q1 (bool, required) and Q2 (choice, required) where Q2 is
// enabled only when Q1 is answered true.
func gatedSurvey() survey.Survey {
	q2 := sq(2, survey.TypeChoice, true, 2)
	q2.Choices = []survey.Choice{{ID: 21, Text: "yes", Line: 0}, {ID: 22, Text: "no", Line: 1}}
	return survey.Survey{
		ID:        1,
		Name:      "gated",
		Questions: []survey.SurveyQuestion{sq(1, survey.TypeBool, true, 1), q2},
		Rules: []survey.Rule{{
			SourceQuestionID: 1,
			TargetQuestionID: 2,
			Logic:            survey.LogicEquals,
			Answer:           boolAnswer(true),
		}},
	}
}

// nestedSurvey has Q1 at the root, section 100 holding Q3 and gated on
// Q1 == true, and section 200 owned by Q3 holding Q4.
func nestedSurvey() survey.Survey {
	return survey.Survey{
		ID:   2,
		Name: "nested",
		Questions: []survey.SurveyQuestion{
			sq(1, survey.TypeBool, true, 1),
			sq(3, survey.TypeText, true, 2),
			sq(4, survey.TypeText, false, 3),
		},
		Sections: []survey.Section{
			{ID: 100, Line: 1, QuestionIDs: []int64{3}},
			{ID: 200, Line: 2, Parent: survey.QuestionParent(3), QuestionIDs: []int64{4}},
		},
		Rules: []survey.Rule{{
			SourceQuestionID: 1,
			TargetSectionID:  100,
			Logic:            survey.LogicEquals,
			Answer:           boolAnswer(true),
		}},
	}
}

func newTestService(t *testing.T, opts ...Option) (*Service, survey.Store) {
	t.Helper()
	store := survey.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.PutSurvey(ctx, gatedSurvey()))
	require.NoError(t, store.PutSurvey(ctx, nestedSurvey()))
	opts = append([]Option{WithClock(tickClock())}, opts...)
	return NewService(store, opts...), store
}

func requireCode(t *testing.T, err error, want Code) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, &Error{Code: want}, "got %v", err)
}
