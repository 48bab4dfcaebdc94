package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// fakeKV is an in-process stand-in for Redis.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	down bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

var errDown = errors.New("connection refused")

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStringResult("", errDown)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewStatusResult("", errDown)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return redis.NewIntResult(0, errDown)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// countingCatalog records how often each survey is loaded.
type countingCatalog struct {
	survey.Catalog
	questions, rules int
}

func (c *countingCatalog) GetSurveyQuestions(ctx context.Context, id int64) ([]survey.SurveyQuestion, error) {
	c.questions++
	return c.Catalog.GetSurveyQuestions(ctx, id)
}

func (c *countingCatalog) GetAnswerRules(ctx context.Context, id int64) (survey.RuleSet, error) {
	c.rules++
	return c.Catalog.GetAnswerRules(ctx, id)
}

func seeded(t *testing.T) *countingCatalog {
	t.Helper()
	store := survey.NewInMemoryStore()
	yes := true
	require.NoError(t, store.PutSurvey(context.Background(), survey.Survey{
		ID: 1,
		Questions: []survey.SurveyQuestion{
			{Question: survey.Question{ID: 1, Type: survey.TypeBool}, Required: true, Line: 1},
			{Question: survey.Question{ID: 2, Type: survey.TypeChoice, Choices: []survey.Choice{{ID: 21, Text: "a"}}}, Line: 2},
		},
		Sections: []survey.Section{{ID: 10, QuestionIDs: []int64{2}}},
		Rules: []survey.Rule{{SourceQuestionID: 1, TargetSectionID: 10, Logic: survey.LogicEquals,
			Answer: &survey.Answer{BoolValue: &yes}}},
	}))
	return &countingCatalog{Catalog: store}
}

func TestSurveyCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := seeded(t)
	kv := newFakeKV()
	c := NewSurveyCache(kv, inner, time.Minute)

	first, err := c.GetSurveyQuestions(ctx, 1)
	require.NoError(t, err)
	second, err := c.GetSurveyQuestions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.questions)
	assert.Equal(t, first, second)
	assert.Equal(t, []survey.ParentRef{survey.SectionParent(10)}, second[1].Parents)
	assert.Equal(t, time.Minute, kv.ttls["survey:1:questions"])

	rs, err := c.GetAnswerRules(ctx, 1)
	require.NoError(t, err)
	rs, err = c.GetAnswerRules(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.rules)
	require.Len(t, rs.PerSection[10], 1)
	assert.True(t, *rs.PerSection[10][0].Answer.BoolValue)
}

func TestSurveyCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	inner := seeded(t)
	c := NewSurveyCache(newFakeKV(), inner, 0)

	_, err := c.GetSurveyQuestions(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, 1))
	_, err = c.GetSurveyQuestions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.questions)
}

func TestSurveyCacheFallsThroughWhenDown(t *testing.T) {
	ctx := context.Background()
	inner := seeded(t)
	kv := newFakeKV()
	kv.down = true
	c := NewSurveyCache(kv, inner, time.Minute)

	for i := 0; i < 2; i++ {
		qs, err := c.GetSurveyQuestions(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, qs, 2)
	}
	assert.Equal(t, 2, inner.questions)
	assert.Error(t, c.Invalidate(ctx, 1))
}

func TestSurveyCacheDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	c := NewSurveyCache(kv, seeded(t), time.Minute)

	_, err := c.GetSurveyQuestions(ctx, 404)
	require.ErrorIs(t, err, survey.ErrNotFound)
	assert.Empty(t, kv.data)
}

func TestSurveyCacheIgnoresCorruptEntries(t *testing.T) {
	ctx := context.Background()
	inner := seeded(t)
	kv := newFakeKV()
	kv.data["survey:1:rules"] = "{not json"
	c := NewSurveyCache(kv, inner, time.Minute)

	rs, err := c.GetAnswerRules(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rs.PerSection[10], 1)
	assert.Equal(t, 1, inner.rules)
}
