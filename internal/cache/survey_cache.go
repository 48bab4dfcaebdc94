// Package cache keeps survey definitions in Redis in front of the store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// KV is the subset of the Redis client the cache uses.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SurveyCache is a read-through survey.Catalog. Redis failures are logged
// and the wrapped catalog is used directly, so a cache outage never fails a
// request.
type SurveyCache struct {
	client KV
	next   survey.Catalog
	ttl    time.Duration
}

func NewSurveyCache(client KV, next survey.Catalog, ttl time.Duration) *SurveyCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SurveyCache{client: client, next: next, ttl: ttl}
}

func questionsKey(surveyID int64) string { return fmt.Sprintf("survey:%d:questions", surveyID) }
func rulesKey(surveyID int64) string     { return fmt.Sprintf("survey:%d:rules", surveyID) }

// load returns true when key was found and decoded into dst.
func (c *SurveyCache) load(ctx context.Context, key string, dst any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		log.Printf("cache: get %s: %v", key, err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Printf("cache: decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *SurveyCache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache: encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("cache: set %s: %v", key, err)
	}
}

func (c *SurveyCache) GetSurveyQuestions(ctx context.Context, surveyID int64) ([]survey.SurveyQuestion, error) {
	key := questionsKey(surveyID)
	var qs []survey.SurveyQuestion
	if c.load(ctx, key, &qs) {
		return qs, nil
	}
	qs, err := c.next.GetSurveyQuestions(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, qs)
	return qs, nil
}

func (c *SurveyCache) GetAnswerRules(ctx context.Context, surveyID int64) (survey.RuleSet, error) {
	key := rulesKey(surveyID)
	var rs survey.RuleSet
	if c.load(ctx, key, &rs) {
		return rs, nil
	}
	rs, err := c.next.GetAnswerRules(ctx, surveyID)
	if err != nil {
		return survey.RuleSet{}, err
	}
	c.store(ctx, key, rs)
	return rs, nil
}

// GetQuestions is not cached: callers ask for arbitrary id sets.
func (c *SurveyCache) GetQuestions(ctx context.Context, ids []int64) (map[int64]survey.Question, error) {
	return c.next.GetQuestions(ctx, ids)
}

// Invalidate drops the cached definition of a survey after it changes.
func (c *SurveyCache) Invalidate(ctx context.Context, surveyID int64) error {
	if err := c.client.Del(ctx, questionsKey(surveyID), rulesKey(surveyID)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate survey %d: %w", surveyID, err)
	}
	return nil
}
