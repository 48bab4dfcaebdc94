package answer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// QuestionFilter selects participants by their live baseline answers to
// one question. A participant matches when a stored value equals one of
// Answers, or with Exclude when a stored value equals none of them. No
// Answers matches any stored value. For numeric questions a text value
// "min:max" matches the inclusive range.
type QuestionFilter struct {
	QuestionID int64           `json:"id"`
	Answers    []survey.Answer `json:"answers,omitempty"`
	Exclude    bool            `json:"exclude,omitempty"`
}

// SearchCriteria is satisfied by participants matching every filter.
type SearchCriteria struct {
	Questions []QuestionFilter `json:"questions"`
}

type rowMatcher func(survey.Row) bool

func numericType(t survey.QuestionType) bool {
	switch t {
	case survey.TypeInteger, survey.TypeFloat, survey.TypePounds, survey.TypeScale:
		return true
	}
	return false
}

func sameChoice(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func matchers(f QuestionFilter, q survey.Question) ([]rowMatcher, error) {
	var out []rowMatcher
	for i := range f.Answers {
		a := &f.Answers[i]
		if numericType(q.Type) && a.TextValue != nil && strings.Contains(*a.TextValue, ":") {
			min, max := ScaleBounds(*a.TextValue)
			out = append(out, func(r survey.Row) bool {
				v, err := strconv.ParseFloat(rowValue(r), 64)
				return err == nil && (min == nil || v >= *min) && (max == nil || v <= *max)
			})
			continue
		}
		if err := ValidateValue(a, q); err != nil {
			return nil, err
		}
		want, err := valueRows(a, q)
		if err != nil {
			return nil, err
		}
		for _, w := range want {
			w := w
			out = append(out, func(r survey.Row) bool {
				return sameChoice(w.QuestionChoiceID, r.QuestionChoiceID) && (w.Value == nil || rowValue(r) == *w.Value)
			})
		}
	}
	return out, nil
}

// SearchParticipants returns the ids of users whose live baseline answers
// satisfy c, ascending. Empty criteria select every user with an answer.
func (s *Service) SearchParticipants(ctx context.Context, c SearchCriteria) ([]int64, error) {
	ids := make([]int64, 0, len(c.Questions))
	seen := map[int64]bool{}
	for _, f := range c.Questions {
		if seen[f.QuestionID] {
			return nil, newError(CodeSearchQuestionRepeat, strconv.FormatInt(f.QuestionID, 10))
		}
		seen[f.QuestionID] = true
		ids = append(ids, f.QuestionID)
	}
	rows, err := s.store.ListRows(ctx, survey.RowQuery{QuestionIDs: ids})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return distinctUsers(rows, nil), nil
	}

	questions, err := s.catalog.GetQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	filters := make(map[int64]QuestionFilter, len(c.Questions))
	match := make(map[int64][]rowMatcher, len(c.Questions))
	for _, f := range c.Questions {
		q, ok := questions[f.QuestionID]
		if !ok {
			return nil, fmt.Errorf("question %d: %w", f.QuestionID, survey.ErrNotFound)
		}
		if match[f.QuestionID], err = matchers(f, q); err != nil {
			return nil, err
		}
		filters[f.QuestionID] = f
	}

	hits := map[int64]map[int64]bool{}
	for _, r := range rows {
		ms := match[r.QuestionID]
		ok := len(ms) == 0
		for _, m := range ms {
			if m(r) {
				ok = true
				break
			}
		}
		if len(ms) > 0 && filters[r.QuestionID].Exclude {
			ok = !ok
		}
		if !ok {
			continue
		}
		if hits[r.UserID] == nil {
			hits[r.UserID] = map[int64]bool{}
		}
		hits[r.UserID][r.QuestionID] = true
	}
	return distinctUsers(rows, func(u int64) bool { return len(hits[u]) == len(ids) }), nil
}

// CountParticipants is SearchParticipants reduced to a count.
func (s *Service) CountParticipants(ctx context.Context, c SearchCriteria) (int, error) {
	ids, err := s.SearchParticipants(ctx, c)
	return len(ids), err
}

func distinctUsers(rows []survey.Row, keep func(int64) bool) []int64 {
	seen := map[int64]bool{}
	out := []int64{}
	for _, r := range rows {
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true
		if keep == nil || keep(r.UserID) {
			out = append(out, r.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
