package answer

import (
	"context"
	"strconv"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// PersistedLookup returns live stored rows for the given questions.
type PersistedLookup func(ctx context.Context, questionIDs []int64) ([]survey.Row, error)

// RemainingRequired lists questions that are required, not ignored and not
// answered in the batch, in survey order. Resolutions already carry the
// batch adjustment, so this is a filter.
func RemainingRequired(res []Resolution) []int64 {
	var out []int64
	for _, r := range res {
		if r.Required && !r.Ignore {
			out = append(out, r.QuestionID)
		}
	}
	return out
}

// StoredRequired lists the remaining questions a completed batch leaves to
// stored answers, that is those it does not clear.
func StoredRequired(status survey.Status, remaining []int64, cleared map[int64]bool) []int64 {
	if status != survey.StatusCompleted {
		return nil
	}
	var ids []int64
	for _, id := range remaining {
		if !cleared[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// CheckCompletion enforces that a completed batch leaves nothing required
// unanswered. Questions cleared by the batch cannot count as answered even
// if stored rows exist for them. Other statuses are never checked.
func CheckCompletion(ctx context.Context, status survey.Status, remaining []int64, cleared map[int64]bool, lookup PersistedLookup) error {
	if status != survey.StatusCompleted || len(remaining) == 0 {
		return nil
	}
	ids := StoredRequired(status, remaining, cleared)
	answered := map[int64]bool{}
	if len(ids) > 0 {
		rows, err := lookup(ctx, ids)
		if err != nil {
			return err
		}
		for _, r := range rows {
			answered[r.QuestionID] = true
		}
	}
	if len(answered) >= len(remaining) {
		return nil
	}
	var missing []string
	for _, id := range remaining {
		if !answered[id] {
			missing = append(missing, strconv.FormatInt(id, 10))
		}
	}
	return newError(CodeRequiredMissing, missing...)
}
