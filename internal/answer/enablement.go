package answer

import "github.com/mind-engage/survey-registry/internal/survey"

// Resolution is the enablement state of one survey question for a batch.
type Resolution struct {
	QuestionID int64
	Enabled    bool
	// Required is the question's flag after adjustment: false when the
	// question is ignored or already answered in the batch.
	Required bool
	Ignore   bool
}

// Resolver decides enablement from a survey's rules and the answers of the
// batch being processed.
type Resolver struct {
	rules   survey.RuleSet
	answers map[int64]survey.LogicalAnswer
}

func NewResolver(rules survey.RuleSet, answers map[int64]survey.LogicalAnswer) *Resolver {
	return &Resolver{rules: rules, answers: answers}
}

// Enabled applies the question's own rules when it has any. Otherwise every
// ancestor must pass; an ancestor without rules passes.
func (r *Resolver) Enabled(q survey.SurveyQuestion) (bool, error) {
	if rules := r.rules.PerQuestion[q.ID]; len(rules) > 0 {
		return EvaluateAny(rules, r.answers)
	}
	for _, p := range q.Parents {
		var rules []survey.Rule
		switch p.Kind {
		case survey.ParentSection:
			rules = r.rules.PerSection[p.ID]
		case survey.ParentQuestion:
			rules = r.rules.PerQuestion[p.ID]
		}
		if len(rules) == 0 {
			continue
		}
		ok, err := EvaluateAny(rules, r.answers)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (r *Resolver) Resolve(q survey.SurveyQuestion) (Resolution, error) {
	enabled, err := r.Enabled(q)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{QuestionID: q.ID, Enabled: enabled, Required: q.Required, Ignore: !enabled}
	if res.Ignore {
		res.Required = false
	} else if la, ok := r.answers[q.ID]; ok && la.HasContent() {
		res.Required = false
	}
	return res, nil
}

// ResolveAll resolves every question, keeping the survey's order.
func (r *Resolver) ResolveAll(qs []survey.SurveyQuestion) ([]Resolution, error) {
	out := make([]Resolution, 0, len(qs))
	for _, q := range qs {
		res, err := r.Resolve(q)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
