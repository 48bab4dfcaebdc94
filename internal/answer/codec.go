package answer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/survey-registry/internal/survey"
)

func strp(s string) *string { return &s }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// valueRows turns one answer value into rows carrying only the question,
// choice, value and file fields.
func valueRows(a *survey.Answer, q survey.Question) ([]survey.Row, error) {
	base := survey.Row{QuestionID: q.ID}
	one := func(v string) []survey.Row {
		r := base
		r.Value = strp(v)
		return []survey.Row{r}
	}
	switch q.Type {
	case survey.TypeBool:
		return one(strconv.FormatBool(*a.BoolValue)), nil
	case survey.TypeText, survey.TypeBullet:
		return one(*a.TextValue), nil
	case survey.TypeInteger:
		return one(strconv.FormatInt(*a.IntegerValue, 10)), nil
	case survey.TypeFloat:
		return one(formatFloat(*a.FloatValue)), nil
	case survey.TypePounds, survey.TypeScale:
		return one(formatFloat(*a.NumberValue)), nil
	case survey.TypeDate:
		return one(*a.DateValue), nil
	case survey.TypeDay:
		return one(*a.DayValue), nil
	case survey.TypeMonth:
		return one(*a.MonthValue), nil
	case survey.TypeYear:
		return one(*a.YearValue), nil
	case survey.TypeFeetInches:
		return one(fmt.Sprintf("%d-%d", a.FeetInchesValue.Feet, a.FeetInchesValue.Inches)), nil
	case survey.TypeBloodPressure:
		return one(fmt.Sprintf("%d-%d", a.BloodPressureValue.Systolic, a.BloodPressureValue.Diastolic)), nil
	case survey.TypeChoice, survey.TypeChoiceRef:
		r := base
		r.QuestionChoiceID = a.Choice
		return []survey.Row{r}, nil
	case survey.TypeOpenChoice:
		r := base
		r.QuestionChoiceID = a.Choice
		r.Value = a.TextValue
		return []survey.Row{r}, nil
	case survey.TypeChoices:
		out := make([]survey.Row, 0, len(a.Choices))
		for _, c := range a.Choices {
			if c.BoolValue != nil && !*c.BoolValue {
				continue
			}
			r := base
			id := c.ID
			r.QuestionChoiceID = &id
			if c.TextValue != nil {
				r.Value = strp(*c.TextValue)
			} else {
				r.Value = strp("true")
			}
			out = append(out, r)
		}
		return out, nil
	case survey.TypeFile:
		r := base
		f := a.FileValue
		if f.ID != 0 {
			id := f.ID
			r.FileID = &id
		}
		r.Value = strp(f.Name)
		r.FileName, r.FileContent = f.Name, f.Content
		return []survey.Row{r}, nil
	}
	return nil, newError(CodeQuestionTypeNotFound, string(q.Type))
}

// multipleIndex is the index the i-th element of an answers list is stored
// under.
func multipleIndex(i int, a *survey.Answer) int {
	if a.MultipleIndex != nil {
		return *a.MultipleIndex
	}
	return i
}

// Expand converts a logical answer into its physical rows. A clear entry
// yields no rows. Rows of a multiple question are tagged with the answer's
// multipleIndex, or its position when none was given.
func Expand(la survey.LogicalAnswer, q survey.Question) ([]survey.Row, error) {
	if len(la.Answers) > 0 {
		var out []survey.Row
		for i := range la.Answers {
			a := &la.Answers[i]
			idx := multipleIndex(i, a)
			rows, err := valueRows(a, q)
			if err != nil {
				return nil, err
			}
			for j := range rows {
				mi := idx
				rows[j].MultipleIndex = &mi
			}
			out = append(out, rows...)
		}
		return out, nil
	}
	if la.Answer == nil {
		return nil, nil
	}
	return valueRows(la.Answer, q)
}

func splitPair(v string) (int, int, error) {
	a, b, ok := strings.Cut(v, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed pair %q", v)
	}
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func rowValue(r survey.Row) string {
	if r.Value == nil {
		return ""
	}
	return *r.Value
}

// parseValue rebuilds one answer value from the rows of one multiple index.
func parseValue(rows []survey.Row, q survey.Question) (*survey.Answer, error) {
	a := &survey.Answer{}
	first := rows[0]
	v := rowValue(first)
	var err error
	switch q.Type {
	case survey.TypeBool:
		var b bool
		b, err = strconv.ParseBool(v)
		a.BoolValue = &b
	case survey.TypeText, survey.TypeBullet:
		a.TextValue = strp(v)
	case survey.TypeInteger:
		var n int64
		n, err = strconv.ParseInt(v, 10, 64)
		a.IntegerValue = &n
	case survey.TypeFloat:
		var f float64
		f, err = strconv.ParseFloat(v, 64)
		a.FloatValue = &f
	case survey.TypePounds, survey.TypeScale:
		var f float64
		f, err = strconv.ParseFloat(v, 64)
		a.NumberValue = &f
	case survey.TypeDate:
		a.DateValue = strp(v)
	case survey.TypeDay:
		a.DayValue = strp(v)
	case survey.TypeMonth:
		a.MonthValue = strp(v)
	case survey.TypeYear:
		a.YearValue = strp(v)
	case survey.TypeFeetInches:
		var x, y int
		x, y, err = splitPair(v)
		a.FeetInchesValue = &survey.FeetInches{Feet: x, Inches: y}
	case survey.TypeBloodPressure:
		var x, y int
		x, y, err = splitPair(v)
		a.BloodPressureValue = &survey.BloodPressure{Systolic: x, Diastolic: y}
	case survey.TypeChoice, survey.TypeChoiceRef:
		a.Choice = first.QuestionChoiceID
	case survey.TypeOpenChoice:
		a.Choice = first.QuestionChoiceID
		a.TextValue = first.Value
	case survey.TypeChoices:
		a.Choices = make([]survey.ChoiceAnswer, 0, len(rows))
		for _, r := range rows {
			if r.QuestionChoiceID == nil {
				continue
			}
			ca := survey.ChoiceAnswer{ID: *r.QuestionChoiceID}
			if c, ok := q.ChoiceByID(ca.ID); ok && c.Type == survey.ChoiceText {
				ca.TextValue = strp(rowValue(r))
			} else {
				b := true
				ca.BoolValue = &b
			}
			a.Choices = append(a.Choices, ca)
		}
	case survey.TypeFile:
		a.FileValue = &survey.FileValue{Name: v}
		if first.FileID != nil {
			a.FileValue.ID = *first.FileID
		}
	default:
		return nil, newError(CodeQuestionTypeNotFound, string(q.Type))
	}
	if err != nil {
		return nil, fmt.Errorf("question %d: decode %q: %w", q.ID, v, err)
	}
	return a, nil
}

// Collapse rebuilds the logical answer of q from its rows. Multiple
// questions, and rows that carry a multiple index, come back as an answers
// list ordered by index.
func Collapse(rows []survey.Row, q survey.Question) (survey.LogicalAnswer, error) {
	la := survey.LogicalAnswer{QuestionID: q.ID}
	if len(rows) == 0 {
		return la, nil
	}
	indexed := q.Multiple
	for _, r := range rows {
		if r.MultipleIndex != nil {
			indexed = true
		}
	}
	if !indexed {
		a, err := parseValue(rows, q)
		if err != nil {
			return la, err
		}
		la.Answer = a
		return la, nil
	}

	groups := map[int][]survey.Row{}
	for _, r := range rows {
		idx := 0
		if r.MultipleIndex != nil {
			idx = *r.MultipleIndex
		}
		groups[idx] = append(groups[idx], r)
	}
	idxs := make([]int, 0, len(groups))
	for i := range groups {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for _, i := range idxs {
		a, err := parseValue(groups[i], q)
		if err != nil {
			return la, err
		}
		mi := i
		a.MultipleIndex = &mi
		la.Answers = append(la.Answers, *a)
	}
	return la, nil
}

type readKey struct {
	surveyID   int64
	deletedAt  int64
	questionID int64
}

// CollapseForRead groups rows by survey, supersession time and question and
// collapses each group, keeping the order in which groups first appear.
func CollapseForRead(rows []survey.Row, questions map[int64]survey.Question) ([]survey.LogicalAnswer, error) {
	var order []readKey
	groups := map[readKey][]survey.Row{}
	for _, r := range rows {
		k := readKey{surveyID: r.SurveyID, questionID: r.QuestionID}
		if r.DeletedAt != nil {
			k.deletedAt = r.DeletedAt.UnixMicro()
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	out := make([]survey.LogicalAnswer, 0, len(order))
	for _, k := range order {
		q, ok := questions[k.questionID]
		if !ok {
			return nil, newError(CodeNotInSurvey, strconv.FormatInt(k.questionID, 10))
		}
		g := groups[k]
		la, err := Collapse(g, q)
		if err != nil {
			return nil, err
		}
		la.SurveyID = k.surveyID
		la.Language = g[0].Language
		if g[0].DeletedAt != nil {
			t := g[0].DeletedAt.UTC().Truncate(time.Microsecond)
			la.DeletedAt = &t
		}
		out = append(out, la)
	}
	return out, nil
}
