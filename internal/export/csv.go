package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mind-engage/survey-registry/internal/survey"
)

// Column names, in file order. userId is only written for multi-user
// exports and multipleIndex only when some record carries one.
const (
	colUserID           = "userId"
	colSurveyID         = "surveyId"
	colQuestionID       = "questionId"
	colQuestionChoiceID = "questionChoiceId"
	colQuestionType     = "questionType"
	colChoiceType       = "choiceType"
	colValue            = "value"
	colMultipleIndex    = "multipleIndex"
	colAssessmentID     = "assessmentId"
	colGroup            = "group"
	colStage            = "stage"
	colDate             = "date"
)

var basicColumns = []string{colSurveyID, colQuestionID, colQuestionChoiceID, colQuestionType, colChoiceType, colValue}

// Columns returns the header of an export. Assessment columns are added when
// some record belongs to an assessment.
func Columns(withUser bool, records []Record) []string {
	var cols []string
	if withUser {
		cols = append(cols, colUserID)
	}
	cols = append(cols, basicColumns...)
	var multiple, assessment bool
	for _, r := range records {
		multiple = multiple || r.MultipleIndex != nil
		assessment = assessment || r.AssessmentID != nil
	}
	if multiple {
		cols = append(cols, colMultipleIndex)
	}
	if assessment {
		cols = append(cols, colAssessmentID, colGroup, colStage, colDate)
	}
	return cols
}

func optInt(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func (rec Record) fields(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		switch c {
		case colUserID:
			out[i] = strconv.FormatInt(rec.UserID, 10)
		case colSurveyID:
			out[i] = strconv.FormatInt(rec.SurveyID, 10)
		case colQuestionID:
			out[i] = strconv.FormatInt(rec.QuestionID, 10)
		case colQuestionChoiceID:
			out[i] = optInt(rec.QuestionChoiceID)
		case colQuestionType:
			out[i] = string(rec.QuestionType)
		case colChoiceType:
			out[i] = string(rec.ChoiceType)
		case colValue:
			out[i] = rec.Value
		case colMultipleIndex:
			if rec.MultipleIndex != nil {
				out[i] = strconv.Itoa(*rec.MultipleIndex)
			}
		case colAssessmentID:
			out[i] = optInt(rec.AssessmentID)
		case colGroup:
			out[i] = rec.Group
		case colStage:
			out[i] = strconv.Itoa(rec.Stage)
		case colDate:
			out[i] = rec.Date
		}
	}
	return out
}

// WriteCSV writes a header and one line per record. Values containing the
// delimiter, quotes or line breaks are quoted.
func WriteCSV(w io.Writer, records []Record, withUser bool) error {
	cols := Columns(withUser, records)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r.fields(cols)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. Columns are located by header
// name, so files without userId or multipleIndex are accepted.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	for _, c := range []string{colSurveyID, colQuestionID} {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("csv: missing column %q", c)
		}
	}

	var out []Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		rec, err := parseRecord(fields, idx)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

func parseRecord(fields []string, idx map[string]int) (Record, error) {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return fields[i]
	}
	var rec Record
	var err error
	parse := func(col string, dst *int64) {
		if err != nil {
			return
		}
		if s := get(col); s != "" {
			*dst, err = strconv.ParseInt(s, 10, 64)
			if err != nil {
				err = fmt.Errorf("%s: %w", col, err)
			}
		}
	}
	parse(colUserID, &rec.UserID)
	parse(colSurveyID, &rec.SurveyID)
	parse(colQuestionID, &rec.QuestionID)
	if get(colQuestionChoiceID) != "" {
		var cid int64
		parse(colQuestionChoiceID, &cid)
		rec.QuestionChoiceID = &cid
	}
	if s := get(colMultipleIndex); s != "" && err == nil {
		var mi int
		if mi, err = strconv.Atoi(s); err == nil {
			rec.MultipleIndex = &mi
		}
	}
	if err != nil {
		return Record{}, err
	}
	rec.QuestionType = survey.QuestionType(get(colQuestionType))
	rec.ChoiceType = survey.ChoiceType(get(colChoiceType))
	rec.Value = get(colValue)
	return rec, nil
}
