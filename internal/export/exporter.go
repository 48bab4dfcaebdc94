package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/survey-registry/internal/answer"
	"github.com/mind-engage/survey-registry/internal/storage"
	"github.com/mind-engage/survey-registry/internal/survey"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Exporter reads baseline answers for export and writes imported ones.
type Exporter struct {
	store   survey.AnswerStore
	catalog survey.Catalog
	now     func() time.Time
}

func NewExporter(store survey.AnswerStore, catalog survey.Catalog) *Exporter {
	return &Exporter{store: store, catalog: catalog, now: time.Now}
}

// Records returns the live baseline answers of the given users across all
// surveys, ordered by user.
func (e *Exporter) Records(ctx context.Context, userIDs []int64) ([]Record, error) {
	rows, err := e.store.ListRows(ctx, survey.RowQuery{UserIDs: userIDs})
	if err != nil {
		return nil, err
	}
	byUser := map[int64][]survey.Row{}
	qids := map[int64]bool{}
	for _, r := range rows {
		byUser[r.UserID] = append(byUser[r.UserID], r)
		qids[r.QuestionID] = true
	}
	ids := make([]int64, 0, len(qids))
	for id := range qids {
		ids = append(ids, id)
	}
	questions, err := e.catalog.GetQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	users := make([]int64, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	var out []Record
	for _, u := range users {
		answers, err := answer.CollapseForRead(byUser[u], questions)
		if err != nil {
			return nil, fmt.Errorf("export: user %d: %w", u, err)
		}
		recs, err := ToRecords(u, answers, questions)
		if err != nil {
			return nil, fmt.Errorf("export: user %d: %w", u, err)
		}
		out = append(out, recs...)
	}
	return out, nil
}

// AssessmentQuery selects answers for an assessment export. SurveyID is
// required; empty id lists do not filter.
type AssessmentQuery struct {
	SurveyID    int64
	QuestionIDs []int64
	UserIDs     []int64
}

// ErrSurveyRequired is returned for an assessment export without a survey.
var ErrSurveyRequired = errors.New("export: survey must be specified")

// AssessmentRecords returns the live answers to one survey given in the
// latest stage of each assessment group that contains it, ordered by
// assessment.
func (e *Exporter) AssessmentRecords(ctx context.Context, q AssessmentQuery) ([]Record, error) {
	if q.SurveyID == 0 {
		return nil, ErrSurveyRequired
	}
	as, err := e.store.ListAssessments(ctx, survey.AssessmentFilter{SurveyID: q.SurveyID})
	if err != nil {
		return nil, err
	}
	latest := map[string]survey.Assessment{}
	for _, a := range as {
		if cur, ok := latest[a.Group]; !ok || a.Stage > cur.Stage {
			latest[a.Group] = a
		}
	}
	picked := make([]survey.Assessment, 0, len(latest))
	for _, a := range latest {
		picked = append(picked, a)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].ID < picked[j].ID })

	var out []Record
	for _, a := range picked {
		id := a.ID
		rows, err := e.store.ListRows(ctx, survey.RowQuery{
			UserIDs: q.UserIDs, SurveyID: q.SurveyID, AssessmentID: &id, QuestionIDs: q.QuestionIDs,
		})
		if err != nil {
			return nil, err
		}
		qids := make([]int64, 0, len(rows))
		for _, r := range rows {
			qids = append(qids, r.QuestionID)
		}
		questions, err := e.catalog.GetQuestions(ctx, qids)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			qq, ok := questions[r.QuestionID]
			if !ok {
				return nil, fmt.Errorf("export: question %d: %w", r.QuestionID, survey.ErrNotFound)
			}
			rec := rowRecord(r, qq)
			rec.AssessmentID, rec.Group, rec.Stage = &id, a.Group, a.Stage
			rec.Date = r.CreatedAt.UTC().Format("2006-01-02")
			out = append(out, rec)
		}
	}
	return out, nil
}

// Write renders records in format f. withUser adds the userId column.
func Write(w io.Writer, f Format, records []Record, withUser bool) error {
	if f == FormatXLSX {
		return WriteXLSX(w, records, withUser)
	}
	return WriteCSV(w, records, withUser)
}

// Archive writes an export into blob storage and returns its download URL.
func (e *Exporter) Archive(ctx context.Context, blobs storage.BlobStore, f Format, userIDs []int64) (string, error) {
	recs, err := e.Records(ctx, userIDs)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Write(&buf, f, recs, len(userIDs) != 1); err != nil {
		return "", err
	}
	key := path.Join("exports", e.now().UTC().Format("20060102"), uuid.NewString()+"."+string(f))
	if key, err = blobs.Put(ctx, key, &buf); err != nil {
		return "", err
	}
	log.Printf("export: archived %d records for %d users as %s", len(recs), len(userIDs), key)
	return blobs.SignedURL(ctx, key)
}

// Import reads a CSV export, remaps its ids and stores the rows as the live
// answers of their questions. It returns the number of rows written.
func (e *Exporter) Import(ctx context.Context, r io.Reader, maps IDMaps) (int, error) {
	recs, err := ReadCSV(r)
	if err != nil {
		return 0, err
	}
	rows, err := maps.Rows(recs)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	at := e.now().UTC()
	for i := range rows {
		rows[i].CreatedAt = at
	}
	if err := e.store.ImportRows(ctx, rows); err != nil {
		log.Printf("export: import %d rows: %v", len(rows), err)
		return 0, err
	}
	return len(rows), nil
}
