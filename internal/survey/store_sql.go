package survey

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/survey-registry/internal/storage"
	syncx "github.com/mind-engage/survey-registry/internal/sync"
)

// SQLStore keeps definitions and answers in sqlite or postgres.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// query accumulates positional arguments for a statement.
type query struct {
	args []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *query) in(ids []int64) string {
	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = q.arg(id)
	}
	return "(" + strings.Join(ph, ",") + ")"
}

// assessment renders an equality test that treats NULL as baseline.
func (q *query) assessment(col string, id *int64) string {
	if id == nil {
		return col + " IS NULL"
	}
	return col + "=" + q.arg(*id)
}

func (q *query) master(m MasterID) string {
	return "user_id=" + q.arg(m.UserID) + " AND survey_id=" + q.arg(m.SurveyID) + " AND " + q.assessment("assessment_id", m.AssessmentID)
}

func micros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *SQLStore) PutSurvey(ctx context.Context, sv Survey) error {
	if _, err := sv.Resolve(); err != nil {
		return err
	}
	return storage.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO surveys (id,name,created_at) VALUES ($1,$2,$3)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name`,
			sv.ID, sv.Name, micros(time.Now())); err != nil {
			return fmt.Errorf("survey store: put survey: %w", err)
		}
		for _, stmt := range []string{
			`DELETE FROM answer_rules WHERE survey_id=$1`,
			`DELETE FROM section_questions WHERE section_id IN (SELECT id FROM sections WHERE survey_id=$1)`,
			`DELETE FROM sections WHERE survey_id=$1`,
			`DELETE FROM survey_questions WHERE survey_id=$1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, sv.ID); err != nil {
				return fmt.Errorf("survey store: reset definition: %w", err)
			}
		}
		for _, q := range sv.Questions {
			if err := putQuestion(ctx, tx, q.Question); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO survey_questions (survey_id,question_id,line,required) VALUES ($1,$2,$3,$4)`,
				sv.ID, q.ID, q.Line, q.Required); err != nil {
				return fmt.Errorf("survey store: link question %d: %w", q.ID, err)
			}
		}
		for _, sec := range sv.Sections {
			var ps, pq any
			switch sec.Parent.Kind {
			case ParentSection:
				ps = sec.Parent.ID
			case ParentQuestion:
				pq = sec.Parent.ID
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO sections (id,survey_id,name,parent_section_id,parent_question_id,line)
				VALUES ($1,$2,$3,$4,$5,$6)`, sec.ID, sv.ID, sec.Name, ps, pq, sec.Line); err != nil {
				return fmt.Errorf("survey store: put section %d: %w", sec.ID, err)
			}
			for i, qid := range sec.QuestionIDs {
				if _, err := tx.ExecContext(ctx, `INSERT INTO section_questions (section_id,question_id,line) VALUES ($1,$2,$3)`,
					sec.ID, qid, i); err != nil {
					return fmt.Errorf("survey store: put section %d: %w", sec.ID, err)
				}
			}
		}
		for _, r := range sv.Rules {
			var aj any
			if r.Answer != nil {
				b, err := json.Marshal(r.Answer)
				if err != nil {
					return err
				}
				aj = string(b)
			}
			var tq, ts any
			if r.TargetQuestionID != 0 {
				tq = r.TargetQuestionID
			}
			if r.TargetSectionID != 0 {
				ts = r.TargetSectionID
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO answer_rules (survey_id,question_id,target_question_id,target_section_id,logic,answer_json,count)
				VALUES ($1,$2,$3,$4,$5,$6,$7)`, sv.ID, r.SourceQuestionID, tq, ts, string(r.Logic), aj, r.Count); err != nil {
				return fmt.Errorf("survey store: put rule: %w", err)
			}
		}
		return nil
	})
}

func putQuestion(ctx context.Context, tx *sql.Tx, q Question) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id,type,text,multiple,max_count,parameter) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET type=EXCLUDED.type, text=EXCLUDED.text, multiple=EXCLUDED.multiple,
		max_count=EXCLUDED.max_count, parameter=EXCLUDED.parameter`,
		q.ID, string(q.Type), q.Text, q.Multiple, q.MaxCount, q.Parameter); err != nil {
		return fmt.Errorf("survey store: put question %d: %w", q.ID, err)
	}
	for _, c := range q.Choices {
		if _, err := tx.ExecContext(ctx, `INSERT INTO question_choices (id,question_id,text,type,line) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, type=EXCLUDED.type, line=EXCLUDED.line`,
			c.ID, q.ID, c.Text, string(c.Type), c.Line); err != nil {
			return fmt.Errorf("survey store: put choice %d: %w", c.ID, err)
		}
	}
	return nil
}

func (s *SQLStore) PutAssessment(ctx context.Context, a Assessment) error {
	return storage.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO assessments (id,name,grp,stage) VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, grp=EXCLUDED.grp, stage=EXCLUDED.stage`,
			a.ID, a.Name, a.Group, a.Stage); err != nil {
			return fmt.Errorf("survey store: put assessment: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM assessment_surveys WHERE assessment_id=$1`, a.ID); err != nil {
			return err
		}
		for _, sid := range a.SurveyIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO assessment_surveys (assessment_id,survey_id) VALUES ($1,$2)`, a.ID, sid); err != nil {
				return fmt.Errorf("survey store: link survey %d: %w", sid, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) surveyExists(ctx context.Context, id int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM surveys WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("survey %d: %w", id, ErrNotFound)
	}
	return err
}

func (s *SQLStore) GetSurveyQuestions(ctx context.Context, surveyID int64) ([]SurveyQuestion, error) {
	if err := s.surveyExists(ctx, surveyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT q.id,q.type,q.text,q.multiple,q.max_count,q.parameter,sq.required,sq.line
		FROM survey_questions sq JOIN questions q ON q.id=sq.question_id
		WHERE sq.survey_id=$1 ORDER BY sq.line`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("survey store: questions: %w", err)
	}
	var sv Survey
	ids := []int64{}
	for rows.Next() {
		var q SurveyQuestion
		var typ string
		if err := rows.Scan(&q.ID, &typ, &q.Text, &q.Multiple, &q.MaxCount, &q.Parameter, &q.Required, &q.Line); err != nil {
			rows.Close()
			return nil, err
		}
		q.Type = QuestionType(typ)
		sv.Questions = append(sv.Questions, q)
		ids = append(ids, q.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	choices, err := s.choices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sv.Questions {
		sv.Questions[i].Choices = choices[sv.Questions[i].ID]
	}
	if sv.Sections, err = s.sections(ctx, surveyID); err != nil {
		return nil, err
	}
	return sv.Resolve()
}

func (s *SQLStore) choices(ctx context.Context, questionIDs []int64) (map[int64][]Choice, error) {
	out := map[int64][]Choice{}
	if len(questionIDs) == 0 {
		return out, nil
	}
	var q query
	rows, err := s.db.QueryContext(ctx, `SELECT id,question_id,text,type,line FROM question_choices
		WHERE question_id IN `+q.in(questionIDs)+` ORDER BY question_id, line`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("survey store: choices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Choice
		var typ string
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &typ, &c.Line); err != nil {
			return nil, err
		}
		c.Type = ChoiceType(typ)
		out[c.QuestionID] = append(out[c.QuestionID], c)
	}
	return out, rows.Err()
}

func (s *SQLStore) sections(ctx context.Context, surveyID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,parent_section_id,parent_question_id,line
		FROM sections WHERE survey_id=$1 ORDER BY line`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("survey store: sections: %w", err)
	}
	var out []Section
	idx := map[int64]int{}
	for rows.Next() {
		var sec Section
		var ps, pq sql.NullInt64
		if err := rows.Scan(&sec.ID, &sec.Name, &ps, &pq, &sec.Line); err != nil {
			rows.Close()
			return nil, err
		}
		switch {
		case ps.Valid:
			sec.Parent = SectionParent(ps.Int64)
		case pq.Valid:
			sec.Parent = QuestionParent(pq.Int64)
		}
		idx[sec.ID] = len(out)
		out = append(out, sec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mrows, err := s.db.QueryContext(ctx, `SELECT m.section_id, m.question_id FROM section_questions m
		JOIN sections s ON s.id=m.section_id WHERE s.survey_id=$1 ORDER BY m.section_id, m.line`, surveyID)
	if err != nil {
		return nil, fmt.Errorf("survey store: section members: %w", err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var sid, qid int64
		if err := mrows.Scan(&sid, &qid); err != nil {
			return nil, err
		}
		if i, ok := idx[sid]; ok {
			out[i].QuestionIDs = append(out[i].QuestionIDs, qid)
		}
	}
	return out, mrows.Err()
}

func (s *SQLStore) GetAnswerRules(ctx context.Context, surveyID int64) (RuleSet, error) {
	if err := s.surveyExists(ctx, surveyID); err != nil {
		return RuleSet{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,question_id,target_question_id,target_section_id,logic,answer_json,count
		FROM answer_rules WHERE survey_id=$1 ORDER BY id`, surveyID)
	if err != nil {
		return RuleSet{}, fmt.Errorf("survey store: rules: %w", err)
	}
	defer rows.Close()
	var rules []Rule
	for rows.Next() {
		var r Rule
		var tq, ts sql.NullInt64
		var logic string
		var aj sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceQuestionID, &tq, &ts, &logic, &aj, &r.Count); err != nil {
			return RuleSet{}, err
		}
		r.TargetQuestionID, r.TargetSectionID, r.Logic = tq.Int64, ts.Int64, Logic(logic)
		if aj.Valid && aj.String != "" {
			r.Answer = &Answer{}
			if err := json.Unmarshal([]byte(aj.String), r.Answer); err != nil {
				return RuleSet{}, fmt.Errorf("survey store: rule %d answer: %w", r.ID, err)
			}
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return RuleSet{}, err
	}
	return NewRuleSet(rules), nil
}

func (s *SQLStore) GetQuestions(ctx context.Context, ids []int64) (map[int64]Question, error) {
	out := map[int64]Question{}
	if len(ids) == 0 {
		return out, nil
	}
	var q query
	rows, err := s.db.QueryContext(ctx, `SELECT id,type,text,multiple,max_count,parameter FROM questions WHERE id IN `+q.in(ids), q.args...)
	if err != nil {
		return nil, fmt.Errorf("survey store: questions: %w", err)
	}
	found := []int64{}
	for rows.Next() {
		var qq Question
		var typ string
		if err := rows.Scan(&qq.ID, &typ, &qq.Text, &qq.Multiple, &qq.MaxCount, &qq.Parameter); err != nil {
			rows.Close()
			return nil, err
		}
		qq.Type = QuestionType(typ)
		out[qq.ID] = qq
		found = append(found, qq.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	choices, err := s.choices(ctx, found)
	if err != nil {
		return nil, err
	}
	for id, cs := range choices {
		qq := out[id]
		qq.Choices = cs
		out[id] = qq
	}
	return out, nil
}

func (s *SQLStore) AssessmentSurveys(ctx context.Context, assessmentID int64) ([]int64, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM assessments WHERE id=$1`, assessmentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %d: %w", assessmentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT survey_id FROM assessment_surveys WHERE assessment_id=$1 ORDER BY survey_id`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListAssessments(ctx context.Context, f AssessmentFilter) ([]Assessment, error) {
	var q query
	conds := []string{"1=1"}
	if f.Group != "" {
		conds = append(conds, "a.grp="+q.arg(f.Group))
	}
	if f.SurveyID != 0 {
		conds = append(conds, "EXISTS (SELECT 1 FROM assessment_surveys x WHERE x.assessment_id=a.id AND x.survey_id="+q.arg(f.SurveyID)+")")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT a.id,a.name,a.grp,a.stage FROM assessments a WHERE `+
		strings.Join(conds, " AND ")+` ORDER BY a.id`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("survey store: list assessments: %w", err)
	}
	var out []Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(&a.ID, &a.Name, &a.Group, &a.Stage); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].SurveyIDs, err = s.AssessmentSurveys(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const rowColumns = `id,user_id,survey_id,assessment_id,question_id,question_choice_id,multiple_index,value,file_id,language,created_at,deleted_at`

func scanRows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var r Row
		var aid, cid, fid, mi, del sql.NullInt64
		var val sql.NullString
		var created int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.SurveyID, &aid, &r.QuestionID, &cid, &mi, &val, &fid, &r.Language, &created, &del); err != nil {
			return nil, err
		}
		if aid.Valid {
			r.AssessmentID = &aid.Int64
		}
		if cid.Valid {
			r.QuestionChoiceID = &cid.Int64
		}
		if mi.Valid {
			i := int(mi.Int64)
			r.MultipleIndex = &i
		}
		if val.Valid {
			r.Value = &val.String
		}
		if fid.Valid {
			r.FileID = &fid.Int64
		}
		r.CreatedAt = fromMicros(created)
		if del.Valid {
			t := fromMicros(del.Int64)
			r.DeletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetExistingAnswers(ctx context.Context, m MasterID, questionIDs []int64) ([]Row, error) {
	var q query
	where := q.master(m) + " AND deleted_at IS NULL"
	if len(questionIDs) > 0 {
		where += " AND question_id IN " + q.in(questionIDs)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+rowColumns+` FROM answers WHERE `+where+` ORDER BY id`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("survey store: existing answers: %w", err)
	}
	return scanRows(rows)
}

func (s *SQLStore) ListRows(ctx context.Context, rq RowQuery) ([]Row, error) {
	var q query
	conds := []string{q.assessment("assessment_id", rq.AssessmentID)}
	if rq.History {
		conds = append(conds, "deleted_at IS NOT NULL")
	} else {
		conds = append(conds, "deleted_at IS NULL")
	}
	if len(rq.UserIDs) > 0 {
		conds = append(conds, "user_id IN "+q.in(rq.UserIDs))
	}
	if rq.SurveyID != 0 {
		conds = append(conds, "survey_id="+q.arg(rq.SurveyID))
	}
	if len(rq.QuestionIDs) > 0 {
		conds = append(conds, "question_id IN "+q.in(rq.QuestionIDs))
	}
	order := "id"
	if rq.History {
		order = "deleted_at, id"
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+rowColumns+` FROM answers WHERE `+strings.Join(conds, " AND ")+` ORDER BY `+order, q.args...)
	if err != nil {
		return nil, fmt.Errorf("survey store: list rows: %w", err)
	}
	return scanRows(rows)
}

func (s *SQLStore) ListComments(ctx context.Context, cq CommentQuery, history bool) ([]CommentRow, error) {
	var q query
	conds := []string{"user_id=" + q.arg(cq.UserID), q.assessment("assessment_id", cq.AssessmentID)}
	if cq.SurveyID != 0 {
		conds = append(conds, "survey_id="+q.arg(cq.SurveyID))
	}
	if history {
		conds = append(conds, "deleted_at IS NOT NULL")
	} else {
		conds = append(conds, "deleted_at IS NULL")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,user_id,survey_id,assessment_id,question_id,reason,text,language,created_at,deleted_at
		FROM answer_comments WHERE `+strings.Join(conds, " AND ")+` ORDER BY id`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("survey store: list comments: %w", err)
	}
	defer rows.Close()
	var out []CommentRow
	for rows.Next() {
		var c CommentRow
		var aid, del sql.NullInt64
		var created int64
		if err := rows.Scan(&c.ID, &c.UserID, &c.SurveyID, &aid, &c.QuestionID, &c.Reason, &c.Text, &c.Language, &created, &del); err != nil {
			return nil, err
		}
		if aid.Valid {
			c.AssessmentID = &aid.Int64
		}
		c.CreatedAt = fromMicros(created)
		if del.Valid {
			t := fromMicros(del.Int64)
			c.DeletedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) Status(ctx context.Context, m MasterID) (Status, bool, error) {
	var st string
	var err error
	if m.AssessmentID != nil {
		err = s.db.QueryRowContext(ctx, `SELECT status FROM assessment_answers WHERE user_id=$1 AND assessment_id=$2`,
			m.UserID, *m.AssessmentID).Scan(&st)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT status FROM user_surveys WHERE user_id=$1 AND survey_id=$2`,
			m.UserID, m.SurveyID).Scan(&st)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("survey store: status: %w", err)
	}
	return Status(st), true, nil
}

// lock serialises writers of one master id for the rest of tx. SQLite needs
// nothing here: its single connection and immediate transactions already
// exclude other writers.
func (s *SQLStore) lock(ctx context.Context, tx *sql.Tx, key string) error {
	if s.driver != "postgres" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("survey store: lock %s: %w", key, err)
	}
	return nil
}

// requireLive fails with a *RequiredMissingError unless every question in
// ids has a live row under m.
func requireLive(ctx context.Context, tx *sql.Tx, m MasterID, ids []int64) error {
	var q query
	rows, err := tx.QueryContext(ctx, `SELECT DISTINCT question_id FROM answers WHERE `+q.master(m)+
		` AND deleted_at IS NULL AND question_id IN `+q.in(ids), q.args...)
	if err != nil {
		return fmt.Errorf("survey store: required answers: %w", err)
	}
	defer rows.Close()
	live := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		live[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return missingLive(ids, live)
}

func setStatus(ctx context.Context, tx *sql.Tx, m MasterID, st Status, at time.Time) error {
	var err error
	if m.AssessmentID != nil {
		_, err = tx.ExecContext(ctx, `INSERT INTO assessment_answers (user_id,assessment_id,status,updated_at) VALUES ($1,$2,$3,$4)
			ON CONFLICT (user_id,assessment_id) DO UPDATE SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
			m.UserID, *m.AssessmentID, string(st), micros(at))
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO user_surveys (user_id,survey_id,status,updated_at) VALUES ($1,$2,$3,$4)
			ON CONFLICT (user_id,survey_id) DO UPDATE SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
			m.UserID, m.SurveyID, string(st), micros(at))
	}
	if err != nil {
		return fmt.Errorf("survey store: set status: %w", err)
	}
	return nil
}

func insertRow(ctx context.Context, tx *sql.Tx, r Row) error {
	var mi, val any
	if r.MultipleIndex != nil {
		mi = *r.MultipleIndex
	}
	if r.Value != nil {
		val = *r.Value
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO answers
		(user_id,survey_id,assessment_id,question_id,question_choice_id,multiple_index,value,file_id,language,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.UserID, r.SurveyID, nullInt(r.AssessmentID), r.QuestionID, nullInt(r.QuestionChoiceID), mi, val,
		nullInt(r.FileID), r.Language, micros(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("survey store: insert answer for question %d: %w", r.QuestionID, err)
	}
	return nil
}

func (s *SQLStore) ApplyBatch(ctx context.Context, b Batch) error {
	at := micros(b.At)
	return storage.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := s.lock(ctx, tx, b.Master.PartitionKey()); err != nil {
			return err
		}
		if len(b.RequireLive) > 0 {
			if err := requireLive(ctx, tx, b.Master, b.RequireLive); err != nil {
				return err
			}
		}
		if err := setStatus(ctx, tx, b.Master, b.Status, b.At); err != nil {
			return err
		}
		if len(b.Supersede) > 0 {
			var q query
			stmt := `UPDATE answers SET deleted_at=` + q.arg(at) + ` WHERE ` + q.master(b.Master) +
				` AND deleted_at IS NULL AND question_id IN ` + q.in(b.Supersede)
			if _, err := tx.ExecContext(ctx, stmt, q.args...); err != nil {
				return fmt.Errorf("survey store: supersede answers: %w", err)
			}
		}
		if len(b.Comments) > 0 {
			ids := make([]int64, 0, len(b.Comments))
			for _, c := range b.Comments {
				ids = append(ids, c.QuestionID)
			}
			var q query
			stmt := `UPDATE answer_comments SET deleted_at=` + q.arg(at) + ` WHERE ` + q.master(b.Master) +
				` AND deleted_at IS NULL AND question_id IN ` + q.in(ids)
			if _, err := tx.ExecContext(ctx, stmt, q.args...); err != nil {
				return fmt.Errorf("survey store: supersede comments: %w", err)
			}
			for _, c := range b.Comments {
				if _, err := tx.ExecContext(ctx, `INSERT INTO answer_comments
					(user_id,survey_id,assessment_id,question_id,reason,text,language,created_at)
					VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
					c.UserID, c.SurveyID, nullInt(c.AssessmentID), c.QuestionID, c.Reason, c.Text, c.Language, micros(c.CreatedAt)); err != nil {
					return fmt.Errorf("survey store: insert comment: %w", err)
				}
			}
		}
		for _, r := range b.Rows {
			if r.FileKey != "" {
				var id int64
				if err := tx.QueryRowContext(ctx, `INSERT INTO files (user_id,name,blob_key,created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
					b.Master.UserID, r.FileName, r.FileKey, at).Scan(&id); err != nil {
					return fmt.Errorf("survey store: insert file: %w", err)
				}
				r.FileID = &id
			}
			if err := insertRow(ctx, tx, r); err != nil {
				return err
			}
		}
		ev, err := syncx.NewEvent(syncx.TypeAnswersSubmitted, b.Master.Key(), map[string]any{
			"master":    b.Master,
			"status":    b.Status,
			"language":  b.Language,
			"questions": b.Supersede,
			"rows":      len(b.Rows),
		})
		if err != nil {
			return err
		}
		return syncx.AppendTx(ctx, tx, ev)
	})
}

func (s *SQLStore) CopyAssessmentAnswers(ctx context.Context, req CopyRequest) error {
	if _, err := s.AssessmentSurveys(ctx, req.AssessmentID); err != nil {
		return err
	}
	at := micros(req.At)
	target := req.AssessmentID
	m := MasterID{UserID: req.UserID, AssessmentID: &target}
	return storage.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := s.lock(ctx, tx, m.PartitionKey()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE answers SET deleted_at=$1
			WHERE user_id=$2 AND assessment_id=$3 AND deleted_at IS NULL`, at, req.UserID, target); err != nil {
			return fmt.Errorf("survey store: supersede assessment answers: %w", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO answers
			(user_id,survey_id,assessment_id,question_id,question_choice_id,multiple_index,value,file_id,language,created_at)
			SELECT user_id,survey_id,$1,question_id,question_choice_id,multiple_index,value,file_id,language,$2
			FROM answers WHERE user_id=$3 AND assessment_id=$4 AND deleted_at IS NULL`,
			target, at, req.UserID, req.PrevAssessmentID)
		if err != nil {
			return fmt.Errorf("survey store: copy assessment answers: %w", err)
		}
		if err := setStatus(ctx, tx, m, req.Status, req.At); err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		ev, err := syncx.NewEvent(syncx.TypeAnswersCopied, fmt.Sprintf("%d:%d", req.UserID, target), map[string]any{
			"userId": req.UserID, "assessmentId": target, "prevAssessmentId": req.PrevAssessmentID, "rows": n,
		})
		if err != nil {
			return err
		}
		return syncx.AppendTx(ctx, tx, ev)
	})
}

func (s *SQLStore) ImportRows(ctx context.Context, rows []Row) error {
	rows = append([]Row(nil), rows...)
	at, masters, questions := importGroups(rows)
	keys := make([]string, 0, len(masters))
	seen := map[string]bool{}
	for _, m := range masters {
		if k := m.PartitionKey(); !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return storage.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		for _, k := range keys {
			if err := s.lock(ctx, tx, k); err != nil {
				return err
			}
		}
		for _, m := range masters {
			var q query
			stmt := `UPDATE answers SET deleted_at=` + q.arg(micros(at)) + ` WHERE ` + q.master(m) +
				` AND deleted_at IS NULL AND question_id IN ` + q.in(questions[m.Key()])
			if _, err := tx.ExecContext(ctx, stmt, q.args...); err != nil {
				return fmt.Errorf("survey store: supersede imported answers: %w", err)
			}
		}
		users := map[int64]bool{}
		for _, r := range rows {
			if err := insertRow(ctx, tx, r); err != nil {
				return err
			}
			users[r.UserID] = true
		}
		ev, err := syncx.NewEvent(syncx.TypeAnswersImported, at.Format(time.RFC3339Nano), map[string]any{
			"rows": len(rows), "users": len(users),
		})
		if err != nil {
			return err
		}
		return syncx.AppendTx(ctx, tx, ev)
	})
}

func (s *SQLStore) GetFile(ctx context.Context, id int64) (File, error) {
	var f File
	err := s.db.QueryRowContext(ctx, `SELECT id,user_id,name,blob_key,created_at FROM files WHERE id=$1`, id).
		Scan(&f.ID, &f.UserID, &f.Name, &f.Key, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, fmt.Errorf("file %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return File{}, fmt.Errorf("survey store: file: %w", err)
	}
	return f, nil
}
