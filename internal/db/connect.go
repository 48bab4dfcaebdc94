package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver maps common aliases to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "pg", "pgsql", "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported driver: %s", s)
}

// Open opens a DB, tunes the pool for the driver and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:registry.db?cache=shared&mode=rwc&_txlock=immediate&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/registry?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	if driver == DriverSQLite {
		if err := applySQLitePragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: schema: %w", err)
	}
	return db, nil
}

// tunePool keeps SQLite to a single connection: it has one writer, and that
// is also what serialises answer batches on it.
func tunePool(driver Driver, db *sql.DB) {
	maxOpen, maxIdle := 20, 10
	connLife, idleLife := 45*time.Minute, 15*time.Minute
	if driver == DriverSQLite {
		maxOpen, maxIdle = 1, 1
		connLife, idleLife = 0, 0
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLife)
	db.SetConnMaxIdleTime(idleLife)
}

func applySQLitePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("db: sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Timestamps are unix microseconds; deleted_at marks a superseded version.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS surveys (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY,
  type TEXT NOT NULL,
  text TEXT NOT NULL DEFAULT '',
  multiple BOOLEAN NOT NULL DEFAULT 0,
  max_count INTEGER NOT NULL DEFAULT 0,
  parameter TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_choices (
  id INTEGER PRIMARY KEY,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  text TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  line INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS survey_questions (
  survey_id INTEGER NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL REFERENCES questions(id),
  line INTEGER NOT NULL,
  required BOOLEAN NOT NULL DEFAULT 0,
  PRIMARY KEY (survey_id, question_id)
);

CREATE TABLE IF NOT EXISTS sections (
  id INTEGER PRIMARY KEY,
  survey_id INTEGER NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
  name TEXT NOT NULL DEFAULT '',
  parent_section_id INTEGER,
  parent_question_id INTEGER,
  line INTEGER NOT NULL,
  CHECK (parent_section_id IS NULL OR parent_question_id IS NULL)
);

CREATE TABLE IF NOT EXISTS section_questions (
  section_id INTEGER NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL,
  line INTEGER NOT NULL,
  PRIMARY KEY (section_id, question_id)
);

CREATE TABLE IF NOT EXISTS answer_rules (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  survey_id INTEGER NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL,
  target_question_id INTEGER,
  target_section_id INTEGER,
  logic TEXT NOT NULL,
  answer_json TEXT,
  count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assessments (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  grp TEXT NOT NULL DEFAULT '',
  stage INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assessment_surveys (
  assessment_id INTEGER NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  survey_id INTEGER NOT NULL REFERENCES surveys(id),
  PRIMARY KEY (assessment_id, survey_id)
);

CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  survey_id INTEGER NOT NULL,
  assessment_id INTEGER,
  question_id INTEGER NOT NULL,
  question_choice_id INTEGER,
  multiple_index INTEGER,
  value TEXT,
  file_id INTEGER REFERENCES files(id),
  language TEXT NOT NULL DEFAULT 'en',
  created_at INTEGER NOT NULL,
  deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS answers_master_idx ON answers (user_id, survey_id, assessment_id, question_id);

CREATE TABLE IF NOT EXISTS answer_comments (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  survey_id INTEGER NOT NULL,
  assessment_id INTEGER,
  question_id INTEGER NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  language TEXT NOT NULL DEFAULT 'en',
  created_at INTEGER NOT NULL,
  deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS user_surveys (
  user_id INTEGER NOT NULL,
  survey_id INTEGER NOT NULL,
  status TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, survey_id)
);

CREATE TABLE IF NOT EXISTS assessment_answers (
  user_id INTEGER NOT NULL,
  assessment_id INTEGER NOT NULL,
  status TEXT NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, assessment_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  ev_key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS surveys (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGINT PRIMARY KEY,
  type TEXT NOT NULL,
  text TEXT NOT NULL DEFAULT '',
  multiple BOOLEAN NOT NULL DEFAULT FALSE,
  max_count INTEGER NOT NULL DEFAULT 0,
  parameter TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_choices (
  id BIGINT PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  text TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  line INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS survey_questions (
  survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
  question_id BIGINT NOT NULL REFERENCES questions(id),
  line INTEGER NOT NULL,
  required BOOLEAN NOT NULL DEFAULT FALSE,
  PRIMARY KEY (survey_id, question_id)
);

CREATE TABLE IF NOT EXISTS sections (
  id BIGINT PRIMARY KEY,
  survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
  name TEXT NOT NULL DEFAULT '',
  parent_section_id BIGINT,
  parent_question_id BIGINT,
  line INTEGER NOT NULL,
  CHECK (parent_section_id IS NULL OR parent_question_id IS NULL)
);

CREATE TABLE IF NOT EXISTS section_questions (
  section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
  question_id BIGINT NOT NULL,
  line INTEGER NOT NULL,
  PRIMARY KEY (section_id, question_id)
);

CREATE TABLE IF NOT EXISTS answer_rules (
  id BIGSERIAL PRIMARY KEY,
  survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
  question_id BIGINT NOT NULL,
  target_question_id BIGINT,
  target_section_id BIGINT,
  logic TEXT NOT NULL,
  answer_json TEXT,
  count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assessments (
  id BIGINT PRIMARY KEY,
  name TEXT NOT NULL,
  grp TEXT NOT NULL DEFAULT '',
  stage INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS assessment_surveys (
  assessment_id BIGINT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
  survey_id BIGINT NOT NULL REFERENCES surveys(id),
  PRIMARY KEY (assessment_id, survey_id)
);

CREATE TABLE IF NOT EXISTS files (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  name TEXT NOT NULL,
  blob_key TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  survey_id BIGINT NOT NULL,
  assessment_id BIGINT,
  question_id BIGINT NOT NULL,
  question_choice_id BIGINT,
  multiple_index INTEGER,
  value TEXT,
  file_id BIGINT REFERENCES files(id),
  language TEXT NOT NULL DEFAULT 'en',
  created_at BIGINT NOT NULL,
  deleted_at BIGINT
);
CREATE INDEX IF NOT EXISTS answers_master_idx ON answers (user_id, survey_id, assessment_id, question_id);

CREATE TABLE IF NOT EXISTS answer_comments (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  survey_id BIGINT NOT NULL,
  assessment_id BIGINT,
  question_id BIGINT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  text TEXT NOT NULL DEFAULT '',
  language TEXT NOT NULL DEFAULT 'en',
  created_at BIGINT NOT NULL,
  deleted_at BIGINT
);

CREATE TABLE IF NOT EXISTS user_surveys (
  user_id BIGINT NOT NULL,
  survey_id BIGINT NOT NULL,
  status TEXT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, survey_id)
);

CREATE TABLE IF NOT EXISTS assessment_answers (
  user_id BIGINT NOT NULL,
  assessment_id BIGINT NOT NULL,
  status TEXT NOT NULL,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (user_id, assessment_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  ev_key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
