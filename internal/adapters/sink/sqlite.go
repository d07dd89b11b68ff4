package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/profiler/internal/domain/quiz"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	submission_id TEXT NOT NULL DEFAULT '',
	environment   TEXT NOT NULL,
	personality   TEXT NOT NULL,
	core_strength TEXT NOT NULL,
	battle_style  TEXT NOT NULL,
	social_style  TEXT NOT NULL DEFAULT '',
	destiny       INTEGER NOT NULL DEFAULT 0,
	outcome       TEXT NOT NULL,
	judgment      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS feedback_outcome_judgment ON feedback (outcome, judgment);
`

const insertFeedback = `INSERT INTO feedback
	(submission_id, environment, personality, core_strength, battle_style, social_style, destiny, outcome, judgment, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const memoryDSN = ":memory:"

var memorySeq atomic.Int64

// SQLite stores feedback in a single append-only table.
type SQLite struct {
	db *sql.DB
	// keep holds a shared in-memory database open for the life of the sink.
	keep *sql.Conn
}

// OpenSQLite opens (creating if needed) the database at dsn and migrates the
// feedback table. A plain file path has its parent directory created.
// ":memory:" gets a private shared-cache database so every pooled connection
// sees the same tables.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty sqlite path", ErrUnavailable)
	}
	memory := dsn == memoryDSN
	switch {
	case memory:
		dsn = fmt.Sprintf("file:profiler-memory-%d?mode=memory&cache=shared", memorySeq.Add(1))
	case !strings.HasPrefix(dsn, "file:"):
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, unavailable("create database dir", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, unavailable("open database", err)
	}
	s := &SQLite{db: db}
	if memory {
		if s.keep, err = db.Conn(ctx); err != nil {
			_ = db.Close()
			return nil, unavailable("pin memory database", err)
		}
	}
	if err := applyPragmas(ctx, db); err != nil {
		_ = s.Close()
		return nil, unavailable("apply pragmas", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = s.Close()
		return nil, unavailable("migrate", err)
	}
	return s, nil
}

// applyPragmas configures SQLite for a single writer with concurrent readers.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DB returns the underlying handle for raw queries.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

func recordArgs(r quiz.FeedbackRecord) []any {
	at := r.RecordedAt
	if at.IsZero() {
		at = time.Now()
	}
	destiny := 0
	if r.Answers.Destiny {
		destiny = 1
	}
	return []any{
		r.SubmissionID,
		r.Answers.Environment,
		r.Answers.Personality,
		r.Answers.CoreStrength,
		r.Answers.BattleStyle,
		r.Answers.SocialStyle,
		destiny,
		r.Outcome,
		string(r.Judgment),
		at.UTC().Format(time.RFC3339Nano),
	}
}

func (s *SQLite) Append(ctx context.Context, r quiz.FeedbackRecord) error {
	if _, err := s.db.ExecContext(ctx, insertFeedback, recordArgs(r)...); err != nil {
		return unavailable("append", err)
	}
	return nil
}

// AppendBatch inserts rs in one transaction.
func (s *SQLite) AppendBatch(ctx context.Context, rs []quiz.FeedbackRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin batch", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertFeedback)
	if err != nil {
		return unavailable("prepare batch", err)
	}
	defer stmt.Close()

	for _, r := range rs {
		if _, err := stmt.ExecContext(ctx, recordArgs(r)...); err != nil {
			return unavailable("append batch", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit batch", err)
	}
	return nil
}

func (s *SQLite) Records(ctx context.Context) ([]quiz.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT submission_id, environment, personality, core_strength,
		battle_style, social_style, destiny, outcome, judgment, created_at FROM feedback ORDER BY id`)
	if err != nil {
		return nil, unavailable("query records", err)
	}
	defer rows.Close()

	var out []quiz.FeedbackRecord
	for rows.Next() {
		var (
			r       quiz.FeedbackRecord
			destiny int
			j, at   string
		)
		if err := rows.Scan(&r.SubmissionID, &r.Answers.Environment, &r.Answers.Personality,
			&r.Answers.CoreStrength, &r.Answers.BattleStyle, &r.Answers.SocialStyle,
			&destiny, &r.Outcome, &j, &at); err != nil {
			return nil, unavailable("scan record", err)
		}
		r.Answers.Destiny = destiny != 0
		r.Judgment = quiz.Judgment(j)
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			r.RecordedAt = t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate records", err)
	}
	return out, nil
}

func (s *SQLite) Tally(ctx context.Context) ([]Tally, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) AS n FROM feedback
		WHERE judgment = ? GROUP BY outcome ORDER BY n DESC, outcome ASC`, string(quiz.JudgmentMatch))
	if err != nil {
		return nil, unavailable("query tally", err)
	}
	defer rows.Close()

	var out []Tally
	for rows.Next() {
		var t Tally
		if err := rows.Scan(&t.Outcome, &t.Count); err != nil {
			return nil, unavailable("scan tally", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tally", err)
	}
	return out, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

func (s *SQLite) Close() error {
	if s.keep != nil {
		_ = s.keep.Close()
	}
	return s.db.Close()
}
