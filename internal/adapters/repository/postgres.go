package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/scoreboard/internal/domain/ledger"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/metrics"
)

const backendPostgres = "postgres"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	id                               UUID PRIMARY KEY,
	learner_id                       TEXT NOT NULL,
	course_id                        TEXT NOT NULL,
	lesson_records                   JSONB NOT NULL DEFAULT '[]',
	module_test_records              JSONB NOT NULL DEFAULT '[]',
	final_exam                       JSONB,
	skill_test_final_exams           JSONB NOT NULL DEFAULT '[]',
	total_lesson_score               DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_module_test_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_final_exam_score           DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_skill_test_final_exam_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	overall_score                    DOUBLE PRECISION NOT NULL DEFAULT 0,
	average_score                    DOUBLE PRECISION NOT NULL DEFAULT 0,
	lessons_completed                INTEGER NOT NULL DEFAULT 0,
	module_tests_completed           INTEGER NOT NULL DEFAULT 0,
	final_exam_completed             BOOLEAN NOT NULL DEFAULT FALSE,
	skill_test_final_exams_completed INTEGER NOT NULL DEFAULT 0,
	rank                             INTEGER NOT NULL DEFAULT 0,
	percentile                       INTEGER NOT NULL DEFAULT 0,
	version                          BIGINT NOT NULL DEFAULT 1,
	created_at                       TIMESTAMPTZ NOT NULL,
	last_updated                     TIMESTAMPTZ NOT NULL,
	UNIQUE (learner_id, course_id)
);
CREATE INDEX IF NOT EXISTS ledger_entries_course_score_idx
	ON ledger_entries (course_id, overall_score DESC);
`

const selectColumns = `id, learner_id, course_id,
	lesson_records, module_test_records, final_exam, skill_test_final_exams,
	total_lesson_score, total_module_test_score, total_final_exam_score,
	total_skill_test_final_exam_score, overall_score, average_score,
	lessons_completed, module_tests_completed, final_exam_completed,
	skill_test_final_exams_completed, rank, percentile, version,
	created_at, last_updated`

const leaderboardOrder = `ORDER BY overall_score DESC, lessons_completed DESC,
	module_tests_completed DESC, last_updated ASC, learner_id ASC`

const insertIfAbsentSQL = `INSERT INTO ledger_entries
	(id, learner_id, course_id, version, created_at, last_updated)
	VALUES ($1, $2, $3, 1, $4, $4)
	ON CONFLICT (learner_id, course_id) DO NOTHING`

const updateScoresSQL = `UPDATE ledger_entries SET
	lesson_records = $3, module_test_records = $4, final_exam = $5,
	skill_test_final_exams = $6, total_lesson_score = $7,
	total_module_test_score = $8, total_final_exam_score = $9,
	total_skill_test_final_exam_score = $10, overall_score = $11,
	average_score = $12, lessons_completed = $13,
	module_tests_completed = $14, final_exam_completed = $15,
	skill_test_final_exams_completed = $16, last_updated = $17,
	version = version + 1
	WHERE learner_id = $1 AND course_id = $2 AND version = $18`

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists ledger entries in PostgreSQL. Record collections
// are stored as JSONB; aggregates and counters get their own columns so
// the leaderboard can be served from the (course_id, overall_score) index.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to url and verifies the connection.
func NewPostgresStore(ctx context.Context, url string, maxConns, minConns int, opts ...PostgresOption) (*PostgresStore, error) {
	if url == "" {
		return nil, errors.New("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		cfg.MinConns = int32(minConns)
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return NewPostgresStoreFromPool(pool, opts...), nil
}

// NewPostgresStoreFromPool wraps an existing pool. Close closes the pool.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates the ledger table and its leaderboard index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) track(op string, start time.Time, err *error) {
	observe(backendPostgres, op, start)
	if *err != nil && !errors.Is(*err, ErrNotFound) {
		metrics.RecordStoreError(backendPostgres, op)
	}
}

// withTx commits when fn returns nil and rolls back otherwise.
func (s *PostgresStore) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetOrCreate implements Store.
func (s *PostgresStore) GetOrCreate(ctx context.Context, learnerID, courseID string) (e *ledger.Entry, err error) {
	defer s.track("get_or_create", time.Now(), &err)
	if err := checkKey(learnerID, courseID); err != nil {
		return nil, err
	}
	if err := s.insertIfAbsent(ctx, s.pool, learnerID, courseID); err != nil {
		return nil, err
	}
	return s.find(ctx, s.pool, learnerID, courseID, false)
}

// Find implements Store.
func (s *PostgresStore) Find(ctx context.Context, learnerID, courseID string) (e *ledger.Entry, err error) {
	defer s.track("find", time.Now(), &err)
	return s.find(ctx, s.pool, learnerID, courseID, false)
}

// FindAllForCourse implements Store.
func (s *PostgresStore) FindAllForCourse(ctx context.Context, courseID string) (out []*ledger.Entry, err error) {
	defer s.track("find_all", time.Now(), &err)
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM ledger_entries WHERE course_id = $1 `+leaderboardOrder,
		courseID)
	if err != nil {
		return nil, fmt.Errorf("query course %s: %w", courseID, err)
	}
	return collectEntries(rows)
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, e *ledger.Entry) (err error) {
	defer s.track("save", time.Now(), &err)
	if err := checkKey(e.LearnerID, e.CourseID); err != nil {
		return err
	}
	if e.Version == 0 {
		if err := s.insertNew(ctx, e); err != nil {
			return err
		}
	}
	return s.updateScores(ctx, s.pool, e)
}

// insertNew creates the row for a never-persisted entry. It is a version
// conflict if the row already exists.
func (s *PostgresStore) insertNew(ctx context.Context, e *ledger.Entry) error {
	tag, err := s.pool.Exec(ctx, insertIfAbsentSQL, e.ID, e.LearnerID, e.CourseID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry %s: %w", e.Key(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s already exists: %w", e.Key(), ErrVersionConflict)
	}
	e.Version = 1
	return nil
}

// Update implements Store. The row is locked with SELECT ... FOR UPDATE for
// the duration of fn.
func (s *PostgresStore) Update(ctx context.Context, learnerID, courseID string, fn UpdateFunc) (e *ledger.Entry, err error) {
	defer s.track("update", time.Now(), &err)
	if err := checkKey(learnerID, courseID); err != nil {
		return nil, err
	}
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.insertIfAbsent(ctx, tx, learnerID, courseID); err != nil {
			return err
		}
		cur, err := s.find(ctx, tx, learnerID, courseID, true)
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		if err := s.updateScores(ctx, tx, cur); err != nil {
			return err
		}
		e = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SaveRanks implements Store. All rows are written in one transaction.
func (s *PostgresStore) SaveRanks(ctx context.Context, courseID string, assignments []ranking.Assignment) (err error) {
	defer s.track("save_ranks", time.Now(), &err)
	if len(assignments) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range assignments {
			batch.Queue(`UPDATE ledger_entries SET rank = $1, percentile = $2
				WHERE course_id = $3 AND learner_id = $4`,
				a.Rank, a.Percentile, courseID, a.LearnerID)
		}
		br := tx.SendBatch(ctx, batch)
		for range assignments {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("save ranks %s: %w", courseID, err)
			}
		}
		return br.Close()
	})
}

// Page implements Store.
func (s *PostgresStore) Page(ctx context.Context, courseID string, offset, limit int) (out []*ledger.Entry, err error) {
	defer s.track("page", time.Now(), &err)
	if err := checkPage(offset, limit); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM ledger_entries WHERE course_id = $1 `+
			leaderboardOrder+` OFFSET $2 LIMIT $3`,
		courseID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("page course %s: %w", courseID, err)
	}
	return collectEntries(rows)
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context, courseID string) (n int, err error) {
	defer s.track("count", time.Now(), &err)
	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM ledger_entries WHERE course_id = $1`, courseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count course %s: %w", courseID, err)
	}
	return n, nil
}

// CountAbove implements Store.
func (s *PostgresStore) CountAbove(ctx context.Context, courseID string, score float64) (n int, err error) {
	defer s.track("count_above", time.Now(), &err)
	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM ledger_entries WHERE course_id = $1 AND overall_score > $2`,
		courseID, score).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count above in %s: %w", courseID, err)
	}
	return n, nil
}

func (s *PostgresStore) insertIfAbsent(ctx context.Context, q querier, learnerID, courseID string) error {
	fresh := ledger.New(ledger.Key{LearnerID: learnerID, CourseID: courseID}, s.now())
	if _, err := q.Exec(ctx, insertIfAbsentSQL, fresh.ID, learnerID, courseID, fresh.CreatedAt); err != nil {
		return fmt.Errorf("insert entry %s: %w", fresh.Key(), err)
	}
	return nil
}

func (s *PostgresStore) find(ctx context.Context, q querier, learnerID, courseID string, lock bool) (*ledger.Entry, error) {
	sql := `SELECT ` + selectColumns + ` FROM ledger_entries WHERE learner_id = $1 AND course_id = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	e, err := scanEntry(q.QueryRow(ctx, sql, learnerID, courseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry %s/%s: %w", courseID, learnerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find entry %s/%s: %w", courseID, learnerID, err)
	}
	return e, nil
}

// updateScores writes every score field of e and bumps its version. Rank
// and percentile are left alone.
func (s *PostgresStore) updateScores(ctx context.Context, q querier, e *ledger.Entry) error {
	lessons, modules, final, skills, err := encodeRecords(e)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, updateScoresSQL,
		e.LearnerID, e.CourseID,
		lessons, modules, final, skills,
		e.TotalLessonScore, e.TotalModuleTestScore, e.TotalFinalExamScore,
		e.TotalSkillTestFinalExamScore, e.OverallScore, e.AverageScore,
		e.LessonsCompleted, e.ModuleTestsCompleted, e.FinalExamCompleted,
		e.SkillTestFinalExamsCompleted, e.LastUpdated,
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.Key(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s at version %d: %w", e.Key(), e.Version, ErrVersionConflict)
	}
	e.Version++
	return nil
}

func encodeRecords(e *ledger.Entry) (lessons, modules, final, skills []byte, err error) {
	if lessons, err = json.Marshal(nonNil(e.LessonRecords)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode lesson records: %w", err)
	}
	if modules, err = json.Marshal(nonNil(e.ModuleTestRecords)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode module test records: %w", err)
	}
	if e.FinalExam != nil {
		if final, err = json.Marshal(e.FinalExam); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode final exam: %w", err)
		}
	}
	if skills, err = json.Marshal(nonNil(e.SkillTestFinalExams)); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode skill tests: %w", err)
	}
	return lessons, modules, final, skills, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		e                              ledger.Entry
		lessons, modules, final, skill []byte
	)
	err := row.Scan(
		&e.ID, &e.LearnerID, &e.CourseID,
		&lessons, &modules, &final, &skill,
		&e.TotalLessonScore, &e.TotalModuleTestScore, &e.TotalFinalExamScore,
		&e.TotalSkillTestFinalExamScore, &e.OverallScore, &e.AverageScore,
		&e.LessonsCompleted, &e.ModuleTestsCompleted, &e.FinalExamCompleted,
		&e.SkillTestFinalExamsCompleted, &e.Rank, &e.Percentile, &e.Version,
		&e.CreatedAt, &e.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(lessons, &e.LessonRecords); err != nil {
		return nil, fmt.Errorf("decode lesson records: %w", err)
	}
	if err := json.Unmarshal(modules, &e.ModuleTestRecords); err != nil {
		return nil, fmt.Errorf("decode module test records: %w", err)
	}
	if len(final) > 0 {
		if err := json.Unmarshal(final, &e.FinalExam); err != nil {
			return nil, fmt.Errorf("decode final exam: %w", err)
		}
	}
	if err := json.Unmarshal(skill, &e.SkillTestFinalExams); err != nil {
		return nil, fmt.Errorf("decode skill tests: %w", err)
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	defer rows.Close()
	out := []*ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return out, nil
}
