package jobs

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pocket-drs/pocketdrs/internal/pipeline"
	"github.com/pocket-drs/pocketdrs/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Get when no job has the given ID.
var ErrNotFound = errors.New("job not found")

// Store persists jobs in SQLite. Safe for concurrent use; claim operations
// are serialized so two workers cannot take the same job.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock

	claimMu sync.Mutex
}

// Open opens (or creates) the job database at path and applies pending
// migrations. Use ":memory:" for tests.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job db: %w", err)
	}
	// SQLite allows one writer; keep the pool small and wait out lock
	// contention instead of failing.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{db: db, clock: clock}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Do not close m: it would close the underlying DB connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewID returns a fresh job identifier. Callers allocate the ID before
// inserting so the uploaded clip can be written to its final location first;
// a job only becomes claimable once its input file exists.
func NewID() string {
	return uuid.NewString()
}

// Create inserts a queued job with the given ID and request.
func (s *Store) Create(id string, req *pipeline.Request) (*Job, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	job := &Job{
		ID:        id,
		Status:    StatusQueued,
		Request:   req,
		CreatedAt: s.clock.Now().UTC(),
	}
	_, err = s.db.Exec(
		`INSERT INTO jobs (id, status, progress, stage, request, created_at) VALUES (?, ?, 0, '', ?, ?)`,
		job.ID, job.Status, string(reqJSON), job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically takes the oldest queued job and marks it running.
// ok is false when the queue is empty.
func (s *Store) ClaimNext() (job *Job, ok bool, err error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var id string
	err = s.db.QueryRow(
		`SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`, StatusQueued,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select queued job: %w", err)
	}

	now := s.clock.Now().UTC()
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		StatusRunning, now, id, StatusQueued,
	)
	if err != nil {
		return nil, false, fmt.Errorf("claim job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, false, nil
	}

	job, err = s.Get(id)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// SetProgress records the latest progress report for a running job.
func (s *Store) SetProgress(id string, pct int, stage string) error {
	_, err := s.db.Exec(`UPDATE jobs SET progress = ?, stage = ? WHERE id = ?`, pct, stage, id)
	if err != nil {
		return fmt.Errorf("update progress for %s: %w", id, err)
	}
	return nil
}

// MarkSucceeded stores the result payload and finishes the job.
func (s *Store) MarkSucceeded(id string, result *pipeline.Result, warnings []string) error {
	resJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	warnJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE jobs SET status = ?, progress = 100, stage = 'done', result = ?, warnings = ?, finished_at = ? WHERE id = ?`,
		StatusSucceeded, string(resJSON), string(warnJSON), s.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark %s succeeded: %w", id, err)
	}
	return nil
}

// MarkFailed stores the API error and finishes the job.
func (s *Store) MarkFailed(id string, apiErr pipeline.APIError) error {
	_, err := s.db.Exec(
		`UPDATE jobs SET status = ?, error_code = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		StatusFailed, apiErr.Code, apiErr.Message, s.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark %s failed: %w", id, err)
	}
	return nil
}

// Get loads one job by ID.
func (s *Store) Get(id string) (*Job, error) {
	row := s.db.QueryRow(
		`SELECT id, status, progress, stage, request, result, error_code, error_message, warnings,
		        created_at, started_at, finished_at
		 FROM jobs WHERE id = ?`, id,
	)

	var (
		job        Job
		reqJSON    string
		resJSON    sql.NullString
		errCode    sql.NullString
		errMessage sql.NullString
		warnJSON   sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	err := row.Scan(&job.ID, &job.Status, &job.Progress, &job.Stage, &reqJSON, &resJSON,
		&errCode, &errMessage, &warnJSON, &job.CreatedAt, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(reqJSON), &job.Request); err != nil {
		return nil, fmt.Errorf("decode request for %s: %w", id, err)
	}
	if resJSON.Valid {
		if err := json.Unmarshal([]byte(resJSON.String), &job.Result); err != nil {
			return nil, fmt.Errorf("decode result for %s: %w", id, err)
		}
	}
	if warnJSON.Valid {
		if err := json.Unmarshal([]byte(warnJSON.String), &job.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings for %s: %w", id, err)
		}
	}
	if errCode.Valid {
		job.Error = &pipeline.APIError{Code: errCode.String, Message: errMessage.String}
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}

// CountByStatus reports queue depth per status, for the health endpoint.
func (s *Store) CountByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// RequeueStale resets running jobs started before cutoff back to queued.
// Called at startup so jobs orphaned by a crash get retried.
func (s *Store) RequeueStale(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(
		`UPDATE jobs SET status = ?, progress = 0, stage = '', started_at = NULL WHERE status = ? AND started_at < ?`,
		StatusQueued, StatusRunning, cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
