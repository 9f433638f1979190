package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

// ErrInvalidMethod is returned for methods other than Telex and VNI.
var ErrInvalidMethod = errors.New("invalid input method")

// Store is the SQLite preference and statistics store.
type Store struct {
	db   *sql.DB
	now  func() time.Time
	busy time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to bucket statistics by day.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) { s.busy = d }
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	s := &Store{now: time.Now, busy: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, s.busy.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.db = db
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// AppMethod returns the method stored for app.
func (s *Store) AppMethod(app string) (int, bool, error) {
	var method int
	err := s.db.QueryRow("SELECT method FROM app_methods WHERE app = ?", app).Scan(&method)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query app method: %w", err)
	}
	return method, true, nil
}

// SetAppMethod remembers method for app.
func (s *Store) SetAppMethod(app string, method int) error {
	app = strings.TrimSpace(app)
	if app == "" {
		return errors.New("empty application id")
	}
	if method != MethodTelex && method != MethodVNI {
		return fmt.Errorf("%w: %d", ErrInvalidMethod, method)
	}
	_, err := s.db.Exec(`
		INSERT INTO app_methods (app, method, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(app) DO UPDATE SET method = excluded.method, updated_at = excluded.updated_at`,
		app, method, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("set app method: %w", err)
	}
	return nil
}

// DeleteAppMethod forgets app. Deleting an unknown app is not an error.
func (s *Store) DeleteAppMethod(app string) error {
	if _, err := s.db.Exec("DELETE FROM app_methods WHERE app = ?", app); err != nil {
		return fmt.Errorf("delete app method: %w", err)
	}
	return nil
}

// ListApps returns all remembered applications ordered by name.
func (s *Store) ListApps() ([]AppMethod, error) {
	rows, err := s.db.Query("SELECT app, method, updated_at FROM app_methods ORDER BY app")
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []AppMethod
	for rows.Next() {
		var a AppMethod
		var updated int64
		if err := rows.Scan(&a.App, &a.Method, &updated); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		a.UpdatedAt = time.Unix(0, updated)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// RecordCommit counts one committed word for app. Only the length of
// text is kept.
func (s *Store) RecordCommit(app, text string, restored bool) error {
	if app == "" {
		app = "unknown"
	}
	restores := 0
	if restored {
		restores = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO daily_stats (day, app, commits, restores, chars) VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(day, app) DO UPDATE SET
			commits = commits + 1,
			restores = restores + excluded.restores,
			chars = chars + excluded.chars`,
		s.day(s.now()), app, restores, utf8.RuneCountInString(text))
	if err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return nil
}

// Stats returns per-application statistics for the last days days,
// today included, newest first.
func (s *Store) Stats(days int) ([]DailyStat, error) {
	if days < 1 {
		days = 1
	}
	since := s.day(s.now().AddDate(0, 0, -(days - 1)))

	rows, err := s.db.Query(`
		SELECT day, app, commits, restores, chars FROM daily_stats
		WHERE day >= ? ORDER BY day DESC, app`, since)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var d DailyStat
		if err := rows.Scan(&d.Day, &d.App, &d.Commits, &d.Restores, &d.Chars); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// PruneStats deletes statistics older than keepDays.
func (s *Store) PruneStats(keepDays int) (int64, error) {
	cutoff := s.day(s.now().AddDate(0, 0, -keepDays))
	res, err := s.db.Exec("DELETE FROM daily_stats WHERE day < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stats: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) day(t time.Time) string {
	return t.Format("2006-01-02")
}
