// Package storage persists completed captures in sqlite.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aayushbajaj/trigcap/internal/capture"
	"github.com/aayushbajaj/trigcap/internal/trigger"
)

// ErrNotFound is returned when a capture does not exist.
var ErrNotFound = errors.New("capture not found")

const dateFormat = "2006-01-02"

type Store struct {
	db *sql.DB
}

// DayStats summarizes one day of captures.
type DayStats struct {
	Date         string
	Notes        int
	Tasks        int
	Timers       int
	TimerSeconds int64
}

// Total is the number of captures of any kind.
func (d DayStats) Total() int {
	return d.Notes + d.Tasks + d.Timers
}

// Filter narrows ListCaptures. Zero fields match everything.
type Filter struct {
	Kind  *trigger.Kind
	Since time.Time
	Until time.Time
	Tag   string
	// Query matches content case-insensitively.
	Query string
	Limit int
}

// DefaultPath returns ~/.trigcap/trigcap.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".trigcap", "trigcap.db"), nil
}

// New opens the store at the default path.
func New() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return NewWithPath(path)
}

// NewWithPath opens or creates the database at path.
func NewWithPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		trigger_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		app TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_captures_started ON captures(started_at);
	CREATE INDEX IF NOT EXISTS idx_captures_date ON captures(date);

	CREATE TABLE IF NOT EXISTS capture_tags (
		capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
		tag TEXT NOT NULL,
		PRIMARY KEY (capture_id, tag)
	);

	CREATE TABLE IF NOT EXISTS known_tags (
		tag TEXT PRIMARY KEY COLLATE NOCASE,
		last_used INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCapture stores rec and remembers its tags. Saving an existing ID
// replaces it.
func (s *Store) SaveCapture(rec capture.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO captures (id, kind, trigger_id, content, app, started_at, finished_at, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Kind.String(), rec.TriggerID, rec.Content, rec.App,
		rec.Started.UnixMilli(), rec.Finished.UnixMilli(), rec.Started.Format(dateFormat))
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM capture_tags WHERE capture_id = ?`, rec.ID); err != nil {
		return err
	}
	for _, tag := range rec.Tags {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO capture_tags (capture_id, tag) VALUES (?, ?)`, rec.ID, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
		if err := rememberTag(tx, tag, rec.Finished); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func rememberTag(tx *sql.Tx, tag string, at time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO known_tags (tag, last_used) VALUES (?, ?)
		ON CONFLICT(tag) DO UPDATE SET last_used = MAX(last_used, excluded.last_used)
	`, tag, at.UnixMilli())
	return err
}

// GetCapture returns the capture with id.
func (s *Store) GetCapture(id string) (*capture.Record, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, trigger_id, content, app, started_at, finished_at
		FROM captures WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if rec.Tags, err = s.tagsFor(rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListCaptures returns matching captures, newest first.
func (s *Store) ListCaptures(f Filter) ([]capture.Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != nil {
		where = append(where, "c.kind = ?")
		args = append(args, f.Kind.String())
	}
	if !f.Since.IsZero() {
		where = append(where, "c.started_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		where = append(where, "c.started_at < ?")
		args = append(args, f.Until.UnixMilli())
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM capture_tags t WHERE t.capture_id = c.id AND t.tag = ? COLLATE NOCASE)")
		args = append(args, f.Tag)
	}
	if f.Query != "" {
		where = append(where, "c.content LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.Query)+"%")
	}

	query := `SELECT c.id, c.kind, c.trigger_id, c.content, c.app, c.started_at, c.finished_at FROM captures c`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.started_at DESC, c.id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []capture.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Tags, err = s.tagsFor(out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteCapture removes the capture with id.
func (s *Store) DeleteCapture(id string) error {
	res, err := s.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// KnownTags returns every tag ever used, most recent first.
func (s *Store) KnownTags() ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM known_tags ORDER BY last_used DESC, tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// AddKnownTag remembers tag without a capture, e.g. when added to a
// running timer.
func (s *Store) AddKnownTag(tag string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := rememberTag(tx, tag, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDayStats returns the summary for a date in YYYY-MM-DD form.
func (s *Store) GetDayStats(date string) (*DayStats, error) {
	stats := &DayStats{Date: date}
	rows, err := s.db.Query(`
		SELECT kind, COUNT(*), COALESCE(SUM(finished_at - started_at), 0)
		FROM captures WHERE date = ? GROUP BY kind
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  string
			count int
			ms    int64
		)
		if err := rows.Scan(&kind, &count, &ms); err != nil {
			return nil, err
		}
		k, err := trigger.ParseKind(kind)
		if err != nil {
			continue
		}
		switch k {
		case trigger.KindNote:
			stats.Notes = count
		case trigger.KindTask:
			stats.Tasks = count
		case trigger.KindTimer:
			stats.Timers = count
			stats.TimerSeconds = ms / 1000
		}
	}
	return stats, rows.Err()
}

// GetTodayStats returns the summary for today.
func (s *Store) GetTodayStats() (*DayStats, error) {
	return s.GetDayStats(time.Now().Format(dateFormat))
}

// GetHistoricalStats returns one summary per day for the last days days,
// oldest first.
func (s *Store) GetHistoricalStats(days int) ([]DayStats, error) {
	out := make([]DayStats, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i).Format(dateFormat)
		stats, err := s.GetDayStats(date)
		if err != nil {
			return nil, err
		}
		out = append(out, *stats)
	}
	return out, nil
}

// GetSetting returns the value for key, or "" if unset.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (s *Store) tagsFor(id string) ([]string, error) {
	rows, err := s.db.Query(`SELECT tag FROM capture_tags WHERE capture_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		return strings.ToLower(tags[i]) < strings.ToLower(tags[j])
	})
	return tags, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*capture.Record, error) {
	var (
		rec       capture.Record
		kind      string
		start, fn int64
	)
	if err := sc.Scan(&rec.ID, &kind, &rec.TriggerID, &rec.Content, &rec.App, &start, &fn); err != nil {
		return nil, err
	}
	k, err := trigger.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	rec.Kind = k
	rec.Started = time.UnixMilli(start)
	rec.Finished = time.UnixMilli(fn)
	return &rec, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
