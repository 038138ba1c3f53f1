/*
Package sqlite provides the SQLite-backed persistence for the workday engine.

PURPOSE:
  Holds the read-mostly tables that feed the calendar, leave and attendance
  computations. The computations themselves never touch the database: the
  API layer loads snapshots from here and passes them in.

KEY TABLES:
  users:          People the balances and attendance belong to
  holidays:       Admin-managed holidays (the "persisted" calendar)
  leave_types:    Leave categories with their per-period limit
  leave_balances: One row per (user, leave type); absent row = untouched entitlement
  attendance:     One row per (user, date) the user was present

INVARIANTS ENFORCED BY INDEXES:
  - idx_leave_balances_unique: at most one balance per (user, leave type)
  - idx_attendance_unique_day: at most one attendance row per (user, date)
  - idx_holidays_unique:       no duplicate (date, name) holiday

DATES:
  Calendar dates are stored as "YYYY-MM-DD" TEXT, timestamps as RFC3339 TEXT.

CONCURRENCY:
  Uses sync.RWMutex around the connection. WAL mode lets readers proceed
  while a single writer holds the lock.

USAGE:
  store, err := sqlite.New("./data/workday.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - calendar/source.go: HolidayStore, implemented by Store.HolidaysForYear
  - api/handlers.go:    Callers
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/workday-engine/attendance"
	"github.com/warp/workday-engine/calendar"
	"github.com/warp/workday-engine/leave"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAttendance is returned when a user is marked twice on one date.
	ErrDuplicateAttendance = errors.New("attendance already marked for date")
)

// Store implements persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Compile-time check that Store can back the persisted calendar
var _ calendar.HolidayStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every :memory: connection is its own database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL DEFAULT 'employee',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_date
		ON holidays(date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		limit_days INTEGER NOT NULL CHECK (limit_days >= 0),
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_balances (
		user_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		remaining INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_leave_balances_unique
		ON leave_balances(user_id, leave_type_id);

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'present',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_unique_day
		ON attendance(user_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE
// =============================================================================

// User is a person whose leave and attendance are tracked.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Role == "" {
		u.Role = "employee"
	}

	query := `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Role,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	var email sql.NullString
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, created_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Name, &email, &u.Role, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, created_at FROM users ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &email, &u.Role, &createdAt); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// HOLIDAY STORE (calendar.HolidayStore)
// =============================================================================

// SaveHoliday inserts a holiday, assigning an ID if it has none, and returns it.
// Saving the same (date, name) again updates the recurring flag.
func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) (calendar.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		h.ID,
		h.Date.String(),
		h.Name,
		h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	).Scan(&h.ID)
	if err != nil {
		return calendar.Holiday{}, fmt.Errorf("failed to save holiday: %w", err)
	}
	return h, nil
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHolidays returns all persisted holidays (for the admin UI).
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHolidays(ctx, `
		SELECT id, date, name, recurring
		FROM holidays
		ORDER BY date ASC, name ASC
	`)
}

// HolidaysForYear returns holidays dated in year plus every recurring holiday.
func (s *Store) HolidaysForYear(ctx context.Context, year int) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryHolidays(ctx, `
		SELECT id, date, name, recurring
		FROM holidays
		WHERE recurring = TRUE OR substr(date, 1, 4) = ?
		ORDER BY date ASC, name ASC
	`, fmt.Sprintf("%04d", year))
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]calendar.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = calendar.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// LEAVE STORE
// =============================================================================

// SaveLeaveType inserts or updates a leave type.
func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_types (id, name, limit_days, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			limit_days = excluded.limit_days,
			description = excluded.description
	`

	_, err := s.db.ExecContext(ctx, query,
		lt.ID, lt.Name, lt.Limit, lt.Description,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListLeaveTypes returns every leave type ordered by name.
func (s *Store) ListLeaveTypes(ctx context.Context) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, limit_days, description FROM leave_types ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []leave.LeaveType
	for rows.Next() {
		var lt leave.LeaveType
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.Limit, &lt.Description); err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

// SaveLeaveBalance inserts or replaces the balance of (user, leave type).
func (s *Store) SaveLeaveBalance(ctx context.Context, b leave.LeaveBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO leave_balances (user_id, leave_type_id, used, remaining, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, leave_type_id) DO UPDATE SET
			used = excluded.used,
			remaining = excluded.remaining,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		b.UserID, b.LeaveTypeID, b.Used, b.Remaining,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListLeaveBalances returns the balance rows of one user.
func (s *Store) ListLeaveBalances(ctx context.Context, userID string) ([]leave.LeaveBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, leave_type_id, used, remaining FROM leave_balances WHERE user_id = ? ORDER BY leave_type_id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []leave.LeaveBalance
	for rows.Next() {
		var b leave.LeaveBalance
		if err := rows.Scan(&b.UserID, &b.LeaveTypeID, &b.Used, &b.Remaining); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

// MarkAttendance records presence. Returns ErrDuplicateAttendance if the user
// already has a row for that date.
func (s *Store) MarkAttendance(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = attendance.StatusPresent
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (id, user_id, date, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		r.ID, r.UserID, r.Date.String(), string(r.Status),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return attendance.Record{}, ErrDuplicateAttendance
		}
		return attendance.Record{}, fmt.Errorf("failed to mark attendance: %w", err)
	}
	return r, nil
}

// ListAttendance returns a user's records within p, ordered by date.
func (s *Store) ListAttendance(ctx context.Context, userID string, p calendar.Period) ([]attendance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, status
		FROM attendance
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, userID, p.Start.String(), p.End.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []attendance.Record
	for rows.Next() {
		var r attendance.Record
		var dateStr, status string
		if err := rows.Scan(&r.ID, &r.UserID, &dateStr, &status); err != nil {
			return nil, err
		}
		if r.Date, err = calendar.ParseDate(dateStr); err != nil {
			return nil, fmt.Errorf("attendance %s: %w", r.ID, err)
		}
		r.Status = attendance.Status(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"attendance", "leave_balances", "leave_types", "holidays", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
