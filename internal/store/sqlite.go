// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"loaner/internal/inventory"
	"loaner/internal/logger"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Options tunes the SQLite connection
type Options struct {
	// BusyTimeout is how long a writer waits for the database lock
	BusyTimeout time.Duration
	// MaxOpenConns caps the connection pool, 0 keeps the driver default
	MaxOpenConns int
}

// SQLite implements Store on a single SQLite file
type SQLite struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open opens (and if needed creates) the database at path and applies the schema.
// Transactions take the write lock on BEGIN so claims are serialized by SQLite itself.
func Open(path string, opts Options) (*SQLite, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate",
		path, opts.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	s := &SQLite{
		db:     db,
		path:   path,
		logger: logger.GetLogger("store"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug().Str("path", path).Msg("Database opened")
	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// initSchema creates the database tables
func (s *SQLite) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS laptops (
			id TEXT PRIMARY KEY,
			brand TEXT NOT NULL,
			model TEXT NOT NULL,
			capacity_gb INTEGER NOT NULL,
			ram_gb INTEGER NOT NULL,
			class TEXT NOT NULL CHECK (class IN ('high', 'low')),
			state TEXT NOT NULL CHECK (state IN ('available', 'loaned')),
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			program TEXT NOT NULL,
			program_end TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			required_class TEXT NOT NULL CHECK (required_class IN ('high', 'low')),
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			laptop_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active', 'completed', 'cancelled')),
			created_at TEXT NOT NULL,
			closed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS queue_entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			class TEXT NOT NULL CHECK (class IN ('high', 'low')),
			enqueued_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reservations_one_active
			ON reservations(laptop_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_laptops_class_state ON laptops(class, state)`,
		`CREATE INDEX IF NOT EXISTS idx_students_class ON students(required_class)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_class ON queue_entries(class, seq)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// withTx runs fn inside a transaction and commits when it returns nil
func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn().Err(rbErr).Msg("Rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Laptop operations

const laptopColumns = `id, brand, model, capacity_gb, ram_gb, class, state, created_at`

func scanLaptop(row scanner) (*inventory.Laptop, error) {
	var laptop inventory.Laptop
	var createdAt string
	err := row.Scan(&laptop.ID, &laptop.Brand, &laptop.Model, &laptop.CapacityGB,
		&laptop.RAMGB, &laptop.Class, &laptop.State, &createdAt)
	if err != nil {
		return nil, err
	}
	laptop.CreatedAt = parseTime(createdAt)
	return &laptop, nil
}

func (s *SQLite) CreateLaptop(ctx context.Context, laptop *inventory.Laptop) error {
	query := `INSERT INTO laptops (` + laptopColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, laptop.ID, laptop.Brand, laptop.Model, laptop.CapacityGB,
		laptop.RAMGB, laptop.Class, laptop.State, formatTime(laptop.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create laptop: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetLaptop(ctx context.Context, id string) (*inventory.Laptop, error) {
	return getLaptop(ctx, s.db, id)
}

func getLaptop(ctx context.Context, q querier, id string) (*inventory.Laptop, error) {
	query := `SELECT ` + laptopColumns + ` FROM laptops WHERE id = ?`
	laptop, err := scanLaptop(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get laptop %s: %w", id, translate(err))
	}
	return laptop, nil
}

func (s *SQLite) ListLaptops(ctx context.Context, state *inventory.LaptopState) ([]*inventory.Laptop, error) {
	query := `SELECT ` + laptopColumns + ` FROM laptops`
	var args []interface{}
	if state != nil {
		query += ` WHERE state = ?`
		args = append(args, *state)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query laptops: %w", err)
	}
	defer rows.Close()

	laptops := []*inventory.Laptop{}
	for rows.Next() {
		laptop, err := scanLaptop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan laptop: %w", err)
		}
		laptops = append(laptops, laptop)
	}
	return laptops, rows.Err()
}

func (s *SQLite) PeekAvailableLaptop(ctx context.Context, class inventory.PerformanceClass) (*inventory.Laptop, error) {
	return firstAvailable(ctx, s.db, class)
}

// firstAvailable is the selection policy shared by peek and claim: oldest laptop first
func firstAvailable(ctx context.Context, q querier, class inventory.PerformanceClass) (*inventory.Laptop, error) {
	query := `SELECT ` + laptopColumns + ` FROM laptops WHERE class = ? AND state = ? ORDER BY rowid LIMIT 1`
	laptop, err := scanLaptop(q.QueryRowContext(ctx, query, class, inventory.StateAvailable))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, inventory.ErrNoLaptopAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find available laptop: %w", err)
	}
	return laptop, nil
}

func (s *SQLite) UpdateLaptop(ctx context.Context, laptop *inventory.Laptop) error {
	query := `UPDATE laptops SET brand = ?, model = ?, capacity_gb = ?, ram_gb = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, laptop.Brand, laptop.Model, laptop.CapacityGB, laptop.RAMGB, laptop.ID)
	if err != nil {
		return fmt.Errorf("failed to update laptop: %w", err)
	}
	return requireAffected(res, "laptop", laptop.ID)
}

func (s *SQLite) SetLaptopState(ctx context.Context, id string, from, to inventory.LaptopState) (*inventory.Laptop, error) {
	var laptop *inventory.Laptop
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getLaptop(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.State != from {
			return fmt.Errorf("%w: laptop %s is %s", inventory.ErrConflict, id, current.State)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE laptops SET state = ? WHERE id = ? AND state = ?`, to, id, from); err != nil {
			return fmt.Errorf("failed to update laptop state: %w", err)
		}
		current.State = to
		laptop = current
		return nil
	})
	return laptop, err
}

func (s *SQLite) DeleteLaptop(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM laptops WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete laptop: %w", err)
	}
	return requireAffected(res, "laptop", id)
}

func (s *SQLite) DeleteIdleLaptop(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM laptops WHERE id = ? AND NOT EXISTS (
				SELECT 1 FROM reservations WHERE laptop_id = ? AND status = ?)`,
			id, id, inventory.ReservationActive)
		if err != nil {
			return fmt.Errorf("failed to delete laptop: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n > 0 {
			return nil
		}

		if _, err := getLaptop(ctx, tx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: laptop %s has an active reservation", inventory.ErrLaptopOnLoan, id)
	})
}

func (s *SQLite) HasActiveReservation(ctx context.Context, laptopID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE laptop_id = ? AND status = ?`,
		laptopID, inventory.ReservationActive).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count reservations: %w", err)
	}
	return n > 0, nil
}

// Student operations

const studentColumns = `id, name, program, program_end, email, phone, required_class, created_at`

func scanStudent(row scanner) (*inventory.Student, error) {
	var student inventory.Student
	var createdAt string
	err := row.Scan(&student.ID, &student.Name, &student.Program, &student.ProgramEnd,
		&student.Email, &student.Phone, &student.RequiredClass, &createdAt)
	if err != nil {
		return nil, err
	}
	student.CreatedAt = parseTime(createdAt)
	return &student, nil
}

func (s *SQLite) CreateStudent(ctx context.Context, student *inventory.Student) error {
	query := `INSERT INTO students (` + studentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, student.ID, student.Name, student.Program, student.ProgramEnd,
		student.Email, student.Phone, student.RequiredClass, formatTime(student.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create student: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetStudent(ctx context.Context, id string) (*inventory.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ?`
	student, err := scanStudent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get student %s: %w", id, translate(err))
	}
	return student, nil
}

func (s *SQLite) ListStudents(ctx context.Context, class *inventory.PerformanceClass) ([]*inventory.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students`
	var args []interface{}
	if class != nil {
		query += ` WHERE required_class = ?`
		args = append(args, *class)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	students := []*inventory.Student{}
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *SQLite) CountStudents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}
	return n, nil
}

func (s *SQLite) UpdateStudent(ctx context.Context, student *inventory.Student) error {
	query := `UPDATE students SET name = ?, program = ?, program_end = ?, email = ?, phone = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, student.Name, student.Program, student.ProgramEnd,
		student.Email, student.Phone, student.ID)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	return requireAffected(res, "student", student.ID)
}

func (s *SQLite) DeleteStudent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	return requireAffected(res, "student", id)
}

// Reservation operations

const reservationColumns = `id, student_id, laptop_id, status, created_at, closed_at`

func scanReservation(row scanner) (*inventory.Reservation, error) {
	var r inventory.Reservation
	var createdAt string
	var closedAt sql.NullString
	if err := row.Scan(&r.ID, &r.StudentID, &r.LaptopID, &r.Status, &createdAt, &closedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	if closedAt.Valid {
		t := parseTime(closedAt.String)
		r.ClosedAt = &t
	}
	return &r, nil
}

// claimInTx is the conditional write at the heart of every bind: the laptop
// only flips if it is still AVAILABLE, otherwise the claim is lost.
func claimInTx(ctx context.Context, tx *sql.Tx, laptopID, studentID string, now time.Time) (*Claim, error) {
	res, err := tx.ExecContext(ctx, `UPDATE laptops SET state = ? WHERE id = ? AND state = ?`,
		inventory.StateLoaned, laptopID, inventory.StateAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to claim laptop: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to claim laptop: %w", err)
	} else if n == 0 {
		return nil, inventory.ErrNoLaptopAvailable
	}

	reservation := inventory.NewReservation(studentID, laptopID, now)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO reservations (id, student_id, laptop_id, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		reservation.ID, reservation.StudentID, reservation.LaptopID, reservation.Status, formatTime(reservation.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", translate(err))
	}

	laptop, err := getLaptop(ctx, tx, laptopID)
	if err != nil {
		return nil, err
	}
	return &Claim{Reservation: reservation, Laptop: laptop}, nil
}

func (s *SQLite) ClaimLaptop(ctx context.Context, class inventory.PerformanceClass, studentID string, now time.Time) (*Claim, error) {
	var claim *Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		candidate, err := firstAvailable(ctx, tx, class)
		if err != nil {
			return err
		}
		claim, err = claimInTx(ctx, tx, candidate.ID, studentID, now)
		return err
	})
	return claim, err
}

func (s *SQLite) ClaimSpecificLaptop(ctx context.Context, laptopID, studentID string, now time.Time) (*Claim, error) {
	var claim *Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		laptop, err := getLaptop(ctx, tx, laptopID)
		if err != nil {
			return err
		}
		if !laptop.Available() {
			return fmt.Errorf("%w: %s", inventory.ErrLaptopOnLoan, laptopID)
		}
		claim, err = claimInTx(ctx, tx, laptopID, studentID, now)
		return err
	})
	return claim, err
}

func (s *SQLite) ClaimForQueueEntry(ctx context.Context, entry *inventory.QueueEntry, now time.Time) (*Claim, error) {
	var claim *Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		candidate, err := firstAvailable(ctx, tx, entry.Class)
		if err != nil {
			return err
		}
		claim, err = claimInTx(ctx, tx, candidate.ID, entry.StudentID, now)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE seq = ?`, entry.Seq)
		if err != nil {
			return fmt.Errorf("failed to dequeue entry: %w", err)
		}
		return requireAffected(res, "queue entry", fmt.Sprint(entry.Seq))
	})
	return claim, err
}

func (s *SQLite) CloseReservation(ctx context.Context, id string, status inventory.ReservationStatus, now time.Time) (*Claim, error) {
	var claim *Claim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		reservation, err := getReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := reservation.Status.CanTransition(status); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE reservations SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
			status, formatTime(now), id, inventory.ReservationActive)
		if err != nil {
			return fmt.Errorf("failed to close reservation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return inventory.ErrReservationNotActive
		}

		closedAt := now.UTC()
		reservation.Status = status
		reservation.ClosedAt = &closedAt
		claim = &Claim{Reservation: reservation}

		if _, err := tx.ExecContext(ctx, `UPDATE laptops SET state = ? WHERE id = ?`,
			inventory.StateAvailable, reservation.LaptopID); err != nil {
			return fmt.Errorf("failed to release laptop: %w", err)
		}
		laptop, err := getLaptop(ctx, tx, reservation.LaptopID)
		if err != nil && !errors.Is(err, inventory.ErrNotFound) {
			return err
		}
		claim.Laptop = laptop
		return nil
	})
	return claim, err
}

func (s *SQLite) GetReservation(ctx context.Context, id string) (*inventory.Reservation, error) {
	return getReservation(ctx, s.db, id)
}

func getReservation(ctx context.Context, q querier, id string) (*inventory.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	reservation, err := scanReservation(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation %s: %w", id, translate(err))
	}
	return reservation, nil
}

func (s *SQLite) ListReservations(ctx context.Context, activeOnly bool) ([]*inventory.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var args []interface{}
	if activeOnly {
		query += ` WHERE status = ?`
		args = append(args, inventory.ReservationActive)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	reservations := []*inventory.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// Queue operations

func (s *SQLite) Enqueue(ctx context.Context, studentID string, class inventory.PerformanceClass, now time.Time) (*inventory.QueueEntry, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_entries (student_id, class, enqueued_at) VALUES (?, ?, ?)`,
		studentID, class, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue student: %w", translate(err))
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry ID: %w", err)
	}
	return &inventory.QueueEntry{Seq: seq, StudentID: studentID, Class: class, EnqueuedAt: now.UTC()}, nil
}

func (s *SQLite) ListQueue(ctx context.Context, class inventory.PerformanceClass) ([]*inventory.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, student_id, class, enqueued_at FROM queue_entries WHERE class = ? ORDER BY seq`, class)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	entries := []*inventory.QueueEntry{}
	for rows.Next() {
		var entry inventory.QueueEntry
		var enqueuedAt string
		if err := rows.Scan(&entry.Seq, &entry.StudentID, &entry.Class, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entry.EnqueuedAt = parseTime(enqueuedAt)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (s *SQLite) IsQueued(ctx context.Context, studentID string, class inventory.PerformanceClass) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE student_id = ? AND class = ?`, studentID, class).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check queue: %w", err)
	}
	return n > 0, nil
}

// helpers

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, inventory.ErrNotFound)
	}
	return nil
}

// translate maps driver errors onto inventory sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return inventory.ErrNotFound
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY") {
		return fmt.Errorf("%w: %s", inventory.ErrConflict, msg)
	}
	if strings.Contains(msg, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %s", inventory.ErrNotFound, msg)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Compile-time check that SQLite implements Store
var _ Store = (*SQLite)(nil)
