package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"punchd/attend"
)

// Postgres persists attendance data in Postgres via database/sql.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a Postgres connection with sane pool defaults and
// verifies it with a ping.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// GetEmployee implements attend.Store.
func (p *Postgres) GetEmployee(ctx context.Context, cardID string) (*attend.Employee, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT card_id, name, COALESCE(department, ''), status
		FROM employees WHERE card_id = $1
	`, cardID)
	var e attend.Employee
	if err := row.Scan(&e.CardID, &e.Name, &e.Department, &e.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// InsertEmployee implements attend.Store.
func (p *Postgres) InsertEmployee(ctx context.Context, e attend.Employee) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO employees (card_id, name, department, status)
		VALUES ($1, $2, $3, $4)
	`, e.CardID, e.Name, e.Department, e.Status)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return attend.ErrDuplicateCard
	}
	return err
}

// LastLog implements attend.Store.
func (p *Postgres) LastLog(ctx context.Context, cardID string, day time.Time) (*attend.LogEntry, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, card_id, employee_name, date, time_in, time_out, status
		FROM attendance_logs
		WHERE card_id = $1 AND date = $2
		ORDER BY id DESC
		LIMIT 1
	`, cardID, day)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return entry, nil
}

// InsertLog implements attend.Store.
func (p *Postgres) InsertLog(ctx context.Context, entry attend.LogEntry) (int64, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO attendance_logs (card_id, employee_name, date, time_in, time_out, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.CardID, entry.EmployeeName, entry.Date, entry.TimeIn, entry.TimeOut, entry.Status)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SetCheckout implements attend.Store.
func (p *Postgres) SetCheckout(ctx context.Context, id int64, t time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE attendance_logs SET time_out = $2, status = $3 WHERE id = $1
	`, id, t, attend.StatusOut)
	return err
}

// Logs implements attend.Store.
func (p *Postgres) Logs(ctx context.Context, from, to time.Time) ([]attend.LogEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, card_id, employee_name, date, time_in, time_out, status
		FROM attendance_logs
		WHERE time_in >= $1 AND time_in < $2
		ORDER BY time_in DESC, id DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []attend.LogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *entry)
	}
	return res, rows.Err()
}

// Summary implements attend.Store.
func (p *Postgres) Summary(ctx context.Context, from, to time.Time) (in, out int, err error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(time_out)
		FROM attendance_logs
		WHERE time_in >= $1 AND time_in < $2
	`, from, to)
	if err := row.Scan(&in, &out); err != nil {
		return 0, 0, err
	}
	return in, out, nil
}

// Close implements attend.Store.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*attend.LogEntry, error) {
	var entry attend.LogEntry
	var out sql.NullTime
	if err := row.Scan(&entry.ID, &entry.CardID, &entry.EmployeeName, &entry.Date, &entry.TimeIn, &out, &entry.Status); err != nil {
		return nil, err
	}
	if out.Valid {
		t := out.Time
		entry.TimeOut = &t
	}
	return &entry, nil
}
