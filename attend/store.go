package attend

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrDuplicateCard is returned by InsertEmployee when the card id is
// already registered.
var ErrDuplicateCard = errors.New("card id already registered")

// StatusActive is the employee status that permits clocking. The
// comparison is case-insensitive.
const StatusActive = "Active"

// Entry statuses.
const (
	StatusIn  = "IN"
	StatusOut = "OUT"
)

// Employee is a registered card holder. Created once by explicit
// registration, never deleted by this daemon.
type Employee struct {
	CardID     string
	Name       string
	Department string
	Status     string
}

// Active reports whether the employee may clock in or out.
func (e Employee) Active() bool {
	return strings.EqualFold(e.Status, StatusActive)
}

// LogEntry is one clock-in/clock-out cycle for a card on a calendar day.
// TimeOut is nil while the cycle is still open.
type LogEntry struct {
	ID           int64
	CardID       string
	EmployeeName string
	Date         time.Time // local calendar day, zero clock
	TimeIn       time.Time
	TimeOut      *time.Time
	Status       string
}

// Open reports whether the entry is a still-active clock-in.
func (l LogEntry) Open() bool {
	return l.Status == StatusIn && l.TimeOut == nil
}

// Store is the persistence collaborator. Implementations are safe for
// sequential access only; all calls come from the dispatcher goroutine.
type Store interface {
	// GetEmployee returns the employee for a card id, or nil if the
	// card is not registered.
	GetEmployee(ctx context.Context, cardID string) (*Employee, error)

	// InsertEmployee registers a new employee. Returns ErrDuplicateCard
	// if the card id is taken.
	InsertEmployee(ctx context.Context, e Employee) error

	// LastLog returns the most recent entry for (card, day), or nil.
	LastLog(ctx context.Context, cardID string, day time.Time) (*LogEntry, error)

	// InsertLog stores a new entry and returns its assigned id.
	InsertLog(ctx context.Context, entry LogEntry) (int64, error)

	// SetCheckout closes the entry with the given id.
	SetCheckout(ctx context.Context, id int64, t time.Time) error

	// Logs returns entries with time_in inside [from, to), newest first.
	Logs(ctx context.Context, from, to time.Time) ([]LogEntry, error)

	// Summary counts clock-ins and completed clock-outs in [from, to).
	Summary(ctx context.Context, from, to time.Time) (in, out int, err error)

	Close() error
}
