// Package attend turns raw card scans into clock-in/clock-out
// transitions against a Store.
package attend

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Outcome classifies the result of processing one scan.
type Outcome int

const (
	ClockedIn Outcome = iota
	ClockedOut
	UnknownCard
	InactiveCard
	Rejected
)

// String returns the outcome name for logs and MQTT payloads.
func (o Outcome) String() string {
	switch o {
	case ClockedIn:
		return "clocked_in"
	case ClockedOut:
		return "clocked_out"
	case UnknownCard:
		return "unknown_card"
	case InactiveCard:
		return "inactive_card"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Result is the decision for one scan. Employee is set for every outcome
// where the card resolved; Entry is set for ClockedIn and ClockedOut.
type Result struct {
	Outcome  Outcome
	Employee *Employee
	Entry    *LogEntry
	Reason   string
}

// Engine applies the attendance toggle against a Store. All calls must
// come from a single goroutine; the engine does no locking of its own.
type Engine struct {
	store Store
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// ProcessScan resolves one physical card tap into an attendance
// transition. Each call is a new tap and alternates state; it is
// deliberately not idempotent.
func (e *Engine) ProcessScan(ctx context.Context, raw string, at time.Time) (Result, error) {
	cardID := strings.TrimSpace(raw)
	if cardID == "" {
		return Result{Outcome: Rejected, Reason: "empty"}, nil
	}

	emp, err := e.store.GetEmployee(ctx, cardID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup employee %s: %w", cardID, err)
	}
	if emp == nil {
		return Result{Outcome: UnknownCard}, nil
	}
	if !emp.Active() {
		return Result{Outcome: InactiveCard, Employee: emp}, nil
	}

	day := Day(at)
	last, err := e.store.LastLog(ctx, cardID, day)
	if err != nil {
		return Result{}, fmt.Errorf("last log %s: %w", cardID, err)
	}

	if last != nil && last.Open() {
		if err := e.store.SetCheckout(ctx, last.ID, at); err != nil {
			return Result{}, fmt.Errorf("set checkout %d: %w", last.ID, err)
		}
		out := at
		closed := *last
		closed.Status = StatusOut
		closed.TimeOut = &out
		return Result{Outcome: ClockedOut, Employee: emp, Entry: &closed}, nil
	}

	if last != nil && last.Status == StatusIn {
		// The latest entry claims IN but already has a checkout time.
		// The alternation invariant does not allow this; whatever wrote
		// it has a bug. Recover by opening a fresh cycle.
		log.Printf("attend: inconsistent open entry id=%d card=%s, starting fresh cycle", last.ID, cardID)
	}

	entry := LogEntry{
		CardID:       cardID,
		EmployeeName: emp.Name,
		Date:         day,
		TimeIn:       at,
		Status:       StatusIn,
	}
	id, err := e.store.InsertLog(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("insert log %s: %w", cardID, err)
	}
	entry.ID = id
	return Result{Outcome: ClockedIn, Employee: emp, Entry: &entry}, nil
}

// Register adds a new employee for a card that has never been seen.
// The name comes from the operator; ErrDuplicateCard means the card
// was registered concurrently or the operator mistyped.
func (e *Engine) Register(ctx context.Context, cardID, name, department string) error {
	cardID = strings.TrimSpace(cardID)
	name = strings.TrimSpace(name)
	if cardID == "" || name == "" {
		return fmt.Errorf("register: card id and name required")
	}
	return e.store.InsertEmployee(ctx, Employee{
		CardID:     cardID,
		Name:       name,
		Department: department,
		Status:     StatusActive,
	})
}

// Day truncates t to its local calendar day. Scans are grouped and
// toggled at this granularity, so a tap after midnight always starts a
// fresh cycle.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
