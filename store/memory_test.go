package store

import (
	"context"
	"testing"
	"time"

	"punchd/attend"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.Local)
}

func clock(d, hour, min int) time.Time {
	return time.Date(2024, 3, d, hour, min, 0, 0, time.Local)
}

func TestMemoryDuplicateEmployee(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	e := attend.Employee{CardID: "A100", Name: "Alice", Status: "Active"}
	if err := m.InsertEmployee(ctx, e); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.InsertEmployee(ctx, e); err != attend.ErrDuplicateCard {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicateCard", err)
	}
}

func TestMemoryLastLogPicksNewestWithinDay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	insert := func(d, hour int) int64 {
		id, err := m.InsertLog(ctx, attend.LogEntry{
			CardID: "A100",
			Date:   day(d),
			TimeIn: clock(d, hour, 0),
			Status: attend.StatusIn,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		return id
	}

	insert(14, 9)
	want := insert(14, 13)
	insert(15, 8) // next day must not shadow

	got, err := m.LastLog(ctx, "A100", day(14))
	if err != nil {
		t.Fatalf("last log: %v", err)
	}
	if got == nil || got.ID != want {
		t.Fatalf("last log = %+v, want id %d", got, want)
	}

	if got, _ := m.LastLog(ctx, "A100", day(16)); got != nil {
		t.Fatalf("last log for empty day = %+v, want nil", got)
	}
	if got, _ := m.LastLog(ctx, "B200", day(14)); got != nil {
		t.Fatalf("last log for unknown card = %+v, want nil", got)
	}
}

func TestMemoryLastLogFollowsInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// A backwards clock step can give a later tap an earlier
	// timestamp. The later insert still wins.
	if _, err := m.InsertLog(ctx, attend.LogEntry{
		CardID: "A100",
		Date:   day(14),
		TimeIn: clock(14, 10, 0),
		Status: attend.StatusIn,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	want, err := m.InsertLog(ctx, attend.LogEntry{
		CardID: "A100",
		Date:   day(14),
		TimeIn: clock(14, 9, 30),
		Status: attend.StatusIn,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := m.LastLog(ctx, "A100", day(14))
	if err != nil {
		t.Fatalf("last log: %v", err)
	}
	if got == nil || got.ID != want {
		t.Fatalf("last log = %+v, want id %d", got, want)
	}
}

func TestMemorySetCheckout(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.InsertLog(ctx, attend.LogEntry{
		CardID: "A100",
		Date:   day(14),
		TimeIn: clock(14, 9, 0),
		Status: attend.StatusIn,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	out := clock(14, 17, 0)
	if err := m.SetCheckout(ctx, id, out); err != nil {
		t.Fatalf("set checkout: %v", err)
	}

	got, _ := m.LastLog(ctx, "A100", day(14))
	if got.Status != attend.StatusOut || got.TimeOut == nil || !got.TimeOut.Equal(out) {
		t.Fatalf("entry after checkout = %+v", got)
	}
}

func TestMemoryLogsAndSummary(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	out := clock(14, 17, 0)
	entries := []attend.LogEntry{
		{CardID: "A100", Date: day(14), TimeIn: clock(14, 9, 0), TimeOut: &out, Status: attend.StatusOut},
		{CardID: "B200", Date: day(14), TimeIn: clock(14, 10, 0), Status: attend.StatusIn},
		{CardID: "A100", Date: day(15), TimeIn: clock(15, 9, 0), Status: attend.StatusIn},
	}
	for _, e := range entries {
		if _, err := m.InsertLog(ctx, e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	logs, err := m.Logs(ctx, day(14), day(15))
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs in range = %d, want 2", len(logs))
	}
	if logs[0].TimeIn.Before(logs[1].TimeIn) {
		t.Fatalf("logs not newest first: %v then %v", logs[0].TimeIn, logs[1].TimeIn)
	}

	in, outCount, err := m.Summary(ctx, day(14), day(15))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if in != 2 || outCount != 1 {
		t.Fatalf("summary = (%d, %d), want (2, 1)", in, outCount)
	}
}
