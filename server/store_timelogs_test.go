package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartStopTimer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it := mustCreateItem(t, s, BoardTasks, 0, "work")

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	tl, err := s.StartTimer(ctx, it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if tl.EndedAt != nil || tl.Minutes != 0 || tl.Auto {
		t.Fatalf("running timer should be open, manual, zero minutes: %+v", tl)
	}
	if !tl.StartedAt.Equal(base) {
		t.Fatalf("started_at = %v, want %v", tl.StartedAt, base)
	}

	s.now = func() time.Time { return base.Add(2*time.Hour + 30*time.Second) }
	stopped, err := s.StopTimer(ctx, it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped.EndedAt == nil {
		t.Fatal("stopped timer should have an end time")
	}
	// Whole minutes, rounded down.
	if stopped.Minutes != 120 {
		t.Fatalf("minutes = %d, want 120", stopped.Minutes)
	}
}

func TestStartTimerTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it := mustCreateItem(t, s, BoardTasks, 0, "work")

	if _, err := s.StartTimer(ctx, it.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.StartTimer(ctx, it.ID); !errors.Is(err, ErrConstraint) {
		t.Fatalf("second start: got %v, want ErrConstraint", err)
	}
}

func TestStartTimerMissingItem(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.StartTimer(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStopTimerWithoutStart(t *testing.T) {
	s := newTestStore(t)
	it := mustCreateItem(t, s, BoardTasks, 0, "work")
	if _, err := s.StopTimer(context.Background(), it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestStopTimerSubMinute(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it := mustCreateItem(t, s, BoardTasks, 0, "quick")

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if _, err := s.StartTimer(ctx, it.ID); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(45 * time.Second) }
	stopped, err := s.StopTimer(ctx, it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stopped.Minutes != 0 {
		t.Fatalf("sub-minute stop: minutes = %d, want 0", stopped.Minutes)
	}
}

func TestLastStartTimePrefersOpenEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it := mustCreateItem(t, s, BoardTasks, 0, "work")

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.StartTimer(ctx, it.ID)
	s.now = func() time.Time { return base.Add(time.Hour) }
	s.StopTimer(ctx, it.ID)

	// Closed entry only: reference is its start.
	start, ok, err := s.lastStartTime(ctx, it.ID)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !start.Equal(base) {
		t.Fatalf("start = %v, want %v", start, base)
	}

	// An open entry takes precedence.
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.StartTimer(ctx, it.ID)
	start, ok, _ = s.lastStartTime(ctx, it.ID)
	if !ok || !start.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("open entry should win: got %v", start)
	}
}

func TestLastStartTimeNone(t *testing.T) {
	s := newTestStore(t)
	it := mustCreateItem(t, s, BoardTasks, 0, "idle")
	_, ok, err := s.lastStartTime(context.Background(), it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("item without entries should have no reference start")
	}
}

func TestInsertAutoLogRejectsZeroDuration(t *testing.T) {
	s := newTestStore(t)
	it := mustCreateItem(t, s, BoardTasks, 0, "work")
	now := time.Now().UTC()
	if err := s.insertAutoLog(context.Background(), it.ID, now, now, 0, autoLogNote); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestTimeLogsSharedSchema(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it := mustCreateItem(t, s, BoardTasks, 0, "work")

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.StartTimer(ctx, it.ID)
	s.now = func() time.Time { return base.Add(30 * time.Minute) }
	s.StopTimer(ctx, it.ID)
	if err := s.insertAutoLog(ctx, it.ID, base, base.Add(90*time.Minute), 90, autoLogNote); err != nil {
		t.Fatal(err)
	}

	logs, err := s.TimeLogsByItem(ctx, it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(logs))
	}
	if logs[0].ID == logs[1].ID {
		t.Fatal("manual and automatic entries must not collide on id")
	}
	if logs[0].Auto || !logs[1].Auto {
		t.Fatalf("auto flags wrong: %+v", logs)
	}
	if logs[1].Note != autoLogNote {
		t.Fatalf("auto note = %q", logs[1].Note)
	}
}
