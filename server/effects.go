package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const autoLogNote = "Logged automatically on completion"

// Transition describes one observed stage change of a work item.
type Transition struct {
	Item      WorkItem
	FromStage int64
	ToStage   int64
}

// transitionRule pairs a predicate over a transition with the effect to run
// when it matches. Rules are data, so further automatic effects can be added
// without touching the dispatch loop.
type transitionRule struct {
	name    string
	matches func(ctx context.Context, s *Store, tr Transition) (bool, error)
	apply   func(ctx context.Context, s *Store, now time.Time, tr Transition) error
}

// enteredTerminal matches moves from any non-terminal stage into the board
// type's designated terminal stage. Terminal to terminal is a no-op and
// reopening fires nothing.
func enteredTerminal(ctx context.Context, s *Store, tr Transition) (bool, error) {
	terminal, ok, err := s.TerminalStage(ctx, tr.Item.BoardType)
	if err != nil || !ok {
		return false, err
	}
	return tr.ToStage == terminal && tr.FromStage != terminal, nil
}

// logElapsedTime writes one automatic time log for the elapsed whole minutes
// since the item's reference start. Items without a recorded start yield a
// zero duration and no entry.
func logElapsedTime(ctx context.Context, s *Store, now time.Time, tr Transition) error {
	start, ok, err := s.lastStartTime(ctx, tr.Item.ID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	minutes := int64(now.Sub(start) / time.Minute)
	if minutes <= 0 {
		return nil
	}
	return s.insertAutoLog(ctx, tr.Item.ID, start, now, minutes, autoLogNote)
}

// Dispatcher runs configured side effects for stage transitions. Dispatch is
// fire-and-forget: effects run on their own goroutine, their errors are
// logged and swallowed, and the triggering move is never blocked, failed or
// rolled back by them.
type Dispatcher struct {
	store   *Store
	log     *slog.Logger
	rules   []transitionRule
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewDispatcher(store *Store, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store: store,
		log:   log,
		rules: []transitionRule{
			{name: "auto_time_log", matches: enteredTerminal, apply: logElapsedTime},
		},
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// ItemMoved schedules rule evaluation for a committed move. The effect
// outlives the request: the context is detached from cancellation so the
// write is still attempted after the response has been sent.
func (d *Dispatcher) ItemMoved(ctx context.Context, item WorkItem, fromStage, toStage int64) {
	tr := Transition{Item: item, FromStage: fromStage, ToStage: toStage}
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		d.run(ctx, tr)
	}()
}

func (d *Dispatcher) run(ctx context.Context, tr Transition) {
	for _, rule := range d.rules {
		ok, err := rule.matches(ctx, d.store, tr)
		if err != nil {
			d.log.Error("transition rule", "rule", rule.name, "item", tr.Item.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}
		if err := rule.apply(ctx, d.store, d.now().UTC(), tr); err != nil {
			d.log.Error("transition effect", "rule", rule.name, "item", tr.Item.ID, "err", err)
		}
	}
}

// Wait blocks until all scheduled effects have finished. Used on shutdown so
// in-flight effects are attempted, never silently dropped.
func (d *Dispatcher) Wait() { d.wg.Wait() }
