package main

import (
	"context"
	"log/slog"
)

// Engine is the reordering core: it owns the move orchestration and the
// board projection. Stage and item CRUD go straight to the store; moves come
// through here so the transition dispatcher sees every stage change.
type Engine struct {
	store   *Store
	effects *Dispatcher
	log     *slog.Logger
}

func NewEngine(store *Store, effects *Dispatcher, log *slog.Logger) *Engine {
	return &Engine{store: store, effects: effects, log: log}
}

// Move applies a drop event. The persisted write is atomic and decides the
// outcome; the transition hand-off is fire-and-forget and happens only after
// the write committed. Moves within the same stage still dispatch, letting
// the rule table decide that nothing matches.
func (e *Engine) Move(ctx context.Context, itemID, targetStageID int64) (WorkItem, error) {
	item, prevStage, err := e.store.MoveItem(ctx, itemID, targetStageID)
	if err != nil {
		return WorkItem{}, err
	}
	e.effects.ItemMoved(ctx, item, prevStage, item.StageID)
	return item, nil
}

// Board assembles the projection: active stages in column order, each with
// its items in position order. Pure read, recomputed on demand; there is no
// cached board state to invalidate.
func (e *Engine) Board(ctx context.Context, boardType BoardType) ([]BoardColumn, error) {
	stages, err := e.store.StagesByBoard(ctx, boardType)
	if err != nil {
		return nil, err
	}
	cols := make([]BoardColumn, 0, len(stages))
	for _, st := range stages {
		items, err := e.store.ItemsByStage(ctx, boardType, st.ID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []WorkItem{}
		}
		cols = append(cols, BoardColumn{Stage: st, Items: items})
	}
	return cols, nil
}
