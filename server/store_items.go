package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const itemCols = `id, board_type, stage_id, title, description, pos, created_at`

func scanItem(row interface{ Scan(...any) error }) (WorkItem, error) {
	var it WorkItem
	var created string
	err := row.Scan(&it.ID, &it.BoardType, &it.StageID, &it.Title, &it.Description, &it.Pos, &created)
	if err != nil {
		return WorkItem{}, err
	}
	it.CreatedAt = parseTimestamp(created)
	return it, nil
}

// ItemsByStage returns the stage's items in position order.
func (s *Store) ItemsByStage(ctx context.Context, boardType BoardType, stageID int64) ([]WorkItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+itemCols+` from work_items where board_type=$1 and stage_id=$2 order by pos, id`,
		boardType, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorkItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) GetItem(ctx context.Context, id int64) (WorkItem, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`select `+itemCols+` from work_items where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, ErrNotFound
	}
	return it, err
}

// CreateItem inserts a work item at the end of the given stage. A zero
// stageID places the item in the board's first column.
func (s *Store) CreateItem(ctx context.Context, boardType BoardType, stageID int64, title, description string) (WorkItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return WorkItem{}, fmt.Errorf("%w: empty title", ErrValidation)
	}
	if stageID == 0 {
		err := s.db.QueryRowContext(ctx,
			`select id from stages where board_type=$1 and is_active order by pos, id limit 1`,
			boardType).Scan(&stageID)
		if errors.Is(err, sql.ErrNoRows) {
			return WorkItem{}, fmt.Errorf("%w: board %q has no stages", ErrConstraint, boardType)
		}
		if err != nil {
			return WorkItem{}, err
		}
	} else {
		st, err := s.GetStage(ctx, stageID)
		if err != nil {
			return WorkItem{}, err
		}
		if st.BoardType != boardType {
			return WorkItem{}, fmt.Errorf("%w: stage %d belongs to board %q", ErrConstraint, stageID, st.BoardType)
		}
	}
	var pos int64
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from work_items where stage_id=$1`, stageID).Scan(&pos); err != nil {
		return WorkItem{}, err
	}
	it, err := scanItem(s.db.QueryRowContext(ctx,
		`insert into work_items(board_type, stage_id, title, description, pos, created_at)
		 values($1,$2,$3,$4,$5,$6) returning `+itemCols,
		boardType, stageID, title, description, pos, s.timestamp()))
	return it, err
}

func (s *Store) UpdateItem(ctx context.Context, id int64, title, description *string) error {
	if title == nil && description == nil {
		return nil
	}
	if title != nil && strings.TrimSpace(*title) == "" {
		return fmt.Errorf("%w: empty title", ErrValidation)
	}
	if title != nil {
		res, err := s.db.ExecContext(ctx, `update work_items set title=$1 where id=$2`, strings.TrimSpace(*title), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	if description != nil {
		res, err := s.db.ExecContext(ctx, `update work_items set description=$1 where id=$2`, *description, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var stageID int64
	err = tx.QueryRowContext(ctx, `select stage_id from work_items where id=$1`, id).Scan(&stageID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from work_items where id=$1`, id); err != nil {
		return err
	}
	if err := renumberStageExcluding(ctx, tx, stageID, 0); err != nil {
		return err
	}
	return tx.Commit()
}

// renumberStageExcluding rewrites a stage's item positions to 0..n-1 in
// display order, skipping exceptID (0 for none). Run after an item leaves a
// stage so positions stay collision-free for the count-based append.
func renumberStageExcluding(ctx context.Context, tx *sql.Tx, stageID, exceptID int64) error {
	rows, err := tx.QueryContext(ctx,
		`select id from work_items where stage_id=$1 and id<>$2 order by pos, id`, stageID, exceptID)
	if err != nil {
		return err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `update work_items set pos=$1 where id=$2`, int64(i), id); err != nil {
			return err
		}
	}
	return nil
}

// MoveItem reassigns an item to the target stage, appended after the items
// already there. Stage and position are written together in one statement
// inside one transaction; a failed move leaves both untouched. The previous
// stage id is derived here by reading the item, never persisted.
func (s *Store) MoveItem(ctx context.Context, itemID, targetStageID int64) (WorkItem, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return WorkItem{}, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	it, err := scanItem(tx.QueryRowContext(ctx,
		`select `+itemCols+` from work_items where id=$1`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, 0, ErrNotFound
	}
	if err != nil {
		return WorkItem{}, 0, err
	}
	prevStageID := it.StageID

	var targetBoard BoardType
	err = tx.QueryRowContext(ctx,
		`select board_type from stages where id=$1 and is_active`, targetStageID).Scan(&targetBoard)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, 0, fmt.Errorf("%w: target stage %d", ErrNotFound, targetStageID)
	}
	if err != nil {
		return WorkItem{}, 0, err
	}
	if targetBoard != it.BoardType {
		return WorkItem{}, 0, fmt.Errorf("%w: cannot move item across board types", ErrConstraint)
	}

	// Append-to-end policy: the new position is the count of items already
	// in the target stage, regardless of where the item was dropped.
	var newPos int64
	if err := tx.QueryRowContext(ctx,
		`select count(*) from work_items where stage_id=$1 and id<>$2`, targetStageID, itemID).Scan(&newPos); err != nil {
		return WorkItem{}, 0, err
	}

	if prevStageID == targetStageID {
		// Close the slot the item vacates before it lands at the end, so
		// the appended position cannot collide with a sibling.
		if err := renumberStageExcluding(ctx, tx, targetStageID, itemID); err != nil {
			return WorkItem{}, 0, err
		}
	}
	res, err := tx.ExecContext(ctx,
		`update work_items set stage_id=$1, pos=$2 where id=$3`, targetStageID, newPos, itemID)
	if err != nil {
		return WorkItem{}, 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return WorkItem{}, 0, ErrNotFound
	}
	if prevStageID != targetStageID {
		if err := renumberStageExcluding(ctx, tx, prevStageID, itemID); err != nil {
			return WorkItem{}, 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return WorkItem{}, 0, err
	}
	it.StageID = targetStageID
	it.Pos = newPos
	return it, prevStageID, nil
}
