package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const stageCols = `id, board_type, title, color, pos, is_active, is_terminal, created_at`

func scanStage(row interface{ Scan(...any) error }) (Stage, error) {
	var st Stage
	var created string
	err := row.Scan(&st.ID, &st.BoardType, &st.Title, &st.Color, &st.Pos, &st.IsActive, &st.IsTerminal, &created)
	if err != nil {
		return Stage{}, err
	}
	st.CreatedAt = parseTimestamp(created)
	return st, nil
}

// StagesByBoard returns the active stages of a board type in column order.
func (s *Store) StagesByBoard(ctx context.Context, boardType BoardType) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+stageCols+` from stages where board_type=$1 and is_active order by pos, id`, boardType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Stage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) GetStage(ctx context.Context, id int64) (Stage, error) {
	st, err := scanStage(s.db.QueryRowContext(ctx,
		`select `+stageCols+` from stages where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Stage{}, ErrNotFound
	}
	return st, err
}

// TerminalStage returns the id of the board type's terminal stage, if one
// is designated.
func (s *Store) TerminalStage(ctx context.Context, boardType BoardType) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`select id from stages where board_type=$1 and is_active and is_terminal order by pos, id limit 1`,
		boardType).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// CreateStage appends a new column to the right edge of the board.
func (s *Store) CreateStage(ctx context.Context, boardType BoardType, title, color string) (Stage, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Stage{}, fmt.Errorf("%w: empty title", ErrValidation)
	}
	var next int64
	if err := s.db.QueryRowContext(ctx,
		`select coalesce(max(pos),-1)+1 from stages where board_type=$1`, boardType).Scan(&next); err != nil {
		return Stage{}, err
	}
	st, err := scanStage(s.db.QueryRowContext(ctx,
		`insert into stages(board_type, title, color, pos, is_active, is_terminal, created_at)
		 values($1,$2,$3,$4,$5,$6,$7) returning `+stageCols,
		boardType, title, color, next, true, false, s.timestamp()))
	return st, err
}

// UpdateStage applies a partial update. A true terminal flag moves the
// terminal designation to this stage; the flag is cleared on its siblings
// in the same transaction so a board type never has two terminal stages.
func (s *Store) UpdateStage(ctx context.Context, id int64, title, color *string, terminal *bool) error {
	if title == nil && color == nil && terminal == nil {
		return nil
	}
	if title != nil && strings.TrimSpace(*title) == "" {
		return fmt.Errorf("%w: empty title", ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var boardType BoardType
	err = tx.QueryRowContext(ctx, `select board_type from stages where id=$1`, id).Scan(&boardType)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if title != nil {
		if _, err := tx.ExecContext(ctx, `update stages set title=$1 where id=$2`, strings.TrimSpace(*title), id); err != nil {
			return err
		}
	}
	if color != nil {
		if _, err := tx.ExecContext(ctx, `update stages set color=$1 where id=$2`, *color, id); err != nil {
			return err
		}
	}
	if terminal != nil {
		if *terminal {
			if _, err := tx.ExecContext(ctx,
				`update stages set is_terminal=false where board_type=$1 and id<>$2`, boardType, id); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `update stages set is_terminal=$1 where id=$2`, *terminal, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteStage removes a column. Items referencing it are appended to the
// fallback stage (first remaining column) with contiguous positions, in the
// same transaction that deletes the stage row, so an item never references
// a nonexistent stage.
func (s *Store) DeleteStage(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var boardType BoardType
	err = tx.QueryRowContext(ctx, `select board_type from stages where id=$1 and is_active`, id).Scan(&boardType)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var fallback int64
	err = tx.QueryRowContext(ctx,
		`select id from stages where board_type=$1 and id<>$2 and is_active order by pos, id limit 1`,
		boardType, id).Scan(&fallback)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: cannot delete the last stage of board %q", ErrConstraint, boardType)
	}
	if err != nil {
		return err
	}

	var base int64
	if err := tx.QueryRowContext(ctx,
		`select count(*) from work_items where stage_id=$1`, fallback).Scan(&base); err != nil {
		return err
	}
	rows, err := tx.QueryContext(ctx,
		`select id from work_items where stage_id=$1 order by pos, id`, id)
	if err != nil {
		return err
	}
	defer rows.Close()
	var orphans []int64
	for rows.Next() {
		var itemID int64
		if err := rows.Scan(&itemID); err != nil {
			return err
		}
		orphans = append(orphans, itemID)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i, itemID := range orphans {
		if _, err := tx.ExecContext(ctx,
			`update work_items set stage_id=$1, pos=$2 where id=$3`, fallback, base+int64(i), itemID); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `delete from stages where id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ReorderStages rewrites column positions to match the supplied order. The
// id set must exactly match the board type's active stages.
func (s *Store) ReorderStages(ctx context.Context, boardType BoardType, orderedIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`select id from stages where board_type=$1 and is_active`, boardType)
	if err != nil {
		return err
	}
	defer rows.Close()
	existing := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(orderedIDs) != len(existing) {
		return fmt.Errorf("%w: stage id set mismatch", ErrValidation)
	}
	seen := map[int64]bool{}
	for _, id := range orderedIDs {
		if !existing[id] || seen[id] {
			return fmt.Errorf("%w: stage id set mismatch", ErrValidation)
		}
		seen[id] = true
	}

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx, `update stages set pos=$1 where id=$2`, int64(i), id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
