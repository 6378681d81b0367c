package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeLogCols = `id, item_id, started_at, ended_at, minutes, note, auto`

func scanTimeLog(row interface{ Scan(...any) error }) (TimeLog, error) {
	var tl TimeLog
	var started string
	var ended sql.NullString
	err := row.Scan(&tl.ID, &tl.ItemID, &started, &ended, &tl.Minutes, &tl.Note, &tl.Auto)
	if err != nil {
		return TimeLog{}, err
	}
	tl.StartedAt = parseTimestamp(started)
	if ended.Valid {
		t := parseTimestamp(ended.String)
		tl.EndedAt = &t
	}
	return tl, nil
}

func (s *Store) TimeLogsByItem(ctx context.Context, itemID int64) ([]TimeLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+timeLogCols+` from time_logs where item_id=$1 order by id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimeLog
	for rows.Next() {
		tl, err := scanTimeLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tl)
	}
	return out, rows.Err()
}

// StartTimer opens an explicit timer entry for the item. Only one timer may
// run per item at a time.
func (s *Store) StartTimer(ctx context.Context, itemID int64) (TimeLog, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return TimeLog{}, err
	}
	var open int64
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from time_logs where item_id=$1 and ended_at is null`, itemID).Scan(&open); err != nil {
		return TimeLog{}, err
	}
	if open > 0 {
		return TimeLog{}, fmt.Errorf("%w: timer already running for item %d", ErrConstraint, itemID)
	}
	tl, err := scanTimeLog(s.db.QueryRowContext(ctx,
		`insert into time_logs(item_id, started_at, minutes, note, auto)
		 values($1,$2,0,'',false) returning `+timeLogCols,
		itemID, s.timestamp()))
	return tl, err
}

// StopTimer closes the item's running timer and records the elapsed whole
// minutes, which are never negative.
func (s *Store) StopTimer(ctx context.Context, itemID int64) (TimeLog, error) {
	var id int64
	var started string
	err := s.db.QueryRowContext(ctx,
		`select id, started_at from time_logs where item_id=$1 and ended_at is null order by id desc limit 1`,
		itemID).Scan(&id, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return TimeLog{}, fmt.Errorf("%w: no running timer for item %d", ErrNotFound, itemID)
	}
	if err != nil {
		return TimeLog{}, err
	}
	now := s.now().UTC()
	minutes := int64(now.Sub(parseTimestamp(started)) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	if _, err := s.db.ExecContext(ctx,
		`update time_logs set ended_at=$1, minutes=$2 where id=$3`,
		now.Format(time.RFC3339), minutes, id); err != nil {
		return TimeLog{}, err
	}
	tl, err := scanTimeLog(s.db.QueryRowContext(ctx,
		`select `+timeLogCols+` from time_logs where id=$1`, id))
	return tl, err
}

// lastStartTime resolves the reference start for automatic logging: the
// item's running timer if there is one, otherwise the start of its most
// recent explicit entry.
func (s *Store) lastStartTime(ctx context.Context, itemID int64) (time.Time, bool, error) {
	var started string
	err := s.db.QueryRowContext(ctx,
		`select started_at from time_logs where item_id=$1 and auto=false and ended_at is null order by id desc limit 1`,
		itemID).Scan(&started)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx,
			`select started_at from time_logs where item_id=$1 and auto=false order by id desc limit 1`,
			itemID).Scan(&started)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return parseTimestamp(started), true, nil
}

func (s *Store) insertAutoLog(ctx context.Context, itemID int64, start, end time.Time, minutes int64, note string) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: automatic log requires positive duration", ErrValidation)
	}
	_, err := s.db.ExecContext(ctx,
		`insert into time_logs(item_id, started_at, ended_at, minutes, note, auto)
		 values($1,$2,$3,$4,$5,true)`,
		itemID, start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), minutes, note)
	return err
}
