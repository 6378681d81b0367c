package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrConstraint = errors.New("constraint violated")
)

// Store owns all persistent state: stages, work items and time logs.
// Queries use $N placeholders, which both the pgx stdlib driver and
// modernc's sqlite driver accept, so one implementation serves both
// backends; only the schema DDL differs per dialect.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver, now: time.Now}
}

// OpenStore opens the database for the given driver ("pgx" or "sqlite")
// and configures the connection pool.
func OpenStore(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	switch driver {
	case "sqlite":
		// A single connection keeps :memory: databases coherent and
		// serializes writers.
		db.SetMaxOpenConns(1)
		for _, p := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA foreign_keys=ON",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("exec pragma %q: %w", p, err)
			}
		}
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	return NewStore(db, driver), nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	ddl := schemaPostgres
	if s.driver == "sqlite" {
		ddl = schemaSQLite
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return s.seedStages(ctx)
}

// seedStages guarantees the "at least one stage per board type" invariant
// from first run. Board types that already have stages are left alone.
func (s *Store) seedStages(ctx context.Context) error {
	defaults := map[BoardType][]struct {
		title    string
		terminal bool
	}{
		BoardTasks: {{"To Do", false}, {"In Progress", false}, {"Done", true}},
		BoardLeads: {{"New", false}, {"Contacted", false}, {"Won", true}},
	}
	for _, bt := range []BoardType{BoardTasks, BoardLeads} {
		var n int64
		if err := s.db.QueryRowContext(ctx,
			`select count(*) from stages where board_type=$1`, bt).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		for i, d := range defaults[bt] {
			if _, err := s.db.ExecContext(ctx,
				`insert into stages(board_type, title, color, pos, is_active, is_terminal, created_at)
				 values($1,$2,$3,$4,$5,$6,$7)`,
				bt, d.title, "", int64(i), true, d.terminal, s.timestamp()); err != nil {
				return fmt.Errorf("seed %s stages: %w", bt, err)
			}
		}
	}
	return nil
}

// Timestamps are stored as RFC3339 text in both dialects.
func (s *Store) timestamp() string { return s.now().UTC().Format(time.RFC3339) }

func parseTimestamp(v string) time.Time {
	t, _ := time.Parse(time.RFC3339, v)
	return t
}

const schemaPostgres = `
create table if not exists stages(
    id bigserial primary key,
    board_type text not null,
    title text not null check (length(title) > 0),
    color text not null default '',
    pos bigint not null default 0,
    is_active boolean not null default true,
    is_terminal boolean not null default false,
    created_at text not null
);
create index if not exists stages_board_idx on stages(board_type, pos);
create table if not exists work_items(
    id bigserial primary key,
    board_type text not null,
    stage_id bigint not null references stages(id),
    title text not null check (length(title) > 0),
    description text not null default '',
    pos bigint not null default 0,
    created_at text not null
);
create index if not exists work_items_stage_idx on work_items(stage_id, pos);
create table if not exists time_logs(
    id bigserial primary key,
    item_id bigint not null references work_items(id) on delete cascade,
    started_at text not null,
    ended_at text,
    minutes bigint not null default 0,
    note text not null default '',
    auto boolean not null default false
);
create index if not exists time_logs_item_idx on time_logs(item_id);
`

const schemaSQLite = `
create table if not exists stages(
    id integer primary key autoincrement,
    board_type text not null,
    title text not null check (length(title) > 0),
    color text not null default '',
    pos integer not null default 0,
    is_active integer not null default 1,
    is_terminal integer not null default 0,
    created_at text not null
);
create index if not exists stages_board_idx on stages(board_type, pos);
create table if not exists work_items(
    id integer primary key autoincrement,
    board_type text not null,
    stage_id integer not null references stages(id),
    title text not null check (length(title) > 0),
    description text not null default '',
    pos integer not null default 0,
    created_at text not null
);
create index if not exists work_items_stage_idx on work_items(stage_id, pos);
create table if not exists time_logs(
    id integer primary key autoincrement,
    item_id integer not null references work_items(id) on delete cascade,
    started_at text not null,
    ended_at text,
    minutes integer not null default 0,
    note text not null default '',
    auto integer not null default 0
);
create index if not exists time_logs_item_idx on time_logs(item_id);
`
