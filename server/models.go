package main

import "time"

// BoardType namespaces stages and work items. The task board and the lead
// board share the same mechanics but never mix rows.
type BoardType string

const (
	BoardTasks BoardType = "tasks"
	BoardLeads BoardType = "leads"
)

func (b BoardType) Valid() bool { return b == BoardTasks || b == BoardLeads }

// Stage is one workflow column. Pos orders columns left to right within a
// board type. IsTerminal marks the board's "finished" column; at most one
// active stage per board type carries the flag.
type Stage struct {
	ID         int64     `json:"id"`
	BoardType  BoardType `json:"board_type"`
	Title      string    `json:"title"`
	Color      string    `json:"color,omitempty"`
	Pos        int64     `json:"pos"`
	IsActive   bool      `json:"is_active"`
	IsTerminal bool      `json:"is_terminal"`
	CreatedAt  time.Time `json:"created_at"`
}

// WorkItem is a task or a lead. Pos orders items within their stage and is
// only meaningful inside one (board type, stage) pair.
type WorkItem struct {
	ID          int64     `json:"id"`
	BoardType   BoardType `json:"board_type"`
	StageID     int64     `json:"stage_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Pos         int64     `json:"pos"`
	CreatedAt   time.Time `json:"created_at"`
}

// TimeLog is one tracked interval for a work item. Auto entries are written
// by the transition dispatcher; manual entries come from the explicit timer.
type TimeLog struct {
	ID        int64      `json:"id"`
	ItemID    int64      `json:"item_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Minutes   int64      `json:"minutes"`
	Note      string     `json:"note,omitempty"`
	Auto      bool       `json:"auto"`
}

// BoardColumn is one column of the board projection: a stage plus its items
// in position order.
type BoardColumn struct {
	Stage Stage      `json:"stage"`
	Items []WorkItem `json:"items"`
}
