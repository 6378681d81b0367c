package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAPI(t *testing.T) (*api, *http.ServeMux) {
	t.Helper()
	s := newTestStore(t)
	log := testLogger()
	d := NewDispatcher(s, log)
	e := NewEngine(s, d, log)
	a := newAPI(s, e, d, NewEventBus(), log)
	mux := http.NewServeMux()
	a.routes(mux)
	t.Cleanup(d.Wait)
	return a, mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	_, mux := newTestAPI(t)
	w := doJSON(t, mux, "GET", "/api/health", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetBoard(t *testing.T) {
	a, mux := newTestAPI(t)
	todo := stageByTitle(t, a.store, BoardTasks, "To Do")
	mustCreateItem(t, a.store, BoardTasks, todo.ID, "a")

	w := doJSON(t, mux, "GET", "/api/boards/tasks", nil)
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody[struct {
		BoardType BoardType     `json:"board_type"`
		Columns   []BoardColumn `json:"columns"`
		Seq       uint64        `json:"seq"`
	}](t, w)
	if resp.BoardType != BoardTasks || len(resp.Columns) != 3 {
		t.Fatalf("unexpected board: %+v", resp)
	}
	if len(resp.Columns[0].Items) != 1 {
		t.Fatalf("todo column should hold the created item: %+v", resp.Columns[0])
	}
}

func TestGetBoardUnknownType(t *testing.T) {
	_, mux := newTestAPI(t)
	if w := doJSON(t, mux, "GET", "/api/boards/invoices", nil); w.Code != 400 {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMoveEndpoint(t *testing.T) {
	a, mux := newTestAPI(t)
	todo := stageByTitle(t, a.store, BoardTasks, "To Do")
	done := stageByTitle(t, a.store, BoardTasks, "Done")
	it := mustCreateItem(t, a.store, BoardTasks, todo.ID, "a")

	w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/move", it.ID),
		map[string]any{"target_stage_id": done.ID})
	if w.Code != 200 {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	moved := decodeBody[WorkItem](t, w)
	if moved.StageID != done.ID || moved.Pos != 0 {
		t.Fatalf("unexpected move result: %+v", moved)
	}
}

func TestMoveEndpointErrors(t *testing.T) {
	a, mux := newTestAPI(t)
	todo := stageByTitle(t, a.store, BoardTasks, "To Do")
	leadStage := stageByTitle(t, a.store, BoardLeads, "New")
	it := mustCreateItem(t, a.store, BoardTasks, todo.ID, "a")

	if w := doJSON(t, mux, "POST", "/api/items/9999/move", map[string]any{"target_stage_id": todo.ID}); w.Code != 404 {
		t.Fatalf("missing item: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/move", it.ID), map[string]any{"target_stage_id": 9999}); w.Code != 404 {
		t.Fatalf("missing stage: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/move", it.ID), map[string]any{"target_stage_id": leadStage.ID}); w.Code != 409 {
		t.Fatalf("cross-board: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "POST", "/api/items/abc/move", map[string]any{"target_stage_id": todo.ID}); w.Code != 400 {
		t.Fatalf("bad id: status = %d", w.Code)
	}
}

func TestStageEndpoints(t *testing.T) {
	_, mux := newTestAPI(t)

	w := doJSON(t, mux, "POST", "/api/boards/tasks/stages", map[string]any{"title": "Review", "color": "#abc"})
	if w.Code != 201 {
		t.Fatalf("create: status = %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody[Stage](t, w)
	if created.Title != "Review" || created.Pos != 3 {
		t.Fatalf("unexpected stage: %+v", created)
	}

	if w := doJSON(t, mux, "POST", "/api/boards/tasks/stages", map[string]any{"title": ""}); w.Code != 400 {
		t.Fatalf("empty title: status = %d", w.Code)
	}

	if w := doJSON(t, mux, "PATCH", fmt.Sprintf("/api/stages/%d", created.ID), map[string]any{"title": "QA"}); w.Code != 200 {
		t.Fatalf("rename: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "PATCH", "/api/stages/9999", map[string]any{"title": "x"}); w.Code != 404 {
		t.Fatalf("rename missing: status = %d", w.Code)
	}

	if w := doJSON(t, mux, "DELETE", fmt.Sprintf("/api/stages/%d", created.ID), nil); w.Code != 200 {
		t.Fatalf("delete: status = %d", w.Code)
	}
}

func TestDeleteLastStageEndpoint(t *testing.T) {
	a, mux := newTestAPI(t)
	stages, _ := a.store.StagesByBoard(context.Background(), BoardLeads)
	for _, st := range stages[1:] {
		if w := doJSON(t, mux, "DELETE", fmt.Sprintf("/api/stages/%d", st.ID), nil); w.Code != 200 {
			t.Fatalf("delete %q: status = %d", st.Title, w.Code)
		}
	}
	if w := doJSON(t, mux, "DELETE", fmt.Sprintf("/api/stages/%d", stages[0].ID), nil); w.Code != 409 {
		t.Fatalf("last stage: status = %d", w.Code)
	}
}

func TestReorderStagesEndpoint(t *testing.T) {
	a, mux := newTestAPI(t)
	stages, _ := a.store.StagesByBoard(context.Background(), BoardTasks)
	reversed := []int64{stages[2].ID, stages[1].ID, stages[0].ID}

	if w := doJSON(t, mux, "PUT", "/api/boards/tasks/stages/reorder", map[string]any{"ordered_ids": reversed}); w.Code != 200 {
		t.Fatalf("reorder: status = %d: %s", w.Code, w.Body.String())
	}
	w := doJSON(t, mux, "GET", "/api/boards/tasks/stages", nil)
	got := decodeBody[[]Stage](t, w)
	if got[0].ID != stages[2].ID {
		t.Fatalf("reorder not visible: %+v", got)
	}

	if w := doJSON(t, mux, "PUT", "/api/boards/tasks/stages/reorder", map[string]any{"ordered_ids": reversed[:2]}); w.Code != 400 {
		t.Fatalf("id set mismatch: status = %d", w.Code)
	}
}

func TestChangesSeqBumpsPerMutation(t *testing.T) {
	a, mux := newTestAPI(t)
	todo := stageByTitle(t, a.store, BoardTasks, "To Do")
	done := stageByTitle(t, a.store, BoardTasks, "Done")
	it := mustCreateItem(t, a.store, BoardTasks, todo.ID, "a")

	seqOf := func() uint64 {
		w := doJSON(t, mux, "GET", "/api/boards/tasks/changes", nil)
		if w.Code != 200 {
			t.Fatalf("changes: status = %d", w.Code)
		}
		return decodeBody[struct {
			Seq uint64 `json:"seq"`
		}](t, w).Seq
	}

	before := seqOf()
	doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/move", it.ID), map[string]any{"target_stage_id": done.ID})
	if got := seqOf(); got != before+1 {
		t.Fatalf("seq after move = %d, want %d", got, before+1)
	}
	// A failed mutation must not advance the sequence.
	doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/move", it.ID), map[string]any{"target_stage_id": 9999})
	if got := seqOf(); got != before+1 {
		t.Fatalf("seq after failed move = %d, want %d", got, before+1)
	}
}

func TestItemEndpoints(t *testing.T) {
	a, mux := newTestAPI(t)
	todo := stageByTitle(t, a.store, BoardTasks, "To Do")

	w := doJSON(t, mux, "POST", "/api/boards/tasks/items", map[string]any{"title": "call back", "description": "asap"})
	if w.Code != 201 {
		t.Fatalf("create: status = %d: %s", w.Code, w.Body.String())
	}
	created := decodeBody[WorkItem](t, w)
	if created.StageID != todo.ID {
		t.Fatalf("item not placed in first stage: %+v", created)
	}

	if w := doJSON(t, mux, "PATCH", fmt.Sprintf("/api/items/%d", created.ID), map[string]any{"title": "call back today"}); w.Code != 200 {
		t.Fatalf("update: status = %d", w.Code)
	}
	w = doJSON(t, mux, "GET", fmt.Sprintf("/api/stages/%d/items", todo.ID), nil)
	items := decodeBody[[]WorkItem](t, w)
	if len(items) != 1 || items[0].Title != "call back today" {
		t.Fatalf("unexpected items: %+v", items)
	}

	if w := doJSON(t, mux, "DELETE", fmt.Sprintf("/api/items/%d", created.ID), nil); w.Code != 200 {
		t.Fatalf("delete: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "DELETE", fmt.Sprintf("/api/items/%d", created.ID), nil); w.Code != 404 {
		t.Fatalf("double delete: status = %d", w.Code)
	}
}

func TestTimerEndpoints(t *testing.T) {
	a, mux := newTestAPI(t)
	it := mustCreateItem(t, a.store, BoardTasks, 0, "tracked")

	if w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/timer/stop", it.ID), nil); w.Code != 404 {
		t.Fatalf("stop without start: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/timer/start", it.ID), nil); w.Code != 201 {
		t.Fatalf("start: status = %d", w.Code)
	}
	if w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/timer/start", it.ID), nil); w.Code != 409 {
		t.Fatalf("double start: status = %d", w.Code)
	}
	w := doJSON(t, mux, "POST", fmt.Sprintf("/api/items/%d/timer/stop", it.ID), nil)
	if w.Code != 200 {
		t.Fatalf("stop: status = %d", w.Code)
	}
	stopped := decodeBody[TimeLog](t, w)
	if stopped.Minutes < 0 || stopped.EndedAt == nil {
		t.Fatalf("unexpected stopped entry: %+v", stopped)
	}

	w = doJSON(t, mux, "GET", fmt.Sprintf("/api/items/%d/timelogs", it.ID), nil)
	logs := decodeBody[[]TimeLog](t, w)
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(logs))
	}
}
