package main

import "net/http"

func (a *api) handleStagesByBoard(w http.ResponseWriter, r *http.Request) {
	bt, ok := boardTypeOf(r)
	if !ok {
		writeError(w, 400, "unknown board type")
		return
	}
	stages, err := a.store.StagesByBoard(r.Context(), bt)
	if err != nil {
		a.storeError(w, "stages by board", err)
		return
	}
	writeJSON(w, 200, stages)
}

func (a *api) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	bt, ok := boardTypeOf(r)
	if !ok {
		writeError(w, 400, "unknown board type")
		return
	}
	var req struct {
		Title string `json:"title"`
		Color string `json:"color"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	st, err := a.store.CreateStage(r.Context(), bt, req.Title, req.Color)
	if err != nil {
		a.storeError(w, "create stage", err)
		return
	}
	writeJSON(w, 201, st)
	a.bus.Publish(Event{Type: "stage.created", Entity: "stage", Board: bt, ID: st.ID, Payload: st})
}

func (a *api) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Title    *string `json:"title"`
		Color    *string `json:"color"`
		Terminal *bool   `json:"terminal"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if err := a.store.UpdateStage(r.Context(), id, req.Title, req.Color, req.Terminal); err != nil {
		a.storeError(w, "update stage", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	if st, e := a.store.GetStage(r.Context(), id); e == nil {
		a.bus.Publish(Event{Type: "stage.updated", Entity: "stage", Board: st.BoardType, ID: id})
	}
}

func (a *api) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	// Board type is needed for the event after the row is gone.
	st, err := a.store.GetStage(r.Context(), id)
	if err != nil {
		a.storeError(w, "delete stage", err)
		return
	}
	if err := a.store.DeleteStage(r.Context(), id); err != nil {
		a.storeError(w, "delete stage", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	a.bus.Publish(Event{Type: "stage.deleted", Entity: "stage", Board: st.BoardType, ID: id})
}

func (a *api) handleReorderStages(w http.ResponseWriter, r *http.Request) {
	bt, ok := boardTypeOf(r)
	if !ok {
		writeError(w, 400, "unknown board type")
		return
	}
	var req struct {
		OrderedIDs []int64 `json:"ordered_ids"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if err := a.store.ReorderStages(r.Context(), bt, req.OrderedIDs); err != nil {
		a.storeError(w, "reorder stages", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	a.bus.Publish(Event{Type: "stages.reordered", Entity: "stage", Board: bt})
}
