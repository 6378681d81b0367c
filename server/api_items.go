package main

import "net/http"

func (a *api) handleItemsByStage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	st, err := a.store.GetStage(r.Context(), id)
	if err != nil {
		a.storeError(w, "items by stage", err)
		return
	}
	items, err := a.store.ItemsByStage(r.Context(), st.BoardType, st.ID)
	if err != nil {
		a.storeError(w, "items by stage", err)
		return
	}
	writeJSON(w, 200, items)
}

func (a *api) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	bt, ok := boardTypeOf(r)
	if !ok {
		writeError(w, 400, "unknown board type")
		return
	}
	var req struct {
		StageID     int64  `json:"stage_id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	it, err := a.store.CreateItem(r.Context(), bt, req.StageID, req.Title, req.Description)
	if err != nil {
		a.storeError(w, "create item", err)
		return
	}
	writeJSON(w, 201, it)
	a.bus.Publish(Event{Type: "item.created", Entity: "item", Board: bt, ID: it.ID, Payload: it})
}

func (a *api) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if err := a.store.UpdateItem(r.Context(), id, req.Title, req.Description); err != nil {
		a.storeError(w, "update item", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	if it, e := a.store.GetItem(r.Context(), id); e == nil {
		a.bus.Publish(Event{Type: "item.updated", Entity: "item", Board: it.BoardType, ID: id})
	}
}

func (a *api) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	it, err := a.store.GetItem(r.Context(), id)
	if err != nil {
		a.storeError(w, "delete item", err)
		return
	}
	if err := a.store.DeleteItem(r.Context(), id); err != nil {
		a.storeError(w, "delete item", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	a.bus.Publish(Event{Type: "item.deleted", Entity: "item", Board: it.BoardType, ID: id})
}

func (a *api) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		TargetStageID int64 `json:"target_stage_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	it, err := a.engine.Move(r.Context(), id, req.TargetStageID)
	if err != nil {
		a.storeError(w, "move item", err)
		return
	}
	writeJSON(w, 200, it)
	a.bus.Publish(Event{Type: "item.moved", Entity: "item", Board: it.BoardType, ID: it.ID,
		Payload: map[string]any{"stage_id": it.StageID, "pos": it.Pos}})
}
