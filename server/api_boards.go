package main

import "net/http"

func (a *api) handleBoard(w http.ResponseWriter, r *http.Request) {
	bt, ok := boardTypeOf(r)
	if !ok {
		writeError(w, 400, "unknown board type")
		return
	}
	cols, err := a.engine.Board(r.Context(), bt)
	if err != nil {
		a.storeError(w, "board projection", err)
		return
	}
	writeJSON(w, 200, map[string]any{"board_type": bt, "columns": cols, "seq": a.bus.Seq(bt)})
}

// handleBoardChanges serves the polling endpoint: clients compare the
// sequence against the one they last saw and refetch the board when it
// advanced. Cheap enough for a 15-30s poll interval.
func (a *api) handleBoardChanges(w http.ResponseWriter, r *http.Request) {
	bt, ok := boardTypeOf(r)
	if !ok {
		writeError(w, 400, "unknown board type")
		return
	}
	writeJSON(w, 200, map[string]any{"board_type": bt, "seq": a.bus.Seq(bt)})
}
