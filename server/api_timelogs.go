package main

import "net/http"

func (a *api) handleTimeLogsByItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if _, err := a.store.GetItem(r.Context(), id); err != nil {
		a.storeError(w, "time logs by item", err)
		return
	}
	logs, err := a.store.TimeLogsByItem(r.Context(), id)
	if err != nil {
		a.storeError(w, "time logs by item", err)
		return
	}
	writeJSON(w, 200, logs)
}

func (a *api) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	tl, err := a.store.StartTimer(r.Context(), id)
	if err != nil {
		a.storeError(w, "start timer", err)
		return
	}
	writeJSON(w, 201, tl)
	if it, e := a.store.GetItem(r.Context(), id); e == nil {
		a.bus.Publish(Event{Type: "timer.started", Entity: "timelog", Board: it.BoardType, ID: tl.ID})
	}
}

func (a *api) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	tl, err := a.store.StopTimer(r.Context(), id)
	if err != nil {
		a.storeError(w, "stop timer", err)
		return
	}
	writeJSON(w, 200, tl)
	if it, e := a.store.GetItem(r.Context(), id); e == nil {
		a.bus.Publish(Event{Type: "timer.stopped", Entity: "timelog", Board: it.BoardType, ID: tl.ID})
	}
}
