package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type api struct {
	store   *Store
	engine  *Engine
	effects *Dispatcher
	log     *slog.Logger
	bus     *EventBus
}

func newAPI(store *Store, engine *Engine, effects *Dispatcher, bus *EventBus, log *slog.Logger) *api {
	return &api{store: store, engine: engine, effects: effects, bus: bus, log: log}
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("GET /api/boards/{type}", a.handleBoard)
	mux.HandleFunc("GET /api/boards/{type}/changes", a.handleBoardChanges)

	mux.HandleFunc("GET /api/boards/{type}/stages", a.handleStagesByBoard)
	mux.HandleFunc("POST /api/boards/{type}/stages", a.handleCreateStage)
	mux.HandleFunc("PUT /api/boards/{type}/stages/reorder", a.handleReorderStages)
	mux.HandleFunc("PATCH /api/stages/{id}", a.handleUpdateStage)
	mux.HandleFunc("DELETE /api/stages/{id}", a.handleDeleteStage)

	mux.HandleFunc("GET /api/stages/{id}/items", a.handleItemsByStage)
	mux.HandleFunc("POST /api/boards/{type}/items", a.handleCreateItem)
	mux.HandleFunc("PATCH /api/items/{id}", a.handleUpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", a.handleDeleteItem)
	mux.HandleFunc("POST /api/items/{id}/move", a.handleMoveItem)

	mux.HandleFunc("GET /api/items/{id}/timelogs", a.handleTimeLogsByItem)
	mux.HandleFunc("POST /api/items/{id}/timer/start", a.handleStartTimer)
	mux.HandleFunc("POST /api/items/{id}/timer/stop", a.handleStopTimer)
}

func parseID(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

func boardTypeOf(r *http.Request) (BoardType, bool) {
	bt := BoardType(r.PathValue("type"))
	return bt, bt.Valid()
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// storeError maps the store's error taxonomy onto HTTP statuses. Anything
// outside the taxonomy is logged and surfaced as a 500.
func (a *api) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, 400, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, 404, "not found")
	case errors.Is(err, ErrConstraint):
		writeError(w, 409, err.Error())
	default:
		a.log.Error(op, "err", err)
		writeError(w, 500, "internal error")
	}
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
