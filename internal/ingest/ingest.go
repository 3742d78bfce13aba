// Package ingest serves the shared-secret endpoints the bot pushes data to.
package ingest

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TheBase/TheBase/internal/bus"
	"github.com/TheBase/TheBase/internal/store"
)

// SecretHeader carries the shared secret.
const SecretHeader = "X-TheBase-Secret"

// DefaultSource tags rows pushed without an explicit source.
const DefaultSource = "clawdbot"

// LegacyPrefix is where the endpoints lived on the serverless deployment.
const LegacyPrefix = "/.netlify/functions"

// Store is the write surface of the endpoints.
type Store interface {
	InsertLog(ctx context.Context, l *store.LogEntry) error
	InsertCronSnapshot(ctx context.Context, s *store.CronSnapshot) error
	InsertMemorySnapshot(ctx context.Context, s *store.MemorySnapshot) error
	SetStatus(ctx context.Context, state string, note *string, now time.Time) (bool, error)
}

// Publisher receives an event for every accepted row.
type Publisher interface {
	Publish(ev *bus.Event)
}

// Config holds the server-side settings of the endpoints.
type Config struct {
	Secret        string
	DefaultSource string
	MaxBodyBytes  int64
}

// Handler serves the ingestion endpoints.
type Handler struct {
	cfg   Config
	store Store
	pub   Publisher
	now   func() time.Time
}

// NewHandler creates the endpoints. st may be nil when no store is
// configured; requests then fail with 500 after authentication.
func NewHandler(cfg Config, st Store, pub Publisher) *Handler {
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = DefaultSource
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{cfg: cfg, store: st, pub: pub, now: time.Now}
}

// SetClock replaces the clock used for default timestamps.
func (h *Handler) SetClock(now func() time.Time) { h.now = now }

// Register mounts the endpoints on mux, at the root and under LegacyPrefix.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := map[string]func(http.ResponseWriter, *http.Request, []byte){
		"/ingest-log":    h.ingestLog,
		"/ingest-cron":   h.ingestCron,
		"/ingest-memory": h.ingestMemory,
		"/set-status":    h.setStatus,
	}
	for path, fn := range routes {
		handler := h.guard(fn)
		mux.HandleFunc(path, handler)
		mux.HandleFunc(LegacyPrefix+path, handler)
	}
}

// guard applies the shared contract: method, secret, store, body.
func (h *Handler) guard(next func(http.ResponseWriter, *http.Request, []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.cfg.Secret == "" {
			http.Error(w, "Missing THEBASE_INGEST_SECRET", http.StatusInternalServerError)
			return
		}
		got := r.Header.Get(SecretHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.cfg.Secret)) != 1 {
			slog.Warn("Ingest rejected: bad secret", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if h.store == nil {
			http.Error(w, "Missing store configuration", http.StatusInternalServerError)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		body = bytes.TrimSpace(body)
		if len(body) == 0 {
			body = []byte("{}")
		}
		if !json.Valid(body) {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		next(w, r, body)
	}
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"ok":true}`))
}

func (h *Handler) publish(kind string, payload any) {
	if h.pub == nil {
		return
	}
	h.pub.Publish(&bus.Event{Kind: kind, Payload: payload, Timestamp: h.now()})
}

type logPayload struct {
	Timestamp  *string  `json:"timestamp"`
	StartedAt  *string  `json:"started_at"`
	FinishedAt *string  `json:"finished_at"`
	Project    string   `json:"project"`
	Title      string   `json:"title"`
	Details    *string  `json:"details"`
	Status     *string  `json:"status"`
	Tags       []string `json:"tags"`
	Links      []string `json:"links"`
	Source     *string  `json:"source"`
}

func parseOptionalTime(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := store.ParseTime(*v)
	if err != nil {
		return nil, fmt.Errorf("%s must be an ISO 8601 timestamp", field)
	}
	return &t, nil
}

func (h *Handler) ingestLog(w http.ResponseWriter, r *http.Request, body []byte) {
	var p logPayload
	if err := json.Unmarshal(body, &p); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if p.Project == "" || p.Title == "" {
		http.Error(w, "project and title are required", http.StatusBadRequest)
		return
	}

	entry := &store.LogEntry{
		Project: p.Project,
		Title:   p.Title,
		Details: p.Details,
		Status:  store.LogStatusDone,
		Tags:    p.Tags,
		Links:   p.Links,
	}
	var err error
	if entry.Timestamp, err = parseOptionalTime("timestamp", p.Timestamp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if entry.Timestamp == nil {
		now := h.now()
		entry.Timestamp = &now
	}
	if entry.StartedAt, err = parseOptionalTime("started_at", p.StartedAt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if entry.FinishedAt, err = parseOptionalTime("finished_at", p.FinishedAt); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Status != nil {
		entry.Status = *p.Status
	}
	source := h.cfg.DefaultSource
	if p.Source != nil {
		source = *p.Source
	}
	entry.Source = &source

	if err := h.store.InsertLog(r.Context(), entry); err != nil {
		slog.Error("Ingest log insert failed", "project", entry.Project, "error", err)
		http.Error(w, "Insert failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Ingested log", "id", entry.ID, "project", entry.Project, "title", entry.Title, "status", entry.Status)
	h.publish(bus.KindLogIngested, entry)
	writeOK(w)
}

func (h *Handler) ingestCron(w http.ResponseWriter, r *http.Request, body []byte) {
	if body[0] != '{' {
		http.Error(w, "payload must be a JSON object", http.StatusBadRequest)
		return
	}
	snap := &store.CronSnapshot{Payload: json.RawMessage(body), Source: h.cfg.DefaultSource}
	if err := h.store.InsertCronSnapshot(r.Context(), snap); err != nil {
		slog.Error("Ingest cron insert failed", "error", err)
		http.Error(w, "Insert failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Ingested cron snapshot", "id", snap.ID, "bytes", len(body))
	h.publish(bus.KindCronIngested, map[string]any{"id": snap.ID, "created_at": snap.CreatedAt})
	writeOK(w)
}

func (h *Handler) ingestMemory(w http.ResponseWriter, r *http.Request, body []byte) {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if p.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	snap := &store.MemorySnapshot{Content: p.Content, Source: h.cfg.DefaultSource}
	if err := h.store.InsertMemorySnapshot(r.Context(), snap); err != nil {
		slog.Error("Ingest memory insert failed", "error", err)
		http.Error(w, "Insert failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("Ingested memory snapshot", "id", snap.ID, "chars", len(p.Content))
	h.publish(bus.KindMemoryIngested, map[string]any{"id": snap.ID, "created_at": snap.CreatedAt})
	writeOK(w)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, body []byte) {
	var p struct {
		State string  `json:"state"`
		Note  *string `json:"note"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		// A non-string state is a validation failure, not a syntax one.
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			http.Error(w, "state must be 'working' or 'idle'", http.StatusBadRequest)
			return
		}
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if p.State != store.StateWorking && p.State != store.StateIdle {
		http.Error(w, "state must be 'working' or 'idle'", http.StatusBadRequest)
		return
	}

	now := h.now()
	updated, err := h.store.SetStatus(r.Context(), p.State, p.Note, now)
	if err != nil {
		slog.Error("Set status failed", "state", p.State, "error", err)
		http.Error(w, statusFailure(err), http.StatusInternalServerError)
		return
	}
	slog.Info("Status set", "state", p.State, "updated", updated)
	h.publish(bus.KindStatusSet, map[string]any{"state": p.State, "note": p.Note, "updated_at": now})
	writeOK(w)
}

// statusFailure names the failed step the way the response body reports it.
func statusFailure(err error) string {
	var opErr *store.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "select":
			return "Select failed: " + opErr.Err.Error()
		case "update":
			return "Update failed: " + opErr.Err.Error()
		}
		return "Insert failed: " + opErr.Err.Error()
	}
	return "Update failed: " + err.Error()
}
