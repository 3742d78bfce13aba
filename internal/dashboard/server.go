// Package dashboard serves the JSON API behind the dashboard pages.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TheBase/TheBase/internal/autosave"
	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/session"
	"github.com/TheBase/TheBase/internal/status"
	"github.com/TheBase/TheBase/internal/store"
)

// MissingStoreMessage is returned while no store is configured.
const MissingStoreMessage = "Missing store configuration: set THEBASE_STORE_DSN (or DATABASE_URL) or THEBASE_STORE_SQLITE_PATH"

// Options wires the server's collaborators. Store may be nil, in which case
// every data route answers 503.
type Options struct {
	Store         *store.Store
	Sessions      *session.Manager
	Indicator     *status.Indicator
	Documents     *autosave.Saver[store.DocumentRow]
	Files         *autosave.Saver[store.FileRow]
	Location      *time.Location
	AllowOrigin   string
	AllowSignUp   bool
	CalendarLimit int
	StaleAfter    time.Duration
}

// Server is the dashboard API.
type Server struct {
	opts   Options
	engine *logquery.Engine
	now    func() time.Time
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CalendarLimit <= 0 {
		opts.CalendarLimit = 500
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = status.StaleAfter
	}
	s := &Server{opts: opts, now: time.Now}
	if opts.Store != nil {
		s.engine = logquery.NewEngine(opts.Store)
		if s.opts.Documents == nil {
			s.opts.Documents = NewDocumentSaver(opts.Store, autosave.DefaultQuiet)
		}
		if s.opts.Files == nil {
			s.opts.Files = NewFileSaver(opts.Store, autosave.DefaultQuiet)
		}
	}
	return s
}

// NewDocumentSaver debounces document edits into store updates.
func NewDocumentSaver(st *store.Store, quiet time.Duration) *autosave.Saver[store.DocumentRow] {
	return autosave.New(quiet, func(ctx context.Context, id string, d store.DocumentRow) error {
		d.ID = id
		return st.UpdateDocument(ctx, &d)
	})
}

// NewFileSaver debounces file edits into store updates.
func NewFileSaver(st *store.Store, quiet time.Duration) *autosave.Saver[store.FileRow] {
	return autosave.New(quiet, func(ctx context.Context, id string, f store.FileRow) error {
		f.ID = id
		return st.UpdateFile(ctx, &f)
	})
}

// SetClock replaces the clock used for "today".
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("/api/v1/auth/signup", s.withStore(s.handleSignUp))
	mux.HandleFunc("/api/v1/auth/signin", s.withStore(s.handleSignIn))
	mux.HandleFunc("/api/v1/auth/signout", s.withStore(s.authed(s.handleSignOut)))
	mux.HandleFunc("/api/v1/auth/session", s.withStore(s.authed(s.handleSession)))

	// Activity
	mux.HandleFunc("/api/v1/status", s.withStore(s.authed(s.handleStatus)))
	mux.HandleFunc("/api/v1/logs", s.withStore(s.authed(s.handleLogs)))
	mux.HandleFunc("/api/v1/calendar", s.withStore(s.authed(s.handleCalendar)))
	mux.HandleFunc("/api/v1/overview", s.withStore(s.authed(s.handleOverview)))
	mux.HandleFunc("/api/v1/cron/latest", s.withStore(s.authed(s.handleCronLatest)))
	mux.HandleFunc("/api/v1/memory/latest", s.withStore(s.authed(s.handleMemoryLatest)))

	// Content
	mux.HandleFunc("/api/v1/documents", s.withStore(s.authed(s.handleDocuments)))
	mux.HandleFunc("/api/v1/documents/{id}", s.withStore(s.authed(s.handleDocument)))
	mux.HandleFunc("/api/v1/files", s.withStore(s.authed(s.handleFiles)))
	mux.HandleFunc("/api/v1/files/{id}", s.withStore(s.authed(s.handleFile)))
	mux.HandleFunc("/api/v1/folders", s.withStore(s.authed(s.handleFolders)))
	mux.HandleFunc("/api/v1/todos", s.withStore(s.authed(s.handleTodos)))
	mux.HandleFunc("/api/v1/todos/{id}/toggle", s.withStore(s.authed(s.handleTodoToggle)))
	mux.HandleFunc("/api/v1/instructions", s.withStore(s.authed(s.handleInstructions)))
}

// Handler returns the API wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return s.CORS(mux)
}

// Shutdown stops accepting editor changes and writes the pending ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.opts.Documents != nil {
		s.opts.Documents.Close()
		errs = append(errs, s.opts.Documents.Flush(ctx))
	}
	if s.opts.Files != nil {
		s.opts.Files.Close()
		errs = append(errs, s.opts.Files.Flush(ctx))
	}
	return errors.Join(errs...)
}

// CORS adds the configured cross-origin headers and answers preflights.
func (s *Server) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AllowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// SessionFrom returns the session attached by the auth middleware.
func SessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(ctxKey{}).(*session.Session)
	return sess
}

func (s *Server) withStore(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Store == nil || s.opts.Sessions == nil {
			writeError(w, http.StatusServiceUnavailable, MissingStoreMessage)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	return strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.opts.Sessions.Lookup(bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeStoreError maps store failures to a status code.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Warn("Dashboard store error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}
