package dashboard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/TheBase/TheBase/internal/autosave"
	"github.com/TheBase/TheBase/internal/store"
)

// Defaults for rows created from the dashboard.
const (
	DefaultTitle   = "Untitled"
	DefaultProject = "theBase"
	DefaultFileTag = "inbox"
	ManualSource   = "manual"
)

// documentPatch carries an editor update. Omitted fields keep their value.
type documentPatch struct {
	Title      *string   `json:"title"`
	Project    *string   `json:"project"`
	Author     *string   `json:"author"`
	Tags       *[]string `json:"tags"`
	Assigned   *[]string `json:"assigned"`
	Visibility *string   `json:"visibility"`
	Content    *string   `json:"content"`
}

func (p documentPatch) apply(d *store.DocumentRow) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Project != nil {
		d.Project = *p.Project
	}
	if p.Author != nil {
		d.Author = *p.Author
	}
	if p.Tags != nil {
		d.Tags = *p.Tags
	}
	if p.Assigned != nil {
		d.Assigned = *p.Assigned
	}
	if p.Visibility != nil {
		d.Visibility = *p.Visibility
	}
	if p.Content != nil {
		d.Content = *p.Content
	}
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.opts.Store.ListDocuments(r.Context(), 0)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": nonNil(docs)})
	case http.MethodPost:
		var p documentPatch
		if !decodeBody(w, r, &p) {
			return
		}
		d := store.DocumentRow{Title: DefaultTitle, Project: DefaultProject, Author: SessionFrom(r.Context()).Email}
		p.apply(&d)
		if err := s.opts.Store.CreateDocument(r.Context(), &d); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		d, err := s.opts.Store.GetDocument(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case http.MethodPut:
		var p documentPatch
		if !decodeBody(w, r, &p) {
			return
		}
		base, ok := s.opts.Documents.Latest(id)
		if !ok {
			d, err := s.opts.Store.GetDocument(r.Context(), id)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			base = *d
		}
		s.submit(w, s.opts.Documents.Update(id, base, p.apply))
	default:
		methodNotAllowed(w)
	}
}

// submit answers a debounced edit.
func (s *Server) submit(w http.ResponseWriter, err error) {
	if errors.Is(err, autosave.ErrClosed) {
		writeError(w, http.StatusServiceUnavailable, "autosave is shutting down")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "pending": true})
}

// filePatch carries a file editor update. Omitted fields keep their value.
type filePatch struct {
	Title    *string   `json:"title"`
	Project  *string   `json:"project"`
	Type     *string   `json:"type"`
	Tags     *[]string `json:"tags"`
	Content  *string   `json:"content"`
	Author   *string   `json:"author"`
	FolderID *string   `json:"folder_id"`
}

func (p filePatch) apply(f *store.FileRow) {
	if p.Title != nil {
		f.Title = *p.Title
	}
	if p.Project != nil {
		f.Project = *p.Project
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Tags != nil {
		f.Tags = *p.Tags
	}
	if p.Content != nil {
		f.Content = *p.Content
	}
	if p.Author != nil {
		f.Author = *p.Author
	}
	if p.FolderID != nil {
		if *p.FolderID == "" {
			f.FolderID = nil
		} else {
			f.FolderID = p.FolderID
		}
	}
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		files, err := s.opts.Store.ListFiles(r.Context(), 0)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		q := r.URL.Query()
		f := FileFilter{Project: q.Get("project"), Type: q.Get("type"), Folder: q.Get("folder"), Query: q.Get("q")}
		writeJSON(w, http.StatusOK, map[string]any{
			"files":    FilterFiles(files, f),
			"total":    len(files),
			"projects": distinct(files, func(f store.FileRow) string { return f.Project }),
			"types":    distinct(files, func(f store.FileRow) string { return f.Type }),
		})
	case http.MethodPost:
		var p filePatch
		if !decodeBody(w, r, &p) {
			return
		}
		f := store.FileRow{
			Title:   DefaultTitle,
			Project: DefaultProject,
			Type:    "note",
			Tags:    []string{DefaultFileTag},
			Author:  SessionFrom(r.Context()).Email,
			Source:  ManualSource,
		}
		p.apply(&f)
		if err := s.opts.Store.CreateFile(r.Context(), &f); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		f, err := s.opts.Store.GetFile(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	case http.MethodPut:
		var p filePatch
		if !decodeBody(w, r, &p) {
			return
		}
		base, ok := s.opts.Files.Latest(id)
		if !ok {
			f, err := s.opts.Store.GetFile(r.Context(), id)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			base = *f
		}
		s.submit(w, s.opts.Files.Update(id, base, p.apply))
	case http.MethodDelete:
		if err := s.opts.Store.DeleteFile(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		folders, err := s.opts.Store.ListFolders(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"folders": nonNil(folders)})
	case http.MethodPost:
		var f store.FolderRow
		if !decodeBody(w, r, &f) {
			return
		}
		if strings.TrimSpace(f.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if f.Project == "" {
			f.Project = DefaultProject
		}
		if err := s.opts.Store.CreateFolder(r.Context(), &f); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	default:
		methodNotAllowed(w)
	}
}

type todoRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Assignee    string   `json:"assignee"`
	DueAt       string   `json:"due_at"`
	Project     string   `json:"project"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := store.TodoFilter{Status: r.URL.Query().Get("status")}
		if unconstrained(filter.Status) {
			filter.Status = ""
		}
		todos, err := s.opts.Store.ListTodos(r.Context(), filter)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"todos": nonNil(todos)})
	case http.MethodPost:
		var req todoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "title is required")
			return
		}
		t := store.TodoRow{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Assignee:    req.Assignee,
			Project:     req.Project,
			Tags:        req.Tags,
		}
		if req.DueAt != "" {
			due, err := parseDue(req.DueAt, s.opts.Location)
			if err != nil {
				writeError(w, http.StatusBadRequest, "due_at must be a date or an ISO 8601 timestamp")
				return
			}
			t.DueAt = &due
		}
		if err := s.opts.Store.CreateTodo(r.Context(), &t); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w)
	}
}

// parseDue accepts a calendar date in loc or a full timestamp.
func parseDue(v string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
		return d, nil
	}
	return store.ParseTime(v)
}

func (s *Server) handleTodoToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	id := r.PathValue("id")
	t, err := s.opts.Store.GetTodo(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	next := store.LogStatusDone
	if t.Status == store.LogStatusDone {
		next = store.LogStatusTodo
	}
	if err := s.opts.Store.SetTodoStatus(r.Context(), id, next); err != nil {
		writeStoreError(w, err)
		return
	}
	t.Status = next
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.opts.Store.ListInstructions(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"instructions": nonNil(list)})
	case http.MethodPut:
		var in store.InstructionRow
		if !decodeBody(w, r, &in) {
			return
		}
		if strings.TrimSpace(in.Project) == "" {
			writeError(w, http.StatusBadRequest, "project is required")
			return
		}
		if err := s.opts.Store.UpsertInstruction(r.Context(), &in); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, in)
	default:
		methodNotAllowed(w)
	}
}
