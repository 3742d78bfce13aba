package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/TheBase/TheBase/internal/session"
	"github.com/TheBase/TheBase/internal/store"
)

type testEnv struct {
	store   *store.Store
	srv     *Server
	handler http.Handler
	token   string
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "dashboard.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sessions := session.NewManager(st, time.Hour)
	sessions.SetCost(bcrypt.MinCost)
	sess, err := sessions.SignUp(context.Background(), "owner@thebase.dev", "hunter22")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	opts.Store = st
	opts.Sessions = sessions
	opts.Location = time.UTC
	if opts.Documents == nil {
		opts.Documents = NewDocumentSaver(st, 20*time.Millisecond)
	}
	if opts.Files == nil {
		opts.Files = NewFileSaver(st, 20*time.Millisecond)
	}
	srv := NewServer(opts)
	srv.SetClock(func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC) })
	return &testEnv{store: st, srv: srv, handler: srv.Handler(), token: sess.Token}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type fileListing struct {
	Files    []store.FileRow `json:"files"`
	Total    int             `json:"total"`
	Projects []string        `json:"projects"`
}

type todoListing struct {
	Todos []store.TodoRow `json:"todos"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func at(day, hour int) *time.Time {
	t := time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
	return &t
}

func (e *testEnv) seedLog(t *testing.T, project, title string, finished *time.Time, tags ...string) {
	t.Helper()
	l := &store.LogEntry{Project: project, Title: title, FinishedAt: finished, Tags: tags}
	if err := e.store.InsertLog(context.Background(), l); err != nil {
		t.Fatalf("insert log: %v", err)
	}
}

func TestMissingStoreAnswers503(t *testing.T) {
	srv := NewServer(Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing store configuration") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.token = ""
	for _, path := range []string{"/api/v1/logs", "/api/v1/status", "/api/v1/documents", "/api/v1/auth/session"} {
		if rec := env.do(t, http.MethodGet, path, ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}
	env.token = "not-a-token"
	if rec := env.do(t, http.MethodGet, "/api/v1/logs", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestSignUpDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, Options{})
	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", `{"email":"new@thebase.dev","password":"secret123"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, Options{AllowSignUp: true})
	env.token = ""

	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", `{"email":"New@thebase.dev","password":"secret123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", `{"email":"new@thebase.dev","password":"secret123"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/auth/signin", `{"email":"new@thebase.dev","password":"wrong-one"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/signin", `{"email":"new@thebase.dev","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d", rec.Code)
	}
	view := decode[sessionView](t, rec)
	if view.Token == "" || view.Email != "new@thebase.dev" {
		t.Fatalf("unexpected session %+v", view)
	}
	env.token = view.Token

	rec = env.do(t, http.MethodGet, "/api/v1/auth/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("session: expected 200, got %d", rec.Code)
	}
	if got := decode[sessionView](t, rec); got.Token != "" || got.Email != "new@thebase.dev" {
		t.Fatalf("session view should omit the token: %+v", got)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/auth/signout", ""); rec.Code != http.StatusOK {
		t.Fatalf("signout: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/auth/session", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("after signout: expected 401, got %d", rec.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedLog(t, "alpha", "deploy", at(4, 10), "ops")
	env.seedLog(t, "alpha", "review", at(5, 9))
	env.seedLog(t, "beta", "triage", at(3, 8), "ops")

	rec := env.do(t, http.MethodGet, "/api/v1/logs?project=alpha&view=day", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[logsResponse](t, rec)
	if len(resp.Rows) != 2 || resp.Rows[0].Title != "review" {
		t.Fatalf("unexpected rows %+v", resp.Rows)
	}
	if resp.Total == nil || *resp.Total != 2 {
		t.Fatalf("expected total 2, got %v", resp.Total)
	}
	if resp.HasNext || resp.HasPrev || resp.PageCount != 1 {
		t.Fatalf("unexpected paging %+v", resp)
	}
	if len(resp.Groups) != 2 || resp.Groups[0].Key != "2025-03-05" {
		t.Fatalf("unexpected groups %+v", resp.Groups)
	}

	resp = decode[logsResponse](t, env.do(t, http.MethodGet, "/api/v1/logs?tag=ops&q=TRIAGE", ""))
	if len(resp.Rows) != 1 || resp.Rows[0].Project != "beta" {
		t.Fatalf("expected the beta triage row, got %+v", resp.Rows)
	}
	if *resp.Total != 2 {
		t.Fatalf("text search must not change the server total, got %d", *resp.Total)
	}
	if resp.PageSize != 50 {
		t.Fatalf("expected default page size, got %d", resp.PageSize)
	}
}

func TestLogsInvalidDateSurfacesError(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedLog(t, "alpha", "deploy", at(4, 10))

	rec := env.do(t, http.MethodGet, "/api/v1/logs?from=03/01/2025", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	resp := decode[logsResponse](t, rec)
	if resp.Error == "" || len(resp.Rows) != 0 || resp.Total != nil {
		t.Fatalf("expected an error with no rows, got %+v", resp)
	}
}

func TestCalendarViews(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.seedLog(t, "alpha", "deploy", at(4, 10))
	env.seedLog(t, "alpha", "review", at(4, 15))
	env.seedLog(t, "beta", "triage", at(20, 8))

	resp := decode[calendarResponse](t, env.do(t, http.MethodGet, "/api/v1/calendar", ""))
	if resp.View != "month" || len(resp.Month) != 42 {
		t.Fatalf("expected a 42 cell month, got %s with %d cells", resp.View, len(resp.Month))
	}
	if resp.Selected != "2025-03-05" || resp.Prev != "2025-02-01" || resp.Next != "2025-04-01" {
		t.Fatalf("unexpected navigation %s %s %s", resp.Selected, resp.Prev, resp.Next)
	}
	counts := map[string]int{}
	for _, c := range resp.Month {
		counts[c.Key] = c.Count
	}
	if counts["2025-03-04"] != 2 || counts["2025-03-20"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	resp = decode[calendarResponse](t, env.do(t, http.MethodGet, "/api/v1/calendar?view=day&date=2025-03-04", ""))
	if resp.Day == nil || len(resp.Day.Logs) != 2 || len(resp.Details) != 2 {
		t.Fatalf("expected two logs on the day, got %+v", resp.Day)
	}
	if resp.Details[0].Title != "deploy" {
		t.Fatalf("day logs should be ascending, got %s first", resp.Details[0].Title)
	}

	resp = decode[calendarResponse](t, env.do(t, http.MethodGet, "/api/v1/calendar?view=week&date=2025-03-04", ""))
	if len(resp.Week) != 7 {
		t.Fatalf("expected 7 week cells, got %d", len(resp.Week))
	}

	if rec := env.do(t, http.MethodGet, "/api/v1/calendar?date=tomorrow", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad date, got %d", rec.Code)
	}
}

func TestOverview(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	env.seedLog(t, "alpha", "today one", at(5, 9))
	env.seedLog(t, "alpha", "today two", at(5, 11))
	env.seedLog(t, "alpha", "yesterday", at(4, 9))
	for _, todo := range []*store.TodoRow{
		{Title: "ship", DueAt: at(5, 17)},
		{Title: "shipped", DueAt: at(5, 8), Status: store.LogStatusDone},
		{Title: "later", DueAt: at(9, 8)},
	} {
		if err := env.store.CreateTodo(ctx, todo); err != nil {
			t.Fatalf("create todo: %v", err)
		}
	}
	if err := env.store.InsertCronSnapshot(ctx, &store.CronSnapshot{Payload: json.RawMessage(`{"jobs":[]}`), Source: "clawdbot"}); err != nil {
		t.Fatalf("insert cron: %v", err)
	}

	resp := decode[overviewResponse](t, env.do(t, http.MethodGet, "/api/v1/overview", ""))
	if resp.LogsToday != 2 {
		t.Errorf("expected 2 logs today, got %d", resp.LogsToday)
	}
	if len(resp.TodosToday) != 2 || resp.OpenToday != 1 {
		t.Errorf("expected 2 todos due today with 1 open, got %d/%d", len(resp.TodosToday), resp.OpenToday)
	}
	if resp.CronSnapshots != 1 {
		t.Errorf("expected 1 cron snapshot, got %d", resp.CronSnapshots)
	}
	if len(resp.Recent) != 3 || resp.Recent[0].Title != "today two" {
		t.Errorf("unexpected recent logs %+v", resp.Recent)
	}
	if resp.Status.Label != "Idle (stale)" {
		t.Errorf("expected stale idle status without rows, got %q", resp.Status.Label)
	}
}

func TestStatusReadsLatestRow(t *testing.T) {
	env := newTestEnv(t, Options{})
	note := "deploying"
	if _, err := env.store.SetStatus(context.Background(), store.StateWorking, &note, time.Date(2025, 3, 5, 11, 58, 0, 0, time.UTC)); err != nil {
		t.Fatalf("set status: %v", err)
	}
	rec := env.do(t, http.MethodGet, "/api/v1/status", "")
	if !strings.Contains(rec.Body.String(), `"label":"Working"`) || !strings.Contains(rec.Body.String(), "deploying") {
		t.Fatalf("unexpected status %s", rec.Body.String())
	}
}

func TestSnapshotsLatest(t *testing.T) {
	env := newTestEnv(t, Options{})
	if rec := env.do(t, http.MethodGet, "/api/v1/memory/latest", ""); !strings.Contains(rec.Body.String(), `"snapshot":null`) {
		t.Fatalf("expected null snapshot, got %s", rec.Body.String())
	}
	if err := env.store.InsertMemorySnapshot(context.Background(), &store.MemorySnapshot{Content: "remember", Source: "clawdbot"}); err != nil {
		t.Fatalf("insert memory: %v", err)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/memory/latest", ""); !strings.Contains(rec.Body.String(), "remember") {
		t.Fatalf("expected memory content, got %s", rec.Body.String())
	}
}

func TestDocumentEditsAreDebounced(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/v1/documents", `{"content":"v0"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	doc := decode[store.DocumentRow](t, rec)
	if doc.Title != DefaultTitle || doc.Project != DefaultProject || doc.Author != "owner@thebase.dev" {
		t.Fatalf("unexpected defaults %+v", doc)
	}

	for _, body := range []string{`{"content":"v1"}`, `{"content":"v2","title":"Plan"}`} {
		if rec := env.do(t, http.MethodPut, "/api/v1/documents/"+doc.ID, body); rec.Code != http.StatusAccepted {
			t.Fatalf("update: expected 202, got %d", rec.Code)
		}
	}
	if err := env.srv.opts.Documents.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got := decode[store.DocumentRow](t, env.do(t, http.MethodGet, "/api/v1/documents/"+doc.ID, ""))
	if got.Content != "v2" || got.Title != "Plan" {
		t.Fatalf("expected the last edit, got %+v", got)
	}
	if rec := env.do(t, http.MethodPut, "/api/v1/documents/missing", `{"content":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing document, got %d", rec.Code)
	}
}

func TestPartialEditsInOneQuietPeriodAccumulate(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.srv.opts.Documents = NewDocumentSaver(env.store, time.Hour)
	env.srv.opts.Files = NewFileSaver(env.store, time.Hour)

	doc := decode[store.DocumentRow](t, env.do(t, http.MethodPost, "/api/v1/documents", `{"title":"Orig","content":"old body"}`))
	for _, body := range []string{`{"title":"New title"}`, `{"content":"new body"}`} {
		if rec := env.do(t, http.MethodPut, "/api/v1/documents/"+doc.ID, body); rec.Code != http.StatusAccepted {
			t.Fatalf("update: expected 202, got %d", rec.Code)
		}
	}
	file := decode[store.FileRow](t, env.do(t, http.MethodPost, "/api/v1/files", `{"title":"Notes"}`))
	for _, body := range []string{`{"tags":["ops"]}`, `{"type":"brief"}`} {
		if rec := env.do(t, http.MethodPut, "/api/v1/files/"+file.ID, body); rec.Code != http.StatusAccepted {
			t.Fatalf("file update: expected 202, got %d", rec.Code)
		}
	}

	// Nothing is written before the quiet period ends.
	if got, _ := env.store.GetDocument(context.Background(), doc.ID); got.Title != "Orig" {
		t.Fatalf("expected no write yet, got %+v", got)
	}
	ctx := context.Background()
	if err := env.srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	gotDoc, err := env.store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if gotDoc.Title != "New title" || gotDoc.Content != "new body" {
		t.Fatalf("expected both edits, got title=%q content=%q", gotDoc.Title, gotDoc.Content)
	}
	gotFile, err := env.store.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if gotFile.Type != "brief" || len(gotFile.Tags) != 1 || gotFile.Tags[0] != "ops" {
		t.Fatalf("expected both file edits, got %+v", gotFile)
	}
}

func TestFilesLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPost, "/api/v1/folders", `{"name":"Specs"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder: expected 201, got %d", rec.Code)
	}
	folder := decode[store.FolderRow](t, rec)

	created := decode[store.FileRow](t, env.do(t, http.MethodPost, "/api/v1/files", `{"type":"brief","content":"rate limits"}`))
	if created.Source != ManualSource || len(created.Tags) != 1 || created.Tags[0] != DefaultFileTag {
		t.Fatalf("unexpected file defaults %+v", created)
	}
	env.do(t, http.MethodPost, "/api/v1/files", `{"title":"Other","project":"beta"}`)

	if rec := env.do(t, http.MethodPut, "/api/v1/files/"+created.ID, `{"folder_id":"`+folder.ID+`"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("update: expected 202, got %d", rec.Code)
	}
	if err := env.srv.opts.Files.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	listing := decode[fileListing](t, env.do(t, http.MethodGet, "/api/v1/files?folder="+folder.ID+"&q=RATE", ""))
	if len(listing.Files) != 1 || listing.Files[0].ID != created.ID || listing.Total != 2 {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if len(listing.Projects) != 2 {
		t.Fatalf("expected two projects, got %v", listing.Projects)
	}

	if rec := env.do(t, http.MethodDelete, "/api/v1/files/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/v1/files/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestFilterFiles(t *testing.T) {
	folder := "f1"
	files := []store.FileRow{
		{ID: "1", Project: "alpha", Type: "note", Title: "Standup", Tags: []string{"daily"}},
		{ID: "2", Project: "alpha", Type: "brief", Title: "API", FolderID: &folder},
		{ID: "3", Project: "beta", Type: "note", Title: "Retro", Author: "Sam"},
	}
	tests := []struct {
		name   string
		filter FileFilter
		want   []string
	}{
		{"no constraint", FileFilter{Project: "all", Type: "all", Folder: "all"}, []string{"1", "2", "3"}},
		{"project", FileFilter{Project: "alpha"}, []string{"1", "2"}},
		{"type", FileFilter{Type: "note"}, []string{"1", "3"}},
		{"folder", FileFilter{Folder: "f1"}, []string{"2"}},
		{"tag text", FileFilter{Query: "DAILY"}, []string{"1"}},
		{"author text", FileFilter{Query: "sam"}, []string{"3"}},
		{"nothing", FileFilter{Project: "beta", Type: "brief"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterFiles(files, tt.filter)
			ids := []string{}
			for _, f := range got {
				ids = append(ids, f.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("expected %v, got %v", tt.want, ids)
			}
		})
	}
}

func TestTodosCreateAndToggle(t *testing.T) {
	env := newTestEnv(t, Options{})

	if rec := env.do(t, http.MethodPost, "/api/v1/todos", `{"title":"  "}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without title, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/todos", `{"title":"x","due_at":"soon"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad due date, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/todos", `{"title":"write docs","due_at":"2025-03-06"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	todo := decode[store.TodoRow](t, rec)
	if todo.Status != store.LogStatusTodo || todo.Priority != "medium" {
		t.Fatalf("unexpected defaults %+v", todo)
	}

	toggled := decode[store.TodoRow](t, env.do(t, http.MethodPost, "/api/v1/todos/"+todo.ID+"/toggle", ""))
	if toggled.Status != store.LogStatusDone {
		t.Fatalf("expected done, got %s", toggled.Status)
	}
	toggled = decode[store.TodoRow](t, env.do(t, http.MethodPost, "/api/v1/todos/"+todo.ID+"/toggle", ""))
	if toggled.Status != store.LogStatusTodo {
		t.Fatalf("expected todo again, got %s", toggled.Status)
	}

	listing := decode[todoListing](t, env.do(t, http.MethodGet, "/api/v1/todos?status=done", ""))
	if len(listing.Todos) != 0 {
		t.Fatalf("expected no done todos, got %d", len(listing.Todos))
	}
}

func TestInstructionsUpsert(t *testing.T) {
	env := newTestEnv(t, Options{})
	if rec := env.do(t, http.MethodPut, "/api/v1/instructions", `{"content":"x"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without project, got %d", rec.Code)
	}
	first := decode[store.InstructionRow](t, env.do(t, http.MethodPut, "/api/v1/instructions", `{"project":"alpha","category":"style","content":"terse"}`))
	second := decode[store.InstructionRow](t, env.do(t, http.MethodPut, "/api/v1/instructions", `{"project":"alpha","category":"style","content":"terser"}`))
	if first.ID == "" || first.ID != second.ID {
		t.Fatalf("expected the same row to be updated, got %s and %s", first.ID, second.ID)
	}
	body := env.do(t, http.MethodGet, "/api/v1/instructions", "").Body.String()
	if !strings.Contains(body, "terser") || strings.Contains(body, `"terse"`) {
		t.Fatalf("unexpected instructions %s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Options{AllowOrigin: "https://base.example"})
	env.token = ""
	rec := env.do(t, http.MethodOptions, "/api/v1/logs", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://base.example" {
		t.Fatalf("unexpected origin header %q", got)
	}
}
