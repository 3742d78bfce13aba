package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "thebase.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrString(s string) *string     { return &s }

func TestRebindPostgres(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	got := s.rebind(`SELECT * FROM logs WHERE project = ? AND status = ? LIMIT ?`)
	want := `SELECT * FROM logs WHERE project = $1 AND status = $2 LIMIT $3`
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	sq := &Store{driver: DriverSQLite}
	if got := sq.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestInsertLogDefaultsAndRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	l := &LogEntry{Project: "theBase", Title: "Ship", Timestamp: &ts, Tags: []string{"a", "b"}, Source: ptrString("clawdbot")}
	if err := s.InsertLog(ctx, l); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if l.ID == "" || l.Status != LogStatusDone {
		t.Fatalf("expected id and default status, got %+v", l)
	}

	got, err := s.GetLog(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Ship" || got.Project != "theBase" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.Timestamp == nil || !got.Timestamp.Equal(ts) {
		t.Fatalf("timestamp not preserved: %v", got.Timestamp)
	}
	if got.FinishedAt != nil {
		t.Fatalf("expected nil finished_at, got %v", got.FinishedAt)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "b" {
		t.Fatalf("tags not preserved: %v", got.Tags)
	}
	if got.Links != nil {
		t.Fatalf("absent links should stay nil, got %v", got.Links)
	}

	if err := s.InsertLog(ctx, &LogEntry{Project: "p"}); err == nil {
		t.Fatal("expected error for missing title")
	}
	if _, err := s.GetLog(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func seedLogs(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	day := func(d int) *time.Time { return ptrTime(time.Date(2025, 3, d, 12, 0, 0, 0, time.UTC)) }
	rows := []LogEntry{
		{Project: "alpha", Title: "one", Status: "done", FinishedAt: day(1), Tags: []string{"infra"}},
		{Project: "alpha", Title: "two", Status: "doing", FinishedAt: day(3), Tags: []string{"ui", "infra"}},
		{Project: "beta", Title: "three", Status: "done", FinishedAt: day(2)},
		{Project: "beta", Title: "four", Status: "done", Timestamp: day(5)},
	}
	for i := range rows {
		if err := s.InsertLog(ctx, &rows[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestQueryLogsOrderingAndCount(t *testing.T) {
	s := newTestStore(t)
	seedLogs(t, s)

	rows, total, err := s.QueryLogs(context.Background(), LogFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 4 {
		t.Fatalf("expected total 4, got %d", total)
	}
	want := []string{"four", "two", "three", "one"}
	for i, w := range want {
		if rows[i].Title != w {
			t.Fatalf("row %d: got %s, want %s (unfinished first, then finished desc)", i, rows[i].Title, w)
		}
	}
}

func TestQueryLogsIngestedRowLeadsFirstPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	old := now.Add(-48 * time.Hour)
	if err := s.InsertLog(ctx, &LogEntry{Project: "theBase", Title: "old finished", FinishedAt: &old}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertLog(ctx, &LogEntry{Project: "theBase", Title: "just ingested", Timestamp: &now}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, total, err := s.QueryLogs(ctx, LogFilter{Limit: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 || len(rows) != 1 || rows[0].Title != "just ingested" {
		t.Fatalf("expected the ingested row first, got total=%d rows=%+v", total, rows)
	}
}

func TestQueryLogsFilters(t *testing.T) {
	s := newTestStore(t)
	seedLogs(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter LogFilter
		want   int
	}{
		{"project", LogFilter{Project: "alpha"}, 2},
		{"status", LogFilter{Status: "done"}, 3},
		{"tag", LogFilter{Tag: "infra"}, 2},
		{"tag and project", LogFilter{Tag: "ui", Project: "alpha"}, 1},
		{"finished from", LogFilter{FinishedFrom: ptrTime(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))}, 2},
		{"finished range", LogFilter{
			FinishedFrom: ptrTime(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)),
			FinishedTo:   ptrTime(time.Date(2025, 3, 2, 23, 59, 59, 0, time.UTC)),
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, total, err := s.QueryLogs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if total != tt.want || len(rows) != tt.want {
				t.Fatalf("expected %d rows, got total=%d len=%d", tt.want, total, len(rows))
			}
		})
	}
}

func TestQueryLogsPaging(t *testing.T) {
	s := newTestStore(t)
	seedLogs(t, s)

	rows, total, err := s.QueryLogs(context.Background(), LogFilter{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 4 {
		t.Fatalf("count should ignore paging, got %d", total)
	}
	if len(rows) != 2 || rows[0].Title != "three" || rows[1].Title != "one" {
		t.Fatalf("unexpected second page: %+v", rows)
	}
}

func TestRecentLogsAndProjects(t *testing.T) {
	s := newTestStore(t)
	seedLogs(t, s)
	ctx := context.Background()

	rows, err := s.RecentLogs(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if rows[0].Title != "four" {
		t.Fatalf("expected newest effective time first, got %s", rows[0].Title)
	}
	projects, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if len(projects) != 2 || projects[0] != "alpha" || projects[1] != "beta" {
		t.Fatalf("unexpected projects: %v", projects)
	}
}

func TestSetStatusUpdatesLatestRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.LatestStatus(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	updated, err := s.SetStatus(ctx, StateWorking, ptrString("building"), now)
	if err != nil || updated {
		t.Fatalf("first set: updated=%v err=%v", updated, err)
	}
	updated, err = s.SetStatus(ctx, StateIdle, nil, now.Add(time.Minute))
	if err != nil || !updated {
		t.Fatalf("second set: updated=%v err=%v", updated, err)
	}
	n, err := s.CountStatusRows(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 status row, got %d (%v)", n, err)
	}
	st, err := s.LatestStatus(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if st.State != StateIdle || st.Note != nil {
		t.Fatalf("unexpected status: %+v", st)
	}
	if !st.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("updated_at not stamped: %v", st.UpdatedAt)
	}
}

func TestSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertCronSnapshot(ctx, &CronSnapshot{Payload: json.RawMessage(`not json`)}); err == nil {
		t.Fatal("expected invalid payload error")
	}
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		snap := &CronSnapshot{CreatedAt: base.Add(time.Duration(i) * time.Hour), Payload: json.RawMessage(`{"jobs":[]}`), Source: "clawdbot"}
		if err := s.InsertCronSnapshot(ctx, snap); err != nil {
			t.Fatalf("insert cron: %v", err)
		}
	}
	latest, err := s.LatestCronSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest cron: %v", err)
	}
	if !latest.CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected newest snapshot, got %v", latest.CreatedAt)
	}

	if _, err := s.LatestMemorySnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.InsertMemorySnapshot(ctx, &MemorySnapshot{Content: "remember", Source: "clawdbot"}); err != nil {
		t.Fatalf("insert memory: %v", err)
	}
	mem, err := s.LatestMemorySnapshot(ctx)
	if err != nil || mem.Content != "remember" {
		t.Fatalf("latest memory: %+v %v", mem, err)
	}
}

func TestDocumentsAndFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &DocumentRow{Title: "Plan", Project: "theBase", Content: "<p>v1</p>"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create doc: %v", err)
	}
	doc.Content = "<p>v2</p>"
	if err := s.UpdateDocument(ctx, doc); err != nil {
		t.Fatalf("update doc: %v", err)
	}
	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil || got.Content != "<p>v2</p>" || got.Visibility != "private" {
		t.Fatalf("unexpected doc: %+v %v", got, err)
	}
	if err := s.UpdateDocument(ctx, &DocumentRow{ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	folder := &FolderRow{Name: "notes"}
	if err := s.CreateFolder(ctx, folder); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	f := &FileRow{Title: "readme", Type: "md", FolderID: &folder.ID}
	if err := s.CreateFile(ctx, f); err != nil {
		t.Fatalf("create file: %v", err)
	}
	files, err := s.ListFiles(ctx, 0)
	if err != nil || len(files) != 1 || files[0].FolderID == nil || *files[0].FolderID != folder.ID {
		t.Fatalf("unexpected files: %+v %v", files, err)
	}
	if err := s.DeleteFile(ctx, f.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteFile(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestTodosDueRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, title := range []string{"yesterday", "today", "tomorrow"} {
		due := day.Add(time.Duration(i-1)*24*time.Hour + 9*time.Hour)
		if err := s.CreateTodo(ctx, &TodoRow{Title: title, DueAt: &due}); err != nil {
			t.Fatalf("create todo: %v", err)
		}
	}
	todos, err := s.ListTodos(ctx, TodoFilter{DueFrom: &day, DueTo: ptrTime(day.Add(24 * time.Hour))})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 1 || todos[0].Title != "today" || todos[0].Status != "todo" {
		t.Fatalf("unexpected todos: %+v", todos)
	}
	if err := s.SetTodoStatus(ctx, todos[0].ID, "done"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := s.GetTodo(ctx, todos[0].ID)
	if got.Status != "done" {
		t.Fatalf("status not updated: %s", got.Status)
	}
}

func TestUpsertInstruction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := &InstructionRow{Project: "theBase", Content: "v1"}
	if err := s.UpsertInstruction(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}
	firstID := in.ID
	in2 := &InstructionRow{Project: "theBase", Content: "v2"}
	if err := s.UpsertInstruction(ctx, in2); err != nil {
		t.Fatalf("update: %v", err)
	}
	if in2.ID != firstID {
		t.Fatalf("expected same row, got %s vs %s", in2.ID, firstID)
	}
	if err := s.UpsertInstruction(ctx, &InstructionRow{Project: "theBase", Category: "style", Content: "c"}); err != nil {
		t.Fatalf("category insert: %v", err)
	}
	all, err := s.ListInstructions(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 instructions, got %d (%v)", len(all), err)
	}
	got, err := s.GetInstruction(ctx, "theBase", "")
	if err != nil || got.Content != "v2" {
		t.Fatalf("unexpected instruction: %+v %v", got, err)
	}
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, &User{Email: "Me@Example.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, &User{Email: "me@example.com", PasswordHash: "h"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	u, err := s.UserByEmail(ctx, "ME@example.com")
	if err != nil || u.Email != "me@example.com" {
		t.Fatalf("lookup: %+v %v", u, err)
	}
}
