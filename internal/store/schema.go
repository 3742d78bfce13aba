package store

import (
	"encoding/json"
	"time"
)

// LogEntry is a unit of recorded work pushed by the bot or inserted by hand.
type LogEntry struct {
	ID         string     `json:"id" yaml:"id"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	Timestamp  *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // legacy single instant
	StartedAt  *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Project    string     `json:"project" yaml:"project"`
	Title      string     `json:"title" yaml:"title"`
	Details    *string    `json:"details" yaml:"details,omitempty"`
	Status     string     `json:"status" yaml:"status"`
	Tags       []string   `json:"tags" yaml:"tags,omitempty"`  // nil when absent
	Links      []string   `json:"links" yaml:"links,omitempty"` // nil when absent
	Source     *string    `json:"source" yaml:"source,omitempty"`
}

// EffectiveTime returns finished_at, else timestamp, else created_at.
func (l *LogEntry) EffectiveTime() time.Time {
	if l.FinishedAt != nil && !l.FinishedAt.IsZero() {
		return *l.FinishedAt
	}
	if l.Timestamp != nil && !l.Timestamp.IsZero() {
		return *l.Timestamp
	}
	return l.CreatedAt
}

// StartTime returns started_at, else timestamp. Zero when neither is set.
func (l *LogEntry) StartTime() time.Time {
	if l.StartedAt != nil {
		return *l.StartedAt
	}
	if l.Timestamp != nil {
		return *l.Timestamp
	}
	return time.Time{}
}

// Log statuses shown in the status filter. Any other string is accepted.
const (
	LogStatusTodo  = "todo"
	LogStatusDoing = "doing"
	LogStatusDone  = "done"
)

// Agent states accepted by set-status.
const (
	StateWorking = "working"
	StateIdle    = "idle"
)

// AgentStatus is the working/idle record. Only the most recently updated row is read.
type AgentStatus struct {
	ID        string    `json:"id"`
	State     string    `json:"state"`
	Note      *string   `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CronSnapshot captures an opaque cron listing pushed by the bot.
type CronSnapshot struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
	Source    string          `json:"source"`
}

// MemorySnapshot captures the bot's free-text memory.
type MemorySnapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
}

// DocumentRow is a user-authored rich document.
type DocumentRow struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Project    string    `json:"project"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	Author     string    `json:"author"`
	Assigned   []string  `json:"assigned"`
	Visibility string    `json:"visibility"`
	Content    string    `json:"content"`
}

// FileRow is a plain-text file kept in an optional folder.
type FileRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Project   string    `json:"project"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	FolderID  *string   `json:"folder_id"`
	Source    string    `json:"source"`
}

// FolderRow groups files.
type FolderRow struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Project   string    `json:"project"`
	ParentID  *string   `json:"parent_id"`
}

// TodoRow is a task record.
type TodoRow struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee"`
	DueAt       *time.Time `json:"due_at"`
	Project     string     `json:"project"`
	Tags        []string   `json:"tags"`
}

// InstructionRow holds per-project (optionally per-category) instructions.
type InstructionRow struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a dashboard account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// schemaStatements is portable across sqlite and postgres. Timestamps are
// fixed-width UTC text so lexical order is chronological order.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS logs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		"timestamp" TEXT,
		started_at TEXT,
		finished_at TEXT,
		project TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		details TEXT,
		status TEXT NOT NULL DEFAULT 'done',
		tags TEXT,
		links TEXT,
		source TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_finished ON logs(finished_at)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_project ON logs(project)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_status ON logs(status)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'todo',
		priority TEXT NOT NULL DEFAULT 'medium',
		assignee TEXT NOT NULL DEFAULT '',
		due_at TEXT,
		project TEXT NOT NULL DEFAULT '',
		tags TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_due ON todos(due_at)`,
	`CREATE TABLE IF NOT EXISTS cron_snapshot (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		payload TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cron_created ON cron_snapshot(created_at)`,
	`CREATE TABLE IF NOT EXISTS memory_snapshot (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		content TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_created ON memory_snapshot(created_at)`,
	`CREATE TABLE IF NOT EXISTS agent_status (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_status_updated ON agent_status(updated_at)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		tags TEXT,
		author TEXT NOT NULL DEFAULT '',
		assigned TEXT,
		visibility TEXT NOT NULL DEFAULT 'private',
		content TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		name TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		parent_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		project TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		tags TEXT,
		content TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		folder_id TEXT,
		source TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS project_instructions (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		UNIQUE(project, category)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}
