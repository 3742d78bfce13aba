package dashboard

import (
	"sort"
	"strings"

	"github.com/TheBase/TheBase/internal/logquery"
	"github.com/TheBase/TheBase/internal/store"
)

// FileFilter narrows the file browser. Empty or "all" leaves a field open.
type FileFilter struct {
	Project string `json:"project"`
	Type    string `json:"type"`
	Folder  string `json:"folder"`
	Query   string `json:"q"`
}

func unconstrained(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || v == logquery.All
}

// FilterFiles applies f to files, keeping their order.
func FilterFiles(files []store.FileRow, f FileFilter) []store.FileRow {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]store.FileRow, 0, len(files))
	for _, file := range files {
		if !unconstrained(f.Project) && file.Project != f.Project {
			continue
		}
		if !unconstrained(f.Type) && file.Type != f.Type {
			continue
		}
		if !unconstrained(f.Folder) && (file.FolderID == nil || *file.FolderID != f.Folder) {
			continue
		}
		if q != "" && !strings.Contains(fileHaystack(file), q) {
			continue
		}
		out = append(out, file)
	}
	return out
}

func fileHaystack(f store.FileRow) string {
	parts := []string{f.Title, f.Project, f.Type, f.Content, f.Author, strings.Join(f.Tags, " ")}
	return strings.ToLower(strings.Join(parts, " "))
}

// distinct returns the sorted non-empty values of key over files.
func distinct(files []store.FileRow, key func(store.FileRow) string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, f := range files {
		v := key(f)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
