// Package kb loads markdown runbooks into an in-memory keyword index so
// recommendations and prompt context can point at remediation documents.
// The knowledge base is an optional collaborator: a missing or empty
// directory disables it instead of failing anything downstream.
package kb

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Runbook is one markdown remediation document.
type Runbook struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Tags     []string  `json:"tags,omitempty"`
	Content  string    `json:"content"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}

// Excerpt returns the leading content with whitespace collapsed, cut to at
// most maxRunes runes. Used for prompt context, where whole runbooks would
// blow the token budget.
func (r *Runbook) Excerpt(maxRunes int) string {
	text := strings.Join(strings.Fields(r.Content), " ")
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

// Load scans dir and builds a searchable store over its runbooks. An empty
// path, a missing directory, or a directory without runbooks all return
// (nil, nil): the knowledge base is simply not available.
func Load(dir string) (*MemoryStore, error) {
	if dir == "" {
		return nil, nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat knowledge base %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge base %s is not a directory", dir)
	}

	runbooks, err := NewScanner().ScanDirectory(dir)
	if err != nil {
		return nil, err
	}
	if len(runbooks) == 0 {
		return nil, nil
	}

	store := NewMemoryStore()
	if err := store.AddBatch(runbooks); err != nil {
		return nil, err
	}
	return store, nil
}
