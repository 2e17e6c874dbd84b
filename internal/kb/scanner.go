package kb

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dstriage/dstriage/internal/logging"
)

// Scanner reads markdown runbooks from disk.
type Scanner struct {
	includePatterns []string
	excludePatterns []string
}

// NewScanner creates a scanner with the default markdown patterns.
func NewScanner() *Scanner {
	return &Scanner{
		includePatterns: []string{"*.md", "*.markdown"},
		excludePatterns: []string{"node_modules", ".git", "vendor"},
	}
}

// ScanFile reads and parses a single runbook.
func (s *Scanner) ScanFile(path string) (*Runbook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat runbook %s: %w", path, err)
	}
	content, err := os.ReadFile(path) // #nosec G304 -- paths come from the configured runbook directory
	if err != nil {
		return nil, fmt.Errorf("failed to read runbook %s: %w", path, err)
	}

	meta, body := splitFrontmatter(string(content))

	title := meta.Title
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return &Runbook{
		ID:       runbookID(path),
		Path:     path,
		Title:    title,
		Tags:     meta.Tags,
		Content:  body,
		Modified: info.ModTime(),
		Size:     info.Size(),
	}, nil
}

// ScanDirectory walks dir recursively and parses every matching runbook.
// Files that fail to parse are skipped with a warning so one broken
// runbook cannot disable the whole knowledge base.
func (s *Scanner) ScanDirectory(dir string) ([]*Runbook, error) {
	var runbooks []*Runbook

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()

		if d.IsDir() {
			for _, pattern := range s.excludePatterns {
				if matched, _ := filepath.Match(pattern, name); matched {
					return filepath.SkipDir
				}
			}
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || !s.matchesInclude(name) {
			return nil
		}

		runbook, err := s.ScanFile(path)
		if err != nil {
			logging.L().Warn("runbook skipped", logging.Path(path), zap.Error(err))
			return nil
		}
		runbooks = append(runbooks, runbook)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan knowledge base %s: %w", dir, err)
	}

	return runbooks, nil
}

func (s *Scanner) matchesInclude(name string) bool {
	for _, pattern := range s.includePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// frontmatter is the subset of runbook metadata the knowledge base uses.
type frontmatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// splitFrontmatter strips an optional YAML frontmatter block and returns
// its parsed fields with the remaining body. Malformed frontmatter is
// treated as body text, not an error.
func splitFrontmatter(content string) (frontmatter, string) {
	var meta frontmatter
	if !strings.HasPrefix(content, "---\n") && content != "---" {
		return meta, content
	}

	rest := strings.TrimPrefix(content, "---\n")
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, content
	}

	block := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return frontmatter{}, content
	}
	return meta, body
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func runbookID(path string) string {
	id := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(path)
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return id
}
