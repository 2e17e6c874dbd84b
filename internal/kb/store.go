package kb

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Term weights by where the term appears. A title hit should outrank any
// number of incidental body mentions.
const (
	titleWeight   = 3.0
	tagWeight     = 2.0
	contentWeight = 1.0
)

// minFindScore is the relevance floor for FindRunbook. A single body-term
// hit is not related enough to cite in a recommendation.
const minFindScore = 1.0

// Match is one search hit with its relevance score.
type Match struct {
	Runbook *Runbook `json:"runbook"`
	Score   float64  `json:"score"`
}

// MemoryStore indexes runbooks by keyword for relevance-ranked search.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	runbooks map[string]*Runbook
	terms    map[string]map[string]float64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runbooks: make(map[string]*Runbook),
		terms:    make(map[string]map[string]float64),
	}
}

// Add indexes one runbook, replacing any previous version with the same ID.
func (s *MemoryStore) Add(runbook *Runbook) error {
	if runbook == nil || runbook.ID == "" {
		return fmt.Errorf("runbook must have an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runbooks[runbook.ID]; exists {
		s.removeLocked(runbook.ID)
	}
	s.runbooks[runbook.ID] = runbook

	s.indexText(runbook.ID, runbook.Title, titleWeight)
	for _, tag := range runbook.Tags {
		s.indexText(runbook.ID, tag, tagWeight)
	}
	s.indexText(runbook.ID, runbook.Content, contentWeight)

	return nil
}

// AddBatch indexes runbooks in order, stopping at the first failure.
func (s *MemoryStore) AddBatch(runbooks []*Runbook) error {
	for _, runbook := range runbooks {
		if err := s.Add(runbook); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a runbook by ID.
func (s *MemoryStore) Get(id string) (*Runbook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runbook, ok := s.runbooks[id]
	return runbook, ok
}

// Len returns the number of indexed runbooks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.runbooks)
}

// Titles returns every runbook title, sorted. Used by status commands.
func (s *MemoryStore) Titles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles := make([]string, 0, len(s.runbooks))
	for _, runbook := range s.runbooks {
		titles = append(titles, runbook.Title)
	}
	sort.Strings(titles)
	return titles
}

// Search ranks runbooks against the query terms. Scores are term
// frequency weighted by field and dampened by how common the term is
// across the store. Ties break on runbook ID so results are stable.
func (s *MemoryStore) Search(query string, limit int) []Match {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.runbooks)
	scores := make(map[string]float64)
	for _, term := range terms {
		postings, ok := s.terms[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + float64(total)/float64(len(postings)))
		for id, weight := range postings {
			scores[id] += weight * idf
		}
	}
	if len(scores) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(scores))
	for id, score := range scores {
		matches = append(matches, Match{Runbook: s.runbooks[id], Score: score})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Runbook.ID < matches[j].Runbook.ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// FindRunbook resolves a query to its best runbook reference when the top
// hit clears the relevance floor. Satisfies the analyzer's runbook hook.
func (s *MemoryStore) FindRunbook(query string) (title, path string, ok bool) {
	matches := s.Search(query, 1)
	if len(matches) == 0 || matches[0].Score < minFindScore {
		return "", "", false
	}
	return matches[0].Runbook.Title, matches[0].Runbook.Path, true
}

func (s *MemoryStore) indexText(id, text string, weight float64) {
	for _, term := range tokenize(text) {
		postings, ok := s.terms[term]
		if !ok {
			postings = make(map[string]float64)
			s.terms[term] = postings
		}
		postings[id] += weight
	}
}

func (s *MemoryStore) removeLocked(id string) {
	delete(s.runbooks, id)
	for term, postings := range s.terms {
		delete(postings, id)
		if len(postings) == 0 {
			delete(s.terms, term)
		}
	}
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {}, "with": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 2 {
			continue
		}
		if _, stop := stopWords[field]; stop {
			continue
		}
		terms = append(terms, field)
	}
	return terms
}
