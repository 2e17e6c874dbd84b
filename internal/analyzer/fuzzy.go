package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/dstriage/dstriage/internal/common"
)

// fuzzyDimensions bounds the TF-IDF vocabulary built from the known-issue
// corpus. Signature corpora are small; 256 terms covers them with room for
// operator-supplied tables.
const fuzzyDimensions = 256

// FuzzyMatcher is the secondary known-issue path: when no signature is a
// substring of the message, the message is TF-IDF vectorized and compared
// against the signature corpus by cosine similarity. Matches below the
// threshold are discarded.
type FuzzyMatcher struct {
	issues     []common.KnownIssue
	vectors    [][]float32
	vocabulary map[string]int
	idf        []float32
	threshold  float64

	wordSplit *regexp.Regexp
	allDigits *regexp.Regexp
	stopWords map[string]bool
}

// NewFuzzyMatcher fits a matcher on the table's known issues. Returns nil
// when the table has no issues to match against.
func NewFuzzyMatcher(issues []common.KnownIssue, threshold float64) *FuzzyMatcher {
	if len(issues) == 0 || threshold <= 0 {
		return nil
	}

	m := &FuzzyMatcher{
		issues:     issues,
		vocabulary: make(map[string]int),
		threshold:  threshold,
		wordSplit:  regexp.MustCompile(`[^\p{L}\p{N}]+`),
		allDigits:  regexp.MustCompile(`^\d+$`),
		stopWords:  fuzzyStopWords(),
	}

	documents := make([]string, len(issues))
	for i, issue := range issues {
		documents[i] = issue.Signature + " " + issue.Description
	}
	m.fit(documents)

	m.vectors = make([][]float32, len(documents))
	for i, doc := range documents {
		m.vectors[i] = m.vectorize(doc)
	}
	return m
}

// Match returns the best known-issue match for the message, or nil when no
// issue clears the similarity threshold.
func (m *FuzzyMatcher) Match(message string) *common.KnownIssueMatch {
	if m == nil || message == "" {
		return nil
	}

	query := m.vectorize(message)

	bestIdx := -1
	var bestSim float32
	for i, vec := range m.vectors {
		if sim := cosineSimilarity(query, vec); sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}
	if bestIdx < 0 || float64(bestSim) < m.threshold {
		return nil
	}

	issue := m.issues[bestIdx]
	return &common.KnownIssueMatch{
		IssueType:   issue.IssueType,
		Severity:    issue.Severity,
		Description: issue.Description,
		Resolution:  issue.Resolution,
		Impact:      issue.Impact,
		Confidence:  float64(bestSim),
		Source:      common.MatchSourceFuzzy,
	}
}

// fit builds the vocabulary and IDF values from the issue corpus.
func (m *FuzzyMatcher) fit(documents []string) {
	wordDocCounts := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, word := range m.tokenize(doc) {
			if m.isValidWord(word) {
				seen[word] = true
			}
		}
		for word := range seen {
			wordDocCounts[word]++
		}
	}

	type wordFreq struct {
		word  string
		count int
	}
	wordFreqs := make([]wordFreq, 0, len(wordDocCounts))
	for word, count := range wordDocCounts {
		wordFreqs = append(wordFreqs, wordFreq{word, count})
	}
	sort.Slice(wordFreqs, func(i, j int) bool {
		if wordFreqs[i].count != wordFreqs[j].count {
			return wordFreqs[i].count > wordFreqs[j].count
		}
		return wordFreqs[i].word < wordFreqs[j].word
	})

	vocabSize := fuzzyDimensions
	if len(wordFreqs) < vocabSize {
		vocabSize = len(wordFreqs)
	}
	for i := 0; i < vocabSize; i++ {
		m.vocabulary[wordFreqs[i].word] = i
	}

	m.idf = make([]float32, len(m.vocabulary))
	for word, index := range m.vocabulary {
		m.idf[index] = float32(math.Log(float64(len(documents)+1) / float64(wordDocCounts[word]+1)))
	}
}

// vectorize converts text to a TF-IDF vector over the fitted vocabulary.
func (m *FuzzyMatcher) vectorize(text string) []float32 {
	vector := make([]float32, len(m.vocabulary))

	wordCounts := make(map[string]int)
	totalWords := 0
	for _, word := range m.tokenize(text) {
		if !m.isValidWord(word) {
			continue
		}
		wordCounts[word]++
		totalWords++
	}
	if totalWords == 0 {
		return vector
	}

	for word, count := range wordCounts {
		if index, exists := m.vocabulary[word]; exists {
			tf := float32(count) / float32(totalWords)
			vector[index] = tf * m.idf[index]
		}
	}
	return vector
}

func (m *FuzzyMatcher) tokenize(text string) []string {
	text = m.wordSplit.ReplaceAllString(strings.ToLower(text), " ")
	return strings.Fields(text)
}

func (m *FuzzyMatcher) isValidWord(word string) bool {
	if len(word) < 2 || len(word) > 50 {
		return false
	}
	if m.stopWords[word] {
		return false
	}
	return !m.allDigits.MatchString(word)
}

// cosineSimilarity returns the cosine of the angle between two vectors, 1
// for identical directions, 0 for orthogonal or empty vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float32
	for i := 0; i < len(a); i++ {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}
	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}

func fuzzyStopWords() map[string]bool {
	stopWords := []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "by", "for",
		"from", "has", "in", "is", "it", "its", "of", "on", "that", "the",
		"to", "was", "will", "with", "this", "but", "they", "have", "had",
		"not", "no", "or", "if", "then", "than", "so", "do", "did", "does",
	}
	set := make(map[string]bool, len(stopWords))
	for _, word := range stopWords {
		set[word] = true
	}
	return set
}
