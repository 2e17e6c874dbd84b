package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dstriage/dstriage/internal/analyzer"
	"github.com/dstriage/dstriage/internal/config"
	"github.com/dstriage/dstriage/internal/kb"
	"github.com/dstriage/dstriage/internal/llm"
	"github.com/dstriage/dstriage/internal/logging"
)

// collaborators holds the optional analysis helpers resolved from config:
// the model-backed summarizer and issue classifier, and the runbook
// knowledge base. Absent collaborators stay nil; the engine treats nil as
// disabled.
type collaborators struct {
	summarizer *llm.Summarizer
	classifier *llm.Classifier
	runbooks   *kb.MemoryStore
	client     llm.Client
}

// close releases the model client, if any.
func (c *collaborators) close() {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		logging.L().Warn("model client close failed", zap.Error(err))
	}
}

// apply wires the collaborators into engine options.
func (c *collaborators) apply(opts *analyzer.Options) {
	if c.summarizer != nil {
		opts.Summarizer = c.summarizer
	}
	if c.classifier != nil {
		opts.IssueClassifier = c.classifier
	}
	if c.runbooks != nil {
		opts.Runbooks = c.runbooks
	}
}

// setupCollaborators builds the optional helpers the capabilities allow.
// Setup failures disable the collaborator with a warning; they never block
// the analysis itself.
func setupCollaborators(cfg *config.Config, caps Capabilities, kbPath string) *collaborators {
	c := &collaborators{}

	if caps.KB || kbPath != "" {
		c.runbooks = loadKnowledgeBase(cfg, kbPath)
	}

	if !caps.LLM {
		return c
	}

	client, err := llm.NewClient(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.Endpoint,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		CacheTTL:    cfg.LLM.CacheTTL,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: model summaries disabled: %v\n", err)
		return c
	}

	c.client = client
	c.summarizer = llm.NewSummarizer(client)
	c.classifier = llm.NewClassifier(client)
	if c.runbooks != nil {
		c.summarizer = c.summarizer.WithRunbooks(runbookLookup(c.runbooks))
	}

	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Model summaries enabled (%s, %s)\n",
			cfg.LLM.Provider, cfg.LLM.Model)
	}
	return c
}

// loadKnowledgeBase loads the runbook store. A missing or empty directory
// is a disabled capability, not an error.
func loadKnowledgeBase(cfg *config.Config, override string) *kb.MemoryStore {
	path := cfg.KB.Path
	if override != "" {
		path = override
	}
	store, err := kb.Load(config.ExpandPath(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: knowledge base disabled: %v\n", err)
		return nil
	}
	if store == nil {
		return nil
	}
	if isVerbose() {
		fmt.Fprintf(os.Stderr, "Loaded %d runbook(s) from %s\n", store.Len(), path)
	}
	return store
}

// runbookLookup adapts the knowledge-base search to the prompt-context
// shape the summarizer consumes.
func runbookLookup(store *kb.MemoryStore) llm.RunbookLookup {
	return func(query string, limit int) []llm.RunbookExcerpt {
		matches := store.Search(query, limit)
		excerpts := make([]llm.RunbookExcerpt, 0, len(matches))
		for _, match := range matches {
			excerpts = append(excerpts, llm.RunbookExcerpt{
				Title:   match.Runbook.Title,
				Excerpt: match.Runbook.Excerpt(400),
			})
		}
		return excerpts
	}
}
