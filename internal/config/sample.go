package config

// SampleConfig returns a fully commented configuration file with every
// option at its default value.
func SampleConfig() string {
	return `# dstriage configuration
#
# Search order: ./.dstriage.yaml, ~/.config/dstriage/config.yaml,
# /etc/dstriage/config.yaml. Environment variables with the DSTRIAGE_
# prefix override file settings (for example DSTRIAGE_LLM_PROVIDER).

version: "1.0"

analysis:
  # Lines read per input file; the rest of the file is ignored.
  max_lines: 10000
  # Classified events retained per run. Counting continues past the cap.
  max_events: 500
  # Longest accepted physical line in bytes.
  max_line_length: 1048576
  # Per-analysis deadline.
  timeout: 2m
  # Component health penalties per error/warning event.
  health_error_weight: 10
  health_warning_weight: 2
  # Minimum cosine similarity for a fuzzy known-issue match. 0 disables
  # the fuzzy matcher; 0.55 is the recommended operating point.
  fuzzy_threshold: 0
  # Enable the experimental feature-score classifier. Scores are reported
  # in statistics only; classification stays pattern-driven.
  heuristic: false

correlation:
  # Chained-proximity window for cross-log timing groups.
  window_minutes: 5
  # Score contribution per timing window / correlated component.
  timing_weight: 10
  component_weight: 15

bundle:
  # Per-member decompressed size cap.
  max_member_size_mb: 64
  # Members extracted per bundle.
  max_members: 256
  # Extraction scratch directory. Empty means the system temp dir.
  work_dir: ""

llm:
  # Model-backed summaries are opt-in.
  enabled: false
  # ollama, openai or anthropic.
  provider: ollama
  model: llama3.2
  endpoint: http://localhost:11434
  # API key for hosted providers. Prefer the DSTRIAGE_LLM_API_KEY
  # environment variable over storing keys in this file.
  api_key: ""
  max_tokens: 1024
  temperature: 0.3
  timeout: 60s
  # Identical prompts within the window are served from memory.
  # 0 disables the response cache.
  cache_ttl: 15m

history:
  # Record completed runs in a local SQLite database.
  enabled: false
  path: ~/.cache/dstriage/history.db
  # Rows retained by automatic pruning.
  keep: 200

kb:
  # Directory of markdown runbooks. Empty disables the knowledge base.
  path: ""

logging:
  # debug, info, warn or error.
  level: info
  dir: logs
  file: dstriage.jsonl
  max_size_mb: 10
  max_backups: 5
  max_age_days: 30
  # Mirror warnings to stderr.
  console: false

output:
  # terminal, json, markdown or csv.
  format: terminal
  # auto, always or never.
  color_mode: auto
  emoji: true
  show_progress: true
`
}

// MinimalSampleConfig returns a compact configuration with only the
// settings most installations change.
func MinimalSampleConfig() string {
	return `# dstriage configuration (minimal)

version: "1.0"

analysis:
  max_lines: 10000
  timeout: 2m

llm:
  enabled: false
  provider: ollama
  model: llama3.2

history:
  enabled: false

output:
  format: terminal
  color_mode: auto
`
}
