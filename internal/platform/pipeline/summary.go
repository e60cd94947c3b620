package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Summary status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Summary is the per-run report a stage writes next to its output. Counters
// are keyed by reason code so a failed or degraded run can be diagnosed from
// the summary alone.
type Summary struct {
	Stage      string         `json:"stage"`
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Inputs     []string       `json:"inputs,omitempty"`
	Outputs    []string       `json:"outputs,omitempty"`
	Counters   map[string]int `json:"counters"`
	Warnings   []string       `json:"warnings,omitempty"`

	mu sync.Mutex
}

// NewSummary starts a summary for the named stage.
func NewSummary(stage string) *Summary {
	return &Summary{
		Stage:     stage,
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Status:    StatusOK,
		Counters:  make(map[string]int),
	}
}

// Inc increments the counter for a reason code.
func (s *Summary) Inc(reason string) {
	s.Add(reason, 1)
}

// Add adds n to the counter for a reason code.
func (s *Summary) Add(reason string, n int) {
	s.mu.Lock()
	s.Counters[reason] += n
	s.mu.Unlock()
}

// Set overwrites a counter.
func (s *Summary) Set(reason string, n int) {
	s.mu.Lock()
	s.Counters[reason] = n
	s.mu.Unlock()
}

// Count returns the current value of a counter.
func (s *Summary) Count(reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Counters[reason]
}

// Warn records a warning line.
func (s *Summary) Warn(format string, args ...interface{}) {
	s.mu.Lock()
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

// Input records an input artifact path.
func (s *Summary) Input(path string) { s.Inputs = append(s.Inputs, path) }

// Output records an output artifact path.
func (s *Summary) Output(path string) { s.Outputs = append(s.Outputs, path) }

// Finish stamps the summary. A non-nil err marks the run failed.
func (s *Summary) Finish(err error) {
	now := time.Now().UTC()
	s.FinishedAt = &now
	if err != nil {
		s.Status = StatusFailed
		s.Error = err.Error()
	}
}

// CounterLine renders the counters as a single sorted "k=v" line.
func (s *Summary) CounterLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.Counters))
	for k := range s.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.Counters[k]))
	}
	return strings.Join(parts, " ")
}

// SummaryPath returns the summary path for an output artifact:
// bridges/diseases.json -> bridges/diseases.summary.json.
func SummaryPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".summary.json"
}
