package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/luabox/internal/model"
)

// JSONPrinter prints run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// outcomeOutput is the outcome summary plus the run metadata.
type outcomeOutput struct {
	RunID string `json:"run_id,omitempty"`
	model.OutcomeSummary
	Instructions    int64   `json:"instructions"`
	DurationMs      float64 `json:"duration_ms"`
	PeakMemoryBytes int64   `json:"peak_memory_bytes"`
}

type checkItem struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type runOutput struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorDetail  string    `json:"error_detail,omitempty"`
	Instructions int64     `json:"instructions"`
	DurationMs   float64   `json:"duration_ms"`
	SourceDigest string    `json:"source_sha256"`
	CreatedAt    time.Time `json:"created_at"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// NewOutcomeJSON returns the JSON form of an outcome.
func NewOutcomeJSON(o model.ExecutionOutcome) any {
	return outcomeOutput{
		RunID:           o.RunID,
		OutcomeSummary:  o.Summary(),
		Instructions:    o.Instructions,
		DurationMs:      durationMs(o.Duration),
		PeakMemoryBytes: o.PeakMemory,
	}
}

// NewCheckJSON returns the JSON form of check results.
func NewCheckJSON(results []model.CheckResult) any {
	items := make([]checkItem, len(results))
	for i, r := range results {
		items[i] = checkItem{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}
	return items
}

func newRunJSON(r model.RunRecord) runOutput {
	return runOutput{
		ID:           r.ID,
		Status:       string(r.Status),
		ErrorKind:    r.ErrorKind,
		ErrorDetail:  r.ErrorDetail,
		Instructions: r.Instructions,
		DurationMs:   durationMs(r.Duration),
		SourceDigest: r.SourceDigest,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

func durationMs(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

// PrintOutcome prints the outcome in JSON format.
func (j *JSONPrinter) PrintOutcome(o model.ExecutionOutcome) error {
	return j.encode(NewOutcomeJSON(o))
}

// PrintCheck prints the check results in JSON format.
func (j *JSONPrinter) PrintCheck(results []model.CheckResult) error {
	return j.encode(NewCheckJSON(results))
}

// PrintRunList prints runs in JSON format.
func (j *JSONPrinter) PrintRunList(runs []model.RunRecord) error {
	items := make([]runOutput, len(runs))
	for i, r := range runs {
		items[i] = newRunJSON(r)
	}
	return j.encode(items)
}

// PrintRun prints a run in JSON format.
func (j *JSONPrinter) PrintRun(r model.RunRecord) error {
	return j.encode(newRunJSON(r))
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
