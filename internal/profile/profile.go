// Package profile reads and writes the JSON profile file format of
// spec.md §6: one file per (job_id, throttle_rate), feeding the offline
// scheduler's timing pass. Grounded on the teacher's JSON marshal/
// unmarshal idiom (services/orchestrator/persistence.go's
// encoding/json usage) applied to a file rather than a bbolt record.
package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FlowRecord is one flow's profiled history within a period.
type FlowRecord struct {
	FlowID          int       `json:"flow_id"`
	JobID           int       `json:"job_id"`
	Iteration       int       `json:"iteration"`
	Subflow         int       `json:"subflow"`
	StartTime       float64   `json:"start_time"`
	EndTime         float64   `json:"end_time"`
	SrcRack         int       `json:"srcrack"`
	DstRack         int       `json:"dstrack"`
	Dir             string    `json:"dir"` // "up" | "down"
	FCT             float64   `json:"fct"`
	Core            int       `json:"core"`
	Label           string    `json:"label"`
	FlowSize        float64   `json:"flow_size"`
	ProgressHistory []float64 `json:"progress_history"`
}

// Profile is one (job_id, throttle_rate) profile file's full contents.
type Profile struct {
	Period int          `json:"period"`
	Flows  []FlowRecord `json:"flows"`
}

// Read parses a profile document from r.
func Read(r io.Reader) (*Profile, error) {
	var p Profile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	return &p, nil
}

// ReadFile loads a profile document from a path on disk.
func ReadFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("profile: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Write serializes a profile document as indented JSON to w.
func Write(w io.Writer, p *Profile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	return nil
}

// WriteFile serializes a profile document to a path on disk.
func WriteFile(path string, p *Profile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("profile: create %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, p)
}

// FromHistory builds a Profile from one job's flow records and per-flow
// progress samples, the shape the simulator emits after a run and the
// shape the offline scheduler's timing pass consumes (spec.md §4.H).
func FromHistory(period int, flows []FlowRecord) *Profile {
	return &Profile{Period: period, Flows: flows}
}
