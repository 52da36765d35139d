// Package runctx implements the process-wide Run Context (spec.md §4.G):
// an ordered window of at most two RunInfo snapshots (current + prior)
// that the future-load balancer replays.
//
// Grounded on the teacher's bbolt-backed WorkflowStore
// (services/orchestrator/persistence.go): the same open-bucket /
// memory-cache / JSON-marshal-per-record shape, repurposed from storing
// workflow definitions to storing per-run link and flow time series.
package runctx

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/faridzandi/psim-go/internal/loadbalancer"
)

var bucketRuns = []byte("runs")

// FlowRecord is one flow's timing and routing history within a run.
type FlowRecord struct {
	Start            float64            `json:"start"`
	End              float64            `json:"end"`
	FCT              float64            `json:"fct"`
	Decision         int                `json:"decision"`
	HasDecision      bool               `json:"has_decision"`
	ProgressByStep   map[int]float64    `json:"progress_by_step"`
}

// RunInfo is one simulation run's replayable profile: every link's load
// time series, every flow's timing/routing, keyed the way the future-load
// balancer expects (spec.md §4.G).
type RunInfo struct {
	ID          string               `json:"id"`
	TotalTime   float64              `json:"total_time"`
	LinkByStep  map[int]map[int]float64 `json:"link_by_step"` // step -> linkID -> load
	Flows       map[int]*FlowRecord  `json:"flows"`
	MaxStep     int                  `json:"max_step"`
}

func newRunInfo() *RunInfo {
	return &RunInfo{
		ID:         uuid.NewString(),
		LinkByStep: make(map[int]map[int]float64),
		Flows:      make(map[int]*FlowRecord),
	}
}

func (r *RunInfo) flowRecord(flowID int) *FlowRecord {
	fr, ok := r.Flows[flowID]
	if !ok {
		fr = &FlowRecord{ProgressByStep: make(map[int]float64)}
		r.Flows[flowID] = fr
	}
	return fr
}

// RunContext is the process-wide singleton holding the replay window.
// Its lifecycle is {created at process start, mutated only through this
// API, outlives any single simulation} per spec.md §4.G.
type RunContext struct {
	mu         sync.Mutex
	db         *bbolt.DB
	keepBetter bool
	runs       []*RunInfo // oldest first; length <= 2
}

// Open constructs a RunContext backed by a bbolt database at dbPath.
// keepBetter selects the eviction policy when a third run is pushed:
// true keeps whichever of the two existing runs has the shorter total
// simulated time instead of always dropping the older one.
func Open(dbPath string, keepBetter bool) (*RunContext, error) {
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("runctx: open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("runctx: create bucket: %w", err)
	}

	rc := &RunContext{db: db, keepBetter: keepBetter}
	if err := rc.loadFromDisk(); err != nil {
		db.Close()
		return nil, err
	}
	return rc, nil
}

// Close releases the underlying database handle.
func (rc *RunContext) Close() error {
	return rc.db.Close()
}

func (rc *RunContext) loadFromDisk() error {
	return rc.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRuns)
		return bucket.ForEach(func(_, v []byte) error {
			var ri RunInfo
			if err := json.Unmarshal(v, &ri); err != nil {
				return nil
			}
			rc.runs = append(rc.runs, &ri)
			return nil
		})
	})
}

func (rc *RunContext) persist() error {
	return rc.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketRuns)
		if err := bucket.DeleteAll(); err != nil {
			return err
		}
		for i, ri := range rc.runs {
			data, err := json.Marshal(ri)
			if err != nil {
				return fmt.Errorf("marshal run %d: %w", i, err)
			}
			if err := bucket.Put([]byte(fmt.Sprintf("%02d", i)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// StartNewRun pushes a fresh RunInfo onto the window, evicting down to
// two entries total per the configured policy.
func (rc *RunContext) StartNewRun() *RunInfo {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.runs = append(rc.runs, newRunInfo())
	if len(rc.runs) > 2 {
		if rc.keepBetter {
			rc.runs = keepBetterTwo(rc.runs)
		} else {
			rc.runs = rc.runs[len(rc.runs)-2:]
		}
	}
	return rc.runs[len(rc.runs)-1]
}

// keepBetterTwo keeps the newest run plus whichever older run had the
// shorter total simulated time, discarding the rest.
func keepBetterTwo(runs []*RunInfo) []*RunInfo {
	newest := runs[len(runs)-1]
	var bestOlder *RunInfo
	for _, r := range runs[:len(runs)-1] {
		if bestOlder == nil || r.TotalTime < bestOlder.TotalTime {
			bestOlder = r
		}
	}
	return []*RunInfo{bestOlder, newest}
}

// ThisRun returns the current (most recently started) run.
func (rc *RunContext) ThisRun() *RunInfo {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.runs) == 0 {
		return nil
	}
	return rc.runs[len(rc.runs)-1]
}

// LastRun returns the run before the current one, or nil on a first run.
func (rc *RunContext) LastRun() *RunInfo {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.runs) < 2 {
		return nil
	}
	return rc.runs[len(rc.runs)-2]
}

// IsFirstRun reports whether there is no prior run to replay.
func (rc *RunContext) IsFirstRun() bool {
	return rc.LastRun() == nil
}

// Finish finalizes the current run's total time and persists the window.
func (rc *RunContext) Finish(totalTime float64) error {
	rc.mu.Lock()
	if len(rc.runs) > 0 {
		rc.runs[len(rc.runs)-1].TotalTime = totalTime
		maxStep := 0
		for step := range rc.runs[len(rc.runs)-1].LinkByStep {
			if step > maxStep {
				maxStep = step
			}
		}
		rc.runs[len(rc.runs)-1].MaxStep = maxStep
	}
	rc.mu.Unlock()
	return rc.persist()
}

// RecordLinkSample stores one link's load at one step for the current run.
func (rc *RunContext) RecordLinkSample(step, linkID int, load float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	this := rc.runs[len(rc.runs)-1]
	bucket, ok := this.LinkByStep[step]
	if !ok {
		bucket = make(map[int]float64)
		this.LinkByStep[step] = bucket
	}
	bucket[linkID] += load
}

// RecordFlowSample stores one flow's contribution at one step.
func (rc *RunContext) RecordFlowSample(step, flowID int, load float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	fr := rc.runs[len(rc.runs)-1].flowRecord(flowID)
	fr.ProgressByStep[step] = load
}

// RecordFlowTiming stores a finished flow's start/end/fct for replay.
func (rc *RunContext) RecordFlowTiming(flowID int, start, end float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	fr := rc.runs[len(rc.runs)-1].flowRecord(flowID)
	fr.Start = start
	fr.End = end
	fr.FCT = end - start
}

// SaveDecision records which upper-tier item a flow was routed through.
func (rc *RunContext) SaveDecision(flowID, item int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	fr := rc.runs[len(rc.runs)-1].flowRecord(flowID)
	fr.Decision = item
	fr.HasDecision = true
}

// LastDecision returns the prior run's routing choice for a flow.
func (rc *RunContext) LastDecision(flowID int) (int, bool) {
	last := rc.LastRun()
	if last == nil {
		return 0, false
	}
	fr, ok := last.Flows[flowID]
	if !ok || !fr.HasDecision {
		return 0, false
	}
	return fr.Decision, true
}

func (rc *RunContext) lastFlow(flowID int) (*FlowRecord, bool) {
	last := rc.LastRun()
	if last == nil {
		return nil, false
	}
	fr, ok := last.Flows[flowID]
	return fr, ok
}

// LastFlowFCT returns the prior run's flow-completion-time for flowID.
func (rc *RunContext) LastFlowFCT(flowID int) (float64, bool) {
	fr, ok := rc.lastFlow(flowID)
	if !ok {
		return 0, false
	}
	return fr.FCT, true
}

// LastFlowStart returns the prior run's start time for flowID.
func (rc *RunContext) LastFlowStart(flowID int) (float64, bool) {
	fr, ok := rc.lastFlow(flowID)
	if !ok {
		return 0, false
	}
	return fr.Start, true
}

// LastFlowEnd returns the prior run's end time for flowID.
func (rc *RunContext) LastFlowEnd(flowID int) (float64, bool) {
	fr, ok := rc.lastFlow(flowID)
	if !ok {
		return 0, false
	}
	return fr.End, true
}

// MaxTimeStep returns the prior run's last recorded step index.
func (rc *RunContext) MaxTimeStep() int {
	last := rc.LastRun()
	if last == nil {
		return 0
	}
	return last.MaxStep
}

// LinkLoadAt returns the prior run's recorded load for linkID at step t.
func (rc *RunContext) LinkLoadAt(t, linkID int) float64 {
	last := rc.LastRun()
	if last == nil {
		return 0
	}
	bucket, ok := last.LinkByStep[t]
	if !ok {
		return 0
	}
	return bucket[linkID]
}

// FlowLoadAt returns the prior run's recorded contribution for flowID at
// step t, if any was sampled.
func (rc *RunContext) FlowLoadAt(t, flowID int) (float64, bool) {
	fr, ok := rc.lastFlow(flowID)
	if !ok {
		return 0, false
	}
	v, ok := fr.ProgressByStep[t]
	return v, ok
}

// AdjustLinkLoad nudges the prior run's stored load for linkID at step t,
// used by the future-load balancer to discount a flow's own prior
// contribution before re-selecting its route (spec.md §4.C).
func (rc *RunContext) AdjustLinkLoad(t, linkID int, delta float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.runs) < 2 {
		return
	}
	last := rc.runs[len(rc.runs)-2]
	bucket, ok := last.LinkByStep[t]
	if !ok {
		bucket = make(map[int]float64)
		last.LinkByStep[t] = bucket
	}
	bucket[linkID] += delta
}

var _ loadbalancer.RunHistory = (*RunContext)(nil)
