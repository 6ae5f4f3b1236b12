// Package job implements the in-memory job registry and bounded-concurrency
// processor described in spec §4.4: submission, worker pool, per-item
// chunking and sink delivery, and status reads.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oho/chunking-daemon/internal/chunk"
)

// Status is a JobRecord's lifecycle state (§4.4).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the process-local state of one submitted job. Counter fields
// are mutated under mu and read coherently through Snapshot (§4.4 "Status
// read").
type Record struct {
	mu sync.Mutex

	ID         string
	SourceID   string
	SourceKind chunk.SourceKind
	Status     Status
	TotalItems int

	ProcessedItems int
	ChunksCreated  int
	SinkErrors     int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string

	activity []ActivityEntry
}

// ActivityEntry is one bounded progress event in a job's activity log,
// surfaced over the status endpoint (§4.4 "incremental progress reporting").
type ActivityEntry struct {
	TS     string `json:"ts"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}

// maxActivityEntries bounds the in-memory activity log per job so a
// long-running job with many items can't grow its record unboundedly.
const maxActivityEntries = 200

// activityDisplayLimit is how many of the most recent entries the status
// endpoint returns.
const activityDisplayLimit = 50

// Snapshot is a coherent, lock-free-to-read copy of a Record, returned by
// the registry and serialized as the HTTP status response.
type Snapshot struct {
	ID             string           `json:"job_id"`
	SourceID       string           `json:"source_id"`
	SourceKind     chunk.SourceKind `json:"source_kind"`
	Status         Status           `json:"status"`
	TotalItems     int              `json:"total_items"`
	ProcessedItems int              `json:"processed_items"`
	ChunksCreated  int              `json:"chunks_created"`
	SinkErrors     int              `json:"sink_errors"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	Error          string           `json:"error,omitempty"`
	Activity       []ActivityEntry  `json:"activity,omitempty"`
}

func (r *Record) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recent []ActivityEntry
	if n := len(r.activity); n > 0 {
		from := n - activityDisplayLimit
		if from < 0 {
			from = 0
		}
		recent = append(recent, r.activity[from:]...)
	}
	return Snapshot{
		ID:             r.ID,
		SourceID:       r.SourceID,
		SourceKind:     r.SourceKind,
		Status:         r.Status,
		TotalItems:     r.TotalItems,
		ProcessedItems: r.ProcessedItems,
		ChunksCreated:  r.ChunksCreated,
		SinkErrors:     r.SinkErrors,
		CreatedAt:      r.CreatedAt,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Error:          r.Error,
		Activity:       recent,
	}
}

// logActivity appends a bounded progress entry (§4.4, supplemented from the
// teacher's Orchestrator.emit).
func (r *Record) logActivity(action, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity = append(r.activity, ActivityEntry{
		TS:     time.Now().UTC().Format("15:04:05"),
		Action: action,
		Detail: detail,
	})
	if len(r.activity) > maxActivityEntries {
		r.activity = r.activity[len(r.activity)-maxActivityEntries:]
	}
}

func (r *Record) markRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.Status = StatusRunning
	r.StartedAt = &now
}

func (r *Record) bumpProcessed(chunksCreated int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ProcessedItems++
	r.ChunksCreated += chunksCreated
}

func (r *Record) bumpSinkError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SinkErrors++
}

func (r *Record) markCompleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.Status = StatusCompleted
	r.CompletedAt = &now
}

func (r *Record) markFailed(errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.Status = StatusFailed
	r.CompletedAt = &now
	r.Error = errMsg
}

// Registry maps job_id to Record. Entries are created on submission and
// never removed during the process lifetime (§4.4 "State").
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

func (reg *Registry) create(sourceID string, sourceKind chunk.SourceKind, totalItems int) *Record {
	r := &Record{
		ID:         generateID(),
		SourceID:   sourceID,
		SourceKind: sourceKind,
		Status:     StatusPending,
		TotalItems: totalItems,
		CreatedAt:  time.Now().UTC(),
	}
	reg.mu.Lock()
	reg.records[r.ID] = r
	reg.mu.Unlock()
	return r
}

// Get returns a status snapshot for a job_id (§6 "GET /chunk/jobs/{id}").
func (reg *Registry) Get(id string) (Snapshot, bool) {
	reg.mu.RLock()
	r, ok := reg.records[id]
	reg.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// RunningCount reports how many jobs are currently in the running state,
// for the "no more than k simultaneously running" testable property.
func (reg *Registry) RunningCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	n := 0
	for _, r := range reg.records {
		r.mu.Lock()
		if r.Status == StatusRunning {
			n++
		}
		r.mu.Unlock()
	}
	return n
}

func generateID() string {
	return uuid.NewString()
}
