package stores

import (
	"time"

	"github.com/jfarrimo/frycook/pkg/engine"
	"github.com/jfarrimo/frycook/pkg/environment"
)

// RunRecord is a journaled run.
type RunRecord struct {
	ID          string           `json:"id"`
	Mode        string           `json:"mode"`
	Targets     []string         `json:"targets"`
	Status      engine.RunStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	HostsTotal  int              `json:"hosts_total"`
	HostsFailed int              `json:"hosts_failed"`
}

// Duration is the wall time of a finished run, or zero.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ItemRecord is the journaled outcome of one work item on one host.
type ItemRecord struct {
	ID             int64             `json:"id"`
	RunID          string            `json:"run_id"`
	Host           string            `json:"host"`
	Kind           string            `json:"kind"`
	Name           string            `json:"name"`
	Status         engine.ItemStatus `json:"status"`
	Error          string            `json:"error,omitempty"`
	FilesWritten   int               `json:"files_written"`
	FilesUnchanged int               `json:"files_unchanged"`
	FilesDeleted   int               `json:"files_deleted"`
	FilesSkipped   int               `json:"files_skipped"`
	Duration       time.Duration     `json:"duration"`
	RecordedAt     time.Time         `json:"recorded_at"`
}

// Item returns the work item the record describes.
func (r *ItemRecord) Item() engine.WorkItem {
	return engine.WorkItem{Kind: environment.ComponentKind(r.Kind), Name: r.Name}
}
