// audit/model.go
package audit

import (
	"time"
)

// Action is the kind of document mutation an entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const (
	// DefaultContainer is the collection audit entries themselves live in. It is
	// always excluded from capture to avoid self-recursion.
	DefaultContainer = "audit_logs"

	// SystemActor is recorded when a mutation carries no authenticated actor.
	SystemActor = "system"

	// UnknownClient is recorded when no client IP or user agent is resolvable.
	UnknownClient = "unknown"
)

// FieldChange is one detected difference between two document states. Path is
// the full dotted/bracketed path from the document root and Field its last
// segment, so Field is always a suffix of Path.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
	Path     string `json:"path"`
}

// Entry is one immutable audit record. It is created once after a successful
// mutation and only ever removed by retention cleanup.
type Entry struct {
	ID         string        `json:"id,omitempty"`
	Container  string        `json:"container"`
	DocumentID string        `json:"document_id"`
	Action     Action        `json:"action"`
	ActorID    *int64        `json:"actor_id,omitempty"`
	ActorName  string        `json:"actor_name"`
	Timestamp  time.Time     `json:"timestamp"`
	Changes    []FieldChange `json:"changes"`
	IP         string        `json:"ip"`
	UserAgent  string        `json:"user_agent"`
	Version    int           `json:"version"`
	IsSnapshot bool          `json:"is_snapshot"`
}

// Policy bounds audit storage growth. Zero values fall back to the defaults
// below when classifying.
type Policy struct {
	// WindowDays retains entries newer than latest-entry minus this many days.
	WindowDays int
	// MinVersions retains this many most-recent entries regardless of age.
	MinVersions int
	// MaxDays deletes anything older than now minus this many days, snapshots
	// excepted.
	MaxDays int
}

const (
	DefaultWindowDays  = 90
	DefaultMinVersions = 10
	DefaultMaxDays     = 365

	// DefaultBatchSize caps how many entries a single cleanup pass loads.
	DefaultBatchSize = 1000
)

func (p Policy) withDefaults() Policy {
	if p.WindowDays <= 0 {
		p.WindowDays = DefaultWindowDays
	}
	if p.MinVersions <= 0 {
		p.MinVersions = DefaultMinVersions
	}
	if p.MaxDays <= 0 {
		p.MaxDays = DefaultMaxDays
	}
	return p
}

// CleanupResult aggregates the outcome of a cleanup or preview run. Snapshot
// entries count as both kept and skipped.
type CleanupResult struct {
	Deleted            int `json:"deleted"`
	Kept               int `json:"kept"`
	SkippedSnapshots   int `json:"skipped_snapshots"`
	DocumentsProcessed int `json:"documents_processed"`
}

func (r *CleanupResult) add(other CleanupResult) {
	r.Deleted += other.Deleted
	r.Kept += other.Kept
	r.SkippedSnapshots += other.SkippedSnapshots
	r.DocumentsProcessed += other.DocumentsProcessed
}
