// Package state records build history in SQLite.
package state

import (
	"context"
	"time"
)

// BuildStatus is the outcome of a build.
type BuildStatus string

const (
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
)

// Build is one recorded pipeline run.
type Build struct {
	ID          string      `json:"id"`
	Source      string      `json:"source"`
	Output      string      `json:"output"`
	DebugOutput string      `json:"debug_output"`
	Frontend    string      `json:"frontend"`
	Status      BuildStatus `json:"status"`
	// Stage is the last stage the run entered before finishing or failing.
	Stage       string    `json:"stage"`
	Error       string    `json:"error,omitempty"`
	SourceHash  string    `json:"source_hash,omitempty"`
	DeployHash  string    `json:"deploy_hash,omitempty"`
	DebugHash   string    `json:"debug_hash,omitempty"`
	DeployBytes int       `json:"deploy_bytes"`
	DebugBytes  int       `json:"debug_bytes"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration is the wall time of the build.
func (b *Build) Duration() time.Duration {
	return b.CompletedAt.Sub(b.StartedAt)
}

// Store persists build history.
type Store interface {
	RecordBuild(ctx context.Context, b *Build) error
	GetBuild(ctx context.Context, id string) (*Build, error)
	ListBuilds(ctx context.Context, limit int) ([]*Build, error)
	Close() error
}
