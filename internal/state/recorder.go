package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/leapstack-labs/ajanta/internal/pipeline"
)

// Recorder stores pipeline reports as builds.
type Recorder struct {
	Store Store
}

// NewRecorder returns a pipeline.Recorder backed by store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{Store: store}
}

// Record implements pipeline.Recorder.
func (r *Recorder) Record(ctx context.Context, report *pipeline.Report) error {
	return r.Store.RecordBuild(ctx, BuildFromReport(report))
}

// BuildFromReport converts a pipeline report into a Build. The source is
// hashed as it is on disk now; an unreadable source leaves the hash empty.
func BuildFromReport(report *pipeline.Report) *Build {
	b := &Build{
		Source:      report.Request.Source(),
		Output:      report.Request.Output(),
		DebugOutput: report.Request.DebugPath(),
		Frontend:    report.Frontend,
		Status:      BuildStatusSucceeded,
		Stage:       report.Reached.String(),
		StartedAt:   report.StartedAt,
		CompletedAt: report.FinishedAt,
	}
	if report.Err != nil {
		b.Status = BuildStatusFailed
		b.Error = report.Err.Error()
	}
	if data, err := os.ReadFile(report.Request.Source()); err == nil {
		b.SourceHash = digest(data)
	}
	if res := report.Result; res != nil {
		b.DeployHash = digest(res.DeployBlob)
		b.DebugHash = digest(res.DebugBlob)
		b.DeployBytes = len(res.DeployBlob)
		b.DebugBytes = len(res.DebugBlob)
	}
	return b
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
