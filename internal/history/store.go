// Package history keeps past comparison runs so the HTTP API can list them.
//
// Runs are stored as their full JSON report plus a summary row. PostgresStore
// is used when a database is configured, MemoryStore otherwise.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvcompare/internal/report"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Store persists comparison runs.
type Store interface {
	Save(ctx context.Context, run *report.Run) error
	// List returns the most recent runs first.
	List(ctx context.Context, limit int) ([]Summary, error)
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// Prune deletes runs started before cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Summary is the listing view of a run.
type Summary struct {
	ID          uuid.UUID     `json:"id"`
	Source      string        `json:"source"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	AllOkay     bool          `json:"all_okay"`
	Rules       int           `json:"rules"`
	Files       int           `json:"files"`
	FailedFiles int           `json:"failed_files"`
}

// Record is a stored run: its summary and the JSON report.
type Record struct {
	Summary
	Report []byte `json:"-"`
}

// Summarize builds the summary of a finished run.
func Summarize(run *report.Run) Summary {
	files, failed := run.Counts()
	return Summary{
		ID:          run.ID,
		Source:      run.Source,
		StartedAt:   run.StartedAt,
		Duration:    run.Duration,
		AllOkay:     run.AllOkay,
		Rules:       len(run.Rules),
		Files:       files,
		FailedFiles: failed,
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
