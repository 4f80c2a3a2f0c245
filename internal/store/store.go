// Package store records run history and writes generated documents to a
// destination.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops-cli/internal/model"
)

// ErrNotFound is returned when a run, phase or document does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Period string          `json:"period,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the run history persistence interface.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, period, source string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Sink accepts named JSON documents placed in a folder. Writing a name that
// already exists in the folder replaces it.
type Sink interface {
	WriteDocument(ctx context.Context, folder, name string, body []byte) error
	// Location describes where documents land, for logs and run records.
	Location() string
}

// Document is a stored artifact.
type Document struct {
	Folder    string    `json:"folder"`
	Name      string    `json:"name"`
	Body      []byte    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
