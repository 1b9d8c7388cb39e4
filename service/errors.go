package service

import (
	"errors"

	"github.com/jitenkr2030/video-shiksha/models"
)

// Pipeline error taxonomy. Workers and the orchestrator classify failures
// with errors.Is so the job ledger records insufficient credits, collaborator
// failures and timeouts distinctly.
var (
	// ErrValidation covers bad input surfaced before any job is created.
	ErrValidation = errors.New("validation failed")
	// ErrCollaborator covers an external backend returning an error.
	ErrCollaborator = errors.New("collaborator failed")
	// ErrTimeout covers a stage exceeding its wall-clock limit.
	ErrTimeout = errors.New("stage timed out")
	// ErrStorageUnavailable covers artifact store failures; the owning stage
	// treats it as a collaborator failure.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInsufficientCredits re-exports the store sentinel so callers only
	// need this package for classification.
	ErrInsufficientCredits = models.ErrInsufficientCredits
)

// errorKind maps an error to the kind persisted on a failed job.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return models.ErrKindTimeout
	case errors.Is(err, ErrInsufficientCredits):
		return models.ErrKindCredits
	case errors.Is(err, ErrValidation):
		return models.ErrKindValidation
	default:
		return models.ErrKindCollaborator
	}
}
