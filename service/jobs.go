package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jitenkr2030/video-shiksha/models"
)

// OutcomeListener receives terminal job transitions. The orchestrator
// registers itself here and decides what to enqueue next.
type OutcomeListener interface {
	JobCompleted(job *models.Job)
	JobFailed(job *models.Job)
}

// Ledger is the durable record of every unit of work. Transitions on a
// terminal job are no-ops, logged as invariant violations rather than
// silently swallowed.
type Ledger struct {
	store    models.Store
	listener OutcomeListener
}

func NewLedger(store models.Store) *Ledger {
	return &Ledger{store: store}
}

// SetOutcomeListener wires the orchestrator in after construction; ledger and
// orchestrator reference each other.
func (l *Ledger) SetOutcomeListener(listener OutcomeListener) {
	l.listener = listener
}

// Create persists a new pending job for one stage invocation.
func (l *Ledger) Create(projectID, stageType string, payload models.JobPayload) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		StageType: stageType,
		Status:    models.JobStatusPending,
		Progress:  0,
		Payload:   payload,
	}
	if err := l.store.CreateJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (l *Ledger) Get(jobID string) (*models.Job, error) {
	return l.store.GetJob(jobID)
}

func (l *Ledger) MarkRunning(jobID string) error {
	applied, err := l.store.MarkJobRunning(jobID, time.Now())
	if err != nil {
		return err
	}
	if !applied {
		log.Warn().Str("job_id", jobID).Msg("mark running on non-pending job ignored")
	}
	return nil
}

// UpdateProgress records a checkpoint. Regressions are rejected at the store
// and logged here.
func (l *Ledger) UpdateProgress(jobID string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	applied, err := l.store.ApplyJobProgress(jobID, percent)
	if err != nil {
		return err
	}
	if !applied {
		log.Warn().Str("job_id", jobID).Int("percent", percent).Msg("progress update rejected")
	}
	return nil
}

func (l *Ledger) MarkCompleted(jobID string, result *models.JobResult) error {
	applied, err := l.store.MarkJobTerminal(jobID, models.JobStatusCompleted, result, "", "", time.Now())
	if err != nil {
		return err
	}
	if !applied {
		log.Warn().Str("job_id", jobID).Msg("completion of terminal job ignored")
		return nil
	}
	l.notify(jobID)
	return nil
}

func (l *Ledger) MarkFailed(jobID string, jobErr error) error {
	applied, err := l.store.MarkJobTerminal(jobID, models.JobStatusFailed, nil, jobErr.Error(), errorKind(jobErr), time.Now())
	if err != nil {
		return err
	}
	if !applied {
		log.Warn().Str("job_id", jobID).Msg("failure of terminal job ignored")
		return nil
	}
	l.notify(jobID)
	return nil
}

func (l *Ledger) notify(jobID string) {
	if l.listener == nil {
		return
	}
	job, err := l.store.GetJob(jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("reload job for outcome notification failed")
		return
	}
	switch job.Status {
	case models.JobStatusCompleted:
		l.listener.JobCompleted(job)
	case models.JobStatusFailed:
		l.listener.JobFailed(job)
	}
}
