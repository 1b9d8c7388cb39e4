package models

import "time"

// Store bundles the per-entity repositories behind one interface so the
// pipeline can run against MySQL in production and an in-memory store in stub
// mode and tests. Methods that guard invariants (monotonic progress, terminal
// jobs, the render-enqueue flag, the credit decrement) are conditional at the
// store level: MySQL uses conditional UPDATEs, the memory store a mutex.
type Store interface {
	// Projects
	CreateProject(p *Project) error
	GetProject(id string) (*Project, error)
	ProjectsByOwner(ownerID string) ([]Project, error)
	DeleteProject(id string) error
	MarkProjectProcessing(id string) error
	// MarkProjectFailed records the first failure only; later calls on an
	// already-terminal project are no-ops returning false.
	MarkProjectFailed(id, errMsg string) (bool, error)
	MarkProjectCompleted(id string) (bool, error)
	// TryMarkRenderEnqueued flips the render-enqueued flag at most once per
	// project, reporting whether this call won.
	TryMarkRenderEnqueued(id string) (bool, error)

	// Slides
	CreateSlides(slides []Slide) error
	GetSlide(id string) (*Slide, error)
	SlidesByProject(projectID string) ([]Slide, error)
	// SetSlideAudio records the synthesized audio and its measured duration,
	// replacing the extraction-time estimate.
	SetSlideAudio(id, audioURL string, durationSec float64) error
	// CountSlidesMissingAudio backs the render gate: render is enqueued iff
	// this reaches zero.
	CountSlidesMissingAudio(projectID string) (int, error)
	CountSlides(projectID string) (int, error)

	// Scripts
	ReplaceScript(s *Script) error
	GetScript(id string) (*Script, error)
	ScriptBySlide(slideID string) (*Script, error)

	// Videos
	CreateVideo(v *Video) error
	GetVideo(id string) (*Video, error)
	VideoByProject(projectID string) (*Video, error)
	MarkVideoProcessing(id string) error
	SetVideoArtifact(id, videoURL, thumbnailURL string, durationSec float64) error
	SetVideoSubtitle(id, subtitleURL string) error
	MarkVideoCompleted(id string) error
	MarkVideoFailed(id string) error

	// Jobs
	CreateJob(j *Job) error
	GetJob(id string) (*Job, error)
	JobsByProject(projectID string) ([]Job, error)
	// MarkJobRunning applies only to pending jobs; false means the job was
	// already running or terminal.
	MarkJobRunning(id string, startedAt time.Time) (bool, error)
	// ApplyJobProgress applies only to running jobs and never lowers the
	// recorded percentage.
	ApplyJobProgress(id string, percent int) (bool, error)
	// MarkJobTerminal applies only to non-terminal jobs; false signals an
	// attempted transition on a terminal job.
	MarkJobTerminal(id, status string, result *JobResult, errMsg, errKind string, finishedAt time.Time) (bool, error)

	// Credits
	EnsureUser(userID string, signupGrant int64) error
	Balance(userID string) (int64, error)
	// Debit atomically checks and decrements the balance, appending a ledger
	// entry keyed on (jobID, stage). A repeat call for the same key is a
	// no-op returning the current balance with applied=false.
	Debit(userID string, amount int64, stage, jobID, reason string) (newBalance int64, applied bool, err error)
	AddCredit(userID string, amount int64, reason string) (int64, error)
	EntriesByUser(userID string) ([]CreditEntry, error)
	EntryByJob(jobID, stage string) (*CreditEntry, error)
}
