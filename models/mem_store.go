package models

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is the in-memory Store used in stub mode and by tests. A single
// mutex stands in for the conditional UPDATEs the MySQL store relies on.
type MemStore struct {
	mu       sync.Mutex
	projects map[string]*Project
	slides   map[string]*Slide
	scripts  map[string]*Script
	videos   map[string]*Video
	jobs     map[string]*Job
	balances map[string]int64
	entries  []CreditEntry
}

func NewMemStore() *MemStore {
	return &MemStore{
		projects: make(map[string]*Project),
		slides:   make(map[string]*Slide),
		scripts:  make(map[string]*Script),
		videos:   make(map[string]*Video),
		jobs:     make(map[string]*Job),
		balances: make(map[string]int64),
	}
}

// Projects

func (m *MemStore) CreateProject(p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *MemStore) GetProject(id string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemStore) ProjectsByOwner(ownerID string) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

func (m *MemStore) MarkProjectProcessing(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.projects[id]; ok && p.Status == ProjectStatusDraft {
		p.Status = ProjectStatusProcessing
		p.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) MarkProjectFailed(id, errMsg string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.Terminal() {
		return false, nil
	}
	p.Status = ProjectStatusFailed
	p.Error = errMsg
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemStore) MarkProjectCompleted(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.Status != ProjectStatusProcessing {
		return false, nil
	}
	p.Status = ProjectStatusCompleted
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemStore) TryMarkRenderEnqueued(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok || p.RenderEnqueued {
		return false, nil
	}
	p.RenderEnqueued = true
	p.UpdatedAt = time.Now()
	return true, nil
}

// Slides

func (m *MemStore) CreateSlides(slides []Slide) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for i := range slides {
		slides[i].CreatedAt = now
		slides[i].UpdatedAt = now
		cp := slides[i]
		m.slides[cp.ID] = &cp
	}
	return nil
}

func (m *MemStore) GetSlide(id string) (*Slide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) SlidesByProject(projectID string) ([]Slide, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Slide
	for _, s := range m.slides {
		if s.ProjectID == projectID {
			res = append(res, *s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Order < res[j].Order })
	return res, nil
}

func (m *MemStore) SetSlideAudio(id, audioURL string, durationSec float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slides[id]
	if !ok {
		return ErrNotFound
	}
	s.AudioURL = audioURL
	s.DurationSec = durationSec
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MemStore) CountSlidesMissingAudio(projectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slides {
		if s.ProjectID == projectID && s.AudioURL == "" {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) CountSlides(projectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slides {
		if s.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

// Scripts

func (m *MemStore) ReplaceScript(sc *Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.scripts {
		if existing.SlideID == sc.SlideID {
			delete(m.scripts, id)
		}
	}
	sc.CreatedAt = time.Now()
	cp := *sc
	m.scripts[sc.ID] = &cp
	return nil
}

func (m *MemStore) GetScript(id string) (*Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scripts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (m *MemStore) ScriptBySlide(slideID string) (*Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sc := range m.scripts {
		if sc.SlideID == slideID {
			cp := *sc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// Videos

func (m *MemStore) CreateVideo(v *Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	cp := *v
	m.videos[v.ID] = &cp
	return nil
}

func (m *MemStore) GetVideo(id string) (*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemStore) VideoByProject(projectID string) (*Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.videos {
		if v.ProjectID == projectID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) mutateVideo(id string, f func(*Video)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return ErrNotFound
	}
	f(v)
	v.UpdatedAt = time.Now()
	return nil
}

func (m *MemStore) MarkVideoProcessing(id string) error {
	return m.mutateVideo(id, func(v *Video) { v.Status = VideoStatusProcessing })
}

func (m *MemStore) SetVideoArtifact(id, videoURL, thumbnailURL string, durationSec float64) error {
	return m.mutateVideo(id, func(v *Video) {
		v.VideoURL = videoURL
		v.ThumbnailURL = thumbnailURL
		v.DurationSec = durationSec
	})
}

func (m *MemStore) SetVideoSubtitle(id, subtitleURL string) error {
	return m.mutateVideo(id, func(v *Video) { v.SubtitleURL = subtitleURL })
}

func (m *MemStore) MarkVideoCompleted(id string) error {
	return m.mutateVideo(id, func(v *Video) { v.Status = VideoStatusCompleted })
}

func (m *MemStore) MarkVideoFailed(id string) error {
	return m.mutateVideo(id, func(v *Video) { v.Status = VideoStatusFailed })
}

// Jobs

func (m *MemStore) CreateJob(j *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *MemStore) GetJob(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MemStore) JobsByProject(projectID string) ([]Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Job
	for _, j := range m.jobs {
		if j.ProjectID == projectID {
			res = append(res, *j)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (m *MemStore) MarkJobRunning(id string, startedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != JobStatusPending {
		return false, nil
	}
	j.Status = JobStatusRunning
	t := startedAt
	j.StartedAt = &t
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemStore) ApplyJobProgress(id string, percent int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != JobStatusRunning || percent < j.Progress {
		return false, nil
	}
	j.Progress = percent
	j.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemStore) MarkJobTerminal(id, status string, result *JobResult, errMsg, errKind string, finishedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Terminal() {
		return false, nil
	}
	j.Status = status
	if status == JobStatusCompleted {
		j.Progress = 100
	}
	if result != nil {
		cp := *result
		j.Result = &cp
	}
	if errMsg != "" {
		j.Error = errMsg
		j.ErrorKind = errKind
	}
	t := finishedAt
	j.CompletedAt = &t
	j.UpdatedAt = time.Now()
	return true, nil
}

// Credits

func (m *MemStore) EnsureUser(userID string, signupGrant int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; ok {
		return nil
	}
	m.balances[userID] = signupGrant
	if signupGrant > 0 {
		m.entries = append(m.entries, CreditEntry{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    signupGrant,
			Reason:    "signup grant",
			CreatedAt: time.Now(),
		})
	}
	return nil
}

func (m *MemStore) Balance(userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return bal, nil
}

func (m *MemStore) Debit(userID string, amount int64, stage, jobID, reason string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.JobID != nil && *e.JobID == jobID && e.StageType == stage {
			return m.balances[userID], false, nil
		}
	}
	bal, ok := m.balances[userID]
	if !ok {
		return 0, false, ErrNotFound
	}
	if bal < amount {
		return bal, false, ErrInsufficientCredits
	}
	bal -= amount
	m.balances[userID] = bal
	id := jobID
	m.entries = append(m.entries, CreditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    -amount,
		Reason:    reason,
		JobID:     &id,
		StageType: stage,
		CreatedAt: time.Now(),
	})
	return bal, true, nil
}

func (m *MemStore) AddCredit(userID string, amount int64, reason string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[userID]
	if !ok {
		return 0, ErrNotFound
	}
	bal += amount
	m.balances[userID] = bal
	m.entries = append(m.entries, CreditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	return bal, nil
}

func (m *MemStore) EntriesByUser(userID string) ([]CreditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []CreditEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			res = append(res, e)
		}
	}
	return res, nil
}

func (m *MemStore) EntryByJob(jobID, stage string) (*CreditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.JobID != nil && *e.JobID == jobID && e.StageType == stage {
			cp := e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
