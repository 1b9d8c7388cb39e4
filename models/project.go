package models

import "time"

const (
	ProjectStatusDraft      = "draft"
	ProjectStatusProcessing = "processing"
	ProjectStatusCompleted  = "completed"
	ProjectStatusFailed     = "failed"
)

type Project struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID       string    `gorm:"type:varchar(64);index" json:"ownerId"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	SourceFileKey string    `json:"sourceFileKey"`
	// Subtitles toggles the SUBTITLE_GENERATE stage after render.
	Subtitles      bool           `json:"subtitles"`
	Voice          VoiceSettings  `gorm:"type:json" json:"voice"`
	Render         RenderSettings `gorm:"type:json" json:"render"`
	Error          string         `json:"error,omitempty"`
	// RenderEnqueued guards the project-level render stage: set at most once,
	// by a conditional update, when the last slide gains audio.
	RenderEnqueued bool      `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}

// Terminal reports whether the project may no longer change status.
func (p *Project) Terminal() bool {
	return p.Status == ProjectStatusCompleted || p.Status == ProjectStatusFailed
}
