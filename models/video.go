package models

import "time"

const (
	VideoStatusPending    = "pending"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
)

// Video is created when the render stage is enqueued and reaches a terminal
// status on the render (plus subtitle, when requested) outcome.
type Video struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID    string         `gorm:"type:varchar(64);index" json:"projectId"`
	Status       string         `json:"status"`
	Settings     RenderSettings `gorm:"type:json" json:"settings"`
	VideoURL     string         `json:"videoUrl,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	SubtitleURL  string         `json:"subtitleUrl,omitempty"`
	DurationSec  float64        `json:"durationSec"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

func (Video) TableName() string {
	return "video"
}
