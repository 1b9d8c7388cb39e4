package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Stage types. Every unit of pipeline work is one of these.
const (
	StageParse    = "PARSE"
	StageScript   = "SCRIPT_GENERATE"
	StageTTS      = "TTS_GENERATE"
	StageRender   = "VIDEO_RENDER"
	StageSubtitle = "SUBTITLE_GENERATE"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Error kinds recorded on failed jobs so operators can tell a slow external
// from a broken one.
const (
	ErrKindCollaborator = "collaborator_failure"
	ErrKindTimeout      = "timeout"
	ErrKindCredits      = "insufficient_credits"
	ErrKindValidation   = "validation"
)

// Job is one execution record of a stage. Once terminal it is never mutated.
type Job struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID   string     `gorm:"type:varchar(64);index" json:"projectId"`
	StageType   string     `gorm:"type:varchar(32);index" json:"stageType"`
	Status      string     `gorm:"type:varchar(16)" json:"status"`
	Progress    int        `json:"progress"`
	Payload     JobPayload `gorm:"type:json" json:"payload"`
	Result      *JobResult `gorm:"type:json" json:"result"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `gorm:"type:varchar(32)" json:"errorKind,omitempty"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Job) TableName() string {
	return "job"
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JobPayload holds the stage-specific enqueue contract. Exactly one of the
// pointer fields is set, matching StageType.
type JobPayload struct {
	Parse    *ParsePayload    `json:"parse,omitempty"`
	Script   *ScriptPayload   `json:"script,omitempty"`
	TTS      *TTSPayload      `json:"tts,omitempty"`
	Render   *RenderPayload   `json:"render,omitempty"`
	Subtitle *SubtitlePayload `json:"subtitle,omitempty"`
}

type ParsePayload struct {
	ProjectID     string `json:"project_id"`
	SourceFileKey string `json:"source_file_key"`
}

type ScriptPayload struct {
	SlideID      string `json:"slide_id"`
	Content      string `json:"content"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

type TTSPayload struct {
	ScriptID string        `json:"script_id"`
	SlideID  string        `json:"slide_id"`
	Content  string        `json:"content"`
	Voice    VoiceSettings `json:"voice_settings"`
}

type RenderSlide struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	AudioURL    string  `json:"audio_url"`
	ImageURL    string  `json:"image_url,omitempty"`
	DurationSec float64 `json:"duration"`
}

type RenderPayload struct {
	VideoID   string         `json:"video_id"`
	ProjectID string         `json:"project_id"`
	Slides    []RenderSlide  `json:"slides"`
	Settings  RenderSettings `json:"settings"`
}

type SubtitlePayload struct {
	VideoID   string `json:"video_id"`
	ProjectID string `json:"project_id"`
}

func (p JobPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *JobPayload) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, p)
}

// JobResult keeps minimal artifact locators plus stage-specific extras.
type JobResult struct {
	ResourceType string  `json:"resource_type,omitempty"` // "slides", "script", "audio", "video", "subtitle"
	ResourceID   string  `json:"resource_id,omitempty"`
	ResourceURL  string  `json:"resource_url,omitempty"`
	DurationSec  float64 `json:"duration_sec,omitempty"`
	SlideCount   int     `json:"slide_count,omitempty"`
}

func (r JobResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *JobResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, r)
}
