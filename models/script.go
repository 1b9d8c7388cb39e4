package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// VoiceSettings travels with scripts and TTS job payloads.
type VoiceSettings struct {
	Provider string  `json:"provider"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Pitch    float64 `json:"pitch"`
	Language string  `json:"language"`
}

func (v VoiceSettings) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *VoiceSettings) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, v)
}

// RenderSettings travels with projects and render job payloads.
type RenderSettings struct {
	Resolution         string  `json:"resolution"`
	Format             string  `json:"format"`
	Quality            string  `json:"quality"`
	TransitionDuration float64 `json:"transitionDuration"`
}

func (r RenderSettings) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RenderSettings) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, r)
}

// Script is the narration text for one slide. A slide has at most one active
// script; regeneration replaces it instead of accumulating versions.
type Script struct {
	ID        string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SlideID   string        `gorm:"type:varchar(64);uniqueIndex" json:"slideId"`
	Content   string        `gorm:"type:text" json:"content"`
	Voice     VoiceSettings `gorm:"type:json" json:"voice"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (Script) TableName() string {
	return "script"
}
