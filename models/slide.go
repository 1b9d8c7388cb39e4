package models

import "time"

// Slide is created by the parse stage. Later stages only attach derived
// artifacts (script, audio), never rewrite the extracted content.
type Slide struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID string `gorm:"type:varchar(64);index" json:"projectId"`
	// Order is 1-based and contiguous within a project.
	Order       int       `gorm:"column:order_no" json:"order"`
	Title       string    `json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	AudioURL    string    `json:"audioUrl,omitempty"`
	DurationSec float64   `json:"durationSec"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Slide) TableName() string {
	return "slide"
}
