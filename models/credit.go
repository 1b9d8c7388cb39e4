package models

import (
	"errors"
	"time"
)

// ErrInsufficientCredits is returned by Store.Debit when the balance would go
// negative. The check and the decrement are a single atomic step.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrNotFound is the store-agnostic missing-row error.
var ErrNotFound = errors.New("record not found")

// UserCredit holds the current balance, kept equal to the running sum of the
// user's ledger entries.
type UserCredit struct {
	UserID    string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserCredit) TableName() string {
	return "user_credit"
}

// CreditEntry is one append-only ledger row. Debits are negative amounts.
// The (job id, stage type) pair is unique so a re-run of a failed job can
// never double-charge.
type CreditEntry struct {
	ID        string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string  `gorm:"type:varchar(64);index" json:"userId"`
	Amount    int64   `json:"amount"`
	Reason    string  `json:"reason"`
	JobID     *string `gorm:"type:varchar(64);uniqueIndex:idx_job_stage" json:"jobId,omitempty"`
	StageType string  `gorm:"type:varchar(32);uniqueIndex:idx_job_stage" json:"stageType,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (CreditEntry) TableName() string {
	return "credit_entry"
}
