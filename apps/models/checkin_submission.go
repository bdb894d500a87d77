package models

import (
	"time"

	"github.com/getevo/restify"
	"gorm.io/datatypes"
)

// Submission status constants
const (
	SubmissionStatusPending   = "pending"
	SubmissionStatusForwarded = "forwarded"
	SubmissionStatusFailed    = "failed"
)

// CheckinSubmission records one submitted screen of a guest check-in
type CheckinSubmission struct {
	ID        uint           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID string         `gorm:"column:session_id;size:36;not null;index" json:"session_id"`
	EntityID  string         `gorm:"column:entity_id;size:64;not null;index" json:"entity_id"`
	Screen    string         `gorm:"column:screen;size:15;not null" json:"screen"`
	Payload   datatypes.JSON `gorm:"column:payload;type:json" json:"payload"`
	Status    string         `gorm:"column:status;size:20;not null;default:'pending';index" json:"status"`
	Attempts  int            `gorm:"column:attempts;default:0" json:"attempts"`
	Error     *string        `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	restify.API
}

func (CheckinSubmission) TableName() string {
	return "checkin_submissions"
}

// MarkForwarded records a successful delivery
func (s *CheckinSubmission) MarkForwarded(attempts int) {
	s.Status = SubmissionStatusForwarded
	s.Attempts = attempts
	s.Error = nil
}

// MarkFailed records a failed delivery
func (s *CheckinSubmission) MarkFailed(attempts int, err error) {
	s.Status = SubmissionStatusFailed
	s.Attempts = attempts
	msg := err.Error()
	s.Error = &msg
}
