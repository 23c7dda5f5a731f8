package model

import (
	"time"

	"taskpact.com/taskpact/internal/constants"
)

type Task struct {
	ID         string              `gorm:"primaryKey;size:36" json:"id"`
	Title      string              `gorm:"not null" json:"title"`
	CreatorID  string              `gorm:"size:36;not null;index" json:"creator_id"`
	VerifierID string              `gorm:"size:36;not null;index" json:"verifier_id"`
	State      constants.TaskState `gorm:"type:varchar(24);not null;index" json:"state"`
	// Deadline is stored timezone-naive in UTC; display conversion happens upstream.
	Deadline    time.Time  `gorm:"not null" json:"deadline"`
	ProofRef    string     `json:"proof_ref,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     uint       `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HasProof is the single source of truth for the post-reassignment target
// state: a task that ever had proof attached resumes at PENDING_VERIFICATION.
func (t *Task) HasProof() bool {
	return t.SubmittedAt != nil
}
