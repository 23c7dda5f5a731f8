package model

import "time"

// Penalty is owned by exactly one Task and never reassigned. Content stays
// hidden from the verifier until Exposed flips true, which happens at most
// once, inside the same transaction as the MISSED commit.
type Penalty struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	TaskID      string     `gorm:"size:36;not null;uniqueIndex" json:"task_id"`
	Content     string     `gorm:"not null" json:"content,omitempty"`
	Fingerprint string     `gorm:"size:64;not null" json:"fingerprint"`
	Exposed     bool       `gorm:"not null;default:false" json:"exposed"`
	ExposedAt   *time.Time `json:"exposed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
