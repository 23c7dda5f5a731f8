package dto

import "time"

type CreateTaskRequest struct {
	Title          string    `json:"title"`
	VerifierID     string    `json:"verifier_id"`
	Deadline       time.Time `json:"deadline"`
	PenaltyContent string    `json:"penalty_content"`
}

type SubmitProofRequest struct {
	ProofRef string `json:"proof_ref"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type ReassignRequest struct {
	VerifierID string `json:"verifier_id"`
}
