package constants

type MessageType string

const (
	MessageProofSubmitted  MessageType = "PROOF_SUBMITTED"
	MessageTaskUpdated     MessageType = "TASK_UPDATED"
	MessageTaskMissed      MessageType = "TASK_MISSED"
	MessagePenaltyUnlocked MessageType = "PENALTY_UNLOCKED"
	MessageVerifierAdded   MessageType = "VERIFIER_ADDED"
	MessageVerifierRemoved MessageType = "VERIFIER_REMOVED"
	MessagePresenceChanged MessageType = "PRESENCE_CHANGED"
)
