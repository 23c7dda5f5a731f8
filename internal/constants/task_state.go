package constants

type TaskState string

const (
	StatePendingProof        TaskState = "PENDING_PROOF"
	StatePendingVerification TaskState = "PENDING_VERIFICATION"
	StateCompleted           TaskState = "COMPLETED"
	StateMissed              TaskState = "MISSED"
	StatePaused              TaskState = "PAUSED"
)

// ActiveStates are the states the deadline scan considers overdue-eligible.
// PAUSED tasks keep their deadline but are excluded until reassignment.
var ActiveStates = []TaskState{StatePendingProof, StatePendingVerification}

func (s TaskState) IsActive() bool {
	return s == StatePendingProof || s == StatePendingVerification
}
