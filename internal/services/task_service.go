package services

import (
	"context"
	"errors"
	"time"

	"taskpact.com/taskpact/internal/constants"
	apperr "taskpact.com/taskpact/internal/errors"
	model "taskpact.com/taskpact/internal/models"
	"taskpact.com/taskpact/internal/notify"
	repository "taskpact.com/taskpact/internal/repositories"
)

// TaskService is the single entry point for every state transition, whether
// it originates from a user request or from the deadline scan. Each method
// reads the task, checks the transition against the legal table, and commits
// through one conditional update; the loser of any race observes a stale
// result, never a corrupted state.
type TaskService struct {
	repo     *repository.TaskRepository
	notifier *notify.Notifier
	clock    Clock
}

func NewTaskService(repo *repository.TaskRepository, notifier *notify.Notifier, clock Clock) *TaskService {
	return &TaskService{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
	}
}

func (s *TaskService) CreateTask(
	ctx context.Context,
	title, creatorID, verifierID string,
	deadline time.Time,
	penaltyContent string,
) (*model.Task, error) {
	if verifierID == creatorID {
		return nil, apperr.ErrVerifierIsCreator
	}

	task, err := s.repo.CreateTask(ctx, title, creatorID, verifierID, deadline, penaltyContent)
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(notify.Message{
		Type:    constants.MessageVerifierAdded,
		Payload: map[string]interface{}{"task_id": task.ID, "creator_id": creatorID},
	}, verifierID)

	return task, nil
}

// SubmitProof moves PENDING_PROOF to PENDING_VERIFICATION.
func (s *TaskService) SubmitProof(ctx context.Context, taskID, actorID, proofRef string) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CreatorID != actorID {
		return nil, apperr.ErrForbidden
	}
	if task.State != constants.StatePendingProof {
		return nil, apperr.ErrIllegalTransition
	}

	now := s.clock.Now()
	err = s.repo.TryTransition(ctx, task, repository.TransitionUpdate{
		NewState: constants.StatePendingVerification,
		Fields: map[string]interface{}{
			"submitted_at": now,
			"proof_ref":    proofRef,
		},
	})
	if err != nil {
		return nil, mapStale(err)
	}

	s.notifier.Publish(notify.Message{
		Type:    constants.MessageProofSubmitted,
		Payload: map[string]interface{}{"task_id": task.ID, "submitted_at": now},
	}, task.VerifierID, task.CreatorID)

	return task, nil
}

// Approve moves PENDING_VERIFICATION to COMPLETED, the only terminal state
// with no way back.
func (s *TaskService) Approve(ctx context.Context, taskID, actorID string) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.VerifierID != actorID {
		return nil, apperr.ErrForbidden
	}
	if task.State != constants.StatePendingVerification {
		return nil, apperr.ErrIllegalTransition
	}

	now := s.clock.Now()
	err = s.repo.TryTransition(ctx, task, repository.TransitionUpdate{
		NewState: constants.StateCompleted,
		Fields: map[string]interface{}{
			"verified_at":  now,
			"completed_at": now,
		},
	})
	if err != nil {
		return nil, mapStale(err)
	}

	s.notifier.Publish(notify.Message{
		Type:    constants.MessageTaskUpdated,
		Payload: map[string]interface{}{"task_id": task.ID, "state": task.State},
	}, task.VerifierID, task.CreatorID)

	return task, nil
}

// Reject sends the task back to PENDING_PROOF. The reason is validated before
// any state is touched.
func (s *TaskService) Reject(ctx context.Context, taskID, actorID, reason string) (*model.Task, error) {
	if reason == "" {
		return nil, apperr.ErrReasonRequired
	}

	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.VerifierID != actorID {
		return nil, apperr.ErrForbidden
	}
	if task.State != constants.StatePendingVerification {
		return nil, apperr.ErrIllegalTransition
	}

	now := s.clock.Now()
	err = s.repo.TryTransition(ctx, task, repository.TransitionUpdate{
		NewState: constants.StatePendingProof,
		Fields: map[string]interface{}{
			"rejected_at": now,
		},
	})
	if err != nil {
		return nil, mapStale(err)
	}

	s.notifier.Publish(notify.Message{
		Type:    constants.MessageTaskUpdated,
		Payload: map[string]interface{}{"task_id": task.ID, "state": task.State, "reason": reason},
	}, task.VerifierID, task.CreatorID)

	return task, nil
}

// Pause parks an active task when its verifier relationship is removed. The
// deadline scan skips PAUSED tasks entirely.
func (s *TaskService) Pause(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.State.IsActive() {
		return nil, apperr.ErrIllegalTransition
	}

	err = s.repo.TryTransition(ctx, task, repository.TransitionUpdate{
		NewState: constants.StatePaused,
	})
	if err != nil {
		return nil, mapStale(err)
	}

	s.notifier.Publish(notify.Message{
		Type:    constants.MessageVerifierRemoved,
		Payload: map[string]interface{}{"task_id": task.ID},
	}, task.CreatorID)

	return task, nil
}

// Reassign resumes a PAUSED or MISSED task under a new verifier. The target
// state is derived from whether proof was ever attached, not from the state
// the task held before it was parked.
func (s *TaskService) Reassign(ctx context.Context, taskID, newVerifierID string) (*model.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if newVerifierID == task.CreatorID {
		return nil, apperr.ErrVerifierIsCreator
	}
	if task.State != constants.StatePaused && task.State != constants.StateMissed {
		return nil, apperr.ErrIllegalTransition
	}

	target := constants.StatePendingProof
	if task.HasProof() {
		target = constants.StatePendingVerification
	}
	oldVerifierID := task.VerifierID

	err = s.repo.TryTransition(ctx, task, repository.TransitionUpdate{
		NewState: target,
		Fields: map[string]interface{}{
			"verifier_id": newVerifierID,
		},
	})
	if err != nil {
		return nil, mapStale(err)
	}
	task.VerifierID = newVerifierID

	s.notifier.Publish(notify.Message{
		Type:    constants.MessageVerifierAdded,
		Payload: map[string]interface{}{"task_id": task.ID, "creator_id": task.CreatorID},
	}, newVerifierID)
	s.notifier.Publish(notify.Message{
		Type:    constants.MessageTaskUpdated,
		Payload: map[string]interface{}{"task_id": task.ID, "state": task.State},
	}, oldVerifierID, task.CreatorID)

	return task, nil
}

// MarkMissed is the scheduler's entry point. It reports whether this caller
// committed the MISSED transition; a task already moved out of the active set
// by a racing actor is a silent no-op, not an error. Penalty exposure happens
// inside the same storage transaction as the state commit, so there is never
// a window where one holds without the other.
func (s *TaskService) MarkMissed(ctx context.Context, task *model.Task) (bool, error) {
	if !task.State.IsActive() {
		return false, nil
	}

	penalty, err := s.repo.GetPenaltyByTaskID(ctx, task.ID)
	if err != nil {
		return false, err
	}
	// The deadline was already enforced once for this task. A task resumed
	// from MISSED by reassignment keeps its exposed penalty and must never be
	// missed, or announced as missed, a second time.
	if penalty.Exposed {
		return false, nil
	}

	err = s.repo.TryTransition(ctx, task, repository.TransitionUpdate{
		NewState:      constants.StateMissed,
		ExposePenalty: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return false, nil
		}
		return false, err
	}

	// The task is authoritatively MISSED from here on. Notification problems
	// are logged, never retried, and never unwind the commit.
	s.notifier.Publish(notify.Message{
		Type:    constants.MessageTaskMissed,
		Payload: map[string]interface{}{"task_id": task.ID, "deadline": task.Deadline},
	}, task.CreatorID)
	s.notifier.Publish(notify.Message{
		Type:    constants.MessagePenaltyUnlocked,
		Payload: map[string]interface{}{"task_id": task.ID, "penalty_id": penalty.ID},
	}, task.VerifierID)

	return true, nil
}

// GetPenalty is the authorized read path for penalty content. The verifier
// sees nothing until exposure has flipped; the creator can always read their
// own payload.
func (s *TaskService) GetPenalty(ctx context.Context, taskID, actorID string) (*model.Penalty, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorID != task.CreatorID && actorID != task.VerifierID {
		return nil, apperr.ErrForbidden
	}

	penalty, err := s.repo.GetPenaltyByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if actorID == task.VerifierID && actorID != task.CreatorID && !penalty.Exposed {
		return nil, apperr.ErrPenaltyLocked
	}
	return penalty, nil
}

func (s *TaskService) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.loadTask(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.repo.List(ctx)
}

func (s *TaskService) loadTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.ErrTaskNotFound
	}
	return task, nil
}

func mapStale(err error) error {
	if errors.Is(err, repository.ErrStale) {
		return apperr.ErrStaleTransition
	}
	return err
}
