package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskpact.com/taskpact/internal/constants"
	model "taskpact.com/taskpact/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

// ErrStale means the conditional update matched no row: another actor
// committed a transition between our read and our write.
var ErrStale = errors.New("stale transition: task was modified concurrently")

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateTask inserts the task and its penalty in one transaction. The penalty
// is owned by the task from birth and is never reassigned.
func (r *TaskRepository) CreateTask(
	ctx context.Context,
	title, creatorID, verifierID string,
	deadline time.Time,
	penaltyContent string,
) (*model.Task, error) {
	task := &model.Task{
		ID:         uuid.NewString(),
		Title:      title,
		CreatorID:  creatorID,
		VerifierID: verifierID,
		State:      constants.StatePendingProof,
		Deadline:   deadline.UTC(),
		Version:    1,
		CreatedAt:  time.Now().UTC(),
	}

	sum := sha256.Sum256([]byte(penaltyContent))
	penalty := &model.Penalty{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Content:     penaltyContent,
		Fingerprint: hex.EncodeToString(sum[:]),
		CreatedAt:   task.CreatedAt,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		return tx.Create(penalty).Error
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&tasks).Error
	return tasks, err
}

// FindActivePastDeadline returns tasks still in an active state whose deadline
// is at or before now (UTC). PAUSED tasks are deliberately excluded, as are
// tasks whose penalty is already exposed: their deadline was enforced once and
// reassignment does not grant a fresh epoch.
func (r *TaskRepository) FindActivePastDeadline(ctx context.Context, now time.Time, limit int) ([]model.Task, error) {
	var tasks []model.Task
	query := r.db.WithContext(ctx).
		Where("state IN ? AND deadline <= ?", constants.ActiveStates, now.UTC()).
		Where("NOT EXISTS (SELECT 1 FROM penalties WHERE penalties.task_id = tasks.id AND penalties.exposed = ?)", true).
		Order("deadline asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// TransitionUpdate describes the single conditional write a state transition
// performs. Fields holds the timestamp and payload columns written alongside
// the state column; ExposePenalty flips the write-once exposure flag inside
// the same transaction as the state commit.
type TransitionUpdate struct {
	NewState      constants.TaskState
	Fields        map[string]interface{}
	ExposePenalty bool
}

// TryTransition is the atomic check-then-act at the storage layer: the task
// row is updated only if its version still matches the version the caller
// read. A zero-row match returns ErrStale and writes nothing, penalty
// included.
func (r *TaskRepository) TryTransition(ctx context.Context, task *model.Task, upd TransitionUpdate) error {
	values := map[string]interface{}{
		"state":   upd.NewState,
		"version": gorm.Expr("version + 1"),
	}
	for k, v := range upd.Fields {
		values[k] = v
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND version = ?", task.ID, task.Version).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		if upd.ExposePenalty {
			// Write-once: the exposed = false condition makes any second
			// exposure attempt a no-op.
			expose := tx.Model(&model.Penalty{}).
				Where("task_id = ? AND exposed = ?", task.ID, false).
				Updates(map[string]interface{}{
					"exposed":    true,
					"exposed_at": time.Now().UTC(),
				})
			if expose.Error != nil {
				return expose.Error
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	task.State = upd.NewState
	task.Version++
	return nil
}

func (r *TaskRepository) GetPenaltyByTaskID(ctx context.Context, taskID string) (*model.Penalty, error) {
	var penalty model.Penalty
	err := r.db.WithContext(ctx).First(&penalty, "task_id = ?", taskID).Error
	if err != nil {
		return nil, err
	}
	return &penalty, nil
}
