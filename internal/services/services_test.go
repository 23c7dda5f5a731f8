package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"taskpact.com/taskpact/internal/constants"
	apperr "taskpact.com/taskpact/internal/errors"
	model "taskpact.com/taskpact/internal/models"
	"taskpact.com/taskpact/internal/notify"
	"taskpact.com/taskpact/internal/realtime"
	repository "taskpact.com/taskpact/internal/repositories"
)

// fakeChannel records every message pushed to one user.
type fakeChannel struct {
	mu       sync.Mutex
	messages []notify.Message
	closed   bool
}

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var msg notify.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeChannel) count(msgType constants.MessageType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, m := range c.messages {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

// fakeClock is a settable time source for deterministic deadline sweeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	err = db.AutoMigrate(&model.Task{}, &model.Penalty{})
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	return db
}

type testEnv struct {
	repo     *repository.TaskRepository
	service  *TaskService
	notifier *notify.Notifier
	registry *realtime.Registry
	clock    *fakeClock
	creator  *fakeChannel
	verifier *fakeChannel
}

const (
	creatorID  = "user-creator"
	verifierID = "user-verifier"
)

func setupEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)

	registry := realtime.NewRegistry()
	notifier := notify.NewNotifier(registry, 2, 64)

	creator := &fakeChannel{}
	verifier := &fakeChannel{}
	registry.Register(creatorID, creator)
	registry.Register(verifierID, verifier)

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	return &testEnv{
		repo:     repo,
		service:  NewTaskService(repo, notifier, clock),
		notifier: notifier,
		registry: registry,
		clock:    clock,
		creator:  creator,
		verifier: verifier,
	}
}

// drain waits until every published message has been delivered.
func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	e.notifier.Shutdown(context.Background())
}

func (e *testEnv) createTask(t *testing.T, deadline time.Time) *model.Task {
	t.Helper()
	task, err := e.service.CreateTask(
		context.Background(), "ship the report", creatorID, verifierID, deadline, "embarrassing karaoke video",
	)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

func TestCreateTask_RejectsSelfVerification(t *testing.T) {
	env := setupEnv(t)

	_, err := env.service.CreateTask(
		context.Background(), "title", creatorID, creatorID, env.clock.Now().Add(time.Hour), "penalty",
	)
	if err != apperr.ErrVerifierIsCreator {
		t.Errorf("expected ErrVerifierIsCreator, got %v", err)
	}
}

func TestCreateTask_OwnsPenaltyFromBirth(t *testing.T) {
	env := setupEnv(t)
	task := env.createTask(t, env.clock.Now().Add(time.Hour))

	penalty, err := env.repo.GetPenaltyByTaskID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("penalty was not created with the task: %v", err)
	}
	if penalty.Exposed {
		t.Error("penalty must not be exposed at creation")
	}
	if penalty.Fingerprint == "" {
		t.Error("penalty fingerprint must be set")
	}
	if task.State != constants.StatePendingProof {
		t.Errorf("expected initial state %s, got %s", constants.StatePendingProof, task.State)
	}
}

func TestSubmitApproveFlow(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Hour))

	if _, err := env.service.SubmitProof(ctx, task.ID, creatorID, "s3://proof/1"); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}

	updated, _ := env.service.GetTask(ctx, task.ID)
	if updated.State != constants.StatePendingVerification {
		t.Fatalf("expected %s, got %s", constants.StatePendingVerification, updated.State)
	}
	if updated.SubmittedAt == nil {
		t.Fatal("submitted_at must be set")
	}

	if _, err := env.service.Approve(ctx, task.ID, verifierID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	final, _ := env.service.GetTask(ctx, task.ID)
	if final.State != constants.StateCompleted {
		t.Errorf("expected %s, got %s", constants.StateCompleted, final.State)
	}
	if final.CompletedAt == nil || final.VerifiedAt == nil {
		t.Error("completed_at and verified_at must be set")
	}

	env.drain(t)
	if got := env.verifier.count(constants.MessageProofSubmitted); got != 1 {
		t.Errorf("verifier expected 1 PROOF_SUBMITTED, got %d", got)
	}
	if got := env.creator.count(constants.MessageTaskUpdated); got != 1 {
		t.Errorf("creator expected 1 TASK_UPDATED, got %d", got)
	}
}

func TestApprove_IllegalFromPendingProof(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Hour))

	_, err := env.service.Approve(ctx, task.ID, verifierID)
	if err != apperr.ErrIllegalTransition {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	unchanged, _ := env.service.GetTask(ctx, task.ID)
	if unchanged.State != constants.StatePendingProof {
		t.Errorf("state must be unchanged, got %s", unchanged.State)
	}

	env.drain(t)
	if got := env.creator.count(constants.MessageTaskUpdated); got != 0 {
		t.Errorf("a rejected transition must emit no notifications, got %d", got)
	}
}

func TestReject_RequiresReasonBeforeAnyChange(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Hour))
	if _, err := env.service.SubmitProof(ctx, task.ID, creatorID, "proof"); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}

	if _, err := env.service.Reject(ctx, task.ID, verifierID, ""); err != apperr.ErrReasonRequired {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	unchanged, _ := env.service.GetTask(ctx, task.ID)
	if unchanged.State != constants.StatePendingVerification {
		t.Errorf("empty reason must not change state, got %s", unchanged.State)
	}

	if _, err := env.service.Reject(ctx, task.ID, verifierID, "blurry photo"); err != nil {
		t.Fatalf("reject with reason failed: %v", err)
	}
	rejected, _ := env.service.GetTask(ctx, task.ID)
	if rejected.State != constants.StatePendingProof {
		t.Errorf("expected %s after reject, got %s", constants.StatePendingProof, rejected.State)
	}
	if rejected.RejectedAt == nil {
		t.Error("rejected_at must be set")
	}
}

func TestTransitions_EnforceActorRoles(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Hour))

	if _, err := env.service.SubmitProof(ctx, task.ID, verifierID, "proof"); err != apperr.ErrForbidden {
		t.Errorf("only the creator may submit proof, got %v", err)
	}
	if _, err := env.service.SubmitProof(ctx, task.ID, creatorID, "proof"); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}
	if _, err := env.service.Approve(ctx, task.ID, creatorID); err != apperr.ErrForbidden {
		t.Errorf("only the verifier may approve, got %v", err)
	}
}

func TestMarkMissed_ExposesPenaltyExactlyOnce(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Minute))
	env.clock.Advance(2 * time.Minute)

	loaded, _ := env.repo.FindByID(ctx, task.ID)
	missed, err := env.service.MarkMissed(ctx, loaded)
	if err != nil {
		t.Fatalf("mark missed failed: %v", err)
	}
	if !missed {
		t.Fatal("first caller must commit the MISSED transition")
	}

	// A racing caller with a stale copy observes a silent no-op.
	stale, _ := env.repo.FindByID(ctx, task.ID)
	stale.Version--
	stale.State = constants.StatePendingProof
	missedAgain, err := env.service.MarkMissed(ctx, stale)
	if err != nil {
		t.Fatalf("stale mark missed must be a no-op, got error: %v", err)
	}
	if missedAgain {
		t.Fatal("second caller must not commit MISSED again")
	}

	penalty, _ := env.repo.GetPenaltyByTaskID(ctx, task.ID)
	if !penalty.Exposed {
		t.Error("penalty must be exposed after MISSED")
	}

	env.drain(t)
	if got := env.verifier.count(constants.MessagePenaltyUnlocked); got != 1 {
		t.Errorf("verifier expected exactly 1 PENALTY_UNLOCKED, got %d", got)
	}
	if got := env.creator.count(constants.MessageTaskMissed); got != 1 {
		t.Errorf("creator expected exactly 1 TASK_MISSED, got %d", got)
	}
}

func TestApproveVersusMissRace_OneWinner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Minute))
	if _, err := env.service.SubmitProof(ctx, task.ID, creatorID, "proof"); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}
	env.clock.Advance(2 * time.Minute)

	loaded, _ := env.repo.FindByID(ctx, task.ID)

	var wg sync.WaitGroup
	wg.Add(2)
	var approveErr error
	var missCommitted bool

	go func() {
		defer wg.Done()
		_, approveErr = env.service.Approve(ctx, task.ID, verifierID)
	}()
	go func() {
		defer wg.Done()
		missCommitted, _ = env.service.MarkMissed(ctx, loaded)
	}()
	wg.Wait()

	final, _ := env.service.GetTask(ctx, task.ID)
	switch final.State {
	case constants.StateCompleted:
		if approveErr != nil {
			t.Errorf("COMPLETED final state but approve failed: %v", approveErr)
		}
		if missCommitted {
			t.Error("miss must lose when approve won")
		}
	case constants.StateMissed:
		if !missCommitted {
			t.Error("MISSED final state but miss reported no commit")
		}
		if approveErr == nil {
			t.Error("approve must observe a conflict when miss won")
		}
	default:
		t.Errorf("final state must be COMPLETED or MISSED, got %s", final.State)
	}
}

func TestReassign_TargetStateDerivedFromProof(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// Proof-less task: pause, then reassign lands at PENDING_PROOF.
	noProof := env.createTask(t, env.clock.Now().Add(time.Hour))
	if _, err := env.service.Pause(ctx, noProof.ID); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	reassigned, err := env.service.Reassign(ctx, noProof.ID, "user-other")
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if reassigned.State != constants.StatePendingProof {
		t.Errorf("proof-less reassignment must land at %s, got %s", constants.StatePendingProof, reassigned.State)
	}
	if reassigned.VerifierID != "user-other" {
		t.Errorf("verifier must be replaced, got %s", reassigned.VerifierID)
	}

	// Task with proof attached: MISSED, then reassign resumes verification.
	withProof := env.createTask(t, env.clock.Now().Add(time.Minute))
	if _, err := env.service.SubmitProof(ctx, withProof.ID, creatorID, "proof"); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}
	env.clock.Advance(2 * time.Minute)
	loaded, _ := env.repo.FindByID(ctx, withProof.ID)
	if missed, _ := env.service.MarkMissed(ctx, loaded); !missed {
		t.Fatal("mark missed must commit")
	}
	resumed, err := env.service.Reassign(ctx, withProof.ID, "user-other")
	if err != nil {
		t.Fatalf("reassign from MISSED failed: %v", err)
	}
	if resumed.State != constants.StatePendingVerification {
		t.Errorf("reassignment with proof must land at %s, got %s", constants.StatePendingVerification, resumed.State)
	}
}

func TestReassign_IllegalFromActiveOrCompleted(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Hour))

	if _, err := env.service.Reassign(ctx, task.ID, "user-other"); err != apperr.ErrIllegalTransition {
		t.Errorf("reassign from active state must be illegal, got %v", err)
	}

	if _, err := env.service.SubmitProof(ctx, task.ID, creatorID, "proof"); err != nil {
		t.Fatalf("submit proof failed: %v", err)
	}
	if _, err := env.service.Approve(ctx, task.ID, verifierID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := env.service.Pause(ctx, task.ID); err != apperr.ErrIllegalTransition {
		t.Errorf("COMPLETED is terminal, pause must be illegal, got %v", err)
	}
	if _, err := env.service.Reassign(ctx, task.ID, "user-other"); err != apperr.ErrIllegalTransition {
		t.Errorf("COMPLETED is terminal, reassign must be illegal, got %v", err)
	}
}

func TestGetPenalty_SecrecyUntilExposure(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	task := env.createTask(t, env.clock.Now().Add(time.Minute))

	if _, err := env.service.GetPenalty(ctx, task.ID, verifierID); err != apperr.ErrPenaltyLocked {
		t.Fatalf("verifier read before exposure must be denied, got %v", err)
	}
	if _, err := env.service.GetPenalty(ctx, task.ID, "user-stranger"); err != apperr.ErrForbidden {
		t.Fatalf("stranger read must be forbidden, got %v", err)
	}
	if _, err := env.service.GetPenalty(ctx, task.ID, creatorID); err != nil {
		t.Fatalf("creator may always read their own penalty: %v", err)
	}

	env.clock.Advance(2 * time.Minute)
	loaded, _ := env.repo.FindByID(ctx, task.ID)
	if missed, _ := env.service.MarkMissed(ctx, loaded); !missed {
		t.Fatal("mark missed must commit")
	}

	penalty, err := env.service.GetPenalty(ctx, task.ID, verifierID)
	if err != nil {
		t.Fatalf("verifier read after exposure must succeed: %v", err)
	}
	if penalty.Content == "" {
		t.Error("exposed penalty must return its content")
	}
}

func TestConcurrentCreates(t *testing.T) {
	env := setupEnv(t)

	const concurrentCount = 30
	var wg sync.WaitGroup
	wg.Add(concurrentCount)

	errs := make(chan error, concurrentCount)
	deadline := env.clock.Now().Add(time.Hour)

	for i := 0; i < concurrentCount; i++ {
		go func() {
			defer wg.Done()
			_, err := env.service.CreateTask(
				context.Background(), "title", creatorID, verifierID, deadline, "penalty",
			)
			if err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent creation failed: %v", err)
	}

	tasks, _ := env.service.ListTasks(context.Background())
	if len(tasks) != concurrentCount {
		t.Errorf("expected %d tasks, got %d", concurrentCount, len(tasks))
	}
}
