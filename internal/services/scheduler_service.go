package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"taskpact.com/taskpact/internal/lease"
	repository "taskpact.com/taskpact/internal/repositories"
)

// SchedulerService runs the recurring deadline sweep: every interval it finds
// tasks still active past their deadline and drives each through the MISSED
// transition. Its outward contract is only that the deadline invariant holds;
// races with user actions are expected and silent.
type SchedulerService struct {
	repo      *repository.TaskRepository
	tasks     *TaskService
	scanLease lease.Lease
	clock     Clock
	interval  time.Duration
	batchSize int

	// busy holds one token; a scan that cannot take it means the previous
	// scan is still running and this tick is skipped.
	busy chan struct{}
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewSchedulerService(
	repo *repository.TaskRepository,
	tasks *TaskService,
	scanLease lease.Lease,
	clock Clock,
	interval time.Duration,
	batchSize int,
) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		tasks:     tasks,
		scanLease: scanLease,
		clock:     clock,
		interval:  interval,
		batchSize: batchSize,
		busy:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// Start launches the scan loop. Call at most once.
func (s *SchedulerService) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *SchedulerService) run() {
	defer s.wg.Done()

	log.Printf("deadline scheduler started, interval %s", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ScanOnce(context.Background())
		case <-s.stop:
			log.Println("deadline scheduler stopped")
			return
		}
	}
}

// ScanOnce performs a single sweep and returns how many MISSED transitions
// this caller committed. Overlapping invocations and ticks that lose the
// cross-instance lease are skipped, not queued.
func (s *SchedulerService) ScanOnce(ctx context.Context) int {
	select {
	case s.busy <- struct{}{}:
	default:
		return 0
	}
	defer func() { <-s.busy }()

	if err := s.scanLease.Acquire(ctx); err != nil {
		if !errors.Is(err, lease.ErrLeaseHeld) {
			log.Printf("scan: lease acquire failed: %v", err)
		}
		return 0
	}
	defer func() {
		if err := s.scanLease.Release(ctx); err != nil {
			log.Printf("scan: lease release failed: %v", err)
		}
	}()

	now := s.clock.Now()
	overdue, err := s.repo.FindActivePastDeadline(ctx, now, s.batchSize)
	if err != nil {
		log.Printf("scan: overdue query failed: %v", err)
		return 0
	}

	committed := 0
	for i := range overdue {
		missed, err := s.tasks.MarkMissed(ctx, &overdue[i])
		if err != nil {
			// Storage trouble, not a race. The task stays in the active set
			// and the next sweep picks it up again.
			log.Printf("scan: marking task %s missed: %v", overdue[i].ID, err)
			continue
		}
		if missed {
			committed++
		}
	}

	if committed > 0 {
		log.Printf("scan: %d of %d overdue tasks transitioned to MISSED", committed, len(overdue))
	}
	return committed
}

// Shutdown lets an in-flight scan finish, up to the context deadline.
func (s *SchedulerService) Shutdown(ctx context.Context) {
	close(s.stop)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		// Drain the busy token so a scan started right before stop finishes
		// before we report clean shutdown.
		s.busy <- struct{}{}
		<-s.busy
		close(done)
	}()

	select {
	case <-done:
		log.Println("deadline scheduler shut down cleanly")
	case <-ctx.Done():
		log.Println("deadline scheduler shutdown timed out")
	}
}
