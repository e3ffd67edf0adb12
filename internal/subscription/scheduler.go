package subscription

import (
	"context"
	"fmt"
	"sync"
	"time"

	"studyhall-platform/internal/logging"
)

// SessionCleaner removes expired auth sessions. Implemented by the auth
// service; the sweep owns the timer so there is a single background clock.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) error
}

// CheckpointInvalidator bumps the per-user checkpoint epoch so stale
// client-held flags stop being trusted after a durable transition.
type CheckpointInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// SchedulerConfig holds sweep scheduling configuration
type SchedulerConfig struct {
	SweepInterval          time.Duration
	SessionCleanupInterval time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SweepInterval:          15 * time.Minute,
		SessionCleanupInterval: 1 * time.Hour,
	}
}

// Scheduler runs the expiry sweep and session cleanup on timers
type Scheduler struct {
	service     *Service
	sessions    SessionCleaner
	invalidator CheckpointInvalidator
	config      *SchedulerConfig
	logger      *logging.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	lastRun  time.Time
	nextRun  time.Time
}

// NewScheduler creates a new lifecycle scheduler
func NewScheduler(service *Service, sessions SessionCleaner, invalidator CheckpointInvalidator, config *SchedulerConfig, logger *logging.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}

	return &Scheduler{
		service:     service,
		sessions:    sessions,
		invalidator: invalidator,
		config:      config,
		logger:      logger.WithComponent("lifecycle-scheduler"),
		stopChan:    make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("Starting lifecycle scheduler",
		"sweep_interval", s.config.SweepInterval,
		"session_cleanup_interval", s.config.SessionCleanupInterval)

	s.wg.Add(1)
	go s.runSweepLoop()

	if s.sessions != nil {
		s.wg.Add(1)
		go s.runSessionCleanupLoop()
	}

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping lifecycle scheduler")
	close(s.stopChan)
	s.wg.Wait()

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStatus returns the scheduler status
func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"running":        s.running,
		"last_run":       s.lastRun,
		"next_run":       s.nextRun,
		"sweep_interval": s.config.SweepInterval.String(),
	}
}

// RunSweepNow runs one sweep immediately, outside the timer. Used by the
// admin endpoint and by startup to catch rows that expired while the service
// was down.
func (s *Scheduler) RunSweepNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.nextRun = s.lastRun.Add(s.config.SweepInterval)
	s.mu.Unlock()

	expired, err := s.service.Sweep(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	if s.invalidator != nil {
		for _, sub := range expired {
			s.invalidator.Invalidate(ctx, sub.UserID)
		}
	}

	return len(expired), nil
}

func (s *Scheduler) runSweepLoop() {
	defer s.wg.Done()

	// Catch anything that expired while we were down
	if _, err := s.RunSweepNow(context.Background()); err != nil {
		s.logger.Error("Initial expiry sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.RunSweepNow(context.Background()); err != nil {
				s.logger.Error("Expiry sweep failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) runSessionCleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.SessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.sessions.CleanupExpiredSessions(context.Background()); err != nil {
				s.logger.Error("Session cleanup failed", "error", err)
			}
		}
	}
}
