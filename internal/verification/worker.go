package verification

import (
	"context"
	"time"

	"go_domainlink/internal/model"

	"github.com/sirupsen/logrus"
)

// Driver reacts to what the sweep finds. The linking orchestrator implements it.
type Driver interface {
	// RedriveVerification runs the shared check path for a due verification.
	// It returns false when the verification was skipped (for example because
	// a live monitor in this process owns it).
	RedriveVerification(ctx context.Context, v *model.DomainVerification) (bool, error)
	// VerificationExpired fails the owning intent of a verification the sweep expired
	VerificationExpired(ctx context.Context, v *model.DomainVerification) error
	// RecoverIntents resumes stalled intents and auto-retries eligible failures
	RecoverIntents(ctx context.Context) (int, error)
}

// WorkerConfig holds configuration for the verification sweep
type WorkerConfig struct {
	Enabled     bool
	IntervalSec int
	BatchSize   int
	MaxAge      time.Duration
}

// Stats summarizes one sweep pass
type Stats struct {
	Exhausted  int
	Expired    int
	Candidates int
	Redriven   int
	Skipped    int
	Errors     int
	Recovered  int
}

// Worker periodically re-drives due verifications so none stays unchecked
// after a restart or a lost monitor
type Worker struct {
	service *Service
	driver  Driver
	config  WorkerConfig
	logger  *logrus.Entry
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// NewWorker creates a new verification Worker
func NewWorker(service *Service, driver Driver, config WorkerConfig, logger *logrus.Entry) *Worker {
	if config.IntervalSec <= 0 {
		config.IntervalSec = 60
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxAge <= 0 {
		config.MaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Worker{
		service: service,
		driver:  driver,
		config:  config,
		logger:  logger.WithField("component", "verification-sweep"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start starts the sweep loop
func (w *Worker) Start() {
	w.started = true
	if !w.config.Enabled {
		w.logger.Info("Disabled, not starting")
		close(w.doneCh)
		return
	}

	w.logger.Infof("Starting with interval=%ds, batch_size=%d", w.config.IntervalSec, w.config.BatchSize)
	go w.run()
}

// Stop stops the sweep loop and waits for the current pass to finish
func (w *Worker) Stop() {
	if !w.started {
		return
	}
	w.logger.Info("Stopping...")
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.doneCh
}

func (w *Worker) run() {
	defer close(w.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(time.Duration(w.config.IntervalSec) * time.Second)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-w.stopCh:
			w.logger.Info("Stopped")
			return
		}
	}
}

// RunOnce performs one sweep pass
func (w *Worker) RunOnce(ctx context.Context) Stats {
	var stats Stats

	// Step 1: retry-exhausted verifications leave the active set first
	exhausted, err := w.service.ExpireExhausted(ctx)
	if err != nil {
		w.logger.Errorf("Failed to expire exhausted verifications: %v", err)
	}
	stats.Exhausted = len(exhausted)
	for i := range exhausted {
		if err := w.driver.VerificationExpired(ctx, &exhausted[i]); err != nil {
			stats.Errors++
			w.logger.WithField("verification_id", exhausted[i].ID).Errorf("Failed to fail intent of exhausted verification: %v", err)
		}
	}

	// Step 2: re-drive due verifications
	due, err := w.service.GetPendingVerifications(ctx, w.config.BatchSize)
	if err != nil {
		w.logger.Errorf("Failed to get pending verifications: %v", err)
	}
	stats.Candidates = len(due)
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		driven, err := w.driver.RedriveVerification(ctx, &due[i])
		switch {
		case err != nil:
			stats.Errors++
			w.logger.WithField("verification_id", due[i].ID).Warnf("Re-drive failed: %v", err)
		case driven:
			stats.Redriven++
		default:
			stats.Skipped++
		}
	}

	// Step 3: expire verifications older than the max age
	expired, err := w.service.CleanupExpiredVerifications(ctx, w.config.MaxAge)
	if err != nil {
		w.logger.Errorf("Failed to clean up expired verifications: %v", err)
	}
	stats.Expired = len(expired)
	for i := range expired {
		if err := w.driver.VerificationExpired(ctx, &expired[i]); err != nil {
			stats.Errors++
			w.logger.WithField("verification_id", expired[i].ID).Errorf("Failed to fail intent of expired verification: %v", err)
		}
	}

	// Step 4: stalled intents and automatic retries
	recovered, err := w.driver.RecoverIntents(ctx)
	if err != nil {
		stats.Errors++
		w.logger.Errorf("Failed to recover intents: %v", err)
	}
	stats.Recovered = recovered

	w.logger.WithFields(logrus.Fields{
		"exhausted":  stats.Exhausted,
		"expired":    stats.Expired,
		"candidates": stats.Candidates,
		"redriven":   stats.Redriven,
		"skipped":    stats.Skipped,
		"recovered":  stats.Recovered,
		"errors":     stats.Errors,
	}).Info("Tick done")
	return stats
}
