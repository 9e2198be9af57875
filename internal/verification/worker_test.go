package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go_domainlink/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	mu        sync.Mutex
	calls     []string
	redriven  []string
	expired   []string
	skip      map[string]bool
	redriveFn func(v *model.DomainVerification) error
	recovered int
}

func (d *fakeDriver) RedriveVerification(_ context.Context, v *model.DomainVerification) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "redrive")
	if d.skip[v.ID] {
		return false, nil
	}
	if d.redriveFn != nil {
		if err := d.redriveFn(v); err != nil {
			return false, err
		}
	}
	d.redriven = append(d.redriven, v.ID)
	return true, nil
}

func (d *fakeDriver) VerificationExpired(_ context.Context, v *model.DomainVerification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "expired")
	d.expired = append(d.expired, v.ID)
	return nil
}

func (d *fakeDriver) RecoverIntents(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "recover")
	return d.recovered, nil
}

func TestRunOnce_Order(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	exhausted := createNS(t, s, "intent-exhausted")
	require.NoError(t, db.Model(&model.DomainVerification{}).Where("id = ?", exhausted.ID).
		Updates(map[string]interface{}{"retry_count": MaxSweepRetries, "next_check_at": time.Now().Add(-time.Minute)}).Error)

	due := createNS(t, s, "intent-due")
	makeDue(t, db, due.ID, time.Now().Add(-time.Minute))

	stale := createNS(t, s, "intent-stale")
	require.NoError(t, db.Model(&model.DomainVerification{}).Where("id = ?", stale.ID).
		UpdateColumn("created_at", time.Now().Add(-48*time.Hour)).Error)

	driver := &fakeDriver{recovered: 2}
	w := NewWorker(s, driver, WorkerConfig{Enabled: true, BatchSize: 10, MaxAge: 24 * time.Hour}, nil)

	stats := w.RunOnce(ctx)

	assert.Equal(t, 1, stats.Exhausted)
	assert.Equal(t, 1, stats.Candidates)
	assert.Equal(t, 1, stats.Redriven)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 2, stats.Recovered)
	assert.Equal(t, 0, stats.Errors)

	assert.Equal(t, []string{"expired", "redrive", "expired", "recover"}, driver.calls)
	assert.Equal(t, []string{due.ID}, driver.redriven)
	assert.Equal(t, []string{exhausted.ID, stale.ID}, driver.expired)
}

func TestRunOnce_SkipsAndErrors(t *testing.T) {
	s, db := newTestService(t)

	owned := createNS(t, s, "intent-owned")
	broken := createNS(t, s, "intent-broken")
	makeDue(t, db, owned.ID, time.Now().Add(-2*time.Minute))
	makeDue(t, db, broken.ID, time.Now().Add(-time.Minute))

	driver := &fakeDriver{
		skip: map[string]bool{owned.ID: true},
		redriveFn: func(v *model.DomainVerification) error {
			return errors.New("database is locked")
		},
	}
	w := NewWorker(s, driver, WorkerConfig{Enabled: true}, nil)

	stats := w.RunOnce(context.Background())

	assert.Equal(t, 2, stats.Candidates)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.Redriven)
}

func TestWorker_StartStop(t *testing.T) {
	s, _ := newTestService(t)
	driver := &fakeDriver{}
	w := NewWorker(s, driver, WorkerConfig{Enabled: true, IntervalSec: 3600}, nil)

	w.Start()
	require.Eventually(t, func() bool {
		driver.mu.Lock()
		defer driver.mu.Unlock()
		return len(driver.calls) > 0
	}, time.Second, 10*time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestWorker_Disabled(t *testing.T) {
	s, _ := newTestService(t)
	driver := &fakeDriver{}
	w := NewWorker(s, driver, WorkerConfig{Enabled: false}, nil)

	w.Start()
	w.Stop()
	assert.Empty(t, driver.calls)
}
