package linking

import (
	"context"
	"errors"
	"time"

	"go_domainlink/internal/model"
	"go_domainlink/internal/verification"

	"github.com/sirupsen/logrus"
)

var _ verification.Driver = (*Orchestrator)(nil)

// RedriveVerification runs one check for a verification the sweep found due.
// Verifications owned by a live monitor here are left alone, and so are those
// of finished intents. Orphans whose intent is gone are expired.
func (o *Orchestrator) RedriveVerification(ctx context.Context, v *model.DomainVerification) (bool, error) {
	if o.hasMonitor(v.ID) {
		return false, nil
	}

	intent, err := o.intents.get(ctx, v.IntentID)
	switch {
	case errors.Is(err, ErrIntentNotFound):
		if err := o.verifications.Expire(ctx, v, "Linking workflow no longer exists"); err != nil && !errors.Is(err, verification.ErrClaimLost) {
			return false, err
		}
		return false, nil
	case err != nil:
		return false, err
	case intent.WorkflowState.IsTerminal():
		return false, nil
	}

	if err := o.verifications.IncrementRetry(ctx, v); err != nil {
		if errors.Is(err, verification.ErrClaimLost) {
			return false, nil
		}
		return false, err
	}

	status, _, err := o.runCheck(ctx, v.ID)
	if err != nil {
		return false, err
	}
	return status == checkContinue || status == checkDone, nil
}

// VerificationExpired fails the intent of a verification the sweep expired,
// if the intent was still waiting on it
func (o *Orchestrator) VerificationExpired(ctx context.Context, v *model.DomainVerification) error {
	intent, unlock, err := o.lockAndLoad(ctx, v.IntentID)
	if errors.Is(err, ErrIntentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer unlock()

	if !expectsVerification(intent, v) {
		return nil
	}
	return o.failLocked(ctx, intent, TimeoutReasonFor(v.VerificationType), v.ErrorMessage)
}

// RecoverIntents resumes active intents nobody drives anymore and retries
// failed intents whose recovery bundle allows it. It returns how many intents
// it re-entered.
func (o *Orchestrator) RecoverIntents(ctx context.Context) (int, error) {
	recovered := 0
	now := time.Now()

	stale, err := o.intents.listStale(ctx, now.Add(-o.cfg.StaleIntentAfter), o.cfg.RecoveryBatchSize)
	if err != nil {
		return 0, err
	}
	for i := range stale {
		ok, err := o.recoverStale(ctx, &stale[i])
		if err != nil {
			o.logger.WithField("intent_id", stale[i].ID).Warnf("Failed to recover stalled workflow: %v", err)
			continue
		}
		if ok {
			recovered++
		}
	}

	failed, err := o.intents.listRetryable(ctx, now.Add(-o.cfg.AutoRetryDelay), o.cfg.AutoRetryLimit, o.cfg.RecoveryBatchSize)
	if err != nil {
		return recovered, err
	}
	for i := range failed {
		intent := &failed[i]
		details, err := DecodeErrorDetails(intent.ErrorDetails)
		if err != nil || details == nil || !details.RecoveryStrategies.AutoRetry {
			continue
		}
		if err := o.RetryIntent(ctx, intent.ID); err != nil {
			if errors.Is(err, ErrActiveIntentExists) {
				o.logger.WithField("intent_id", intent.ID).Infof("Skipping automatic retry: %v", err)
				continue
			}
			o.logger.WithField("intent_id", intent.ID).Warnf("Automatic retry failed: %v", err)
			continue
		}
		o.logger.WithFields(logrus.Fields{
			"intent_id":   intent.ID,
			"reason":      details.FailureReason,
			"retry_count": intent.RetryCount,
		}).Info("Automatically retrying failed workflow")
		recovered++
	}
	return recovered, nil
}

func (o *Orchestrator) recoverStale(ctx context.Context, intent *model.LinkIntent) (bool, error) {
	if o.isRunning(intent.ID) {
		return false, nil
	}
	active, err := o.verifications.GetActiveForIntent(ctx, intent.ID)
	if err != nil {
		return false, err
	}
	if active != nil {
		// the verification sweep drives it
		return false, nil
	}

	if intent.WorkflowState == model.WorkflowStateVerifyingNameservers ||
		intent.WorkflowState == model.WorkflowStateVerifyingOwnership {
		latest, err := o.verifications.GetLatestForIntent(ctx, intent.ID)
		if err != nil {
			return false, err
		}
		if latest != nil {
			switch latest.Status {
			case model.VerificationStatusCompleted:
				return true, o.Finalize(ctx, intent.ID)
			case model.VerificationStatusExpired, model.VerificationStatusFailed:
				return true, o.HandleFailure(ctx, intent.ID,
					string(TimeoutReasonFor(latest.VerificationType)), "verification ended without a result")
			}
		}
	}

	o.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"state":     intent.WorkflowState,
	}).Info("Resuming stalled workflow")
	return true, o.ResumeIntent(ctx, intent.ID)
}
