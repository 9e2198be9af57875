package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go_domainlink/internal/model"
	"go_domainlink/internal/verification"

	"github.com/sirupsen/logrus"
)

// checkStatus is what one check round means for the driver that ran it
type checkStatus int

const (
	// checkContinue means DNS has not propagated yet
	checkContinue checkStatus = iota
	// checkSkipped means another driver owns this round
	checkSkipped
	// checkInactive means the verification or its intent no longer awaits a check
	checkInactive
	// checkDone means the verification reached a terminal outcome
	checkDone
)

func (s checkStatus) String() string {
	switch s {
	case checkContinue:
		return "continue"
	case checkSkipped:
		return "skipped"
	case checkInactive:
		return "inactive"
	default:
		return "done"
	}
}

// expectsVerification reports whether intent is still waiting on v
func expectsVerification(intent *model.LinkIntent, v *model.DomainVerification) bool {
	switch v.VerificationType {
	case model.VerificationTypeNameserverChange:
		if intent.WorkflowState != model.WorkflowStateVerifyingNameservers &&
			intent.WorkflowState != model.WorkflowStateAwaitingUserChoice {
			return false
		}
	case model.VerificationTypeDNSTXT:
		if intent.WorkflowState != model.WorkflowStateVerifyingOwnership &&
			intent.WorkflowState != model.WorkflowStateAwaitingUserChoice {
			return false
		}
	default:
		return false
	}
	cfg, err := DecodeConfiguration(intent.ConfigurationData)
	if err != nil {
		return false
	}
	return cfg.VerificationID == v.ID
}

// runCheck is the single check path shared by monitors, the sweep and user
// confirmation. The DNS query runs without the intent lock; its outcome is
// applied under the lock after re-validating the intent.
func (o *Orchestrator) runCheck(ctx context.Context, verificationID string) (checkStatus, verification.CheckResult, error) {
	var none verification.CheckResult

	v, err := o.verifications.Get(ctx, verificationID)
	if errors.Is(err, verification.ErrVerificationNotFound) {
		return checkInactive, none, nil
	}
	if err != nil {
		return checkInactive, none, err
	}
	if !v.Status.IsActive() {
		return checkInactive, none, nil
	}

	intent, err := o.intents.get(ctx, v.IntentID)
	if errors.Is(err, ErrIntentNotFound) {
		return checkInactive, none, nil
	}
	if err != nil {
		return checkInactive, none, err
	}

	log := o.logger.WithFields(logrus.Fields{
		"intent_id":       intent.ID,
		"domain":          intent.DomainName,
		"verification_id": v.ID,
	})
	if !expectsVerification(intent, v) {
		log.Debugf("Workflow in %s no longer expects this verification", intent.WorkflowState)
		return checkInactive, none, nil
	}

	if err := o.verifications.Claim(ctx, v); err != nil {
		if errors.Is(err, verification.ErrClaimLost) {
			return checkSkipped, none, nil
		}
		return checkInactive, none, err
	}

	res := o.checker.Check(ctx, v, intent.DomainName)
	if err := ctx.Err(); err != nil {
		return checkInactive, res, err
	}
	o.metrics.IncVerificationCheck(string(v.VerificationType), string(res.Outcome))

	intent, unlock, err := o.lockAndLoad(ctx, intent.ID)
	if err != nil {
		return checkInactive, res, err
	}
	defer unlock()

	if !expectsVerification(intent, v) {
		log.Infof("Workflow moved to %s during the check, discarding result", intent.WorkflowState)
		return checkInactive, res, nil
	}

	status, err := o.applyCheckLocked(ctx, intent, v, res)
	log.WithFields(logrus.Fields{
		"outcome":  res.Outcome,
		"attempts": v.AttemptCount,
		"status":   status,
	}).Info("Verification checked")
	return status, res, err
}

// applyCheckLocked persists a check outcome and advances the intent.
// The caller must hold the intent lock.
func (o *Orchestrator) applyCheckLocked(ctx context.Context, intent *model.LinkIntent, v *model.DomainVerification, res verification.CheckResult) (checkStatus, error) {
	lost := func(err error) (checkStatus, error) {
		if errors.Is(err, verification.ErrClaimLost) {
			return checkSkipped, nil
		}
		return checkInactive, err
	}

	switch res.Outcome {
	case verification.OutcomeMatched:
		if err := o.verifications.RecordMatch(ctx, v, res); err != nil {
			return lost(err)
		}
		return checkDone, o.finalizeLocked(ctx, intent)

	case verification.OutcomePending:
		if err := o.verifications.RecordPending(ctx, v, res); err != nil {
			return lost(err)
		}
		budget := o.attemptBudget(v.VerificationType)
		if v.AttemptCount < budget {
			return checkContinue, nil
		}
		if err := o.verifications.Expire(ctx, v, "Maximum verification attempts reached"); err != nil && !errors.Is(err, verification.ErrClaimLost) {
			return checkInactive, err
		}
		return checkDone, o.failLocked(ctx, intent, TimeoutReasonFor(v.VerificationType),
			fmt.Sprintf("%s not verified after %d attempts: %s", v.VerificationType, v.AttemptCount, res.Message))

	default:
		if err := o.verifications.RecordFailure(ctx, v, res); err != nil {
			return lost(err)
		}
		return checkDone, o.failLocked(ctx, intent, CheckFailureReasonFor(v.VerificationType), res.Message)
	}
}

// startMonitor launches the polling loop of a verification unless one
// already runs in this process
func (o *Orchestrator) startMonitor(intentID, verificationID string) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if _, ok := o.monitors[verificationID]; ok {
		o.mu.Unlock()
		return false
	}
	o.monitors[verificationID] = struct{}{}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.monitors, verificationID)
			o.mu.Unlock()
		}()
		defer o.recoverInto(intentID)

		o.monitor(o.ctx, intentID, verificationID)
	}()
	return true
}

// monitor checks a verification every CheckInterval until it is settled, no
// longer expected, or the orchestrator stops. Its lifetime is bounded; the
// sweep picks up whatever it leaves behind.
func (o *Orchestrator) monitor(ctx context.Context, intentID, verificationID string) {
	log := o.logger.WithFields(logrus.Fields{
		"intent_id":       intentID,
		"verification_id": verificationID,
	})

	budget := o.cfg.NameserverMaxAttempts
	if o.cfg.TXTMaxAttempts > budget {
		budget = o.cfg.TXTMaxAttempts
	}
	maxRounds := budget * 2

	timer := time.NewTimer(o.cfg.CheckInterval)
	defer timer.Stop()

	for round := 0; round < maxRounds; round++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		status, _, err := o.runCheck(ctx, verificationID)
		if err != nil {
			if o.isShutdown(err) {
				return
			}
			log.Errorf("Verification round failed: %v", err)
		} else if status == checkInactive || status == checkDone {
			log.Infof("Monitor stopped: %s", status)
			return
		}
		timer.Reset(o.cfg.CheckInterval)
	}
	log.Warn("Monitor reached its round limit, leaving the verification to the sweep")
}
