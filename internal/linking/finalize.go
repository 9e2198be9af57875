package linking

import (
	"context"
	"fmt"
	"time"

	"go_domainlink/internal/model"
	"go_domainlink/internal/notify"
	"go_domainlink/internal/provisioning"

	"github.com/sirupsen/logrus"
)

// Finalize hands a verified intent to provisioning and completes it.
// Calling it on a COMPLETED intent is a no-op.
func (o *Orchestrator) Finalize(ctx context.Context, intentID string) error {
	intent, unlock, err := o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	defer unlock()
	return o.finalizeLocked(ctx, intent)
}

func (o *Orchestrator) finalizeLocked(ctx context.Context, intent *model.LinkIntent) error {
	log := o.logger.WithFields(logrus.Fields{"intent_id": intent.ID, "domain": intent.DomainName})

	switch intent.WorkflowState {
	case model.WorkflowStateCompleted:
		log.Debug("Workflow already completed, nothing to finalize")
		return nil
	case model.WorkflowStateVerifyingNameservers, model.WorkflowStateVerifyingOwnership:
		err := o.apply(ctx, intent, transition{
			state: model.WorkflowStateProvisioningHosting,
			step:  "provisioning_hosting",
			configure: func(c *Configuration) {
				c.UserGuidance = &UserGuidance{
					Step:        "Finalizing hosting configuration",
					Description: "Your domain is verified. We are setting up hosting.",
				}
			},
		})
		if err != nil {
			return err
		}
	case model.WorkflowStateProvisioningHosting:
	default:
		return fmt.Errorf("%w: cannot finalize a workflow in %s", ErrInvalidState, intent.WorkflowState)
	}

	cfg, err := DecodeConfiguration(intent.ConfigurationData)
	if err != nil {
		return o.failLocked(ctx, intent, ReasonFinalizationFailed, err.Error())
	}

	req := provisioning.Request{
		IntentID:              intent.ID,
		UserID:                intent.UserID,
		DomainName:            intent.DomainName,
		Strategy:              cfg.LinkingStrategy,
		HostingSubscriptionID: intent.HostingSubscriptionID,
	}
	result, err := o.provisioner.Provision(ctx, req)
	if err != nil {
		if o.isShutdown(err) {
			return err
		}
		return o.failLocked(ctx, intent, ReasonFinalizationFailed, err.Error())
	}

	err = o.apply(ctx, intent, transition{
		state: model.WorkflowStateCompleted,
		step:  "completed",
		configure: func(c *Configuration) {
			c.Provisioning = result
			c.CompletionReason = "verified"
			c.UserGuidance = &UserGuidance{
				Step:        "Domain linking complete",
				Description: fmt.Sprintf("%s is now linked to your hosting", intent.DomainName),
			}
		},
	})
	if err != nil {
		return err
	}

	if _, err := o.verifications.ExpireActiveForIntent(ctx, intent.ID, "workflow completed"); err != nil {
		log.Warnf("Failed to expire active verifications: %v", err)
	}
	log.Info("Domain linking completed")
	o.notify(ctx, intent, model.NotificationLinkingCompleted, notify.Data{})
	return nil
}

// HandleFailure classifies reason and moves the intent to FAILED with its
// recovery bundle. It is the only way a workflow fails.
func (o *Orchestrator) HandleFailure(ctx context.Context, intentID, reason, message string) error {
	intent, unlock, err := o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	defer unlock()
	return o.failLocked(ctx, intent, ClassifyFailure(reason), message)
}

// failLocked fails an active intent. Terminal intents are left untouched.
// The caller must hold the intent lock.
func (o *Orchestrator) failLocked(ctx context.Context, intent *model.LinkIntent, reason FailureReason, message string) error {
	log := o.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"domain":    intent.DomainName,
		"reason":    reason,
	})
	if intent.WorkflowState.IsTerminal() {
		log.Infof("Ignoring failure of a %s workflow: %s", intent.WorkflowState, message)
		return nil
	}

	bundle := reason.Recovery()
	userMessage := reason.UserMessage()
	guidance := &UserGuidance{
		Step:        "Workflow failed",
		Description: userMessage,
		NextActions: bundle.UserActions,
	}
	details := &ErrorDetails{
		FailureReason:      reason,
		ErrorMessage:       message,
		UserMessage:        userMessage,
		FailedInState:      intent.WorkflowState,
		RecoveryStrategies: bundle,
		FailedAt:           time.Now().UTC(),
		UserGuidance:       guidance,
	}

	if _, err := o.verifications.ExpireActiveForIntent(ctx, intent.ID, "workflow failed: "+string(reason)); err != nil {
		log.Warnf("Failed to expire active verifications: %v", err)
	}

	err := o.apply(ctx, intent, transition{
		state:        model.WorkflowStateFailed,
		step:         "failed_" + string(reason),
		errorDetails: details,
		configure: func(c *Configuration) {
			c.UserGuidance = guidance
		},
	})
	if err != nil {
		return err
	}

	log.Warnf("Linking workflow failed: %s", message)
	o.metrics.IncFailure(string(reason))
	o.notify(ctx, intent, model.NotificationWorkflowFailed, notify.Data{Error: userMessage})
	if reason.IsTimeout() {
		o.notify(ctx, intent, model.NotificationVerificationTimeout, notify.Data{})
	}
	return nil
}
