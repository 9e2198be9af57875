package linking

import (
	"context"
	"fmt"
	"time"

	"go_domainlink/internal/model"
)

// VerificationStatus is the user-facing view of the current verification
type VerificationStatus struct {
	VerificationID string                   `json:"verification_id"`
	Type           model.VerificationType   `json:"verification_type"`
	Status         model.VerificationStatus `json:"status"`
	AttemptCount   int                      `json:"attempt_count"`
	MaxAttempts    int                      `json:"max_attempts"`
	LastCheckedAt  *time.Time               `json:"last_checked_at,omitempty"`
	NextCheckAt    *time.Time               `json:"next_check_at,omitempty"`
	LastResult     string                   `json:"last_result,omitempty"`
	CheckFrequency string                   `json:"check_frequency"`
	MaxWaitTime    string                   `json:"max_wait_time"`
}

// FailureStatus is the user-facing view of error_details
type FailureStatus struct {
	FailureReason      FailureReason  `json:"failure_reason"`
	UserMessage        string         `json:"user_message"`
	RecoveryStrategies RecoveryBundle `json:"recovery_strategies"`
	CanRetry           bool           `json:"can_retry"`
}

// WorkflowStatus is what a user sees of one intent
type WorkflowStatus struct {
	IntentID               string                  `json:"intent_id"`
	DomainName             string                  `json:"domain_name"`
	WorkflowState          model.WorkflowState     `json:"workflow_state"`
	CurrentStep            string                  `json:"current_step"`
	CurrentStepDescription string                  `json:"current_step_description"`
	ProgressPercentage     int                     `json:"progress_percentage"`
	LinkingStrategy        model.LinkingStrategy   `json:"linking_strategy,omitempty"`
	StrategyReason         string                  `json:"strategy_reason,omitempty"`
	StrategyWarning        string                  `json:"strategy_warning,omitempty"`
	UserGuidance           *UserGuidance           `json:"user_guidance,omitempty"`
	Instructions           *NameserverInstructions `json:"instructions,omitempty"`
	DNSInstructions        *DNSInstructions        `json:"dns_instructions,omitempty"`
	Verification           *VerificationStatus     `json:"verification,omitempty"`
	Error                  *FailureStatus          `json:"error,omitempty"`
	CompletionReason       string                  `json:"completion_reason,omitempty"`
	CancellationReason     string                  `json:"cancellation_reason,omitempty"`
	RetryCount             int                     `json:"retry_count"`
	CreatedAt              time.Time               `json:"created_at"`
	UpdatedAt              time.Time               `json:"updated_at"`
	CompletedAt            *time.Time              `json:"completed_at,omitempty"`
	FailedAt               *time.Time              `json:"failed_at,omitempty"`
}

// IntentSummary is one row of ListActiveIntents
type IntentSummary struct {
	IntentID               string                `json:"intent_id"`
	DomainName             string                `json:"domain_name"`
	WorkflowState          model.WorkflowState   `json:"workflow_state"`
	CurrentStepDescription string                `json:"current_step_description"`
	ProgressPercentage     int                   `json:"progress_percentage"`
	IntentType             model.LinkingStrategy `json:"intent_type"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

// GetIntentStatus returns the stored intent
func (o *Orchestrator) GetIntentStatus(ctx context.Context, intentID string) (*model.LinkIntent, error) {
	return o.intents.get(ctx, intentID)
}

// GetIntentForUser returns the intent if it belongs to userID. Intents of
// other users are reported as not found.
func (o *Orchestrator) GetIntentForUser(ctx context.Context, userID int, intentID string) (*model.LinkIntent, error) {
	intent, err := o.intents.get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.UserID != userID {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

// GetUserWorkflowStatus projects an intent with its instructions, current
// verification and recovery guidance
func (o *Orchestrator) GetUserWorkflowStatus(ctx context.Context, userID int, intentID string) (*WorkflowStatus, error) {
	intent, err := o.GetIntentForUser(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	cfg, err := DecodeConfiguration(intent.ConfigurationData)
	if err != nil {
		return nil, err
	}

	status := &WorkflowStatus{
		IntentID:               intent.ID,
		DomainName:             intent.DomainName,
		WorkflowState:          intent.WorkflowState,
		CurrentStep:            intent.CurrentStep,
		CurrentStepDescription: intent.WorkflowState.StepDescription(),
		ProgressPercentage:     intent.ProgressPercentage,
		LinkingStrategy:        cfg.LinkingStrategy,
		StrategyReason:         cfg.StrategyReason,
		StrategyWarning:        cfg.StrategyWarning,
		UserGuidance:           cfg.UserGuidance,
		CompletionReason:       cfg.CompletionReason,
		CancellationReason:     cfg.CancellationReason,
		RetryCount:             intent.RetryCount,
		CreatedAt:              intent.CreatedAt,
		UpdatedAt:              intent.UpdatedAt,
		CompletedAt:            intent.CompletedAt,
		FailedAt:               intent.FailedAt,
	}

	switch intent.WorkflowState {
	case model.WorkflowStateCompleted, model.WorkflowStateCancelled:
	default:
		status.Instructions = cfg.NameserverInstructions
		status.DNSInstructions = cfg.DNSInstructions
	}

	if cfg.VerificationID != "" && awaitsVerification(intent.WorkflowState) {
		v, err := o.verifications.Get(ctx, cfg.VerificationID)
		if err == nil {
			status.Verification = o.verificationStatus(v)
		}
	}

	if intent.WorkflowState == model.WorkflowStateFailed {
		details, err := DecodeErrorDetails(intent.ErrorDetails)
		if err != nil {
			return nil, err
		}
		if details != nil {
			status.Error = &FailureStatus{
				FailureReason:      details.FailureReason,
				UserMessage:        details.UserMessage,
				RecoveryStrategies: details.RecoveryStrategies,
				CanRetry:           true,
			}
		}
	}
	return status, nil
}

func (o *Orchestrator) verificationStatus(v *model.DomainVerification) *VerificationStatus {
	budget := o.attemptBudget(v.VerificationType)
	interval := o.verifications.CheckInterval()
	return &VerificationStatus{
		VerificationID: v.ID,
		Type:           v.VerificationType,
		Status:         v.Status,
		AttemptCount:   v.AttemptCount,
		MaxAttempts:    budget,
		LastCheckedAt:  v.LastCheckedAt,
		NextCheckAt:    v.NextCheckAt,
		LastResult:     v.ErrorMessage,
		CheckFrequency: "every " + humanDuration(interval),
		MaxWaitTime:    humanDuration(interval * time.Duration(budget)),
	}
}

// ListActiveIntents returns the user's non-terminal intents, newest first
func (o *Orchestrator) ListActiveIntents(ctx context.Context, userID int) ([]IntentSummary, error) {
	list, err := o.intents.listActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]IntentSummary, 0, len(list))
	for _, intent := range list {
		out = append(out, IntentSummary{
			IntentID:               intent.ID,
			DomainName:             intent.DomainName,
			WorkflowState:          intent.WorkflowState,
			CurrentStepDescription: intent.WorkflowState.StepDescription(),
			ProgressPercentage:     intent.ProgressPercentage,
			IntentType:             intent.IntentType,
			CreatedAt:              intent.CreatedAt,
			UpdatedAt:              intent.UpdatedAt,
		})
	}
	return out, nil
}

// humanDuration renders d in the largest whole unit
func humanDuration(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", name)
		}
		return fmt.Sprintf("%d %ss", n, name)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return unit(int64(d/time.Second), "second")
	default:
		return d.String()
	}
}
