package linking

import (
	"testing"
	"time"

	"go_domainlink/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	assert.Equal(t, ReasonNameserverTimeout, ClassifyFailure("nameserver_timeout"))
	assert.Equal(t, ReasonFinalizationFailed, ClassifyFailure(" finalization_failed "))
	assert.Equal(t, ReasonWorkflowException, ClassifyFailure("disk_on_fire"))
	assert.Equal(t, ReasonWorkflowException, ClassifyFailure(""))
}

func TestRecoveryBundles(t *testing.T) {
	tests := []struct {
		reason      FailureReason
		autoRetry   bool
		admin       bool
		alternative string
		actions     int
	}{
		{ReasonDNSLookupFailed, true, false, "", 3},
		{ReasonNameserverTimeout, true, false, "", 3},
		{ReasonDNSVerificationTimeout, true, false, "", 3},
		{ReasonInvalidDomain, false, false, "", 3},
		{ReasonDomainNotFound, false, false, "", 3},
		{ReasonVerificationCreationFailed, true, true, "", 2},
		{ReasonDomainAnalysisFailed, true, true, "", 2},
		{ReasonNameserverVerificationFailed, false, false, "suggest_manual_dns", 3},
		{ReasonDNSVerificationFailed, false, false, "suggest_smart_mode", 3},
		{ReasonStrategyExecutionFailed, true, true, "", 2},
		{ReasonWorkflowException, true, true, "", 2},
		{ReasonFinalizationFailed, true, true, "", 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			b := tt.reason.Recovery()
			assert.Equal(t, tt.autoRetry, b.AutoRetry)
			assert.Equal(t, tt.admin, b.AdminIntervention)
			assert.Equal(t, tt.alternative, b.AlternativeWorkflow)
			assert.Len(t, b.UserActions, tt.actions)
			assert.NotEmpty(t, tt.reason.UserMessage())
		})
	}
}

func TestRecoveryBundle_IsACopy(t *testing.T) {
	b := ReasonNameserverTimeout.Recovery()
	b.UserActions[0] = "changed"
	assert.NotEqual(t, "changed", ReasonNameserverTimeout.Recovery().UserActions[0])
}

func TestReasonsByVerificationType(t *testing.T) {
	assert.Equal(t, ReasonNameserverTimeout, TimeoutReasonFor(model.VerificationTypeNameserverChange))
	assert.Equal(t, ReasonDNSVerificationTimeout, TimeoutReasonFor(model.VerificationTypeDNSTXT))
	assert.Equal(t, ReasonNameserverVerificationFailed, CheckFailureReasonFor(model.VerificationTypeNameserverChange))
	assert.Equal(t, ReasonDNSVerificationFailed, CheckFailureReasonFor(model.VerificationTypeDNSTXT))

	assert.True(t, ReasonNameserverTimeout.IsTimeout())
	assert.True(t, ReasonDNSVerificationTimeout.IsTimeout())
	assert.False(t, ReasonDNSLookupFailed.IsTimeout())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.WorkflowState
		ok       bool
	}{
		{model.WorkflowStateInitiated, model.WorkflowStateAnalyzingDomain, true},
		{model.WorkflowStateInitiated, model.WorkflowStateCompleted, false},
		{model.WorkflowStateAnalyzingDomain, model.WorkflowStateCompleted, true},
		{model.WorkflowStateAnalyzingDomain, model.WorkflowStateAnalyzingDomain, true},
		{model.WorkflowStateAwaitingUserChoice, model.WorkflowStateVerifyingOwnership, true},
		{model.WorkflowStateVerifyingNameservers, model.WorkflowStateProvisioningHosting, true},
		{model.WorkflowStateVerifyingNameservers, model.WorkflowStateAwaitingUserChoice, false},
		{model.WorkflowStateProvisioningHosting, model.WorkflowStateCompleted, true},
		{model.WorkflowStateVerifyingOwnership, model.WorkflowStateCancelled, true},
		{model.WorkflowStateProvisioningHosting, model.WorkflowStateFailed, true},
		{model.WorkflowStateFailed, model.WorkflowStateVerifyingNameservers, true},
		{model.WorkflowStateFailed, model.WorkflowStateFailed, false},
		{model.WorkflowStateFailed, model.WorkflowStateCancelled, false},
		{model.WorkflowStateCompleted, model.WorkflowStateFailed, false},
		{model.WorkflowStateCancelled, model.WorkflowStateInitiated, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "5 minutes", humanDuration(5*time.Minute))
	assert.Equal(t, "5 hours", humanDuration(5*time.Minute*60))
	assert.Equal(t, "10 hours", humanDuration(5*time.Minute*120))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "90 minutes", humanDuration(90*time.Minute))
	assert.Equal(t, "30 seconds", humanDuration(30*time.Second))
	assert.Equal(t, "5ms", humanDuration(5*time.Millisecond))
}
