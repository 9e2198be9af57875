package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowState_Progress(t *testing.T) {
	tests := []struct {
		state WorkflowState
		want  int
	}{
		{WorkflowStateInitiated, 0},
		{WorkflowStateAnalyzingDomain, 20},
		{WorkflowStateAwaitingUserChoice, 35},
		{WorkflowStateVerifyingNameservers, 60},
		{WorkflowStateVerifyingOwnership, 60},
		{WorkflowStateProvisioningHosting, 85},
		{WorkflowStateCompleted, 100},
		{WorkflowStateFailed, 0},
		{WorkflowStateCancelled, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Progress())
		})
	}
}

func TestWorkflowState_IsTerminal(t *testing.T) {
	assert.True(t, WorkflowStateCompleted.IsTerminal())
	assert.True(t, WorkflowStateFailed.IsTerminal())
	assert.True(t, WorkflowStateCancelled.IsTerminal())
	assert.False(t, WorkflowStateVerifyingOwnership.IsTerminal())
	assert.False(t, WorkflowStateInitiated.IsTerminal())
}

func TestWorkflowState_StepDescription(t *testing.T) {
	assert.Equal(t, "Verifying nameserver changes...", WorkflowStateVerifyingNameservers.StepDescription())
	assert.Equal(t, "Processing...", WorkflowState("bogus").StepDescription())
	assert.False(t, WorkflowState("bogus").Valid())
}

func TestVerificationStatus_IsActive(t *testing.T) {
	assert.True(t, VerificationStatusPending.IsActive())
	assert.True(t, VerificationStatusInProgress.IsActive())
	assert.False(t, VerificationStatusExpired.IsActive())
	assert.False(t, VerificationStatusCompleted.IsActive())
}
