package linking

import (
	"time"

	"go_domainlink/internal/model"
)

// CreateIntentRequest is the body of POST /api/v1/linking/intents
type CreateIntentRequest struct {
	Domain                string `json:"domain" binding:"required"`
	Mode                  string `json:"mode"`
	HostingSubscriptionID *int   `json:"hosting_subscription_id"`
}

// CreateIntentResponse is returned once the intent is stored
type CreateIntentResponse struct {
	IntentID      string              `json:"intent_id"`
	DomainName    string              `json:"domain_name"`
	WorkflowState model.WorkflowState `json:"workflow_state"`
	CreatedAt     time.Time           `json:"created_at"`
}

// CancelIntentRequest is the optional body of POST /api/v1/linking/intents/:id/cancel
type CancelIntentRequest struct {
	Reason string `json:"reason"`
}
