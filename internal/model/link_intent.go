package model

import (
	"time"

	"gorm.io/datatypes"
)

// WorkflowState is the state of a domain linking intent
type WorkflowState string

const (
	WorkflowStateInitiated            WorkflowState = "initiated"
	WorkflowStateAnalyzingDomain      WorkflowState = "analyzing_domain"
	WorkflowStateAwaitingUserChoice   WorkflowState = "awaiting_user_choice"
	WorkflowStateVerifyingNameservers WorkflowState = "verifying_nameservers"
	WorkflowStateVerifyingOwnership   WorkflowState = "verifying_ownership"
	WorkflowStateProvisioningHosting  WorkflowState = "provisioning_hosting"
	WorkflowStateCompleted            WorkflowState = "completed"
	WorkflowStateFailed               WorkflowState = "failed"
	WorkflowStateCancelled            WorkflowState = "cancelled"
)

var workflowProgress = map[WorkflowState]int{
	WorkflowStateInitiated:            0,
	WorkflowStateAnalyzingDomain:      20,
	WorkflowStateAwaitingUserChoice:   35,
	WorkflowStateVerifyingNameservers: 60,
	WorkflowStateVerifyingOwnership:   60,
	WorkflowStateProvisioningHosting:  85,
	WorkflowStateCompleted:            100,
	WorkflowStateFailed:               0,
	WorkflowStateCancelled:            0,
}

var workflowSteps = map[WorkflowState]string{
	WorkflowStateInitiated:            "Starting domain analysis...",
	WorkflowStateAnalyzingDomain:      "Analyzing domain configuration...",
	WorkflowStateAwaitingUserChoice:   "Waiting for your confirmation...",
	WorkflowStateVerifyingNameservers: "Verifying nameserver changes...",
	WorkflowStateVerifyingOwnership:   "Verifying domain ownership...",
	WorkflowStateProvisioningHosting:  "Setting up hosting integration...",
	WorkflowStateCompleted:            "Domain linking completed successfully!",
	WorkflowStateFailed:               "Domain linking failed",
	WorkflowStateCancelled:            "Domain linking cancelled",
}

// Progress returns the fixed UI progress percentage of the state
func (s WorkflowState) Progress() int {
	return workflowProgress[s]
}

// StepDescription returns the UI text for the state
func (s WorkflowState) StepDescription() string {
	if d, ok := workflowSteps[s]; ok {
		return d
	}
	return "Processing..."
}

// IsTerminal reports whether the state ends the workflow
func (s WorkflowState) IsTerminal() bool {
	switch s {
	case WorkflowStateCompleted, WorkflowStateFailed, WorkflowStateCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known state
func (s WorkflowState) Valid() bool {
	_, ok := workflowProgress[s]
	return ok
}

// TerminalStates lists states excluded from active intent listings
var TerminalStates = []string{
	string(WorkflowStateCompleted),
	string(WorkflowStateFailed),
	string(WorkflowStateCancelled),
}

// LinkingStrategy is the way a domain gets onto the platform
type LinkingStrategy string

const (
	StrategySmartMode     LinkingStrategy = "smart_mode"
	StrategyManualDNS     LinkingStrategy = "manual_dns"
	StrategyAlreadyLinked LinkingStrategy = "already_linked"
)

// LinkIntent is one attempt to link an external domain to the platform
type LinkIntent struct {
	ID                    string          `gorm:"column:id;type:varchar(36);primaryKey" json:"intent_id"`
	UserID                int             `gorm:"column:user_id;index:idx_user_state;not null" json:"user_id"`
	DomainName            string          `gorm:"column:domain_name;type:varchar(253);index;not null" json:"domain_name"`
	IntentType            LinkingStrategy `gorm:"column:intent_type;type:varchar(32);not null" json:"intent_type"`
	HostingSubscriptionID *int            `gorm:"column:hosting_subscription_id" json:"hosting_subscription_id"`
	WorkflowState         WorkflowState   `gorm:"column:workflow_state;type:varchar(32);index:idx_user_state;not null" json:"workflow_state"`
	CurrentStep           string          `gorm:"column:current_step;type:varchar(128)" json:"current_step"`
	ProgressPercentage    int             `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	ConfigurationData     datatypes.JSON  `gorm:"column:configuration_data;type:json" json:"configuration_data"`
	ErrorDetails          datatypes.JSON  `gorm:"column:error_details;type:json" json:"error_details"`
	RetryCount            int             `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	Version               int             `gorm:"column:version;not null;default:0" json:"-"`
	CompletedAt           *time.Time      `gorm:"column:completed_at" json:"completed_at"`
	FailedAt              *time.Time      `gorm:"column:failed_at" json:"failed_at"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for LinkIntent model
func (LinkIntent) TableName() string {
	return "domain_link_intents"
}
