package linking

import (
	"encoding/json"
	"fmt"
	"time"

	"go_domainlink/internal/analyzer"
	"go_domainlink/internal/model"
	"go_domainlink/internal/provisioning"

	"gorm.io/datatypes"
)

// configurationSchemaVersion is bumped whenever Configuration changes incompatibly
const configurationSchemaVersion = 1

// UserGuidance is what the UI shows as the current step
type UserGuidance struct {
	Step          string   `json:"step"`
	Description   string   `json:"description"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	Message       string   `json:"message,omitempty"`
	NextActions   []string `json:"next_actions,omitempty"`
}

// Configuration is the typed form of link_intents.configuration_data
type Configuration struct {
	SchemaVersion          int                     `json:"schema_version"`
	StrategyHint           model.LinkingStrategy   `json:"strategy_hint,omitempty"`
	LinkingStrategy        model.LinkingStrategy   `json:"linking_strategy,omitempty"`
	StrategyReason         string                  `json:"strategy_reason,omitempty"`
	StrategyWarning        string                  `json:"strategy_warning,omitempty"`
	Analysis               *analyzer.Result        `json:"analysis,omitempty"`
	NameserverInstructions *NameserverInstructions `json:"instructions,omitempty"`
	DNSInstructions        *DNSInstructions        `json:"dns_instructions,omitempty"`
	VerificationID         string                  `json:"verification_id,omitempty"`
	MonitoringStarted      *time.Time              `json:"monitoring_started,omitempty"`
	UserGuidance           *UserGuidance           `json:"user_guidance,omitempty"`
	CompletionReason       string                  `json:"completion_reason,omitempty"`
	Provisioning           *provisioning.Result    `json:"provisioning,omitempty"`
	CancellationReason     string                  `json:"cancellation_reason,omitempty"`
}

// ErrorDetails is the typed form of link_intents.error_details
type ErrorDetails struct {
	FailureReason      FailureReason       `json:"failure_reason"`
	ErrorMessage       string              `json:"error_message"`
	UserMessage        string              `json:"user_message"`
	FailedInState      model.WorkflowState `json:"failed_in_state"`
	RecoveryStrategies RecoveryBundle      `json:"recovery_strategies"`
	FailedAt           time.Time           `json:"failed_at"`
	UserGuidance       *UserGuidance       `json:"user_guidance,omitempty"`
}

// DecodeConfiguration parses configuration_data; an empty document yields a fresh Configuration
func DecodeConfiguration(raw datatypes.JSON) (*Configuration, error) {
	cfg := &Configuration{SchemaVersion: configurationSchemaVersion}
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return cfg, nil
}

func (c *Configuration) encode() (datatypes.JSON, error) {
	c.SchemaVersion = configurationSchemaVersion
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode configuration data: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// DecodeErrorDetails parses error_details; it returns nil when there are none
func DecodeErrorDetails(raw datatypes.JSON) (*ErrorDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d ErrorDetails
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode error details: %w", err)
	}
	return &d, nil
}
