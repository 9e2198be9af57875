package linking

import (
	"strings"

	"go_domainlink/internal/model"
)

// FailureReason is the fixed taxonomy of workflow failures
type FailureReason string

const (
	ReasonDNSLookupFailed              FailureReason = "dns_lookup_failed"
	ReasonNameserverTimeout            FailureReason = "nameserver_timeout"
	ReasonDNSVerificationTimeout       FailureReason = "dns_verification_timeout"
	ReasonInvalidDomain                FailureReason = "invalid_domain"
	ReasonDomainNotFound               FailureReason = "domain_not_found"
	ReasonVerificationCreationFailed   FailureReason = "verification_creation_failed"
	ReasonDomainAnalysisFailed         FailureReason = "domain_analysis_failed"
	ReasonNameserverVerificationFailed FailureReason = "nameserver_verification_failed"
	ReasonDNSVerificationFailed        FailureReason = "dns_verification_failed"
	ReasonStrategyExecutionFailed      FailureReason = "strategy_execution_failed"
	ReasonWorkflowException            FailureReason = "workflow_exception"
	ReasonFinalizationFailed           FailureReason = "finalization_failed"
)

// RecoveryBundle tells the user and operators how a failure can be recovered
type RecoveryBundle struct {
	AutoRetry           bool     `json:"auto_retry"`
	UserActions         []string `json:"user_actions"`
	AdminIntervention   bool     `json:"admin_intervention"`
	AlternativeWorkflow string   `json:"alternative_workflow,omitempty"`
}

var propagationActions = []string{
	"Check that DNS changes have been saved and propagated",
	"Wait 15-30 minutes for DNS propagation",
	"Verify domain DNS settings with your provider",
}

var domainActions = []string{
	"Verify the domain name is spelled correctly",
	"Ensure the domain is registered and active",
	"Check domain status with your registrar",
}

var configurationActions = []string{
	"Double-check nameserver or DNS record configuration",
	"Ensure changes are saved in your DNS provider",
	"Try alternative DNS configuration method",
}

var supportActions = []string{
	"Please try again in a few minutes",
	"If the problem persists, contact support",
}

var userMessages = map[FailureReason]string{
	ReasonDNSLookupFailed:              "DNS lookup failed. Please check your internet connection and domain settings.",
	ReasonNameserverTimeout:            "Nameserver changes are taking longer than expected. DNS propagation can take up to 24 hours.",
	ReasonDNSVerificationTimeout:       "DNS record verification timed out. Please ensure records are correctly configured.",
	ReasonInvalidDomain:                "The domain name appears to be invalid or not properly formatted.",
	ReasonDomainNotFound:               "Domain not found. Please verify the domain exists and is properly registered.",
	ReasonVerificationCreationFailed:   "System error occurred while setting up verification. Please try again.",
	ReasonDomainAnalysisFailed:         "Domain analysis failed. This may be a temporary issue.",
	ReasonNameserverVerificationFailed: "Nameserver verification failed. Please check your nameserver configuration.",
	ReasonDNSVerificationFailed:        "DNS record verification failed. Please verify your DNS settings.",
	ReasonStrategyExecutionFailed:      "The linking strategy could not be applied. Please try again.",
	ReasonWorkflowException:            "An unexpected error occurred during domain linking. Please try again.",
	ReasonFinalizationFailed:           "Domain linking setup failed during final configuration.",
}

// ClassifyFailure maps a raw reason onto the taxonomy. Unknown reasons are workflow exceptions.
func ClassifyFailure(reason string) FailureReason {
	r := FailureReason(strings.TrimSpace(reason))
	if _, ok := userMessages[r]; ok {
		return r
	}
	return ReasonWorkflowException
}

// IsTimeout reports whether the reason is a verification budget exhaustion
func (r FailureReason) IsTimeout() bool {
	return r == ReasonNameserverTimeout || r == ReasonDNSVerificationTimeout
}

// UserMessage returns the fixed user-friendly sentence of the reason
func (r FailureReason) UserMessage() string {
	if msg, ok := userMessages[r]; ok {
		return msg
	}
	return userMessages[ReasonWorkflowException]
}

// Recovery returns the recovery bundle of the reason
func (r FailureReason) Recovery() RecoveryBundle {
	switch r {
	case ReasonDNSLookupFailed, ReasonNameserverTimeout, ReasonDNSVerificationTimeout:
		return RecoveryBundle{AutoRetry: true, UserActions: clone(propagationActions)}
	case ReasonInvalidDomain, ReasonDomainNotFound:
		return RecoveryBundle{UserActions: clone(domainActions)}
	case ReasonVerificationCreationFailed, ReasonDomainAnalysisFailed:
		return RecoveryBundle{AutoRetry: true, AdminIntervention: true, UserActions: clone(supportActions)}
	case ReasonNameserverVerificationFailed:
		return RecoveryBundle{UserActions: clone(configurationActions), AlternativeWorkflow: "suggest_manual_dns"}
	case ReasonDNSVerificationFailed:
		return RecoveryBundle{UserActions: clone(configurationActions), AlternativeWorkflow: "suggest_smart_mode"}
	default:
		return RecoveryBundle{AutoRetry: true, AdminIntervention: true, UserActions: clone(supportActions)}
	}
}

// TimeoutReasonFor returns the timeout reason of a verification type
func TimeoutReasonFor(t model.VerificationType) FailureReason {
	if t == model.VerificationTypeDNSTXT {
		return ReasonDNSVerificationTimeout
	}
	return ReasonNameserverTimeout
}

// CheckFailureReasonFor returns the hard-failure reason of a verification type
func CheckFailureReasonFor(t model.VerificationType) FailureReason {
	if t == model.VerificationTypeDNSTXT {
		return ReasonDNSVerificationFailed
	}
	return ReasonNameserverVerificationFailed
}

func clone(in []string) []string {
	return append([]string(nil), in...)
}
