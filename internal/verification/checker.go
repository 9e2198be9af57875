package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go_domainlink/internal/analyzer"
	"go_domainlink/internal/model"
	"go_domainlink/internal/resolver"
)

// Outcome classifies a single check
type Outcome string

const (
	// OutcomeMatched means the expected DNS state is visible
	OutcomeMatched Outcome = "matched"
	// OutcomePending means DNS answered but does not match yet
	OutcomePending Outcome = "pending"
	// OutcomeFailed means the check could not be performed meaningfully
	OutcomeFailed Outcome = "failed"
)

// CheckResult is the structured outcome of one check
type CheckResult struct {
	Outcome Outcome
	Actual  string
	Message string
	Details map[string]interface{}
}

// Checker performs nameserver and TXT checks through the resolver capability
type Checker struct {
	resolver     resolver.Resolver
	analyzer     *analyzer.Analyzer
	verifyPrefix string
}

// NewChecker creates a Checker. The analyzer supplies the platform nameserver comparison.
func NewChecker(r resolver.Resolver, a *analyzer.Analyzer, verifyPrefix string) *Checker {
	return &Checker{resolver: r, analyzer: a, verifyPrefix: verifyPrefix}
}

// OwnershipRecordName returns the TXT record name carrying the ownership token
func OwnershipRecordName(prefix, domain string) string {
	return "_" + prefix + "." + domain
}

// Check runs one check of v for domain
func (c *Checker) Check(ctx context.Context, v *model.DomainVerification, domain string) CheckResult {
	switch v.VerificationType {
	case model.VerificationTypeNameserverChange:
		return c.checkNameservers(ctx, domain)
	case model.VerificationTypeDNSTXT:
		return c.checkTXT(ctx, domain, v.ExpectedValue)
	default:
		return CheckResult{
			Outcome: OutcomeFailed,
			Message: fmt.Sprintf("Unsupported verification type: %s", v.VerificationType),
			Details: map[string]interface{}{"checked_at": time.Now()},
		}
	}
}

func (c *Checker) checkNameservers(ctx context.Context, domain string) CheckResult {
	res := c.resolver.ResolveNS(ctx, domain)
	details := map[string]interface{}{
		"current_nameservers":  res.Values,
		"expected_nameservers": c.analyzer.PlatformNameservers(),
		"lookup_status":        res.Status,
		"checked_at":           time.Now(),
	}
	actual := strings.Join(res.Values, ",")

	if res.Status == resolver.StatusError {
		return CheckResult{
			Outcome: OutcomeFailed,
			Actual:  actual,
			Message: fmt.Sprintf("Nameserver lookup failed: %s", res.Error),
			Details: details,
		}
	}
	if res.Empty() {
		return CheckResult{
			Outcome: OutcomeFailed,
			Message: "Could not retrieve current nameservers",
			Details: details,
		}
	}
	if c.analyzer.NameserversMatch(res.Values) {
		return CheckResult{
			Outcome: OutcomeMatched,
			Actual:  actual,
			Message: "Nameservers updated successfully",
			Details: details,
		}
	}
	return CheckResult{
		Outcome: OutcomePending,
		Actual:  actual,
		Message: "Nameservers not yet updated",
		Details: details,
	}
}

func (c *Checker) checkTXT(ctx context.Context, domain, expected string) CheckResult {
	name := OwnershipRecordName(c.verifyPrefix, domain)
	res := c.resolver.ResolveTXT(ctx, name)
	details := map[string]interface{}{
		"record_name":   name,
		"found_records": res.Values,
		"expected":      expected,
		"lookup_status": res.Status,
		"checked_at":    time.Now(),
	}
	actual := strings.Join(res.Values, ",")

	switch res.Status {
	case resolver.StatusError:
		return CheckResult{
			Outcome: OutcomeFailed,
			Actual:  actual,
			Message: fmt.Sprintf("DNS TXT lookup failed: %s", res.Error),
			Details: details,
		}
	case resolver.StatusNXDomain:
		return CheckResult{
			Outcome: OutcomePending,
			Message: "Verification TXT record not found",
			Details: details,
		}
	}

	for _, value := range res.Values {
		if strings.Trim(strings.TrimSpace(value), `"`) == expected {
			return CheckResult{
				Outcome: OutcomeMatched,
				Actual:  value,
				Message: "DNS verification record found",
				Details: details,
			}
		}
	}
	if res.Empty() {
		return CheckResult{
			Outcome: OutcomePending,
			Message: "Verification TXT record not found",
			Details: details,
		}
	}
	return CheckResult{
		Outcome: OutcomePending,
		Actual:  actual,
		Message: "Verification token not found in TXT records",
		Details: details,
	}
}
