package linking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"go_domainlink/internal/verification"
)

const (
	instructionTTL           = 300
	nameserverPropagation    = "5-30 minutes"
	manualDNSPropagation     = "10-30 minutes"
	verificationMethodDNSTXT = "dns_txt"
)

// NameserverInstructions tell the user how to delegate the domain to the platform
type NameserverInstructions struct {
	Type                     string   `json:"type"`
	DomainName               string   `json:"domain_name"`
	TargetNameservers        []string `json:"target_nameservers"`
	Instructions             []string `json:"instructions"`
	Warnings                 []string `json:"warnings"`
	EstimatedPropagationTime string   `json:"estimated_propagation_time"`
}

// DNSRecordInstruction is one record the user must add at their DNS provider
type DNSRecordInstruction struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	TTL   int    `json:"ttl"`
}

// String renders the record on one line
func (r DNSRecordInstruction) String() string {
	return fmt.Sprintf("%s %s %s (TTL %d)", r.Type, r.Name, r.Value, r.TTL)
}

// DNSInstructions tell the user which records prove ownership and route traffic
type DNSInstructions struct {
	Type                     string                 `json:"type"`
	DomainName               string                 `json:"domain_name"`
	VerificationToken        string                 `json:"verification_token"`
	DNSRecords               []DNSRecordInstruction `json:"dns_records"`
	Instructions             []string               `json:"instructions"`
	VerificationMethod       string                 `json:"verification_method"`
	EstimatedPropagationTime string                 `json:"estimated_propagation_time"`
}

// BuildNameserverInstructions generates smart mode instructions
func BuildNameserverInstructions(domain string, targets []string) *NameserverInstructions {
	steps := []string{
		"1. Log into your domain registrar's control panel",
		fmt.Sprintf("2. Find the nameserver settings for %s", domain),
		"3. Replace the current nameservers with:",
	}
	for _, ns := range targets {
		steps = append(steps, "   • "+ns)
	}
	steps = append(steps,
		"4. Save the changes",
		"5. DNS propagation can take 5-30 minutes",
	)

	return &NameserverInstructions{
		Type:              "nameserver_change",
		DomainName:        domain,
		TargetNameservers: append([]string(nil), targets...),
		Instructions:      steps,
		Warnings: []string{
			"Changing nameservers will affect all DNS records for this domain",
			"Email services may be temporarily interrupted during propagation",
		},
		EstimatedPropagationTime: nameserverPropagation,
	}
}

// BuildDNSInstructions generates manual DNS instructions around an existing token
func BuildDNSInstructions(domain, verifyPrefix, hostingIP, token string) *DNSInstructions {
	records := []DNSRecordInstruction{
		{Type: "TXT", Name: verification.OwnershipRecordName(verifyPrefix, domain), Value: token, TTL: instructionTTL},
		{Type: "A", Name: domain, Value: hostingIP, TTL: instructionTTL},
	}

	steps := []string{
		"1. Log into your DNS provider's control panel",
		fmt.Sprintf("2. Open the DNS records of %s", domain),
		"3. Add the following records:",
	}
	for _, r := range records {
		steps = append(steps, "   • "+r.String())
	}
	steps = append(steps,
		"4. Save the changes and keep your current nameservers",
		"5. We verify the TXT record automatically once it propagates",
	)

	return &DNSInstructions{
		Type:                     "manual_dns",
		DomainName:               domain,
		VerificationToken:        token,
		DNSRecords:               records,
		Instructions:             steps,
		VerificationMethod:       verificationMethodDNSTXT,
		EstimatedPropagationTime: manualDNSPropagation,
	}
}

// GenerateOwnershipToken returns prefix-<32 hex chars>
func GenerateOwnershipToken(prefix string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	return prefix + "-" + hex.EncodeToString(b), nil
}

// RecordLines renders the records for notifications
func (d *DNSInstructions) RecordLines() []string {
	lines := make([]string, 0, len(d.DNSRecords))
	for _, r := range d.DNSRecords {
		lines = append(lines, r.String())
	}
	return lines
}
