package domainutil

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const (
	minDomainLength = 3
	maxDomainLength = 253
	maxLabelLength  = 63
)

// reserved TLDs that cannot be linked
var blockedTLDs = map[string]bool{
	"localhost": true,
	"test":      true,
	"invalid":   true,
	"local":     true,
}

// Normalize lowercases host, trims spaces, the trailing dot and any port
// (example.com:443), and rejects IP addresses, wildcards and invalid
// characters. The result is 3..253 characters with labels of at most 63.
func Normalize(host string) (string, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")

	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	if host == "" {
		return "", fmt.Errorf("domain name is required")
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return "", fmt.Errorf("IP address is not allowed as domain: %s", host)
	}
	if len(host) < minDomainLength {
		return "", fmt.Errorf("domain must be at least %d characters", minDomainLength)
	}
	if len(host) > maxDomainLength {
		return "", fmt.Errorf("domain cannot exceed %d characters", maxDomainLength)
	}

	for _, r := range host {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-') {
			return "", fmt.Errorf("domain contains invalid character: %c in %s", r, host)
		}
	}

	if !strings.Contains(host, ".") {
		return "", fmt.Errorf("domain must include a TLD (e.g., .com, .org)")
	}

	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return "", fmt.Errorf("domain contains an empty label: %s", host)
		}
		if len(label) > maxLabelLength {
			return "", fmt.Errorf("domain label exceeds %d characters: %s", maxLabelLength, label)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "", fmt.Errorf("domain label must not start or end with '-': %s", label)
		}
	}

	tld := host[strings.LastIndex(host, ".")+1:]
	if blockedTLDs[tld] {
		return "", fmt.Errorf("TLD .%s is not supported", tld)
	}

	return host, nil
}

// EffectiveApex returns the registrable domain (eTLD+1) from the public suffix list:
//   - www.example.com -> example.com
//   - a.b.example.co.uk -> example.co.uk
func EffectiveApex(domain string) (string, error) {
	normalized, err := Normalize(domain)
	if err != nil {
		return "", err
	}

	apex, err := publicsuffix.EffectiveTLDPlusOne(normalized)
	if err != nil {
		return "", fmt.Errorf("PSL lookup failed for %s: %w", domain, err)
	}
	return apex, nil
}

// ValidateLinkDomain normalizes a user supplied domain and requires it to be
// a registrable domain, since nameserver delegation happens at the apex.
func ValidateLinkDomain(domain string) (string, error) {
	normalized, err := Normalize(domain)
	if err != nil {
		return "", err
	}

	apex, err := EffectiveApex(normalized)
	if err != nil {
		return "", err
	}
	if apex != normalized {
		return "", fmt.Errorf("only registrable domains can be linked: use %s instead of %s", apex, normalized)
	}
	return normalized, nil
}
