package notify

import (
	"fmt"
	"strings"

	"go_domainlink/internal/model"
)

// Data carries the per-message values a notification text may reference
type Data struct {
	Nameservers []string
	DNSRecords  []string
	Error       string
}

// Render builds the user-facing text of a notification type
func Render(messageType model.NotificationType, domain string, data Data) (string, error) {
	switch messageType {
	case model.NotificationNameserverInstructions:
		var b strings.Builder
		fmt.Fprintf(&b, "🔧 Nameserver Update Required\n\nPlease update your nameservers for %s.", domain)
		if len(data.Nameservers) > 0 {
			b.WriteString("\n\nNew nameservers:\n")
			for _, ns := range data.Nameservers {
				fmt.Fprintf(&b, "• %s\n", ns)
			}
		} else {
			b.WriteString(" ")
		}
		b.WriteString("We'll automatically detect the changes once they propagate.")
		return b.String(), nil

	case model.NotificationDNSInstructions:
		var b strings.Builder
		fmt.Fprintf(&b, "📝 DNS Records Required\n\nPlease add the required DNS records for %s.", domain)
		if len(data.DNSRecords) > 0 {
			b.WriteString("\n\n")
			for _, rec := range data.DNSRecords {
				fmt.Fprintf(&b, "• %s\n", rec)
			}
		} else {
			b.WriteString(" ")
		}
		b.WriteString("Check your account dashboard for detailed instructions.")
		return b.String(), nil

	case model.NotificationLinkingCompleted:
		return fmt.Sprintf("✅ Domain Linked Successfully!\n\nYour domain %s has been successfully linked to your hosting package. It should be accessible within a few minutes.",
			domain), nil

	case model.NotificationAlreadyLinked:
		return fmt.Sprintf("ℹ️ Domain Already Configured\n\nYour domain %s is already properly configured and linked to your hosting package.",
			domain), nil

	case model.NotificationWorkflowFailed:
		reason := data.Error
		if reason == "" {
			reason = "Unknown error"
		}
		return fmt.Sprintf("❌ Domain Linking Failed\n\nWe encountered an issue linking %s: %s. Please check the instructions and try again.",
			domain, strings.TrimSuffix(reason, ".")), nil

	case model.NotificationVerificationTimeout:
		return fmt.Sprintf("⏰ Verification Timeout\n\nDNS verification for %s timed out. Please ensure your DNS changes are saved and try again in a few minutes.",
			domain), nil
	}

	return "", fmt.Errorf("unknown notification type: %s", messageType)
}
