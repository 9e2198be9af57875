package linking

import (
	"fmt"
	"strings"

	"go_domainlink/internal/analyzer"
	"go_domainlink/internal/model"

	"github.com/sirupsen/logrus"
)

// complexMailThreshold is the MX count above which moving nameservers is considered risky
const complexMailThreshold = 2

// specializedDNSMarkers identify DNS providers whose setups should stay in place
var specializedDNSMarkers = []string{"cloudns", "route53", "awsdns"}

// StrategyDecision is the selected strategy and why
type StrategyDecision struct {
	Strategy model.LinkingStrategy `json:"strategy"`
	Reason   string                `json:"reason"`
}

// SelectStrategy picks a linking strategy from an analysis. Rules apply in order:
// platform nameservers, third-party proxy, complex mail, specialized DNS provider.
func SelectStrategy(a analyzer.Result) StrategyDecision {
	if a.UsesTargetPlatformNS {
		return StrategyDecision{Strategy: model.StrategyAlreadyLinked, Reason: "domain_already_uses_platform_nameservers"}
	}
	if a.UsesThirdPartyProxy {
		return StrategyDecision{Strategy: model.StrategyManualDNS, Reason: "third_party_proxy_detected"}
	}
	if len(a.MXRecords) > complexMailThreshold {
		return StrategyDecision{Strategy: model.StrategyManualDNS, Reason: "complex_mail_setup"}
	}
	for _, ns := range a.CurrentNameservers {
		lower := strings.ToLower(ns)
		for _, marker := range specializedDNSMarkers {
			if strings.Contains(lower, marker) {
				return StrategyDecision{Strategy: model.StrategyManualDNS, Reason: "specialized_dns_provider"}
			}
		}
	}
	return StrategyDecision{Strategy: model.StrategySmartMode, Reason: "default"}
}

// ApplyHint lets a manual_dns hint downgrade smart_mode. Nothing overrides already_linked.
func ApplyHint(d StrategyDecision, hint model.LinkingStrategy) StrategyDecision {
	if hint == model.StrategyManualDNS && d.Strategy == model.StrategySmartMode {
		return StrategyDecision{Strategy: model.StrategyManualDNS, Reason: "user_requested_manual_dns"}
	}
	return d
}

// selectStrategySafely never fails: a panic during selection falls back to
// smart_mode and the returned warning is surfaced to the user.
func selectStrategySafely(a analyzer.Result, hint model.LinkingStrategy, logger *logrus.Entry) (decision StrategyDecision, warning string) {
	defer func() {
		if r := recover(); r != nil {
			warning = fmt.Sprintf("Strategy selection failed, using smart mode: %v", r)
			logger.WithField("domain", a.Domain).Warn(warning)
			decision = StrategyDecision{Strategy: model.StrategySmartMode, Reason: "fallback"}
		}
	}()
	return ApplyHint(SelectStrategy(a), hint), ""
}

// ValidHint reports whether s may be passed as a strategy hint
func ValidHint(s model.LinkingStrategy) bool {
	return s == "" || s == model.StrategySmartMode || s == model.StrategyManualDNS
}
