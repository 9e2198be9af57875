package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go_domainlink/internal/resolver"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status is the overall outcome of an analysis
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
)

// proxyNameserverMarkers identify third-party DNS proxies in NS hostnames
var proxyNameserverMarkers = []string{"cloudflare.com", "cloudflare.net"}

// Result is a snapshot of a domain's current DNS configuration
type Result struct {
	Domain               string    `json:"domain_name"`
	CurrentNameservers   []string  `json:"nameservers"`
	ARecords             []string  `json:"a_records"`
	MXRecords            []string  `json:"mx_records"`
	UsesTargetPlatformNS bool      `json:"uses_target_platform_ns"`
	UsesThirdPartyProxy  bool      `json:"uses_third_party_proxy"`
	NXDomain             bool      `json:"nxdomain"`
	Status               Status    `json:"analysis_status"`
	Errors               []string  `json:"errors,omitempty"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
}

// Analyzer inspects a domain through the resolver capability
type Analyzer struct {
	resolver   resolver.Resolver
	platformNS []string
	logger     *logrus.Entry
}

// New creates an Analyzer that compares nameservers against platformNS
func New(r resolver.Resolver, platformNS []string, logger *logrus.Entry) *Analyzer {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	normalized := make([]string, 0, len(platformNS))
	for _, ns := range platformNS {
		normalized = append(normalized, strings.ToLower(strings.TrimSuffix(ns, ".")))
	}
	return &Analyzer{
		resolver:   r,
		platformNS: normalized,
		logger:     logger.WithField("component", "analyzer"),
	}
}

// PlatformNameservers returns the nameservers domains are expected to delegate to
func (a *Analyzer) PlatformNameservers() []string {
	out := make([]string, len(a.platformNS))
	copy(out, a.platformNS)
	return out
}

// Analyze looks up NS, A and MX records concurrently. It never fails: lookup
// problems degrade to empty lists and a partial_failure status.
func (a *Analyzer) Analyze(ctx context.Context, domain string) Result {
	log := a.logger.WithField("domain", domain)
	log.Info("Starting domain analysis")

	var ns, aRecs, mx resolver.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ns = a.resolver.ResolveNS(gctx, domain)
		return nil
	})
	g.Go(func() error {
		aRecs = a.resolver.ResolveA(gctx, domain)
		return nil
	})
	g.Go(func() error {
		mx = a.resolver.ResolveMX(gctx, domain)
		return nil
	})
	_ = g.Wait()

	result := Result{
		Domain:             domain,
		CurrentNameservers: nonNil(ns.Values),
		ARecords:           nonNil(aRecs.Values),
		MXRecords:          nonNil(mx.Values),
		NXDomain:           ns.Status == resolver.StatusNXDomain,
		Status:             StatusSuccess,
		AnalyzedAt:         time.Now().UTC(),
	}

	lookups := []struct {
		label string
		res   resolver.Result
	}{{"NS", ns}, {"A", aRecs}, {"MX", mx}}
	for _, l := range lookups {
		switch l.res.Status {
		case resolver.StatusError:
			result.Errors = append(result.Errors, fmt.Sprintf("%s lookup failed: %s", l.label, l.res.Error))
		case resolver.StatusNXDomain:
			result.Errors = append(result.Errors, fmt.Sprintf("%s lookup: domain does not exist", l.label))
		}
	}
	if len(result.Errors) > 0 || result.Empty() {
		result.Status = StatusPartialFailure
	}

	result.UsesTargetPlatformNS = a.NameserversMatch(result.CurrentNameservers)
	result.UsesThirdPartyProxy = detectProxy(result.CurrentNameservers)

	log.WithFields(logrus.Fields{
		"nameservers": len(result.CurrentNameservers),
		"a_records":   len(result.ARecords),
		"mx_records":  len(result.MXRecords),
		"status":      result.Status,
	}).Info("Domain analysis complete")

	return result
}

// Empty reports whether no nameserver was found
func (r Result) Empty() bool {
	return len(r.CurrentNameservers) == 0
}

// NameserversMatch reports whether the first two nameservers in current
// all belong to the platform. An empty list never matches.
func (a *Analyzer) NameserversMatch(current []string) bool {
	if len(current) == 0 {
		return false
	}
	head := current
	if len(head) > 2 {
		head = head[:2]
	}
	for _, ns := range head {
		if !a.isPlatformNS(ns) {
			return false
		}
	}
	return true
}

func (a *Analyzer) isPlatformNS(ns string) bool {
	ns = strings.ToLower(strings.TrimSuffix(ns, "."))
	for _, p := range a.platformNS {
		if ns == p {
			return true
		}
	}
	return false
}

func detectProxy(nameservers []string) bool {
	for _, ns := range nameservers {
		for _, marker := range proxyNameserverMarkers {
			if strings.Contains(ns, marker) {
				return true
			}
		}
	}
	return false
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
