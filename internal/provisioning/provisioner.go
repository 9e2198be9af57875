package provisioning

import (
	"context"
	"errors"
	"fmt"

	"go_domainlink/internal/model"
	"go_domainlink/internal/provisioning/cloudflare"

	"github.com/sirupsen/logrus"
)

// Request describes the hosting integration to set up for a linked domain
type Request struct {
	IntentID              string
	UserID                int
	DomainName            string
	Strategy              model.LinkingStrategy
	HostingSubscriptionID *int
}

// Result describes what provisioning did
type Result struct {
	Provider  string   `json:"provider"`
	ZoneID    string   `json:"zone_id,omitempty"`
	RecordIDs []string `json:"record_ids,omitempty"`
	Changed   bool     `json:"changed"`
}

// Provisioner binds a verified domain to hosting. Implementations must be
// safe to call again for the same intent.
type Provisioner interface {
	Provision(ctx context.Context, req Request) (*Result, error)
}

// LogProvisioner only records the request. Used when no DNS provider is configured.
type LogProvisioner struct {
	logger *logrus.Entry
}

// NewLogProvisioner creates a LogProvisioner
func NewLogProvisioner(logger *logrus.Entry) *LogProvisioner {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &LogProvisioner{logger: logger.WithFields(logrus.Fields{"component": "provisioning", "provider": "log"})}
}

// Provision implements Provisioner
func (p *LogProvisioner) Provision(_ context.Context, req Request) (*Result, error) {
	p.logger.WithFields(logrus.Fields{
		"intent_id": req.IntentID,
		"domain":    req.DomainName,
		"strategy":  req.Strategy,
	}).Info("Hosting provisioning requested")
	return &Result{Provider: "log"}, nil
}

// CloudflareProvisioner points the platform zone of a domain at the hosting IP
type CloudflareProvisioner struct {
	client    *cloudflare.Client
	hostingIP string
	logger    *logrus.Entry
}

// NewCloudflareProvisioner creates a CloudflareProvisioner
func NewCloudflareProvisioner(client *cloudflare.Client, hostingIP string, logger *logrus.Entry) *CloudflareProvisioner {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CloudflareProvisioner{
		client:    client,
		hostingIP: hostingIP,
		logger:    logger.WithFields(logrus.Fields{"component": "provisioning", "provider": "cloudflare"}),
	}
}

// Provision ensures an A record for the apex and a www CNAME on the
// platform zone. Manual DNS domains keep their zone elsewhere, so a
// missing zone is not an error for them.
func (p *CloudflareProvisioner) Provision(ctx context.Context, req Request) (*Result, error) {
	log := p.logger.WithFields(logrus.Fields{
		"intent_id": req.IntentID,
		"domain":    req.DomainName,
	})

	zoneID, err := p.client.FindZoneID(ctx, req.DomainName)
	if errors.Is(err, cloudflare.ErrZoneNotFound) && req.Strategy == model.StrategyManualDNS {
		log.Info("Domain DNS is managed externally, nothing to provision on the platform zone")
		return &Result{Provider: "external"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find zone for %s: %w", req.DomainName, err)
	}

	result := &Result{Provider: "cloudflare", ZoneID: zoneID}
	records := []cloudflare.Record{
		{Type: "A", Name: req.DomainName, Value: p.hostingIP, TTL: 300},
		{Type: "CNAME", Name: "www." + req.DomainName, Value: req.DomainName, TTL: 300},
	}
	for _, record := range records {
		id, changed, err := p.client.EnsureRecord(ctx, zoneID, record)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure %s record %s: %w", record.Type, record.Name, err)
		}
		result.RecordIDs = append(result.RecordIDs, id)
		result.Changed = result.Changed || changed
	}

	log.WithField("changed", result.Changed).Info("Hosting records ensured")
	return result, nil
}
