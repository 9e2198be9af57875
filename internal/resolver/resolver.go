package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Status describes how a lookup ended
type Status string

const (
	// StatusOK means at least one server answered authoritatively for the name (possibly with no records)
	StatusOK Status = "ok"
	// StatusNXDomain means the queried name does not exist
	StatusNXDomain Status = "nxdomain"
	// StatusError means no server produced a usable answer
	StatusError Status = "error"
)

// Result is the outcome of one lookup. Lookups never return Go errors; callers branch on Status.
type Result struct {
	Values []string `json:"values"`
	Status Status   `json:"status"`
	Error  string   `json:"error,omitempty"`
}

// Empty reports whether the lookup produced no records
func (r Result) Empty() bool {
	return len(r.Values) == 0
}

// Resolver is the DNS lookup capability used by the analyzer and verification checks
type Resolver interface {
	ResolveNS(ctx context.Context, domain string) Result
	ResolveA(ctx context.Context, domain string) Result
	ResolveMX(ctx context.Context, domain string) Result
	ResolveTXT(ctx context.Context, name string) Result
}

// Config holds resolver settings
type Config struct {
	Servers []string
	Timeout time.Duration
	Logger  *logrus.Entry
}

// Client queries a fixed list of recursive servers in order until one answers
type Client struct {
	servers []string
	client  *dns.Client
	logger  *logrus.Entry
}

// NewClient creates a resolver client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		if !strings.Contains(s, ":") {
			s += ":53"
		}
		servers = append(servers, s)
	}
	return &Client{
		servers: servers,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		logger:  logger.WithField("component", "resolver"),
	}
}

// ResolveNS returns the nameserver hostnames of domain, lowercased without trailing dot
func (c *Client) ResolveNS(ctx context.Context, domain string) Result {
	return c.lookup(ctx, domain, dns.TypeNS, func(rr dns.RR) (string, bool) {
		if ns, ok := rr.(*dns.NS); ok {
			return normalizeHost(ns.Ns), true
		}
		return "", false
	})
}

// ResolveA returns the IPv4 addresses of domain
func (c *Client) ResolveA(ctx context.Context, domain string) Result {
	return c.lookup(ctx, domain, dns.TypeA, func(rr dns.RR) (string, bool) {
		if a, ok := rr.(*dns.A); ok {
			return a.A.String(), true
		}
		return "", false
	})
}

// ResolveMX returns the mail exchanger hostnames of domain
func (c *Client) ResolveMX(ctx context.Context, domain string) Result {
	return c.lookup(ctx, domain, dns.TypeMX, func(rr dns.RR) (string, bool) {
		if mx, ok := rr.(*dns.MX); ok {
			return normalizeHost(mx.Mx), true
		}
		return "", false
	})
}

// ResolveTXT returns the TXT strings of name; multi-string records are concatenated
func (c *Client) ResolveTXT(ctx context.Context, name string) Result {
	return c.lookup(ctx, name, dns.TypeTXT, func(rr dns.RR) (string, bool) {
		if txt, ok := rr.(*dns.TXT); ok {
			return strings.Join(txt.Txt, ""), true
		}
		return "", false
	})
}

func (c *Client) lookup(ctx context.Context, name string, qtype uint16, extract func(dns.RR) (string, bool)) Result {
	if len(c.servers) == 0 {
		return Result{Status: StatusError, Error: "no resolver servers configured"}
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr string
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return Result{Status: StatusError, Error: err.Error()}
		}

		resp, _, err := c.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = fmt.Sprintf("%s: %v", server, err)
			c.logger.WithFields(logrus.Fields{"name": name, "type": dns.TypeToString[qtype]}).
				Debugf("Query failed: %s", lastErr)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			values := make([]string, 0, len(resp.Answer))
			for _, rr := range resp.Answer {
				if v, ok := extract(rr); ok {
					values = append(values, v)
				}
			}
			return Result{Values: values, Status: StatusOK}
		case dns.RcodeNameError:
			return Result{Values: []string{}, Status: StatusNXDomain}
		default:
			lastErr = fmt.Sprintf("%s: rcode %s", server, dns.RcodeToString[resp.Rcode])
		}
	}

	return Result{Values: []string{}, Status: StatusError, Error: lastErr}
}

func normalizeHost(h string) string {
	return strings.ToLower(strings.TrimSuffix(h, "."))
}
