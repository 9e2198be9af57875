package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	cloudflareAPIBase = "https://api.cloudflare.com/client/v4"
	requestTimeout    = 10 * time.Second
)

var (
	// ErrNotFound is returned when a DNS record is not found
	ErrNotFound = errors.New("DNS record not found")
	// ErrZoneNotFound is returned when the account has no zone for the domain
	ErrZoneNotFound = errors.New("zone not found")
)

// Record is a DNS record to ensure on a zone
type Record struct {
	Type    string // A, AAAA, CNAME, TXT
	Name    string // FQDN (e.g., www.example.com)
	Value   string // IP address or target
	TTL     int    // Time to live, 1 means automatic
	Proxied bool   // Cloudflare proxy (orange cloud)
}

// Client talks to the Cloudflare v4 API with global API key auth
type Client struct {
	email   string
	apiKey  string
	baseURL string
	client  *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL points the client at another API endpoint
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a new Cloudflare API client
func NewClient(email, apiKey string, opts ...Option) *Client {
	c := &Client{
		email:   email,
		apiKey:  apiKey,
		baseURL: cloudflareAPIBase,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ZoneRecord is a DNS record as returned by the API
type ZoneRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type apiZone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Errors  []apiError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// do sends a request and unwraps the Cloudflare envelope into out
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) (int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Auth-Email", c.email)
	req.Header.Set("X-Auth-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	var cfResp apiResponse
	if err := json.Unmarshal(respBody, &cfResp); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
	}
	if !cfResp.Success {
		for _, e := range cfResp.Errors {
			// 81043 and 81044 mean the record does not exist
			if e.Code == 81044 || e.Code == 81043 {
				return resp.StatusCode, ErrNotFound
			}
		}
		return resp.StatusCode, fmt.Errorf("cloudflare API error: %s", formatErrors(cfResp.Errors))
	}

	if out != nil && len(cfResp.Result) > 0 {
		if err := json.Unmarshal(cfResp.Result, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to parse result: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// FindZoneID returns the id of the active zone named domain
func (c *Client) FindZoneID(ctx context.Context, domain string) (string, error) {
	q := url.Values{}
	q.Set("name", domain)
	var zones []apiZone
	if _, err := c.do(ctx, http.MethodGet, "/zones?"+q.Encode(), nil, &zones); err != nil {
		return "", err
	}
	for _, z := range zones {
		if z.Name == domain {
			return z.ID, nil
		}
	}
	return "", ErrZoneNotFound
}

// EnsureRecord makes sure a record of the given type and name points at
// record.Value. It returns the record id and whether anything changed.
func (c *Client) EnsureRecord(ctx context.Context, zoneID string, record Record) (string, bool, error) {
	existing, err := c.FindRecord(ctx, zoneID, record.Type, record.Name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return "", false, fmt.Errorf("failed to find existing record: %w", err)
	}

	if existing != nil {
		if existing.Content == record.Value && existing.TTL == record.TTL && existing.Proxied == record.Proxied {
			return existing.ID, false, nil
		}
		if _, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, existing.ID), recordPayload(record), nil); err != nil {
			return existing.ID, false, fmt.Errorf("failed to update record: %w", err)
		}
		return existing.ID, true, nil
	}

	var created ZoneRecord
	if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/zones/%s/dns_records", zoneID), recordPayload(record), &created); err != nil {
		return "", false, fmt.Errorf("failed to create record: %w", err)
	}
	return created.ID, true, nil
}

// FindRecord finds a DNS record by type and name
func (c *Client) FindRecord(ctx context.Context, zoneID, recordType, name string) (*ZoneRecord, error) {
	q := url.Values{}
	q.Set("type", recordType)
	q.Set("name", name)
	var records []ZoneRecord
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/zones/%s/dns_records?%s", zoneID, q.Encode()), nil, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return &records[0], nil
}

func recordPayload(record Record) map[string]interface{} {
	return map[string]interface{}{
		"type":    record.Type,
		"name":    record.Name,
		"content": record.Value,
		"ttl":     record.TTL,
		"proxied": record.Proxied,
	}
}

// formatErrors formats Cloudflare API errors into a readable string
func formatErrors(errs []apiError) string {
	if len(errs) == 0 {
		return "unknown error"
	}

	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("[%d] %s", e.Code, e.Message))
	}
	return fmt.Sprintf("%v", msgs)
}
