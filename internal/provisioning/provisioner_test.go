package provisioning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go_domainlink/internal/model"
	"go_domainlink/internal/provisioning/cloudflare"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloudflare is an in-memory subset of the zones and dns_records API
type fakeCloudflare struct {
	mu      sync.Mutex
	zones   map[string]string
	records map[string]cloudflare.ZoneRecord
	nextID  int
	writes  int
}

func newFakeCloudflare() *fakeCloudflare {
	return &fakeCloudflare{zones: map[string]string{}, records: map[string]cloudflare.ZoneRecord{}}
}

func (f *fakeCloudflare) reply(w http.ResponseWriter, result interface{}) {
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"errors":  []interface{}{},
		"result":  json.RawMessage(raw),
	})
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("X-Auth-Email") != "ops@example.com" || r.Header.Get("X-Auth-Key") != "key" {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  []map[string]interface{}{{"code": 9103, "message": "Unknown X-Auth-Key or X-Auth-Email"}},
		})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "zones":
		name := r.URL.Query().Get("name")
		var zones []map[string]string
		if id, ok := f.zones[name]; ok {
			zones = append(zones, map[string]string{"id": id, "name": name, "status": "active"})
		}
		f.reply(w, zones)

	case r.Method == http.MethodGet && len(parts) == 3:
		var out []cloudflare.ZoneRecord
		for _, rec := range f.records {
			if rec.Type == r.URL.Query().Get("type") && rec.Name == r.URL.Query().Get("name") {
				out = append(out, rec)
			}
		}
		f.reply(w, out)

	case r.Method == http.MethodPost && len(parts) == 3:
		var rec cloudflare.ZoneRecord
		_ = json.NewDecoder(r.Body).Decode(&rec)
		f.nextID++
		rec.ID = "rec-" + string(rune('0'+f.nextID))
		f.records[rec.ID] = rec
		f.writes++
		f.reply(w, rec)

	case r.Method == http.MethodPut && len(parts) == 4:
		var rec cloudflare.ZoneRecord
		_ = json.NewDecoder(r.Body).Decode(&rec)
		rec.ID = parts[3]
		f.records[rec.ID] = rec
		f.writes++
		f.reply(w, rec)

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	}
}

func newTestProvisioner(t *testing.T, f *fakeCloudflare, key string) *CloudflareProvisioner {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client := cloudflare.NewClient("ops@example.com", key, cloudflare.WithBaseURL(srv.URL))
	return NewCloudflareProvisioner(client, "198.51.100.10", nil)
}

func TestCloudflareProvisioner_CreatesThenNoop(t *testing.T) {
	f := newFakeCloudflare()
	f.zones["example.com"] = "zone-1"
	p := newTestProvisioner(t, f, "key")
	req := Request{IntentID: "i-1", DomainName: "example.com", Strategy: model.StrategySmartMode}

	res, err := p.Provision(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "cloudflare", res.Provider)
	assert.Equal(t, "zone-1", res.ZoneID)
	assert.Len(t, res.RecordIDs, 2)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, f.writes)

	again, err := p.Provision(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, res.RecordIDs, again.RecordIDs)
	assert.Equal(t, 2, f.writes)
}

func TestCloudflareProvisioner_UpdatesStaleRecord(t *testing.T) {
	f := newFakeCloudflare()
	f.zones["example.com"] = "zone-1"
	f.records["old"] = cloudflare.ZoneRecord{ID: "old", Type: "A", Name: "example.com", Content: "192.0.2.1", TTL: 300}
	p := newTestProvisioner(t, f, "key")

	res, err := p.Provision(context.Background(), Request{DomainName: "example.com", Strategy: model.StrategySmartMode})
	require.NoError(t, err)
	assert.Equal(t, "old", res.RecordIDs[0])
	assert.Equal(t, "198.51.100.10", f.records["old"].Content)
}

func TestCloudflareProvisioner_ZoneMissing(t *testing.T) {
	f := newFakeCloudflare()
	p := newTestProvisioner(t, f, "key")

	res, err := p.Provision(context.Background(), Request{DomainName: "example.com", Strategy: model.StrategyManualDNS})
	require.NoError(t, err)
	assert.Equal(t, "external", res.Provider)

	_, err = p.Provision(context.Background(), Request{DomainName: "example.com", Strategy: model.StrategySmartMode})
	require.Error(t, err)
	assert.ErrorIs(t, err, cloudflare.ErrZoneNotFound)
}

func TestCloudflareProvisioner_APIError(t *testing.T) {
	f := newFakeCloudflare()
	p := newTestProvisioner(t, f, "wrong")

	_, err := p.Provision(context.Background(), Request{DomainName: "example.com", Strategy: model.StrategySmartMode})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9103")
}

func TestLogProvisioner(t *testing.T) {
	res, err := NewLogProvisioner(nil).Provision(context.Background(), Request{DomainName: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, "log", res.Provider)
}
