package linking

import (
	"testing"

	"go_domainlink/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNameserverInstructions(t *testing.T) {
	in := BuildNameserverInstructions("example.com", platformNS)

	assert.Equal(t, "nameserver_change", in.Type)
	assert.Equal(t, platformNS, in.TargetNameservers)
	assert.Equal(t, "5-30 minutes", in.EstimatedPropagationTime)
	assert.Contains(t, in.Instructions, "   • anderson.ns.cloudflare.com")
	assert.Contains(t, in.Instructions, "   • leanna.ns.cloudflare.com")
	assert.Len(t, in.Warnings, 2)

	// the caller's slice is not shared
	in.TargetNameservers[0] = "changed"
	assert.Equal(t, "anderson.ns.cloudflare.com", platformNS[0])
}

func TestBuildDNSInstructions(t *testing.T) {
	in := BuildDNSInstructions("example.com", "platform-verify", "192.0.2.10", "platform-verify-abc")

	assert.Equal(t, "manual_dns", in.Type)
	assert.Equal(t, "dns_txt", in.VerificationMethod)
	assert.Equal(t, "platform-verify-abc", in.VerificationToken)
	require.Len(t, in.DNSRecords, 2)
	assert.Equal(t, DNSRecordInstruction{Type: "TXT", Name: "_platform-verify.example.com", Value: "platform-verify-abc", TTL: 300}, in.DNSRecords[0])
	assert.Equal(t, DNSRecordInstruction{Type: "A", Name: "example.com", Value: "192.0.2.10", TTL: 300}, in.DNSRecords[1])
	assert.Equal(t, []string{
		"TXT _platform-verify.example.com platform-verify-abc (TTL 300)",
		"A example.com 192.0.2.10 (TTL 300)",
	}, in.RecordLines())
}

func TestGenerateOwnershipToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := GenerateOwnershipToken("platform-verify")
		require.NoError(t, err)
		assert.Regexp(t, `^platform-verify-[0-9a-f]{32}$`, token)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestModes(t *testing.T) {
	modes := Modes()
	require.Len(t, modes, 3)
	assert.Equal(t, model.StrategySmartMode, modes[0].Key)
	assert.Equal(t, "easy", modes[0].Difficulty)
	assert.Equal(t, model.StrategyManualDNS, modes[1].Key)
	assert.Equal(t, model.StrategyAlreadyLinked, modes[2].Key)
	assert.False(t, modes[2].RequiresUserAction)
}

func TestConfigurationRoundTrip(t *testing.T) {
	cfg, err := DecodeConfiguration(nil)
	require.NoError(t, err)
	assert.Equal(t, configurationSchemaVersion, cfg.SchemaVersion)

	cfg.LinkingStrategy = model.StrategyManualDNS
	cfg.VerificationID = "v-1"
	raw, err := cfg.encode()
	require.NoError(t, err)

	back, err := DecodeConfiguration(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	_, err = DecodeConfiguration([]byte("{"))
	assert.Error(t, err)

	details, err := DecodeErrorDetails([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, details)
}
