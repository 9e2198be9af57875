package verification

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go_domainlink/internal/model"
	"go_domainlink/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	return NewService(db, 5*time.Minute), db
}

func createNS(t *testing.T, s *Service, intentID string) *model.DomainVerification {
	t.Helper()
	v, err := s.Create(context.Background(), CreateParams{
		IntentID:      intentID,
		Type:          model.VerificationTypeNameserverChange,
		Step:          "nameserver_verification",
		Method:        "dns_lookup",
		ExpectedValue: "anderson.ns.cloudflare.com,leanna.ns.cloudflare.com",
	})
	require.NoError(t, err)
	return v
}

func makeDue(t *testing.T, db *gorm.DB, id string, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&model.DomainVerification{}).Where("id = ?", id).Update("next_check_at", at).Error)
}

func TestCreate_Pending(t *testing.T) {
	s, _ := newTestService(t)
	before := time.Now()

	v := createNS(t, s, "intent-1")

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, model.VerificationStatusPending, v.Status)
	require.NotNil(t, v.NextCheckAt)
	assert.True(t, v.NextCheckAt.After(before.Add(5*time.Minute-time.Second)))
	assert.Equal(t, 0, v.AttemptCount)
}

func TestCreate_SupersedesActive(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	first := createNS(t, s, "intent-1")
	second := createNS(t, s, "intent-1")

	old, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationStatusExpired, old.Status)

	active, err := s.GetActiveForIntent(ctx, "intent-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrVerificationNotFound)

	active, err := s.GetActiveForIntent(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGetPendingVerifications(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	later := createNS(t, s, "intent-a")
	sooner := createNS(t, s, "intent-b")
	notDue := createNS(t, s, "intent-c")
	exhausted := createNS(t, s, "intent-d")

	makeDue(t, db, later.ID, time.Now().Add(-time.Minute))
	makeDue(t, db, sooner.ID, time.Now().Add(-time.Hour))
	makeDue(t, db, exhausted.ID, time.Now().Add(-time.Hour))
	require.NoError(t, db.Model(&model.DomainVerification{}).Where("id = ?", exhausted.ID).
		Update("retry_count", MaxSweepRetries).Error)

	due, err := s.GetPendingVerifications(ctx, 100)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, sooner.ID, due[0].ID)
	assert.Equal(t, later.ID, due[1].ID)
	for _, v := range due {
		assert.NotEqual(t, notDue.ID, v.ID)
	}

	limited, err := s.GetPendingVerifications(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestClaim_SingleWinner(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	a, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	b, err := s.Get(ctx, v.ID)
	require.NoError(t, err)

	require.NoError(t, s.Claim(ctx, a))
	assert.ErrorIs(t, s.Claim(ctx, b), ErrClaimLost)
	assert.Equal(t, 1, a.CheckVersion)
}

func TestRecordPending_SchedulesNext(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	require.NoError(t, s.Claim(ctx, v))
	require.NoError(t, s.RecordPending(ctx, v, CheckResult{
		Outcome: OutcomePending,
		Actual:  "ns1.registrar.net",
		Message: "Nameservers not yet updated",
		Details: map[string]interface{}{"current_nameservers": []string{"ns1.registrar.net"}},
	}))

	stored, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationStatusInProgress, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Equal(t, "ns1.registrar.net", stored.ActualValue)
	assert.NotNil(t, stored.FirstCheckedAt)
	assert.NotNil(t, stored.LastCheckedAt)
	require.NotNil(t, stored.NextCheckAt)
	assert.True(t, stored.NextCheckAt.After(time.Now().Add(4*time.Minute)))
	assert.Contains(t, string(stored.CheckDetails), "current_nameservers")
}

func TestRecordMatch_TerminalIsImmutable(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	require.NoError(t, s.Claim(ctx, v))
	require.NoError(t, s.RecordMatch(ctx, v, CheckResult{Outcome: OutcomeMatched, Actual: "ok"}))
	assert.Equal(t, model.VerificationStatusCompleted, v.Status)
	assert.NotNil(t, v.CompletedAt)

	assert.ErrorIs(t, s.Claim(ctx, v), ErrClaimLost)
	assert.ErrorIs(t, s.RecordFailure(ctx, v, CheckResult{Outcome: OutcomeFailed}), ErrClaimLost)
	assert.ErrorIs(t, s.Expire(ctx, v, "late"), ErrClaimLost)

	stored, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
}

func TestRecord_StaleClaimRejected(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	stale, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, s.Claim(ctx, v))

	assert.ErrorIs(t, s.RecordPending(ctx, stale, CheckResult{Outcome: OutcomePending}), ErrClaimLost)
}

func TestRecordFailure_TruncatesMessage(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, s.Claim(ctx, v))
	require.NoError(t, s.RecordFailure(ctx, v, CheckResult{Outcome: OutcomeFailed, Message: string(long)}))

	stored, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationStatusFailed, stored.Status)
	assert.Len(t, stored.ErrorMessage, 255)
	assert.Nil(t, stored.NextCheckAt)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want int
	}{
		{"short", "resolver timeout", 16},
		{"exact limit", strings.Repeat("x", 255), 255},
		{"ascii", strings.Repeat("x", 400), 255},
		{"two byte runes", strings.Repeat("é", 200), 255},
		{"cut inside a rune", "a" + strings.Repeat("€", 100), 253},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.msg)
			assert.Len(t, got, tt.want)
			assert.True(t, utf8.ValidString(got))
			if got != tt.msg {
				assert.True(t, strings.HasSuffix(got, "..."))
				assert.True(t, strings.HasPrefix(tt.msg, strings.TrimSuffix(got, "...")))
			}
		})
	}
}

func TestRecordFailure_KeepsUTF8Valid(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	require.NoError(t, s.Claim(ctx, v))
	require.NoError(t, s.RecordFailure(ctx, v, CheckResult{Outcome: OutcomeFailed, Message: "a" + strings.Repeat("€", 100)}))

	stored, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(stored.ErrorMessage))
	assert.True(t, strings.HasSuffix(stored.ErrorMessage, "€..."))
}

func TestIncrementRetry(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	v := createNS(t, s, "intent-1")

	require.NoError(t, s.IncrementRetry(ctx, v))
	require.NoError(t, s.IncrementRetry(ctx, v))

	stored, err := s.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RetryCount)
}

func TestExpireExhausted(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	capped := createNS(t, s, "intent-1")
	fresh := createNS(t, s, "intent-2")
	require.NoError(t, db.Model(&model.DomainVerification{}).Where("id = ?", capped.ID).
		Update("retry_count", MaxSweepRetries).Error)

	expired, err := s.ExpireExhausted(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, capped.ID, expired[0].ID)
	assert.Equal(t, model.VerificationStatusExpired, expired[0].Status)

	stillActive, err := s.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, stillActive.Status.IsActive())

	again, err := s.ExpireExhausted(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestCleanupExpiredVerifications(t *testing.T) {
	s, db := newTestService(t)
	ctx := context.Background()

	old := createNS(t, s, "intent-1")
	recent := createNS(t, s, "intent-2")
	require.NoError(t, db.Model(&model.DomainVerification{}).Where("id = ?", old.ID).
		UpdateColumn("created_at", time.Now().Add(-25*time.Hour)).Error)

	expired, err := s.CleanupExpiredVerifications(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, old.ID, expired[0].ID)

	stored, err := s.Get(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationStatusPending, stored.Status)
}
