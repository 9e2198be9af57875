package linking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go_domainlink/api/v1/middleware"
	"go_domainlink/internal/auth"
	"go_domainlink/internal/httpx"
	"go_domainlink/internal/linking"
	"go_domainlink/internal/metrics"
	"go_domainlink/internal/model"
	"go_domainlink/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	createReq  linking.CreateRequest
	createErr  error
	owner      int
	cancelled  string
	reason     string
	retried    string
	actionErr  error
	confirmErr error
}

func (f *fakeService) CreateIntent(_ context.Context, req linking.CreateRequest) (*model.LinkIntent, error) {
	f.createReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.LinkIntent{ID: "intent-1", DomainName: req.Domain, WorkflowState: model.WorkflowStateInitiated}, nil
}

func (f *fakeService) ListActiveIntents(context.Context, int) ([]linking.IntentSummary, error) {
	return nil, nil
}

func (f *fakeService) GetIntentForUser(_ context.Context, userID int, intentID string) (*model.LinkIntent, error) {
	if userID != f.owner {
		return nil, linking.ErrIntentNotFound
	}
	return &model.LinkIntent{ID: intentID, UserID: userID}, nil
}

func (f *fakeService) GetUserWorkflowStatus(ctx context.Context, userID int, intentID string) (*linking.WorkflowStatus, error) {
	if _, err := f.GetIntentForUser(ctx, userID, intentID); err != nil {
		return nil, err
	}
	return &linking.WorkflowStatus{IntentID: intentID, WorkflowState: model.WorkflowStateCancelled}, nil
}

func (f *fakeService) UserConfirmInstructions(_ context.Context, _ int, intentID string) (*linking.ConfirmResult, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &linking.ConfirmResult{IntentID: intentID, Message: "checked"}, nil
}

func (f *fakeService) CancelIntent(_ context.Context, intentID, reason string) error {
	f.cancelled, f.reason = intentID, reason
	return f.actionErr
}

func (f *fakeService) RetryIntent(_ context.Context, intentID string) error {
	f.retried = intentID
	return f.actionErr
}

func newTestRouter(t *testing.T, svc Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("handler-secret", "go_domainlink")

	r := gin.New()
	g := r.Group("/api/v1/linking", middleware.AuthRequired())
	NewHandler(svc).Register(g)
	return r
}

func do(t *testing.T, r *gin.Engine, uid int, method, path string, body interface{}) (int, httpx.Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if uid > 0 {
		token, err := auth.GenerateToken(uid, time.Now().Add(time.Hour))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp httpx.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestCreate(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(t, svc)

	sub := 12
	status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents",
		CreateIntentRequest{Domain: "example.com", Mode: "manual_dns", HostingSubscriptionID: &sub})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, httpx.CodeSuccess, resp.Code)
	assert.Equal(t, 5, svc.createReq.UserID)
	assert.Equal(t, model.StrategyManualDNS, svc.createReq.StrategyHint)
	require.NotNil(t, svc.createReq.HostingSubscriptionID)
	assert.Equal(t, 12, *svc.createReq.HostingSubscriptionID)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "intent-1", data["intent_id"])
}

func TestCreate_MissingDomain(t *testing.T) {
	r := newTestRouter(t, &fakeService{})

	status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, httpx.CodeParamInvalid, resp.Code)
}

func TestCreate_Unauthenticated(t *testing.T) {
	r := newTestRouter(t, &fakeService{})

	status, resp := do(t, r, 0, http.MethodPost, "/api/v1/linking/intents", CreateIntentRequest{Domain: "example.com"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, httpx.CodeUnauthorized, resp.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"not found", linking.ErrIntentNotFound, http.StatusNotFound, httpx.CodeNotFound},
		{"duplicate", fmt.Errorf("%w: abc", linking.ErrActiveIntentExists), http.StatusConflict, httpx.CodeAlreadyExists},
		{"invalid state", fmt.Errorf("%w: completed", linking.ErrInvalidState), http.StatusConflict, httpx.CodeStateConflict},
		{"no instructions", linking.ErrNoPendingInstructions, http.StatusConflict, httpx.CodeStateConflict},
		{"invalid domain", fmt.Errorf("%w: localhost", linking.ErrInvalidDomain), http.StatusBadRequest, httpx.CodeParamIllegal},
		{"invalid strategy", fmt.Errorf("%w: x", linking.ErrInvalidStrategy), http.StatusBadRequest, httpx.CodeParamIllegal},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, httpx.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeService{createErr: tt.err})
			status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents", CreateIntentRequest{Domain: "example.com"})
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, resp.Code)
			if tt.code == httpx.CodeInternalError {
				assert.NotContains(t, resp.Message, "connection refused")
			}
		})
	}
}

func TestCancel(t *testing.T) {
	svc := &fakeService{owner: 5}
	r := newTestRouter(t, svc)

	status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents/abc/cancel", CancelIntentRequest{Reason: "changed_mind"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "workflow cancelled", resp.Message)
	assert.Equal(t, "abc", svc.cancelled)
	assert.Equal(t, "changed_mind", svc.reason)
}

func TestCancel_EmptyBody(t *testing.T) {
	svc := &fakeService{owner: 5}
	r := newTestRouter(t, svc)

	status, _ := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents/abc/cancel", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", svc.reason)
}

func TestCancel_RejectsFreeFormReason(t *testing.T) {
	svc := &fakeService{owner: 5}
	r := newTestRouter(t, svc)

	status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents/abc/cancel", CancelIntentRequest{Reason: "Not Now!"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, httpx.CodeParamIllegal, resp.Code)
	assert.Empty(t, svc.cancelled)
}

func TestCancel_OtherUsersIntent(t *testing.T) {
	svc := &fakeService{owner: 5}
	r := newTestRouter(t, svc)

	status, resp := do(t, r, 6, http.MethodPost, "/api/v1/linking/intents/abc/cancel", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, httpx.CodeNotFound, resp.Code)
	assert.Empty(t, svc.cancelled)
}

func TestRetry_NotFailed(t *testing.T) {
	svc := &fakeService{owner: 5, actionErr: fmt.Errorf("%w: only failed workflows can be retried", linking.ErrInvalidState)}
	r := newTestRouter(t, svc)

	status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents/abc/retry", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, httpx.CodeStateConflict, resp.Code)
	assert.Equal(t, "abc", svc.retried)
}

func TestConfirm(t *testing.T) {
	r := newTestRouter(t, &fakeService{owner: 5})
	status, resp := do(t, r, 5, http.MethodPost, "/api/v1/linking/intents/abc/confirm", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "checked", resp.Message)

	r = newTestRouter(t, &fakeService{owner: 5, confirmErr: linking.ErrNoPendingInstructions})
	status, resp = do(t, r, 5, http.MethodPost, "/api/v1/linking/intents/abc/confirm", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, httpx.CodeStateConflict, resp.Code)
}

func TestModes(t *testing.T) {
	r := newTestRouter(t, &fakeService{})
	status, resp := do(t, r, 5, http.MethodGet, "/api/v1/linking/modes", nil)
	assert.Equal(t, http.StatusOK, status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(3), data["total"])
}

func TestList_EmptyIsArray(t *testing.T) {
	r := newTestRouter(t, &fakeService{})
	status, resp := do(t, r, 5, http.MethodGet, "/api/v1/linking/intents", nil)
	assert.Equal(t, http.StatusOK, status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{}, data["items"])
}

func TestWithOrchestrator_AlreadyLinked(t *testing.T) {
	res := testutil.NewFakeResolver()
	res.Set("NS", "example.com", "anderson.ns.cloudflare.com", "leanna.ns.cloudflare.com")
	res.Set("A", "example.com", "192.0.2.10")

	o := linking.New(linking.Deps{
		DB:       testutil.OpenTestDB(t),
		Resolver: res,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	}, linking.Config{
		PlatformNameservers: []string{"anderson.ns.cloudflare.com", "leanna.ns.cloudflare.com"},
		HostingIP:           "192.0.2.10",
		CheckInterval:       time.Hour,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})

	r := newTestRouter(t, o)
	status, resp := do(t, r, 9, http.MethodPost, "/api/v1/linking/intents", CreateIntentRequest{Domain: "Example.com"})
	require.Equal(t, http.StatusOK, status)
	data := resp.Data.(map[string]interface{})
	intentID := data["intent_id"].(string)
	assert.Equal(t, "example.com", data["domain_name"])

	require.Eventually(t, func() bool {
		_, resp := do(t, r, 9, http.MethodGet, "/api/v1/linking/intents/"+intentID, nil)
		status, ok := resp.Data.(map[string]interface{})
		return ok && status["workflow_state"] == string(model.WorkflowStateCompleted)
	}, 10*time.Second, 10*time.Millisecond)

	status, resp = do(t, r, 10, http.MethodGet, "/api/v1/linking/intents/"+intentID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, httpx.CodeNotFound, resp.Code)

	status, resp = do(t, r, 9, http.MethodPost, "/api/v1/linking/intents/"+intentID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, httpx.CodeStateConflict, resp.Code)
}
