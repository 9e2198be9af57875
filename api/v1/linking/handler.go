package linking

import (
	"context"
	"errors"
	"io"
	"regexp"

	"go_domainlink/api/v1/middleware"
	"go_domainlink/internal/httpx"
	"go_domainlink/internal/linking"
	"go_domainlink/internal/model"

	"github.com/gin-gonic/gin"
)

// Service is the part of the orchestrator the REST façade needs
type Service interface {
	CreateIntent(ctx context.Context, req linking.CreateRequest) (*model.LinkIntent, error)
	ListActiveIntents(ctx context.Context, userID int) ([]linking.IntentSummary, error)
	GetIntentForUser(ctx context.Context, userID int, intentID string) (*model.LinkIntent, error)
	GetUserWorkflowStatus(ctx context.Context, userID int, intentID string) (*linking.WorkflowStatus, error)
	UserConfirmInstructions(ctx context.Context, userID int, intentID string) (*linking.ConfirmResult, error)
	CancelIntent(ctx context.Context, intentID, reason string) error
	RetryIntent(ctx context.Context, intentID string) error
}

var cancelReasonPattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Handler serves the domain linking routes
type Handler struct {
	svc Service
}

// NewHandler creates a Handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the routes on an authenticated group
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/modes", h.Modes)
	g.POST("/intents", h.Create)
	g.GET("/intents", h.List)
	g.GET("/intents/:id", h.Status)
	g.POST("/intents/:id/confirm", h.Confirm)
	g.POST("/intents/:id/cancel", h.Cancel)
	g.POST("/intents/:id/retry", h.Retry)
}

// Modes lists the linking strategies a user can pick from
// GET /api/v1/linking/modes
func (h *Handler) Modes(c *gin.Context) {
	modes := linking.Modes()
	httpx.OKItems(c, modes, len(modes))
}

// Create starts a linking workflow
// POST /api/v1/linking/intents
func (h *Handler) Create(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("domain is required"))
		return
	}

	intent, err := h.svc.CreateIntent(c.Request.Context(), linking.CreateRequest{
		UserID:                uid,
		Domain:                req.Domain,
		StrategyHint:          model.LinkingStrategy(req.Mode),
		HostingSubscriptionID: req.HostingSubscriptionID,
	})
	if err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}

	httpx.OK(c, CreateIntentResponse{
		IntentID:      intent.ID,
		DomainName:    intent.DomainName,
		WorkflowState: intent.WorkflowState,
		CreatedAt:     intent.CreatedAt,
	})
}

// List returns the caller's active intents
// GET /api/v1/linking/intents
func (h *Handler) List(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.svc.ListActiveIntents(c.Request.Context(), uid)
	if err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	if items == nil {
		items = []linking.IntentSummary{}
	}
	httpx.OKItems(c, items, len(items))
}

// Status returns the user-facing status of one intent
// GET /api/v1/linking/intents/:id
func (h *Handler) Status(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	status, err := h.svc.GetUserWorkflowStatus(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	httpx.OK(c, status)
}

// Confirm runs an immediate verification check after the user applied the instructions
// POST /api/v1/linking/intents/:id/confirm
func (h *Handler) Confirm(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.svc.UserConfirmInstructions(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	httpx.OKMsg(c, result.Message, result)
}

// Cancel cancels an active intent
// POST /api/v1/linking/intents/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var req CancelIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	if req.Reason != "" && !cancelReasonPattern.MatchString(req.Reason) {
		httpx.FailErr(c, httpx.ErrParamIllegal("reason must be lowercase letters, digits or underscores"))
		return
	}

	ctx := c.Request.Context()
	intentID := c.Param("id")
	if _, err := h.svc.GetIntentForUser(ctx, uid, intentID); err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	if err := h.svc.CancelIntent(ctx, intentID, req.Reason); err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	h.respondStatus(c, uid, intentID, "workflow cancelled")
}

// Retry restarts a failed intent from the state it failed in
// POST /api/v1/linking/intents/:id/retry
func (h *Handler) Retry(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	intentID := c.Param("id")
	if _, err := h.svc.GetIntentForUser(ctx, uid, intentID); err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	if err := h.svc.RetryIntent(ctx, intentID); err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	h.respondStatus(c, uid, intentID, "workflow restarted")
}

func (h *Handler) respondStatus(c *gin.Context, uid int, intentID, message string) {
	status, err := h.svc.GetUserWorkflowStatus(c.Request.Context(), uid, intentID)
	if err != nil {
		httpx.FailErr(c, toAppError(err))
		return
	}
	httpx.OKMsg(c, message, status)
}

func currentUser(c *gin.Context) (int, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		httpx.FailErr(c, httpx.ErrUnauthorized(""))
		return 0, false
	}
	return uid, true
}

// toAppError maps orchestrator errors onto API error codes
func toAppError(err error) *httpx.AppError {
	switch {
	case errors.Is(err, linking.ErrIntentNotFound):
		return httpx.ErrNotFound(linking.ErrIntentNotFound.Error())
	case errors.Is(err, linking.ErrActiveIntentExists):
		return httpx.ErrAlreadyExists(err.Error())
	case errors.Is(err, linking.ErrInvalidState),
		errors.Is(err, linking.ErrNoPendingInstructions),
		errors.Is(err, linking.ErrConcurrentUpdate):
		return httpx.ErrStateConflict(err.Error())
	case errors.Is(err, linking.ErrInvalidDomain),
		errors.Is(err, linking.ErrInvalidStrategy):
		return httpx.ErrParamIllegal(err.Error())
	default:
		return httpx.ErrInternalError("", err)
	}
}
