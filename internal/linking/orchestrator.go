package linking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go_domainlink/internal/analyzer"
	"go_domainlink/internal/lock"
	"go_domainlink/internal/metrics"
	"go_domainlink/internal/model"
	"go_domainlink/internal/notify"
	"go_domainlink/internal/provisioning"
	"go_domainlink/internal/resolver"
	"go_domainlink/internal/verification"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Config holds workflow settings
type Config struct {
	PlatformNameservers   []string
	HostingIP             string
	VerifyPrefix          string
	CheckInterval         time.Duration
	NameserverMaxAttempts int
	TXTMaxAttempts        int
	AutoRetryLimit        int
	AutoRetryDelay        time.Duration
	StaleIntentAfter      time.Duration
	RecoveryBatchSize     int
	// ConfirmTimeout bounds the check and finalization run for a user confirmation
	ConfirmTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.VerifyPrefix == "" {
		c.VerifyPrefix = "platform-verify"
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 5 * time.Minute
	}
	if c.NameserverMaxAttempts <= 0 {
		c.NameserverMaxAttempts = 60
	}
	if c.TXTMaxAttempts <= 0 {
		c.TXTMaxAttempts = 120
	}
	if c.AutoRetryLimit <= 0 {
		c.AutoRetryLimit = 3
	}
	if c.AutoRetryDelay <= 0 {
		c.AutoRetryDelay = 15 * time.Minute
	}
	if c.StaleIntentAfter <= 0 {
		c.StaleIntentAfter = 10 * time.Minute
	}
	if c.RecoveryBatchSize <= 0 {
		c.RecoveryBatchSize = 100
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 2 * time.Minute
	}
}

// Deps are the collaborators of the orchestrator. Only DB and Resolver are required.
type Deps struct {
	DB          *gorm.DB
	Resolver    resolver.Resolver
	Messenger   notify.Messenger
	Provisioner provisioning.Provisioner
	// Lease is an optional cross-process lock taken after the in-process one
	Lease   lock.Locker
	Metrics *metrics.Metrics
	Logger  *logrus.Entry
}

// Orchestrator drives link intents through the workflow state machine.
// Every mutation of an intent happens under its per-intent lock and is
// written conditionally on the intent version.
type Orchestrator struct {
	cfg           Config
	intents       *intentStore
	verifications *verification.Service
	checker       *verification.Checker
	analyzer      *analyzer.Analyzer
	ledger        *notify.Ledger
	provisioner   provisioning.Provisioner
	locker        lock.Locker
	metrics       *metrics.Metrics
	logger        *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	running  map[string]struct{}
	monitors map[string]struct{}
}

// New creates an Orchestrator
func New(deps Deps, cfg Config) *Orchestrator {
	cfg.setDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	messenger := deps.Messenger
	if messenger == nil {
		messenger = notify.NewLogMessenger(logger)
	}
	provisioner := deps.Provisioner
	if provisioner == nil {
		provisioner = provisioning.NewLogProvisioner(logger)
	}

	a := analyzer.New(deps.Resolver, cfg.PlatformNameservers, logger)
	m := deps.Metrics
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		cfg:           cfg,
		intents:       &intentStore{db: deps.DB},
		verifications: verification.NewService(deps.DB, cfg.CheckInterval),
		checker:       verification.NewChecker(deps.Resolver, a, cfg.VerifyPrefix),
		analyzer:      a,
		ledger: notify.NewLedger(deps.DB, messenger, logger, func(t model.NotificationType, result string) {
			m.IncNotification(string(t), result)
		}),
		provisioner: provisioner,
		locker:      lock.Chain{lock.NewKeyedMutex(), deps.Lease},
		metrics:     m,
		logger:      logger.WithField("component", "linking-orchestrator"),
		ctx:         ctx,
		cancel:      cancel,
		running:     make(map[string]struct{}),
		monitors:    make(map[string]struct{}),
	}
}

// Verifications exposes the verification service for the sweep worker
func (o *Orchestrator) Verifications() *verification.Service {
	return o.verifications
}

// Shutdown stops background executions and monitors and waits for them,
// or until ctx is done. Persisted state lets the sweep resume them later.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("Background workflows stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitIdle blocks until no workflow execution is running in this process,
// or until ctx is done. Verification monitors are not waited for.
func (o *Orchestrator) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		o.mu.Lock()
		idle := len(o.running) == 0
		o.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) lockIntent(ctx context.Context, intentID string) (func(), error) {
	return o.locker.Lock(ctx, intentID)
}

// lockAndLoad takes the intent lock and reads the current row under it
func (o *Orchestrator) lockAndLoad(ctx context.Context, intentID string) (*model.LinkIntent, func(), error) {
	unlock, err := o.lockIntent(ctx, intentID)
	if err != nil {
		return nil, nil, err
	}
	intent, err := o.intents.get(ctx, intentID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return intent, unlock, nil
}

// spawn runs fn in a supervised goroutine. At most one execution per intent
// runs in this process. Panics and unexpected errors are routed to HandleFailure.
func (o *Orchestrator) spawn(intentID string, fn func(ctx context.Context) error) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	if _, busy := o.running[intentID]; busy {
		o.mu.Unlock()
		return false
	}
	o.running[intentID] = struct{}{}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.running, intentID)
			o.mu.Unlock()
		}()
		defer o.recoverInto(intentID)

		if err := fn(o.ctx); err != nil {
			o.routeError(intentID, err)
		}
	}()
	return true
}

func (o *Orchestrator) isRunning(intentID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[intentID]
	return ok
}

func (o *Orchestrator) hasMonitor(verificationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.monitors[verificationID]
	return ok
}

func (o *Orchestrator) recoverInto(intentID string) {
	if r := recover(); r != nil {
		o.logger.WithField("intent_id", intentID).Errorf("Workflow panic: %v\n%s", r, debug.Stack())
		o.routeError(intentID, fmt.Errorf("panic: %v", r))
	}
}

// routeError funnels an unexpected background error into HandleFailure.
// Shutdown and lost races are not failures of the intent.
func (o *Orchestrator) routeError(intentID string, err error) {
	log := o.logger.WithField("intent_id", intentID)
	switch {
	case o.ctx.Err() != nil:
		log.Infof("Workflow interrupted by shutdown: %v", err)
		return
	case errors.Is(err, ErrConcurrentUpdate), errors.Is(err, ErrInvalidState):
		log.Warnf("Workflow step skipped: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if ferr := o.HandleFailure(ctx, intentID, string(ReasonWorkflowException), err.Error()); ferr != nil {
		log.Errorf("Failed to record workflow failure: %v", ferr)
	}
}

// transition describes one state change of an intent
type transition struct {
	state        model.WorkflowState
	step         string
	strategy     model.LinkingStrategy
	configure    func(cfg *Configuration)
	errorDetails *ErrorDetails
}

var allowedTransitions = map[model.WorkflowState][]model.WorkflowState{
	model.WorkflowStateInitiated: {
		model.WorkflowStateAnalyzingDomain,
	},
	model.WorkflowStateAnalyzingDomain: {
		model.WorkflowStateAwaitingUserChoice,
		model.WorkflowStateCompleted,
	},
	model.WorkflowStateAwaitingUserChoice: {
		model.WorkflowStateVerifyingNameservers,
		model.WorkflowStateVerifyingOwnership,
	},
	model.WorkflowStateVerifyingNameservers: {
		model.WorkflowStateProvisioningHosting,
	},
	model.WorkflowStateVerifyingOwnership: {
		model.WorkflowStateProvisioningHosting,
	},
	model.WorkflowStateProvisioningHosting: {
		model.WorkflowStateCompleted,
	},
	model.WorkflowStateFailed: {
		model.WorkflowStateInitiated,
		model.WorkflowStateAnalyzingDomain,
		model.WorkflowStateAwaitingUserChoice,
		model.WorkflowStateVerifyingNameservers,
		model.WorkflowStateVerifyingOwnership,
		model.WorkflowStateProvisioningHosting,
	},
}

// canTransition reports whether from may move to to. FAILED and CANCELLED are
// reachable from every active state; FAILED only leaves through re-entry.
func canTransition(from, to model.WorkflowState) bool {
	switch from {
	case model.WorkflowStateCompleted, model.WorkflowStateCancelled:
		return false
	case model.WorkflowStateFailed:
	default:
		if to == model.WorkflowStateFailed || to == model.WorkflowStateCancelled || from == to {
			return true
		}
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// apply writes a transition. The caller must hold the intent lock.
func (o *Orchestrator) apply(ctx context.Context, intent *model.LinkIntent, t transition) error {
	from := intent.WorkflowState
	if !canTransition(from, t.state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, t.state)
	}

	updates := map[string]interface{}{
		"workflow_state":      t.state,
		"current_step":        t.step,
		"progress_percentage": t.state.Progress(),
	}
	if t.strategy != "" {
		updates["intent_type"] = t.strategy
	}

	if t.configure != nil {
		cfg, err := DecodeConfiguration(intent.ConfigurationData)
		if err != nil {
			return err
		}
		t.configure(cfg)
		raw, err := cfg.encode()
		if err != nil {
			return err
		}
		updates["configuration_data"] = raw
	}

	now := time.Now()
	switch t.state {
	case model.WorkflowStateCompleted:
		updates["completed_at"] = now
		updates["failed_at"] = nil
	case model.WorkflowStateFailed:
		raw, err := json.Marshal(t.errorDetails)
		if err != nil {
			return fmt.Errorf("failed to encode error details: %w", err)
		}
		updates["error_details"] = datatypes.JSON(raw)
		updates["failed_at"] = now
		updates["completed_at"] = nil
		updates["retry_count"] = intent.RetryCount + 1
	case model.WorkflowStateCancelled:
		updates["completed_at"] = nil
	default:
		updates["completed_at"] = nil
		updates["failed_at"] = nil
		if from == model.WorkflowStateFailed {
			updates["error_details"] = nil
		}
	}

	if err := o.intents.update(ctx, intent, updates); err != nil {
		return err
	}

	o.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"from":      from,
		"to":        t.state,
		"step":      t.step,
	}).Info("Workflow state changed")

	if t.state.IsTerminal() && from != t.state {
		o.metrics.IncIntentFinished(string(t.state))
	}
	return nil
}

// notify sends a notification once per intent and message type. Delivery
// problems never fail the workflow.
func (o *Orchestrator) notify(ctx context.Context, intent *model.LinkIntent, messageType model.NotificationType, data notify.Data) {
	_, err := o.ledger.NotifyOnce(ctx, notify.Notice{
		IntentID:    intent.ID,
		UserID:      intent.UserID,
		DomainName:  intent.DomainName,
		MessageType: messageType,
	}, data)
	if err != nil {
		o.logger.WithFields(logrus.Fields{
			"intent_id":    intent.ID,
			"message_type": messageType,
		}).Errorf("Failed to notify user: %v", err)
	}
}

// attemptBudget returns how many checks a verification type may take
func (o *Orchestrator) attemptBudget(t model.VerificationType) int {
	if t == model.VerificationTypeDNSTXT {
		return o.cfg.TXTMaxAttempts
	}
	return o.cfg.NameserverMaxAttempts
}
