package linking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go_domainlink/internal/domainutil"
	"go_domainlink/internal/model"
	"go_domainlink/internal/notify"
	"go_domainlink/internal/verification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxStepLength = 128

// CreateRequest is a request to link a domain
type CreateRequest struct {
	UserID                int
	Domain                string
	StrategyHint          model.LinkingStrategy
	HostingSubscriptionID *int
}

// ConfirmResult is the outcome of an on-demand check
type ConfirmResult struct {
	IntentID      string              `json:"intent_id"`
	WorkflowState model.WorkflowState `json:"workflow_state"`
	Verified      bool                `json:"verified"`
	Message       string              `json:"message"`
}

// CreateIntent validates and persists a new intent in INITIATED, then starts
// executing it in the background. It returns as soon as the row exists.
func (o *Orchestrator) CreateIntent(ctx context.Context, req CreateRequest) (*model.LinkIntent, error) {
	domain, err := domainutil.ValidateLinkDomain(req.Domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	if !ValidHint(req.StrategyHint) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, req.StrategyHint)
	}

	// serialize creation per user and domain so two requests cannot both pass the duplicate check
	unlock, err := o.lockIntent(ctx, domainLockKey(req.UserID, domain))
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := o.intents.findActive(ctx, req.UserID, domain, "")
	if err != nil {
		return nil, fmt.Errorf("failed to check active workflows: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrActiveIntentExists, existing.ID)
	}

	intentType := req.StrategyHint
	if intentType == "" {
		intentType = model.StrategySmartMode
	}
	raw, err := (&Configuration{StrategyHint: req.StrategyHint}).encode()
	if err != nil {
		return nil, err
	}

	intent := &model.LinkIntent{
		ID:                    uuid.NewString(),
		UserID:                req.UserID,
		DomainName:            domain,
		IntentType:            intentType,
		HostingSubscriptionID: req.HostingSubscriptionID,
		WorkflowState:         model.WorkflowStateInitiated,
		CurrentStep:           "created",
		ProgressPercentage:    model.WorkflowStateInitiated.Progress(),
		ConfigurationData:     raw,
	}
	if err := o.intents.create(ctx, intent); err != nil {
		return nil, err
	}
	o.metrics.IncIntentCreated(string(req.StrategyHint))

	o.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"user_id":   intent.UserID,
		"domain":    intent.DomainName,
		"hint":      req.StrategyHint,
	}).Info("Linking workflow created")

	intentID := intent.ID
	o.spawn(intentID, func(ctx context.Context) error {
		return o.execute(ctx, intentID)
	})
	return intent, nil
}

// execute drives an intent forward from its persisted state
func (o *Orchestrator) execute(ctx context.Context, intentID string) error {
	intent, err := o.intents.get(ctx, intentID)
	if err != nil {
		return err
	}

	switch intent.WorkflowState {
	case model.WorkflowStateInitiated, model.WorkflowStateAnalyzingDomain:
		return o.runAnalysis(ctx, intentID)
	case model.WorkflowStateAwaitingUserChoice,
		model.WorkflowStateVerifyingNameservers,
		model.WorkflowStateVerifyingOwnership:
		return o.continueVerification(ctx, intentID)
	case model.WorkflowStateProvisioningHosting:
		return o.Finalize(ctx, intentID)
	default:
		return nil
	}
}

func (o *Orchestrator) runAnalysis(ctx context.Context, intentID string) error {
	intent, unlock, err := o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	if intent.WorkflowState != model.WorkflowStateInitiated && intent.WorkflowState != model.WorkflowStateAnalyzingDomain {
		unlock()
		return nil
	}
	err = o.apply(ctx, intent, transition{
		state: model.WorkflowStateAnalyzingDomain,
		step:  "domain_analysis",
		configure: func(c *Configuration) {
			c.UserGuidance = &UserGuidance{
				Step:        "Analyzing your domain",
				Description: fmt.Sprintf("Checking the current DNS configuration of %s", intent.DomainName),
			}
		},
	})
	unlock()
	if err != nil {
		return err
	}

	// DNS lookups run without the lock
	start := time.Now()
	analysis := o.analyzer.Analyze(ctx, intent.DomainName)
	o.metrics.ObserveAnalysis(time.Since(start))
	if err := ctx.Err(); err != nil {
		return err
	}

	intent, unlock, err = o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	defer unlock()

	log := o.logger.WithFields(logrus.Fields{"intent_id": intent.ID, "domain": intent.DomainName})
	if intent.WorkflowState != model.WorkflowStateAnalyzingDomain {
		log.Infof("Workflow moved to %s during analysis, dropping result", intent.WorkflowState)
		return nil
	}

	if analysis.NXDomain {
		return o.failLocked(ctx, intent, ReasonDomainNotFound, fmt.Sprintf("%s does not exist", intent.DomainName))
	}
	if analysis.Empty() {
		msg := "no nameservers found"
		if len(analysis.Errors) > 0 {
			msg = strings.Join(analysis.Errors, "; ")
		}
		return o.failLocked(ctx, intent, ReasonDNSLookupFailed, msg)
	}

	cfg, err := DecodeConfiguration(intent.ConfigurationData)
	if err != nil {
		return o.failLocked(ctx, intent, ReasonDomainAnalysisFailed, err.Error())
	}
	decision, warning := selectStrategySafely(analysis, cfg.StrategyHint, log)
	log.WithFields(logrus.Fields{
		"strategy": decision.Strategy,
		"reason":   decision.Reason,
	}).Info("Linking strategy selected")

	record := func(c *Configuration) {
		c.Analysis = &analysis
		c.LinkingStrategy = decision.Strategy
		c.StrategyReason = decision.Reason
		c.StrategyWarning = warning
	}

	if decision.Strategy == model.StrategyAlreadyLinked {
		err := o.apply(ctx, intent, transition{
			state:    model.WorkflowStateCompleted,
			step:     "already_linked",
			strategy: model.StrategyAlreadyLinked,
			configure: func(c *Configuration) {
				record(c)
				c.CompletionReason = string(model.StrategyAlreadyLinked)
				c.UserGuidance = &UserGuidance{
					Step:        "Domain linking complete",
					Description: fmt.Sprintf("%s already uses the platform nameservers", intent.DomainName),
				}
			},
		})
		if err != nil {
			return err
		}
		o.notify(ctx, intent, model.NotificationAlreadyLinked, notify.Data{})
		return nil
	}

	return o.issueInstructionsLocked(ctx, intent, decision.Strategy, record)
}

// issueInstructionsLocked stores the instructions of strategy, tells the user
// and starts verification. The caller must hold the intent lock.
func (o *Orchestrator) issueInstructionsLocked(ctx context.Context, intent *model.LinkIntent, strategy model.LinkingStrategy, record func(*Configuration)) error {
	var (
		step        string
		guidance    *UserGuidance
		messageType model.NotificationType
		data        notify.Data
		nsInstr     *NameserverInstructions
		dnsInstr    *DNSInstructions
	)

	switch strategy {
	case model.StrategyManualDNS:
		token, err := GenerateOwnershipToken(o.cfg.VerifyPrefix)
		if err != nil {
			return o.failLocked(ctx, intent, ReasonStrategyExecutionFailed, err.Error())
		}
		dnsInstr = BuildDNSInstructions(intent.DomainName, o.cfg.VerifyPrefix, o.cfg.HostingIP, token)
		step = "dns_instructions_sent"
		guidance = &UserGuidance{
			Step:          "Configure DNS records manually",
			Description:   "Add the listed TXT and A records at your DNS provider",
			EstimatedTime: manualDNSPropagation,
		}
		messageType = model.NotificationDNSInstructions
		data = notify.Data{DNSRecords: dnsInstr.RecordLines()}
	default:
		nsInstr = BuildNameserverInstructions(intent.DomainName, o.analyzer.PlatformNameservers())
		step = "nameserver_instructions_sent"
		guidance = &UserGuidance{
			Step:          "Change your domain nameservers",
			Description:   "Point your domain to the platform nameservers at your registrar",
			EstimatedTime: nameserverPropagation,
		}
		messageType = model.NotificationNameserverInstructions
		data = notify.Data{Nameservers: nsInstr.TargetNameservers}
	}

	err := o.apply(ctx, intent, transition{
		state:    model.WorkflowStateAwaitingUserChoice,
		step:     step,
		strategy: strategy,
		configure: func(c *Configuration) {
			record(c)
			c.NameserverInstructions = nsInstr
			c.DNSInstructions = dnsInstr
			c.UserGuidance = guidance
		},
	})
	if err != nil {
		return err
	}

	o.notify(ctx, intent, messageType, data)
	return o.startVerificationLocked(ctx, intent)
}

// startVerificationLocked creates the verification of the intent's strategy,
// moves the intent to the matching VERIFYING state and starts its monitor.
// An existing ownership token is reused. The caller must hold the intent lock.
func (o *Orchestrator) startVerificationLocked(ctx context.Context, intent *model.LinkIntent) error {
	cfg, err := DecodeConfiguration(intent.ConfigurationData)
	if err != nil {
		return o.failLocked(ctx, intent, ReasonVerificationCreationFailed, err.Error())
	}

	var (
		params   verification.CreateParams
		next     model.WorkflowState
		step     string
		guidance *UserGuidance
	)
	switch cfg.LinkingStrategy {
	case model.StrategyManualDNS:
		if cfg.DNSInstructions == nil || cfg.DNSInstructions.VerificationToken == "" {
			return o.failLocked(ctx, intent, ReasonStrategyExecutionFailed, "manual DNS instructions are missing")
		}
		params = verification.CreateParams{
			IntentID:      intent.ID,
			Type:          model.VerificationTypeDNSTXT,
			Step:          "ownership_txt_record",
			Method:        verificationMethodDNSTXT,
			ExpectedValue: cfg.DNSInstructions.VerificationToken,
		}
		next = model.WorkflowStateVerifyingOwnership
		step = "monitoring_dns_records"
		guidance = &UserGuidance{
			Step:          "Monitoring DNS records",
			Description:   "We check your DNS records automatically every few minutes",
			EstimatedTime: manualDNSPropagation,
		}
	case model.StrategySmartMode:
		targets := o.analyzer.PlatformNameservers()
		if cfg.NameserverInstructions != nil {
			targets = cfg.NameserverInstructions.TargetNameservers
		}
		params = verification.CreateParams{
			IntentID:      intent.ID,
			Type:          model.VerificationTypeNameserverChange,
			Step:          "nameserver_delegation",
			Method:        "ns_lookup",
			ExpectedValue: strings.Join(targets, ","),
		}
		next = model.WorkflowStateVerifyingNameservers
		step = "monitoring_nameservers"
		guidance = &UserGuidance{
			Step:          "Monitoring nameserver changes",
			Description:   "We check your nameservers automatically every few minutes",
			EstimatedTime: nameserverPropagation,
		}
	default:
		return o.failLocked(ctx, intent, ReasonStrategyExecutionFailed,
			fmt.Sprintf("no verification for strategy %q", cfg.LinkingStrategy))
	}

	v, err := o.verifications.Create(ctx, params)
	if err != nil {
		return o.failLocked(ctx, intent, ReasonVerificationCreationFailed, err.Error())
	}

	now := time.Now().UTC()
	err = o.apply(ctx, intent, transition{
		state: next,
		step:  step,
		configure: func(c *Configuration) {
			c.VerificationID = v.ID
			c.MonitoringStarted = &now
			c.UserGuidance = guidance
		},
	})
	if err != nil {
		if _, xerr := o.verifications.ExpireActiveForIntent(ctx, intent.ID, "verification was not attached"); xerr != nil {
			o.logger.WithField("intent_id", intent.ID).Warnf("Failed to expire orphaned verification: %v", xerr)
		}
		return err
	}

	o.logger.WithFields(logrus.Fields{
		"intent_id":       intent.ID,
		"verification_id": v.ID,
		"type":            v.VerificationType,
	}).Info("Verification monitoring started")
	o.startMonitor(intent.ID, v.ID)
	return nil
}

// continueVerification re-attaches a monitor, or creates the verification
// when the intent waits on instructions without one
func (o *Orchestrator) continueVerification(ctx context.Context, intentID string) error {
	intent, unlock, err := o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	defer unlock()

	switch intent.WorkflowState {
	case model.WorkflowStateAwaitingUserChoice,
		model.WorkflowStateVerifyingNameservers,
		model.WorkflowStateVerifyingOwnership:
	default:
		return nil
	}

	v, err := o.verifications.GetActiveForIntent(ctx, intentID)
	if err != nil {
		return err
	}
	if v == nil {
		return o.startVerificationLocked(ctx, intent)
	}

	cfg, err := DecodeConfiguration(intent.ConfigurationData)
	if err != nil {
		return err
	}
	if cfg.VerificationID != v.ID {
		// an unreferenced verification is not trusted; issue a fresh one
		return o.startVerificationLocked(ctx, intent)
	}
	o.startMonitor(intentID, v.ID)
	return nil
}

// ResumeIntent re-enters background execution from the persisted state. A
// FAILED intent resumes in the state it failed in, unless the user already
// has another active intent for the domain.
func (o *Orchestrator) ResumeIntent(ctx context.Context, intentID string) error {
	return o.resume(ctx, intentID, false)
}

// RetryIntent re-enters a FAILED intent. Failure notifications are re-armed
// so a new failure is reported again.
func (o *Orchestrator) RetryIntent(ctx context.Context, intentID string) error {
	return o.resume(ctx, intentID, true)
}

func (o *Orchestrator) resume(ctx context.Context, intentID string, retry bool) error {
	current, err := o.intents.get(ctx, intentID)
	if err != nil {
		return err
	}
	// lock order: domain, then intent
	unlockDomain, err := o.lockIntent(ctx, domainLockKey(current.UserID, current.DomainName))
	if err != nil {
		return err
	}
	defer unlockDomain()

	intent, unlock, err := o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	defer unlock()

	switch intent.WorkflowState {
	case model.WorkflowStateCompleted, model.WorkflowStateCancelled:
		return fmt.Errorf("%w: cannot resume a %s workflow", ErrInvalidState, intent.WorkflowState)
	case model.WorkflowStateFailed:
		existing, err := o.intents.findActive(ctx, intent.UserID, intent.DomainName, intent.ID)
		if err != nil {
			return fmt.Errorf("failed to check active workflows: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrActiveIntentExists, existing.ID)
		}
		if retry {
			if err := o.ledger.Forget(ctx, intentID, model.NotificationWorkflowFailed, model.NotificationVerificationTimeout); err != nil {
				return err
			}
		}

		target := model.WorkflowStateInitiated
		details, err := DecodeErrorDetails(intent.ErrorDetails)
		if err == nil && details != nil && details.FailedInState.Valid() && !details.FailedInState.IsTerminal() {
			target = details.FailedInState
		}
		err = o.apply(ctx, intent, transition{
			state: target,
			step:  "resumed",
			configure: func(c *Configuration) {
				c.UserGuidance = &UserGuidance{
					Step:        "Resuming domain linking",
					Description: target.StepDescription(),
				}
			},
		})
		if err != nil {
			return err
		}
	default:
		if retry {
			return fmt.Errorf("%w: only failed workflows can be retried", ErrInvalidState)
		}
	}

	o.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"state":     intent.WorkflowState,
		"retry":     retry,
	}).Info("Resuming linking workflow")

	o.spawn(intentID, func(ctx context.Context) error {
		return o.execute(ctx, intentID)
	})
	return nil
}

// CancelIntent moves an active intent to CANCELLED and retires its active
// verification. A monitor watching it notices on its next round and stops
// without touching the verification.
func (o *Orchestrator) CancelIntent(ctx context.Context, intentID, reason string) error {
	intent, unlock, err := o.lockAndLoad(ctx, intentID)
	if err != nil {
		return err
	}
	defer unlock()

	if intent.WorkflowState.IsTerminal() {
		return fmt.Errorf("%w: workflow is already %s", ErrInvalidState, intent.WorkflowState)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "user_cancelled"
	}
	step := "cancelled_" + reason
	if len(step) > maxStepLength {
		step = step[:maxStepLength]
	}

	err = o.apply(ctx, intent, transition{
		state: model.WorkflowStateCancelled,
		step:  step,
		configure: func(c *Configuration) {
			c.CancellationReason = reason
			c.UserGuidance = nil
		},
	})
	if err != nil {
		return err
	}

	log := o.logger.WithFields(logrus.Fields{
		"intent_id": intent.ID,
		"domain":    intent.DomainName,
		"reason":    reason,
	})
	if _, err := o.verifications.ExpireActiveForIntent(ctx, intent.ID, "workflow cancelled: "+reason); err != nil {
		log.Warnf("Failed to expire active verifications: %v", err)
	}
	log.Info("Linking workflow cancelled")
	return nil
}

// UserConfirmInstructions runs a verification check right away instead of
// waiting for the next scheduled one. The check and any finalization it
// triggers run on the orchestrator's context, bounded by ConfirmTimeout.
func (o *Orchestrator) UserConfirmInstructions(ctx context.Context, userID int, intentID string) (*ConfirmResult, error) {
	intent, err := o.GetIntentForUser(ctx, userID, intentID)
	if err != nil {
		return nil, err
	}
	if !awaitsVerification(intent.WorkflowState) {
		return nil, ErrNoPendingInstructions
	}

	// outlives the request so a client disconnect cannot abort provisioning
	ctx, cancel := context.WithTimeout(o.ctx, o.cfg.ConfirmTimeout)
	defer cancel()

	v, err := o.verifications.GetActiveForIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		if err := o.continueVerification(ctx, intentID); err != nil {
			return nil, err
		}
		if v, err = o.verifications.GetActiveForIntent(ctx, intentID); err != nil {
			return nil, err
		}
	}

	status := checkInactive
	var res verification.CheckResult
	if v != nil {
		if status, res, err = o.runCheck(ctx, v.ID); err != nil {
			return nil, err
		}
	}

	intent, err = o.intents.get(ctx, intentID)
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{
		IntentID:      intent.ID,
		WorkflowState: intent.WorkflowState,
		Verified:      res.Outcome == verification.OutcomeMatched,
	}
	switch {
	case result.Verified && intent.WorkflowState == model.WorkflowStateCompleted:
		result.Message = "Verification successful! Your domain is now linked."
	case result.Verified:
		result.Message = "Verification successful! Finalizing your domain setup."
	case status == checkContinue:
		result.Message = "DNS changes are not visible yet. We will keep checking automatically."
	case status == checkSkipped:
		result.Message = "A check is already running. Please try again in a moment."
	case intent.WorkflowState == model.WorkflowStateFailed:
		result.Message = "Verification failed. See the workflow status for next steps."
	default:
		result.Message = intent.WorkflowState.StepDescription()
	}
	return result, nil
}

func domainLockKey(userID int, domain string) string {
	return fmt.Sprintf("create:%d:%s", userID, domain)
}

func awaitsVerification(s model.WorkflowState) bool {
	switch s {
	case model.WorkflowStateAwaitingUserChoice,
		model.WorkflowStateVerifyingNameservers,
		model.WorkflowStateVerifyingOwnership:
		return true
	}
	return false
}

// isShutdown reports whether err comes from the orchestrator stopping
func (o *Orchestrator) isShutdown(err error) bool {
	return o.ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
