// Package orchestrator is the fraud gate itself: it classifies a login event,
// asks the risk provider for a verdict, acts on it through the platform's
// capability object, and applies the configured fallback when anything fails.
//
// One Execute call is one sequential chain of network calls. The Orchestrator
// holds no per-login state; provider clients are built for every call from
// that event's own secret bundle.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"lumina/login-gate/internal/classify"
	"lumina/login-gate/internal/config"
	"lumina/login-gate/internal/correlation"
	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/identity"
	"lumina/login-gate/internal/logging"
	"lumina/login-gate/internal/metrics"
	"lumina/login-gate/internal/riskdecision"
	"lumina/login-gate/internal/traces"
)

// RiskEvaluator is the risk-decision provider as seen by the gate.
type RiskEvaluator interface {
	EvaluateSignUp(ctx context.Context, a riskdecision.Attempt) (domain.Verdict, error)
	EvaluateSignIn(ctx context.Context, a riskdecision.Attempt) (riskdecision.SignInResult, error)
}

// AccountBlocker is the identity management API as seen by the gate.
type AccountBlocker interface {
	GetAccessToken(ctx context.Context) (string, error)
	BlockAccess(ctx context.Context, accountID, token string) error
}

// RiskFactory builds a RiskEvaluator from one event's settings.
type RiskFactory func(domain.Settings) (RiskEvaluator, error)

// BlockerFactory builds an AccountBlocker from one event's settings.
type BlockerFactory func(domain.Settings) (AccountBlocker, error)

// Result describes what one Execute call did.
type Result struct {
	AccountID string
	EventType domain.EventType
	Verdict   domain.Verdict // empty when no verdict was obtained
	Outcome   domain.Outcome
	Fallback  bool
	Err       error // the failure that triggered the fallback, if any
}

// Orchestrator runs the gate. It is safe for concurrent use.
type Orchestrator struct {
	httpClient  *http.Client
	riskBaseURL string
	newRisk     RiskFactory
	newBlocker  BlockerFactory
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient sets the HTTP client shared by the default provider clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Orchestrator) { o.httpClient = hc }
}

// WithRiskBaseURL points the default risk client at a fixed API base.
func WithRiskBaseURL(u string) Option {
	return func(o *Orchestrator) { o.riskBaseURL = u }
}

// WithRiskFactory replaces how risk clients are built.
func WithRiskFactory(f RiskFactory) Option {
	return func(o *Orchestrator) { o.newRisk = f }
}

// WithBlockerFactory replaces how identity clients are built.
func WithBlockerFactory(f BlockerFactory) Option {
	return func(o *Orchestrator) { o.newBlocker = f }
}

// WithClock sets the event-time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	if o.newRisk == nil {
		o.newRisk = func(s domain.Settings) (RiskEvaluator, error) {
			return riskdecision.New(s,
				riskdecision.WithHTTPClient(o.httpClient),
				riskdecision.WithBaseURL(o.riskBaseURL),
			)
		}
	}
	if o.newBlocker == nil {
		o.newBlocker = func(s domain.Settings) (AccountBlocker, error) {
			return identity.New(s, identity.WithHTTPClient(o.httpClient))
		}
	}
	return o
}

// plan is the outcome of a successful evaluation, applied to Actions only
// once the whole chain has succeeded.
type plan struct {
	verdict  domain.Verdict
	outcome  domain.Outcome
	metadata string // new correlation history, set only on escalation
}

// Execute runs the gate for one login event and reports the outcome through
// actions. It never returns an error: failures are resolved by the event's
// fallback policy and described in the Result.
func (o *Orchestrator) Execute(ctx context.Context, ev *domain.LoginEvent, actions Actions) Result {
	var secrets map[string]string
	if ev != nil {
		secrets = ev.Secrets
	}
	settings := config.ParseSettings(secrets)
	denyMessage := config.DenyMessage(settings)

	res := Result{EventType: classify.EventType(ev)}
	if ev != nil && ev.User != nil {
		res.AccountID = ev.User.UserID
	}

	ctx, span := traces.StartSpan(ctx, "gate.execute",
		traces.AccountID(res.AccountID), traces.EventType(string(res.EventType)))

	p, err := o.evaluate(ctx, ev, settings)
	res.Verdict = p.verdict
	if err != nil {
		res.Err = err
		res.Fallback = true
		res.Outcome = fallbackOutcome(settings.Fallback)
		p = plan{outcome: res.Outcome}

		metrics.FallbacksTotal.WithLabelValues(fallbackLabel(settings.Fallback)).Inc()
		logging.L(ctx).Warn("risk evaluation failed, applying fallback",
			"account_id", res.AccountID,
			"event_type", res.EventType,
			"fallback", fallbackLabel(settings.Fallback),
			"outcome", res.Outcome,
			"error", err,
		)
	} else {
		res.Outcome = p.outcome
	}

	apply(actions, p, denyMessage)

	metrics.DecisionsTotal.WithLabelValues(string(res.EventType), string(res.Outcome)).Inc()
	span.SetAttributes(traces.Outcome(string(res.Outcome)))
	traces.End(span, err)
	return res
}

func (o *Orchestrator) evaluate(ctx context.Context, ev *domain.LoginEvent, s domain.Settings) (plan, error) {
	attempt, err := o.buildAttempt(ev, s)
	if err != nil {
		return plan{}, err
	}
	risk, err := o.newRisk(s)
	if err != nil {
		return plan{}, fmt.Errorf("risk client: %w", err)
	}

	if classify.IsFirstEvent(ev) {
		return o.signUp(ctx, risk, s, attempt)
	}
	attempt.LoginMethodType = classify.LoginMethodType(ev)
	return o.signIn(ctx, risk, ev, attempt)
}

// signUp handles a first login. A VERIFICATION_REQUIRED verdict has no
// second-factor path here and is allowed like APPROVE.
func (o *Orchestrator) signUp(ctx context.Context, risk RiskEvaluator, s domain.Settings, a riskdecision.Attempt) (plan, error) {
	verdict, err := risk.EvaluateSignUp(ctx, a)
	if err != nil {
		return plan{}, fmt.Errorf("sign-up evaluation: %w", err)
	}
	p := plan{verdict: verdict, outcome: domain.OutcomeAllow}
	if verdict != domain.VerdictDecline {
		return p, nil
	}

	if s.BlockOnDecline {
		if err := o.block(ctx, s, a.AccountID); err != nil {
			return p, err
		}
	}
	p.outcome = domain.OutcomeDeny
	return p, nil
}

// signIn handles a returning login. Declines are denied without blocking.
func (o *Orchestrator) signIn(ctx context.Context, risk RiskEvaluator, ev *domain.LoginEvent, a riskdecision.Attempt) (plan, error) {
	res, err := risk.EvaluateSignIn(ctx, a)
	if err != nil {
		return plan{}, fmt.Errorf("sign-in evaluation: %w", err)
	}

	p := plan{verdict: res.Verdict}
	switch res.Verdict {
	case domain.VerdictDecline:
		p.outcome = domain.OutcomeDeny
	case domain.VerdictVerificationRequired:
		prior := correlation.FromMetadata(ev.User.AppMetadata)
		p.metadata = correlation.Append(prior, a.EventTime.UnixMilli(), res.CorrelationID)
		p.outcome = domain.OutcomeEscalate
	default:
		p.outcome = domain.OutcomeAllow
	}
	return p, nil
}

// block fetches a management token, then blocks the account.
func (o *Orchestrator) block(ctx context.Context, s domain.Settings, accountID string) error {
	blocker, err := o.newBlocker(s)
	if err != nil {
		return fmt.Errorf("identity client: %w", err)
	}
	token, err := blocker.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if err := blocker.BlockAccess(ctx, accountID, token); err != nil {
		return fmt.Errorf("block account: %w", err)
	}
	return nil
}

// buildAttempt reads the fields every evaluation needs. A field of the wrong
// type, or a missing user, user id, request, or request query, is a
// malformed event.
func (o *Orchestrator) buildAttempt(ev *domain.LoginEvent, s domain.Settings) (riskdecision.Attempt, error) {
	switch {
	case ev == nil:
		return riskdecision.Attempt{}, fmt.Errorf("%w: no event", domain.ErrMalformedEvent)
	case ev.ShapeError != nil:
		return riskdecision.Attempt{}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, ev.ShapeError)
	case ev.User == nil:
		return riskdecision.Attempt{}, fmt.Errorf("%w: no user", domain.ErrMalformedEvent)
	case ev.User.UserID == "":
		return riskdecision.Attempt{}, fmt.Errorf("%w: no user_id", domain.ErrMalformedEvent)
	case ev.Request == nil:
		return riskdecision.Attempt{}, fmt.Errorf("%w: no request", domain.ErrMalformedEvent)
	case ev.Request.Query == nil:
		return riskdecision.Attempt{}, fmt.Errorf("%w: no request query", domain.ErrMalformedEvent)
	}

	ip := ev.Request.IP
	if s.TestMode {
		ip = classify.OverrideIPByEmail(ip, ev.User.Email, true)
	}
	return riskdecision.Attempt{
		AccountID:     ev.User.UserID,
		UserAgent:     ev.Request.UserAgent,
		TrackingToken: ev.Request.Query[domain.TrackingTokenQuery],
		CustomerIP:    ip,
		Email:         ev.User.Email,
		EventTime:     o.now(),
	}, nil
}

// apply reports p through the capability object.
func apply(actions Actions, p plan, denyMessage string) {
	switch p.outcome {
	case domain.OutcomeDeny:
		actions.Deny(denyMessage)
	case domain.OutcomeEscalate:
		if p.metadata != "" {
			actions.SetAppMetadata(domain.CorrelationIDsKey, p.metadata)
		}
		actions.EnableMultifactor(domain.MultifactorAny)
	}
}

// fallbackOutcome maps the configured policy onto an outcome. Anything other
// than APPROVE or DECLINE escalates.
func fallbackOutcome(p domain.FallbackPolicy) domain.Outcome {
	switch p {
	case domain.FallbackDecline:
		return domain.OutcomeDeny
	case domain.FallbackApprove:
		return domain.OutcomeAllow
	default:
		return domain.OutcomeEscalate
	}
}

func fallbackLabel(p domain.FallbackPolicy) string {
	if p == domain.FallbackUnset {
		return "unset"
	}
	return string(p)
}
