// Package domain contains all core types used across the login gate.
// Keeping them in one place makes the decision flow easy to reason about.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ─── Verdicts ────────────────────────────────────────────────────────────────

// Verdict is the outcome of a single risk evaluation.
type Verdict string

const (
	VerdictApprove              Verdict = "APPROVE"
	VerdictDecline              Verdict = "DECLINE"
	VerdictVerificationRequired Verdict = "VERIFICATION_REQUIRED"
)

// ParseVerdict maps a provider decision string onto a Verdict.
// Anything outside the three known values is a malformed response.
func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(s); v {
	case VerdictApprove, VerdictDecline, VerdictVerificationRequired:
		return v, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrMalformedResponse, s)
	}
}

// ─── Event classification ────────────────────────────────────────────────────

// EventType selects which risk evaluation endpoint is called.
type EventType string

const (
	EventSignUp EventType = "signup"
	EventSignIn EventType = "login"
)

// LoginMethodType is reported to the provider on sign-in evaluations.
type LoginMethodType string

const (
	LoginSocial   LoginMethodType = "SOCIAL"
	LoginPassword LoginMethodType = "PASSWORD"
)

// Sentinel IPs substituted in test mode so the provider returns a known verdict.
const (
	SentinelIPApprove = "0.0.0.1"
	SentinelIPDecline = "0.0.0.2"
	SentinelIPVerify  = "0.0.0.4"
)

// ─── Outcomes ────────────────────────────────────────────────────────────────

// Outcome is what the gate told the platform to do.
type Outcome string

const (
	OutcomeAllow    Outcome = "allow"
	OutcomeDeny     Outcome = "deny"
	OutcomeEscalate Outcome = "escalate"
)

// FallbackPolicy governs the outcome when any step of the evaluation fails.
// FallbackUnset and FallbackVerify both escalate.
type FallbackPolicy string

const (
	FallbackUnset   FallbackPolicy = ""
	FallbackApprove FallbackPolicy = FallbackPolicy(VerdictApprove)
	FallbackDecline FallbackPolicy = FallbackPolicy(VerdictDecline)
	FallbackVerify  FallbackPolicy = FallbackPolicy(VerdictVerificationRequired)
)

// Defaults shared by the orchestrator and the capability recorder.
const (
	DefaultDenyMessage   = "sorry, something went wrong."
	MultifactorAny       = "any"
	CorrelationIDsKey    = "forterCorrelationIds"
	MaxCorrelationIDs    = 3
	TrackingTokenQuery   = "ftrToken"
	FederatedMethodName  = "federated"
	LoginStatusSuccess   = "SUCCESS"
	RiskClientIdentifier = "auth0"
)

// ─── Login event ─────────────────────────────────────────────────────────────

// LoginEvent is the immutable snapshot of one authentication attempt as sent
// by the identity platform. Every nested object is optional on the wire; the
// consumers check for absence explicitly. Decoding never fails on a JSON
// value: fields of the wrong type are left empty and reported in ShapeError.
type LoginEvent struct {
	User           *EventUser           `json:"user,omitempty"`
	Stats          *EventStats          `json:"stats,omitempty"`
	Request        *EventRequest        `json:"request,omitempty"`
	Authentication *EventAuthentication `json:"authentication,omitempty"`
	Secrets        map[string]string    `json:"secrets,omitempty"`

	// ShapeError lists the fields that did not have the expected type.
	ShapeError error `json:"-"`
}

// EventUser is the profile of the user logging in.
type EventUser struct {
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	AppMetadata map[string]any `json:"app_metadata,omitempty"`
}

// EventStats carries the platform's login counter. A nil count means the
// platform did not report one.
type EventStats struct {
	LoginsCount *int `json:"logins_count,omitempty"`
}

// EventRequest describes the HTTP request that started the login.
type EventRequest struct {
	IP        string            `json:"ip"`
	UserAgent string            `json:"user_agent"`
	Query     map[string]string `json:"query,omitempty"`
}

// EventAuthentication lists the methods used so far. Methods is kept raw
// because the platform does not guarantee it is an array.
type EventAuthentication struct {
	Methods json.RawMessage `json:"methods,omitempty"`
}

// AuthMethod is one entry of EventAuthentication.Methods.
type AuthMethod struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ─── Correlation history ─────────────────────────────────────────────────────

// CorrelationRecord pairs a sign-in evaluation's correlation id with the
// event time (epoch milliseconds) it was issued for.
type CorrelationRecord struct {
	EventTime     int64  `json:"eventTime"`
	CorrelationID string `json:"correlationId"`
}

// ─── Settings ────────────────────────────────────────────────────────────────

// Settings is the typed view of an event's secret bundle.
type Settings struct {
	// Identity platform, required only when BlockOnDecline is set.
	IdentityTenant       string
	IdentityClientID     string
	IdentityClientSecret string

	// Risk provider, always required.
	RiskAPIVersion string
	RiskSiteID     string
	RiskKey        string

	TestMode       bool
	DenyMessage    string
	Fallback       FallbackPolicy
	BlockOnDecline bool
}

// ─── Decision log ────────────────────────────────────────────────────────────

// Command is one call made on the platform's capability object.
type Command struct {
	Type     string `json:"type"` // deny | multifactor | set_app_metadata
	Message  string `json:"message,omitempty"`
	Provider string `json:"provider,omitempty"`
	Key      string `json:"key,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// Command types.
const (
	CommandDeny           = "deny"
	CommandMultifactor    = "multifactor"
	CommandSetAppMetadata = "set_app_metadata"
)

// DecisionRecord is the audit view of one gate invocation.
type DecisionRecord struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id,omitempty"`
	EventType EventType `json:"event_type,omitempty"`
	Verdict   Verdict   `json:"verdict,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Fallback  bool      `json:"fallback"`
	Error     string    `json:"error,omitempty"`
	Commands  []Command `json:"commands"`
	DecidedAt time.Time `json:"decided_at"`
}
