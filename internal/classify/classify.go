// Package classify derives the facts the orchestrator branches on from a
// login event. Every function here is pure and never fails: absent data maps
// to an explicit default.
package classify

import (
	"encoding/json"
	"strings"

	"lumina/login-gate/internal/domain"
)

// IsFirstEvent reports whether the platform counted exactly one login.
// Zero, two or more, and an absent counter are all "not first".
func IsFirstEvent(ev *domain.LoginEvent) bool {
	if ev == nil || ev.Stats == nil || ev.Stats.LoginsCount == nil {
		return false
	}
	return *ev.Stats.LoginsCount == 1
}

// EventType maps IsFirstEvent onto the provider's event type.
func EventType(ev *domain.LoginEvent) domain.EventType {
	if IsFirstEvent(ev) {
		return domain.EventSignUp
	}
	return domain.EventSignIn
}

// LoginMethodType returns SOCIAL when the first authentication method is
// federated, PASSWORD otherwise. PASSWORD is also the answer when the methods
// list is missing or is not a JSON array.
func LoginMethodType(ev *domain.LoginEvent) domain.LoginMethodType {
	if ev == nil || ev.Authentication == nil || len(ev.Authentication.Methods) == 0 {
		return domain.LoginPassword
	}

	var methods []json.RawMessage
	if err := json.Unmarshal(ev.Authentication.Methods, &methods); err != nil || len(methods) == 0 {
		return domain.LoginPassword
	}

	var first struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(methods[0], &first); err != nil {
		return domain.LoginPassword
	}
	if first.Name == domain.FederatedMethodName {
		return domain.LoginSocial
	}
	return domain.LoginPassword
}

// OverrideIPByEmail substitutes a sentinel IP when test mode is on and the
// email contains "approve", "decline" or "verify", checked in that order.
// The match is a case-sensitive substring match.
func OverrideIPByEmail(realIP, email string, testMode bool) string {
	if !testMode {
		return realIP
	}
	switch {
	case strings.Contains(email, "approve"):
		return domain.SentinelIPApprove
	case strings.Contains(email, "decline"):
		return domain.SentinelIPDecline
	case strings.Contains(email, "verify"):
		return domain.SentinelIPVerify
	}
	return realIP
}
