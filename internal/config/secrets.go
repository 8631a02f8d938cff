package config

import (
	"fmt"

	"lumina/login-gate/internal/domain"
)

// Secret bundle keys.
const (
	SecretIdentityTenant       = "AUTH0_TENANT"
	SecretIdentityClientID     = "AUTH0_CLIENT_ID"
	SecretIdentityClientSecret = "AUTH0_CLIENT_SECRET"
	SecretRiskAPIVersion       = "FORTER_API_VERSION"
	SecretRiskSiteID           = "FORTER_SITE_ID"
	SecretRiskKey              = "FORTER_KEY"
	SecretTestMode             = "TEST_MODE"
	SecretDenyMessage          = "ACCESS_DENY_MESSAGE"
	SecretFallback             = "FORTER_DECISION_FALLBACK"
	SecretBlockOnDecline       = "BLOCK_USER_ON_DECLINE"
)

// ParseSettings builds Settings from an event's secret bundle. It never
// fails: flags are on only for the exact string "true", and an unrecognised
// fallback value is treated as unset.
func ParseSettings(secrets map[string]string) domain.Settings {
	s := domain.Settings{
		IdentityTenant:       secrets[SecretIdentityTenant],
		IdentityClientID:     secrets[SecretIdentityClientID],
		IdentityClientSecret: secrets[SecretIdentityClientSecret],
		RiskAPIVersion:       secrets[SecretRiskAPIVersion],
		RiskSiteID:           secrets[SecretRiskSiteID],
		RiskKey:              secrets[SecretRiskKey],
		TestMode:             secrets[SecretTestMode] == "true",
		DenyMessage:          secrets[SecretDenyMessage],
		BlockOnDecline:       secrets[SecretBlockOnDecline] == "true",
	}

	switch p := domain.FallbackPolicy(secrets[SecretFallback]); p {
	case domain.FallbackApprove, domain.FallbackDecline, domain.FallbackVerify:
		s.Fallback = p
	default:
		s.Fallback = domain.FallbackUnset
	}
	return s
}

// ValidateRisk reports the first missing risk-provider setting.
func ValidateRisk(s domain.Settings) error {
	switch {
	case s.RiskAPIVersion == "":
		return fmt.Errorf("%w: %s", domain.ErrMissingSetting, SecretRiskAPIVersion)
	case s.RiskSiteID == "":
		return fmt.Errorf("%w: %s", domain.ErrMissingSetting, SecretRiskSiteID)
	case s.RiskKey == "":
		return fmt.Errorf("%w: %s", domain.ErrMissingSetting, SecretRiskKey)
	}
	return nil
}

// ValidateIdentity reports the first missing identity-platform setting.
func ValidateIdentity(s domain.Settings) error {
	switch {
	case s.IdentityTenant == "":
		return fmt.Errorf("%w: %s", domain.ErrMissingSetting, SecretIdentityTenant)
	case s.IdentityClientID == "":
		return fmt.Errorf("%w: %s", domain.ErrMissingSetting, SecretIdentityClientID)
	case s.IdentityClientSecret == "":
		return fmt.Errorf("%w: %s", domain.ErrMissingSetting, SecretIdentityClientSecret)
	}
	return nil
}
