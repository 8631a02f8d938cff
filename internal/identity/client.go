// Package identity is the client for the identity platform's management API:
// service-token issuance and account blocking.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"lumina/login-gate/internal/config"
	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/metrics"
	"lumina/login-gate/internal/traces"
)

const grantClientCredentials = "client_credentials"

// Client obtains management tokens and updates users on one tenant.
type Client struct {
	tenant       string
	clientID     string
	clientSecret string
	http         *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a client from the event's settings. It fails if any identity
// setting is missing, so callers only construct it when blocking is enabled.
func New(s domain.Settings, opts ...Option) (*Client, error) {
	if err := config.ValidateIdentity(s); err != nil {
		return nil, err
	}
	c := &Client{
		tenant:       strings.TrimRight(s.IdentityTenant, "/"),
		clientID:     s.IdentityClientID,
		clientSecret: s.IdentityClientSecret,
		http:         &http.Client{Timeout: config.DefaultHTTPClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// GetAccessToken exchanges the client credentials for a management API token.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	ctx, span := traces.StartSpan(ctx, "identity.token")

	var out tokenResponse
	err := c.do(ctx, http.MethodPost, c.tenant+"/oauth/token", "", tokenRequest{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Audience:     c.tenant + "/api/v2/",
		GrantType:    grantClientCredentials,
	}, &out)
	if err == nil && out.AccessToken == "" {
		err = fmt.Errorf("%w: token response has no access_token", domain.ErrMalformedResponse)
	}
	traces.End(span, err)
	if err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// BlockAccess marks the account as blocked.
func (c *Client) BlockAccess(ctx context.Context, accountID, token string) error {
	ctx, span := traces.StartSpan(ctx, "identity.block", traces.AccountID(accountID))

	endpoint := c.tenant + "/api/v2/users/" + url.PathEscape(accountID)
	err := c.do(ctx, http.MethodPatch, endpoint, token, map[string]bool{"blocked": true}, nil)

	metrics.AccountBlocksTotal.WithLabelValues(metrics.Result(err)).Inc()
	traces.End(span, err)
	return err
}

// do sends a JSON request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, endpoint, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", method, endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrNetwork, method, endpoint, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %w", domain.ErrNetwork, method, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &domain.HTTPStatusError{Method: method, URL: endpoint, Status: res.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrMalformedResponse, method, endpoint, err)
	}
	return nil
}
