// Package riskdecision is the client for the risk-decision provider's
// account evaluation API. Each call is a single authenticated POST; there is
// no local retry, the caller's fallback policy is the only recovery.
package riskdecision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"lumina/login-gate/internal/config"
	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/metrics"
	"lumina/login-gate/internal/traces"
)

const (
	headerAPIVersion = "api-version"
	headerClient     = "x-forter-client"
	inputTypeEmail   = "EMAIL"
	maxErrorBody     = 512
)

// responseSchema is the minimum shape of an evaluation response. The verdict
// value itself is checked by domain.ParseVerdict.
var responseSchema = mustSchema(`{
	"type": "object",
	"required": ["forterDecision"],
	"properties": {
		"forterDecision": {"type": "string"},
		"correlationId":  {"type": ["string", "null"]}
	}
}`)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("riskdecision: invalid response schema: %v", err))
	}
	return schema
}

// Attempt is the login attempt being evaluated. LoginMethodType is only sent
// on sign-in evaluations.
type Attempt struct {
	AccountID       string
	UserAgent       string
	TrackingToken   string
	CustomerIP      string
	Email           string
	LoginMethodType domain.LoginMethodType
	EventTime       time.Time
}

// SignInResult is the verdict of a sign-in evaluation plus the correlation id
// the provider issued for it.
type SignInResult struct {
	Verdict       domain.Verdict
	CorrelationID string
}

// Client talks to one site's evaluation API.
type Client struct {
	baseURL    string
	apiVersion string
	key        string
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL replaces the per-site API host. The value must include the
// accounts path prefix, e.g. "http://127.0.0.1:8080/v2/accounts".
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a client from the event's settings. It fails if any
// risk-provider setting is missing.
func New(s domain.Settings, opts ...Option) (*Client, error) {
	if err := config.ValidateRisk(s); err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    fmt.Sprintf("https://%s.api.forter-secure.com/v2/accounts", s.RiskSiteID),
		apiVersion: s.RiskAPIVersion,
		key:        s.RiskKey,
		http:       &http.Client{Timeout: config.DefaultHTTPClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ─── Wire types ───────────────────────────────────────────────────────────────

type connectionInformation struct {
	CustomerIP        string `json:"customerIP"`
	UserAgent         string `json:"userAgent"`
	ForterTokenCookie string `json:"forterTokenCookie"`
}

type userInput struct {
	Email     string `json:"email"`
	InputType string `json:"inputType"`
}

type evaluationRequest struct {
	AccountID             string                `json:"accountId"`
	LoginStatus           string                `json:"loginStatus,omitempty"`
	LoginMethodType       string                `json:"loginMethodType,omitempty"`
	ConnectionInformation connectionInformation `json:"connectionInformation"`
	UserInput             userInput             `json:"userInput"`
	EventTime             int64                 `json:"eventTime"`
}

type evaluationResponse struct {
	ForterDecision string `json:"forterDecision"`
	CorrelationID  string `json:"correlationId"`
}

func newEvaluationRequest(a Attempt) evaluationRequest {
	return evaluationRequest{
		AccountID: a.AccountID,
		ConnectionInformation: connectionInformation{
			CustomerIP:        a.CustomerIP,
			UserAgent:         a.UserAgent,
			ForterTokenCookie: a.TrackingToken,
		},
		UserInput: userInput{Email: a.Email, InputType: inputTypeEmail},
		EventTime: a.EventTime.UnixMilli(),
	}
}

// ─── Evaluations ──────────────────────────────────────────────────────────────

// EvaluateSignUp asks for a verdict on a first login.
func (c *Client) EvaluateSignUp(ctx context.Context, a Attempt) (domain.Verdict, error) {
	resp, err := c.evaluate(ctx, domain.EventSignUp, a.AccountID, newEvaluationRequest(a))
	if err != nil {
		return "", err
	}
	return resp.Verdict, nil
}

// EvaluateSignIn asks for a verdict on a returning login.
func (c *Client) EvaluateSignIn(ctx context.Context, a Attempt) (SignInResult, error) {
	body := newEvaluationRequest(a)
	body.LoginStatus = domain.LoginStatusSuccess
	body.LoginMethodType = string(a.LoginMethodType)

	resp, err := c.evaluate(ctx, domain.EventSignIn, a.AccountID, body)
	if err != nil {
		return SignInResult{}, err
	}
	return resp, nil
}

// evaluate posts one evaluation and returns the checked verdict. Provider
// strings outside the known verdicts never reach metrics or spans.
func (c *Client) evaluate(ctx context.Context, et domain.EventType, accountID string, body evaluationRequest) (resp SignInResult, err error) {
	ctx, span := traces.StartSpan(ctx, "risk.evaluate",
		traces.EventType(string(et)), traces.AccountID(accountID))
	start := time.Now()
	defer func() {
		metrics.RiskEvaluationDuration.WithLabelValues(string(et)).Observe(time.Since(start).Seconds())
		result := "error"
		if err == nil {
			result = string(resp.Verdict)
			span.SetAttributes(traces.Verdict(result))
		}
		metrics.RiskEvaluationsTotal.WithLabelValues(string(et), result).Inc()
		traces.End(span, err)
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return resp, fmt.Errorf("marshal %s evaluation: %w", et, err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, et, url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return resp, fmt.Errorf("build %s evaluation request: %w", et, err)
	}
	req.SetBasicAuth(c.key, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIVersion, c.apiVersion)
	req.Header.Set(headerClient, domain.RiskClientIdentifier)

	res, err := c.http.Do(req)
	if err != nil {
		return resp, fmt.Errorf("%w: %s evaluation: %w", domain.ErrNetwork, et, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return resp, fmt.Errorf("%w: read %s evaluation: %w", domain.ErrNetwork, et, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return resp, &domain.HTTPStatusError{
			Method: http.MethodPost,
			URL:    endpoint,
			Status: res.StatusCode,
			Body:   truncate(string(raw), maxErrorBody),
		}
	}

	if err := validate(raw); err != nil {
		return resp, fmt.Errorf("%s evaluation: %w", et, err)
	}
	var decoded evaluationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return resp, fmt.Errorf("%w: %s evaluation: %v", domain.ErrMalformedResponse, et, err)
	}
	v, err := domain.ParseVerdict(decoded.ForterDecision)
	if err != nil {
		return resp, fmt.Errorf("%s evaluation: %w", et, err)
	}
	return SignInResult{Verdict: v, CorrelationID: decoded.CorrelationID}, nil
}

// validate checks raw against responseSchema.
func validate(raw []byte) error {
	result, err := responseSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", domain.ErrMalformedResponse, strings.Join(msgs, "; "))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
