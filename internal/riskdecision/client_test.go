package riskdecision_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/metrics"
	"lumina/login-gate/internal/riskdecision"
)

// ─── Test server setup ────────────────────────────────────────────────────────

type captured struct {
	method  string
	path    string
	rawPath string
	header  http.Header
	user    string
	pass    string
	body    map[string]any
}

func newProvider(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.Path
		c.rawPath = r.URL.EscapedPath()
		c.header = r.Header.Clone()
		c.user, c.pass, _ = r.BasicAuth()
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &c.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func settings() domain.Settings {
	return domain.Settings{RiskAPIVersion: "2.36", RiskSiteID: "site1", RiskKey: "secret-key"}
}

func newClient(t *testing.T, srv *httptest.Server) *riskdecision.Client {
	t.Helper()
	c, err := riskdecision.New(settings(),
		riskdecision.WithBaseURL(srv.URL+"/v2/accounts/"),
		riskdecision.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

var eventTime = time.UnixMilli(1700000000123)

func attempt() riskdecision.Attempt {
	return riskdecision.Attempt{
		AccountID:       "auth0|abc",
		UserAgent:       "Mozilla/5.0",
		TrackingToken:   "tok-1",
		CustomerIP:      "203.0.113.5",
		Email:           "user@example.com",
		LoginMethodType: domain.LoginSocial,
		EventTime:       eventTime,
	}
}

// ─── New ──────────────────────────────────────────────────────────────────────

func TestNew_MissingSettingFails(t *testing.T) {
	_, err := riskdecision.New(domain.Settings{RiskAPIVersion: "2.36", RiskKey: "k"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingSetting))
}

// ─── EvaluateSignUp ───────────────────────────────────────────────────────────

func TestEvaluateSignUp_SendsRequestShape(t *testing.T) {
	srv, got := newProvider(t, http.StatusOK, `{"forterDecision":"DECLINE"}`)

	v, err := newClient(t, srv).EvaluateSignUp(context.Background(), attempt())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictDecline, v)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v2/accounts/signup/auth0|abc", got.path)
	assert.Equal(t, "/v2/accounts/signup/auth0%7Cabc", got.rawPath)
	assert.Equal(t, "secret-key", got.user)
	assert.Empty(t, got.pass)
	assert.Equal(t, "2.36", got.header.Get("api-version"))
	assert.Equal(t, "auth0", got.header.Get("x-forter-client"))
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))

	assert.Equal(t, "auth0|abc", got.body["accountId"])
	assert.Equal(t, float64(1700000000123), got.body["eventTime"])
	assert.NotContains(t, got.body, "loginStatus")
	assert.NotContains(t, got.body, "loginMethodType")
	assert.Equal(t, map[string]any{
		"customerIP":        "203.0.113.5",
		"userAgent":         "Mozilla/5.0",
		"forterTokenCookie": "tok-1",
	}, got.body["connectionInformation"])
	assert.Equal(t, map[string]any{"email": "user@example.com", "inputType": "EMAIL"}, got.body["userInput"])
}

func TestEvaluateSignUp_AllVerdicts(t *testing.T) {
	for _, v := range []domain.Verdict{domain.VerdictApprove, domain.VerdictDecline, domain.VerdictVerificationRequired} {
		srv, _ := newProvider(t, http.StatusOK, `{"forterDecision":"`+string(v)+`"}`)
		got, err := newClient(t, srv).EvaluateSignUp(context.Background(), attempt())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

// ─── EvaluateSignIn ───────────────────────────────────────────────────────────

func TestEvaluateSignIn_ReturnsVerdictAndCorrelationID(t *testing.T) {
	srv, got := newProvider(t, http.StatusOK, `{"forterDecision":"VERIFICATION_REQUIRED","correlationId":"abc123"}`)

	res, err := newClient(t, srv).EvaluateSignIn(context.Background(), attempt())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictVerificationRequired, res.Verdict)
	assert.Equal(t, "abc123", res.CorrelationID)

	assert.Equal(t, "/v2/accounts/login/auth0|abc", got.path)
	assert.Equal(t, "SUCCESS", got.body["loginStatus"])
	assert.Equal(t, "SOCIAL", got.body["loginMethodType"])
}

func TestEvaluateSignIn_NullCorrelationID(t *testing.T) {
	srv, _ := newProvider(t, http.StatusOK, `{"forterDecision":"APPROVE","correlationId":null}`)

	res, err := newClient(t, srv).EvaluateSignIn(context.Background(), attempt())
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictApprove, res.Verdict)
	assert.Empty(t, res.CorrelationID)
}

// ─── Failures ─────────────────────────────────────────────────────────────────

func TestEvaluate_Non2xxIsNetworkError(t *testing.T) {
	srv, _ := newProvider(t, http.StatusServiceUnavailable, `{"error":"down"}`)

	_, err := newClient(t, srv).EvaluateSignIn(context.Background(), attempt())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))

	var statusErr *domain.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
}

func TestEvaluate_MalformedBodies(t *testing.T) {
	bodies := []string{
		`not json`,
		`{}`,
		`{"forterDecision":42}`,
		`{"forterDecision":"MAYBE"}`,
		`{"forterDecision":"APPROVE","correlationId":7}`,
		`[]`,
	}
	for _, body := range bodies {
		srv, _ := newProvider(t, http.StatusOK, body)
		_, err := newClient(t, srv).EvaluateSignUp(context.Background(), attempt())
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, domain.ErrMalformedResponse), "body %s: %v", body, err)
	}
}

func TestEvaluate_UnknownDecisionCountedAsError(t *testing.T) {
	srv, _ := newProvider(t, http.StatusOK, `{"forterDecision":"SOMETHING_NEW"}`)
	errCounter := metrics.RiskEvaluationsTotal.WithLabelValues("signup", "error")
	errorsBefore := testutil.ToFloat64(errCounter)
	seriesBefore := testutil.CollectAndCount(metrics.RiskEvaluationsTotal)

	_, err := newClient(t, srv).EvaluateSignUp(context.Background(), attempt())
	require.ErrorIs(t, err, domain.ErrMalformedResponse)

	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(errCounter))
	assert.Equal(t, seriesBefore, testutil.CollectAndCount(metrics.RiskEvaluationsTotal),
		"an unknown decision must not create its own series")
}

func TestEvaluate_TransportErrorIsNetworkError(t *testing.T) {
	srv, _ := newProvider(t, http.StatusOK, `{}`)
	c := newClient(t, srv)
	srv.Close()

	_, err := c.EvaluateSignUp(context.Background(), attempt())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestEvaluate_CancelledContext(t *testing.T) {
	srv, _ := newProvider(t, http.StatusOK, `{"forterDecision":"APPROVE"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(t, srv).EvaluateSignIn(ctx, attempt())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
