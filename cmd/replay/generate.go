package main

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"lumina/login-gate/internal/domain"
)

// verdictHints are the email markers test mode maps to sentinel IPs, roughly
// weighted towards approvals.
var verdictHints = []string{"approve", "approve", "approve", "approve", "verify", "decline"}

var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) Mobile/15E148",
}

// generateEvents builds n deterministic test-mode events. About one in five
// is a first login (sign-up), and a third of sign-ins are federated.
func generateEvents(seed int64, n int) []domain.LoginEvent {
	rng := rand.New(rand.NewSource(seed))
	events := make([]domain.LoginEvent, 0, n)

	for i := 0; i < n; i++ {
		hint := verdictHints[rng.Intn(len(verdictHints))]
		count := 1
		if rng.Intn(5) != 0 {
			count = 2 + rng.Intn(40)
		}

		method := "pwd"
		if rng.Intn(3) == 0 {
			method = domain.FederatedMethodName
		}
		methods, _ := json.Marshal([]domain.AuthMethod{{Name: method}})

		events = append(events, domain.LoginEvent{
			User: &domain.EventUser{
				UserID: fmt.Sprintf("auth0|replay%04d", i),
				Email:  fmt.Sprintf("%s+%04d@example.com", hint, i),
			},
			Stats: &domain.EventStats{LoginsCount: &count},
			Request: &domain.EventRequest{
				IP:        fmt.Sprintf("198.51.100.%d", 1+rng.Intn(254)),
				UserAgent: userAgents[rng.Intn(len(userAgents))],
				Query:     map[string]string{domain.TrackingTokenQuery: fmt.Sprintf("ftr-%08x", rng.Uint32())},
			},
			Authentication: &domain.EventAuthentication{Methods: methods},
			Secrets: map[string]string{
				"FORTER_API_VERSION": "2.36",
				"FORTER_SITE_ID":     "sandbox",
				"FORTER_KEY":         "replace-me",
				"TEST_MODE":          "true",
			},
		})
	}
	return events
}
