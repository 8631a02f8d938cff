package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// UnmarshalJSON decodes the platform's event leniently. Any JSON value is
// accepted; a wrong type at any known field leaves that field empty and is
// recorded in ShapeError instead of failing the decode.
func (e *LoginEvent) UnmarshalJSON(data []byte) error {
	*e = LoginEvent{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		e.ShapeError = fmt.Errorf("event: expected an object")
		return nil
	}

	var problems []error
	note := func(field string, err error) {
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", field, err))
		}
	}

	if raw, ok := present(fields, "user"); ok {
		var u EventUser
		if err := json.Unmarshal(raw, &u); err != nil {
			note("user", err)
		} else {
			e.User = &u
		}
	}
	if raw, ok := present(fields, "stats"); ok {
		var st EventStats
		if err := json.Unmarshal(raw, &st); err != nil {
			note("stats", err)
		} else {
			e.Stats = &st
		}
	}
	if raw, ok := present(fields, "request"); ok {
		req, err := decodeRequest(raw)
		note("request", err)
		e.Request = req
	}
	if raw, ok := present(fields, "authentication"); ok {
		var a EventAuthentication
		if err := json.Unmarshal(raw, &a); err != nil {
			note("authentication", err)
		} else {
			e.Authentication = &a
		}
	}
	if raw, ok := present(fields, "secrets"); ok {
		secrets, err := decodeSecrets(raw)
		note("secrets", err)
		e.Secrets = secrets
	}

	e.ShapeError = errors.Join(problems...)
	return nil
}

// present returns the raw field unless it is absent or null.
func present(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil, false
	}
	return raw, true
}

func decodeRequest(raw json.RawMessage) (*EventRequest, error) {
	var wire struct {
		IP        string          `json:"ip"`
		UserAgent string          `json:"user_agent"`
		Query     json.RawMessage `json:"query"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	req := &EventRequest{IP: wire.IP, UserAgent: wire.UserAgent}
	if len(wire.Query) == 0 || string(wire.Query) == "null" {
		return req, nil
	}

	var values map[string]any
	if err := json.Unmarshal(wire.Query, &values); err != nil {
		return req, fmt.Errorf("query: expected an object")
	}
	req.Query = make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := queryValue(v); ok {
			req.Query[k] = s
		}
	}
	return req, nil
}

// queryValue reads one query parameter. A repeated parameter arrives as an
// array and yields its first string.
func queryValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func decodeSecrets(raw json.RawMessage) (map[string]string, error) {
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("expected an object")
	}
	secrets := make(map[string]string, len(values))
	var bad []error
	for k, v := range values {
		switch t := v.(type) {
		case string:
			secrets[k] = t
		case nil:
		default:
			bad = append(bad, fmt.Errorf("%s: expected a string, got %T", k, v))
		}
	}
	return secrets, errors.Join(bad...)
}
