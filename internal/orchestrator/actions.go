package orchestrator

import "lumina/login-gate/internal/domain"

// Actions is the capability object the identity platform hands to the gate
// for one login attempt.
type Actions interface {
	Deny(message string)
	EnableMultifactor(provider string)
	SetAppMetadata(key string, value any)
}

// Recorder is an Actions that keeps the calls in order so they can be
// returned to the platform as commands.
type Recorder struct {
	Commands []domain.Command
}

// Deny records an access denial.
func (r *Recorder) Deny(message string) {
	r.Commands = append(r.Commands, domain.Command{Type: domain.CommandDeny, Message: message})
}

// EnableMultifactor records a second-factor escalation.
func (r *Recorder) EnableMultifactor(provider string) {
	r.Commands = append(r.Commands, domain.Command{Type: domain.CommandMultifactor, Provider: provider})
}

// SetAppMetadata records an app-metadata write.
func (r *Recorder) SetAppMetadata(key string, value any) {
	r.Commands = append(r.Commands, domain.Command{Type: domain.CommandSetAppMetadata, Key: key, Value: value})
}
