package core

import (
	"errors"
	"fmt"
)

// ErrEmptyTask is returned when a routing request carries no task text.
var ErrEmptyTask = errors.New("task must not be empty")

// ConfigurationError reports an invalid agent, edge or router setup. It is
// fatal at startup.
type ConfigurationError struct {
	Component string // registry, handoff, router, config, ...
	Message   string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Component != "" {
		msg = e.Component + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", msg, e.Err)
	}
	return "configuration error: " + msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(component, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// UnknownAgentError reports a reference to an agent that is not registered.
type UnknownAgentError struct {
	Name string
	Role string // "source", "target", "entry", ...
}

func (e *UnknownAgentError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("unknown %s agent %q", e.Role, e.Name)
	}
	return fmt.Sprintf("unknown agent %q", e.Name)
}

// IllegalHandoffError reports a transfer intent the delegation table does not permit.
type IllegalHandoffError struct {
	Source string
	Target string
	Reason string
}

func (e *IllegalHandoffError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no delegation edge"
	}
	return fmt.Sprintf("illegal handoff %s -> %s: %s", e.Source, e.Target, reason)
}

// BackendError wraps a transport or remote-service failure observed while
// dispatching to an agent. Status is the remote status code when known.
type BackendError struct {
	Agent   string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	var b []byte
	b = append(b, "backend error"...)
	if e.Agent != "" {
		b = append(b, " ["+e.Agent+"]"...)
	}
	if e.Status != 0 {
		b = fmt.Appendf(b, " (status %d)", e.Status)
	}
	switch {
	case e.Message != "":
		b = append(b, ": "+e.Message...)
	case e.Err != nil:
		b = append(b, ": "+e.Err.Error()...)
	}
	return string(b)
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsBackendError returns err unchanged when it already belongs to the routing
// taxonomy, otherwise wraps it in a BackendError attributed to agent.
func AsBackendError(agent string, err error) error {
	if err == nil {
		return nil
	}
	if IsRoutingError(err) {
		return err
	}
	return &BackendError{Agent: agent, Err: err}
}

// IsRoutingError reports whether err is one of the typed routing errors.
func IsRoutingError(err error) bool {
	var (
		cfgErr     *ConfigurationError
		unknownErr *UnknownAgentError
		illegalErr *IllegalHandoffError
		backendErr *BackendError
	)
	return errors.As(err, &cfgErr) ||
		errors.As(err, &unknownErr) ||
		errors.As(err, &illegalErr) ||
		errors.As(err, &backendErr)
}

// ErrorKind returns a short label for logs and metrics.
func ErrorKind(err error) string {
	var (
		cfgErr     *ConfigurationError
		unknownErr *UnknownAgentError
		illegalErr *IllegalHandoffError
		backendErr *BackendError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyTask):
		return "empty_task"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &unknownErr):
		return "unknown_agent"
	case errors.As(err, &illegalErr):
		return "illegal_handoff"
	case errors.As(err, &backendErr):
		return "backend"
	default:
		return "internal"
	}
}
