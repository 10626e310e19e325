// Package ggerrors defines the gateway's error taxonomy. Every error that
// can occur while serving a request belongs to exactly one of these kinds,
// so the pipeline's outer boundary can map it to the right HTTP status
// without inspecting error strings.
package ggerrors

import "fmt"

// ConfigError is fatal at startup: malformed config, unknown rule verb,
// invalid matchtype, unreadable credentials file, missing rule arguments.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "config error: " + e.Message }

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// UnauthenticatedError surfaces as a 403 filter denial: missing signature
// parameters, bad timestamp, unknown access key, signature mismatch,
// unknown signature method or version.
type UnauthenticatedError struct {
	Message string
}

func (e *UnauthenticatedError) Error() string { return "unauthenticated: " + e.Message }

// NewUnauthenticatedError builds an UnauthenticatedError with a formatted message.
func NewUnauthenticatedError(format string, args ...interface{}) *UnauthenticatedError {
	return &UnauthenticatedError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationMiss means no configured policy applies to the
// (entity, request) pair; surfaces as a 403.
type AuthorizationMiss struct {
	Entity string
}

func (e *AuthorizationMiss) Error() string {
	return fmt.Sprintf("no policy applies to entity %q", e.Entity)
}

// RuleExecutionError covers unresolvable template variables and malformed
// upstream input encountered while executing a rule; surfaces as a 500.
type RuleExecutionError struct {
	Message string
}

func (e *RuleExecutionError) Error() string { return "rule execution error: " + e.Message }

// NewRuleExecutionError builds a RuleExecutionError with a formatted message.
func NewRuleExecutionError(format string, args ...interface{}) *RuleExecutionError {
	return &RuleExecutionError{Message: fmt.Sprintf(format, args...)}
}

// UpstreamError covers connection failures and partial bodies while
// proxying to the upstream; surfaces as a 500.
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string { return "upstream error: " + e.Message }

// NewUpstreamError builds an UpstreamError with a formatted message.
func NewUpstreamError(format string, args ...interface{}) *UpstreamError {
	return &UpstreamError{Message: fmt.Sprintf(format, args...)}
}
