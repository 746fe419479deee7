// Package errors provides centralized error definitions and error handling utilities
// for tmux-mcp. It defines the sentinel errors of the session taxonomy, typed errors
// that carry session/backend context, and classification helpers used by the
// protocol layer to turn failures into structured tool-call errors.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - SessionError: a failure tied to one tracked session (name + id context)
//   - BackendError: a failed invocation of the tmux binary (argv, stderr, exit code)
//   - KeyError: a symbolic key name that could not be translated
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
//	err := errors.NewNotFoundError("session", "repl").WithCause(errors.ErrSessionNotFound)
//
//	if errors.Is(err, errors.ErrSessionNotFound) { ... }
//
//	var backendErr *errors.BackendError
//	if errors.As(err, &backendErr) { log.Debug("tmux failed", "stderr", backendErr.Stderr) }
//
// # Taxonomy
//
// Every error returned by the session layer maps onto one of the codes returned
// by [Code]: SessionAlreadyExists, SessionNotFound, UnknownKey,
// BackendUnavailable, BackendCommandFailed (including timeouts), InvalidInput.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity tells the protocol layer how loudly to log a failure.
type Severity int

const (
	// SeverityWarning marks a failure caused by the caller's input or by
	// session state the caller can observe (unknown session, bad key).
	SeverityWarning Severity = iota
	// SeverityError marks a failure of the backend or of tmux-mcp itself.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Session-related sentinel errors
var (
	// ErrSessionAlreadyExists indicates that a session name is already in use.
	ErrSessionAlreadyExists = New("session already exists")
	// ErrSessionNotFound indicates that a session is not tracked.
	ErrSessionNotFound = New("session not found")
	// ErrSessionGone indicates that the backend no longer has the session,
	// even though it may still be tracked.
	ErrSessionGone = New("session vanished from backend")
)

// Input-related sentinel errors
var (
	// ErrUnknownKey indicates that a symbolic key name has no backend mapping.
	ErrUnknownKey = New("unknown key")
)

// Backend-related sentinel errors
var (
	// ErrBackendUnavailable indicates that the multiplexer binary cannot be invoked at all.
	ErrBackendUnavailable = New("backend unavailable")
	// ErrBackendCommandFailed indicates that a backend invocation ran but failed.
	ErrBackendCommandFailed = New("backend command failed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// Taxonomy codes returned by Code.
const (
	CodeSessionAlreadyExists = "SessionAlreadyExists"
	CodeSessionNotFound      = "SessionNotFound"
	CodeUnknownKey           = "UnknownKey"
	CodeBackendUnavailable   = "BackendUnavailable"
	CodeBackendCommandFailed = "BackendCommandFailed"
	CodeInvalidInput         = "InvalidInput"
	CodeInternal             = "InternalError"
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// TypedError is the base interface for all tmux-mcp errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type TypedError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to the controller.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// SessionError represents a failure tied to one tracked session.
//
// Example:
//
//	err := errors.NewSessionError("send command", backendErr).WithSessionName("repl")
//	fmt.Println(err) // "session error [name=repl]: send command: backend error ..."
type SessionError struct {
	baseError
	SessionName string
	SessionID   string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithSessionName adds a session name to the error context.
func (e *SessionError) WithSessionName(name string) *SessionError {
	e.SessionName = name
	return e
}

// WithSessionID adds a session id to the error context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// Severity is the cause's severity when the cause is typed, so a bad key
// stays a warning after the registry wraps it.
func (e *SessionError) Severity() Severity {
	var typed TypedError
	if As(e.cause, &typed) {
		return typed.Severity()
	}
	return e.severity
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.SessionName != "" {
		parts = append(parts, fmt.Sprintf("name=%s", e.SessionName))
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("id=%s", e.SessionID))
	}

	prefix := "session error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("session error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SessionError) Is(target error) bool {
	if _, ok := target.(*SessionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BackendError represents a failed invocation of the multiplexer binary.
// The cause is one of ErrBackendUnavailable, ErrBackendCommandFailed or
// ErrSessionGone, optionally joined with a TimeoutError.
//
// Example:
//
//	err := errors.NewBackendError("send-keys", errors.ErrBackendCommandFailed).
//		WithArgs(args).WithStderr("can't find pane").WithExitCode(1)
type BackendError struct {
	baseError
	Args     []string
	Stderr   string
	ExitCode int
}

// NewBackendError creates a new BackendError.
func NewBackendError(message string, cause error) *BackendError {
	return &BackendError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		ExitCode: -1, // -1 indicates not set
	}
}

// WithArgs adds the backend argv to the error context.
func (e *BackendError) WithArgs(args []string) *BackendError {
	e.Args = args
	return e
}

// WithStderr adds captured stderr to the error context.
func (e *BackendError) WithStderr(stderr string) *BackendError {
	e.Stderr = strings.TrimSpace(stderr)
	return e
}

// WithExitCode adds the process exit code to the error context.
func (e *BackendError) WithExitCode(code int) *BackendError {
	e.ExitCode = code
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *BackendError) WithRetryable(r bool) *BackendError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *BackendError) Error() string {
	var parts []string
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}

	prefix := "backend error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("backend error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target. A vanished session is still a
// failed backend command.
func (e *BackendError) Is(target error) bool {
	if _, ok := target.(*BackendError); ok {
		return true
	}
	if target == ErrBackendCommandFailed && errors.Is(e.cause, ErrSessionGone) {
		return true
	}
	return e.baseError.Is(target)
}

// KeyError represents a key name that has no backend key identifier.
//
// Example:
//
//	err := errors.NewKeyError("NotAKey")
//	fmt.Println(err) // "unknown key \"NotAKey\""
type KeyError struct {
	baseError
	Key string
}

// NewKeyError creates a new KeyError for the given key name.
func NewKeyError(key string) *KeyError {
	return &KeyError{
		baseError: baseError{
			message:    "unknown key",
			cause:      ErrUnknownKey,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Key: key,
	}
}

// Error returns the formatted error message.
func (e *KeyError) Error() string {
	return fmt.Sprintf("unknown key %q", e.Key)
}

// Is checks if this error matches the target.
func (e *KeyError) Is(target error) bool {
	if _, ok := target.(*KeyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("session", "repl")
//	fmt.Println(err) // "session 'repl' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
//
// Example:
//
//	err := errors.NewAlreadyExistsError("session", "repl")
//	fmt.Println(err) // "session 'repl' already exists"
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("session name cannot be empty")
//	err = err.WithField("session_name").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("tmux capture-pane", 10*time.Second)
//	fmt.Println(err) // "timeout error: tmux capture-pane (timeout: 10s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry: it wraps ErrTimeout, or any TypedError in its
// chain (a SessionError's backend cause, say) is marked retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrTimeout) {
		return true
	}
	return anyTyped(err, TypedError.IsRetryable)
}

// anyTyped walks err's whole chain, including joined errors, and reports
// whether pred holds for some TypedError in it.
func anyTyped(err error, pred func(TypedError) bool) bool {
	if err == nil {
		return false
	}
	if typed, ok := err.(TypedError); ok && pred(typed) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if anyTyped(e, pred) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return anyTyped(u.Unwrap(), pred)
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to the
// controller verbatim.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var typed TypedError
	if As(err, &typed) {
		return typed.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the outermost TypedError.
// Returns SeverityError for nil and for errors that don't implement
// TypedError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityError
	}

	var typed TypedError
	if As(err, &typed) {
		return typed.Severity()
	}

	return SeverityError
}

// Code maps an error onto the taxonomy exposed to the calling protocol layer.
// Returns "" for a nil error.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrUnknownKey):
		return CodeUnknownKey
	case Is(err, ErrSessionAlreadyExists):
		return CodeSessionAlreadyExists
	case Is(err, ErrSessionNotFound), Is(err, ErrSessionGone):
		return CodeSessionNotFound
	case Is(err, ErrBackendUnavailable):
		return CodeBackendUnavailable
	case Is(err, ErrBackendCommandFailed), Is(err, ErrTimeout):
		return CodeBackendCommandFailed
	case Is(err, ErrInvalidInput):
		return CodeInvalidInput
	default:
		return CodeInternal
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves the TypedError interface.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
