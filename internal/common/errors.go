package common

import (
	"fmt"
	"time"
)

// InvalidPayloadError indicates a notification payload that fails local
// validation (missing title/body, malformed data JSON). Never sent upstream.
type InvalidPayloadError struct {
	Message string
}

func (e *InvalidPayloadError) Error() string {
	return e.Message
}

// NewInvalidPayloadError creates a new InvalidPayloadError.
func NewInvalidPayloadError(message string) *InvalidPayloadError {
	return &InvalidPayloadError{Message: message}
}

// InvalidScheduleError indicates a requested send time in the past.
type InvalidScheduleError struct {
	SendAt time.Time
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("send time %s is in the past", e.SendAt.Format(time.RFC3339))
}

// NewInvalidScheduleError creates a new InvalidScheduleError.
func NewInvalidScheduleError(sendAt time.Time) *InvalidScheduleError {
	return &InvalidScheduleError{SendAt: sendAt}
}

// InvalidTransitionError indicates an operation attempted on a notification
// in a terminal status (sent or cancelled).
type InvalidTransitionError struct {
	Status string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s notification", e.Action, e.Status)
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(status, action string) *InvalidTransitionError {
	return &InvalidTransitionError{Status: status, Action: action}
}

// EmptyAudienceError indicates that target resolution produced zero delivery
// tokens after deduplication.
type EmptyAudienceError struct {
	Selector string
}

func (e *EmptyAudienceError) Error() string {
	return fmt.Sprintf("no delivery tokens resolved for %s", e.Selector)
}

// NewEmptyAudienceError creates a new EmptyAudienceError.
func NewEmptyAudienceError(selector string) *EmptyAudienceError {
	return &EmptyAudienceError{Selector: selector}
}

// ResolutionFailedError indicates that a directory or group fetch needed to
// resolve a target selector errored. Distinct from EmptyAudience: the
// recipient set could not be determined at all.
type ResolutionFailedError struct {
	Selector string
	Err      error
}

func (e *ResolutionFailedError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Selector, e.Err)
}

func (e *ResolutionFailedError) Unwrap() error {
	return e.Err
}

// NewResolutionFailedError creates a new ResolutionFailedError.
func NewResolutionFailedError(selector string, err error) *ResolutionFailedError {
	return &ResolutionFailedError{Selector: selector, Err: err}
}

// UpstreamError indicates a transport, persistence, or dispatch call failure.
// Op identifies the action so the UI can present a specific message.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}
