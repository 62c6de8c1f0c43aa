// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching across the typed errors below.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid campaign state")
	ErrExecution    = errors.New("campaign execution failed")
)

// ValidationError reports malformed or missing user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError is returned when an id does not resolve under the given owner.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NewCampaignNotFound(id string) error {
	return &NotFoundError{Resource: "campaign", ID: id}
}

// InvalidStateError is returned when an action is not legal for the campaign's status.
type InvalidStateError struct {
	CampaignID string
	Status     string
	Action     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s campaign %s in status %s", e.Action, e.CampaignID, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

func NewInvalidState(campaignID, status, action string) error {
	return &InvalidStateError{CampaignID: campaignID, Status: status, Action: action}
}

// ExecutionError wraps an unexpected failure during a campaign run.
type ExecutionError struct {
	CampaignID string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute campaign %s: %v", e.CampaignID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

func NewExecution(campaignID string, err error) error {
	return &ExecutionError{CampaignID: campaignID, Err: err}
}
