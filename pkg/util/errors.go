// Package util provides utility functions and common error types shared
// across DSPgate's packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the taxonomy of device/API failures. Callers should
// compare with errors.Is, not pointer identity.
var (
	ErrNotReady                = errors.New("device not ready: discovery has not completed")
	ErrNoSuchBlock             = errors.New("no such block")
	ErrNoSuchChannel           = errors.New("no such channel")
	ErrUnsupportedForBlockType = errors.New("operation unsupported for block type")
	ErrOutOfRange              = errors.New("value out of range")
	ErrTransportDown           = errors.New("transport not active")
	ErrTimeout                 = errors.New("operation timed out")
	ErrPreconditionFailed      = errors.New("precondition not met")
	ErrValidationFailed        = errors.New("validation failed")
)

// PreconditionError represents a failed precondition check with context.
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error.
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// ValidationError represents one or more validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors.
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false.
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally.
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message.
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors.
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors.
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// BlockError reports a failed lookup or operation against a specific block,
// optionally a specific channel within it.
type BlockError struct {
	Op      string // "setMute", "setLevel", "setSourceSelect", "block", ...
	BlockID string
	Channel int // 0 if not channel-specific
	Reason  error
	Detail  string
}

func (e *BlockError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.BlockID)
	if e.Channel != 0 {
		msg += fmt.Sprintf(" channel %d", e.Channel)
	}
	msg += ": " + e.Reason.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *BlockError) Unwrap() error {
	return e.Reason
}

// NewNoSuchBlockError reports that blockID is absent from the Device model.
func NewNoSuchBlockError(blockID string) *BlockError {
	return &BlockError{Op: "block", BlockID: blockID, Reason: ErrNoSuchBlock}
}

// NewNoSuchChannelError reports that channel does not exist on blockID.
func NewNoSuchChannelError(blockID string, channel int) *BlockError {
	return &BlockError{Op: "channel", BlockID: blockID, Channel: channel, Reason: ErrNoSuchChannel}
}

// NewUnsupportedOpError reports that op is not valid for blockID's type.
func NewUnsupportedOpError(op, blockID, detail string) *BlockError {
	return &BlockError{Op: op, BlockID: blockID, Reason: ErrUnsupportedForBlockType, Detail: detail}
}

// NewOutOfRangeError reports a rejected level value on one channel.
func NewOutOfRangeError(blockID string, channel int, detail string) *BlockError {
	return &BlockError{Op: "setLevel", BlockID: blockID, Channel: channel, Reason: ErrOutOfRange, Detail: detail}
}
