package engine

import (
	"errors"
	"fmt"
)

// PhaseError represents a recoverable logic error detected by the tracker.
//
// Phase errors include:
//   - Stack imbalance: a phase completed out of order, or was not active
//   - Missing attribution: an unwind needed a source that was never set
//   - Capture after completion: a buffer was fed after its context ended
//   - Stale handle: a context handle outlived its pooled context
//   - Unwind panic: a state's unwind procedure panicked
//
// None of these abort the caller. The tracker logs them and returns the
// error through Completion.Err where one is available.
type PhaseError struct {
	// Code identifies the error category.
	Code PhaseErrorCode

	// Message is a human-readable description.
	Message string

	// State names the phase state involved.
	State string

	// Depth is the stack index of the affected entry, or -1.
	Depth int

	// Details contains additional context.
	Details map[string]string
}

// PhaseErrorCode categorizes phase errors.
type PhaseErrorCode string

const (
	// ErrCodeStackImbalance indicates completion did not match the top of the stack.
	ErrCodeStackImbalance PhaseErrorCode = "STACK_IMBALANCE"

	// ErrCodeMissingAttribution indicates a required source was absent at unwind.
	ErrCodeMissingAttribution PhaseErrorCode = "MISSING_ATTRIBUTION"

	// ErrCodeCaptureAfterCompletion indicates a capture on a finished context.
	ErrCodeCaptureAfterCompletion PhaseErrorCode = "CAPTURE_AFTER_COMPLETION"

	// ErrCodeStaleHandle indicates a handle whose context was released.
	ErrCodeStaleHandle PhaseErrorCode = "STALE_HANDLE"

	// ErrCodeUnwindPanic indicates an unwind procedure panicked.
	ErrCodeUnwindPanic PhaseErrorCode = "UNWIND_PANIC"

	// ErrCodeDomainPanic indicates the domain function passed to Run panicked.
	ErrCodeDomainPanic PhaseErrorCode = "DOMAIN_PANIC"

	// ErrCodeRunawayPhase indicates the stack grew past the configured depth.
	ErrCodeRunawayPhase PhaseErrorCode = "RUNAWAY_PHASE"
)

// Error implements the error interface.
func (e *PhaseError) Error() string {
	if e.State != "" && e.Depth >= 0 {
		return fmt.Sprintf("%s: %s (state=%s, depth=%d)", e.Code, e.Message, e.State, e.Depth)
	}
	if e.State != "" {
		return fmt.Sprintf("%s: %s (state=%s)", e.Code, e.Message, e.State)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code PhaseErrorCode) bool {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsStackImbalance returns true if err is a stack imbalance error.
// Uses errors.As to handle wrapped errors.
func IsStackImbalance(err error) bool {
	return hasCode(err, ErrCodeStackImbalance)
}

// IsMissingAttribution returns true if err is a missing attribution error.
func IsMissingAttribution(err error) bool {
	return hasCode(err, ErrCodeMissingAttribution)
}

// IsStaleHandle returns true if err is a stale handle error.
func IsStaleHandle(err error) bool {
	return hasCode(err, ErrCodeStaleHandle)
}

// IsUnwindPanic returns true if err came from a panicking unwind.
func IsUnwindPanic(err error) bool {
	return hasCode(err, ErrCodeUnwindPanic)
}

// NewMissingAttributionError creates a PhaseError for an unwind that could
// not find the attribution it needs.
func NewMissingAttributionError(state, field string) *PhaseError {
	return &PhaseError{
		Code:    ErrCodeMissingAttribution,
		Message: fmt.Sprintf("%s not set; captured mutations dropped", field),
		State:   state,
		Depth:   -1,
		Details: map[string]string{"field": field},
	}
}

// NewStackImbalanceError creates a PhaseError for an entry discarded by a
// mismatched completion.
func NewStackImbalanceError(discarded, expected string, depth int) *PhaseError {
	return &PhaseError{
		Code:    ErrCodeStackImbalance,
		Message: fmt.Sprintf("phase %s discarded while completing %s", discarded, expected),
		State:   discarded,
		Depth:   depth,
		Details: map[string]string{"expected": expected},
	}
}

// OwnershipError is the panic value raised when a tracker is used from a
// goroutine other than the one that created it. Unlike PhaseError it is a
// programming error and is never recovered by the tracker.
type OwnershipError struct {
	Op     string
	Owner  uint64
	Caller uint64
}

// Error implements the error interface.
func (e *OwnershipError) Error() string {
	return fmt.Sprintf("phase tracker %s called from goroutine %d, owned by goroutine %d",
		e.Op, e.Caller, e.Owner)
}
