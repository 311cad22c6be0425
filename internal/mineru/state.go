// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mineru

import "fmt"

// ConversionState is the remote per-file processing state. The remote
// service is the sole authority; the client never infers a more advanced
// state than what the service reports.
type ConversionState string

const (
	StatePending    ConversionState = "pending"
	StateProcessing ConversionState = "processing"
	StateDone       ConversionState = "done"
	StateFailed     ConversionState = "failed"
)

// ParseState maps a remote state string onto the closed enumeration.
// Anything else is an *UnknownStateError rather than being silently
// treated as still pending.
func ParseState(s string) (ConversionState, error) {
	switch ConversionState(s) {
	case StatePending, StateProcessing, StateDone, StateFailed:
		return ConversionState(s), nil
	default:
		return "", &UnknownStateError{State: s}
	}
}

// Terminal reports whether the remote service will not further transition
// a file in this state.
func (s ConversionState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// UnknownStateError reports a state string the client does not recognize.
type UnknownStateError struct {
	State string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unrecognized remote state %q", e.State)
}
