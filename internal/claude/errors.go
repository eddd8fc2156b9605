// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package claude

import (
	"errors"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from a CLI transport.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches two ClientErrors by type so sentinels compare with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// ErrorType categorizes transport errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConnected
	ErrTypeTimeout
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeCLIUnavailable
)

// Sentinel errors for easy checking.
var (
	// ErrNotConnected is reported when neither transport passed its
	// availability probe. The message is shown verbatim in the transcript
	// (prefixed "Error: ") so it tells the user exactly how to recover.
	ErrNotConnected = &ClientError{
		Type:    ErrTypeNotConnected,
		Message: "Claude not connected. Please start the HTTP API server or run in Tauri.",
	}

	ErrTimeout = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}

	// ErrCLIUnavailable is reported when the proxy rejects a CLI switch
	// because the requested binary is not installed.
	ErrCLIUnavailable = &ClientError{Type: ErrTypeCLIUnavailable, Message: "requested CLI is not available"}
)

// IsNotConnected checks if an error indicates no transport is reachable.
func IsNotConnected(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotConnected
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return errors.Is(err, ErrTimeout)
}
