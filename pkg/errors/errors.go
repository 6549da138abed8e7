// Unified error handling for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Moonraker transport errors
	ErrTransport ErrorCode = "TRANSPORT"
	ErrTimeout   ErrorCode = "TIMEOUT"
	ErrServer    ErrorCode = "SERVER"
	ErrParse     ErrorCode = "PARSE"

	// Configuration errors
	ErrConfigRead       ErrorCode = "CONFIG_READ"
	ErrConfigWrite      ErrorCode = "CONFIG_WRITE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// UI / layout errors
	ErrPlacement ErrorCode = "PLACEMENT"
	ErrRender    ErrorCode = "RENDER"

	// Display backend errors
	ErrDisplay ErrorCode = "DISPLAY"

	// AMS / multi-material errors
	ErrAmsBusy         ErrorCode = "AMS_BUSY"
	ErrAmsNotSupported ErrorCode = "AMS_NOT_SUPPORTED"
	ErrAmsInvalidGate  ErrorCode = "AMS_INVALID_GATE"
	ErrAmsOperation    ErrorCode = "AMS_OPERATION"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
	ErrIO          ErrorCode = "IO"
)

// HostError is the unified error type for the application.
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// RPCCode is the JSON-RPC error code for SERVER errors (e.g. -32601)
	RPCCode int

	// Component names the subsystem that produced the error
	Component string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Component, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetComponent sets the originating subsystem
func (e *HostError) SetComponent(component string) *HostError {
	e.Component = component
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// TransportError creates an error for a failed or dropped connection.
func TransportError(message string) *HostError {
	return New(ErrTransport, message)
}

// TimeoutError creates an error for a request that exceeded its deadline.
func TimeoutError(method string) *HostError {
	return New(ErrTimeout, fmt.Sprintf("request '%s' timed out", method)).
		SetContext("method", method)
}

// ServerError creates an error from a JSON-RPC error response.
func ServerError(rpcCode int, message string) *HostError {
	e := New(ErrServer, message)
	e.RPCCode = rpcCode
	return e
}

// ParseError creates an error for malformed JSON or config data.
func ParseError(what string, err error) *HostError {
	return Wrap(err, ErrParse, fmt.Sprintf("failed to parse %s", what))
}

// PlacementError creates an error for an invalid grid placement.
func PlacementError(widgetID string, col, row, colspan, rowspan int) *HostError {
	return New(ErrPlacement,
		fmt.Sprintf("cannot place widget '%s' at (%d,%d) span %dx%d",
			widgetID, col, row, colspan, rowspan)).
		SetContext("widget_id", widgetID)
}

// RenderError creates an error for a failed mesh render.
func RenderError(message string) *HostError {
	return New(ErrRender, message)
}

// DisplayError creates an error for a display backend failure.
func DisplayError(message string) *HostError {
	return New(ErrDisplay, message)
}

// IOError creates a non-fatal IO error.
func IOError(operation string, err error) *HostError {
	return Wrap(err, ErrIO, fmt.Sprintf("%s failed", operation))
}

// RuntimeError creates a general runtime error
func RuntimeError(message string) *HostError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component string, reason string) *HostError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason)).
		SetComponent(component)
}

// AmsBusyError indicates an operation was rejected because another is running.
func AmsBusyError(operation string) *HostError {
	return New(ErrAmsBusy, fmt.Sprintf("cannot %s: operation in progress", operation))
}

// AmsInvalidGateError indicates an out-of-range gate index.
func AmsInvalidGateError(gate, total int) *HostError {
	return New(ErrAmsInvalidGate, fmt.Sprintf("gate %d out of range [0,%d)", gate, total))
}

// AmsNotSupportedError indicates the backend lacks a capability.
func AmsNotSupportedError(capability string) *HostError {
	return New(ErrAmsNotSupported, fmt.Sprintf("%s not supported by this backend", capability))
}

// RecoverPanic safely recovers from panic and converts to error
func RecoverPanic() *HostError {
	if r := recover(); r != nil {
		var err error
		switch x := r.(type) {
		case string:
			err = RuntimeError(fmt.Sprintf("panic: %s", x))
		case runtime.Error:
			err = RuntimeError(x.Error())
		case error:
			err = RuntimeError(x.Error())
		default:
			err = RuntimeError(fmt.Sprintf("panic: %v", x))
		}
		return err.(*HostError)
	}
	return nil
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	if hostErr, ok := err.(*HostError); ok {
		return hostErr.Code == code
	}
	return false
}

// IsTransport checks if error is a transport-level error
func IsTransport(err error) bool {
	return Is(err, ErrTransport) || Is(err, ErrTimeout)
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigRead) ||
		Is(err, ErrConfigWrite) ||
		Is(err, ErrConfigValidation)
}

// IsAms checks if error is an AMS error
func IsAms(err error) bool {
	return Is(err, ErrAmsBusy) ||
		Is(err, ErrAmsNotSupported) ||
		Is(err, ErrAmsInvalidGate) ||
		Is(err, ErrAmsOperation)
}
