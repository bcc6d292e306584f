package api

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidTopologyError indicates that the current topology view does not
// carry enough information to derive an inventory group and host identity.
// This is a configuration error in the blueprint and is never retried.
type InvalidTopologyError struct {
	// Message describes what was missing.
	Message string
}

// Error implements the error interface for InvalidTopologyError.
func (e *InvalidTopologyError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "topology does not identify an inventory group or host"
}

// NewInvalidTopologyError creates a new InvalidTopologyError.
func NewInvalidTopologyError(message string) *InvalidTopologyError {
	return &InvalidTopologyError{Message: message}
}

// IsInvalidTopology checks if an error is an InvalidTopologyError using
// error unwrapping.
func IsInvalidTopology(err error) bool {
	var topoErr *InvalidTopologyError
	return errors.As(err, &topoErr)
}

// InvalidInputError indicates that a caller-supplied argument is unusable:
// a path-like argument that is not a string, or a referenced file that does
// not exist (or cannot be read) after resolution.
type InvalidInputError struct {
	// Argument names the offending input (e.g. "playbook", "sources").
	Argument string

	// Message describes why the input was rejected.
	Message string
}

// Error implements the error interface for InvalidInputError.
func (e *InvalidInputError) Error() string {
	if e.Argument != "" {
		return fmt.Sprintf("invalid %s: %s", e.Argument, e.Message)
	}
	return e.Message
}

// NewInvalidInputError creates a new InvalidInputError for the named
// argument.
func NewInvalidInputError(argument, message string) *InvalidInputError {
	return &InvalidInputError{Argument: argument, Message: message}
}

// IsInvalidInput checks if an error is an InvalidInputError using error
// unwrapping.
func IsInvalidInput(err error) bool {
	var inputErr *InvalidInputError
	return errors.As(err, &inputErr)
}

// HostFailureError indicates that at least one host reported a task failure
// during a playbook run and failures were not suppressed by the caller.
// The lifecycle operation is marked failed and is not retried.
type HostFailureError struct {
	// Hosts lists the hostnames that failed.
	Hosts []string
}

// Error implements the error interface for HostFailureError.
func (e *HostFailureError) Error() string {
	return fmt.Sprintf("these hosts failed: %s", strings.Join(e.Hosts, ", "))
}

// NewHostFailureError creates a new HostFailureError for the given hosts.
func NewHostFailureError(hosts []string) *HostFailureError {
	return &HostFailureError{Hosts: hosts}
}

// IsHostFailure checks if an error is a HostFailureError using error
// unwrapping.
func IsHostFailure(err error) bool {
	var failErr *HostFailureError
	return errors.As(err, &failErr)
}

// HostsUnreachableError indicates that at least one host was dark
// (unreachable) during a playbook run and dark hosts were not suppressed.
// The caller is expected to reschedule the same operation; re-running is
// safe because inventory merging is idempotent.
type HostsUnreachableError struct {
	// Hosts lists the hostnames that were unreachable. Empty when the run
	// itself timed out before producing a result.
	Hosts []string
}

// Error implements the error interface for HostsUnreachableError.
func (e *HostsUnreachableError) Error() string {
	if len(e.Hosts) == 0 {
		return "playbook run did not complete in time"
	}
	return fmt.Sprintf("these hosts were unreachable: %s", strings.Join(e.Hosts, ", "))
}

// NewHostsUnreachableError creates a new HostsUnreachableError for the
// given hosts.
func NewHostsUnreachableError(hosts []string) *HostsUnreachableError {
	return &HostsUnreachableError{Hosts: hosts}
}

// IsRetryable reports whether an error asks the engine to reschedule the
// operation rather than fail it.
func IsRetryable(err error) bool {
	var darkErr *HostsUnreachableError
	return errors.As(err, &darkErr)
}
