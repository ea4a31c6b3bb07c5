// Package sdkerr defines the error taxonomy shared by the SDK's server and
// transport layers. The first five sentinels are precondition failures raised
// before any network interaction; ServiceCallFailedError is raised only after
// a round trip to the control plane.
package sdkerr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when an operation requires a process
	// state that has not been created (or has been destroyed).
	ErrNotInitialized = errors.New("process state has not been created")

	// ErrAlreadyInitialized is returned when a second process state is
	// created while one is still live.
	ErrAlreadyInitialized = errors.New("process state already exists")

	// ErrTransportNotInitialized is returned when an operation requires a
	// live connection to the local proxy and there is none.
	ErrTransportNotInitialized = errors.New("transport is not initialized or not connected")

	// ErrProcessNotReady is returned when an operation requires the process
	// to have declared readiness and it has not.
	ErrProcessNotReady = errors.New("process has not been declared ready")

	// ErrNoGameSession is returned when an operation requires a bound game
	// session and none has been assigned.
	ErrNoGameSession = errors.New("no game session is bound to this process")

	// ErrServiceCallFailed matches any ServiceCallFailedError via errors.Is.
	ErrServiceCallFailed = errors.New("service call failed")
)

// ServiceCallFailedError reports that the control plane rejected a call, that
// a response failed to decode, or that no response arrived when one was
// expected. Message holds the text extracted from the remote error envelope
// when one was decodable.
type ServiceCallFailedError struct {
	Message string
}

func (e *ServiceCallFailedError) Error() string {
	if e.Message == "" {
		return "service call failed"
	}
	return "service call failed: " + e.Message
}

// Is reports a match for the ErrServiceCallFailed sentinel.
func (e *ServiceCallFailedError) Is(target error) bool {
	return target == ErrServiceCallFailed
}

// ServiceCallFailed builds a ServiceCallFailedError with a formatted message.
func ServiceCallFailed(format string, args ...interface{}) error {
	return &ServiceCallFailedError{Message: fmt.Sprintf(format, args...)}
}
