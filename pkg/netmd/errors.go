package netmd

import (
	"errors"
	"fmt"

	"github.com/netmd-tools/mdctl/pkg/query"
)

var (
	// ErrTimeout is returned when the device did not signal a response
	// within the allowed number of polls.
	ErrTimeout            = errors.New("timed out waiting for device")
	ErrDeviceRejected     = errors.New("device rejected command")
	ErrResponseTooShort   = errors.New("response too short")
	ErrResponseUnexpected = errors.New("unexpected response")
)

// TransportError wraps a failure of the underlying USB transfer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("usb %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectedError is returned when the device answered a command with a
// negative response code. The response is still returned to the caller of
// Exchange alongside this error.
type RejectedError struct {
	Code    ResponseCode
	Command []byte
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("device answered %s to %x", e.Code, e.Command)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrDeviceRejected
}

// scanReply matches a response against a template, translating codec
// failures into the transport's error kinds.
func scanReply(rsp []byte, template string) ([]query.Value, error) {
	res, err := query.Scan(rsp, template)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, query.ErrShortInput) {
		return nil, fmt.Errorf("%w: %w", ErrResponseTooShort, err)
	}
	return nil, fmt.Errorf("%w: %w", ErrResponseUnexpected, err)
}
