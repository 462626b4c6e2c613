package transport

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrEmptyTarget is wrapped by the TransportError returned when a role was
// never configured for this deployment.
var ErrEmptyTarget = errors.New("empty invocation target")

const genericRemoteFailure = "remote function failed to process request"

// RemoteInvocationError reports that the target ran and flagged a failure.
type RemoteInvocationError struct {
	Target  Target
	Message string
}

func (e *RemoteInvocationError) Error() string {
	return e.Message
}

// TransportError reports that the invocation mechanism itself failed.
type TransportError struct {
	Op     string
	Target Target
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %q: %v", e.Op, string(e.Target), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err carries a RemoteInvocationError.
func IsRemote(err error) bool {
	var remote *RemoteInvocationError
	return errors.As(err, &remote)
}

// remoteErrorMessage pulls the failure detail out of an error body, falling
// back to a fixed message when the body is not a JSON object carrying one.
func remoteErrorMessage(body []byte) string {
	var parsed struct {
		Error        string `json:"error"`
		ErrorMessage string `json:"errorMessage"`
		Message      string `json:"message"`
	}
	if len(body) == 0 || sonic.Unmarshal(body, &parsed) != nil {
		return genericRemoteFailure
	}
	switch {
	case parsed.Error != "":
		return parsed.Error
	case parsed.ErrorMessage != "":
		return parsed.ErrorMessage
	case parsed.Message != "":
		return parsed.Message
	}
	return genericRemoteFailure
}

func checkTarget(op string, target Target) error {
	if target == "" {
		return &TransportError{Op: op, Target: target, Err: ErrEmptyTarget}
	}
	return nil
}
