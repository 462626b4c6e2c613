// Package transport lets one function call another, either waiting for the
// answer (Request) or handing the payload off and moving on (Push).
package transport

import "context"

// Target names a deployed function or queue. It is opaque to callers.
type Target string

// Transport is implemented by every invocation binding.
type Transport interface {
	// Request sends payload to target and blocks until the response payload
	// arrives. Failures are *RemoteInvocationError or *TransportError.
	Request(ctx context.Context, target Target, payload []byte) ([]byte, error)
	// Push hands payload off to target and returns once the hand-off was
	// accepted. Only a rejected hand-off is reported, as *TransportError.
	Push(ctx context.Context, target Target, payload []byte) error
}
