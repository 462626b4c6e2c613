package gateway

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
)

// DefaultHeaders returns the headers attached to every response.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}
}

// Text builds a response with a plain body.
func Text(status int, body string) Response {
	return Response{StatusCode: status, Headers: DefaultHeaders(), Body: body}
}

// JSON builds a response with v encoded as the body.
func JSON(status int, v any) (Response, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return Response{}, err
	}
	return Response{StatusCode: status, Headers: DefaultHeaders(), Body: string(data)}, nil
}

// BadRequest builds a 400 response carrying msg.
func BadRequest(msg string) Response {
	return Text(http.StatusBadRequest, msg)
}

// ValidationError marks a rejected input. Its message is safe to return.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid returns a ValidationError with msg.
func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// Reject renders err as a 400 when it is a ValidationError. Any other error
// is reported as not handled.
func Reject(err error) (Response, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return BadRequest(verr.Message), true
	}
	return Response{}, false
}
