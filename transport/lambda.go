package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// Invoker is the part of *lambda.Client the transport needs.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaTransport invokes AWS Lambda functions by name.
type LambdaTransport struct {
	client Invoker
}

func NewLambdaTransport(client Invoker) *LambdaTransport {
	return &LambdaTransport{client: client}
}

// Request invokes target synchronously. A set FunctionError marks an
// application failure whose detail is in the returned payload.
func (t *LambdaTransport) Request(ctx context.Context, target Target, payload []byte) (res []byte, err error) {
	ctx, span := startSpan(ctx, "transport.request", "lambda", target)
	defer func() { endSpan(span, err) }()

	if err := checkTarget("request", target); err != nil {
		return nil, err
	}
	out, err := t.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(string(target)),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, &TransportError{Op: "request", Target: target, Err: err}
	}
	if out.FunctionError != nil {
		return nil, &RemoteInvocationError{Target: target, Message: remoteErrorMessage(out.Payload)}
	}
	return out.Payload, nil
}

// Push invokes target asynchronously; Lambda answers 202 once queued.
func (t *LambdaTransport) Push(ctx context.Context, target Target, payload []byte) (err error) {
	ctx, span := startSpan(ctx, "transport.push", "lambda", target)
	defer func() { endSpan(span, err) }()

	if err := checkTarget("push", target); err != nil {
		return err
	}
	out, err := t.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(string(target)),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return &TransportError{Op: "push", Target: target, Err: err}
	}
	if out.StatusCode != http.StatusAccepted {
		return &TransportError{Op: "push", Target: target, Err: fmt.Errorf("unexpected status %d", out.StatusCode)}
	}
	return nil
}
