package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

type fakeInvoker struct {
	input *lambda.InvokeInput
	out   *lambda.InvokeOutput
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestLambdaRequest(t *testing.T) {
	inv := &fakeInvoker{out: &lambda.InvokeOutput{StatusCode: 200, Payload: []byte(`{"ok":true}`)}}
	tr := NewLambdaTransport(inv)

	res, err := tr.Request(context.Background(), "embedder", []byte(`{}`))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if string(res) != `{"ok":true}` {
		t.Fatalf("unexpected payload: %s", res)
	}
	if inv.input.InvocationType != types.InvocationTypeRequestResponse {
		t.Fatalf("unexpected invocation type: %s", inv.input.InvocationType)
	}
	if aws.ToString(inv.input.FunctionName) != "embedder" {
		t.Fatalf("unexpected function name: %s", aws.ToString(inv.input.FunctionName))
	}
}

func TestLambdaRequestFunctionError(t *testing.T) {
	inv := &fakeInvoker{out: &lambda.InvokeOutput{
		StatusCode:    200,
		FunctionError: aws.String("Unhandled"),
		Payload:       []byte(`{"errorMessage":"token expired","errorType":"errorString"}`),
	}}
	tr := NewLambdaTransport(inv)

	res, err := tr.Request(context.Background(), "authenticate", nil)
	if res != nil {
		t.Fatalf("expected nil payload, got %s", res)
	}
	var remote *RemoteInvocationError
	if !errors.As(err, &remote) || remote.Message != "token expired" {
		t.Fatalf("expected remote error with detail, got %v", err)
	}
}

func TestLambdaRequestSDKFailure(t *testing.T) {
	tr := NewLambdaTransport(&fakeInvoker{err: errors.New("dial tcp: timeout")})

	_, err := tr.Request(context.Background(), "authenticate", nil)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T", err)
	}
}

func TestLambdaPush(t *testing.T) {
	inv := &fakeInvoker{out: &lambda.InvokeOutput{StatusCode: 202}}
	tr := NewLambdaTransport(inv)

	if err := tr.Push(context.Background(), "collect", []byte(`{}`)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if inv.input.InvocationType != types.InvocationTypeEvent {
		t.Fatalf("unexpected invocation type: %s", inv.input.InvocationType)
	}

	inv.out = &lambda.InvokeOutput{StatusCode: 500}
	if err := tr.Push(context.Background(), "collect", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for non-202 status")
	}
}
