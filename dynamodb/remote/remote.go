// Package remote invokes the functions that own the cache tables.
//
// Every call is a synchronous request/response invocation. A function either
// acknowledges the request without a body, or replies with
//
//	{"status": "SUCCESS" | "FAILED", "payload": ..., "reason": "..."}
//
// Only a SUCCESS reply yields its payload; anything else is surfaced as a
// *RemoteOperationError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const StatusSuccess = "SUCCESS"

// Invoker sends a payload to a named function and waits for its reply.
type Invoker interface {
	Invoke(ctx context.Context, function string, payload any) (Response, error)
}

// Response is the outcome of a successful invocation.
type Response struct {
	// Accepted is set when the function acknowledged the call without a body.
	Accepted bool
	// Payload is the payload of a SUCCESS reply.
	Payload json.RawMessage
}

// IsList reports whether the payload is a JSON array.
func (r Response) IsList() bool {
	return len(bytes.TrimSpace(r.Payload)) > 0 && bytes.TrimSpace(r.Payload)[0] == '['
}

// reply is the body of a non-acknowledgement response.
type reply struct {
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload"`
	Reason  string          `json:"reason"`
}

// LambdaAPI is the part of *lambda.Client used to invoke functions.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

var _ LambdaAPI = (*lambda.Client)(nil)

func NewLambdaInvoker(client LambdaAPI) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

// LambdaInvoker invokes AWS Lambda functions with RequestResponse semantics.
type LambdaInvoker struct {
	client LambdaAPI
}

var _ Invoker = &LambdaInvoker{}

func (l *LambdaInvoker) Invoke(ctx context.Context, function string, payload any) (Response, error) {
	body, err := marshalPayload(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal payload for %s: %w", function, err)
	}
	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: types.InvocationTypeRequestResponse,
		Payload:        body,
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to invoke %s: %w", function, err)
	}
	return ParseResponse(function, int(out.StatusCode), aws.ToString(out.FunctionError), out.Payload)
}

// ParseResponse interprets a raw function reply.
func ParseResponse(function string, statusCode int, functionError string, body []byte) (Response, error) {
	if statusCode < 200 || statusCode >= 300 || functionError != "" {
		return Response{}, &RemoteOperationError{
			Function:   function,
			StatusCode: statusCode,
			Reason:     firstNonEmpty(functionError, http.StatusText(statusCode)),
		}
	}
	if statusCode == http.StatusAccepted {
		return Response{Accepted: true}, nil
	}

	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		return Response{}, &RemoteOperationError{
			Function:   function,
			StatusCode: statusCode,
			Reason:     fmt.Sprintf("malformed reply: %v", err),
		}
	}
	if r.Status != StatusSuccess {
		return Response{}, &RemoteOperationError{
			Function:   function,
			StatusCode: statusCode,
			Status:     r.Status,
			Reason:     r.Reason,
		}
	}
	return Response{Payload: r.Payload}, nil
}

func marshalPayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	case string:
		return []byte(p), nil
	}
	return json.Marshal(payload)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
