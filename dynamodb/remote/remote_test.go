package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLambda struct {
	input *lambda.InvokeInput
	out   *lambda.InvokeOutput
	err   error
}

func (f *fakeLambda) Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.input = params
	return f.out, f.err
}

func TestLambdaInvoker_Invoke(t *testing.T) {
	ctx := context.Background()

	t.Run("sends request response invocation", func(t *testing.T) {
		fake := &fakeLambda{out: &lambda.InvokeOutput{
			StatusCode: 200,
			Payload:    []byte(`{"status":"SUCCESS","payload":{"ok":true}}`),
		}}
		res, err := NewLambdaInvoker(fake).Invoke(ctx, "insert-fn", map[string]any{"key": "template"})
		require.NoError(t, err)

		assert.Equal(t, "insert-fn", aws.ToString(fake.input.FunctionName))
		assert.Equal(t, types.InvocationTypeRequestResponse, fake.input.InvocationType)
		assert.JSONEq(t, `{"key":"template"}`, string(fake.input.Payload))
		assert.JSONEq(t, `{"ok":true}`, string(res.Payload))
		assert.False(t, res.Accepted)
	})

	t.Run("raw payloads are sent as is", func(t *testing.T) {
		fake := &fakeLambda{out: &lambda.InvokeOutput{StatusCode: 202}}
		_, err := NewLambdaInvoker(fake).Invoke(ctx, "fn", json.RawMessage(`{"a":1}`))
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(fake.input.Payload))
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewLambdaInvoker(&fakeLambda{err: boom}).Invoke(ctx, "fn", nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("function errors", func(t *testing.T) {
		fake := &fakeLambda{out: &lambda.InvokeOutput{
			StatusCode:    200,
			FunctionError: aws.String("Unhandled"),
			Payload:       []byte(`{"errorMessage":"crash"}`),
		}}
		_, err := NewLambdaInvoker(fake).Invoke(ctx, "fn", nil)
		var opErr *RemoteOperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "Unhandled", opErr.Reason)
	})
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		fnError    string
		body       string
		want       Response
		wantReason string
		wantErr    bool
	}{
		{
			name:       "accepted",
			statusCode: 202,
			want:       Response{Accepted: true},
		},
		{
			name:       "success",
			statusCode: 200,
			body:       `{"status":"SUCCESS","payload":[1,2]}`,
			want:       Response{Payload: json.RawMessage(`[1,2]`)},
		},
		{
			name:       "failed with reason",
			statusCode: 200,
			body:       `{"status":"FAILED","reason":"no such partition"}`,
			wantErr:    true,
			wantReason: "no such partition",
		},
		{
			name:       "failed without reason",
			statusCode: 200,
			body:       `{"status":"FAILED"}`,
			wantErr:    true,
		},
		{
			name:       "server error",
			statusCode: 500,
			wantErr:    true,
			wantReason: "Internal Server Error",
		},
		{
			name:       "malformed body",
			statusCode: 200,
			body:       `not json`,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse("fn", tt.statusCode, tt.fnError, []byte(tt.body))
			if tt.wantErr {
				var opErr *RemoteOperationError
				require.ErrorAs(t, err, &opErr)
				assert.Equal(t, "fn", opErr.Function)
				if tt.wantReason != "" {
					assert.Equal(t, tt.wantReason, opErr.Reason)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRemoteOperationError_Message(t *testing.T) {
	err := &RemoteOperationError{Function: "fn", StatusCode: 200, Status: "FAILED"}
	assert.Equal(t, "remote operation fn returned FAILED: unknown reason", err.Error())

	err = &RemoteOperationError{Function: "fn", StatusCode: 500, Reason: "Unhandled"}
	assert.Equal(t, "remote operation fn failed with status 500: Unhandled", err.Error())
}

func TestResponse_IsList(t *testing.T) {
	assert.True(t, Response{Payload: json.RawMessage(" [1]")}.IsList())
	assert.False(t, Response{Payload: json.RawMessage(`{"a":1}`)}.IsList())
	assert.False(t, Response{}.IsList())
}
