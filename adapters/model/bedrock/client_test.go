package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopkit/loopkit/driver"
)

type fakeRuntimeClient struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (f fakeRuntimeClient) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.out, f.err
}

func TestCompleteUnwrapsTypedAPIError(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ThrottlingException", Message: "rate exceeded"}
	c, err := New(fakeRuntimeClient{err: apiErr}, Options{DefaultModel: "anthropic.claude-3"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), driver.Request{UserMessage: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ThrottlingException")
	assert.Contains(t, err.Error(), "rate exceeded")

	var unwrapped smithy.APIError
	assert.True(t, errors.As(err, &unwrapped))
}

func TestCompleteWrapsGenericErrorWithoutAPIErrorDetail(t *testing.T) {
	c, err := New(fakeRuntimeClient{err: errors.New("connection reset")}, Options{DefaultModel: "anthropic.claude-3"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), driver.Request{UserMessage: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	var apiErr smithy.APIError
	assert.False(t, errors.As(err, &apiErr))
}
