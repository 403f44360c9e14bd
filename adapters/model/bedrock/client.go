// Package bedrock implements driver.ModelClient over the AWS Bedrock
// Converse API.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/loopkit/loopkit/driver"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client the
// adapter depends on, satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock adapter.
type Options struct {
	DefaultModel string
	MaxTokens    int32
	Temperature  float32
}

// Client implements driver.ModelClient on top of AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	opts    Options
}

// New builds a Client from an explicit RuntimeClient and Options.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{runtime: runtime, opts: opts}, nil
}

var _ driver.ModelClient = (*Client)(nil)

// Complete issues one Converse round-trip and adapts the result into a
// driver.Response.
func (c *Client) Complete(ctx context.Context, req driver.Request) (driver.Response, error) {
	if len(req.Messages) == 0 && req.UserMessage == "" {
		return nil, errors.New("bedrock: request has no content")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.opts.DefaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: encodeMessages(req),
	}
	inferenceConfig := &brtypes.InferenceConfiguration{}
	if c.opts.MaxTokens > 0 {
		inferenceConfig.MaxTokens = aws.Int32(c.opts.MaxTokens)
	}
	if c.opts.Temperature > 0 {
		inferenceConfig.Temperature = aws.Float32(c.opts.Temperature)
	}
	input.InferenceConfig = inferenceConfig

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, wrapConverseError(err)
	}
	return translateResponse(out), nil
}

// wrapConverseError unwraps a typed AWS API error when the SDK returns one,
// so callers can inspect the service-reported code/message instead of just
// a generic transport failure.
func wrapConverseError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock: converse: %s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return fmt.Errorf("bedrock: converse: %w", err)
}

func encodeMessages(req driver.Request) []brtypes.Message {
	msgs := make([]brtypes.Message, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		role := brtypes.ConversationRoleUser
		if m.Role == "assistant" {
			role = brtypes.ConversationRoleAssistant
		}
		msgs = append(msgs, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	if req.UserMessage != "" {
		msgs = append(msgs, brtypes.Message{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: req.UserMessage}},
		})
	}
	return msgs
}

type response struct {
	tokens       int64
	hasToolCalls bool
	text         string
}

func (r response) TotalTokens() int64 { return r.tokens }
func (r response) HasToolCalls() bool { return r.hasToolCalls }
func (r response) Text() string       { return r.text }

func translateResponse(out *bedrockruntime.ConverseOutput) driver.Response {
	var text string
	var hasToolCalls bool

	if msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			switch variant := block.(type) {
			case *brtypes.ContentBlockMemberText:
				text += variant.Value
			case *brtypes.ContentBlockMemberToolUse:
				hasToolCalls = true
			}
		}
	}

	var tokens int64
	if out.Usage != nil {
		tokens = int64(aws.ToInt32(out.Usage.TotalTokens))
	}

	return response{tokens: tokens, hasToolCalls: hasToolCalls, text: text}
}
