// Package openai implements driver.ModelClient over the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/loopkit/loopkit/driver"
)

// ChatClient captures the subset of the OpenAI SDK client the adapter
// depends on, satisfied by the real client's Chat.Completions service.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Options configures model selection and completion defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int64
}

// Client implements driver.ModelClient over OpenAI Chat Completions.
type Client struct {
	chat ChatClient
	opts Options
}

// New builds a Client from an explicit ChatClient and Options.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: chat, opts: opts}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Chat.Completions, Options{DefaultModel: defaultModel})
}

var _ driver.ModelClient = (*Client)(nil)

// Complete issues one Chat.Completions.New round-trip and adapts the result
// into a driver.Response.
func (c *Client) Complete(ctx context.Context, req driver.Request) (driver.Response, error) {
	if len(req.Messages) == 0 && req.UserMessage == "" {
		return nil, errors.New("openai: request has no content")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.opts.DefaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: encodeMessages(req),
	}
	if c.opts.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(c.opts.MaxTokens)
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completions.new: %w", err)
	}
	return translateResponse(resp), nil
}

func encodeMessages(req driver.Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(m.Content))
	}
	if req.UserMessage != "" {
		msgs = append(msgs, openai.UserMessage(req.UserMessage))
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

func translateResponse(resp *openai.ChatCompletion) driver.Response {
	var text string
	var hasToolCalls bool
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		text = msg.Content
		hasToolCalls = len(msg.ToolCalls) > 0
	}
	return response{
		tokens:       resp.Usage.TotalTokens,
		hasToolCalls: hasToolCalls,
		text:         text,
	}
}
