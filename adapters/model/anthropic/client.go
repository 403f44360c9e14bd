// Package anthropic implements driver.ModelClient over the Anthropic Claude
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/loopkit/loopkit/driver"
)

// MessagesClient captures the subset of the Anthropic SDK client the adapter
// depends on, satisfied by *sdk.MessageService so callers can substitute a
// fake in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter's model selection and completion defaults.
type Options struct {
	DefaultModel string
	MaxTokens    int64
	Temperature  float64
}

// Client implements driver.ModelClient on top of Anthropic Claude Messages.
type Client struct {
	msg   MessagesClient
	opts  Options
}

// New builds a Client from an explicit Messages client and Options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	return &Client{msg: msg, opts: opts}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&c.Messages, Options{DefaultModel: defaultModel})
}

var _ driver.ModelClient = (*Client)(nil)

// Complete issues one Messages.New round-trip and adapts the result into a
// driver.Response.
func (c *Client) Complete(ctx context.Context, req driver.Request) (driver.Response, error) {
	if len(req.Messages) == 0 && req.UserMessage == "" {
		return nil, errors.New("anthropic: request has no content")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.opts.DefaultModel
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(modelID),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: sdk.Float(c.opts.Temperature),
		Messages:    encodeMessages(req),
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateResponse(msg), nil
}

func encodeMessages(req driver.Request) []sdk.MessageParam {
	msgs := make([]sdk.MessageParam, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			msgs = append(msgs, sdk.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, sdk.NewUserMessage(block))
		}
	}
	if req.UserMessage != "" {
		msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(req.UserMessage)))
	}
	return msgs
}

// response adapts a *sdk.Message into driver.Response.
type response struct {
	tokens       int64
	hasToolCalls bool
	text         string
}

func (r response) TotalTokens() int64 { return r.tokens }
func (r response) HasToolCalls() bool { return r.hasToolCalls }
func (r response) Text() string       { return r.text }

func translateResponse(msg *sdk.Message) driver.Response {
	var text string
	var hasToolCalls bool
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			text += variant.Text
		case sdk.ToolUseBlock:
			hasToolCalls = true
		}
	}
	tokens := msg.Usage.InputTokens + msg.Usage.OutputTokens
	return response{tokens: tokens, hasToolCalls: hasToolCalls, text: text}
}
