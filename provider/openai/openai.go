// Package openai backs a capability agent with the OpenAI Chat Completions
// API. It adapts chatmesh's normalized CapabilityRequest/CapabilityResult
// structures into the SDK's message format and back. The model is asked for a
// strict JSON answer; a plain-text reply is still accepted and treated as the
// response body.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/provider"
)

// Options configure the OpenAI capability adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	SystemPrompt        string
}

// Invoker wraps the OpenAI Chat Completions API behind the core.Invoker interface.
type Invoker struct {
	client *openai.Client
	opts   Options
}

// NewInvoker creates a new OpenAI capability invoker using the official client
func NewInvoker(optFns ...func(o *Options)) *Invoker {
	client := openai.NewClient()
	return NewInvokerFromClient(&client, optFns...)
}

// NewInvokerFromClient creates a new OpenAI capability invoker from an existing client
func NewInvokerFromClient(client *openai.Client, optFns ...func(o *Options)) *Invoker {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 1024,
		SystemPrompt:        provider.DefaultSystemPrompt,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Invoke implements core.Invoker.
func (i *Invoker) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	params := openai.ChatCompletionNewParams{
		Model: i.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(i.opts.SystemPrompt),
			openai.UserMessage(provider.BuildUserPrompt(req)),
		},
		Temperature:         openai.Float(i.opts.Temperature),
		MaxCompletionTokens: openai.Int(i.opts.MaxCompletionTokens),
	}

	resp, err := i.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	return provider.ParseResult(resp.Choices[0].Message.Content), nil
}
