// Package anthropic backs a capability agent with the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/provider"
)

// Options configures the Anthropic capability adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model        anthropic.Model
	Temperature  float64
	MaxTokens    int64
	APIKey       string
	SystemPrompt string
}

// Invoker wraps the Anthropic Messages API behind the core.Invoker interface.
type Invoker struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:        anthropic.ModelClaude3_7SonnetLatest,
		Temperature:  0.2,
		MaxTokens:    1024,
		SystemPrompt: provider.DefaultSystemPrompt,
	}
}

// NewInvoker creates a new Anthropic capability invoker using the official client
func NewInvoker(optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Invoker{client: &client, opts: opts}
}

// NewInvokerFromClient creates a new Anthropic capability invoker from an existing client
func NewInvokerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Invoker {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Invoker{client: client, opts: opts}
}

// Invoke implements core.Invoker.
func (i *Invoker) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	params := anthropic.MessageNewParams{
		Model:       i.opts.Model,
		MaxTokens:   i.opts.MaxTokens,
		Temperature: anthropic.Float(i.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: i.opts.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(provider.BuildUserPrompt(req))),
		},
	}

	resp, err := i.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text content returned")
	}
	return provider.ParseResult(text.String()), nil
}
