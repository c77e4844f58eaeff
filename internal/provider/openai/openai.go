// Package openai adapts any OpenAI-compatible chat completion endpoint
// (OpenAI, Groq, OpenRouter) to the provider contract.
package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"assistd/internal/provider"
)

// Provider talks to an OpenAI-compatible chat completions API.
type Provider struct {
	client openai.Client
	name   string
	model  string
}

// New builds a provider for the given endpoint. baseURL may be empty for the
// OpenAI default. SDK-internal retries are disabled; the retry policy lives
// in the completion client.
func New(name, baseURL, apiKey, model string) *Provider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Provider{
		client: openai.NewClient(opts...),
		name:   name,
		model:  model,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) params(req provider.Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	var messages []openai.ChatCompletionMessageParamUnion
	if len(req.Context) > 0 {
		messages = append(messages, openai.SystemMessage(strings.Join(req.Context, "\n\n")))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	return openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
}

// Complete performs a single non-streaming chat completion call.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.params(req))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.ErrTransport("response carried no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streaming chat completion call.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	s := p.client.Chat.Completions.NewStreaming(ctx, p.params(req))
	if err := s.Err(); err != nil {
		_ = s.Close()
		return nil, classify(err)
	}
	return &stream{inner: s}, nil
}

type stream struct {
	inner *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *stream) Recv() (string, error) {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			return delta, nil
		}
	}
	if err := s.inner.Err(); err != nil {
		return "", classify(err)
	}
	return "", io.EOF
}

func (s *stream) Close() error { return s.inner.Close() }

// classify maps SDK and context errors onto the provider error kinds.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.ErrTimeout(err.Error())
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return provider.ErrRateLimited(err.Error())
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return provider.ErrTimeout(err.Error())
		}
	}
	return provider.ErrTransport(err.Error())
}
