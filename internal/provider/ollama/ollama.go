// Package ollama adapts a local Ollama daemon to the provider contract.
// Ollama speaks its own NDJSON protocol rather than the OpenAI wire shape,
// so this adapter drives net/http directly.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"assistd/internal/provider"
)

const defaultBaseURL = "http://localhost:11434"

// Provider talks to an Ollama daemon over its /api/generate endpoint.
type Provider struct {
	client  *http.Client
	baseURL string
	model   string
}

// New builds an Ollama provider. baseURL may be empty for the local default.
// The http.Client carries no timeout of its own; per-attempt deadlines come
// from the caller's context.
func New(baseURL, model string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (p *Provider) newRequest(ctx context.Context, req provider.Request, streaming bool) (*http.Request, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := generateRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: strings.Join(req.Context, "\n\n"),
		Stream: streaming,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, provider.ErrTransport(fmt.Sprintf("encode request: %v", err))
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return nil, provider.ErrTransport(err.Error())
	}
	hr.Header.Set("Content-Type", "application/json")
	return hr, nil
}

func (p *Provider) do(ctx context.Context, req provider.Request, streaming bool) (*http.Response, error) {
	hr, err := p.newRequest(ctx, req, streaming)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(hr)
	if err != nil {
		return nil, classify(err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		msg := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, provider.ErrRateLimited(msg)
		}
		return nil, provider.ErrTransport(msg)
	}
	return resp, nil
}

// Complete performs a single non-streaming generate call.
func (p *Provider) Complete(ctx context.Context, req provider.Request) (string, error) {
	resp, err := p.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var line generateLine
	if err := json.NewDecoder(resp.Body).Decode(&line); err != nil {
		return "", provider.ErrTransport(fmt.Sprintf("decode response: %v", err))
	}
	if line.Error != "" {
		return "", provider.ErrTransport(line.Error)
	}
	return line.Response, nil
}

// Stream opens a streaming generate call and parses NDJSON lines lazily.
func (p *Provider) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	resp, err := p.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return &stream{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line generateLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return "", provider.ErrTransport(fmt.Sprintf("decode chunk: %v", err))
		}
		if line.Error != "" {
			return "", provider.ErrTransport(line.Error)
		}
		if line.Done {
			s.done = true
			if line.Response != "" {
				return line.Response, nil
			}
			return "", io.EOF
		}
		if line.Response != "" {
			return line.Response, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", classify(err)
	}
	s.done = true
	return "", io.EOF
}

func (s *stream) Close() error { return s.body.Close() }

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.ErrTimeout(err.Error())
	}
	return provider.ErrTransport(err.Error())
}
