package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"assistd/internal/completion"
)

// DefaultManifest returns the built-in capability set.
func DefaultManifest() map[string]Builder {
	return map[string]Builder{
		"explain": newExplain,
		"analyze": newAnalyze,
		"context": newContext,
	}
}

// explainCap asks the completion service to explain a piece of code.
type explainCap struct {
	svc *completion.Service
}

func newExplain(deps Deps) (Capability, error) {
	if deps.Completions == nil {
		return nil, errors.New("completion service not available")
	}
	return &explainCap{svc: deps.Completions}, nil
}

func (c *explainCap) Name() string { return "explain" }

func (c *explainCap) Info() string {
	return "explain code: pass the code as arguments"
}

func (c *explainCap) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("nothing to explain")
	}
	prompt := "Explain the following code:\n\n" + strings.Join(args, " ")
	res, err := c.svc.GetCompletion(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// maxAnalyzeIterations bounds the refinement loop of the analyze capability.
const maxAnalyzeIterations = 3

// analyzeCap runs an iterated analysis over one data row: each pass feeds the
// previous analysis back as context and stops early once the answer settles.
type analyzeCap struct {
	svc *completion.Service
}

func newAnalyze(deps Deps) (Capability, error) {
	if deps.Completions == nil {
		return nil, errors.New("completion service not available")
	}
	return &analyzeCap{svc: deps.Completions}, nil
}

func (c *analyzeCap) Name() string { return "analyze" }

func (c *analyzeCap) Info() string {
	return "analyze a data row iteratively: pass the row as arguments"
}

func (c *analyzeCap) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("nothing to analyze")
	}
	prompt := "Analyze the following data row:\n\n" + strings.Join(args, " ")
	var entries []string
	var last string
	for i := 0; i < maxAnalyzeIterations; i++ {
		res, err := c.svc.GetCompletion(ctx, prompt, entries)
		if err != nil {
			return "", err
		}
		if res.Text == last {
			break
		}
		last = res.Text
		entries = []string{"Previous analysis:\n" + last}
	}
	return last, nil
}

// contextCap looks up index chunks relevant to a query. It requires a built
// index on disk; without one its registration fails and the other plugins
// stay available.
type contextCap struct {
	deps Deps
}

func newContext(deps Deps) (Capability, error) {
	if deps.IndexPath == "" {
		return nil, errors.New("no index store configured")
	}
	return &contextCap{deps: deps}, nil
}

func (c *contextCap) Name() string { return "context" }

func (c *contextCap) Info() string {
	return "look up indexed chunks relevant to a query"
}

func (c *contextCap) Run(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", errors.New("query required")
	}
	ix, err := c.deps.LoadIndex(c.deps.IndexPath)
	if err != nil {
		return "", fmt.Errorf("load index: %w", err)
	}
	chunks := ix.TopK(strings.Join(args, " "), 3)
	if len(chunks) == 0 {
		return "no matching chunks", nil
	}
	return strings.Join(chunks, "\n---\n"), nil
}
