package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GEMINI GENERATOR
// ══════════════════════════════════════════════════════════════════════════════

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string

	// Timeout bounds a single attempt.
	Timeout time.Duration
}

// Gemini implements Generator on top of generative-ai-go.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, shared.NewDomainError("llm", "Connect", shared.ErrServiceUnavailable, "GEMINI_API_KEY is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Gemini{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Close releases the client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate runs one request. Transient upstream failures are returned as
// transient errors, which the resilient wrapper retries.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	m := g.client.GenerativeModel(g.model)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		m.SetTemperature(req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		m.SetMaxOutputTokens(req.MaxOutputTokens)
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if len(req.History) > 0 {
		cs := m.StartChat()
		cs.History = toContents(req.History)
		resp, err = cs.SendMessage(ctx, genai.Text(req.Prompt))
	} else {
		resp, err = m.GenerateContent(ctx, genai.Text(req.Prompt))
	}
	if err != nil {
		return "", classify(err)
	}
	return responseText(resp)
}

func toContents(turns []Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		out = append(out, &genai.Content{
			Role:  string(t.Role),
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", shared.ErrLLMInvalidResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", shared.ErrLLMInvalidResponse
	}
	return b.String(), nil
}

// httpCoder is implemented by the API errors of the Google client libraries.
type httpCoder interface {
	HTTPCode() int
}

// classify marks rate limits, server errors and attempt timeouts as retryable.
func classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return shared.WrapError("llm", "Generate", shared.ErrInvalidFormat, "response was blocked", err)
	}

	code := 0
	var gerr *googleapi.Error
	var coder httpCoder
	switch {
	case errors.As(err, &gerr):
		code = gerr.Code
	case errors.As(err, &coder):
		code = coder.HTTPCode()
	}

	if isTransientStatus(code) || errors.Is(err, context.DeadlineExceeded) {
		return transient(fmt.Errorf("gemini generate: %w", err))
	}
	return fmt.Errorf("gemini generate: %w", err)
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
