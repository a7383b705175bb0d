// Package assistant is the generative-text client used by the feature pages:
// single-shot generation with optional web-search grounding, streamed chat,
// and canned fallbacks for when the model is unreachable.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyPrompt is returned when there is nothing to send.
var ErrEmptyPrompt = errors.New("prompt is empty")

// Generator is the part of the genai API the client needs. *genai.Models
// implements it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Options tune a single request.
type Options struct {
	SystemInstruction string
	WebSearch         bool // ground the answer with Google Search
	Model             string
	Temperature       *float32
}

// Citation is a web source the answer was grounded on.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// Result is a generated answer.
type Result struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations,omitempty"`
	Fallback  bool       `json:"fallback,omitempty"` // Text is a canned message, not a model answer
}

// Role of a chat message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of a chat history.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Client sends prompts to a hosted language model.
type Client struct {
	gen    Generator
	model  string
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// New connects to the Gemini API with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewWithGenerator(client.Models, opts...), nil
}

// NewWithGenerator builds a client on an existing generator.
func NewWithGenerator(gen Generator, opts ...Option) *Client {
	c := &Client{
		gen:    gen,
		model:  DefaultModel,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) config(o Options) (string, *genai.GenerateContentConfig) {
	model := o.Model
	if model == "" {
		model = c.model
	}

	cfg := &genai.GenerateContentConfig{}
	if o.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(o.SystemInstruction, genai.RoleUser)
	}
	if o.WebSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if o.Temperature != nil {
		t := *o.Temperature
		cfg.Temperature = &t
	}
	return model, cfg
}

// GenerateText sends a single-turn prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string, o Options) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}

	model, cfg := c.config(o)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.gen.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return Result{}, errors.New("model returned no text")
	}
	res := Result{Text: text, Citations: citations(resp)}
	c.logger.Debug("generated text", "model", model, "chars", len(text), "citations", len(res.Citations))
	return res, nil
}

// GenerateOrFallback is GenerateText degrading to the canned message for
// locale. The failure is logged and reported through Result.Fallback.
func (c *Client) GenerateOrFallback(ctx context.Context, prompt string, o Options, locale string) Result {
	res, err := c.GenerateText(ctx, prompt, o)
	if err != nil {
		c.logger.Warn("generation failed, using fallback", "error", err, "locale", locale)
		return Result{Text: Fallback(locale), Fallback: true}
	}
	return res
}

// StreamChat continues history with msg and delivers the answer as it is
// produced. onChunk receives each new piece of text with final=false, then
// one last call with final=true. Any failure ends the stream with exactly one
// onError call and no final chunk. StreamChat returns when the stream ends.
func (c *Client) StreamChat(ctx context.Context, history []Message, msg string, onChunk func(text string, final bool), onError func(error), o Options) {
	if strings.TrimSpace(msg) == "" {
		onError(ErrEmptyPrompt)
		return
	}

	model, cfg := c.config(o)
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(msg, genai.RoleUser))

	var chunks int
	for resp, err := range c.gen.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			c.logger.Warn("chat stream failed", "model", model, "chunks", chunks, "error", err)
			onError(fmt.Errorf("stream content: %w", err))
			return
		}
		if resp == nil {
			continue
		}
		if text := resp.Text(); text != "" {
			chunks++
			onChunk(text, false)
		}
	}
	if err := ctx.Err(); err != nil {
		onError(err)
		return
	}

	c.logger.Debug("chat stream finished", "model", model, "chunks", chunks)
	onChunk("", true)
}

// citations collects the web sources of the first candidate.
func citations(resp *genai.GenerateContentResponse) []Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []Citation
	seen := make(map[string]bool)
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		out = append(out, Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return out
}
