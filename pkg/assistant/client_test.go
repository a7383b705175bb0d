package assistant_test

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/aretw0/mindful/pkg/assistant"
)

type fakeGenerator struct {
	mu       sync.Mutex
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig

	resp   *genai.GenerateContentResponse
	err    error
	chunks []string
	failAt int // stream fails before chunk failAt when > 0
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func (f *fakeGenerator) record(model string, contents []*genai.Content, config *genai.GenerateContentConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model, f.contents, f.config = model, contents, config
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.record(model, contents, config)
	return f.resp, f.err
}

func (f *fakeGenerator) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(model, contents, config)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for i, c := range f.chunks {
			if f.failAt > 0 && i == f.failAt {
				yield(nil, errors.New("quota exceeded"))
				return
			}
			if !yield(textResponse(c), nil) {
				return
			}
		}
	}
}

func TestGenerateText(t *testing.T) {
	resp := textResponse("Try a five minute walk.")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://example.org/walk", Title: "Walking"}},
			{Web: &genai.GroundingChunkWeb{URI: "https://example.org/walk", Title: "Walking"}},
			{Web: nil},
		},
	}
	gen := &fakeGenerator{resp: resp}
	c := assistant.NewWithGenerator(gen)

	temp := float32(0.2)
	res, err := c.GenerateText(context.Background(), "I feel restless", assistant.Options{
		SystemInstruction: "You are a calm coach.",
		WebSearch:         true,
		Temperature:       &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "Try a five minute walk.", res.Text)
	assert.Equal(t, []assistant.Citation{{URI: "https://example.org/walk", Title: "Walking"}}, res.Citations)
	assert.False(t, res.Fallback)

	assert.Equal(t, assistant.DefaultModel, gen.model)
	require.Len(t, gen.config.Tools, 1)
	assert.NotNil(t, gen.config.Tools[0].GoogleSearch)
	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, "You are a calm coach.", gen.config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, gen.config.Temperature)
	assert.Equal(t, float32(0.2), *gen.config.Temperature)
}

func TestGenerateText_Errors(t *testing.T) {
	c := assistant.NewWithGenerator(&fakeGenerator{err: errors.New("unavailable")}, assistant.WithModel("custom"))

	_, err := c.GenerateText(context.Background(), "  ", assistant.Options{})
	assert.ErrorIs(t, err, assistant.ErrEmptyPrompt)

	_, err = c.GenerateText(context.Background(), "hello", assistant.Options{})
	assert.ErrorContains(t, err, "unavailable")
}

func TestGenerateOrFallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := assistant.NewWithGenerator(&fakeGenerator{err: errors.New("unavailable")}, assistant.WithLogger(logger))

	res := c.GenerateOrFallback(context.Background(), "hello", assistant.Options{}, "pt-BR")
	assert.True(t, res.Fallback)
	assert.Equal(t, assistant.Fallback("pt"), res.Text)
	assert.Contains(t, buf.String(), "generation failed")
}

func TestStreamChat(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"Breathe ", "in, ", "and out."}}
	c := assistant.NewWithGenerator(gen)

	history := []assistant.Message{
		{Role: assistant.RoleUser, Text: "hi"},
		{Role: assistant.RoleModel, Text: "hello"},
	}

	var (
		text   string
		finals int
		errs   int
	)
	c.StreamChat(context.Background(), history, "help me relax",
		func(chunk string, final bool) {
			if final {
				finals++
				return
			}
			text += chunk
		},
		func(error) { errs++ },
		assistant.Options{Model: "gemini-test"},
	)

	assert.Equal(t, "Breathe in, and out.", text)
	assert.Equal(t, 1, finals)
	assert.Equal(t, 0, errs)
	assert.Equal(t, "gemini-test", gen.model)
	require.Len(t, gen.contents, 3)
	assert.Equal(t, "model", gen.contents[1].Role)
	assert.Equal(t, "help me relax", gen.contents[2].Parts[0].Text)
}

func TestStreamChat_SingleErrorOnFailure(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"a", "b", "c"}, failAt: 1}
	c := assistant.NewWithGenerator(gen)

	var (
		chunks []string
		finals int
		errs   []error
	)
	c.StreamChat(context.Background(), nil, "hello",
		func(chunk string, final bool) {
			if final {
				finals++
				return
			}
			chunks = append(chunks, chunk)
		},
		func(err error) { errs = append(errs, err) },
		assistant.Options{},
	)

	assert.Equal(t, []string{"a"}, chunks)
	assert.Equal(t, 0, finals)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "quota exceeded")
}

func TestStreamChat_EmptyMessage(t *testing.T) {
	c := assistant.NewWithGenerator(&fakeGenerator{})
	var got error
	c.StreamChat(context.Background(), nil, "", func(string, bool) { t.Fatal("unexpected chunk") }, func(err error) { got = err }, assistant.Options{})
	assert.ErrorIs(t, got, assistant.ErrEmptyPrompt)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := assistant.New(context.Background(), "")
	assert.Error(t, err)
}
