package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIClientDefaults(t *testing.T) {
	client := NewOpenAIClient()
	assert.Empty(t, client.model)
	assert.Nil(t, client.temperature)
}

func TestNewOpenAIClientWithAllOptions(t *testing.T) {
	client := NewOpenAIClient(
		WithBaseURL("https://api.example.com/v1"),
		WithAPIKey("sk-test"),
		WithOrganization("org-test"),
		WithModel("gpt-4"),
		WithTemperature(0.5),
	)
	assert.Equal(t, "gpt-4", client.model)
	require.NotNil(t, client.temperature)
	assert.Equal(t, 0.5, *client.temperature)
}

func TestApplyDefaults(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4"), WithTemperature(0.8))

	tests := []struct {
		name      string
		req       ChatRequest
		wantModel string
		wantTemp  float64
	}{
		{"client defaults", ChatRequest{UserMessage: "hello"}, "gpt-4", 0.8},
		{"request model wins", ChatRequest{Model: "gpt-3.5", UserMessage: "hello"}, "gpt-3.5", 0.8},
		{"explicit zero temperature wins", ChatRequest{UserMessage: "hello", Temperature: Float64Ptr(0)}, "gpt-4", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := client.applyDefaults(tt.req)
			assert.Equal(t, tt.wantModel, req.Model)
			require.NotNil(t, req.Temperature)
			assert.Equal(t, tt.wantTemp, *req.Temperature)
		})
	}
}

func TestBuildRequestOmitsEmptySystemMessage(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4"))

	out := client.buildRequest(ChatRequest{UserMessage: "hi"})
	require.Len(t, out.Messages, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, out.Messages[0].Role)

	out = client.buildRequest(ChatRequest{SystemMessage: "sys", UserMessage: "hi", Temperature: Float64Ptr(0.3)})
	require.Len(t, out.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, out.Messages[0].Role)
	assert.Equal(t, "sys", out.Messages[0].Content)
	assert.InDelta(t, 0.3, out.Temperature, 0.0001)
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Yes", "yes"},
		{"  yes\n", "yes"},
		{"YES.", "yes"},
		{"\"Accurate\"", "accurate"},
		{"**Inaccurate**", "inaccurate"},
		{"Yes, it is", "yes, it is"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeToken(tt.in))
		})
	}
}

// fallbackClient has no streaming support.
type fallbackClient struct {
	content string
	err     error
}

func (c *fallbackClient) ChatCompletion(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &ChatResponse{Content: c.content}, nil
}

func (c *fallbackClient) ChatCompletionStream(_ context.Context, _ ChatRequest) (*StreamReader, error) {
	return nil, errors.New("streaming not supported")
}

func TestCompleteFallsBackToNonStreaming(t *testing.T) {
	text, err := Complete(context.Background(), &fallbackClient{content: "answer"}, ChatRequest{UserMessage: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
}

func TestCompletePropagatesError(t *testing.T) {
	_, err := Complete(context.Background(), &fallbackClient{err: assert.AnError}, ChatRequest{UserMessage: "q"})
	assert.ErrorIs(t, err, assert.AnError)
}

// streamClient streams chunks and then ends with failAfter, or io.EOF when
// failAfter is nil.
type streamClient struct {
	chunks    []string
	failAfter error
	plain     int
	closed    bool
}

func (c *streamClient) ChatCompletion(_ context.Context, _ ChatRequest) (*ChatResponse, error) {
	c.plain++
	return &ChatResponse{Content: "plain"}, nil
}

func (c *streamClient) ChatCompletionStream(_ context.Context, _ ChatRequest) (*StreamReader, error) {
	i := 0
	return NewStreamReader(func() (string, error) {
		if i < len(c.chunks) {
			i++
			return c.chunks[i-1], nil
		}
		if c.failAfter != nil {
			return "", c.failAfter
		}
		return "", io.EOF
	}, func() { c.closed = true }), nil
}

func TestCompleteStreams(t *testing.T) {
	client := &streamClient{chunks: []string{"Graves ", "disease"}}

	text, err := Complete(context.Background(), client, ChatRequest{UserMessage: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Graves disease", text)
	assert.Equal(t, 0, client.plain)
	assert.True(t, client.closed)
}

func TestCompleteDoesNotResendBrokenStream(t *testing.T) {
	client := &streamClient{chunks: []string{"Graves "}, failAfter: assert.AnError}

	_, err := Complete(context.Background(), client, ChatRequest{UserMessage: "q"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, client.plain)
	assert.True(t, client.closed)
}
