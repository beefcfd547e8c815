package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Client abstracts an OpenAI-compatible LLM API.
type Client interface {
	// ChatCompletion sends a chat completion request and returns the response.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatCompletionStream sends a streaming chat completion request.
	ChatCompletionStream(ctx context.Context, req ChatRequest) (*StreamReader, error)
}

// ChatRequest is a single system + user turn.
type ChatRequest struct {
	Model         string
	SystemMessage string
	UserMessage   string
	// Temperature is optional; nil falls back to the client default.
	Temperature *float64
}

// ChatResponse holds the result of a chat completion.
type ChatResponse struct {
	Content string
}

// StreamReader wraps a streaming response.
type StreamReader struct {
	recv  func() (string, error)
	close func()
}

// NewStreamReader builds a StreamReader from a chunk source and a close hook.
// recv returns io.EOF once the stream is complete.
func NewStreamReader(recv func() (string, error), closeFn func()) *StreamReader {
	return &StreamReader{recv: recv, close: closeFn}
}

func openAIStreamReader(stream *openai.ChatCompletionStream) *StreamReader {
	return NewStreamReader(func() (string, error) {
		resp, err := stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) > 0 {
			return resp.Choices[0].Delta.Content, nil
		}
		return "", nil
	}, func() { stream.Close() })
}

// Recv reads the next chunk from the stream.
func (s *StreamReader) Recv() (string, error) {
	return s.recv()
}

// Close closes the stream.
func (s *StreamReader) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenAIClient implements Client using the OpenAI-compatible API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature *float64
}

// NewOpenAIClient creates a new OpenAI-compatible client. Without WithBaseURL
// the public OpenAI endpoint is used.
func NewOpenAIClient(opts ...Option) *OpenAIClient {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	config := openai.DefaultConfig(cfg.apiKey)
	if cfg.baseURL != "" {
		config.BaseURL = cfg.baseURL
	}
	config.OrgID = cfg.orgID

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		model:       cfg.model,
		temperature: cfg.temperature,
	}
}

// ChatCompletion sends a non-streaming chat completion request.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
	}, nil
}

// ChatCompletionStream sends a streaming chat completion request.
func (c *OpenAIClient) ChatCompletionStream(ctx context.Context, req ChatRequest) (*StreamReader, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion stream failed: %w", err)
	}

	return openAIStreamReader(stream), nil
}

func (c *OpenAIClient) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	req = c.applyDefaults(req)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.SystemMessage,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.UserMessage,
	})

	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	return out
}

// applyDefaults applies client-level defaults to a request where
// the request does not specify its own values.
func (c *OpenAIClient) applyDefaults(req ChatRequest) ChatRequest {
	if req.Model == "" && c.model != "" {
		req.Model = c.model
	}
	if req.Temperature == nil && c.temperature != nil {
		req.Temperature = c.temperature
	}
	return req
}

// CollectStream reads all chunks from a StreamReader and returns the full content.
func CollectStream(sr *StreamReader) (string, error) {
	defer sr.Close()
	var b strings.Builder
	for {
		chunk, err := sr.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return b.String(), err
		}
		b.WriteString(chunk)
	}
	return b.String(), nil
}

// Complete returns the full text of a completion. It streams when the backend
// supports it and falls back to a plain request only when the stream cannot
// be opened. A stream that breaks after it was opened is an error; the
// request is never sent twice.
func Complete(ctx context.Context, c Client, req ChatRequest) (string, error) {
	stream, err := c.ChatCompletionStream(ctx, req)
	if err == nil {
		text, streamErr := CollectStream(stream)
		if streamErr != nil {
			return "", fmt.Errorf("streaming completion failed: %w", streamErr)
		}
		return text, nil
	}
	slog.Debug("streaming not available, using non-streaming", "error", err)

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// NormalizeToken reduces a one-word model reply to a comparable token:
// whitespace, surrounding quotes or markdown emphasis and trailing
// punctuation are removed and the result is lower-cased. Multi-word replies
// are returned lower-cased but otherwise intact so they never equal a
// single-word token.
func NormalizeToken(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`*_")
	s = strings.TrimRight(s, ".!")
	s = strings.Trim(s, "\"'`*_")
	return strings.ToLower(strings.TrimSpace(s))
}
