package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"aegisd/pkg/types"
)

// Dispatcher sends one request to one backend and returns the generated text.
type Dispatcher interface {
	Dispatch(ctx context.Context, m types.Model, req types.RouteRequest) (string, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, m types.Model, req types.RouteRequest) (string, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, m types.Model, req types.RouteRequest) (string, error) {
	return f(ctx, m, req)
}

func defaultDispatcher(m types.Model) Dispatcher {
	if m.Locality == types.LocalityRemote {
		return &openaiDispatcher{}
	}
	return &httpDispatcher{client: &http.Client{}}
}

func upstreamModel(m types.Model) string {
	if m.UpstreamModel != "" {
		return m.UpstreamModel
	}
	return m.ID
}

// httpDispatcher speaks to local servers exposing /v1/chat/completions.
// Timeouts come from the caller's context.
type httpDispatcher struct {
	client *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (d *httpDispatcher) Dispatch(ctx context.Context, m types.Model, req types.RouteRequest) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:     upstreamModel(m),
		Messages:  []chatMessage{{Role: "user", Content: req.Payload}},
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("backend error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty chat response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// openaiDispatcher drives remote OpenAI-compatible APIs through the SDK.
// The API key is resolved from the environment variable the model names.
type openaiDispatcher struct{}

func (d *openaiDispatcher) Dispatch(ctx context.Context, m types.Model, req types.RouteRequest) (string, error) {
	opts := []option.RequestOption{}
	if m.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(m.Endpoint))
	}
	if m.APIKeyEnv != "" {
		key := os.Getenv(m.APIKeyEnv)
		if key == "" {
			return "", fmt.Errorf("api key env %s is empty", m.APIKeyEnv)
		}
		opts = append(opts, option.WithAPIKey(key))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(upstreamModel(m)),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Payload)},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("remote completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty remote completion")
	}
	return completion.Choices[0].Message.Content, nil
}
