package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/resilience"
)

type Options struct {
	Timeout            time.Duration
	Dimensions         int
	ResilienceExecutor *resilience.Executor
}

// Client talks to the Ollama HTTP API for chat completions and embeddings.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string
	dimensions int
	httpClient *http.Client
	executor   *resilience.Executor
}

var (
	_ ports.Embedder           = (*Client)(nil)
	_ ports.CompletionProvider = (*Client)(nil)
)

func New(baseURL, chatModel, embedModel string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		dimensions: opts.Dimensions,
		httpClient: &http.Client{Timeout: opts.Timeout},
		executor:   opts.ResilienceExecutor,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

func (c *Client) chatRequest(req domain.CompletionRequest, stream bool) chatRequest {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return chatRequest{
		Model:    c.chatModel,
		Messages: messages,
		Stream:   stream,
		Options: chatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	var response chatResponse
	if err := c.postJSON(ctx, "/api/chat", c.chatRequest(req, false), &response, "chat"); err != nil {
		return "", err
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", response.Error)
	}
	return strings.TrimSpace(response.Message.Content), nil
}

func (c *Client) Stream(ctx context.Context, req domain.CompletionRequest) (ports.TokenStream, error) {
	body, err := c.openStream(ctx, "/api/chat", c.chatRequest(req, true), "chat_stream")
	if err != nil {
		return nil, err
	}
	return newChatStream(body), nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedQuery returns the zero vector for blank text without calling Ollama.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.dimensions), nil
	}

	var response embedResponse
	request := embedRequest{Model: c.embedModel, Input: []string{text}}
	if err := c.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding result")
	}
	vector := response.Embeddings[0]
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("ollama embed: got %d dimensions, want %d", len(vector), c.dimensions)
	}
	return vector, nil
}
