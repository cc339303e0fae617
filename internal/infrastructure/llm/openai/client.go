package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/resilience"
)

type Options struct {
	BaseURL            string
	Dimensions         int
	ResilienceExecutor *resilience.Executor
	HTTPClient         *http.Client
}

// Client serves completions and embeddings from any OpenAI compatible API.
type Client struct {
	api        *goopenai.Client
	chatModel  string
	embedModel string
	dimensions int
	executor   *resilience.Executor
}

var (
	_ ports.Embedder           = (*Client)(nil)
	_ ports.CompletionProvider = (*Client)(nil)
)

func New(apiKey, chatModel, embedModel string, opts Options) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
		dimensions: opts.Dimensions,
		executor:   opts.ResilienceExecutor,
	}
}

func (c *Client) chatRequest(req domain.CompletionRequest, stream bool) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		if msg.Role == domain.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return goopenai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	var reply string
	err := c.execute(ctx, "openai.chat", func(callCtx context.Context) error {
		resp, err := c.api.CreateChatCompletion(callCtx, c.chatRequest(req, false))
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("openai chat: no choices returned")
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (c *Client) Stream(ctx context.Context, req domain.CompletionRequest) (ports.TokenStream, error) {
	var stream *goopenai.ChatCompletionStream
	err := c.execute(ctx, "openai.chat_stream", func(callCtx context.Context) error {
		s, err := c.api.CreateChatCompletionStream(callCtx, c.chatRequest(req, true))
		if err != nil {
			return err
		}
		stream = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &chatStream{stream: stream}, nil
}

// EmbedQuery returns the zero vector for blank text without calling the API.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, c.dimensions), nil
	}

	var vector []float32
	err := c.execute(ctx, "openai.embed", func(callCtx context.Context) error {
		resp, err := c.api.CreateEmbeddings(callCtx, goopenai.EmbeddingRequest{
			Input:      []string{text},
			Model:      goopenai.EmbeddingModel(c.embedModel),
			Dimensions: c.dimensions,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("openai embed: no embedding returned")
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("openai embed: got %d dimensions, want %d", len(vector), c.dimensions)
	}
	return vector, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, operation, call, classifyOpenAIError)
	}
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyOpenAIError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

type chatStream struct {
	stream *goopenai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("read openai stream: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		retryable := isRetryableHTTPStatus(apiErr.HTTPStatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		retryable := isRetryableHTTPStatus(reqErr.HTTPStatusCode)
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
