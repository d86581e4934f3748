package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/maaspractice/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoCredential is returned when no API key can be resolved. No request is
// sent in that case.
var ErrNoCredential = errors.New("API key not configured")

// CredentialSource resolves the API key. It is consulted on every call so a
// key added while the server runs is picked up without a restart.
type CredentialSource interface {
	Resolve(ctx context.Context) (string, error)
}

// Request is one generation call.
type Request struct {
	Model     string // overrides the client's model when set
	MaxTokens int
	System    string
	Messages  []model.Turn
}

// Client wraps an OpenAI-compatible chat completion API.
type Client struct {
	baseURL    string
	model      string
	creds      CredentialSource
	httpClient *http.Client
}

// New creates a new LLM client.
func New(baseURL, modelName string, creds CredentialSource) *Client {
	return &Client{
		baseURL: baseURL,
		model:   modelName,
		creds:   creds,
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) api(ctx context.Context) (*openai.Client, error) {
	if c.creds == nil {
		return nil, ErrNoCredential
	}
	key, err := c.creds.Resolve(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNoCredential, err)
	}
	if strings.TrimSpace(key) == "" {
		return nil, ErrNoCredential
	}

	config := openai.DefaultConfig(key)
	if c.baseURL != "" {
		config.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		config.HTTPClient = c.httpClient
	}
	return openai.NewClientWithConfig(config), nil
}

// Generate sends the system text followed by the ordered transcript and
// returns the first choice's content. Student turns are sent as user
// messages and patient turns as assistant messages.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	api, err := c.api(ctx)
	if err != nil {
		return "", err
	}

	modelName := req.Model
	if modelName == "" {
		modelName = c.model
	}

	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     modelName,
		Messages:  chatMessages(req.System, req.Messages),
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	content := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", modelName, "chars", len(content), "finish_reason", resp.Choices[0].FinishReason)
	return content, nil
}

// Ping checks that the backend answers a model listing. Callers treat a
// failure as a warning; generation may still work on backends without the
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	if _, err := api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM list models: %w", err)
	}
	return nil
}

func chatMessages(system string, turns []model.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == model.RolePatient {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: t.Text,
		})
	}
	return msgs
}
