package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/date-night/backend/internal/config"
)

// WorkersAIChatModel calls a Workers AI text-generation model through
// Cloudflare AI Gateway. It satisfies eino's BaseChatModel so it can be
// chained like any other model.
type WorkersAIChatModel struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

var _ model.BaseChatModel = (*WorkersAIChatModel)(nil)

// HTTPError carries a non-2xx gateway response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("AI Gateway request failed with status %d: %s", e.StatusCode, e.Body)
}

type workersAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type workersAIRequest struct {
	Messages    []workersAIMessage `json:"messages"`
	MaxTokens   *int               `json:"max_tokens,omitempty"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type workersAIResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success *bool `json:"success,omitempty"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// NewWorkersAIChatModel returns a model for cfg. httpClient may be nil; no
// client-level timeout is set because callers bound each call with a context.
func NewWorkersAIChatModel(cfg config.WorkersAIConfig, httpClient *http.Client) (*WorkersAIChatModel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: CLOUDFLARE_ACCOUNT_ID and CLOUDFLARE_SCOPED_TOKEN", config.ErrConfigurationMissing)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &WorkersAIChatModel{
		endpoint:   cfg.Endpoint(),
		token:      cfg.APIToken,
		httpClient: httpClient,
	}, nil
}

// Generate sends input as a single chat completion request.
func (m *WorkersAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	body := workersAIRequest{
		Messages:    make([]workersAIMessage, 0, len(input)),
		MaxTokens:   options.MaxTokens,
		Temperature: options.Temperature,
	}
	for _, msg := range input {
		if msg == nil {
			continue
		}
		body.Messages = append(body.Messages, workersAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out workersAIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode AI Gateway response: %w", err)
	}
	if out.Success != nil && !*out.Success {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("AI Gateway reported failure: %s", strings.Join(msgs, "; "))
	}

	return schema.AssistantMessage(out.Result.Response, nil), nil
}

// Stream is not supported by the gateway call; it yields the full completion
// as a single chunk.
func (m *WorkersAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
