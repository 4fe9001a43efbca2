package translate

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/imtaco/rtms-bridge/internal/errors"
	"github.com/imtaco/rtms-bridge/internal/retry"
)

const (
	ErrUpstreamFailed errors.Code = "upstream_failed"
	ErrEmptyResponse  errors.Code = "empty_response"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// chatClient talks to an OpenAI compatible chat completion endpoint.
type chatClient struct {
	http        *resty.Client
	model       string
	temperature float64
	maxTokens   int
}

func newChatClient(cfg *Config) *chatClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout)

	return &chatClient{
		http:        client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func systemPrompt(lang string) string {
	return "You are a translator. Translate the following text to " + LanguageName(lang) +
		". Return only the translated text without any additional comments or explanations."
}

// complete returns a retry.Permanent error for responses that will not
// improve on retry.
func (c *chatClient) complete(ctx context.Context, text, lang string) (string, error) {
	req := &chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(lang)},
			{Role: "user", Content: text},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	var (
		out    chatResponse
		apiErr apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return "", errors.Wrap(ErrUpstreamFailed, err, "chat completion request")
	}

	if resp.IsError() {
		err := errors.Newf(ErrUpstreamFailed, "chat completion http %d: %s",
			resp.StatusCode(), apiErr.Error.Message)
		if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError {
			return "", err
		}
		return "", retry.Permanent(err)
	}

	if len(out.Choices) == 0 {
		return "", retry.Permanent(errors.New(ErrEmptyResponse, "chat completion without choices"))
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
