package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest/httpc"
)

const (
	StepFunBaseURL = "https://api.stepfun.com/v1"
	QwenBaseURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1"

	StepFunDefaultModel = "step-1v-8k"
	QwenDefaultModel    = "qwen-turbo"
)

// OpenAIProvider 调用兼容 OpenAI chat/completions 协议的服务
type OpenAIProvider struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	service      httpc.Service
}

// NewOpenAIProvider creates a provider for any endpoint speaking the chat/completions protocol.
func NewOpenAIProvider(name, apiKey, baseURL, defaultModel string, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		name:         name,
		apiKey:       apiKey,
		baseURL:      baseURL,
		defaultModel: defaultModel,
		service:      httpc.NewServiceWithClient(name, &http.Client{Timeout: timeout}),
	}
}

// 阶跃星辰 Provider
func NewStepFunProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = StepFunBaseURL
	}
	return NewOpenAIProvider("stepfun", apiKey, baseURL, StepFunDefaultModel, 0)
}

// 通义千问 Provider，走 DashScope 的兼容模式
func NewQwenProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = QwenBaseURL
	}
	return NewOpenAIProvider("qwen", apiKey, baseURL, QwenDefaultModel, 0)
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

// Configured reports whether the provider has a credential.
func (p *OpenAIProvider) Configured() bool {
	return p.apiKey != ""
}

type chatCompletionRequest struct {
	Model       string     `json:"model"`
	Messages    []*Message `json:"messages"`
	Temperature float64    `json:"temperature,omitempty"`
	TopP        float64    `json:"top_p,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Stream      bool       `json:"stream"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	FinishReason string   `json:"finish_reason,omitempty"`
}

var errNoChoices = errors.New("no choices in response")

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
	}
	// 如果没有指定模型，使用默认模型
	if body.Model == "" {
		body.Model = p.defaultModel
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.service.DoRequest(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return nil, errNoChoices
	}

	choice := out.Choices[0]
	return &ChatResponse{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
	}, nil
}

// IsNoChoices reports whether err means the model returned no content.
func IsNoChoices(err error) bool {
	return errors.Is(err, errNoChoices)
}
