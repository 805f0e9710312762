package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrProviderNotFound = errors.New("provider not found")

// Registry manages the chat providers available to the service
type Registry struct {
	mu           sync.RWMutex
	llmProviders map[string]LLMProvider
}

func NewRegistry() *Registry {
	return &Registry{
		llmProviders: make(map[string]LLMProvider),
	}
}

// LLM Provider Interface
type LLMProvider interface {
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Data structures
type ChatRequest struct {
	Model       string     `json:"model"`
	Messages    []*Message `json:"messages"`
	Temperature float64    `json:"temperature,omitempty"`
	TopP        float64    `json:"top_p,omitempty"`
	MaxTokens   int        `json:"max_tokens,omitempty"`
	Stream      bool       `json:"stream"`
}

type Message struct {
	Role    string `json:"role"` // system|user|assistant
	Content string `json:"content"`
}

type ChatResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Usage        *Usage `json:"usage"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusError 上游返回非 200 状态码
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

func (r *Registry) RegisterLLM(name string, provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmProviders[name] = provider
}

func (r *Registry) GetLLM(name string) (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if provider, ok := r.llmProviders[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("LLM provider '%s': %w", name, ErrProviderNotFound)
}

// 服务发现相关方法

// ProviderInfo 表示 Provider 信息
type ProviderInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// GetAllProviders 获取所有 Provider 信息，按名称排序
func (r *Registry) GetAllProviders() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]ProviderInfo, 0, len(r.llmProviders))
	for name := range r.llmProviders {
		providers = append(providers, llmInfo(name))
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Name < providers[j].Name
	})
	return providers
}

// GetProviderInfo 获取特定 Provider 的信息
func (r *Registry) GetProviderInfo(name string) (*ProviderInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.llmProviders[name]; ok {
		info := llmInfo(name)
		return &info, nil
	}
	return nil, fmt.Errorf("provider '%s': %w", name, ErrProviderNotFound)
}

func llmInfo(name string) ProviderInfo {
	return ProviderInfo{
		Name:         name,
		Type:         "llm",
		Status:       "online",
		Capabilities: []string{"chat"},
	}
}
