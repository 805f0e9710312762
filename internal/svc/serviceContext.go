package svc

import (
	"context"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/config"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/provider"
	"github.com/unclewu3242592726/aitutor/pkg/relay"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
)

type ServiceContext struct {
	Config   config.Config
	Registry *provider.Registry
	Probe    *selector.LatencyProbe
	Selector *selector.Selector
	Store    usage.Store
	Tracker  *usage.Tracker
	Hub      *relay.Hub
	Relay    *relay.Relay
	// 未配置可用的 LLM Provider 时为 nil
	Cards *cards.Generator
}

func NewServiceContext(c config.Config) *ServiceContext {
	// 创建 Provider Registry
	registry := provider.NewRegistry()

	// 注册阶跃星辰 Provider，知识卡片默认使用它
	stepfunAPIKey := c.Providers.StepFun.APIKey
	if stepfunAPIKey == "" {
		stepfunAPIKey = os.Getenv("STEPFUN_API_KEY")
	}
	if stepfunAPIKey != "" {
		registry.RegisterLLM("stepfun", provider.NewStepFunProvider(stepfunAPIKey, c.Providers.StepFun.BaseURL))
	}

	// 注册 Qwen LLM Provider
	qwenAPIKey := c.Providers.Qwen.APIKey
	if qwenAPIKey == "" {
		qwenAPIKey = os.Getenv("QWEN_API_KEY")
	}
	if qwenAPIKey != "" {
		registry.RegisterLLM("qwen", provider.NewQwenProvider(qwenAPIKey, c.Providers.Qwen.BaseURL))
	}

	var generator *cards.Generator
	if llm, err := registry.GetLLM(c.Cards.Provider); err == nil {
		generator = cards.NewGenerator(llm, c.Cards.Model, c.Cards.MaxCards)
	} else {
		logx.Errorf("知识卡片服务未配置: %v", err)
	}

	store, err := NewUsageStore(c.Usage)
	logx.Must(err)
	tracker := usage.NewTracker(context.Background(), store, c.Usage.Capacity)

	hub := relay.NewHub()

	return &ServiceContext{
		Config:   c,
		Registry: registry,
		Probe: selector.NewLatencyProbe(c.Upstream.ProbeURL,
			selector.WithProbeTimeout(c.Probe.Timeout),
			selector.WithProbeWindow(c.Probe.Window)),
		Selector: selector.NewSelector(),
		Store:    store,
		Tracker:  tracker,
		Hub:      hub,
		Relay: relay.NewRelay(relay.Config{
			UpstreamURL:        c.Upstream.RealtimeURL,
			DialTimeout:        c.Upstream.DialTimeout,
			WriteTimeout:       c.Relay.WriteTimeout,
			MaxPendingMessages: c.Relay.MaxPendingMessages,
			ReadLimit:          c.Relay.ReadLimit,
		}, hub),
		Cards: generator,
	}
}

// NewUsageStore builds the usage store selected by the configuration.
func NewUsageStore(c config.UsageConfig) (usage.Store, error) {
	switch usage.StoreType(c.Store) {
	case usage.StoreTypeFile:
		return usage.NewStore(usage.StoreTypeFile, usage.WithFilePath(c.FilePath))
	case usage.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		return usage.NewStore(usage.StoreTypeRedis, usage.WithRedisClient(client), usage.WithRedisKey(c.Redis.Key))
	default:
		return usage.NewStore(usage.StoreType(c.Store))
	}
}

// Close releases resources owned by the context.
func (s *ServiceContext) Close() {
	if err := s.Store.Close(); err != nil {
		logx.Errorf("关闭使用记录存储失败: %v", err)
	}
}
