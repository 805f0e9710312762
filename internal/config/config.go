package config

import (
	"time"

	"github.com/zeromicro/go-zero/rest"
)

type Config struct {
	rest.RestConf

	// 上游实时语音接口
	Upstream UpstreamConfig
	Relay    RelayConfig
	Probe    ProbeConfig
	Usage    UsageConfig

	// Provider 配置
	Providers ProviderConfig `json:",optional"`
	Cards     CardsConfig
}

type UpstreamConfig struct {
	RealtimeURL  string        `json:",default=wss://api.stepfun.com/v1/realtime"`
	ProbeURL     string        `json:",default=https://api.stepfun.com/v1/models"`
	DefaultModel string        `json:",default=step-audio-2,options=step-audio-2|step-audio-2-mini"`
	DialTimeout  time.Duration `json:",default=10s"`
}

type RelayConfig struct {
	Path               string        `json:",default=/ws-proxy"`
	MaxPendingMessages int           `json:",default=1024"`
	WriteTimeout       time.Duration `json:",default=5s"`
	ReadLimit          int64         `json:",default=4194304"`
}

type ProbeConfig struct {
	Timeout  time.Duration `json:",default=5s"`
	Window   int           `json:",default=5"`
	Interval time.Duration `json:",default=30s"`
}

type UsageConfig struct {
	Store    string      `json:",default=memory,options=memory|file|redis"`
	FilePath string      `json:",optional"`
	Capacity int         `json:",default=1000"`
	Redis    RedisConfig `json:",optional"`
}

type RedisConfig struct {
	Addr     string `json:",optional"`
	Password string `json:",optional"`
	DB       int    `json:",optional"`
	Key      string `json:",optional"`
}

type ProviderConfig struct {
	StepFun StepFunConfig `json:",optional"`
	Qwen    QwenConfig    `json:",optional"`
}

type StepFunConfig struct {
	APIKey  string `json:",optional"`
	BaseURL string `json:",optional"`
}

type QwenConfig struct {
	APIKey  string `json:",optional"`
	BaseURL string `json:",optional"`
}

type CardsConfig struct {
	Provider string `json:",default=stepfun,options=stepfun|qwen"`
	Model    string `json:",optional"`
	MaxCards int    `json:",default=5"`
}
