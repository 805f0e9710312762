package main

import (
	"time"

	"github.com/zeromicro/go-zero/core/logx"
)

type Config struct {
	Log logx.LogConf

	// 中继地址，即服务端的 /ws-proxy
	RelayURL string `json:",default=ws://127.0.0.1:8080/ws-proxy"`
	APIKey   string `json:",optional"`

	Model        string `json:",default=step-audio-2,options=step-audio-2|step-audio-2-mini"`
	Voice        string `json:",default=qingchunshaonv"`
	Instructions string `json:",optional"`

	AutoSelect     bool   `json:",default=true"`
	DataSaver      bool   `json:",optional"`
	PreferredModel string `json:",optional"`

	MaxReconnectAttempts int           `json:",default=3"`
	ReconnectDelay       time.Duration `json:",default=2s"`
	WriteTimeout         time.Duration `json:",default=5s"`

	Probe ProbeConfig
	Usage UsageConfig
	Cards CardsConfig

	// 输入音频按块推送的时长，以及每轮结束后补的静音
	ChunkDuration time.Duration `json:",default=100ms"`
	TrailSilence  time.Duration `json:",default=1500ms"`
	TurnTimeout   time.Duration `json:",default=60s"`
	// 按实际播放时长输出音频；关闭时立即写完
	Realtime bool `json:",default=true"`
}

type ProbeConfig struct {
	URL     string        `json:",default=https://api.stepfun.com/v1/models"`
	Timeout time.Duration `json:",default=5s"`
	Window  int           `json:",default=5"`
}

type UsageConfig struct {
	FilePath string `json:",default=data/voicecli-usage.json"`
	Capacity int    `json:",default=1000"`
}

type CardsConfig struct {
	// 为空时不生成知识卡片
	BaseURL string        `json:",optional"`
	Timeout time.Duration `json:",default=60s"`
	Every   int           `json:",default=3"`
	Subject string        `json:",optional"`
	Persona string        `json:",optional"`
}
