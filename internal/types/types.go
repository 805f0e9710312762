// Code scaffolded by goctl. Safe to edit.

package types

import (
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/subject"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
)

type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type HealthRequest struct {
	Probe bool `form:"probe,optional"`
}

type HealthData struct {
	Status      string         `json:"status"`
	Connections int            `json:"connections"`
	Latency     int            `json:"latency"`
	Providers   []ProviderInfo `json:"providers"`
	Timestamp   int64          `json:"timestamp"`
}

type HealthResponse struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    HealthData `json:"data"`
}

type ProviderInfo struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type ServiceListResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    []ProviderInfo `json:"data"`
}

type ServiceStatusRequest struct {
	Name string `path:"name"`
}

type ServiceStatusResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    ProviderInfo `json:"data"`
}

type ModelListResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    []model.ModelInfo `json:"data"`
}

type VoiceListResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    []model.VoiceInfo `json:"data"`
}

type SubjectListResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    []subject.Subject `json:"data"`
}

type WsProxyRequest struct {
	APIKey string `form:"apiKey,optional"`
	Model  string `form:"model,optional"`
}

type DeviceSignals struct {
	UserAgent string  `json:"userAgent,optional"`
	MemoryGB  float64 `json:"memoryGB,optional"`
	Cores     int     `json:"cores,optional"`
}

type SelectModelRequest struct {
	Utterance      string         `json:"utterance,optional"`
	Turns          int            `json:"turns,optional"`
	Latency        int            `json:"latency,optional"`
	Device         *DeviceSignals `json:"device,optional"`
	DataSaver      bool           `json:"dataSaver,optional"`
	PreferredModel string         `json:"preferredModel,optional"`
}

type SelectModelData struct {
	Model   string `json:"model"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
	Device  string `json:"device"`
	Latency int    `json:"latency"`
}

type SelectModelResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    SelectModelData `json:"data"`
}

type LatencyData struct {
	Sample  int   `json:"sample"`
	Average int   `json:"average"`
	Samples []int `json:"samples"`
}

type LatencyResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    LatencyData `json:"data"`
}

type ConversationTurn struct {
	UserMessage string `json:"userMessage"`
	AIResponse  string `json:"aiResponse"`
}

type GenerateCardsRequest struct {
	Conversations []ConversationTurn `json:"conversations,optional"`
	Subject       string             `json:"subject,optional"`
	Persona       string             `json:"persona,optional"`
}

type GenerateCardsResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    cards.Response `json:"data"`
}

type UsageRecordRequest struct {
	Timestamp         int64  `json:"timestamp,optional"`
	ModelUsed         string `json:"modelUsed"`
	ComplexityScore   int    `json:"complexityScore,optional"`
	ResponseTime      int64  `json:"responseTime,optional"`
	NetworkLatency    int    `json:"networkLatency,optional"`
	DevicePerformance string `json:"devicePerformance,optional"`
	Reason            string `json:"reason,optional"`
	UserSatisfaction  string `json:"userSatisfaction,optional"`
}

type UsageRecordResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    usage.Record `json:"data"`
}

type UsageRecentRequest struct {
	Count int `form:"count,optional"`
}

type UsageRecordsResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    []usage.Record `json:"data"`
}

type UsageReportResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    usage.Report `json:"data"`
}

type UsageImportData struct {
	Count int `json:"count"`
}

type UsageImportResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    UsageImportData `json:"data"`
}

type FeedbackRequest struct {
	Timestamp    int64  `json:"timestamp"`
	Satisfaction string `json:"satisfaction,options=good|neutral|bad"`
}
