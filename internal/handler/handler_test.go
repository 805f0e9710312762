package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/rest/httpx"
	"github.com/zeromicro/go-zero/rest/pathvar"

	"github.com/unclewu3242592726/aitutor/internal/config"
	cardshandler "github.com/unclewu3242592726/aitutor/internal/handler/cards"
	cataloghandler "github.com/unclewu3242592726/aitutor/internal/handler/catalog"
	healthhandler "github.com/unclewu3242592726/aitutor/internal/handler/health"
	relayhandler "github.com/unclewu3242592726/aitutor/internal/handler/relay"
	selectionhandler "github.com/unclewu3242592726/aitutor/internal/handler/selection"
	servicehandler "github.com/unclewu3242592726/aitutor/internal/handler/service"
	usagehandler "github.com/unclewu3242592726/aitutor/internal/handler/usage"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/provider"
	"github.com/unclewu3242592726/aitutor/pkg/relay"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

func init() {
	httpx.SetErrorHandlerCtx(func(_ context.Context, err error) (int, any) {
		return xerr.Status(err)
	})
}

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Name() string {
	return "stepfun"
}

func (f *fakeLLM) Chat(context.Context, *provider.ChatRequest) (*provider.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ChatResponse{Text: f.content}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newServiceContext(t *testing.T, llm *fakeLLM) *svc.ServiceContext {
	t.Helper()

	var c config.Config
	c.Upstream.DefaultModel = "step-audio-2"
	c.Usage.Capacity = 100

	store, err := usage.NewStore(usage.StoreTypeMemory)
	require.NoError(t, err)

	registry := provider.NewRegistry()
	var generator *cards.Generator
	if llm != nil {
		registry.RegisterLLM(llm.Name(), llm)
		generator = cards.NewGenerator(llm, "step-1v-8k", cards.MaxCards)
	}

	hub := relay.NewHub()
	return &svc.ServiceContext{
		Config:   c,
		Registry: registry,
		Probe:    selector.NewLatencyProbe("http://127.0.0.1:0"),
		Selector: selector.NewSelector(),
		Store:    store,
		Tracker:  usage.NewTracker(context.Background(), store, c.Usage.Capacity),
		Hub:      hub,
		Relay:    relay.NewRelay(relay.Config{}, hub),
		Cards:    generator,
	}
}

func do(h http.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	return serve(h, r)
}

func serve(h http.HandlerFunc, r *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	h(w, r)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHealth(t *testing.T) {
	ctx := newServiceContext(t, &fakeLLM{})
	w, env := do(healthhandler.HealthHandler(ctx), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Providers   []struct {
			Name string `json:"name"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "ok", data.Status)
	assert.Zero(t, data.Connections)
	require.Len(t, data.Providers, 1)
	assert.Equal(t, "stepfun", data.Providers[0].Name)

	_, env = do(healthhandler.HealthHandler(newServiceContext(t, nil)), http.MethodGet, "/health", "")
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "degraded", data.Status)
	assert.Empty(t, data.Providers)
}

func TestServices(t *testing.T) {
	ctx := newServiceContext(t, &fakeLLM{})

	w, env := do(servicehandler.GetServicesHandler(ctx), http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"capabilities":["chat"]`)

	r := httptest.NewRequest(http.MethodGet, "/api/services/stepfun", nil)
	r = pathvar.WithVars(r, map[string]string{"name": "stepfun"})
	w, env = serve(servicehandler.GetServiceStatusHandler(ctx), r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"status":"online"`)

	r = httptest.NewRequest(http.MethodGet, "/api/services/missing", nil)
	r = pathvar.WithVars(r, map[string]string{"name": "missing"})
	w, env = serve(servicehandler.GetServiceStatusHandler(ctx), r)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, env.Code)
}

func TestCatalog(t *testing.T) {
	ctx := newServiceContext(t, nil)

	_, env := do(cataloghandler.ListModelsHandler(ctx), http.MethodGet, "/api/models", "")
	assert.Contains(t, string(env.Data), `"step-audio-2-mini"`)

	_, env = do(cataloghandler.ListVoicesHandler(ctx), http.MethodGet, "/api/voices", "")
	assert.Contains(t, string(env.Data), `"qingchunshaonv"`)

	_, env = do(cataloghandler.ListSubjectsHandler(ctx), http.MethodGet, "/api/subjects", "")
	var subjects []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &subjects))
	require.Len(t, subjects, 9)
	assert.Equal(t, "history", subjects[0].ID)
}

func TestSelectModel(t *testing.T) {
	ctx := newServiceContext(t, nil)
	h := selectionhandler.SelectModelHandler(ctx)

	w, env := do(h, http.MethodPost, "/api/model/select",
		`{"utterance":"你好","turns":0,"latency":120,"device":{"userAgent":"Mozilla/5.0 (iPhone)","memoryGB":4}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Model   string `json:"model"`
		Device  string `json:"device"`
		Latency int    `json:"latency"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "step-audio-2-mini", data.Model)
	assert.Equal(t, "low", data.Device)
	assert.Equal(t, 120, data.Latency)

	// 未上报设备信息按中等设备处理，延迟取探测均值
	_, env = do(h, http.MethodPost, "/api/model/select", `{"utterance":"你好","preferredModel":"step-audio-2"}`)
	var manual struct {
		Model   string `json:"model"`
		Score   int    `json:"score"`
		Device  string `json:"device"`
		Latency int    `json:"latency"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &manual))
	assert.Equal(t, "step-audio-2", manual.Model)
	assert.Zero(t, manual.Score)
	assert.Equal(t, "medium", manual.Device)
	assert.Zero(t, manual.Latency)

	w, env = do(h, http.MethodPost, "/api/model/select", `{"preferredModel":"gpt-4o"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown model: gpt-4o", env.Message)
}

func TestGenerateCards(t *testing.T) {
	body := `{"conversations":[{"userMessage":"秦朝为什么统一六国","aiResponse":"因为商鞅变法"}],"subject":"历史"}`

	llm := &fakeLLM{content: `好的：[{"title":"商鞅变法","description":"秦国强盛的基础","tags":["历史"]}]`}
	ctx := newServiceContext(t, llm)
	h := cardshandler.GenerateCardsHandler(ctx)

	w, env := do(h, http.MethodPost, "/api/generate-cards", body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp cards.Response
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "商鞅变法", resp.Cards[0].Title)
	assert.True(t, resp.Cards[0].Highlighted)

	w, env = do(h, http.MethodPost, "/api/generate-cards", `{"conversations":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "缺少对话内容", env.Message)

	llm.content = "抱歉，我无法生成"
	w, env = do(h, http.MethodPost, "/api/generate-cards", body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "知识卡片格式错误，请重试", env.Message)

	llm.err = &provider.StatusError{StatusCode: http.StatusUnauthorized, Body: "invalid key"}
	w, env = do(h, http.MethodPost, "/api/generate-cards", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, env.Message, "invalid key")
}

func TestGenerateCardsUnconfigured(t *testing.T) {
	ctx := newServiceContext(t, nil)
	h := cardshandler.GenerateCardsHandler(ctx)

	w, env := do(h, http.MethodPost, "/api/generate-cards", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "缺少对话内容", env.Message)

	w, env = do(h, http.MethodPost, "/api/generate-cards",
		`{"conversations":[{"userMessage":"a","aiResponse":"b"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "服务配置错误，请联系管理员", env.Message)
}

func TestUsageEndpoints(t *testing.T) {
	ctx := newServiceContext(t, nil)

	w, _ := do(usagehandler.AddRecordHandler(ctx), http.MethodPost, "/api/usage/records",
		`{"timestamp":1000,"modelUsed":"step-audio-2","complexityScore":60,"responseTime":1500,"devicePerformance":"high"}`)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(usagehandler.AddRecordHandler(ctx), http.MethodPost, "/api/usage/records",
		`{"timestamp":2000,"modelUsed":"step-audio-2-mini","complexityScore":10,"responseTime":800}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(usagehandler.AddRecordHandler(ctx), http.MethodPost, "/api/usage/records", `{"modelUsed":"gpt-4o"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, env.Code)

	w, _ = do(usagehandler.FeedbackHandler(ctx), http.MethodPost, "/api/usage/feedback", `{"timestamp":1000,"satisfaction":"good"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(usagehandler.FeedbackHandler(ctx), http.MethodPost, "/api/usage/feedback", `{"timestamp":42,"satisfaction":"good"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(usagehandler.FeedbackHandler(ctx), http.MethodPost, "/api/usage/feedback", `{"timestamp":1000,"satisfaction":"great"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, env = do(usagehandler.RecentHandler(ctx), http.MethodGet, "/api/usage/recent?count=1", "")
	var recent []usage.Record
	require.NoError(t, json.Unmarshal(env.Data, &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, int64(2000), recent[0].Timestamp)
	assert.Equal(t, "medium", string(recent[0].DevicePerformance))

	_, env = do(usagehandler.ReportHandler(ctx), http.MethodGet, "/api/usage/report", "")
	var report usage.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, 2, report.TotalConversations)
	assert.Equal(t, 100, report.Models["step-audio-2"].Satisfaction.Good)

	w = httptest.NewRecorder()
	usagehandler.ExportHandler(ctx)(w, httptest.NewRequest(http.MethodGet, "/api/usage/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	exported := w.Body.String()
	var records []usage.Record
	require.NoError(t, json.Unmarshal([]byte(exported), &records))
	assert.Len(t, records, 2)

	w, _ = do(usagehandler.ClearHandler(ctx), http.MethodDelete, "/api/usage", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, ctx.Tracker.Len())

	w, env = do(usagehandler.ImportHandler(ctx), http.MethodPost, "/api/usage/import", exported)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, string(env.Data))

	for _, body := range []string{
		`{"not":"an array"}`,
		`null`,
		`[{"timestamp":3000,"modelUsed":"free-model","devicePerformance":"high"}]`,
	} {
		w, _ = do(usagehandler.ImportHandler(ctx), http.MethodPost, "/api/usage/import", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, 2, ctx.Tracker.Len(), body)
	}
}

func TestWsProxyRejectsBeforeUpgrade(t *testing.T) {
	ctx := newServiceContext(t, nil)
	h := relayhandler.WsProxyHandler(ctx)

	w, env := do(h, http.MethodGet, "/ws-proxy", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing API Key", env.Message)

	w, env = do(h, http.MethodGet, "/ws-proxy?apiKey=sk-test&model=gpt-4o", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unknown model: gpt-4o", env.Message)
}
