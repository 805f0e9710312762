// Code scaffolded by goctl. Safe to edit.

package handler

import (
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest"

	cards "github.com/unclewu3242592726/aitutor/internal/handler/cards"
	catalog "github.com/unclewu3242592726/aitutor/internal/handler/catalog"
	health "github.com/unclewu3242592726/aitutor/internal/handler/health"
	relay "github.com/unclewu3242592726/aitutor/internal/handler/relay"
	selection "github.com/unclewu3242592726/aitutor/internal/handler/selection"
	service "github.com/unclewu3242592726/aitutor/internal/handler/service"
	usage "github.com/unclewu3242592726/aitutor/internal/handler/usage"
	"github.com/unclewu3242592726/aitutor/internal/svc"
)

// 知识卡片依赖 LLM，响应较慢
const cardsTimeout = 90 * time.Second

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/health",
				Handler: health.HealthHandler(serverCtx),
			},
			{
				// WebSocket 中继，升级请求不受超时控制
				Method:  http.MethodGet,
				Path:    serverCtx.Config.Relay.Path,
				Handler: relay.WsProxyHandler(serverCtx),
			},
		},
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/models",
				Handler: catalog.ListModelsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/voices",
				Handler: catalog.ListVoicesHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/subjects",
				Handler: catalog.ListSubjectsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/services",
				Handler: service.GetServicesHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/services/:name",
				Handler: service.GetServiceStatusHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/model/select",
				Handler: selection.SelectModelHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/latency",
				Handler: selection.LatencyHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/generate-cards",
				Handler: cards.GenerateCardsHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
		rest.WithTimeout(cardsTimeout),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/usage/records",
				Handler: usage.RecordsHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/usage/records",
				Handler: usage.AddRecordHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/usage/recent",
				Handler: usage.RecentHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/usage/report",
				Handler: usage.ReportHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/usage/feedback",
				Handler: usage.FeedbackHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/usage/export",
				Handler: usage.ExportHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/usage/import",
				Handler: usage.ImportHandler(serverCtx),
			},
			{
				Method:  http.MethodDelete,
				Path:    "/usage",
				Handler: usage.ClearHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)
}
