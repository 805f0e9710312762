package health

import (
	"context"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/logic/service"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
)

type HealthLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HealthLogic {
	return &HealthLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

const (
	statusOK = "ok"
	// 中继可用，但知识卡片没有可用的 LLM
	statusDegraded = "degraded"
)

func (l *HealthLogic) Health(req *types.HealthRequest) (resp *types.HealthResponse, err error) {
	if req.Probe {
		l.svcCtx.Probe.Measure(l.ctx)
	}

	status := statusOK
	if l.svcCtx.Cards == nil {
		status = statusDegraded
	}

	return &types.HealthResponse{
		Code:    0,
		Message: "success",
		Data: types.HealthData{
			Status:      status,
			Connections: l.svcCtx.Hub.Count(),
			Latency:     l.svcCtx.Probe.Average(),
			Providers:   service.ProviderInfos(l.svcCtx.Registry.GetAllProviders()),
			Timestamp:   time.Now().UnixMilli(),
		},
	}, nil
}
