package selection

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
)

type LatencyLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewLatencyLogic(ctx context.Context, svcCtx *svc.ServiceContext) *LatencyLogic {
	return &LatencyLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Latency 立即探测一次上游延迟并返回滚动窗口
func (l *LatencyLogic) Latency() (resp *types.LatencyResponse, err error) {
	sample := l.svcCtx.Probe.Measure(l.ctx)

	return &types.LatencyResponse{
		Code:    0,
		Message: "success",
		Data: types.LatencyData{
			Sample:  sample,
			Average: l.svcCtx.Probe.Average(),
			Samples: l.svcCtx.Probe.Samples(),
		},
	}, nil
}
