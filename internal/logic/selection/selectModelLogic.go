package selection

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/selector"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

type SelectModelLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSelectModelLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SelectModelLogic {
	return &SelectModelLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *SelectModelLogic) SelectModel(req *types.SelectModelRequest) (resp *types.SelectModelResponse, err error) {
	var preferred model.ModelVariant
	if req.PreferredModel != "" {
		m, ok := model.ParseModel(req.PreferredModel)
		if !ok {
			return nil, xerr.BadRequest("Unknown model: " + req.PreferredModel)
		}
		preferred = m
	}
	if req.Turns < 0 {
		return nil, xerr.BadRequest("turns must not be negative")
	}

	// 浏览器上报设备信息时按信号分级，否则视为中等设备
	device := model.DeviceMedium
	if req.Device != nil {
		device = selector.Classify(selector.Signals{
			UserAgent: req.Device.UserAgent,
			MemoryGB:  req.Device.MemoryGB,
			Cores:     req.Device.Cores,
		})
	}

	latency := req.Latency
	if latency <= 0 {
		latency = l.svcCtx.Probe.Average()
	}

	result := l.svcCtx.Selector.Select(selector.Context{
		Utterance: req.Utterance,
		Turns:     req.Turns,
		LatencyMS: latency,
		Device:    device,
		Preferences: selector.Preferences{
			DataSaver:      req.DataSaver,
			PreferredModel: preferred,
		},
	})
	l.Infof("模型选择: %s, score=%d, latency=%dms, device=%s", result.Model, result.Score, latency, device)

	return &types.SelectModelResponse{
		Code:    0,
		Message: "success",
		Data: types.SelectModelData{
			Model:   string(result.Model),
			Score:   result.Score,
			Reason:  result.Reason,
			Device:  string(device),
			Latency: latency,
		},
	}, nil
}
