package usage

import (
	"context"
	"errors"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/usage"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

// UsageLogic 模型使用记录的增删查与统计
type UsageLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewUsageLogic(ctx context.Context, svcCtx *svc.ServiceContext) *UsageLogic {
	return &UsageLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *UsageLogic) AddRecord(req *types.UsageRecordRequest) (resp *types.UsageRecordResponse, err error) {
	m, ok := model.ParseModel(req.ModelUsed)
	if !ok {
		return nil, xerr.BadRequest("Unknown model: " + req.ModelUsed)
	}
	tier := model.DeviceTier(req.DevicePerformance)
	if tier == "" {
		tier = model.DeviceMedium
	}
	if !tier.Valid() {
		return nil, xerr.BadRequest("Unknown device performance: " + req.DevicePerformance)
	}
	satisfaction := model.Satisfaction(req.UserSatisfaction)
	if satisfaction != "" && !satisfaction.Valid() {
		return nil, xerr.BadRequest("Unknown satisfaction: " + req.UserSatisfaction)
	}

	record := usage.Record{
		Timestamp:         req.Timestamp,
		ModelUsed:         m,
		ComplexityScore:   req.ComplexityScore,
		ResponseTime:      req.ResponseTime,
		NetworkLatency:    req.NetworkLatency,
		DevicePerformance: tier,
		Reason:            req.Reason,
		UserSatisfaction:  satisfaction,
	}
	if record.Timestamp == 0 {
		record.Timestamp = time.Now().UnixMilli()
	}

	if err := l.svcCtx.Tracker.Track(l.ctx, record); err != nil {
		l.Errorf("保存使用记录失败: %v", err)
		return nil, xerr.Internal("保存使用记录失败")
	}

	return &types.UsageRecordResponse{
		Code:    0,
		Message: "success",
		Data:    record,
	}, nil
}

func (l *UsageLogic) Report() (resp *types.UsageReportResponse, err error) {
	return &types.UsageReportResponse{
		Code:    0,
		Message: "success",
		Data:    l.svcCtx.Tracker.Report(),
	}, nil
}

func (l *UsageLogic) Recent(req *types.UsageRecentRequest) (resp *types.UsageRecordsResponse, err error) {
	return &types.UsageRecordsResponse{
		Code:    0,
		Message: "success",
		Data:    l.svcCtx.Tracker.Recent(req.Count),
	}, nil
}

func (l *UsageLogic) Records() (resp *types.UsageRecordsResponse, err error) {
	return &types.UsageRecordsResponse{
		Code:    0,
		Message: "success",
		Data:    l.svcCtx.Tracker.Recent(l.svcCtx.Tracker.Capacity()),
	}, nil
}

func (l *UsageLogic) Feedback(req *types.FeedbackRequest) (resp *types.Response, err error) {
	err = l.svcCtx.Tracker.Rate(l.ctx, req.Timestamp, model.Satisfaction(req.Satisfaction))
	switch {
	case errors.Is(err, usage.ErrNotFound):
		return nil, xerr.NotFound("使用记录不存在")
	case err != nil:
		l.Errorf("保存满意度失败: %v", err)
		return nil, xerr.Internal("保存使用记录失败")
	}

	return &types.Response{Code: 0, Message: "success"}, nil
}

func (l *UsageLogic) Clear() (resp *types.Response, err error) {
	if err := l.svcCtx.Tracker.Clear(l.ctx); err != nil {
		l.Errorf("清空使用记录失败: %v", err)
		return nil, xerr.Internal("清空使用记录失败")
	}
	l.Infof("使用记录已清空")

	return &types.Response{Code: 0, Message: "success"}, nil
}

// Export 返回整份记录的 JSON 文本
func (l *UsageLogic) Export() ([]byte, error) {
	data, err := l.svcCtx.Tracker.Export()
	if err != nil {
		l.Errorf("导出使用记录失败: %v", err)
		return nil, xerr.Internal("导出使用记录失败")
	}
	return data, nil
}

func (l *UsageLogic) Import(data []byte) (resp *types.UsageImportResponse, err error) {
	err = l.svcCtx.Tracker.Import(l.ctx, data)
	switch {
	case errors.Is(err, usage.ErrMalformedRecords):
		return nil, xerr.BadRequest("使用记录格式错误")
	case err != nil:
		l.Errorf("导入使用记录失败: %v", err)
		return nil, xerr.Internal("导入使用记录失败")
	}

	return &types.UsageImportResponse{
		Code:    0,
		Message: "success",
		Data:    types.UsageImportData{Count: l.svcCtx.Tracker.Len()},
	}, nil
}
