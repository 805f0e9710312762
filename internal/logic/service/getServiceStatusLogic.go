package service

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/provider"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

type GetServiceStatusLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetServiceStatusLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetServiceStatusLogic {
	return &GetServiceStatusLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetServiceStatusLogic) GetServiceStatus(req *types.ServiceStatusRequest) (resp *types.ServiceStatusResponse, err error) {
	// 获取特定 Provider 的信息
	info, err := l.svcCtx.Registry.GetProviderInfo(req.Name)
	if err != nil {
		return nil, xerr.NotFound(err.Error())
	}

	return &types.ServiceStatusResponse{
		Code:    0,
		Message: "success",
		Data:    ProviderInfos([]provider.ProviderInfo{*info})[0],
	}, nil
}
