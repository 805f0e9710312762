package service

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/provider"
)

type GetServicesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetServicesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetServicesLogic {
	return &GetServicesLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetServicesLogic) GetServices() (resp *types.ServiceListResponse, err error) {
	// 获取所有可用的 Provider 信息
	return &types.ServiceListResponse{
		Code:    0,
		Message: "success",
		Data:    ProviderInfos(l.svcCtx.Registry.GetAllProviders()),
	}, nil
}

// ProviderInfos 转换为 API 响应格式
func ProviderInfos(providers []provider.ProviderInfo) []types.ProviderInfo {
	infos := make([]types.ProviderInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, types.ProviderInfo{
			Name:         p.Name,
			Type:         p.Type,
			Status:       p.Status,
			Capabilities: p.Capabilities,
		})
	}
	return infos
}
