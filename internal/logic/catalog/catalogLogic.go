package catalog

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/subject"
)

// CatalogLogic 返回静态目录：模型、音色、学科
type CatalogLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewCatalogLogic(ctx context.Context, svcCtx *svc.ServiceContext) *CatalogLogic {
	return &CatalogLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *CatalogLogic) ListModels() (resp *types.ModelListResponse, err error) {
	return &types.ModelListResponse{
		Code:    0,
		Message: "success",
		Data:    model.Models,
	}, nil
}

func (l *CatalogLogic) ListVoices() (resp *types.VoiceListResponse, err error) {
	return &types.VoiceListResponse{
		Code:    0,
		Message: "success",
		Data:    model.Voices,
	}, nil
}

func (l *CatalogLogic) ListSubjects() (resp *types.SubjectListResponse, err error) {
	return &types.SubjectListResponse{
		Code:    0,
		Message: "success",
		Data:    subject.Subjects,
	}, nil
}
