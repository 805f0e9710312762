package cards

import (
	"context"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/cards"
	"github.com/unclewu3242592726/aitutor/pkg/provider"
	"github.com/unclewu3242592726/aitutor/pkg/subject"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

type GenerateCardsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGenerateCardsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GenerateCardsLogic {
	return &GenerateCardsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GenerateCardsLogic) GenerateCards(req *types.GenerateCardsRequest) (resp *types.GenerateCardsResponse, err error) {
	if len(req.Conversations) == 0 {
		return nil, xerr.BadRequest(cards.ErrNoConversation.Error())
	}
	if l.svcCtx.Cards == nil {
		l.Errorf("知识卡片服务未配置 API Key")
		return nil, xerr.Internal("服务配置错误，请联系管理员")
	}

	turns := make([]subject.Turn, 0, len(req.Conversations))
	for _, c := range req.Conversations {
		turns = append(turns, subject.Turn{UserMessage: c.UserMessage, AIResponse: c.AIResponse})
	}

	result, err := l.svcCtx.Cards.Generate(l.ctx, cards.Request{
		Conversations: turns,
		Subject:       req.Subject,
		Persona:       req.Persona,
	})
	if err != nil {
		l.Errorf("生成知识卡片失败: %v", err)
		return nil, cardsError(err)
	}

	l.Infof("生成知识卡片 %d 张, subject=%s", result.Total, req.Subject)
	return &types.GenerateCardsResponse{
		Code:    0,
		Message: "success",
		Data:    *result,
	}, nil
}

func cardsError(err error) error {
	var se *provider.StatusError
	switch {
	case errors.Is(err, cards.ErrNoConversation):
		return xerr.BadRequest(err.Error())
	case errors.Is(err, cards.ErrMalformedCards):
		return xerr.Internal("知识卡片格式错误，请重试")
	case provider.IsNoChoices(err):
		return xerr.Internal("AI 未返回任何内容")
	case errors.As(err, &se):
		return xerr.New(se.StatusCode, "生成知识卡片失败，请稍后重试")
	case errors.Is(err, context.DeadlineExceeded):
		return xerr.New(http.StatusGatewayTimeout, "生成知识卡片超时，请稍后重试")
	default:
		return xerr.New(xerr.CodeUpstreamError, "生成知识卡片失败，请稍后重试")
	}
}
