package relay

import (
	"context"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/model"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

type WsProxyLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewWsProxyLogic(ctx context.Context, svcCtx *svc.ServiceContext) *WsProxyLogic {
	return &WsProxyLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Validate checks the handshake parameters before the connection is upgraded.
func (l *WsProxyLogic) Validate(req *types.WsProxyRequest) (model.ModelVariant, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", xerr.BadRequest("Missing API Key")
	}

	if req.Model == "" {
		m, _ := model.ParseModel(l.svcCtx.Config.Upstream.DefaultModel)
		return m, nil
	}
	m, ok := model.ParseModel(req.Model)
	if !ok {
		return "", xerr.BadRequest("Unknown model: " + req.Model)
	}
	return m, nil
}

// Proxy bridges the upgraded connection to the realtime API until either side closes.
func (l *WsProxyLogic) Proxy(conn *websocket.Conn, apiKey string, m model.ModelVariant) {
	l.svcCtx.Relay.Serve(l.ctx, conn, apiKey, string(m))
}
