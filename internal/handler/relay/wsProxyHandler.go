package relay

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/unclewu3242592726/aitutor/internal/logic/relay"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 允许跨域连接，生产环境中应该进行更严格的检查
		return true
	},
}

func WsProxyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.WsProxyRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, xerr.BadRequest(err.Error()))
			return
		}

		l := relay.NewWsProxyLogic(r.Context(), svcCtx)
		m, err := l.Validate(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		// 升级 HTTP 连接为 WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.WithContext(r.Context()).Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		l.Proxy(conn, req.APIKey, m)
	}
}
