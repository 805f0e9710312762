package health

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/unclewu3242592726/aitutor/internal/logic/health"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

// HealthHandler 健康检查，?probe=true 时先探测一次上游延迟
func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.HealthRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, xerr.BadRequest(err.Error()))
			return
		}

		l := health.NewHealthLogic(r.Context(), svcCtx)
		resp, err := l.Health(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
