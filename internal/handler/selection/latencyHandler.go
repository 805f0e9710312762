package selection

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/unclewu3242592726/aitutor/internal/logic/selection"
	"github.com/unclewu3242592726/aitutor/internal/svc"
)

func LatencyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := selection.NewLatencyLogic(r.Context(), svcCtx)
		resp, err := l.Latency()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
