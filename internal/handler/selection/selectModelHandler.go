package selection

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/unclewu3242592726/aitutor/internal/logic/selection"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

func SelectModelHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SelectModelRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, xerr.BadRequest(err.Error()))
			return
		}

		l := selection.NewSelectModelLogic(r.Context(), svcCtx)
		resp, err := l.SelectModel(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
