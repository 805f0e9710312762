package cards

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"github.com/unclewu3242592726/aitutor/internal/logic/cards"
	"github.com/unclewu3242592726/aitutor/internal/svc"
	"github.com/unclewu3242592726/aitutor/internal/types"
	"github.com/unclewu3242592726/aitutor/pkg/xerr"
)

func GenerateCardsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GenerateCardsRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, xerr.BadRequest(err.Error()))
			return
		}

		l := cards.NewGenerateCardsLogic(r.Context(), svcCtx)
		resp, err := l.GenerateCards(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
