package httperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zhouzirui/elera-assistant/console/internal/apiclient"
	"github.com/zhouzirui/elera-assistant/console/internal/middleware"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	"github.com/zhouzirui/elera-assistant/console/internal/service/view"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// Write 将业务错误映射为HTTP状态码：校验错误 400，会话不存在 404，
// 被新请求取代 409，远端 API 错误 502。
func Write(w http.ResponseWriter, r *http.Request, err error, validation ...error) {
	for _, target := range validation {
		if errors.Is(err, target) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, view.ErrSuperseded):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &apiErr):
		middleware.LoggerFrom(r).Warn().Err(err).Int("upstream_status", apiErr.StatusCode).Msg("assistant api error")
		utils.RespondError(w, http.StatusBadGateway, apiErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		utils.RespondError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		middleware.LoggerFrom(r).Error().Err(err).Msg("request failed")
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	}
}

// Session 按路由参数 sessionID 查找会话，找不到时写入 404 并返回 nil。
func Session(w http.ResponseWriter, r *http.Request, reg *session.Registry) *session.Session {
	s, err := reg.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		Write(w, r, err)
		return nil
	}
	return s
}
