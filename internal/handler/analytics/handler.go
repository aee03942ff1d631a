package analytics

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	analyticsService "github.com/zhouzirui/elera-assistant/console/internal/service/analytics"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler 分析看板的HTTP处理器
type Handler struct {
	svc *analyticsService.Service
}

// New 创建分析处理器
func New(svc *analyticsService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册分析相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics", h.handleDashboard)
	r.Get("/analytics/series/{metric}", h.handleSeries)
	r.Get("/analytics/export", h.handleExport)
}

// handleDashboard 按日期区间刷新看板，参数缺省时取最近30天
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng := analyticsService.Range{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
	if _, err := h.svc.Refresh(r.Context(), rng); err != nil {
		httperr.Write(w, r, err, analyticsService.ErrInvalidDate, analyticsService.ErrInvalidRange)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"view":    h.svc.Snapshot(),
		"metrics": h.svc.Metrics(),
	})
}

func (h *Handler) handleSeries(w http.ResponseWriter, r *http.Request) {
	points, err := h.svc.Series(chi.URLParam(r, "metric"))
	if err != nil {
		if errors.Is(err, analyticsService.ErrNoData) {
			utils.RespondError(w, http.StatusConflict, err.Error())
			return
		}
		httperr.Write(w, r, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, points)
}

// handleExport 导出已加载的看板为 xlsx；尚未加载时先按默认区间拉取
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.svc.Snapshot().Dashboard == nil {
		if _, err := h.svc.Refresh(r.Context(), analyticsService.Range{}); err != nil {
			httperr.Write(w, r, err)
			return
		}
	}

	var buf bytes.Buffer
	if err := h.svc.ExportXLSX(&buf); err != nil {
		httperr.Write(w, r, err)
		return
	}

	rng := h.svc.Snapshot().Range
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="analytics_%s_%s.xlsx"`, rng.From, rng.To))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
