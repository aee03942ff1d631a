package pipeline

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	pipelinemodel "github.com/zhouzirui/elera-assistant/console/internal/model/pipeline"
	pipelineService "github.com/zhouzirui/elera-assistant/console/internal/service/pipeline"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// Handler 数据管道的HTTP处理器
type Handler struct {
	svc *pipelineService.Service
}

// New 创建数据管道处理器
func New(svc *pipelineService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册数据管道相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/pipeline", h.handleStats)
	r.Post("/pipeline/run", h.handleRun)
}

type datasetView struct {
	pipelinemodel.Dataset
	SizeLabel string `json:"size_label"`
}

type metricView struct {
	pipelinemodel.Metric
	Label string `json:"label"`
}

// handleStats 列出数据集与最新指标，附带展示用的大小与名称
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Refresh(r.Context())
	if err != nil {
		httperr.Write(w, r, err)
		return
	}

	datasets := make([]datasetView, 0, len(stats.Datasets))
	for _, d := range stats.Datasets {
		datasets = append(datasets, datasetView{Dataset: d, SizeLabel: pipelineService.FormatBytes(d.Size)})
	}
	metrics := make([]metricView, 0, len(stats.LatestMetrics))
	for _, m := range stats.LatestMetrics {
		metrics = append(metrics, metricView{Metric: m, Label: pipelineService.MetricDisplayName(m.Type)})
	}

	snap := h.svc.Snapshot()
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"datasets":       datasets,
		"latest_metrics": metrics,
		"last":           snap.Last,
		"running":        snap.Running,
	})
}

// handleRun 触发批处理操作
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Operation pipelinemodel.Operation `json:"operation"`
		pipelineService.Options
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.svc.Run(r.Context(), payload.Operation, payload.Options)
	if err != nil {
		httperr.Write(w, r, err,
			pipelineService.ErrInvalidOperation,
			pipelineService.ErrInvalidMinRating,
			pipelineService.ErrInvalidDate,
			pipelineService.ErrBusy,
		)
		return
	}
	utils.RespondJSON(w, http.StatusOK, outcome)
}
