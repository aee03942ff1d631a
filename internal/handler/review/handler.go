package review

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/analysis/issues"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	"github.com/zhouzirui/elera-assistant/console/internal/model/common"
	reviewService "github.com/zhouzirui/elera-assistant/console/internal/service/review"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

const commonIssueLimit = 5

// Handler 专家评审的HTTP处理器
type Handler struct {
	svc *reviewService.Service
}

// New 创建评审处理器
func New(svc *reviewService.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册评审相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/review", h.handleSnapshot)
	r.Get("/review/feedback", h.handleList)
	r.Post("/review/feedback/{feedbackID}/select", h.handleSelect)
	r.Post("/review", h.handleSubmit)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.svc.Snapshot())
}

// handleList 拉取反馈列表；sort 参数只在本地重排
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	mode, err := reviewService.ParseSortMode(r.URL.Query().Get("sort"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.svc.Load(r.Context()); err != nil {
		httperr.Write(w, r, err)
		return
	}
	items := h.svc.Sort(mode)

	comments := make([]string, 0, len(items))
	for _, it := range items {
		comments = append(comments, it.Comment)
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"items":         items,
		"sort":          mode,
		"common_issues": issues.Common(comments, commonIssueLimit),
	})
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Select(common.ID(chi.URLParam(r, "feedbackID")))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, item)
}

// handleSubmit 校验并提交专家评审
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	form := reviewService.Form{MedicalAccuracy: reviewService.DefaultScore, CulturalRelevance: reviewService.DefaultScore}
	if err := utils.DecodeJSON(r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.svc.Submit(r.Context(), form)
	if err != nil {
		httperr.Write(w, r, err, reviewService.ErrNoSelection, reviewService.ErrReviewerRequired, reviewService.ErrScoreRange)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, created)
}
