package tab

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/model/tab"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// Handler 控制台标签页的HTTP处理器
type Handler struct {
	tabs tab.Store
}

// New 创建标签页处理器
func New(tabs tab.Store) *Handler {
	return &Handler{tabs: tabs}
}

// RegisterRoutes 注册标签页相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tabs", h.handleListTabs)
	r.Get("/tabs/{tabID}", h.handleGetTab)
}

// handleListTabs 按显示顺序列出所有标签页
func (h *Handler) handleListTabs(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.tabs.List())
}

func (h *Handler) handleGetTab(w http.ResponseWriter, r *http.Request) {
	t, ok := h.tabs.FindByID(chi.URLParam(r, "tabID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "tab not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, t)
}
