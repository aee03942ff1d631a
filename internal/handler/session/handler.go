package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	"github.com/zhouzirui/elera-assistant/console/internal/service/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/service/review"
	sessionservice "github.com/zhouzirui/elera-assistant/console/internal/service/session"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// Handler 浏览器会话的HTTP处理器
type Handler struct {
	sessions *sessionservice.Registry
}

// New 创建会话处理器
func New(sessions *sessionservice.Registry) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleList)
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Delete("/sessions/{sessionID}", h.handleDelete)
}

type sessionView struct {
	sessionservice.Info
	Chat     chat.Snapshot       `json:"chat"`
	Feedback review.FeedbackForm `json:"feedback"`
	Voice    *speech.Status      `json:"voice,omitempty"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.sessions.List())
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	utils.RespondJSON(w, http.StatusCreated, s.Info())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}

	view := sessionView{Info: s.Info(), Chat: s.Chat.Snapshot(), Feedback: s.Feedback()}
	if ctrl, ok := s.Voice(); ok {
		st := ctrl.Status()
		view.Voice = &st
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "sessionID")); err != nil {
		httperr.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
