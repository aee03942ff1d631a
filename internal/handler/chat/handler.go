package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	chatService "github.com/zhouzirui/elera-assistant/console/internal/service/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/service/review"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	sessions *session.Registry
}

// New 创建聊天处理器
func New(sessions *session.Registry) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/chat", h.handleSnapshot)
	r.Post("/sessions/{sessionID}/chat/messages", h.handleSendMessage)
	r.Post("/sessions/{sessionID}/chat/summary", h.handleSummary)
	r.Post("/sessions/{sessionID}/chat/reset", h.handleReset)
	r.Get("/sessions/{sessionID}/feedback", h.handleGetFeedback)
	r.Post("/sessions/{sessionID}/feedback", h.handleSubmitFeedback)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}
	utils.RespondJSON(w, http.StatusOK, s.Chat.Snapshot())
}

// handleSendMessage 发送用户消息并返回助手回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.Chat.Send(r.Context(), payload.Message)
	if err != nil {
		httperr.Write(w, r, err, chatService.ErrEmptyMessage, chatService.ErrBusy)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"reply":      reply,
		"session_id": s.Chat.SessionID(),
	})
}

// handleSummary 生成问诊摘要
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}

	summary, err := s.Chat.Summarize(r.Context())
	if err != nil {
		httperr.Write(w, r, err, chatService.ErrNoSession)
		return
	}
	utils.RespondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}
	s.Chat.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}
	utils.RespondJSON(w, http.StatusOK, s.Feedback())
}

// handleSubmitFeedback 提交对最近一次回复的评分
func (h *Handler) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}

	form := review.NewFeedbackForm()
	if err := utils.DecodeJSON(r, &form); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.SubmitFeedback(r.Context(), form); err != nil {
		httperr.Write(w, r, err, review.ErrRatingRequired, review.ErrRatingRange, review.ErrNoExchange)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, map[string]string{"status": "submitted"})
}
