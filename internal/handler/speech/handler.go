package speech

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/config"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	speechmodel "github.com/zhouzirui/elera-assistant/console/internal/model/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	"github.com/zhouzirui/elera-assistant/console/internal/service/speech"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

var errVoiceNotConnected = errors.New("voice is not connected for this session")

// Handler 语音对话的HTTP处理器：目录、控制接口与 WebSocket 媒体桥
type Handler struct {
	sessions *session.Registry
	api      speech.VoiceAPI
	catalog  *speech.Catalog
	options  speech.Options
	userName string
	logger   zerolog.Logger
	ws       *WebSocketHandler
}

// New 创建语音处理器
func New(sessions *session.Registry, api speech.VoiceAPI, options speech.Options, userName string, logger zerolog.Logger) *Handler {
	catalog := options.Catalog
	if catalog == nil {
		catalog = speech.NewCatalog(config.VoiceConfig{})
		options.Catalog = catalog
	}
	h := &Handler{
		sessions: sessions,
		api:      api,
		catalog:  catalog,
		options:  options,
		userName: userName,
		logger:   logger.With().Str("component", "voice_bridge").Logger(),
	}
	h.ws = NewWebSocketHandler(h)
	return h
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/catalog", h.handleCatalog)
	r.Get("/sessions/{sessionID}/voice", h.handleStatus)
	r.Post("/sessions/{sessionID}/voice/start", h.handleStart)
	r.Post("/sessions/{sessionID}/voice/stop", h.handleStop)
	r.Post("/sessions/{sessionID}/voice/permission", h.handleGrantPermission)
	r.Put("/sessions/{sessionID}/voice/settings", h.handleSettings)
	r.Get("/sessions/{sessionID}/voice/ws", h.ws.handleWebSocket)
}

// handleCatalog 返回语言、音色与欢迎语目录
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"languages":         h.catalog.Languages,
		"voices":            h.catalog.Voices,
		"language_voices":   h.catalog.LanguageVoices,
		"welcome_messages":  h.catalog.WelcomeMessages(),
		"default_language":  defaultString(h.options.Language, speechmodel.DefaultLanguage),
		"default_voice_id":  defaultString(h.options.VoiceID, speechmodel.DefaultVoiceID),
		"fallback_voice_id": defaultString(h.options.FallbackVoiceID, speechmodel.FallbackVoiceID),
	})
}

// controller 查找会话当前挂载的语音控制器
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) *speech.Controller {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return nil
	}
	ctrl, ok := s.Voice()
	if !ok {
		utils.RespondError(w, http.StatusConflict, errVoiceNotConnected.Error())
		return nil
	}
	return ctrl
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Status())
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	if err := ctrl.Start(r.Context()); err != nil {
		writeControlError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, ctrl.Status())
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	if err := ctrl.Stop(); err != nil {
		writeControlError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, ctrl.Status())
}

func (h *Handler) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	if err := ctrl.GrantPermission(r.Context()); err != nil {
		writeControlError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Status())
}

type settingsPayload struct {
	Language   string `json:"language"`
	VoiceID    string `json:"voice_id"`
	Continuous *bool  `json:"continuous"`
}

// applySettings 依次应用语言、音色与连续模式；语言切换会带出该语言的推荐音色
func applySettings(ctrl *speech.Controller, p settingsPayload) error {
	if p.Language != "" {
		if err := ctrl.SetLanguage(p.Language); err != nil {
			return err
		}
	}
	if p.VoiceID != "" {
		if err := ctrl.SetVoice(p.VoiceID); err != nil {
			return err
		}
	}
	if p.Continuous != nil {
		ctrl.SetContinuous(*p.Continuous)
	}
	return nil
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	var payload settingsPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := applySettings(ctrl, payload); err != nil {
		writeControlError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ctrl.Status())
}

func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, speech.ErrInvalidLanguage), errors.Is(err, speech.ErrVoiceRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, speech.ErrPermissionDenied), errors.Is(err, speech.ErrPermissionRequired):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, speech.ErrBusy), errors.Is(err, speech.ErrNotRecording), errors.Is(err, speech.ErrClosed):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

// newController 为一次 WebSocket 连接组装语音循环
func (h *Handler) newController(s *session.Session, mic *speech.StreamMicrophone, player *speech.StreamPlayer) *speech.Controller {
	remote := speech.NewRemote(h.api, s.ID, h.userName, s.Chat.SessionID)
	opts := s.PrepareVoice(h.options)
	return speech.NewController(speech.Devices{
		Microphone:  mic,
		Transcriber: remote,
		Replier:     s.Chat,
		Synthesizer: remote,
		Player:      player,
	}, opts, h.logger.With().Str("session", s.ID).Logger())
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
