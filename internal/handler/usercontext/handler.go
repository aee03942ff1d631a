package usercontext

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	contextmodel "github.com/zhouzirui/elera-assistant/console/internal/model/usercontext"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	contextService "github.com/zhouzirui/elera-assistant/console/internal/service/usercontext"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

var validationErrors = []error{
	contextService.ErrNoSession,
	contextService.ErrNameRequired,
	contextService.ErrScoreRange,
	contextService.ErrTreatmentType,
	contextService.ErrIndexOutOfRange,
	contextService.ErrInvalidLanguage,
}

// Handler 用户医疗上下文的HTTP处理器
type Handler struct {
	sessions *session.Registry
}

// New 创建上下文处理器
func New(sessions *session.Registry) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册上下文编辑相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/context", h.handleLoad)
	r.Post("/sessions/{sessionID}/context/symptoms", h.handleAddSymptom)
	r.Delete("/sessions/{sessionID}/context/symptoms/{name}", h.handleRemoveSymptom)
	r.Post("/sessions/{sessionID}/context/treatments", h.handleAddTreatment)
	r.Delete("/sessions/{sessionID}/context/treatments/{index}", h.handleRemoveTreatment)
	r.Post("/sessions/{sessionID}/context/history", h.handleAddHistory)
	r.Delete("/sessions/{sessionID}/context/history/{index}", h.handleRemoveHistory)
	r.Post("/sessions/{sessionID}/context/preferences", h.handleAddPreference)
	r.Delete("/sessions/{sessionID}/context/preferences/{name}", h.handleRemovePreference)
	r.Put("/sessions/{sessionID}/context/language", h.handleSetLanguage)
}

type editFunc func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error)

// edit 统一处理：查找会话，执行修改，回写完整文档
func (h *Handler) edit(w http.ResponseWriter, r *http.Request, fn editFunc) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}
	uc, err := fn(r, s.Context)
	if err != nil {
		var bad badRequest
		if errors.As(err, &bad) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, contextService.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		httperr.Write(w, r, err, validationErrors...)
		return
	}
	utils.RespondJSON(w, http.StatusOK, uc)
}

type badRequest string

func (b badRequest) Error() string { return string(b) }

func decode(r *http.Request, dst any) error {
	if err := utils.DecodeJSON(r, dst); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

func indexParam(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest("index must be an integer")
	}
	return idx, nil
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		return svc.Load(r.Context())
	})
}

func (h *Handler) handleAddSymptom(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		var payload struct {
			Name     string `json:"name"`
			Severity int    `json:"severity"`
			Duration string `json:"duration"`
		}
		if err := decode(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddSymptom(r.Context(), payload.Name, payload.Severity, payload.Duration)
	})
}

func (h *Handler) handleRemoveSymptom(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		return svc.RemoveSymptom(r.Context(), chi.URLParam(r, "name"))
	})
}

func (h *Handler) handleAddTreatment(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		var payload struct {
			Name      string                     `json:"name"`
			Type      contextmodel.TreatmentType `json:"type"`
			Effective *bool                      `json:"effective"`
		}
		if err := decode(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddTreatment(r.Context(), payload.Name, payload.Type, payload.Effective)
	})
}

func (h *Handler) handleRemoveTreatment(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		idx, err := indexParam(r)
		if err != nil {
			return nil, err
		}
		return svc.RemoveTreatment(r.Context(), idx)
	})
}

func (h *Handler) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		var payload contextmodel.HistoryEntry
		if err := decode(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddHistory(r.Context(), payload.Condition, payload.Duration)
	})
}

func (h *Handler) handleRemoveHistory(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		idx, err := indexParam(r)
		if err != nil {
			return nil, err
		}
		return svc.RemoveHistory(r.Context(), idx)
	})
}

func (h *Handler) handleAddPreference(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		var payload contextmodel.Preference
		if err := decode(r, &payload); err != nil {
			return nil, err
		}
		return svc.AddPreference(r.Context(), payload.Preference, payload.Importance)
	})
}

func (h *Handler) handleRemovePreference(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		return svc.RemovePreference(r.Context(), chi.URLParam(r, "name"))
	})
}

func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(r *http.Request, svc *contextService.Service) (*contextmodel.Context, error) {
		var payload struct {
			Language string `json:"language"`
		}
		if err := decode(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetLanguage(r.Context(), payload.Language)
	})
}
