package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/elera-assistant/console/internal/handler/httperr"
	"github.com/zhouzirui/elera-assistant/console/internal/middleware"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// DefaultHeartbeat keeps idle proxies from closing the event stream.
const DefaultHeartbeat = 15 * time.Second

// Handler pushes voice loop events of a session via Server-Sent Events
type Handler struct {
	sessions  *session.Registry
	heartbeat time.Duration
}

// New creates a new stream handler; heartbeat <= 0 uses DefaultHeartbeat.
func New(sessions *session.Registry, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handler{sessions: sessions, heartbeat: heartbeat}
}

// StreamResponse is sent once when the stream opens
type StreamResponse struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RegisterRoutes 注册事件流路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/voice/events", h.handleEvents)
}

// handleEvents streams the attached voice loop's events until the client
// goes away or the loop is closed.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	s := httperr.Session(w, r, h.sessions)
	if s == nil {
		return
	}
	ctrl, ok := s.Voice()
	if !ok {
		utils.RespondError(w, http.StatusConflict, "voice is not connected for this session")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := ctrl.Subscribe(32)
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	if err := utils.SendSSEEvent(w, flusher, "open", StreamResponse{Event: "open", SessionID: s.ID}); err != nil {
		return
	}
	if err := utils.SendSSEEvent(w, flusher, "status", ctrl.Status()); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	logger := middleware.LoggerFrom(r)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				_ = utils.SendSSEEvent(w, flusher, "end", StreamResponse{Event: "end", SessionID: s.ID, Finished: true})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, string(e.Type), e); err != nil {
				logger.Debug().Err(err).Str("session", s.ID).Msg("sse write failed")
				return
			}
		}
	}
}
