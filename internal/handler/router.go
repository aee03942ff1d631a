package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/elera-assistant/console/internal/config"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/analytics"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/chat"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/pipeline"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/review"
	sessionHandler "github.com/zhouzirui/elera-assistant/console/internal/handler/session"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/speech"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/stream"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/tab"
	"github.com/zhouzirui/elera-assistant/console/internal/handler/usercontext"
	middlewarePkg "github.com/zhouzirui/elera-assistant/console/internal/middleware"
	tabModel "github.com/zhouzirui/elera-assistant/console/internal/model/tab"
	analyticsService "github.com/zhouzirui/elera-assistant/console/internal/service/analytics"
	pipelineService "github.com/zhouzirui/elera-assistant/console/internal/service/pipeline"
	reviewService "github.com/zhouzirui/elera-assistant/console/internal/service/review"
	"github.com/zhouzirui/elera-assistant/console/internal/service/session"
	speechService "github.com/zhouzirui/elera-assistant/console/internal/service/speech"
	"github.com/zhouzirui/elera-assistant/console/pkg/utils"
)

// Deps are the services the console routes are built from.
type Deps struct {
	Config    *config.Config
	Sessions  *session.Registry
	VoiceAPI  speechService.VoiceAPI
	Analytics *analyticsService.Service
	Review    *reviewService.Service
	Pipeline  *pipelineService.Service
	Tabs      tabModel.Store
	Logger    zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.Metrics)
	r.Use(middlewarePkg.CORS(cfg.Server.AllowedOrigins))

	tabs := deps.Tabs
	if tabs == nil {
		tabs = tabModel.NewMemoryStore(tabModel.Seed())
	}
	catalog := speechService.NewCatalog(cfg.Voice)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	limiter := middlewarePkg.NewRateLimiter(cfg.Server.RateRPS, cfg.Server.RateBurst)
	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Handler)

		tab.New(tabs).RegisterRoutes(api)
		sessionHandler.New(deps.Sessions).RegisterRoutes(api)
		chat.New(deps.Sessions).RegisterRoutes(api)
		usercontext.New(deps.Sessions).RegisterRoutes(api)
		analytics.New(deps.Analytics).RegisterRoutes(api)
		review.New(deps.Review).RegisterRoutes(api)
		pipeline.New(deps.Pipeline).RegisterRoutes(api)

		speech.New(
			deps.Sessions,
			deps.VoiceAPI,
			speechService.OptionsFromConfig(cfg.Voice, catalog),
			cfg.API.UserName,
			deps.Logger,
		).RegisterRoutes(api)
		stream.New(deps.Sessions, stream.DefaultHeartbeat).RegisterRoutes(api)
	})

	return r
}
