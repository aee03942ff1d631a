// Package middleware 提供控制台 HTTP 层共用的 chi 中间件。
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxQueryLogLength 限制日志中记录的查询串长度。
const maxQueryLogLength = 2048

// Logger 为每个请求输出结构化访问日志，并把请求级日志器放入 context。
// 需放在 chi 的 RequestID 之后。
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		l := log.With().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("remote_ip", r.RemoteAddr).
			Str("query", truncate(r.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", r.ContentLength).
			Logger()

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		ev := l.With().
			Str("path", routePath(r)).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("bytes_out", ww.BytesWritten()).
			Logger()

		switch {
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	})
}

// LoggerFrom 返回请求级日志器；未安装 Logger 时返回全局日志器。
func LoggerFrom(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := log.With().Logger()
	return &l
}

// routePath 优先返回匹配到的路由模板，避免把路径参数写进日志与指标标签。
func routePath(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
