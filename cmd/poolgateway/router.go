package main

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/alfred-infra/poolgateway/config"
	"github.com/alfred-infra/poolgateway/pool"
)

// newRouter builds the demo server's chi router: health/metrics/target
// introspection endpoints plus a catch-all reverse proxy that forwards
// every other request through p via dialer.
func newRouter(cfg *config.Config, log zerolog.Logger, p *pool.Pool, dialer *poolDialer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "poolgateway"})
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"pool_outstanding": p.Outstanding(),
			"pool_capacity":    p.Capacity(),
			"can_keepalive":    p.CanKeepalive(),
		})
	})

	r.Get("/v1/targets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"upstreams": cfg.UpstreamURLs})
	})

	proxy := &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = dialer.dest.Scheme
			req.URL.Host = dialer.dest.Host
		},
		Transport: &http.Transport{
			DialContext:       dialer.DialContext,
			DisableKeepAlives: true, // our pool is the keep-alive layer, not http.Transport's
		},
		ErrorLog: nil,
	}
	r.NotFound(proxy.ServeHTTP)
	r.MethodNotAllowed(proxy.ServeHTTP)
	r.Handle("/*", proxy)

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context())).
				Msg("request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
