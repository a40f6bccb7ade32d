// Command poolgateway is a demo reverse proxy that wires config,
// logging, a connection pool, and an optional Redis-backed target seed
// cache into a runnable HTTP server. It exists to give the pool package
// a consumer to exercise — it contains no pool internals of its own.
package main

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfred-infra/poolgateway/balancer"
	"github.com/alfred-infra/poolgateway/config"
	"github.com/alfred-infra/poolgateway/logger"
	"github.com/alfred-infra/poolgateway/pool"
	"github.com/alfred-infra/poolgateway/resolver"
	"github.com/alfred-infra/poolgateway/targetcache"
	"github.com/alfred-infra/poolgateway/transport"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("poolgateway starting")

	upstreams := make([]*url.URL, 0, len(cfg.UpstreamURLs))
	for _, raw := range cfg.UpstreamURLs {
		u, err := url.Parse(raw)
		if err != nil {
			log.Warn().Err(err).Str("url", raw).Msg("skipping unparsable upstream")
			continue
		}
		upstreams = append(upstreams, u)
	}
	if len(upstreams) == 0 {
		upstreams = append(upstreams, &url.URL{Scheme: "http", Host: "127.0.0.1:8081"})
		log.Warn().Msg("no POOLGATEWAY_UPSTREAMS configured, defaulting to 127.0.0.1:8081")
	}

	var cache targetcache.Cache = targetcache.NoopCache
	if cfg.RedisURL != "" {
		rc, err := targetcache.New(cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("target cache init failed — continuing without it")
		} else {
			defer rc.Close()
			cache = rc
			log.Info().Msg("target seed cache connected")
		}
	}

	p := buildPool(cfg, upstreams, log)
	if cfg.UseGlobalPool {
		seedFromCache(p, cache, log)
	}

	loop := transport.NewGoroutineLoop(nil)
	p.RegisterLoop(loop)
	defer p.UnregisterLoop()

	dialer := &poolDialer{pool: p, loop: loop, resolver: resolver.NewAsyncResolver(nil), dest: upstreams[0]}
	handler := newRouter(cfg, log, p, dialer)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("poolgateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("poolgateway stopped gracefully")
	}

	p.Dispose()
}

// buildPool constructs either a specific pool over the configured
// upstream set (SLA-balanced when there's more than one) or an empty
// global pool, per POOLGATEWAY_GLOBAL_POOL.
func buildPool(cfg *config.Config, upstreams []*url.URL, log zerolog.Logger) *pool.Pool {
	if cfg.UseGlobalPool {
		return pool.InitGlobal(cfg.PoolCapacity, log)
	}

	var lb balancer.Balancer
	var lbConf any
	if len(upstreams) > 1 {
		sla := balancer.NewSLABalancer(log)
		lb = sla
		lbConf = balancer.SLABalancerConfig{FailureThreshold: 3, FailureCooldown: 30 * time.Second}
	}
	return pool.InitSpecific(cfg.PoolCapacity, upstreams, lb, lbConf, nil, log)
}

// seedFromCache pre-registers previously seen origin URLs on a global
// pool, then wires future discoveries back into the cache.
func seedFromCache(p *pool.Pool, cache targetcache.Cache, log zerolog.Logger) {
	seeds, err := cache.Seeds(context.Background(), "global")
	if err != nil {
		log.Warn().Err(err).Msg("failed to load target seeds")
	}
	for _, raw := range seeds {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		p.SeedTarget(u)
	}

	p.SetOnNewTarget(func(u *url.URL) {
		if err := cache.Add(context.Background(), "global", u.String()); err != nil {
			log.Warn().Err(err).Str("url", u.String()).Msg("failed to persist new target seed")
		}
	})
}
