package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"rbqbroker/pkg/httpx"
	"rbqbroker/pkg/logger"
	"rbqbroker/pkg/metrics"
)

// startAdminHTTP builds and starts the admin surface (health, metrics,
// docs) on whichever transport AdminConfig.Transport selects, and returns
// a shutdown func plus a channel that receives a fatal listener error.
// swaggo/http-swagger only understands net/http, so /docs/ is only mounted
// under the "nethttp" transport; under "fasthttp" it responds 501 with an
// explanatory body rather than silently 404ing.
func (a *App) startAdminHTTP() (func(context.Context) error, <-chan error) {
	admin := a.eff.Config.Admin
	errCh := make(chan error, 1)

	healthz := httpx.RateLimited(admin.RateLimit.RPS, admin.RateLimit.Burst, a.healthzHandler)

	switch admin.Transport {
	case "fasthttp":
		return a.startFastHTTPAdmin(admin.Address, healthz, errCh)
	default:
		return a.startNetHTTPAdmin(admin.Address, healthz, errCh)
	}
}

func (a *App) healthzHandler(w httpx.ResponseWriter, r *httpx.Request) {
	depths := a.queue.Depths()
	for i, d := range depths {
		updateShardDepthMetric(i, d)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"ok","shards":%d}`, a.queue.ShardCount())
}

func (a *App) startNetHTTPAdmin(addr string, healthz httpx.HandlerFunc, errCh chan error) (func(context.Context) error, <-chan error) {
	router := httpx.NewNetHTTPMux(map[string]httpx.HandlerFunc{
		"/healthz": healthz,
	})
	router.Handle("/metrics", promhttp.Handler())
	router.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	router.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	srv := &http.Server{Addr: addr, Handler: router}
	go func() {
		logger.Info("admin http listening", "addr", addr, "transport", "nethttp")
		errCh <- srv.ListenAndServe()
	}()

	stop := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return stop, errCh
}

func (a *App) startFastHTTPAdmin(addr string, healthz httpx.HandlerFunc, errCh chan error) (func(context.Context) error, <-chan error) {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	mux := httpx.NewFastHTTPMux(map[string]httpx.HandlerFunc{
		"/healthz": healthz,
	})

	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/metrics":
				metricsHandler(ctx)
			case "/docs/", "/openapi.yaml":
				ctx.SetStatusCode(http.StatusNotImplemented)
				ctx.SetBodyString("swagger UI is only available under admin.transport: nethttp")
			default:
				mux(ctx)
			}
		},
	}

	go func() {
		logger.Info("admin http listening", "addr", addr, "transport", "fasthttp")
		errCh <- srv.ListenAndServe(addr)
	}()

	stop := func(ctx context.Context) error {
		return srv.Shutdown()
	}
	return stop, errCh
}

func updateShardDepthMetric(shard, depth int) {
	metrics.ShardDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(depth))
}
