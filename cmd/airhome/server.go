package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airhome/internal/app/favourites"
	"airhome/internal/app/homes"
	"airhome/internal/app/users"
	"airhome/internal/config"
	"airhome/internal/http/middleware"
	"airhome/internal/httpapi"
	"airhome/internal/media"
	"airhome/internal/session"
	"airhome/internal/store"
)

type services struct {
	homes      homes.Service
	favourites favourites.Service
	users      users.Service
}

func newServices(cfg *config.Config, backend store.Backend, uploads media.Uploader) services {
	timeout := cfg.Store.Timeout
	return services{
		homes:      homes.New(backend, uploads, timeout),
		favourites: favourites.New(backend, timeout),
		users:      users.New(backend, timeout),
	}
}

func newHTTPHandler(cfg *config.Config, svc services, sessions *session.Manager, uploadDir string) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	api := httpapi.New(svc.homes, svc.favourites, svc.users, sessions, httpapi.Options{
		UploadDir: uploadDir,
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	return middleware.Chain(
		metrics.Handler(api.Routes()),
		middleware.RequestLogging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)
}
