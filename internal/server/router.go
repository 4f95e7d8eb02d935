package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/handlers"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/storage"
)

type Options struct {
	// Store records calculations. Nil runs the database-free variant.
	Store *storage.Store

	History      config.HistoryConfig
	MaxBodyBytes int64
	CORS         config.CORSConfig
	Version      string
}

func NewRouter(opts Options) http.Handler {

	// A nil *storage.Store must reach the handlers as a nil interface.
	var (
		store  calculator.Store
		pinger handlers.Pinger
	)
	if opts.Store != nil {
		store = opts.Store
		pinger = opts.Store
	}

	var calcOpts []calculator.Option
	if opts.History.DefaultLimit > 0 && opts.History.MaxLimit > 0 {
		calcOpts = append(calcOpts, calculator.WithHistoryLimits(opts.History.DefaultLimit, opts.History.MaxLimit))
	}
	if opts.MaxBodyBytes > 0 {
		calcOpts = append(calcOpts, calculator.WithMaxBodyBytes(opts.MaxBodyBytes))
	}
	calc := calculator.NewHandler(store, calcOpts...)

	r := chi.NewRouter()

	r.Use(observability.RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)
	if opts.CORS.Enabled {
		r.Use(newCORS(opts.CORS).Handler)
	}

	r.Get("/", handlers.Root(opts.Version, calc.Persistent()))
	r.Get("/health", handlers.Health(pinger))

	r.Handle("/metrics", observability.PrometheusHandler())

	calculator.RegisterRoutes(r, calc)

	return r
}

func newCORS(cfg config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{observability.RequestIDHeader},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
}
