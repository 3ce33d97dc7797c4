package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"discount-code-service/internal/infra/metrics"
	red "discount-code-service/internal/infra/redis"
)

// RouterOptions carries the boundary configuration. Zero values disable the feature.
type RouterOptions struct {
	CORSOrigins []string
	Timeout     time.Duration
	RateLimiter *red.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
	Metrics     bool
	Logger      *zerolog.Logger
}

// NewRouter builds the chi router for the discount code service.
func NewRouter(s *Server, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = s.log
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(logger))
	r.Use(Recover(logger))
	r.Use(CORS(opts.CORSOrigins))

	r.Get("/health", s.Health)
	r.Get("/ready", s.Ready)
	if opts.Metrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		if opts.Timeout > 0 {
			r.Use(Timeout(opts.Timeout))
		}
		r.Use(RateLimit(opts.RateLimiter, opts.RateLimit, opts.RateWindow, logger))

		r.Get("/generate_code", s.GenerateCode)
		r.Post("/grant_code", s.GrantCode)
		r.Post("/validate_code", s.ValidateCode)
		r.Post("/use_code", s.UseCode)
	})

	return r
}
