package handle

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client on /v1
	RateBurst      int
	Health         map[string]HealthChecker
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that sets them; the /v1 rate limit keys on it.
	TrustProxy bool
	// Webhooks are extra POST endpoints, keyed by path.
	Webhooks map[string]http.Handler
}

// Routes wires the web surface, the JSON API and the health endpoint.
func (h *Handle) Routes(cfg RouterConfig) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	if cfg.TrustProxy {
		mux.Use(middleware.RealIP)
	}
	mux.Use(middleware.Recoverer)
	mux.Use(Logging(h.log))

	mux.Get("/healthz", HealthHandler(cfg.Health))

	mux.Get("/", h.Index)
	mux.Get("/app", h.AppFragment)
	mux.Post("/upload", h.Upload)
	mux.Post("/focus", h.Focus)
	mux.Post("/run", h.Run)
	mux.Post("/reset", h.Reset)
	mux.Get("/preview/{ref}", h.Preview)
	for path, wh := range cfg.Webhooks {
		mux.Method(http.MethodPost, path, wh)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateBurst, 10*time.Minute)
	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Timeout"},
			MaxAge:         300,
		}))
		rt.Use(limiter.Middleware)
		rt.Post("/analyze", h.Analyze)
	})
	return mux
}
