package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"boardquiz-service/internal/app"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Service     *app.GameService
	Logger      *zap.Logger
	CORSOrigins []string
}

// NewRouter mounts the websocket endpoint, the REST API and the health probe.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/ws", NewWSHandler(cfg.Service, log).ServeWS)

	api := NewAPIHandler(cfg.Service, log)
	r.Route("/api/sessions/{id}", func(sr chi.Router) {
		sr.Use(middleware.Timeout(30 * time.Second))
		sr.Get("/deck", api.ExportDeck)
		sr.Post("/deck", api.ImportDeck)
		sr.Get("/settings", api.GetSettings)
		sr.Put("/settings", api.PutSettings)
		sr.Delete("/settings", api.DeleteSettings)
	})
	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
