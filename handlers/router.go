package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// Routes collects everything the HTTP server exposes. Live, Events and Metrics
// are optional.
type Routes struct {
	Stats          *StatsHandler
	Live           *LiveHandler
	Events         http.HandlerFunc
	Metrics        http.Handler
	AllowedOrigins []string
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()

	origins := routes.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Frame-Seq", "X-Cache"},
		MaxAge:         300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	if routes.Events != nil {
		// websocket connections outlive any request timeout
		r.Get("/ws", routes.Events)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/models", routes.Stats.ListModels)
		r.Route("/stats", func(r chi.Router) {
			r.Get("/models", routes.Stats.ModelStats)
			r.Get("/aggregate", routes.Stats.AggregateStats)
			r.Get("/failures", routes.Stats.FailureStats)
		})
		r.Get("/tests", routes.Stats.ListTests)

		live := routes.Live
		if live == nil {
			live = &LiveHandler{}
		}
		r.Get("/live/frame.jpg", live.Frame)
	})

	return r
}
