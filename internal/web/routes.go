package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-search/internal/web/handlers"
	"github.com/kozaktomas/face-search/internal/web/static"
)

func (s *Server) setupRoutes() {
	searchHandler := handlers.NewSearchHandler(s.searcher)
	configHandler := handlers.NewConfigHandler(s.config, s.cache)

	// Legacy path used by existing clients.
	s.router.Post("/api/search", searchHandler.Search)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)
		r.Get("/config", configHandler.Get)
		r.Post("/search", searchHandler.Search)
	})

	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the embedded upload page and its assets.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = "index.html"
	}

	if static.Exists(name) {
		if strings.HasPrefix(name, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=3600")
		}
		http.ServeFileFS(w, r, static.Files(), name)
		return
	}

	if strings.HasPrefix(name, "assets/") || strings.HasPrefix(name, "api/") {
		http.NotFound(w, r)
		return
	}

	http.ServeFileFS(w, r, static.Files(), "index.html")
}
