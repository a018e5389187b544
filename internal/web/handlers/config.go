package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-search/internal/config"
	"github.com/kozaktomas/face-search/internal/facecache"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
	cache  *facecache.Cache
}

// NewConfigHandler creates a new config handler. cache may be nil when caching is disabled.
func NewConfigHandler(cfg *config.Config, cache *facecache.Cache) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
		cache:  cache,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Threshold  float64          `json:"threshold"`
	Policy     string           `json:"policy"`
	Workers    int              `json:"workers"`
	Extensions []string         `json:"extensions"`
	Cache      *facecache.Stats `json:"cache,omitempty"`
}

// Get returns the effective match settings
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		Threshold:  h.config.Match.Threshold,
		Policy:     h.config.Match.Policy,
		Workers:    h.config.Match.Workers,
		Extensions: h.config.Corpus.Extensions,
	}
	if response.Extensions == nil {
		response.Extensions = []string{}
	}
	if h.cache != nil {
		stats := h.cache.Stats()
		response.Cache = &stats
	}

	respondJSON(w, http.StatusOK, response)
}
