package api

import (
	"net/http"

	"github.com/JaimeStill/nexus/internal/config"
	"github.com/JaimeStill/nexus/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) []string {
	return routes.Register(
		mux,
		domain.Jobs.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
	)
}
