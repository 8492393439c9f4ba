package route

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"inventorycounter/internal/config"
	"inventorycounter/internal/handler"
	"inventorycounter/internal/inventory"
	"inventorycounter/internal/logger"
	"inventorycounter/internal/middleware"
	"inventorycounter/internal/repository"
)

// Deps are what the routes serve.
type Deps struct {
	Counter      handler.Counter
	Hub          handler.Hub
	Annotate     handler.AnnotateFunc
	LedgerRepo   repository.LedgerRepository
	MovementRepo repository.MovementRepository
	EvidenceRepo repository.EvidenceRepository
	Metrics      http.Handler
}

// SetupRoutes registers the API, log and auth endpoints and wraps them with
// the authentication middleware.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AuthMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/session", http.StatusSeeOther)
	})

	// Session control
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", handler.SessionStatusHandler(deps.Counter))
		r.Post("/start", handler.StartSessionHandler(deps.Counter, logger))
		r.Post("/checkin", handler.StopSessionHandler(deps.Counter, inventory.CheckIn, logger))
		r.Post("/checkout", handler.StopSessionHandler(deps.Counter, inventory.CheckOut, logger))
		r.Post("/stop", handler.StopSessionByActionHandler(deps.Counter, logger))
	})

	r.Get("/api/inventory", handler.InventoryHandler(deps.LedgerRepo, logger))
	r.Get("/api/inventory/{item}", handler.ItemHandler(deps.LedgerRepo, logger))
	r.Get("/api/movements", handler.MovementsHandler(deps.MovementRepo, logger))
	r.Get("/api/evidence", handler.EvidenceHandler(deps.EvidenceRepo, logger))
	r.Get("/api/evidence/{id}/image", handler.EvidenceImageHandler(deps.EvidenceRepo, logger))
	r.Get("/api/frame", handler.FrameHandler(deps.Counter, deps.Annotate, cfg.ConfidenceThreshold, logger))
	r.Get("/api/view", handler.ViewWebsocketHandler(deps.Hub, logger))

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	// Log endpoints
	r.Get("/logs/{level}", handler.ShowLogsHandler(logger))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Auth endpoints
	r.Get("/login", handler.LoginPageHandler)
	r.Post("/auth/login", handler.LoginHandler(cfg, logger))
	r.Get("/auth/logout", handler.LogoutHandler)

	return r
}
