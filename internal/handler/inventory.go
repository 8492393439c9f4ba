package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inventorycounter/internal/logger"
	"inventorycounter/internal/model"
	"inventorycounter/internal/repository"
)

const defaultMovementLimit = 50

// InventoryHandler handles GET /api/inventory with every item and its stock.
func InventoryHandler(ledgerRepo repository.LedgerRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := ledgerRepo.GetAll(r.Context())
		if err != nil {
			logger.Error("Error querying inventory: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if items == nil {
			items = []model.Item{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items": items,
			"count": len(items),
		})
	}
}

// ItemHandler handles GET /api/inventory/{item}. Unknown items answer 404.
func ItemHandler(ledgerRepo repository.LedgerRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "item")
		item, err := ledgerRepo.Get(r.Context(), name)
		if err != nil {
			logger.Error("Error querying item %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if item == nil {
			writeError(w, http.StatusNotFound, "Item not found")
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// MovementsHandler handles GET /api/movements. With ?session=ID it returns that
// session's movements, otherwise the latest ?limit=N (default 50).
func MovementsHandler(movementRepo repository.MovementRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			movements []model.Movement
			err       error
		)
		if sessionID := q.Get("session"); sessionID != "" {
			movements, err = movementRepo.GetBySession(r.Context(), sessionID)
		} else {
			movements, err = movementRepo.GetRecent(r.Context(), atoiDefault(q.Get("limit"), defaultMovementLimit))
		}
		if err != nil {
			logger.Error("Error querying movements: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if movements == nil {
			movements = []model.Movement{}
		}
		writeJSON(w, http.StatusOK, movements)
	}
}
