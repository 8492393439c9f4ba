package handler

import (
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"inventorycounter/internal/logger"
	"inventorycounter/internal/model"
	"inventorycounter/internal/repository"
)

// EvidenceHandler handles GET /api/evidence with optional session, label,
// page and limit query parameters.
func EvidenceHandler(evidenceRepo repository.EvidenceRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		evidence, err := evidenceRepo.GetAll(r.Context(), model.EvidenceFilter{
			SessionID: q.Get("session"),
			Label:     q.Get("label"),
			Limit:     limit,
			Offset:    (page - 1) * limit,
		})
		if err != nil {
			logger.Error("Error querying evidence from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if evidence == nil {
			evidence = []model.Evidence{}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"evidence": evidence,
			"page":     page,
			"limit":    limit,
		})
	}
}

// EvidenceImageHandler handles GET /api/evidence/{id}/image.
func EvidenceImageHandler(evidenceRepo repository.EvidenceRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid id", http.StatusBadRequest)
			return
		}

		ev, err := evidenceRepo.GetByID(r.Context(), id)
		if err != nil {
			logger.Error("Error loading evidence %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if ev == nil {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(ev.FilePath); os.IsNotExist(err) {
			logger.Warning("Evidence %d file missing: %s", id, ev.FilePath)
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, ev.FilePath)
	}
}
