package handler

import (
	"context"
	"errors"
	"net/http"

	"inventorycounter/internal/inventory"
	"inventorycounter/internal/logger"
	"inventorycounter/internal/service/pipeline"
	"inventorycounter/internal/session"
)

// Counter is the part of the pipeline the HTTP surface drives.
type Counter interface {
	Start() bool
	Stop(ctx context.Context, action inventory.Action) (session.Outcome, error)
	View() pipeline.View
	Snapshot() *pipeline.Snapshot
}

// SessionStatusHandler handles GET /api/session with the current view.
func SessionStatusHandler(counter Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, counter.View())
	}
}

// StartSessionHandler handles POST /api/session/start. Starting twice is not an error.
func StartSessionHandler(counter Counter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := counter.Start()
		if !started {
			logger.Debug("Start requested while already counting")
		}
		view := counter.View()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"started":    started,
			"session_id": view.SessionID,
			"state":      view.State,
		})
	}
}

// StopSessionHandler handles POST /api/session/checkin and /api/session/checkout.
// The outcome is returned as JSON; a ledger write failure answers 500 with the
// same outcome so the client can see what was and was not applied.
func StopSessionHandler(counter Counter, action inventory.Action, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := counter.Stop(r.Context(), action)
		switch {
		case errors.Is(err, inventory.ErrUnknownAction):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			logger.Error("Failed to %s session %s: %v", action, outcome.SessionID, err)
			writeJSON(w, http.StatusInternalServerError, stopResponse(outcome))
			return
		}
		writeJSON(w, http.StatusOK, stopResponse(outcome))
	}
}

// StopSessionByActionHandler handles POST /api/session/stop?action=check-in|check-out.
func StopSessionByActionHandler(counter Counter, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action, err := inventory.ParseAction(r.URL.Query().Get("action"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		StopSessionHandler(counter, action, logger)(w, r)
	}
}

func stopResponse(outcome session.Outcome) map[string]interface{} {
	return map[string]interface{}{
		"message": outcome.Message(),
		"outcome": outcome,
	}
}
