package handler

import (
	"net/http"

	"inventorycounter/internal/dto"
	"inventorycounter/internal/logger"
)

// AnnotateFunc draws detections at or above minConfidence onto a JPEG.
type AnnotateFunc func(jpeg []byte, detections []dto.Detection, minConfidence float64) ([]byte, error)

// FrameHandler handles GET /api/frame with the last processed frame and its
// overlay. ?raw=1 skips the overlay.
func FrameHandler(counter Counter, annotate AnnotateFunc, minConfidence float64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := counter.Snapshot()
		if len(snap.Frame.JPEG) == 0 {
			http.Error(w, "No frame yet", http.StatusNotFound)
			return
		}

		data := snap.Frame.JPEG
		if r.URL.Query().Get("raw") == "" {
			annotated, err := annotate(snap.Frame.JPEG, snap.Detections, minConfidence)
			if err != nil {
				logger.Warning("Failed to annotate frame %d: %v", snap.Frame.Seq, err)
			} else {
				data = annotated
			}
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}
