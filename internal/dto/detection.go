package dto

import "time"

// Detection is one object reported by the inference collaborator, in center form.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// Frame is one encoded camera frame.
type Frame struct {
	JPEG      []byte
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
}

// FilterByConfidence returns the detections with confidence >= minConfidence.
func FilterByConfidence(detections []Detection, minConfidence float64) []Detection {
	if minConfidence <= 0 {
		return detections
	}
	filtered := make([]Detection, 0, len(detections))
	for _, det := range detections {
		if det.Confidence >= minConfidence {
			filtered = append(filtered, det)
		}
	}
	return filtered
}
