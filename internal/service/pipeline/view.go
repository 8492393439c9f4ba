package pipeline

import (
	"inventorycounter/internal/dto"
	"inventorycounter/internal/session"
	"inventorycounter/internal/tracker"
)

// View is what the display draws on one tick.
type View struct {
	Seq        uint64                    `json:"seq"`
	State      session.State             `json:"state"`
	SessionID  string                    `json:"session_id,omitempty"`
	Detections []dto.Detection           `json:"detections"`
	Instances  []tracker.TrackedInstance `json:"instances"`
	Tally      session.Tally             `json:"tally"`
	Summary    string                    `json:"summary"`
	Status     string                    `json:"status,omitempty"`
}

// buildView filters detections to the display threshold and renders the summary.
func buildView(s *Snapshot, confidenceThreshold float64) View {
	view := View{
		Seq:        s.Frame.Seq,
		State:      s.State,
		SessionID:  s.SessionID,
		Detections: dto.FilterByConfidence(s.Detections, confidenceThreshold),
		Instances:  s.Instances,
		Tally:      s.Tally,
		Summary:    s.Tally.Summary(),
	}
	if view.Detections == nil {
		view.Detections = []dto.Detection{}
	}
	if s.LastOutcome != nil {
		view.Status = s.LastOutcome.Message()
	}
	return view
}
