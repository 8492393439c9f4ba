// Package tracker de-duplicates per-frame detections into stable instances.
//
// Matching is greedy: each detection, in the order given, takes the first
// unclaimed instance (lowest ID first) with the same class and an IOU strictly
// above the threshold. Instances that match nothing in a frame are dropped, so
// an object that disappears for a single frame is counted again when it
// returns.
//
// Tracker is not safe for concurrent use; callers own the synchronization.
package tracker

import (
	"sort"

	"inventorycounter/internal/dto"
	"inventorycounter/internal/geometry"
)

// DefaultIOUThreshold is the minimum overlap (exclusive) for two boxes to be the same object.
const DefaultIOUThreshold = 0.5

// TrackedInstance is one object identity that has survived since its first sighting.
type TrackedInstance struct {
	ID    int                  `json:"id"`
	Class string               `json:"class"`
	Box   geometry.BoundingBox `json:"box"`
}

type Tracker struct {
	instances    []TrackedInstance // ascending ID
	nextID       int
	iouThreshold float64
}

// New creates a Tracker. The threshold is used as given: 0 matches any
// overlap, and callers keep it below 1 or nothing ever matches.
func New(iouThreshold float64) *Tracker {
	return &Tracker{iouThreshold: iouThreshold}
}

// Update matches one frame of detections and returns the newly seen instances
// in detection order.
func (t *Tracker) Update(detections []dto.Detection) []TrackedInstance {
	next := make([]TrackedInstance, 0, len(detections))
	claimed := make([]bool, len(t.instances))
	var newlySeen []TrackedInstance

	for _, det := range detections {
		box := geometry.FromCenter(det.X, det.Y, det.Width, det.Height)

		if idx := t.match(det.Class, box, claimed); idx >= 0 {
			claimed[idx] = true
			next = append(next, TrackedInstance{
				ID:    t.instances[idx].ID,
				Class: t.instances[idx].Class,
				Box:   box,
			})
			continue
		}

		inst := TrackedInstance{ID: t.nextID, Class: det.Class, Box: box}
		t.nextID++
		next = append(next, inst)
		newlySeen = append(newlySeen, inst)
	}

	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })
	t.instances = next
	return newlySeen
}

func (t *Tracker) match(class string, box geometry.BoundingBox, claimed []bool) int {
	for i, inst := range t.instances {
		if claimed[i] || inst.Class != class {
			continue
		}
		if geometry.IOU(box, inst.Box) > t.iouThreshold {
			return i
		}
	}
	return -1
}

// Instances returns a copy of the currently tracked set, ordered by ID.
func (t *Tracker) Instances() []TrackedInstance {
	out := make([]TrackedInstance, len(t.instances))
	copy(out, t.instances)
	return out
}

// Reset forgets every tracked instance. IDs keep increasing.
func (t *Tracker) Reset() {
	t.instances = nil
}

// Labels returns the class of each instance, preserving order.
func Labels(instances []TrackedInstance) []string {
	labels := make([]string, len(instances))
	for i, inst := range instances {
		labels[i] = inst.Class
	}
	return labels
}
