package overlay

import (
	"sort"

	"liveview/internal/models"
)

// Aggregate keeps the highest-confidence detection per label. An entry is
// only replaced on strictly greater confidence, so ties keep the first one
// seen. The result is sorted by descending confidence; equal confidences
// stay in first-seen order.
func Aggregate(dets []models.RawDetection) []models.AggregatedEntry {
	index := make(map[string]int, len(dets))
	out := make([]models.AggregatedEntry, 0, len(dets))

	for _, d := range dets {
		i, seen := index[d.Label]
		if !seen {
			index[d.Label] = len(out)
			out = append(out, models.AggregatedEntry{Label: d.Label, Confidence: d.Confidence, Box: d.Box})
			continue
		}
		if d.Confidence > out[i].Confidence {
			out[i].Confidence = d.Confidence
			out[i].Box = d.Box
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Confidence > out[b].Confidence
	})
	return out
}
