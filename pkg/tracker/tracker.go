// Package tracker assigns persistent identities to vehicle detections by greedy IOU
// matching against the tracks seen on previous updates.
package tracker

import (
	"sort"
	"sync"

	"PlateRecognition/internal/entity"
)

type ITracker interface {
	Update(detections []entity.Detection) ([]entity.Track, error)
}

type track struct {
	id   int
	box  entity.BoundingBox
	lost int
}

type iouTracker struct {
	mu           sync.Mutex
	tracks       []*track
	nextID       int
	maxLost      int
	iouThreshold float64
}

func New(maxLost int, iouThreshold float64) ITracker {
	if maxLost < 0 {
		maxLost = 0
	}
	if iouThreshold <= 0 || iouThreshold > 1 {
		iouThreshold = 0.3
	}
	return &iouTracker{
		nextID:       1,
		maxLost:      maxLost,
		iouThreshold: iouThreshold,
	}
}

type candidate struct {
	trackIdx int
	detIdx   int
	iou      float64
}

// Update matches detections to existing tracks and returns one track per detection,
// in detection order. Tracks that go unmatched for more than maxLost updates are dropped.
func (t *iouTracker) Update(detections []entity.Detection) ([]entity.Track, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var candidates []candidate
	for ti, tr := range t.tracks {
		for di, det := range detections {
			if iou := tr.box.IOU(det.Box); iou >= t.iouThreshold {
				candidates = append(candidates, candidate{trackIdx: ti, detIdx: di, iou: iou})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].iou > candidates[j].iou
	})

	assigned := make([]*track, len(detections))
	usedTracks := make(map[int]bool, len(t.tracks))
	for _, c := range candidates {
		if usedTracks[c.trackIdx] || assigned[c.detIdx] != nil {
			continue
		}
		usedTracks[c.trackIdx] = true
		tr := t.tracks[c.trackIdx]
		tr.box = detections[c.detIdx].Box
		tr.lost = 0
		assigned[c.detIdx] = tr
	}

	kept := t.tracks[:0]
	for ti, tr := range t.tracks {
		if !usedTracks[ti] {
			tr.lost++
			if tr.lost > t.maxLost {
				continue
			}
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	result := make([]entity.Track, 0, len(detections))
	for di, det := range detections {
		tr := assigned[di]
		if tr == nil {
			tr = &track{id: t.nextID, box: det.Box}
			t.nextID++
			t.tracks = append(t.tracks, tr)
		}
		result = append(result, entity.Track{Box: tr.box, ID: tr.id})
	}

	return result, nil
}
