package recognitionService

import (
	"PlateRecognition/internal/entity"
)

// Associate returns the id of the track owning plate, or entity.Unmatched.
//
// Only tracks whose box fully contains the plate are candidates. The winner has the
// largest intersection with the plate, then the smallest area, then the lowest id,
// so the answer does not depend on the order of tracks.
func Associate(plate entity.BoundingBox, tracks []entity.Track) int {
	best := -1
	var bestOverlap, bestArea float64

	for i, track := range tracks {
		if !track.Box.Contains(plate) {
			continue
		}

		overlap := 0.0
		if inter, ok := track.Box.Intersect(plate); ok {
			overlap = inter.Area()
		}
		area := track.Box.Area()

		if best == -1 || better(overlap, area, track.ID, bestOverlap, bestArea, tracks[best].ID) {
			best = i
			bestOverlap = overlap
			bestArea = area
		}
	}

	if best == -1 {
		return entity.Unmatched
	}
	return tracks[best].ID
}

func better(overlap, area float64, id int, bestOverlap, bestArea float64, bestID int) bool {
	if overlap != bestOverlap {
		return overlap > bestOverlap
	}
	if area != bestArea {
		return area < bestArea
	}
	return id < bestID
}
