package usecase

import (
	"sort"
	"time"

	"SignalDesk/internal/domain/models"
)

// BuildTimeline returns the newest limit signals as chart points, oldest
// first, followed by a live point from snap when one is available.
func BuildTimeline(signals []models.Signal, limit int, snap *models.PriceSnapshot, now time.Time) []models.TimelinePoint {
	sorted := make([]models.Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Timestamp.IsZero() {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}

	points := make([]models.TimelinePoint, 0, len(sorted)+1)
	for _, s := range sorted {
		dec := s.Decision
		points = append(points, models.TimelinePoint{
			Time:     s.Timestamp,
			Price:    s.Price,
			Decision: &dec,
			Label:    s.Label,
		})
	}

	if snap != nil && snap.Price > 0 {
		at := snap.ReceivedAt
		if at.IsZero() {
			at = now
		}
		points = append(points, models.TimelinePoint{Time: at, Price: snap.Price, Live: true})
	}
	return points
}
