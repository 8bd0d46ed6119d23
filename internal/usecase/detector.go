package usecase

import (
	"sort"
	"time"

	"SignalDesk/internal/domain/models"
)

// DetectNew returns the signals of fresh newer than cursor, oldest first, and
// the cursor advanced to the newest timestamp in fresh.
//
// A null cursor seeds: nothing is new, the cursor is set. Signals with a zero
// timestamp are never new and never move the cursor. The cursor never moves back.
func DetectNew(cursor models.PollCursor, fresh []models.Signal) ([]models.Signal, models.PollCursor) {
	var newest time.Time
	var found []models.Signal

	for _, s := range fresh {
		if s.Timestamp.IsZero() {
			continue
		}
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
		if cursor.LastSeen != nil && s.Timestamp.After(*cursor.LastSeen) {
			found = append(found, s)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if !found[i].Timestamp.Equal(found[j].Timestamp) {
			return found[i].Timestamp.Before(found[j].Timestamp)
		}
		return found[i].ID < found[j].ID
	})

	next := cursor
	if !newest.IsZero() && (cursor.LastSeen == nil || newest.After(*cursor.LastSeen)) {
		next = models.PollCursor{LastSeen: &newest}
	}
	return found, next
}
