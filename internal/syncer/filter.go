package syncer

import (
	"time"

	"github.com/hzleung/readsync/internal/entities"
)

// FilterPolicy selects which annotations count as new. Exactly one of the
// two selection modes applies per invocation: the per-book checkpoint when
// one exists, otherwise the symbolic time window.
type FilterPolicy struct {
	HasCheckpoint bool
	LastSyncedAt  int64 // epoch millis, 0 = never synced
	Window        entities.SyncRange
	Now           time.Time
}

// CheckpointPolicy keeps annotations created strictly after the per-book
// checkpoint. A zero checkpoint keeps everything (first sync).
func CheckpointPolicy(lastSyncedAt int64) FilterPolicy {
	return FilterPolicy{HasCheckpoint: true, LastSyncedAt: lastSyncedAt}
}

// WindowPolicy keeps annotations created within the symbolic window ending
// at now.
func WindowPolicy(window entities.SyncRange, now time.Time) FilterPolicy {
	return FilterPolicy{Window: window, Now: now}
}

// Filter returns the subset of notes and highlights that are new under the
// policy. Pure; source second-resolution timestamps are normalized to
// millis before comparison.
func Filter(notes []entities.Note, highlights []entities.Highlight, policy FilterPolicy) ([]entities.Note, []entities.Highlight) {
	keep := policy.keep()

	keptNotes := make([]entities.Note, 0, len(notes))
	for _, note := range notes {
		if keep(note.CreatedAt) {
			keptNotes = append(keptNotes, note)
		}
	}

	keptHighlights := make([]entities.Highlight, 0, len(highlights))
	for _, highlight := range highlights {
		if keep(highlight.CreatedAt) {
			keptHighlights = append(keptHighlights, highlight)
		}
	}

	return keptNotes, keptHighlights
}

// keep builds the predicate over source timestamps (epoch seconds).
func (p FilterPolicy) keep() func(createdAtSeconds int64) bool {
	if p.HasCheckpoint {
		if p.LastSyncedAt == 0 {
			return keepEverything
		}
		cutoff := p.LastSyncedAt
		return func(createdAt int64) bool {
			return createdAt*1000 > cutoff
		}
	}

	window, bounded := p.Window.WindowDuration()
	if !bounded {
		return keepEverything
	}
	cutoff := p.Now.UnixMilli() - window.Milliseconds()
	return func(createdAt int64) bool {
		return createdAt*1000 >= cutoff
	}
}

func keepEverything(int64) bool { return true }
