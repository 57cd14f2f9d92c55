// Package song provides the Song domain entity.
package song

import "time"

// Song represents a playable track.
// Immutable value; mutating helpers return a copy.
type Song struct {
	ID           string        // Transport track ID
	Title        string        // Track title
	Artist       string        // Primary artist name
	Album        string        // Album name
	ArtworkURL   string        // Album art URL
	Duration     time.Duration // Track duration
	Explicit     bool          // Explicit content flag
	PlayCount    int           // Times played across sessions
	LastPlayedAt time.Time     // Zero value means never played
}

// SameIdentity reports whether two songs describe the same recording
// when IDs cannot be compared (metadata match).
func (s Song) SameIdentity(other Song) bool {
	return s.Title == other.Title && s.Artist == other.Artist && s.Album == other.Album
}

// Played returns a copy with play statistics advanced to the given time.
func (s Song) Played(at time.Time) Song {
	s.PlayCount++
	s.LastPlayedAt = at
	return s
}

// MergedFrom returns a copy that keeps s's identity and play statistics but
// adopts fresher display metadata from other where other has it.
func (s Song) MergedFrom(other Song) Song {
	if other.Title != "" {
		s.Title = other.Title
	}
	if other.Artist != "" {
		s.Artist = other.Artist
	}
	if other.Album != "" {
		s.Album = other.Album
	}
	if other.ArtworkURL != "" {
		s.ArtworkURL = other.ArtworkURL
	}
	return s
}

// IDs returns the ids of the given songs, preserving order.
func IDs(songs []Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}
