// Package shuffle provides queue ordering algorithms.
package shuffle

import (
	"math/rand"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/osa030/shufflebox/internal/domain/song"
)

// Algorithm selects how a queue order is derived from the pool.
type Algorithm int

const (
	NoRepeat            Algorithm = iota // Uniform permutation of all songs
	PureRandom                           // Uniform permutation, optionally truncated or padded with repeats
	WeightedByRecency                    // Least recently played first, shuffled within tiers
	WeightedByPlayCount                  // Least played first, shuffled within tiers
	ArtistSpacing                        // Greedy ordering that keeps the same artist apart
)

// String returns the config name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case NoRepeat:
		return "no_repeat"
	case PureRandom:
		return "pure_random"
	case WeightedByRecency:
		return "weighted_by_recency"
	case WeightedByPlayCount:
		return "weighted_by_play_count"
	case ArtistSpacing:
		return "artist_spacing"
	default:
		return "unknown"
	}
}

// Parse parses a config algorithm name.
func Parse(name string) (Algorithm, error) {
	switch name {
	case "no_repeat", "":
		return NoRepeat, nil
	case "pure_random":
		return PureRandom, nil
	case "weighted_by_recency":
		return WeightedByRecency, nil
	case "weighted_by_play_count":
		return WeightedByPlayCount, nil
	case "artist_spacing":
		return ArtistSpacing, nil
	default:
		return NoRepeat, errors.Newf("unknown shuffle algorithm: %s", name)
	}
}

// Shuffle returns a new ordering of songs under the given algorithm.
// The input slice is never modified.
func Shuffle(songs []song.Song, alg Algorithm) []song.Song {
	return ShuffleN(songs, alg, len(songs))
}

// ShuffleN is Shuffle with an explicit output length. The count only matters
// for PureRandom, which pads with uniformly random repeats when count exceeds
// the input length; every other algorithm ignores it and orders all songs.
func ShuffleN(songs []song.Song, alg Algorithm, count int) []song.Song {
	if len(songs) == 0 || (alg == PureRandom && count <= 0) {
		return []song.Song{}
	}
	if len(songs) == 1 && (alg != PureRandom || count == 1) {
		return []song.Song{songs[0]}
	}

	switch alg {
	case PureRandom:
		return pureRandom(songs, count)
	case WeightedByRecency:
		return tiered(songs, func(a, b song.Song) bool {
			// Never-played songs sort ahead of everything else.
			if a.LastPlayedAt.IsZero() != b.LastPlayedAt.IsZero() {
				return a.LastPlayedAt.IsZero()
			}
			return a.LastPlayedAt.Before(b.LastPlayedAt)
		})
	case WeightedByPlayCount:
		return tiered(songs, func(a, b song.Song) bool {
			return a.PlayCount < b.PlayCount
		})
	case ArtistSpacing:
		return artistSpaced(songs)
	default: // NoRepeat
		return permutation(songs)
	}
}

func permutation(songs []song.Song) []song.Song {
	out := make([]song.Song, len(songs))
	copy(out, songs)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func pureRandom(songs []song.Song, count int) []song.Song {
	perm := permutation(songs)
	if count <= len(perm) {
		return perm[:count]
	}

	// Overflow beyond one full permutation is filled with uniform repeats.
	out := make([]song.Song, 0, count)
	out = append(out, perm...)
	for len(out) < count {
		out = append(out, songs[rand.Intn(len(songs))])
	}
	return out
}

// tiered stable-sorts ascending by the given order, then shuffles within
// contiguous tiers of size max(1, n/10). The sort carries the global bias,
// the tier shuffle adds local variety.
func tiered(songs []song.Song, less func(a, b song.Song) bool) []song.Song {
	out := make([]song.Song, len(songs))
	copy(out, songs)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})

	tierSize := len(out) / 10
	if tierSize < 1 {
		tierSize = 1
	}

	for start := 0; start < len(out); start += tierSize {
		end := start + tierSize
		if end > len(out) {
			end = len(out)
		}
		tier := out[start:end]
		rand.Shuffle(len(tier), func(i, j int) {
			tier[i], tier[j] = tier[j], tier[i]
		})
	}
	return out
}

// artistSpaced greedily builds an order where an artist is not reused within
// the spacing window of min(3, distinctArtists-1) picks. When no artist
// satisfies the window the pick falls back to any artist with songs left.
func artistSpaced(songs []song.Song) []song.Song {
	byArtist := make(map[string][]song.Song)
	artists := make([]string, 0)
	for _, s := range songs {
		if _, ok := byArtist[s.Artist]; !ok {
			artists = append(artists, s.Artist)
		}
		byArtist[s.Artist] = append(byArtist[s.Artist], s)
	}

	window := len(artists) - 1
	if window > 3 {
		window = 3
	}
	if window < 0 {
		window = 0
	}

	out := make([]song.Song, 0, len(songs))
	var recent []string

	for len(out) < len(songs) {
		eligible := make([]string, 0, len(artists))
		remaining := make([]string, 0, len(artists))
		for _, a := range artists {
			if len(byArtist[a]) == 0 {
				continue
			}
			remaining = append(remaining, a)
			if !contains(recent, a) {
				eligible = append(eligible, a)
			}
		}
		if len(remaining) == 0 {
			break
		}
		if len(eligible) == 0 {
			// Spacing cannot be satisfied, fall back to any remaining artist.
			eligible = remaining
		}

		artist := eligible[rand.Intn(len(eligible))]
		bucket := byArtist[artist]
		pick := rand.Intn(len(bucket))
		out = append(out, bucket[pick])
		byArtist[artist] = append(bucket[:pick], bucket[pick+1:]...)

		recent = append(recent, artist)
		if len(recent) > window {
			recent = recent[len(recent)-window:]
		}
		if window == 0 {
			recent = nil
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
