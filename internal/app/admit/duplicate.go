package admit

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/shufflebox/internal/domain/queue"
	"github.com/osa030/shufflebox/internal/domain/song"
)

// DuplicateSongRule rejects songs already present in the pool.
// Detects:
// - Exact song ID matches
// - Remasters (normalized title + same artist)
// Excludes:
// - Cover songs (same title but different artist)
type DuplicateSongRule struct{}

// NewDuplicateSongRule creates a new duplicate song rule.
func NewDuplicateSongRule() *DuplicateSongRule {
	return &DuplicateSongRule{}
}

// Name returns the rule name.
func (r *DuplicateSongRule) Name() string {
	return "duplicate_song_rule"
}

// Description returns the rule description.
func (r *DuplicateSongRule) Description() string {
	return "Rejects songs already in the pool, including remastered versions; covers by other artists are allowed"
}

// ReturnCodes returns possible return codes.
func (r *DuplicateSongRule) ReturnCodes() []string {
	return []string{"duplicate_song"}
}

// AppliesTo returns which sources this rule applies to.
func (r *DuplicateSongRule) AppliesTo(source Source) bool {
	// Seed providers deduplicate themselves; restores are trusted.
	return source == SourceUser
}

// ValidateConfig validates the rule configuration.
func (r *DuplicateSongRule) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the candidate duplicates a pooled song.
func (r *DuplicateSongRule) Check(ctx context.Context, candidate song.Song, qs queue.State) Result {
	for _, pooled := range qs.Pool() {
		if pooled.ID == candidate.ID {
			return Reject("duplicate_song")
		}
		if isRemaster(pooled, candidate) {
			return Reject("duplicate_song")
		}
	}
	return Accept()
}

// isRemaster checks if two songs are the same recording in different
// releases. Titles must match after normalization and the artist must be
// the same; a matching title by a different artist is a cover.
func isRemaster(a, b song.Song) bool {
	if normalizeTitle(a.Title) != normalizeTitle(b.Title) {
		return false
	}
	if a.Artist == "" || b.Artist == "" {
		return false
	}
	return strings.EqualFold(a.Artist, b.Artist)
}

var remasterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
	regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
	regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
	regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
	regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
	regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
}

var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
	regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
	regexp.MustCompile(`\s*-?\s*live\b`),           // "- Live"
	regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
	regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
	regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeTitle removes remaster information and version details.
func normalizeTitle(title string) string {
	normalized := strings.ToLower(title)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = whitespaceRun.ReplaceAllString(normalized, " ")
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

func init() {
	Register("duplicate_song_rule", func() Rule {
		return NewDuplicateSongRule()
	})
}
