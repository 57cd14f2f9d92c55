// Package store persists session snapshots in a local SQLite database.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/osa030/shufflebox/internal/domain/song"
)

const (
	appName    = "shufflebox"
	dbFileName = "shufflebox.db"
)

// Snapshot is the persisted shape of a session: the song pool, the queue
// order and cursor, the played history, and where playback stood.
type Snapshot struct {
	Pool          []song.Song
	QueueOrder    []string
	CurrentSongID string
	PlayedIDs     []string
	Position      time.Duration
	SavedAt       time.Time
}

// Store reads and writes session snapshots.
type Store struct {
	db *sql.DB
}

// Open opens the snapshot database. An empty path uses the XDG data
// location.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = xdg.DataFile(filepath.Join(appName, dbFileName))
		if err != nil {
			return nil, errors.Wrap(err, "resolving data file path")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating data directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing schema")
	}

	zlog.Debug().Str("path", path).Msg("snapshot store opened")
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS session_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_song_id TEXT NOT NULL DEFAULT '',
			position_ms INTEGER NOT NULL DEFAULT 0,
			saved_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pool_songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			song_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT,
			artwork_url TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			explicit INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			last_played_at INTEGER,
			played INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS queue_order (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position INTEGER NOT NULL,
			song_id TEXT NOT NULL,
			UNIQUE(position)
		);

		CREATE INDEX IF NOT EXISTS idx_queue_order_position ON queue_order(position);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`)
	return err
}

// withTx executes fn within a transaction, rolling back on error.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Save replaces the stored snapshot atomically.
func (s *Store) Save(snap Snapshot) error {
	played := make(map[string]struct{}, len(snap.PlayedIDs))
	for _, id := range snap.PlayedIDs {
		played[id] = struct{}{}
	}

	return withTx(s.db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM session_state`,
			`DELETE FROM pool_songs`,
			`DELETE FROM queue_order`,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}

		savedAt := snap.SavedAt
		if savedAt.IsZero() {
			savedAt = time.Now()
		}
		_, err := tx.Exec(`
			INSERT INTO session_state (id, current_song_id, position_ms, saved_at)
			VALUES (1, ?, ?, ?)`,
			snap.CurrentSongID, snap.Position.Milliseconds(), savedAt.Unix())
		if err != nil {
			return err
		}

		for _, s := range snap.Pool {
			var lastPlayed sql.NullInt64
			if !s.LastPlayedAt.IsZero() {
				lastPlayed = sql.NullInt64{Int64: s.LastPlayedAt.Unix(), Valid: true}
			}
			_, isPlayed := played[s.ID]
			_, err := tx.Exec(`
				INSERT INTO pool_songs (song_id, title, artist, album, artwork_url, duration_ms, explicit, play_count, last_played_at, played)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID, s.Title, s.Artist, s.Album, s.ArtworkURL,
				s.Duration.Milliseconds(), boolToInt(s.Explicit), s.PlayCount,
				lastPlayed, boolToInt(isPlayed))
			if err != nil {
				return err
			}
		}

		for pos, id := range snap.QueueOrder {
			if _, err := tx.Exec(`
				INSERT INTO queue_order (position, song_id) VALUES (?, ?)`,
				pos, id); err != nil {
				return err
			}
		}

		return nil
	})
}

// Load returns the stored snapshot, or nil when none has been saved.
func (s *Store) Load() (*Snapshot, error) {
	var snap Snapshot
	var positionMs, savedAt int64

	err := s.db.QueryRow(`
		SELECT current_song_id, position_ms, saved_at FROM session_state WHERE id = 1`).
		Scan(&snap.CurrentSongID, &positionMs, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading session state")
	}
	snap.Position = time.Duration(positionMs) * time.Millisecond
	snap.SavedAt = time.Unix(savedAt, 0)

	rows, err := s.db.Query(`
		SELECT song_id, title, artist, album, artwork_url, duration_ms, explicit, play_count, last_played_at, played
		FROM pool_songs ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "reading pool")
	}
	defer rows.Close()

	for rows.Next() {
		var s song.Song
		var durationMs int64
		var explicit, playedFlag int
		var lastPlayed sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Title, &s.Artist, &s.Album, &s.ArtworkURL,
			&durationMs, &explicit, &s.PlayCount, &lastPlayed, &playedFlag); err != nil {
			return nil, errors.Wrap(err, "scanning pool song")
		}
		s.Duration = time.Duration(durationMs) * time.Millisecond
		s.Explicit = explicit != 0
		if lastPlayed.Valid {
			s.LastPlayedAt = time.Unix(lastPlayed.Int64, 0)
		}
		snap.Pool = append(snap.Pool, s)
		if playedFlag != 0 {
			snap.PlayedIDs = append(snap.PlayedIDs, s.ID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating pool")
	}

	orderRows, err := s.db.Query(`SELECT song_id FROM queue_order ORDER BY position`)
	if err != nil {
		return nil, errors.Wrap(err, "reading queue order")
	}
	defer orderRows.Close()

	for orderRows.Next() {
		var id string
		if err := orderRows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning queue position")
		}
		snap.QueueOrder = append(snap.QueueOrder, id)
	}
	if err := orderRows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating queue order")
	}

	return &snap, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
