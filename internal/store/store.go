// Package store provides crash-safe stats persistence using JSON files.
//
// Each symbol's counters are stored as a separate file: stats_<symbol>.json.
// Writes use atomic file replacement (write to .tmp, then rename) to prevent
// corruption from partial writes or crashes mid-save. The engine calls
// SaveStats on a periodic checkpoint and on shutdown, and LoadStats on
// startup to restore counters across restarts.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/londonpotato1/standx-maker-bot/internal/strategy"
)

// Store persists per-symbol stats to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing stats_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// SaveStats atomically persists the current counters for a symbol. It
// writes to a .tmp file first, then renames over the target so the file is
// never left in a partial state (crash-safe).
func (s *Store) SaveStats(symbol string, stats strategy.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	path := s.statsPath(symbol)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadStats restores counters for a symbol from disk. Returns a zero Stats
// and a non-nil error if no saved stats exist (fresh symbol); callers treat
// that as "nothing to restore" rather than a fatal condition.
func (s *Store) LoadStats(symbol string) (strategy.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats strategy.Stats
	data, err := os.ReadFile(s.statsPath(symbol))
	if err != nil {
		return stats, fmt.Errorf("read stats: %w", err)
	}

	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("unmarshal stats: %w", err)
	}
	return stats, nil
}

func (s *Store) statsPath(symbol string) string {
	return filepath.Join(s.dir, "stats_"+symbol+".json")
}
