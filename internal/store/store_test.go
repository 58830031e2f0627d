package store

import (
	"testing"

	"github.com/londonpotato1/standx-maker-bot/internal/strategy"
)

func TestSaveAndLoadStats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	stats := strategy.Stats{Placed: 4, Cancelled: 2, Rebalances: 1, Fills: 1, Liquidations: 1}

	if err := s.SaveStats("BTC-USD", stats); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}

	loaded, err := s.LoadStats("BTC-USD")
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	if loaded != stats {
		t.Errorf("LoadStats() = %+v, want %+v", loaded, stats)
	}
}

func TestLoadStatsMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.LoadStats("nonexistent"); err == nil {
		t.Error("expected an error loading stats for a symbol with no saved file")
	}
}

func TestSaveStatsOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.SaveStats("BTC-USD", strategy.Stats{Placed: 4})
	_ = s.SaveStats("BTC-USD", strategy.Stats{Placed: 8})

	loaded, err := s.LoadStats("BTC-USD")
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	if loaded.Placed != 8 {
		t.Errorf("Placed = %d, want 8 (latest save)", loaded.Placed)
	}
}
