package config

import "testing"

func validConfig() Config {
	var cfg Config
	cfg.Wallet.PrivateKey = "0x01"
	cfg.Wallet.ChainID = 137
	cfg.API.BaseURL = "https://example.test"
	cfg.Strategy.Symbols = []string{"BTC-USD"}
	cfg.Strategy.OrderSizeUSD = 5
	cfg.Strategy.OrderDistancesBps = []int{6, 8}
	cfg.Strategy.MinDistanceBps = 5
	cfg.Strategy.MaxDistanceBps = 10
	cfg.Safety.MaxPositionUSD = 50
	cfg.Safety.StaleMode = "kill"
	return cfg
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsMissingSymbols(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Strategy.Symbols = nil
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty symbols")
	}
}

func TestValidateRejectsBadDistanceBounds(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Strategy.MaxDistanceBps = 3 // less than MinDistanceBps
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_distance_bps <= min_distance_bps")
	}
}

func TestValidateRejectsBadStaleMode(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Safety.StaleMode = "ignore"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid stale_mode")
	}
}

func TestResolvedDistancesBpsFallsBackToTarget(t *testing.T) {
	t.Parallel()
	s := StrategyConfig{TargetDistanceBps: 8}
	got := s.ResolvedDistancesBps()
	if len(got) != 1 || got[0] != 8 {
		t.Errorf("ResolvedDistancesBps() = %v, want [8]", got)
	}
}

func TestResolvedDistancesBpsHonorsExplicitList(t *testing.T) {
	t.Parallel()
	s := StrategyConfig{TargetDistanceBps: 8, OrderDistancesBps: []int{6, 8}}
	got := s.ResolvedDistancesBps()
	if len(got) != 2 || got[0] != 6 || got[1] != 8 {
		t.Errorf("ResolvedDistancesBps() = %v, want [6 8]", got)
	}
}
