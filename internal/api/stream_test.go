package api

import "testing"

func TestClientWants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		symbols []string
		event   string
		want    bool
	}{
		{"unfiltered client receives everything", nil, "BTC-USD", true},
		{"unfiltered client receives symbol-agnostic event", nil, "", true},
		{"filtered client receives its own symbol", []string{"BTC-USD"}, "BTC-USD", true},
		{"filtered client rejects other symbol", []string{"BTC-USD"}, "ETH-USD", false},
		{"filtered client still receives symbol-agnostic event", []string{"BTC-USD"}, "", true},
		{"multi-symbol filter matches either", []string{"BTC-USD", "ETH-USD"}, "ETH-USD", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			filter := make(map[string]bool, len(tt.symbols))
			for _, s := range tt.symbols {
				filter[s] = true
			}
			c := &Client{symbols: filter}
			if got := c.wants(tt.event); got != tt.want {
				t.Errorf("wants(%q) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}
