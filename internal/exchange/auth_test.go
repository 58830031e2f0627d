package exchange

import (
	"errors"
	"testing"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
)

func testAuthConfig() config.Config {
	var cfg config.Config
	cfg.Wallet.PrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	cfg.Wallet.ChainID = 137
	return cfg
}

func TestBuildHMACDeterministic(t *testing.T) {
	t.Parallel()

	a, err := NewAuth(testAuthConfig())
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	a.creds = Credentials{ApiKey: "k", Secret: "c2VjcmV0LXZhbHVl", Passphrase: "p"}

	sig1, err := a.buildHMAC("1000", "POST", "/orders", `{"a":1}`)
	if err != nil {
		t.Fatalf("buildHMAC: %v", err)
	}
	sig2, err := a.buildHMAC("1000", "POST", "/orders", `{"a":1}`)
	if err != nil {
		t.Fatalf("buildHMAC: %v", err)
	}
	if sig1 != sig2 {
		t.Errorf("buildHMAC not deterministic: %s != %s", sig1, sig2)
	}

	sig3, err := a.buildHMAC("1001", "POST", "/orders", `{"a":1}`)
	if err != nil {
		t.Fatalf("buildHMAC: %v", err)
	}
	if sig1 == sig3 {
		t.Error("buildHMAC should differ when timestamp changes")
	}
}

func TestEnsureSessionSkipsWhenCredsPresent(t *testing.T) {
	t.Parallel()

	a, err := NewAuth(testAuthConfig())
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	a.creds = Credentials{ApiKey: "k", Secret: "c2VjcmV0", Passphrase: "p"}

	called := false
	err = a.EnsureSession(func() (Credentials, error) {
		called = true
		return Credentials{}, nil
	})
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if called {
		t.Error("EnsureSession should not re-derive when credentials already present")
	}
}

func TestEnsureSessionDerivesWhenMissing(t *testing.T) {
	t.Parallel()

	a, err := NewAuth(testAuthConfig())
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}

	called := false
	err = a.EnsureSession(func() (Credentials, error) {
		called = true
		return Credentials{ApiKey: "derived", Secret: "c2VjcmV0", Passphrase: "p"}, nil
	})
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if !called {
		t.Error("EnsureSession should derive when no credentials are configured")
	}
	if a.creds.ApiKey != "derived" {
		t.Errorf("creds.ApiKey = %q, want %q", a.creds.ApiKey, "derived")
	}
}

func TestEnsureSessionPropagatesDeriveError(t *testing.T) {
	t.Parallel()

	a, err := NewAuth(testAuthConfig())
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}

	wantErr := errors.New("handshake rejected")
	err = a.EnsureSession(func() (Credentials, error) {
		return Credentials{}, wantErr
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
