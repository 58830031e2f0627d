package exchange

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/londonpotato1/standx-maker-bot/internal/config"
)

// Credentials holds the L2 API key triplet the venue issues after a
// one-time L1 handshake. Used for HMAC-signed trading requests.
type Credentials struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Auth is the signing collaborator described as opaque at the quoting
// engine's boundary: it knows only how to attach a signature header set to
// an outgoing request, and how to ensure a session exists before the first
// call. Internally it implements two layers, matching the venue's:
//
//   - L1 (EIP-712): used once to derive L2 API keys from wallet ownership.
//   - L2 (HMAC-SHA256): used for every trading request, signing
//     "timestamp + method + path [+ body]".
type Auth struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	chainID       *big.Int

	mu    sync.Mutex
	creds Credentials
}

// NewAuth creates an Auth instance from the wallet configuration.
func NewAuth(cfg config.Config) (*Auth, error) {
	keyHex := cfg.Wallet.PrivateKey
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	var funder common.Address
	if cfg.Wallet.FunderAddress != "" {
		funder = common.HexToAddress(cfg.Wallet.FunderAddress)
	} else {
		funder = address
	}

	return &Auth{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		chainID:       big.NewInt(int64(cfg.Wallet.ChainID)),
		creds: Credentials{
			ApiKey:     cfg.API.ApiKey,
			Secret:     cfg.API.Secret,
			Passphrase: cfg.API.Passphrase,
		},
	}, nil
}

// Address returns the signer's Ethereum address.
func (a *Auth) Address() common.Address { return a.address }

// FunderAddress returns the funder/proxy wallet address.
func (a *Auth) FunderAddress() common.Address { return a.funderAddress }

// EnsureSession derives L2 API credentials via the L1 handshake if they are
// not already configured. Safe to call on every startup; a no-op once
// credentials are present.
func (a *Auth) EnsureSession(derive func() (Credentials, error)) error {
	a.mu.Lock()
	has := a.creds.ApiKey != "" && a.creds.Secret != "" && a.creds.Passphrase != ""
	a.mu.Unlock()
	if has {
		return nil
	}

	creds, err := derive()
	if err != nil {
		return fmt.Errorf("derive session credentials: %w", err)
	}
	a.mu.Lock()
	a.creds = creds
	a.mu.Unlock()
	return nil
}

// L1Headers produces headers for the one-time session-establishment call.
func (a *Auth) L1Headers(nonce int) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.signAuthMessage(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign auth message: %w", err)
	}

	return map[string]string{
		"X-ADDRESS":   a.address.Hex(),
		"X-SIGNATURE": sig,
		"X-TIMESTAMP": timestamp,
		"X-NONCE":     strconv.Itoa(nonce),
	}, nil
}

// Sign attaches the L2 HMAC signature headers for a trading request. This
// is the sign(request) -> headers operation the strategy/order manager
// treat as opaque.
func (a *Auth) Sign(method, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := a.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}

	a.mu.Lock()
	creds := a.creds
	a.mu.Unlock()

	return map[string]string{
		"X-ADDRESS":    a.address.Hex(),
		"X-SIGNATURE":  sig,
		"X-TIMESTAMP":  timestamp,
		"X-API-KEY":    creds.ApiKey,
		"X-PASSPHRASE": creds.Passphrase,
	}, nil
}

// signAuthMessage produces an EIP-712 signature proving wallet ownership.
func (a *Auth) signAuthMessage(timestamp string, nonce int) (string, error) {
	sig, err := a.signTypedData(
		&apitypes.TypedDataDomain{
			Name:    "MakerAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(a.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"SessionAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"address":   a.address.Hex(),
			"timestamp": timestamp,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
		"SessionAuth",
	)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return "0x" + common.Bytes2Hex(sig), nil
}

// signTypedData signs EIP-712 typed data and normalizes V to 27/28.
func (a *Auth) signTypedData(
	domain *apitypes.TypedDataDomain,
	typesDef apitypes.Types,
	message apitypes.TypedDataMessage,
	primaryType string,
) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, a.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}

	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// buildHMAC computes the HMAC-SHA256 signature for L2 auth.
// message = timestamp + method + requestPath [+ body]
func (a *Auth) buildHMAC(timestamp, method, path, body string) (string, error) {
	a.mu.Lock()
	secret := a.creds.Secret
	a.mu.Unlock()

	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}
