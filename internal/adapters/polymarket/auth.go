package polymarket

// auth.go: Polymarket CLOB authenticated client.
//
// Implements two-level authentication:
//   L1: EIP-712 signature with wallet private key → derive API credentials
//   L2: HMAC-SHA256 signing of every authenticated request

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"golang.org/x/time/rate"
)

const (
	polygonChainID = int64(137)

	// CLOB EIP-712 auth domain
	clobDomainName    = "ClobAuthDomain"
	clobDomainVersion = "1"
	// Message signed for deriving API keys
	clobAuthMessage = "This message attests that I control the given wallet"

	// Taker cero: orden pública
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// Signature types accepted by the CTF exchange.
const (
	SignatureEOA        = 0
	SignaturePolyProxy  = 1
	SignatureGnosisSafe = 2
)

// apiCredentials holds the CLOB API credentials derived from a wallet.
type apiCredentials struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// AuthClient wraps the base Client with L1/L2 auth capabilities.
type AuthClient struct {
	*Client
	privateKey *ecdsa.PrivateKey
	address    common.Address // signer (EOA)
	funder     common.Address // maker; igual al signer para EOA
	sigType    int

	mu    sync.Mutex
	creds *apiCredentials
}

// NewAuthClient creates an authenticated trading client.
// privateKeyHex is the Polygon private key, with or without 0x prefix.
// funder may be empty, in which case the signer address is used.
func NewAuthClient(client *Client, privateKeyHex, funder string, sigType int) (*AuthClient, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	funderAddr := addr
	if funder != "" {
		if !common.IsHexAddress(funder) {
			return nil, fmt.Errorf("auth: invalid funder address %q", funder)
		}
		funderAddr = common.HexToAddress(funder)
	}
	if sigType == SignatureEOA && funderAddr != addr {
		return nil, fmt.Errorf("auth: funder %s does not match key address %s for EOA signatures", funderAddr.Hex(), addr.Hex())
	}

	return &AuthClient{
		Client:     client,
		privateKey: key,
		address:    addr,
		funder:     funderAddr,
		sigType:    sigType,
	}, nil
}

// ParsePrivateKey parses a hex private key with optional 0x prefix.
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// Address returns the signer wallet address.
func (ac *AuthClient) Address() string {
	return ac.address.Hex()
}

// Funder returns the maker address (proxy wallet or the signer itself).
func (ac *AuthClient) Funder() string {
	return ac.funder.Hex()
}

// SignatureType returns the configured CTF signature type.
func (ac *AuthClient) SignatureType() int {
	return ac.sigType
}

// EnsureCreds derives (or re-derives) API credentials via L1 auth.
// Should be called once on startup; credentials are cached.
func (ac *AuthClient) EnsureCreds(ctx context.Context) error {
	_, err := ac.credentials(ctx)
	return err
}

func (ac *AuthClient) credentials(ctx context.Context) (apiCredentials, error) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.creds != nil {
		return *ac.creds, nil
	}

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig, err := ac.signClobAuth(ts, "0")
	if err != nil {
		return apiCredentials{}, fmt.Errorf("auth: sign l1: %w", err)
	}

	url := ac.clobBase + "/auth/derive-api-key"
	var creds apiCredentials
	err = ac.send(ctx, ac.http, ac.clobLimiter, 1, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("POLY_ADDRESS", ac.address.Hex())
		req.Header.Set("POLY_SIGNATURE", sig)
		req.Header.Set("POLY_TIMESTAMP", ts)
		req.Header.Set("POLY_NONCE", "0")
		return req, nil
	}, &creds)
	if err != nil {
		return apiCredentials{}, fmt.Errorf("auth: derive-api-key: %w", err)
	}
	if creds.APIKey == "" || creds.Secret == "" {
		return apiCredentials{}, fmt.Errorf("auth: derive-api-key returned empty credentials")
	}
	ac.creds = &creds
	return creds, nil
}

// clobAuthTypes es el typed data EIP-712 que firma la derivación L1.
var clobAuthTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"ClobAuth": {
		{Name: "address", Type: "address"},
		{Name: "timestamp", Type: "string"},
		{Name: "nonce", Type: "uint256"},
		{Name: "message", Type: "string"},
	},
}

// signClobAuth firma el mensaje ClobAuth con la clave del signer.
func (ac *AuthClient) signClobAuth(timestamp, nonce string) (string, error) {
	td := apitypes.TypedData{
		Types:       clobAuthTypes,
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    clobDomainName,
			Version: clobDomainVersion,
			ChainId: ethmath.NewHexOrDecimal256(polygonChainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   ac.address.Hex(),
			"timestamp": timestamp,
			"nonce":     nonce,
			"message":   clobAuthMessage,
		},
	}
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, ac.privateKey)
	if err != nil {
		return "", err
	}
	sig[64] += 27 // V en formato 27/28
	return hexutil.Encode(sig), nil
}

// l2Headers firma ts+METHOD+path+body con el secret de la API (HMAC-SHA256).
func (ac *AuthClient) l2Headers(creds apiCredentials, method, path, body string) (http.Header, error) {
	secret, err := decodeSecret(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth: decode secret: %w", err)
	}
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	mac := hmac.New(sha256.New, secret)
	io.WriteString(mac, ts+strings.ToUpper(method)+path+body)

	h := make(http.Header, 5)
	h.Set("POLY_ADDRESS", ac.address.Hex())
	h.Set("POLY_SIGNATURE", base64.URLEncoding.EncodeToString(mac.Sum(nil)))
	h.Set("POLY_TIMESTAMP", ts)
	h.Set("POLY_API_KEY", creds.APIKey)
	h.Set("POLY_PASSPHRASE", creds.Passphrase)
	return h, nil
}

// decodeSecret acepta el secret con o sin padding.
func decodeSecret(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
}

// doL2 envía una request autenticada L2. Las cabeceras HMAC se firman en cada
// intento. retries=0 la envía una sola vez: un submit de órdenes nunca se duplica.
// Las órdenes van por el client de timeout corto.
func (ac *AuthClient) doL2(ctx context.Context, limiter *rate.Limiter, method, path string, reqBody, out any, retries int) error {
	creds, err := ac.credentials(ctx)
	if err != nil {
		return err
	}

	var body string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = string(b)
	}

	hc := ac.http
	if limiter == ac.ordersLimiter {
		hc = ac.orderHTTP
	}

	err = ac.send(ctx, hc, limiter, retries, func() (*http.Request, error) {
		headers, err := ac.l2Headers(creds, method, path, body)
		if err != nil {
			return nil, err
		}
		var r io.Reader
		if body != "" {
			r = strings.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, ac.clobBase+path, r)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header[k] = v
		}
		return req, nil
	}, out)
	if IsStatus(err, http.StatusUnauthorized) {
		// Credenciales revocadas: la próxima llamada las deriva de nuevo.
		ac.mu.Lock()
		ac.creds = nil
		ac.mu.Unlock()
	}
	return err
}
