package polymarket

import (
	"encoding/base64"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const internalTestKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestSignClobAuth_RecoversSigner(t *testing.T) {
	ac, err := NewAuthClient(NewClient("", ""), internalTestKey, "", SignatureEOA)
	require.NoError(t, err)

	sigHex, err := ac.signClobAuth("1760900400", "0")
	require.NoError(t, err)
	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	digest, _, err := apitypes.TypedDataAndHash(apitypes.TypedData{
		Types:       clobAuthTypes,
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    clobDomainName,
			Version: clobDomainVersion,
			ChainId: ethmath.NewHexOrDecimal256(polygonChainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   ac.Address(),
			"timestamp": "1760900400",
			"nonce":     "0",
			"message":   clobAuthMessage,
		},
	})
	require.NoError(t, err)

	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, ac.Address(), crypto.PubkeyToAddress(*pub).Hex())
}

func TestDecodeSecret_PaddingOptional(t *testing.T) {
	raw := []byte("super-secret-key")
	padded := base64.URLEncoding.EncodeToString(raw)
	unpadded := base64.RawURLEncoding.EncodeToString(raw)

	for _, s := range []string{padded, unpadded, " " + padded + "\n"} {
		got, err := decodeSecret(s)
		require.NoError(t, err, s)
		assert.Equal(t, raw, got)
	}
}

func TestL2Headers_SignatureChangesWithBody(t *testing.T) {
	ac, err := NewAuthClient(NewClient("", ""), internalTestKey, "", SignatureEOA)
	require.NoError(t, err)
	creds := apiCredentials{APIKey: "k", Secret: base64.URLEncoding.EncodeToString([]byte("s")), Passphrase: "p"}

	a, err := ac.l2Headers(creds, "post", "/order", `{"a":1}`)
	require.NoError(t, err)
	b, err := ac.l2Headers(creds, "POST", "/order", `{"a":2}`)
	require.NoError(t, err)

	assert.Equal(t, "k", a.Get("POLY_API_KEY"))
	assert.Equal(t, "p", a.Get("POLY_PASSPHRASE"))
	assert.Equal(t, ac.Address(), a.Get("POLY_ADDRESS"))
	assert.NotEqual(t, a.Get("POLY_SIGNATURE"), b.Get("POLY_SIGNATURE"))

	_, err = ac.l2Headers(apiCredentials{Secret: "%%%"}, "GET", "/", "")
	assert.Error(t, err)
}
