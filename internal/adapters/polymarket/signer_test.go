package polymarket_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyquoter/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyquoter/internal/domain"
)

func TestOrderSigner_SignOrder(t *testing.T) {
	signer, err := polymarket.NewOrderSigner(testKey)
	require.NoError(t, err)

	fields := domain.OrderFields{
		Maker:       testAddress,
		Signer:      testAddress,
		TokenID:     "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount: "4300000",
		TakerAmount: "10000000",
		Side:        domain.Buy,
	}

	for _, negRisk := range []bool{false, true} {
		fields.NegRisk = negRisk
		signed, err := signer.SignOrder(context.Background(), fields)
		require.NoError(t, err)

		assert.NotEmpty(t, signed.Salt)
		// 65 bytes → 0x + 130 hex
		assert.Len(t, signed.Signature, 132)
		assert.Equal(t, "0x0000000000000000000000000000000000000000", signed.Fields.Taker)
		assert.Equal(t, fields.MakerAmount, signed.Fields.MakerAmount)
	}
}

func TestOrderSigner_InvalidKey(t *testing.T) {
	_, err := polymarket.NewOrderSigner("not-a-key")
	assert.Error(t, err)
}
