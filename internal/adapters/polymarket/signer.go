package polymarket

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/polymarket/go-order-utils/pkg/builder"
	gomodel "github.com/polymarket/go-order-utils/pkg/model"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// OrderSigner implements ports.OrderSigner with go-order-utils (EIP-712 CTF exchange orders).
type OrderSigner struct {
	privateKey   *ecdsa.PrivateKey
	orderBuilder builder.ExchangeOrderBuilder
}

// NewOrderSigner creates a signer for Polygon mainnet.
func NewOrderSigner(privateKeyHex string) (*OrderSigner, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	return &OrderSigner{
		privateKey:   key,
		orderBuilder: builder.NewExchangeOrderBuilderImpl(big.NewInt(polygonChainID), nil),
	}, nil
}

// SignOrder builds the order struct, hashes it under the selected exchange domain
// (neg-risk or regular CTF exchange) and signs it.
func (s *OrderSigner) SignOrder(_ context.Context, f domain.OrderFields) (domain.SignedOrder, error) {
	side := gomodel.BUY
	if f.Side == domain.Sell {
		side = gomodel.SELL
	}

	taker := f.Taker
	if taker == "" {
		taker = zeroAddress
	}

	orderData := &gomodel.OrderData{
		Maker:         f.Maker,
		Taker:         taker,
		TokenId:       f.TokenID,
		MakerAmount:   f.MakerAmount,
		TakerAmount:   f.TakerAmount,
		FeeRateBps:    orDefault(f.FeeRateBps, "0"),
		Nonce:         orDefault(f.Nonce, "0"),
		Signer:        f.Signer,
		Expiration:    orDefault(f.Expiration, "0"),
		Side:          side,
		SignatureType: gomodel.SignatureType(f.SignatureType),
	}

	verifyingContract := gomodel.CTFExchange
	if f.NegRisk {
		verifyingContract = gomodel.NegRiskCTFExchange
	}

	signed, err := s.orderBuilder.BuildSignedOrder(s.privateKey, orderData, verifyingContract)
	if err != nil {
		return domain.SignedOrder{}, fmt.Errorf("signer: build signed order: %w", err)
	}

	f.Taker = taker
	return domain.SignedOrder{
		Fields:    f,
		Salt:      signed.Order.Salt.String(),
		Signature: "0x" + hex.EncodeToString(signed.Signature),
	}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
