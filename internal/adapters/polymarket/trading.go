package polymarket

// trading.go: Real order execution via Polymarket CLOB API.
//
// Implements ports.Venue using AuthClient for L1/L2 auth.
// Quotes are placed as GTC limit orders. Order POSTs are never retried:
// a timeout may still have reached the matching engine.

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const (
	orderTypeGTC     = "GTC"
	heartbeatRetries = 1
)

// TradingClient implements ports.Venue.
type TradingClient struct {
	auth     *AuthClient
	postOnly bool
}

// NewTradingClient creates a TradingClient. postOnly makes the CLOB reject
// orders that would cross the book instead of taking liquidity.
func NewTradingClient(auth *AuthClient, postOnly bool) *TradingClient {
	return &TradingClient{auth: auth, postOnly: postOnly}
}

// clobPostOrder añade postOnly al request de orden.
type clobPostOrder struct {
	clobOrderRequest
	PostOnly bool `json:"postOnly,omitempty"`
}

func (tc *TradingClient) toRequest(o domain.SignedOrder, owner string) clobPostOrder {
	f := o.Fields
	return clobPostOrder{
		clobOrderRequest: clobOrderRequest{
			Order: clobOrderBody{
				Salt:          json.Number(o.Salt),
				Maker:         f.Maker,
				Signer:        f.Signer,
				Taker:         f.Taker,
				TokenID:       f.TokenID,
				MakerAmount:   f.MakerAmount,
				TakerAmount:   f.TakerAmount,
				Expiration:    orDefault(f.Expiration, "0"),
				Nonce:         orDefault(f.Nonce, "0"),
				FeeRateBps:    orDefault(f.FeeRateBps, "0"),
				Side:          f.Side.String(),
				SignatureType: f.SignatureType,
				Signature:     o.Signature,
			},
			Owner:     owner,
			OrderType: orderTypeGTC,
		},
		PostOnly: tc.postOnly,
	}
}

// PostOrders submits a batch in a single request. Results keep the input order.
func (tc *TradingClient) PostOrders(ctx context.Context, orders []domain.SignedOrder) ([]domain.OrderResult, error) {
	creds, err := tc.auth.credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("post orders: creds: %w", err)
	}

	body := make([]clobPostOrder, 0, len(orders))
	for _, o := range orders {
		body = append(body, tc.toRequest(o, creds.APIKey))
	}

	var resp []clobOrderResponse
	if err := tc.auth.doL2(ctx, tc.auth.ordersLimiter, http.MethodPost, "/orders", body, &resp, 0); err != nil {
		return nil, fmt.Errorf("post orders: %w", err)
	}
	if len(resp) != len(orders) {
		return nil, fmt.Errorf("post orders: expected %d results, got %d", len(orders), len(resp))
	}

	results := make([]domain.OrderResult, len(resp))
	for i, r := range resp {
		results[i] = mapOrderResponse(r)
	}
	return results, nil
}

// PostOrder submits a single order.
func (tc *TradingClient) PostOrder(ctx context.Context, order domain.SignedOrder) (domain.OrderResult, error) {
	creds, err := tc.auth.credentials(ctx)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("post order: creds: %w", err)
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, tc.auth.ordersLimiter, http.MethodPost, "/order", tc.toRequest(order, creds.APIKey), &resp, 0); err != nil {
		return domain.OrderResult{}, fmt.Errorf("post order: %w", err)
	}

	result := mapOrderResponse(resp)
	if !result.OK() {
		return result, fmt.Errorf("post order: clob error: %s", resp.ErrorMsg)
	}
	return result, nil
}

// CancelAll cancels all open orders for this wallet.
func (tc *TradingClient) CancelAll(ctx context.Context) error {
	var resp clobCancelResponse
	if err := tc.auth.doL2(ctx, tc.auth.clobLimiter, http.MethodDelete, "/cancel-all", nil, &resp, maxRetries); err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	return nil
}

// CancelMarket cancels every open order in a market, optionally restricted to one asset.
func (tc *TradingClient) CancelMarket(ctx context.Context, conditionID, assetID string) error {
	body := clobCancelMarketRequest{Market: conditionID, AssetID: assetID}
	var resp clobCancelResponse
	if err := tc.auth.doL2(ctx, tc.auth.clobLimiter, http.MethodDelete, "/cancel-market-orders", body, &resp, maxRetries); err != nil {
		return fmt.Errorf("cancel market %s: %w", conditionID, err)
	}
	return nil
}

// FeeRateBps returns the base fee for a token in basis points.
func (tc *TradingClient) FeeRateBps(ctx context.Context, tokenID string) (int, error) {
	url := fmt.Sprintf("%s/fee-rate?token_id=%s", tc.auth.clobBase, tokenID)

	var resp clobFeeRateResponse
	if err := tc.auth.get(ctx, tc.auth.clobLimiter, url, &resp); err != nil {
		return 0, fmt.Errorf("fee rate: %w", err)
	}
	raw := resp.FeeRateBps
	if raw == "" {
		raw = resp.BaseFee
	}
	if raw == "" {
		return 0, nil
	}
	bps, err := raw.Int64()
	if err != nil {
		return 0, fmt.Errorf("fee rate: parse %q: %w", raw, err)
	}
	return int(bps), nil
}

// Heartbeat keeps the trading session alive. The returned id must be echoed
// on the next call; an empty id starts a new session.
func (tc *TradingClient) Heartbeat(ctx context.Context, heartbeatID string) (string, error) {
	var resp clobHeartbeatResponse
	body := clobHeartbeatRequest{HeartbeatID: heartbeatID}
	if err := tc.auth.doL2(ctx, tc.auth.clobLimiter, http.MethodPost, "/heartbeats", body, &resp, heartbeatRetries); err != nil {
		return "", fmt.Errorf("heartbeat: %w", err)
	}
	if resp.HeartbeatID == "" {
		return heartbeatID, nil
	}
	return resp.HeartbeatID, nil
}

func mapOrderResponse(r clobOrderResponse) domain.OrderResult {
	return domain.OrderResult{
		OrderID:  r.OrderID,
		Status:   r.Status,
		Success:  r.Success,
		ErrorMsg: r.ErrorMsg,
	}
}
