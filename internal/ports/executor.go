package ports

import (
	"context"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// OrderSigner firma órdenes del CTF exchange. Opaco para el engine: dados los
// campos normalizados devuelve salt + firma.
type OrderSigner interface {
	SignOrder(ctx context.Context, fields domain.OrderFields) (domain.SignedOrder, error)
}

// Venue es la API REST autenticada del CLOB.
type Venue interface {
	// CancelAll cancela todas las órdenes abiertas de la cuenta.
	CancelAll(ctx context.Context) error

	// CancelMarket cancela las órdenes de un mercado (y opcionalmente solo de un asset).
	CancelMarket(ctx context.Context, conditionID, assetID string) error

	// PostOrders envía un batch. Devuelve un resultado por orden, en el mismo orden.
	PostOrders(ctx context.Context, orders []domain.SignedOrder) ([]domain.OrderResult, error)

	// PostOrder envía una sola orden (fallback del batch).
	PostOrder(ctx context.Context, order domain.SignedOrder) (domain.OrderResult, error)

	// FeeRateBps devuelve la fee base del token en basis points.
	FeeRateBps(ctx context.Context, tokenID string) (int, error)

	// Heartbeat mantiene viva la sesión. Devuelve el id a reenviar en la siguiente llamada.
	Heartbeat(ctx context.Context, heartbeatID string) (string, error)
}
