package ports

import (
	"context"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// Cada Stream* mantiene UNA sesión: conecta, suscribe, llama onConnect y entrega
// mensajes hasta que la conexión cae (devuelve el error) o ctx se cancela (devuelve nil).
// La política de reconexión es de quien llama.

// TradeSource entrega los trades del activo de referencia.
type TradeSource interface {
	StreamTrades(ctx context.Context, symbol string, onConnect func(), on func(domain.Trade)) error
}

// MarketChannel es el canal público de books de Polymarket.
type MarketChannel interface {
	StreamBooks(ctx context.Context, assetIDs []string, onConnect func(), on func(domain.BookMessage)) error
}

// UserChannel es el canal privado de fills y estados de orden.
type UserChannel interface {
	StreamUser(ctx context.Context, conditionID string, onConnect func(), on func(domain.UserMessage)) error
}
