package ports

import (
	"context"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

// MarketDiscovery busca las ventanas Up/Down publicadas en Gamma.
type MarketDiscovery interface {
	// FindMarkets devuelve los mercados cuyo slug coincide exactamente.
	// Un slug sin mercado devuelve una lista vacía, no un error.
	FindMarkets(ctx context.Context, slug string) ([]domain.MarketWindow, error)
}
