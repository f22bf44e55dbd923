package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const gammaMarketsPath = "/markets"

// FindMarkets busca en Gamma los mercados con el slug dado.
// Los mercados que no se pueden mapear se descartan con un log; no son un error.
func (c *Client) FindMarkets(ctx context.Context, slug string) ([]domain.MarketWindow, error) {
	u := fmt.Sprintf("%s%s?slug=%s", c.gammaBase, gammaMarketsPath, url.QueryEscape(slug))

	var resp gammaMarketsResponse
	if err := c.get(ctx, c.gammaLimiter, u, &resp); err != nil {
		return nil, fmt.Errorf("gamma.FindMarkets: %s: %w", slug, err)
	}

	windows := make([]domain.MarketWindow, 0, len(resp))
	for _, gm := range resp {
		w, err := mapGammaMarket(gm)
		if err != nil {
			slog.Debug("gamma: skipping unmappable market", "slug", gm.Slug, "err", err)
			continue
		}
		windows = append(windows, w)
	}

	slog.Debug("gamma lookup complete", "slug", slug, "found", len(windows))
	return windows, nil
}
