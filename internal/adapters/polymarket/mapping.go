package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const defaultTickSize = 0.01

// mapGammaMarket convierte un gammaMarket a domain.MarketWindow.
// El primer token es el outcome "Up" salvo que outcomes indique otro orden.
func mapGammaMarket(gm gammaMarket) (domain.MarketWindow, error) {
	var tokenIDs []string
	if err := json.Unmarshal([]byte(gm.ClobTokenIDs), &tokenIDs); err != nil {
		return domain.MarketWindow{}, fmt.Errorf("parse clobTokenIds %q: %w", gm.ClobTokenIDs, err)
	}
	if len(tokenIDs) != 2 {
		return domain.MarketWindow{}, fmt.Errorf("expected 2 token ids, got %d", len(tokenIDs))
	}

	outcomes := []string{"Up", "Down"}
	if gm.Outcomes != "" {
		var parsed []string
		if err := json.Unmarshal([]byte(gm.Outcomes), &parsed); err == nil && len(parsed) == 2 {
			outcomes = parsed
		}
	}

	up, down := 0, 1
	if strings.EqualFold(outcomes[1], "up") || strings.EqualFold(outcomes[0], "down") {
		up, down = 1, 0
	}

	tick := defaultTickSize
	if v, err := gm.TickSize.Float64(); err == nil && v > 0 {
		tick = v
	}

	start := parseTime(gm.EventStartTime)
	if start.IsZero() {
		start = parseTime(gm.StartDate)
	}
	end := parseTime(gm.EndDate)
	if end.IsZero() {
		return domain.MarketWindow{}, fmt.Errorf("market %s has no end date", gm.Slug)
	}

	return domain.MarketWindow{
		ConditionID:     gm.ConditionID,
		Slug:            gm.Slug,
		Question:        gm.Question,
		Up:              domain.Token{TokenID: tokenIDs[up], Outcome: outcomes[up]},
		Down:            domain.Token{TokenID: tokenIDs[down], Outcome: outcomes[down]},
		TickSize:        tick,
		NegRisk:         gm.NegRisk,
		StartTime:       start,
		EndTime:         end,
		Active:          gm.Active,
		Closed:          gm.Closed,
		AcceptingOrders: gm.AcceptingOrders,
	}, nil
}

// mapBookEvent convierte un evento "book" a un snapshot.
func mapBookEvent(ev wsBookEvent, receivedAt time.Time) domain.BookMessage {
	bids, asks := ev.Bids, ev.Asks
	if len(bids) == 0 && len(asks) == 0 {
		bids, asks = ev.Buys, ev.Sells
	}
	book := domain.NewOrderBook(ev.AssetID, mapBookEntries(bids), mapBookEntries(asks))
	book.UpdatedAt = receivedAt
	return domain.BookMessage{
		ConditionID: ev.Market,
		Snapshot:    &book,
		Timestamp:   parseTime(ev.Timestamp),
		ReceivedAt:  receivedAt,
	}
}

// mapPriceChangeEvent convierte un evento "price_change" a cambios incrementales.
func mapPriceChangeEvent(ev wsPriceChangeEvent, receivedAt time.Time) domain.BookMessage {
	raw := ev.PriceChanges
	if len(raw) == 0 {
		raw = ev.Changes
	}
	changes := make([]domain.LevelChange, 0, len(raw))
	for _, c := range raw {
		side, ok := domain.ParseSide(c.Side)
		if !ok {
			continue
		}
		price := domain.ParsePrice(c.Price)
		if price <= 0 {
			continue
		}
		assetID := c.AssetID
		if assetID == "" {
			assetID = ev.AssetID
		}
		changes = append(changes, domain.LevelChange{
			AssetID: assetID,
			Side:    side,
			Price:   price,
			Size:    domain.ParsePrice(c.Size),
		})
	}
	return domain.BookMessage{
		ConditionID: ev.Market,
		Changes:     changes,
		Timestamp:   parseTime(ev.Timestamp),
		ReceivedAt:  receivedAt,
	}
}

// mapTradeEvent convierte un evento "trade" del canal de usuario.
func mapTradeEvent(ev wsTradeEvent, receivedAt time.Time) domain.Fill {
	side, _ := domain.ParseSide(ev.Side)
	makers := make([]domain.MakerFill, 0, len(ev.MakerOrders))
	for _, mo := range ev.MakerOrders {
		mside, ok := domain.ParseSide(mo.Side)
		if !ok {
			// el maker está en el lado contrario del taker
			mside = domain.Sell
			if side == domain.Sell {
				mside = domain.Buy
			}
		}
		makers = append(makers, domain.MakerFill{
			OrderID:       mo.OrderID,
			AssetID:       mo.AssetID,
			MatchedAmount: domain.ParsePrice(mo.MatchedAmount),
			Price:         domain.ParsePrice(mo.Price),
			Side:          mside,
		})
	}
	return domain.Fill{
		TradeID:      ev.ID,
		ConditionID:  ev.Market,
		AssetID:      ev.AssetID,
		Side:         side,
		Price:        domain.ParsePrice(ev.Price),
		Size:         domain.ParsePrice(ev.Size),
		Status:       strings.ToUpper(ev.Status),
		TakerOrderID: ev.TakerOrderID,
		MakerOrders:  makers,
		Timestamp:    parseTime(ev.Timestamp),
		ReceivedAt:   receivedAt,
	}
}

// mapOrderEvent convierte un evento "order" del canal de usuario.
func mapOrderEvent(ev wsOrderEvent, receivedAt time.Time) domain.OrderStatusUpdate {
	side, _ := domain.ParseSide(ev.Side)
	return domain.OrderStatusUpdate{
		OrderID:      ev.ID,
		ConditionID:  ev.Market,
		AssetID:      ev.AssetID,
		Side:         side,
		Price:        domain.ParsePrice(ev.Price),
		OriginalSize: domain.ParsePrice(ev.OriginalSize),
		SizeMatched:  domain.ParsePrice(ev.SizeMatched),
		Type:         strings.ToUpper(ev.Type),
		ReceivedAt:   receivedAt,
	}
}

// mapBookEntries convierte entries raw a domain.BookEntry. El orden lo fija NewOrderBook.
func mapBookEntries(raw []bookEntryRaw) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}
	return entries
}

// parseTime acepta unix (s o ms) o ISO 8601. Devuelve zero time si no se puede parsear.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	// Polymarket usa varios formatos; intentamos los más comunes
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05-07",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
