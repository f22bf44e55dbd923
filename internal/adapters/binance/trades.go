package binance

// trades.go: stream de trades de Binance como precio de referencia.
//
// wss://stream.binance.com:9443/ws/<symbol>@trade entrega un mensaje por trade.
// El servidor envía pings cada ~3 min; gorilla responde el pong automáticamente.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/adapters/wsconn"
	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const (
	defaultStreamBase = "wss://stream.binance.com:9443/ws"
	readTimeout       = 30 * time.Second
)

// tradeMessage es el payload raw del stream <symbol>@trade.
type tradeMessage struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// TradeStream implementa ports.TradeSource sobre el stream público de Binance.
type TradeStream struct {
	base string
	now  func() time.Time
}

// NewTradeStream crea el stream. Si base está vacío usa el endpoint de producción.
func NewTradeStream(base string) *TradeStream {
	if base == "" {
		base = defaultStreamBase
	}
	return &TradeStream{base: strings.TrimRight(base, "/"), now: time.Now}
}

// StreamTrades mantiene una sesión con el stream de trades de symbol.
func (s *TradeStream) StreamTrades(ctx context.Context, symbol string, onConnect func(), on func(domain.Trade)) error {
	symbol = strings.ToLower(symbol)
	opts := wsconn.Options{
		ID:          "binance:" + symbol,
		URL:         fmt.Sprintf("%s/%s@trade", s.base, symbol),
		ReadTimeout: readTimeout,
	}

	subscribe := func(wsconn.Writer) error {
		if onConnect != nil {
			onConnect()
		}
		return nil
	}

	return wsconn.Run(ctx, opts, subscribe, func(raw []byte) {
		trade, ok := s.parse(raw)
		if !ok {
			return
		}
		on(trade)
	})
}

func (s *TradeStream) parse(raw []byte) (domain.Trade, bool) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Debug("binance: unparseable message", "err", err)
		return domain.Trade{}, false
	}
	if msg.EventType != "trade" {
		return domain.Trade{}, false
	}
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		slog.Debug("binance: invalid price", "price", msg.Price)
		return domain.Trade{}, false
	}
	qty, _ := strconv.ParseFloat(msg.Quantity, 64)

	ts := msg.TradeTime
	if ts == 0 {
		ts = msg.EventTime
	}
	return domain.Trade{
		Symbol:     strings.ToLower(msg.Symbol),
		Price:      price,
		Size:       qty,
		Timestamp:  time.UnixMilli(ts).UTC(),
		ReceivedAt: s.now(),
	}, true
}
