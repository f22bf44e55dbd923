package polymarket

// ws.go: canales WebSocket del CLOB.
//
//   market: público, suscripción por asset ids → "book", "price_change"
//   user:   privado, suscripción por condition id + credenciales L2 → "trade", "order"
//
// El servidor espera un "PING" de texto cada ~10s y responde "PONG".

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/adapters/wsconn"
	"github.com/alejandrodnm/polyquoter/internal/domain"
)

const (
	defaultWSBase  = "wss://ws-subscriptions-clob.polymarket.com/ws"
	wsPingInterval = 10 * time.Second
	wsReadTimeout  = 30 * time.Second
)

// WSClient implements ports.MarketChannel and ports.UserChannel.
type WSClient struct {
	base string
	auth *AuthClient // solo necesario para el canal de usuario
	now  func() time.Time
}

// NewWSClient creates the channel client. auth may be nil if only the market channel is used.
func NewWSClient(base string, auth *AuthClient) *WSClient {
	if base == "" {
		base = defaultWSBase
	}
	return &WSClient{base: strings.TrimRight(base, "/"), auth: auth, now: time.Now}
}

// StreamBooks runs one market-channel session for the given assets.
func (c *WSClient) StreamBooks(ctx context.Context, assetIDs []string, onConnect func(), on func(domain.BookMessage)) error {
	opts := c.options("market")
	subscribe := func(w wsconn.Writer) error {
		if err := w.WriteJSON(wsSubscribe{Type: "market", AssetIDs: assetIDs}); err != nil {
			return err
		}
		if onConnect != nil {
			onConnect()
		}
		return nil
	}
	return wsconn.Run(ctx, opts, subscribe, func(raw []byte) {
		for _, msg := range c.parseMarket(raw) {
			on(msg)
		}
	})
}

// StreamUser runs one user-channel session for a market.
func (c *WSClient) StreamUser(ctx context.Context, conditionID string, onConnect func(), on func(domain.UserMessage)) error {
	if c.auth == nil {
		return fmt.Errorf("ws.StreamUser: no credentials configured")
	}
	creds, err := c.auth.credentials(ctx)
	if err != nil {
		return fmt.Errorf("ws.StreamUser: %w", err)
	}

	opts := c.options("user")
	subscribe := func(w wsconn.Writer) error {
		sub := wsSubscribe{
			Auth:    &wsAuth{APIKey: creds.APIKey, Secret: creds.Secret, Passphrase: creds.Passphrase},
			Type:    "user",
			Markets: []string{conditionID},
		}
		if err := w.WriteJSON(sub); err != nil {
			return err
		}
		if onConnect != nil {
			onConnect()
		}
		return nil
	}
	return wsconn.Run(ctx, opts, subscribe, func(raw []byte) {
		for _, msg := range c.parseUser(raw) {
			on(msg)
		}
	})
}

func (c *WSClient) options(channel string) wsconn.Options {
	return wsconn.Options{
		ID:           "polymarket:" + channel,
		URL:          c.base + "/" + channel,
		ReadTimeout:  wsReadTimeout,
		PingInterval: wsPingInterval,
		PingMessage:  []byte("PING"),
	}
}

// splitEvents acepta un objeto o un array de objetos.
func splitEvents(raw []byte) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == 'P' { // PONG
		return nil
	}
	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			slog.Debug("ws: unparseable array", "err", err)
			return nil
		}
		return arr
	}
	return []json.RawMessage{trimmed}
}

func (c *WSClient) parseMarket(raw []byte) []domain.BookMessage {
	now := c.now()
	var out []domain.BookMessage
	for _, ev := range splitEvents(raw) {
		var env wsEnvelope
		if err := json.Unmarshal(ev, &env); err != nil {
			continue
		}
		switch env.EventType {
		case "book":
			var b wsBookEvent
			if err := json.Unmarshal(ev, &b); err != nil {
				slog.Debug("ws: bad book event", "err", err)
				continue
			}
			out = append(out, mapBookEvent(b, now))
		case "price_change":
			var pc wsPriceChangeEvent
			if err := json.Unmarshal(ev, &pc); err != nil {
				slog.Debug("ws: bad price_change event", "err", err)
				continue
			}
			msg := mapPriceChangeEvent(pc, now)
			if len(msg.Changes) > 0 {
				out = append(out, msg)
			}
		}
	}
	return out
}

func (c *WSClient) parseUser(raw []byte) []domain.UserMessage {
	now := c.now()
	var out []domain.UserMessage
	for _, ev := range splitEvents(raw) {
		var env wsEnvelope
		if err := json.Unmarshal(ev, &env); err != nil {
			continue
		}
		switch env.EventType {
		case "trade":
			var t wsTradeEvent
			if err := json.Unmarshal(ev, &t); err != nil {
				slog.Debug("ws: bad trade event", "err", err)
				continue
			}
			fill := mapTradeEvent(t, now)
			out = append(out, domain.UserMessage{Fill: &fill})
		case "order":
			var o wsOrderEvent
			if err := json.Unmarshal(ev, &o); err != nil {
				slog.Debug("ws: bad order event", "err", err)
				continue
			}
			upd := mapOrderEvent(o, now)
			out = append(out, domain.UserMessage{Order: &upd})
		}
	}
	return out
}
