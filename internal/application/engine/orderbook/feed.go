// Package orderbook mantiene los books de ambos tokens del mercado activo y
// reenvía fills y estados de orden del canal privado.
package orderbook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/ports"
)

const DefaultReconnectDelay = 2 * time.Second

// Handlers recibe los eventos del feed. Se llaman desde las goroutines de los canales,
// nunca con el lock del feed tomado. Cualquiera puede ser nil.
type Handlers struct {
	Book  func(domain.BookUpdate)
	Fill  func(domain.Fill)
	Order func(domain.OrderStatusUpdate)
}

// Feed es el dueño de los dos books. Cada Switch abre una generación nueva de canales;
// los mensajes de generaciones anteriores se descartan.
type Feed struct {
	market         ports.MarketChannel
	user           ports.UserChannel
	reconnectDelay time.Duration

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	window   domain.MarketWindow
	up, down domain.OrderBook
}

// New crea el feed. user puede ser nil (sin canal privado).
func New(market ports.MarketChannel, user ports.UserChannel, reconnectDelay time.Duration) *Feed {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Feed{market: market, user: user, reconnectDelay: reconnectDelay}
}

// Switch cierra las suscripciones actuales, vacía ambos books y se suscribe a w.
// No espera a que las sesiones viejas terminen: sus mensajes se filtran por generación.
func (f *Feed) Switch(ctx context.Context, w domain.MarketWindow, h Handlers) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	sessCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.window = w
	f.up = domain.OrderBook{TokenID: w.Up.TokenID}
	f.down = domain.OrderBook{TokenID: w.Down.TokenID}
	f.mu.Unlock()

	if w.IsZero() {
		return
	}

	slog.Info("orderbook: subscribing", "market", w.Label(), "condition", w.ConditionID)

	go f.keepAlive(sessCtx, "market", w, func(ctx context.Context) error {
		return f.market.StreamBooks(ctx, w.TokenIDs(), nil, func(m domain.BookMessage) {
			if u, ok := f.apply(gen, m); ok && h.Book != nil {
				h.Book(u)
			}
		})
	})

	if f.user == nil {
		return
	}
	go f.keepAlive(sessCtx, "user", w, func(ctx context.Context) error {
		return f.user.StreamUser(ctx, w.ConditionID, nil, func(m domain.UserMessage) {
			if !f.current(gen) {
				return
			}
			switch {
			case m.Fill != nil && h.Fill != nil:
				fill := *m.Fill
				if fill.ConditionID == "" {
					fill.ConditionID = w.ConditionID
				}
				h.Fill(fill)
			case m.Order != nil && h.Order != nil:
				o := *m.Order
				if o.ConditionID == "" {
					o.ConditionID = w.ConditionID
				}
				h.Order(o)
			}
		})
	})
}

// Stop cierra las suscripciones activas.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
}

// Books devuelve copias de ambos books.
func (f *Feed) Books() (up, down domain.OrderBook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up.Clone(), f.down.Clone()
}

// keepAlive reconecta un canal con delay fijo mientras ctx siga activo.
func (f *Feed) keepAlive(ctx context.Context, channel string, w domain.MarketWindow, session func(context.Context) error) {
	for {
		err := session(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("orderbook: channel disconnected, reconnecting",
			"channel", channel, "market", w.Label(), "delay", f.reconnectDelay, "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *Feed) current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return gen == f.gen
}

// apply aplica un snapshot o cambios incrementales y devuelve el estado resultante.
func (f *Feed) apply(gen uint64, m domain.BookMessage) (domain.BookUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return domain.BookUpdate{}, false
	}

	at := m.Timestamp
	if at.IsZero() {
		at = m.ReceivedAt
	}

	changed := false
	if s := m.Snapshot; s != nil {
		if book := f.book(s.TokenID); book != nil {
			*book = domain.NewOrderBook(s.TokenID, s.Bids, s.Asks)
			book.UpdatedAt = at
			changed = true
		}
	}
	for _, c := range m.Changes {
		if book := f.book(c.AssetID); book != nil {
			book.SetLevel(c.Side, c.Price, c.Size)
			book.UpdatedAt = at
			changed = true
		}
	}
	if !changed {
		return domain.BookUpdate{}, false
	}

	return domain.BookUpdate{
		ConditionID: f.window.ConditionID,
		Up:          f.up.Clone(),
		Down:        f.down.Clone(),
		ReceivedAt:  m.ReceivedAt,
	}, true
}

func (f *Feed) book(assetID string) *domain.OrderBook {
	switch assetID {
	case f.window.Up.TokenID:
		return &f.up
	case f.window.Down.TokenID:
		return &f.down
	default:
		return nil
	}
}
