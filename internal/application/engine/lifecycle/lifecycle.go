// Package lifecycle descubre la ventana activa de una familia Up/Down, la rota al expirar
// y fija el strike con la primera observación del precio de referencia.
package lifecycle

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/domain/strategy"
	"github.com/alejandrodnm/polyquoter/internal/ports"
)

// Config controla el lifecycle.
type Config struct {
	// Slug fija un mercado concreto y desactiva el generador de slugs de la estrategia.
	Slug string
	// PollInterval sobreescribe el de la estrategia si es > 0.
	PollInterval time.Duration
}

// Lifecycle es el único dueño del ActiveMarket. Tick corre en su propia goroutine
// (Run) y ObserveReference en la del coordinator, por eso el estado va bajo mutex.
type Lifecycle struct {
	discovery ports.MarketDiscovery
	strat     strategy.Strategy
	cfg       Config
	now       func() time.Time

	mu         sync.RWMutex
	active     domain.ActiveMarket
	prefetched string // conditionID de la siguiente ventana ya vista en pre-fetch
}

// New crea un lifecycle para la estrategia dada.
func New(discovery ports.MarketDiscovery, strat strategy.Strategy, cfg Config) *Lifecycle {
	return &Lifecycle{
		discovery: discovery,
		strat:     strat,
		cfg:       cfg,
		now:       time.Now,
	}
}

// PollInterval devuelve el intervalo efectivo del tick.
func (l *Lifecycle) PollInterval() time.Duration {
	if l.cfg.PollInterval > 0 {
		return l.cfg.PollInterval
	}
	return l.strat.PollInterval()
}

// Run ejecuta Tick al arrancar y en cada intervalo hasta que ctx se cancele.
// onRotate se llama (desde esta goroutine) con cada rotación.
func (l *Lifecycle) Run(ctx context.Context, onRotate func(domain.Rotation)) {
	ticker := time.NewTicker(l.PollInterval())
	defer ticker.Stop()

	for {
		if r, ok := l.Tick(ctx); ok {
			onRotate(r)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Current devuelve una copia del mercado activo. Zero value si no hay ninguno.
func (l *Lifecycle) Current() domain.ActiveMarket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Tick revisa la ventana activa. Si no hay o ya expiró, descubre la siguiente y,
// si es distinta, rota. Si está a punto de expirar hace un pre-fetch que no cambia estado.
func (l *Lifecycle) Tick(ctx context.Context) (domain.Rotation, bool) {
	now := l.now()
	cur := l.Current()

	if cur.Window.IsZero() || cur.Window.TimeToExpiry(now) <= 0 {
		w, ok := l.Discover(ctx, now)
		if !ok {
			if !cur.Window.IsZero() {
				slog.Debug("lifecycle: window expired, successor not published yet",
					"market", cur.Window.Label())
			}
			return domain.Rotation{}, false
		}
		if w.Same(cur.Window) {
			return domain.Rotation{}, false
		}
		return l.rotate(cur.Window, w, now), true
	}

	if cur.Window.TimeToExpiry(now) < 2*l.PollInterval() {
		l.prefetch(ctx, cur.Window)
	}
	return domain.Rotation{}, false
}

// Discover busca la ventana que contiene at. Los errores de discovery se loguean
// y se tratan como "sin resultado": el siguiente tick vuelve a intentarlo.
func (l *Lifecycle) Discover(ctx context.Context, at time.Time) (domain.MarketWindow, bool) {
	var candidates []domain.MarketWindow
	for _, slug := range l.slugs(at) {
		markets, err := l.discovery.FindMarkets(ctx, slug)
		if err != nil {
			slog.Warn("lifecycle: discovery failed", "slug", slug, "err", err)
			continue
		}
		for _, m := range markets {
			if covers(m, at) {
				candidates = append(candidates, m)
			}
		}
	}
	if len(candidates) == 0 {
		return domain.MarketWindow{}, false
	}

	// La que expira antes es la ventana en curso; la siguiente vendrá en otra rotación.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EndTime.Before(candidates[j].EndTime)
	})
	return candidates[0], true
}

// ObserveReference fija el strike con la primera observación tras activarse la ventana.
// Las siguientes observaciones no lo tocan. conditionID es la ventana que el llamador
// tiene adoptada: si el lifecycle ya rotó a otra, no se fija nada y el mercado devuelto
// es el nuevo, para que el llamador vea que va por detrás.
// Devuelve el mercado activo y si se fijó ahora.
func (l *Lifecycle) ObserveReference(conditionID string, price float64, at time.Time) (domain.ActiveMarket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.active.Window
	if w.IsZero() || w.ConditionID != conditionID || l.active.StrikeLocked() || price <= 0 {
		return l.active, false
	}
	if !w.StartTime.IsZero() && at.Before(w.StartTime) {
		return l.active, false
	}

	l.active.StrikePrice = price
	l.active.LockedAt = at
	slog.Info("lifecycle: strike locked", "market", w.Label(), "strike", price)
	return l.active, true
}

func (l *Lifecycle) rotate(prev, next domain.MarketWindow, now time.Time) domain.Rotation {
	l.mu.Lock()
	l.active = domain.ActiveMarket{Window: next}
	l.prefetched = ""
	l.mu.Unlock()

	slog.Info("lifecycle: rotated",
		"from", prev.Label(),
		"to", next.Label(),
		"condition", next.ConditionID,
		"ends", next.EndTime.Format(time.RFC3339),
		"tick", next.TickSize,
	)
	return domain.Rotation{Previous: prev, Current: next, At: now}
}

// prefetch busca la siguiente ventana solo para dejar constancia en el log.
func (l *Lifecycle) prefetch(ctx context.Context, cur domain.MarketWindow) {
	next, ok := l.Discover(ctx, cur.EndTime.Add(time.Second))
	if !ok || next.Same(cur) {
		return
	}

	l.mu.Lock()
	seen := l.prefetched == next.ConditionID
	l.prefetched = next.ConditionID
	l.mu.Unlock()

	if !seen {
		slog.Info("lifecycle: next window ready", "market", next.Label(), "condition", next.ConditionID)
	}
}

func (l *Lifecycle) slugs(at time.Time) []string {
	if l.cfg.Slug != "" {
		return []string{l.cfg.Slug}
	}
	return l.strat.Slugs(at)
}

// covers reports whether m is open and its [start, end) range contains at.
func covers(m domain.MarketWindow, at time.Time) bool {
	if m.IsZero() || m.Closed || !m.EndTime.After(at) {
		return false
	}
	return m.StartTime.IsZero() || !m.StartTime.After(at)
}
