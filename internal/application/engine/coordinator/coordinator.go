// Package coordinator conecta los componentes del quoter a través de un único inbox.
// Una sola goroutine procesa los eventos en orden: cada tick de precio se procesa
// entero (strike, fair value, quote, riesgo, ciclo) antes del siguiente.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/application/engine/execution"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/latency"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/lifecycle"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/marketdata"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/orderbook"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/quoting"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/risk"
	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/ports"
)

const (
	defaultInboxSize       = 1024
	defaultShutdownTimeout = 10 * time.Second
	journalQueueSize       = 256
	journalWriteTimeout    = 5 * time.Second
)

// Config controla el coordinator.
type Config struct {
	InboxSize       int
	StatusInterval  time.Duration // 0 desactiva el status periódico
	ShutdownTimeout time.Duration // límite del cancel-all de salida
}

// Deps son los componentes que el coordinator orquesta. Journal y Notifier pueden ser nil.
type Deps struct {
	Lifecycle  *lifecycle.Lifecycle
	MarketData *marketdata.Feed
	Books      *orderbook.Feed
	Quoting    *quoting.Engine
	Risk       *risk.Guard
	Execution  *execution.Controller
	Latency    *latency.Monitor
	Journal    ports.Journal
	Notifier   ports.StatusNotifier
}

// Coordinator es el sequencer del quoter.
type Coordinator struct {
	cfg  Config
	deps Deps

	inbox chan event
	jobs  chan func(context.Context) error
	now   func() time.Time

	// Estado del loop: solo lo toca la goroutine de Run.
	market        domain.ActiveMarket
	ready         bool // execution ya adoptó la ventana actual
	cycleInFlight bool
	spot, vol     float64
	fairValue     float64
	lastQuote     domain.Quote
	decision      domain.RiskDecision
	bestBid       float64
	bestAsk       float64
	seenTrades    map[string]struct{}
}

// New crea el coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if deps.Latency == nil {
		deps.Latency = latency.New(0)
	}
	return &Coordinator{
		cfg:        cfg,
		deps:       deps,
		inbox:      make(chan event, cfg.InboxSize),
		jobs:       make(chan func(context.Context) error, journalQueueSize),
		now:        time.Now,
		seenTrades: make(map[string]struct{}),
	}
}

// Run arranca los productores y procesa el inbox hasta que ctx se cancele.
// Al salir, por cancelación o por panic, cancela todas las órdenes.
func (c *Coordinator) Run(ctx context.Context) (err error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var producers, writer sync.WaitGroup
	producers.Add(3)
	go func() {
		defer producers.Done()
		c.deps.Lifecycle.Run(runCtx, func(r domain.Rotation) { c.send(runCtx, rotationEvent{r}) })
	}()
	go func() {
		defer producers.Done()
		c.deps.MarketData.Run(runCtx, func(t domain.PriceTick) { c.send(runCtx, priceEvent{t}) })
	}()
	go func() {
		defer producers.Done()
		c.deps.Execution.RunHeartbeat(runCtx)
	}()
	writer.Add(1)
	go func() {
		defer writer.Done()
		c.runJournal()
	}()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("coordinator: panic in event loop, cancelling all orders",
				"panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("coordinator.Run: panic: %v", r)
		}
		cancel()
		c.deps.Books.Stop()
		c.cancelAllOnExit()
		producers.Wait()
		close(c.jobs)
		writer.Wait()
	}()

	var status <-chan time.Time
	if c.cfg.StatusInterval > 0 {
		ticker := time.NewTicker(c.cfg.StatusInterval)
		defer ticker.Stop()
		status = ticker.C
	}

	slog.Info("coordinator: started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("coordinator: shutting down")
			return nil
		case ev := <-c.inbox:
			c.handle(runCtx, ev)
		case <-status:
			c.notify(runCtx)
		}
	}
}

// Unhalt pide limpiar el halt de riesgo. Se procesa en orden como cualquier otro evento.
func (c *Coordinator) Unhalt(ctx context.Context) {
	c.send(ctx, unhaltEvent{})
}

func (c *Coordinator) send(ctx context.Context, ev event) {
	select {
	case c.inbox <- ev:
	case <-ctx.Done():
	}
}

func (c *Coordinator) handle(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case priceEvent:
		c.onPrice(ctx, e.tick)
	case rotationEvent:
		c.onRotation(ctx, e.rotation)
	case marketReadyEvent:
		c.onMarketReady(e)
	case bookEvent:
		c.onBook(e.update)
	case fillEvent:
		c.onFill(ctx, e.fill)
	case orderEvent:
		slog.Debug("coordinator: order update",
			"order", e.order.OrderID, "type", e.order.Type, "matched", e.order.SizeMatched)
	case cycleDoneEvent:
		c.onCycleDone(e)
	case unhaltEvent:
		c.onUnhalt()
	default:
		slog.Warn("coordinator: unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

// onPrice es el pipeline principal: strike, fair value, PnL, quote, riesgo y ciclo.
func (c *Coordinator) onPrice(ctx context.Context, tick domain.PriceTick) {
	c.deps.Latency.Record(latency.FeedLag, tick.Lag())
	c.spot, c.vol = tick.Price, tick.Volatility

	at := tick.ReceivedAt
	if at.IsZero() {
		at = c.now()
	}
	m, _ := c.deps.Lifecycle.ObserveReference(c.market.Window.ConditionID, tick.Price, at)
	if !m.Window.Same(c.market.Window) {
		// La rotación sigue en el inbox: hasta aplicarla no se cotiza contra ninguna ventana.
		slog.Debug("coordinator: tick ahead of pending rotation dropped", "market", m.Window.Label())
		return
	}
	c.market = m

	w := c.market.Window
	if !c.ready || !c.market.StrikeLocked() || !w.Tradable(at) {
		return
	}

	fv := domain.FairValue(tick.Price, c.market.StrikePrice, tick.Volatility, w.TimeToExpiry(at))
	c.fairValue = fv
	c.deps.Risk.RefreshUnrealized(fv)

	q, requote, ok := c.deps.Quoting.Compute(fv, tick.Volatility, c.deps.Risk.Position().NetDelta, w.TickSize)
	if !ok {
		slog.Debug("coordinator: no valid quote", "fv", fv, "vol", tick.Volatility)
		return
	}

	wasHalted := c.deps.Risk.Halted()
	decision := c.deps.Risk.CheckQuote(q)
	adjusted := c.deps.Risk.ApplyAdjustment(q, decision)
	prev := c.decision
	c.decision = decision
	c.lastQuote = adjusted

	if decision == domain.RiskHalt {
		if !wasHalted {
			c.onHalt(ctx, c.deps.Risk.HaltReason())
		}
		return
	}
	// Pasar a REDUCE_ONLY no cancela nada: el lado anulado desaparece en el siguiente requote.
	if decision != prev {
		slog.Info("coordinator: risk decision changed", "from", prev, "to", decision,
			"net_delta", c.deps.Risk.Position().NetDelta)
	}
	if !requote || c.cycleInFlight {
		return
	}
	c.launchCycle(ctx, w, adjusted)
}

func (c *Coordinator) launchCycle(ctx context.Context, w domain.MarketWindow, q domain.Quote) {
	c.cycleInFlight = true
	go func() {
		timings, err := c.deps.Execution.CancelAndReplace(ctx, q)
		c.send(ctx, cycleDoneEvent{
			conditionID: w.ConditionID,
			quote:       q,
			timings:     timings,
			orders:      c.deps.Execution.Orders(),
			err:         err,
		})
	}()
}

func (c *Coordinator) onCycleDone(e cycleDoneEvent) {
	c.cycleInFlight = false
	if errors.Is(e.err, execution.ErrCycleInFlight) {
		return
	}
	c.deps.Latency.RecordCycle(e.timings)

	rec := domain.CycleRecord{
		CycleID:     e.timings.CycleID,
		ConditionID: e.conditionID,
		Quote:       e.quote,
		Orders:      e.orders,
		Timings:     e.timings,
		At:          c.now(),
	}
	if e.err != nil {
		rec.Err = e.err.Error()
		slog.Error("coordinator: cycle failed", "cycle", e.timings.CycleID, "err", e.err)
	} else {
		slog.Debug("coordinator: cycle completed",
			"cycle", e.timings.CycleID,
			"bid", e.quote.BidPrice, "ask", e.quote.AskPrice,
			"total", e.timings.Total)
	}
	c.record(func(ctx context.Context) error { return c.deps.Journal.RecordCycle(ctx, rec) })
}

// onRotation resetea riesgo y quoting y cambia las suscripciones antes de que
// cualquier tick posterior pueda cotizar contra la ventana nueva.
func (c *Coordinator) onRotation(ctx context.Context, r domain.Rotation) {
	c.ready = false
	c.deps.Risk.Reset()
	c.deps.Quoting.Reset()
	c.lastQuote = domain.Quote{}
	c.decision = domain.RiskAllow
	c.fairValue = 0
	c.bestBid, c.bestAsk = 0, 0
	c.seenTrades = make(map[string]struct{})
	c.market = domain.ActiveMarket{Window: r.Current}

	c.deps.Books.Switch(ctx, r.Current, orderbook.Handlers{
		Book:  func(u domain.BookUpdate) { c.send(ctx, bookEvent{u}) },
		Fill:  func(f domain.Fill) { c.send(ctx, fillEvent{f}) },
		Order: func(o domain.OrderStatusUpdate) { c.send(ctx, orderEvent{o}) },
	})

	c.record(func(ctx context.Context) error { return c.deps.Journal.RecordRotation(ctx, r) })

	w := r.Current
	go func() {
		err := c.deps.Execution.SetMarket(ctx, w)
		c.send(ctx, marketReadyEvent{window: w, err: err})
	}()
}

func (c *Coordinator) onMarketReady(e marketReadyEvent) {
	if e.err != nil {
		slog.Error("coordinator: market adoption failed", "market", e.window.Label(), "err", e.err)
		return
	}
	if !e.window.Same(c.market.Window) {
		return
	}
	c.ready = true
	slog.Info("coordinator: quoting enabled", "market", e.window.Label())
}

func (c *Coordinator) onBook(u domain.BookUpdate) {
	if u.ConditionID != c.market.Window.ConditionID {
		return
	}
	c.bestBid = u.Up.BestBid()
	c.bestAsk = u.Up.BestAsk()
}

// onFill aplica a la posición solo las porciones que cruzaron contra órdenes nuestras.
func (c *Coordinator) onFill(ctx context.Context, f domain.Fill) {
	if f.Status != "" && !strings.EqualFold(f.Status, "MATCHED") {
		return
	}
	if f.ConditionID != c.market.Window.ConditionID {
		slog.Debug("coordinator: fill for stale market dropped", "trade", f.TradeID, "condition", f.ConditionID)
		return
	}
	if f.TradeID != "" {
		if _, dup := c.seenTrades[f.TradeID]; dup {
			return
		}
		c.seenTrades[f.TradeID] = struct{}{}
	}

	for _, mo := range f.MakerOrders {
		if side, ok := c.deps.Execution.HandleFill(mo.OrderID, mo.MatchedAmount); ok {
			c.applyFill(ctx, f, mo.OrderID, side, mo.Price, mo.MatchedAmount)
		}
	}
	if side, ok := c.deps.Execution.HandleFill(f.TakerOrderID, f.Size); ok {
		c.applyFill(ctx, f, f.TakerOrderID, side, f.Price, f.Size)
	}
}

func (c *Coordinator) applyFill(ctx context.Context, f domain.Fill, orderID string, side domain.Side, price, size float64) {
	res := c.deps.Risk.ProcessFill(side, price, size)
	slog.Info("coordinator: fill",
		"side", side, "price", price, "size", size,
		"net_delta", res.Position.NetDelta,
		"realized", res.Realized,
		"pnl", res.Position.TotalPnL(),
	)

	rec := domain.FillRecord{
		ConditionID: f.ConditionID,
		TradeID:     f.TradeID,
		OrderID:     orderID,
		Side:        side,
		Price:       price,
		Size:        size,
		RealizedPnL: res.Realized,
		NetDelta:    res.Position.NetDelta,
		At:          c.now(),
	}
	c.record(func(ctx context.Context) error { return c.deps.Journal.RecordFill(ctx, rec) })

	if res.HaltArmed {
		c.decision = domain.RiskHalt
		c.onHalt(ctx, c.deps.Risk.HaltReason())
	}
}

// onHalt cancela todo en segundo plano y deja constancia en el journal.
func (c *Coordinator) onHalt(ctx context.Context, reason string) {
	pos := c.deps.Risk.Position()
	slog.Error("coordinator: HALT, cancelling all orders", "reason", reason, "pnl", pos.TotalPnL())

	rec := domain.HaltRecord{
		ConditionID: c.market.Window.ConditionID,
		Reason:      reason,
		TotalPnL:    pos.TotalPnL(),
		At:          c.now(),
	}
	c.record(func(ctx context.Context) error { return c.deps.Journal.RecordHalt(ctx, rec) })

	go func() {
		cctx, cancel := context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
		defer cancel()
		if err := c.deps.Execution.CancelAll(cctx); err != nil {
			slog.Error("coordinator: cancel-all after halt failed", "err", err)
		}
	}()
}

func (c *Coordinator) onUnhalt() {
	if !c.deps.Risk.Halted() {
		slog.Info("coordinator: unhalt requested but not halted")
		return
	}
	c.deps.Risk.Unhalt()
	c.deps.Quoting.Reset()
	c.decision = domain.RiskAllow
}

// cancelAllOnExit usa un contexto propio: el de Run ya está cancelado.
func (c *Coordinator) cancelAllOnExit() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
	defer cancel()
	if err := c.deps.Execution.CancelAll(ctx); err != nil {
		slog.Error("coordinator: cancel-all on exit failed", "err", err)
		return
	}
	slog.Info("coordinator: all orders cancelled")
}

// status devuelve la foto actual. Solo debe llamarse desde la goroutine del loop.
func (c *Coordinator) status() domain.Status {
	return domain.Status{
		Market:    c.market,
		Spot:      c.spot,
		Vol:       c.vol,
		FairValue: c.fairValue,
		BestBid:   c.bestBid,
		BestAsk:   c.bestAsk,
		Quote:     c.lastQuote,
		Decision:  c.decision,
		Halted:    c.deps.Risk.Halted(),
		Position:  c.deps.Risk.Position(),
		Orders:    c.deps.Execution.Orders(),
		Latency:   c.deps.Latency.Snapshot(),
		At:        c.now(),
	}
}

func (c *Coordinator) notify(ctx context.Context) {
	if c.deps.Notifier == nil {
		return
	}
	if err := c.deps.Notifier.Notify(ctx, c.status()); err != nil {
		slog.Debug("coordinator: notify failed", "err", err)
	}
}

// record encola una escritura al journal sin bloquear el loop.
func (c *Coordinator) record(job func(context.Context) error) {
	if c.deps.Journal == nil {
		return
	}
	select {
	case c.jobs <- job:
	default:
		slog.Warn("coordinator: journal queue full, record dropped")
	}
}

func (c *Coordinator) runJournal() {
	for job := range c.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		if err := job(ctx); err != nil {
			slog.Warn("coordinator: journal write failed", "err", err)
		}
		cancel()
	}
}
