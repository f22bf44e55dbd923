// Package execution es el dueño del ActiveOrderSet: ejecuta los ciclos
// cancel-and-replace contra el CLOB, de uno en uno.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/ports"
)

var (
	// ErrCycleInFlight: ya hay un ciclo en curso; la petición se descarta, no se encola.
	ErrCycleInFlight = errors.New("execution: cycle in flight")
	// ErrNoMarket: todavía no se ha adoptado ninguna ventana.
	ErrNoMarket = errors.New("execution: no market adopted")
)

const (
	DefaultHeartbeatInterval = 5 * time.Second

	zeroAddress = "0x0000000000000000000000000000000000000000"
	sizeEpsilon = 1e-9
	maxKnownIDs = 512
)

// State es el estado del guard de ciclo.
type State int

const (
	Idle State = iota
	InProgress
)

func (s State) String() string {
	if s == InProgress {
		return "IN_PROGRESS"
	}
	return "IDLE"
}

// Config identifica la cuenta que firma y financia las órdenes.
type Config struct {
	Maker             string // funder: EOA, proxy o safe
	Signer            string // dirección derivada de la clave
	SignatureType     int
	HeartbeatInterval time.Duration
}

// Controller serializa los ciclos con un semáforo de capacidad 1 (IDLE/IN_PROGRESS).
type Controller struct {
	venue  ports.Venue
	signer ports.OrderSigner
	cfg    Config
	now    func() time.Time

	guard chan struct{}

	mu     sync.Mutex
	window domain.MarketWindow
	feeBps int
	orders domain.ActiveOrderSet
	known  map[string]domain.Side // órdenes colocadas en esta ventana, incluidas las reemplazadas
}

// New crea el controller.
func New(venue ports.Venue, signer ports.OrderSigner, cfg Config) *Controller {
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Controller{
		venue:  venue,
		signer: signer,
		cfg:    cfg,
		now:    time.Now,
		guard:  make(chan struct{}, 1),
		known:  make(map[string]domain.Side),
	}
}

// State devuelve el estado actual del guard.
func (c *Controller) State() State {
	if len(c.guard) > 0 {
		return InProgress
	}
	return Idle
}

// tryAcquire pasa a IN_PROGRESS si estaba IDLE. release vuelve a IDLE y es idempotente.
func (c *Controller) tryAcquire() (release func(), ok bool) {
	select {
	case c.guard <- struct{}{}:
		return c.releaser(), true
	default:
		return nil, false
	}
}

// acquire espera a que el guard quede libre.
func (c *Controller) acquire(ctx context.Context) (func(), error) {
	select {
	case c.guard <- struct{}{}:
		return c.releaser(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Controller) releaser() func() {
	var once sync.Once
	return func() { once.Do(func() { <-c.guard }) }
}

// Window devuelve la ventana adoptada.
func (c *Controller) Window() domain.MarketWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.window
}

// Orders devuelve una copia del ActiveOrderSet.
func (c *Controller) Orders() domain.ActiveOrderSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orders
}

// FeeRateBps devuelve la fee de la ventana adoptada.
func (c *Controller) FeeRateBps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feeBps
}

// SetMarket espera a que no haya ciclo en vuelo, cancela las órdenes de la ventana
// anterior, consulta la fee de la nueva y la adopta.
func (c *Controller) SetMarket(ctx context.Context, w domain.MarketWindow) error {
	release, err := c.acquire(ctx)
	if err != nil {
		return fmt.Errorf("execution.SetMarket: %w", err)
	}
	defer release()

	prev := c.Window()
	if !prev.IsZero() && !prev.Same(w) {
		if err := c.venue.CancelMarket(ctx, prev.ConditionID, ""); err != nil {
			slog.Warn("execution: cancel previous market failed, cancelling all",
				"market", prev.Label(), "err", err)
			if err := c.venue.CancelAll(ctx); err != nil {
				slog.Error("execution: cancel-all failed on rotation", "err", err)
			}
		}
	}

	fee := 0
	if !w.IsZero() {
		fee, err = c.venue.FeeRateBps(ctx, w.Up.TokenID)
		if err != nil {
			slog.Warn("execution: fee rate lookup failed, using 0", "market", w.Label(), "err", err)
			fee = 0
		}
	}

	c.mu.Lock()
	c.window = w
	c.feeBps = fee
	c.orders = domain.ActiveOrderSet{}
	c.known = make(map[string]domain.Side)
	c.mu.Unlock()

	slog.Info("execution: market adopted", "market", w.Label(), "fee_bps", fee)
	return nil
}

// CancelAndReplace ejecuta un ciclo: firma bid, firma ask y cancela las órdenes
// del mercado en paralelo, y después envía el par en batch (o de uno en uno si
// el batch falla). El ActiveOrderSet solo cambia si el ciclo termina bien.
func (c *Controller) CancelAndReplace(ctx context.Context, q domain.Quote) (timings domain.CycleTimings, err error) {
	release, ok := c.tryAcquire()
	if !ok {
		return timings, ErrCycleInFlight
	}
	defer release()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execution.CancelAndReplace: panic: %v", r)
		}
	}()

	timings.CycleID = uuid.NewString()
	start := c.now()
	defer func() { timings.Total = c.now().Sub(start) }()

	c.mu.Lock()
	w, fee := c.window, c.feeBps
	c.mu.Unlock()
	if w.IsZero() {
		return timings, ErrNoMarket
	}

	var bid, ask *domain.SignedOrder
	var signBid, signAsk time.Duration

	g, gctx := errgroup.WithContext(ctx)
	if q.HasBid() {
		g.Go(func() error {
			t := c.now()
			o, err := c.sign(gctx, w, fee, domain.Buy, q.BidPrice, q.BidSize)
			signBid = c.now().Sub(t)
			if err != nil {
				return fmt.Errorf("sign bid: %w", err)
			}
			bid = &o
			return nil
		})
	}
	if q.HasAsk() {
		g.Go(func() error {
			t := c.now()
			o, err := c.sign(gctx, w, fee, domain.Sell, q.AskPrice, q.AskSize)
			signAsk = c.now().Sub(t)
			if err != nil {
				return fmt.Errorf("sign ask: %w", err)
			}
			ask = &o
			return nil
		})
	}
	g.Go(func() error {
		t := c.now()
		err := c.venue.CancelMarket(gctx, w.ConditionID, w.Up.TokenID)
		timings.Cancel = c.now().Sub(t)
		if err != nil {
			return fmt.Errorf("cancel: %w", err)
		}
		return nil
	})
	waitErr := g.Wait()
	timings.Sign = max(signBid, signAsk)
	if waitErr != nil {
		return timings, fmt.Errorf("execution.CancelAndReplace: %w", waitErr)
	}

	next := domain.ActiveOrderSet{PlacedAt: c.now()}
	var orders []domain.SignedOrder
	if bid != nil {
		orders = append(orders, *bid)
	}
	if ask != nil {
		orders = append(orders, *ask)
	}

	if len(orders) > 0 {
		submitStart := c.now()
		results, fallback, err := c.submit(ctx, orders)
		timings.Submit = c.now().Sub(submitStart)
		timings.Fallback = fallback
		if err != nil {
			return timings, fmt.Errorf("execution.CancelAndReplace: %w", err)
		}

		for i, o := range orders {
			res := results[i]
			if !res.OK() {
				slog.Warn("execution: order rejected",
					"side", o.Fields.Side, "price", o.Price, "size", o.Size, "err", res.ErrorMsg)
				continue
			}
			if o.Fields.Side == domain.Buy {
				next.BidOrderID, next.BidPrice, next.BidSize = res.OrderID, o.Price, o.Size
			} else {
				next.AskOrderID, next.AskPrice, next.AskSize = res.OrderID, o.Price, o.Size
			}
		}
	}

	c.mu.Lock()
	if c.window.Same(w) {
		c.orders = next
		c.remember(next)
	}
	c.mu.Unlock()

	slog.Debug("execution: cycle done",
		"cycle", timings.CycleID,
		"bid", next.BidOrderID, "ask", next.AskOrderID,
		"fallback", timings.Fallback,
	)
	return timings, nil
}

// submit envía el batch y, si falla, cada orden por separado en paralelo.
// Devuelve un resultado por orden; error solo si no se pudo colocar ninguna.
func (c *Controller) submit(ctx context.Context, orders []domain.SignedOrder) ([]domain.OrderResult, bool, error) {
	results, err := c.venue.PostOrders(ctx, orders)
	if err == nil && len(results) == len(orders) {
		return results, false, nil
	}
	if err == nil {
		err = fmt.Errorf("batch returned %d results for %d orders", len(results), len(orders))
	}
	slog.Warn("execution: batch submit failed, falling back to single orders", "err", err)

	results = make([]domain.OrderResult, len(orders))
	var g errgroup.Group
	for i, o := range orders {
		i, o := i, o
		g.Go(func() error {
			res, err := c.venue.PostOrder(ctx, o)
			if err != nil {
				res.Success = false
				if res.ErrorMsg == "" {
					res.ErrorMsg = err.Error()
				}
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		if r.OK() {
			return results, true, nil
		}
	}
	return results, true, fmt.Errorf("submit: every order failed (batch: %w)", err)
}

// sign construye los campos normalizados de la orden y la firma.
func (c *Controller) sign(ctx context.Context, w domain.MarketWindow, feeBps int, side domain.Side, price, size float64) (domain.SignedOrder, error) {
	price = domain.RoundToTick(price, w.TickSize)
	size = roundSize(size)
	if size <= 0 {
		return domain.SignedOrder{}, fmt.Errorf("%s size rounds to zero", side)
	}
	maker, taker := orderAmounts(side, price, size, w.TickSize)

	fields := domain.OrderFields{
		Maker:         c.cfg.Maker,
		Signer:        c.cfg.Signer,
		Taker:         zeroAddress,
		TokenID:       w.Up.TokenID,
		MakerAmount:   maker,
		TakerAmount:   taker,
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    strconv.Itoa(feeBps),
		Side:          side,
		SignatureType: c.cfg.SignatureType,
		NegRisk:       w.NegRisk,
	}
	signed, err := c.signer.SignOrder(ctx, fields)
	if err != nil {
		return domain.SignedOrder{}, err
	}
	signed.Price = price
	signed.Size = size
	return signed, nil
}

// CancelAll cancela todas las órdenes de la cuenta. Si hay un ciclo en vuelo cancela
// ya y otra vez cuando el ciclo termina, para no dejar vivas las órdenes que ese ciclo coloque.
func (c *Controller) CancelAll(ctx context.Context) error {
	release, ok := c.tryAcquire()
	if !ok {
		if err := c.venue.CancelAll(ctx); err != nil {
			slog.Warn("execution: early cancel-all failed", "err", err)
		}
		r, err := c.acquire(ctx)
		if err != nil {
			return fmt.Errorf("execution.CancelAll: wait for cycle: %w", err)
		}
		release = r
	}
	defer release()

	if err := c.venue.CancelAll(ctx); err != nil {
		return fmt.Errorf("execution.CancelAll: %w", err)
	}
	c.mu.Lock()
	c.orders = domain.ActiveOrderSet{}
	c.mu.Unlock()
	return nil
}

// HandleFill descuenta filled de la orden indicada y devuelve su lado.
// ok=false si la orden no es nuestra (o es de otra ventana).
func (c *Controller) HandleFill(orderID string, filled float64) (domain.Side, bool) {
	if orderID == "" {
		return domain.Buy, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch orderID {
	case c.orders.BidOrderID:
		c.orders.BidSize -= filled
		if c.orders.BidSize <= sizeEpsilon {
			c.orders.BidOrderID, c.orders.BidPrice, c.orders.BidSize = "", 0, 0
		}
		return domain.Buy, true
	case c.orders.AskOrderID:
		c.orders.AskSize -= filled
		if c.orders.AskSize <= sizeEpsilon {
			c.orders.AskOrderID, c.orders.AskPrice, c.orders.AskSize = "", 0, 0
		}
		return domain.Sell, true
	}

	// Orden ya reemplazada que llegó a cruzar antes del cancel.
	side, ok := c.known[orderID]
	return side, ok
}

// RunHeartbeat mantiene viva la sesión del CLOB hasta que ctx se cancele.
// Los fallos se loguean y el siguiente intento empieza una sesión nueva.
func (c *Controller) RunHeartbeat(ctx context.Context) {
	if c.cfg.HeartbeatInterval < 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	id := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		next, err := c.venue.Heartbeat(ctx, id)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("execution: heartbeat failed", "err", err)
			}
			id = ""
			continue
		}
		id = next
	}
}

// remember registra los ids colocados. Debe llamarse con mu tomado.
func (c *Controller) remember(s domain.ActiveOrderSet) {
	if len(c.known) >= maxKnownIDs {
		c.known = make(map[string]domain.Side)
	}
	if s.BidOrderID != "" {
		c.known[s.BidOrderID] = domain.Buy
	}
	if s.AskOrderID != "" {
		c.known[s.AskOrderID] = domain.Sell
	}
}
