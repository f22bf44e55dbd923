package coordinator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyquoter/internal/application/engine/coordinator"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/execution"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/latency"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/lifecycle"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/marketdata"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/orderbook"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/quoting"
	"github.com/alejandrodnm/polyquoter/internal/application/engine/risk"
	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/alejandrodnm/polyquoter/internal/domain/strategy"
)

// --- fakes ---

// fakeTrades emite siempre el mismo precio: vol 0, fair value 0.5.
type fakeTrades struct {
	price float64
	every time.Duration
}

func (f *fakeTrades) StreamTrades(ctx context.Context, _ string, onConnect func(), on func(domain.Trade)) error {
	if onConnect != nil {
		onConnect()
	}
	ticker := time.NewTicker(f.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := time.Now()
			on(domain.Trade{Symbol: "btcusdt", Price: f.price, Size: 1, Timestamp: now, ReceivedAt: now})
		}
	}
}

type fakeDiscovery struct {
	windows []domain.MarketWindow
}

func (f *fakeDiscovery) FindMarkets(context.Context, string) ([]domain.MarketWindow, error) {
	return f.windows, nil
}

type fakeMarket struct{}

func (fakeMarket) StreamBooks(ctx context.Context, _ []string, _ func(), _ func(domain.BookMessage)) error {
	<-ctx.Done()
	return nil
}

type fakeUser struct {
	msgs chan domain.UserMessage
}

func (f *fakeUser) StreamUser(ctx context.Context, _ string, _ func(), on func(domain.UserMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-f.msgs:
			on(m)
		}
	}
}

type fakeSigner struct{}

func (fakeSigner) SignOrder(_ context.Context, fields domain.OrderFields) (domain.SignedOrder, error) {
	return domain.SignedOrder{Fields: fields, Salt: "1", Signature: "0xsig"}, nil
}

type fakeVenue struct {
	mu         sync.Mutex
	seq        int
	batches    [][]domain.SignedOrder
	cancelAlls int
	cancelled  []string
}

func (f *fakeVenue) CancelAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAlls++
	return nil
}

func (f *fakeVenue) CancelMarket(_ context.Context, conditionID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, conditionID)
	return nil
}

func (f *fakeVenue) PostOrders(_ context.Context, orders []domain.SignedOrder) ([]domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, orders)
	out := make([]domain.OrderResult, len(orders))
	for i, o := range orders {
		f.seq++
		out[i] = domain.OrderResult{OrderID: fmt.Sprintf("%s-%d", o.Fields.Side, f.seq), Success: true}
	}
	return out, nil
}

func (f *fakeVenue) PostOrder(ctx context.Context, o domain.SignedOrder) (domain.OrderResult, error) {
	res, err := f.PostOrders(ctx, []domain.SignedOrder{o})
	if err != nil {
		return domain.OrderResult{}, err
	}
	return res[0], nil
}

func (f *fakeVenue) FeeRateBps(context.Context, string) (int, error) { return 0, nil }

func (f *fakeVenue) Heartbeat(context.Context, string) (string, error) { return "hb", nil }

func (f *fakeVenue) snapshot() (batches [][]domain.SignedOrder, cancelAlls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]domain.SignedOrder(nil), f.batches...), f.cancelAlls
}

type fakeJournal struct {
	mu        sync.Mutex
	rotations []domain.Rotation
	fills     []domain.FillRecord
	cycles    []domain.CycleRecord
	halts     []domain.HaltRecord
}

func (f *fakeJournal) RecordRotation(_ context.Context, r domain.Rotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotations = append(f.rotations, r)
	return nil
}

func (f *fakeJournal) RecordFill(_ context.Context, r domain.FillRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fills = append(f.fills, r)
	return nil
}

func (f *fakeJournal) RecordCycle(_ context.Context, r domain.CycleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, r)
	return nil
}

func (f *fakeJournal) RecordHalt(_ context.Context, r domain.HaltRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.halts = append(f.halts, r)
	return nil
}

func (f *fakeJournal) Report(context.Context, time.Time) ([]domain.WindowReport, error) {
	return nil, nil
}

func (f *fakeJournal) Close() error { return nil }

func (f *fakeJournal) counts() (rotations, fills, cycles, halts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rotations), len(f.fills), len(f.cycles), len(f.halts)
}

type fakeNotifier struct {
	mu   sync.Mutex
	last domain.Status
}

func (f *fakeNotifier) Notify(_ context.Context, s domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = s
	return nil
}

func (f *fakeNotifier) status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// panicNotifier hace panic en cuanto hay órdenes vivas.
type panicNotifier struct{}

func (panicNotifier) Notify(_ context.Context, s domain.Status) error {
	if s.Orders.BidOrderID != "" {
		panic("notifier exploded")
	}
	return nil
}

// --- harness ---

type harness struct {
	venue    *fakeVenue
	user     *fakeUser
	journal  *fakeJournal
	notifier *fakeNotifier
	coord    *coordinator.Coordinator
}

func window(id string, start, end time.Time) domain.MarketWindow {
	return domain.MarketWindow{
		ConditionID:     id,
		Slug:            "btc-updown-15m-" + id,
		Up:              domain.Token{TokenID: id + "-up", Outcome: "Up"},
		Down:            domain.Token{TokenID: id + "-down", Outcome: "Down"},
		TickSize:        0.01,
		StartTime:       start,
		EndTime:         end,
		Active:          true,
		AcceptingOrders: true,
	}
}

func newHarness(t *testing.T, windows []domain.MarketWindow, limits domain.RiskLimits, opts ...func(*coordinator.Deps)) *harness {
	t.Helper()
	strat, err := strategy.Get("btc-updown-15m")
	require.NoError(t, err)

	h := &harness{
		venue:    &fakeVenue{},
		user:     &fakeUser{msgs: make(chan domain.UserMessage, 8)},
		journal:  &fakeJournal{},
		notifier: &fakeNotifier{},
	}
	deps := coordinator.Deps{
		Lifecycle: lifecycle.New(&fakeDiscovery{windows: windows}, strat, lifecycle.Config{
			Slug:         "btc-updown-15m-test",
			PollInterval: 20 * time.Millisecond,
		}),
		MarketData: marketdata.New(&fakeTrades{price: 100, every: 2 * time.Millisecond}, marketdata.Config{
			Symbol:        "btcusdt",
			TradesPerYear: strat.TradesPerYear(),
		}),
		Books:     orderbook.New(fakeMarket{}, h.user, time.Millisecond),
		Quoting:   quoting.New(quoting.DefaultConfig()),
		Risk:      risk.New(limits),
		Execution: execution.New(h.venue, fakeSigner{}, execution.Config{Maker: "0xmaker", Signer: "0xsigner", HeartbeatInterval: -1}),
		Latency:   latency.New(64),
		Journal:   h.journal,
		Notifier:  h.notifier,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.coord = coordinator.New(coordinator.Config{StatusInterval: 5 * time.Millisecond, ShutdownTimeout: time.Second}, deps)
	return h
}

func (h *harness) start(t *testing.T) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.coord.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("coordinator did not stop")
			return nil
		}
	}
}

// --- tests ---

func TestCoordinator_QuotesActiveWindow(t *testing.T) {
	now := time.Now()
	w := window("0xaaa", now.Add(-time.Minute), now.Add(10*time.Minute))
	h := newHarness(t, []domain.MarketWindow{w}, domain.RiskLimits{MaxPosition: 100, MaxNotional: 100, MaxLoss: 50})
	stop := h.start(t)

	require.Eventually(t, func() bool {
		batches, _ := h.venue.snapshot()
		return len(batches) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	// Precio constante: el quote no se mueve y no hay más ciclos.
	time.Sleep(50 * time.Millisecond)
	batches, _ := h.venue.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)

	bid, ask := batches[0][0], batches[0][1]
	assert.Equal(t, domain.Buy, bid.Fields.Side)
	assert.Equal(t, "0xaaa-up", bid.Fields.TokenID)
	assert.InDelta(t, 0.49, bid.Price, 1e-9)
	assert.InDelta(t, 10, bid.Size, 1e-9)
	assert.Equal(t, domain.Sell, ask.Fields.Side)
	assert.InDelta(t, 0.51, ask.Price, 1e-9)

	require.Eventually(t, func() bool {
		s := h.notifier.status()
		return s.Orders.BidOrderID != "" && s.Market.StrikeLocked()
	}, time.Second, 5*time.Millisecond)
	s := h.notifier.status()
	assert.InDelta(t, 100, s.Market.StrikePrice, 1e-9)
	assert.InDelta(t, 0.5, s.FairValue, 1e-9)
	assert.Equal(t, domain.RiskAllow, s.Decision)

	require.NoError(t, stop())
	_, cancelAlls := h.venue.snapshot()
	assert.GreaterOrEqual(t, cancelAlls, 1, "shutdown cancels everything")

	rotations, _, cycles, _ := h.journal.counts()
	assert.Equal(t, 1, rotations)
	assert.Equal(t, 1, cycles)
}

func TestCoordinator_FillHaltsOnLoss(t *testing.T) {
	now := time.Now()
	w := window("0xaaa", now.Add(-time.Minute), now.Add(10*time.Minute))
	h := newHarness(t, []domain.MarketWindow{w}, domain.RiskLimits{MaxPosition: 100, MaxNotional: 100, MaxLoss: 0.5})
	stop := h.start(t)
	defer stop()

	require.Eventually(t, func() bool {
		return h.notifier.status().Orders.BidOrderID != ""
	}, 2*time.Second, 5*time.Millisecond)
	bidID := h.notifier.status().Orders.BidOrderID

	fill := func(tradeID, conditionID string) domain.UserMessage {
		return domain.UserMessage{Fill: &domain.Fill{
			TradeID:     tradeID,
			ConditionID: conditionID,
			Status:      "MATCHED",
			MakerOrders: []domain.MakerFill{{OrderID: bidID, MatchedAmount: 10, Price: 0.60, Side: domain.Buy}},
		}}
	}
	// Un fill de otra ventana y un duplicado no cuentan.
	h.user.msgs <- fill("t0", "0xother")
	h.user.msgs <- fill("t1", "")
	h.user.msgs <- fill("t1", "")

	// Comprado a 0.60 con fair value 0.5: -1 USDC, por encima del límite de 0.5.
	require.Eventually(t, func() bool {
		s := h.notifier.status()
		return s.Halted
	}, 2*time.Second, 5*time.Millisecond)

	s := h.notifier.status()
	assert.InDelta(t, 10, s.Position.NetDelta, 1e-9)
	assert.Equal(t, domain.RiskHalt, s.Decision)

	require.Eventually(t, func() bool {
		_, cancelAlls := h.venue.snapshot()
		return cancelAlls >= 1
	}, time.Second, 5*time.Millisecond)

	batchesAtHalt, _ := h.venue.snapshot()
	time.Sleep(50 * time.Millisecond)
	batches, _ := h.venue.snapshot()
	assert.Len(t, batches, len(batchesAtHalt), "no quotes while halted")

	require.Eventually(t, func() bool {
		_, fills, _, halts := h.journal.counts()
		return fills == 1 && halts == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinator_RotatesToNextWindow(t *testing.T) {
	now := time.Now()
	first := window("0xaaa", now.Add(-time.Minute), now.Add(150*time.Millisecond))
	second := window("0xbbb", first.EndTime, first.EndTime.Add(15*time.Minute))
	h := newHarness(t, []domain.MarketWindow{first, second}, domain.RiskLimits{MaxPosition: 100, MaxNotional: 100, MaxLoss: 50})
	stop := h.start(t)

	require.Eventually(t, func() bool {
		batches, _ := h.venue.snapshot()
		for _, b := range batches {
			if len(b) > 0 && b[0].Fields.TokenID == "0xbbb-up" {
				return true
			}
		}
		return false
	}, 3*time.Second, 5*time.Millisecond)

	batches, _ := h.venue.snapshot()
	assert.Equal(t, "0xaaa-up", batches[0][0].Fields.TokenID, "first window quoted first")

	s := h.notifier.status()
	require.Eventually(t, func() bool {
		s = h.notifier.status()
		return s.Market.Window.ConditionID == "0xbbb" && s.Market.StrikeLocked()
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Position.NetDelta)

	require.NoError(t, stop())

	h.venue.mu.Lock()
	cancelled := append([]string(nil), h.venue.cancelled...)
	h.venue.mu.Unlock()
	assert.Contains(t, cancelled, "0xaaa", "previous window orders cancelled on rotation")

	rotations, _, _, _ := h.journal.counts()
	assert.Equal(t, 2, rotations)
}

func TestCoordinator_PanicCancelsAllAndReturnsError(t *testing.T) {
	now := time.Now()
	w := window("0xaaa", now.Add(-time.Minute), now.Add(10*time.Minute))
	h := newHarness(t, []domain.MarketWindow{w}, domain.RiskLimits{MaxPosition: 100, MaxNotional: 100, MaxLoss: 50},
		func(d *coordinator.Deps) { d.Notifier = panicNotifier{} })

	done := make(chan error, 1)
	go func() { done <- h.coord.Run(context.Background()) }()

	// Run termina solo, sin cancelar el contexto.
	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop after panic")
	}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	batches, cancelAlls := h.venue.snapshot()
	assert.Len(t, batches, 1, "orders were live when the loop panicked")
	assert.Equal(t, 1, cancelAlls, "cancel-all before exit")
}
