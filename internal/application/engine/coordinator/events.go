package coordinator

import "github.com/alejandrodnm/polyquoter/internal/domain"

// event es todo lo que entra al inbox. Cada tipo lleva un payload inmutable.
type event interface{ isEvent() }

type priceEvent struct{ tick domain.PriceTick }

type rotationEvent struct{ rotation domain.Rotation }

type bookEvent struct{ update domain.BookUpdate }

type fillEvent struct{ fill domain.Fill }

type orderEvent struct{ order domain.OrderStatusUpdate }

// marketReadyEvent llega cuando execution ha adoptado la ventana (o ha fallado al hacerlo).
type marketReadyEvent struct {
	window domain.MarketWindow
	err    error
}

type cycleDoneEvent struct {
	conditionID string
	quote       domain.Quote
	timings     domain.CycleTimings
	orders      domain.ActiveOrderSet
	err         error
}

type unhaltEvent struct{}

func (priceEvent) isEvent()       {}
func (rotationEvent) isEvent()    {}
func (bookEvent) isEvent()        {}
func (fillEvent) isEvent()        {}
func (orderEvent) isEvent()       {}
func (marketReadyEvent) isEvent() {}
func (cycleDoneEvent) isEvent()   {}
func (unhaltEvent) isEvent()      {}
