package domain

import "time"

// FillRecord es un fill ya aplicado a la posición, tal como se persiste.
type FillRecord struct {
	ConditionID string
	TradeID     string
	OrderID     string
	Side        Side
	Price       float64
	Size        float64
	RealizedPnL float64 // PnL realizado por este fill
	NetDelta    float64 // posición neta tras el fill
	At          time.Time
}

// CycleRecord resume un ciclo cancel-and-replace.
type CycleRecord struct {
	CycleID     string
	ConditionID string
	Quote       Quote
	Orders      ActiveOrderSet
	Timings     CycleTimings
	Err         string
	At          time.Time
}

// HaltRecord registra el armado de un halt por pérdida.
type HaltRecord struct {
	ConditionID string
	Reason      string
	TotalPnL    float64
	At          time.Time
}

// WindowReport agrega la actividad de una ventana para el modo -report.
type WindowReport struct {
	ConditionID  string
	Slug         string
	StartedAt    time.Time
	EndTime      time.Time
	Fills        int
	Volume       float64 // shares negociadas
	RealizedPnL  float64
	Cycles       int
	FailedCycles int
	Halts        int
}

// LatencyStat es el resumen de una ventana de latencias.
type LatencyStat struct {
	Name  string
	Count int
	Mean  time.Duration
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// Status es la foto periódica que se muestra por consola.
type Status struct {
	Market    ActiveMarket
	Spot      float64
	Vol       float64
	FairValue float64
	BestBid   float64 // top del book del token Up
	BestAsk   float64
	Quote     Quote
	Decision  RiskDecision
	Halted    bool
	Position  Position
	Orders    ActiveOrderSet
	Latency   []LatencyStat
	At        time.Time
}
