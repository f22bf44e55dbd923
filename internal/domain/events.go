package domain

import "time"

// Trade es un trade del activo de referencia (ej. BTCUSDT en Binance).
type Trade struct {
	Symbol     string
	Price      float64
	Size       float64
	Timestamp  time.Time // timestamp del exchange
	ReceivedAt time.Time
}

// PriceTick es la salida del feed de referencia: precio + volatilidad anualizada.
type PriceTick struct {
	Price      float64
	Timestamp  time.Time
	Volatility float64
	ReceivedAt time.Time
}

// Lag devuelve el retraso entre el timestamp del exchange y la recepción local.
func (t PriceTick) Lag() time.Duration {
	if t.Timestamp.IsZero() || t.ReceivedAt.IsZero() {
		return 0
	}
	return t.ReceivedAt.Sub(t.Timestamp)
}

// LevelChange es un cambio incremental de un nivel de precio.
type LevelChange struct {
	AssetID string
	Side    Side
	Price   float64
	Size    float64 // 0 = eliminar el nivel
}

// BookMessage es lo que entrega el canal de mercado: un snapshot o cambios incrementales.
type BookMessage struct {
	ConditionID string
	Snapshot    *OrderBook
	Changes     []LevelChange
	Timestamp   time.Time
	ReceivedAt  time.Time
}

// BookUpdate es el estado de ambos books tras aplicar un BookMessage.
type BookUpdate struct {
	ConditionID string
	Up          OrderBook
	Down        OrderBook
	ReceivedAt  time.Time
}

// MakerFill es la porción de un trade que cruzó contra una orden nuestra.
type MakerFill struct {
	OrderID       string
	AssetID       string
	MatchedAmount float64
	Price         float64
	Side          Side
}

// Fill es un trade del canal de usuario.
type Fill struct {
	TradeID      string
	ConditionID  string
	AssetID      string
	Side         Side // lado del taker
	Price        float64
	Size         float64
	Status       string // MATCHED | MINED | CONFIRMED | RETRYING | FAILED
	TakerOrderID string
	MakerOrders  []MakerFill
	Timestamp    time.Time
	ReceivedAt   time.Time
}

// OrderStatusUpdate es un evento "order" del canal de usuario.
type OrderStatusUpdate struct {
	OrderID      string
	ConditionID  string
	AssetID      string
	Side         Side
	Price        float64
	OriginalSize float64
	SizeMatched  float64
	Type         string // PLACEMENT | UPDATE | CANCELLATION
	ReceivedAt   time.Time
}

// UserMessage es lo que entrega el canal privado: un fill o un cambio de estado de orden.
type UserMessage struct {
	Fill  *Fill
	Order *OrderStatusUpdate
}

// ConnState es una transición de conexión de un stream.
type ConnState struct {
	Source    string
	Connected bool
	Err       error
	At        time.Time
}
