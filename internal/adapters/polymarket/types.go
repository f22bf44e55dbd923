package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de un mercado.
// clobTokenIds y outcomes llegan como arrays JSON serializados dentro de un string.
type gammaMarket struct {
	ConditionID     string      `json:"conditionId"`
	Question        string      `json:"question"`
	Slug            string      `json:"slug"`
	ClobTokenIDs    string      `json:"clobTokenIds"`
	Outcomes        string      `json:"outcomes"`
	TickSize        json.Number `json:"orderPriceMinTickSize"`
	NegRisk         bool        `json:"negRisk"`
	StartDate       string      `json:"startDate"`
	EventStartTime  string      `json:"eventStartTime"`
	EndDate         string      `json:"endDate"`
	Active          bool        `json:"active"`
	Closed          bool        `json:"closed"`
	AcceptingOrders bool        `json:"acceptingOrders"`
}

// --- CLOB REST ---

// clobOrderRequest is one element of the JSON body sent to POST /order(s).
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

// clobCancelMarketRequest es el body de DELETE /cancel-market-orders.
type clobCancelMarketRequest struct {
	Market  string `json:"market"`
	AssetID string `json:"asset_id,omitempty"`
}

type clobCancelResponse struct {
	Canceled    []string          `json:"canceled"`
	NotCanceled map[string]string `json:"not_canceled"`
}

type clobFeeRateResponse struct {
	FeeRateBps json.Number `json:"fee_rate_bps"`
	BaseFee    json.Number `json:"base_fee"`
}

type clobHeartbeatRequest struct {
	HeartbeatID string `json:"heartbeat_id"`
}

type clobHeartbeatResponse struct {
	HeartbeatID string `json:"heartbeat_id"`
}

// --- WebSocket ---

type wsAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type wsSubscribe struct {
	Auth     *wsAuth  `json:"auth,omitempty"`
	Type     string   `json:"type"`
	Markets  []string `json:"markets,omitempty"`
	AssetIDs []string `json:"assets_ids,omitempty"`
}

// wsEnvelope solo lee el tipo para despachar.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wsBookEvent struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Timestamp string         `json:"timestamp"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
	Buys      []bookEntryRaw `json:"buys"`  // formato antiguo
	Sells     []bookEntryRaw `json:"sells"` // formato antiguo
}

type wsPriceChange struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
}

type wsPriceChangeEvent struct {
	EventType    string          `json:"event_type"`
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"` // formato antiguo
	Timestamp    string          `json:"timestamp"`
	PriceChanges []wsPriceChange `json:"price_changes"`
	Changes      []wsPriceChange `json:"changes"` // formato antiguo
}

type wsMakerOrder struct {
	OrderID       string `json:"order_id"`
	AssetID       string `json:"asset_id"`
	MatchedAmount string `json:"matched_amount"`
	Price         string `json:"price"`
	Side          string `json:"side"`
	Outcome       string `json:"outcome"`
}

type wsTradeEvent struct {
	EventType    string         `json:"event_type"`
	ID           string         `json:"id"`
	Market       string         `json:"market"`
	AssetID      string         `json:"asset_id"`
	Side         string         `json:"side"`
	Size         string         `json:"size"`
	Price        string         `json:"price"`
	Status       string         `json:"status"`
	TakerOrderID string         `json:"taker_order_id"`
	MakerOrders  []wsMakerOrder `json:"maker_orders"`
	Timestamp    string         `json:"timestamp"`
}

type wsOrderEvent struct {
	EventType    string `json:"event_type"`
	ID           string `json:"id"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Type         string `json:"type"`
}
