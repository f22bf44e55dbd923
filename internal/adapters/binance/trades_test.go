package binance_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/polyquoter/internal/adapters/binance"
	"github.com/alejandrodnm/polyquoter/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTrades_ParsesTrades(t *testing.T) {
	paths := make(chan string, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"trade","E":1760880600100,"s":"BTCUSDT","t":1,"p":"106250.10","q":"0.010","T":1760880600000}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"trade","E":1760880601100,"s":"BTCUSDT","t":2,"p":"bad","q":"0.010","T":1760880601000}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"trade","E":1760880602100,"s":"BTCUSDT","t":3,"p":"106251.00","q":"0.5","T":1760880602000}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	stream := binance.NewTradeStream(strings.Replace(srv.URL, "http://", "ws://", 1))

	connected := false
	var trades []domain.Trade
	err := stream.StreamTrades(context.Background(), "BTCUSDT", func() { connected = true }, func(tr domain.Trade) {
		trades = append(trades, tr)
	})

	require.Error(t, err)
	assert.True(t, connected)
	assert.Equal(t, "/btcusdt@trade", <-paths)
	require.Len(t, trades, 2)
	assert.Equal(t, 106250.10, trades[0].Price)
	assert.Equal(t, "btcusdt", trades[0].Symbol)
	assert.Equal(t, time.UnixMilli(1760880600000).UTC(), trades[0].Timestamp)
	assert.Equal(t, 0.5, trades[1].Size)
	assert.False(t, trades[1].ReceivedAt.IsZero())
}
