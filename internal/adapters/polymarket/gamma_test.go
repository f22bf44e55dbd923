package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/polyquoter/internal/adapters/polymarket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gammaFixture = `[{
	"conditionId": "0xabc123",
	"question": "Bitcoin Up or Down - October 19, 3:00PM-3:15PM ET",
	"slug": "btc-updown-15m-1760900400",
	"clobTokenIds": "[\"token_up_001\", \"token_down_001\"]",
	"outcomes": "[\"Up\", \"Down\"]",
	"orderPriceMinTickSize": 0.01,
	"negRisk": false,
	"eventStartTime": "2025-10-19T19:00:00Z",
	"endDate": "2025-10-19T19:15:00Z",
	"active": true,
	"closed": false,
	"acceptingOrders": true
}, {
	"conditionId": "0xbroken",
	"slug": "btc-updown-15m-1760900400",
	"clobTokenIds": "",
	"endDate": "2025-10-19T19:15:00Z"
}]`

func TestFindMarkets_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "btc-updown-15m-1760900400", r.URL.Query().Get("slug"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(gammaFixture))
	}))
	defer srv.Close()

	client := polymarket.NewClient("", srv.URL)
	markets, err := client.FindMarkets(context.Background(), "btc-updown-15m-1760900400")

	require.NoError(t, err)
	require.Len(t, markets, 1, "unmappable markets are skipped")
	m := markets[0]
	assert.Equal(t, "0xabc123", m.ConditionID)
	assert.Equal(t, "token_up_001", m.Up.TokenID)
	assert.Equal(t, "token_down_001", m.Down.TokenID)
	assert.True(t, m.AcceptingOrders)
}

func TestFindMarkets_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	markets, err := polymarket.NewClient("", srv.URL).FindMarkets(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, markets)
}

func TestFindMarkets_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := polymarket.NewClient("", srv.URL).FindMarkets(context.Background(), "x")
	assert.Error(t, err)
}
