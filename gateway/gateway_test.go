package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotgate/apierr"
	"spotgate/config"
	"spotgate/models"
	"spotgate/stream"
)

var testCreds = Credentials{APIKey: "key", APISecret: "secret"}

type venue struct {
	srv  *httptest.Server
	hits int32
}

func newVenue(t *testing.T, handler http.HandlerFunc) *venue {
	t.Helper()
	v := &venue{}
	v.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&v.hits, 1)
		handler(w, r)
	}))
	t.Cleanup(v.srv.Close)
	return v
}

func (v *venue) endpoints() Endpoints {
	ws := "ws" + strings.TrimPrefix(v.srv.URL, "http")
	return Endpoints{REST: v.srv.URL + "/api", WebSocket: ws + "/ws", Stream: ws + "/stream"}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestEndpointsFor(t *testing.T) {
	assert.Equal(t, "https://api.binance.com/api", EndpointsFor(true).REST)
	assert.Equal(t, "wss://stream.binance.com:9443/stream", EndpointsFor(true).Stream)
	assert.Equal(t, "https://testnet.binance.vision/api", EndpointsFor(false).REST)
	assert.Equal(t, "wss://testnet.binance.vision/ws", EndpointsFor(false).WebSocket)
}

func TestSetLiveModeSwapsAllURLs(t *testing.T) {
	g := New(testCreds)
	assert.False(t, g.IsLive())
	assert.Equal(t, TestEndpoints(), g.Endpoints())

	g.SetLiveMode(true)
	assert.True(t, g.IsLive())
	assert.Equal(t, LiveEndpoints(), g.Endpoints())
	assert.Equal(t, LiveEndpoints().REST, g.client().BaseURL())

	g.SetLiveMode(false)
	assert.Equal(t, TestEndpoints(), g.Endpoints())
	assert.Equal(t, TestEndpoints().REST, g.client().BaseURL())
}

func TestModeSwitchRoutesRequests(t *testing.T) {
	ping := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ping", r.URL.Path)
		writeJSON(w, http.StatusOK, `{}`)
	}
	live, test := newVenue(t, ping), newVenue(t, ping)
	g := New(testCreds, WithEndpointSets(live.endpoints(), test.endpoints()), WithHTTPClient(http.DefaultClient))

	require.NoError(t, g.Ping(context.Background()))
	g.SetLiveMode(true)
	require.NoError(t, g.Ping(context.Background()))
	require.NoError(t, g.Ping(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&test.hits))
	assert.Equal(t, int32(2), atomic.LoadInt32(&live.hits))
}

func TestClientOrderIDsAreFilled(t *testing.T) {
	sentIDs := make(chan string, 1)
	v := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		id := r.PostForm.Get("newClientOrderId")
		sentIDs <- id
		writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","orderId":28,"clientOrderId":"`+id+`","status":"NEW"}`)
	})
	g := New(testCreds, WithEndpointSets(v.endpoints(), v.endpoints()), WithClientOrderIDs())

	order := models.NewLimitOrder("BTCUSDT", binance.SideTypeBuy, 1, 100)
	resp, err := g.PlaceLimitOrder(context.Background(), order)
	require.NoError(t, err)

	sent := <-sentIDs
	assert.Len(t, sent, 32)
	assert.Equal(t, sent, order.NewClientOrderID)
	assert.Equal(t, sent, resp.ClientOrderID)
}

func TestCancelAllOpenOrdersWithNothingOpen(t *testing.T) {
	v := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(w, http.StatusBadRequest, `{"code":-2011,"msg":"Unknown order sent."}`)
	})
	g := New(testCreds, WithEndpointSets(v.endpoints(), v.endpoints()))

	got, err := g.CancelAllOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBalancesSkipsEmptyAssets(t *testing.T) {
	v := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"canTrade":true,"balances":[
			{"asset":"BTC","free":"0.5","locked":"0.00000000"},
			{"asset":"LTC","free":"0.00000000","locked":"0.00000000"},
			{"asset":"USDT","free":"0","locked":"12.5"}]}`)
	})
	g := New(testCreds, WithEndpointSets(v.endpoints(), v.endpoints()))

	balances, err := g.Balances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, 0.5, float64(balances["BTC"].Free))
	assert.Equal(t, 12.5, float64(balances["USDT"].Locked))
}

func TestCurrentPriceAndSymbolInfo(t *testing.T) {
	v := newVenue(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/ticker/price":
			writeJSON(w, http.StatusOK, `{"symbol":"LTCBTC","price":"4.00000200"}`)
		case "/api/v3/exchangeInfo":
			writeJSON(w, http.StatusOK, `{"timezone":"UTC","serverTime":1,"symbols":[{"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","quoteAsset":"BTC","filters":[]}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	g := New(testCreds, WithEndpointSets(v.endpoints(), v.endpoints()))

	price, err := g.CurrentPrice(context.Background(), "LTCBTC")
	require.NoError(t, err)
	assert.Equal(t, 4.000002, price)

	info, err := g.SymbolInfo(context.Background(), "ethbtc")
	require.NoError(t, err)
	assert.Equal(t, "ETH", info.BaseAsset)

	_, err = g.SymbolInfo(context.Background(), "BNBBTC")
	assert.True(t, apierr.IsDecode(err))
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{
		Gateway: config.GatewayConfig{Mode: config.ModeLive, APIKey: "k", APISecret: "s", RecvWindow: 5 * time.Second},
		HTTP:    config.HTTPConfig{Timeout: time.Second, RateLimit: config.RateLimitConfig{RequestsPerSecond: 5, BurstSize: 5}},
	}
	g := NewFromConfig(cfg)
	assert.True(t, g.IsLive())
	assert.Equal(t, LiveEndpoints(), g.Endpoints())
	assert.Nil(t, g.newClientOrderID)

	cfg.Gateway.Mode = config.ModeTest
	cfg.Gateway.ClientOrderIDs = true
	g = NewFromConfig(cfg)
	assert.False(t, g.IsLive())
	assert.NotNil(t, g.newClientOrderID)
}

type memorySink struct {
	mu   sync.Mutex
	recs []models.KlineRecord
}

func (m *memorySink) SaveKline(_ context.Context, rec models.KlineRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func TestSubscribeArchivesKlines(t *testing.T) {
	frames := []string{
		`{"stream":"ethusdt@kline_1m","data":{"e":"kline","E":1672515782136,"s":"ETHUSDT","k":{"t":1672515780000,"T":1672515839999,"s":"ETHUSDT","i":"1m","o":"0.0010","c":"0.0020","h":"0.0025","l":"0.0015","v":"1000","n":100,"x":false,"q":"1.0","V":"500","Q":"0.5"}}}`,
		`{"stream":"btcusdt@trade","data":{"e":"trade","E":1,"s":"BTCUSDT","t":12345,"p":"0.001","q":"100","T":1,"m":true}}`,
	}
	upgrader := websocket.Upgrader{}
	requested := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested <- r.URL.RequestURI()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	ws := "ws" + strings.TrimPrefix(srv.URL, "http")
	eps := Endpoints{REST: srv.URL + "/api", WebSocket: ws + "/ws", Stream: ws + "/stream"}
	sink := &memorySink{}
	g := New(testCreds, WithEndpointSets(eps, eps), WithSink(sink))

	var events []stream.Event
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := g.Subscribe(ctx, func(ev stream.Event) { events = append(events, ev) },
		stream.Kline("ETHUSDT", "1m"), stream.Trade("BTCUSDT"))
	require.NoError(t, err)

	assert.Equal(t, "/stream?streams=ethusdt@kline_1m/btcusdt@trade", <-requested)
	require.Len(t, events, 2)
	assert.Equal(t, stream.TypeTrade, events[1].Type())

	require.Len(t, sink.recs, 1)
	rec := sink.recs[0]
	assert.Equal(t, "ETHUSDT", rec.Symbol)
	assert.Equal(t, "1m", rec.Interval)
	assert.Equal(t, int64(100), rec.Trades)
	assert.Equal(t, 0.5, rec.TakerBuyQuoteVolume)
}

func TestSubscribeValidatesBeforeDialing(t *testing.T) {
	g := New(testCreds)
	err := g.Subscribe(context.Background(), func(stream.Event) {}, stream.Kline("BTCUSDT", ""))
	assert.True(t, apierr.IsValidation(err))

	err = g.ListenUserData(context.Background(), "", func(stream.UserEvent) {})
	assert.True(t, apierr.IsValidation(err))
}
