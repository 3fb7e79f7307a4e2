package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"spotgate/apierr"
	"spotgate/config"
	"spotgate/internal/signer"
	"spotgate/models"
)

const (
	testKey    = "vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A"
	testSecret = "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	prev := nowMillis
	nowMillis = func() int64 { return 1499827319559 }
	t.Cleanup(func() { nowMillis = prev })

	c := New(Options{
		BaseURL:    srv.URL + "/api",
		APIKey:     testKey,
		APISecret:  testSecret,
		RecvWindow: 5 * time.Second,
		HTTPClient: srv.Client(),
	})
	return c, &hits
}

// splitSigned separates the signed string from its trailing signature and
// checks the signature covers exactly the transmitted prefix.
func splitSigned(t *testing.T, payload string) url.Values {
	t.Helper()
	idx := strings.LastIndex(payload, "&signature=")
	require.GreaterOrEqual(t, idx, 0, "no signature in %q", payload)
	signed, sig := payload[:idx], payload[idx+len("&signature="):]
	assert.Equal(t, signer.Sign(testSecret, signed), sig)
	assert.NotContains(t, signed, "signature=")

	values, err := url.ParseQuery(signed)
	require.NoError(t, err)
	return values
}

func TestPlaceLimitOrderSignsFormBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, testKey, r.Header.Get("X-MBX-APIKEY"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(body), testKey)
		params := splitSigned(t, string(body))
		assert.Equal(t, "LTCBTC", params.Get("symbol"))
		assert.Equal(t, "LIMIT", params.Get("type"))
		assert.Equal(t, "GTC", params.Get("timeInForce"))
		assert.Equal(t, "0.1", params.Get("price"))
		assert.Equal(t, "5000", params.Get("recvWindow"))
		assert.Equal(t, "1499827319000", params.Get("timestamp"))

		w.Header().Set("X-MBX-USED-WEIGHT-1M", "7")
		w.Header().Set("X-MBX-ORDER-COUNT-10S", "1")
		_, _ = w.Write([]byte(`{"symbol":"LTCBTC","orderId":28,"clientOrderId":"abc","transactTime":1499827319559,
			"price":"0.10000000","origQty":"1.00000000","executedQty":"0.00000000","status":"NEW","timeInForce":"GTC","type":"LIMIT","side":"BUY","fills":[]}`))
	})

	order := models.NewLimitOrder("ltcbtc", models.SideBuy, 1, 0.1)
	order.Timestamp = 1499827319000
	resp, err := c.PlaceLimitOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, int64(28), resp.OrderID)
	assert.EqualValues(t, "NEW", resp.Status)
	assert.Equal(t, 0.1, resp.Price.Float64())
}

func TestPlaceOCOOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/order/oco", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		params := splitSigned(t, string(body))
		assert.Equal(t, "29000", params.Get("stopPrice"))
		assert.False(t, params.Has("stopLimitPrice"))
		_, _ = w.Write([]byte(`{"orderListId":1,"contingencyType":"OCO","symbol":"BTCUSDT","orders":[{"orderId":2},{"orderId":3}]}`))
	})

	resp, err := c.PlaceOCOOrder(context.Background(), models.NewOCOOrder("BTCUSDT", models.SideSell, 1, 32000, 29000, 0))
	require.NoError(t, err)
	assert.Len(t, resp.Orders, 2)

	_, err = c.PlaceOrder(context.Background(), models.NewOCOOrder("BTCUSDT", models.SideSell, 1, 32000, 29000, 0))
	assert.True(t, apierr.IsValidation(err))
}

func TestInvalidOrderNeverReachesNetwork(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	})

	_, err := c.PlaceMarketOrder(context.Background(), models.NewMarketOrder("BTCUSDT", models.SideBuy, 0))
	assert.True(t, apierr.IsValidation(err))
	_, err = c.CancelOrder(context.Background(), "", 1)
	assert.True(t, apierr.IsValidation(err))
	_, err = c.CancelOrder(context.Background(), "BTCUSDT", 0)
	assert.True(t, apierr.IsValidation(err))
	_, err = c.MyTrades(context.Background(), "BTCUSDT", 5000)
	assert.True(t, apierr.IsValidation(err))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestCancelOrderSignsQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)

		params := splitSigned(t, r.URL.RawQuery)
		assert.Equal(t, "BTCUSDT", params.Get("symbol"))
		assert.Equal(t, "42", params.Get("orderId"))
		assert.Equal(t, "1499827319559", params.Get("timestamp"))

		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":42,"status":"CANCELED","origQty":"1.0"}`))
	})

	resp, err := c.CancelOrder(context.Background(), "btcusdt", 42)
	require.NoError(t, err)
	assert.EqualValues(t, "CANCELED", resp.Status)
}

func TestCancelAllOpenOrdersNoSuchOrderIsEmptySuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/openOrders", r.URL.Path)
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2011,"msg":"Unknown order sent."}`))
	})

	resp, err := c.CancelAllOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Empty(t, resp)
}

func TestCancelAllOpenOrdersOtherVenueError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := c.CancelAllOpenOrders(context.Background(), "NOPE")
	venueErr, ok := apierr.AsVenueError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, int64(-1121), venueErr.Code)
	assert.Equal(t, "Invalid symbol.", venueErr.Message)
	assert.Equal(t, http.StatusBadRequest, venueErr.StatusCode)
}

func TestCancelAllOpenOrdersSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","orderId":1,"status":"CANCELED"},{"symbol":"BTCUSDT","orderId":2,"status":"CANCELED"}]`))
	})

	resp, err := c.CancelAllOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, resp, 2)
}

func TestVenueErrorWithUnstructuredBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.Account(context.Background())
	venueErr, ok := apierr.AsVenueError(err)
	require.True(t, ok)
	assert.Zero(t, venueErr.Code)
	assert.Equal(t, "<html>bad gateway</html>", venueErr.Message)
}

func TestRateLimitStatusIsVenueError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1003,"msg":"Way too many requests; IP banned until 1499827319559."}`))
	})

	_, err := c.Account(context.Background())
	assert.True(t, apierr.IsVenueCode(err, -1003))
}

func TestDecodeErrorKeepsBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := c.TickerPrice(context.Background(), "BTCUSDT")
	var decodeErr *apierr.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "not json", string(decodeErr.Body))
}

func TestEmptySuccessBodyIsDecodeError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := c.PlaceLimitOrder(context.Background(), models.NewLimitOrder("BTCUSDT", models.SideBuy, 1, 100))
	var decodeErr *apierr.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, errEmptyBody)

	_, err = c.CancelOrder(context.Background(), "BTCUSDT", 42)
	assert.True(t, apierr.IsDecode(err), "got %v", err)

	// Endpoints without a response body still succeed.
	require.NoError(t, c.Ping(context.Background()))
}

func TestSignedTimestampTakenAfterPacing(t *testing.T) {
	stamps := make(chan int64, 1)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ts, err := strconv.ParseInt(r.URL.Query().Get("timestamp"), 10, 64)
		assert.NoError(t, err)
		stamps <- ts
		_, _ = w.Write([]byte(`{"canTrade":true,"balances":[]}`))
	})
	nowMillis = func() int64 { return time.Now().UnixMilli() }
	c.limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	require.True(t, c.limiter.Allow())

	before := time.Now().UnixMilli()
	_, err := c.Account(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, <-stamps-before, int64(100))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := New(Options{BaseURL: base, APIKey: testKey, APISecret: testSecret})
	err := c.Ping(context.Background())
	assert.True(t, apierr.IsTransport(err), "got %v", err)
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	require.True(t, limiter.Allow())

	c := New(Options{BaseURL: "http://127.0.0.1:1", Limiter: limiter})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Ping(ctx)
	assert.True(t, apierr.IsTransport(err), "got %v", err)
}

func TestSignedCallRequiresCredentials(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1", APIKey: testKey})
	_, err := c.Account(context.Background())
	assert.True(t, apierr.IsValidation(err))

	c = New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err = c.CreateListenKey(context.Background())
	assert.True(t, apierr.IsValidation(err))
}

func TestPublicCallsSendNoKey(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-MBX-APIKEY"))
		switch r.URL.Path {
		case "/api/v3/ping":
			_, _ = w.Write([]byte(`{}`))
		case "/api/v3/time":
			_, _ = w.Write([]byte(`{"serverTime":1499827319559}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	require.NoError(t, c.Ping(context.Background()))
	ts, err := c.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1499827319559), ts.UnixMilli())
}

func TestExchangeInfoSymbolsParam(t *testing.T) {
	var got []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Query().Get("symbol")+"|"+r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"timezone":"UTC","symbols":[{"symbol":"BTCUSDT","filters":[{"filterType":"PRICE_FILTER","tickSize":"0.01"}]}]}`))
	})

	info, err := c.ExchangeInfo(context.Background(), "btcusdt")
	require.NoError(t, err)
	sym, ok := info.Symbol("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 0.01, sym.TickSize())

	_, err = c.ExchangeInfo(context.Background(), "btcusdt", "ethusdt")
	require.NoError(t, err)
	_, err = c.ExchangeInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT|", `|["BTCUSDT","ETHUSDT"]`, "|"}, got)
}

func TestAccountReads(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		params := splitSigned(t, r.URL.RawQuery)
		switch r.URL.Path {
		case "/api/v3/account":
			_, _ = w.Write([]byte(`{"canTrade":true,"balances":[{"asset":"BTC","free":"1.5","locked":"0"}]}`))
		case "/api/v3/openOrders":
			assert.False(t, params.Has("symbol"))
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","orderId":1,"status":"NEW"}]`))
		case "/api/v3/allOrders":
			assert.Equal(t, "10", params.Get("limit"))
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","orderId":1},{"symbol":"BTCUSDT","orderId":2}]`))
		case "/api/v3/myTrades":
			assert.False(t, params.Has("limit"))
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","id":9,"price":"100","qty":"2","isBuyer":true}]`))
		case "/api/v3/order":
			assert.Equal(t, "7", params.Get("orderId"))
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","orderId":7,"status":"FILLED","stopPrice":"0.0"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	acct, err := c.Account(ctx)
	require.NoError(t, err)
	assert.True(t, acct.CanTrade)
	assert.Equal(t, 1.5, acct.Balances[0].Free.Float64())

	open, err := c.OpenOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, open, 1)

	all, err := c.AllOrders(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	trades, err := c.MyTrades(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].IsBuyer)

	order, err := c.QueryOrder(ctx, "BTCUSDT", 7)
	require.NoError(t, err)
	assert.EqualValues(t, "FILLED", order.Status)
	require.NotNil(t, order.StopPrice)
}

func TestListenKeyLifecycle(t *testing.T) {
	var calls []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/userDataStream", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("X-MBX-APIKEY"))
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, r.Method+" "+string(body)+" "+r.URL.RawQuery)
		assert.NotContains(t, string(body)+r.URL.RawQuery, "signature")
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"listenKey":"pqia91ma19a5s61cv6a81va65sdf19v8a65a1a5s61cv6a81va65sdf19v8a65a1"}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	key, err := c.CreateListenKey(ctx)
	require.NoError(t, err)
	require.NoError(t, c.KeepAliveListenKey(ctx, key))
	require.NoError(t, c.CloseListenKey(ctx, key))
	assert.True(t, apierr.IsValidation(c.CloseListenKey(ctx, "")))

	require.Len(t, calls, 3)
	assert.Equal(t, "POST  ", calls[0])
	assert.Equal(t, "PUT listenKey="+key+" ", calls[1])
	assert.Equal(t, "DELETE  listenKey="+key, calls[2])
}

func TestNewHTTPClientAndLimiter(t *testing.T) {
	client := NewHTTPClient(config.HTTPConfig{
		Timeout: 3 * time.Second,
		LocalIP: "127.0.0.1",
		ConnectionPool: config.ConnectionPoolConfig{
			MaxIdleConns:    4,
			MaxConnsPerHost: 2,
			IdleConnTimeout: time.Minute,
		},
	})
	assert.Equal(t, 3*time.Second, client.Timeout)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 2, transport.MaxConnsPerHost)
	assert.NotNil(t, transport.DialContext)

	assert.Equal(t, rate.Inf, NewLimiter(config.RateLimitConfig{}).Limit())
	l := NewLimiter(config.RateLimitConfig{RequestsPerSecond: 5, BurstSize: 0})
	assert.Equal(t, rate.Limit(5), l.Limit())
	assert.Equal(t, 1, l.Burst())
}
