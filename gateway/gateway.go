// Package gateway composes the REST client and the stream multiplexer behind
// one authenticated session.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"spotgate/apierr"
	"spotgate/config"
	"spotgate/logger"
	"spotgate/models"
	"spotgate/rest"
	"spotgate/stream"
	"spotgate/writer"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Credentials never change for the life of a Gateway.
type Credentials struct {
	APIKey    string
	APISecret string
}

// session binds one endpoint set to the REST client that targets it. It is
// immutable; mode switches publish a new one.
type session struct {
	live      bool
	endpoints Endpoints
	rest      *rest.Client
}

type Gateway struct {
	creds            Credentials
	liveEndpoints    Endpoints
	testEndpoints    Endpoints
	httpClient       *http.Client
	limiter          *rate.Limiter
	recvWindow       time.Duration
	localIP          string
	handshakeTimeout time.Duration
	sink             writer.KlineSink
	newClientOrderID func() string
	log              *logger.Log

	session atomic.Pointer[session]
}

type Option func(*Gateway)

// WithEndpointSets overrides the live and test URL sets.
func WithEndpointSets(live, test Endpoints) Option {
	return func(g *Gateway) {
		g.liveEndpoints = live
		g.testEndpoints = test
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

func WithRecvWindow(d time.Duration) Option {
	return func(g *Gateway) { g.recvWindow = d }
}

// WithLocalIP binds stream connections to ip and labels REST metrics with it.
func WithLocalIP(ip string) Option {
	return func(g *Gateway) { g.localIP = ip }
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.handshakeTimeout = d }
}

// WithSink archives every decoded kline event seen by Subscribe.
func WithSink(sink writer.KlineSink) Option {
	return func(g *Gateway) { g.sink = sink }
}

// WithClientOrderIDs fills newClientOrderId on orders that lack one.
func WithClientOrderIDs() Option {
	return func(g *Gateway) { g.newClientOrderID = newClientOrderID }
}

// WithLiveMode picks the starting environment; the default is test.
func WithLiveMode(live bool) Option {
	return func(g *Gateway) {
		g.session.Store(&session{live: live})
	}
}

func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func New(creds Credentials, opts ...Option) *Gateway {
	g := &Gateway{
		creds:         creds,
		liveEndpoints: LiveEndpoints(),
		testEndpoints: TestEndpoints(),
		log:           logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = rest.NewHTTPClient(config.HTTPConfig{Timeout: 10 * time.Second, LocalIP: g.localIP})
	}
	live := false
	if s := g.session.Load(); s != nil {
		live = s.live
	}
	g.SetLiveMode(live)
	return g
}

// NewFromConfig wires credentials, transport, pacing and mode from cfg.
// Archival sinks are attached by the caller with WithSink.
func NewFromConfig(cfg *config.Config, opts ...Option) *Gateway {
	base := []Option{
		WithLiveMode(cfg.Gateway.Live()),
		WithHTTPClient(rest.NewHTTPClient(cfg.HTTP)),
		WithLimiter(rest.NewLimiter(cfg.HTTP.RateLimit)),
		WithRecvWindow(cfg.Gateway.RecvWindow),
		WithLocalIP(cfg.HTTP.LocalIP),
		WithHandshakeTimeout(cfg.Stream.HandshakeTimeout),
	}
	if cfg.Gateway.ClientOrderIDs {
		base = append(base, WithClientOrderIDs())
	}
	return New(Credentials{APIKey: cfg.Gateway.APIKey, APISecret: cfg.Gateway.APISecret}, append(base, opts...)...)
}

// SetLiveMode publishes a new session for the chosen environment. Calls
// already in flight finish against the session they started with.
func (g *Gateway) SetLiveMode(live bool) {
	endpoints := g.testEndpoints
	if live {
		endpoints = g.liveEndpoints
	}
	client := rest.New(rest.Options{
		BaseURL:    endpoints.REST,
		APIKey:     g.creds.APIKey,
		APISecret:  g.creds.APISecret,
		RecvWindow: g.recvWindow,
		HTTPClient: g.httpClient,
		Limiter:    g.limiter,
		LocalIP:    g.localIP,
	})
	g.session.Store(&session{live: live, endpoints: endpoints, rest: client})

	g.log.WithComponent("gateway").WithFields(logger.Fields{
		"live": live,
		"rest": endpoints.REST,
	}).Info("gateway mode set")
}

func (g *Gateway) IsLive() bool { return g.session.Load().live }

func (g *Gateway) Endpoints() Endpoints { return g.session.Load().endpoints }

func (g *Gateway) client() *rest.Client { return g.session.Load().rest }

func (g *Gateway) prepare(o models.Order) {
	if g.newClientOrderID != nil && o != nil {
		o.EnsureClientOrderID(g.newClientOrderID)
	}
}

func (g *Gateway) PlaceMarketOrder(ctx context.Context, o *models.MarketOrder) (*models.OrderResponse, error) {
	g.prepare(o)
	return g.client().PlaceMarketOrder(ctx, o)
}

func (g *Gateway) PlaceLimitOrder(ctx context.Context, o *models.LimitOrder) (*models.OrderResponse, error) {
	g.prepare(o)
	return g.client().PlaceLimitOrder(ctx, o)
}

func (g *Gateway) PlaceStopLimitOrder(ctx context.Context, o *models.StopLimitOrder) (*models.OrderResponse, error) {
	g.prepare(o)
	return g.client().PlaceStopLimitOrder(ctx, o)
}

func (g *Gateway) PlaceOCOOrder(ctx context.Context, o *models.OCOOrder) (*models.OCOResponse, error) {
	g.prepare(o)
	return g.client().PlaceOCOOrder(ctx, o)
}

// PlaceOrder submits any single-order variant. OCO orders go through
// PlaceOCOOrder because their response shape differs.
func (g *Gateway) PlaceOrder(ctx context.Context, o models.Order) (*models.OrderResponse, error) {
	g.prepare(o)
	return g.client().PlaceOrder(ctx, o)
}

func (g *Gateway) CancelOrder(ctx context.Context, symbol string, orderID int64) (*models.CancelOrderResponse, error) {
	return g.client().CancelOrder(ctx, symbol, orderID)
}

func (g *Gateway) CancelOrderByClientID(ctx context.Context, symbol, origClientOrderID string) (*models.CancelOrderResponse, error) {
	return g.client().CancelOrderByClientID(ctx, symbol, origClientOrderID)
}

// CancelAllOpenOrders returns an empty slice when the symbol has nothing open.
func (g *Gateway) CancelAllOpenOrders(ctx context.Context, symbol string) ([]models.CancelOrderResponse, error) {
	return g.client().CancelAllOpenOrders(ctx, symbol)
}

func (g *Gateway) QueryOrder(ctx context.Context, symbol string, orderID int64) (*models.OrderInfo, error) {
	return g.client().QueryOrder(ctx, symbol, orderID)
}

func (g *Gateway) Account(ctx context.Context) (*models.AccountInfo, error) {
	return g.client().Account(ctx)
}

// Balances returns the non-zero balances of the account keyed by asset.
func (g *Gateway) Balances(ctx context.Context) (map[string]models.Balance, error) {
	account, err := g.Account(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Balance, len(account.Balances))
	for _, b := range account.Balances {
		if b.Free == 0 && b.Locked == 0 {
			continue
		}
		out[b.Asset] = b
	}
	return out, nil
}

func (g *Gateway) OpenOrders(ctx context.Context, symbol string) ([]models.OrderInfo, error) {
	return g.client().OpenOrders(ctx, symbol)
}

func (g *Gateway) AllOrders(ctx context.Context, symbol string, limit int) ([]models.OrderInfo, error) {
	return g.client().AllOrders(ctx, symbol, limit)
}

func (g *Gateway) MyTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	return g.client().MyTrades(ctx, symbol, limit)
}

// CurrentPrice returns the last traded price of symbol.
func (g *Gateway) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	ticker, err := g.client().TickerPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return float64(ticker.Price), nil
}

func (g *Gateway) ExchangeInfo(ctx context.Context, symbols ...string) (*models.ExchangeInfo, error) {
	return g.client().ExchangeInfo(ctx, symbols...)
}

// SymbolInfo fetches trading rules for one symbol.
func (g *Gateway) SymbolInfo(ctx context.Context, symbol string) (*models.SymbolInfo, error) {
	info, err := g.client().ExchangeInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s, ok := info.Symbol(symbol)
	if !ok {
		return nil, &apierr.DecodeError{Err: fmt.Errorf("symbol %s missing from exchange info", symbol)}
	}
	return &s, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.client().Ping(ctx)
}

func (g *Gateway) ServerTime(ctx context.Context) (time.Time, error) {
	return g.client().ServerTime(ctx)
}

func (g *Gateway) CreateListenKey(ctx context.Context) (string, error) {
	return g.client().CreateListenKey(ctx)
}

func (g *Gateway) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	return g.client().KeepAliveListenKey(ctx, listenKey)
}

func (g *Gateway) CloseListenKey(ctx context.Context, listenKey string) error {
	return g.client().CloseListenKey(ctx, listenKey)
}

func (g *Gateway) streamOptions() []stream.Option {
	opts := []stream.Option{stream.WithLogger(g.log)}
	if g.handshakeTimeout > 0 {
		opts = append(opts, stream.WithHandshakeTimeout(g.handshakeTimeout))
	}
	if g.localIP != "" {
		opts = append(opts, stream.WithLocalIP(g.localIP))
	}
	return opts
}

// Subscribe opens one combined-stream connection for specs and blocks until
// it ends; see stream.Multiplexer.Listen for the return contract. Kline
// events are archived to the configured sink before reaching handler.
func (g *Gateway) Subscribe(ctx context.Context, handler stream.Handler, specs ...stream.Spec) error {
	if handler == nil {
		return apierr.Invalid("handler", "is required")
	}
	m, err := stream.New(g.Endpoints().Stream, specs, g.archiving(ctx, handler), g.streamOptions()...)
	if err != nil {
		return err
	}
	return m.Listen(ctx)
}

func (g *Gateway) archiving(ctx context.Context, handler stream.Handler) stream.Handler {
	if g.sink == nil {
		return handler
	}
	return func(ev stream.Event) {
		if kline, ok := ev.Payload.(*models.KlineEvent); ok {
			rec := kline.Record()
			if err := g.sink.SaveKline(ctx, rec); err != nil {
				g.log.WithComponent("gateway").WithError(err).WithFields(logger.Fields{
					"symbol":   rec.Symbol,
					"interval": rec.Interval,
				}).Warn("failed to archive kline")
			}
		}
		handler(ev)
	}
}

// ListenUserData follows the account stream of listenKey until it ends.
func (g *Gateway) ListenUserData(ctx context.Context, listenKey string, handler stream.UserHandler) error {
	u, err := stream.NewUserDataStream(g.Endpoints().WebSocket, listenKey, handler, g.streamOptions()...)
	if err != nil {
		return err
	}
	return u.Listen(ctx)
}
