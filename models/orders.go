package models

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"spotgate/apierr"
)

const (
	EndpointOrder    = "/v3/order"
	EndpointOrderOCO = "/v3/order/oco"
)

const (
	SideBuy  = binance.SideTypeBuy
	SideSell = binance.SideTypeSell

	TimeInForceGTC = binance.TimeInForceTypeGTC
	TimeInForceIOC = binance.TimeInForceTypeIOC
	TimeInForceFOK = binance.TimeInForceTypeFOK

	RespTypeACK    = binance.NewOrderRespTypeACK
	RespTypeRESULT = binance.NewOrderRespTypeRESULT
	RespTypeFULL   = binance.NewOrderRespTypeFULL
)

// TimeInForceGTX is post-only; the spot enum set does not define it.
const TimeInForceGTX binance.TimeInForceType = "GTX"

// nowMillis is the order construction clock.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Order is implemented by every placeable order variant. Params returns the
// exact parameter set for the venue, timestamp included, without signature.
type Order interface {
	Endpoint() string
	OrderSymbol() string
	Validate() error
	Params() (url.Values, error)
	EnsureClientOrderID(gen func() string)
}

// MarketOrder executes immediately at the best price. Exactly one of
// Quantity (base asset) and QuoteOrderQty (quote asset) must be set.
type MarketOrder struct {
	Symbol           string
	Side             binance.SideType
	Quantity         float64
	QuoteOrderQty    float64
	NewClientOrderID string
	RespType         binance.NewOrderRespType
	Timestamp        int64
}

// NewMarketOrder sizes a market order in base asset units.
func NewMarketOrder(symbol string, side binance.SideType, quantity float64) *MarketOrder {
	return &MarketOrder{Symbol: symbol, Side: side, Quantity: quantity, Timestamp: nowMillis()}
}

// NewQuoteMarketOrder sizes a market order in quote asset units.
func NewQuoteMarketOrder(symbol string, side binance.SideType, quoteQty float64) *MarketOrder {
	return &MarketOrder{Symbol: symbol, Side: side, QuoteOrderQty: quoteQty, Timestamp: nowMillis()}
}

func (o *MarketOrder) Endpoint() string    { return EndpointOrder }
func (o *MarketOrder) OrderSymbol() string { return o.Symbol }

func (o *MarketOrder) EnsureClientOrderID(gen func() string) {
	if o.NewClientOrderID == "" {
		o.NewClientOrderID = gen()
	}
}

func (o *MarketOrder) Validate() error {
	if err := validateCommon(o.Symbol, o.Side, o.Timestamp); err != nil {
		return err
	}
	if err := checkNonNegative("quantity", o.Quantity); err != nil {
		return err
	}
	if err := checkNonNegative("quoteOrderQty", o.QuoteOrderQty); err != nil {
		return err
	}
	hasQty, hasQuote := o.Quantity > 0, o.QuoteOrderQty > 0
	if hasQty == hasQuote {
		return apierr.Invalid("quantity", "exactly one of quantity and quoteOrderQty must be set")
	}
	return nil
}

func (o *MarketOrder) Params() (url.Values, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	v := baseParams(o.Symbol, o.Side, binance.OrderTypeMarket, o.Timestamp)
	if o.Quantity > 0 {
		v.Set("quantity", FormatDecimal(o.Quantity))
	} else {
		v.Set("quoteOrderQty", FormatDecimal(o.QuoteOrderQty))
	}
	setOptional(v, "newClientOrderId", o.NewClientOrderID)
	setOptional(v, "newOrderRespType", string(o.RespType))
	return v, nil
}

// LimitOrder rests on the book at Price. TimeInForce defaults to GTC.
type LimitOrder struct {
	Symbol           string
	Side             binance.SideType
	Quantity         float64
	Price            float64
	TimeInForce      binance.TimeInForceType
	IcebergQty       float64
	NewClientOrderID string
	RespType         binance.NewOrderRespType
	Timestamp        int64
}

func NewLimitOrder(symbol string, side binance.SideType, quantity, price float64) *LimitOrder {
	return &LimitOrder{
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		TimeInForce: TimeInForceGTC,
		Timestamp:   nowMillis(),
	}
}

func (o *LimitOrder) Endpoint() string    { return EndpointOrder }
func (o *LimitOrder) OrderSymbol() string { return o.Symbol }

func (o *LimitOrder) EnsureClientOrderID(gen func() string) {
	if o.NewClientOrderID == "" {
		o.NewClientOrderID = gen()
	}
}

func (o *LimitOrder) Validate() error {
	if err := validateCommon(o.Symbol, o.Side, o.Timestamp); err != nil {
		return err
	}
	if err := checkPositive("quantity", o.Quantity); err != nil {
		return err
	}
	if err := checkPositive("price", o.Price); err != nil {
		return err
	}
	if err := checkNonNegative("icebergQty", o.IcebergQty); err != nil {
		return err
	}
	if o.IcebergQty > o.Quantity {
		return apierr.Invalid("icebergQty", "must be between 0 and quantity")
	}
	return nil
}

func (o *LimitOrder) Params() (url.Values, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	v := baseParams(o.Symbol, o.Side, binance.OrderTypeLimit, o.Timestamp)
	v.Set("timeInForce", string(orDefaultTIF(o.TimeInForce)))
	v.Set("quantity", FormatDecimal(o.Quantity))
	v.Set("price", FormatDecimal(o.Price))
	if o.IcebergQty > 0 {
		v.Set("icebergQty", FormatDecimal(o.IcebergQty))
	}
	setOptional(v, "newClientOrderId", o.NewClientOrderID)
	setOptional(v, "newOrderRespType", string(o.RespType))
	return v, nil
}

// StopLimitOrder places a limit order at Price once StopPrice trades. The
// venue order type is always STOP_LOSS_LIMIT.
type StopLimitOrder struct {
	Symbol           string
	Side             binance.SideType
	Quantity         float64
	Price            float64
	StopPrice        float64
	TimeInForce      binance.TimeInForceType
	NewClientOrderID string
	RespType         binance.NewOrderRespType
	Timestamp        int64
}

func NewStopLimitOrder(symbol string, side binance.SideType, quantity, price, stopPrice float64) *StopLimitOrder {
	return &StopLimitOrder{
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		StopPrice:   stopPrice,
		TimeInForce: TimeInForceGTC,
		Timestamp:   nowMillis(),
	}
}

func (o *StopLimitOrder) Endpoint() string    { return EndpointOrder }
func (o *StopLimitOrder) OrderSymbol() string { return o.Symbol }

func (o *StopLimitOrder) EnsureClientOrderID(gen func() string) {
	if o.NewClientOrderID == "" {
		o.NewClientOrderID = gen()
	}
}

func (o *StopLimitOrder) Validate() error {
	if err := validateCommon(o.Symbol, o.Side, o.Timestamp); err != nil {
		return err
	}
	if err := checkPositive("quantity", o.Quantity); err != nil {
		return err
	}
	if err := checkPositive("price", o.Price); err != nil {
		return err
	}
	if err := checkPositive("stopPrice", o.StopPrice); err != nil {
		return err
	}
	return nil
}

func (o *StopLimitOrder) Params() (url.Values, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	v := baseParams(o.Symbol, o.Side, binance.OrderTypeStopLossLimit, o.Timestamp)
	v.Set("timeInForce", string(orDefaultTIF(o.TimeInForce)))
	v.Set("quantity", FormatDecimal(o.Quantity))
	v.Set("price", FormatDecimal(o.Price))
	v.Set("stopPrice", FormatDecimal(o.StopPrice))
	setOptional(v, "newClientOrderId", o.NewClientOrderID)
	setOptional(v, "newOrderRespType", string(o.RespType))
	return v, nil
}

// OCOOrder pairs a limit leg at Price with a stop leg triggered at StopPrice.
// When StopLimitPrice is zero the stop leg is a stop-loss market order.
type OCOOrder struct {
	Symbol               string
	Side                 binance.SideType
	Quantity             float64
	Price                float64
	StopPrice            float64
	StopLimitPrice       float64
	StopLimitTimeInForce binance.TimeInForceType
	ListClientOrderID    string
	LimitClientOrderID   string
	StopClientOrderID    string
	RespType             binance.NewOrderRespType
	Timestamp            int64
}

func NewOCOOrder(symbol string, side binance.SideType, quantity, price, stopPrice, stopLimitPrice float64) *OCOOrder {
	o := &OCOOrder{
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		Price:          price,
		StopPrice:      stopPrice,
		StopLimitPrice: stopLimitPrice,
		Timestamp:      nowMillis(),
	}
	if stopLimitPrice > 0 {
		o.StopLimitTimeInForce = TimeInForceGTC
	}
	return o
}

func (o *OCOOrder) Endpoint() string    { return EndpointOrderOCO }
func (o *OCOOrder) OrderSymbol() string { return o.Symbol }

func (o *OCOOrder) EnsureClientOrderID(gen func() string) {
	if o.ListClientOrderID == "" {
		o.ListClientOrderID = gen()
	}
}

func (o *OCOOrder) Validate() error {
	if err := validateCommon(o.Symbol, o.Side, o.Timestamp); err != nil {
		return err
	}
	if err := checkPositive("quantity", o.Quantity); err != nil {
		return err
	}
	if err := checkPositive("price", o.Price); err != nil {
		return err
	}
	if err := checkPositive("stopPrice", o.StopPrice); err != nil {
		return err
	}
	if err := checkNonNegative("stopLimitPrice", o.StopLimitPrice); err != nil {
		return err
	}
	if o.StopLimitTimeInForce != "" && o.StopLimitPrice == 0 {
		return apierr.Invalid("stopLimitTimeInForce", "requires stopLimitPrice")
	}
	return nil
}

func (o *OCOOrder) Params() (url.Values, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	v := url.Values{}
	v.Set("symbol", strings.ToUpper(o.Symbol))
	v.Set("side", string(o.Side))
	v.Set("quantity", FormatDecimal(o.Quantity))
	v.Set("price", FormatDecimal(o.Price))
	v.Set("stopPrice", FormatDecimal(o.StopPrice))
	if o.StopLimitPrice > 0 {
		v.Set("stopLimitPrice", FormatDecimal(o.StopLimitPrice))
	}
	setOptional(v, "stopLimitTimeInForce", string(o.StopLimitTimeInForce))
	setOptional(v, "listClientOrderId", o.ListClientOrderID)
	setOptional(v, "limitClientOrderId", o.LimitClientOrderID)
	setOptional(v, "stopClientOrderId", o.StopClientOrderID)
	setOptional(v, "newOrderRespType", string(o.RespType))
	v.Set("timestamp", strconv.FormatInt(o.Timestamp, 10))
	return v, nil
}

func validateCommon(symbol string, side binance.SideType, timestamp int64) error {
	if strings.TrimSpace(symbol) == "" {
		return apierr.Invalid("symbol", "is required")
	}
	if side != SideBuy && side != SideSell {
		return apierr.Invalid("side", "must be BUY or SELL, got %q", side)
	}
	if timestamp <= 0 {
		return apierr.Invalid("timestamp", "must be set at construction")
	}
	return nil
}

// checkPositive rejects zero, negative and non-finite amounts. NaN compares
// false against everything, so it is tested explicitly.
func checkPositive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return apierr.Invalid(field, "must be a finite number greater than 0, got %v", v)
	}
	return nil
}

// checkNonNegative is checkPositive for optional amounts where zero means unset.
func checkNonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return apierr.Invalid(field, "must be a finite number not below 0, got %v", v)
	}
	return nil
}

func baseParams(symbol string, side binance.SideType, orderType binance.OrderType, timestamp int64) url.Values {
	v := url.Values{}
	v.Set("symbol", strings.ToUpper(symbol))
	v.Set("side", string(side))
	v.Set("type", string(orderType))
	v.Set("timestamp", strconv.FormatInt(timestamp, 10))
	return v
}

func orDefaultTIF(tif binance.TimeInForceType) binance.TimeInForceType {
	if tif == "" {
		return TimeInForceGTC
	}
	return tif
}

func setOptional(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
