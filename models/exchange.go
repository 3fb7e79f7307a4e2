package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	FilterPrice            = "PRICE_FILTER"
	FilterPercentPrice     = "PERCENT_PRICE"
	FilterPercentPriceSide = "PERCENT_PRICE_BY_SIDE"
	FilterLotSize          = "LOT_SIZE"
	FilterMarketLotSize    = "MARKET_LOT_SIZE"
	FilterMinNotional      = "MIN_NOTIONAL"
	FilterNotional         = "NOTIONAL"
	FilterIcebergParts     = "ICEBERG_PARTS"
	FilterMaxNumOrders     = "MAX_NUM_ORDERS"
	FilterMaxNumAlgoOrders = "MAX_NUM_ALGO_ORDERS"
	FilterMaxPosition      = "MAX_POSITION"
	FilterTrailingDelta    = "TRAILING_DELTA"
)

type RateLimit struct {
	RateLimitType string `json:"rateLimitType"`
	Interval      string `json:"interval"`
	IntervalNum   int64  `json:"intervalNum"`
	Limit         int64  `json:"limit"`
}

type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	RateLimits []RateLimit  `json:"rateLimits"`
	Symbols    []SymbolInfo `json:"symbols"`
}

// Symbol finds a symbol by name, case-insensitively.
func (e *ExchangeInfo) Symbol(name string) (SymbolInfo, bool) {
	for _, s := range e.Symbols {
		if strings.EqualFold(s.Symbol, name) {
			return s, true
		}
	}
	return SymbolInfo{}, false
}

// RequestWeightPerMinute returns the REQUEST_WEIGHT limit normalised to one
// minute, zero when the venue does not publish one.
func (e *ExchangeInfo) RequestWeightPerMinute() int64 {
	for _, rl := range e.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			if rl.IntervalNum > 1 {
				return rl.Limit / rl.IntervalNum
			}
			return rl.Limit
		}
	}
	return 0
}

type SymbolInfo struct {
	Symbol                     string         `json:"symbol"`
	Status                     string         `json:"status"`
	BaseAsset                  string         `json:"baseAsset"`
	BaseAssetPrecision         int            `json:"baseAssetPrecision"`
	QuoteAsset                 string         `json:"quoteAsset"`
	QuotePrecision             int            `json:"quotePrecision"`
	QuoteAssetPrecision        int            `json:"quoteAssetPrecision"`
	OrderTypes                 []string       `json:"orderTypes"`
	IcebergAllowed             bool           `json:"icebergAllowed"`
	OcoAllowed                 bool           `json:"ocoAllowed"`
	QuoteOrderQtyMarketAllowed bool           `json:"quoteOrderQtyMarketAllowed"`
	IsSpotTradingAllowed       bool           `json:"isSpotTradingAllowed"`
	IsMarginTradingAllowed     bool           `json:"isMarginTradingAllowed"`
	Filters                    []SymbolFilter `json:"filters"`
	Permissions                []string       `json:"permissions"`
}

type PriceFilter struct {
	MinPrice Float `json:"minPrice"`
	MaxPrice Float `json:"maxPrice"`
	TickSize Float `json:"tickSize"`
}

type PercentPriceFilter struct {
	MultiplierUp      Float `json:"multiplierUp"`
	MultiplierDown    Float `json:"multiplierDown"`
	BidMultiplierUp   Float `json:"bidMultiplierUp"`
	BidMultiplierDown Float `json:"bidMultiplierDown"`
	AskMultiplierUp   Float `json:"askMultiplierUp"`
	AskMultiplierDown Float `json:"askMultiplierDown"`
	AvgPriceMins      int64 `json:"avgPriceMins"`
}

// LotSizeFilter covers both LOT_SIZE and MARKET_LOT_SIZE.
type LotSizeFilter struct {
	MinQty   Float `json:"minQty"`
	MaxQty   Float `json:"maxQty"`
	StepSize Float `json:"stepSize"`
}

// NotionalFilter covers both NOTIONAL and the older MIN_NOTIONAL.
type NotionalFilter struct {
	MinNotional      Float `json:"minNotional"`
	MaxNotional      Float `json:"maxNotional"`
	ApplyToMarket    bool  `json:"applyToMarket"`
	ApplyMinToMarket bool  `json:"applyMinToMarket"`
	ApplyMaxToMarket bool  `json:"applyMaxToMarket"`
	AvgPriceMins     int64 `json:"avgPriceMins"`
}

type TrailingDeltaFilter struct {
	MinTrailingAboveDelta int64 `json:"minTrailingAboveDelta"`
	MaxTrailingAboveDelta int64 `json:"maxTrailingAboveDelta"`
	MinTrailingBelowDelta int64 `json:"minTrailingBelowDelta"`
	MaxTrailingBelowDelta int64 `json:"maxTrailingBelowDelta"`
}

// SymbolFilter is one entry of a symbol's filter list, tagged by FilterType.
// Exactly the member matching the tag is populated; unknown tags keep only Raw.
type SymbolFilter struct {
	FilterType    string
	Price         *PriceFilter
	PercentPrice  *PercentPriceFilter
	LotSize       *LotSizeFilter
	Notional      *NotionalFilter
	TrailingDelta *TrailingDeltaFilter
	// Limit carries ICEBERG_PARTS, MAX_NUM_ORDERS and MAX_NUM_ALGO_ORDERS.
	Limit       int64
	MaxPosition Float
	Raw         json.RawMessage
}

func (f *SymbolFilter) UnmarshalJSON(data []byte) error {
	var head struct {
		FilterType       string `json:"filterType"`
		Limit            int64  `json:"limit"`
		MaxNumOrders     int64  `json:"maxNumOrders"`
		MaxNumAlgoOrders int64  `json:"maxNumAlgoOrders"`
		MaxPosition      Float  `json:"maxPosition"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	*f = SymbolFilter{FilterType: head.FilterType, Raw: append(json.RawMessage(nil), data...)}

	var target interface{}
	switch head.FilterType {
	case FilterPrice:
		f.Price = &PriceFilter{}
		target = f.Price
	case FilterPercentPrice, FilterPercentPriceSide:
		f.PercentPrice = &PercentPriceFilter{}
		target = f.PercentPrice
	case FilterLotSize, FilterMarketLotSize:
		f.LotSize = &LotSizeFilter{}
		target = f.LotSize
	case FilterMinNotional, FilterNotional:
		f.Notional = &NotionalFilter{}
		target = f.Notional
	case FilterTrailingDelta:
		f.TrailingDelta = &TrailingDeltaFilter{}
		target = f.TrailingDelta
	case FilterIcebergParts:
		f.Limit = head.Limit
	case FilterMaxNumOrders:
		f.Limit = head.MaxNumOrders
	case FilterMaxNumAlgoOrders:
		f.Limit = head.MaxNumAlgoOrders
	case FilterMaxPosition:
		f.MaxPosition = head.MaxPosition
	}

	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decode %s filter: %w", head.FilterType, err)
		}
	}
	return nil
}

func (s SymbolInfo) filter(types ...string) (SymbolFilter, bool) {
	for _, f := range s.Filters {
		for _, t := range types {
			if f.FilterType == t {
				return f, true
			}
		}
	}
	return SymbolFilter{}, false
}

func (s SymbolInfo) PriceFilter() (PriceFilter, bool) {
	f, ok := s.filter(FilterPrice)
	if !ok || f.Price == nil {
		return PriceFilter{}, false
	}
	return *f.Price, true
}

func (s SymbolInfo) LotSizeFilter() (LotSizeFilter, bool) {
	f, ok := s.filter(FilterLotSize)
	if !ok || f.LotSize == nil {
		return LotSizeFilter{}, false
	}
	return *f.LotSize, true
}

func (s SymbolInfo) NotionalFilter() (NotionalFilter, bool) {
	f, ok := s.filter(FilterNotional, FilterMinNotional)
	if !ok || f.Notional == nil {
		return NotionalFilter{}, false
	}
	return *f.Notional, true
}

// TickSize is the PRICE_FILTER tick, zero when absent.
func (s SymbolInfo) TickSize() float64 {
	if pf, ok := s.PriceFilter(); ok {
		return float64(pf.TickSize)
	}
	return 0
}

// StepSize is the LOT_SIZE step, zero when absent.
func (s SymbolInfo) StepSize() float64 {
	if lf, ok := s.LotSizeFilter(); ok {
		return float64(lf.StepSize)
	}
	return 0
}
