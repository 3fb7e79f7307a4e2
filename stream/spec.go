package stream

import (
	"fmt"
	"regexp"
	"strings"

	"spotgate/apierr"
)

// Type is the part of a stream name between '@' and the optional '_detail'.
type Type string

const (
	TypeDepth      Type = "depth"
	TypeKline      Type = "kline"
	TypeTrade      Type = "trade"
	TypeAggTrade   Type = "aggTrade"
	TypeTicker     Type = "ticker"
	TypeMiniTicker Type = "miniTicker"
	TypeBookTicker Type = "bookTicker"
)

const (
	detailArray       = "arr"
	allMarketMiniName = "!miniTicker@arr"
)

// Spec names one logical stream: {symbol}@{type}[_{detail}]. Symbol is held
// upper-case and rendered lower-case on the wire.
type Spec struct {
	Symbol string
	Type   Type
	Detail string
}

func Depth(symbol string) Spec      { return newSpec(symbol, TypeDepth, "") }
func Trade(symbol string) Spec      { return newSpec(symbol, TypeTrade, "") }
func AggTrade(symbol string) Spec   { return newSpec(symbol, TypeAggTrade, "") }
func Ticker(symbol string) Spec     { return newSpec(symbol, TypeTicker, "") }
func MiniTicker(symbol string) Spec { return newSpec(symbol, TypeMiniTicker, "") }
func BookTicker(symbol string) Spec { return newSpec(symbol, TypeBookTicker, "") }

// Kline subscribes to candles of one interval, e.g. "1m" or "4h".
func Kline(symbol, interval string) Spec { return newSpec(symbol, TypeKline, interval) }

// AllMarketMiniTickers is the !miniTicker@arr stream covering every symbol.
func AllMarketMiniTickers() Spec { return Spec{Type: TypeMiniTicker, Detail: detailArray} }

func newSpec(symbol string, t Type, detail string) Spec {
	return Spec{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Type: t, Detail: detail}
}

func (s Spec) allMarket() bool {
	return s.Symbol == "" && s.Type == TypeMiniTicker && s.Detail == detailArray
}

// Name renders the wire stream name.
func (s Spec) Name() string {
	if s.allMarket() {
		return allMarketMiniName
	}
	name := strings.ToLower(s.Symbol) + "@" + string(s.Type)
	if s.Detail != "" {
		name += "_" + s.Detail
	}
	return name
}

func (s Spec) String() string { return s.Name() }

// Validate checks the spec can be subscribed to and dispatched.
func (s Spec) Validate() error {
	if s.allMarket() {
		return nil
	}
	if s.Symbol == "" {
		return apierr.Invalid("symbol", "is required for %s streams", s.Type)
	}
	if !symbolPattern.MatchString(s.Symbol) {
		return apierr.Invalid("symbol", "%q must be alphanumeric", s.Symbol)
	}
	if !knownType(s.Type) {
		return apierr.Invalid("type", "unknown stream type %q", s.Type)
	}
	if s.Type == TypeKline && s.Detail == "" {
		return apierr.Invalid("interval", "is required for kline streams")
	}
	return nil
}

var (
	streamNamePattern = regexp.MustCompile(`^([A-Za-z0-9]+)@([A-Za-z]+)(?:_([A-Za-z0-9]+))?$`)
	symbolPattern     = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// ParseStreamName splits a combined-stream name into symbol, type and
// detail. It checks shape only; whether the type is known is decided at
// dispatch.
func ParseStreamName(name string) (Spec, error) {
	if name == allMarketMiniName {
		return AllMarketMiniTickers(), nil
	}
	m := streamNamePattern.FindStringSubmatch(name)
	if m == nil {
		return Spec{}, fmt.Errorf("stream name %q does not match {symbol}@{type}[_{detail}]", name)
	}
	return Spec{Symbol: strings.ToUpper(m[1]), Type: Type(m[2]), Detail: m[3]}, nil
}

func knownType(t Type) bool {
	switch t {
	case TypeDepth, TypeKline, TypeTrade, TypeAggTrade, TypeTicker, TypeMiniTicker, TypeBookTicker:
		return true
	}
	return false
}
