package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"spotgate/models"
)

// Event is one decoded frame. Payload is one of *models.DepthEvent,
// *models.KlineEvent, *models.TradeEvent, *models.AggTradeEvent,
// *models.TickerEvent, *models.MiniTickerEvent, []models.MiniTickerEvent or
// *models.BookTickerEvent, matching Stream.Type.
type Event struct {
	Stream   Spec
	Payload  interface{}
	Received time.Time
}

func (e Event) Symbol() string { return e.Stream.Symbol }
func (e Event) Type() Type     { return e.Stream.Type }
func (e Event) Detail() string { return e.Stream.Detail }

// Handler receives events in arrival order on the listening goroutine.
type Handler func(Event)

var (
	errMissingInterval = errors.New("kline stream without interval")
	errUnknownType     = errors.New("unknown stream type")
)

func decodePayload(spec Spec, data json.RawMessage) (interface{}, error) {
	switch spec.Type {
	case TypeDepth:
		var ev models.DepthEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.Symbol == "" {
			ev.Symbol = spec.Symbol
		}
		return &ev, nil
	case TypeKline:
		if spec.Detail == "" {
			return nil, errMissingInterval
		}
		var ev models.KlineEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if ev.Symbol == "" {
			ev.Symbol = spec.Symbol
		}
		if ev.Kline.Interval == "" {
			ev.Kline.Interval = spec.Detail
		}
		return &ev, nil
	case TypeTrade:
		var ev models.TradeEvent
		return decodeInto(data, &ev)
	case TypeAggTrade:
		var ev models.AggTradeEvent
		return decodeInto(data, &ev)
	case TypeTicker:
		var ev models.TickerEvent
		return decodeInto(data, &ev)
	case TypeMiniTicker:
		if spec.Detail == detailArray {
			var evs []models.MiniTickerEvent
			if err := json.Unmarshal(data, &evs); err != nil {
				return nil, err
			}
			return evs, nil
		}
		var ev models.MiniTickerEvent
		return decodeInto(data, &ev)
	case TypeBookTicker:
		var ev models.BookTickerEvent
		return decodeInto(data, &ev)
	}
	return nil, fmt.Errorf("%w %q", errUnknownType, spec.Type)
}

func decodeInto(data json.RawMessage, out interface{}) (interface{}, error) {
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// dropReason labels a dispatch failure for logs and the drop metric.
func dropReason(err error) string {
	switch {
	case errors.Is(err, errMissingInterval):
		return "missing_interval"
	case errors.Is(err, errUnknownType):
		return "unknown_type"
	}
	return "payload"
}
