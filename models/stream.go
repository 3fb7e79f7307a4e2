package models

import (
	"encoding/json"
	"fmt"
)

// StreamEnvelope is the combined-stream frame wrapper.
type StreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// PriceLevel is one [price, quantity] pair of a depth update.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

func (p *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair []Float
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) < 2 {
		return fmt.Errorf("price level needs 2 elements, got %d", len(pair))
	}
	p.Price = float64(pair[0])
	p.Quantity = float64(pair[1])
	return nil
}

func (p PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{FormatDecimal(p.Price), FormatDecimal(p.Quantity)})
}

// DepthEvent is a diff depth update. Levels keep the order they arrived in;
// a zero quantity removes the level.
type DepthEvent struct {
	EventType     string       `json:"e"`
	EventTime     int64        `json:"E"`
	Symbol        string       `json:"s"`
	FirstUpdateID int64        `json:"U"`
	FinalUpdateID int64        `json:"u"`
	Bids          []PriceLevel `json:"b"`
	Asks          []PriceLevel `json:"a"`
}

type KlineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     Kline  `json:"k"`
}

type Kline struct {
	StartTime                int64  `json:"t"`
	EndTime                  int64  `json:"T"`
	Symbol                   string `json:"s"`
	Interval                 string `json:"i"`
	FirstTradeID             int64  `json:"f"`
	LastTradeID              int64  `json:"L"`
	Open                     Float  `json:"o"`
	Close                    Float  `json:"c"`
	High                     Float  `json:"h"`
	Low                      Float  `json:"l"`
	Volume                   Float  `json:"v"`
	TradeCount               int64  `json:"n"`
	IsClosed                 bool   `json:"x"`
	QuoteVolume              Float  `json:"q"`
	TakerBuyBaseAssetVolume  Float  `json:"V"`
	TakerBuyQuoteAssetVolume Float  `json:"Q"`
}

// KlineRecord is a kline flattened for archival, free of wire field names.
type KlineRecord struct {
	Symbol              string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Interval            string  `parquet:"name=interval, type=BYTE_ARRAY, convertedtype=UTF8"`
	StartTime           int64   `parquet:"name=start_time, type=INT64"`
	EndTime             int64   `parquet:"name=end_time, type=INT64"`
	Open                float64 `parquet:"name=open_price, type=DOUBLE"`
	Close               float64 `parquet:"name=close_price, type=DOUBLE"`
	High                float64 `parquet:"name=high_price, type=DOUBLE"`
	Low                 float64 `parquet:"name=low_price, type=DOUBLE"`
	BaseVolume          float64 `parquet:"name=base_asset_volume, type=DOUBLE"`
	Trades              int64   `parquet:"name=number_of_trades, type=INT64"`
	Closed              bool    `parquet:"name=is_kline_closed, type=BOOLEAN"`
	QuoteVolume         float64 `parquet:"name=quote_asset_volume, type=DOUBLE"`
	TakerBuyBaseVolume  float64 `parquet:"name=taker_buy_base_asset_volume, type=DOUBLE"`
	TakerBuyQuoteVolume float64 `parquet:"name=taker_buy_quote_asset_volume, type=DOUBLE"`
}

// Record flattens the event. The symbol falls back to the kline's own field
// when the outer event omits it.
func (e *KlineEvent) Record() KlineRecord {
	k := e.Kline
	symbol := e.Symbol
	if symbol == "" {
		symbol = k.Symbol
	}
	return KlineRecord{
		Symbol:              symbol,
		Interval:            k.Interval,
		StartTime:           k.StartTime,
		EndTime:             k.EndTime,
		Open:                float64(k.Open),
		Close:               float64(k.Close),
		High:                float64(k.High),
		Low:                 float64(k.Low),
		BaseVolume:          float64(k.Volume),
		Trades:              k.TradeCount,
		Closed:              k.IsClosed,
		QuoteVolume:         float64(k.QuoteVolume),
		TakerBuyBaseVolume:  float64(k.TakerBuyBaseAssetVolume),
		TakerBuyQuoteVolume: float64(k.TakerBuyQuoteAssetVolume),
	}
}

type TradeEvent struct {
	EventType     string `json:"e"`
	EventTime     int64  `json:"E"`
	Symbol        string `json:"s"`
	TradeID       int64  `json:"t"`
	Price         Float  `json:"p"`
	Quantity      Float  `json:"q"`
	BuyerOrderID  int64  `json:"b"`
	SellerOrderID int64  `json:"a"`
	TradeTime     int64  `json:"T"`
	IsBuyerMaker  bool   `json:"m"`
	Ignore        bool   `json:"M"`
}

type AggTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        Float  `json:"p"`
	Quantity     Float  `json:"q"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"l"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

// TickerEvent is the rolling 24h statistics frame.
type TickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        Float  `json:"p"`
	PriceChangePercent Float  `json:"P"`
	WeightedAvgPrice   Float  `json:"w"`
	FirstTradePrice    Float  `json:"x"`
	LastPrice          Float  `json:"c"`
	LastQuantity       Float  `json:"Q"`
	BestBidPrice       Float  `json:"b"`
	BestBidQuantity    Float  `json:"B"`
	BestAskPrice       Float  `json:"a"`
	BestAskQuantity    Float  `json:"A"`
	OpenPrice          Float  `json:"o"`
	HighPrice          Float  `json:"h"`
	LowPrice           Float  `json:"l"`
	BaseVolume         Float  `json:"v"`
	QuoteVolume        Float  `json:"q"`
	OpenTime           int64  `json:"O"`
	CloseTime          int64  `json:"C"`
	FirstTradeID       int64  `json:"F"`
	LastTradeID        int64  `json:"L"`
	TradeCount         int64  `json:"n"`
}

type MiniTickerEvent struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	ClosePrice  Float  `json:"c"`
	OpenPrice   Float  `json:"o"`
	HighPrice   Float  `json:"h"`
	LowPrice    Float  `json:"l"`
	BaseVolume  Float  `json:"v"`
	QuoteVolume Float  `json:"q"`
}

// BookTickerEvent carries no event type or time on the wire.
type BookTickerEvent struct {
	UpdateID        int64  `json:"u"`
	Symbol          string `json:"s"`
	BestBidPrice    Float  `json:"b"`
	BestBidQuantity Float  `json:"B"`
	BestAskPrice    Float  `json:"a"`
	BestAskQuantity Float  `json:"A"`
}
