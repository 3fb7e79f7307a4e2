package models

import (
	binance "github.com/adshao/go-binance/v2"
)

const (
	UserEventExecutionReport  = "executionReport"
	UserEventAccountPosition  = "outboundAccountPosition"
	UserEventBalanceUpdate    = "balanceUpdate"
	UserEventListenKeyExpired = "listenKeyExpired"
)

// UserEventHeader is decoded first to pick the payload type.
type UserEventHeader struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

// ExecutionReport is emitted for every order state change on the account.
// Keys differing only by case are all declared: encoding/json falls back to a
// case-insensitive match when the exact key has no field.
type ExecutionReport struct {
	EventType                string                  `json:"e"`
	EventTime                int64                   `json:"E"`
	Symbol                   string                  `json:"s"`
	ClientOrderID            string                  `json:"c"`
	Side                     binance.SideType        `json:"S"`
	Type                     binance.OrderType       `json:"o"`
	TimeInForce              binance.TimeInForceType `json:"f"`
	Quantity                 Float                   `json:"q"`
	Price                    Float                   `json:"p"`
	StopPrice                Float                   `json:"P"`
	IcebergQuantity          Float                   `json:"F"`
	OrderListID              int64                   `json:"g"`
	OrigClientOrderID        string                  `json:"C"`
	ExecutionType            string                  `json:"x"`
	Status                   binance.OrderStatusType `json:"X"`
	RejectReason             string                  `json:"r"`
	OrderID                  int64                   `json:"i"`
	LastExecutedQuantity     Float                   `json:"l"`
	CumulativeFilledQuantity Float                   `json:"z"`
	LastExecutedPrice        Float                   `json:"L"`
	Commission               Float                   `json:"n"`
	CommissionAsset          *string                 `json:"N"`
	TransactionTime          int64                   `json:"T"`
	TradeID                  int64                   `json:"t"`
	IsOnBook                 bool                    `json:"w"`
	IsMaker                  bool                    `json:"m"`
	CreationTime             int64                   `json:"O"`
	CumulativeQuoteQuantity  Float                   `json:"Z"`
	LastQuoteQuantity        Float                   `json:"Y"`
	QuoteOrderQuantity       Float                   `json:"Q"`
	WorkingTime              int64                   `json:"W"`
	SelfTradePreventionMode  string                  `json:"V"`
	PreventedMatchID         *int64                  `json:"v"`
	PreventedQuantity        Float                   `json:"A"`
	LastPreventedQuantity    Float                   `json:"B"`
	TradeGroupID             *int64                  `json:"u"`
	CounterOrderID           *int64                  `json:"U"`
	TrailingDelta            *int64                  `json:"d"`
	TrailingTime             *int64                  `json:"D"`
	StrategyID               *int64                  `json:"j"`
	StrategyType             *int64                  `json:"J"`
	MatchType                string                  `json:"b"`
	AllocationID             *int64                  `json:"a"`
	WorkingFloor             string                  `json:"k"`
	UsedSOR                  bool                    `json:"uS"`
	// I and M are reserved by the venue; they are declared so the decoder
	// does not fold them onto i and m.
	IgnoreI int64 `json:"I"`
	IgnoreM bool  `json:"M"`
}

type AccountBalance struct {
	Asset  string `json:"a"`
	Free   Float  `json:"f"`
	Locked Float  `json:"l"`
}

type OutboundAccountPosition struct {
	EventType      string           `json:"e"`
	EventTime      int64            `json:"E"`
	LastUpdateTime int64            `json:"u"`
	Balances       []AccountBalance `json:"B"`
}

type BalanceUpdate struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Asset        string `json:"a"`
	Delta        Float  `json:"d"`
	ClearingTime int64  `json:"T"`
}
