package models

import (
	binance "github.com/adshao/go-binance/v2"
)

// Fill is one execution against a market or marketable limit order.
type Fill struct {
	Price           Float  `json:"price"`
	Qty             Float  `json:"qty"`
	Commission      Float  `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	TradeID         int64  `json:"tradeId"`
}

// OrderResponse is the reply to a new order. Optional fields stay nil when the
// venue omits them for the order type.
type OrderResponse struct {
	Symbol                  string                  `json:"symbol"`
	OrderID                 int64                   `json:"orderId"`
	OrderListID             int64                   `json:"orderListId"`
	ClientOrderID           string                  `json:"clientOrderId"`
	TransactTime            int64                   `json:"transactTime"`
	Price                   Float                   `json:"price"`
	OrigQty                 Float                   `json:"origQty"`
	ExecutedQty             Float                   `json:"executedQty"`
	CummulativeQuoteQty     Float                   `json:"cummulativeQuoteQty"`
	Status                  binance.OrderStatusType `json:"status"`
	TimeInForce             binance.TimeInForceType `json:"timeInForce"`
	Type                    binance.OrderType       `json:"type"`
	Side                    binance.SideType        `json:"side"`
	WorkingTime             int64                   `json:"workingTime"`
	SelfTradePreventionMode string                  `json:"selfTradePreventionMode"`
	Fills                   []Fill                  `json:"fills"`
	StopPrice               *Float                  `json:"stopPrice,omitempty"`
	IcebergQty              *Float                  `json:"icebergQty,omitempty"`
	StrategyID              *int64                  `json:"strategyId,omitempty"`
	StrategyType            *int64                  `json:"strategyType,omitempty"`
	TrailingDelta           *int64                  `json:"trailingDelta,omitempty"`
	TrailingTime            *int64                  `json:"trailingTime,omitempty"`
	UsedSor                 *bool                   `json:"usedSor,omitempty"`
	WorkingFloor            *string                 `json:"workingFloor,omitempty"`
	PreventedMatchID        *int64                  `json:"preventedMatchId,omitempty"`
	PreventedQuantity       *Float                  `json:"preventedQuantity,omitempty"`
}

// AveragePrice is the quantity-weighted fill price, zero without fills.
func (r *OrderResponse) AveragePrice() float64 {
	var qty, notional float64
	for _, f := range r.Fills {
		qty += float64(f.Qty)
		notional += float64(f.Qty) * float64(f.Price)
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}

// OrderRef identifies one leg of an order list.
type OrderRef struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
}

// OCOResponse is the reply to a new OCO order list.
type OCOResponse struct {
	OrderListID       int64           `json:"orderListId"`
	ContingencyType   string          `json:"contingencyType"`
	ListStatusType    string          `json:"listStatusType"`
	ListOrderStatus   string          `json:"listOrderStatus"`
	ListClientOrderID string          `json:"listClientOrderId"`
	TransactionTime   int64           `json:"transactionTime"`
	Symbol            string          `json:"symbol"`
	Orders            []OrderRef      `json:"orders"`
	OrderReports      []OrderResponse `json:"orderReports"`
}

// CancelOrderResponse is the reply to a single cancel, and one element of a
// cancel-all reply.
type CancelOrderResponse struct {
	Symbol                  string                  `json:"symbol"`
	OrigClientOrderID       string                  `json:"origClientOrderId"`
	OrderID                 int64                   `json:"orderId"`
	OrderListID             int64                   `json:"orderListId"`
	ClientOrderID           string                  `json:"clientOrderId"`
	TransactTime            int64                   `json:"transactTime"`
	Price                   Float                   `json:"price"`
	OrigQty                 Float                   `json:"origQty"`
	ExecutedQty             Float                   `json:"executedQty"`
	CummulativeQuoteQty     Float                   `json:"cummulativeQuoteQty"`
	Status                  binance.OrderStatusType `json:"status"`
	TimeInForce             binance.TimeInForceType `json:"timeInForce"`
	Type                    binance.OrderType       `json:"type"`
	Side                    binance.SideType        `json:"side"`
	SelfTradePreventionMode string                  `json:"selfTradePreventionMode"`
	StopPrice               *Float                  `json:"stopPrice,omitempty"`
	IcebergQty              *Float                  `json:"icebergQty,omitempty"`
}

// OrderInfo is an order as returned by the query, open-orders and all-orders
// endpoints.
type OrderInfo struct {
	Symbol                  string                  `json:"symbol"`
	OrderID                 int64                   `json:"orderId"`
	OrderListID             int64                   `json:"orderListId"`
	ClientOrderID           string                  `json:"clientOrderId"`
	Price                   Float                   `json:"price"`
	OrigQty                 Float                   `json:"origQty"`
	ExecutedQty             Float                   `json:"executedQty"`
	CummulativeQuoteQty     Float                   `json:"cummulativeQuoteQty"`
	Status                  binance.OrderStatusType `json:"status"`
	TimeInForce             binance.TimeInForceType `json:"timeInForce"`
	Type                    binance.OrderType       `json:"type"`
	Side                    binance.SideType        `json:"side"`
	StopPrice               *Float                  `json:"stopPrice,omitempty"`
	IcebergQty              *Float                  `json:"icebergQty,omitempty"`
	Time                    int64                   `json:"time"`
	UpdateTime              int64                   `json:"updateTime"`
	IsWorking               bool                    `json:"isWorking"`
	WorkingTime             int64                   `json:"workingTime"`
	OrigQuoteOrderQty       Float                   `json:"origQuoteOrderQty"`
	SelfTradePreventionMode string                  `json:"selfTradePreventionMode"`
	PreventedMatchID        *int64                  `json:"preventedMatchId,omitempty"`
	PreventedQuantity       *Float                  `json:"preventedQuantity,omitempty"`
	StrategyID              *int64                  `json:"strategyId,omitempty"`
	StrategyType            *int64                  `json:"strategyType,omitempty"`
	TrailingDelta           *int64                  `json:"trailingDelta,omitempty"`
	TrailingTime            *int64                  `json:"trailingTime,omitempty"`
	UsedSor                 *bool                   `json:"usedSor,omitempty"`
	WorkingFloor            *string                 `json:"workingFloor,omitempty"`
}

// Trade is one of the account's own executions.
type Trade struct {
	ID              int64  `json:"id"`
	Symbol          string `json:"symbol"`
	OrderID         int64  `json:"orderId"`
	OrderListID     int64  `json:"orderListId"`
	Price           Float  `json:"price"`
	Qty             Float  `json:"qty"`
	QuoteQty        Float  `json:"quoteQty"`
	Commission      Float  `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
	IsMaker         bool   `json:"isMaker"`
	IsBestMatch     bool   `json:"isBestMatch"`
}

type Balance struct {
	Asset  string `json:"asset"`
	Free   Float  `json:"free"`
	Locked Float  `json:"locked"`
}

// Total is free plus locked.
func (b Balance) Total() float64 {
	return float64(b.Free) + float64(b.Locked)
}

type CommissionRates struct {
	Maker  Float `json:"maker"`
	Taker  Float `json:"taker"`
	Buyer  Float `json:"buyer"`
	Seller Float `json:"seller"`
}

type AccountInfo struct {
	MakerCommission  int64           `json:"makerCommission"`
	TakerCommission  int64           `json:"takerCommission"`
	BuyerCommission  int64           `json:"buyerCommission"`
	SellerCommission int64           `json:"sellerCommission"`
	CommissionRates  CommissionRates `json:"commissionRates"`
	CanTrade         bool            `json:"canTrade"`
	CanWithdraw      bool            `json:"canWithdraw"`
	CanDeposit       bool            `json:"canDeposit"`
	Brokered         bool            `json:"brokered"`
	UpdateTime       int64           `json:"updateTime"`
	AccountType      string          `json:"accountType"`
	Balances         []Balance       `json:"balances"`
	Permissions      []string        `json:"permissions"`
	UID              int64           `json:"uid"`
}

// NonZeroBalances drops assets with nothing free or locked.
func (a *AccountInfo) NonZeroBalances() []Balance {
	out := make([]Balance, 0, len(a.Balances))
	for _, b := range a.Balances {
		if b.Total() > 0 {
			out = append(out, b)
		}
	}
	return out
}

type TickerPrice struct {
	Symbol string `json:"symbol"`
	Price  Float  `json:"price"`
}

type ServerTime struct {
	ServerTime int64 `json:"serverTime"`
}

type ListenKey struct {
	ListenKey string `json:"listenKey"`
}
