package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exchangeInfoBody = `{
	"timezone": "UTC",
	"serverTime": 1565246363776,
	"rateLimits": [
		{"rateLimitType": "REQUEST_WEIGHT", "interval": "MINUTE", "intervalNum": 1, "limit": 6000},
		{"rateLimitType": "ORDERS", "interval": "SECOND", "intervalNum": 10, "limit": 100}
	],
	"symbols": [{
		"symbol": "ETHBTC",
		"status": "TRADING",
		"baseAsset": "ETH",
		"baseAssetPrecision": 8,
		"quoteAsset": "BTC",
		"quotePrecision": 8,
		"quoteAssetPrecision": 8,
		"orderTypes": ["LIMIT", "LIMIT_MAKER", "MARKET", "STOP_LOSS_LIMIT", "TAKE_PROFIT_LIMIT"],
		"icebergAllowed": true,
		"ocoAllowed": true,
		"isSpotTradingAllowed": true,
		"filters": [
			{"filterType": "PRICE_FILTER", "minPrice": "0.00001000", "maxPrice": "922327.00000000", "tickSize": "0.00001000"},
			{"filterType": "LOT_SIZE", "minQty": "0.00010000", "maxQty": "100000.00000000", "stepSize": "0.00010000"},
			{"filterType": "ICEBERG_PARTS", "limit": 10},
			{"filterType": "MARKET_LOT_SIZE", "minQty": "0.00000000", "maxQty": "2790.35", "stepSize": "0.00000000"},
			{"filterType": "TRAILING_DELTA", "minTrailingAboveDelta": 10, "maxTrailingAboveDelta": 2000, "minTrailingBelowDelta": 10, "maxTrailingBelowDelta": 2000},
			{"filterType": "PERCENT_PRICE_BY_SIDE", "bidMultiplierUp": "5", "bidMultiplierDown": "0.2", "askMultiplierUp": "5", "askMultiplierDown": "0.2", "avgPriceMins": 5},
			{"filterType": "NOTIONAL", "minNotional": "0.00010000", "applyMinToMarket": true, "maxNotional": "9000000.00000000", "applyMaxToMarket": false, "avgPriceMins": 5},
			{"filterType": "MAX_NUM_ORDERS", "maxNumOrders": 200},
			{"filterType": "MAX_NUM_ALGO_ORDERS", "maxNumAlgoOrders": 5},
			{"filterType": "EXCHANGE_MAX_NUM_ICEBERG_ORDERS", "maxNumIcebergOrders": 1}
		],
		"permissions": ["SPOT", "MARGIN"]
	}]
}`

func TestExchangeInfoTypedFilters(t *testing.T) {
	var info ExchangeInfo
	require.NoError(t, json.Unmarshal([]byte(exchangeInfoBody), &info))

	assert.Equal(t, int64(6000), info.RequestWeightPerMinute())

	sym, ok := info.Symbol("ethbtc")
	require.True(t, ok)
	assert.Equal(t, "ETH", sym.BaseAsset)
	require.Len(t, sym.Filters, 10)

	pf, ok := sym.PriceFilter()
	require.True(t, ok)
	assert.Equal(t, 0.00001, pf.TickSize.Float64())
	assert.Equal(t, 0.00001, sym.TickSize())

	lf, ok := sym.LotSizeFilter()
	require.True(t, ok)
	assert.Equal(t, 100000.0, lf.MaxQty.Float64())
	assert.Equal(t, 0.0001, sym.StepSize())

	nf, ok := sym.NotionalFilter()
	require.True(t, ok)
	assert.Equal(t, 0.0001, nf.MinNotional.Float64())
	assert.True(t, nf.ApplyMinToMarket)

	assert.Equal(t, int64(10), sym.Filters[2].Limit)
	require.NotNil(t, sym.Filters[3].LotSize)
	assert.Equal(t, 2790.35, sym.Filters[3].LotSize.MaxQty.Float64())
	require.NotNil(t, sym.Filters[4].TrailingDelta)
	assert.Equal(t, int64(2000), sym.Filters[4].TrailingDelta.MaxTrailingBelowDelta)
	require.NotNil(t, sym.Filters[5].PercentPrice)
	assert.Equal(t, 0.2, sym.Filters[5].PercentPrice.AskMultiplierDown.Float64())
	assert.Equal(t, int64(200), sym.Filters[7].Limit)
	assert.Equal(t, int64(5), sym.Filters[8].Limit)

	unknown := sym.Filters[9]
	assert.Equal(t, "EXCHANGE_MAX_NUM_ICEBERG_ORDERS", unknown.FilterType)
	assert.Nil(t, unknown.Price)
	assert.Contains(t, string(unknown.Raw), "maxNumIcebergOrders")

	_, ok = info.Symbol("BTCUSDT")
	assert.False(t, ok)
}

func TestSymbolWithoutFilters(t *testing.T) {
	var sym SymbolInfo
	_, ok := sym.PriceFilter()
	assert.False(t, ok)
	assert.Zero(t, sym.TickSize())
	assert.Zero(t, sym.StepSize())
}
