package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spotgate/models"
)

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, http.MethodGet, "/v3/ping", nil, SecurityNone, nil)
	return err
}

func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var resp models.ServerTime
	if _, err := c.call(ctx, http.MethodGet, "/v3/time", nil, SecurityNone, &resp); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ServerTime), nil
}

// TickerPrice returns the latest price for one symbol.
func (c *Client) TickerPrice(ctx context.Context, symbol string) (*models.TickerPrice, error) {
	params, err := symbolParams(symbol)
	if err != nil {
		return nil, err
	}
	var resp models.TickerPrice
	if _, err := c.call(ctx, http.MethodGet, "/v3/ticker/price", params, SecurityNone, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TickerPrices returns the latest price of every symbol.
func (c *Client) TickerPrices(ctx context.Context) ([]models.TickerPrice, error) {
	var resp []models.TickerPrice
	if _, err := c.call(ctx, http.MethodGet, "/v3/ticker/price", nil, SecurityNone, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ExchangeInfo fetches trading rules. No symbols means every symbol.
func (c *Client) ExchangeInfo(ctx context.Context, symbols ...string) (*models.ExchangeInfo, error) {
	params := url.Values{}
	switch len(symbols) {
	case 0:
	case 1:
		params.Set("symbol", strings.ToUpper(symbols[0]))
	default:
		upper := make([]string, len(symbols))
		for i, s := range symbols {
			upper[i] = strings.ToUpper(s)
		}
		list, err := json.Marshal(upper)
		if err != nil {
			return nil, err
		}
		params.Set("symbols", string(list))
	}

	var resp models.ExchangeInfo
	if _, err := c.call(ctx, http.MethodGet, "/v3/exchangeInfo", params, SecurityNone, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
