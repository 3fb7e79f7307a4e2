package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spotgate/apierr"
	"spotgate/models"
)

const maxHistoryLimit = 1000

func (c *Client) Account(ctx context.Context) (*models.AccountInfo, error) {
	var resp models.AccountInfo
	if _, err := c.call(ctx, http.MethodGet, "/v3/account", nil, SecuritySigned, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenOrders lists open orders for symbol, or for every symbol when it is
// empty.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]models.OrderInfo, error) {
	params := url.Values{}
	if s := strings.TrimSpace(symbol); s != "" {
		params.Set("symbol", strings.ToUpper(s))
	}
	var resp []models.OrderInfo
	if _, err := c.call(ctx, http.MethodGet, endpointOpenOrders, params, SecuritySigned, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// AllOrders lists active, cancelled and filled orders for symbol. A zero
// limit uses the venue default.
func (c *Client) AllOrders(ctx context.Context, symbol string, limit int) ([]models.OrderInfo, error) {
	params, err := historyParams(symbol, limit)
	if err != nil {
		return nil, err
	}
	var resp []models.OrderInfo
	if _, err := c.call(ctx, http.MethodGet, "/v3/allOrders", params, SecuritySigned, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// MyTrades lists the account's executions on symbol.
func (c *Client) MyTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	params, err := historyParams(symbol, limit)
	if err != nil {
		return nil, err
	}
	var resp []models.Trade
	if _, err := c.call(ctx, http.MethodGet, "/v3/myTrades", params, SecuritySigned, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func historyParams(symbol string, limit int) (url.Values, error) {
	params, err := symbolParams(symbol)
	if err != nil {
		return nil, err
	}
	if limit < 0 || limit > maxHistoryLimit {
		return nil, apierr.Invalid("limit", "must be between 0 and %d", maxHistoryLimit)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return params, nil
}
