package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spotgate/apierr"
	"spotgate/internal/metrics"
	binancemetrics "spotgate/internal/metrics/binance"
	"spotgate/logger"
	"spotgate/models"
)

const (
	endpointOrder      = models.EndpointOrder
	endpointOpenOrders = "/v3/openOrders"
)

func (c *Client) PlaceMarketOrder(ctx context.Context, o *models.MarketOrder) (*models.OrderResponse, error) {
	return c.PlaceOrder(ctx, o)
}

func (c *Client) PlaceLimitOrder(ctx context.Context, o *models.LimitOrder) (*models.OrderResponse, error) {
	return c.PlaceOrder(ctx, o)
}

func (c *Client) PlaceStopLimitOrder(ctx context.Context, o *models.StopLimitOrder) (*models.OrderResponse, error) {
	return c.PlaceOrder(ctx, o)
}

// PlaceOrder submits any single-order variant. OCO lists have their own
// response shape and go through PlaceOCOOrder.
func (c *Client) PlaceOrder(ctx context.Context, o models.Order) (*models.OrderResponse, error) {
	if _, ok := o.(*models.OCOOrder); ok {
		return nil, apierr.Invalid("order", "OCO orders must be placed with PlaceOCOOrder")
	}
	var resp models.OrderResponse
	if err := c.submit(ctx, o, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) PlaceOCOOrder(ctx context.Context, o *models.OCOOrder) (*models.OCOResponse, error) {
	var resp models.OCOResponse
	if err := c.submit(ctx, o, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) submit(ctx context.Context, o models.Order, out interface{}) error {
	if o == nil {
		return apierr.Invalid("order", "is required")
	}
	params, err := o.Params()
	if err != nil {
		return err
	}

	start := time.Now()
	header, err := c.call(ctx, http.MethodPost, o.Endpoint(), params, SecuritySigned, out)
	symbol := strings.ToUpper(o.OrderSymbol())
	metrics.EmitLatency(c.log, component, "order", time.Since(start), logger.Fields{
		"endpoint": o.Endpoint(),
		"symbol":   symbol,
	})
	if header != nil {
		binancemetrics.ReportOrderCount(c.log, header, component, symbol)
	}
	if err != nil {
		return err
	}

	logger.IncrementOrdersSent()
	c.log.WithComponent(component).WithFields(logger.Fields{
		"endpoint": o.Endpoint(),
		"symbol":   symbol,
		"side":     params.Get("side"),
		"type":     params.Get("type"),
	}).Info("order accepted")
	return nil
}

// CancelOrder cancels one order by its venue id.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*models.CancelOrderResponse, error) {
	params, err := orderParams(symbol, orderID)
	if err != nil {
		return nil, err
	}
	return c.cancel(ctx, params)
}

// CancelOrderByClientID cancels one order by the client order id it was
// placed with.
func (c *Client) CancelOrderByClientID(ctx context.Context, symbol, origClientOrderID string) (*models.CancelOrderResponse, error) {
	params, err := symbolParams(symbol)
	if err != nil {
		return nil, err
	}
	if origClientOrderID == "" {
		return nil, apierr.Invalid("origClientOrderId", "is required")
	}
	params.Set("origClientOrderId", origClientOrderID)
	return c.cancel(ctx, params)
}

func (c *Client) cancel(ctx context.Context, params url.Values) (*models.CancelOrderResponse, error) {
	var resp models.CancelOrderResponse
	start := time.Now()
	_, err := c.call(ctx, http.MethodDelete, endpointOrder, params, SecuritySigned, &resp)
	metrics.EmitLatency(c.log, component, "cancel", time.Since(start), logger.Fields{"symbol": params.Get("symbol")})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelAllOpenOrders cancels every open order on symbol. A symbol with no
// open orders yields an empty slice and no error.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) ([]models.CancelOrderResponse, error) {
	params, err := symbolParams(symbol)
	if err != nil {
		return nil, err
	}

	var resp []models.CancelOrderResponse
	if _, err := c.call(ctx, http.MethodDelete, endpointOpenOrders, params, SecuritySigned, &resp); err != nil {
		if apierr.IsVenueCode(err, apierr.CodeNoSuchOrder) {
			return []models.CancelOrderResponse{}, nil
		}
		return nil, err
	}
	if resp == nil {
		resp = []models.CancelOrderResponse{}
	}
	return resp, nil
}

// QueryOrder fetches the current state of one order.
func (c *Client) QueryOrder(ctx context.Context, symbol string, orderID int64) (*models.OrderInfo, error) {
	params, err := orderParams(symbol, orderID)
	if err != nil {
		return nil, err
	}
	var resp models.OrderInfo
	if _, err := c.call(ctx, http.MethodGet, endpointOrder, params, SecuritySigned, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func symbolParams(symbol string) (url.Values, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, apierr.Invalid("symbol", "is required")
	}
	return url.Values{"symbol": {strings.ToUpper(symbol)}}, nil
}

func orderParams(symbol string, orderID int64) (url.Values, error) {
	params, err := symbolParams(symbol)
	if err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return nil, apierr.Invalid("orderId", "must be greater than 0")
	}
	params.Set("orderId", strconv.FormatInt(orderID, 10))
	return params, nil
}
