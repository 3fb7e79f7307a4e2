package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"spotgate/apierr"
	"spotgate/models"
)

const endpointUserDataStream = "/v3/userDataStream"

var errEmptyListenKey = errors.New("response carried no listenKey")

// CreateListenKey opens a user data stream. The key stays valid for 60
// minutes unless kept alive.
func (c *Client) CreateListenKey(ctx context.Context) (string, error) {
	var resp models.ListenKey
	if _, err := c.call(ctx, http.MethodPost, endpointUserDataStream, nil, SecurityAPIKey, &resp); err != nil {
		return "", err
	}
	if resp.ListenKey == "" {
		return "", &apierr.DecodeError{Err: errEmptyListenKey}
	}
	return resp.ListenKey, nil
}

func (c *Client) KeepAliveListenKey(ctx context.Context, listenKey string) error {
	return c.listenKeyCall(ctx, http.MethodPut, listenKey)
}

func (c *Client) CloseListenKey(ctx context.Context, listenKey string) error {
	return c.listenKeyCall(ctx, http.MethodDelete, listenKey)
}

func (c *Client) listenKeyCall(ctx context.Context, method, listenKey string) error {
	if listenKey == "" {
		return apierr.Invalid("listenKey", "is required")
	}
	_, err := c.call(ctx, method, endpointUserDataStream, url.Values{"listenKey": {listenKey}}, SecurityAPIKey, nil)
	return err
}
