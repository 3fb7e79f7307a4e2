// Package rest is the order execution client. Every endpoint goes through one
// sign-send-decode template parameterised by verb, path, security level and
// response type.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"

	"spotgate/apierr"
	"spotgate/internal/metrics"
	binancemetrics "spotgate/internal/metrics/binance"
	ratemetrics "spotgate/internal/metrics/rate"
	"spotgate/internal/signer"
	"spotgate/logger"
)

const component = "rest"

// Security is the authentication level an endpoint requires.
type Security int

const (
	// SecurityNone endpoints are public.
	SecurityNone Security = iota
	// SecurityAPIKey endpoints need the API key header only.
	SecurityAPIKey
	// SecuritySigned endpoints need the key header, a timestamp and a signature.
	SecuritySigned
)

var errEmptyBody = errors.New("empty response body")

// nowMillis stamps signed requests that do not carry their own timestamp.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

type Options struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	RecvWindow time.Duration
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	// LocalIP only labels metrics; binding happens in the HTTP transport.
	LocalIP string
}

// Client talks to one REST base URL. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	signer     signer.Signer
	hasSecret  bool
	recvWindow time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	localIP    string
	log        *logger.Log
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		signer:     signer.New(opts.APISecret),
		hasSecret:  opts.APISecret != "",
		recvWindow: opts.RecvWindow,
		httpClient: httpClient,
		limiter:    limiter,
		localIP:    opts.LocalIP,
		log:        logger.GetLogger(),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// call runs one request and decodes a 2xx body into out. A nil out discards
// the body; otherwise an empty body is a DecodeError.
// The response headers are returned on success and on venue errors.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, sec Security, out interface{}) (http.Header, error) {
	endpoint := c.baseURL + path

	if sec >= SecurityAPIKey && c.apiKey == "" {
		return nil, apierr.Invalid("apiKey", "is required for %s %s", method, path)
	}
	if sec == SecuritySigned && !c.hasSecret {
		return nil, apierr.Invalid("apiSecret", "is required for %s %s", method, path)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &apierr.TransportError{Op: method, URL: endpoint, Err: err}
	}

	// Encoded after pacing so a signed call stamped here is not already
	// aging against recvWindow when it leaves.
	payload := c.encode(params, sec)

	var body io.Reader
	target := endpoint
	sendsBody := method == http.MethodPost || method == http.MethodPut
	if sendsBody {
		body = strings.NewReader(payload)
	} else if payload != "" {
		target = endpoint + "?" + payload
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &apierr.TransportError{Op: method, URL: endpoint, Err: err}
	}
	if sendsBody {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if sec >= SecurityAPIKey {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	log := c.log.WithComponent(component).WithFields(logger.Fields{
		"method":   method,
		"endpoint": path,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.IncrementTransportError()
		log.WithError(err).Warn("request failed")
		return nil, &apierr.TransportError{Op: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.IncrementTransportError()
		return nil, &apierr.TransportError{Op: method, URL: endpoint, Err: err}
	}

	binancemetrics.ReportUsedWeight(c.log, resp.Header, component, path)
	logger.LogLatency(log, "rest_call", time.Since(start), logger.Fields{"status": resp.StatusCode})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		venueErr := decodeVenueError(resp.StatusCode, raw)
		c.reportVenueError(path, venueErr)
		return resp.Header, venueErr
	}

	if out == nil {
		return resp.Header, nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		log.Warn("empty response body")
		return resp.Header, &apierr.DecodeError{Body: raw, Err: errEmptyBody}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.WithError(err).Warn("failed to decode response")
		return resp.Header, &apierr.DecodeError{Body: raw, Err: err}
	}
	return resp.Header, nil
}

// encode renders params once. For signed calls the returned string is the
// exact signed string with the signature appended.
func (c *Client) encode(params url.Values, sec Security) string {
	v := url.Values{}
	for key, values := range params {
		v[key] = append([]string(nil), values...)
	}

	if sec != SecuritySigned {
		return v.Encode()
	}
	if v.Get("timestamp") == "" {
		v.Set("timestamp", strconv.FormatInt(nowMillis(), 10))
	}
	if c.recvWindow > 0 && v.Get("recvWindow") == "" {
		v.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	return c.signer.SignValues(v)
}

// decodeVenueError reads the {code,msg} body. Bodies of any other shape become
// the message verbatim.
func decodeVenueError(status int, body []byte) *apierr.VenueError {
	var apiErr common.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Code != 0 || apiErr.Message != "") {
		return &apierr.VenueError{StatusCode: status, Code: apiErr.Code, Message: apiErr.Message}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &apierr.VenueError{StatusCode: status, Message: msg}
}

func (c *Client) reportVenueError(path string, venueErr *apierr.VenueError) {
	logger.IncrementVenueRejection()
	c.log.WithComponent(component).WithFields(logger.Fields{
		"endpoint": path,
		"status":   venueErr.StatusCode,
		"code":     venueErr.Code,
	}).Warn(venueErr.Message)

	metrics.EmitMetric(c.log, component, "venue_errors", 1, "counter", logger.Fields{
		"endpoint": path,
		"code":     strconv.FormatInt(venueErr.Code, 10),
	})
	ratemetrics.ReportLimitFromResponse(c.log, component, path, c.localIP, venueErr.StatusCode, venueErr.Message)
}
