// Package remote talks to the spreadsheet web-app endpoint: a single URL that
// answers GET with the whole transaction list and accepts POSTed mutations
// and notification requests.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finbot/internal/core"
	"finbot/internal/log"
	"finbot/internal/sheets"

	"github.com/sony/gobreaker"
)

// Ensure interface conformance
var (
	_ sheets.Source   = (*Client)(nil)
	_ sheets.Sink     = (*Client)(nil)
	_ sheets.Notifier = (*Client)(nil)
)

const (
	statusSuccess = "success"
	// The web app only accepts simple requests, so JSON goes out as text/plain.
	contentType  = "text/plain;charset=utf-8"
	maxBodyBytes = 16 << 20
)

var ErrUnexpectedResponse = errors.New("unexpected remote response")

// URLFunc returns the endpoint to use for the next call. An empty string
// means no remote is configured.
type URLFunc func() string

// StaticURL always returns url.
func StaticURL(url string) URLFunc {
	return func() string { return url }
}

type Client struct {
	httpClient *http.Client
	url        URLFunc
	cb         *gobreaker.CircuitBreaker
	logger     *log.Logger
}

// NewClient creates a client. A nil httpClient gets one with the given timeout.
func NewClient(httpClient *http.Client, url URLFunc, timeout time.Duration, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		httpClient: httpClient,
		url:        url,
		cb:         NewCircuitBreaker("remote-webapp"),
		logger:     logger.WithComponent(log.ComponentRemote),
	}
}

// NewCircuitBreaker creates the breaker guarding every remote call.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	})
}

func (c *Client) endpoint() (string, error) {
	if c.url == nil {
		return "", sheets.ErrNotConfigured
	}
	u := strings.TrimSpace(c.url())
	if u == "" {
		return "", sheets.ErrNotConfigured
	}
	return u, nil
}

type listResponse struct {
	Status string           `json:"status"`
	Data   []map[string]any `json:"data"`
}

// Fetch GETs the remote list. A non-2xx status, a body that is not JSON or a
// status other than "success" is an error. Individual malformed records are
// dropped and logged.
func (c *Client) Fetch(ctx context.Context) ([]core.Transaction, error) {
	url, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	result, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
		}
		var body listResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		if body.Status != statusSuccess || body.Data == nil {
			return nil, fmt.Errorf("%w: status %q", ErrUnexpectedResponse, body.Status)
		}
		return body.Data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch remote list: %w", err)
	}

	txs, errs := sheets.CoerceAll(result.([]map[string]any))
	for _, e := range errs {
		c.logger.WarnContext(ctx, "Dropping malformed remote record", log.FieldError, e)
	}
	return txs, nil
}

type mutationRequest struct {
	Action sheets.Action    `json:"action"`
	Data   core.Transaction `json:"data"`
}

type notifyRequest struct {
	Action  sheets.Action `json:"action"`
	ChatID  string        `json:"chatId"`
	Message string        `json:"message"`
}

// Send POSTs one mutation.
func (c *Client) Send(ctx context.Context, action sheets.Action, tx core.Transaction) error {
	if !action.Valid() {
		return fmt.Errorf("unsupported action %q", action)
	}
	if err := c.post(ctx, mutationRequest{Action: action, Data: tx}); err != nil {
		return fmt.Errorf("send %s %s: %w", action, tx.ID, err)
	}
	return nil
}

// Notify POSTs a NOTIFY request for chatID.
func (c *Client) Notify(ctx context.Context, chatID, message string) error {
	if strings.TrimSpace(chatID) == "" {
		return errors.New("missing chat id")
	}
	if err := c.post(ctx, notifyRequest{Action: sheets.ActionNotify, ChatID: chatID, Message: message}); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload any) error {
	url, err := c.endpoint()
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
