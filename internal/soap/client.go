package soap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

// Invoker is the single I/O primitive of the contacts core: it sends the
// named operation with its payload and decodes the response element into
// resp. Op is the bare operation name (e.g. "Search").
type Invoker interface {
	Invoke(ctx context.Context, op string, req interface{}, resp interface{}) error
}

// NotifyHandler receives the notification blocks found in response headers
// together with the session they belong to. Sequence numbers restart when
// the session changes.
type NotifyHandler func(session string, notifications []Notification)

type sessionRef struct {
	ID string `json:"id,omitempty"`
}

type notifyAck struct {
	Seq int `json:"seq"`
}

type requestContext struct {
	JSNS      string      `json:"_jsns"`
	AuthToken string      `json:"authToken,omitempty"`
	Session   *sessionRef `json:"session,omitempty"`
	Notify    *notifyAck  `json:"notify,omitempty"`
}

type requestEnvelope struct {
	Header struct {
		Context requestContext `json:"context"`
	} `json:"Header"`
	Body map[string]interface{} `json:"Body"`
}

type responseContext struct {
	Session *struct {
		ID string `json:"id"`
	} `json:"session,omitempty"`
	Notify []Notification `json:"notify,omitempty"`
}

type responseEnvelope struct {
	Header *struct {
		Context *responseContext `json:"context"`
	} `json:"Header,omitempty"`
	Body map[string]json.RawMessage `json:"Body"`
}

// Client speaks the JSON flavour of the mail server's SOAP API over HTTP.
// It tracks the server session and acknowledges the last notification
// sequence it delivered, so each notification block is handed out once.
// HTTP 429 responses are retried with exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger

	mu        gosync.Mutex
	authToken string
	sessionID string
	ackSeq    int
	onNotify  NotifyHandler
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the HTTP round-trip timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets how many times a rate-limited request is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a client for the server at baseURL
// (e.g., https://mail.example.com).
func NewClient(baseURL, authToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthToken replaces the token sent with every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// OnNotify registers the handler for header notifications.
func (c *Client) OnNotify(h NotifyHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNotify = h
}

// SessionID returns the server session id, empty before the first response.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Invoke implements Invoker.
func (c *Client) Invoke(
	ctx context.Context,
	op string,
	req interface{},
	resp interface{},
) error {
	env := c.envelope(op, req)
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", op, err)
	}

	url := c.baseURL + "/service/soap/" + op + "Request"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(
			ctx, http.MethodPost, url, bytes.NewReader(data),
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		start := time.Now()
		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("executing %s: %w", op, err)
		}

		body, readErr := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading %s response body: %w", op, readErr)
		}

		c.logger.Debug("soap call",
			zap.String("op", op),
			zap.Int("status", httpResp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
		)

		if httpResp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfterDuration(httpResp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s", op)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if httpResp.StatusCode == http.StatusUnauthorized {
			return &AuthError{
				Message: fmt.Sprintf("%s rejected the session (401)", c.baseURL),
			}
		}

		return c.decode(op, httpResp.StatusCode, body, resp)
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// envelope wraps the payload with the session context header.
func (c *Client) envelope(op string, req interface{}) requestEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	var env requestEnvelope
	env.Header.Context = requestContext{
		JSNS:      NSZimbra,
		AuthToken: c.authToken,
		Session:   &sessionRef{ID: c.sessionID},
	}
	if c.ackSeq > 0 {
		env.Header.Context.Notify = &notifyAck{Seq: c.ackSeq}
	}
	env.Body = map[string]interface{}{op + "Request": req}
	return env
}

// decode extracts the response element, a fault, and the header
// notifications from a response body.
func (c *Client) decode(op string, status int, body []byte, resp interface{}) error {
	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status < 200 || status >= 300 {
			return fmt.Errorf(
				"unexpected status %d on %s: %s", status, op, string(body),
			)
		}
		return fmt.Errorf("unmarshaling %s response: %w", op, err)
	}

	c.handleHeader(env)

	if raw, ok := env.Body["Fault"]; ok {
		var fb FaultBody
		if err := json.Unmarshal(raw, &fb); err != nil {
			return fmt.Errorf("unmarshaling %s fault: %w", op, err)
		}
		return newFault(op, fb)
	}

	raw, ok := env.Body[op+"Response"]
	if !ok {
		return fmt.Errorf("%w: no %sResponse (status %d)", ErrUnexpectedResponse, op, status)
	}
	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("unmarshaling %s response: %w", op, err)
	}
	return nil
}

// handleHeader records the session and forwards unseen notifications.
func (c *Client) handleHeader(env responseEnvelope) {
	if env.Header == nil || env.Header.Context == nil {
		return
	}
	ctx := env.Header.Context

	c.mu.Lock()
	if ctx.Session != nil && ctx.Session.ID != "" && ctx.Session.ID != c.sessionID {
		if c.sessionID != "" {
			c.logger.Info("soap session changed",
				zap.String("old", c.sessionID),
				zap.String("new", ctx.Session.ID),
			)
		}
		c.sessionID = ctx.Session.ID
		c.ackSeq = 0
	}
	var fresh []Notification
	for _, n := range ctx.Notify {
		if n.Seq > c.ackSeq {
			fresh = append(fresh, n)
		}
	}
	for _, n := range fresh {
		if n.Seq > c.ackSeq {
			c.ackSeq = n.Seq
		}
	}
	handler := c.onNotify
	session := c.sessionID
	c.mu.Unlock()

	if handler != nil && len(fresh) > 0 {
		handler(session, fresh)
	}
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
