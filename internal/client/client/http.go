package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/cartkeeper/internal/client/models"
	"github.com/dmitrijs2005/cartkeeper/internal/logging"
	"github.com/sethvargo/go-retry"
)

const maxResponseBytes = 4 << 20

type Options struct {
	// Timeout bounds a single HTTP attempt. Zero means no timeout.
	Timeout       time.Duration
	RetryAttempts uint64
	RetryBackoff  time.Duration
	HTTPClient    *http.Client
	Logger        logging.Logger
}

// HTTPClient implements CartAPI over HTTP/JSON.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	timeout  time.Duration
	attempts uint64
	backoff  time.Duration
	logger   logging.Logger
}

var _ CartAPI = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string, tokens TokenSource, opts Options) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	return &HTTPClient{
		baseURL:  strings.TrimRight(u.String(), "/"),
		http:     hc,
		tokens:   tokens,
		timeout:  opts.Timeout,
		attempts: opts.RetryAttempts,
		backoff:  backoff,
		logger:   logger.With("module", "cart_api"),
	}, nil
}

// FetchCart returns the user's remote cart. A 404 is an empty cart.
func (c *HTTPClient) FetchCart(ctx context.Context, userID string) ([]models.RemoteItem, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart/"+url.PathEscape(userID), nil)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeItems(body)
}

type addItemBody struct {
	ProductID any `json:"productId"`
	Quantity  int `json:"quantity"`
	UserID    any `json:"userId"`
}

func (c *HTTPClient) AddItem(ctx context.Context, req AddItemRequest) (*models.RemoteItem, error) {
	payload := addItemBody{
		ProductID: jsonID(req.ProductID),
		Quantity:  req.Quantity,
		UserID:    jsonID(req.UserID),
	}

	body, err := c.do(ctx, http.MethodPost, "/cart", payload)
	if err != nil {
		return nil, err
	}
	return decodeItem(body)
}

// RemoveItem deletes a remote cart item. An item that is already gone is
// not an error.
func (c *HTTPClient) RemoveItem(ctx context.Context, itemID int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/cart/"+strconv.FormatInt(itemID, 10), nil)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// do sends one logical request. Transient failures of idempotent methods
// are retried; other methods get a single attempt.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	var reqBody []byte
	if payload != nil {
		if reqBody, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	// A POST that timed out may still have been committed; sending it again
	// would create a second remote row.
	retries := c.attempts
	if !idempotent(method) {
		retries = 0
	}
	b := retry.WithMaxRetries(retries, retry.NewExponential(c.backoff))

	var out []byte
	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		body, err := c.send(ctx, method, path, token, reqBody)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				c.logger.Debug(ctx, "transient api failure", "method", method, "path", path, "attempt", attempt, "err", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) send(ctx context.Context, method, path, token string, reqBody []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var r io.Reader
	if reqBody != nil {
		r = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return body, nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s %s", ErrUnauthorized, method, path)
	case code == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrUnavailable, method, path, code)
	default:
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrUnexpectedStatus, method, path, code, snippet(body))
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// jsonID sends canonical integers as JSON numbers and anything else as a
// string, so numeric backends get numbers and string-keyed ones strings.
func jsonID(id string) any {
	if id == "" || (len(id) > 1 && id[0] == '0') {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return json.Number(id)
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
