package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/flemzord/presenced/internal/completion"
)

// Positions in the fetchCascadePage argument list this client reads.
const (
	argGeohash    = 0
	argPageNumber = 22
)

var errBadArgs = errors.New("cascade.http: bad arguments")

// Client calls the cascade endpoint.
type Client struct {
	config Config
	http   *http.Client
	ctx    context.Context // canceled on Close
}

func newClient(ctx context.Context, cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{config: cfg, http: hc, ctx: ctx}
}

// fetchCascadePage starts a request for the page described by args and
// returns at once. The outcome is delivered through done from another
// goroutine: "Success(<status>)" on 2xx, an error otherwise.
func (c *Client) fetchCascadePage(args []any, done completion.Handle) error {
	req, err := c.newRequest(args)
	if err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(req.Context(), c.config.Timeout)
		defer cancel()

		resp, err := c.http.Do(req.WithContext(ctx))
		if err != nil {
			done.Reject(fmt.Errorf("cascade.http: request: %w", err))
			return
		}
		defer func() { _ = resp.Body.Close() }()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			done.Reject(fmt.Errorf("cascade.http: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
			return
		}
		done.Resolve(fmt.Sprintf("Success(%d)", resp.StatusCode))
	}()
	return nil
}

func (c *Client) newRequest(args []any) (*http.Request, error) {
	if len(args) <= argPageNumber {
		return nil, fmt.Errorf("%w: got %d, need at least %d", errBadArgs, len(args), argPageNumber+1)
	}
	geohash, ok := args[argGeohash].(string)
	if !ok || geohash == "" {
		return nil, fmt.Errorf("%w: geohash must be a non-empty string, got %T", errBadArgs, args[argGeohash])
	}
	page := 1
	if p, ok := args[argPageNumber].(int); ok && p > 0 {
		page = p
	}

	q := url.Values{}
	q.Set("nearbyGeoHash", geohash)
	q.Set("pageNumber", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet,
		strings.TrimRight(c.config.BaseURL, "/")+c.config.Path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("cascade.http: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	return req, nil
}
