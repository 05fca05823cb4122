package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/logging"
)

const maxErrorBodySize = 1024

var (
	// ErrStatus reports a non-2xx response.
	ErrStatus = errors.New("remote service returned non-2xx status")
	// ErrMalformed reports a response body that is not valid JSON.
	ErrMalformed = errors.New("remote service returned malformed JSON")
	// ErrFlagged reports a response body carrying "error": true.
	ErrFlagged = errors.New("remote service flagged an error")
)

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// Cache memoizes successful responses by URL and body. May be nil.
	Cache    core.ResponseCache
	CacheTTL time.Duration
	Logger   logging.Logger
}

// Client posts JSON to remote services.
type Client struct {
	http     *http.Client
	cache    core.ResponseCache
	cacheTTL time.Duration
	logger   logging.Logger
}

// NewClient creates a Client. Timeouts come from the caller's context, so
// the default HTTP client has none of its own.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		HTTPClient: &http.Client{},
		CacheTTL:   5 * time.Minute,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		http:     opts.HTTPClient,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logging.OrNoOp(opts.Logger),
	}
}

// Call posts body to url and returns the validated response body.
func (c *Client) Call(ctx context.Context, url string, body []byte) ([]byte, error) {
	key := cacheKey(url, body)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("remote cache hit", "url", url)
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("%w: %d from %s: %s", ErrStatus, resp.StatusCode, url, string(msg))
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	if err := validate(out); err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}

	c.logger.Debug("remote call completed", "url", url, "duration", time.Since(start), "bytes", len(out))

	if c.cache != nil {
		c.cache.Put(key, out, c.cacheTTL)
	}

	return out, nil
}

func validate(body []byte) error {
	if !gjson.ValidBytes(body) {
		return ErrMalformed
	}
	if gjson.GetBytes(body, "error").Bool() {
		if msg := gjson.GetBytes(body, "message").String(); msg != "" {
			return fmt.Errorf("%w: %s", ErrFlagged, msg)
		}
		return ErrFlagged
	}
	return nil
}

func cacheKey(url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
