package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/eric2788/vidpost/internal/modules/config"
	"github.com/eric2788/vidpost/internal/modules/rest"
	"github.com/eric2788/vidpost/pkg/monitor"
	"github.com/eric2788/vidpost/pkg/pool"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "upload")

// TokenSource returns the bearer token sent with signed url requests.
type TokenSource func() (string, error)

type signedURLRequest struct {
	VideoID string `json:"videoId"`
}

type signedURLResponse struct {
	URL string `json:"url"`
}

// Client asks the backend for signed destinations and pushes converted bytes to them.
type Client struct {
	client    *resty.Client
	baseURL   *url.URL
	rateLimit int
	token     TokenSource
}

type Option func(*Client)

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.token = ts
	}
}

// WithRateLimit caps pushes to limit bytes per second, zero means unlimited.
func WithRateLimit(limit int) Option {
	return func(c *Client) {
		c.rateLimit = limit
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.SetTimeout(d)
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base url %q", baseURL)
	}
	c := &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
			SetTimeout(30 * time.Second),
		baseURL: u,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func NewService(cfg *config.Config) (*Client, error) {
	opts := []Option{
		WithRateLimit(cfg.UploadRateLimit),
	}
	if cfg.UploadTimeout > 0 {
		opts = append(opts, WithTimeout(cfg.UploadTimeout))
	}
	if cfg.Username != "" && cfg.PasswordHash != "" {
		opts = append(opts, WithTokenSource(func() (string, error) {
			return rest.IssueToken(cfg, cfg.Username, 5*time.Minute)
		}))
	}
	return NewClient(cfg.PublicURL, opts...)
}

// RequestSignedDestination returns a short lived absolute url the bytes of itemID can be pushed to.
func (c *Client) RequestSignedDestination(ctx context.Context, itemID string) (string, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&signedURLRequest{VideoID: itemID}).
		SetResult(&signedURLResponse{})

	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return "", &SignedURLError{ItemID: itemID, Err: errors.Wrap(err, "issue token")}
		}
		req.SetAuthToken(token)
	}

	res, err := req.Post("/api/upload")
	if err != nil {
		return "", &SignedURLError{ItemID: itemID, Err: errors.Wrap(err, "request")}
	} else if res.IsError() {
		return "", &SignedURLError{ItemID: itemID, Err: fmt.Errorf("status code %d: %s", res.StatusCode(), res.String())}
	}

	body, ok := res.Result().(*signedURLResponse)
	if !ok || body.URL == "" {
		return "", &SignedURLError{ItemID: itemID, Err: errors.New("response has no url")}
	}

	dest, err := c.baseURL.Parse(body.URL)
	if err != nil {
		return "", &SignedURLError{ItemID: itemID, Err: errors.Wrapf(err, "invalid url %q", body.URL)}
	}
	return dest.String(), nil
}

// Push uploads data to dest with a single PUT. There is no retry.
func (c *Client) Push(ctx context.Context, dest string, data []byte) error {
	var body io.Reader = pool.NewLimitReader(ctx, bytes.NewReader(data), c.rateLimit)
	if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		body = monitor.NewProgressReader(body, int64(len(data)), 1024*1024, func(read, total int64) {
			logger.Debugf("pushed %.2f / %.2f MB", float64(read)/1024/1024, float64(total)/1024/1024)
		})
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(body).
		Put(dest)
	if err != nil {
		return &TransportError{URL: redact(dest), Err: errors.Wrap(err, "put")}
	} else if res.IsError() {
		return &TransportError{URL: redact(dest), Err: fmt.Errorf("status code %d: %s", res.StatusCode(), res.String())}
	}
	logger.Debugf("pushed %d bytes to %s", len(data), redact(dest))
	return nil
}

// redact drops the query so tokens stay out of logs and errors.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	return u.String()
}
