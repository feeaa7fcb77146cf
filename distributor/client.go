// Package distributor talks to a remote distributor service over HTTP.
package distributor

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JiscSD/ammolib/request"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	// MediaTypeRequest is the content type of an encoded request.
	MediaTypeRequest = "application/vnd.edu.vu.isis.ammo.request"

	requestsPath = "requests"
	healthPath   = "health"
)

// Remote is a distributor that can be probed.
type Remote interface {
	request.Distributor
	Ping(ctx context.Context) error
}

// Client implements request.Distributor. Calls fail fast with
// request.ErrRemoteUnavailable while the circuit breaker is open.
type Client struct {
	baseURL   *url.URL
	client    *http.Client
	userAgent string
	logger    logrus.FieldLogger
	settings  gobreaker.Settings
	cb        *gobreaker.CircuitBreaker
}

var _ Remote = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.client = c
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

func WithClientLogger(logger logrus.FieldLogger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithBreaker opens the circuit after maxFailures consecutive failures and
// keeps it open for openTimeout.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) ClientOption {
	return func(cl *Client) {
		cl.settings.Timeout = openTimeout
		cl.settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "error processing distributor URL (%q)", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	const (
		dialTimeout      = 5 * time.Second
		handshakeTimeout = 5 * time.Second
		timeout          = 10 * time.Second
	)
	c := &Client{
		baseURL:   u,
		userAgent: "ammolib",
		logger:    logrus.StandardLogger(),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
				TLSHandshakeTimeout: handshakeTimeout,
			},
		},
		settings: gobreaker.Settings{
			Name:        "distributor",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	logger := c.logger
	c.settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.WithFields(logrus.Fields{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("Distributor circuit breaker changed state")
	}
	c.cb = gobreaker.NewCircuitBreaker(c.settings)
	return c, nil
}

// MakeRequest posts the encoded request and returns the identifier assigned
// by the distributor.
func (c *Client) MakeRequest(ctx context.Context, req *request.Request) (string, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.do(ctx, http.MethodPost, requestsPath, request.Marshal(req))
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "", errors.Wrap(request.ErrRemoteUnavailable, err.Error())
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out.([]byte))), nil
}

// Ping checks that the distributor is serving. It bypasses the breaker.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, healthPath, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	dest := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, dest.String(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}
	if body != nil {
		req.Header.Set("Content-Type", MediaTypeRequest)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, dest)
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading the response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %s", method, dest, http.StatusText(resp.StatusCode))
	}
	return data, nil
}
