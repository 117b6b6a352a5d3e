// Package httpsession owns the outbound HTTP plumbing shared by every vendor
// adapter: one pooled transport per process, one cookie jar per vendor login.
package httpsession

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"resty.dev/v3"

	"github.com/angelmondragon/ordo-backend/pkg/config"
)

const (
	retryWaitTime    = 500 * time.Millisecond
	retryMaxWaitTime = 5 * time.Second
)

var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
}

// Session is constructed once per process and handed to every vendor client.
type Session struct {
	cfg       config.VendorsConfig
	transport *http.Transport
}

// New builds the shared transport from the vendor HTTP settings.
func New(cfg config.VendorsConfig) (*Session, error) {
	if cfg.HTTPTimeout <= 0 {
		return nil, errors.New("vendor http timeout must be positive")
	}
	if cfg.RetryCount < 0 {
		return nil, errors.New("vendor retry count must not be negative")
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse vendor proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Session{cfg: cfg, transport: transport}, nil
}

// Client is a resty client bound to one vendor site with its own cookie jar,
// so two offices logged into the same vendor never share a login.
type Client struct {
	http *resty.Client
	jar  http.CookieJar
}

// NewClient returns a client for baseURL on top of the shared transport.
func (s *Session) NewClient(baseURL string) (*Client, error) {
	if s == nil {
		return nil, errors.New("http session is nil")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	rc := resty.NewWithClient(&http.Client{Transport: s.transport, Jar: jar}).
		SetTimeout(s.cfg.HTTPTimeout).
		SetRetryCount(s.cfg.RetryCount).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		SetHeader("User-Agent", s.cfg.UserAgent).
		SetHeaders(defaultHeaders).
		SetCookieJar(jar)
	if baseURL != "" {
		rc.SetBaseURL(baseURL)
	}

	return &Client{http: rc, jar: jar}, nil
}

// R starts a request bound to ctx.
func (c *Client) R(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// Cookies returns the cookies the jar holds for rawURL.
func (c *Client) Cookies(rawURL string) ([]*http.Cookie, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return c.jar.Cookies(u), nil
}

// GetHTML fetches path and returns the body. Non-2xx responses become *StatusError.
func (c *Client) GetHTML(ctx context.Context, path string, query map[string]string) (string, error) {
	req := c.R(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", &StatusError{Status: resp.StatusCode(), URL: resp.Request.URL}
	}
	return resp.String(), nil
}

// PostForm submits an urlencoded form and returns the response for the caller to inspect.
func (c *Client) PostForm(ctx context.Context, path string, form map[string]string) (*resty.Response, error) {
	return c.R(ctx).SetFormData(form).Post(path)
}

// Close releases idle pooled connections.
func (s *Session) Close() {
	if s == nil || s.transport == nil {
		return
	}
	s.transport.CloseIdleConnections()
}

// StatusError reports a vendor response outside the 2xx range.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor responded %d for %s", e.Status, e.URL)
}
