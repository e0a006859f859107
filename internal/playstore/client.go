// Package playstore looks up app listings on Google Play by package name.
package playstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL       = "https://play.google.com"
	DefaultRatePerMinute = 30
	DefaultTimeout       = 15 * time.Second

	maxBodyBytes = 8 << 20
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	ErrInvalidIdentifier = errors.New("invalid package identifier")
	ErrNotFound          = errors.New("app not found in store")
	ErrUnavailable       = errors.New("store unavailable")
	ErrMalformed         = errors.New("malformed store response")
)

var packageIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// CatalogData is the normalized listing of one app.
type CatalogData struct {
	Title         string
	Description   string
	Version       string
	Developer     string
	Icon          string
	Screenshots   []string
	RatingScore   float64
	ReviewCount   int64
	SizeLabel     string
	UpdatedLabel  string
	CanonicalURL  string
	RecentChanges string
}

type Config struct {
	BaseURL       string
	Lang          string
	Country       string
	RatePerMinute int
	Timeout       time.Duration
}

// Client wraps the Google Play details page with rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	lang       string
	country    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = DefaultRatePerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "us"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		lang:       cfg.Lang,
		country:    cfg.Country,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute),
		logger:     logger,
	}
}

// ValidatePackageID checks the Android package-name grammar without any I/O.
func ValidatePackageID(packageID string) error {
	if packageID == "" || len(packageID) > 255 || !packageIDPattern.MatchString(packageID) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, packageID)
	}
	return nil
}

// FetchCatalogData fetches and parses the store listing for packageID.
// Every failure wraps one of the package errors.
func (c *Client) FetchCatalogData(ctx context.Context, packageID string) (*CatalogData, error) {
	if err := ValidatePackageID(packageID); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrUnavailable, err)
	}

	detailsURL := c.detailsURL(packageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", c.lang)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, packageID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	data, err := parseDetailsPage(body)
	if err != nil {
		c.logger.Warn("unparseable store response",
			zap.String("package_id", packageID),
			zap.Int("body_bytes", len(body)),
			zap.String("snippet", snippet(body, 256)),
			zap.Error(err))
		return nil, err
	}
	data.CanonicalURL = c.canonicalURL(packageID)
	return data, nil
}

func (c *Client) detailsURL(packageID string) string {
	q := url.Values{}
	q.Set("id", packageID)
	q.Set("hl", c.lang)
	q.Set("gl", c.country)
	return c.baseURL + "/store/apps/details?" + q.Encode()
}

func (c *Client) canonicalURL(packageID string) string {
	return c.baseURL + "/store/apps/details?id=" + url.QueryEscape(packageID)
}

func snippet(body []byte, n int) string {
	if len(body) > n {
		body = body[:n]
	}
	return string(body)
}
