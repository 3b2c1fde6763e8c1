// Package carimage looks up a stock photo URL for a car on carimagery.com.
package carimage

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ezoic/intelicar/pkg/log"
)

// DefaultEndpoint is the carimagery lookup service.
const DefaultEndpoint = "https://api.carimagery.com/api.asmx/GetImageUrl"

// Client fetches image URLs. The zero value is not usable; use NewClient.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	logger   log.Logger
}

// NewClient creates a client for DefaultEndpoint with a 10 second timeout.
func NewClient() *Client {
	return &Client{
		Endpoint: DefaultEndpoint,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		logger:   log.GetLoggerWithName("carimage"),
	}
}

// FetchImageURL returns the photo URL for the car and true, or "" and false
// when the lookup fails for any reason. Failures are only logged at debug
// level.
func (c *Client) FetchImageURL(ctx context.Context, mk, model string, year int) (string, bool) {
	// The service expects literal "+" separators, so the term is escaped
	// piecewise.
	parts := []string{strconv.Itoa(year), url.QueryEscape(mk), url.QueryEscape(model)}
	target := c.Endpoint + "?searchTerm=" + strings.Join(parts, "+")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.Debug("Image lookup request failed", log.ErrorKey, err)
		return "", false
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		c.logger.Debug("Image lookup failed", log.ErrorKey, err)
		return "", false
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		c.logger.Debug("Image lookup returned non-200", "status", res.StatusCode)
		return "", false
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		c.logger.Debug("Image lookup response unreadable", log.ErrorKey, err)
		return "", false
	}
	text := doc.Find("string").First().Text()
	if text == "" {
		text = doc.Text()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}

// FetchImageURL looks the car up with a default client.
func FetchImageURL(ctx context.Context, mk, model string, year int) (string, bool) {
	return NewClient().FetchImageURL(ctx, mk, model, year)
}
