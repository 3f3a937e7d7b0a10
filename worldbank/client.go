// Package worldbank fetches annual macro indicators from the World Bank
// indicator API.
package worldbank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sartorproj/revforecast/timeseries"
)

// DefaultBaseURL is the public v2 API root.
const DefaultBaseURL = "https://api.worldbank.org/v2"

const perPage = 1000

// ErrNoData is returned when the API has no non-null value in the range.
var ErrNoData = errors.New("worldbank: no data")

// Indicator is a World Bank indicator code with a readable name.
type Indicator struct {
	Code string
	Name string
}

// DefaultIndicators are ingested when no indicator list is given.
var DefaultIndicators = []Indicator{
	{Code: "NY.GDP.MKTP.CD", Name: "GDP"},
	{Code: "SP.POP.TOTL", Name: "Population"},
	{Code: "FP.CPI.TOTL.ZG", Name: "Inflation"},
	{Code: "NY.GDP.PCAP.CD", Name: "GDP per capita"},
}

// DefaultCountries are ISO3 codes ingested when no country list is given.
var DefaultCountries = []string{"IND", "BRA"}

// Client calls the indicator endpoint with retries.
type Client struct {
	baseURL    string
	client     *http.Client
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithMaxTries bounds the attempts per page request.
func WithMaxTries(n uint) Option {
	return func(c *Client) { c.maxTries = n }
}

// WithBackOff sets the retry policy.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = newBackOff }
}

// NewClient creates a client for baseURL. A nil httpClient uses one with a
// 30 second timeout.
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   httpClient,
		maxTries: 4,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pageHeader struct {
	Pages   int            `json:"pages"`
	Message []errorMessage `json:"message"`
}

type errorMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type record struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type page struct {
	pages   int
	records []record
}

// FetchIndicator returns the annual values of indicator for country between
// from and to inclusive, ordered by year. Null values are skipped.
func (c *Client) FetchIndicator(ctx context.Context, country, indicator string, from, to int) (*timeseries.Series, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	indicator = strings.TrimSpace(indicator)
	if country == "" || indicator == "" {
		return nil, errors.New("country and indicator are required")
	}
	if from > to {
		return nil, fmt.Errorf("year range %d:%d is inverted", from, to)
	}

	series := &timeseries.Series{Name: country + "/" + indicator}
	for n, pages := 1, 1; n <= pages; n++ {
		p, err := backoff.Retry(ctx, func() (page, error) {
			return c.fetchPage(ctx, country, indicator, from, to, n)
		}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.maxTries))
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s page %d: %w", country, indicator, n, err)
		}
		pages = p.pages

		for _, r := range p.records {
			if r.Value == nil {
				continue
			}
			year, err := strconv.Atoi(r.Date)
			if err != nil {
				return nil, fmt.Errorf("%s %s: invalid date %q", country, indicator, r.Date)
			}
			series.Observations = append(series.Observations, timeseries.Observation{Period: year, Value: *r.Value})
		}
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%s %s %d:%d: %w", country, indicator, from, to, ErrNoData)
	}

	// The API lists the latest year first.
	sort.Slice(series.Observations, func(i, j int) bool {
		return series.Observations[i].Period < series.Observations[j].Period
	})
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", country, indicator, err)
	}
	return series, nil
}

func (c *Client) pageURL(country, indicator string, from, to, n int) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("date", fmt.Sprintf("%d:%d", from, to))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(n))
	return fmt.Sprintf("%s/country/%s/indicator/%s?%s",
		c.baseURL, url.PathEscape(country), url.PathEscape(indicator), q.Encode())
}

// fetchPage requests one page. Errors other than transport failures, 429 and
// 5xx responses are permanent.
func (c *Client) fetchPage(ctx context.Context, country, indicator string, from, to, n int) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(country, indicator, from, to, n), nil)
	if err != nil {
		return page{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return page{}, fmt.Errorf("api returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return page{}, backoff.Permanent(fmt.Errorf("api returned %s", resp.Status))
	}

	var body []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return page{}, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(body) == 0 {
		return page{}, backoff.Permanent(errors.New("empty response"))
	}

	var header pageHeader
	if err := json.Unmarshal(body[0], &header); err != nil {
		return page{}, backoff.Permanent(fmt.Errorf("decode page header: %w", err))
	}
	if len(header.Message) > 0 {
		m := header.Message[0]
		return page{}, backoff.Permanent(fmt.Errorf("api error %s: %s", m.ID, m.Value))
	}

	out := page{pages: header.Pages}
	if len(body) < 2 {
		return out, nil
	}
	if err := json.Unmarshal(body[1], &out.records); err != nil {
		return page{}, backoff.Permanent(fmt.Errorf("decode records: %w", err))
	}
	return out, nil
}
