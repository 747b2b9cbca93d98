// Package universalis fetches market board listings from a Universalis
// compatible API.
package universalis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

const (
	defaultBaseURL = "https://universalis.app"
	// maxItemsPerRequest is the service's limit on IDs per market request.
	maxItemsPerRequest = 100
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	ListingsPerItem   int
	UserAgent         string
}

// Client fetches listings for batches of items. It does not retry; a
// failed request comes back as a *crafting.FetchError saying whether a
// retry is worthwhile.
type Client struct {
	baseURL   string
	http      *retryablehttp.Client
	limiter   *rate.Limiter
	listings  int
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a Client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 8
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "craft-market-planner"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.Logger = nil
	client.RetryMax = 0
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      client,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		listings:  cfg.ListingsPerItem,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// FetchListings returns the current listings of itemIDs in region, which
// may name a world, a data center or a larger region. Items without any
// listing are absent from the result.
func (c *Client) FetchListings(ctx context.Context, region string, itemIDs []int) (crafting.RegionListings, error) {
	result := make(crafting.RegionListings)
	for start := 0; start < len(itemIDs); start += maxItemsPerRequest {
		end := min(start+maxItemsPerRequest, len(itemIDs))
		if err := c.fetchBatch(ctx, region, itemIDs[start:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Client) fetchBatch(ctx context.Context, region string, ids []int, into crafting.RegionListings) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &crafting.FetchError{Region: region, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.marketURL(region, ids), nil)
	if err != nil {
		return &crafting.FetchError{Region: region, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		retry, _ := retryablehttp.DefaultRetryPolicy(ctx, nil, err)
		return &crafting.FetchError{
			Region:    region,
			Retryable: retry || errors.Is(err, context.DeadlineExceeded),
			Err:       err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("market request",
		"region", region,
		"items", len(ids),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retry, _ := retryablehttp.DefaultRetryPolicy(ctx, resp, nil)
		return &crafting.FetchError{
			Region:     region,
			StatusCode: resp.StatusCode,
			Retryable:  retry,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	var body marketResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &crafting.FetchError{Region: region, Retryable: true, Err: err}
		}
		return &crafting.FetchError{Region: region, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if len(body.Items) == 0 && len(ids) == 1 && len(body.Listings) > 0 {
		// a single-item request answers with the item at the top level
		if body.ItemID == 0 {
			body.ItemID = flexID(ids[0])
		}
		body.Items = map[string]itemResponse{strconv.Itoa(int(body.ItemID)): body.itemResponse}
	}

	for key, item := range body.Items {
		id := int(item.ItemID)
		if id == 0 {
			n, err := strconv.Atoi(key)
			if err != nil {
				c.logger.Warn("skipping item with unparseable key", "key", key)
				continue
			}
			id = n
		}
		if listings := convertItem(region, id, item); len(listings.Listings) > 0 {
			into[id] = listings
		}
	}

	if len(body.UnresolvedItems) > 0 {
		c.logger.Debug("unresolved items", "region", region, "count", len(body.UnresolvedItems))
	}
	return nil
}

func (c *Client) marketURL(region string, ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	u := fmt.Sprintf("%s/api/v2/%s/%s", c.baseURL, url.PathEscape(region), strings.Join(parts, ","))

	q := url.Values{}
	q.Set("entries", "0")
	if c.listings > 0 {
		q.Set("listings", strconv.Itoa(c.listings))
	}
	return u + "?" + q.Encode()
}

// convertItem maps one item of the response. Listings of a single-world
// query carry no world of their own and inherit the item's.
func convertItem(region string, itemID int, item itemResponse) crafting.ItemListings {
	out := crafting.ItemListings{
		ItemID:       itemID,
		Region:       region,
		AveragePrice: item.AveragePrice,
		Listings:     make([]crafting.Listing, 0, len(item.Listings)),
	}
	for _, l := range item.Listings {
		if l.Quantity <= 0 {
			continue
		}
		listing := crafting.Listing{
			WorldID:      int(l.WorldID),
			WorldName:    l.WorldName,
			Quantity:     l.Quantity,
			PricePerUnit: l.PricePerUnit,
			RetainerName: l.RetainerName,
			IsHQ:         l.HQ,
		}
		if listing.WorldName == "" {
			listing.WorldName = item.WorldName
			listing.WorldID = int(item.WorldID)
		}
		if listing.WorldName == "" {
			listing.WorldName = region
		}
		out.Listings = append(out.Listings, listing)
	}
	return out
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
