package engine

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// FetchConfig controls retries and pacing of region fetches.
type FetchConfig struct {
	// MaxAttempts is the total number of tries per region, first one included.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// RegionDelay is waited between consecutive regions.
	RegionDelay time.Duration
}

// DefaultFetchConfig returns the standard fetch settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffMax:  8 * time.Second,
		Timeout:     15 * time.Second,
		RegionDelay: 100 * time.Millisecond,
	}
}

func (c FetchConfig) withDefaults() FetchConfig {
	d := DefaultFetchConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.RegionDelay < 0 {
		c.RegionDelay = 0
	}
	return c
}

// FetchRecorder receives fetch metrics. A nil recorder is allowed.
type FetchRecorder interface {
	RecordAttempt(region string)
	RecordRetry(region, reason string)
	RecordRegionFailure(region string)
	RecordDuration(region string, d time.Duration)
}

// RegionFailure describes a region that could not be fetched.
type RegionFailure struct {
	Region   string
	Attempts int
	Err      error
}

// RegionFetchResult collects the outcome of a multi-region fetch. Regions
// that completed before a cancellation keep their listings.
type RegionFetchResult struct {
	Listings  map[string]crafting.RegionListings
	Succeeded []string
	Failed    []RegionFailure
	Cancelled bool
}

// FailedRegions returns the names of the failed regions in fetch order.
func (r *RegionFetchResult) FailedRegions() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Region)
	}
	return out
}

// RegionFetchCoordinator queries regions one at a time with a short delay
// between them, retrying transient failures with exponential backoff. A
// failed region never stops the others.
type RegionFetchCoordinator struct {
	source   MarketSource
	cfg      FetchConfig
	clock    Clock
	recorder FetchRecorder
	logger   *slog.Logger
}

// NewRegionFetchCoordinator creates a coordinator over source.
func NewRegionFetchCoordinator(source MarketSource, cfg FetchConfig) *RegionFetchCoordinator {
	return &RegionFetchCoordinator{
		source: source,
		cfg:    cfg.withDefaults(),
		clock:  NewRealClock(),
		logger: slog.Default(),
	}
}

// Fetch queries every region in order for itemIDs.
func (c *RegionFetchCoordinator) Fetch(ctx context.Context, regions []string, itemIDs []int, progress crafting.ProgressFunc) *RegionFetchResult {
	result := &RegionFetchResult{Listings: make(map[string]crafting.RegionListings)}

	for i, region := range regions {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if i > 0 && c.cfg.RegionDelay > 0 {
			if err := c.clock.Sleep(ctx, c.cfg.RegionDelay); err != nil {
				result.Cancelled = true
				break
			}
		}

		report(progress, crafting.Progress{
			Stage:   crafting.StageFetching,
			Current: i + 1,
			Total:   len(regions),
			Region:  region,
		})

		listings, attempts, err := c.fetchRegion(ctx, region, itemIDs, progress)
		if err != nil {
			if ctx.Err() != nil {
				result.Cancelled = true
				break
			}
			c.logger.Warn("region fetch failed",
				"region", region,
				"attempts", attempts,
				"error", err,
			)
			if c.recorder != nil {
				c.recorder.RecordRegionFailure(region)
			}
			result.Failed = append(result.Failed, RegionFailure{Region: region, Attempts: attempts, Err: err})
			report(progress, crafting.Progress{
				Stage:   crafting.StageRegionFailed,
				Current: i + 1,
				Total:   len(regions),
				Region:  region,
				Message: err.Error(),
			})
			continue
		}

		result.Listings[region] = listings
		result.Succeeded = append(result.Succeeded, region)
		report(progress, crafting.Progress{
			Stage:   crafting.StageRegionDone,
			Current: i + 1,
			Total:   len(regions),
			Region:  region,
		})
	}

	return result
}

// fetchRegion runs the attempts for one region and returns the number of
// attempts made.
func (c *RegionFetchCoordinator) fetchRegion(ctx context.Context, region string, itemIDs []int, progress crafting.ProgressFunc) (crafting.RegionListings, int, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if c.recorder != nil {
			c.recorder.RecordAttempt(region)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		start := c.clock.Now()
		listings, err := c.source.FetchListings(attemptCtx, region, itemIDs)
		cancel()
		if c.recorder != nil {
			c.recorder.RecordDuration(region, c.clock.Now().Sub(start))
		}

		if err == nil {
			return listings, attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt + 1, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, attempt + 1, err
		}
		if attempt+1 >= c.cfg.MaxAttempts {
			break
		}

		delay := c.backoff(attempt, err)
		c.logger.Info("retrying region fetch",
			"region", region,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if c.recorder != nil {
			c.recorder.RecordRetry(region, retryReason(err))
		}
		report(progress, crafting.Progress{
			Stage:   crafting.StageRetrying,
			Current: attempt + 1,
			Total:   c.cfg.MaxAttempts,
			Region:  region,
			Message: err.Error(),
		})

		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, c.cfg.MaxAttempts, lastErr
}

// backoff returns the wait before the next attempt. A server-provided
// Retry-After wins but is capped at BackoffMax.
func (c *RegionFetchCoordinator) backoff(attempt int, err error) time.Duration {
	var fe *crafting.FetchError
	if errors.As(err, &fe) && fe.RetryAfter > 0 {
		return min(fe.RetryAfter, c.cfg.BackoffMax)
	}
	return retryablehttp.DefaultBackoff(c.cfg.BackoffBase, c.cfg.BackoffMax, attempt, nil)
}

// isRetryable reports whether err is transient: a timeout, a connection
// problem, or a FetchError marked retryable.
func isRetryable(err error) bool {
	var fe *crafting.FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryReason(err error) string {
	var fe *crafting.FetchError
	switch {
	case errors.As(err, &fe) && fe.StatusCode == 429:
		return "rate_limited"
	case errors.As(err, &fe) && fe.StatusCode >= 500:
		return "server_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "network"
	}
}
