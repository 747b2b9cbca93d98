package crafting

import (
	"fmt"
	"time"
)

// ErrInvalidTarget indicates a plan target that cannot be built.
type ErrInvalidTarget struct {
	Index  int
	Reason string
}

func (e *ErrInvalidTarget) Error() string {
	return fmt.Sprintf("invalid target %d: %s", e.Index, e.Reason)
}

// FetchError is a failed market data request for one region.
type FetchError struct {
	Region     string
	StatusCode int
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching listings for %s: status %d: %v", e.Region, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching listings for %s: %v", e.Region, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedPlanVersion indicates a persisted plan newer than this build.
type ErrUnsupportedPlanVersion struct {
	Version int
}

func (e *ErrUnsupportedPlanVersion) Error() string {
	return fmt.Sprintf("unsupported plan version %d", e.Version)
}
