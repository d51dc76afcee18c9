package domain

import (
	"context"
	"time"
)

const (
	DefaultSummaryDays = 7
	MaxSummaryDays     = 90

	// DefaultCategory is used for sessions without a category.
	DefaultCategory = "other"
	// SocialCategory drives the productivity penalty.
	SocialCategory = "social"
)

type CategoryUsage struct {
	Category string `json:"category" yaml:"category"`
	Minutes  int    `json:"minutes" yaml:"minutes"`
}

type DailyUsage struct {
	Date     string `json:"date" yaml:"date"` // UTC, 2006-01-02
	Minutes  int    `json:"minutes" yaml:"minutes"`
	Sessions int    `json:"sessions" yaml:"sessions"`
}

// Summary is the dashboard view over a window of days.
type Summary struct {
	DailyAverage      int             `json:"dailyAverage" yaml:"dailyAverage"`
	AppUsage          []CategoryUsage `json:"appUsage" yaml:"appUsage"`
	ProductivityScore int             `json:"productivityScore" yaml:"productivityScore"`
	Daily             []DailyUsage    `json:"daily" yaml:"daily"`
}

// SummaryQuery selects the window and, optionally, a single user.
type SummaryQuery struct {
	Days   int
	UserID *string
}

func (q SummaryQuery) Validate() error {
	if q.Days < 1 || q.Days > MaxSummaryDays {
		return ErrInvalidSummaryDays
	}
	return nil
}

// Scope names the population a query covers, for cache keys and logs.
func (q SummaryQuery) Scope() string {
	if q.UserID == nil {
		return "all"
	}
	return "user:" + *q.UserID
}

type SummaryService interface {
	Summary(ctx context.Context, q SummaryQuery) (*Summary, error)
}

// CacheGeneration counts invalidations. A summary belongs to the generation
// that was current before its rows were read.
type CacheGeneration int64

// SummaryCache stores computed summaries. Implementations key entries by
// generation so Invalidate drops every entry at once.
type SummaryCache interface {
	// Get returns the cached summary. On ErrCacheMiss it also returns the
	// current generation, which the caller passes to Set once computed; a
	// summary stored under a generation that has since moved on is never read.
	Get(ctx context.Context, q SummaryQuery) (*Summary, CacheGeneration, error)
	Set(ctx context.Context, gen CacheGeneration, q SummaryQuery, s *Summary, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}
