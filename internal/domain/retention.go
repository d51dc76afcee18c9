package domain

import (
	"context"
	"time"
)

const (
	DefaultRetentionDays = 90
	MaxRetentionDays     = 3650
)

// RetentionPolicy selects which rows a purge removes.
type RetentionPolicy struct {
	Days           int
	AnonymizedOnly bool
}

func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{Days: DefaultRetentionDays, AnonymizedOnly: true}
}

func (p RetentionPolicy) Validate() error {
	if p.Days < 1 || p.Days > MaxRetentionDays {
		return ErrInvalidRetentionDays
	}
	return nil
}

// Cutoff is the creation time before which rows are purged.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(p.Days) * 24 * time.Hour)
}

type RetentionService interface {
	Purge(ctx context.Context, p RetentionPolicy) (int64, error)
}
