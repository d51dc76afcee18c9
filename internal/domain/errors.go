package domain

import "errors"

var (
	ErrCacheMiss            = errors.New("summary cache miss")
	ErrInvalidRetentionDays = errors.New("retention days out of range")
	ErrInvalidSummaryDays   = errors.New("summary days out of range")
	ErrEmptyBatch           = errors.New("empty session batch")
)
