package models

import (
	"strconv"
	"time"
)

// CacheEntry is one row of the SQL-backed key/value store. With Redis off it
// holds the rate limiter's fixed-window counters. A zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string `gorm:"primaryKey;size:256"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName keeps the store's table stable when the struct is renamed.
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// ExpiredAt reports whether the entry is dead at now.
func (e CacheEntry) ExpiredAt(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Counter decodes Value as a decimal counter. Garbage reads as zero.
func (e CacheEntry) Counter() int64 {
	n, err := strconv.ParseInt(string(e.Value), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// SetCounter stores n as the entry value.
func (e *CacheEntry) SetCounter(n int64) {
	e.Value = strconv.AppendInt(e.Value[:0], n, 10)
}
