// Package model defines the core review data types.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Memo is a normalized note. Memos are never mutated in place; an edit
// replaces the whole value.
type Memo struct {
	ID          string       `json:"id"`
	CreateTime  time.Time    `json:"create_time"`
	Content     string       `json:"content"`
	Tags        []string     `json:"tags,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment references a file attached to a memo.
type Attachment struct {
	Name         string `json:"name,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Type         string `json:"type,omitempty"`
	ExternalLink string `json:"external_link,omitempty"`
}

// TimeRange limits the pool to memos created within a window.
type TimeRange string

const (
	RangeAll       TimeRange = "all"
	RangeYear      TimeRange = "1y"
	RangeHalfYear  TimeRange = "6m"
	RangeQuarter   TimeRange = "3m"
	RangeLastMonth TimeRange = "1m"
)

// ValidRanges are the allowed time ranges.
var ValidRanges = map[TimeRange]bool{
	RangeAll:       true,
	RangeYear:      true,
	RangeHalfYear:  true,
	RangeQuarter:   true,
	RangeLastMonth: true,
}

// ParseTimeRange validates s. An empty string means RangeAll.
func ParseTimeRange(s string) (TimeRange, error) {
	if s == "" {
		return RangeAll, nil
	}
	tr := TimeRange(s)
	if !ValidRanges[tr] {
		return "", fmt.Errorf("invalid time range %q (valid: all, 1y, 6m, 3m, 1m)", s)
	}
	return tr, nil
}

// Since returns the earliest creation time included by the range, or the
// zero time for RangeAll.
func (tr TimeRange) Since(now time.Time) time.Time {
	switch tr {
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	case RangeHalfYear:
		return now.AddDate(0, -6, 0)
	case RangeQuarter:
		return now.AddDate(0, -3, 0)
	case RangeLastMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// Contains reports whether a memo created at t falls in the range.
func (tr TimeRange) Contains(t, now time.Time) bool {
	since := tr.Since(now)
	return since.IsZero() || !t.Before(since)
}

// Pool is the cached candidate set for one time range.
type Pool struct {
	TimeRange TimeRange `json:"time_range"`
	Memos     []Memo    `json:"memos"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Settings are the user's deck preferences.
type Settings struct {
	TimeRange TimeRange `json:"time_range"`
	Count     int       `json:"count"`
}

const (
	MinCount     = 1
	MaxCount     = 50
	DefaultCount = 8
)

// DefaultSettings returns the settings used before the user picks any.
func DefaultSettings() Settings {
	return Settings{TimeRange: RangeAll, Count: DefaultCount}
}

// Validate checks the count bounds and the time range.
func (s Settings) Validate() error {
	if !ValidRanges[s.TimeRange] {
		return fmt.Errorf("invalid time range %q", s.TimeRange)
	}
	if s.Count < MinCount || s.Count > MaxCount {
		return fmt.Errorf("count %d out of range [%d, %d]", s.Count, MinCount, MaxCount)
	}
	return nil
}

// RawMemo is a memo record as returned by the host API. Any field may be
// missing or malformed.
type RawMemo struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name,omitempty"`
	UID         string          `json:"uid,omitempty"`
	CreateTime  json.RawMessage `json:"createTime,omitempty"`
	Content     string          `json:"content,omitempty"`
	Attachments []RawAttachment `json:"attachments,omitempty"`
	Resources   []RawAttachment `json:"resources,omitempty"`
}

// RawAttachment is an attachment record as returned by the host API.
type RawAttachment struct {
	Name         string `json:"name,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Type         string `json:"type,omitempty"`
	ExternalLink string `json:"externalLink,omitempty"`
}
