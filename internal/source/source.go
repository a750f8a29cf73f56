// Package source fetches raw memo pages from the host note store.
package source

import (
	"context"
	"time"

	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/normalize"
)

// DefaultPageSize is the number of memos requested per page.
const DefaultPageSize = 1000

// Page is one page of raw memos. An empty NextPageToken ends the listing.
type Page struct {
	Memos         []model.RawMemo
	NextPageToken string
}

// Source lists memos page by page, newest first.
type Source interface {
	FetchPage(ctx context.Context, tr model.TimeRange, pageToken string) (Page, error)
}

// filterRange keeps the records created inside tr. Records whose creation
// time cannot be read are dropped unless tr is RangeAll.
func filterRange(raws []model.RawMemo, tr model.TimeRange, now time.Time) []model.RawMemo {
	if tr == model.RangeAll || tr == "" {
		return raws
	}
	out := raws[:0:0]
	for _, r := range raws {
		m, ok := normalize.Normalize(r)
		if !ok {
			// Unidentifiable records are rejected later anyway.
			continue
		}
		if !m.CreateTime.IsZero() && tr.Contains(m.CreateTime, now) {
			out = append(out, r)
		}
	}
	return out
}
