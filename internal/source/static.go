package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// StaticSource serves a fixed list of memos in pages. Page tokens are
// offsets into the range-filtered list.
type StaticSource struct {
	memos    []model.RawMemo
	pageSize int
	now      func() time.Time
	fetches  atomic.Int64
}

// NewStaticSource serves memos in pages of pageSize (DefaultPageSize when
// <= 0).
func NewStaticSource(memos []model.RawMemo, pageSize int) *StaticSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &StaticSource{memos: memos, pageSize: pageSize, now: time.Now}
}

// LoadStaticSource reads memos from a JSON file holding either an array of
// memo records or a list response object with a "memos" field.
func LoadStaticSource(path string, pageSize int) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read memos file: %w", err)
	}

	var memos []model.RawMemo
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &memos)
	} else {
		var body struct {
			Memos []model.RawMemo `json:"memos"`
		}
		err = json.Unmarshal(trimmed, &body)
		memos = body.Memos
	}
	if err != nil {
		return nil, fmt.Errorf("parse memos file %s: %w", path, err)
	}
	return NewStaticSource(memos, pageSize), nil
}

// Fetches returns how many pages have been served.
func (s *StaticSource) Fetches() int { return int(s.fetches.Load()) }

func (s *StaticSource) FetchPage(ctx context.Context, tr model.TimeRange, pageToken string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	s.fetches.Add(1)

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return Page{}, &model.SourceError{Op: "list memos", Status: 400, Err: fmt.Errorf("%w: bad page token %q", model.ErrSourceRejected, pageToken)}
		}
		offset = n
	}

	all := filterRange(s.memos, tr, s.now())
	if offset >= len(all) {
		return Page{}, nil
	}
	end := min(offset+s.pageSize, len(all))

	page := Page{Memos: append([]model.RawMemo(nil), all[offset:end]...)}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}
