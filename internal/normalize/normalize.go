// Package normalize converts raw host records into model.Memo values.
package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// Normalize converts raw into a Memo. It reports false when the record has
// no usable identifier. Missing or malformed fields become zero values.
func Normalize(raw model.RawMemo) (model.Memo, bool) {
	id := memoID(raw)
	if id == "" {
		return model.Memo{}, false
	}

	attachments := raw.Attachments
	if len(attachments) == 0 {
		attachments = raw.Resources
	}
	var refs []model.Attachment
	for _, a := range attachments {
		refs = append(refs, model.Attachment{
			Name:         a.Name,
			Filename:     a.Filename,
			Type:         a.Type,
			ExternalLink: a.ExternalLink,
		})
	}

	return model.Memo{
		ID:          id,
		CreateTime:  parseTime(raw.CreateTime),
		Content:     raw.Content,
		Tags:        ExtractTags(raw.Content),
		Attachments: refs,
	}, true
}

// NormalizePage normalizes a page of records, skipping unusable ones.
func NormalizePage(raws []model.RawMemo) []model.Memo {
	memos := make([]model.Memo, 0, len(raws))
	for _, r := range raws {
		if m, ok := Normalize(r); ok {
			memos = append(memos, m)
		}
	}
	return memos
}

// Eligible reports whether a memo has something to review.
func Eligible(m model.Memo) bool {
	return strings.TrimSpace(m.Content) != "" || len(m.Attachments) > 0
}

func memoID(raw model.RawMemo) string {
	if id := strings.TrimSpace(raw.ID); id != "" {
		return id
	}
	if name := strings.TrimSpace(raw.Name); name != "" {
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		if name != "" {
			return name
		}
	}
	return strings.TrimSpace(raw.UID)
}

// parseTime accepts an RFC 3339 string or a unix-seconds number.
func parseTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
		return time.Time{}
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Unix(int64(secs), 0).UTC()
	}
	return time.Time{}
}
