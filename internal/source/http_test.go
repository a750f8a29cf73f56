package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memos-daily-review/internal/model"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSource(t *testing.T, h http.HandlerFunc, tokens TokenProvider, cfg HTTPConfig) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 1000
		cfg.Burst = 100
	}
	s := NewHTTPSource(cfg, tokens, srv.Client(), nil)
	s.now = func() time.Time { return fixedNow }
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func writeMemos(w http.ResponseWriter, next string, memos ...map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"memos": memos, "nextPageToken": next})
}

func rawMemo(id string, created time.Time) map[string]any {
	return map[string]any{"name": "memos/" + id, "content": "memo " + id, "createTime": created.Format(time.RFC3339)}
}

type refreshingToken struct {
	token     atomic.Value
	refreshes atomic.Int32
}

func (r *refreshingToken) Token(context.Context) (string, error) { return r.token.Load().(string), nil }

func (r *refreshingToken) Refresh(context.Context) (string, error) {
	r.refreshes.Add(1)
	r.token.Store("fresh")
	return "fresh", nil
}

func TestFetchPageRequest(t *testing.T) {
	var got *http.Request
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeMemos(w, "next-1", rawMemo("1", fixedNow.AddDate(0, 0, -2)))
	}, StaticToken("secret"), HTTPConfig{})

	page, err := s.FetchPage(context.Background(), model.RangeAll, "tok")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/memos", got.URL.Path)
	assert.Equal(t, "1000", got.URL.Query().Get("pageSize"))
	assert.Equal(t, "tok", got.URL.Query().Get("pageToken"))
	assert.Empty(t, got.URL.Query().Get("filter"))
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))

	require.Len(t, page.Memos, 1)
	assert.Equal(t, "memos/1", page.Memos[0].Name)
	assert.Equal(t, "next-1", page.NextPageToken)
}

func TestFetchPageFiltersByRange(t *testing.T) {
	var filter string
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		filter = r.URL.Query().Get("filter")
		writeMemos(w, "",
			rawMemo("recent", fixedNow.AddDate(0, 0, -10)),
			rawMemo("old", fixedNow.AddDate(0, -2, 0)),
			map[string]any{"name": "memos/undated", "content": "x"},
		)
	}, nil, HTTPConfig{})

	page, err := s.FetchPage(context.Background(), model.RangeLastMonth, "")
	require.NoError(t, err)

	assert.Contains(t, filter, "created_ts >= ")
	require.Len(t, page.Memos, 1)
	assert.Equal(t, "memos/recent", page.Memos[0].Name)
}

func TestFetchPageSkipsMalformedRecords(t *testing.T) {
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"memos":[{"name":"memos/1","content":"ok"},{"name":42},{"uid":"u2"}]}`)
	}, nil, HTTPConfig{})

	page, err := s.FetchPage(context.Background(), model.RangeAll, "")
	require.NoError(t, err)
	assert.Len(t, page.Memos, 2)
	assert.Empty(t, page.NextPageToken)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeMemos(w, "", rawMemo("1", fixedNow))
	}, nil, HTTPConfig{})

	page, err := s.FetchPage(context.Background(), model.RangeAll, "")
	require.NoError(t, err)
	assert.Len(t, page.Memos, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, nil, HTTPConfig{})

	_, err := s.FetchPage(context.Background(), model.RangeAll, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrServer)
	assert.Equal(t, model.CategoryServer, model.CategoryOf(err))
	assert.Equal(t, int32(defaultMaxAttempts), calls.Load())
}

func TestRejectedNotRetried(t *testing.T) {
	tests := []struct {
		status int
		want   error
		cat    model.Category
	}{
		{http.StatusBadRequest, model.ErrSourceRejected, model.CategoryGeneric},
		{http.StatusForbidden, model.ErrForbidden, model.CategoryPermission},
		{http.StatusNotFound, model.ErrNotFound, model.CategoryNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}, nil, HTTPConfig{})

			_, err := s.FetchPage(context.Background(), model.RangeAll, "")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.cat, model.CategoryOf(err))
			assert.Equal(t, int32(1), calls.Load())

			var se *model.SourceError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
		})
	}
}

func TestTokenRefreshOn401(t *testing.T) {
	tokens := &refreshingToken{}
	tokens.token.Store("stale")

	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeMemos(w, "", rawMemo("1", fixedNow))
	}, tokens, HTTPConfig{})

	page, err := s.FetchPage(context.Background(), model.RangeAll, "")
	require.NoError(t, err)
	assert.Len(t, page.Memos, 1)
	assert.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestTokenRefreshOnlyOnce(t *testing.T) {
	tokens := &refreshingToken{}
	tokens.token.Store("stale")
	var calls atomic.Int32

	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, tokens, HTTPConfig{})

	_, err := s.FetchPage(context.Background(), model.RangeAll, "")
	assert.ErrorIs(t, err, model.ErrAuthExpired)
	assert.Equal(t, model.CategoryPermission, model.CategoryOf(err))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestStaticTokenCannotRefresh(t *testing.T) {
	var calls atomic.Int32
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, StaticToken("t"), HTTPConfig{})

	_, err := s.FetchPage(context.Background(), model.RangeAll, "")
	assert.ErrorIs(t, err, model.ErrAuthExpired)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, nil, HTTPConfig{MaxAttempts: 1, BreakerFailures: 2, BreakerTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := s.FetchPage(context.Background(), model.RangeAll, "")
		require.ErrorIs(t, err, model.ErrServer)
	}

	_, err := s.FetchPage(context.Background(), model.RangeAll, "")
	assert.ErrorIs(t, err, model.ErrTransientNetwork, "open circuit fails fast as a network error")
	assert.Equal(t, int32(2), calls.Load())
}

func TestRejectionsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, nil, HTTPConfig{BreakerFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := s.FetchPage(context.Background(), model.RangeAll, "")
		require.ErrorIs(t, err, model.ErrSourceRejected)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestRequestTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil, HTTPConfig{RequestTimeout: 20 * time.Millisecond, MaxAttempts: 1})
	defer close(release)

	_, err := s.FetchPage(context.Background(), model.RangeAll, "")
	assert.ErrorIs(t, err, model.ErrTransientNetwork)
	assert.Equal(t, model.CategoryNetwork, model.CategoryOf(err))
}

func TestBackoffCapped(t *testing.T) {
	s := NewHTTPSource(HTTPConfig{BaseBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}, nil, nil, nil)
	for attempt := 0; attempt < 6; attempt++ {
		d := s.backoff(attempt)
		assert.LessOrEqual(t, d, 300*time.Millisecond+75*time.Millisecond)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, classifyStatus(200))
	assert.ErrorIs(t, classifyStatus(401), model.ErrAuthExpired)
	assert.ErrorIs(t, classifyStatus(403), model.ErrForbidden)
	assert.ErrorIs(t, classifyStatus(429), model.ErrTransientNetwork)
	assert.ErrorIs(t, classifyStatus(503), model.ErrServer)
	assert.ErrorIs(t, classifyStatus(422), model.ErrSourceRejected)
}
