package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/memos-daily-review/internal/acquire"
	"github.com/rcliao/memos-daily-review/internal/cache"
	"github.com/rcliao/memos-daily-review/internal/model"
	"github.com/rcliao/memos-daily-review/internal/source"
	"github.com/rcliao/memos-daily-review/internal/store"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	states []model.DeckState
}

func (r *recorder) DeckStateChanged(_ string, s model.DeckState, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) take() []model.DeckState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.states
	r.states = nil
	return out
}

func rawMemos(n int) []model.RawMemo {
	out := make([]model.RawMemo, n)
	for i := range out {
		out[i] = model.RawMemo{
			ID:         fmt.Sprintf("m%03d", i),
			Content:    fmt.Sprintf("memo %d", i),
			CreateTime: []byte(fmt.Sprintf("%q", testNow.AddDate(0, 0, -i*3).Format(time.RFC3339))),
		}
	}
	return out
}

type failingSource struct{ err error }

func (f failingSource) FetchPage(context.Context, model.TimeRange, string) (source.Page, error) {
	return source.Page{}, f.err
}

type harness struct {
	engine *Engine
	cache  *cache.Cache
	obs    *recorder
}

func newHarness(t *testing.T, src source.Source) *harness {
	t.Helper()
	now := func() time.Time { return testNow }
	c := cache.New(store.NewMemoryStore(0), cache.Options{Now: now})
	obs := &recorder{}
	e := New(c, acquire.New(src, c, acquire.Options{}), Options{Observer: obs, Now: now})
	return &harness{engine: e, cache: c, obs: obs}
}

func TestDesiredPoolSize(t *testing.T) {
	assert.Equal(t, 200, DesiredPoolSize(1, model.RangeYear))
	assert.Equal(t, 320, DesiredPoolSize(8, model.RangeQuarter))
	assert.Equal(t, 640, DesiredPoolSize(8, model.RangeAll))
	assert.Equal(t, 2000, DesiredPoolSize(50, model.RangeLastMonth))
	assert.Equal(t, 3000, DesiredPoolSize(100, model.RangeYear))
}

func TestGetDeckMissThenHit(t *testing.T) {
	ctx := context.Background()
	src := source.NewStaticSource(rawMemos(40), 0)
	h := newHarness(t, src)

	req := Request{TimeRange: model.RangeAll, Count: 8}
	res, err := h.engine.GetDeck(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.StateReady, res.State)
	assert.False(t, res.Hit)
	assert.Len(t, res.Deck.Memos, 8)
	assert.Equal(t, "2026-03-10|all|8|0", res.Deck.Key)
	assert.NotEmpty(t, res.Deck.Generation)
	assert.Equal(t, []model.DeckState{model.StateMiss, model.StateLoading, model.StateReady}, h.obs.take())

	again, err := h.engine.GetDeck(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Hit)
	assert.Equal(t, res.Deck.IDs(), again.Deck.IDs())
	assert.Equal(t, res.Deck.Generation, again.Deck.Generation)
	assert.Equal(t, []model.DeckState{model.StateReady}, h.obs.take())
	assert.Equal(t, 1, src.Fetches())
}

func TestGetDeckDeterministicAcrossEngines(t *testing.T) {
	ctx := context.Background()
	req := Request{Day: "2026-03-10", TimeRange: model.RangeAll, Count: 10, Batch: 2}

	a, err := newHarness(t, source.NewStaticSource(rawMemos(60), 0)).engine.GetDeck(ctx, req)
	require.NoError(t, err)
	b, err := newHarness(t, source.NewStaticSource(rawMemos(60), 0)).engine.GetDeck(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, a.Deck.IDs(), b.Deck.IDs())
}

func TestGetDeckEmptyNotCached(t *testing.T) {
	ctx := context.Background()
	src := source.NewStaticSource([]model.RawMemo{{ID: "blank"}}, 0)
	h := newHarness(t, src)

	res, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 5})
	require.NoError(t, err)
	assert.Equal(t, model.StateEmpty, res.State)
	assert.Empty(t, res.Deck.Memos)
	assert.Equal(t, []model.DeckState{model.StateMiss, model.StateLoading, model.StateEmpty}, h.obs.take())

	_, ok := h.cache.GetDeck(ctx, res.Deck.Key)
	assert.False(t, ok)
}

func TestGetDeckError(t *testing.T) {
	ctx := context.Background()
	srcErr := &model.SourceError{Op: "list memos", Status: 503, Err: model.ErrServer}
	h := newHarness(t, failingSource{err: srcErr})

	_, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 5})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrServer)
	assert.Equal(t, model.CategoryServer, model.CategoryOf(err))
	assert.Equal(t, []model.DeckState{model.StateMiss, model.StateLoading, model.StateError}, h.obs.take())
}

func TestGetDeckInvalidRequest(t *testing.T) {
	h := newHarness(t, source.NewStaticSource(nil, 0))
	tests := []Request{
		{Count: 0},
		{Count: 51},
		{Count: 5, TimeRange: "2w"},
		{Count: 5, Batch: -1},
		{Count: 5, Day: "10/03/2026"},
	}
	for _, req := range tests {
		_, err := h.engine.GetDeck(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "%+v", req)
	}
}

func TestConcurrentGetDeckSharesBuild(t *testing.T) {
	ctx := context.Background()
	src := source.NewStaticSource(rawMemos(30), 0)
	h := newHarness(t, src)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 6})
			if err == nil {
				results[i] = res.Deck.IDs()
			}
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, src.Fetches())
}

func TestShuffleIncrementsBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(rawMemos(60), 0))

	first, err := h.engine.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Deck.Batch)
	assert.Equal(t, model.DefaultCount, first.Deck.Count)

	s1, err := h.engine.Shuffle(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s1.Deck.Batch)
	assert.False(t, s1.Hit)

	s2, err := h.engine.Shuffle(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, s2.Deck.Batch)

	cur, err := h.engine.Current(ctx, "")
	require.NoError(t, err)
	assert.True(t, cur.Hit)
	assert.Equal(t, 2, cur.Deck.Batch)
}

func TestShuffleWithoutPriorDeckStartsAtOne(t *testing.T) {
	h := newHarness(t, source.NewStaticSource(rawMemos(20), 0))
	res, err := h.engine.Shuffle(context.Background(), "2026-03-11")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deck.Batch)
	assert.Equal(t, "2026-03-11", res.Deck.Day)
}

func TestShuffleKeepsBatchAcrossOtherRequests(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(rawMemos(60), 0))

	_, err := h.engine.Current(ctx, "")
	require.NoError(t, err)
	s1, err := h.engine.Shuffle(ctx, "")
	require.NoError(t, err)
	_, err = h.engine.Shuffle(ctx, "")
	require.NoError(t, err)

	// A deck for other settings must not rewind the shuffle sequence.
	_, err = h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 3})
	require.NoError(t, err)

	s3, err := h.engine.Shuffle(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, s3.Deck.Batch)
	assert.False(t, s3.Hit)
	assert.NotEqual(t, s1.Deck.Key, s3.Deck.Key)
}

func TestSettingsChangeResetsBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(rawMemos(60), 0))

	a := model.DefaultSettings()
	b := model.Settings{TimeRange: model.RangeAll, Count: 4}

	_, err := h.engine.Current(ctx, "")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = h.engine.Shuffle(ctx, "")
		require.NoError(t, err)
	}

	require.NoError(t, h.engine.ApplySettings(ctx, b))
	require.NoError(t, h.engine.ApplySettings(ctx, a))

	cur, err := h.engine.Current(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, cur.Deck.Batch)
	assert.False(t, cur.Hit)

	next, err := h.engine.Shuffle(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, next.Deck.Batch)
}

func TestShuffleFailureKeepsBatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, failingSource{err: &model.SourceError{Op: "list memos", Status: 502, Err: model.ErrServer}})

	_, err := h.engine.Shuffle(ctx, "")
	require.Error(t, err)
	assert.Equal(t, 0, h.cache.Batch(ctx, h.engine.Today()))
}

func TestOnSettingsChanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(rawMemos(60), 0))

	_, err := h.engine.Shuffle(ctx, "")
	require.NoError(t, err)

	s := model.Settings{TimeRange: model.RangeAll, Count: 5}
	res, err := h.engine.OnSettingsChanged(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deck.Batch)
	assert.Equal(t, 5, res.Deck.Count)
	assert.False(t, res.Hit)
	assert.Equal(t, s, h.engine.Settings(ctx))

	// Switching back rebuilds batch 0 even though it was cached before.
	first := res.Deck.Generation
	res, err = h.engine.OnSettingsChanged(ctx, s)
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.NotEqual(t, first, res.Deck.Generation)

	_, err = h.engine.OnSettingsChanged(ctx, model.Settings{TimeRange: model.RangeAll, Count: 0})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestApplySettingsDoesNotFetch(t *testing.T) {
	ctx := context.Background()
	src := source.NewStaticSource(rawMemos(30), 0)
	h := newHarness(t, src)

	res, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 4})
	require.NoError(t, err)
	fetches := src.Fetches()

	s := model.Settings{TimeRange: model.RangeAll, Count: 4}
	require.NoError(t, h.engine.ApplySettings(ctx, s))
	assert.Equal(t, fetches, src.Fetches())
	assert.Equal(t, s, h.engine.Settings(ctx))

	_, ok := h.cache.GetDeck(ctx, res.Deck.Key)
	assert.False(t, ok, "batch-0 deck should be invalidated")

	err = h.engine.ApplySettings(ctx, model.Settings{TimeRange: "2w", Count: 4})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMarkViewed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(nil, 0))

	e, err := h.engine.MarkViewed(ctx, "m1", "2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, model.HistoryEntry{LastShownDay: "2026-03-09", ShownCount: 1}, e)

	e, err = h.engine.MarkViewed(ctx, "m1", "")
	require.NoError(t, err)
	assert.Equal(t, model.HistoryEntry{LastShownDay: "2026-03-10", ShownCount: 2}, e)

	e, err = h.engine.MarkViewed(ctx, "m1", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", e.LastShownDay, "last day never moves back")
	assert.Equal(t, 3, e.ShownCount)

	_, err = h.engine.MarkViewed(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestViewedMemosDeprioritized(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(rawMemos(30), 0))

	first, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 5})
	require.NoError(t, err)
	for _, id := range first.Deck.IDs() {
		_, err := h.engine.MarkViewed(ctx, id, "2026-03-10")
		require.NoError(t, err)
	}

	next, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 5, Batch: 1})
	require.NoError(t, err)
	for _, id := range next.Deck.IDs() {
		assert.NotContains(t, first.Deck.IDs(), id)
	}
}

func TestMemoEditedAndDeleted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, source.NewStaticSource(rawMemos(12), 0))

	res, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 4})
	require.NoError(t, err)
	target := res.Deck.Memos[0].ID

	require.NoError(t, h.engine.MemoEdited(ctx, model.RawMemo{Name: "memos/" + target, Content: "rewritten #new"}))
	got, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 4})
	require.NoError(t, err)
	assert.Equal(t, "rewritten #new", got.Deck.Memos[0].Content)
	assert.Equal(t, []string{"new"}, got.Deck.Memos[0].Tags)

	require.NoError(t, h.engine.MemoDeleted(ctx, target))
	got, err = h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 4})
	require.NoError(t, err)
	assert.NotContains(t, got.Deck.IDs(), target)

	pool, ok := h.engine.Pool(ctx, model.RangeAll)
	require.True(t, ok)
	assert.Len(t, pool.Memos, 11)

	assert.ErrorIs(t, h.engine.MemoEdited(ctx, model.RawMemo{Content: "x"}), ErrInvalidRequest)
	assert.ErrorIs(t, h.engine.MemoDeleted(ctx, ""), ErrInvalidRequest)
}

func TestRefreshPool(t *testing.T) {
	ctx := context.Background()
	src := source.NewStaticSource(rawMemos(10), 0)
	h := newHarness(t, src)

	_, err := h.engine.GetDeck(ctx, Request{TimeRange: model.RangeAll, Count: 3})
	require.NoError(t, err)
	memos, err := h.engine.RefreshPool(ctx, model.RangeAll)
	require.NoError(t, err)
	assert.Len(t, memos, 10)
	assert.Equal(t, 2, src.Fetches())

	_, err = h.engine.RefreshPool(ctx, "5d")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
