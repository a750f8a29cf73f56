package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rcliao/memos-daily-review/internal/model"
)

// Defaults for HTTPConfig.
const (
	defaultRequestTimeout = 8 * time.Second
	defaultRatePerSec     = 5
	defaultBurst          = 2
	defaultMaxAttempts    = 3
	defaultBaseBackoff    = 250 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second

	defaultCBMaxFailures uint32 = 5
	defaultCBTimeout            = 30 * time.Second
)

const maxBodyBytes = 64 << 20

// HTTPConfig configures an HTTPSource. Zero values select the defaults.
type HTTPConfig struct {
	BaseURL        string
	PageSize       int
	RequestTimeout time.Duration
	RatePerSec     float64
	Burst          int
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration

	// BreakerFailures is the number of consecutive failures that open the
	// circuit; BreakerTimeout is how long it stays open.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// HTTPSource lists memos from a Memos-compatible REST API.
type HTTPSource struct {
	cfg     HTTPConfig
	client  *http.Client
	tokens  TokenProvider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[Page]
	logger  *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHTTPSource creates a source for cfg.BaseURL. A nil client uses
// http.DefaultClient; a nil logger discards.
func NewHTTPSource(cfg HTTPConfig, tokens TokenProvider, client *http.Client, logger *slog.Logger) *HTTPSource {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultCBMaxFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultCBTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = http.DefaultClient
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &HTTPSource{
		cfg:     cfg,
		client:  client,
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}

	maxFailures := cfg.BreakerFailures
	s.breaker = gobreaker.NewCircuitBreaker[Page](gobreaker.Settings{
		Name:        "memos:" + cfg.BaseURL,
		MaxRequests: 1, // one probe while half-open
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Only an unreachable or failing host counts against the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || !model.IsRetryable(err)
		},
	})
	return s
}

// FetchPage fetches one page of memos created within tr.
func (s *HTTPSource) FetchPage(ctx context.Context, tr model.TimeRange, pageToken string) (Page, error) {
	page, err := s.breaker.Execute(func() (Page, error) {
		return s.fetchWithRetry(ctx, tr, pageToken)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Page{}, &model.SourceError{Op: "list memos", Err: fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)}
	}
	return page, err
}

func (s *HTTPSource) fetchWithRetry(ctx context.Context, tr model.TimeRange, pageToken string) (Page, error) {
	refreshed := false
	for attempt := 0; ; attempt++ {
		page, err := s.fetchOnce(ctx, tr, pageToken)
		if err == nil {
			return page, nil
		}

		if errors.Is(err, model.ErrAuthExpired) {
			if refreshed {
				return Page{}, err
			}
			refreshed = true
			if _, rerr := s.tokens.Refresh(ctx); rerr != nil {
				s.logger.Warn("token refresh failed", "error", rerr)
				return Page{}, err
			}
			s.logger.Info("token refreshed, retrying request")
			attempt--
			continue
		}

		if !model.IsRetryable(err) || attempt+1 >= s.cfg.MaxAttempts {
			return Page{}, err
		}

		delay := s.backoff(attempt)
		s.logger.Debug("retrying memo page fetch", "attempt", attempt+1, "delay", delay, "error", err)
		if serr := s.sleep(ctx, delay); serr != nil {
			return Page{}, serr
		}
	}
}

// backoff returns a capped exponential delay with 0-25% jitter.
func (s *HTTPSource) backoff(attempt int) time.Duration {
	delay := s.cfg.BaseBackoff * time.Duration(1<<uint(attempt))
	if delay > s.cfg.MaxBackoff {
		delay = s.cfg.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

type listResponse struct {
	Memos         []json.RawMessage `json:"memos"`
	NextPageToken string            `json:"nextPageToken"`
}

func (s *HTTPSource) fetchOnce(ctx context.Context, tr model.TimeRange, pageToken string) (Page, error) {
	const op = "list memos"

	if err := s.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return Page{}, &model.SourceError{Op: op, Err: fmt.Errorf("%w: %v", model.ErrAuthExpired, err)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.pageURL(tr, pageToken), nil)
	if err != nil {
		return Page{}, &model.SourceError{Op: op, Err: fmt.Errorf("%w: %v", model.ErrSourceRejected, err)}
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		return Page{}, &model.SourceError{Op: op, Err: fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)}
	}
	defer resp.Body.Close()

	if cerr := classifyStatus(resp.StatusCode); cerr != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Page{}, &model.SourceError{Op: op, Status: resp.StatusCode, Err: cerr}
	}

	var body listResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		if reqCtx.Err() != nil {
			return Page{}, &model.SourceError{Op: op, Err: fmt.Errorf("%w: %v", model.ErrTransientNetwork, err)}
		}
		return Page{}, &model.SourceError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: decode body: %v", model.ErrServer, err)}
	}

	raws := make([]model.RawMemo, 0, len(body.Memos))
	for _, item := range body.Memos {
		var raw model.RawMemo
		if err := json.Unmarshal(item, &raw); err != nil {
			s.logger.Debug("skipping malformed memo record", "error", err)
			continue
		}
		raws = append(raws, raw)
	}

	return Page{
		Memos:         filterRange(raws, tr, s.now()),
		NextPageToken: body.NextPageToken,
	}, nil
}

func (s *HTTPSource) pageURL(tr model.TimeRange, pageToken string) string {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(s.cfg.PageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if since := tr.Since(s.now()); !since.IsZero() {
		q.Set("filter", fmt.Sprintf("created_ts >= %d", since.Unix()))
	}
	return s.cfg.BaseURL + "/api/v1/memos?" + q.Encode()
}

// classifyStatus maps an HTTP status to the error taxonomy.
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return model.ErrAuthExpired
	case code == http.StatusForbidden:
		return model.ErrForbidden
	case code == http.StatusNotFound:
		return model.ErrNotFound
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return model.ErrTransientNetwork
	case code >= 500:
		return model.ErrServer
	default:
		return model.ErrSourceRejected
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
