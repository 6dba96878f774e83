// Package throttle wraps a transport fetcher with sentinel detection and
// jittered backoff.
//
// The crawl target sheds load by returning a sentinel body instead of an
// HTTP error. That is not a transport failure: the fetch sleeps for a
// randomized cooldown and retries the same URL. By default retries continue
// until real content arrives; the target documents no rate limit, so there
// is nothing sane to give up on.
package throttle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/footdata/understat-crawler/internal/crawl"
	"github.com/footdata/understat-crawler/internal/progress"
)

// Policy controls throttle detection and backoff.
type Policy struct {
	// Sentinel is the exact trimmed body that signals throttling.
	Sentinel string
	// MinDelaySeconds and MaxDelaySeconds bound the whole-second part of the
	// cooldown; a sub-second fraction is added on top so concurrent retries
	// do not line up.
	MinDelaySeconds int
	MaxDelaySeconds int
	// MaxAttempts caps fetch attempts per URL. Zero means unlimited, the
	// production default; tests inject a finite cap.
	MaxAttempts int
}

func (p Policy) withDefaults() Policy {
	if p.Sentinel == "" {
		p.Sentinel = "closed.php"
	}
	if p.MinDelaySeconds <= 0 {
		p.MinDelaySeconds = 1
	}
	if p.MaxDelaySeconds < p.MinDelaySeconds {
		p.MaxDelaySeconds = p.MinDelaySeconds + 4
	}
	return p
}

// Limiter gates outbound attempts; see policy/ratelimit.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher decorates a transport fetcher with the throttle retry policy.
type Fetcher struct {
	next    crawl.Fetcher
	policy  Policy
	clock   crawl.Clock
	limiter Limiter
	emitter progress.Emitter
	runID   uuid.UUID
	logger  *zap.Logger
}

// New builds a throttle-aware Fetcher. limiter and emitter may be nil.
func New(
	next crawl.Fetcher,
	policy Policy,
	clock crawl.Clock,
	limiter Limiter,
	emitter progress.Emitter,
	runID uuid.UUID,
	logger *zap.Logger,
) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		next:    next,
		policy:  policy.withDefaults(),
		clock:   clock,
		limiter: limiter,
		emitter: emitter,
		runID:   runID,
		logger:  logger,
	}
}

// Fetch retrieves url, absorbing throttle signals. Transport failures
// surface to the caller; a sentinel body triggers a cooldown and another
// attempt. The returned body is always real content.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, url); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
		body, err := f.next.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		if !f.throttled(body) {
			return body, nil
		}
		if f.policy.MaxAttempts > 0 && attempt >= f.policy.MaxAttempts {
			return nil, fmt.Errorf("still throttled after %d attempts: %s", attempt, url)
		}
		wait := f.cooldown()
		f.logger.Warn("throttled, cooling down",
			zap.String("url", url),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt),
		)
		f.emitWait(url, wait)
		if err := f.clock.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("throttle wait: %w", err)
		}
	}
}

func (f *Fetcher) throttled(body []byte) bool {
	return strings.TrimSpace(string(body)) == f.policy.Sentinel
}

// cooldown mixes a whole-second delay in [min, max] with a sub-second
// fraction, giving a uniform jitter across concurrent callers.
func (f *Fetcher) cooldown() time.Duration {
	span := f.policy.MaxDelaySeconds - f.policy.MinDelaySeconds
	coarse := f.policy.MinDelaySeconds
	if span > 0 {
		coarse += rand.IntN(span + 1)
	}
	frac := time.Duration(rand.Float64() * float64(time.Second))
	return time.Duration(coarse)*time.Second + frac
}

func (f *Fetcher) emitWait(url string, wait time.Duration) {
	if f.emitter == nil {
		return
	}
	f.emitter.Emit(progress.Event{
		RunID: f.runID,
		TS:    f.clock.Now(),
		Stage: progress.StageThrottleWait,
		URL:   url,
		Dur:   wait,
	})
}
