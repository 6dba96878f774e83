// Package stage turns identity lists into concurrent fetch/extract/persist
// tasks, one task per identity.
package stage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/footdata/understat-crawler/internal/crawl"
	"github.com/footdata/understat-crawler/internal/progress"
)

const contentType = "application/json; charset=utf-8"

// Page kind segments; they prefix both URLs and identity keys.
const (
	KindLeague = "league"
	KindTeam   = "team"
	KindPlayer = "player"
	KindMatch  = "match"
)

// Config carries driver-wide settings.
type Config struct {
	// BaseURL is the site root, e.g. https://understat.com.
	BaseURL string
	// RunID stamps progress events.
	RunID uuid.UUID
}

// LeagueSeason pairs a league code with a season label.
type LeagueSeason struct {
	League string
	Season crawl.Season
}

// Driver runs the four page kinds through the shared per-item task:
// fetch, extract, serialize, persist. Items inside one call proceed
// concurrently; a failed item records its error without cancelling
// siblings.
type Driver struct {
	cfg       Config
	fetcher   crawl.Fetcher
	extractor crawl.Extractor
	store     crawl.BlobStore
	clock     crawl.Clock
	emitter   progress.Emitter
	logger    *zap.Logger
}

// NewDriver constructs a Driver. emitter may be nil.
func NewDriver(
	cfg Config,
	fetcher crawl.Fetcher,
	extractor crawl.Extractor,
	store crawl.BlobStore,
	clock crawl.Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		clock:     clock,
		emitter:   emitter,
		logger:    logger,
	}
}

// LeaguePages processes league/season identities concurrently and returns
// each page's identity paired with its parsed extraction result, so the
// orchestrator can derive downstream identity sets. Failed items are
// reported through the joined error; successful results are still returned.
func (d *Driver) LeaguePages(ctx context.Context, ids []LeagueSeason) ([]crawl.LeagueResult, error) {
	p := pool.NewWithResults[crawl.LeagueResult]().WithErrors().WithContext(ctx)
	for _, id := range ids {
		key := crawl.Key{KindLeague, id.League, string(id.Season)}
		target := d.pageURL(KindLeague, id.League, id.Season.StartYear())
		season := id.Season
		p.Go(func(ctx context.Context) (crawl.LeagueResult, error) {
			res, err := d.processPage(ctx, KindLeague, key, target)
			if err != nil {
				return crawl.LeagueResult{}, err
			}
			return crawl.LeagueResult{Key: key, Season: season, Result: res}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return results, fmt.Errorf("league pages: %w", err)
	}
	return results, nil
}

// TeamPages processes team/season identities concurrently, persisting each
// page and discarding its result.
func (d *Driver) TeamPages(ctx context.Context, ids []crawl.TeamSeason) error {
	p := pool.New().WithErrors().WithContext(ctx)
	for _, id := range ids {
		key := crawl.Key{KindTeam, id.Title, string(id.Season)}
		target := d.pageURL(KindTeam, id.Title, id.Season.StartYear())
		p.Go(func(ctx context.Context) error {
			_, err := d.processPage(ctx, KindTeam, key, target)
			return err
		})
	}
	if err := p.Wait(); err != nil {
		return fmt.Errorf("team pages: %w", err)
	}
	return nil
}

// PlayerPages processes player ids concurrently.
func (d *Driver) PlayerPages(ctx context.Context, ids []string) error {
	if err := d.idPages(ctx, KindPlayer, ids); err != nil {
		return fmt.Errorf("player pages: %w", err)
	}
	return nil
}

// MatchPages processes match ids concurrently.
func (d *Driver) MatchPages(ctx context.Context, ids []string) error {
	if err := d.idPages(ctx, KindMatch, ids); err != nil {
		return fmt.Errorf("match pages: %w", err)
	}
	return nil
}

func (d *Driver) idPages(ctx context.Context, kind string, ids []string) error {
	p := pool.New().WithErrors().WithContext(ctx)
	for _, id := range ids {
		key := crawl.Key{kind, id}
		target := d.pageURL(kind, id)
		p.Go(func(ctx context.Context) error {
			_, err := d.processPage(ctx, kind, key, target)
			return err
		})
	}
	return p.Wait()
}

// processPage is the per-item task: fetch the page, extract its embedded
// data, serialize, and persist under the key's path. The three steps are
// sequential for one item; items share no mutable state.
func (d *Driver) processPage(ctx context.Context, kind string, key crawl.Key, target string) (crawl.Result, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	start := d.clock.Now()

	body, err := d.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	res, err := d.extractor.Extract(body)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", key, err)
	}
	payload, err := res.Encode()
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", key, err)
	}
	uri, err := d.store.PutObject(ctx, key.Path(), contentType, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("persist %s: %w", key, err)
	}

	d.emit(progress.Event{
		Stage: progress.StageFetchDone,
		Phase: kind,
		URL:   target,
		Bytes: int64(len(body)),
		Dur:   d.clock.Now().Sub(start),
	})
	d.logger.Debug("page stored",
		zap.String("key", key.String()),
		zap.String("uri", uri),
		zap.Int("vars", len(res)),
	)
	return res, nil
}

func (d *Driver) pageURL(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return strings.TrimSuffix(d.cfg.BaseURL, "/") + "/" + strings.Join(escaped, "/")
}

func (d *Driver) emit(evt progress.Event) {
	if d.emitter == nil {
		return
	}
	evt.RunID = d.cfg.RunID
	if evt.TS.IsZero() {
		evt.TS = d.clock.Now()
	}
	d.emitter.Emit(evt)
}
