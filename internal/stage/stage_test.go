package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/footdata/understat-crawler/internal/crawl"
	"github.com/footdata/understat-crawler/internal/progress"
	"github.com/footdata/understat-crawler/internal/storage/memory"
)

type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	urls   []string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, fmt.Errorf("no body for %s", url)
	}
	return body, nil
}

func (f *mapFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// echoExtractor wraps the raw page body as a single JSON string payload.
type echoExtractor struct{}

func (echoExtractor) Extract(html []byte) (crawl.Result, error) {
	encoded, err := json.Marshal(string(html))
	if err != nil {
		return nil, err
	}
	return crawl.Result{"page": json.RawMessage(encoded)}, nil
}

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC) }

func (stubClock) Sleep(_ context.Context, _ time.Duration) error { return nil }

type eventRecorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *eventRecorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) snapshot() []progress.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Event(nil), r.events...)
}

func newTestDriver(f crawl.Fetcher, store crawl.BlobStore, emitter progress.Emitter) *Driver {
	return NewDriver(
		Config{BaseURL: "https://stats.test", RunID: uuid.New()},
		f,
		echoExtractor{},
		store,
		stubClock{},
		emitter,
		nil,
	)
}

func TestLeaguePagesFetchesAndPersists(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{bodies: map[string][]byte{
		"https://stats.test/league/EPL/2016":     []byte("epl page"),
		"https://stats.test/league/La_liga/2016": []byte("liga page"),
	}}
	store := memory.NewBlobStore()
	driver := newTestDriver(fetcher, store, nil)

	ids := []LeagueSeason{
		{League: "EPL", Season: "2016-2017"},
		{League: "La_liga", Season: "2016-2017"},
	}
	results, err := driver.LeaguePages(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byLeague := map[string]crawl.LeagueResult{}
	for _, res := range results {
		byLeague[res.Key[1]] = res
		assert.Equal(t, crawl.Season("2016-2017"), res.Season)
		assert.Contains(t, res.Result, "page")
	}
	require.Contains(t, byLeague, "EPL")
	require.Contains(t, byLeague, "La_liga")

	assert.ElementsMatch(t, []string{
		"https://stats.test/league/EPL/2016",
		"https://stats.test/league/La_liga/2016",
	}, fetcher.requested())
	assert.ElementsMatch(t, []string{
		"league/EPL/2016-2017",
		"league/La_liga/2016-2017",
	}, store.Paths())
}

func TestLeaguePagesPartialFailure(t *testing.T) {
	t.Parallel()

	boom := fmt.Errorf("transport down")
	fetcher := &mapFetcher{
		bodies: map[string][]byte{
			"https://stats.test/league/EPL/2016": []byte("epl page"),
		},
		errs: map[string]error{
			"https://stats.test/league/RFPL/2016": boom,
		},
	}
	store := memory.NewBlobStore()
	driver := newTestDriver(fetcher, store, nil)

	results, err := driver.LeaguePages(context.Background(), []LeagueSeason{
		{League: "EPL", Season: "2016-2017"},
		{League: "RFPL", Season: "2016-2017"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.Len(t, results, 1, "the healthy item still completes")
	assert.Equal(t, "EPL", results[0].Key[1])
}

func TestTeamPagesEscapesTitles(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{bodies: map[string][]byte{
		"https://stats.test/team/Manchester%20United/2016": []byte("page"),
	}}
	store := memory.NewBlobStore()
	driver := newTestDriver(fetcher, store, nil)

	err := driver.TeamPages(context.Background(), []crawl.TeamSeason{
		{Title: "Manchester United", Season: "2016-2017"},
	})
	require.NoError(t, err)

	_, ok := store.Object("team/Manchester United/2016-2017")
	assert.True(t, ok, "blob key keeps the raw title, only the URL is escaped")
}

func TestPlayerPagesIsolatesFailures(t *testing.T) {
	t.Parallel()

	boom := fmt.Errorf("boom")
	fetcher := &mapFetcher{
		bodies: map[string][]byte{
			"https://stats.test/player/1": []byte("p1"),
			"https://stats.test/player/3": []byte("p3"),
		},
		errs: map[string]error{
			"https://stats.test/player/2": boom,
		},
	}
	store := memory.NewBlobStore()
	driver := newTestDriver(fetcher, store, nil)

	err := driver.PlayerPages(context.Background(), []string{"1", "2", "3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ElementsMatch(t, []string{"player/1", "player/3"}, store.Paths())
}

func TestMatchPagesEmitProgress(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{bodies: map[string][]byte{
		"https://stats.test/match/81": []byte("match page"),
	}}
	recorder := &eventRecorder{}
	driver := newTestDriver(fetcher, memory.NewBlobStore(), recorder)

	require.NoError(t, driver.MatchPages(context.Background(), []string{"81"}))

	events := recorder.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, progress.StageFetchDone, events[0].Stage)
	assert.Equal(t, KindMatch, events[0].Phase)
	assert.Equal(t, "https://stats.test/match/81", events[0].URL)
	assert.EqualValues(t, len("match page"), events[0].Bytes)
	assert.Equal(t, driver.cfg.RunID, events[0].RunID)
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	driver := newTestDriver(nil, nil, nil)
	assert.Equal(t, "https://stats.test/league/EPL/2016", driver.pageURL(KindLeague, "EPL", "2016"))
	assert.Equal(t, "https://stats.test/team/FC%20K%C3%B6ln/2016", driver.pageURL(KindTeam, "FC Köln", "2016"))

	slash := NewDriver(Config{BaseURL: "https://stats.test/"}, nil, echoExtractor{}, nil, stubClock{}, nil, nil)
	assert.Equal(t, "https://stats.test/player/7", slash.pageURL(KindPlayer, "7"))
}
