package lyrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lyricsync/internal/metrics"
	"lyricsync/pkg/music"
	"lyricsync/pkg/musiccache"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultFetchTimeout = 30 * time.Second
	eventBuffer         = 64
)

var ErrStopped = errors.New("lyrics service stopped")

func logger() *zerolog.Logger {
	l := log.With().Str("component", "lyrics-service").Logger()
	return &l
}

// Fetcher runs one provider cycle for a query. *music.Manager implements it.
type Fetcher interface {
	FetchLyrics(ctx context.Context, query music.SearchQuery) (*music.Lyrics, error)
}

// Snapshot is the observable lyric state after a change.
type Snapshot struct {
	TrackID   string          `json:"track_id,omitempty"`
	Track     *music.Track    `json:"track,omitempty"`
	Lyrics    *music.Lyrics   `json:"lyrics,omitempty"`
	IsLoading bool            `json:"is_loading"`
	Err       error           `json:"-"`
	ErrorKind music.ErrorKind `json:"error,omitempty"`
	Sync      SyncState       `json:"sync"`
}

// Listener receives a snapshot after every observable change. It is called on
// the service loop and must not block.
type Listener func(Snapshot)

type Options struct {
	Fetcher      Fetcher
	Cache        *musiccache.Cache
	Normalizers  []music.QueryNormalizer
	FetchTimeout time.Duration
	Listener     Listener
	Metrics      *metrics.Metrics
}

// Service decides which lyrics are shown for the current track. All state is
// owned by the goroutine running Run; the exported methods only post messages.
type Service struct {
	fetcher      Fetcher
	cache        *musiccache.Cache
	normalizers  []music.QueryNormalizer
	fetchTimeout time.Duration
	listener     Listener
	metrics      *metrics.Metrics

	events   chan any
	done     chan struct{}
	inflight sync.WaitGroup

	// loop state
	track   *music.Track
	lyrics  *music.Lyrics
	loading bool
	err     error
	seq     uint64
	pending pendingFetch
	engine  *SyncEngine
	// cacheSeq is the seq of the fetch that wrote each cache entry; results
	// from fetches started before clearedSeq are never cached
	cacheSeq   map[string]uint64
	clearedSeq uint64
}

type pendingFetch struct {
	trackID string
	seq     uint64
}

type (
	trackChanged    struct{ track *music.Track }
	positionUpdated struct{ position float64 }
	refreshRequest  struct{ track music.Track }
	clearCache      struct{}
	stateRequest    struct{ reply chan Snapshot }
	fetchResult     struct {
		trackID string
		seq     uint64
		lyrics  *music.Lyrics
		err     error
	}
)

func NewService(opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = musiccache.New()
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Listener == nil {
		opts.Listener = func(Snapshot) {}
	}
	return &Service{
		fetcher:      opts.Fetcher,
		cache:        opts.Cache,
		normalizers:  opts.Normalizers,
		fetchTimeout: opts.FetchTimeout,
		listener:     opts.Listener,
		metrics:      opts.Metrics,
		events:       make(chan any, eventBuffer),
		done:         make(chan struct{}),
		engine:       NewSyncEngine(),
		cacheSeq:     make(map[string]uint64),
	}
}

// Run processes events until ctx is done. It must be called exactly once.
func (s *Service) Run(ctx context.Context) error {
	defer close(s.done)
	logger().Info().Msg("Lyrics service started")

	for {
		select {
		case <-ctx.Done():
			s.inflight.Wait()
			logger().Info().Msg("Lyrics service stopped")
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// TrackChanged reports the track now playing, nil when nothing is.
func (s *Service) TrackChanged(track *music.Track) {
	if track != nil {
		t := *track
		track = &t
	}
	s.post(trackChanged{track: track})
}

// UpdatePosition reports the playback position in seconds.
func (s *Service) UpdatePosition(position float64) {
	s.post(positionUpdated{position: position})
}

// FetchLyrics fetches lyrics for track even when they are cached and makes it
// the current track.
func (s *Service) FetchLyrics(track music.Track) {
	s.post(refreshRequest{track: track})
}

// ClearCache drops every cached entry. Displayed lyrics are kept.
func (s *Service) ClearCache() {
	s.post(clearCache{})
}

// State returns the current snapshot.
func (s *Service) State(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case s.events <- stateRequest{reply: reply}:
	case <-s.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-s.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Service) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Service) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case trackChanged:
		s.handleTrack(ctx, ev.track)
	case positionUpdated:
		if s.engine.UpdatePosition(ev.position) {
			s.metrics.LineChanged()
			s.emit()
		}
	case refreshRequest:
		track := ev.track
		logger().Info().Str("track_id", track.ID).Msg("Manual lyrics refresh")
		s.track = &track
		s.startFetch(ctx, track)
	case clearCache:
		logger().Info().Int("entries", s.cache.Len()).Msg("Clearing lyrics cache")
		s.cache.Clear()
		s.cacheSeq = make(map[string]uint64)
		s.clearedSeq = s.seq
	case stateRequest:
		ev.reply <- s.snapshot()
	case fetchResult:
		s.handleResult(ev)
	default:
		logger().Error().Str("type", fmt.Sprintf("%T", ev)).Msg("Unknown event")
	}
}

func (s *Service) handleTrack(ctx context.Context, track *music.Track) {
	if track == nil {
		if s.track == nil && s.lyrics == nil && !s.loading && s.err == nil {
			return
		}
		logger().Info().Msg("No track playing")
		s.track = nil
		s.lyrics = nil
		s.loading = false
		s.err = nil
		s.pending = pendingFetch{}
		s.engine.Reset()
		s.emit()
		return
	}

	if s.track != nil && s.track.ID == track.ID {
		return
	}

	logger().Info().
		Str("track_id", track.ID).
		Str("title", track.Title).
		Str("artist", track.Artist).
		Msg("New track detected")
	s.track = track

	if cached, ok := s.cache.Get(track.ID); ok {
		logger().Debug().Str("track_id", track.ID).Msg("Lyrics cache hit")
		s.metrics.CacheHit()
		s.lyrics = cached
		s.loading = false
		s.err = nil
		s.pending = pendingFetch{}
		s.engine.SetLyrics(cached)
		s.emit()
		return
	}

	s.metrics.CacheMiss()
	s.startFetch(ctx, *track)
}

func (s *Service) startFetch(ctx context.Context, track music.Track) {
	s.seq++
	s.pending = pendingFetch{trackID: track.ID, seq: s.seq}
	s.loading = true
	s.err = nil
	s.lyrics = nil
	s.engine.SetLyrics(nil)
	s.emit()

	s.inflight.Add(1)
	go s.fetch(ctx, track, s.seq)
}

// fetch runs off the loop and posts its result back.
func (s *Service) fetch(ctx context.Context, track music.Track, seq uint64) {
	defer s.inflight.Done()

	l := logger().With().
		Str("fetch_id", uuid.NewString()).
		Str("track_id", track.ID).
		Uint64("seq", seq).
		Logger()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	query := s.normalize(fetchCtx, music.QueryFromTrack(track), l)
	l.Info().Str("query", query.String()).Msg("Fetching lyrics")

	var lyrics *music.Lyrics
	var err error
	if s.fetcher == nil {
		err = fmt.Errorf("no fetcher configured: %w", music.ErrNotFound)
	} else {
		lyrics, err = s.fetcher.FetchLyrics(fetchCtx, query)
	}
	elapsed := time.Since(start)
	s.metrics.FetchCompleted(music.KindOf(err), elapsed)

	if err != nil {
		l.Warn().Err(err).Dur("elapsed", elapsed).Msg("Failed to get lyrics")
	} else {
		l.Info().
			Str("source", string(lyrics.Source)).
			Int("lines", len(lyrics.Lines)).
			Bool("synced", lyrics.IsSynced).
			Dur("elapsed", elapsed).
			Msg("Lyrics fetched")
	}

	select {
	case s.events <- fetchResult{trackID: track.ID, seq: seq, lyrics: lyrics, err: err}:
	case <-ctx.Done():
	}
}

// normalize applies each normalizer in turn; a failing one leaves the query as it was.
func (s *Service) normalize(ctx context.Context, query music.SearchQuery, l zerolog.Logger) music.SearchQuery {
	for _, normalizer := range s.normalizers {
		normalized, err := normalizer.Normalize(ctx, query)
		if err != nil {
			l.Debug().Err(err).Msg("Query normalizer failed, keeping query")
			continue
		}
		query = normalized
	}
	return query
}

func (s *Service) handleResult(res fetchResult) {
	// results are keyed by their own track id, so a late success is still worth caching
	if res.err == nil && res.lyrics != nil {
		s.store(res)
	}

	if res.trackID != s.pending.trackID || res.seq != s.pending.seq {
		logger().Debug().
			Str("track_id", res.trackID).
			Uint64("seq", res.seq).
			Uint64("pending_seq", s.pending.seq).
			Msg("Discarding stale fetch result")
		s.metrics.StaleResult()
		return
	}

	s.pending = pendingFetch{}
	s.loading = false
	switch {
	case res.err != nil:
		s.lyrics = nil
		s.err = res.err
		if !errors.Is(res.err, music.ErrNotFound) {
			s.err = fmt.Errorf("%w: %w", music.ErrNotFound, res.err)
		}
	case res.lyrics == nil:
		s.lyrics = nil
		s.err = music.ErrNotFound
	default:
		s.lyrics = res.lyrics
		s.err = nil
	}
	s.engine.SetLyrics(s.lyrics)
	s.emit()
}

// store caches a successful result unless a newer fetch for the same track
// already wrote the entry or the cache was cleared after this fetch started.
func (s *Service) store(res fetchResult) {
	if res.seq <= s.clearedSeq || res.seq < s.cacheSeq[res.trackID] {
		logger().Debug().
			Str("track_id", res.trackID).
			Uint64("seq", res.seq).
			Msg("Not caching result of superseded fetch")
		return
	}
	s.cache.Add(res.trackID, res.lyrics)
	s.cacheSeq[res.trackID] = res.seq
}

func (s *Service) snapshot() Snapshot {
	snap := Snapshot{
		Lyrics:    s.lyrics,
		IsLoading: s.loading,
		Err:       s.err,
		ErrorKind: music.KindOf(s.err),
		Sync:      s.engine.State(),
	}
	if s.track != nil {
		track := *s.track
		snap.Track = &track
		snap.TrackID = track.ID
	}
	return snap
}

func (s *Service) emit() {
	s.listener(s.snapshot())
}
