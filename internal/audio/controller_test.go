package audio

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recorder keeps a single ordered timeline of volume changes across tracks
// so tests can assert crossfade ordering.
type recorder struct {
	mu     sync.Mutex
	events []volEvent
}

type volEvent struct {
	track string
	vol   float64
}

func (r *recorder) add(track string, vol float64) {
	r.mu.Lock()
	r.events = append(r.events, volEvent{track, vol})
	r.mu.Unlock()
}

func (r *recorder) timeline() []volEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]volEvent(nil), r.events...)
}

type fakeTrack struct {
	name    string
	rec     *recorder
	ready   chan struct{}
	playErr error

	mu     sync.Mutex
	plays  int
	stops  int
	closes int
}

func newFakeTrack(name string, rec *recorder) *fakeTrack {
	ready := make(chan struct{})
	close(ready)
	return &fakeTrack{name: name, rec: rec, ready: ready}
}

func (t *fakeTrack) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playErr != nil {
		return t.playErr
	}
	t.plays++
	return nil
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
}

func (t *fakeTrack) SetVolume(v float64) { t.rec.add(t.name, v) }

func (t *fakeTrack) Ready() <-chan struct{} { return t.ready }

func (t *fakeTrack) Close() error {
	t.mu.Lock()
	t.closes++
	t.mu.Unlock()
	return nil
}

func (t *fakeTrack) counts() (plays, stops, closes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plays, t.stops, t.closes
}

type fakeEngine struct {
	rec         *recorder
	fallbackErr error
	mainErr     error
	mainPlayErr error

	mu        sync.Mutex
	fb        *fakeTrack
	main      *fakeTrack
	fbOpens   int
	mainOpens int
	mainData  []byte
}

func (e *fakeEngine) OpenFallback() (Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fbOpens++
	if e.fallbackErr != nil {
		return nil, e.fallbackErr
	}
	e.fb = newFakeTrack("fallback", e.rec)
	return e.fb, nil
}

func (e *fakeEngine) OpenMain(data []byte) (Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mainOpens++
	if e.mainErr != nil {
		return nil, e.mainErr
	}
	e.mainData = append([]byte(nil), data...)
	e.main = newFakeTrack("main", e.rec)
	e.main.playErr = e.mainPlayErr
	return e.main, nil
}

func (e *fakeEngine) tracks() (fb, main *fakeTrack) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fb, e.main
}

type fakeAudioBridge struct {
	mu          sync.Mutex
	cache       []byte
	readDelay   time.Duration
	downloadErr error
	download    []byte
	reads       int
	writes      int
	downloads   int
}

func (b *fakeAudioBridge) ReadAudioCache(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	delay := b.readDelay
	b.reads++
	data := append([]byte(nil), b.cache...)
	b.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return data, nil
}

func (b *fakeAudioBridge) WriteAudioCache(ctx context.Context, data []byte) error {
	b.mu.Lock()
	b.writes++
	b.cache = append([]byte(nil), data...)
	b.mu.Unlock()
	return nil
}

func (b *fakeAudioBridge) DownloadAudio(ctx context.Context, url string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads++
	if b.downloadErr != nil {
		return nil, b.downloadErr
	}
	return append([]byte(nil), b.download...), nil
}

func (b *fakeAudioBridge) counts() (reads, writes, downloads int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads, b.writes, b.downloads
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if State(c.Snapshot().State) == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", c.Snapshot().State, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func fastConfig() Config {
	return Config{
		TrackURL:         "https://cdn.example/ambient.mp3",
		TargetVolume:     0.3,
		FadeDuration:     40 * time.Millisecond,
		FadeSteps:        4,
		StartDelay:       5 * time.Millisecond,
		ReadyTimeout:     time.Second,
		WatchdogInterval: time.Hour,
		MaxRetries:       3,
	}
}

func TestCrossfadePromotesToMain(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	// Delay the cache read so the fallback is playing before the main
	// track becomes ready.
	br := &fakeAudioBridge{cache: []byte("cached-mp3"), readDelay: 60 * time.Millisecond}
	c := New(br, eng, fastConfig(), zerolog.Nop())
	c.Start()
	defer c.Close()

	waitForState(t, c, StateMain)

	fb, main := eng.tracks()
	if fb == nil || main == nil {
		t.Fatal("tracks not constructed")
	}
	fbPlays, fbStops, _ := fb.counts()
	if fbPlays != 1 || fbStops != 1 {
		t.Fatalf("fallback plays/stops = %d/%d, want 1/1", fbPlays, fbStops)
	}
	mainPlays, _, _ := main.counts()
	if mainPlays != 1 {
		t.Fatalf("main plays = %d, want 1", mainPlays)
	}

	events := rec.timeline()
	fbZero, mainTarget := -1, -1
	for i, e := range events {
		if e.track == "fallback" && e.vol == 0 && fbZero == -1 {
			fbZero = i
		}
		if e.track == "main" && e.vol == 0.3 {
			mainTarget = i
		}
	}
	if fbZero == -1 {
		t.Fatalf("fallback never faded to zero; timeline: %v", events)
	}
	if mainTarget == -1 {
		t.Fatalf("main never reached target volume; timeline: %v", events)
	}
	if fbZero > mainTarget {
		t.Fatalf("main reached target before the fallback faded out; timeline: %v", events)
	}

	snap := c.Snapshot()
	if !snap.MainReady || snap.RetryCount != 0 {
		t.Fatalf("snapshot = %+v, want main ready with zero retries", snap)
	}
}

func TestDirectPromotionSkipsFallback(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	br := &fakeAudioBridge{cache: []byte("cached-mp3")}
	cfg := fastConfig()
	// The main track resolves well before the fallback would start.
	cfg.StartDelay = 500 * time.Millisecond
	c := New(br, eng, cfg, zerolog.Nop())
	c.Start()
	defer c.Close()

	waitForState(t, c, StateMain)

	eng.mu.Lock()
	fbOpens := eng.fbOpens
	eng.mu.Unlock()
	if fbOpens != 0 {
		t.Fatalf("fallback opened %d times, want 0", fbOpens)
	}
}

func TestDownloadIsCachedAndReplayed(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	br := &fakeAudioBridge{download: []byte("downloaded-mp3")}
	cfg := fastConfig()
	cfg.StartDelay = time.Hour // keep the fallback out of the picture
	c := New(br, eng, cfg, zerolog.Nop())
	c.Start()
	defer c.Close()

	waitForState(t, c, StateMain)

	_, writes, downloads := br.counts()
	if downloads != 1 || writes != 1 {
		t.Fatalf("downloads/writes = %d/%d, want 1/1", downloads, writes)
	}
	eng.mu.Lock()
	data := eng.mainData
	eng.mu.Unlock()
	if !bytes.Equal(data, []byte("downloaded-mp3")) {
		t.Fatalf("main track decoded %q, want the downloaded bytes", data)
	}
}

func TestRevertsToFallbackWhenMainFailsToStart(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec, mainPlayErr: errors.New("device busy")}
	br := &fakeAudioBridge{cache: []byte("cached-mp3"), readDelay: 60 * time.Millisecond}
	c := New(br, eng, fastConfig(), zerolog.Nop())
	c.Start()
	defer c.Close()

	// The machine transitions then falls back when main refuses to play.
	deadline := time.Now().Add(3 * time.Second)
	for {
		fb, _ := eng.tracks()
		if fb != nil {
			if plays, _, _ := fb.counts(); plays == 2 && State(c.Snapshot().State) == StateFallback {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("never reverted to fallback; state = %s", c.Snapshot().State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The fallback is restored at the original target volume.
	events := rec.timeline()
	last := volEvent{}
	for _, e := range events {
		if e.track == "fallback" {
			last = e
		}
	}
	if last.vol != 0.3 {
		t.Fatalf("fallback restored at %v, want 0.3; timeline: %v", last.vol, events)
	}
}

func TestWatchdogRetriesAreBounded(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	br := &fakeAudioBridge{downloadErr: errors.New("cdn unreachable")}
	cfg := fastConfig()
	cfg.StartDelay = time.Millisecond
	cfg.WatchdogInterval = 15 * time.Millisecond
	cfg.MaxRetries = 3
	c := New(br, eng, cfg, zerolog.Nop())
	c.Start()
	defer c.Close()

	waitForState(t, c, StateFallback)
	time.Sleep(300 * time.Millisecond)

	_, _, downloads := br.counts()
	// One initial attempt plus the bounded watchdog retries.
	if downloads != 4 {
		t.Fatalf("downloads = %d, want 4", downloads)
	}
	snap := c.Snapshot()
	if snap.RetryCount != 3 {
		t.Fatalf("retry count = %d, want 3", snap.RetryCount)
	}
	if State(snap.State) != StateFallback || snap.MainReady {
		t.Fatalf("snapshot = %+v, want stuck on fallback", snap)
	}
}

func TestCloseReleasesTracksExactlyOnce(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	br := &fakeAudioBridge{cache: []byte("cached-mp3"), readDelay: 60 * time.Millisecond}
	c := New(br, eng, fastConfig(), zerolog.Nop())
	c.Start()
	waitForState(t, c, StateMain)

	c.Close()
	c.Close()

	fb, main := eng.tracks()
	if _, _, closes := fb.counts(); closes != 1 {
		t.Fatalf("fallback closed %d times, want 1", closes)
	}
	if _, _, closes := main.counts(); closes != 1 {
		t.Fatalf("main closed %d times, want 1", closes)
	}
}

func TestDuckAndResume(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	br := &fakeAudioBridge{cache: []byte("cached-mp3")}
	cfg := fastConfig()
	cfg.StartDelay = 500 * time.Millisecond
	c := New(br, eng, cfg, zerolog.Nop())
	c.Start()
	defer c.Close()

	waitForState(t, c, StateMain)

	c.Duck()
	c.Resume()

	events := rec.timeline()
	if len(events) < 2 {
		t.Fatalf("too few volume events: %v", events)
	}
	ducked := events[len(events)-2]
	resumed := events[len(events)-1]
	if ducked.track != "main" || ducked.vol != 0 {
		t.Fatalf("duck event = %v, want main at 0", ducked)
	}
	if resumed.track != "main" || resumed.vol != 0.3 {
		t.Fatalf("resume event = %v, want main at 0.3", resumed)
	}
}

func TestDuckDuringCrossfadeEndsSilent(t *testing.T) {
	rec := &recorder{}
	eng := &fakeEngine{rec: rec}
	br := &fakeAudioBridge{cache: []byte("cached-mp3"), readDelay: 60 * time.Millisecond}
	cfg := fastConfig()
	// Stretch the fade so the duck lands while the crossfade is running.
	cfg.FadeDuration = 200 * time.Millisecond
	c := New(br, eng, cfg, zerolog.Nop())
	c.Start()
	defer c.Close()

	waitForState(t, c, StateTransitioning)
	c.Duck()
	waitForState(t, c, StateMain)

	// The completed fade must not undo the duck: the main track ends silent.
	events := rec.timeline()
	last := volEvent{track: "none", vol: -1}
	for _, e := range events {
		if e.track == "main" {
			last = e
		}
	}
	if last.vol != 0 {
		t.Fatalf("main volume after ducked fade = %v, want 0; timeline: %v", last.vol, events)
	}

	c.Resume()
	events = rec.timeline()
	final := events[len(events)-1]
	if final.track != "main" || final.vol != 0.3 {
		t.Fatalf("resume event = %v, want main at 0.3", final)
	}
}
