package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"launcherd/pkg/types"
)

// scriptInvoker answers commands from a map of handler funcs.
type scriptInvoker struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(args any, out any) error
}

func newScriptInvoker() *scriptInvoker {
	return &scriptInvoker{
		calls:    make(map[string]int),
		handlers: make(map[string]func(args any, out any) error),
	}
}

func (s *scriptInvoker) on(cmd string, fn func(args any, out any) error) {
	s.mu.Lock()
	s.handlers[cmd] = fn
	s.mu.Unlock()
}

func (s *scriptInvoker) Invoke(ctx context.Context, cmd string, args any, out any) error {
	s.mu.Lock()
	s.calls[cmd]++
	fn := s.handlers[cmd]
	s.mu.Unlock()
	if fn == nil {
		return errors.New("unexpected command: " + cmd)
	}
	return fn(args, out)
}

func (s *scriptInvoker) count(cmd string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[cmd]
}

// decodeInto round-trips a value through JSON, mirroring what a real
// transport does to out parameters.
func decodeInto(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func TestIsGameRunning(t *testing.T) {
	inv := newScriptInvoker()
	inv.on(cmdIsGameRunning, func(args, out any) error {
		return decodeInto(map[string]any{"running": true}, out)
	})
	c := NewClient(inv, nil, zerolog.Nop())

	running, err := c.IsGameRunning(context.Background())
	if err != nil {
		t.Fatalf("IsGameRunning: %v", err)
	}
	if !running {
		t.Fatal("running = false, want true")
	}
}

func TestErrorsAreNormalized(t *testing.T) {
	inv := newScriptInvoker()
	inv.on(cmdLaunchGame, func(args, out any) error {
		return errors.New("spawn failed: permission denied")
	})
	c := NewClient(inv, nil, zerolog.Nop())

	err := c.LaunchGame(context.Background(), types.LaunchConfig{})
	if !types.IsCode(err, types.ErrPermission) {
		t.Fatalf("err = %v, want PERMISSION", err)
	}
	var le *types.LauncherError
	if !errors.As(err, &le) || le.UserMessage == "" {
		t.Fatalf("err = %v, want a LauncherError with a user message", err)
	}
}

func TestFetchManifestDecodesAndDedupes(t *testing.T) {
	inv := newScriptInvoker()
	release := make(chan struct{})
	inv.on(cmdCheckForUpdates, func(args, out any) error {
		<-release
		return decodeInto(types.Manifest{
			Version:          "1.2.0",
			MinecraftVersion: "1.20.1",
			Files:            []types.ManifestFile{{Path: "mods/a.jar", SHA256: "abc", URL: "https://cdn/a.jar"}},
		}, out)
	})
	c := NewClient(inv, nil, zerolog.Nop())

	const n = 4
	var wg sync.WaitGroup
	results := make(chan types.Manifest, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := c.FetchManifest(context.Background(), "https://packs.example/manifest.json")
			if err != nil {
				t.Errorf("FetchManifest: %v", err)
				return
			}
			results <- m
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	if got := inv.count(cmdCheckForUpdates); got != 1 {
		t.Fatalf("backend invoked %d times, want 1", got)
	}
	for m := range results {
		if m.Version != "1.2.0" || len(m.Files) != 1 {
			t.Fatalf("manifest = %+v, want decoded fields", m)
		}
	}
}

func TestPingServerShared(t *testing.T) {
	inv := newScriptInvoker()
	release := make(chan struct{})
	inv.on(cmdPingServer, func(args, out any) error {
		<-release
		return decodeInto(types.ServerStatus{Online: true, PlayerCount: 7, MaxPlayers: 100}, out)
	})
	c := NewClient(inv, nil, zerolog.Nop())

	const n = 3
	var wg sync.WaitGroup
	var online int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := c.PingServer(context.Background(), "play.example:25565")
			if err != nil {
				t.Errorf("PingServer: %v", err)
				return
			}
			if st.Online {
				atomic.AddInt32(&online, 1)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := inv.count(cmdPingServer); got != 1 {
		t.Fatalf("backend invoked %d times, want 1", got)
	}
	if online != n {
		t.Fatalf("%d callers saw the shared result, want %d", online, n)
	}
}

func TestAudioCacheRoundTrip(t *testing.T) {
	inv := newScriptInvoker()
	var stored []byte
	inv.on(cmdCacheAudio, func(args, out any) error {
		var in audioData
		if err := decodeInto(args, &in); err != nil {
			return err
		}
		stored = in.Data
		return nil
	})
	inv.on(cmdGetCachedAudio, func(args, out any) error {
		return decodeInto(map[string]any{"data": stored}, out)
	})
	c := NewClient(inv, nil, zerolog.Nop())

	if err := c.WriteAudioCache(context.Background(), []byte("mp3-bytes")); err != nil {
		t.Fatalf("WriteAudioCache: %v", err)
	}
	got, err := c.ReadAudioCache(context.Background())
	if err != nil {
		t.Fatalf("ReadAudioCache: %v", err)
	}
	if string(got) != "mp3-bytes" {
		t.Fatalf("cache = %q, want mp3-bytes", got)
	}
}

// fakeSource is a manual event bus for subscription tests.
type fakeSource struct {
	mu   sync.Mutex
	subs map[string][]func(map[string]any)
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[string][]func(map[string]any))}
}

func (f *fakeSource) Subscribe(name string, fn func(map[string]any)) func() {
	f.mu.Lock()
	f.subs[name] = append(f.subs[name], fn)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeSource) emit(name string, payload map[string]any) {
	f.mu.Lock()
	fns := append(([]func(map[string]any))(nil), f.subs[name]...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

func TestOnExitValidatesPayloads(t *testing.T) {
	src := newFakeSource()
	c := NewClient(newScriptInvoker(), src, zerolog.Nop())

	var mu sync.Mutex
	var got []ExitEvent
	c.OnExit(func(e ExitEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	// JSON decoding delivers numbers as float64.
	src.emit(evtGameExit, map[string]any{"exit_code": float64(137), "crashed": true})
	// Missing crashed flag defaults to false.
	src.emit(evtGameExit, map[string]any{"exit_code": 0})
	// Malformed payloads are dropped.
	src.emit(evtGameExit, map[string]any{"crashed": true})
	src.emit(evtGameExit, map[string]any{"exit_code": "not-a-number"})

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2: %v", len(got), got)
	}
	if got[0].Code != 137 || !got[0].Crashed {
		t.Fatalf("event 0 = %+v, want code 137 crashed", got[0])
	}
	if got[1].Code != 0 || got[1].Crashed {
		t.Fatalf("event 1 = %+v, want code 0 not crashed", got[1])
	}
}

func TestOnCrashAndOnLog(t *testing.T) {
	src := newFakeSource()
	c := NewClient(newScriptInvoker(), src, zerolog.Nop())

	var crash string
	var line string
	c.OnCrash(func(e CrashEvent) { crash = e.Message })
	c.OnLog(func(e LogEvent) { line = e.Line })

	src.emit(evtGameCrash, map[string]any{"message": "EXCEPTION_ACCESS_VIOLATION"})
	src.emit(evtGameCrash, map[string]any{"message": 42}) // dropped
	src.emit(evtGameLog, map[string]any{"line": "[main/INFO] loaded"})

	if crash != "EXCEPTION_ACCESS_VIOLATION" {
		t.Fatalf("crash = %q", crash)
	}
	if line != "[main/INFO] loaded" {
		t.Fatalf("line = %q", line)
	}
}

func TestNilEventSourceIsNoop(t *testing.T) {
	c := NewClient(newScriptInvoker(), nil, zerolog.Nop())
	cancel := c.OnExit(func(ExitEvent) {})
	cancel() // must not panic
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		in   any
		want int
		ok   bool
	}{
		{int(3), 3, true},
		{int64(4), 4, true},
		{float64(5), 5, true},
		{"6", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := asInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("asInt(%v) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
