package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
)

// speakerRate is the fixed output sample rate; tracks at other rates are
// resampled on the fly.
const speakerRate = beep.SampleRate(44100)

// BeepEngine is the real Engine: mp3 decode into buffers played through the
// beep speaker with a per-track volume stage.
type BeepEngine struct {
	fallbackPath string
	initOnce     sync.Once
	initErr      error
}

// NewBeepEngine returns an engine whose fallback loop is read from path.
func NewBeepEngine(fallbackPath string) *BeepEngine {
	return &BeepEngine{fallbackPath: fallbackPath}
}

func (e *BeepEngine) init() error {
	e.initOnce.Do(func() {
		e.initErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return e.initErr
}

func (e *BeepEngine) OpenFallback() (Track, error) {
	if err := e.init(); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	f, err := os.Open(e.fallbackPath)
	if err != nil {
		return nil, err
	}
	return decodeTrack(f)
}

func (e *BeepEngine) OpenMain(data []byte) (Track, error) {
	if err := e.init(); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	return decodeTrack(io.NopCloser(bytes.NewReader(data)))
}

func decodeTrack(rc io.ReadCloser) (Track, error) {
	streamer, format, err := mp3.Decode(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}
	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	streamer.Close()

	var s beep.Streamer = beep.Loop(-1, buf.Streamer(0, buf.Len()))
	if format.SampleRate != speakerRate {
		s = beep.Resample(4, format.SampleRate, speakerRate, s)
	}
	vol := &effects.Volume{Streamer: s, Base: 2, Silent: true}
	t := &beepTrack{
		vol:   vol,
		ctrl:  &beep.Ctrl{Streamer: vol, Paused: true},
		ready: make(chan struct{}),
	}
	// Buffered decode is synchronous, so the track is ready immediately.
	close(t.ready)
	return t, nil
}

type beepTrack struct {
	vol      *effects.Volume
	ctrl     *beep.Ctrl
	ready    chan struct{}
	playOnce sync.Once
}

func (t *beepTrack) Play() error {
	t.playOnce.Do(func() { speaker.Play(t.ctrl) })
	speaker.Lock()
	t.ctrl.Paused = false
	speaker.Unlock()
	return nil
}

func (t *beepTrack) Stop() {
	speaker.Lock()
	t.ctrl.Paused = true
	speaker.Unlock()
}

// SetVolume maps linear volume onto the exponential stage; near-zero flips
// the Silent switch instead of chasing -inf.
func (t *beepTrack) SetVolume(v float64) {
	speaker.Lock()
	if v <= 0.001 {
		t.vol.Silent = true
	} else {
		t.vol.Silent = false
		t.vol.Volume = math.Log2(v)
	}
	speaker.Unlock()
}

func (t *beepTrack) Ready() <-chan struct{} { return t.ready }

// Close detaches the track from the mixer so its buffer can be collected.
func (t *beepTrack) Close() error {
	speaker.Lock()
	t.ctrl.Paused = true
	t.ctrl.Streamer = nil
	speaker.Unlock()
	return nil
}
