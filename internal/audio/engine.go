package audio

// Track is one playable audio source. Volume is linear in [0,1].
// Close releases the underlying decoded buffers; the controller guarantees
// it is called exactly once per track.
type Track interface {
	Play() error
	Stop()
	SetVolume(v float64)
	// Ready is closed once the track has buffered enough to start.
	Ready() <-chan struct{}
	Close() error
}

// Engine constructs tracks. The real implementation sits on beep; tests
// inject fakes.
type Engine interface {
	// OpenFallback loads the short bundled loop played while the main
	// track is being resolved.
	OpenFallback() (Track, error)
	// OpenMain decodes downloaded/cached bytes into the main track.
	OpenMain(data []byte) (Track, error)
}
