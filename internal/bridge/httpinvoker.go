package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"launcherd/internal/poll"
)

// HTTPInvoker is the reference transport: it reaches a backend that exposes
// commands as POST {base}/invoke/{cmd} with JSON bodies and results, and an
// SSE stream of events at GET {base}/events.
type HTTPInvoker struct {
	base string
	// Timeout is intentionally zero: every call carries a context deadline
	// set by the caller.
	client *http.Client
}

// NewHTTPInvoker returns an invoker for a backend rooted at base.
func NewHTTPInvoker(base string) *HTTPInvoker {
	return &HTTPInvoker{base: strings.TrimRight(base, "/"), client: &http.Client{Timeout: 0}}
}

type invokeError struct {
	Error string `json:"error"`
}

func (h *HTTPInvoker) Invoke(ctx context.Context, cmd string, args any, out any) error {
	var body io.Reader
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", cmd, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/invoke/"+cmd, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var ie invokeError
		if json.Unmarshal(b, &ie) == nil && ie.Error != "" {
			return errors.New(ie.Error)
		}
		return fmt.Errorf("backend %s: %s", cmd, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HTTPEventSource consumes the backend's SSE event stream and fans events
// out to subscribers by name.
type HTTPEventSource struct {
	base   string
	client *http.Client
	log    zerolog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(map[string]any)
	cancel context.CancelFunc
}

// NewHTTPEventSource starts consuming events from base. Close stops the
// stream and detaches all subscribers.
func NewHTTPEventSource(base string, log zerolog.Logger) *HTTPEventSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &HTTPEventSource{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 0},
		log:    log,
		subs:   make(map[string]map[int]func(map[string]any)),
		cancel: cancel,
	}
	go s.consume(ctx)
	return s
}

func (s *HTTPEventSource) Subscribe(name string, fn func(payload map[string]any)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.subs[name] == nil {
		s.subs[name] = make(map[int]func(map[string]any))
	}
	s.subs[name][id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[name], id)
			s.mu.Unlock()
		})
	}
}

// Close stops the event stream.
func (s *HTTPEventSource) Close() { s.cancel() }

// reconnectBase spaces SSE reconnect attempts; consecutive failures widen
// the spacing exponentially, a clean disconnect resets it.
const reconnectBase = time.Second

func (s *HTTPEventSource) consume(ctx context.Context) {
	failures := 0
	for {
		err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			s.log.Warn().Err(err).Int("failures", failures).Msg("event stream interrupted, reconnecting")
		} else {
			failures = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll.NextInterval(reconnectBase, 2, failures)):
		}
	}
}

func (s *HTTPEventSource) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: %s", resp.Status)
	}
	r := bufio.NewReader(resp.Body)
	var event string
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			l := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(l, "event:"):
				event = strings.TrimSpace(l[len("event:"):])
			case strings.HasPrefix(l, "data:"):
				data := strings.TrimSpace(l[len("data:"):])
				var payload map[string]any
				if e := json.Unmarshal([]byte(data), &payload); e == nil {
					s.dispatch(event, payload)
				} else {
					s.log.Warn().Str("event", event).Msg("dropping undecodable event payload")
				}
				event = ""
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (s *HTTPEventSource) dispatch(name string, payload map[string]any) {
	if name == "" {
		return
	}
	s.mu.Lock()
	fns := make([]func(map[string]any), 0, len(s.subs[name]))
	for _, fn := range s.subs[name] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}
