package audio

// Test doubles for the Host/Stream seam. Streams are scripted: a finite
// prefix of reads followed by an optional repeating cycle, paced by an
// interval so worker-loop timing behaves like a real blocking device read.

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

type readResult struct {
	chunk []int16
	err   error
}

type fakeStream struct {
	mu       sync.Mutex
	script   []readResult // consumed once, in order
	cycle    []readResult // repeated after the script runs out
	cyclePos int
	interval time.Duration
	closed   chan struct{}
	closeone sync.Once
}

func newFakeStream(interval time.Duration) *fakeStream {
	return &fakeStream{interval: interval, closed: make(chan struct{})}
}

func (s *fakeStream) push(chunk []int16) {
	s.mu.Lock()
	s.script = append(s.script, readResult{chunk: chunk})
	s.mu.Unlock()
}

func (s *fakeStream) pushErr(err error) {
	s.mu.Lock()
	s.script = append(s.script, readResult{err: err})
	s.mu.Unlock()
}

func (s *fakeStream) repeat(chunk []int16) {
	s.mu.Lock()
	s.cycle = append(s.cycle, readResult{chunk: chunk})
	s.mu.Unlock()
}

func (s *fakeStream) Read() ([]int16, error) {
	if s.interval > 0 {
		select {
		case <-s.closed:
			return nil, errors.New("read on closed stream")
		case <-time.After(s.interval):
		}
	}

	s.mu.Lock()
	if len(s.script) > 0 {
		res := s.script[0]
		s.script = s.script[1:]
		s.mu.Unlock()
		return res.chunk, res.err
	}
	if len(s.cycle) > 0 {
		res := s.cycle[s.cyclePos%len(s.cycle)]
		s.cyclePos++
		s.mu.Unlock()
		return res.chunk, res.err
	}
	s.mu.Unlock()

	// Nothing scripted: block like a silent device until closed.
	<-s.closed
	return nil, errors.New("read on closed stream")
}

func (s *fakeStream) Close() error {
	s.closeone.Do(func() { close(s.closed) })
	return nil
}

type fakeHost struct {
	mu        sync.Mutex
	endpoints []Endpoint
	defIn     int
	hasIn     bool
	defOut    int
	hasOut    bool

	streams map[int]*fakeStream // by endpoint index
	openErr map[int]error
	opened  []int // indices in open order
}

func newFakeHost(eps ...Endpoint) *fakeHost {
	return &fakeHost{
		endpoints: eps,
		streams:   map[int]*fakeStream{},
		openErr:   map[int]error{},
	}
}

func (h *fakeHost) setDefaults(in, out int) {
	h.defIn, h.hasIn = in, true
	h.defOut, h.hasOut = out, true
}

func (h *fakeHost) Endpoints() ([]Endpoint, error) {
	return append([]Endpoint(nil), h.endpoints...), nil
}

func (h *fakeHost) DefaultInput() (int, bool)  { return h.defIn, h.hasIn }
func (h *fakeHost) DefaultOutput() (int, bool) { return h.defOut, h.hasOut }

func (h *fakeHost) Open(ep Endpoint, sampleRate, channels, chunkFrames int) (Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.openErr[ep.Index]; err != nil {
		return nil, err
	}
	stream, ok := h.streams[ep.Index]
	if !ok {
		return nil, fmt.Errorf("no scripted stream for endpoint %d", ep.Index)
	}
	h.opened = append(h.opened, ep.Index)
	return stream, nil
}

func (h *fakeHost) Close() error { return nil }

// failingHost simulates an audio subsystem that cannot enumerate.
type failingHost struct{}

func (failingHost) Endpoints() ([]Endpoint, error) {
	return nil, fmt.Errorf("subsystem init failed: %w", ErrDeviceUnavailable)
}
func (failingHost) DefaultInput() (int, bool)  { return 0, false }
func (failingHost) DefaultOutput() (int, bool) { return 0, false }
func (failingHost) Open(Endpoint, int, int, int) (Stream, error) {
	return nil, ErrDeviceUnavailable
}
func (failingHost) Close() error { return nil }

// constChunk builds a chunk with every sample set to v.
func constChunk(n int, v int16) []int16 {
	chunk := make([]int16, n)
	for i := range chunk {
		chunk[i] = v
	}
	return chunk
}
