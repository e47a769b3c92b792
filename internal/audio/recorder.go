package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateRecording
	StateStopping
	StateSaved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateSaved:
		return "saved"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// stopJoinTimeout bounds how long Stop waits for the capture worker. A
// timeout is not data loss: the stream is closed anyway and whatever frames
// were captured are saved.
const stopJoinTimeout = 2 * time.Second

// RecorderConfig wires a recorder's collaborators and capture settings.
type RecorderConfig struct {
	Host          Host
	Selector      *Selector // optional; enables auto-configuration
	Writer        *Writer
	Log           zerolog.Logger
	RecordingsDir string
	SampleRate    int // 0 uses the endpoint's default rate
	Channels      int // 0 negotiates from the endpoint, capped at 2
	ChunkFrames   int // frames per native read, default 1024
	Format        Format
}

func (c *RecorderConfig) setDefaults() {
	if c.ChunkFrames <= 0 {
		c.ChunkFrames = 1024
	}
	if c.Format == "" {
		c.Format = FormatWAV
	}
	if c.RecordingsDir == "" {
		c.RecordingsDir = "recordings"
	}
}

// StartOptions parameterizes one recording.
type StartOptions struct {
	Filename    string // stem or full path; empty derives a timestamped name
	MaxDuration time.Duration
	Progress    ProgressFunc
	Format      Format // overrides the recorder default when set
}

// session owns the frame buffer for one recording. The buffer belongs to the
// worker while recording; the coarse lock only covers live statistics reads
// from other goroutines.
type session struct {
	mu        sync.Mutex
	chunks    [][]int16
	samples   int
	startedAt time.Time

	stream     Stream
	path       string
	format     Format
	sampleRate int
	channels   int
}

func (s *session) append(chunk []int16) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.samples += len(chunk)
	s.mu.Unlock()
}

func (s *session) sampleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// take hands the buffer to the persistence step and releases the session's
// ownership of it.
func (s *session) take() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := s.chunks
	s.chunks = nil
	return chunks
}

// Recorder drives one audio endpoint through an open/record/stop/save
// lifecycle. At most one session is active at a time.
type Recorder struct {
	host     Host
	selector *Selector
	writer   *Writer
	log      zerolog.Logger
	cfg      RecorderConfig

	mu       sync.Mutex
	state    State
	endpoint *Endpoint
	sess     *session
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	cfg.setDefaults()
	return &Recorder{
		host:     cfg.Host,
		selector: cfg.Selector,
		writer:   cfg.Writer,
		log:      cfg.Log,
		cfg:      cfg,
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsRecording reports whether a capture session is active.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRecording
}

// SampleCount returns the live sample count of the active session, 0 when
// idle.
func (r *Recorder) SampleCount() int {
	r.mu.Lock()
	sess := r.sess
	r.mu.Unlock()
	if sess == nil {
		return 0
	}
	return sess.sampleCount()
}

// Configure binds the recorder to an endpoint. With a nil endpoint the best
// recording-capable device is chosen: loopback first, then the default
// output-as-input, then any input-capable endpoint.
func (r *Recorder) Configure(ep *Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording || r.state == StateStopping {
		return fmt.Errorf("cannot reconfigure while %s: %w", r.state, ErrRecordingActive)
	}
	return r.configureLocked(ep)
}

func (r *Recorder) configureLocked(ep *Endpoint) error {
	if ep == nil {
		chosen, err := r.autoSelect()
		if err != nil {
			r.state = StateFailed
			return err
		}
		ep = chosen
	}
	if !ep.CanCapture() {
		r.state = StateFailed
		return fmt.Errorf("endpoint %q has no input channels: %w", ep.Name, ErrDeviceUnavailable)
	}

	r.endpoint = ep
	r.state = StateConfigured
	r.log.Info().Str("device", ep.Name).Bool("loopback", ep.IsLoopback).Msg("recorder configured")
	return nil
}

func (r *Recorder) autoSelect() (*Endpoint, error) {
	if r.selector != nil {
		return r.selector.Select(ContextSystemDefault)
	}

	eps, err := r.host.Endpoints()
	if err != nil {
		return nil, err
	}
	var fallback, defaultIn *Endpoint
	for i := range eps {
		ep := &eps[i]
		if !ep.CanCapture() {
			continue
		}
		if ep.IsLoopback {
			return ep, nil
		}
		if ep.IsDefault && defaultIn == nil {
			defaultIn = ep
		}
		if fallback == nil {
			fallback = ep
		}
	}
	if defaultIn != nil {
		return defaultIn, nil
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, fmt.Errorf("no recording-capable endpoint: %w", ErrDeviceUnavailable)
}

// Start opens the native stream and spawns the capture worker. It blocks
// only until the stream is open and returns the destination path
// immediately. Starting while a recording is active fails without touching
// the active session.
func (r *Recorder) Start(opts StartOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording || r.state == StateStopping {
		return "", ErrRecordingActive
	}
	if r.endpoint == nil {
		if err := r.configureLocked(nil); err != nil {
			return "", err
		}
	}

	ep := r.endpoint
	sampleRate := r.cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = int(ep.DefaultSampleRate)
	}
	channels := r.cfg.Channels
	if channels <= 0 {
		channels = ep.MaxInputChannels
		if channels > 2 {
			channels = 2
		}
	}

	format := r.cfg.Format
	if opts.Format != "" {
		format = opts.Format
	}

	stream, err := r.host.Open(*ep, sampleRate, channels, r.cfg.ChunkFrames)
	if err != nil {
		r.state = StateFailed
		return "", err
	}

	sess := &session{
		stream:     stream,
		startedAt:  time.Now(),
		path:       resolvePath(r.cfg.RecordingsDir, opts.Filename, format),
		format:     format,
		sampleRate: sampleRate,
		channels:   channels,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.sess = sess
	r.cancel = cancel
	r.done = done
	r.state = StateRecording

	r.log.Info().
		Str("device", ep.Name).
		Str("path", sess.path).
		Int("sample_rate", sampleRate).
		Int("channels", channels).
		Msg("recording started")

	go r.captureLoop(ctx, sess, opts, done)

	return sess.path, nil
}

// captureLoop reads fixed-size chunks until cancelled, the max duration
// elapses, or the device dies. Transient read errors are skipped; fatal ones
// end the loop early with the captured frames kept for saving.
func (r *Recorder) captureLoop(ctx context.Context, sess *session, opts StartOptions, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if opts.MaxDuration > 0 && time.Since(sess.startedAt) >= opts.MaxDuration {
			r.log.Info().Dur("max", opts.MaxDuration).Msg("max duration reached")
			return
		}

		chunk, err := sess.stream.Read()
		if err != nil {
			if isFatalReadError(err) {
				r.log.Error().Err(err).Msg("capture device failed, ending early")
				return
			}
			r.log.Debug().Err(err).Msg("transient read error, skipping chunk")
			continue
		}

		sess.append(chunk)
		r.invokeProgress(opts.Progress, time.Since(sess.startedAt).Seconds())
	}
}

// invokeProgress runs the caller's callback on the worker, treating it as
// untrusted: a panic is logged, never propagated.
func (r *Recorder) invokeProgress(fn ProgressFunc, elapsed float64) {
	if fn == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Warn().Interface("panic", p).Msg("progress callback panicked")
		}
	}()
	fn(elapsed)
}

// Stop ends the capture, joins the worker with a bounded timeout, flushes
// the buffer to disk, and returns final statistics. A worker join timeout
// still closes the stream and saves the captured frames.
func (r *Recorder) Stop() (Stats, error) {
	r.mu.Lock()
	if r.sess == nil || (r.state != StateRecording && r.state != StateStopping) {
		r.mu.Unlock()
		return Stats{}, ErrNoActiveRecording
	}
	sess := r.sess
	cancel := r.cancel
	done := r.done
	r.state = StateStopping
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		r.log.Warn().Msg("capture worker did not stop in time, closing stream anyway")
	}

	if err := sess.stream.Close(); err != nil {
		r.log.Warn().Err(err).Msg("closing capture stream")
	}

	endedAt := time.Now()
	duration := endedAt.Sub(sess.startedAt)
	chunks := sess.take()
	samples := 0
	for _, c := range chunks {
		samples += len(c)
	}

	byteSize, err := r.writer.Write(sess.path, sess.format, chunks, sess.sampleRate, sess.channels)

	r.mu.Lock()
	r.sess = nil
	r.cancel = nil
	r.done = nil
	if err != nil {
		r.state = StateFailed
		r.mu.Unlock()
		return Stats{}, fmt.Errorf("save recording: %w", err)
	}
	r.state = StateSaved
	r.mu.Unlock()

	stats := Stats{
		Path:        sess.path,
		Duration:    duration,
		ByteSize:    byteSize,
		SampleCount: samples,
		StartedAt:   sess.startedAt,
	}
	r.log.Info().
		Str("path", stats.Path).
		Dur("duration", stats.Duration).
		Int64("bytes", stats.ByteSize).
		Int("samples", stats.SampleCount).
		Msg("recording saved")
	return stats, nil
}

// resolvePath builds the destination file path: explicit paths pass through
// with the container extension enforced, stems get a timestamp suffix under
// the recordings directory.
func resolvePath(dir, filename string, format Format) string {
	stamp := time.Now().Format("20060102_150405")
	switch {
	case filename == "":
		return filepath.Join(dir, "recording_"+stamp+format.Ext())
	case filepath.Ext(filename) != "":
		if filepath.IsAbs(filename) || filepath.Dir(filename) != "." {
			return filename
		}
		return filepath.Join(dir, filename)
	default:
		return filepath.Join(dir, filename+"_"+stamp+format.Ext())
	}
}
