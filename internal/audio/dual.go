package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// audioDetectedRMS is the chunk energy (int16 units, ~1% of full scale) that
// latches the session's audio-detected flag.
const audioDetectedRMS = 300.0

// DualRecorderConfig wires the dual-stream recorder.
type DualRecorderConfig struct {
	Host          Host
	Selector      *Selector // optional; improves speaker-side selection
	Writer        *Writer
	Log           zerolog.Logger
	RecordingsDir string

	// Target format of the mixed signal. Every source is converted to this
	// rate and layout before mixing.
	TargetSampleRate int // default 16000
	TargetChannels   int // default 1

	ChunkFrames int
	Format      Format
	SpeakerGain float64 // default 1.0, intended range 0..2
	MicGain     float64
}

func (c *DualRecorderConfig) setDefaults() {
	if c.TargetSampleRate <= 0 {
		c.TargetSampleRate = 16000
	}
	if c.TargetChannels <= 0 {
		c.TargetChannels = 1
	}
	if c.ChunkFrames <= 0 {
		c.ChunkFrames = 1024
	}
	if c.Format == "" {
		c.Format = FormatWAV
	}
	if c.RecordingsDir == "" {
		c.RecordingsDir = "recordings"
	}
	if c.SpeakerGain == 0 {
		c.SpeakerGain = 1.0
	}
	if c.MicGain == 0 {
		c.MicGain = 1.0
	}
}

// dualSource is one side of a dual recording: the open stream plus the
// native format its chunks arrive in.
type dualSource struct {
	endpoint   Endpoint
	stream     Stream
	sampleRate int
	channels   int
	failed     bool // fatal read error latched; no further reads
}

// readChunk attempts one bounded read. Transient errors yield a nil chunk
// and the loop continues; fatal errors latch failed so the other source
// keeps recording.
func (d *dualSource) readChunk(log zerolog.Logger, side string) []int16 {
	if d == nil || d.failed {
		return nil
	}
	chunk, err := d.stream.Read()
	if err != nil {
		if isFatalReadError(err) {
			d.failed = true
			log.Error().Err(err).Str("source", side).Msg("stream failed, continuing with remaining source")
			return nil
		}
		log.Debug().Err(err).Str("source", side).Msg("transient read error")
		return nil
	}
	return chunk
}

// DualRecorder records a loopback "room" stream and a microphone stream
// simultaneously, mixing both into one signal. Both reads are interleaved in
// a single worker so mixing order stays deterministic per iteration.
type DualRecorder struct {
	host     Host
	selector *Selector
	writer   *Writer
	log      zerolog.Logger
	cfg      DualRecorderConfig

	mu      sync.Mutex
	state   State
	speaker *Endpoint
	mic     *Endpoint
	sess    *session
	srcs    [2]*dualSource // speaker, mic
	cancel  context.CancelFunc
	done    chan struct{}

	audioDetected bool
}

func NewDualRecorder(cfg DualRecorderConfig) *DualRecorder {
	cfg.setDefaults()
	return &DualRecorder{
		host:     cfg.Host,
		selector: cfg.Selector,
		writer:   cfg.Writer,
		log:      cfg.Log,
		cfg:      cfg,
	}
}

func (r *DualRecorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *DualRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRecording
}

// HasAudioDetected reports whether any chunk's energy has crossed the
// detection threshold since the session started. Latched once, reset on the
// next Start.
func (r *DualRecorder) HasAudioDetected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audioDetected
}

func (r *DualRecorder) SampleCount() int {
	r.mu.Lock()
	sess := r.sess
	r.mu.Unlock()
	if sess == nil {
		return 0
	}
	return sess.sampleCount()
}

// Configure binds speaker and microphone endpoints. Nil arguments trigger
// auto-configuration: the speaker side selects like the single-stream
// recorder (loopback preferred); the microphone side takes the system
// default input unless that is the loopback endpoint, in which case any
// non-loopback input is used, preferring microphone-like names.
func (r *DualRecorder) Configure(speaker, mic *Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording || r.state == StateStopping {
		return fmt.Errorf("cannot reconfigure while %s: %w", r.state, ErrRecordingActive)
	}
	return r.configureLocked(speaker, mic)
}

func (r *DualRecorder) configureLocked(speaker, mic *Endpoint) error {
	eps, err := r.host.Endpoints()
	if err != nil {
		r.state = StateFailed
		return err
	}

	if speaker == nil {
		speaker = r.autoSelectSpeaker(eps)
	}
	if mic == nil {
		mic = r.autoSelectMic(eps, speaker)
	}
	if speaker == nil && mic == nil {
		r.state = StateFailed
		return fmt.Errorf("dual recording: %w", ErrNoAudioSource)
	}

	r.speaker = speaker
	r.mic = mic
	r.state = StateConfigured

	ev := r.log.Info()
	if speaker != nil {
		ev = ev.Str("speaker", speaker.Name)
	}
	if mic != nil {
		ev = ev.Str("mic", mic.Name)
	}
	ev.Msg("dual recorder configured")
	return nil
}

func (r *DualRecorder) autoSelectSpeaker(eps []Endpoint) *Endpoint {
	if r.selector != nil {
		if ep, err := r.selector.Select(ContextMeetingCapture); err == nil {
			return ep
		}
	}
	var fallback *Endpoint
	for i := range eps {
		ep := &eps[i]
		if !ep.CanCapture() {
			continue
		}
		if ep.IsLoopback {
			return ep
		}
		if fallback == nil && ep.IsDefault {
			fallback = ep
		}
	}
	return fallback
}

func (r *DualRecorder) autoSelectMic(eps []Endpoint, speaker *Endpoint) *Endpoint {
	defIn, ok := r.host.DefaultInput()
	if ok {
		for i := range eps {
			ep := &eps[i]
			if ep.Index == defIn && ep.CanCapture() && !ep.IsLoopback {
				if speaker == nil || ep.Index != speaker.Index {
					return ep
				}
			}
		}
	}

	// The default input is the loopback (or absent): any non-loopback
	// input, preferring microphone-like names.
	var fallback *Endpoint
	for i := range eps {
		ep := &eps[i]
		if !ep.CanCapture() || ep.IsLoopback {
			continue
		}
		if speaker != nil && ep.Index == speaker.Index {
			continue
		}
		if matchesAny(ep.Name, microphonePatterns) {
			return ep
		}
		if fallback == nil {
			fallback = ep
		}
	}
	return fallback
}

// Start opens both streams and spawns the single interleaved worker. At
// least one stream must open; a side that fails to open is logged and
// dropped, not fatal while the other side survives.
func (r *DualRecorder) Start(opts StartOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording || r.state == StateStopping {
		return "", ErrRecordingActive
	}
	if r.speaker == nil && r.mic == nil {
		if err := r.configureLocked(nil, nil); err != nil {
			return "", err
		}
	}

	speaker := r.openSource(r.speaker, "speaker")
	mic := r.openSource(r.mic, "mic")
	if speaker == nil && mic == nil {
		r.state = StateFailed
		return "", fmt.Errorf("dual recording: %w", ErrNoAudioSource)
	}

	format := r.cfg.Format
	if opts.Format != "" {
		format = opts.Format
	}

	sess := &session{
		startedAt:  time.Now(),
		path:       resolvePath(r.cfg.RecordingsDir, opts.Filename, format),
		format:     format,
		sampleRate: r.cfg.TargetSampleRate,
		channels:   r.cfg.TargetChannels,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.sess = sess
	r.srcs = [2]*dualSource{speaker, mic}
	r.cancel = cancel
	r.done = done
	r.audioDetected = false
	r.state = StateRecording

	r.log.Info().
		Str("path", sess.path).
		Bool("speaker", speaker != nil).
		Bool("mic", mic != nil).
		Int("sample_rate", sess.sampleRate).
		Int("channels", sess.channels).
		Msg("dual recording started")

	go r.mixLoop(ctx, sess, speaker, mic, opts, done)

	return sess.path, nil
}

func (r *DualRecorder) openSource(ep *Endpoint, side string) *dualSource {
	if ep == nil {
		return nil
	}
	sampleRate := int(ep.DefaultSampleRate)
	if sampleRate <= 0 {
		sampleRate = r.cfg.TargetSampleRate
	}
	channels := ep.MaxInputChannels
	if channels > 2 {
		channels = 2
	}
	stream, err := r.host.Open(*ep, sampleRate, channels, r.cfg.ChunkFrames)
	if err != nil {
		r.log.Warn().Err(err).Str("source", side).Str("device", ep.Name).Msg("could not open stream, dropping source")
		return nil
	}
	return &dualSource{
		endpoint:   *ep,
		stream:     stream,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// mixLoop is the single worker: per iteration it reads each open source,
// converts both to the target format, mixes, and appends the result.
func (r *DualRecorder) mixLoop(ctx context.Context, sess *session, speaker, mic *dualSource, opts StartOptions, done chan struct{}) {
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
		if sourceDead(speaker) && sourceDead(mic) {
			r.log.Error().Msg("all capture sources failed, ending early")
			return
		}

		speakerChunk := r.convert(speaker.readChunk(r.log, "speaker"), speaker)
		micChunk := r.convert(mic.readChunk(r.log, "mic"), mic)

		var mixed []int16
		switch {
		case speakerChunk != nil && micChunk != nil:
			mixed = mixChunks(
				applyGain(speakerChunk, r.cfg.SpeakerGain),
				applyGain(micChunk, r.cfg.MicGain),
			)
		case speakerChunk != nil:
			mixed = quantize(applyGain(speakerChunk, r.cfg.SpeakerGain))
		case micChunk != nil:
			mixed = quantize(applyGain(micChunk, r.cfg.MicGain))
		default:
			// Nothing this iteration; yield so a wedged pair of sources
			// cannot saturate a core.
			time.Sleep(2 * time.Millisecond)
			continue
		}

		sess.append(mixed)
		r.latchAudioDetected(mixed)
		r.invokeProgress(opts.Progress, time.Since(sess.startedAt).Seconds())
	}
}

func sourceDead(d *dualSource) bool {
	return d == nil || d.failed
}

// convert brings a source chunk to the session target layout and rate.
func (r *DualRecorder) convert(chunk []int16, src *dualSource) []int16 {
	if chunk == nil || src == nil {
		return nil
	}
	chunk = convertChannels(chunk, src.channels, r.cfg.TargetChannels)
	return resample(chunk, r.cfg.TargetChannels, src.sampleRate, r.cfg.TargetSampleRate)
}

func (r *DualRecorder) latchAudioDetected(chunk []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.audioDetected && rms(chunk) > audioDetectedRMS {
		r.audioDetected = true
		r.log.Info().Msg("audio detected")
	}
}

func (r *DualRecorder) invokeProgress(fn ProgressFunc, elapsed float64) {
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

// Stop ends the capture, closes whichever streams are open, persists the
// mixed buffer, and returns final statistics.
func (r *DualRecorder) Stop() (Stats, error) {
	r.mu.Lock()
	if r.sess == nil || (r.state != StateRecording && r.state != StateStopping) {
		r.mu.Unlock()
		return Stats{}, ErrNoActiveRecording
	}
	sess := r.sess
	srcs := r.srcs
	cancel := r.cancel
	done := r.done
	r.state = StateStopping
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		r.log.Warn().Msg("mix worker did not stop in time, closing streams anyway")
	}

	for _, src := range srcs {
		if src == nil {
			continue
		}
		if err := src.stream.Close(); err != nil {
			r.log.Warn().Err(err).Str("device", src.endpoint.Name).Msg("closing capture stream")
		}
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
	r.srcs = [2]*dualSource{}
	r.cancel = nil
	r.done = nil
	if err != nil {
		r.state = StateFailed
		r.mu.Unlock()
		return Stats{}, fmt.Errorf("save dual recording: %w", err)
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
		Msg("dual recording saved")
	return stats, nil
}
