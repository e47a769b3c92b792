// Package capture fronts the audio engine with the contract consumed by
// front ends and automation: enumerate, select, configure, start, stop,
// record outcome.
package capture

import (
	"sync"

	"github.com/arthurhrk/meetingscribe-sub001/internal/audio"
	"github.com/arthurhrk/meetingscribe-sub001/internal/config"
	"github.com/rs/zerolog"
)

// Config wires the service's collaborators.
type Config struct {
	Host     audio.Host
	Selector *audio.Selector
	Config   *config.Config
	Logger   zerolog.Logger
}

// Service owns one single-stream and one dual-stream recorder and enforces
// that only one of them records at a time.
type Service struct {
	host     audio.Host
	selector *audio.Selector
	catalog  *audio.Catalog
	cfg      *config.Config
	log      zerolog.Logger

	mu     sync.Mutex
	single *audio.Recorder
	dual   *audio.DualRecorder
}

func New(cfg Config) *Service {
	writer := audio.NewWriter(cfg.Logger)
	format := audio.Format(cfg.Config.Recordings.Format)

	single := audio.NewRecorder(audio.RecorderConfig{
		Host:          cfg.Host,
		Selector:      cfg.Selector,
		Writer:        writer,
		Log:           cfg.Logger,
		RecordingsDir: cfg.Config.Recordings.Dir,
		SampleRate:    cfg.Config.Capture.SampleRate,
		Channels:      cfg.Config.Capture.Channels,
		ChunkFrames:   cfg.Config.Capture.ChunkFrames,
		Format:        format,
	})
	dual := audio.NewDualRecorder(audio.DualRecorderConfig{
		Host:             cfg.Host,
		Selector:         cfg.Selector,
		Writer:           writer,
		Log:              cfg.Logger,
		RecordingsDir:    cfg.Config.Recordings.Dir,
		TargetSampleRate: cfg.Config.Capture.SampleRate,
		TargetChannels:   cfg.Config.Capture.Channels,
		ChunkFrames:      cfg.Config.Capture.ChunkFrames,
		Format:           format,
		SpeakerGain:      cfg.Config.Capture.SpeakerGain,
		MicGain:          cfg.Config.Capture.MicGain,
	})

	return &Service{
		host:     cfg.Host,
		selector: cfg.Selector,
		catalog:  audio.NewCatalog(cfg.Host),
		cfg:      cfg.Config,
		log:      cfg.Logger,
		single:   single,
		dual:     dual,
	}
}

// EnumerateDevices returns the classified endpoint snapshot.
func (s *Service) EnumerateDevices() ([]audio.Endpoint, error) {
	return s.catalog.Enumerate()
}

// SelectDevice scores and picks the best endpoint for a context.
func (s *Service) SelectDevice(ctx audio.Context) (*audio.Endpoint, error) {
	return s.selector.Select(ctx)
}

// RankDevices returns every candidate with its score and justification.
func (s *Service) RankDevices(ctx audio.Context) ([]audio.Score, error) {
	return s.selector.Rank(ctx)
}

// Configure binds the single-stream recorder to an endpoint (nil for auto).
func (s *Service) Configure(ep *audio.Endpoint) error {
	return s.single.Configure(ep)
}

// Start begins a single-stream recording and returns the destination path.
func (s *Service) Start(opts audio.StartOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dual.IsRecording() {
		return "", audio.ErrRecordingActive
	}
	return s.single.Start(opts)
}

// StartDual begins a dual-stream recording and returns the destination path.
func (s *Service) StartDual(opts audio.StartOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.single.IsRecording() {
		return "", audio.ErrRecordingActive
	}
	return s.dual.Start(opts)
}

// Stop ends whichever recording is active and returns its statistics.
func (s *Service) Stop() (audio.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dual.IsRecording() || s.dual.State() == audio.StateStopping {
		return s.dual.Stop()
	}
	return s.single.Stop()
}

// IsRecording reports whether any recording is active.
func (s *Service) IsRecording() bool {
	return s.single.IsRecording() || s.dual.IsRecording()
}

// HasAudioDetected reports the dual session's latched energy flag.
func (s *Service) HasAudioDetected() bool {
	return s.dual.HasAudioDetected()
}

// RecordOutcome feeds a recording result back into the selector's learned
// history.
func (s *Service) RecordOutcome(ep audio.Endpoint, ctx audio.Context, success bool) error {
	return s.selector.RecordOutcome(ep, ctx, success)
}
