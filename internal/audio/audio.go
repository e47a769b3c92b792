package audio

import "time"

// Host abstracts the platform audio subsystem (portaudio in production,
// fakes in tests).
type Host interface {
	// Endpoints returns a snapshot of every audio endpoint the subsystem
	// exposes, in subsystem order. The snapshot goes stale if the OS device
	// topology changes; callers re-enumerate rather than mutate.
	Endpoints() ([]Endpoint, error)

	// DefaultInput and DefaultOutput return the endpoint index of the
	// OS-reported default device, or ok=false if the subsystem has none.
	DefaultInput() (index int, ok bool)
	DefaultOutput() (index int, ok bool)

	// Open starts a capture stream on the endpoint. Reads are blocking and
	// chunked: every Read returns chunkFrames*channels interleaved samples.
	Open(ep Endpoint, sampleRate, channels, chunkFrames int) (Stream, error)

	Close() error
}

// Stream is one open capture stream.
type Stream interface {
	// Read returns the next chunk of interleaved int16 samples. Overflow
	// and other transient conditions surface as errors the caller may
	// tolerate; a device disappearing surfaces as a fatal error.
	Read() ([]int16, error)
	Close() error
}

// Endpoint is an immutable snapshot of one audio endpoint taken at
// enumeration time.
type Endpoint struct {
	Index             int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	HostAPI           string
	IsLoopback        bool
	IsDefault         bool
}

// CanCapture reports whether the endpoint can be opened as a capture source.
func (e Endpoint) CanCapture() bool {
	return e.MaxInputChannels > 0
}

// Context is the caller's stated purpose for a recording. It biases device
// scoring only; the recorders behave identically under every context.
type Context int

const (
	ContextSystemDefault Context = iota
	ContextMeetingCapture
	ContextManualRecording
)

func (c Context) String() string {
	switch c {
	case ContextMeetingCapture:
		return "meeting"
	case ContextManualRecording:
		return "manual"
	default:
		return "default"
	}
}

// ParseContext maps a context name back to its enum value. Unknown names
// fall back to the system default context.
func ParseContext(s string) Context {
	switch s {
	case "meeting":
		return ContextMeetingCapture
	case "manual":
		return ContextManualRecording
	default:
		return ContextSystemDefault
	}
}

// Format selects the on-disk container for a finished recording.
type Format string

const (
	FormatWAV Format = "wav"
	FormatAAC Format = "aac"
)

// Ext returns the file extension for the container, dot included.
func (f Format) Ext() string {
	if f == FormatAAC {
		return ".m4a"
	}
	return ".wav"
}

// Stats describes a completed recording.
type Stats struct {
	Path        string
	Duration    time.Duration
	ByteSize    int64
	SampleCount int
	StartedAt   time.Time
}

// ProgressFunc receives elapsed wall-clock seconds from the capture worker.
// It runs on the worker goroutine; panics are recovered and logged, never
// propagated.
type ProgressFunc func(elapsedSeconds float64)
