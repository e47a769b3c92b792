package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// portAudioHost adapts portaudio to the Host interface. Exactly one
// Initialize/Terminate pair per host instance.
type portAudioHost struct{}

// NewHost initializes the platform audio subsystem. Failure here is a setup
// precondition the caller handles; nothing is retried internally.
func NewHost() (Host, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize audio subsystem: %w: %v", ErrDeviceUnavailable, err)
	}
	return &portAudioHost{}, nil
}

func (h *portAudioHost) Endpoints() ([]Endpoint, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w: %v", ErrDeviceUnavailable, err)
	}

	defIn, hasIn := h.DefaultInput()
	defOut, hasOut := h.DefaultOutput()

	eps := make([]Endpoint, 0, len(devices))
	for _, d := range devices {
		hostAPI := ""
		if d.HostApi != nil {
			hostAPI = d.HostApi.Name
		}
		ep := Endpoint{
			Index:             d.Index,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			HostAPI:           hostAPI,
		}
		ep.IsLoopback = classifyLoopback(ep)
		ep.IsDefault = (hasIn && d.Index == defIn) || (hasOut && d.Index == defOut)
		eps = append(eps, ep)
	}
	return eps, nil
}

func (h *portAudioHost) DefaultInput() (int, bool) {
	d, err := portaudio.DefaultInputDevice()
	if err != nil || d == nil {
		return 0, false
	}
	return d.Index, true
}

func (h *portAudioHost) DefaultOutput() (int, bool) {
	d, err := portaudio.DefaultOutputDevice()
	if err != nil || d == nil {
		return 0, false
	}
	return d.Index, true
}

func (h *portAudioHost) Open(ep Endpoint, sampleRate, channels, chunkFrames int) (Stream, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w: %v", ErrDeviceUnavailable, err)
	}
	var device *portaudio.DeviceInfo
	for _, d := range devices {
		if d.Index == ep.Index {
			device = d
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("endpoint %d %q not found: %w", ep.Index, ep.Name, ErrDeviceUnavailable)
	}

	if channels > device.MaxInputChannels {
		channels = device.MaxInputChannels
	}
	if channels < 1 {
		return nil, fmt.Errorf("endpoint %q has no input channels: %w", ep.Name, ErrDeviceUnavailable)
	}

	buffer := make([]int16, chunkFrames*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: chunkFrames,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("open stream on %q: %w", ep.Name, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream on %q: %w", ep.Name, err)
	}

	return &portAudioStream{stream: stream, buffer: buffer}, nil
}

func (h *portAudioHost) Close() error {
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
	buffer []int16
}

// Read blocks until one chunk is available. The backing buffer is reused by
// portaudio, so the chunk is copied out before returning.
func (s *portAudioStream) Read() ([]int16, error) {
	if err := s.stream.Read(); err != nil {
		return nil, err
	}
	chunk := make([]int16, len(s.buffer))
	copy(chunk, s.buffer)
	return chunk, nil
}

func (s *portAudioStream) Close() error {
	s.stream.Stop()
	return s.stream.Close()
}
