package audio

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

const (
	pcmBitDepth = 16
	aacBitrate  = "128k"
)

// Writer encodes accumulated frame buffers into an on-disk container.
type Writer struct {
	log zerolog.Logger
}

func NewWriter(log zerolog.Logger) *Writer {
	return &Writer{log: log}
}

// EncoderAvailable reports whether the external AAC encoding capability is
// present. Front ends use this to warn before a recording is attempted in
// compressed mode.
func EncoderAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// Write flushes the captured chunks to dst in the requested container and
// returns the final byte size. A write or encode failure is returned as-is;
// success with zero bytes is never reported.
func (w *Writer) Write(dst string, format Format, chunks [][]int16, sampleRate, channels int) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create recordings dir: %w", err)
	}

	switch format {
	case FormatAAC:
		return w.writeAAC(dst, chunks, sampleRate, channels)
	default:
		return w.writeWAV(dst, chunks, sampleRate, channels)
	}
}

func (w *Writer) writeWAV(dst string, chunks [][]int16, sampleRate, channels int) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	enc := wav.NewEncoder(out, sampleRate, pcmBitDepth, channels, 1)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		SourceBitDepth: pcmBitDepth,
	}
	for _, chunk := range chunks {
		data := make([]int, len(chunk))
		for i, s := range chunk {
			data[i] = int(s)
		}
		buf.Data = data
		if err := enc.Write(buf); err != nil {
			out.Close()
			return 0, fmt.Errorf("write %s: %w", dst, err)
		}
	}

	// Close finalizes the RIFF size fields; skipping it corrupts the header.
	if err := enc.Close(); err != nil {
		out.Close()
		return 0, fmt.Errorf("finalize %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", dst, err)
	}

	return fileSize(dst)
}

// writeAAC encodes through ffmpeg at a fixed bitrate. The capture stays in a
// temporary WAV first so a missing or failing encoder never corrupts state.
func (w *Writer) writeAAC(dst string, chunks [][]int16, sampleRate, channels int) (int64, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return 0, fmt.Errorf("compressed container requested: %w", ErrEncodingUnavailable)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "capture_*.wav")
	if err != nil {
		return 0, fmt.Errorf("create temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := w.writeWAV(tmpPath, chunks, sampleRate, channels); err != nil {
		return 0, err
	}

	cmd := exec.Command(ffmpeg,
		"-y",
		"-i", tmpPath,
		"-c:a", "aac",
		"-b:a", aacBitrate,
		dst,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(dst)
		w.log.Error().Err(err).Str("output", string(out)).Msg("aac encode failed")
		return 0, fmt.Errorf("aac encode: %w", err)
	}

	return fileSize(dst)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("wrote empty file %s", path)
	}
	return info.Size(), nil
}
