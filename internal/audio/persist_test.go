package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

func TestWriteWAVRoundTrip(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.wav")
	chunks := [][]int16{
		{0, 100, -100, 32767},
		{-32768, 1, 2, 3},
	}

	size, err := NewWriter(zerolog.Nop()).Write(dst, FormatWAV, chunks, 16000, 1)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if size <= 44 {
		t.Fatalf("expected more than a WAV header, got %d bytes", size)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 {
		t.Fatalf("sample rate: got %d", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Fatalf("channels: got %d", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Fatalf("bit depth: got %d", dec.BitDepth)
	}

	var want []int
	for _, chunk := range chunks {
		for _, s := range chunk {
			want = append(want, int(s))
		}
	}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, want[i], buf.Data[i])
		}
	}
}

func TestWriteWAVStereo(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "stereo.wav")
	chunks := [][]int16{{10, -10, 20, -20}}

	if _, err := NewWriter(zerolog.Nop()).Write(dst, FormatWAV, chunks, 44100, 2); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if _, err := dec.FullPCMBuffer(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.NumChans != 2 || dec.SampleRate != 44100 {
		t.Fatalf("header mismatch: chans=%d rate=%d", dec.NumChans, dec.SampleRate)
	}
}

func TestWriteAACWithoutEncoder(t *testing.T) {
	// Empty PATH hides ffmpeg: the save must fail with the distinct error,
	// never silently fall back to uncompressed.
	t.Setenv("PATH", "")

	dst := filepath.Join(t.TempDir(), "out.m4a")
	_, err := NewWriter(zerolog.Nop()).Write(dst, FormatAAC, [][]int16{{1, 2}}, 16000, 1)
	if !errors.Is(err, ErrEncodingUnavailable) {
		t.Fatalf("expected ErrEncodingUnavailable, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatal("failed AAC save must not leave a file behind")
	}
}

func TestWriteFailsOnBadDestination(t *testing.T) {
	// Destination inside a path occupied by a regular file.
	base := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(base, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(base, "sub", "out.wav")

	if _, err := NewWriter(zerolog.Nop()).Write(dst, FormatWAV, [][]int16{{1}}, 16000, 1); err == nil {
		t.Fatal("expected an error writing under a regular file")
	}
}

func TestEncoderAvailableReflectsPath(t *testing.T) {
	t.Setenv("PATH", "")
	if EncoderAvailable() {
		t.Fatal("EncoderAvailable should be false with an empty PATH")
	}
}
