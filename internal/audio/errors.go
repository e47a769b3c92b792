package audio

import (
	"errors"
	"strings"
)

// Sentinel errors for the capture subsystem.
//
// Usage pattern: wrap sentinels with context at call site using fmt.Errorf:
//
//	return fmt.Errorf("open stream on %q: %w", ep.Name, ErrDeviceUnavailable)
//
// This preserves errors.Is() compatibility while adding context.

var (
	// ErrDeviceUnavailable indicates no suitable endpoint was found or the
	// audio subsystem could not be opened. Fatal to the calling operation,
	// never retried internally.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrRecordingActive indicates start was called while a recording is in
	// progress. The existing session is untouched.
	ErrRecordingActive = errors.New("recording already in progress")

	// ErrNoActiveRecording indicates stop was called with nothing to save.
	ErrNoActiveRecording = errors.New("no active recording")

	// ErrNoAudioSource indicates a dual recording was started without a
	// speaker or microphone stream.
	ErrNoAudioSource = errors.New("no audio source available")

	// ErrEncodingUnavailable indicates a compressed container was requested
	// but the external encoder is missing. Uncompressed data is never
	// silently substituted.
	ErrEncodingUnavailable = errors.New("aac encoder not available")
)

// fatalReadMarkers are substrings of native stream errors that mean the
// device itself became invalid mid-recording. Anything else is treated as a
// transient read failure: logged, skipped, loop continues.
var fatalReadMarkers = []string{
	"invalid",
	"unavailable",
	"device",
	"closed",
	"terminated",
}

// isFatalReadError classifies a worker-loop read error. Fatal errors end the
// capture loop early; frames already captured stay eligible for saving.
func isFatalReadError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalReadMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
