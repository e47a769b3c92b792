package audio

import "math"

// Sample-level signal processing for the dual-stream mixer. All chunks are
// interleaved int16 PCM.

// convertChannels converts an interleaved chunk between mono and stereo.
// Mono to stereo duplicates each sample; stereo to mono averages each frame.
// Matching layouts pass through untouched.
func convertChannels(chunk []int16, from, to int) []int16 {
	if from == to || from < 1 || to < 1 {
		return chunk
	}
	switch {
	case from == 1 && to == 2:
		out := make([]int16, len(chunk)*2)
		for i, s := range chunk {
			out[2*i] = s
			out[2*i+1] = s
		}
		return out
	case from == 2 && to == 1:
		frames := len(chunk) / 2
		out := make([]int16, frames)
		for i := 0; i < frames; i++ {
			out[i] = int16((int32(chunk[2*i]) + int32(chunk[2*i+1])) / 2)
		}
		return out
	default:
		// Wider layouts: average down to mono first, then fan out.
		frames := len(chunk) / from
		mono := make([]int16, frames)
		for i := 0; i < frames; i++ {
			var sum int32
			for c := 0; c < from; c++ {
				sum += int32(chunk[i*from+c])
			}
			mono[i] = int16(sum / int32(from))
		}
		if to == 1 {
			return mono
		}
		return convertChannels(mono, 1, to)
	}
}

// resample converts a mono-per-channel view of the chunk from sourceRate to
// targetRate by linear interpolation. Output length is
// round(n * target / source) frames, and amplitude is interpolated at evenly
// spaced fractional source indices. channels must match the chunk layout.
func resample(chunk []int16, channels, sourceRate, targetRate int) []int16 {
	if sourceRate == targetRate || sourceRate <= 0 || targetRate <= 0 || len(chunk) == 0 {
		return chunk
	}
	if channels < 1 {
		channels = 1
	}

	frames := len(chunk) / channels
	outFrames := int(math.Round(float64(frames) * float64(targetRate) / float64(sourceRate)))
	if outFrames <= 0 {
		return nil
	}

	out := make([]int16, outFrames*channels)
	step := float64(frames-1) / float64(outFrames-1)
	if outFrames == 1 {
		step = 0
	}
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		next := idx + 1
		if next >= frames {
			next = frames - 1
		}
		for c := 0; c < channels; c++ {
			a := float64(chunk[idx*channels+c])
			b := float64(chunk[next*channels+c])
			out[i*channels+c] = int16(math.Round(a + (b-a)*frac))
		}
	}
	return out
}

// applyGain scales a chunk into a float64 working buffer. Gain is clamped to
// the intended 0..2 range.
func applyGain(chunk []int16, gain float64) []float64 {
	if gain < 0 {
		gain = 0
	} else if gain > 2 {
		gain = 2
	}
	out := make([]float64, len(chunk))
	for i, s := range chunk {
		out[i] = float64(s) * gain
	}
	return out
}

// mixChunks sums two gain-applied chunks sample-wise, padding the shorter
// with silence. If the summed peak exceeds the int16 range the whole chunk is
// scaled down proportionally so the peak lands exactly at the representable
// maximum; no sample is hard-clipped.
func mixChunks(a, b []float64) []int16 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	sum := make([]float64, n)
	for i := 0; i < n; i++ {
		var s float64
		if i < len(a) {
			s += a[i]
		}
		if i < len(b) {
			s += b[i]
		}
		sum[i] = s
	}

	peak := 0.0
	for _, s := range sum {
		if v := math.Abs(s); v > peak {
			peak = v
		}
	}

	scale := 1.0
	if peak > math.MaxInt16 {
		scale = math.MaxInt16 / peak
	}

	out := make([]int16, n)
	for i, s := range sum {
		out[i] = clampInt16(s * scale)
	}
	return out
}

// quantize converts a gain-applied chunk back to int16, clamping any sample
// the gain pushed out of range.
func quantize(a []float64) []int16 {
	out := make([]int16, len(a))
	for i, s := range a {
		out[i] = clampInt16(s)
	}
	return out
}

func clampInt16(v float64) int16 {
	r := math.Round(v)
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}

// rms returns the root-mean-square energy of a chunk in int16 units.
func rms(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, s := range chunk {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(chunk)))
}
