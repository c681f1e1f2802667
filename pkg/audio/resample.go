package audio

import "encoding/binary"

// BytesToInt16s reinterprets little-endian PCM bytes as samples.
func BytesToInt16s(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

// Int16sToBytes serialises samples back to little-endian PCM bytes.
func Int16sToBytes(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// StereoToMono downmixes interleaved 16-bit stereo PCM by averaging the
// channel pair of each frame.
func StereoToMono(pcm []byte) []byte {
	in := BytesToInt16s(pcm)
	out := make([]int16, len(in)/2)
	for i := range out {
		out[i] = int16((int32(in[2*i]) + int32(in[2*i+1])) / 2)
	}
	return Int16sToBytes(out)
}

// ResampleMono16 converts 16-bit mono PCM from one sample rate to another
// using linear interpolation. Good enough for speech; callers needing studio
// quality should resample upstream.
func ResampleMono16(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}
	in := BytesToInt16s(pcm)
	if len(in) == 0 {
		return nil
	}
	outLen := int(int64(len(in)) * int64(to) / int64(from))
	out := make([]int16, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(in[idx]), float64(in[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return Int16sToBytes(out)
}
