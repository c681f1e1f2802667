// Package audio converts synthesized audio files into the wire formats the
// voice pipeline streams to devices: raw little-endian 16-bit mono PCM chunks,
// or Opus packets at a fixed 60 ms cadence.
//
// The package also reads the pre-encoded frame container (".p3") used for
// cached prompts and notification sounds, so those skip the encode path
// entirely.
package audio

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// FrameDuration is the wire cadence of one audio frame. Matches the Opus
	// encoder configuration and the device's jitter buffer.
	FrameDuration = 60 * time.Millisecond

	// WireSampleRate is the mono sample rate of the device link.
	WireSampleRate = 16000

	// WireChannels is always mono on the device link.
	WireChannels = 1

	// samplesPerFrame is WireSampleRate * FrameDuration.
	samplesPerFrame = WireSampleRate * 60 / 1000 // 960
)

// FileToFrames decodes the audio file at path into wire frames for the given
// format ("pcm" or "opus"). Files with the pre-encoded container extension
// are passed through regardless of format. Returns the frames and the total
// play duration.
func FileToFrames(path, format string) ([][]byte, time.Duration, error) {
	if strings.EqualFold(filepath.Ext(path), ".p3") {
		return ReadP3File(path)
	}
	if format == "pcm" {
		return FileToPCM(path)
	}
	return FileToOpus(path)
}

// splitFrames cuts mono 16-bit PCM into fixed-size frames of samplesPerFrame
// samples. The final short frame is zero-padded so the Opus encoder always
// sees a full window.
func splitFrames(pcm []byte) [][]byte {
	frameBytes := samplesPerFrame * 2
	n := (len(pcm) + frameBytes - 1) / frameBytes
	frames := make([][]byte, 0, n)
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			padded := make([]byte, frameBytes)
			copy(padded, pcm[off:])
			frames = append(frames, padded)
			break
		}
		frames = append(frames, pcm[off:end])
	}
	return frames
}

// playDuration returns the wall-clock play time of n wire frames.
func playDuration(n int) time.Duration {
	return time.Duration(n) * FrameDuration
}

// decodeFileToWirePCM loads path and normalises it to WireSampleRate mono.
func decodeFileToWirePCM(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		pcm, rate, channels, err := ReadWAVFile(path)
		if err != nil {
			return nil, err
		}
		if channels == 2 {
			pcm = StereoToMono(pcm)
		}
		pcm = ResampleMono16(pcm, rate, WireSampleRate)
		return pcm, nil
	case ".pcm", ".raw":
		return readRawFile(path)
	default:
		return nil, fmt.Errorf("audio: unsupported file type %q", ext)
	}
}

// FileToPCM decodes the file at path into raw PCM wire frames.
func FileToPCM(path string) ([][]byte, time.Duration, error) {
	pcm, err := decodeFileToWirePCM(path)
	if err != nil {
		return nil, 0, err
	}
	frames := splitFrames(pcm)
	return frames, playDuration(len(frames)), nil
}
