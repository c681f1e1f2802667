package audio

import (
	"fmt"
	"time"

	"layeh.com/gopus"
)

// maxOpusPacket bounds a single encoded frame. 60 ms of speech at the wire
// bitrate never approaches this.
const maxOpusPacket = 4000

// FileToOpus decodes the file at path, normalises it to the wire rate, and
// encodes it into one Opus packet per frame.
func FileToOpus(path string) ([][]byte, time.Duration, error) {
	pcm, err := decodeFileToWirePCM(path)
	if err != nil {
		return nil, 0, err
	}
	frames, err := EncodePCM(pcm)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: encode %s: %w", path, err)
	}
	return frames, playDuration(len(frames)), nil
}

// EncodePCM encodes wire-rate mono PCM into Opus packets, one per 60 ms frame.
// The trailing partial frame is zero-padded.
func EncodePCM(pcm []byte) ([][]byte, error) {
	enc, err := gopus.NewEncoder(WireSampleRate, WireChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("new encoder: %w", err)
	}

	raw := splitFrames(pcm)
	frames := make([][]byte, 0, len(raw))
	for i, frame := range raw {
		packet, err := enc.Encode(BytesToInt16s(frame), samplesPerFrame, maxOpusPacket)
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		frames = append(frames, packet)
	}
	return frames, nil
}

// DecodePackets decodes Opus packets back into wire-rate mono PCM. Used by
// tests and by the loopback metering path.
func DecodePackets(packets [][]byte) ([]byte, error) {
	dec, err := gopus.NewDecoder(WireSampleRate, WireChannels)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	var out []byte
	for i, p := range packets {
		pcm, err := dec.Decode(p, samplesPerFrame, false)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", i, err)
		}
		out = append(out, Int16sToBytes(pcm)...)
	}
	return out, nil
}
