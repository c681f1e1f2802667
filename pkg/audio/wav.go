package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

var errNotWAV = errors.New("audio: not a RIFF/WAVE file")

// ReadWAVFile parses a PCM WAV file and returns its raw little-endian 16-bit
// sample data along with the sample rate and channel count. Only uncompressed
// 16-bit PCM is supported; synthesis providers that emit other codecs must
// transcode before handing files to the pipeline.
func ReadWAVFile(path string) ([]byte, int, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audio: read %s: %w", path, err)
	}
	pcm, rate, channels, err := parseWAV(raw)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audio: parse %s: %w", path, err)
	}
	return pcm, rate, channels, nil
}

func parseWAV(raw []byte) ([]byte, int, int, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, 0, 0, errNotWAV
	}

	var (
		rate, channels, bits int
		haveFmt              bool
		data                 []byte
	)

	// Walk the chunk list. Chunks are word-aligned, so odd sizes carry a pad
	// byte that is not counted in the header.
	off := 12
	for off+8 <= len(raw) {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + 8
		if body+size > len(raw) {
			size = len(raw) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, errors.New("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(raw[body : body+2])
			if format != 1 { // PCM
				return nil, 0, 0, fmt.Errorf("unsupported WAV format tag %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			haveFmt = true
		case "data":
			data = raw[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, 0, 0, errors.New("missing fmt chunk")
	}
	if data == nil {
		return nil, 0, 0, errors.New("missing data chunk")
	}
	if bits != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported bit depth %d", bits)
	}
	if channels != 1 && channels != 2 {
		return nil, 0, 0, fmt.Errorf("unsupported channel count %d", channels)
	}
	return data, rate, channels, nil
}

// readRawFile loads headerless PCM assumed to already be at the wire rate.
func readRawFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("audio: read %s: %w", path, err)
	}
	if len(raw)%2 == 1 {
		raw = raw[:len(raw)-1]
	}
	return raw, nil
}
