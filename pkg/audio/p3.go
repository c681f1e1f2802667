package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// The pre-encoded container holds Opus packets ready for the wire, each
// preceded by a 4-byte header: frame type, a reserved byte, and a big-endian
// payload length. Notification sounds and cached prompts ship in this format
// so playback never pays an encode.

const p3HeaderSize = 4

// ReadP3File loads every frame from the container at path.
func ReadP3File(path string) ([][]byte, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	frames, err := ReadP3(f)
	if err != nil {
		return nil, 0, fmt.Errorf("audio: read %s: %w", path, err)
	}
	return frames, playDuration(len(frames)), nil
}

// ReadP3 reads container frames from r until EOF. A truncated trailing frame
// is an error; the file is corrupt, not merely short.
func ReadP3(r io.Reader) ([][]byte, error) {
	var frames [][]byte
	header := make([]byte, p3HeaderSize)
	for {
		_, err := io.ReadFull(r, header)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return nil, fmt.Errorf("frame %d header: %w", len(frames), err)
		}
		size := int(binary.BigEndian.Uint16(header[2:4]))
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("frame %d payload: %w", len(frames), err)
		}
		frames = append(frames, payload)
	}
}

// WriteP3 writes frames to w in container format with frame type zero.
func WriteP3(w io.Writer, frames [][]byte) error {
	header := make([]byte, p3HeaderSize)
	for i, frame := range frames {
		if len(frame) > 0xFFFF {
			return fmt.Errorf("frame %d too large: %d bytes", i, len(frame))
		}
		header[0], header[1] = 0, 0
		binary.BigEndian.PutUint16(header[2:4], uint16(len(frame)))
		if _, err := w.Write(header); err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}
