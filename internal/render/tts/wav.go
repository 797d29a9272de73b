package tts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// WAVDuration reads the play time from a RIFF header. Streams whose data chunk
// size is unset (0 or 0xFFFFFFFF) are measured by the bytes actually present.
func WAVDuration(data []byte) (time.Duration, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, ErrNotWAV
	}
	var byteRate uint32
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8
		switch id {
		case "fmt ":
			if body+12 > len(data) {
				return 0, fmt.Errorf("truncated fmt chunk: %w", ErrNotWAV)
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("data before fmt chunk: %w", ErrNotWAV)
			}
			n := int64(size)
			if avail := int64(len(data) - body); size == 0 || size == 0xFFFFFFFF || n > avail {
				n = avail
			}
			return time.Duration(n) * time.Second / time.Duration(byteRate), nil
		}
		next := int64(body) + int64(size) + int64(size&1)
		if next > int64(len(data)) {
			break
		}
		off = int(next)
	}
	return 0, fmt.Errorf("no data chunk: %w", ErrNotWAV)
}

// SilentWAV builds a 16-bit mono PCM clip of silence.
func SilentWAV(d time.Duration, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if d < 0 {
		d = 0
	}
	const bytesPerSample = 2
	samples := int64(d) * int64(sampleRate) / int64(time.Second)
	dataLen := uint32(samples * bytesPerSample)

	var buf bytes.Buffer
	buf.Grow(44 + int(dataLen))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*bytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(bytesPerSample))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}
