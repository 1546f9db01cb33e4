package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE payload")

type WaveFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// StripWAVHeader returns the PCM data chunk of a RIFF/WAVE payload together
// with its format. Payloads that are not RIFF are returned unchanged with
// ErrNotWAV so callers can treat them as raw PCM.
func StripWAVHeader(data []byte) ([]byte, *WaveFormat, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return data, nil, ErrNotWAV
	}

	var format *WaveFormat
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(data) {
				return nil, nil, fmt.Errorf("truncated fmt chunk")
			}
			format = &WaveFormat{
				AudioFormat:   binary.LittleEndian.Uint16(data[body : body+2]),
				NumChannels:   binary.LittleEndian.Uint16(data[body+2 : body+4]),
				SampleRate:    binary.LittleEndian.Uint32(data[body+4 : body+8]),
				BitsPerSample: binary.LittleEndian.Uint16(data[body+14 : body+16]),
			}
		case "data":
			if format == nil {
				return nil, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			end := body + chunkSize
			// Streaming encoders may write a placeholder size.
			if end > len(data) || chunkSize == 0 {
				end = len(data)
			}
			return data[body:end], format, nil
		}

		// Chunks are word aligned.
		offset = body + chunkSize + chunkSize%2
	}

	return nil, nil, fmt.Errorf("missing data chunk")
}
