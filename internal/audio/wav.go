package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	minFmtChunkSize = 16
)

// WAVInfo describes the PCM layout of a RIFF/WAVE file
type WAVInfo struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BitsPerSample uint16
	DataSize      uint32
	Duration      time.Duration
}

// ProbeWAV walks the RIFF chunks of data and returns the format and duration.
// It reads headers only and does not validate the samples.
func ProbeWAV(data []byte) (*WAVInfo, error) {
	if len(data) < riffHeaderSize {
		return nil, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", riffHeaderSize, len(data))
	}

	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}

	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var info WAVInfo
	var haveFmt, haveData bool

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) && !(haveFmt && haveData) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + chunkHeaderSize

		switch id {
		case "fmt ":
			if size < minFmtChunkSize || body+minFmtChunkSize > len(data) {
				return nil, fmt.Errorf("invalid WAV file: truncated fmt chunk")
			}
			info.AudioFormat = binary.LittleEndian.Uint16(data[body : body+2])
			info.Channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			info.SampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			info.ByteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			info.BitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			info.DataSize = size
			haveData = true
		}

		// Chunks are word aligned
		next := body + int(size) + int(size%2)
		if next <= offset {
			break
		}
		offset = next
	}

	if !haveFmt {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}

	if !haveData {
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}

	if info.ByteRate > 0 {
		info.Duration = time.Duration(float64(info.DataSize) / float64(info.ByteRate) * float64(time.Second))
	}

	return &info, nil
}
