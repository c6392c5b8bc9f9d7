package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

var (
	ErrNotWAV          = errors.New("not a RIFF/WAVE stream")
	ErrNoFormatChunk   = errors.New("missing fmt chunk")
	ErrNoDataChunk     = errors.New("missing data chunk")
	errShortChunk      = errors.New("truncated chunk header")
	errZeroByteRate    = errors.New("fmt chunk declares zero byte rate")
	errUnreliableSizes = errors.New("header sizes are unreliable")
)

// EncodeWAV wraps raw little-endian 16-bit PCM into a WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}

	const bitsPerSample = 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// ProbeDuration reads the clip duration from WAV header fields alone.
// This is the cheap path: it trusts the declared data-chunk size and does
// not look at the samples. Streams written without a final size fixup
// (size 0 or 0xFFFFFFFF) are rejected so the caller can fall back to
// DecodeDuration.
func ProbeDuration(data []byte) (float64, error) {
	byteRate, declared, _, err := scanChunks(data)
	if err != nil {
		return 0, err
	}
	if declared == 0 || declared == 0xFFFFFFFF {
		return 0, errUnreliableSizes
	}
	return float64(declared) / float64(byteRate), nil
}

// DecodeDuration walks the container and measures the audio bytes actually
// present, ignoring the declared sizes. Slower but exact for truncated or
// streamed clips.
func DecodeDuration(data []byte) (float64, error) {
	byteRate, _, present, err := scanChunks(data)
	if err != nil {
		return 0, err
	}
	return float64(present) / float64(byteRate), nil
}

// scanChunks returns the byte rate from the fmt chunk plus the declared
// and actually-present sizes of the data chunk.
func scanChunks(data []byte) (byteRate uint32, declared uint32, present int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, 0, 0, ErrNotWAV
	}

	var haveFmt, haveData bool
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch id {
		case "fmt ":
			if body+16 > len(data) {
				return 0, 0, 0, fmt.Errorf("fmt chunk: %w", errShortChunk)
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			if byteRate == 0 {
				return 0, 0, 0, errZeroByteRate
			}
			haveFmt = true
		case "data":
			declared = size
			present = len(data) - body
			if declared != 0xFFFFFFFF && int(declared) < present {
				present = int(declared)
			}
			haveData = true
		}

		if haveFmt && haveData {
			return byteRate, declared, present, nil
		}

		advance := int(size)
		if advance%2 == 1 {
			advance++ // chunks are word-aligned
		}
		if id == "data" && (size == 0 || size == 0xFFFFFFFF) {
			break // unsized data chunk runs to EOF
		}
		offset = body + advance
	}

	if !haveFmt {
		return 0, 0, 0, ErrNoFormatChunk
	}
	if !haveData {
		return 0, 0, 0, ErrNoDataChunk
	}
	return byteRate, declared, present, nil
}
