// Package audio provides the WAV-level operations the alignment engine is
// built on: duration probing, silence padding, tail trimming, time-range
// slicing and gapless concatenation. Everything in this file is pure byte
// manipulation on PCM WAV data; the one lossy operation (tempo-preserving
// compression) lives behind the core.Compressor boundary.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// WAV format constants.
const (
	headerSize = 44
	formatPCM  = 1

	riffChunkOffset = 12
	fmtChunkMinSize = 16
	bitsPerByte     = 8
)

// Static errors.
var (
	// ErrNotWAV indicates the data does not carry a RIFF/WAVE header.
	ErrNotWAV = errors.New("data is not a RIFF/WAVE stream")
	// ErrUnsupportedEncoding indicates a non-PCM encoding.
	ErrUnsupportedEncoding = errors.New("only uncompressed PCM is supported")
	// ErrMissingChunk indicates a required fmt or data chunk was not found.
	ErrMissingChunk = errors.New("required WAV chunk not found")
	// ErrFormatMismatch indicates clips with differing formats were combined.
	ErrFormatMismatch = errors.New("clips have mismatched audio formats")
	// ErrNoClips indicates an empty concatenation request.
	ErrNoClips = errors.New("no clips to concatenate")
	// ErrRangeInvalid indicates a slice range outside the clip.
	ErrRangeInvalid = errors.New("slice range is invalid")
)

// Format describes the PCM layout of a WAV stream.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Clip couples raw WAV bytes with their probed duration.
type Clip struct {
	Data     []byte
	Duration time.Duration
}

// ByteRate returns the number of PCM bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / bitsPerByte
}

// BlockAlign returns the size of one sample frame in bytes.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / bitsPerByte
}

// Parse splits a WAV stream into its format description and raw PCM payload.
func Parse(data []byte) (Format, []byte, error) {
	if len(data) < headerSize ||
		string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		format   Format
		pcm      []byte
		haveFmt  bool
		haveData bool
	)

	offset := riffChunkOffset
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(readLE32(data[offset+4 : offset+8]))
		body := offset + 8

		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < fmtChunkMinSize {
				return Format{}, nil, fmt.Errorf("%w: truncated fmt chunk", ErrMissingChunk)
			}

			encoding := int(readLE16(data[body : body+2]))
			if encoding != formatPCM {
				return Format{}, nil, fmt.Errorf("%w: encoding %d", ErrUnsupportedEncoding, encoding)
			}

			format.Channels = int(readLE16(data[body+2 : body+4]))
			format.SampleRate = int(readLE32(data[body+4 : body+8]))
			format.BitsPerSample = int(readLE16(data[body+14 : body+16]))

			// A zero-valued field would make every duration computation
			// divide by zero downstream.
			if format.Channels == 0 || format.SampleRate == 0 || format.BitsPerSample == 0 {
				return Format{}, nil, fmt.Errorf(
					"%w: zero-valued fmt field (%+v)", ErrUnsupportedEncoding, format)
			}

			haveFmt = true
		case "data":
			pcm = data[body : body+chunkSize]
			haveData = true
		}

		// Chunks are word-aligned.
		offset = body + chunkSize + chunkSize%2
	}

	if !haveFmt {
		return Format{}, nil, fmt.Errorf("%w: fmt", ErrMissingChunk)
	}

	if !haveData {
		return Format{}, nil, fmt.Errorf("%w: data", ErrMissingChunk)
	}

	return format, pcm, nil
}

// Probe returns the playback duration of a WAV stream.
func Probe(data []byte) (time.Duration, error) {
	format, pcm, err := Parse(data)
	if err != nil {
		return 0, err
	}

	seconds := float64(len(pcm)) / float64(format.ByteRate())

	return time.Duration(seconds * float64(time.Second)), nil
}

// Wrap prefixes raw PCM data with a canonical 44-byte WAV header.
func Wrap(pcm []byte, format Format) []byte {
	dataSize := len(pcm)
	header := make([]byte, headerSize)

	copy(header[0:4], "RIFF")
	putLE32(header[4:8], uint32(headerSize-8+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	putLE32(header[16:20], fmtChunkMinSize)
	putLE16(header[20:22], formatPCM)
	putLE16(header[22:24], uint16(format.Channels))
	putLE32(header[24:28], uint32(format.SampleRate))
	putLE32(header[28:32], uint32(format.ByteRate()))
	putLE16(header[32:34], uint16(format.BlockAlign()))
	putLE16(header[34:36], uint16(format.BitsPerSample))

	copy(header[36:40], "data")
	putLE32(header[40:44], uint32(dataSize))

	return append(header, pcm...)
}

// Silence builds a WAV clip of digital silence with the given duration.
func Silence(duration time.Duration, format Format) []byte {
	return Wrap(make([]byte, frameAlignedBytes(duration, format)), format)
}

// PadSilence appends digital silence to the tail of a clip.
func PadSilence(data []byte, extra time.Duration) ([]byte, error) {
	format, pcm, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if extra <= 0 {
		return data, nil
	}

	padded := make([]byte, 0, len(pcm)+frameAlignedBytes(extra, format))
	padded = append(padded, pcm...)
	padded = append(padded, make([]byte, frameAlignedBytes(extra, format))...)

	return Wrap(padded, format), nil
}

// Trim hard-cuts the clip tail so its duration does not exceed the target.
// A clip already at or below the target is returned unchanged.
func Trim(data []byte, target time.Duration) ([]byte, error) {
	format, pcm, err := Parse(data)
	if err != nil {
		return nil, err
	}

	keep := frameAlignedBytes(target, format)
	if keep >= len(pcm) {
		return data, nil
	}

	return Wrap(pcm[:keep], format), nil
}

// Slice extracts the [from, to) time range of a clip as a standalone clip.
func Slice(data []byte, from, to time.Duration) ([]byte, error) {
	format, pcm, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if from < 0 || to < from {
		return nil, fmt.Errorf("%w: [%v, %v)", ErrRangeInvalid, from, to)
	}

	start := frameAlignedBytes(from, format)
	end := frameAlignedBytes(to, format)

	if start > len(pcm) {
		return nil, fmt.Errorf("%w: start %v beyond clip end", ErrRangeInvalid, from)
	}

	if end > len(pcm) {
		end = len(pcm)
	}

	return Wrap(pcm[start:end], format), nil
}

// Concat joins clips into one gapless stream. All clips must share the same
// PCM format; no re-encoding or cross-fading is performed.
func Concat(clips ...[]byte) ([]byte, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}

	var (
		format Format
		joined []byte
	)

	for clipIndex, clip := range clips {
		clipFormat, pcm, err := Parse(clip)
		if err != nil {
			return nil, fmt.Errorf("clip %d: %w", clipIndex, err)
		}

		if clipIndex == 0 {
			format = clipFormat
		} else if clipFormat != format {
			return nil, fmt.Errorf("%w: clip %d is %+v, want %+v",
				ErrFormatMismatch, clipIndex, clipFormat, format)
		}

		joined = append(joined, pcm...)
	}

	return Wrap(joined, format), nil
}

// frameAlignedBytes converts a duration to a PCM byte count, rounded to the
// nearest whole sample frame so slicing never lands mid-sample.
func frameAlignedBytes(duration time.Duration, format Format) int {
	raw := duration.Seconds() * float64(format.ByteRate())
	align := format.BlockAlign()
	frames := int(math.Round(raw / float64(align)))

	return frames * align
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func readLE16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func readLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
