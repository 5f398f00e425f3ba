package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// wavFormatIEEEFloat is the WAVE_FORMAT_IEEE_FLOAT tag (3); wavFormatPCM is
// WAVE_FORMAT_PCM (1). go-audio/wav's Decoder exposes the raw fields needed
// to dispatch on these but only natively decodes the PCM path, so the float
// path is read directly off the decoder's underlying chunk here.
const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// decoded holds the raw mono-ready signal pulled from a WAV file, prior to
// downmixing and resampling.
type decoded struct {
	samples    []float64 // one flat slice, channels interleaved frame by frame
	sampleRate int
	numChans   int
}

// decodeWAV reads path's PCM data and normalizes every sample to [-1, 1].
func decodeWAV(path string) (*decoded, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".wav" {
		return nil, &UnsupportedFormatError{Path: path}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	d.ReadInfo()
	if !d.IsValidFile() {
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("not a valid WAV file")}
	}

	sampleRate := int(d.SampleRate)
	numChans := int(d.NumChans)

	var samples []float64
	switch d.WavAudioFormat {
	case wavFormatIEEEFloat:
		samples, err = decodeFloatPCM(d, int(d.BitDepth))
		if err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
	case wavFormatPCM:
		samples, err = decodeIntPCM(d)
		if err != nil {
			return nil, &DecodeError{Path: path, Err: err}
		}
	default:
		return nil, &DecodeError{Path: path, Err: fmt.Errorf("unsupported WAV audio format tag %d", d.WavAudioFormat)}
	}

	if d.Err() != nil {
		return nil, &DecodeError{Path: path, Err: d.Err()}
	}

	return &decoded{samples: samples, sampleRate: sampleRate, numChans: numChans}, nil
}

// decodeIntPCM reads every PCM frame through go-audio/wav's int buffer path
// and normalizes each sample to [-1, 1]. buf.Data holds samples at their
// native bit depth (e.g. -32768..32767 for 16-bit); each is shifted up to
// occupy a full 32-bit signed range and divided by math.MaxInt32, so every
// bit depth normalizes the same way a sample that was already 32-bit would.
func decodeIntPCM(d *wav.Decoder) ([]float64, error) {
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM buffer: %w", err)
	}
	shift := uint(32 - buf.SourceBitDepth)
	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		shifted := int32(v) << shift
		out[i] = float64(shifted) / float64(math.MaxInt32)
	}
	return out, nil
}

// decodeFloatPCM reads the IEEE-float data chunk directly: go-audio/wav's
// PCMBuffer path assumes integer samples, so a float-tagged WAV is read
// straight off the data chunk's remaining bytes instead.
func decodeFloatPCM(d *wav.Decoder, bitDepth int) ([]float64, error) {
	chunk := d.PCMChunk
	if chunk == nil {
		return nil, fmt.Errorf("no PCM chunk present")
	}

	bytesPerSample := bitDepth / 8
	if bytesPerSample != 4 && bytesPerSample != 8 {
		return nil, fmt.Errorf("unsupported float bit depth %d", bitDepth)
	}

	raw, err := io.ReadAll(chunk)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read float PCM: %w", err)
	}

	n := len(raw) / bytesPerSample
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		off := i * bytesPerSample
		if bytesPerSample == 4 {
			bits := binary.LittleEndian.Uint32(raw[off : off+4])
			out[i] = float64(math.Float32frombits(bits))
		} else {
			bits := binary.LittleEndian.Uint64(raw[off : off+8])
			out[i] = math.Float64frombits(bits)
		}
	}
	return out, nil
}

// downmix averages interleaved multi-channel samples into a mono signal.
func downmix(samples []float64, numChans int) []float64 {
	if numChans <= 1 {
		return samples
	}
	nFrames := len(samples) / numChans
	out := make([]float64, nFrames)
	for i := 0; i < nFrames; i++ {
		var sum float64
		for c := 0; c < numChans; c++ {
			sum += samples[i*numChans+c]
		}
		out[i] = sum / float64(numChans)
	}
	return out
}
