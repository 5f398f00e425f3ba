package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV synthesizes a mono sine wave and writes it as a 16-bit PCM
// WAV file, returning its path.
func writeTestWAV(t *testing.T, seconds float64, sampleRate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	n := int(seconds * float64(sampleRate))
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write PCM buffer: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func TestProcessShortClipYieldsSingleSegment(t *testing.T) {
	path := writeTestWAV(t, 3, TargetSampleRate)

	segments, err := Process(path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment for a 3s clip, got %d", len(segments))
	}
	if len(segments[0].Mel) != TargetLength {
		t.Errorf("expected mel spec of length %d, got %d", TargetLength, len(segments[0].Mel))
	}
	if len(segments[0].Mel[0]) != nMels {
		t.Errorf("expected %d mel bands, got %d", nMels, len(segments[0].Mel[0]))
	}
}

func TestProcessLongerClipYieldsMultipleSegments(t *testing.T) {
	path := writeTestWAV(t, 22, TargetSampleRate)

	segments, err := Process(path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// floor(22/5) = 4 segments.
	if len(segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(segments))
	}
	for _, s := range segments {
		if len(s.Mel) != TargetLength || len(s.Mel[0]) != nMels {
			t.Errorf("segment at %.1fs has wrong mel shape: (%d, %d)", s.StartingTimestamp, len(s.Mel), len(s.Mel[0]))
		}
	}
}

func TestProcessResamplesNonTargetRate(t *testing.T) {
	path := writeTestWAV(t, 3, 44100)

	segments, err := Process(path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(segments) == 0 {
		t.Fatal("expected at least one segment")
	}
}

func TestProcessRejectsNonWAVExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := Process(path)
	if err == nil {
		t.Fatal("expected UnsupportedFormatError")
	}
	if _, ok := err.(*UnsupportedFormatError); !ok {
		t.Fatalf("expected *UnsupportedFormatError, got %T: %v", err, err)
	}
}
