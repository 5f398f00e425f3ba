package audio

import "testing"

func TestMelSpectrogramShape(t *testing.T) {
	samples := sineSamples(TargetSampleRate*2, TargetSampleRate, 1000) // 2 seconds
	mel := melSpectrogram(samples)

	if len(mel) != nMels {
		t.Fatalf("expected %d mel bands, got %d", nMels, len(mel))
	}

	wantFrames := 1 + (len(samples)-fftSize)/hopSize
	if len(mel[0]) != wantFrames {
		t.Errorf("expected %d frames, got %d", wantFrames, len(mel[0]))
	}
}

func TestMelSpectrogramEmptyInput(t *testing.T) {
	if mel := melSpectrogram(nil); mel != nil {
		t.Errorf("expected nil mel spectrogram for empty input, got %v", mel)
	}
}

func TestMelSpectrogramShortSignalStillYieldsOneFrame(t *testing.T) {
	samples := sineSamples(hopSize, TargetSampleRate, 440)
	mel := melSpectrogram(samples)
	if len(mel) != nMels || len(mel[0]) != 1 {
		t.Fatalf("expected a single frame across all mel bands, got shape (%d, %d)", len(mel), len(mel[0]))
	}
}

func TestReshapePadExactLength(t *testing.T) {
	mel := make([][]float64, nMels)
	for i := range mel {
		mel[i] = make([]float64, TargetLength)
	}
	out, err := reshapePad("test.wav", mel)
	if err != nil {
		t.Fatalf("reshapePad: %v", err)
	}
	if len(out) != TargetLength || len(out[0]) != nMels {
		t.Fatalf("expected shape (%d, %d), got (%d, %d)", TargetLength, nMels, len(out), len(out[0]))
	}
}

func TestReshapePadRepeatsPrefixUntilTargetLength(t *testing.T) {
	const shortT = 400
	mel := make([][]float64, nMels)
	for m := range mel {
		mel[m] = make([]float64, shortT)
		for t := range mel[m] {
			mel[m][t] = float64(m*1000 + t)
		}
	}

	out, err := reshapePad("test.wav", mel)
	if err != nil {
		t.Fatalf("reshapePad: %v", err)
	}
	if len(out) != TargetLength {
		t.Fatalf("expected %d rows, got %d", TargetLength, len(out))
	}

	// Row shortT (first row of the first repeated prefix) must equal row 0.
	for m := 0; m < nMels; m++ {
		if out[shortT][m] != out[0][m] {
			t.Errorf("expected repeated prefix at row %d to match row 0 for mel %d", shortT, m)
		}
	}
}

func TestReshapePadEmptyFails(t *testing.T) {
	if _, err := reshapePad("test.wav", nil); err == nil {
		t.Fatal("expected EmptyMelSpectrogramError for empty mel input")
	}
	var target *EmptyMelSpectrogramError
	_, err := reshapePad("test.wav", [][]float64{{}})
	if err == nil {
		t.Fatal("expected error for zero-width mel input")
	}
	if e, ok := err.(*EmptyMelSpectrogramError); !ok {
		t.Fatalf("expected *EmptyMelSpectrogramError, got %T", err)
	} else {
		target = e
		if target.Path != "test.wav" {
			t.Errorf("expected path to be preserved in error, got %q", target.Path)
		}
	}
}
