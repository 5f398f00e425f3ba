package audio

// MelSpec is a (TargetLength, nMels) mel spectrogram ready for the batched
// embedder, which applies the leading batch axis itself when it stacks many
// segments' spectrograms into one inference tensor.
type MelSpec [][]float64

// reshapePad transposes a (nMels, T) mel spectrogram to (T, nMels) and
// pads or truncates it to TargetLength rows. Padding repeats a prefix of
// the transposed spectrogram — of length min(TargetLength-T, T) each
// round — until the target length is reached.
func reshapePad(path string, mel [][]float64) (MelSpec, error) {
	if len(mel) == 0 || len(mel[0]) == 0 {
		return nil, &EmptyMelSpectrogramError{Path: path}
	}

	nMelsGot := len(mel)
	t := len(mel[0])

	transposed := make(MelSpec, t)
	for i := 0; i < t; i++ {
		row := make([]float64, nMelsGot)
		for m := 0; m < nMelsGot; m++ {
			row[m] = mel[m][i]
		}
		transposed[i] = row
	}

	if t == TargetLength {
		return transposed, nil
	}

	out := make(MelSpec, 0, TargetLength)
	out = append(out, transposed...)
	for len(out) < TargetLength {
		remaining := TargetLength - len(out)
		prefixLen := remaining
		if prefixLen > t {
			prefixLen = t
		}
		out = append(out, transposed[:prefixLen]...)
	}
	return out[:TargetLength], nil
}
