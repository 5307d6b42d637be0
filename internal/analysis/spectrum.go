package analysis

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/san-kum/chargesim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns |X_k| for k in [0, n/2) of the mean-removed series.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	centered := make([]float64, len(data))
	copy(centered, data)
	floats.AddConst(-stat.Mean(data, nil), centered)

	spec := fft.FFTReal(centered)
	ps := make([]float64, len(spec)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// DominantFrequency returns the frequency (cycles per unit time) of the
// strongest non-constant component of a series sampled every interval.
func DominantFrequency(data []float64, interval float64) (float64, error) {
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: need at least 4 samples, got %d", dynamo.ErrParameterBounds, len(data))
	}
	if !(interval > 0) {
		return 0, fmt.Errorf("%w: sample interval must be positive", dynamo.ErrParameterBounds)
	}
	ps := PowerSpectrum(data)
	k := floats.MaxIdx(ps[1:]) + 1
	return float64(k) / (float64(len(data)) * interval), nil
}
