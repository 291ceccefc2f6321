package analysis

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Autocorrelation returns the normalized autocorrelation of data for lags
// 0..len(data)-1. Each lag is averaged over the pairs it has. A constant
// series has no defined correlation and yields nil.
func Autocorrelation(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return nil
	}
	mean := stat.Mean(data, nil)

	// pad to 2n so the circular transform gives the linear correlation
	padded := make([]float64, 2*n)
	for i, v := range data {
		padded[i] = v - mean
	}
	fft := fourier.NewFFT(len(padded))
	coeff := fft.Coefficients(nil, padded)
	for i, c := range coeff {
		coeff[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	seq := fft.Sequence(nil, coeff)

	if seq[0] <= 0 {
		return nil
	}
	acf := make([]float64, n)
	c0 := seq[0] / float64(n)
	for k := range acf {
		acf[k] = seq[k] / float64(n-k) / c0
	}
	return acf
}

// CorrelationTime returns 1 + 2*sum(acf[k]) over lags up to the first
// non-positive value. Uncorrelated data gives 1.
func CorrelationTime(data []float64) float64 {
	acf := Autocorrelation(data)
	tau := 1.0
	for k := 1; k < len(acf); k++ {
		if acf[k] <= 0 {
			break
		}
		tau += 2 * acf[k]
	}
	return tau
}

// BlockAverage splits data into nBlocks equal blocks, dropping the
// remainder, and returns the overall mean with the standard error of the
// block means.
func BlockAverage(data []float64, nBlocks int) (mean, stderr float64) {
	if nBlocks < 2 || len(data) < nBlocks {
		return stat.Mean(data, nil), math.NaN()
	}
	size := len(data) / nBlocks
	means := make([]float64, nBlocks)
	for b := range means {
		means[b] = floats.Sum(data[b*size:(b+1)*size]) / float64(size)
	}
	mean, std := stat.MeanStdDev(means, nil)
	return mean, std / math.Sqrt(float64(nBlocks))
}

// PowerSpectrum returns the magnitude of the non-negative frequency
// coefficients of data.
func PowerSpectrum(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	fft := fourier.NewFFT(len(data))
	coeff := fft.Coefficients(nil, data)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}
