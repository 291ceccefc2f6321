// Package analysis estimates statistics of correlated time series such as
// the energy trace of a simulation.
//
//   - [Autocorrelation]: normalized autocorrelation function via FFT
//   - [CorrelationTime]: integrated autocorrelation time
//   - [BlockAverage]: mean and standard error from block averages
//   - [PowerSpectrum]: magnitude spectrum of a trace
//
// Successive samples of a Markov chain or a trajectory are correlated, so
// the naive standard error underestimates the uncertainty:
//
//	mean, stderr := analysis.BlockAverage(u, 10)
//	tau := analysis.CorrelationTime(u)
package analysis
