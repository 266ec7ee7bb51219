package models

import "errors"

// Failure taxonomy shared across the analysis core. Every failure is
// explicit and typed; the core never substitutes a fabricated result for
// a failed computation.
var (
	// ErrInsufficientData - signal builder got fewer than the minimum
	// qualifying observations to build a daily series
	ErrInsufficientData = errors.New("insufficient observations to build signal")

	// ErrInsufficientHistory - series too short to fit even the simplest
	// trend model
	ErrInsufficientHistory = errors.New("insufficient history to fit model")

	// ErrInsufficientVideos - backtest requires a minimum video sample
	ErrInsufficientVideos = errors.New("insufficient videos for backtest")

	// ErrUpstreamTimeout - a bounded computation did not finish in time;
	// callers fall back to stored data
	ErrUpstreamTimeout = errors.New("analysis timed out")

	// ErrComputationFailure - internal fault in the model fit, recoverable
	// at the request level
	ErrComputationFailure = errors.New("model computation failed")
)
