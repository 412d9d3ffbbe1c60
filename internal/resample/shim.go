// Package resample provides a stand-in for the external sample-rate
// converter when the real one cannot be loaded. The shim keeps the audio
// pipeline alive instead of failing closed; if input and output rates
// actually differ the audio may be subtly distorted. It must stay an
// identity transform: real resampling belongs to the library it replaces.
package resample

import (
	"fmt"
)

type Shim struct {
	channels   int
	inputRate  int
	outputRate int
}

// Create mirrors the external resampler's constructor contract.
func Create(channels, inputRate, outputRate int) (*Shim, error) {
	if channels < 1 || channels > 8 {
		return nil, fmt.Errorf("resample: invalid channel count %d", channels)
	}
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", inputRate, outputRate)
	}
	return &Shim{
		channels:   channels,
		inputRate:  inputRate,
		outputRate: outputRate,
	}, nil
}

// Process returns its input unchanged.
func (s *Shim) Process(samples []float32) []float32 {
	return samples
}

func (s *Shim) Channels() int {
	return s.channels
}

// Passthrough reports whether the configured rates make the identity
// transform lossless.
func (s *Shim) Passthrough() bool {
	return s.inputRate == s.outputRate
}
