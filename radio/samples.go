package radio

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBlock      = errors.New("sample block is empty")
	ErrMismatchedRails = errors.New("sample block I and Q rails differ in length")
)

// ComplexSamples is one block of baseband samples. Timestamp is the time of
// the first sample in milliseconds since the epoch.
type ComplexSamples struct {
	I         []float32
	Q         []float32
	Timestamp int64
}

func NewComplexSamples(i, q []float32, timestamp int64) ComplexSamples {
	return ComplexSamples{I: i, Q: q, Timestamp: timestamp}
}

// FromComplex64 splits interleaved complex samples into rails.
func FromComplex64(samples []complex64, timestamp int64) ComplexSamples {
	i := make([]float32, len(samples))
	q := make([]float32, len(samples))
	for idx, s := range samples {
		i[idx] = real(s)
		q[idx] = imag(s)
	}
	return ComplexSamples{I: i, Q: q, Timestamp: timestamp}
}

func (s ComplexSamples) Len() int {
	return len(s.I)
}

func (s ComplexSamples) At(idx int) complex64 {
	return complex(s.I[idx], s.Q[idx])
}

func (s ComplexSamples) Validate() error {
	if len(s.I) != len(s.Q) {
		return fmt.Errorf("%w: i=%d q=%d", ErrMismatchedRails, len(s.I), len(s.Q))
	}
	if len(s.I) == 0 {
		return ErrEmptyBlock
	}
	return nil
}

type SampleConsumer interface {
	Receive(samples ComplexSamples) error
}

type SampleConsumerFunc func(samples ComplexSamples) error

func (f SampleConsumerFunc) Receive(samples ComplexSamples) error {
	return f(samples)
}
