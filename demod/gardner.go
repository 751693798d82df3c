package demod

import (
	"math/cmplx"

	"github.com/jrwynneiii/tetratuner/radio"
	"github.com/jrwynneiii/tetratuner/symbol"
)

// GardnerDemodulator recovers π/4-DQPSK dibits. Carrier removal comes from
// the Costas loop, symbol timing from a Gardner detector driving the
// interpolating buffer.
type GardnerDemodulator struct {
	loop     *CostasLoop
	buffer   *InterpolatingBuffer
	listener symbol.SymbolConsumer

	previous    complex64
	timingError float64
	phaseError  float64
	symbols     int64
}

func NewGardnerDemodulator(loop *CostasLoop, buffer *InterpolatingBuffer) *GardnerDemodulator {
	return &GardnerDemodulator{loop: loop, buffer: buffer}
}

func (d *GardnerDemodulator) SetSymbolListener(listener symbol.SymbolConsumer) {
	d.listener = listener
}

func (d *GardnerDemodulator) Symbols() int64 {
	return d.symbols
}

// TimingError is the last Gardner detector output.
func (d *GardnerDemodulator) TimingError() float64 {
	return d.timingError
}

// PhaseError is the last phase detector output in radians.
func (d *GardnerDemodulator) PhaseError() float64 {
	return d.phaseError
}

func (d *GardnerDemodulator) Receive(samples radio.ComplexSamples) {
	for idx := range samples.I {
		d.buffer.Receive(samples.At(idx) * d.loop.CurrentVector())
		d.loop.Increment()
		for d.buffer.HasSymbol() {
			d.demodulate()
		}
	}
}

func (d *GardnerDemodulator) demodulate() {
	current := d.buffer.Current()
	middle := d.buffer.Middle()
	previous := d.previous

	d.timingError = 0
	power := sqmag(current) + sqmag(previous)
	if power > minSymbolPower {
		d.timingError = (float64(real(middle))*float64(real(current)-real(previous)) +
			float64(imag(middle))*float64(imag(current)-imag(previous))) / power
	}
	d.buffer.ResetAndAdjust(d.timingError)

	diff := complex128(current) * cmplx.Conj(complex128(previous))
	angle := cmplx.Phase(diff)
	dibit := symbol.Decide(angle)

	d.phaseError = 0
	if cmplx.Abs(diff) > minSymbolPower {
		d.phaseError = wrapPhase(angle - dibit.Phase())
		d.loop.Adjust(d.phaseError)
	}

	d.previous = current
	d.symbols++
	if d.listener != nil {
		d.listener.Receive(dibit)
	}
}

func sqmag(c complex64) float64 {
	re, im := float64(real(c)), float64(imag(c))
	return re*re + im*im
}
