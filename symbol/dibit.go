package symbol

import (
	"fmt"
	"math"
)

// Dibit is one π/4-DQPSK symbol: two bits, most significant first.
type Dibit uint8

const (
	D00 Dibit = iota
	D01
	D10
	D11
)

// phase change (radians) per dibit, EN 300 392-2 table 5.
var dibitPhase = [4]float64{math.Pi / 4, 3 * math.Pi / 4, -math.Pi / 4, -3 * math.Pi / 4}

// dibits ordered by increasing phase, counter clockwise from -3π/4.
var quadrantOrder = [4]Dibit{D11, D10, D00, D01}

func (d Dibit) Bit1() bool {
	return d&0x2 != 0
}

func (d Dibit) Bit2() bool {
	return d&0x1 != 0
}

// Phase is the differential phase change the dibit encodes.
func (d Dibit) Phase() float64 {
	return dibitPhase[d&0x3]
}

// Rotate returns the dibit whose phase change is this one's plus quadrants
// times π/2.
func (d Dibit) Rotate(quadrants int) Dibit {
	pos := 0
	for idx, q := range quadrantOrder {
		if q == d&0x3 {
			pos = idx
		}
	}
	return quadrantOrder[((pos+quadrants)%4+4)%4]
}

func (d Dibit) String() string {
	return fmt.Sprintf("%d%d", (d>>1)&1, d&1)
}

// Decide maps a differential phase in radians to the nearest dibit.
func Decide(phase float64) Dibit {
	switch {
	case phase >= math.Pi/2:
		return D01
	case phase >= 0:
		return D00
	case phase >= -math.Pi/2:
		return D10
	default:
		return D11
	}
}

// FromBits packs a bit slice (one bool per bit) into dibits. An odd trailing
// bit is dropped.
func FromBits(bits []bool) []Dibit {
	out := make([]Dibit, len(bits)/2)
	for idx := range out {
		var d Dibit
		if bits[2*idx] {
			d |= 0x2
		}
		if bits[2*idx+1] {
			d |= 0x1
		}
		out[idx] = d
	}
	return out
}
