package datalink

import (
	"fmt"
	"strings"

	"github.com/jrwynneiii/tetratuner/demod"
	"github.com/jrwynneiii/tetratuner/symbol"
)

// Message is an opaque protocol message produced by a framer.
type Message interface {
	Timestamp() int64
	String() string
}

type MessageConsumer = symbol.Consumer[Message]

type MessageConsumerFunc = symbol.ConsumerFunc[Message]

// Burst is the raw dibit content following one synchronization training
// sequence. Interpreting it as TETRA PDUs is left to a downstream parser.
type Burst struct {
	timestamp int64
	Dibits    []symbol.Dibit
	BitErrors int
	Inversion demod.Inversion
}

func (b *Burst) Timestamp() int64 {
	return b.timestamp
}

// Bits unpacks the burst most significant bit first.
func (b *Burst) Bits() []bool {
	bits := make([]bool, 0, 2*len(b.Dibits))
	for _, d := range b.Dibits {
		bits = append(bits, d.Bit1(), d.Bit2())
	}
	return bits
}

func (b *Burst) String() string {
	var sb strings.Builder
	for _, d := range b.Dibits[:min(len(b.Dibits), 16)] {
		sb.WriteString(d.String())
	}
	return fmt.Sprintf("burst @%d: %d dibits, %d sync bit errors, rotation %s [%s...]",
		b.timestamp, len(b.Dibits), b.BitErrors, b.Inversion, sb.String())
}
