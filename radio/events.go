package radio

import "fmt"

type EventKind int

const (
	// SampleRateChange carries the new sample rate in Hz.
	SampleRateChange EventKind = iota
	// FrequencyCorrectionChange carries the new tuner correction; only the
	// notification itself matters to a decoder.
	FrequencyCorrectionChange
	// ChannelPower carries the measured channel power in dBFS.
	ChannelPower
	// CarrierLock carries 1 when the carrier loop is locked and 0 otherwise.
	CarrierLock
	// FrequencyErrorSyncLocked carries the carrier frequency error in Hz
	// measured while the framer holds sync.
	FrequencyErrorSyncLocked
)

func (k EventKind) String() string {
	switch k {
	case SampleRateChange:
		return "sample-rate-change"
	case FrequencyCorrectionChange:
		return "frequency-correction-change"
	case ChannelPower:
		return "channel-power"
	case CarrierLock:
		return "carrier-lock"
	case FrequencyErrorSyncLocked:
		return "frequency-error-sync-locked"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

type Event struct {
	Kind      EventKind
	Value     float64
	Timestamp int64
	Detail    string
}

func (e Event) String() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %.3f (%s)", e.Kind, e.Value, e.Detail)
	}
	return fmt.Sprintf("%s %.3f", e.Kind, e.Value)
}

func NewSampleRateChange(rate float64) Event {
	return Event{Kind: SampleRateChange, Value: rate}
}

func NewFrequencyCorrectionChange(correction float64) Event {
	return Event{Kind: FrequencyCorrectionChange, Value: correction}
}

type EventConsumer interface {
	ReceiveEvent(event Event)
}

type EventConsumerFunc func(event Event)

func (f EventConsumerFunc) ReceiveEvent(event Event) {
	f(event)
}
