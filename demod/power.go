package demod

import (
	"math"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/radio"
)

// MinPowerDb is reported for a silent channel.
const MinPowerDb = -150.0

// PowerMonitor measures mean channel power over fixed windows and reports it
// as a ChannelPower event at the end of each window.
type PowerMonitor struct {
	intervalMs int
	window     int
	count      int
	sum        float64
	power      float64
	listener   radio.EventConsumer
}

func NewPowerMonitor(conf config.PowerConf) *PowerMonitor {
	return &PowerMonitor{intervalMs: conf.IntervalMs, window: 1, power: MinPowerDb}
}

// SetSampleRate sizes the measurement window for rate and discards the
// partial window.
func (p *PowerMonitor) SetSampleRate(rate int) {
	p.window = max(1, rate*p.intervalMs/1000)
	p.count = 0
	p.sum = 0
}

func (p *PowerMonitor) SetListener(listener radio.EventConsumer) {
	p.listener = listener
}

func (p *PowerMonitor) Window() int {
	return p.window
}

// Power is the last completed measurement in dBFS.
func (p *PowerMonitor) Power() float64 {
	return p.power
}

// Process accumulates one filtered block; events carry the block timestamp.
func (p *PowerMonitor) Process(i, q []float32, timestamp int64) {
	for idx := range i {
		re, im := float64(i[idx]), float64(q[idx])
		p.sum += re*re + im*im
		p.count++
		if p.count < p.window {
			continue
		}

		p.power = MinPowerDb
		if mean := p.sum / float64(p.count); mean > 0 {
			p.power = max(MinPowerDb, 10*math.Log10(mean))
		}
		p.count = 0
		p.sum = 0

		if p.listener != nil {
			p.listener.ReceiveEvent(radio.Event{Kind: radio.ChannelPower, Value: p.power, Timestamp: timestamp})
		}
	}
}
