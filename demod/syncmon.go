package demod

import (
	"fmt"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/radio"
)

// SyncMonitor reports carrier frequency error upstream while the framer holds
// sync, so a tuner can trim its frequency correction, and reports changes of
// the carrier loop lock state. Its output is advisory only.
type SyncMonitor struct {
	loop      *CostasLoop
	threshold int
	listener  radio.EventConsumer

	consecutive int
	locked      bool
	timestamp   int64
}

func NewSyncMonitor(loop *CostasLoop, conf config.SyncMonitorConf) *SyncMonitor {
	return &SyncMonitor{loop: loop, threshold: max(1, conf.SyncThreshold)}
}

func (m *SyncMonitor) SetListener(listener radio.EventConsumer) {
	m.listener = listener
}

func (m *SyncMonitor) Consecutive() int {
	return m.consecutive
}

func (m *SyncMonitor) SyncDetected(bitErrors int) {
	m.consecutive++
	if m.consecutive%m.threshold != 0 {
		return
	}
	m.send(radio.Event{
		Kind:      radio.FrequencyErrorSyncLocked,
		Value:     m.loop.FrequencyErrorHz(),
		Timestamp: m.timestamp,
		Detail:    fmt.Sprintf("%d sync bit errors, lock quality %.2f", bitErrors, m.loop.LockQuality()),
	})
}

func (m *SyncMonitor) SyncLost() {
	m.consecutive = 0
}

// Observe samples the loop once per block and reports lock state changes.
func (m *SyncMonitor) Observe(timestamp int64) {
	m.timestamp = timestamp
	if locked := m.loop.Locked(); locked != m.locked {
		m.locked = locked
		value := 0.0
		if locked {
			value = 1
		}
		m.send(radio.Event{
			Kind:      radio.CarrierLock,
			Value:     value,
			Timestamp: timestamp,
			Detail:    fmt.Sprintf("%.1f Hz", m.loop.FrequencyErrorHz()),
		})
	}
}

// Reset forgets the sync run; the lock state is left for the next Observe to
// report against.
func (m *SyncMonitor) Reset() {
	m.consecutive = 0
}

func (m *SyncMonitor) send(event radio.Event) {
	if m.listener != nil {
		m.listener.ReceiveEvent(event)
	}
}
