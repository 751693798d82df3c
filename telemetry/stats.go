package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrwynneiii/tetratuner/datalink"
	"github.com/jrwynneiii/tetratuner/demod"
	"github.com/jrwynneiii/tetratuner/radio"
	"github.com/jrwynneiii/tetratuner/symbol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot is a point in time copy of a channel's state for display.
type Snapshot struct {
	SampleRate     float64
	PowerDb        float64
	PowerHistory   []float64
	Locked         bool
	LockQuality    float64
	FrequencyError float64
	SyncLocked     bool
	Dibits         int64
	Buffers        int64
	Messages       int64
	SyncEvents     int64
	LastMessage    string
	LastEvent      time.Time
}

// Stats collects decoder events and output counts. Its event and consumer
// methods are called from the decoding goroutine while Snapshot is read from
// elsewhere, so all state is guarded.
type Stats struct {
	mu          sync.RWMutex
	historySize int
	snap        Snapshot
	loop        *demod.CostasLoop

	dibits atomic.Int64

	power      *prometheus.GaugeVec
	lock       *prometheus.GaugeVec
	lockQ      *prometheus.GaugeVec
	freqError  *prometheus.GaugeVec
	sampleRate *prometheus.GaugeVec
	dibitsC    *prometheus.CounterVec
	buffersC   *prometheus.CounterVec
	messagesC  *prometheus.CounterVec
	syncC      *prometheus.CounterVec
	channel    string
}

// New registers the channel's metrics with reg, labelled with channel.
// historySize bounds the power history kept for plotting.
func New(reg prometheus.Registerer, channel string, historySize int) *Stats {
	factory := promauto.With(reg)
	labels := []string{"channel"}
	s := &Stats{
		historySize: max(1, historySize),
		channel:     channel,
		snap:        Snapshot{PowerDb: demod.MinPowerDb},
		power: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tetratuner",
			Name:      "channel_power_dbfs",
			Help:      "Mean filtered channel power in dBFS",
		}, labels),
		lock: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tetratuner",
			Name:      "carrier_locked",
			Help:      "1 when the carrier loop is locked",
		}, labels),
		lockQ: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tetratuner",
			Name:      "carrier_lock_quality",
			Help:      "Carrier loop lock quality between 0 and 1",
		}, labels),
		freqError: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tetratuner",
			Name:      "frequency_error_hz",
			Help:      "Carrier frequency error measured while in sync",
		}, labels),
		sampleRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tetratuner",
			Name:      "sample_rate_hz",
			Help:      "Current decoder sample rate",
		}, labels),
		dibitsC: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tetratuner",
			Name:      "dibits_total",
			Help:      "Recovered dibits",
		}, labels),
		buffersC: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tetratuner",
			Name:      "buffers_total",
			Help:      "Assembled dibit byte buffers",
		}, labels),
		messagesC: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tetratuner",
			Name:      "messages_total",
			Help:      "Framed messages",
		}, labels),
		syncC: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tetratuner",
			Name:      "sync_locked_events_total",
			Help:      "Frequency error reports while in sync",
		}, labels),
	}
	return s
}

// Track sets the loop whose lock quality is sampled on every event.
func (s *Stats) Track(loop *demod.CostasLoop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

func (s *Stats) ReceiveEvent(event radio.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.LastEvent = time.UnixMilli(event.Timestamp)
	switch event.Kind {
	case radio.SampleRateChange:
		s.snap.SampleRate = event.Value
		s.sampleRate.WithLabelValues(s.channel).Set(event.Value)
	case radio.ChannelPower:
		s.snap.PowerDb = event.Value
		s.snap.PowerHistory = append(s.snap.PowerHistory, event.Value)
		if over := len(s.snap.PowerHistory) - s.historySize; over > 0 {
			s.snap.PowerHistory = s.snap.PowerHistory[over:]
		}
		s.power.WithLabelValues(s.channel).Set(event.Value)
	case radio.CarrierLock:
		s.snap.Locked = event.Value != 0
		s.lock.WithLabelValues(s.channel).Set(event.Value)
		if !s.snap.Locked {
			s.snap.SyncLocked = false
		}
	case radio.FrequencyErrorSyncLocked:
		s.snap.FrequencyError = event.Value
		s.snap.SyncLocked = true
		s.snap.SyncEvents++
		s.freqError.WithLabelValues(s.channel).Set(event.Value)
		s.syncC.WithLabelValues(s.channel).Inc()
	}

	if s.loop != nil {
		s.snap.LockQuality = s.loop.LockQuality()
		s.lockQ.WithLabelValues(s.channel).Set(s.snap.LockQuality)
	}
}

// CountDibit is a symbol.SymbolConsumer body; it only touches an atomic.
func (s *Stats) CountDibit(symbol.Dibit) {
	s.dibits.Add(1)
}

func (s *Stats) CountBuffer(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Buffers++
	s.buffersC.WithLabelValues(s.channel).Inc()
}

func (s *Stats) CountMessage(message datalink.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Messages++
	s.snap.LastMessage = message.String()
	s.messagesC.WithLabelValues(s.channel).Inc()
}

// Attach subscribes the dibit and buffer counters to a decoder. Messages have
// a single listener slot, so CountMessage is left to the caller to chain.
func (s *Stats) Attach(src Source) {
	src.SubscribeSymbols(symbol.ConsumerFunc[symbol.Dibit](s.CountDibit))
	src.AddBufferListener(symbol.ConsumerFunc[[]byte](s.CountBuffer))
	s.Track(src.Loop())
}

// Source is the part of a decoder Stats attaches to.
type Source interface {
	SubscribeSymbols(consumer symbol.SymbolConsumer) symbol.Subscription
	AddBufferListener(listener symbol.ByteBufferConsumer) symbol.Subscription
	Loop() *demod.CostasLoop
}

// Flush moves the dibit count into the exported counter; call it
// periodically from any goroutine.
func (s *Stats) Flush() {
	n := s.dibits.Swap(0)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Dibits += n
	s.dibitsC.WithLabelValues(s.channel).Add(float64(n))
}

func (s *Stats) Snapshot() Snapshot {
	s.Flush()
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snap
	snap.PowerHistory = append([]float64(nil), s.snap.PowerHistory...)
	return snap
}
