package decode

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/datalink"
	"github.com/jrwynneiii/tetratuner/demod"
	"github.com/jrwynneiii/tetratuner/radio"
	"github.com/jrwynneiii/tetratuner/symbol"
)

// ErrNotConfigured is returned by Receive after a failed reconfiguration,
// until a later SetSampleRate succeeds.
var ErrNotConfigured = errors.New("decoder is not configured")

// Decoder is one TETRA channel: complex baseband blocks in, dibits, byte
// buffers and framed messages out. It is not safe for concurrent use; feed
// it from a single goroutine.
type Decoder struct {
	id     uuid.UUID
	logger *log.Logger
	conf   config.DecoderConf

	filters     *demod.FilterCache
	filter      *demod.FilterPair
	power       *demod.PowerMonitor
	agc         *demod.AGC
	loop        *demod.CostasLoop
	buffer      *demod.InterpolatingBuffer
	demodulator *demod.GardnerDemodulator
	syncmon     *demod.SyncMonitor

	symbols   *symbol.Broadcaster[symbol.Dibit]
	assembler *symbol.ByteBufferAssembler
	framer    datalink.Framer
	framerSub symbol.Subscription
	newFramer datalink.FramerFactory
	processor *datalink.MessageProcessor

	sampleRate float64
	err        error
}

func New(conf config.DecoderConf) (*Decoder, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	bw, err := demod.ParsePLLBandwidth(conf.Channel.PLLBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	id := uuid.New()
	d := &Decoder{
		id:        id,
		logger:    log.With("channel", id.String()[:8]),
		conf:      conf,
		filters:   demod.NewFilterCache(conf.Filter),
		power:     demod.NewPowerMonitor(conf.Power),
		agc:       demod.NewAGC(conf.AGC),
		loop:      demod.NewCostasLoop(conf.Channel.InitialSampleRate, conf.Channel.SymbolRate, conf.Costas),
		symbols:   symbol.NewBroadcaster[symbol.Dibit](),
		assembler: symbol.NewByteBufferAssembler(conf.Assembler.ChunkSize),
		processor: datalink.NewMessageProcessor(),
	}
	d.loop.SetBandwidth(bw)
	d.syncmon = demod.NewSyncMonitor(d.loop, conf.Sync)
	d.newFramer = datalink.SyncFramerFactory(conf.Framer, d.syncmon)
	d.symbols.Subscribe(d.assembler)

	if err := d.SetSampleRate(conf.Channel.InitialSampleRate); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSampleRate rebuilds every rate dependent stage. Nothing is replaced
// unless the whole new chain can be built; a failure leaves the decoder
// refusing samples until a later call succeeds.
func (d *Decoder) SetSampleRate(rate float64) error {
	if err := d.configure(rate); err != nil {
		d.err = fmt.Errorf("could not configure for %v Hz: %w", rate, err)
		d.logger.Error("Reconfiguration failed", "rate", rate, "err", err)
		return d.err
	}
	d.err = nil
	return nil
}

func (d *Decoder) configure(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return fmt.Errorf("%w: sample rate %v", demod.ErrFilterDesign, rate)
	}
	taps, err := d.filters.Taps(rate)
	if err != nil {
		return err
	}
	sps := rate / d.conf.Channel.SymbolRate
	if sps < 1 {
		return fmt.Errorf("sample rate %v Hz is below the symbol rate %v", rate, d.conf.Channel.SymbolRate)
	}
	filter := demod.NewFilterPair(taps)
	buffer := demod.NewInterpolatingBuffer(sps, d.conf.Channel.SampleCounterGain)
	demodulator := demod.NewGardnerDemodulator(d.loop, buffer)
	framer := d.newFramer(d.loop)

	d.loop.Configure(rate, d.conf.Channel.SymbolRate)
	d.filter = filter
	d.buffer = buffer
	d.demodulator = demodulator
	d.demodulator.SetSymbolListener(d.symbols)
	d.installFramer(framer)
	d.power.SetSampleRate(int(math.Round(rate)))
	d.syncmon.Reset()
	d.sampleRate = rate

	d.logger.Info("Configured", "rate", rate, "sps", fmt.Sprintf("%.3f", sps), "taps", len(taps))
	return nil
}

func (d *Decoder) installFramer(framer datalink.Framer) {
	if d.framer != nil {
		d.symbols.Unsubscribe(d.framerSub)
	}
	framer.SetListener(d.processor)
	d.framer = framer
	d.framerSub = d.symbols.Subscribe(framer)
}

// SetFramerFactory replaces the framer now and after every reconfiguration.
func (d *Decoder) SetFramerFactory(factory datalink.FramerFactory) {
	d.newFramer = factory
	d.installFramer(factory(d.loop))
}

func (d *Decoder) ReceiveEvent(event radio.Event) {
	switch event.Kind {
	case radio.SampleRateChange:
		d.logger.Debug("Sample rate change", "rate", event.Value)
		d.loop.Reset()
		// the failure is kept and returned by Receive
		if err := d.SetSampleRate(event.Value); err != nil {
			d.logger.Warn("Dropping samples until a usable rate arrives", "rate", event.Value, "timestamp", event.Timestamp)
		}
	case radio.FrequencyCorrectionChange:
		d.logger.Debug("Frequency correction change, resetting carrier loop", "correction", event.Value)
		d.loop.Reset()
	}
}

// Reset drops carrier and gain tracking state without touching the
// configuration.
func (d *Decoder) Reset() {
	d.loop.Reset()
	d.agc.Reset()
	d.syncmon.Reset()
}

func (d *Decoder) Receive(samples radio.ComplexSamples) error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrNotConfigured, d.err)
	}
	if err := samples.Validate(); err != nil {
		return err
	}

	d.framer.SetCurrentTime(samples.Timestamp)
	i, q := d.filter.Filter(samples.I, samples.Q)
	d.power.Process(i, q, samples.Timestamp)
	d.demodulator.Receive(d.agc.Process(i, q, samples.Timestamp))
	d.syncmon.Observe(samples.Timestamp)
	return nil
}

func (d *Decoder) ID() uuid.UUID {
	return d.id
}

func (d *Decoder) SampleRate() float64 {
	return d.sampleRate
}

func (d *Decoder) SamplesPerSymbol() float64 {
	return d.buffer.SamplesPerSymbol()
}

func (d *Decoder) Loop() *demod.CostasLoop {
	return d.loop
}

func (d *Decoder) Filters() *demod.FilterCache {
	return d.filters
}

func (d *Decoder) Filter() *demod.FilterPair {
	return d.filter
}

func (d *Decoder) Demodulator() *demod.GardnerDemodulator {
	return d.demodulator
}

func (d *Decoder) SubscribeSymbols(consumer symbol.SymbolConsumer) symbol.Subscription {
	return d.symbols.Subscribe(consumer)
}

func (d *Decoder) UnsubscribeSymbols(sub symbol.Subscription) {
	d.symbols.Unsubscribe(sub)
}

func (d *Decoder) AddBufferListener(listener symbol.ByteBufferConsumer) symbol.Subscription {
	return d.assembler.AddBufferListener(listener)
}

func (d *Decoder) RemoveBufferListener(sub symbol.Subscription) {
	d.assembler.RemoveBufferListener(sub)
}

func (d *Decoder) HasBufferListeners() bool {
	return d.assembler.HasBufferListeners()
}

// FlushBuffers delivers the partially filled byte buffer, if any.
func (d *Decoder) FlushBuffers() {
	d.assembler.Flush()
}

func (d *Decoder) SetMessageListener(listener datalink.MessageConsumer) {
	d.processor.SetMessageListener(listener)
}

func (d *Decoder) RemoveMessageListener() {
	d.processor.RemoveMessageListener()
}

// SetEventListener receives channel power, carrier lock and sync frequency
// error events.
func (d *Decoder) SetEventListener(listener radio.EventConsumer) {
	d.power.SetListener(listener)
	d.syncmon.SetListener(listener)
}

func (d *Decoder) RemoveEventListener() {
	d.SetEventListener(nil)
}
