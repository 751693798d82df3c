package datalink

import (
	"math/bits"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/demod"
	"github.com/jrwynneiii/tetratuner/symbol"
)

// Framer turns the dibit stream into messages. SetCurrentTime is called once
// per sample block before any of that block's dibits are received.
type Framer interface {
	Receive(d symbol.Dibit)
	SetCurrentTime(ms int64)
	SetListener(listener MessageConsumer)
}

// FramerFactory builds a framer bound to the decoder's carrier loop.
type FramerFactory func(loop InversionCorrector) Framer

type InversionCorrector interface {
	CorrectInversion(inversion demod.Inversion)
}

type SyncListener interface {
	SyncDetected(bitErrors int)
	SyncLost()
}

// SyncTrainingSequence is the 38 bit TETRA synchronization training sequence.
var SyncTrainingSequence = symbol.FromBits([]bool{
	true, true, false, false, false, false, false, true, true, false,
	false, true, true, true, false, false, true, true, true, false,
	true, false, false, true, true, true, false, false, false, false,
	false, true, true, false, false, true, true, true,
})

// SyncFramer finds the training sequence in any of the four quadrant
// rotations and emits the burstDibits dibits that follow it as a Burst. A
// rotated match is reported to the carrier loop so it can correct itself.
type SyncFramer struct {
	corrector    InversionCorrector
	listener     MessageConsumer
	syncListener SyncListener

	pattern      []symbol.Dibit
	burstDibits  int
	maxBitErrors int
	lostAfter    int

	currentTime int64
	window      []symbol.Dibit
	burst       *Burst
	sinceSync   int
	synced      bool
}

func NewSyncFramer(corrector InversionCorrector, conf config.FramerConf) *SyncFramer {
	pattern := SyncTrainingSequence
	return &SyncFramer{
		corrector:    corrector,
		pattern:      pattern,
		burstDibits:  conf.BurstDibits,
		maxBitErrors: conf.MaxSyncBitErrors,
		lostAfter:    max(1, conf.MaxMissedBursts) * (conf.BurstDibits + len(pattern)),
		window:       make([]symbol.Dibit, 0, len(pattern)),
	}
}

// SyncFramerFactory returns a FramerFactory producing SyncFramers that report
// sync to syncListener, which may be nil.
func SyncFramerFactory(conf config.FramerConf, syncListener SyncListener) FramerFactory {
	return func(loop InversionCorrector) Framer {
		f := NewSyncFramer(loop, conf)
		f.SetSyncListener(syncListener)
		return f
	}
}

func (f *SyncFramer) SetCurrentTime(ms int64) {
	f.currentTime = ms
}

func (f *SyncFramer) SetListener(listener MessageConsumer) {
	f.listener = listener
}

func (f *SyncFramer) SetSyncListener(listener SyncListener) {
	f.syncListener = listener
}

func (f *SyncFramer) Synced() bool {
	return f.synced
}

func (f *SyncFramer) Receive(d symbol.Dibit) {
	if f.burst != nil {
		f.burst.Dibits = append(f.burst.Dibits, d)
		if len(f.burst.Dibits) == f.burstDibits {
			f.emit(f.burst)
			f.burst = nil
		}
		return
	}

	if f.synced {
		f.sinceSync++
		if f.sinceSync > f.lostAfter {
			f.synced = false
			log.Debugf("[datalink] Sync lost after %d dibits", f.sinceSync)
			if f.syncListener != nil {
				f.syncListener.SyncLost()
			}
		}
	}

	if len(f.window) == len(f.pattern) {
		copy(f.window, f.window[1:])
		f.window = f.window[:len(f.window)-1]
	}
	f.window = append(f.window, d)
	if len(f.window) < len(f.pattern) {
		return
	}

	rotation, errors := f.correlate()
	if errors > f.maxBitErrors {
		return
	}

	f.window = f.window[:0]
	f.synced = true
	f.sinceSync = 0
	if f.syncListener != nil {
		f.syncListener.SyncDetected(errors)
	}
	inversion := demod.Inversion(rotation)
	if inversion != demod.NoInversion && f.corrector != nil {
		log.Debugf("[datalink] Sync found rotated by %s, correcting carrier loop", inversion)
		f.corrector.CorrectInversion(inversion)
	}
	f.burst = &Burst{
		timestamp: f.currentTime,
		Dibits:    make([]symbol.Dibit, 0, f.burstDibits),
		BitErrors: errors,
		Inversion: inversion,
	}
}

// correlate returns the rotation with the fewest bit errors against the
// pattern and that error count.
func (f *SyncFramer) correlate() (int, int) {
	best, bestErrors := 0, 2*len(f.pattern)+1
	for rotation := 0; rotation < 4; rotation++ {
		errors := 0
		for idx, want := range f.pattern {
			errors += bits.OnesCount8(uint8(f.window[idx] ^ want.Rotate(rotation)))
		}
		if errors < bestErrors {
			best, bestErrors = rotation, errors
		}
	}
	return best, bestErrors
}

func (f *SyncFramer) emit(burst *Burst) {
	if f.listener != nil {
		f.listener.Receive(burst)
	}
}
