package demod

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/tetratuner/config"
	"github.com/racerxdl/segdsp/dsp"
	"gonum.org/v1/gonum/dsp/window"
)

var ErrFilterDesign = errors.New("low pass filter design failed")

var windows = map[string]func([]float64) []float64{
	"hann":           window.Hann,
	"hamming":        window.Hamming,
	"blackman":       window.Blackman,
	"blackmanharris": window.BlackmanHarris,
	"nuttall":        window.Nuttall,
}

// RateKey is the cache key for a sample rate: the rate rounded to whole hertz,
// so rates that differ only by floating point noise share a filter.
func RateKey(rate float64) int64 {
	return int64(math.Round(rate))
}

// DesignLowPass builds a windowed-sinc low pass filter with unity gain at DC.
// When the stop edge lies above the Nyquist frequency of rate it is pulled
// down to Nyquist, keeping the configured transition width.
func DesignLowPass(rate float64, conf config.FilterConf) ([]float32, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %v", ErrFilterDesign, rate)
	}
	win, ok := windows[strings.ToLower(conf.Window)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown window %q", ErrFilterDesign, conf.Window)
	}
	if conf.Attenuation <= 0 {
		return nil, fmt.Errorf("%w: attenuation %v dB", ErrFilterDesign, conf.Attenuation)
	}

	pass, stop := conf.PassFrequency, conf.StopFrequency
	if pass >= stop {
		return nil, fmt.Errorf("%w: pass edge %v Hz not below stop edge %v Hz", ErrFilterDesign, pass, stop)
	}
	if nyquist := rate / 2; stop > nyquist {
		pass -= stop - nyquist
		stop = nyquist
	}
	if pass <= 0 {
		return nil, fmt.Errorf("%w: no pass band left below %v Hz at %v Hz", ErrFilterDesign, stop, rate)
	}

	transition := stop - pass
	ntaps := int(math.Ceil(conf.Attenuation * rate / (22 * transition)))
	if ntaps%2 == 0 {
		ntaps++
	}

	cutoff := (pass + stop) / 2 / rate
	mid := float64(ntaps-1) / 2
	taps := make([]float64, ntaps)
	for n := range taps {
		x := float64(n) - mid
		if x == 0 {
			taps[n] = 2 * cutoff
		} else {
			taps[n] = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
	}
	taps = win(taps)

	var sum float64
	for _, t := range taps {
		sum += t
	}
	if sum == 0 || math.IsNaN(sum) {
		return nil, fmt.Errorf("%w: degenerate taps", ErrFilterDesign)
	}

	out := make([]float32, ntaps)
	for n, t := range taps {
		out[n] = float32(t / sum)
	}
	return out, nil
}

// FilterCache owns one designed filter per sample rate for the lifetime of a
// decoder.
type FilterCache struct {
	conf    config.FilterConf
	filters map[int64][]float32
}

func NewFilterCache(conf config.FilterConf) *FilterCache {
	return &FilterCache{conf: conf, filters: make(map[int64][]float32)}
}

// Taps returns the cached filter for rate, designing it on first use. The
// returned slice is shared and must not be modified.
func (c *FilterCache) Taps(rate float64) ([]float32, error) {
	key := RateKey(rate)
	if taps, ok := c.filters[key]; ok {
		return taps, nil
	}
	taps, err := DesignLowPass(rate, c.conf)
	if err != nil {
		return nil, err
	}
	log.Debugf("[demod] Designed %d tap baseband filter for %d Hz", len(taps), key)
	c.filters[key] = taps
	return taps, nil
}

func (c *FilterCache) Len() int {
	return len(c.filters)
}

// FilterPair runs the same real FIR filter independently over the I and Q
// rails. Output blocks have the input length; the (len(taps)-1)/2 sample
// group delay is carried across blocks in the filter history.
type FilterPair struct {
	taps []float32
	i    *dsp.FloatFirFilter
	q    *dsp.FloatFirFilter
}

func NewFilterPair(taps []float32) *FilterPair {
	return &FilterPair{
		taps: taps,
		i:    dsp.MakeFloatFirFilter(taps),
		q:    dsp.MakeFloatFirFilter(taps),
	}
}

func (f *FilterPair) Taps() []float32 {
	return f.taps
}

func (f *FilterPair) GroupDelay() int {
	return (len(f.taps) - 1) / 2
}

func (f *FilterPair) Filter(i, q []float32) ([]float32, []float32) {
	return f.i.Work(i), f.q.Work(q)
}
