package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every error returned from the Validate methods.
var ErrInvalid = errors.New("invalid configuration")

type SourceConf struct {
	Format     string  `koanf:"format"`
	SampleRate float64 `koanf:"sample_rate"`
	BlockSize  int     `koanf:"block_size"`
	Realtime   bool    `koanf:"realtime"`
}

type ChannelConf struct {
	SymbolRate        float64 `koanf:"symbol_rate"`
	InitialSampleRate float64 `koanf:"initial_sample_rate"`
	PLLBandwidth      int     `koanf:"pll_bandwidth"`
	SampleCounterGain float64 `koanf:"sample_counter_gain"`
}

type FilterConf struct {
	PassFrequency float64 `koanf:"pass_frequency"`
	StopFrequency float64 `koanf:"stop_frequency"`
	Attenuation   float64 `koanf:"attenuation"`
	Window        string  `koanf:"window"`
}

type AGCConf struct {
	Rate         float32 `koanf:"rate"`
	Reference    float32 `koanf:"reference"`
	Gain         float32 `koanf:"gain"`
	MaxGain      float32 `koanf:"max_gain"`
	MinGain      float32 `koanf:"min_gain"`
	ResetAfterMs int64   `koanf:"reset_after_ms"`
}

type CostasConf struct {
	Damping        float64 `koanf:"damping"`
	MaxFrequencyHz float64 `koanf:"max_frequency_hz"`
	LockAlpha      float64 `koanf:"lock_alpha"`
	LockThreshold  float64 `koanf:"lock_threshold"`
}

type PowerConf struct {
	IntervalMs int `koanf:"interval_ms"`
}

type SyncMonitorConf struct {
	SyncThreshold int `koanf:"sync_threshold"`
}

type AssemblerConf struct {
	ChunkSize int `koanf:"chunk_size"`
}

type FramerConf struct {
	BurstDibits      int `koanf:"burst_dibits"`
	MaxSyncBitErrors int `koanf:"max_sync_bit_errors"`
	MaxMissedBursts  int `koanf:"max_missed_bursts"`
}

type RecordConf struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
	Queue    int    `koanf:"queue"`
}

type MetricsConf struct {
	Listen string `koanf:"listen"`
}

type TuiConf struct {
	RefreshMs       int     `koanf:"refresh_ms"`
	PowerFloorDb    float64 `koanf:"power_floor_db"`
	HistoryLength   int     `koanf:"history_length"`
	LockWarnPct     float64 `koanf:"lock_threshold_warn_pct"`
	LockCritPct     float64 `koanf:"lock_threshold_crit_pct"`
	EnableLogOutput bool    `koanf:"enable_log_output"`
}

// DecoderConf is everything a channel decoder needs at construction and
// reconfiguration time.
type DecoderConf struct {
	Channel   ChannelConf     `koanf:"channel"`
	Filter    FilterConf      `koanf:"filter"`
	AGC       AGCConf         `koanf:"agc"`
	Costas    CostasConf      `koanf:"costas"`
	Power     PowerConf       `koanf:"power"`
	Sync      SyncMonitorConf `koanf:"sync"`
	Assembler AssemblerConf   `koanf:"assembler"`
	Framer    FramerConf      `koanf:"framer"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c DecoderConf) Validate() error {
	switch {
	case c.Channel.SymbolRate <= 0:
		return invalid("channel.symbol_rate must be positive, got %v", c.Channel.SymbolRate)
	case c.Channel.InitialSampleRate <= 0:
		return invalid("channel.initial_sample_rate must be positive, got %v", c.Channel.InitialSampleRate)
	case c.Channel.SampleCounterGain <= 0 || c.Channel.SampleCounterGain >= 1:
		return invalid("channel.sample_counter_gain must be in (0, 1), got %v", c.Channel.SampleCounterGain)
	case c.AGC.Reference <= 0:
		return invalid("agc.reference must be positive, got %v", c.AGC.Reference)
	case c.AGC.Rate <= 0 || c.AGC.Rate > 1:
		return invalid("agc.rate must be in (0, 1], got %v", c.AGC.Rate)
	case c.AGC.MinGain <= 0 || c.AGC.MaxGain < c.AGC.MinGain:
		return invalid("agc gain limits [%v, %v] are not a valid range", c.AGC.MinGain, c.AGC.MaxGain)
	case c.Costas.Damping <= 0:
		return invalid("costas.damping must be positive, got %v", c.Costas.Damping)
	case c.Costas.MaxFrequencyHz <= 0:
		return invalid("costas.max_frequency_hz must be positive, got %v", c.Costas.MaxFrequencyHz)
	case c.Costas.LockAlpha <= 0 || c.Costas.LockAlpha > 1:
		return invalid("costas.lock_alpha must be in (0, 1], got %v", c.Costas.LockAlpha)
	case c.Power.IntervalMs <= 0:
		return invalid("power.interval_ms must be positive, got %d", c.Power.IntervalMs)
	case c.Sync.SyncThreshold <= 0:
		return invalid("sync.sync_threshold must be positive, got %d", c.Sync.SyncThreshold)
	case c.Assembler.ChunkSize <= 0:
		return invalid("assembler.chunk_size must be positive, got %d", c.Assembler.ChunkSize)
	case c.Framer.BurstDibits <= 0:
		return invalid("framer.burst_dibits must be positive, got %d", c.Framer.BurstDibits)
	case c.Framer.MaxSyncBitErrors < 0:
		return invalid("framer.max_sync_bit_errors must not be negative, got %d", c.Framer.MaxSyncBitErrors)
	}
	return nil
}

func (c SourceConf) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return invalid("source.sample_rate must be positive, got %v", c.SampleRate)
	case c.BlockSize <= 0:
		return invalid("source.block_size must be positive, got %d", c.BlockSize)
	}
	return nil
}
