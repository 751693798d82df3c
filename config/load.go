package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const EnvPrefix = "TETRATUNER_"

// Defaults mirror the reference TETRA channel: 18 ksym/s, 50 kHz initial
// sample rate, 300 Hz PLL bandwidth and 300 byte recording buffers.
var Defaults = map[string]any{
	"channel.symbol_rate":         18000.0,
	"channel.initial_sample_rate": 50000.0,
	"channel.pll_bandwidth":       300,
	"channel.sample_counter_gain": 0.3,
	"filter.pass_frequency":       11250.0,
	"filter.stop_frequency":       13000.0,
	"filter.attenuation":          60.0,
	"filter.window":               "hann",
	"agc.rate":                    0.05,
	"agc.reference":               1.0,
	"agc.gain":                    1.0,
	"agc.max_gain":                10000.0,
	"agc.min_gain":                0.0001,
	"agc.reset_after_ms":          1000,
	"costas.damping":              0.707,
	"costas.max_frequency_hz":     5000.0,
	"costas.lock_alpha":           0.01,
	"costas.lock_threshold":       0.35,
	"power.interval_ms":           500,
	"sync.sync_threshold":         3,
	"assembler.chunk_size":        300,
	"framer.burst_dibits":         255,
	"framer.max_sync_bit_errors":  4,
	"framer.max_missed_bursts":    4,
	"source.format":               "cf32",
	"source.sample_rate":          50000.0,
	"source.block_size":           4096,
	"source.realtime":             false,
	"record.path":                 "",
	"record.compress":             false,
	"record.queue":                64,
	"metrics.listen":              "",
	"tui.refresh_ms":              500,
	"tui.power_floor_db":          -100.0,
	"tui.history_length":          120,
	"tui.lock_threshold_warn_pct": 50.0,
	"tui.lock_threshold_crit_pct": 25.0,
	"tui.enable_log_output":       true,
}

var searchPaths = []string{"/etc/tetratuner/config.hcl", "~/.config/tetratuner/config.hcl", "./config.hcl"}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// FindConfigPath returns the first existing config file from the search
// paths, or "" when there is none.
func FindConfigPath() string {
	for _, path := range searchPaths {
		path = expandHome(path)
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			log.Infof("Found config file: %s", path)
			return path
		}
	}
	log.Info("Config file not found, using defaults")
	return ""
}

// Load layers the defaults, the HCL file at path (skipped when path is empty)
// and TETRATUNER_* environment variables, in that order.
func Load(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("could not load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(expandHome(path)), hcl.Parser(true)); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			key = strings.Replace(key, "_", ".", 1)
			log.Debugf("Found config env var: %s=%v", key, v)
			return key, v
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not read environment: %w", err)
	}

	return k, nil
}

func Decoder(k *koanf.Koanf) (DecoderConf, error) {
	var conf DecoderConf
	if err := k.Unmarshal("", &conf); err != nil {
		return DecoderConf{}, fmt.Errorf("could not unmarshal decoder config: %w", err)
	}
	return conf, conf.Validate()
}

func Source(k *koanf.Koanf) (SourceConf, error) {
	var conf SourceConf
	if err := k.Unmarshal("source", &conf); err != nil {
		return SourceConf{}, fmt.Errorf("could not unmarshal source config: %w", err)
	}
	return conf, conf.Validate()
}

func Record(k *koanf.Koanf) RecordConf {
	var conf RecordConf
	k.Unmarshal("record", &conf)
	return conf
}

func Metrics(k *koanf.Koanf) MetricsConf {
	var conf MetricsConf
	k.Unmarshal("metrics", &conf)
	return conf
}

func Tui(k *koanf.Koanf) TuiConf {
	var conf TuiConf
	k.Unmarshal("tui", &conf)
	return conf
}

// Default returns the decoder configuration built from Defaults alone,
// ignoring config files and the environment.
func Default() DecoderConf {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults, "."), nil); err != nil {
		panic(err)
	}
	conf, err := Decoder(k)
	if err != nil {
		panic(err)
	}
	return conf
}
