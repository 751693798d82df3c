package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/tetratuner/config"
	"github.com/jrwynneiii/tetratuner/datalink"
	"github.com/jrwynneiii/tetratuner/decode"
	"github.com/jrwynneiii/tetratuner/radio"
	"github.com/jrwynneiii/tetratuner/recorder"
	"github.com/jrwynneiii/tetratuner/telemetry"
	"github.com/jrwynneiii/tetratuner/tui"
	"github.com/knadh/koanf/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// applyFlags lets command line flags override the loaded configuration.
func applyFlags(k *koanf.Koanf, f SourceFlags) {
	set := func(key string, value any) {
		if err := k.Set(key, value); err != nil {
			log.Warnf("Could not apply flag for %s: %v", key, err)
		}
	}
	if f.Format != "" {
		set("source.format", f.Format)
	}
	if f.SampleRate > 0 {
		set("source.sample_rate", f.SampleRate)
	}
	if f.BlockSize > 0 {
		set("source.block_size", f.BlockSize)
	}
	if f.Realtime {
		set("source.realtime", true)
	}
	if f.Output != "" {
		set("record.path", f.Output)
	}
	if f.Compress {
		set("record.compress", true)
	}
	if f.Metrics != "" {
		set("metrics.listen", f.Metrics)
	}
}

func logEvent(event radio.Event) {
	switch event.Kind {
	case radio.ChannelPower:
		log.Debugf("[decode] %s", event)
	default:
		log.Infof("[decode] %s", event)
	}
}

func serveMetrics(reg *prometheus.Registry, listen string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infof("Serving metrics on %s/metrics", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
	return srv
}

func run(ctx context.Context, k *koanf.Koanf, path string, monitor bool) error {
	decConf, err := config.Decoder(k)
	if err != nil {
		return err
	}
	srcConf, err := config.Source(k)
	if err != nil {
		return err
	}
	recConf := config.Record(k)
	tuiConf := config.Tui(k)

	decoder, err := decode.New(decConf)
	if err != nil {
		return err
	}
	source, err := radio.NewFileSource(path, srcConf)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	stats := telemetry.New(reg, decoder.ID().String()[:8], tuiConf.HistoryLength)
	stats.Attach(decoder)

	source.SetEventListener(radio.EventConsumerFunc(func(event radio.Event) {
		stats.ReceiveEvent(event)
		decoder.ReceiveEvent(event)
	}))
	decoder.SetEventListener(radio.EventConsumerFunc(func(event radio.Event) {
		stats.ReceiveEvent(event)
		if !monitor || tuiConf.EnableLogOutput {
			logEvent(event)
		}
	}))
	decoder.SetMessageListener(datalink.MessageConsumerFunc(func(message datalink.Message) {
		stats.CountMessage(message)
		log.Debugf("[datalink] %s", message)
	}))

	if recConf.Path != "" {
		rec, err := recorder.Open(recConf)
		if err != nil {
			return err
		}
		decoder.AddBufferListener(rec)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Errorf("Recording incomplete: %v", err)
			}
			log.Infof("Recorded %d bytes, dropped %d buffers", rec.Written(), rec.Dropped())
		}()
	}

	if listen := config.Metrics(k).Listen; listen != "" {
		srv := serveMetrics(reg, listen)
		defer srv.Shutdown(context.Background())
	}

	decodeFile := func(ctx context.Context) error {
		err := source.Run(ctx, decoder)
		decoder.FlushBuffers()
		snap := stats.Snapshot()
		log.Infof("Decoded %d samples: %d dibits, %d buffers, %d bursts",
			source.SamplesRead(), snap.Dibits, snap.Buffers, snap.Messages)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		return nil
	}

	if !monitor {
		return decodeFile(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- decodeFile(ctx)
	}()
	tui.Start(ctx, cancel, stats, tuiConf)
	return <-done
}
