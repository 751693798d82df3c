package radio

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/tetratuner/config"
)

type StreamType int

const (
	CU8 StreamType = iota
	CS8
	CU16
	CS16
	CF32
	CF64
)

var streamTypeNames = map[string]StreamType{
	"cu8":  CU8,
	"cs8":  CS8,
	"cu16": CU16,
	"cs16": CS16,
	"cf32": CF32,
	"cf64": CF64,
}

func ParseStreamType(name string) (StreamType, error) {
	if st, ok := streamTypeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return st, nil
	}
	return 0, fmt.Errorf("unsupported sample format %q", name)
}

func (s StreamType) String() string {
	for name, st := range streamTypeNames {
		if st == s {
			return name
		}
	}
	return fmt.Sprintf("stream(%d)", int(s))
}

// BytesPerSample is the size of one interleaved I/Q pair.
func (s StreamType) BytesPerSample() int {
	switch s {
	case CU8, CS8:
		return 2
	case CU16, CS16:
		return 4
	case CF32:
		return 8
	case CF64:
		return 16
	}
	return 0
}

// decode converts one interleaved I/Q pair to floats in roughly [-1, 1].
func (s StreamType) decode(b []byte) (float32, float32) {
	switch s {
	case CU8:
		return (float32(b[0]) - 127.5) / 127.5, (float32(b[1]) - 127.5) / 127.5
	case CS8:
		return float32(int8(b[0])) / 128, float32(int8(b[1])) / 128
	case CU16:
		return (float32(binary.LittleEndian.Uint16(b[0:])) - 32767.5) / 32767.5,
			(float32(binary.LittleEndian.Uint16(b[2:])) - 32767.5) / 32767.5
	case CS16:
		return float32(int16(binary.LittleEndian.Uint16(b[0:]))) / 32768,
			float32(int16(binary.LittleEndian.Uint16(b[2:]))) / 32768
	case CF32:
		return math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
			math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	case CF64:
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(b[0:]))),
			float32(math.Float64frombits(binary.LittleEndian.Uint64(b[8:])))
	}
	return 0, 0
}

// FileSource replays a raw interleaved IQ recording as timestamped sample
// blocks.
type FileSource struct {
	Path       string
	SampleType StreamType
	SampleRate float64
	BlockSize  int
	Realtime   bool
	// StartTime stamps the first block, defaults to the time Run is called.
	StartTime time.Time

	events    EventConsumer
	reader    io.Reader
	samples   int64
	blocks    int64
	chunkSize int
}

func NewFileSource(path string, conf config.SourceConf) (*FileSource, error) {
	st, err := ParseStreamType(conf.Format)
	if err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &FileSource{
		Path:       path,
		SampleType: st,
		SampleRate: conf.SampleRate,
		BlockSize:  conf.BlockSize,
		Realtime:   conf.Realtime,
		chunkSize:  conf.BlockSize * st.BytesPerSample(),
	}, nil
}

// NewReaderSource wraps an already open stream, mostly useful for tests.
func NewReaderSource(r io.Reader, conf config.SourceConf) (*FileSource, error) {
	s, err := NewFileSource("", conf)
	if err != nil {
		return nil, err
	}
	s.reader = r
	return s, nil
}

// SetEventListener registers the consumer told about this source's sample
// rate before the first block is delivered.
func (s *FileSource) SetEventListener(listener EventConsumer) {
	s.events = listener
}

func (s *FileSource) SamplesRead() int64 {
	return s.samples
}

func (s *FileSource) BlocksRead() int64 {
	return s.blocks
}

// Run reads the stream until EOF or until ctx is done, pushing one block at a
// time into sink on the calling goroutine. A trailing partial sample is
// discarded.
func (s *FileSource) Run(ctx context.Context, sink SampleConsumer) error {
	r := s.reader
	if r == nil {
		f, err := os.Open(s.Path)
		if err != nil {
			return fmt.Errorf("could not open sample file: %w", err)
		}
		defer f.Close()
		r = f
	}
	r = bufio.NewReaderSize(r, s.chunkSize)

	start := s.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	log.Debugf("[radio] Reading %s samples at %.0f Hz from %q", s.SampleType, s.SampleRate, s.Path)

	if s.events != nil {
		ev := NewSampleRateChange(s.SampleRate)
		ev.Timestamp = start.UnixMilli()
		s.events.ReceiveEvent(ev)
	}

	bps := s.SampleType.BytesPerSample()
	buf := make([]byte, s.chunkSize)
	wallStart := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("could not read samples: %w", err)
		}

		count := n / bps
		if count == 0 {
			return nil
		}

		i := make([]float32, count)
		q := make([]float32, count)
		for idx := 0; idx < count; idx++ {
			i[idx], q[idx] = s.SampleType.decode(buf[idx*bps : (idx+1)*bps])
		}

		offset := time.Duration(float64(s.samples) / s.SampleRate * float64(time.Second))
		block := NewComplexSamples(i, q, start.Add(offset).UnixMilli())
		if err := sink.Receive(block); err != nil {
			return fmt.Errorf("sample consumer rejected block %d: %w", s.blocks, err)
		}
		s.samples += int64(count)
		s.blocks++

		if s.Realtime {
			due := wallStart.Add(time.Duration(float64(s.samples) / s.SampleRate * float64(time.Second)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Until(due)):
			}
		}

		if count < s.BlockSize {
			return nil
		}
	}
}
