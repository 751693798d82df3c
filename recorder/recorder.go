package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/jrwynneiii/tetratuner/config"
	"github.com/klauspost/compress/zstd"
)

var ErrClosed = errors.New("recorder is closed")

// Recorder writes dibit byte buffers to a file from its own goroutine.
// Receive never blocks: when the queue is full the buffer is dropped and
// counted.
type Recorder struct {
	queue   chan []byte
	done    chan struct{}
	closing sync.Once

	mu     sync.Mutex
	closed bool

	out     io.WriteCloser
	encoder *zstd.Encoder
	writer  *bufio.Writer

	written atomic.Int64
	dropped atomic.Int64
	err     error
}

// Open creates conf.Path, truncating any existing file.
func Open(conf config.RecordConf) (*Recorder, error) {
	f, err := os.Create(conf.Path)
	if err != nil {
		return nil, fmt.Errorf("could not create recording %s: %w", conf.Path, err)
	}
	r, err := New(f, conf)
	if err != nil {
		f.Close()
		return nil, err
	}
	log.Infof("Recording dibits to %s (compressed: %v)", conf.Path, conf.Compress)
	return r, nil
}

// New records into out, which is closed by Close.
func New(out io.WriteCloser, conf config.RecordConf) (*Recorder, error) {
	r := &Recorder{
		queue: make(chan []byte, max(1, conf.Queue)),
		done:  make(chan struct{}),
		out:   out,
	}
	var w io.Writer = out
	if conf.Compress {
		enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("could not create zstd encoder: %w", err)
		}
		r.encoder = enc
		w = enc
	}
	r.writer = bufio.NewWriter(w)
	go r.run()
	return r, nil
}

// Receive queues a copy of buf.
func (r *Recorder) Receive(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- append([]byte(nil), buf...):
	default:
		if r.dropped.Add(1) == 1 {
			log.Warn("Recorder queue full, dropping buffers")
		}
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for buf := range r.queue {
		if r.err != nil {
			continue
		}
		if _, err := r.writer.Write(buf); err != nil {
			r.err = fmt.Errorf("could not write recording: %w", err)
			log.Error(r.err)
			continue
		}
		r.written.Add(int64(len(buf)))
	}
}

// Written is the number of bytes handed to the output so far.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close drains the queue, flushes and closes the output and returns the
// first error seen. Later calls return ErrClosed.
func (r *Recorder) Close() error {
	err := ErrClosed
	r.closing.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done

		err = r.err
		if ferr := r.writer.Flush(); err == nil && ferr != nil {
			err = fmt.Errorf("could not flush recording: %w", ferr)
		}
		if r.encoder != nil {
			if cerr := r.encoder.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("could not finish zstd stream: %w", cerr)
			}
		}
		if cerr := r.out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("could not close recording: %w", cerr)
		}
	})
	return err
}
