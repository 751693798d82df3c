package recorder

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jrwynneiii/tetratuner/config"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memFile struct {
	bytes.Buffer
	closed bool
}

func (m *memFile) Close() error {
	m.closed = true
	return nil
}

func TestRecorderWritesBuffers(t *testing.T) {
	out := &memFile{}
	r, err := New(out, config.RecordConf{Queue: 16})
	require.NoError(t, err)

	buf := []byte{1, 2, 3}
	r.Receive(buf)
	buf[0] = 9 // the recorder keeps its own copy
	r.Receive([]byte{4, 5})
	require.NoError(t, r.Close())

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, out.Bytes())
	assert.True(t, out.closed)
	assert.Equal(t, int64(5), r.Written())
	assert.Zero(t, r.Dropped())

	assert.ErrorIs(t, r.Close(), ErrClosed)
	r.Receive([]byte{6})
	assert.Equal(t, int64(1), r.Dropped())
}

func TestRecorderCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dibits.zst")
	r, err := Open(config.RecordConf{Path: path, Compress: true, Queue: 4})
	require.NoError(t, err)

	want := bytes.Repeat([]byte{0x1b, 0xe4}, 3000)
	for start := 0; start < len(want); start += 300 {
		r.Receive(want[start : start+300])
	}
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	got, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), r.Written()+300*r.Dropped())
	assert.Equal(t, want[:len(got)], got)
}

type blockingWriter struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingWriter) Write(p []byte) (int, error) {
	<-b.release
	return len(p), nil
}

func (b *blockingWriter) Close() error {
	b.once.Do(func() { close(b.release) })
	return nil
}

func TestRecorderNeverBlocks(t *testing.T) {
	w := &blockingWriter{release: make(chan struct{})}
	r, err := New(w, config.RecordConf{Queue: 2})
	require.NoError(t, err)

	// bufio absorbs small writes, so use buffers larger than its 4 KiB
	for idx := 0; idx < 20; idx++ {
		r.Receive(make([]byte, 8192))
	}
	assert.Positive(t, r.Dropped())

	close(w.release)
	w.once.Do(func() {})
	require.NoError(t, r.Close())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingWriter) Close() error              { return nil }

func TestRecorderReportsWriteError(t *testing.T) {
	r, err := New(failingWriter{}, config.RecordConf{Queue: 4})
	require.NoError(t, err)
	r.Receive(make([]byte, 8192))
	err = r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
