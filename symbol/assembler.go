package symbol

// ByteBufferAssembler packs dibits, most significant bit first, into fixed
// size byte buffers for raw recording.
type ByteBufferAssembler struct {
	size      int
	buffer    []byte
	pos       int
	bits      uint
	listeners *Broadcaster[[]byte]
}

func NewByteBufferAssembler(size int) *ByteBufferAssembler {
	if size <= 0 {
		panic("symbol: byte buffer size must be positive")
	}
	return &ByteBufferAssembler{
		size:      size,
		buffer:    make([]byte, size),
		listeners: NewBroadcaster[[]byte](),
	}
}

func (a *ByteBufferAssembler) Size() int {
	return a.size
}

func (a *ByteBufferAssembler) Receive(d Dibit) {
	a.buffer[a.pos] |= byte(d&0x3) << (6 - a.bits)
	a.bits += 2
	if a.bits < 8 {
		return
	}
	a.bits = 0
	a.pos++
	if a.pos == a.size {
		a.deliver(a.buffer)
	}
}

// Flush delivers the bytes assembled so far, padding a partly filled last
// byte with zero bits, and starts a fresh buffer. It does nothing when no
// dibits are pending.
func (a *ByteBufferAssembler) Flush() {
	n := a.pos
	if a.bits > 0 {
		n++
	}
	if n == 0 {
		return
	}
	a.deliver(a.buffer[:n])
}

func (a *ByteBufferAssembler) deliver(buf []byte) {
	a.listeners.Receive(buf)
	a.buffer = make([]byte, a.size)
	a.pos = 0
	a.bits = 0
}

// Pending is the number of dibits waiting in the current buffer.
func (a *ByteBufferAssembler) Pending() int {
	return a.pos*4 + int(a.bits/2)
}

func (a *ByteBufferAssembler) AddBufferListener(listener ByteBufferConsumer) Subscription {
	return a.listeners.Subscribe(listener)
}

func (a *ByteBufferAssembler) RemoveBufferListener(sub Subscription) {
	a.listeners.Unsubscribe(sub)
}

func (a *ByteBufferAssembler) HasBufferListeners() bool {
	return a.listeners.Len() > 0
}
