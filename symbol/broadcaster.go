package symbol

// Consumer receives values of one type.
type Consumer[T any] interface {
	Receive(value T)
}

type ConsumerFunc[T any] func(value T)

func (f ConsumerFunc[T]) Receive(value T) {
	f(value)
}

type (
	SymbolConsumer     = Consumer[Dibit]
	ByteBufferConsumer = Consumer[[]byte]
)

// Subscription identifies one registration with a Broadcaster.
type Subscription uint64

type subscriber[T any] struct {
	id       Subscription
	consumer Consumer[T]
}

// Broadcaster delivers every value to all subscribers, synchronously and in
// subscription order. It is not safe for concurrent use.
type Broadcaster[T any] struct {
	subscribers []subscriber[T]
	next        Subscription
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{}
}

func (b *Broadcaster[T]) Subscribe(consumer Consumer[T]) Subscription {
	b.next++
	b.subscribers = append(b.subscribers, subscriber[T]{id: b.next, consumer: consumer})
	return b.next
}

// Unsubscribe removes the registration; unknown or zero subscriptions are
// ignored.
func (b *Broadcaster[T]) Unsubscribe(sub Subscription) {
	for idx, s := range b.subscribers {
		if s.id == sub {
			b.subscribers = append(b.subscribers[:idx:idx], b.subscribers[idx+1:]...)
			return
		}
	}
}

func (b *Broadcaster[T]) Len() int {
	return len(b.subscribers)
}

func (b *Broadcaster[T]) Receive(value T) {
	for _, s := range b.subscribers {
		s.consumer.Receive(value)
	}
}

func (b *Broadcaster[T]) Clear() {
	b.subscribers = nil
}
