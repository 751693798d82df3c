package datalink

// MessageProcessor is the single forwarding point between a framer and the
// replaceable message listener.
type MessageProcessor struct {
	listener MessageConsumer
	count    int64
}

func NewMessageProcessor() *MessageProcessor {
	return &MessageProcessor{}
}

func (p *MessageProcessor) Receive(message Message) {
	p.count++
	if p.listener != nil {
		p.listener.Receive(message)
	}
}

func (p *MessageProcessor) SetMessageListener(listener MessageConsumer) {
	p.listener = listener
}

func (p *MessageProcessor) RemoveMessageListener() {
	p.listener = nil
}

func (p *MessageProcessor) HasMessageListener() bool {
	return p.listener != nil
}

// Count is the number of messages seen, delivered or not.
func (p *MessageProcessor) Count() int64 {
	return p.count
}
