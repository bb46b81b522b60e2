package channel

import (
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReliableOrdered delivers every message exactly once and in the order
// SendMessage was called, retransmitting unacked messages after a fixed
// timeout. Grounded on appnet-org/arpc's ReliableHandler retransmission
// bookkeeping plus the ordered-delivery gap buffering pattern common to UDP
// reliability layers (see cbodonnell-rudp's handleOrderedDelivery).
type ReliableOrdered struct {
	mu    sync.Mutex
	log   *zap.Logger
	queue *retryQueue

	nextSendID uint64
	orderNext  uint64
	pendingIn  map[uint64][]byte
	inbox      [][]byte
}

// NewReliableOrdered builds a channel that resends unacked messages after
// resendAfter. A nil logger is replaced with a no-op one.
func NewReliableOrdered(log *zap.Logger, resendAfter time.Duration) *ReliableOrdered {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReliableOrdered{
		log:       log,
		queue:     newRetryQueue(resendAfter),
		pendingIn: make(map[uint64][]byte),
	}
}

func (c *ReliableOrdered) SendMessage(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSendID
	c.nextSendID++
	framed := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(framed, id)
	copy(framed[8:], data)
	c.queue.enqueue(framed)
}

func (c *ReliableOrdered) GetMessagesToSend(budgetBytes int, currentSequence uint16) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.due(budgetBytes, currentSequence, time.Now())
}

func (c *ReliableOrdered) ProcessAck(sequence uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.ack(sequence)
	c.log.Debug("ack processed", zap.Uint16("sequence", sequence))
}

func (c *ReliableOrdered) ProcessMessages(messages [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range messages {
		if len(m) < 8 {
			c.log.Warn("dropping undersized reliable-ordered message", zap.Int("len", len(m)))
			continue
		}
		id := binary.BigEndian.Uint64(m)
		c.pendingIn[id] = m[8:]
	}
	for {
		data, ok := c.pendingIn[c.orderNext]
		if !ok {
			break
		}
		delete(c.pendingIn, c.orderNext)
		c.inbox = append(c.inbox, data)
		c.orderNext++
	}
}

func (c *ReliableOrdered) ReceiveMessage() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) == 0 {
		return nil, false
	}
	msg := c.inbox[0]
	c.inbox = c.inbox[1:]
	return msg, true
}
