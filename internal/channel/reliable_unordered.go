package channel

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReliableUnordered delivers every message at least once, retransmitting
// unacked messages after a fixed timeout, but applies no ordering on the
// receive side. It reuses the same retransmission bookkeeping as
// ReliableOrdered without the order-id framing; messages carry no id, so a
// retransmitted copy of a message that had already arrived is delivered
// again.
type ReliableUnordered struct {
	mu    sync.Mutex
	log   *zap.Logger
	queue *retryQueue
	inbox [][]byte
}

// NewReliableUnordered builds a channel that resends unacked messages after
// resendAfter. A nil logger is replaced with a no-op one.
func NewReliableUnordered(log *zap.Logger, resendAfter time.Duration) *ReliableUnordered {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReliableUnordered{log: log, queue: newRetryQueue(resendAfter)}
}

func (c *ReliableUnordered) SendMessage(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.enqueue(data)
}

func (c *ReliableUnordered) GetMessagesToSend(budgetBytes int, currentSequence uint16) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.due(budgetBytes, currentSequence, time.Now())
}

func (c *ReliableUnordered) ProcessAck(sequence uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.ack(sequence)
	c.log.Debug("ack processed", zap.Uint16("sequence", sequence))
}

func (c *ReliableUnordered) ProcessMessages(messages [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox = append(c.inbox, messages...)
}

func (c *ReliableUnordered) ReceiveMessage() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) == 0 {
		return nil, false
	}
	msg := c.inbox[0]
	c.inbox = c.inbox[1:]
	return msg, true
}
