package channel

import (
	"encoding/binary"
	"sync"

	"go.uber.org/zap"
)

// UnreliableSequenced delivers the newest message in a lane and never
// retransmits; an inbound message older than the last one delivered is
// dropped rather than buffered. Grounded on cbodonnell-rudp's
// sequenceGreater wrap-aware freshness check, simplified to a plain uint32
// counter since one channel instance never lives long enough to wrap it.
type UnreliableSequenced struct {
	mu  sync.Mutex
	log *zap.Logger

	nextSeq uint32
	pending [][]byte

	haveSeen    bool
	highestSeen uint32
	inbox       [][]byte
}

// NewUnreliableSequenced builds a fire-and-forget sequenced channel. A nil
// logger is replaced with a no-op one.
func NewUnreliableSequenced(log *zap.Logger) *UnreliableSequenced {
	if log == nil {
		log = zap.NewNop()
	}
	return &UnreliableSequenced{log: log}
}

func (c *UnreliableSequenced) SendMessage(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	framed := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(framed, c.nextSeq)
	c.nextSeq++
	copy(framed[4:], data)
	c.pending = append(c.pending, framed)
}

func (c *UnreliableSequenced) GetMessagesToSend(budgetBytes int, currentSequence uint16) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	used := 0
	i := 0
	for ; i < len(c.pending); i++ {
		if used+len(c.pending[i]) > budgetBytes {
			break
		}
		used += len(c.pending[i])
	}
	out := c.pending[:i]
	c.pending = c.pending[i:]
	return out
}

// ProcessAck is a no-op: unreliable messages are never retransmitted, so
// there is nothing to retire.
func (c *UnreliableSequenced) ProcessAck(sequence uint16) {}

func (c *UnreliableSequenced) ProcessMessages(messages [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range messages {
		if len(m) < 4 {
			c.log.Warn("dropping undersized unreliable-sequenced message", zap.Int("len", len(m)))
			continue
		}
		seq := binary.BigEndian.Uint32(m)
		if c.haveSeen && seq <= c.highestSeen {
			continue
		}
		c.haveSeen = true
		c.highestSeen = seq
		c.inbox = append(c.inbox, m[4:])
	}
}

func (c *UnreliableSequenced) ReceiveMessage() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.inbox) == 0 {
		return nil, false
	}
	msg := c.inbox[0]
	c.inbox = c.inbox[1:]
	return msg, true
}
