// Package netcode implements the Remote Connection: it ties sequence
// allocation, the redundant-ack bitfield, fragmentation, channel delegation,
// and liveness timers together into a single per-peer session. Unlike the
// teacher's heavily sync.RWMutex-guarded Session, a Connection carries no
// internal locks — it is meant to be driven by a single goroutine per peer,
// the way a cooperative event loop would.
package netcode

import (
	"fmt"
	"sort"
	"time"

	"netreliant/internal/channel"
	"netreliant/internal/fragment"
	"netreliant/internal/security"
	"netreliant/internal/seqbuffer"
	"netreliant/internal/wire"
	"netreliant/pkg/logger"
)

type sentPacket struct {
	sendTime time.Time
	size     int
	acked    bool
}

type receivedPacket struct {
	recvTime time.Time
	size     int
}

// Egress delivers one wrapped datagram to peer. The outer socket-pumping
// runtime implements this; netreliant's core never touches a net.Conn
// directly.
type Egress interface {
	SendTo(data []byte, peer string) error
}

// Connection is one peer's reliability session: sequencing, acks,
// fragmentation, and the channels riding on top of them.
type Connection struct {
	peer     string
	config   Config
	security security.Service

	channels   map[uint8]channel.Channel
	channelIDs []uint8

	nextSequence uint16
	sentBuf      *seqbuffer.Buffer[*sentPacket]
	recvBuf      *seqbuffer.Buffer[*receivedPacket]
	reasmBuf     *seqbuffer.Buffer[*fragment.Entry]

	acksPending []uint16

	heartbeatTimer *Timer
	timeoutTimer   *Timer

	network NetworkInfo
}

// NewConnection builds a Connection for peer, using sec to wrap/unwrap
// every datagram.
func NewConnection(peer string, cfg Config, sec security.Service) *Connection {
	return &Connection{
		peer:           peer,
		config:         cfg,
		security:       sec,
		channels:       make(map[uint8]channel.Channel),
		sentBuf:        seqbuffer.New[*sentPacket](cfg.SentPacketsBufferSize),
		recvBuf:        seqbuffer.New[*receivedPacket](cfg.ReceivedPacketsBufferSize),
		reasmBuf:       seqbuffer.New[*fragment.Entry](cfg.Fragment.ReassemblyBufferSize),
		heartbeatTimer: NewTimer(cfg.HeartbeatTime),
		timeoutTimer:   NewTimer(cfg.TimeoutDuration),
	}
}

// AddChannel registers ch under id. Channel ids are iterated in ascending
// order when building outbound packets, so packing is deterministic.
func (c *Connection) AddChannel(id uint8, ch channel.Channel) {
	if _, exists := c.channels[id]; !exists {
		c.channelIDs = append(c.channelIDs, id)
		sort.Slice(c.channelIDs, func(i, j int) bool { return c.channelIDs[i] < c.channelIDs[j] })
	}
	c.channels[id] = ch
}

// Peer returns the address this connection is bound to.
func (c *Connection) Peer() string { return c.peer }

// HasTimedOut reports whether no datagram has been received within the
// configured timeout duration.
func (c *Connection) HasTimedOut() bool { return c.timeoutTimer.IsFinished() }

// NetworkInfo returns the latest RTT/loss/bandwidth estimate.
func (c *Connection) NetworkInfo() NetworkInfo { return c.network }

// SendMessage queues data for delivery over channelID. Panics if the
// channel was never registered, the same way an out-of-range slice index
// would — this is a programming error in the caller, not a runtime
// condition to recover from.
func (c *Connection) SendMessage(channelID uint8, data []byte) {
	ch, ok := c.channels[channelID]
	if !ok {
		panic(fmt.Sprintf("netcode: send to unregistered channel %d", channelID))
	}
	ch.SendMessage(data)
}

// ReceiveMessage pops the next message ready for the application on
// channelID, if any.
func (c *Connection) ReceiveMessage(channelID uint8) ([]byte, bool) {
	ch, ok := c.channels[channelID]
	if !ok {
		return nil, false
	}
	return ch.ReceiveMessage()
}

// getPacket asks every channel for messages ready to go out under the
// not-yet-consumed next sequence number, and serializes whatever comes
// back. A nil, nil result means there is nothing to send this tick.
func (c *Connection) getPacket() ([]byte, error) {
	seq := c.nextSequence
	var channelPackets []wire.ChannelPacketData
	for _, id := range c.channelIDs {
		messages := c.channels[id].GetMessagesToSend(c.config.MaxPacketSize, seq)
		if len(messages) == 0 {
			continue
		}
		channelPackets = append(channelPackets, wire.ChannelPacketData{ChannelID: id, Messages: messages})
	}
	if len(channelPackets) == 0 {
		return nil, nil
	}
	payload, err := wire.EncodeChannelPackets(channelPackets)
	if err != nil {
		return nil, &Error{Kind: KindSerializationFailed, Err: err}
	}
	return payload, nil
}

// SendPackets builds and transmits whatever the channels have ready. If
// they have nothing and the heartbeat timer has elapsed, it sends a bare
// heartbeat instead so the peer's timeout timer keeps getting reset.
// Heartbeats bypass sendPayload entirely: they consume no sequence number
// and leave no sentPacket record.
func (c *Connection) SendPackets(egress Egress) error {
	payload, err := c.getPacket()
	if err != nil {
		return err
	}
	if payload != nil {
		if err := c.sendPayload(payload, egress); err != nil {
			return err
		}
		c.heartbeatTimer.Reset()
		return nil
	}
	if c.heartbeatTimer.IsFinished() {
		ack, ackBits := c.recvBuf.AckBits()
		pkt := wire.Packet{Kind: wire.KindHeartbeat, Heartbeat: &wire.Heartbeat{Ack: wire.AckData{Ack: ack, AckBits: ackBits}}}
		if err := c.transmit(pkt, egress); err != nil {
			return err
		}
		c.heartbeatTimer.Reset()
	}
	return nil
}

func (c *Connection) sendPayload(payload []byte, egress Egress) error {
	if len(payload) > c.config.MaxPacketSize {
		return &Error{Kind: KindMaxPacketSize}
	}

	sequence := c.nextSequence
	c.nextSequence++
	c.sentBuf.Insert(sequence, &sentPacket{sendTime: time.Now(), size: len(payload)})

	ack, ackBits := c.recvBuf.AckBits()
	ackData := wire.AckData{Ack: ack, AckBits: ackBits}

	if len(payload) > c.config.Fragment.Above {
		frags, err := fragment.BuildFragments(payload, sequence, ackData, c.config.Fragment)
		if err != nil {
			return &Error{Kind: KindFragment, Err: err}
		}
		logger.Debug("sending fragmented packet %d (%d fragments) to %s", sequence, len(frags), c.peer)
		for _, f := range frags {
			frag := f
			if err := c.transmit(wire.Packet{Kind: wire.KindFragment, Fragment: &frag}, egress); err != nil {
				return err
			}
		}
		return nil
	}

	logger.Debug("sending packet %d (%d bytes) to %s", sequence, len(payload), c.peer)
	normal := &wire.Normal{Sequence: sequence, Ack: ackData, Payload: payload}
	return c.transmit(wire.Packet{Kind: wire.KindNormal, Normal: normal}, egress)
}

func (c *Connection) transmit(pkt wire.Packet, egress Egress) error {
	raw, err := wire.Encode(pkt)
	if err != nil {
		return &Error{Kind: KindSerializationFailed, Err: err}
	}
	wrapped, err := c.security.Wrap(raw)
	if err != nil {
		return &Error{Kind: KindSecurity, Err: err}
	}
	if err := egress.SendTo(wrapped, c.peer); err != nil {
		return &Error{Kind: KindIO, Err: err}
	}
	return nil
}

// Disconnect sends a connection-teardown frame carrying code, bypassing
// channels and sequencing entirely.
func (c *Connection) Disconnect(egress Egress, code uint8) error {
	return c.transmit(wire.Packet{Kind: wire.KindConnection, Connection: &wire.ConnectionFrame{Error: &code}}, egress)
}

// ProcessPayload unwraps and decodes one inbound datagram, folds its acks
// into the sent-packet bookkeeping, reassembles fragments if needed, and
// routes any resulting channel payload to the owning channels.
func (c *Connection) ProcessPayload(datagram []byte) error {
	c.timeoutTimer.Reset()

	raw, err := c.security.Unwrap(datagram)
	if err != nil {
		return &Error{Kind: KindSecurity, Err: err}
	}

	pkt, err := wire.Decode(raw)
	if err != nil {
		return &Error{Kind: KindSerializationFailed, Err: err}
	}

	var payload []byte
	switch pkt.Kind {
	case wire.KindNormal:
		n := pkt.Normal
		c.recvBuf.Insert(n.Sequence, &receivedPacket{recvTime: time.Now(), size: len(n.Payload)})
		c.processAcks(n.Ack)
		payload = n.Payload

	case wire.KindFragment:
		f := pkt.Fragment
		if rp, ok := c.recvBuf.Get(f.Sequence); ok {
			rp.size += len(f.Payload)
		} else {
			c.recvBuf.Insert(f.Sequence, &receivedPacket{recvTime: time.Now(), size: len(f.Payload)})
		}
		c.processAcks(f.Ack)
		reassembled, err := fragment.HandleFragment(c.reasmBuf, *f, c.config.Fragment)
		if err != nil {
			return &Error{Kind: KindFragment, Err: err}
		}
		payload = reassembled

	case wire.KindHeartbeat:
		c.processAcks(pkt.Heartbeat.Ack)

	case wire.KindConnection:
		if pkt.Connection.Error != nil {
			return &Error{Kind: KindConnection, Err: &ConnectionError{Code: *pkt.Connection.Error}}
		}
	}

	c.drainAcks()

	if payload == nil {
		return nil
	}

	channelPackets, err := wire.DecodeChannelPackets(payload)
	if err != nil {
		return &Error{Kind: KindSerializationFailed, Err: err}
	}
	for _, cp := range channelPackets {
		ch, ok := c.channels[cp.ChannelID]
		if !ok {
			logger.Warn("dropping packet for unknown channel %d from %s", cp.ChannelID, c.peer)
			continue
		}
		ch.ProcessMessages(cp.Messages)
	}
	return nil
}

// processAcks walks the 32 bits of ack, recording each newly-acked sent
// packet for drainAcks to dispatch and folding its round-trip sample into
// the RTT estimate. Bits for sequences this side never sent, or already
// marked acked, are no-ops, which makes redelivery of the same ack
// idempotent.
func (c *Connection) processAcks(ack wire.AckData) {
	now := time.Now()
	for i := uint32(0); i < 32; i++ {
		if ack.AckBits&(1<<i) == 0 {
			continue
		}
		seq := ack.Ack - uint16(i)
		sp, ok := c.sentBuf.Get(seq)
		if !ok || sp.acked {
			continue
		}
		sp.acked = true
		c.acksPending = append(c.acksPending, seq)
		c.network.observeRTT(now.Sub(sp.sendTime).Seconds(), c.config.MeasureSmoothingFactor)
	}
}

// drainAcks hands every newly-acked sequence to every channel, in
// channel-id order, the way renet's process_payload dispatches process_ack
// across all channels rather than just the one that happened to carry the
// message.
func (c *Connection) drainAcks() {
	for _, seq := range c.acksPending {
		for _, id := range c.channelIDs {
			c.channels[id].ProcessAck(seq)
		}
	}
	c.acksPending = c.acksPending[:0]
}

// UpdateNetworkInfo recomputes sent/received bandwidth and packet loss over
// a trailing sample window, and pushes the refreshed estimate to metrics.
// Call this periodically (e.g. once per tick), not per packet.
func (c *Connection) UpdateNetworkInfo() {
	c.updateSentBandwidth()
	c.updateReceivedBandwidth()
	c.network.report(c.peer)
}

func (c *Connection) updateSentBandwidth() {
	sampleSize := int(c.config.SentPacketsBufferSize) / 4
	if sampleSize == 0 {
		return
	}
	base := c.sentBuf.Sequence() - uint16(sampleSize)

	dropped := 0
	var bytesSent int
	var start, end time.Time
	for i := 0; i < sampleSize; i++ {
		sp, ok := c.sentBuf.Get(base + uint16(i))
		if !ok || sp.size == 0 {
			continue
		}
		bytesSent += sp.size
		if start.IsZero() || sp.sendTime.Before(start) {
			start = sp.sendTime
		}
		if sp.sendTime.After(end) {
			end = sp.sendTime
		}
		if !sp.acked {
			dropped++
		}
	}

	loss := float64(dropped) / float64(sampleSize) * 100
	c.network.observeLoss(loss, c.config.MeasureSmoothingFactor)

	if end.After(start) {
		kbps := float64(bytesSent) / end.Sub(start).Seconds() * 8 / 1000
		c.network.observeSentBandwidth(kbps, c.config.MeasureSmoothingFactor)
	}
}

func (c *Connection) updateReceivedBandwidth() {
	sampleSize := int(c.config.ReceivedPacketsBufferSize) / 4
	if sampleSize == 0 {
		return
	}
	base := c.recvBuf.Sequence() - uint16(sampleSize) + 1

	var bytesReceived int
	var start, end time.Time
	for i := 0; i < sampleSize; i++ {
		rp, ok := c.recvBuf.Get(base + uint16(i))
		if !ok {
			continue
		}
		bytesReceived += rp.size
		if start.IsZero() || rp.recvTime.Before(start) {
			start = rp.recvTime
		}
		if rp.recvTime.After(end) {
			end = rp.recvTime
		}
	}

	if end.After(start) {
		kbps := float64(bytesReceived) / end.Sub(start).Seconds() * 8 / 1000
		c.network.observeReceivedBandwidth(kbps, c.config.MeasureSmoothingFactor)
	}
}
