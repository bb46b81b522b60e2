package netcode

import (
	"testing"
	"time"

	"netreliant/internal/channel"
	"netreliant/internal/security"
	"netreliant/internal/wire"
)

// pipeEgress delivers directly into another Connection's ProcessPayload,
// standing in for a real socket in these tests.
type pipeEgress struct {
	other *Connection
}

func (p *pipeEgress) SendTo(data []byte, peer string) error {
	return p.other.ProcessPayload(data)
}

func newTestPair() (*Connection, *Connection, *pipeEgress, *pipeEgress) {
	cfg := DefaultConfig()
	cfg.HeartbeatTime = time.Hour
	a := NewConnection("b", cfg, security.Noop{})
	b := NewConnection("a", cfg, security.Noop{})
	a.AddChannel(0, channel.NewReliableUnordered(nil, time.Hour))
	b.AddChannel(0, channel.NewReliableUnordered(nil, time.Hour))
	return a, b, &pipeEgress{other: b}, &pipeEgress{other: a}
}

func TestSmallRoundTrip(t *testing.T) {
	a, b, egA, _ := newTestPair()
	a.SendMessage(0, []byte("hello"))
	if err := a.SendPackets(egA); err != nil {
		t.Fatalf("SendPackets: %v", err)
	}
	got, ok := b.ReceiveMessage(0)
	if !ok || string(got) != "hello" {
		t.Fatalf("got %q, %v; want hello, true", got, ok)
	}
}

func TestAckPropagation(t *testing.T) {
	a, b, egA, egB := newTestPair()
	a.SendMessage(0, []byte("ping"))
	if err := a.SendPackets(egA); err != nil {
		t.Fatalf("a.SendPackets: %v", err)
	}

	b.SendMessage(0, []byte("pong"))
	if err := b.SendPackets(egB); err != nil {
		t.Fatalf("b.SendPackets: %v", err)
	}

	got, ok := a.ReceiveMessage(0)
	if !ok || string(got) != "pong" {
		t.Fatalf("got %q, %v; want pong, true", got, ok)
	}

	sp, ok := a.sentBuf.Get(0)
	if !ok || !sp.acked {
		t.Fatalf("a's packet 0 acked = %v, want true", ok && sp.acked)
	}
}

func TestSequenceWraparoundRoundTrip(t *testing.T) {
	a, b, egA, _ := newTestPair()
	a.nextSequence = 65534

	for i := 0; i < 4; i++ {
		a.SendMessage(0, []byte{byte(i)})
		if err := a.SendPackets(egA); err != nil {
			t.Fatalf("SendPackets(%d): %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		got, ok := b.ReceiveMessage(0)
		if !ok {
			t.Fatalf("message %d not delivered", i)
		}
		if got[0] != byte(i) {
			t.Errorf("message %d = %v, want [%d]", i, got, i)
		}
	}
	if a.nextSequence != 2 {
		t.Errorf("nextSequence = %d, want 2 after wrapping past 65535", a.nextSequence)
	}
}

type spyChannel struct {
	ackCount map[uint16]int
}

func newSpyChannel() *spyChannel { return &spyChannel{ackCount: map[uint16]int{}} }

func (s *spyChannel) SendMessage(data []byte)                                   {}
func (s *spyChannel) GetMessagesToSend(budget int, seq uint16) [][]byte         { return nil }
func (s *spyChannel) ProcessAck(seq uint16)                                     { s.ackCount[seq]++ }
func (s *spyChannel) ProcessMessages(messages [][]byte)                        {}
func (s *spyChannel) ReceiveMessage() ([]byte, bool)                            { return nil, false }

func TestDuplicateAckIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	a := NewConnection("x", cfg, security.Noop{})
	spy := newSpyChannel()
	a.AddChannel(0, spy)

	a.sentBuf.Insert(5, &sentPacket{sendTime: time.Now(), size: 10})
	ack := wire.AckData{Ack: 5, AckBits: 1}

	a.processAcks(ack)
	a.drainAcks()
	a.processAcks(ack) // same ack redelivered
	a.drainAcks()

	if got := spy.ackCount[5]; got != 1 {
		t.Errorf("ProcessAck(5) called %d times, want 1", got)
	}
}

func TestHeartbeatResetsPeerTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeartbeatTime = time.Millisecond
	cfg.TimeoutDuration = 10 * time.Millisecond
	a := NewConnection("b", cfg, security.Noop{})
	b := NewConnection("a", cfg, security.Noop{})
	eg := &pipeEgress{other: b}

	time.Sleep(2 * time.Millisecond)
	if err := a.SendPackets(eg); err != nil {
		t.Fatalf("SendPackets: %v", err)
	}
	if b.HasTimedOut() {
		t.Errorf("b timed out right after receiving a heartbeat")
	}
}

func TestConnectionTimesOutWithoutTraffic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutDuration = time.Millisecond
	a := NewConnection("x", cfg, security.Noop{})
	if a.HasTimedOut() {
		t.Fatal("connection reports timed out immediately after construction")
	}
	time.Sleep(2 * time.Millisecond)
	if !a.HasTimedOut() {
		t.Error("connection did not time out after exceeding TimeoutDuration")
	}
}

func TestFragmentedRoundTrip(t *testing.T) {
	a, b, egA, _ := newTestPair()
	a.config.Fragment.Above = 16
	a.config.Fragment.Size = 16
	b.config.Fragment.Above = 16
	b.config.Fragment.Size = 16
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	a.SendMessage(0, payload)
	if err := a.SendPackets(egA); err != nil {
		t.Fatalf("SendPackets: %v", err)
	}
	got, ok := b.ReceiveMessage(0)
	if !ok {
		t.Fatal("fragmented message not delivered")
	}
	if len(got) != len(payload) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], payload[i])
		}
	}
}
