package channel

import (
	"bytes"
	"testing"
	"time"
)

func TestReliableOrderedDeliversInOrder(t *testing.T) {
	c := NewReliableOrdered(nil, time.Hour)
	c.SendMessage([]byte("a"))
	c.SendMessage([]byte("b"))

	msgs := c.GetMessagesToSend(1<<16, 1)
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}

	// Deliver out of order; ReceiveMessage must still yield a, then b.
	c.ProcessMessages([][]byte{msgs[1], msgs[0]})

	first, ok := c.ReceiveMessage()
	if !ok || !bytes.Equal(first, []byte("a")) {
		t.Fatalf("first = %q, %v; want a, true", first, ok)
	}
	second, ok := c.ReceiveMessage()
	if !ok || !bytes.Equal(second, []byte("b")) {
		t.Fatalf("second = %q, %v; want b, true", second, ok)
	}
	if _, ok := c.ReceiveMessage(); ok {
		t.Fatalf("ReceiveMessage after drain = true, want false")
	}
}

func TestReliableOrderedRetransmitsUnackedAfterTimeout(t *testing.T) {
	c := NewReliableOrdered(nil, time.Millisecond)
	c.SendMessage([]byte("x"))

	first := c.GetMessagesToSend(1<<16, 1)
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}

	// Before the resend timeout nothing new is offered.
	if got := c.GetMessagesToSend(1<<16, 2); len(got) != 0 {
		t.Fatalf("immediate resend offered %d messages, want 0", len(got))
	}

	time.Sleep(2 * time.Millisecond)
	resent := c.GetMessagesToSend(1<<16, 3)
	if len(resent) != 1 || !bytes.Equal(resent[0], first[0]) {
		t.Fatalf("resent = %v, want the original message", resent)
	}
}

func TestReliableOrderedAckRetiresMessage(t *testing.T) {
	c := NewReliableOrdered(nil, time.Millisecond)
	c.SendMessage([]byte("x"))
	c.GetMessagesToSend(1<<16, 5)
	c.ProcessAck(5)

	time.Sleep(2 * time.Millisecond)
	if got := c.GetMessagesToSend(1<<16, 6); len(got) != 0 {
		t.Fatalf("acked message resent: %v", got)
	}
}

func TestReliableUnorderedDeliversAsReceived(t *testing.T) {
	c := NewReliableUnordered(nil, time.Hour)
	c.ProcessMessages([][]byte{[]byte("b"), []byte("a")})

	first, _ := c.ReceiveMessage()
	second, _ := c.ReceiveMessage()
	if !bytes.Equal(first, []byte("b")) || !bytes.Equal(second, []byte("a")) {
		t.Errorf("got %q, %q; want b, a (receive order, not reordered)", first, second)
	}
}

func TestUnreliableSequencedDropsStale(t *testing.T) {
	c := NewUnreliableSequenced(nil)
	c.SendMessage([]byte("first"))
	c.SendMessage([]byte("second"))
	msgs := c.GetMessagesToSend(1<<16, 1)
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}

	// Deliver newest first, then stale: the stale one must be dropped.
	c.ProcessMessages([][]byte{msgs[1]})
	c.ProcessMessages([][]byte{msgs[0]})

	got, ok := c.ReceiveMessage()
	if !ok || !bytes.Equal(got, []byte("second")) {
		t.Fatalf("got = %q, %v; want second, true", got, ok)
	}
	if _, ok := c.ReceiveMessage(); ok {
		t.Fatalf("stale message was delivered")
	}
}

func TestUnreliableSequencedNeverRetransmits(t *testing.T) {
	c := NewUnreliableSequenced(nil)
	c.SendMessage([]byte("x"))
	first := c.GetMessagesToSend(1<<16, 1)
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}
	if got := c.GetMessagesToSend(1<<16, 2); len(got) != 0 {
		t.Fatalf("unreliable channel offered %v again, want nothing", got)
	}
}
