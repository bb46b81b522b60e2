// Command echoserver is a minimal driver that wires netreliant's Remote
// Connection up to real UDP sockets: every peer that sends it a message on
// channel 0 gets that message echoed back. It exists to exercise the full
// send/receive/ack/heartbeat loop end to end, the way the teacher's
// source/server/server.go drives its RakNet sessions with a listen loop and
// ticker-driven updates.
package main

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"netreliant/internal/channel"
	"netreliant/internal/netcode"
	"netreliant/internal/security"
	"netreliant/pkg/logger"
)

type udpEgress struct {
	conn *net.UDPConn
}

func (e *udpEgress) SendTo(data []byte, peer string) error {
	addr, err := net.ResolveUDPAddr("udp", peer)
	if err != nil {
		return err
	}
	_, err = e.conn.WriteToUDP(data, addr)
	return err
}

type peer struct {
	id   uuid.UUID
	conn *netcode.Connection
}

// peerSet guards the shared peer map the listen and updateLoop goroutines
// both touch, the way the teacher's Server guards its session map with
// pendingMu in source/server/server.go.
type peerSet struct {
	mu    sync.RWMutex
	peers map[string]*peer
}

func newPeerSet() *peerSet {
	return &peerSet{peers: make(map[string]*peer)}
}

func (s *peerSet) get(addr string) (*peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[addr]
	return p, ok
}

func (s *peerSet) add(addr string, p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[addr] = p
}

func (s *peerSet) remove(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, addr)
}

// snapshot returns a point-in-time copy of the address->peer mapping, safe
// to range over without holding the lock.
func (s *peerSet) snapshot() map[string]*peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*peer, len(s.peers))
	for addr, p := range s.peers {
		out[addr] = p
	}
	return out
}

func main() {
	addr := &net.UDPAddr{IP: net.ParseIP("0.0.0.0"), Port: 7777}
	sock, err := net.ListenUDP("udp", addr)
	if err != nil {
		logger.Fatal("failed to bind UDP socket: %v", err)
	}
	defer sock.Close()

	logger.Success("echoserver listening on %s", addr.String())

	egress := &udpEgress{conn: sock}
	cfg := netcode.DefaultConfig()
	peers := newPeerSet()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go listen(sock, cfg, peers, done)
	go updateLoop(peers, egress, done)

	<-sigChan
	logger.Info("shutting down")
	close(done)
}

func listen(sock *net.UDPConn, cfg netcode.Config, peers *peerSet, done chan struct{}) {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, from, err := sock.ReadFromUDP(buf)
		if err != nil {
			logger.Warn("read error: %v", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		key := from.String()
		p, ok := peers.get(key)
		if !ok {
			p = newPeer(key, cfg)
			peers.add(key, p)
			logger.Info("new peer %s (%s)", key, p.id)
		}

		if err := p.conn.ProcessPayload(data); err != nil {
			logger.Warn("dropping datagram from %s: %v", key, err)
			continue
		}

		for {
			msg, ok := p.conn.ReceiveMessage(0)
			if !ok {
				break
			}
			p.conn.SendMessage(0, msg)
		}
	}
}

func newPeer(addr string, cfg netcode.Config) *peer {
	conn := netcode.NewConnection(addr, cfg, security.Noop{})
	conn.AddChannel(0, channel.NewReliableOrdered(nil, 200*time.Millisecond))
	return &peer{id: uuid.New(), conn: conn}
}

func updateLoop(peers *peerSet, egress *udpEgress, done chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for addr, p := range peers.snapshot() {
				if p.conn.HasTimedOut() {
					logger.Warn("peer %s (%s) timed out", addr, p.id)
					peers.remove(addr)
					continue
				}
				if err := p.conn.SendPackets(egress); err != nil {
					logger.Warn("send error to %s: %v", addr, err)
				}
				p.conn.UpdateNetworkInfo()
			}
		}
	}
}
