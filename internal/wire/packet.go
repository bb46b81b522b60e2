package wire

import "fmt"

// Kind tags which variant of Packet is populated.
type Kind uint8

const (
	KindNormal Kind = iota + 1
	KindFragment
	KindHeartbeat
	KindConnection
)

// AckData is the redundant-ack pair carried by every outbound packet:
// the most recent sequence this side has seen, plus a 32-bit bitmask where
// bit i marks sequence Ack-i as received (bit 0 is Ack itself, bits 1-31
// the 31 sequences before it).
type AckData struct {
	Ack     uint16
	AckBits uint32
}

// Normal carries a single unfragmented payload.
type Normal struct {
	Sequence uint16
	Ack      AckData
	Payload  []byte
}

// Fragment carries one piece of a payload split across multiple packets.
type Fragment struct {
	Sequence     uint16
	Ack          AckData
	FragmentID   uint8
	NumFragments uint8
	Payload      []byte
}

// Heartbeat carries no payload; it exists only to keep acks flowing and the
// peer's timeout timer from firing during quiet periods.
type Heartbeat struct {
	Ack AckData
}

// ConnectionFrame signals that the peer is tearing the connection down,
// optionally carrying a reason code.
type ConnectionFrame struct {
	Error *uint8
}

// Packet is a tagged union over the four wire variants. Exactly one of the
// pointer fields matching Kind is populated.
type Packet struct {
	Kind       Kind
	Normal     *Normal
	Fragment   *Fragment
	Heartbeat  *Heartbeat
	Connection *ConnectionFrame
}

// Encode serializes p to its wire form.
func Encode(p Packet) ([]byte, error) {
	w := NewWriter()
	w.WriteByte(byte(p.Kind))
	switch p.Kind {
	case KindNormal:
		n := p.Normal
		w.WriteUint16(n.Sequence)
		w.WriteUint16(n.Ack.Ack)
		w.WriteUint32(n.Ack.AckBits)
		w.WriteBytes(n.Payload)
	case KindFragment:
		f := p.Fragment
		w.WriteUint16(f.Sequence)
		w.WriteUint16(f.Ack.Ack)
		w.WriteUint32(f.Ack.AckBits)
		w.WriteByte(f.FragmentID)
		w.WriteByte(f.NumFragments)
		w.WriteBytes(f.Payload)
	case KindHeartbeat:
		h := p.Heartbeat
		w.WriteUint16(h.Ack.Ack)
		w.WriteUint32(h.Ack.AckBits)
	case KindConnection:
		cf := p.Connection
		if cf.Error != nil {
			w.WriteByte(1)
			w.WriteByte(*cf.Error)
		} else {
			w.WriteByte(0)
		}
	default:
		return nil, fmt.Errorf("wire: unknown packet kind %d", p.Kind)
	}
	return w.Bytes(), nil
}

// Decode parses a packet previously produced by Encode.
func Decode(data []byte) (Packet, error) {
	r := NewReader(data)
	kb, err := r.ReadByte()
	if err != nil {
		return Packet{}, err
	}
	kind := Kind(kb)
	switch kind {
	case KindNormal:
		seq, err := r.ReadUint16()
		if err != nil {
			return Packet{}, err
		}
		ack, err := r.ReadUint16()
		if err != nil {
			return Packet{}, err
		}
		bits, err := r.ReadUint32()
		if err != nil {
			return Packet{}, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, Normal: &Normal{Sequence: seq, Ack: AckData{Ack: ack, AckBits: bits}, Payload: payload}}, nil

	case KindFragment:
		seq, err := r.ReadUint16()
		if err != nil {
			return Packet{}, err
		}
		ack, err := r.ReadUint16()
		if err != nil {
			return Packet{}, err
		}
		bits, err := r.ReadUint32()
		if err != nil {
			return Packet{}, err
		}
		fid, err := r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		nfrag, err := r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		payload, err := r.ReadBytes()
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, Fragment: &Fragment{
			Sequence: seq, Ack: AckData{Ack: ack, AckBits: bits},
			FragmentID: fid, NumFragments: nfrag, Payload: payload,
		}}, nil

	case KindHeartbeat:
		ack, err := r.ReadUint16()
		if err != nil {
			return Packet{}, err
		}
		bits, err := r.ReadUint32()
		if err != nil {
			return Packet{}, err
		}
		return Packet{Kind: kind, Heartbeat: &Heartbeat{Ack: AckData{Ack: ack, AckBits: bits}}}, nil

	case KindConnection:
		has, err := r.ReadByte()
		if err != nil {
			return Packet{}, err
		}
		cf := &ConnectionFrame{}
		if has == 1 {
			code, err := r.ReadByte()
			if err != nil {
				return Packet{}, err
			}
			cf.Error = &code
		}
		return Packet{Kind: kind, Connection: cf}, nil

	default:
		return Packet{}, fmt.Errorf("wire: unknown packet kind %d", kind)
	}
}
