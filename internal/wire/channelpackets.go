package wire

// ChannelPacketData is one channel's share of a packet's payload: a channel
// id plus the raw messages that channel wants delivered in this packet. The
// byte layout of each message is the owning channel's business, not the
// wire schema's.
type ChannelPacketData struct {
	ChannelID uint8
	Messages  [][]byte
}

// EncodeChannelPackets serializes the list of per-channel payloads that
// make up a Normal or Fragment packet's payload field.
func EncodeChannelPackets(in []ChannelPacketData) ([]byte, error) {
	w := NewWriter()
	w.WriteUint16(uint16(len(in)))
	for _, cp := range in {
		w.WriteByte(cp.ChannelID)
		w.WriteUint16(uint16(len(cp.Messages)))
		for _, m := range cp.Messages {
			w.WriteBytes(m)
		}
	}
	return w.Bytes(), nil
}

// DecodeChannelPackets parses the payload produced by EncodeChannelPackets.
func DecodeChannelPackets(data []byte) ([]ChannelPacketData, error) {
	r := NewReader(data)
	count, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]ChannelPacketData, 0, count)
	for i := uint16(0); i < count; i++ {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		msgCount, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		msgs := make([][]byte, 0, msgCount)
		for j := uint16(0); j < msgCount; j++ {
			m, err := r.ReadBytes()
			if err != nil {
				return nil, err
			}
			msgs = append(msgs, m)
		}
		out = append(out, ChannelPacketData{ChannelID: id, Messages: msgs})
	}
	return out, nil
}
