package stream

import (
	"github.com/pion/rtp"
)

const (
	PayloadTypeMedia = 96
	mediaSSRC        = 1
)

// enqueue wraps an encoded frame into RTP, oldest packets are dropped over limit
func (s *Session) enqueue(payload []byte, samples uint32, limit int) {
	s.sequence++

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         s.MarkerBit,
			PayloadType:    PayloadTypeMedia,
			SequenceNumber: s.sequence,
			Timestamp:      s.timestamp,
			SSRC:           mediaSSRC,
		},
		Payload: payload,
	}

	s.timestamp += samples

	s.media = append(s.media, pkt)
	if limit > 0 && len(s.media) > limit {
		s.media = s.media[len(s.media)-limit:]
	}
}

func (s *Session) dequeue() []*rtp.Packet {
	packets := s.media
	s.media = nil
	return packets
}
