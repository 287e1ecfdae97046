package offload

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type sender struct {
	sent [][]byte
	err  error
}

func (s *sender) SendVendorCommand(opcode uint16, payload []byte) error {
	if opcode != VendorOpcode {
		return errors.New("wrong opcode")
	}
	s.sent = append(s.sent, payload)
	return s.err
}

type result struct {
	handle uint8
	ok     bool
}

func newTestController() (*Controller, *sender, *[]result) {
	s := &sender{}
	c := NewController(s, zerolog.Nop())
	var results []result
	c.Notify = func(handle uint8, ok bool) {
		results = append(results, result{handle, ok})
	}
	return c, s, &results
}

var sbcParams = Params{
	CodecType:     0x01,
	MaxLatency:    0,
	SampleRate:    44100,
	BitsPerSample: 16,
	ChannelMode:   2,
	Bitrate:       327993,
	ACLHandle:     0x0040,
	L2CID:         0x0041,
	MTU:           895,
	CodecInfo:     []byte{0x06, 0x00, 0x00, 0x21, 0x15, 0x02, 0x35},
}

func TestMarshalStart(t *testing.T) {
	b, err := MarshalStart(sbcParams)
	require.Nil(t, err)
	require.Len(t, b, 57)

	require.Equal(t, []byte{
		0x01,
		0x01, 0x00, 0x00, 0x00, // codec type
		0x00, 0x00, // max latency
		0x00, 0x00, // scms-t
		0x01, 0x00, 0x00, 0x00, // 44100
		0x01,                   // 16 bits
		0x02,                   // stereo
		0x39, 0x01, 0x05, 0x00, // bitrate
		0x40, 0x00, // acl handle
		0x41, 0x00, // l2cap cid
		0x7F, 0x03, // mtu
		0x06, 0x00, 0x00, 0x21, 0x15, 0x02, 0x35,
	}, b[:32])
	require.Equal(t, make([]byte, 25), b[32:])

	p := sbcParams
	p.SampleRate = 22050
	_, err = MarshalStart(p)
	require.ErrorIs(t, err, ErrUnsupported)

	p = sbcParams
	p.BitsPerSample = 8
	_, err = MarshalStart(p)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestMarshalStartV2(t *testing.T) {
	p := sbcParams
	p.V2 = true
	p.SCMST = [2]byte{1, 0}
	p.VendorParams = []byte{0xAA, 0xBB}

	b, err := MarshalStartV2(p)
	require.Nil(t, err)
	require.Equal(t, []byte{
		0x03,
		0x40, 0x00, // connection handle
		0x41, 0x00, // cid
		0x00,       // direction
		0x97, 0x02, // mtu capped at 663
		0x01, 0x00, // scms-t
		0x02, 0xAA, 0xBB,
	}, b)
}

func TestStartStop(t *testing.T) {
	c, s, results := newTestController()

	err := c.RequestStart(Stream{Handle: 1, Started: true}, sbcParams)
	require.Nil(t, err)
	require.Len(t, s.sent, 1)

	handle, ok := c.Pending()
	require.True(t, ok)
	require.Equal(t, uint8(1), handle)

	c.OnVendorResponse([]byte{StatusSuccess, SubStart})
	require.Equal(t, []result{{1, true}}, *results)

	handle, ok = c.Started()
	require.True(t, ok)
	require.Equal(t, uint8(1), handle)

	// other handle is ignored
	require.Nil(t, c.Cancel(2))
	require.Len(t, s.sent, 1)

	require.Nil(t, c.Cancel(1))
	require.Equal(t, []byte{SubStop}, s.sent[1])

	_, ok = c.Started()
	require.False(t, ok)

	// stop responses are never reported, even failures
	c.OnVendorResponse([]byte{0x0C, SubStop})
	require.Len(t, *results, 1)
}

func TestStartBusy(t *testing.T) {
	c, s, results := newTestController()

	err := c.RequestStart(Stream{Handle: 1, Started: true}, sbcParams)
	require.Nil(t, err)

	err = c.RequestStart(Stream{Handle: 2, Started: true}, sbcParams)
	require.ErrorIs(t, err, ErrBusy)
	require.Len(t, s.sent, 1)

	handle, ok := c.Pending()
	require.True(t, ok)
	require.Equal(t, uint8(1), handle)

	c.OnVendorResponse([]byte{0x01, SubStart})
	require.Equal(t, []result{{1, false}}, *results)

	_, ok = c.Pending()
	require.False(t, ok)
	_, ok = c.Started()
	require.False(t, ok)
}

func TestStartNotStarted(t *testing.T) {
	c, s, _ := newTestController()

	err := c.RequestStart(Stream{Handle: 1}, sbcParams)
	require.ErrorIs(t, err, ErrNotStarted)
	require.Len(t, s.sent, 0)
}

func TestStopBusy(t *testing.T) {
	c, _, _ := newTestController()

	require.Nil(t, c.RequestStop())

	err := c.RequestStart(Stream{Handle: 1, Started: true}, sbcParams)
	require.ErrorIs(t, err, ErrBusy)

	c.OnVendorResponse([]byte{StatusSuccess, SubStop})

	err = c.RequestStart(Stream{Handle: 1, Started: true}, sbcParams)
	require.Nil(t, err)
}

func TestStopV2(t *testing.T) {
	c, s, _ := newTestController()

	p := sbcParams
	p.V2 = true
	require.Nil(t, c.RequestStart(Stream{Handle: 3, Started: true}, p))

	// stop before the start response
	require.Nil(t, c.Cancel(3))
	require.Equal(t, []byte{SubStopV2, 0x40, 0x00, 0x41, 0x00, 0x00}, s.sent[1])

	_, ok := c.Pending()
	require.False(t, ok)
}

func TestSendError(t *testing.T) {
	c, s, _ := newTestController()
	s.err = errors.New("closed")

	err := c.RequestStart(Stream{Handle: 1, Started: true}, sbcParams)
	require.NotNil(t, err)

	_, ok := c.Pending()
	require.False(t, ok)
}

func TestStopThenLateStartResponse(t *testing.T) {
	c, s, results := newTestController()

	require.Nil(t, c.RequestStart(Stream{Handle: 1, Started: true}, sbcParams))
	require.Nil(t, c.Cancel(1))
	require.Equal(t, []byte{SubStop}, s.sent[1])

	// start response after the stop: not reported, stop still outstanding
	c.OnVendorResponse([]byte{StatusSuccess, SubStart})
	require.Len(t, *results, 0)

	err := c.RequestStart(Stream{Handle: 2, Started: true}, sbcParams)
	require.ErrorIs(t, err, ErrBusy)
	require.Len(t, s.sent, 2)

	c.OnVendorResponse([]byte{StatusSuccess, SubStop})

	require.Nil(t, c.RequestStart(Stream{Handle: 2, Started: true}, sbcParams))
	require.Len(t, s.sent, 3)

	_, ok := c.Started()
	require.False(t, ok)
}
