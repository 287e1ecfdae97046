package offload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AlexxIT/go2a2dp/pkg/bits"
	"github.com/rs/zerolog"
)

// VendorOpcode - HCI vendor specific A2DP offload command
const VendorOpcode = 0xFD5D

const (
	SubStart   = 0x01
	SubStop    = 0x02
	SubStartV2 = 0x03
	SubStopV2  = 0x04
)

const (
	StatusSuccess = 0x00

	codecInfoSize = 32
	MaxMTUV2      = 663
)

var (
	ErrBusy        = errors.New("offload: busy")
	ErrNotStarted  = errors.New("offload: stream not started")
	ErrUnsupported = errors.New("offload: unsupported params")
)

// Sender - lower stack, sends HCI vendor commands
type Sender interface {
	SendVendorCommand(opcode uint16, payload []byte) error
}

// Stream - session state the controller checks
type Stream struct {
	Handle  uint8
	Started bool
}

// Params - negotiated codec and link parameters of the stream
type Params struct {
	CodecType     uint32
	MaxLatency    uint16
	SCMST         [2]byte // content protection enable and header
	SampleRate    uint32
	BitsPerSample byte
	ChannelMode   byte // 1 mono, 2 stereo
	Bitrate       uint32
	ACLHandle     uint16
	L2CID         uint16
	MTU           uint16
	CodecInfo     []byte

	// V2 - self describing command instead of the fixed layout
	V2           bool
	VendorParams []byte
}

// Controller - single process wide offload handshake
type Controller struct {
	Notify func(handle uint8, ok bool)

	sender Sender
	log    zerolog.Logger

	pending, started    uint8
	hasPending, running bool

	outstanding byte // sub opcode waiting for response
	v2          bool
	aclHandle   uint16
	l2cid       uint16

	mu sync.Mutex
}

func NewController(sender Sender, log zerolog.Logger) *Controller {
	return &Controller{sender: sender, log: log}
}

func (c *Controller) RequestStart(s Stream, p Params) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.outstanding != 0 || c.hasPending {
		c.log.Warn().Msgf("[offload] start %d: busy with %d", s.Handle, c.pending)
		return ErrBusy
	}
	if !s.Started {
		return ErrNotStarted
	}

	var payload []byte
	var err error
	if p.V2 {
		payload, err = MarshalStartV2(p)
	} else {
		payload, err = MarshalStart(p)
	}
	if err != nil {
		return err
	}

	if err = c.sender.SendVendorCommand(VendorOpcode, payload); err != nil {
		return fmt.Errorf("offload: send start: %w", err)
	}

	c.pending, c.hasPending = s.Handle, true
	c.outstanding = payload[0]
	c.v2 = p.V2
	c.aclHandle, c.l2cid = p.ACLHandle, p.L2CID

	c.log.Debug().Msgf("[offload] start handle=%d codec=%d rate=%d", s.Handle, p.CodecType, p.SampleRate)

	return nil
}

// RequestStop stops whatever stream is recorded, even a closed one
func (c *Controller) RequestStop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop()
}

func (c *Controller) stop() error {
	w := bits.NewWriter(nil)
	if c.v2 {
		_ = w.WriteByte(SubStopV2)
		w.WriteUint16LE(c.aclHandle)
		w.WriteUint16LE(c.l2cid)
		_ = w.WriteByte(0) // direction
	} else {
		_ = w.WriteByte(SubStop)
	}

	payload := w.Bytes()

	c.log.Debug().Msgf("[offload] stop handle=%d", c.started)

	c.hasPending, c.running = false, false
	c.outstanding = payload[0]

	if err := c.sender.SendVendorCommand(VendorOpcode, payload); err != nil {
		c.outstanding = 0
		return fmt.Errorf("offload: send stop: %w", err)
	}
	return nil
}

// Cancel stops offload if the handle is pending or started
func (c *Controller) Cancel(handle uint8) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if (c.hasPending && c.pending == handle) || (c.running && c.started == handle) {
		return c.stop()
	}
	return nil
}

// Started - handle of the offloaded stream
func (c *Controller) Started() (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.running
}

// Pending - handle waiting for the start response
func (c *Controller) Pending() (uint8, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.hasPending
}

// OnVendorResponse handles command complete: status, sub opcode
func (c *Controller) OnVendorResponse(b []byte) {
	if len(b) < 2 {
		c.log.Warn().Msgf("[offload] short response % x", b)
		return
	}

	status, sub := b[0], b[1]

	c.mu.Lock()

	// a late start response must not release the stop sent after it
	if sub == c.outstanding {
		c.outstanding = 0
	}

	var notify bool
	var handle uint8
	var ok bool

	switch sub {
	case SubStop, SubStopV2:
		// never reported
	case SubStart, SubStartV2:
		if !c.hasPending {
			break
		}
		handle, notify, ok = c.pending, true, status == StatusSuccess
		c.hasPending = false
		if ok {
			c.started, c.running = handle, true
		}
	default:
		if status != StatusSuccess && c.hasPending {
			handle, notify = c.pending, true
			c.hasPending = false
			c.outstanding = 0
		}
	}

	c.mu.Unlock()

	c.log.Trace().Msgf("[offload] response status=%d sub=%d", status, sub)

	if notify && c.Notify != nil {
		c.Notify(handle, ok)
	}
}

// MarshalStart - fixed layout start command
func MarshalStart(p Params) ([]byte, error) {
	rate, ok := sampleRates[p.SampleRate]
	if !ok {
		return nil, fmt.Errorf("%w: sample rate %d", ErrUnsupported, p.SampleRate)
	}
	depth, ok := bitsPerSample[p.BitsPerSample]
	if !ok {
		return nil, fmt.Errorf("%w: bits per sample %d", ErrUnsupported, p.BitsPerSample)
	}
	if p.ChannelMode != 1 && p.ChannelMode != 2 {
		return nil, fmt.Errorf("%w: channel mode %d", ErrUnsupported, p.ChannelMode)
	}
	if len(p.CodecInfo) > codecInfoSize {
		return nil, fmt.Errorf("%w: codec info %d bytes", ErrUnsupported, len(p.CodecInfo))
	}

	w := bits.NewWriter(make([]byte, 0, 25+codecInfoSize))
	_ = w.WriteByte(SubStart)
	w.WriteUint32LE(p.CodecType)
	w.WriteUint16LE(p.MaxLatency)
	w.WriteBytes(p.SCMST[:]...)
	w.WriteUint32LE(rate)
	_ = w.WriteByte(depth)
	_ = w.WriteByte(p.ChannelMode)
	w.WriteUint32LE(p.Bitrate)
	w.WriteUint16LE(p.ACLHandle)
	w.WriteUint16LE(p.L2CID)
	w.WriteUint16LE(p.MTU)
	w.WriteBytes(p.CodecInfo...)
	w.WriteBytes(make([]byte, codecInfoSize-len(p.CodecInfo))...)

	return w.Bytes(), nil
}

// MarshalStartV2 - self describing start command
func MarshalStartV2(p Params) ([]byte, error) {
	if len(p.VendorParams) > 0xFF {
		return nil, fmt.Errorf("%w: vendor params %d bytes", ErrUnsupported, len(p.VendorParams))
	}

	mtu := p.MTU
	if mtu > MaxMTUV2 {
		mtu = MaxMTUV2
	}

	w := bits.NewWriter(nil)
	_ = w.WriteByte(SubStartV2)
	w.WriteUint16LE(p.ACLHandle)
	w.WriteUint16LE(p.L2CID)
	_ = w.WriteByte(0) // direction: source
	w.WriteUint16LE(mtu)
	w.WriteBytes(p.SCMST[:]...)
	_ = w.WriteByte(byte(len(p.VendorParams)))
	w.WriteBytes(p.VendorParams...)

	return w.Bytes(), nil
}

var sampleRates = map[uint32]uint32{
	44100: 0x01, 48000: 0x02, 88200: 0x04, 96000: 0x08,
	176400: 0x10, 192000: 0x20, 16000: 0x40, 24000: 0x80,
}

var bitsPerSample = map[byte]byte{16: 0x01, 24: 0x02, 32: 0x04}
