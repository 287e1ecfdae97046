package a2dp

import (
	"fmt"
	mbits "math/bits"
	"strings"

	"github.com/AlexxIT/go2a2dp/pkg/bits"
)

type audioField byte

const (
	audioNone audioField = iota
	audioSampleRate
	audioChannels
)

// Field - position of one dimension inside the codec information element
type Field struct {
	Name   string
	Kind   Kind
	Offset int    // first byte of the big-endian window
	Size   int    // window size in bytes
	Mask   uint32 // valid bits inside the window

	MaxOffset    int // KindRange: byte with the max value, min is at Offset
	Lower, Upper uint32

	Rank   []uint32          // KindMask: best value first
	Values map[uint32]uint32 // KindMask: bit to sample rate, ChannelMode or count

	audio audioField
}

// Layout - everything a Codec needs to know about one codec format
type Layout struct {
	ID   CodecID
	Name string
	LOSC byte

	Fields        []Field
	BitsPerSample byte

	// wire bytes of local capabilities and the default configuration
	Source, Sink, Default []byte

	MarkerBit    bool
	OffloadType  uint32
	Bitrate      func(c *Capability) uint32
	VendorParams func(c *Capability) []byte
}

// Codec - Plugin implementation driven by a Layout
type Codec struct {
	layout Layout

	source, sink, defaults *Capability
}

func NewCodec(layout Layout) *Codec {
	c := &Codec{layout: layout}
	c.source = c.mustParse(layout.Source, true)
	c.sink = c.mustParse(layout.Sink, true)
	c.defaults = c.mustParse(layout.Default, false)
	return c
}

func (c *Codec) mustParse(b []byte, asCapability bool) *Capability {
	info, err := c.Parse(b, asCapability)
	if err != nil {
		panic(err)
	}
	return info
}

func (c *Codec) ID() CodecID {
	return c.layout.ID
}

func (c *Codec) Name() string {
	return c.layout.Name
}

func (c *Codec) Source() *Capability {
	return c.source.Clone()
}

func (c *Codec) Sink() *Capability {
	return c.sink.Clone()
}

func (c *Codec) Default() *Capability {
	return c.defaults.Clone()
}

func (c *Codec) Parse(b []byte, asCapability bool) (*Capability, error) {
	h, err := ParseHeader(b)
	if err != nil {
		err.(*ParseError).Codec = c.layout.ID
		return nil, err
	}
	if h.ID != c.layout.ID {
		return nil, &ParseError{Codec: c.layout.ID, Dimension: "codec", Reason: "mismatch " + h.ID.String()}
	}
	if h.Length != c.layout.LOSC {
		return nil, &ParseError{Codec: h.ID, Dimension: "length", Reason: fmt.Sprintf("losc %d, want %d", h.Length, c.layout.LOSC)}
	}

	info := &Capability{ID: h.ID, Dims: make([]Dimension, 0, len(c.layout.Fields))}

	for i := range c.layout.Fields {
		f := &c.layout.Fields[i]
		d := Dimension{Name: f.Name, Kind: f.Kind}

		switch f.Kind {
		case KindMask:
			d.Mask = f.read(b)
			if d.Mask == 0 {
				return nil, &ParseError{Codec: h.ID, Dimension: f.Name, Reason: "no value"}
			}
			if !asCapability && mbits.OnesCount32(d.Mask) != 1 {
				return nil, &ParseError{Codec: h.ID, Dimension: f.Name, Reason: "multiple values"}
			}
		case KindFlag:
			d.Mask = f.read(b)
		case KindRange:
			d.Min, d.Max = uint32(b[f.Offset]), uint32(b[f.MaxOffset])
			if d.Min < f.Lower || d.Max > f.Upper {
				return nil, &ParseError{Codec: h.ID, Dimension: f.Name, Reason: fmt.Sprintf("%d..%d out of bounds", d.Min, d.Max)}
			}
			if d.Min > d.Max {
				return nil, &ParseError{Codec: h.ID, Dimension: f.Name, Reason: "inverted"}
			}
		case KindLimit:
			d.Max = f.read(b) >> mbits.TrailingZeros32(f.Mask)
		}

		info.Dims = append(info.Dims, d)
	}

	return info, nil
}

func (c *Codec) Build(info *Capability) ([]byte, error) {
	if info.ID != c.layout.ID {
		return nil, &ParseError{Codec: c.layout.ID, Dimension: "codec", Reason: "mismatch " + info.ID.String()}
	}

	w := bits.NewWriter(make([]byte, 0, c.layout.LOSC+1))
	_ = w.WriteByte(c.layout.LOSC)
	_ = w.WriteByte(MediaTypeAudio << 4)
	_ = w.WriteByte(byte(info.ID.Type))
	if info.ID.Type == CodecTypeVendor {
		w.WriteUint32LE(info.ID.VendorID)
		w.WriteUint16LE(info.ID.VendorCodec)
	}

	b := make([]byte, int(c.layout.LOSC)+1)
	copy(b, w.Bytes())

	for i := range c.layout.Fields {
		f := &c.layout.Fields[i]

		d := info.Dim(f.Name)
		if d == nil {
			return nil, &ParseError{Codec: info.ID, Dimension: f.Name, Reason: "missing"}
		}

		switch f.Kind {
		case KindMask:
			if mbits.OnesCount32(d.Mask) != 1 || d.Mask&^f.Mask != 0 {
				return nil, &ParseError{Codec: info.ID, Dimension: f.Name, Reason: fmt.Sprintf("invalid value 0x%x", d.Mask)}
			}
			f.write(b, d.Mask)
		case KindFlag:
			f.write(b, d.Mask&f.Mask)
		case KindRange:
			if d.Min > d.Max {
				return nil, &ParseError{Codec: info.ID, Dimension: f.Name, Reason: "inverted"}
			}
			if d.Min < f.Lower || d.Max > f.Upper {
				return nil, &ParseError{Codec: info.ID, Dimension: f.Name, Reason: fmt.Sprintf("%d..%d out of bounds", d.Min, d.Max)}
			}
			b[f.Offset], b[f.MaxOffset] = byte(d.Min), byte(d.Max)
		case KindLimit:
			v := d.Max << mbits.TrailingZeros32(f.Mask)
			if v&^f.Mask != 0 {
				return nil, &ParseError{Codec: info.ID, Dimension: f.Name, Reason: fmt.Sprintf("%d overflow", d.Max)}
			}
			f.write(b, v)
		}
	}

	return b, nil
}

// Negotiate selects each mask dimension by precedence:
// user preference, audio preference, default config, best ranked value.
func (c *Codec) Negotiate(local, peer *Capability, user, audio Preference) (*Capability, error) {
	if local.ID != c.layout.ID || peer.ID != c.layout.ID {
		return nil, &NegotiationError{Codec: c.layout.ID, Dimension: "codec"}
	}

	res := &Capability{ID: c.layout.ID, Dims: make([]Dimension, 0, len(c.layout.Fields))}

	for i := range c.layout.Fields {
		f := &c.layout.Fields[i]

		l, p := local.Dim(f.Name), peer.Dim(f.Name)
		if l == nil || p == nil {
			return nil, &NegotiationError{Codec: c.layout.ID, Dimension: f.Name}
		}

		d := Dimension{Name: f.Name, Kind: f.Kind}

		switch f.Kind {
		case KindMask:
			both := l.Mask & p.Mask & f.Mask
			if both == 0 {
				return nil, &NegotiationError{Codec: c.layout.ID, Dimension: f.Name}
			}
			d.Mask = c.pick(f, both, user, audio)
		case KindFlag:
			d.Mask = l.Mask & p.Mask
		case KindRange:
			d.Min, d.Max = max32(l.Min, p.Min), min32(l.Max, p.Max)
			if d.Min > d.Max {
				return nil, &NegotiationError{Codec: c.layout.ID, Dimension: f.Name, Inverted: true}
			}
		case KindLimit:
			d.Max = min32(l.Max, p.Max)
		}

		res.Dims = append(res.Dims, d)
	}

	return res, nil
}

func (c *Codec) pick(f *Field, both uint32, prefs ...Preference) uint32 {
	for _, pref := range prefs {
		for _, bit := range f.Rank {
			if bit&both != 0 && f.match(bit, pref) {
				return bit
			}
		}
	}

	if d := c.defaults.Dim(f.Name); d != nil && d.Mask&both != 0 {
		return d.Mask
	}

	for _, bit := range f.Rank {
		if bit&both != 0 {
			return bit
		}
	}

	// unreachable while Rank lists every valid bit
	return both & -both
}

func (c *Codec) Audio(info *Capability) Audio {
	a := Audio{BitsPerSample: c.layout.BitsPerSample}
	for i := range c.layout.Fields {
		f := &c.layout.Fields[i]
		d := info.Dim(f.Name)
		if d == nil {
			continue
		}
		switch f.audio {
		case audioSampleRate:
			a.SampleRate = f.Values[d.Mask]
		case audioChannels:
			a.ChannelMode = ChannelMode(f.Values[d.Mask])
		}
	}
	return a
}

func (c *Codec) Describe(info *Capability) string {
	var sb strings.Builder
	sb.WriteString(c.layout.Name)

	for i := range c.layout.Fields {
		f := &c.layout.Fields[i]
		d := info.Dim(f.Name)
		if d == nil {
			continue
		}

		sb.WriteString(" " + f.Name + "=")

		switch f.Kind {
		case KindRange:
			sb.WriteString(fmt.Sprintf("%d..%d", d.Min, d.Max))
		case KindLimit:
			sb.WriteString(fmt.Sprintf("%d", d.Max))
		default:
			var items []string
			for _, bit := range f.Rank {
				if d.Mask&bit == 0 {
					continue
				}
				switch f.audio {
				case audioSampleRate:
					items = append(items, fmt.Sprintf("%d", f.Values[bit]))
				default:
					items = append(items, fmt.Sprintf("0x%x", bit))
				}
			}
			if len(items) == 0 {
				items = append(items, fmt.Sprintf("0x%x", d.Mask))
			}
			sb.WriteString(strings.Join(items, "|"))
		}
	}

	return sb.String()
}

// Offload - vendor codec type and encoded bitrate of a configuration
func (c *Codec) Offload(info *Capability) (codecType, bitrate uint32) {
	if c.layout.Bitrate != nil {
		bitrate = c.layout.Bitrate(info)
	}
	return c.layout.OffloadType, bitrate
}

func (c *Codec) VendorParams(info *Capability) []byte {
	if c.layout.VendorParams == nil {
		return nil
	}
	return c.layout.VendorParams(info)
}

func (c *Codec) UseMarkerBit() bool {
	return c.layout.MarkerBit
}

func (f *Field) match(bit uint32, pref Preference) bool {
	switch f.audio {
	case audioSampleRate:
		return pref.SampleRate != 0 && f.Values[bit] == pref.SampleRate
	case audioChannels:
		return pref.ChannelMode != ChannelModeNone && ChannelMode(f.Values[bit]) == pref.ChannelMode
	}
	return false
}

func (f *Field) read(b []byte) uint32 {
	r := bits.NewReader(b[f.Offset : f.Offset+f.Size])
	return r.ReadUint(f.Size) & f.Mask
}

// write ORs v into the window, bits outside the mask stay as is
func (f *Field) write(b []byte, v uint32) {
	r := bits.NewReader(b[f.Offset : f.Offset+f.Size])
	w := bits.NewWriter(nil)
	w.WriteUint(r.ReadUint(f.Size)|v&f.Mask, f.Size)
	copy(b[f.Offset:], w.Bytes())
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
