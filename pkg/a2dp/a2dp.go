package a2dp

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AlexxIT/go2a2dp/pkg/bits"
)

const MediaTypeAudio = 0x00

type CodecType byte

const (
	CodecTypeSBC    CodecType = 0x00
	CodecTypeAAC    CodecType = 0x02
	CodecTypeVendor CodecType = 0xFF
)

// CodecID - standard codec type or vendor pair
type CodecID struct {
	Type        CodecType `json:"type"`
	VendorID    uint32    `json:"vendor_id,omitempty"`
	VendorCodec uint16    `json:"vendor_codec,omitempty"`
}

func (c CodecID) String() string {
	switch c.Type {
	case CodecTypeSBC:
		return "sbc"
	case CodecTypeAAC:
		return "aac"
	case CodecTypeVendor:
		return fmt.Sprintf("vendor:%08x:%04x", c.VendorID, c.VendorCodec)
	}
	return fmt.Sprintf("unknown:%02x", byte(c.Type))
}

// Header - first bytes of the codec information element
type Header struct {
	Length    byte // LOSC, length of the remaining bytes
	MediaType byte
	ID        CodecID
}

const (
	headerSize       = 3
	vendorHeaderSize = 9
)

// ParseHeader validates length prefix, media type and codec identity
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < headerSize {
		return nil, &ParseError{Dimension: "length", Reason: "too short"}
	}

	r := bits.NewReader(b)
	h := &Header{Length: r.ReadByte()}

	if int(h.Length)+1 > len(b) || h.Length < headerSize-1 {
		return nil, &ParseError{Dimension: "length", Reason: fmt.Sprintf("losc %d for %d bytes", h.Length, len(b))}
	}

	h.MediaType = r.ReadByte() >> 4
	if h.MediaType != MediaTypeAudio {
		return nil, &ParseError{Dimension: "media type", Reason: fmt.Sprintf("unsupported %d", h.MediaType)}
	}

	h.ID.Type = CodecType(r.ReadByte())
	if h.ID.Type == CodecTypeVendor {
		if int(h.Length)+1 < vendorHeaderSize {
			return nil, &ParseError{Dimension: "vendor id", Reason: "too short"}
		}
		h.ID.VendorID = r.ReadUint32LE()
		h.ID.VendorCodec = r.ReadUint16LE()
	}

	return h, nil
}

// Plugin - parse, build, negotiate and describe one codec
type Plugin interface {
	ID() CodecID
	Name() string
	Parse(b []byte, asCapability bool) (*Capability, error)
	Build(c *Capability) ([]byte, error)
	Negotiate(local, peer *Capability, user, audio Preference) (*Capability, error)
	Describe(c *Capability) string
	// Audio - codec neutral parameters of a configuration
	Audio(c *Capability) Audio
	// Source and Sink - local capabilities for each endpoint kind
	Source() *Capability
	Sink() *Capability
	// UseMarkerBit - RTP marker convention of the media payload
	UseMarkerBit() bool
	// Offload - vendor offload codec type and encoded bitrate of a configuration
	Offload(c *Capability) (codecType, bitrate uint32)
	// VendorParams - codec specific block of the offload start command, nil for none
	VendorParams(c *Capability) []byte
}

var (
	plugins   = map[CodecID]Plugin{}
	pluginsMu sync.RWMutex
)

func RegisterPlugin(p Plugin) {
	pluginsMu.Lock()
	plugins[p.ID()] = p
	pluginsMu.Unlock()
}

func Lookup(id CodecID) Plugin {
	pluginsMu.RLock()
	defer pluginsMu.RUnlock()
	return plugins[id]
}

// Plugins - all registered plugins ordered by codec identity, standard codecs first
func Plugins() []Plugin {
	pluginsMu.RLock()
	list := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		list = append(list, p)
	}
	pluginsMu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i].ID(), list[j].ID()
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.VendorID != b.VendorID {
			return a.VendorID < b.VendorID
		}
		return a.VendorCodec < b.VendorCodec
	})
	return list
}

// Parse - decode capability (asCapability) or configuration bytes of any registered codec
func Parse(b []byte, asCapability bool) (*Capability, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return nil, err
	}

	p := Lookup(h.ID)
	if p == nil {
		return nil, &ParseError{Codec: h.ID, Dimension: "codec", Reason: "not supported"}
	}

	return p.Parse(b, asCapability)
}

// Build - encode capability or configuration with its codec plugin
func Build(c *Capability) ([]byte, error) {
	p := Lookup(c.ID)
	if p == nil {
		return nil, &ParseError{Codec: c.ID, Dimension: "codec", Reason: "not supported"}
	}
	return p.Build(c)
}

// Describe - human readable codec info, for logs
func Describe(b []byte) string {
	c, err := Parse(b, true)
	if err != nil {
		return fmt.Sprintf("invalid(% x)", b)
	}
	return Lookup(c.ID).Describe(c)
}

type ParseError struct {
	Codec     CodecID
	Dimension string
	Reason    string
}

func (e *ParseError) Error() string {
	return "a2dp: parse " + e.Codec.String() + " " + e.Dimension + ": " + e.Reason
}

// NegotiationError - NotSupported<Dimension> or inverted range
type NegotiationError struct {
	Codec     CodecID
	Dimension string
	Inverted  bool
}

func (e *NegotiationError) Error() string {
	if e.Inverted {
		return "a2dp: " + e.Codec.String() + " inverted " + e.Dimension
	}
	return "a2dp: " + e.Codec.String() + " not supported " + e.Dimension
}

var ErrUserConfigured = errors.New("a2dp: codec is configured by user")
var ErrUnknownCodec = errors.New("a2dp: unknown codec")
