package a2dp

import (
	"fmt"
	mbits "math/bits"
	"strings"
)

// Kind of dimension value
type Kind byte

const (
	KindMask  Kind = iota // bit mask, exactly one bit in a configuration
	KindFlag              // optional bits, negotiated as intersection
	KindRange             // [Min, Max] numeric range
	KindLimit             // numeric upper bound in Max
)

type Dimension struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Mask uint32 `json:"mask,omitempty"`
	Min  uint32 `json:"min,omitempty"`
	Max  uint32 `json:"max,omitempty"`
}

func (d *Dimension) String() string {
	switch d.Kind {
	case KindRange:
		return fmt.Sprintf("%s=%d..%d", d.Name, d.Min, d.Max)
	case KindLimit:
		return fmt.Sprintf("%s<=%d", d.Name, d.Max)
	}
	return fmt.Sprintf("%s=0x%x", d.Name, d.Mask)
}

// Capability - codec identity plus per-dimension values.
// A configuration is a Capability with one bit per mask dimension.
type Capability struct {
	ID   CodecID     `json:"codec"`
	Dims []Dimension `json:"dims"`
}

func (c *Capability) Dim(name string) *Dimension {
	for i := range c.Dims {
		if c.Dims[i].Name == name {
			return &c.Dims[i]
		}
	}
	return nil
}

func (c *Capability) Clone() *Capability {
	clone := &Capability{ID: c.ID, Dims: make([]Dimension, len(c.Dims))}
	copy(clone.Dims, c.Dims)
	return clone
}

// IsConfig - every mask dimension has exactly one bit
func (c *Capability) IsConfig() bool {
	for _, d := range c.Dims {
		if d.Kind == KindMask && mbits.OnesCount32(d.Mask) != 1 {
			return false
		}
	}
	return true
}

// Contains returns NegotiationError with the first dimension of other outside c
func (c *Capability) Contains(other *Capability) error {
	if c.ID != other.ID {
		return &NegotiationError{Codec: other.ID, Dimension: "codec"}
	}

	for _, o := range other.Dims {
		d := c.Dim(o.Name)
		if d == nil {
			return &NegotiationError{Codec: c.ID, Dimension: o.Name}
		}

		var ok bool
		switch o.Kind {
		case KindMask, KindFlag:
			ok = o.Mask&^d.Mask == 0
		case KindRange:
			ok = o.Min >= d.Min && o.Max <= d.Max
		case KindLimit:
			ok = o.Max <= d.Max
		}
		if !ok {
			return &NegotiationError{Codec: c.ID, Dimension: o.Name}
		}
	}

	return nil
}

func (c *Capability) Equal(other *Capability) bool {
	if other == nil || c.ID != other.ID || len(c.Dims) != len(other.Dims) {
		return false
	}
	for i := range c.Dims {
		if c.Dims[i] != other.Dims[i] {
			return false
		}
	}
	return true
}

func (c *Capability) String() string {
	items := make([]string, 0, len(c.Dims))
	for i := range c.Dims {
		items = append(items, c.Dims[i].String())
	}
	return c.ID.String() + "{" + strings.Join(items, " ") + "}"
}

type ChannelMode byte

const (
	ChannelModeNone ChannelMode = iota
	ChannelModeMono
	ChannelModeStereo
)

func (m ChannelMode) String() string {
	switch m {
	case ChannelModeMono:
		return "mono"
	case ChannelModeStereo:
		return "stereo"
	}
	return "none"
}

func (m ChannelMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ChannelMode) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "mono":
		*m = ChannelModeMono
	case "stereo":
		*m = ChannelModeStereo
	case "", "none":
		*m = ChannelModeNone
	default:
		return fmt.Errorf("a2dp: unknown channel mode %q", s)
	}
	return nil
}

// Audio - codec neutral parameters of a configuration
type Audio struct {
	SampleRate    uint32      `json:"sample_rate,omitempty" yaml:"sample_rate"`
	BitsPerSample byte        `json:"bits_per_sample,omitempty" yaml:"bits_per_sample"`
	ChannelMode   ChannelMode `json:"channel_mode,omitempty" yaml:"channel_mode"`
}

// Preference - requested audio parameters, zero fields mean no preference
type Preference Audio

func (p Preference) IsZero() bool {
	return p == Preference{}
}
