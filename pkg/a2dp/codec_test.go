package a2dp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	sbcSinkCaps   = []byte{0x06, 0x00, 0x00, 0x3F, 0xFF, 0x02, 0x35}
	sbcSourceCaps = []byte{0x06, 0x00, 0x00, 0x29, 0xF5, 0x02, 0x35}
	sbcConfig     = []byte{0x06, 0x00, 0x00, 0x21, 0x15, 0x02, 0x35}
	aacSinkCaps   = []byte{0x08, 0x00, 0x02, 0xC0, 0x01, 0x8C, 0x84, 0xE2, 0x00}
	aacConfig     = []byte{0x08, 0x00, 0x02, 0x80, 0x01, 0x04, 0x04, 0xE2, 0x00}
	ldacCaps      = []byte{0x0A, 0x00, 0xFF, 0x2D, 0x01, 0x00, 0x00, 0xAA, 0x00, 0x3C, 0x07}
	ldacConfig    = []byte{0x0A, 0x00, 0xFF, 0x2D, 0x01, 0x00, 0x00, 0xAA, 0x00, 0x04, 0x01}
)

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(ldacCaps)
	require.Nil(t, err)
	require.Equal(t, byte(10), h.Length)
	require.Equal(t, CodecID{Type: CodecTypeVendor, VendorID: LDACVendorID, VendorCodec: LDACCodecID}, h.ID)
	require.Equal(t, "vendor:0000012d:00aa", h.ID.String())

	h, err = ParseHeader(sbcConfig)
	require.Nil(t, err)
	require.Equal(t, "sbc", h.ID.String())
}

func TestLocalCapabilities(t *testing.T) {
	b, err := SBC.Build(SBC.Default())
	require.Nil(t, err)
	require.Equal(t, sbcConfig, b)

	b, err = AAC.Build(AAC.Default())
	require.Nil(t, err)
	require.Equal(t, aacConfig, b)

	b, err = LDAC.Build(LDAC.Default())
	require.Nil(t, err)
	require.Equal(t, ldacConfig, b)

	c, err := Parse(sbcSourceCaps, true)
	require.Nil(t, err)
	require.True(t, c.Equal(SBC.Source()))

	c, err = Parse(aacSinkCaps, true)
	require.Nil(t, err)
	require.True(t, c.Equal(AAC.Sink()))

	c, err = Parse(ldacCaps, true)
	require.Nil(t, err)
	require.True(t, c.Equal(LDAC.Source()))
}

// every single bit of the sink capability, one dimension at a time
func TestRoundTrip(t *testing.T) {
	for _, codec := range []*Codec{SBC, AAC, LDAC} {
		t.Run(codec.Name(), func(t *testing.T) {
			sink := codec.Sink()
			for _, f := range codec.layout.Fields {
				if f.Kind != KindMask {
					continue
				}
				for _, bit := range f.Rank {
					if sink.Dim(f.Name).Mask&bit == 0 {
						continue
					}

					config := codec.Default()
					config.Dim(f.Name).Mask = bit

					b, err := codec.Build(config)
					require.Nil(t, err, f.Name)

					parsed, err := Parse(b, false)
					require.Nil(t, err, f.Name)
					require.Equal(t, config, parsed)
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		b         []byte
		asCap     bool
		dimension string
	}{
		{"short", []byte{0x06, 0x00}, true, "length"},
		{"losc too big", []byte{0x06, 0x00, 0x00, 0x21}, true, "length"},
		{"losc mismatch", []byte{0x05, 0x00, 0x00, 0x21, 0x15, 0x02}, true, "length"},
		{"media type", []byte{0x06, 0x10, 0x00, 0x21, 0x15, 0x02, 0x35}, true, "media type"},
		{"vendor short", []byte{0x04, 0x00, 0xFF, 0x2D, 0x01}, true, "vendor id"},
		{"unknown codec", []byte{0x03, 0x00, 0x01, 0x00}, true, "codec"},
		{"zero sample rate", []byte{0x06, 0x00, 0x00, 0x01, 0x15, 0x02, 0x35}, true, DimSampleRate},
		{"config multiple bits", sbcSourceCaps, false, DimChannelMode},
		{"bitpool bounds", []byte{0x06, 0x00, 0x00, 0x21, 0x15, 0x01, 0x35}, true, DimBitpool},
		{"bitpool inverted", []byte{0x06, 0x00, 0x00, 0x21, 0x15, 0x40, 0x35}, true, DimBitpool},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.b, test.asCap)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), err)
			require.Equal(t, test.dimension, perr.Dimension)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	_, err := SBC.Build(SBC.Sink())
	require.NotNil(t, err)

	config := SBC.Default()
	config.Dim(DimSampleRate).Mask = 0
	_, err = SBC.Build(config)
	require.NotNil(t, err)

	config = SBC.Default()
	config.Dim(DimBitpool).Min = 60
	_, err = SBC.Build(config)
	require.NotNil(t, err)

	_, err = Build(&Capability{ID: CodecID{Type: 0x01}})
	require.NotNil(t, err)
}

func TestNegotiateScenarioA(t *testing.T) {
	local := SBC.Sink() // 44100 and 48000
	peer, err := Parse(sbcSourceCaps, true)
	require.Nil(t, err)

	config, err := SBC.Negotiate(local, peer, Preference{}, Preference{})
	require.Nil(t, err)
	require.Equal(t, uint32(SBCSampleRate44100), config.Dim(DimSampleRate).Mask)
	require.Equal(t, uint32(44100), SBC.Audio(config).SampleRate)
}

func TestNegotiatePrecedence(t *testing.T) {
	local := SBC.Sink()
	peer := SBC.Sink()

	tests := []struct {
		name        string
		user, audio Preference
		rate, mode  uint32
	}{
		{"default config", Preference{}, Preference{}, SBCSampleRate44100, SBCChannelJoint},
		{"user rate", Preference{SampleRate: 48000}, Preference{}, SBCSampleRate48000, SBCChannelJoint},
		{"audio mode", Preference{}, Preference{ChannelMode: ChannelModeMono}, SBCSampleRate44100, SBCChannelMono},
		{
			"user over audio",
			Preference{SampleRate: 48000, ChannelMode: ChannelModeStereo},
			Preference{SampleRate: 44100, ChannelMode: ChannelModeMono},
			SBCSampleRate48000, SBCChannelJoint,
		},
		{"missing rate", Preference{SampleRate: 16000}, Preference{}, SBCSampleRate44100, SBCChannelJoint},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config, err := SBC.Negotiate(local, peer, test.user, test.audio)
			require.Nil(t, err)
			require.Equal(t, test.rate, config.Dim(DimSampleRate).Mask)
			require.Equal(t, test.mode, config.Dim(DimChannelMode).Mask)
			require.True(t, config.IsConfig())
		})
	}
}

func TestNegotiateRank(t *testing.T) {
	local, err := Parse([]byte{0x06, 0x00, 0x00, 0xFF, 0xFF, 0x02, 0xFA}, true)
	require.Nil(t, err)

	// no default value in the intersection
	peer, err := Parse([]byte{0x06, 0x00, 0x00, 0xC2, 0xCA, 0x02, 0x35}, true)
	require.Nil(t, err)

	config, err := SBC.Negotiate(local, peer, Preference{}, Preference{})
	require.Nil(t, err)
	require.Equal(t, uint32(SBCSampleRate32000), config.Dim(DimSampleRate).Mask)
	require.Equal(t, uint32(SBCChannelStereo), config.Dim(DimChannelMode).Mask)
	require.Equal(t, uint32(SBCBlocks8), config.Dim(DimBlockLength).Mask)
	require.Equal(t, uint32(SBCSubbands4), config.Dim(DimSubbands).Mask)
	require.Equal(t, uint32(SBCAllocSNR), config.Dim(DimAllocation).Mask)
	require.Equal(t, uint32(2), config.Dim(DimBitpool).Min)
	require.Equal(t, uint32(53), config.Dim(DimBitpool).Max)
}

func TestNegotiateErrors(t *testing.T) {
	peer, err := Parse([]byte{0x06, 0x00, 0x00, 0x11, 0x15, 0x02, 0x35}, true)
	require.Nil(t, err)

	_, err = SBC.Negotiate(SBC.Source(), peer, Preference{}, Preference{})
	var nerr *NegotiationError
	require.True(t, errors.As(err, &nerr))
	require.Equal(t, DimSampleRate, nerr.Dimension)
	require.False(t, nerr.Inverted)

	peer, err = Parse([]byte{0x06, 0x00, 0x00, 0x21, 0x15, 0x3C, 0x50}, true)
	require.Nil(t, err)

	_, err = SBC.Negotiate(SBC.Source(), peer, Preference{}, Preference{})
	require.True(t, errors.As(err, &nerr))
	require.Equal(t, DimBitpool, nerr.Dimension)
	require.True(t, nerr.Inverted)
}

func TestNegotiateProperties(t *testing.T) {
	tests := []struct {
		codec *Codec
		peer  []byte
	}{
		{SBC, sbcSinkCaps},
		{AAC, aacSinkCaps},
		{LDAC, ldacCaps},
	}
	for _, test := range tests {
		t.Run(test.codec.Name(), func(t *testing.T) {
			local := test.codec.Source()
			peer, err := test.codec.Parse(test.peer, true)
			require.Nil(t, err)

			user := Preference{ChannelMode: ChannelModeStereo}

			c1, err := test.codec.Negotiate(local, peer, user, Preference{})
			require.Nil(t, err)
			c2, err := test.codec.Negotiate(local, peer, user, Preference{})
			require.Nil(t, err)
			require.Equal(t, c1, c2)

			require.Nil(t, local.Contains(c1))
			require.Nil(t, peer.Contains(c1))

			_, err = test.codec.Build(c1)
			require.Nil(t, err)
		})
	}
}

func TestAACNegotiate(t *testing.T) {
	peer, err := AAC.Parse(aacSinkCaps, true)
	require.Nil(t, err)

	config, err := AAC.Negotiate(AAC.Source(), peer, Preference{}, Preference{})
	require.Nil(t, err)
	require.Zero(t, config.Dim(DimVBR).Mask)
	require.Equal(t, uint32(320000), config.Dim(DimBitrate).Max)

	b, err := AAC.Build(config)
	require.Nil(t, err)
	require.Equal(t, aacConfig, b)

	require.Equal(t, Audio{SampleRate: 44100, BitsPerSample: 16, ChannelMode: ChannelModeStereo}, AAC.Audio(config))
	require.True(t, AAC.UseMarkerBit())
}

func TestLDACNegotiate(t *testing.T) {
	peer, err := LDAC.Parse(ldacCaps, true)
	require.Nil(t, err)

	config, err := LDAC.Negotiate(LDAC.Source(), peer, Preference{}, Preference{SampleRate: 48000})
	require.Nil(t, err)
	require.Equal(t, uint32(LDACSampleRate48000), config.Dim(DimSampleRate).Mask)
	require.Equal(t, uint32(LDACChannelStereo), config.Dim(DimChannelMode).Mask)
	require.Equal(t, byte(32), LDAC.Audio(config).BitsPerSample)
}

func TestLDACInfo(t *testing.T) {
	tests := []struct {
		rates, modes byte
		want         []byte
	}{
		{0x3C, 0x07, ldacCaps},
		{LDACSampleRate96000, LDACChannelStereo, ldacConfig},
	}
	for _, test := range tests {
		b := ldacInfo(test.rates, test.modes)
		require.Equal(t, test.want, b)

		h, err := ParseHeader(b)
		require.Nil(t, err)
		require.Equal(t, uint32(LDACVendorID), h.ID.VendorID)
	}
}

func TestVendorParams(t *testing.T) {
	config, err := LDAC.Parse(ldacConfig, false)
	require.Nil(t, err)
	require.Equal(t, []byte{0x2D, 0x01, 0x00, 0x00, 0xAA, 0x00, 0x04, 0x01}, LDAC.VendorParams(config))

	require.Nil(t, SBC.VendorParams(SBC.Default()))
}

func TestSBCBitrate(t *testing.T) {
	codecType, bitrate := SBC.Offload(SBC.Default())
	require.Equal(t, uint32(OffloadCodecSBC), codecType)
	// 44100 joint stereo, 16 blocks, 8 subbands, bitpool 53
	require.Equal(t, uint32(327993), bitrate)
}

func TestDescribe(t *testing.T) {
	require.Equal(t,
		"SBC sample rate=44100 channel mode=0x1 block length=0x10 subbands=0x4 allocation method=0x1 bitpool=2..53",
		Describe(sbcConfig),
	)
	require.Equal(t, "invalid(06 00)", Describe([]byte{0x06, 0x00}))
}

func TestPlugins(t *testing.T) {
	var names []string
	for _, p := range Plugins() {
		names = append(names, p.Name())
	}
	require.Equal(t, []string{"SBC", "AAC", "LDAC"}, names)
}
