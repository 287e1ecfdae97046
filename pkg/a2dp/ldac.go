package a2dp

import "github.com/AlexxIT/go2a2dp/pkg/bits"

const (
	LDACVendorID = 0x0000012D // Sony
	LDACCodecID  = 0x00AA

	LDACSampleRate44100  = 0x20
	LDACSampleRate48000  = 0x10
	LDACSampleRate88200  = 0x08
	LDACSampleRate96000  = 0x04
	LDACSampleRate176400 = 0x02
	LDACSampleRate192000 = 0x01

	LDACChannelMono   = 0x04
	LDACChannelDual   = 0x02
	LDACChannelStereo = 0x01
)

var LDAC = NewCodec(Layout{
	ID:   CodecID{Type: CodecTypeVendor, VendorID: LDACVendorID, VendorCodec: LDACCodecID},
	Name: "LDAC",
	LOSC: 10,
	Fields: []Field{
		{
			Name: DimSampleRate, Kind: KindMask, Offset: 9, Size: 1, Mask: 0x3F,
			Rank: []uint32{
				LDACSampleRate192000, LDACSampleRate176400, LDACSampleRate96000,
				LDACSampleRate88200, LDACSampleRate48000, LDACSampleRate44100,
			},
			Values: map[uint32]uint32{
				LDACSampleRate44100: 44100, LDACSampleRate48000: 48000,
				LDACSampleRate88200: 88200, LDACSampleRate96000: 96000,
				LDACSampleRate176400: 176400, LDACSampleRate192000: 192000,
			},
			audio: audioSampleRate,
		},
		{
			Name: DimChannelMode, Kind: KindMask, Offset: 10, Size: 1, Mask: 0x07,
			Rank: []uint32{LDACChannelStereo, LDACChannelDual, LDACChannelMono},
			Values: map[uint32]uint32{
				LDACChannelMono:   uint32(ChannelModeMono),
				LDACChannelDual:   uint32(ChannelModeStereo),
				LDACChannelStereo: uint32(ChannelModeStereo),
			},
			audio: audioChannels,
		},
	},
	BitsPerSample: 32,
	Source:        ldacInfo(0x3C, 0x07),
	Sink:          ldacInfo(0x3C, 0x07),
	Default:       ldacInfo(LDACSampleRate96000, LDACChannelStereo),
	MarkerBit:     false,
	OffloadType:   OffloadCodecLDAC,
	VendorParams:  ldacVendorParams,
})

func ldacInfo(rates, modes byte) []byte {
	return []byte{
		10, MediaTypeAudio, byte(CodecTypeVendor),
		byte(LDACVendorID & 0xFF), byte(LDACVendorID >> 8), byte(LDACVendorID >> 16), byte(LDACVendorID >> 24),
		byte(LDACCodecID), byte(LDACCodecID >> 8),
		rates, modes,
	}
}

// ldacVendorParams - vendor and codec id followed by the sample rate and channel mode bits
func ldacVendorParams(c *Capability) []byte {
	w := bits.NewWriter(make([]byte, 0, 8))
	w.WriteUint32LE(LDACVendorID)
	w.WriteUint16LE(LDACCodecID)
	for _, name := range []string{DimSampleRate, DimChannelMode} {
		var mask uint32
		if d := c.Dim(name); d != nil {
			mask = d.Mask
		}
		_ = w.WriteByte(byte(mask))
	}
	return w.Bytes()
}

func init() {
	RegisterPlugin(LDAC)
}
