package a2dp

const (
	SBCSampleRate16000 = 0x80
	SBCSampleRate32000 = 0x40
	SBCSampleRate44100 = 0x20
	SBCSampleRate48000 = 0x10

	SBCChannelMono   = 0x08
	SBCChannelDual   = 0x04
	SBCChannelStereo = 0x02
	SBCChannelJoint  = 0x01

	SBCBlocks4  = 0x80
	SBCBlocks8  = 0x40
	SBCBlocks12 = 0x20
	SBCBlocks16 = 0x10

	SBCSubbands4 = 0x08
	SBCSubbands8 = 0x04

	SBCAllocSNR      = 0x02
	SBCAllocLoudness = 0x01

	SBCMinBitpool = 2
	SBCMaxBitpool = 250

	// default max bitpool for high quality
	sbcBitpoolHQ = 53
)

const (
	DimSampleRate  = "sample rate"
	DimChannelMode = "channel mode"
	DimBlockLength = "block length"
	DimSubbands    = "subbands"
	DimAllocation  = "allocation method"
	DimBitpool     = "bitpool"
	DimObjectType  = "object type"
	DimChannels    = "channels"
	DimVBR         = "vbr"
	DimBitrate     = "bitrate"
)

const (
	OffloadCodecSBC  = 0x01
	OffloadCodecAAC  = 0x02
	OffloadCodecLDAC = 0x10
)

var (
	sbcSampleRates = map[uint32]uint32{
		SBCSampleRate16000: 16000, SBCSampleRate32000: 32000,
		SBCSampleRate44100: 44100, SBCSampleRate48000: 48000,
	}
	sbcBlocks   = map[uint32]uint32{SBCBlocks4: 4, SBCBlocks8: 8, SBCBlocks12: 12, SBCBlocks16: 16}
	sbcSubbands = map[uint32]uint32{SBCSubbands4: 4, SBCSubbands8: 8}
)

var SBC = NewCodec(Layout{
	ID:   CodecID{Type: CodecTypeSBC},
	Name: "SBC",
	LOSC: 6,
	Fields: []Field{
		{
			Name: DimSampleRate, Kind: KindMask, Offset: 3, Size: 1, Mask: 0xF0,
			Rank: []uint32{SBCSampleRate48000, SBCSampleRate44100, SBCSampleRate32000, SBCSampleRate16000},
			Values: sbcSampleRates,
			audio:  audioSampleRate,
		},
		{
			Name: DimChannelMode, Kind: KindMask, Offset: 3, Size: 1, Mask: 0x0F,
			Rank: []uint32{SBCChannelJoint, SBCChannelStereo, SBCChannelDual, SBCChannelMono},
			Values: map[uint32]uint32{
				SBCChannelMono:   uint32(ChannelModeMono),
				SBCChannelDual:   uint32(ChannelModeStereo),
				SBCChannelStereo: uint32(ChannelModeStereo),
				SBCChannelJoint:  uint32(ChannelModeStereo),
			},
			audio: audioChannels,
		},
		{
			Name: DimBlockLength, Kind: KindMask, Offset: 4, Size: 1, Mask: 0xF0,
			Rank:   []uint32{SBCBlocks16, SBCBlocks12, SBCBlocks8, SBCBlocks4},
			Values: sbcBlocks,
		},
		{
			Name: DimSubbands, Kind: KindMask, Offset: 4, Size: 1, Mask: 0x0C,
			Rank:   []uint32{SBCSubbands8, SBCSubbands4},
			Values: sbcSubbands,
		},
		{
			Name: DimAllocation, Kind: KindMask, Offset: 4, Size: 1, Mask: 0x03,
			Rank: []uint32{SBCAllocLoudness, SBCAllocSNR},
		},
		{
			Name: DimBitpool, Kind: KindRange, Offset: 5, MaxOffset: 6,
			Lower: SBCMinBitpool, Upper: SBCMaxBitpool,
		},
	},
	BitsPerSample: 16,
	Source: []byte{
		6, MediaTypeAudio, byte(CodecTypeSBC),
		SBCSampleRate44100 | SBCChannelMono | SBCChannelJoint,
		SBCBlocks4 | SBCBlocks8 | SBCBlocks12 | SBCBlocks16 | SBCSubbands8 | SBCAllocLoudness,
		SBCMinBitpool, sbcBitpoolHQ,
	},
	Sink: []byte{
		6, MediaTypeAudio, byte(CodecTypeSBC),
		SBCSampleRate44100 | SBCSampleRate48000 | SBCChannelMono | SBCChannelDual | SBCChannelStereo | SBCChannelJoint,
		SBCBlocks4 | SBCBlocks8 | SBCBlocks12 | SBCBlocks16 | SBCSubbands4 | SBCSubbands8 | SBCAllocSNR | SBCAllocLoudness,
		SBCMinBitpool, sbcBitpoolHQ,
	},
	Default: []byte{
		6, MediaTypeAudio, byte(CodecTypeSBC),
		SBCSampleRate44100 | SBCChannelJoint,
		SBCBlocks16 | SBCSubbands8 | SBCAllocLoudness,
		SBCMinBitpool, sbcBitpoolHQ,
	},
	MarkerBit:   false,
	OffloadType: OffloadCodecSBC,
	Bitrate:     sbcBitrate,
})

func init() {
	RegisterPlugin(SBC)
}

// sbcBitrate - encoded bitrate at the max bitpool (A2DP v1.3, 12.9)
func sbcBitrate(c *Capability) uint32 {
	fs, blocks, subbands := dimValue(c, DimSampleRate, sbcSampleRates),
		dimValue(c, DimBlockLength, sbcBlocks), dimValue(c, DimSubbands, sbcSubbands)
	if fs == 0 || blocks == 0 || subbands == 0 {
		return 0
	}

	var bitpool, mode uint32
	if d := c.Dim(DimBitpool); d != nil {
		bitpool = d.Max
	}
	if d := c.Dim(DimChannelMode); d != nil {
		mode = d.Mask
	}

	var channels uint32 = 2
	if mode == SBCChannelMono {
		channels = 1
	}

	frameLen := 4 + (4*subbands*channels)/8
	switch mode {
	case SBCChannelMono, SBCChannelDual:
		frameLen += (blocks*channels*bitpool + 7) / 8
	case SBCChannelJoint:
		frameLen += (subbands + blocks*bitpool + 7) / 8
	default:
		frameLen += (blocks*bitpool + 7) / 8
	}

	return 8 * frameLen * fs / (subbands * blocks)
}

func dimValue(c *Capability, name string, values map[uint32]uint32) uint32 {
	if d := c.Dim(name); d != nil {
		return values[d.Mask]
	}
	return 0
}
