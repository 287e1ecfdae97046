package a2dp

const (
	AACObjectMPEG2LC  = 0x80
	AACObjectMPEG4LC  = 0x40
	AACObjectLTP      = 0x20
	AACObjectScalable = 0x10

	AACChannelMono   = 0x08
	AACChannelStereo = 0x04

	AACVBR = 0x80

	// 24 bits, high bit of the first byte is VBR
	AACMaxBitrate = 0x7FFFFF

	aacBitrateDefault = 320000
)

var aacSampleRates = map[uint32]uint32{
	0x8000: 8000, 0x4000: 11025, 0x2000: 12000, 0x1000: 16000,
	0x0800: 22050, 0x0400: 24000, 0x0200: 32000, 0x0100: 44100,
	0x0080: 48000, 0x0040: 64000, 0x0020: 88200, 0x0010: 96000,
}

const (
	AACSampleRate44100 = 0x0100
	AACSampleRate48000 = 0x0080
)

var AAC = NewCodec(Layout{
	ID:   CodecID{Type: CodecTypeAAC},
	Name: "AAC",
	LOSC: 8,
	Fields: []Field{
		{
			Name: DimObjectType, Kind: KindMask, Offset: 3, Size: 1, Mask: 0xF0,
			Rank: []uint32{AACObjectMPEG2LC, AACObjectMPEG4LC, AACObjectLTP, AACObjectScalable},
		},
		{
			Name: DimSampleRate, Kind: KindMask, Offset: 4, Size: 2, Mask: 0xFFF0,
			Rank: []uint32{
				0x0010, 0x0020, 0x0040, 0x0080, 0x0100, 0x0200,
				0x0400, 0x0800, 0x1000, 0x2000, 0x4000, 0x8000,
			},
			Values: aacSampleRates,
			audio:  audioSampleRate,
		},
		{
			Name: DimChannels, Kind: KindMask, Offset: 5, Size: 1, Mask: 0x0C,
			Rank: []uint32{AACChannelStereo, AACChannelMono},
			Values: map[uint32]uint32{
				AACChannelMono:   uint32(ChannelModeMono),
				AACChannelStereo: uint32(ChannelModeStereo),
			},
			audio: audioChannels,
		},
		{Name: DimVBR, Kind: KindFlag, Offset: 6, Size: 1, Mask: AACVBR},
		{Name: DimBitrate, Kind: KindLimit, Offset: 6, Size: 3, Mask: AACMaxBitrate},
	},
	BitsPerSample: 16,
	Source: []byte{
		8, MediaTypeAudio, byte(CodecTypeAAC),
		AACObjectMPEG2LC,
		AACSampleRate44100 >> 8, AACSampleRate48000 | AACChannelMono | AACChannelStereo,
		aacBitrateDefault >> 16, aacBitrateDefault >> 8 & 0xFF, aacBitrateDefault & 0xFF,
	},
	Sink: []byte{
		8, MediaTypeAudio, byte(CodecTypeAAC),
		AACObjectMPEG2LC | AACObjectMPEG4LC,
		AACSampleRate44100 >> 8, AACSampleRate48000 | AACChannelMono | AACChannelStereo,
		AACVBR | aacBitrateDefault>>16, aacBitrateDefault >> 8 & 0xFF, aacBitrateDefault & 0xFF,
	},
	Default: []byte{
		8, MediaTypeAudio, byte(CodecTypeAAC),
		AACObjectMPEG2LC,
		AACSampleRate44100 >> 8, AACChannelStereo,
		aacBitrateDefault >> 16, aacBitrateDefault >> 8 & 0xFF, aacBitrateDefault & 0xFF,
	},
	MarkerBit:   true,
	OffloadType: OffloadCodecAAC,
	Bitrate: func(c *Capability) uint32 {
		if d := c.Dim(DimBitrate); d != nil {
			return d.Max
		}
		return 0
	},
})

func init() {
	RegisterPlugin(AAC)
}
