package bluez

import (
	"strings"

	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/AlexxIT/go2a2dp/pkg/stream"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	AudioPath  dbus.ObjectPath = "/io/github/go2a2dp"
	AudioIface                 = "io.github.go2a2dp.Audio1"
)

// Audio - audio back-end, every call is a signal for the media service
type Audio struct {
	bus  Bus
	role a2dp.Role
	log  zerolog.Logger
}

func NewAudio(bus Bus, role a2dp.Role, log zerolog.Logger) *Audio {
	return &Audio{bus: bus, role: role, log: log}
}

// UpdateAudioConfig accepts only complete shapes of a codec the local role can run
func (a *Audio) UpdateAudioConfig(cfg stream.AudioConfig) bool {
	if !a.Supports(cfg) {
		return false
	}

	err := a.emit(
		"ConfigUpdated", cfg.Handle, cfg.Codec, cfg.Audio.SampleRate,
		cfg.Audio.BitsPerSample, cfg.Audio.ChannelMode.String(), cfg.Config,
	)
	return err == nil
}

// Supports - the configuration fits the local capability of the role
func (a *Audio) Supports(cfg stream.AudioConfig) bool {
	if cfg.Audio.SampleRate == 0 || cfg.Audio.BitsPerSample == 0 || cfg.Audio.ChannelMode == a2dp.ChannelModeNone {
		return false
	}

	info, err := a2dp.Parse(cfg.Config, false)
	if err != nil {
		return false
	}

	p := a2dp.Lookup(info.ID)
	if !strings.EqualFold(p.Name(), cfg.Codec) {
		return false
	}

	local := p.Source()
	if a.role == a2dp.RoleSink {
		local = p.Sink()
	}

	if err = local.Contains(info); err != nil {
		a.log.Debug().Err(err).Msgf("[bluez] unsupported %s", a2dp.DescribeConfig(cfg.Config))
		return false
	}
	return true
}

func (a *Audio) StartSession(handle uint8) error {
	return a.emit("SessionStarted", handle)
}

func (a *Audio) EndSession(handle uint8) error {
	return a.emit("SessionEnded", handle)
}

func (a *Audio) StreamStarted(handle uint8, ack bool) {
	_ = a.emit("StreamStarted", handle, ack)
}

func (a *Audio) StreamSuspended(handle uint8, ack bool) {
	_ = a.emit("StreamSuspended", handle, ack)
}

func (a *Audio) DelayReport(handle uint8, delay uint16) {
	_ = a.emit("DelayReport", handle, delay)
}

func (a *Audio) emit(name string, values ...any) error {
	if err := a.bus.Emit(AudioPath, AudioIface+"."+name, values...); err != nil {
		a.log.Warn().Err(err).Msgf("[bluez] emit %s", name)
		return err
	}
	return nil
}
