package bluez

import (
	"errors"
	"testing"
	"time"

	"github.com/AlexxIT/go2a2dp/pkg/a2dp"
	"github.com/AlexxIT/go2a2dp/pkg/stream"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type object struct {
	dbus.BusObject // unused methods panic

	path  dbus.ObjectPath
	calls []string
	reply func(method string) *dbus.Call
}

func (o *object) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	o.calls = append(o.calls, method)
	return o.reply(method)
}

type signal struct {
	name   string
	values []any
}

type bus struct {
	objects map[dbus.ObjectPath]*object
	signals []signal
	err     error
}

func (b *bus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	if o := b.objects[path]; o != nil {
		return o
	}
	return &object{path: path, reply: func(string) *dbus.Call {
		return &dbus.Call{Err: errors.New("org.freedesktop.DBus.Error.UnknownObject")}
	}}
}

func (b *bus) Emit(path dbus.ObjectPath, name string, values ...any) error {
	if b.err != nil {
		return b.err
	}
	b.signals = append(b.signals, signal{name, values})
	return nil
}

func reply(body ...any) func(string) *dbus.Call {
	return func(string) *dbus.Call {
		return &dbus.Call{Body: body}
	}
}

func TestDevicePath(t *testing.T) {
	p := DevicePath("/org/bluez/hci0", "00:1a:7d:da:71:13")
	require.Equal(t, dbus.ObjectPath("/org/bluez/hci0/dev_00_1A_7D_DA_71_13"), p)
	require.Equal(t, "00:1A:7D:DA:71:13", AddrFromPath(p))
	require.Equal(t, "", AddrFromPath("/org/bluez/hci0"))
}

func TestContainsUUID(t *testing.T) {
	list := []string{"0000110B-0000-1000-8000-00805F9B34FB"}
	require.True(t, containsUUID(list, AudioSinkUUID))
	require.False(t, containsUUID(list, AudioSourceUUID))
	require.False(t, containsUUID(nil, AudioSinkUUID))
}

func TestLookup(t *testing.T) {
	path := DevicePath("/org/bluez/hci0", "00:11:22:33:44:55")
	b := &bus{objects: map[dbus.ObjectPath]*object{
		path: {path: path, reply: reply(dbus.MakeVariant([]string{AudioSinkUUID}))},
	}}

	d := NewDiscovery(b, "/org/bluez/hci0", zerolog.Nop())

	found, err := d.Lookup("00:11:22:33:44:55", a2dp.RoleSink)
	require.Nil(t, err)
	require.True(t, found)
	require.Equal(t, []string{propsIface + ".Get"}, b.objects[path].calls)

	found, err = d.Lookup("00:11:22:33:44:55", a2dp.RoleSource)
	require.Nil(t, err)
	require.False(t, found)

	found, err = d.Lookup("66:77:88:99:AA:BB", a2dp.RoleSink)
	require.NotNil(t, err)
	require.False(t, found)
}

func TestSearch(t *testing.T) {
	path := DevicePath("/org/bluez/hci0", "00:11:22:33:44:55")
	b := &bus{objects: map[dbus.ObjectPath]*object{
		path: {path: path, reply: reply(dbus.MakeVariant([]string{AudioSinkUUID}))},
	}}

	d := NewDiscovery(b, "/org/bluez/hci0", zerolog.Nop())
	require.NotNil(t, d.Search(0, "00:11:22:33:44:55", a2dp.RoleSink))

	type result struct {
		handle  uint8
		found   bool
		version uint16
	}
	ch := make(chan result, 2)
	d.OnResult = func(handle uint8, found bool, version uint16) {
		ch <- result{handle, found, version}
	}

	require.Nil(t, d.Search(1, "00:11:22:33:44:55", a2dp.RoleSink))

	select {
	case r := <-ch:
		require.Equal(t, result{1, true, DefaultVersion}, r)
	case <-time.After(time.Second):
		t.Fatal("no search result")
	}

	require.Nil(t, d.Search(0, "66:77:88:99:AA:BB", a2dp.RoleSink))

	select {
	case r := <-ch:
		require.Equal(t, result{0, false, 0}, r)
	case <-time.After(time.Second):
		t.Fatal("no search result")
	}
}

func TestDevices(t *testing.T) {
	objs := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {},
		},
		"/org/bluez/hci0/dev_00_11_22_33_44_55": {
			deviceIface: {
				"Address": dbus.MakeVariant("00:11:22:33:44:55"),
				"UUIDs":   dbus.MakeVariant([]string{AudioSinkUUID}),
			},
		},
		"/org/bluez/hci0/dev_66_77_88_99_AA_BB": {
			deviceIface: {
				"UUIDs": dbus.MakeVariant([]string{AudioSourceUUID}),
			},
		},
	}
	b := &bus{objects: map[dbus.ObjectPath]*object{
		"/": {path: "/", reply: reply(objs)},
	}}

	d := NewDiscovery(b, "/org/bluez/hci0", zerolog.Nop())

	sinks, err := d.Devices(a2dp.RoleSink)
	require.Nil(t, err)
	require.Equal(t, []string{"00:11:22:33:44:55"}, sinks)

	sources, err := d.Devices(a2dp.RoleSource)
	require.Nil(t, err)
	require.Equal(t, []string{"66:77:88:99:AA:BB"}, sources)
}

var sbc48000 = []byte{0x06, 0x00, 0x00, 0x11, 0x15, 0x02, 0x35}

func TestAudio(t *testing.T) {
	b := &bus{}
	a := NewAudio(b, a2dp.RoleSource, zerolog.Nop())

	cfg := stream.AudioConfig{
		Handle: 1,
		Codec:  "SBC",
		Audio: a2dp.Audio{
			SampleRate:    44100,
			BitsPerSample: 16,
			ChannelMode:   a2dp.ChannelModeStereo,
		},
		Config: []byte{0x06, 0x00, 0x00, 0x21, 0x15, 0x02, 0x35},
	}

	tests := []struct {
		name   string
		modify func(c *stream.AudioConfig)
		ok     bool
	}{
		{"complete", func(c *stream.AudioConfig) {}, true},
		{"no rate", func(c *stream.AudioConfig) { c.Audio.SampleRate = 0 }, false},
		{"no bits", func(c *stream.AudioConfig) { c.Audio.BitsPerSample = 0 }, false},
		{"no channels", func(c *stream.AudioConfig) { c.Audio.ChannelMode = a2dp.ChannelModeNone }, false},
		{"unknown codec", func(c *stream.AudioConfig) { c.Codec = "opus" }, false},
		{"other codec", func(c *stream.AudioConfig) { c.Codec = "AAC" }, false},
		{"no config", func(c *stream.AudioConfig) { c.Config = nil }, false},
		{"outside local", func(c *stream.AudioConfig) { c.Config = sbc48000 }, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := cfg
			test.modify(&c)
			require.Equal(t, test.ok, a.UpdateAudioConfig(c))
		})
	}

	require.Len(t, b.signals, 1)
	require.Equal(t, AudioIface+".ConfigUpdated", b.signals[0].name)
	require.Equal(t, []any{uint8(1), "SBC", uint32(44100), byte(16), "stereo", cfg.Config}, b.signals[0].values)

	require.Nil(t, a.StartSession(1))
	a.StreamStarted(1, true)
	a.DelayReport(1, 1500)
	require.Nil(t, a.EndSession(1))

	var names []string
	for _, s := range b.signals[1:] {
		names = append(names, s.name)
	}
	require.Equal(t, []string{
		AudioIface + ".SessionStarted",
		AudioIface + ".StreamStarted",
		AudioIface + ".DelayReport",
		AudioIface + ".SessionEnded",
	}, names)

	b.err = errors.New("disconnected")
	require.NotNil(t, a.StartSession(1))
	require.False(t, a.UpdateAudioConfig(cfg))

	// 48000 is in the sink capability only
	sink := NewAudio(&bus{}, a2dp.RoleSink, zerolog.Nop())
	cfg.Config = sbc48000
	require.True(t, sink.Supports(cfg))
}
