package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func withConfig(t *testing.T, confs ...string) {
	prevPath, prevConfigs := ConfigPath, configs
	t.Cleanup(func() {
		ConfigPath, configs = prevPath, prevConfigs
	})

	ConfigPath, configs = "", nil
	initConfig(confs)
}

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{a2dp: {suspend_policy: lenient}}", string(parseConfString("a2dp.suspend_policy=lenient")))
	require.Nil(t, parseConfString("go2a2dp.yaml"))
	require.Nil(t, parseConfString("level=debug"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("A2DP_TEST_ROLE", "sink")

	path := filepath.Join(t.TempDir(), "go2a2dp.yaml")
	data := "a2dp:\n  role: ${A2DP_TEST_ROLE}\n  suspend_policy: strict\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	withConfig(t, path, "a2dp.suspend_policy=lenient", `{log: {a2dp: trace}}`)
	require.Equal(t, path, ConfigPath)

	var cfg struct {
		Mod struct {
			Role          string `yaml:"role"`
			SuspendPolicy string `yaml:"suspend_policy"`
		} `yaml:"a2dp"`
		Log map[string]string `yaml:"log"`
	}
	LoadConfig(&cfg)

	require.Equal(t, "sink", cfg.Mod.Role)
	require.Equal(t, "lenient", cfg.Mod.SuspendPolicy)
	require.Equal(t, "trace", cfg.Log["a2dp"])
}

func TestPatchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go2a2dp.yaml")
	withConfig(t, path)

	require.NoError(t, PatchConfig([]string{"a2dp", "suspend_policy"}, "lenient"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a2dp:\n  suspend_policy: lenient\n", string(b))

	require.Error(t, PatchConfig(nil, 1))
}

func TestDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go2a2dp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices:\n  speaker:\n    avdtp_version: 258\n"), 0644))

	withConfig(t, path)

	prev := Devices
	t.Cleanup(func() { Devices = prev })
	Devices = &DeviceStore{items: map[string]Device{}}

	initDevices()

	dev, ok := Devices.Get("speaker")
	require.True(t, ok)
	require.Equal(t, uint16(0x0102), dev.AVDTPVersion)

	require.NoError(t, Devices.SetAVDTPVersion("speaker", 0x0103))
	require.NoError(t, Devices.SetAVDTPVersion("headset", 0x0103))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "devices:\n  speaker:\n    avdtp_version: 259\n  headset:\n    avdtp_version: 259\n", string(b))

	require.Len(t, Devices.All(), 2)

	// no config file, memory only
	ConfigPath = ""
	require.NoError(t, Devices.SetAVDTPVersion("phone", 0x0103))
	_, ok = Devices.Get("phone")
	require.True(t, ok)
}
