package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	b := []byte(`# prefix`)

	b, err := Patch(b, "avdtp_version", 259, "devices", "speaker")
	require.Nil(t, err)

	require.Equal(t, `# prefix
devices:
  speaker:
    avdtp_version: 259
`, string(b))

	b, err = Patch(b, "avdtp_version", 259, "devices", "headset")
	require.Nil(t, err)

	require.Equal(t, `# prefix
devices:
  speaker:
    avdtp_version: 259
  headset:
    avdtp_version: 259
`, string(b))

	b, err = Patch(b, "avdtp_version", 260, "devices", "speaker")
	require.Nil(t, err)

	require.Equal(t, `# prefix
devices:
  speaker:
    avdtp_version: 260
  headset:
    avdtp_version: 259
`, string(b))

	b, err = Patch(b, "speaker", nil, "devices")
	require.Nil(t, err)

	require.Equal(t, `# prefix
devices:
  headset:
    avdtp_version: 259
`, string(b))

	b2, err := Patch(b, "avdtp_version", nil, "devices", "missing")
	require.Nil(t, err)
	require.Equal(t, b, b2)
}

func TestPatchNested(t *testing.T) {
	b := []byte(`a2dp:
  role: source
log:
  level: info
`)

	b, err := Patch(b, "priority", 5000, "a2dp", "codecs", "ldac")
	require.Nil(t, err)

	require.Equal(t, `a2dp:
  role: source
  codecs:
    ldac:
      priority: 5000
log:
  level: info
`, string(b))
}

func TestEncode(t *testing.T) {
	b, err := Encode(map[string]any{"level": "debug"}, 2)
	require.Nil(t, err)
	require.Equal(t, "level: debug\n", string(b))
}
